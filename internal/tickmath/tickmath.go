package tickmath

import (
	"errors"

	"github.com/holiman/uint256"

	"liquidityEngine/internal/fullmath"
)

const (
	// MinTick is the lowest tick for which a sqrt ratio is representable.
	MinTick int32 = -887272
	// MaxTick is the highest tick for which a sqrt ratio is representable.
	MaxTick int32 = 887272
)

var (
	// MinSqrtRatio is SqrtRatioAtTick(MinTick).
	MinSqrtRatio = uint256.NewInt(4295128739)
	// MaxSqrtRatio is SqrtRatioAtTick(MaxTick).
	MaxSqrtRatio = uint256.MustFromDecimal("1461446703485210103287273052203988822378723970342")

	ErrTickOutOfRange      = errors.New("tick out of range")
	ErrSqrtRatioOutOfRange = errors.New("sqrt ratio out of range")

	maxUint256 = uint256.MustFromHex("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	roundMask  = uint256.MustFromHex("0xffffffff")

	// sqrt(1.0001^(2^i)) in UQ128.128 for each bit of |tick|; index 1 holds
	// 1.0 for ticks with the low bit clear.
	ratios = [21]*uint256.Int{
		uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
		uint256.MustFromHex("0x100000000000000000000000000000000"),
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}
)

// SqrtRatioAtTick returns sqrt(1.0001^tick) * 2^96 as a Q64.96 value.
func SqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrTickOutOfRange
	}

	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(ratios[0])
	} else {
		ratio.Set(ratios[1])
	}
	for i := 2; i < 21; i++ {
		if absTick&(1<<(i-1)) != 0 {
			ratio.Mul(ratio, ratios[i]).Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up so the round trip through
	// TickAtSqrtRatio lands on the same tick.
	rem := new(uint256.Int).And(ratio, roundMask)
	ratio.Rsh(ratio, 32)
	if !rem.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio, nil
}

// TickAtSqrtRatio returns the greatest tick t such that
// SqrtRatioAtTick(t) <= sqrtPriceX96.
func TickAtSqrtRatio(sqrtPriceX96 *uint256.Int) (int32, error) {
	if sqrtPriceX96.Lt(MinSqrtRatio) || !sqrtPriceX96.Lt(MaxSqrtRatio) {
		return 0, ErrSqrtRatioOutOfRange
	}

	low, high := MinTick, MaxTick
	tick := MinTick
	for low <= high {
		mid := (low + high) / 2
		ratio, err := SqrtRatioAtTick(mid)
		if err != nil {
			return 0, err
		}
		if !sqrtPriceX96.Lt(ratio) {
			tick = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	return tick, nil
}

// MaxLiquidityPerTick returns the gross liquidity cap for a single tick,
// derived from the tick spacing so the total across all usable ticks cannot
// exceed the uint128 range.
func MaxLiquidityPerTick(tickSpacing int32) *uint256.Int {
	minUsable := (MinTick / tickSpacing) * tickSpacing
	maxUsable := (MaxTick / tickSpacing) * tickSpacing
	numTicks := uint64((maxUsable-minUsable)/tickSpacing) + 1
	return new(uint256.Int).Div(fullmath.MaxUint128, uint256.NewInt(numTicks))
}
