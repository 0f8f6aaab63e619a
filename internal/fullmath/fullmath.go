package fullmath

import (
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// Q96 is 2^96, the scaling factor of sqrt prices.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)
	// Q128 is 2^128, the scaling factor of the per-liquidity growth accumulators.
	Q128 = new(big.Int).Lsh(big.NewInt(1), 128)

	// MaxUint128 bounds liquidity amounts and owed-token balances.
	MaxUint128 = uint256.MustFromHex("0xffffffffffffffffffffffffffffffff")

	one = big.NewInt(1)
)

// MulDiv returns floor(a * b / denominator). The intermediate product is kept
// at full precision, so the result is exact even when a*b exceeds 256 bits.
// denominator must be non-zero.
func MulDiv(a, b, denominator *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	return product.Div(product, denominator)
}

// MulDivRoundingUp returns ceil(a * b / denominator).
func MulDivRoundingUp(a, b, denominator *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	quotient, rem := new(big.Int).DivMod(product, denominator, new(big.Int))
	if rem.Sign() > 0 {
		quotient.Add(quotient, one)
	}
	return quotient
}

// DivRoundingUp returns ceil(a / b).
func DivRoundingUp(a, b *big.Int) *big.Int {
	quotient, rem := new(big.Int).DivMod(a, b, new(big.Int))
	if rem.Sign() > 0 {
		quotient.Add(quotient, one)
	}
	return quotient
}

// SaturatingAddU128 adds delta into acc, clamping at MaxUint128. Owed-token
// balances use this: hitting the cap means the owner must withdraw, not that
// accounting broke.
func SaturatingAddU128(acc, delta *uint256.Int) *uint256.Int {
	sum := new(uint256.Int).Add(acc, delta)
	if sum.Lt(acc) || sum.Gt(MaxUint128) {
		return new(uint256.Int).Set(MaxUint128)
	}
	return sum
}

// U256MulDivQ128 returns floor(growthDelta * liquidity / 2^128) truncated to
// the uint128 range, saturating on overflow. growthDelta is a wrapped
// difference of Q128 accumulators.
func U256MulDivQ128(growthDelta, liquidity *uint256.Int) *uint256.Int {
	product := new(big.Int).Mul(growthDelta.ToBig(), liquidity.ToBig())
	product.Rsh(product, 128)
	out, overflow := uint256.FromBig(product)
	if overflow || out.Gt(MaxUint128) {
		return new(uint256.Int).Set(MaxUint128)
	}
	return out
}
