// Package tick keeps the per-tick accounting the swap engine walks across:
// gross/net liquidity, growth-outside snapshots, and the bitmap index used to
// find the next initialized tick.
package tick

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrLiquidityOverflow  = errors.New("tick liquidity above per-tick cap")
	ErrLiquidityUnderflow = errors.New("tick liquidity below zero")
)

// Info is the bookkeeping for one initialized tick.
type Info struct {
	LiquidityGross                 *uint256.Int
	LiquidityNet                   *big.Int // applied when crossing left to right
	LiquidityStakedNet             *big.Int
	FeeGrowthOutside0X128          *uint256.Int
	FeeGrowthOutside1X128          *uint256.Int
	RewardGrowthOutsideX128        *uint256.Int
	SecondsPerLiquidityOutsideX128 *uint256.Int
	TickCumulativeOutside          int64
	SecondsOutside                 uint64
	Initialized                    bool
}

func newInfo() *Info {
	return &Info{
		LiquidityGross:                 new(uint256.Int),
		LiquidityNet:                   new(big.Int),
		LiquidityStakedNet:             new(big.Int),
		FeeGrowthOutside0X128:          new(uint256.Int),
		FeeGrowthOutside1X128:          new(uint256.Int),
		RewardGrowthOutsideX128:        new(uint256.Int),
		SecondsPerLiquidityOutsideX128: new(uint256.Int),
	}
}

// Registry is the sparse tick store. Entries are created lazily on first
// reference and removed once their gross liquidity returns to zero.
type Registry struct {
	ticks map[int32]*Info
}

func NewRegistry() *Registry {
	return &Registry{ticks: make(map[int32]*Info)}
}

// Get returns the tick entry if present.
func (r *Registry) Get(tick int32) (*Info, bool) {
	info, ok := r.ticks[tick]
	return info, ok
}

// Len reports the number of live tick entries.
func (r *Registry) Len() int {
	return len(r.ticks)
}

// UpdateParams carries the state a tick update needs from the pool.
type UpdateParams struct {
	Tick                              int32
	CurrentTick                       int32
	LiquidityDelta                    *big.Int
	LiquidityStakedDelta              *big.Int
	FeeGrowthGlobal0X128              *uint256.Int
	FeeGrowthGlobal1X128              *uint256.Int
	RewardGrowthGlobalX128            *uint256.Int
	SecondsPerLiquidityCumulativeX128 *uint256.Int
	TickCumulative                    int64
	Time                              uint64
	Upper                             bool
	MaxLiquidityPerTick               *uint256.Int
}

// Update applies a liquidity delta to a tick boundary and reports whether the
// tick flipped between initialized and uninitialized.
func (r *Registry) Update(p UpdateParams) (bool, error) {
	info, ok := r.ticks[p.Tick]
	if !ok {
		info = newInfo()
	}

	grossBefore := info.LiquidityGross.ToBig()
	grossAfter := new(big.Int).Add(grossBefore, p.LiquidityDelta)
	if grossAfter.Sign() < 0 {
		return false, ErrLiquidityUnderflow
	}
	grossAfterU, overflow := uint256.FromBig(grossAfter)
	if overflow || grossAfterU.Gt(p.MaxLiquidityPerTick) {
		return false, ErrLiquidityOverflow
	}

	flipped := (grossBefore.Sign() == 0) != (grossAfter.Sign() == 0)

	if grossBefore.Sign() == 0 {
		// Convention: everything below a freshly initialized tick counts as
		// already outside it, so snapshot the globals when price is at or
		// above the tick and zero otherwise.
		if p.CurrentTick >= p.Tick {
			info.FeeGrowthOutside0X128.Set(p.FeeGrowthGlobal0X128)
			info.FeeGrowthOutside1X128.Set(p.FeeGrowthGlobal1X128)
			info.RewardGrowthOutsideX128.Set(p.RewardGrowthGlobalX128)
			info.SecondsPerLiquidityOutsideX128.Set(p.SecondsPerLiquidityCumulativeX128)
			info.TickCumulativeOutside = p.TickCumulative
			info.SecondsOutside = p.Time
		}
		info.Initialized = true
	}

	info.LiquidityGross = grossAfterU

	// The upper boundary of a range subtracts what the lower boundary adds.
	if p.Upper {
		info.LiquidityNet.Sub(info.LiquidityNet, p.LiquidityDelta)
		info.LiquidityStakedNet.Sub(info.LiquidityStakedNet, p.LiquidityStakedDelta)
	} else {
		info.LiquidityNet.Add(info.LiquidityNet, p.LiquidityDelta)
		info.LiquidityStakedNet.Add(info.LiquidityStakedNet, p.LiquidityStakedDelta)
	}

	r.ticks[p.Tick] = info
	return flipped, nil
}

// Cross reflects every growth-outside accumulator through the current globals
// and returns the signed liquidity deltas to apply to the active counters.
func (r *Registry) Cross(tick int32, feeGrowthGlobal0, feeGrowthGlobal1, rewardGrowthGlobal, secondsPerLiquidityCumulative *uint256.Int, tickCumulative int64, time uint64) (*big.Int, *big.Int) {
	info, ok := r.ticks[tick]
	if !ok {
		return new(big.Int), new(big.Int)
	}

	info.FeeGrowthOutside0X128 = new(uint256.Int).Sub(feeGrowthGlobal0, info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128 = new(uint256.Int).Sub(feeGrowthGlobal1, info.FeeGrowthOutside1X128)
	info.RewardGrowthOutsideX128 = new(uint256.Int).Sub(rewardGrowthGlobal, info.RewardGrowthOutsideX128)
	info.SecondsPerLiquidityOutsideX128 = new(uint256.Int).Sub(secondsPerLiquidityCumulative, info.SecondsPerLiquidityOutsideX128)
	info.TickCumulativeOutside = tickCumulative - info.TickCumulativeOutside
	info.SecondsOutside = time - info.SecondsOutside

	return new(big.Int).Set(info.LiquidityNet), new(big.Int).Set(info.LiquidityStakedNet)
}

// GrowthInside returns the fee and reward growth accumulated strictly inside
// a tick range. All subtraction is wrapping: the accumulators are modular.
func (r *Registry) GrowthInside(tickLower, tickUpper, currentTick int32, feeGrowthGlobal0, feeGrowthGlobal1, rewardGrowthGlobal *uint256.Int) (inside0, inside1, insideReward *uint256.Int) {
	lower := r.outsideOrZero(tickLower)
	upper := r.outsideOrZero(tickUpper)

	var below0, below1, belowR *uint256.Int
	if currentTick >= tickLower {
		below0 = lower.FeeGrowthOutside0X128
		below1 = lower.FeeGrowthOutside1X128
		belowR = lower.RewardGrowthOutsideX128
	} else {
		below0 = new(uint256.Int).Sub(feeGrowthGlobal0, lower.FeeGrowthOutside0X128)
		below1 = new(uint256.Int).Sub(feeGrowthGlobal1, lower.FeeGrowthOutside1X128)
		belowR = new(uint256.Int).Sub(rewardGrowthGlobal, lower.RewardGrowthOutsideX128)
	}

	var above0, above1, aboveR *uint256.Int
	if currentTick < tickUpper {
		above0 = upper.FeeGrowthOutside0X128
		above1 = upper.FeeGrowthOutside1X128
		aboveR = upper.RewardGrowthOutsideX128
	} else {
		above0 = new(uint256.Int).Sub(feeGrowthGlobal0, upper.FeeGrowthOutside0X128)
		above1 = new(uint256.Int).Sub(feeGrowthGlobal1, upper.FeeGrowthOutside1X128)
		aboveR = new(uint256.Int).Sub(rewardGrowthGlobal, upper.RewardGrowthOutsideX128)
	}

	inside0 = new(uint256.Int).Sub(feeGrowthGlobal0, below0)
	inside0.Sub(inside0, above0)
	inside1 = new(uint256.Int).Sub(feeGrowthGlobal1, below1)
	inside1.Sub(inside1, above1)
	insideReward = new(uint256.Int).Sub(rewardGrowthGlobal, belowR)
	insideReward.Sub(insideReward, aboveR)
	return inside0, inside1, insideReward
}

// Clear drops a tick entry. Idempotent.
func (r *Registry) Clear(tick int32) {
	delete(r.ticks, tick)
}

func (r *Registry) outsideOrZero(tick int32) *Info {
	if info, ok := r.ticks[tick]; ok {
		return info
	}
	return newInfo()
}
