package tick

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"liquidityEngine/internal/fullmath"
)

func updateParams(tick, current int32, delta int64, upper bool) UpdateParams {
	return UpdateParams{
		Tick:                              tick,
		CurrentTick:                       current,
		LiquidityDelta:                    big.NewInt(delta),
		LiquidityStakedDelta:              new(big.Int),
		FeeGrowthGlobal0X128:              new(uint256.Int),
		FeeGrowthGlobal1X128:              new(uint256.Int),
		RewardGrowthGlobalX128:            new(uint256.Int),
		SecondsPerLiquidityCumulativeX128: new(uint256.Int),
		Upper:                             upper,
		MaxLiquidityPerTick:               new(uint256.Int).Set(fullmath.MaxUint128),
	}
}

func TestUpdateFlipsOnZeroTransition(t *testing.T) {
	r := NewRegistry()

	flipped, err := r.Update(updateParams(100, 0, 500, false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !flipped {
		t.Fatalf("0 -> 500 must flip")
	}

	flipped, err = r.Update(updateParams(100, 0, 300, false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flipped {
		t.Fatalf("500 -> 800 must not flip")
	}

	flipped, err = r.Update(updateParams(100, 0, -800, false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !flipped {
		t.Fatalf("800 -> 0 must flip")
	}
}

func TestUpdateSnapshotsOutsideBelowCurrent(t *testing.T) {
	r := NewRegistry()

	p := updateParams(-50, 0, 100, false)
	p.FeeGrowthGlobal0X128 = uint256.NewInt(777)
	p.Time = 42
	if _, err := r.Update(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, ok := r.Get(-50)
	if !ok {
		t.Fatalf("tick missing after update")
	}
	if info.FeeGrowthOutside0X128.Uint64() != 777 {
		t.Fatalf("tick at or below current must snapshot globals, got %s", info.FeeGrowthOutside0X128)
	}
	if info.SecondsOutside != 42 {
		t.Fatalf("secondsOutside = %d, want 42", info.SecondsOutside)
	}

	// A tick above the current price snapshots zero.
	p = updateParams(50, 0, 100, false)
	p.FeeGrowthGlobal0X128 = uint256.NewInt(777)
	if _, err := r.Update(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, _ = r.Get(50)
	if !info.FeeGrowthOutside0X128.IsZero() {
		t.Fatalf("tick above current must snapshot zero, got %s", info.FeeGrowthOutside0X128)
	}
}

func TestUpdateUpperFlipsNetSign(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Update(updateParams(10, 0, 400, true)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, _ := r.Get(10)
	if info.LiquidityNet.Int64() != -400 {
		t.Fatalf("upper boundary net = %s, want -400", info.LiquidityNet)
	}
	if info.LiquidityGross.Uint64() != 400 {
		t.Fatalf("gross = %s, want 400", info.LiquidityGross)
	}
}

func TestUpdateRejectsOverflowAndUnderflow(t *testing.T) {
	r := NewRegistry()

	p := updateParams(0, 0, 1000, false)
	p.MaxLiquidityPerTick = uint256.NewInt(999)
	if _, err := r.Update(p); err != ErrLiquidityOverflow {
		t.Fatalf("expected ErrLiquidityOverflow, got %v", err)
	}

	if _, err := r.Update(updateParams(0, 0, -1, false)); err != ErrLiquidityUnderflow {
		t.Fatalf("expected ErrLiquidityUnderflow, got %v", err)
	}
}

func TestCrossReflectsOutside(t *testing.T) {
	r := NewRegistry()

	p := updateParams(0, 0, 250, false)
	if _, err := r.Update(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	global := uint256.NewInt(1000)
	net, stakedNet := r.Cross(0, global, global, global, uint256.NewInt(10), 99, 1234)
	if net.Int64() != 250 {
		t.Fatalf("net = %s, want 250", net)
	}
	if stakedNet.Sign() != 0 {
		t.Fatalf("stakedNet = %s, want 0", stakedNet)
	}

	info, _ := r.Get(0)
	if info.FeeGrowthOutside0X128.Uint64() != 1000 {
		t.Fatalf("outside after first cross = %s, want 1000", info.FeeGrowthOutside0X128)
	}

	// Crossing back with a larger global reflects again.
	global2 := uint256.NewInt(1600)
	r.Cross(0, global2, global2, global2, uint256.NewInt(10), 99, 1234)
	info, _ = r.Get(0)
	if info.FeeGrowthOutside0X128.Uint64() != 600 {
		t.Fatalf("outside after second cross = %s, want 600", info.FeeGrowthOutside0X128)
	}
}

func TestGrowthInsideThreeWaySplit(t *testing.T) {
	r := NewRegistry()
	global := uint256.NewInt(100)

	// Price inside the range, fresh ticks: all growth counts as inside.
	inside0, _, _ := r.GrowthInside(-10, 10, 0, global, global, global)
	if inside0.Uint64() != 100 {
		t.Fatalf("inside growth = %s, want 100", inside0)
	}

	// Price below the range: nothing inside.
	inside0, _, _ = r.GrowthInside(-10, 10, -20, global, global, global)
	if !inside0.IsZero() {
		t.Fatalf("below-range inside growth = %s, want 0", inside0)
	}

	// Price above the range: nothing inside.
	inside0, _, _ = r.GrowthInside(-10, 10, 20, global, global, global)
	if !inside0.IsZero() {
		t.Fatalf("above-range inside growth = %s, want 0", inside0)
	}
}

func TestGrowthInsideWrapping(t *testing.T) {
	r := NewRegistry()

	// An outside snapshot larger than the global forces wrapping subtraction.
	p := updateParams(-10, 0, 100, false)
	p.FeeGrowthGlobal0X128 = new(uint256.Int).Not(uint256.NewInt(0)) // max uint256
	if _, err := r.Update(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	global := uint256.NewInt(9)
	inside0, _, _ := r.GrowthInside(-10, 10, 0, global, global, global)
	if inside0.Uint64() != 10 {
		t.Fatalf("wrapped inside growth = %s, want 10", inside0)
	}
}

func TestClearIdempotent(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Update(updateParams(5, 0, 10, false)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Clear(5)
	r.Clear(5)
	if _, ok := r.Get(5); ok {
		t.Fatalf("tick still present after clear")
	}
	if r.Len() != 0 {
		t.Fatalf("registry not empty")
	}
}
