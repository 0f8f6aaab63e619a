package tickmath

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestSqrtRatioDomainEdges(t *testing.T) {
	low, err := SqrtRatioAtTick(MinTick)
	if err != nil {
		t.Fatalf("min tick: %v", err)
	}
	if !low.Eq(MinSqrtRatio) {
		t.Fatalf("ratio at MinTick = %s, want %s", low, MinSqrtRatio)
	}

	high, err := SqrtRatioAtTick(MaxTick)
	if err != nil {
		t.Fatalf("max tick: %v", err)
	}
	if !high.Eq(MaxSqrtRatio) {
		t.Fatalf("ratio at MaxTick = %s, want %s", high, MaxSqrtRatio)
	}

	if _, err := SqrtRatioAtTick(MinTick - 1); err == nil {
		t.Fatalf("expected error below MinTick")
	}
	if _, err := SqrtRatioAtTick(MaxTick + 1); err == nil {
		t.Fatalf("expected error above MaxTick")
	}
}

func TestSqrtRatioAtTickZero(t *testing.T) {
	got, err := SqrtRatioAtTick(0)
	if err != nil {
		t.Fatalf("tick 0: %v", err)
	}
	want := new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	if !got.Eq(want) {
		t.Fatalf("ratio at tick 0 = %s, want 2^96", got)
	}
}

func TestSqrtRatioMonotonic(t *testing.T) {
	ticks := []int32{MinTick, -887200, -100000, -5000, -100, -1, 0, 1, 100, 5000, 100000, 887200, MaxTick}
	var prev *uint256.Int
	for _, tick := range ticks {
		ratio, err := SqrtRatioAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if prev != nil && !prev.Lt(ratio) {
			t.Fatalf("ratio not strictly increasing at tick %d", tick)
		}
		prev = ratio
	}
}

func TestRoundTrip(t *testing.T) {
	ticks := []int32{MinTick, -500000, -887271, -12345, -60, -1, 0, 1, 60, 12345, 500000, 887271}
	for _, tick := range ticks {
		ratio, err := SqrtRatioAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		back, err := TickAtSqrtRatio(ratio)
		if err != nil {
			t.Fatalf("inverse at tick %d: %v", tick, err)
		}
		if back != tick {
			t.Fatalf("round trip %d -> %d", tick, back)
		}
	}
}

func TestTickAtSqrtRatioBounds(t *testing.T) {
	if _, err := TickAtSqrtRatio(uint256.NewInt(4295128738)); err == nil {
		t.Fatalf("expected error below MinSqrtRatio")
	}
	if _, err := TickAtSqrtRatio(MaxSqrtRatio); err == nil {
		t.Fatalf("expected error at MaxSqrtRatio (exclusive)")
	}

	// Highest valid input maps to MaxTick-1 since MaxSqrtRatio is exclusive.
	top := new(uint256.Int).Sub(MaxSqrtRatio, uint256.NewInt(1))
	tick, err := TickAtSqrtRatio(top)
	if err != nil {
		t.Fatalf("top of domain: %v", err)
	}
	if tick != MaxTick-1 {
		t.Fatalf("tick at MaxSqrtRatio-1 = %d, want %d", tick, MaxTick-1)
	}
}

func TestMaxLiquidityPerTick(t *testing.T) {
	// Known reference value for tick spacing 60.
	want := uint256.MustFromDecimal("11505743598341114571880798222544994")
	got := MaxLiquidityPerTick(60)
	if !got.Eq(want) {
		t.Fatalf("cap for spacing 60 = %s, want %s", got, want)
	}

	// Tighter spacing means more ticks, so a smaller per-tick cap.
	if !MaxLiquidityPerTick(1).Lt(MaxLiquidityPerTick(200)) {
		t.Fatalf("cap should shrink as spacing shrinks")
	}
}
