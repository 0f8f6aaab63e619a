package oracle

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestInitializeSeedsSlotZero(t *testing.T) {
	r := NewRingBuffer()
	cardinality, next := r.Initialize(1000)
	if cardinality != 1 || next != 1 {
		t.Fatalf("initialize = (%d,%d), want (1,1)", cardinality, next)
	}
	obs := r.At(0)
	if !obs.Initialized || obs.BlockTimestamp != 1000 || obs.TickCumulative != 0 {
		t.Fatalf("slot 0 not seeded: %+v", obs)
	}
}

func TestWriteSameTimestampIsNoOp(t *testing.T) {
	r := NewRingBuffer()
	cardinality, next := r.Initialize(1000)

	index, cardinality := r.Write(0, 1000, 5, uint256.NewInt(100), cardinality, next)
	if index != 0 || cardinality != 1 {
		t.Fatalf("same-timestamp write advanced: index=%d cardinality=%d", index, cardinality)
	}
}

func TestWriteIntegratesCumulatives(t *testing.T) {
	r := NewRingBuffer()
	cardinality, next := r.Initialize(1000)
	next = r.Grow(next, 4)

	// 10 seconds at tick 7 with liquidity 5.
	index, cardinality := r.Write(0, 1010, 7, uint256.NewInt(5), cardinality, next)
	if index != 1 || cardinality != 4 {
		t.Fatalf("write = (index %d, cardinality %d), want (1, 4)", index, cardinality)
	}

	obs := r.At(1)
	if obs.TickCumulative != 70 {
		t.Fatalf("tickCumulative = %d, want 70", obs.TickCumulative)
	}
	wantSpl := new(uint256.Int).Lsh(uint256.NewInt(10), 128)
	wantSpl.Div(wantSpl, uint256.NewInt(5))
	if !obs.SecondsPerLiquidityCumulativeX128.Eq(wantSpl) {
		t.Fatalf("secondsPerLiquidity = %s, want %s", obs.SecondsPerLiquidityCumulativeX128, wantSpl)
	}
}

func TestGrowNeverShrinks(t *testing.T) {
	r := NewRingBuffer()
	_, next := r.Initialize(1000)
	next = r.Grow(next, 5)
	if next != 5 {
		t.Fatalf("grow to 5 returned %d", next)
	}
	if got := r.Grow(next, 3); got != 5 {
		t.Fatalf("grow must not shrink: got %d", got)
	}
}

func TestObserveSingleNow(t *testing.T) {
	r := NewRingBuffer()
	cardinality, next := r.Initialize(1000)
	next = r.Grow(next, 4)
	index, cardinality := r.Write(0, 1010, 7, uint256.NewInt(5), cardinality, next)

	// Age zero, 5 seconds after the last write at tick 3: extrapolates.
	tickCum, _, err := r.ObserveSingle(1015, 0, 3, index, uint256.NewInt(5), cardinality)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if tickCum != 70+15 {
		t.Fatalf("tickCumulative = %d, want 85", tickCum)
	}
}

func TestObserveInterpolates(t *testing.T) {
	r := NewRingBuffer()
	cardinality, next := r.Initialize(1000)
	next = r.Grow(next, 4)
	index, cardinality := r.Write(0, 1010, 10, uint256.NewInt(1), cardinality, next)
	index, cardinality = r.Write(index, 1030, 20, uint256.NewInt(1), cardinality, next)

	// Halfway between the two stored samples (ts 1020).
	tickCum, _, err := r.ObserveSingle(1030, 10, 20, index, uint256.NewInt(1), cardinality)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	// Cumulative is 100 at ts 1010 and 500 at ts 1030 (tick 20 for 20s), so
	// the midpoint interpolates to 300.
	if tickCum != 300 {
		t.Fatalf("interpolated tickCumulative = %d, want 300", tickCum)
	}
}

func TestObserveExactStoredTimestamp(t *testing.T) {
	r := NewRingBuffer()
	cardinality, next := r.Initialize(1000)
	next = r.Grow(next, 4)
	index, cardinality := r.Write(0, 1010, 10, uint256.NewInt(1), cardinality, next)

	tickCum, _, err := r.ObserveSingle(1030, 20, 10, index, uint256.NewInt(1), cardinality)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if tickCum != 100 {
		t.Fatalf("tickCumulative at stored sample = %d, want 100", tickCum)
	}
}

func TestObserveTooOld(t *testing.T) {
	r := NewRingBuffer()
	cardinality, next := r.Initialize(1000)
	index := uint16(0)

	if _, _, err := r.ObserveSingle(1010, 20, 0, index, uint256.NewInt(1), cardinality); err != ErrTargetTooOld {
		t.Fatalf("expected ErrTargetTooOld, got %v", err)
	}
	_ = next
}

func TestObserveVectorized(t *testing.T) {
	r := NewRingBuffer()
	cardinality, next := r.Initialize(1000)
	next = r.Grow(next, 4)
	index, cardinality := r.Write(0, 1010, 10, uint256.NewInt(1), cardinality, next)

	ticks, spls, err := r.Observe(1010, []uint64{0, 5, 10}, 10, index, uint256.NewInt(1), cardinality)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if len(ticks) != 3 || len(spls) != 3 {
		t.Fatalf("expected 3 results, got %d/%d", len(ticks), len(spls))
	}
	if ticks[0] != 100 || ticks[2] != 0 {
		t.Fatalf("vector results out of order: %v", ticks)
	}
}

func TestRingWrapsAtCardinality(t *testing.T) {
	r := NewRingBuffer()
	cardinality, next := r.Initialize(1000)
	next = r.Grow(next, 2)

	index, cardinality := r.Write(0, 1010, 1, uint256.NewInt(1), cardinality, next)
	index, cardinality = r.Write(index, 1020, 1, uint256.NewInt(1), cardinality, next)
	if index != 0 {
		t.Fatalf("expected wrap to index 0, got %d", index)
	}
	if cardinality != 2 {
		t.Fatalf("cardinality = %d, want 2", cardinality)
	}
}
