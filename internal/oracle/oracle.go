// Package oracle stores time-weighted cumulative observations of pool tick
// and liquidity in a growable ring buffer, supporting point and interpolated
// range queries.
package oracle

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrNotInitialized = errors.New("oracle not initialized")
	ErrTargetTooOld   = errors.New("target predates oldest observation")
)

// Observation is one stored cumulative sample.
type Observation struct {
	BlockTimestamp                    uint64
	TickCumulative                    int64
	SecondsPerLiquidityCumulativeX128 *uint256.Int
	Initialized                       bool
}

// transform projects an observation forward to blockTimestamp given the tick
// and liquidity that were active in between.
func transform(last Observation, blockTimestamp uint64, tick int32, liquidity *uint256.Int) Observation {
	delta := blockTimestamp - last.BlockTimestamp

	denom := liquidity
	if denom.IsZero() {
		denom = uint256.NewInt(1)
	}
	splDelta := new(uint256.Int).Lsh(uint256.NewInt(delta), 128)
	splDelta.Div(splDelta, denom)

	return Observation{
		BlockTimestamp:                    blockTimestamp,
		TickCumulative:                    last.TickCumulative + int64(tick)*int64(delta),
		SecondsPerLiquidityCumulativeX128: new(uint256.Int).Add(last.SecondsPerLiquidityCumulativeX128, splDelta),
		Initialized:                       true,
	}
}

// RingBuffer is the oracle store. Capacity never shrinks; Grow reserves slots
// ahead of use so writes can roll into them without a discontinuity.
type RingBuffer struct {
	obs []Observation
}

func NewRingBuffer() *RingBuffer {
	return &RingBuffer{}
}

// At returns the observation stored at index.
func (r *RingBuffer) At(index uint16) Observation {
	return r.obs[index]
}

// Initialize seeds slot 0 and returns the initial cardinality pair (1, 1).
func (r *RingBuffer) Initialize(time uint64) (uint16, uint16) {
	r.obs = append(r.obs[:0], Observation{
		BlockTimestamp:                    time,
		SecondsPerLiquidityCumulativeX128: new(uint256.Int),
		Initialized:                       true,
	})
	return 1, 1
}

// Write appends an observation. Writing twice at one timestamp is a no-op.
// When reserved capacity is available and the buffer is at its last live
// slot, cardinality advances into the reserved region.
func (r *RingBuffer) Write(index uint16, blockTimestamp uint64, tick int32, liquidity *uint256.Int, cardinality, cardinalityNext uint16) (uint16, uint16) {
	last := r.obs[index]
	if last.BlockTimestamp == blockTimestamp {
		return index, cardinality
	}

	cardinalityUpdated := cardinality
	if cardinalityNext > cardinality && index == cardinality-1 {
		cardinalityUpdated = cardinalityNext
	}

	indexUpdated := (index + 1) % cardinalityUpdated
	r.obs[indexUpdated] = transform(last, blockTimestamp, tick, liquidity)
	return indexUpdated, cardinalityUpdated
}

// Grow reserves capacity up to next slots and returns the effective value.
// Reserved slots get a placeholder timestamp so the slot is materialized
// before any read can race a write into it.
func (r *RingBuffer) Grow(current, next uint16) uint16 {
	if current == 0 {
		return current // not initialized yet
	}
	if next <= current {
		return current
	}
	for i := len(r.obs); i < int(next); i++ {
		r.obs = append(r.obs, Observation{
			BlockTimestamp:                    1,
			SecondsPerLiquidityCumulativeX128: new(uint256.Int),
		})
	}
	return next
}

// ObserveSingle returns the cumulative tick and seconds-per-liquidity values
// as of secondsAgo before time. Age zero extrapolates from the newest stored
// observation; anything else interpolates between the two bracketing samples.
func (r *RingBuffer) ObserveSingle(time uint64, secondsAgo uint64, tick int32, index uint16, liquidity *uint256.Int, cardinality uint16) (int64, *uint256.Int, error) {
	if cardinality == 0 {
		return 0, nil, ErrNotInitialized
	}

	if secondsAgo == 0 {
		last := r.obs[index]
		if last.BlockTimestamp != time {
			last = transform(last, time, tick, liquidity)
		}
		return last.TickCumulative, new(uint256.Int).Set(last.SecondsPerLiquidityCumulativeX128), nil
	}

	target := time - secondsAgo

	beforeOrAt, atOrAfter, err := r.surrounding(time, target, tick, index, liquidity, cardinality)
	if err != nil {
		return 0, nil, err
	}

	switch {
	case target == beforeOrAt.BlockTimestamp:
		return beforeOrAt.TickCumulative, new(uint256.Int).Set(beforeOrAt.SecondsPerLiquidityCumulativeX128), nil
	case target == atOrAfter.BlockTimestamp:
		return atOrAfter.TickCumulative, new(uint256.Int).Set(atOrAfter.SecondsPerLiquidityCumulativeX128), nil
	default:
		span := atOrAfter.BlockTimestamp - beforeOrAt.BlockTimestamp
		elapsed := target - beforeOrAt.BlockTimestamp

		tickCumulative := beforeOrAt.TickCumulative +
			(atOrAfter.TickCumulative-beforeOrAt.TickCumulative)/int64(span)*int64(elapsed)

		splSpan := new(uint256.Int).Sub(atOrAfter.SecondsPerLiquidityCumulativeX128, beforeOrAt.SecondsPerLiquidityCumulativeX128)
		splSpan.Mul(splSpan, uint256.NewInt(elapsed))
		splSpan.Div(splSpan, uint256.NewInt(span))
		spl := splSpan.Add(beforeOrAt.SecondsPerLiquidityCumulativeX128, splSpan)
		return tickCumulative, spl, nil
	}
}

// Observe is the vectorized form of ObserveSingle, one result per input age.
func (r *RingBuffer) Observe(time uint64, secondsAgos []uint64, tick int32, index uint16, liquidity *uint256.Int, cardinality uint16) ([]int64, []*uint256.Int, error) {
	tickCumulatives := make([]int64, len(secondsAgos))
	secondsPerLiquidity := make([]*uint256.Int, len(secondsAgos))
	for i, age := range secondsAgos {
		var err error
		tickCumulatives[i], secondsPerLiquidity[i], err = r.ObserveSingle(time, age, tick, index, liquidity, cardinality)
		if err != nil {
			return nil, nil, err
		}
	}
	return tickCumulatives, secondsPerLiquidity, nil
}

func (r *RingBuffer) surrounding(time, target uint64, tick int32, index uint16, liquidity *uint256.Int, cardinality uint16) (Observation, Observation, error) {
	beforeOrAt := r.obs[index]

	if beforeOrAt.BlockTimestamp <= target {
		if beforeOrAt.BlockTimestamp == target {
			return beforeOrAt, beforeOrAt, nil
		}
		// Target is newer than every stored sample: extrapolate.
		return beforeOrAt, transform(beforeOrAt, target, tick, liquidity), nil
	}

	oldest := r.obs[(index+1)%cardinality]
	if !oldest.Initialized {
		oldest = r.obs[0]
	}
	if target < oldest.BlockTimestamp {
		return Observation{}, Observation{}, ErrTargetTooOld
	}

	return r.binarySearch(target, index, cardinality)
}

func (r *RingBuffer) binarySearch(target uint64, index uint16, cardinality uint16) (Observation, Observation, error) {
	l := (uint32(index) + 1) % uint32(cardinality) // oldest
	rr := l + uint32(cardinality) - 1              // newest

	for {
		i := (l + rr) / 2
		beforeOrAt := r.obs[i%uint32(cardinality)]
		if !beforeOrAt.Initialized {
			// Hit an uninitialized reserved slot; narrow to the right.
			l = i + 1
			continue
		}

		atOrAfter := r.obs[(i+1)%uint32(cardinality)]

		if beforeOrAt.BlockTimestamp <= target {
			if target <= atOrAfter.BlockTimestamp {
				return beforeOrAt, atOrAfter, nil
			}
			l = i + 1
		} else {
			rr = i - 1
		}
	}
}
