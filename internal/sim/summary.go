package sim

import (
	"math/big"

	"liquidityEngine/internal/model"
)

// Summary accumulates per-run counters while the simulation executes.
type Summary struct {
	RunID string
	Seed  int64

	Steps       uint64
	SwapCount   uint64
	MintCount   uint64
	BurnCount   uint64
	StakeCount  uint64
	FlashCount  uint64
	FailedCount uint64

	Volume0 *big.Int
	Volume1 *big.Int

	StartedAt uint64
}

func NewSummary(runID string, seed int64, startedAt uint64) *Summary {
	return &Summary{
		RunID:     runID,
		Seed:      seed,
		Volume0:   big.NewInt(0),
		Volume1:   big.NewInt(0),
		StartedAt: startedAt,
	}
}

// Record tallies one executed operation. Failed operations count toward the
// step total but not toward volume.
func (s *Summary) Record(kind string, failed bool, amount0, amount1 *big.Int) {
	s.Steps++
	if failed {
		s.FailedCount++
		return
	}

	switch kind {
	case model.KindSwap:
		s.SwapCount++
		absAdd(s.Volume0, amount0)
		absAdd(s.Volume1, amount1)
	case model.KindMint:
		s.MintCount++
	case model.KindBurn:
		s.BurnCount++
	case model.KindStake, model.KindUnstake:
		s.StakeCount++
	case model.KindFlash:
		s.FlashCount++
	}
}

// Finalize converts the counters into a storable run record.
func (s *Summary) Finalize(finishedAt uint64, finalTick int32) model.SimRun {
	return model.SimRun{
		RunID:       s.RunID,
		Seed:        s.Seed,
		Steps:       s.Steps,
		SwapCount:   s.SwapCount,
		MintCount:   s.MintCount,
		BurnCount:   s.BurnCount,
		StakeCount:  s.StakeCount,
		FlashCount:  s.FlashCount,
		FailedCount: s.FailedCount,
		Volume0:     s.Volume0.String(),
		Volume1:     s.Volume1.String(),
		FinalTick:   finalTick,
		StartedAt:   s.StartedAt,
		FinishedAt:  finishedAt,
	}
}

func absAdd(target *big.Int, value *big.Int) {
	if value == nil || target == nil {
		return
	}
	abs := new(big.Int).Abs(value)
	target.Add(target, abs)
}
