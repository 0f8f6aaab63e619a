package sim

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/tickmath"
)

var (
	simPoolAddr = common.HexToAddress("0x0000000000000000000000000000000000001001")
	simToken0   = common.HexToAddress("0x0000000000000000000000000000000000001002")
	simToken1   = common.HexToAddress("0x0000000000000000000000000000000000001003")
)

// RunConfig holds runtime settings for a simulation run.
type RunConfig struct {
	RunID              string
	Seed               int64
	Steps              int
	FeePips            uint32
	TickSpacing        int32
	ProtocolFeeRatePpm uint32
	RewardRatePerSec   uint64
	SnapshotEvery      int
	FlushEvery         int
}

// SnapshotStore persists snapshots and run summaries. Optional.
type SnapshotStore interface {
	UpsertSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error
	UpsertRuns(ctx context.Context, runs []model.SimRun) error
}

type positionRef struct {
	owner        common.Address
	lower, upper int32
	liquidity    *uint256.Int
}

// Runner drives a pool through a randomized operation sequence and writes
// every operation to the journal.
type Runner struct {
	cfg     RunConfig
	journal storage.Journal
	store   SnapshotStore
	logger  *zap.Logger

	rng   *rand.Rand
	clock uint64
	seq   uint64

	ledger  *MemoryLedger
	rewards *DripRewards
	pool    *pool.Pool

	base      positionRef
	positions []positionRef
	pending   []model.Event
	summary   *Summary
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, journal storage.Journal, store SnapshotStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 64
	}
	return &Runner{
		cfg:     cfg,
		journal: journal,
		store:   store,
		logger:  logger,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Run executes the simulation loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.journal == nil {
		return fmt.Errorf("journal is nil")
	}
	if r.cfg.Steps <= 0 {
		return fmt.Errorf("steps must be greater than zero")
	}
	if r.cfg.TickSpacing <= 0 {
		return fmt.Errorf("tick spacing must be greater than zero")
	}

	r.clock = uint64(time.Now().Unix())
	r.summary = NewSummary(r.cfg.RunID, r.cfg.Seed, r.clock)

	if err := r.setup(); err != nil {
		return err
	}

	for step := 0; step < r.cfg.Steps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		elapsed := uint64(1 + r.rng.Intn(12))
		r.clock += elapsed
		r.rewards.Advance(elapsed)

		events, failed := r.executeRandomOp()
		primary := events[0]
		var amount0, amount1 *big.Int
		if primary.Kind == model.KindSwap && !failed {
			amount0, _ = new(big.Int).SetString(primary.Amount0, 10)
			amount1, _ = new(big.Int).SetString(primary.Amount1, 10)
		}
		r.summary.Record(primary.Kind, failed, amount0, amount1)
		r.pending = append(r.pending, events...)

		if len(r.pending) >= r.cfg.FlushEvery {
			if err := r.flush(); err != nil {
				return err
			}
		}

		if r.store != nil && r.cfg.SnapshotEvery > 0 && (step+1)%r.cfg.SnapshotEvery == 0 {
			if err := r.store.UpsertSnapshots(ctx, []model.PoolSnapshot{r.snapshot(uint64(step + 1))}); err != nil {
				return fmt.Errorf("store snapshot: %w", err)
			}
		}
	}

	if err := r.flush(); err != nil {
		return err
	}

	run := r.summary.Finalize(r.clock, r.pool.CurrentTick())
	if r.store != nil {
		if err := r.store.UpsertSnapshots(ctx, []model.PoolSnapshot{r.snapshot(uint64(r.cfg.Steps))}); err != nil {
			return fmt.Errorf("store final snapshot: %w", err)
		}
		if err := r.store.UpsertRuns(ctx, []model.SimRun{run}); err != nil {
			return fmt.Errorf("store run summary: %w", err)
		}
	}

	r.logger.Info("run complete",
		zap.String("run_id", run.RunID),
		zap.Uint64("steps", run.Steps),
		zap.Uint64("swaps", run.SwapCount),
		zap.Uint64("mints", run.MintCount),
		zap.Uint64("burns", run.BurnCount),
		zap.Uint64("failed", run.FailedCount),
		zap.String("volume0", run.Volume0),
		zap.String("volume1", run.Volume1),
		zap.Int32("final_tick", run.FinalTick),
	)
	return nil
}

func (r *Runner) setup() error {
	r.ledger = NewMemoryLedger(simPoolAddr)
	r.rewards = NewDripRewards(r.cfg.RewardRatePerSec)
	r.pool = pool.New(pool.Config{
		Self:        simPoolAddr,
		Token0:      simToken0,
		Token1:      simToken1,
		FeePips:     r.cfg.FeePips,
		TickSpacing: r.cfg.TickSpacing,
		Ledger:      r.ledger,
		FeeRates:    FixedFeeRates{RatePpm: r.cfg.ProtocolFeeRatePpm},
		Rewards:     r.rewards,
		Now:         func() uint64 { return r.clock },
		Logger:      r.logger.Named("pool"),
	})

	price, err := tickmath.SqrtRatioAtTick(0)
	if err != nil {
		return err
	}
	if err := r.pool.Initialize(price); err != nil {
		return err
	}
	r.pending = append(r.pending, r.newEvent(model.KindInitialize, ""))

	// A wide base position so early swaps always have liquidity, with half
	// of it staked to keep the reward path busy.
	spacing := r.cfg.TickSpacing
	baseLower := -(tickmath.MaxTick / spacing) * spacing
	baseUpper := (tickmath.MaxTick / spacing) * spacing
	baseLiquidity := new(uint256.Int).Mul(uint256.NewInt(1_000_000_000), uint256.NewInt(1_000_000_000_000))

	owner := r.actor()
	if _, _, err := r.pool.Mint(owner, baseLower, baseUpper, baseLiquidity, r.payer()); err != nil {
		return fmt.Errorf("seed mint: %w", err)
	}
	half := new(uint256.Int).Div(baseLiquidity, uint256.NewInt(2))
	if err := r.pool.Stake(owner, baseLower, baseUpper, half); err != nil {
		return fmt.Errorf("seed stake: %w", err)
	}
	r.base = positionRef{owner: owner, lower: baseLower, upper: baseUpper, liquidity: baseLiquidity}
	return nil
}

// executeRandomOp runs one weighted-random operation. The first returned
// event is the operation itself; some ops journal follow-up events too.
func (r *Runner) executeRandomOp() ([]model.Event, bool) {
	roll := r.rng.Intn(100)
	switch {
	case roll < 55:
		return r.opSwap()
	case roll < 70:
		return r.opMint()
	case roll < 80:
		return r.opBurn()
	case roll < 92:
		return r.opStakeOrUnstake()
	default:
		return r.opFlash()
	}
}

func (r *Runner) opSwap() ([]model.Event, bool) {
	zeroForOne := r.rng.Intn(2) == 0
	amount := big.NewInt(1_000_000 + r.rng.Int63n(1_000_000_000_000))

	var limit *uint256.Int
	if zeroForOne {
		limit = new(uint256.Int).AddUint64(tickmath.MinSqrtRatio, 1)
	} else {
		limit = new(uint256.Int).SubUint64(tickmath.MaxSqrtRatio, 1)
	}

	trader := r.actor()
	amount0, amount1, err := r.pool.Swap(trader, trader, zeroForOne, amount, limit, r.payer())

	event := r.newEvent(model.KindSwap, trader.Hex())
	event.ZeroForOne = &zeroForOne
	if err != nil {
		event.Error = err.Error()
		return []model.Event{event}, true
	}
	event.Amount0 = amount0.String()
	event.Amount1 = amount1.String()
	return []model.Event{event}, false
}

func (r *Runner) opMint() ([]model.Event, bool) {
	spacing := r.cfg.TickSpacing
	width := spacing * int32(1+r.rng.Intn(40))
	center := (r.pool.CurrentTick() / spacing) * spacing
	lower := center - width
	upper := center + width
	if lower < tickmath.MinTick {
		lower = -(tickmath.MaxTick / spacing) * spacing
	}
	if upper > tickmath.MaxTick {
		upper = (tickmath.MaxTick / spacing) * spacing
	}

	liquidity := uint256.NewInt(uint64(1_000_000_000 + r.rng.Int63n(1_000_000_000_000)))
	owner := r.actor()
	amount0, amount1, err := r.pool.Mint(owner, lower, upper, liquidity, r.payer())

	event := r.newEvent(model.KindMint, owner.Hex())
	event.TickLower = &lower
	event.TickUpper = &upper
	event.Liquidity = liquidity.Dec()
	if err != nil {
		event.Error = err.Error()
		return []model.Event{event}, true
	}
	event.Amount0 = amount0.String()
	event.Amount1 = amount1.String()
	r.positions = append(r.positions, positionRef{owner: owner, lower: lower, upper: upper, liquidity: liquidity})
	return []model.Event{event}, false
}

func (r *Runner) opBurn() ([]model.Event, bool) {
	if len(r.positions) == 0 {
		return r.opSwap()
	}
	idx := r.rng.Intn(len(r.positions))
	ref := r.positions[idx]
	r.positions = append(r.positions[:idx], r.positions[idx+1:]...)

	amount0, amount1, err := r.pool.Burn(ref.owner, ref.lower, ref.upper, ref.liquidity)

	event := r.newEvent(model.KindBurn, ref.owner.Hex())
	event.TickLower = &ref.lower
	event.TickUpper = &ref.upper
	event.Liquidity = ref.liquidity.Dec()
	if err != nil {
		event.Error = err.Error()
		return []model.Event{event}, true
	}
	event.Amount0 = amount0.String()
	event.Amount1 = amount1.String()

	// Settle the freed balances right away so owed amounts never pile up,
	// and journal the payout alongside the burn.
	max := new(uint256.Int).Not(new(uint256.Int))
	paid0, paid1, err := r.pool.Collect(ref.owner, ref.owner, ref.lower, ref.upper, max, max)

	collect := r.newEvent(model.KindCollect, ref.owner.Hex())
	collect.TickLower = &ref.lower
	collect.TickUpper = &ref.upper
	if err != nil {
		collect.Error = err.Error()
	} else {
		collect.Amount0 = paid0.Dec()
		collect.Amount1 = paid1.Dec()
	}
	return []model.Event{event, collect}, false
}

func (r *Runner) opStakeOrUnstake() ([]model.Event, bool) {
	pos, ok := r.pool.Position(r.base.owner, r.base.lower, r.base.upper)
	if !ok {
		return r.opSwap()
	}

	unstaked := new(uint256.Int).Sub(pos.Liquidity, pos.LiquidityStaked)
	stake := r.rng.Intn(2) == 0 && !unstaked.IsZero()
	if !stake && pos.LiquidityStaked.IsZero() {
		stake = !unstaked.IsZero()
	}

	var (
		kind   string
		amount *uint256.Int
		err    error
	)
	if stake {
		kind = model.KindStake
		amount = new(uint256.Int).Div(unstaked, uint256.NewInt(uint64(2+r.rng.Intn(4))))
		if amount.IsZero() {
			amount = new(uint256.Int).Set(unstaked)
		}
		err = r.pool.Stake(r.base.owner, r.base.lower, r.base.upper, amount)
	} else {
		kind = model.KindUnstake
		amount = new(uint256.Int).Div(pos.LiquidityStaked, uint256.NewInt(uint64(2+r.rng.Intn(4))))
		if amount.IsZero() {
			amount = new(uint256.Int).Set(pos.LiquidityStaked)
		}
		err = r.pool.Unstake(r.base.owner, r.base.lower, r.base.upper, amount)
	}

	event := r.newEvent(kind, r.base.owner.Hex())
	event.TickLower = &r.base.lower
	event.TickUpper = &r.base.upper
	event.Liquidity = amount.Dec()
	if err != nil {
		event.Error = err.Error()
		return []model.Event{event}, true
	}
	return []model.Event{event}, false
}

func (r *Runner) opFlash() ([]model.Event, bool) {
	loan0 := uint256.NewInt(uint64(1_000_000 + r.rng.Int63n(1_000_000_000)))
	borrower := r.actor()

	repay := func(fee0, fee1 *big.Int) error {
		owed := new(uint256.Int).Set(loan0)
		feeU, _ := uint256.FromBig(fee0)
		owed.Add(owed, feeU)
		r.ledger.Credit(simToken0, simPoolAddr, owed)
		return nil
	}
	err := r.pool.Flash(borrower, loan0, new(uint256.Int), repay)

	event := r.newEvent(model.KindFlash, borrower.Hex())
	event.Amount0 = loan0.Dec()
	if err != nil {
		event.Error = err.Error()
		return []model.Event{event}, true
	}
	return []model.Event{event}, false
}

// payer credits the pool with exactly the owed input legs.
func (r *Runner) payer() pool.PayFunc {
	return func(amount0, amount1 *big.Int) error {
		if amount0.Sign() > 0 {
			u, _ := uint256.FromBig(amount0)
			r.ledger.Credit(simToken0, simPoolAddr, u)
		}
		if amount1.Sign() > 0 {
			u, _ := uint256.FromBig(amount1)
			r.ledger.Credit(simToken1, simPoolAddr, u)
		}
		return nil
	}
}

func (r *Runner) actor() common.Address {
	var buf [20]byte
	r.rng.Read(buf[:])
	return common.BytesToAddress(buf[:])
}

func (r *Runner) newEvent(kind, account string) model.Event {
	r.seq++
	return model.Event{
		Seq:          r.seq,
		Kind:         kind,
		Timestamp:    r.clock,
		Account:      account,
		SqrtPriceX96: r.pool.SqrtPriceX96().Dec(),
		Tick:         r.pool.CurrentTick(),
	}
}

func (r *Runner) snapshot(step uint64) model.PoolSnapshot {
	fees0, fees1 := r.pool.ProtocolFees()
	return model.PoolSnapshot{
		RunID:                  r.cfg.RunID,
		Step:                   step,
		Timestamp:              r.clock,
		SqrtPriceX96:           r.pool.SqrtPriceX96().Dec(),
		Tick:                   r.pool.CurrentTick(),
		Liquidity:              r.pool.Liquidity().Dec(),
		LiquidityStaked:        r.pool.LiquidityStaked().Dec(),
		FeeGrowthGlobal0X128:   r.pool.FeeGrowthGlobal0X128().Dec(),
		FeeGrowthGlobal1X128:   r.pool.FeeGrowthGlobal1X128().Dec(),
		RewardGrowthGlobalX128: r.pool.RewardGrowthGlobalX128().Dec(),
		ProtocolFees0:          fees0.Dec(),
		ProtocolFees1:          fees1.Dec(),
	}
}

func (r *Runner) flush() error {
	if len(r.pending) == 0 {
		return nil
	}
	if err := r.journal.PutEventBatch(r.pending); err != nil {
		return fmt.Errorf("journal events: %w", err)
	}
	r.pending = r.pending[:0]
	return nil
}
