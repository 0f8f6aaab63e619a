// Package pool implements the concentrated-liquidity accounting engine: the
// price/tick state machine, per-position bookkeeping, the observation oracle,
// and fee/reward distribution between unstaked LPs, staked LPs, and the
// protocol.
package pool

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/oracle"
	"liquidityEngine/internal/position"
	"liquidityEngine/internal/tick"
	"liquidityEngine/internal/tickmath"
)

// AssetLedger is the external token ledger the pool settles against. The pool
// never trusts its return values for inbound payments, only observed balance
// deltas.
type AssetLedger interface {
	BalanceOf(token, holder common.Address) (*uint256.Int, error)
	Transfer(token, to common.Address, amount *uint256.Int) error
}

// FeeRateProvider supplies the protocol's cut of trading fees and per-trader
// fee exemptions.
type FeeRateProvider interface {
	ProtocolFeeRate() uint32 // parts per million, [0, 1e6]
	IsFeeExempt(trader common.Address) bool
}

// RewardSource is the external emission stream feeding staked liquidity.
// CollectableAmount is the running total pending since the last collection.
type RewardSource interface {
	CollectableAmount() (*uint256.Int, error)
	Collect(amount *uint256.Int, recipient common.Address) error
}

// PayFunc delivers owed input amounts to the pool mid-operation. The pool
// verifies delivery by re-reading ledger balances after it returns.
type PayFunc func(amount0, amount1 *big.Int) error

// Config wires a pool instance to its collaborators.
type Config struct {
	Self        common.Address // the pool's own ledger identity
	Token0      common.Address
	Token1      common.Address
	FeePips     uint32 // swap fee in parts per million
	TickSpacing int32

	Ledger   AssetLedger
	FeeRates FeeRateProvider
	Rewards  RewardSource // optional

	Now    func() uint64 // optional, defaults to wall-clock unix seconds
	Logger *zap.Logger   // optional
}

// Pool is a single two-asset concentrated-liquidity pool. All state-mutating
// entry points are serialized by a per-instance guard; a reentrant call fails
// with ErrLocked rather than blocking.
type Pool struct {
	cfg Config
	log *zap.Logger
	mu  sync.Mutex

	maxLiquidityPerTick *uint256.Int

	initialized bool

	sqrtPriceX96               *uint256.Int
	currentTick                int32
	observationIndex           uint16
	observationCardinality     uint16
	observationCardinalityNext uint16

	liquidity       *uint256.Int
	liquidityStaked *uint256.Int

	feeGrowthGlobal0X128   *uint256.Int
	feeGrowthGlobal1X128   *uint256.Int
	rewardGrowthGlobalX128 *uint256.Int

	protocolFees0 *uint256.Int
	protocolFees1 *uint256.Int

	lastRewardPending *uint256.Int

	ticks        *tick.Registry
	bitmap       *tick.Bitmap
	positions    *position.Ledger
	observations *oracle.RingBuffer
}

// New builds an uninitialized pool from its configuration.
func New(cfg Config) *Pool {
	if cfg.Now == nil {
		cfg.Now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:                    cfg,
		log:                    logger,
		maxLiquidityPerTick:    tickmath.MaxLiquidityPerTick(cfg.TickSpacing),
		sqrtPriceX96:           new(uint256.Int),
		liquidity:              new(uint256.Int),
		liquidityStaked:        new(uint256.Int),
		feeGrowthGlobal0X128:   new(uint256.Int),
		feeGrowthGlobal1X128:   new(uint256.Int),
		rewardGrowthGlobalX128: new(uint256.Int),
		protocolFees0:          new(uint256.Int),
		protocolFees1:          new(uint256.Int),
		lastRewardPending:      new(uint256.Int),
		ticks:                  tick.NewRegistry(),
		bitmap:                 tick.NewBitmap(),
		positions:              position.NewLedger(),
		observations:           oracle.NewRingBuffer(),
	}
}

// lock acquires the pool guard without blocking.
func (p *Pool) lock() error {
	if !p.mu.TryLock() {
		return ErrLocked
	}
	return nil
}

// Initialize sets the starting price and seeds the oracle. Callable once.
func (p *Pool) Initialize(sqrtPriceX96 *uint256.Int) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()

	if p.initialized {
		return ErrAlreadyInitialized
	}

	startTick, err := tickmath.TickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return err
	}

	p.sqrtPriceX96 = new(uint256.Int).Set(sqrtPriceX96)
	p.currentTick = startTick
	p.observationCardinality, p.observationCardinalityNext = p.observations.Initialize(p.cfg.Now())
	p.initialized = true

	p.log.Info("pool initialized",
		zap.String("sqrt_price_x96", sqrtPriceX96.Dec()),
		zap.Int32("tick", startTick),
	)
	return nil
}

// SqrtPriceX96 returns the current sqrt price.
func (p *Pool) SqrtPriceX96() *uint256.Int { return new(uint256.Int).Set(p.sqrtPriceX96) }

// CurrentTick returns the current tick.
func (p *Pool) CurrentTick() int32 { return p.currentTick }

// Liquidity returns the in-range liquidity.
func (p *Pool) Liquidity() *uint256.Int { return new(uint256.Int).Set(p.liquidity) }

// LiquidityStaked returns the in-range staked liquidity.
func (p *Pool) LiquidityStaked() *uint256.Int { return new(uint256.Int).Set(p.liquidityStaked) }

// FeeGrowthGlobal0X128 returns the token0 fee growth accumulator.
func (p *Pool) FeeGrowthGlobal0X128() *uint256.Int {
	return new(uint256.Int).Set(p.feeGrowthGlobal0X128)
}

// FeeGrowthGlobal1X128 returns the token1 fee growth accumulator.
func (p *Pool) FeeGrowthGlobal1X128() *uint256.Int {
	return new(uint256.Int).Set(p.feeGrowthGlobal1X128)
}

// RewardGrowthGlobalX128 returns the reward growth accumulator.
func (p *Pool) RewardGrowthGlobalX128() *uint256.Int {
	return new(uint256.Int).Set(p.rewardGrowthGlobalX128)
}

// ProtocolFees returns the accumulated protocol skim for both tokens.
func (p *Pool) ProtocolFees() (*uint256.Int, *uint256.Int) {
	return new(uint256.Int).Set(p.protocolFees0), new(uint256.Int).Set(p.protocolFees1)
}

// Position returns the stored position for the triple, if any.
func (p *Pool) Position(owner common.Address, tickLower, tickUpper int32) (*position.Position, bool) {
	return p.positions.Get(owner, tickLower, tickUpper)
}

// Tick returns the tick registry entry, if any.
func (p *Pool) Tick(index int32) (*tick.Info, bool) {
	return p.ticks.Get(index)
}

// Observe returns the cumulative tick and seconds-per-liquidity values for
// each requested age, in input order.
func (p *Pool) Observe(secondsAgos []uint64) ([]int64, []*uint256.Int, error) {
	if !p.initialized {
		return nil, nil, ErrNotInitialized
	}
	return p.observations.Observe(p.cfg.Now(), secondsAgos, p.currentTick, p.observationIndex, p.liquidity, p.observationCardinality)
}

// IncreaseObservationCardinalityNext reserves oracle capacity. Growth is
// observable immediately but slots fill only as writes advance into them.
func (p *Pool) IncreaseObservationCardinalityNext(next uint16) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()

	if !p.initialized {
		return ErrNotInitialized
	}

	old := p.observationCardinalityNext
	p.observationCardinalityNext = p.observations.Grow(old, next)
	if p.observationCardinalityNext != old {
		p.log.Info("observation cardinality grown",
			zap.Uint16("from", old),
			zap.Uint16("to", p.observationCardinalityNext),
		)
	}
	return nil
}

// SnapshotCumulativesInside returns the tick-cumulative, seconds-per-liquidity
// and seconds totals accumulated inside a range. Both boundary ticks must be
// initialized.
func (p *Pool) SnapshotCumulativesInside(tickLower, tickUpper int32) (int64, *uint256.Int, uint64, error) {
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return 0, nil, 0, err
	}

	lower, okLower := p.ticks.Get(tickLower)
	upper, okUpper := p.ticks.Get(tickUpper)
	if !okLower || !okUpper {
		return 0, nil, 0, ErrTickNotInitialized
	}

	switch {
	case p.currentTick < tickLower:
		tickCum := lower.TickCumulativeOutside - upper.TickCumulativeOutside
		spl := new(uint256.Int).Sub(lower.SecondsPerLiquidityOutsideX128, upper.SecondsPerLiquidityOutsideX128)
		return tickCum, spl, lower.SecondsOutside - upper.SecondsOutside, nil
	case p.currentTick < tickUpper:
		now := p.cfg.Now()
		tickCumNow, splNow, err := p.observations.ObserveSingle(now, 0, p.currentTick, p.observationIndex, p.liquidity, p.observationCardinality)
		if err != nil {
			return 0, nil, 0, err
		}
		tickCum := tickCumNow - lower.TickCumulativeOutside - upper.TickCumulativeOutside
		spl := new(uint256.Int).Sub(splNow, lower.SecondsPerLiquidityOutsideX128)
		spl.Sub(spl, upper.SecondsPerLiquidityOutsideX128)
		return tickCum, spl, now - lower.SecondsOutside - upper.SecondsOutside, nil
	default:
		tickCum := upper.TickCumulativeOutside - lower.TickCumulativeOutside
		spl := new(uint256.Int).Sub(upper.SecondsPerLiquidityOutsideX128, lower.SecondsPerLiquidityOutsideX128)
		return tickCum, spl, upper.SecondsOutside - lower.SecondsOutside, nil
	}
}

// CollectProtocolFees pays out accumulated protocol fees, capped at what is
// owed, and returns the amounts actually sent.
func (p *Pool) CollectProtocolFees(recipient common.Address, requested0, requested1 *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.mu.Unlock()

	paid0 := minU256(requested0, p.protocolFees0)
	paid1 := minU256(requested1, p.protocolFees1)

	if !paid0.IsZero() {
		if err := p.cfg.Ledger.Transfer(p.cfg.Token0, recipient, paid0); err != nil {
			return nil, nil, err
		}
		p.protocolFees0.Sub(p.protocolFees0, paid0)
	}
	if !paid1.IsZero() {
		if err := p.cfg.Ledger.Transfer(p.cfg.Token1, recipient, paid1); err != nil {
			return nil, nil, err
		}
		p.protocolFees1.Sub(p.protocolFees1, paid1)
	}

	if !paid0.IsZero() || !paid1.IsZero() {
		p.log.Info("protocol fees collected",
			zap.String("amount0", paid0.Dec()),
			zap.String("amount1", paid1.Dec()),
		)
	}
	return paid0, paid1, nil
}

// accrueRewards folds newly collectable emissions into the reward growth
// accumulator. A failing source query degrades to zero new reward; trading
// must not block on the emission stream.
func (p *Pool) accrueRewards() {
	if p.cfg.Rewards == nil {
		return
	}
	pending, err := p.cfg.Rewards.CollectableAmount()
	if err != nil {
		p.log.Debug("reward source query failed", zap.Error(err))
		return
	}
	if !pending.Gt(p.lastRewardPending) {
		return
	}
	if p.liquidityStaked.IsZero() {
		// No staked liquidity to credit; leave the delta pending.
		return
	}

	delta := new(uint256.Int).Sub(pending, p.lastRewardPending)
	growth := new(uint256.Int).Lsh(delta, 128)
	growth.Div(growth, p.liquidityStaked)
	p.rewardGrowthGlobalX128.Add(p.rewardGrowthGlobalX128, growth)
	p.lastRewardPending.Set(pending)
}

func (p *Pool) checkTicks(tickLower, tickUpper int32) error {
	if tickLower >= tickUpper {
		return ErrInvalidTickRange
	}
	if tickLower < tickmath.MinTick || tickUpper > tickmath.MaxTick {
		return ErrInvalidTickRange
	}
	if tickLower%p.cfg.TickSpacing != 0 || tickUpper%p.cfg.TickSpacing != 0 {
		return ErrInvalidTickRange
	}
	return nil
}

// addSigned applies a signed delta to an unsigned uint128 counter.
func addSigned(value *uint256.Int, delta *big.Int) (*uint256.Int, error) {
	next := new(big.Int).Add(value.ToBig(), delta)
	if next.Sign() < 0 {
		return nil, ErrLiquidityOverflow
	}
	out, overflow := uint256.FromBig(next)
	if overflow || out.Gt(fullmath.MaxUint128) {
		return nil, ErrLiquidityOverflow
	}
	return out, nil
}

func minU256(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}
