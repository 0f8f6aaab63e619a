package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/position"
	"liquidityEngine/internal/sqrtmath"
	"liquidityEngine/internal/tick"
	"liquidityEngine/internal/tickmath"
)

// Mint adds liquidity to a range. The pay callback is invoked with the owed
// token amounts; the mint fails unless the pool's balances grew by at least
// those amounts afterward.
func (p *Pool) Mint(owner common.Address, tickLower, tickUpper int32, amount *uint256.Int, pay PayFunc) (*big.Int, *big.Int, error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, nil, ErrNotInitialized
	}
	if amount.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	if amount.Gt(fullmath.MaxUint128) {
		return nil, nil, ErrLiquidityOverflow
	}

	_, amount0, amount1, err := p.modifyPosition(owner, tickLower, tickUpper, amount.ToBig(), new(big.Int))
	if err != nil {
		return nil, nil, err
	}

	// Undo the position change if payment falls short so a failed mint
	// leaves no trace.
	rollback := func() {
		if _, _, _, err := p.modifyPosition(owner, tickLower, tickUpper, new(big.Int).Neg(amount.ToBig()), new(big.Int)); err != nil {
			p.log.Error("mint rollback failed",
				zap.Stringer("owner", owner),
				zap.Int32("tick_lower", tickLower),
				zap.Int32("tick_upper", tickUpper),
				zap.Error(err),
			)
		}
	}

	balance0Before, balance1Before, err := p.balances()
	if err != nil {
		rollback()
		return nil, nil, err
	}
	if err := pay(new(big.Int).Set(amount0), new(big.Int).Set(amount1)); err != nil {
		rollback()
		return nil, nil, fmt.Errorf("mint payment: %w", err)
	}
	if err := p.verifyPaid(balance0Before, balance1Before, amount0, amount1); err != nil {
		rollback()
		return nil, nil, err
	}

	p.log.Info("mint",
		zap.Stringer("owner", owner),
		zap.Int32("tick_lower", tickLower),
		zap.Int32("tick_upper", tickUpper),
		zap.String("liquidity", amount.Dec()),
		zap.String("amount0", amount0.String()),
		zap.String("amount1", amount1.String()),
	)
	return amount0, amount1, nil
}

// Burn removes liquidity from a range and credits the freed token amounts to
// the position's owed balances. Burning zero is a poke: it settles accrued
// fees and rewards without touching liquidity.
func (p *Pool) Burn(owner common.Address, tickLower, tickUpper int32, amount *uint256.Int) (*big.Int, *big.Int, error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, nil, ErrNotInitialized
	}

	// Reject before mutating anything: the tick updates below are not
	// transactional across the two boundaries.
	pos, ok := p.positions.Get(owner, tickLower, tickUpper)
	if !ok {
		return nil, nil, position.ErrNoPosition
	}
	amountBig := amount.ToBig()
	remaining := new(big.Int).Sub(pos.Liquidity.ToBig(), amountBig)
	if remaining.Sign() < 0 {
		return nil, nil, position.ErrInsufficientLiquidity
	}
	if remaining.Cmp(pos.LiquidityStaked.ToBig()) < 0 {
		return nil, nil, position.ErrInvalidStakeDelta
	}

	pos, amount0, amount1, err := p.modifyPosition(owner, tickLower, tickUpper, new(big.Int).Neg(amountBig), new(big.Int))
	if err != nil {
		return nil, nil, err
	}

	owed0 := new(big.Int).Neg(amount0)
	owed1 := new(big.Int).Neg(amount1)
	if owed0.Sign() > 0 {
		u, _ := uint256.FromBig(owed0)
		pos.TokensOwed0 = fullmath.SaturatingAddU128(pos.TokensOwed0, u)
	}
	if owed1.Sign() > 0 {
		u, _ := uint256.FromBig(owed1)
		pos.TokensOwed1 = fullmath.SaturatingAddU128(pos.TokensOwed1, u)
	}

	p.log.Info("burn",
		zap.Stringer("owner", owner),
		zap.Int32("tick_lower", tickLower),
		zap.Int32("tick_upper", tickUpper),
		zap.String("liquidity", amount.Dec()),
		zap.String("amount0", owed0.String()),
		zap.String("amount1", owed1.String()),
	)
	return owed0, owed1, nil
}

// Stake opts part of a position's liquidity into the reward stream. Staked
// liquidity stops earning trading fees.
func (p *Pool) Stake(owner common.Address, tickLower, tickUpper int32, amount *uint256.Int) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	return p.changeStake(owner, tickLower, tickUpper, amount.ToBig())
}

// Unstake returns staked liquidity to the fee-earning share.
func (p *Pool) Unstake(owner common.Address, tickLower, tickUpper int32, amount *uint256.Int) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	return p.changeStake(owner, tickLower, tickUpper, new(big.Int).Neg(amount.ToBig()))
}

func (p *Pool) changeStake(owner common.Address, tickLower, tickUpper int32, stakedDelta *big.Int) error {
	if !p.initialized {
		return ErrNotInitialized
	}
	if stakedDelta.Sign() == 0 {
		return ErrZeroAmount
	}

	pos, ok := p.positions.Get(owner, tickLower, tickUpper)
	if !ok {
		return position.ErrNoPosition
	}
	stakedNext := new(big.Int).Add(pos.LiquidityStaked.ToBig(), stakedDelta)
	if stakedNext.Sign() < 0 {
		return ErrInsufficientStake
	}
	if stakedNext.Cmp(pos.Liquidity.ToBig()) > 0 {
		return position.ErrInvalidStakeDelta
	}

	_, _, _, err := p.modifyPosition(owner, tickLower, tickUpper, new(big.Int), stakedDelta)
	if err != nil {
		return err
	}

	p.log.Info("stake changed",
		zap.Stringer("owner", owner),
		zap.Int32("tick_lower", tickLower),
		zap.Int32("tick_upper", tickUpper),
		zap.String("staked_delta", stakedDelta.String()),
	)
	return nil
}

// Collect pays out accrued fee balances, capped at what the position is owed.
// Requesting zero is a no-op.
func (p *Pool) Collect(owner, recipient common.Address, tickLower, tickUpper int32, requested0, requested1 *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.mu.Unlock()

	pos, ok := p.positions.Get(owner, tickLower, tickUpper)
	if !ok {
		return new(uint256.Int), new(uint256.Int), nil
	}

	paid0 := minU256(requested0, pos.TokensOwed0)
	paid1 := minU256(requested1, pos.TokensOwed1)

	if !paid0.IsZero() {
		if err := p.cfg.Ledger.Transfer(p.cfg.Token0, recipient, paid0); err != nil {
			return nil, nil, fmt.Errorf("collect token0: %w", err)
		}
		pos.TokensOwed0.Sub(pos.TokensOwed0, paid0)
	}
	if !paid1.IsZero() {
		if err := p.cfg.Ledger.Transfer(p.cfg.Token1, recipient, paid1); err != nil {
			return nil, nil, fmt.Errorf("collect token1: %w", err)
		}
		pos.TokensOwed1.Sub(pos.TokensOwed1, paid1)
	}
	return paid0, paid1, nil
}

// CollectReward pays out accrued staking rewards through the emission source.
func (p *Pool) CollectReward(owner, recipient common.Address, tickLower, tickUpper int32, requested *uint256.Int) (*uint256.Int, error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()

	if requested.IsZero() {
		return new(uint256.Int), nil
	}
	if p.cfg.Rewards == nil {
		return nil, ErrNoRewardSource
	}

	pos, ok := p.positions.Get(owner, tickLower, tickUpper)
	if !ok {
		return new(uint256.Int), nil
	}

	paid := minU256(requested, pos.RewardsOwed)
	if paid.IsZero() {
		return paid, nil
	}
	if err := p.cfg.Rewards.Collect(paid, recipient); err != nil {
		return nil, fmt.Errorf("collect reward: %w", err)
	}
	pos.RewardsOwed.Sub(pos.RewardsOwed, paid)
	// The source's pending total shrinks by what was just collected.
	if paid.Gt(p.lastRewardPending) {
		p.lastRewardPending.Clear()
	} else {
		p.lastRewardPending.Sub(p.lastRewardPending, paid)
	}
	return paid, nil
}

// modifyPosition is the shared path for every liquidity mutation: it settles
// rewards, updates both tick boundaries and the bitmap, updates the position,
// and returns the signed token amounts the change is worth at current price.
func (p *Pool) modifyPosition(owner common.Address, tickLower, tickUpper int32, liquidityDelta, stakedDelta *big.Int) (*position.Position, *big.Int, *big.Int, error) {
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, nil, err
	}

	p.accrueRewards()

	pos, err := p.updatePosition(owner, tickLower, tickUpper, liquidityDelta, stakedDelta)
	if err != nil {
		return nil, nil, nil, err
	}

	amount0 := new(big.Int)
	amount1 := new(big.Int)
	if liquidityDelta.Sign() != 0 || stakedDelta.Sign() != 0 {
		sqrtLower, err := tickmath.SqrtRatioAtTick(tickLower)
		if err != nil {
			return nil, nil, nil, err
		}
		sqrtUpper, err := tickmath.SqrtRatioAtTick(tickUpper)
		if err != nil {
			return nil, nil, nil, err
		}

		switch {
		case p.currentTick < tickLower:
			amount0, err = sqrtmath.SignedAmount0Delta(sqrtLower, sqrtUpper, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}
		case p.currentTick < tickUpper:
			// In range: the oracle sees the liquidity change, so record an
			// observation at the pre-change liquidity first.
			p.observationIndex, p.observationCardinality = p.observations.Write(
				p.observationIndex, p.cfg.Now(), p.currentTick, p.liquidity,
				p.observationCardinality, p.observationCardinalityNext,
			)

			amount0, err = sqrtmath.SignedAmount0Delta(p.sqrtPriceX96, sqrtUpper, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}
			amount1, err = sqrtmath.SignedAmount1Delta(sqrtLower, p.sqrtPriceX96, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}

			liquidityNext, err := addSigned(p.liquidity, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}
			stakedNextTotal, err := addSigned(p.liquidityStaked, stakedDelta)
			if err != nil {
				return nil, nil, nil, err
			}
			p.liquidity = liquidityNext
			p.liquidityStaked = stakedNextTotal
		default:
			amount1, err = sqrtmath.SignedAmount1Delta(sqrtLower, sqrtUpper, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}
		}
	}
	return pos, amount0, amount1, nil
}

func (p *Pool) updatePosition(owner common.Address, tickLower, tickUpper int32, liquidityDelta, stakedDelta *big.Int) (*position.Position, error) {
	now := p.cfg.Now()
	tickCumulative, secondsPerLiquidity, err := p.observations.ObserveSingle(
		now, 0, p.currentTick, p.observationIndex, p.liquidity, p.observationCardinality,
	)
	if err != nil {
		return nil, err
	}

	// Validate the per-tick cap on both boundaries before touching either,
	// so a rejection leaves no partial state behind.
	if liquidityDelta.Sign() > 0 {
		for _, boundary := range []int32{tickLower, tickUpper} {
			gross := new(big.Int)
			if info, ok := p.ticks.Get(boundary); ok {
				gross = info.LiquidityGross.ToBig()
			}
			gross.Add(gross, liquidityDelta)
			if gross.Cmp(p.maxLiquidityPerTick.ToBig()) > 0 {
				return nil, tick.ErrLiquidityOverflow
			}
		}
	}

	update := func(boundary int32, upper bool) (bool, error) {
		return p.ticks.Update(tick.UpdateParams{
			Tick:                              boundary,
			CurrentTick:                       p.currentTick,
			LiquidityDelta:                    liquidityDelta,
			LiquidityStakedDelta:              stakedDelta,
			FeeGrowthGlobal0X128:              p.feeGrowthGlobal0X128,
			FeeGrowthGlobal1X128:              p.feeGrowthGlobal1X128,
			RewardGrowthGlobalX128:            p.rewardGrowthGlobalX128,
			SecondsPerLiquidityCumulativeX128: secondsPerLiquidity,
			TickCumulative:                    tickCumulative,
			Time:                              now,
			Upper:                             upper,
			MaxLiquidityPerTick:               p.maxLiquidityPerTick,
		})
	}

	flippedLower, err := update(tickLower, false)
	if err != nil {
		return nil, err
	}
	flippedUpper, err := update(tickUpper, true)
	if err != nil {
		return nil, err
	}

	if flippedLower {
		if err := p.bitmap.Flip(tickLower, p.cfg.TickSpacing); err != nil {
			return nil, err
		}
	}
	if flippedUpper {
		if err := p.bitmap.Flip(tickUpper, p.cfg.TickSpacing); err != nil {
			return nil, err
		}
	}

	inside0, inside1, insideReward := p.ticks.GrowthInside(
		tickLower, tickUpper, p.currentTick,
		p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128, p.rewardGrowthGlobalX128,
	)

	pos, err := p.positions.Update(owner, tickLower, tickUpper, liquidityDelta, stakedDelta, inside0, inside1, insideReward)
	if err != nil {
		return nil, err
	}

	if liquidityDelta.Sign() < 0 {
		if flippedLower {
			p.ticks.Clear(tickLower)
		}
		if flippedUpper {
			p.ticks.Clear(tickUpper)
		}
	}
	return pos, nil
}

func (p *Pool) balances() (*uint256.Int, *uint256.Int, error) {
	balance0, err := p.cfg.Ledger.BalanceOf(p.cfg.Token0, p.cfg.Self)
	if err != nil {
		return nil, nil, fmt.Errorf("balance token0: %w", err)
	}
	balance1, err := p.cfg.Ledger.BalanceOf(p.cfg.Token1, p.cfg.Self)
	if err != nil {
		return nil, nil, fmt.Errorf("balance token1: %w", err)
	}
	return balance0, balance1, nil
}

// verifyPaid checks that the pool's observed balances grew by at least the
// owed amounts. This balance re-read is the only proof of payment accepted.
func (p *Pool) verifyPaid(balance0Before, balance1Before *uint256.Int, owed0, owed1 *big.Int) error {
	balance0After, balance1After, err := p.balances()
	if err != nil {
		return err
	}
	if owed0.Sign() > 0 {
		required := new(big.Int).Add(balance0Before.ToBig(), owed0)
		if balance0After.ToBig().Cmp(required) < 0 {
			return ErrInsufficientInputPaid
		}
	}
	if owed1.Sign() > 0 {
		required := new(big.Int).Add(balance1Before.ToBig(), owed1)
		if balance1After.ToBig().Cmp(required) < 0 {
			return ErrInsufficientInputPaid
		}
	}
	return nil
}
