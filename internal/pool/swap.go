package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityEngine/internal/feesplit"
	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/swapmath"
	"liquidityEngine/internal/tickmath"
)

// swapState is the working copy the swap loop mutates; pool state is only
// committed once the loop finishes and the input payment verifies.
type swapState struct {
	amountRemaining  *big.Int
	amountCalculated *big.Int

	sqrtPriceX96    *uint256.Int
	tick            int32
	liquidity       *uint256.Int
	liquidityStaked *uint256.Int

	feeGrowthGlobalX128 *uint256.Int // for the input token only
	protocolFee         *uint256.Int
}

// pendingCross records a tick boundary the loop walked over. The registry
// reflection is replayed only after the payment check passes, with the fee
// growth the swap had reached at that boundary.
type pendingCross struct {
	tick       int32
	feeGrowth0 *uint256.Int
	feeGrowth1 *uint256.Int
}

// Swap trades one token for the other. A positive amountSpecified is exact
// input, negative is exact output. The swap walks initialized ticks until the
// amount is satisfied or the price hits sqrtPriceLimitX96. Returned amounts
// are signed from the pool's perspective: positive flows in, negative flows
// out. Output is paid before the pay callback runs, and the input is verified
// by re-reading the ledger balance afterward.
func (p *Pool) Swap(trader, recipient common.Address, zeroForOne bool, amountSpecified *big.Int, sqrtPriceLimitX96 *uint256.Int, pay PayFunc) (*big.Int, *big.Int, error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, nil, ErrNotInitialized
	}
	if amountSpecified.Sign() == 0 {
		return nil, nil, ErrZeroAmount
	}
	if zeroForOne {
		if !sqrtPriceLimitX96.Lt(p.sqrtPriceX96) || !sqrtPriceLimitX96.Gt(tickmath.MinSqrtRatio) {
			return nil, nil, ErrInvalidPriceLimit
		}
	} else {
		if !sqrtPriceLimitX96.Gt(p.sqrtPriceX96) || !sqrtPriceLimitX96.Lt(tickmath.MaxSqrtRatio) {
			return nil, nil, ErrInvalidPriceLimit
		}
	}

	p.accrueRewards()

	feePips := p.cfg.FeePips
	var protocolFeeRate uint32
	if p.cfg.FeeRates != nil {
		protocolFeeRate = p.cfg.FeeRates.ProtocolFeeRate()
		if p.cfg.FeeRates.IsFeeExempt(trader) {
			feePips = 0
		}
	}

	exactInput := amountSpecified.Sign() > 0
	now := p.cfg.Now()
	liquidityStart := new(uint256.Int).Set(p.liquidity)

	state := swapState{
		amountRemaining:  new(big.Int).Set(amountSpecified),
		amountCalculated: new(big.Int),
		sqrtPriceX96:     new(uint256.Int).Set(p.sqrtPriceX96),
		tick:             p.currentTick,
		liquidity:        new(uint256.Int).Set(p.liquidity),
		liquidityStaked:  new(uint256.Int).Set(p.liquidityStaked),
		protocolFee:      new(uint256.Int),
	}
	if zeroForOne {
		state.feeGrowthGlobalX128 = new(uint256.Int).Set(p.feeGrowthGlobal0X128)
	} else {
		state.feeGrowthGlobalX128 = new(uint256.Int).Set(p.feeGrowthGlobal1X128)
	}

	// Cumulatives for tick crossings are snapshotted once, at the first
	// crossing, and reused for the rest of the swap.
	var (
		crossTickCumulative int64
		crossSecondsPerLiq  *uint256.Int
		crossings           []pendingCross
	)

	for state.amountRemaining.Sign() != 0 && !state.sqrtPriceX96.Eq(sqrtPriceLimitX96) {
		tickNext, tickInitialized := p.bitmap.NextInitializedWithinOneWord(state.tick, p.cfg.TickSpacing, zeroForOne)
		if tickNext < tickmath.MinTick {
			tickNext = tickmath.MinTick
		} else if tickNext > tickmath.MaxTick {
			tickNext = tickmath.MaxTick
		}

		sqrtPriceNext, err := tickmath.SqrtRatioAtTick(tickNext)
		if err != nil {
			return nil, nil, err
		}

		// Never step past the caller's price limit.
		sqrtPriceTarget := sqrtPriceNext
		if zeroForOne {
			if sqrtPriceNext.Lt(sqrtPriceLimitX96) {
				sqrtPriceTarget = sqrtPriceLimitX96
			}
		} else {
			if sqrtPriceNext.Gt(sqrtPriceLimitX96) {
				sqrtPriceTarget = sqrtPriceLimitX96
			}
		}

		sqrtPriceStart := new(uint256.Int).Set(state.sqrtPriceX96)
		step, err := swapmath.ComputeSwapStep(state.sqrtPriceX96, sqrtPriceTarget, state.liquidity, state.amountRemaining, feePips)
		if err != nil {
			return nil, nil, err
		}

		if exactInput {
			consumed := new(big.Int).Add(step.AmountIn, step.FeeAmount)
			state.amountRemaining.Sub(state.amountRemaining, consumed)
			state.amountCalculated.Sub(state.amountCalculated, step.AmountOut)
		} else {
			state.amountRemaining.Add(state.amountRemaining, step.AmountOut)
			state.amountCalculated.Add(state.amountCalculated, new(big.Int).Add(step.AmountIn, step.FeeAmount))
		}

		if step.FeeAmount.Sign() > 0 {
			lpFee, protocolFee := feesplit.Split(step.FeeAmount, protocolFeeRate, state.liquidity, state.liquidityStaked)
			if protocolFee.Sign() > 0 {
				u, _ := uint256.FromBig(protocolFee)
				state.protocolFee = fullmath.SaturatingAddU128(state.protocolFee, u)
			}
			if lpFee.Sign() > 0 {
				unstaked := new(uint256.Int).Sub(state.liquidity, state.liquidityStaked)
				if !unstaked.IsZero() {
					lpFeeU, _ := uint256.FromBig(lpFee)
					growth := new(uint256.Int).Lsh(lpFeeU, 128)
					growth.Div(growth, unstaked)
					state.feeGrowthGlobalX128.Add(state.feeGrowthGlobalX128, growth)
				}
			}
		}

		state.sqrtPriceX96 = step.SqrtPriceNextX96

		if state.sqrtPriceX96.Eq(sqrtPriceNext) {
			if tickInitialized {
				if crossSecondsPerLiq == nil {
					crossTickCumulative, crossSecondsPerLiq, err = p.observations.ObserveSingle(
						now, 0, p.currentTick, p.observationIndex, liquidityStart, p.observationCardinality,
					)
					if err != nil {
						return nil, nil, err
					}
				}

				// Only the net deltas are needed to keep walking; the
				// registry reflection waits until the swap settles.
				liquidityNet := new(big.Int)
				liquidityStakedNet := new(big.Int)
				if info, ok := p.ticks.Get(tickNext); ok {
					liquidityNet.Set(info.LiquidityNet)
					liquidityStakedNet.Set(info.LiquidityStakedNet)
				}

				feeGrowth0 := new(uint256.Int).Set(p.feeGrowthGlobal0X128)
				feeGrowth1 := new(uint256.Int).Set(p.feeGrowthGlobal1X128)
				if zeroForOne {
					feeGrowth0.Set(state.feeGrowthGlobalX128)
				} else {
					feeGrowth1.Set(state.feeGrowthGlobalX128)
				}
				crossings = append(crossings, pendingCross{
					tick:       tickNext,
					feeGrowth0: feeGrowth0,
					feeGrowth1: feeGrowth1,
				})
				// Crossing right to left applies the negated deltas.
				if zeroForOne {
					liquidityNet.Neg(liquidityNet)
					liquidityStakedNet.Neg(liquidityStakedNet)
				}
				state.liquidity, err = addSigned(state.liquidity, liquidityNet)
				if err != nil {
					return nil, nil, err
				}
				state.liquidityStaked, err = addSigned(state.liquidityStaked, liquidityStakedNet)
				if err != nil {
					return nil, nil, err
				}
			}

			if zeroForOne {
				state.tick = tickNext - 1
			} else {
				state.tick = tickNext
			}
		} else if !state.sqrtPriceX96.Eq(sqrtPriceStart) {
			state.tick, err = tickmath.TickAtSqrtRatio(state.sqrtPriceX96)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	var amount0, amount1 *big.Int
	if zeroForOne == exactInput {
		amount0 = new(big.Int).Sub(amountSpecified, state.amountRemaining)
		amount1 = state.amountCalculated
	} else {
		amount0 = state.amountCalculated
		amount1 = new(big.Int).Sub(amountSpecified, state.amountRemaining)
	}

	// Nothing below runs unless the input payment verifies, so a rejected
	// swap leaves the pool exactly as it found it.
	if err := p.settleSwap(recipient, zeroForOne, amount0, amount1, pay); err != nil {
		return nil, nil, err
	}

	if state.tick != p.currentTick {
		p.observationIndex, p.observationCardinality = p.observations.Write(
			p.observationIndex, now, p.currentTick, liquidityStart,
			p.observationCardinality, p.observationCardinalityNext,
		)
	}

	for _, c := range crossings {
		p.ticks.Cross(
			c.tick, c.feeGrowth0, c.feeGrowth1, p.rewardGrowthGlobalX128,
			crossSecondsPerLiq, crossTickCumulative, now,
		)
	}

	p.sqrtPriceX96 = state.sqrtPriceX96
	p.currentTick = state.tick
	p.liquidity = state.liquidity
	p.liquidityStaked = state.liquidityStaked
	if zeroForOne {
		p.feeGrowthGlobal0X128 = state.feeGrowthGlobalX128
		p.protocolFees0 = fullmath.SaturatingAddU128(p.protocolFees0, state.protocolFee)
	} else {
		p.feeGrowthGlobal1X128 = state.feeGrowthGlobalX128
		p.protocolFees1 = fullmath.SaturatingAddU128(p.protocolFees1, state.protocolFee)
	}

	p.log.Info("swap",
		zap.Stringer("trader", trader),
		zap.Bool("zero_for_one", zeroForOne),
		zap.String("amount0", amount0.String()),
		zap.String("amount1", amount1.String()),
		zap.String("sqrt_price_x96", p.sqrtPriceX96.Dec()),
		zap.Int32("tick", p.currentTick),
	)
	return amount0, amount1, nil
}

// settleSwap pays the output leg to the recipient, then invokes the payment
// callback for the input leg and verifies delivery against ledger balances.
func (p *Pool) settleSwap(recipient common.Address, zeroForOne bool, amount0, amount1 *big.Int, pay PayFunc) error {
	outToken, outAmount := p.cfg.Token1, amount1
	inToken, inAmount := p.cfg.Token0, amount0
	if !zeroForOne {
		outToken, outAmount = p.cfg.Token0, amount0
		inToken, inAmount = p.cfg.Token1, amount1
	}

	if outAmount.Sign() < 0 {
		out, overflow := uint256.FromBig(new(big.Int).Neg(outAmount))
		if overflow {
			return ErrLiquidityOverflow
		}
		if err := p.cfg.Ledger.Transfer(outToken, recipient, out); err != nil {
			return fmt.Errorf("swap output: %w", err)
		}
	}

	balanceBefore, err := p.cfg.Ledger.BalanceOf(inToken, p.cfg.Self)
	if err != nil {
		return fmt.Errorf("swap input balance: %w", err)
	}
	if err := pay(new(big.Int).Set(amount0), new(big.Int).Set(amount1)); err != nil {
		return fmt.Errorf("swap payment: %w", err)
	}
	balanceAfter, err := p.cfg.Ledger.BalanceOf(inToken, p.cfg.Self)
	if err != nil {
		return fmt.Errorf("swap input balance: %w", err)
	}
	required := new(big.Int).Add(balanceBefore.ToBig(), inAmount)
	if balanceAfter.ToBig().Cmp(required) < 0 {
		return ErrInsufficientInputPaid
	}
	return nil
}
