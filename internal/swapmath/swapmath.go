package swapmath

import (
	"math/big"

	"github.com/holiman/uint256"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/sqrtmath"
)

// FeeDenominator is the fee scale: rates are expressed in parts per million.
const FeeDenominator = 1_000_000

var feeDenominator = big.NewInt(FeeDenominator)

// StepResult is the outcome of one bounded price step.
type StepResult struct {
	SqrtPriceNextX96 *uint256.Int
	AmountIn         *big.Int // input consumed this step, fee excluded
	AmountOut        *big.Int // output produced this step
	FeeAmount        *big.Int // fee taken from the input this step
}

// ComputeSwapStep advances the price from sqrtCurrent toward sqrtTarget as far
// as amountRemaining allows. A non-negative amountRemaining is an exact-input
// swap (fee deducted from it); negative is exact-output. Input rounds up,
// output rounds down, and when the step stops short of the target the fee is
// the untouched remainder of the specified input.
func ComputeSwapStep(sqrtCurrent, sqrtTarget, liquidity *uint256.Int, amountRemaining *big.Int, feePips uint32) (StepResult, error) {
	zeroForOne := !sqrtCurrent.Lt(sqrtTarget)
	exactIn := amountRemaining.Sign() >= 0

	res := StepResult{
		AmountIn:  new(big.Int),
		AmountOut: new(big.Int),
		FeeAmount: new(big.Int),
	}

	if exactIn {
		remainingLessFee := fullmath.MulDiv(amountRemaining, big.NewInt(FeeDenominator-int64(feePips)), feeDenominator)

		var err error
		if zeroForOne {
			res.AmountIn, err = sqrtmath.Amount0Delta(sqrtTarget, sqrtCurrent, liquidity, true)
		} else {
			res.AmountIn = sqrtmath.Amount1Delta(sqrtCurrent, sqrtTarget, liquidity, true)
		}
		if err != nil {
			return StepResult{}, err
		}

		if remainingLessFee.Cmp(res.AmountIn) >= 0 {
			res.SqrtPriceNextX96 = new(uint256.Int).Set(sqrtTarget)
		} else {
			amount, overflow := uint256.FromBig(remainingLessFee)
			if overflow {
				return StepResult{}, sqrtmath.ErrPriceOverflow
			}
			res.SqrtPriceNextX96, err = sqrtmath.NextSqrtPriceFromInput(sqrtCurrent, liquidity, amount, zeroForOne)
			if err != nil {
				return StepResult{}, err
			}
		}
	} else {
		remainingAbs := new(big.Int).Neg(amountRemaining)

		var err error
		if zeroForOne {
			res.AmountOut = sqrtmath.Amount1Delta(sqrtTarget, sqrtCurrent, liquidity, false)
		} else {
			res.AmountOut, err = sqrtmath.Amount0Delta(sqrtCurrent, sqrtTarget, liquidity, false)
		}
		if err != nil {
			return StepResult{}, err
		}

		if remainingAbs.Cmp(res.AmountOut) >= 0 {
			res.SqrtPriceNextX96 = new(uint256.Int).Set(sqrtTarget)
		} else {
			amount, overflow := uint256.FromBig(remainingAbs)
			if overflow {
				return StepResult{}, sqrtmath.ErrPriceOverflow
			}
			res.SqrtPriceNextX96, err = sqrtmath.NextSqrtPriceFromOutput(sqrtCurrent, liquidity, amount, zeroForOne)
			if err != nil {
				return StepResult{}, err
			}
		}
	}

	reachedTarget := sqrtTarget.Eq(res.SqrtPriceNextX96)

	// Recompute the side not pinned by the stopping condition against the
	// price actually reached.
	var err error
	if zeroForOne {
		if !(reachedTarget && exactIn) {
			res.AmountIn, err = sqrtmath.Amount0Delta(res.SqrtPriceNextX96, sqrtCurrent, liquidity, true)
			if err != nil {
				return StepResult{}, err
			}
		}
		if !(reachedTarget && !exactIn) {
			res.AmountOut = sqrtmath.Amount1Delta(res.SqrtPriceNextX96, sqrtCurrent, liquidity, false)
		}
	} else {
		if !(reachedTarget && exactIn) {
			res.AmountIn = sqrtmath.Amount1Delta(sqrtCurrent, res.SqrtPriceNextX96, liquidity, true)
		}
		if !(reachedTarget && !exactIn) {
			res.AmountOut, err = sqrtmath.Amount0Delta(sqrtCurrent, res.SqrtPriceNextX96, liquidity, false)
			if err != nil {
				return StepResult{}, err
			}
		}
	}

	if !exactIn {
		remainingAbs := new(big.Int).Neg(amountRemaining)
		if res.AmountOut.Cmp(remainingAbs) > 0 {
			res.AmountOut.Set(remainingAbs)
		}
	}

	if exactIn && !reachedTarget {
		// Everything not spent as principal is collected as fee.
		res.FeeAmount = new(big.Int).Sub(amountRemaining, res.AmountIn)
	} else {
		res.FeeAmount = fullmath.MulDivRoundingUp(res.AmountIn, big.NewInt(int64(feePips)), big.NewInt(FeeDenominator-int64(feePips)))
	}

	return res, nil
}
