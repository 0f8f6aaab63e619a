package sqrtmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"liquidityEngine/internal/fullmath"
)

var (
	ErrSqrtPriceZero = errors.New("sqrt price must be positive")
	ErrLiquidityZero = errors.New("liquidity must be positive")
	ErrPriceOverflow = errors.New("resulting sqrt price out of range")

	maxUint160 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))
)

// Amount0Delta returns the token0 amount between two sqrt prices for a given
// liquidity: liquidity * 2^96 * (sqrtB - sqrtA) / (sqrtB * sqrtA).
// Order of the two prices does not matter.
func Amount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*big.Int, error) {
	a, b := sqrtA.ToBig(), sqrtB.ToBig()
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	if a.Sign() <= 0 {
		return nil, ErrSqrtPriceZero
	}

	numerator1 := new(big.Int).Lsh(liquidity.ToBig(), 96)
	numerator2 := new(big.Int).Sub(b, a)

	if roundUp {
		return fullmath.DivRoundingUp(fullmath.MulDivRoundingUp(numerator1, numerator2, b), a), nil
	}
	inner := fullmath.MulDiv(numerator1, numerator2, b)
	return inner.Div(inner, a), nil
}

// Amount1Delta returns the token1 amount between two sqrt prices for a given
// liquidity: liquidity * (sqrtB - sqrtA) / 2^96.
func Amount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) *big.Int {
	a, b := sqrtA.ToBig(), sqrtB.ToBig()
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	diff := new(big.Int).Sub(b, a)
	if roundUp {
		return fullmath.MulDivRoundingUp(liquidity.ToBig(), diff, fullmath.Q96)
	}
	return fullmath.MulDiv(liquidity.ToBig(), diff, fullmath.Q96)
}

// SignedAmount0Delta returns the token0 amount owed for a signed liquidity
// delta across a price range. Adding liquidity rounds up (against the caller),
// removing rounds down.
func SignedAmount0Delta(sqrtA, sqrtB *uint256.Int, liquidityDelta *big.Int) (*big.Int, error) {
	if liquidityDelta.Sign() < 0 {
		mag, overflow := uint256.FromBig(new(big.Int).Neg(liquidityDelta))
		if overflow {
			return nil, ErrPriceOverflow
		}
		amount, err := Amount0Delta(sqrtA, sqrtB, mag, false)
		if err != nil {
			return nil, err
		}
		return amount.Neg(amount), nil
	}
	mag, overflow := uint256.FromBig(liquidityDelta)
	if overflow {
		return nil, ErrPriceOverflow
	}
	return Amount0Delta(sqrtA, sqrtB, mag, true)
}

// SignedAmount1Delta is the token1 counterpart of SignedAmount0Delta.
func SignedAmount1Delta(sqrtA, sqrtB *uint256.Int, liquidityDelta *big.Int) (*big.Int, error) {
	if liquidityDelta.Sign() < 0 {
		mag, overflow := uint256.FromBig(new(big.Int).Neg(liquidityDelta))
		if overflow {
			return nil, ErrPriceOverflow
		}
		amount := Amount1Delta(sqrtA, sqrtB, mag, false)
		return amount.Neg(amount), nil
	}
	mag, overflow := uint256.FromBig(liquidityDelta)
	if overflow {
		return nil, ErrPriceOverflow
	}
	return Amount1Delta(sqrtA, sqrtB, mag, true), nil
}

// NextSqrtPriceFromInput returns the sqrt price after spending amountIn of the
// input token. The result always rounds in the pool's favor: down when price
// falls (zeroForOne), up when it rises.
func NextSqrtPriceFromInput(sqrtP, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtP.IsZero() {
		return nil, ErrSqrtPriceZero
	}
	if liquidity.IsZero() {
		return nil, ErrLiquidityZero
	}
	if zeroForOne {
		return nextFromAmount0RoundingUp(sqrtP, liquidity, amountIn, true)
	}
	return nextFromAmount1RoundingDown(sqrtP, liquidity, amountIn, true)
}

// NextSqrtPriceFromOutput returns the sqrt price after sending amountOut of
// the output token.
func NextSqrtPriceFromOutput(sqrtP, liquidity, amountOut *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtP.IsZero() {
		return nil, ErrSqrtPriceZero
	}
	if liquidity.IsZero() {
		return nil, ErrLiquidityZero
	}
	if zeroForOne {
		return nextFromAmount1RoundingDown(sqrtP, liquidity, amountOut, false)
	}
	return nextFromAmount0RoundingUp(sqrtP, liquidity, amountOut, false)
}

func nextFromAmount0RoundingUp(sqrtP, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if amount.IsZero() {
		return new(uint256.Int).Set(sqrtP), nil
	}

	p := sqrtP.ToBig()
	numerator1 := new(big.Int).Lsh(liquidity.ToBig(), 96)
	product := new(big.Int).Mul(amount.ToBig(), p)

	var denominator *big.Int
	if add {
		denominator = new(big.Int).Add(numerator1, product)
	} else {
		if numerator1.Cmp(product) <= 0 {
			return nil, ErrPriceOverflow
		}
		denominator = new(big.Int).Sub(numerator1, product)
	}

	return toSqrtPrice(fullmath.MulDivRoundingUp(numerator1, p, denominator))
}

func nextFromAmount1RoundingDown(sqrtP, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	p := sqrtP.ToBig()
	if add {
		quotient := fullmath.MulDiv(amount.ToBig(), fullmath.Q96, liquidity.ToBig())
		return toSqrtPrice(quotient.Add(p, quotient))
	}
	quotient := fullmath.MulDivRoundingUp(amount.ToBig(), fullmath.Q96, liquidity.ToBig())
	if p.Cmp(quotient) <= 0 {
		return nil, ErrPriceOverflow
	}
	return toSqrtPrice(quotient.Sub(p, quotient))
}

func toSqrtPrice(value *big.Int) (*uint256.Int, error) {
	if value.Sign() <= 0 || value.Cmp(maxUint160) > 0 {
		return nil, ErrPriceOverflow
	}
	out, _ := uint256.FromBig(value)
	return out, nil
}
