package swapmath

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/sqrtmath"
)

var (
	priceOne  = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	liquidity = uint256.NewInt(2_000_000_000_000_000_000)
)

func TestStepCappedAtTarget(t *testing.T) {
	// Price rising (one for zero) with far more input than the target needs.
	target := uint256.MustFromDecimal("79623317895830914510639640423") // sqrt(1.01)
	amountRemaining, _ := new(big.Int).SetString("1000000000000000000", 10)

	res, err := ComputeSwapStep(priceOne, target, liquidity, amountRemaining, 600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.SqrtPriceNextX96.Eq(target) {
		t.Fatalf("price %s did not reach target %s", res.SqrtPriceNextX96, target)
	}

	wantIn := sqrtmath.Amount1Delta(priceOne, target, liquidity, true)
	if res.AmountIn.Cmp(wantIn) != 0 {
		t.Fatalf("amountIn = %s, want %s", res.AmountIn, wantIn)
	}

	wantFee := fullmath.MulDivRoundingUp(wantIn, big.NewInt(600), big.NewInt(FeeDenominator-600))
	if res.FeeAmount.Cmp(wantFee) != 0 {
		t.Fatalf("fee = %s, want %s", res.FeeAmount, wantFee)
	}

	spent := new(big.Int).Add(res.AmountIn, res.FeeAmount)
	if spent.Cmp(amountRemaining) >= 0 {
		t.Fatalf("capped step consumed the whole input")
	}
}

func TestStepFullySpentInput(t *testing.T) {
	target := uint256.MustFromDecimal("79623317895830914510639640423")
	amountRemaining := big.NewInt(1_000_000)

	res, err := ComputeSwapStep(priceOne, target, liquidity, amountRemaining, 3000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.SqrtPriceNextX96.Eq(target) {
		t.Fatalf("small input should stop short of the target")
	}

	// Principal plus fee account for every specified unit.
	spent := new(big.Int).Add(res.AmountIn, res.FeeAmount)
	if spent.Cmp(amountRemaining) != 0 {
		t.Fatalf("amountIn+fee = %s, want %s", spent, amountRemaining)
	}
	if !priceOne.Lt(res.SqrtPriceNextX96) {
		t.Fatalf("price did not move up: %s", res.SqrtPriceNextX96)
	}
}

func TestStepExactOutput(t *testing.T) {
	target := uint256.MustFromDecimal("79623317895830914510639640423")
	requested := big.NewInt(1_000_000)

	res, err := ComputeSwapStep(priceOne, target, liquidity, new(big.Int).Neg(requested), 3000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.AmountOut.Cmp(requested) > 0 {
		t.Fatalf("output %s exceeds requested %s", res.AmountOut, requested)
	}
	if res.AmountIn.Sign() <= 0 || res.FeeAmount.Sign() <= 0 {
		t.Fatalf("exact-output step must still charge input and fee")
	}
}

func TestStepZeroFee(t *testing.T) {
	target := uint256.MustFromDecimal("79623317895830914510639640423")

	res, err := ComputeSwapStep(priceOne, target, liquidity, big.NewInt(1_000_000_000_000_000_000), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FeeAmount.Sign() != 0 {
		t.Fatalf("fee = %s with zero fee rate", res.FeeAmount)
	}
}

func TestStepZeroLiquidityJumpsToTarget(t *testing.T) {
	target := uint256.MustFromDecimal("79623317895830914510639640423")

	res, err := ComputeSwapStep(priceOne, target, uint256.NewInt(0), big.NewInt(12345), 3000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.SqrtPriceNextX96.Eq(target) {
		t.Fatalf("zero-liquidity step should land on the target")
	}
	if res.AmountIn.Sign() != 0 || res.AmountOut.Sign() != 0 {
		t.Fatalf("zero-liquidity step moved amounts: in=%s out=%s", res.AmountIn, res.AmountOut)
	}
}

func TestStepPriceFallingDirection(t *testing.T) {
	target := uint256.MustFromDecimal("72025602285694852357767227579") // below current

	res, err := ComputeSwapStep(priceOne, target, liquidity, big.NewInt(1_000_000), 3000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.SqrtPriceNextX96.Lt(priceOne) {
		t.Fatalf("zero-for-one step must lower the price")
	}
	if res.SqrtPriceNextX96.Lt(target) {
		t.Fatalf("price %s overshot target %s", res.SqrtPriceNextX96, target)
	}
}
