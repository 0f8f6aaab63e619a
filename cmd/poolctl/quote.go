package main

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/sim"
	"liquidityEngine/internal/tickmath"
)

var (
	quotePoolAddr = common.HexToAddress("0x0000000000000000000000000000000000002001")
	quoteToken0   = common.HexToAddress("0x0000000000000000000000000000000000002002")
	quoteToken1   = common.HexToAddress("0x0000000000000000000000000000000000002003")
	quoteActor    = common.HexToAddress("0x0000000000000000000000000000000000002004")
)

// runQuote builds a throwaway pool with one position and prices a swap
// against it.
func runQuote(cmd *cobra.Command, _ []string) error {
	feePips, _ := cmd.Flags().GetUint32("fee-pips")
	spacing, _ := cmd.Flags().GetInt32("tick-spacing")
	liquidityStr, _ := cmd.Flags().GetString("liquidity")
	tickLower, _ := cmd.Flags().GetInt32("tick-lower")
	tickUpper, _ := cmd.Flags().GetInt32("tick-upper")
	amountStr, _ := cmd.Flags().GetString("amount")
	zeroForOne, _ := cmd.Flags().GetBool("zero-for-one")

	liquidity, err := uint256.FromDecimal(liquidityStr)
	if err != nil {
		return fmt.Errorf("parse liquidity: %w", err)
	}
	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok || amount.Sign() == 0 {
		return fmt.Errorf("invalid amount: %s", amountStr)
	}

	ledger := sim.NewMemoryLedger(quotePoolAddr)
	pay := func(amount0, amount1 *big.Int) error {
		if amount0.Sign() > 0 {
			u, _ := uint256.FromBig(amount0)
			ledger.Credit(quoteToken0, quotePoolAddr, u)
		}
		if amount1.Sign() > 0 {
			u, _ := uint256.FromBig(amount1)
			ledger.Credit(quoteToken1, quotePoolAddr, u)
		}
		return nil
	}

	p := pool.New(pool.Config{
		Self:        quotePoolAddr,
		Token0:      quoteToken0,
		Token1:      quoteToken1,
		FeePips:     feePips,
		TickSpacing: spacing,
		Ledger:      ledger,
		FeeRates:    sim.FixedFeeRates{},
	})

	startPrice, err := tickmath.SqrtRatioAtTick(0)
	if err != nil {
		return err
	}
	if err := p.Initialize(startPrice); err != nil {
		return err
	}
	if _, _, err := p.Mint(quoteActor, tickLower, tickUpper, liquidity, pay); err != nil {
		return fmt.Errorf("mint: %w", err)
	}

	var limit *uint256.Int
	if zeroForOne {
		limit = new(uint256.Int).AddUint64(tickmath.MinSqrtRatio, 1)
	} else {
		limit = new(uint256.Int).SubUint64(tickmath.MaxSqrtRatio, 1)
	}

	amount0, amount1, err := p.Swap(quoteActor, quoteActor, zeroForOne, amount, limit, pay)
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}

	in, out := amount0, amount1
	if !zeroForOne {
		in, out = amount1, amount0
	}
	received := new(big.Int).Neg(out)

	fmt.Printf("input:           %s\n", in)
	fmt.Printf("output:          %s\n", received)
	if in.Sign() > 0 {
		execPrice := decimal.NewFromBigInt(received, 0).Div(decimal.NewFromBigInt(in, 0))
		fmt.Printf("execution price: %s\n", execPrice.StringFixed(12))
	}
	fmt.Printf("pool price:      %s -> %s\n", priceFromSqrtX96(startPrice), priceFromSqrtX96(p.SqrtPriceX96()))
	fmt.Printf("pool tick:       %d\n", p.CurrentTick())
	return nil
}

// priceFromSqrtX96 renders a Q64.96 sqrt price as a decimal token1/token0
// price.
func priceFromSqrtX96(sqrtPriceX96 *uint256.Int) string {
	q96 := decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 96), 0)
	sqrt := decimal.NewFromBigInt(sqrtPriceX96.ToBig(), 0).DivRound(q96, 24)
	return sqrt.Mul(sqrt).StringFixed(12)
}
