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
)

// Flash lends the requested amounts for the duration of the pay callback.
// The callback receives the fee owed per token; afterwards the pool's
// balances must have grown by at least those fees over the pre-loan levels.
// Whatever was actually paid is split between fee growth and the protocol
// the same way swap fees are.
func (p *Pool) Flash(recipient common.Address, amount0, amount1 *uint256.Int, pay PayFunc) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.mu.Unlock()

	if !p.initialized {
		return ErrNotInitialized
	}
	if amount0.IsZero() && amount1.IsZero() {
		return ErrZeroAmount
	}

	fee0 := flashFee(amount0, p.cfg.FeePips)
	fee1 := flashFee(amount1, p.cfg.FeePips)

	balance0Before, balance1Before, err := p.balances()
	if err != nil {
		return err
	}

	if !amount0.IsZero() {
		if err := p.cfg.Ledger.Transfer(p.cfg.Token0, recipient, amount0); err != nil {
			return fmt.Errorf("flash token0: %w", err)
		}
	}
	if !amount1.IsZero() {
		if err := p.cfg.Ledger.Transfer(p.cfg.Token1, recipient, amount1); err != nil {
			return fmt.Errorf("flash token1: %w", err)
		}
	}

	if err := pay(fee0.ToBig(), fee1.ToBig()); err != nil {
		return fmt.Errorf("flash payment: %w", err)
	}

	balance0After, balance1After, err := p.balances()
	if err != nil {
		return err
	}

	required0 := new(uint256.Int).Add(balance0Before, fee0)
	required1 := new(uint256.Int).Add(balance1Before, fee1)
	if balance0After.Lt(required0) || balance1After.Lt(required1) {
		return ErrFlashRepayment
	}

	paid0 := new(uint256.Int).Sub(balance0After, balance0Before)
	paid1 := new(uint256.Int).Sub(balance1After, balance1Before)
	p.creditFlashFee(paid0, true)
	p.creditFlashFee(paid1, false)

	p.log.Info("flash",
		zap.Stringer("recipient", recipient),
		zap.String("amount0", amount0.Dec()),
		zap.String("amount1", amount1.Dec()),
		zap.String("paid0", paid0.Dec()),
		zap.String("paid1", paid1.Dec()),
	)
	return nil
}

// flashFee is the loan fee, rounded up.
func flashFee(amount *uint256.Int, feePips uint32) *uint256.Int {
	if amount.IsZero() || feePips == 0 {
		return new(uint256.Int)
	}
	fee := fullmath.MulDivRoundingUp(amount.ToBig(), big.NewInt(int64(feePips)), big.NewInt(swapmath.FeeDenominator))
	out, _ := uint256.FromBig(fee)
	return out
}

func (p *Pool) creditFlashFee(paid *uint256.Int, token0 bool) {
	if paid.IsZero() {
		return
	}
	lpFee, protocolFee := feesplit.Split(paid.ToBig(), p.protocolFeeRate(), p.liquidity, p.liquidityStaked)

	if protocolFee.Sign() > 0 {
		u, _ := uint256.FromBig(protocolFee)
		if token0 {
			p.protocolFees0 = fullmath.SaturatingAddU128(p.protocolFees0, u)
		} else {
			p.protocolFees1 = fullmath.SaturatingAddU128(p.protocolFees1, u)
		}
	}
	if lpFee.Sign() > 0 {
		unstaked := new(uint256.Int).Sub(p.liquidity, p.liquidityStaked)
		if !unstaked.IsZero() {
			lpFeeU, _ := uint256.FromBig(lpFee)
			growth := new(uint256.Int).Lsh(lpFeeU, 128)
			growth.Div(growth, unstaked)
			if token0 {
				p.feeGrowthGlobal0X128.Add(p.feeGrowthGlobal0X128, growth)
			} else {
				p.feeGrowthGlobal1X128.Add(p.feeGrowthGlobal1X128, growth)
			}
		}
	}
}

func (p *Pool) protocolFeeRate() uint32 {
	if p.cfg.FeeRates == nil {
		return 0
	}
	return p.cfg.FeeRates.ProtocolFeeRate()
}
