// Package feesplit partitions a collected trading fee between regular
// liquidity providers and the protocol. Staked liquidity forfeits its share
// of trading fees: that notional slice is folded into the protocol portion
// and realized through the external reward stream instead.
package feesplit

import (
	"math/big"

	"github.com/holiman/uint256"

	"liquidityEngine/internal/fullmath"
)

const feeDenominator = 1_000_000

// Split divides feeAmount into the LP share and the protocol share.
// protocolFeeRatePpm is in parts per million. With no liquidity the whole
// amount goes to the protocol since there is no one else to credit.
func Split(feeAmount *big.Int, protocolFeeRatePpm uint32, liquidity, liquidityStaked *uint256.Int) (lpFee, protocolFee *big.Int) {
	if liquidity.IsZero() || feeAmount.Sign() == 0 {
		return new(big.Int), new(big.Int).Set(feeAmount)
	}

	afterProtocol := fullmath.MulDiv(feeAmount, big.NewInt(feeDenominator-int64(protocolFeeRatePpm)), big.NewInt(feeDenominator))
	unstaked := new(uint256.Int).Sub(liquidity, liquidityStaked)
	lpFee = fullmath.MulDiv(afterProtocol, unstaked.ToBig(), liquidity.ToBig())
	protocolFee = new(big.Int).Sub(feeAmount, lpFee)
	return lpFee, protocolFee
}
