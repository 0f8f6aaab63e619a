// Package position tracks per-(owner, range) liquidity and the fee/reward
// balances accrued to it. Fees accrue only to the unstaked share of a
// position; rewards only to the staked share.
package position

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/fullmath"
)

var (
	ErrInsufficientLiquidity = errors.New("position liquidity underflow")
	ErrNoPosition            = errors.New("position does not exist")
	ErrInvalidStakeDelta     = errors.New("staked liquidity exceeds position liquidity")
)

// Position is the ledger entry for one (owner, tickLower, tickUpper) triple.
type Position struct {
	Liquidity       *uint256.Int
	LiquidityStaked *uint256.Int

	FeeGrowthInside0LastX128   *uint256.Int
	FeeGrowthInside1LastX128   *uint256.Int
	RewardGrowthInsideLastX128 *uint256.Int

	TokensOwed0 *uint256.Int
	TokensOwed1 *uint256.Int
	RewardsOwed *uint256.Int
}

func newPosition() *Position {
	return &Position{
		Liquidity:                  new(uint256.Int),
		LiquidityStaked:            new(uint256.Int),
		FeeGrowthInside0LastX128:   new(uint256.Int),
		FeeGrowthInside1LastX128:   new(uint256.Int),
		RewardGrowthInsideLastX128: new(uint256.Int),
		TokensOwed0:                new(uint256.Int),
		TokensOwed1:                new(uint256.Int),
		RewardsOwed:                new(uint256.Int),
	}
}

// Key derives the ledger key for a position: keccak256(owner || lower || upper).
func Key(owner common.Address, tickLower, tickUpper int32) common.Hash {
	buf := make([]byte, 0, common.AddressLength+8)
	buf = append(buf, owner.Bytes()...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(tickLower))
	buf = binary.BigEndian.AppendUint32(buf, uint32(tickUpper))
	return crypto.Keccak256Hash(buf)
}

// Ledger is the position store. Entries are created on first successful
// update and never destroyed: a drained position stops accruing but its owed
// balances stay collectible.
type Ledger struct {
	positions map[common.Hash]*Position
}

func NewLedger() *Ledger {
	return &Ledger{positions: make(map[common.Hash]*Position)}
}

// Get returns the stored position for the triple, if any.
func (l *Ledger) Get(owner common.Address, tickLower, tickUpper int32) (*Position, bool) {
	p, ok := l.positions[Key(owner, tickLower, tickUpper)]
	return p, ok
}

// Update applies signed liquidity and stake deltas to a position, settling
// accrued fees and rewards against the supplied growth-inside values first.
// The updated position is stored only if every check passes.
func (l *Ledger) Update(owner common.Address, tickLower, tickUpper int32, liquidityDelta, liquidityStakedDelta *big.Int, inside0, inside1, insideReward *uint256.Int) (*Position, error) {
	key := Key(owner, tickLower, tickUpper)
	p, ok := l.positions[key]
	if !ok {
		p = newPosition()
	}

	if liquidityDelta.Sign() == 0 && liquidityStakedDelta.Sign() == 0 && p.Liquidity.IsZero() {
		return nil, ErrNoPosition
	}

	liquidityNext := new(big.Int).Add(p.Liquidity.ToBig(), liquidityDelta)
	if liquidityNext.Sign() < 0 {
		return nil, ErrInsufficientLiquidity
	}
	stakedNext := new(big.Int).Add(p.LiquidityStaked.ToBig(), liquidityStakedDelta)
	if stakedNext.Sign() < 0 || liquidityNext.Cmp(stakedNext) < 0 {
		return nil, ErrInvalidStakeDelta
	}

	liquidityNextU, overflow := uint256.FromBig(liquidityNext)
	if overflow || liquidityNextU.Gt(fullmath.MaxUint128) {
		return nil, ErrInsufficientLiquidity
	}
	stakedNextU, _ := uint256.FromBig(stakedNext)

	// Settle what accrued since the last snapshot, on the pre-delta shares.
	// The subtractions wrap: the growth accumulators are modular.
	unstaked := new(uint256.Int).Sub(p.Liquidity, p.LiquidityStaked)
	owed0 := fullmath.U256MulDivQ128(new(uint256.Int).Sub(inside0, p.FeeGrowthInside0LastX128), unstaked)
	owed1 := fullmath.U256MulDivQ128(new(uint256.Int).Sub(inside1, p.FeeGrowthInside1LastX128), unstaked)
	owedReward := fullmath.U256MulDivQ128(new(uint256.Int).Sub(insideReward, p.RewardGrowthInsideLastX128), p.LiquidityStaked)

	p.Liquidity = liquidityNextU
	p.LiquidityStaked = stakedNextU
	p.FeeGrowthInside0LastX128 = new(uint256.Int).Set(inside0)
	p.FeeGrowthInside1LastX128 = new(uint256.Int).Set(inside1)
	p.RewardGrowthInsideLastX128 = new(uint256.Int).Set(insideReward)
	p.TokensOwed0 = fullmath.SaturatingAddU128(p.TokensOwed0, owed0)
	p.TokensOwed1 = fullmath.SaturatingAddU128(p.TokensOwed1, owed1)
	p.RewardsOwed = fullmath.SaturatingAddU128(p.RewardsOwed, owedReward)

	l.positions[key] = p
	return p, nil
}
