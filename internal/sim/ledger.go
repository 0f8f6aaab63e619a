// Package sim drives a pool instance through randomized operation sequences,
// journaling every operation and summarizing the run.
package sim

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MemoryLedger is an in-memory token ledger backing simulated pools. All
// transfers draw from the configured pool account.
type MemoryLedger struct {
	pool     common.Address
	mu       sync.Mutex
	balances map[common.Address]map[common.Address]*uint256.Int
}

func NewMemoryLedger(pool common.Address) *MemoryLedger {
	return &MemoryLedger{
		pool:     pool,
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (l *MemoryLedger) balance(token, holder common.Address) *uint256.Int {
	holders, ok := l.balances[token]
	if !ok {
		holders = make(map[common.Address]*uint256.Int)
		l.balances[token] = holders
	}
	b, ok := holders[holder]
	if !ok {
		b = new(uint256.Int)
		holders[holder] = b
	}
	return b
}

// Credit mints balance out of thin air; simulated actors have no budget.
func (l *MemoryLedger) Credit(token, holder common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balance(token, holder)
	b.Add(b, amount)
}

func (l *MemoryLedger) BalanceOf(token, holder common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.balance(token, holder)), nil
}

func (l *MemoryLedger) Transfer(token, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	from := l.balance(token, l.pool)
	if from.Lt(amount) {
		return errors.New("insufficient pool balance")
	}
	from.Sub(from, amount)
	b := l.balance(token, to)
	b.Add(b, amount)
	return nil
}

// FixedFeeRates serves a constant protocol fee rate with no exemptions.
type FixedFeeRates struct {
	RatePpm uint32
}

func (f FixedFeeRates) ProtocolFeeRate() uint32           { return f.RatePpm }
func (f FixedFeeRates) IsFeeExempt(_ common.Address) bool { return false }

// DripRewards emits rewards at a fixed rate per simulated second.
type DripRewards struct {
	ratePerSecond uint64
	pending       *uint256.Int
}

func NewDripRewards(ratePerSecond uint64) *DripRewards {
	return &DripRewards{ratePerSecond: ratePerSecond, pending: new(uint256.Int)}
}

// Advance accrues emissions for the elapsed seconds.
func (d *DripRewards) Advance(seconds uint64) {
	emitted := new(uint256.Int).Mul(uint256.NewInt(seconds), uint256.NewInt(d.ratePerSecond))
	d.pending.Add(d.pending, emitted)
}

func (d *DripRewards) CollectableAmount() (*uint256.Int, error) {
	return new(uint256.Int).Set(d.pending), nil
}

func (d *DripRewards) Collect(amount *uint256.Int, _ common.Address) error {
	if d.pending.Lt(amount) {
		return errors.New("reward over-collect")
	}
	d.pending.Sub(d.pending, amount)
	return nil
}
