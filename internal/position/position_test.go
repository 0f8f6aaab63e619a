package position

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func q128(n uint64) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(n), 128)
}

func TestKeyUniquePerTriple(t *testing.T) {
	keys := map[common.Hash]bool{
		Key(alice, -10, 10): true,
		Key(alice, -10, 20): true,
		Key(alice, -20, 10): true,
		Key(bob, -10, 10):   true,
	}
	if len(keys) != 4 {
		t.Fatalf("key collision across distinct triples")
	}
	if Key(alice, -10, 10) != Key(alice, -10, 10) {
		t.Fatalf("key not deterministic")
	}
}

func TestUpdateCreatesAndAccrues(t *testing.T) {
	l := NewLedger()
	zero := new(uint256.Int)

	p, err := l.Update(alice, -10, 10, big.NewInt(1000), new(big.Int), zero, zero, zero)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if p.Liquidity.Uint64() != 1000 {
		t.Fatalf("liquidity = %s, want 1000", p.Liquidity)
	}

	// One full unit of growth per unit of liquidity since the snapshot.
	p, err = l.Update(alice, -10, 10, new(big.Int), new(big.Int), q128(1), zero, zero)
	if err != nil {
		t.Fatalf("poke: %v", err)
	}
	if p.TokensOwed0.Uint64() != 1000 {
		t.Fatalf("tokensOwed0 = %s, want 1000", p.TokensOwed0)
	}
	if p.TokensOwed1.Sign() != 0 {
		t.Fatalf("tokensOwed1 = %s, want 0", p.TokensOwed1)
	}

	// Snapshot advanced: poking again at the same growth owes nothing new.
	p, err = l.Update(alice, -10, 10, new(big.Int), new(big.Int), q128(1), zero, zero)
	if err != nil {
		t.Fatalf("second poke: %v", err)
	}
	if p.TokensOwed0.Uint64() != 1000 {
		t.Fatalf("tokensOwed0 after second poke = %s, want 1000", p.TokensOwed0)
	}
}

func TestFeesOnlyOnUnstakedShare(t *testing.T) {
	l := NewLedger()
	zero := new(uint256.Int)

	if _, err := l.Update(alice, -10, 10, big.NewInt(1000), new(big.Int), zero, zero, zero); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := l.Update(alice, -10, 10, new(big.Int), big.NewInt(500), zero, zero, zero); err != nil {
		t.Fatalf("stake: %v", err)
	}

	p, err := l.Update(alice, -10, 10, new(big.Int), new(big.Int), q128(1), zero, q128(2))
	if err != nil {
		t.Fatalf("poke: %v", err)
	}
	if p.TokensOwed0.Uint64() != 500 {
		t.Fatalf("fees accrued to staked share: owed0 = %s, want 500", p.TokensOwed0)
	}
	if p.RewardsOwed.Uint64() != 1000 {
		t.Fatalf("rewards = %s, want 2*500 = 1000", p.RewardsOwed)
	}
}

func TestUpdateErrors(t *testing.T) {
	l := NewLedger()
	zero := new(uint256.Int)

	if _, err := l.Update(alice, -10, 10, new(big.Int), new(big.Int), zero, zero, zero); err != ErrNoPosition {
		t.Fatalf("expected ErrNoPosition, got %v", err)
	}

	if _, err := l.Update(alice, -10, 10, big.NewInt(-5), new(big.Int), zero, zero, zero); err != ErrInsufficientLiquidity {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}

	if _, err := l.Update(alice, -10, 10, big.NewInt(100), big.NewInt(200), zero, zero, zero); err != ErrInvalidStakeDelta {
		t.Fatalf("expected ErrInvalidStakeDelta, got %v", err)
	}

	// Burning below the staked amount violates the invariant too.
	if _, err := l.Update(alice, -10, 10, big.NewInt(100), big.NewInt(100), zero, zero, zero); err != nil {
		t.Fatalf("mint+stake: %v", err)
	}
	if _, err := l.Update(alice, -10, 10, big.NewInt(-50), new(big.Int), zero, zero, zero); err != ErrInvalidStakeDelta {
		t.Fatalf("expected ErrInvalidStakeDelta on burn below stake, got %v", err)
	}
}

func TestDrainedPositionKeepsOwed(t *testing.T) {
	l := NewLedger()
	zero := new(uint256.Int)

	if _, err := l.Update(alice, -10, 10, big.NewInt(100), new(big.Int), zero, zero, zero); err != nil {
		t.Fatalf("mint: %v", err)
	}
	p, err := l.Update(alice, -10, 10, big.NewInt(-100), new(big.Int), q128(1), zero, zero)
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if !p.Liquidity.IsZero() {
		t.Fatalf("liquidity = %s, want 0", p.Liquidity)
	}
	if p.TokensOwed0.Uint64() != 100 {
		t.Fatalf("owed0 = %s, want 100", p.TokensOwed0)
	}
	if _, ok := l.Get(alice, -10, 10); !ok {
		t.Fatalf("drained position should remain collectible")
	}
}
