package feesplit

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
)

func TestSplitNoLiquidity(t *testing.T) {
	lp, protocol := Split(big.NewInt(1000), 0, uint256.NewInt(0), uint256.NewInt(0))
	if lp.Sign() != 0 {
		t.Fatalf("lp fee = %s, want 0", lp)
	}
	if protocol.Int64() != 1000 {
		t.Fatalf("protocol fee = %s, want 1000", protocol)
	}
}

func TestSplitNoStakeNoProtocolRate(t *testing.T) {
	lp, protocol := Split(big.NewInt(1000), 0, uint256.NewInt(500), uint256.NewInt(0))
	if lp.Int64() != 1000 {
		t.Fatalf("lp fee = %s, want 1000", lp)
	}
	if protocol.Sign() != 0 {
		t.Fatalf("protocol fee = %s, want 0", protocol)
	}
}

func TestSplitHalfStaked(t *testing.T) {
	// Half the liquidity is staked, so LPs keep half of the post-protocol fee.
	lp, protocol := Split(big.NewInt(1000), 100_000, uint256.NewInt(1000), uint256.NewInt(500))
	// (1 - 0.1) * 1000 * 500/1000 = 450
	if lp.Int64() != 450 {
		t.Fatalf("lp fee = %s, want 450", lp)
	}
	if protocol.Int64() != 550 {
		t.Fatalf("protocol fee = %s, want 550", protocol)
	}
}

func TestSplitFullyStaked(t *testing.T) {
	lp, protocol := Split(big.NewInt(777), 0, uint256.NewInt(100), uint256.NewInt(100))
	if lp.Sign() != 0 {
		t.Fatalf("lp fee = %s, want 0 with everything staked", lp)
	}
	if protocol.Int64() != 777 {
		t.Fatalf("protocol fee = %s, want 777", protocol)
	}
}

func TestSplitConservation(t *testing.T) {
	cases := []struct {
		fee    int64
		rate   uint32
		liq    uint64
		staked uint64
	}{
		{1, 0, 3, 1},
		{999, 50_000, 7, 3},
		{123456789, 250_000, 1_000_000, 999_999},
		{5, 1_000_000, 10, 0},
	}
	for _, tc := range cases {
		lp, protocol := Split(big.NewInt(tc.fee), tc.rate, uint256.NewInt(tc.liq), uint256.NewInt(tc.staked))
		total := new(big.Int).Add(lp, protocol)
		if total.Int64() != tc.fee {
			t.Fatalf("split of %d lost units: lp=%s protocol=%s", tc.fee, lp, protocol)
		}
		if lp.Sign() < 0 || protocol.Sign() < 0 {
			t.Fatalf("negative share: lp=%s protocol=%s", lp, protocol)
		}
	}
}
