package pool

import "errors"

var (
	// ErrLocked is returned when a state-mutating call arrives while another
	// operation holds the pool. Calls fail instead of queueing.
	ErrLocked = errors.New("pool locked")

	ErrAlreadyInitialized = errors.New("pool already initialized")
	ErrNotInitialized     = errors.New("pool not initialized")

	ErrInvalidTickRange      = errors.New("invalid tick range")
	ErrZeroAmount            = errors.New("amount must be positive")
	ErrInvalidPriceLimit     = errors.New("price limit on wrong side of current price")
	ErrTickNotInitialized    = errors.New("tick not initialized")
	ErrLiquidityOverflow     = errors.New("liquidity overflow")
	ErrInsufficientStake     = errors.New("staked amount exceeds position stake")
	ErrInsufficientInputPaid = errors.New("insufficient input paid")
	ErrFlashRepayment        = errors.New("flash loan not repaid with fee")
	ErrNoRewardSource        = errors.New("no reward source configured")
)
