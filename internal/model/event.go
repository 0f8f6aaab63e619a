package model

import (
	"encoding/json"
)

// Event kinds recorded in the operation journal.
const (
	KindInitialize = "initialize"
	KindMint       = "mint"
	KindBurn       = "burn"
	KindSwap       = "swap"
	KindStake      = "stake"
	KindUnstake    = "unstake"
	KindCollect    = "collect"
	KindFlash      = "flash"
)

// Event is the normalized journal record for one pool operation. Amounts are
// decimal strings since they routinely exceed 64 bits.
type Event struct {
	Seq          uint64 `json:"seq"`
	Kind         string `json:"kind"`
	Timestamp    uint64 `json:"timestamp"`
	Account      string `json:"account,omitempty"`
	TickLower    *int32 `json:"tick_lower,omitempty"`
	TickUpper    *int32 `json:"tick_upper,omitempty"`
	ZeroForOne   *bool  `json:"zero_for_one,omitempty"`
	Liquidity    string `json:"liquidity,omitempty"`
	Amount0      string `json:"amount0,omitempty"`
	Amount1      string `json:"amount1,omitempty"`
	SqrtPriceX96 string `json:"sqrt_price_x96,omitempty"`
	Tick         int32  `json:"tick"`
	Error        string `json:"error,omitempty"`
}

// MarshalJSON ensures Event is encoded with stable field names.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal(Alias(e))
}

// UnmarshalJSON decodes an Event from JSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = Event(a)
	return nil
}
