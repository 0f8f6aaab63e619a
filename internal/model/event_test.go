package model

import (
	"encoding/json"
	"testing"
)

func TestEventRoundTrip(t *testing.T) {
	lower := int32(-600)
	upper := int32(600)
	event := Event{
		Seq:          7,
		Kind:         KindMint,
		Timestamp:    1_700_000_123,
		Account:      "0x00000000000000000000000000000000000000aa",
		TickLower:    &lower,
		TickUpper:    &upper,
		Liquidity:    "1000000000000000000",
		Amount0:      "29953549559107810",
		Amount1:      "29953549559107810",
		SqrtPriceX96: "79228162514264337593543950336",
		Tick:         0,
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Seq != event.Seq || decoded.Kind != event.Kind || decoded.Liquidity != event.Liquidity {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	if decoded.TickLower == nil || *decoded.TickLower != -600 {
		t.Fatalf("tick_lower lost in round trip")
	}
}

func TestEventOmitsEmptyOptionalFields(t *testing.T) {
	event := Event{Seq: 1, Kind: KindSwap, Timestamp: 100, Tick: -3}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	for _, key := range []string{"tick_lower", "tick_upper", "liquidity", "error", "account"} {
		if _, present := raw[key]; present {
			t.Fatalf("empty field %q serialized", key)
		}
	}
	if raw["kind"] != KindSwap {
		t.Fatalf("kind = %v", raw["kind"])
	}
}
