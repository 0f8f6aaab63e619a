package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"liquidityEngine/internal/model"
)

func TestJsonlJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "journal.jsonl")
	journal := NewJsonlJournal(path)

	first := []model.Event{
		{Seq: 1, Kind: model.KindInitialize, Timestamp: 100},
		{Seq: 2, Kind: model.KindSwap, Timestamp: 110, Amount0: "1000", Amount1: "-996"},
	}
	if err := journal.PutEventBatch(first); err != nil {
		t.Fatalf("put batch: %v", err)
	}
	if err := journal.PutEventBatch([]model.Event{{Seq: 3, Kind: model.KindBurn, Timestamp: 120}}); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer file.Close()

	var events []model.Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event model.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, event := range events {
		if event.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d", i, event.Seq)
		}
	}
	if events[1].Amount1 != "-996" {
		t.Fatalf("amounts lost: %+v", events[1])
	}
}

func TestJsonlJournalEmptyBatchIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	journal := NewJsonlJournal(path)

	if err := journal.PutEventBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty batch created the file")
	}
}
