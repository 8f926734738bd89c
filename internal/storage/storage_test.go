package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"swapcore/internal/model"
)

func TestCollectorAssignsSequence(t *testing.T) {
	c := NewCollector()
	c.Record(model.Event{Name: model.EventMint})
	c.Record(model.Event{Name: model.EventSwap})
	c.Record(model.Event{Name: model.EventSync})

	events := c.Drain()
	if len(events) != 3 {
		t.Fatalf("drained %d events, want 3", len(events))
	}
	for i, event := range events {
		if event.Seq != uint64(i) {
			t.Fatalf("event %d has seq %d", i, event.Seq)
		}
	}
	if c.Len() != 0 {
		t.Fatalf("collector not empty after drain")
	}

	// Sequence numbers continue across drains.
	c.Record(model.Event{Name: model.EventBurn})
	events = c.Drain()
	if events[0].Seq != 3 {
		t.Fatalf("seq after drain = %d, want 3", events[0].Seq)
	}
}

func TestJsonlSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink := NewJsonlSink(path)

	c := NewCollector()
	c.Record(model.Event{Timestamp: 10, Pair: "0xabc", Name: model.EventSwap, Data: json.RawMessage(`{"recipient":"0x1"}`)})
	c.Record(model.Event{Timestamp: 11, Pair: "0xabc", Name: model.EventSync, Data: json.RawMessage(`{"reserve0":"1"}`)})

	if err := c.Flush(context.Background(), sink); err != nil {
		t.Fatalf("flush: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var got []model.Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event model.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, event)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("read %d events, want 2", len(got))
	}
	if got[0].Name != model.EventSwap || got[1].Name != model.EventSync {
		t.Fatalf("event order mismatch: %s, %s", got[0].Name, got[1].Name)
	}
	if got[1].Seq != 1 || got[1].Timestamp != 11 {
		t.Fatalf("event fields lost: %+v", got[1])
	}
}

func TestFlushEmptyIsNoop(t *testing.T) {
	c := NewCollector()
	if err := c.Flush(context.Background(), NewJsonlSink(filepath.Join(t.TempDir(), "never.jsonl"))); err != nil {
		t.Fatalf("flush: %v", err)
	}
}
