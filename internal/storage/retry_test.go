package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"swapcore/internal/model"
)

type flakySink struct {
	failures int
	calls    int
}

func (f *flakySink) PutEvents(_ context.Context, _ []model.Event) error {
	f.calls++
	if f.calls <= f.failures {
		return fmt.Errorf("transient failure %d", f.calls)
	}
	return nil
}

func TestRetrySinkRecovers(t *testing.T) {
	sink := &flakySink{failures: 2}
	r := NewRetrySink(sink, 3, time.Millisecond)

	if err := r.PutEvents(context.Background(), []model.Event{{Name: model.EventSwap}}); err != nil {
		t.Fatalf("put events: %v", err)
	}
	if sink.calls != 3 {
		t.Fatalf("sink called %d times, want 3", sink.calls)
	}
}

func TestRetrySinkGivesUp(t *testing.T) {
	sink := &flakySink{failures: 10}
	r := NewRetrySink(sink, 2, time.Millisecond)

	if err := r.PutEvents(context.Background(), nil); err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if sink.calls != 3 {
		t.Fatalf("sink called %d times, want 3", sink.calls)
	}
}

func TestRetrySinkHonorsContext(t *testing.T) {
	sink := &flakySink{failures: 10}
	r := NewRetrySink(sink, 5, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.PutEvents(ctx, nil); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
