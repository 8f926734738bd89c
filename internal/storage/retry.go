package storage

import (
	"context"
	"time"

	"swapcore/internal/model"
)

// RetrySink wraps a Sink and retries failed writes with exponential backoff.
// Useful for network-backed sinks where transient errors are expected.
type RetrySink struct {
	sink       Sink
	maxRetries int
	baseDelay  time.Duration
}

func NewRetrySink(sink Sink, maxRetries int, baseDelay time.Duration) *RetrySink {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	return &RetrySink{sink: sink, maxRetries: maxRetries, baseDelay: baseDelay}
}

func (r *RetrySink) PutEvents(ctx context.Context, events []model.Event) error {
	delay := r.baseDelay
	for attempt := 0; ; attempt++ {
		err := r.sink.PutEvents(ctx, events)
		if err == nil {
			return nil
		}
		if attempt >= r.maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
