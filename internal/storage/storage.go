package storage

import (
	"context"
	"sync"

	"swapcore/internal/model"
)

// Sink persists batches of pair events.
type Sink interface {
	PutEvents(ctx context.Context, events []model.Event) error
}

// Collector buffers pair events and assigns sequence numbers. It is the
// recorder handed to pairs; buffered events are flushed to sinks in batches.
type Collector struct {
	mu      sync.Mutex
	nextSeq uint64
	buffer  []model.Event
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record buffers one event, stamping it with the next sequence number.
func (c *Collector) Record(event model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	event.Seq = c.nextSeq
	c.nextSeq++
	c.buffer = append(c.buffer, event)
}

// Drain returns the buffered events and resets the buffer.
func (c *Collector) Drain() []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := c.buffer
	c.buffer = nil
	return events
}

// Len returns the number of buffered events.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// Flush drains the buffer and writes it to every sink. On sink failure the
// drained events are not restored; callers decide whether to retry.
func (c *Collector) Flush(ctx context.Context, sinks ...Sink) error {
	events := c.Drain()
	if len(events) == 0 {
		return nil
	}
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		if err := sink.PutEvents(ctx, events); err != nil {
			return err
		}
	}
	return nil
}
