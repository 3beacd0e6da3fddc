package ingest

import (
	"context"

	"github.com/NitishMaximus/ghost-curve/internal/models"
)

// DefaultQueueSize bounds the event queue when the config leaves it unset.
const DefaultQueueSize = 10000

// Queue is the bounded hand-off between a driver and the processor. Writes
// block when full; the single reader drains the channel. Closing signals the
// reader to finish what remains and exit.
type Queue struct {
	ch chan *models.TradeEvent
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &Queue{ch: make(chan *models.TradeEvent, capacity)}
}

// Push blocks until the event is accepted or ctx is canceled.
func (q *Queue) Push(ctx context.Context, event *models.TradeEvent) error {
	select {
	case q.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events exposes the read side. Range over it until closed.
func (q *Queue) Events() <-chan *models.TradeEvent {
	return q.ch
}

// Close marks the end of the stream. Only the active driver may call it.
func (q *Queue) Close() {
	close(q.ch)
}

// Len reports the number of queued events, for logging only.
func (q *Queue) Len() int {
	return len(q.ch)
}
