package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NitishMaximus/ghost-curve/internal/models"
)

// EventIterator is a forward-only cursor over stored events.
type EventIterator interface {
	Next() bool
	Event() *models.TradeEvent
	Err() error
	Close() error
}

// StreamFunc opens a cursor over [from, to] in (received_at, id) order.
type StreamFunc func(ctx context.Context, from, to time.Time) (EventIterator, error)

// Replayer re-drives stored events through the queue with real-time delays
// removed. It must not run in the same process as the live driver.
type Replayer struct {
	stream StreamFunc
	queue  *Queue

	from, to  time.Time
	allow     map[string]struct{}
	batchSize int64
}

// NewReplayer builds a replay driver for the given range. An empty
// filterWallets list means every trader passes. batchSize sets the progress
// logging cadence.
func NewReplayer(stream StreamFunc, queue *Queue, from, to time.Time, filterWallets []string, batchSize int) *Replayer {
	var allow map[string]struct{}
	if len(filterWallets) > 0 {
		allow = make(map[string]struct{}, len(filterWallets))
		for _, w := range filterWallets {
			allow[w] = struct{}{}
		}
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Replayer{
		stream:    stream,
		queue:     queue,
		from:      from,
		to:        to,
		allow:     allow,
		batchSize: int64(batchSize),
	}
}

// Run streams the range into the queue, tagging every event as a replay,
// then closes the queue so the processor drains and exits.
func (r *Replayer) Run(ctx context.Context) error {
	defer r.queue.Close()

	it, err := r.stream(ctx, r.from, r.to)
	if err != nil {
		return fmt.Errorf("open replay stream: %w", err)
	}
	defer it.Close()

	var replayed, skipped int64
	for it.Next() {
		event := it.Event()
		if r.allow != nil {
			if _, ok := r.allow[event.Trader]; !ok {
				skipped++
				continue
			}
		}
		event.Source = models.SourceReplay
		if err := r.queue.Push(ctx, event); err != nil {
			return err
		}
		replayed++
		if replayed%r.batchSize == 0 {
			log.Debug().Int64("replayed", replayed).Msg("replay progress")
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("replay stream: %w", err)
	}

	log.Info().
		Int64("replayed", replayed).
		Int64("filtered_out", skipped).
		Time("from", r.from).
		Time("to", r.to).
		Msg("replay stream complete")
	return nil
}
