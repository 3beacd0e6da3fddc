package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NitishMaximus/ghost-curve/internal/feed"
	"github.com/NitishMaximus/ghost-curve/internal/models"
)

// State tracks where the driver is in its connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateReceiving
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateReceiving:
		return "receiving"
	default:
		return "disconnected"
	}
}

const (
	DefaultBatchSize     = 50
	DefaultFlushInterval = 100 * time.Millisecond
)

// Feed is the upstream the driver pulls from. Receive returning an error
// means the transport is gone and the driver should reconnect; (nil, nil)
// means the message was dropped and the next one should be read.
type Feed interface {
	ConnectAndSubscribe(ctx context.Context, trackedWallets []string) error
	Receive(ctx context.Context) (*models.TradeEvent, error)
	Close()
}

// EventWriter is the batched append side of the event store.
type EventWriter interface {
	InsertBatch(ctx context.Context, events []*models.TradeEvent) (int64, error)
}

// Driver runs the live ingest loop: subscribe, receive, batch-append to the
// store, and enqueue for the processor. It is the queue's only writer while
// running and closes the queue on exit.
type Driver struct {
	feed    Feed
	store   EventWriter
	queue   *Queue
	backoff *feed.Backoff

	wallets       []string
	batchSize     int
	flushInterval time.Duration

	batch []*models.TradeEvent
	state atomic.Int32
}

func NewDriver(f Feed, store EventWriter, queue *Queue, backoff *feed.Backoff, wallets []string, batchSize int, flushInterval time.Duration) *Driver {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	return &Driver{
		feed:          f,
		store:         store,
		queue:         queue,
		backoff:       backoff,
		wallets:       wallets,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		batch:         make([]*models.TradeEvent, 0, batchSize),
	}
}

// State reports the current lifecycle state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
}

// Run drives the connect/receive loop until ctx is canceled. Any pending
// batch is flushed and the queue is closed before returning.
func (d *Driver) Run(ctx context.Context) error {
	defer func() {
		d.finalFlush()
		d.queue.Close()
		d.feed.Close()
		d.setState(StateDisconnected)
		log.Info().Msg("ingest driver stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		d.setState(StateConnecting)
		if err := d.feed.ConnectAndSubscribe(ctx, d.wallets); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.setState(StateDisconnected)
			d.flush(ctx)
			delay := d.backoff.Next()
			log.Warn().Err(err).
				Int("attempt", d.backoff.Attempt()).
				Dur("retry_in", delay).
				Msg("feed connect failed")
			if !sleep(ctx, delay) {
				return nil
			}
			continue
		}

		d.backoff.Reset()
		d.setState(StateSubscribed)

		err := d.receiveLoop(ctx)
		d.setState(StateDisconnected)
		if ctx.Err() != nil {
			return nil
		}
		d.flush(ctx)
		delay := d.backoff.Next()
		log.Warn().Err(err).
			Dur("retry_in", delay).
			Msg("feed connection lost")
		if !sleep(ctx, delay) {
			return nil
		}
	}
}

// receiveLoop pulls events until the transport fails or ctx is canceled.
// A background goroutine does the blocking reads so the flush interval can
// fire even on a quiet feed.
func (d *Driver) receiveLoop(ctx context.Context) error {
	type received struct {
		event *models.TradeEvent
		err   error
	}
	msgs := make(chan received)
	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	go func() {
		for {
			event, err := d.feed.Receive(readCtx)
			select {
			case msgs <- received{event, err}:
			case <-readCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.flush(ctx)
		case m := <-msgs:
			if m.err != nil {
				return m.err
			}
			if m.event == nil {
				continue
			}
			d.setState(StateReceiving)
			d.batch = append(d.batch, m.event)
			if err := d.queue.Push(ctx, m.event); err != nil {
				return err
			}
			if len(d.batch) >= d.batchSize {
				d.flush(ctx)
			}
		}
	}
}

// flush writes the pending batch. A failed flush drops the batch; the
// signature index makes a later duplicate harmless.
func (d *Driver) flush(ctx context.Context) {
	if len(d.batch) == 0 {
		return
	}
	n, err := d.store.InsertBatch(ctx, d.batch)
	if err != nil {
		log.Error().Err(err).
			Int("events", len(d.batch)).
			Msg("batch insert failed, dropping batch")
	} else if n > 0 {
		log.Debug().Int64("inserted", n).Int("batch", len(d.batch)).Msg("batch flushed")
	}
	d.batch = d.batch[:0]
}

// finalFlush runs with its own deadline because the run context is already
// canceled during shutdown.
func (d *Driver) finalFlush() {
	if len(d.batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.flush(ctx)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
