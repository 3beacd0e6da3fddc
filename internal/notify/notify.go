// Package notify delivers trade notifications without ever blocking the
// pipeline. Messages are handed off through a buffered channel and dropped
// when the consumer falls behind.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/NitishMaximus/ghost-curve/internal/models"
)

// Notifier receives executed trades. Send must never block.
type Notifier interface {
	TradeExecuted(trade *models.SimulatedTrade)
	Close()
}

// LogNotifier is the default sink: it logs each executed trade from a
// dedicated worker so slow output cannot stall the processor.
type LogNotifier struct {
	ch     chan *models.SimulatedTrade
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLogNotifier(buffer int) *LogNotifier {
	if buffer <= 0 {
		buffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &LogNotifier{
		ch:     make(chan *models.SimulatedTrade, buffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go n.run(ctx)
	return n
}

// TradeExecuted enqueues the trade, dropping it when the buffer is full.
func (n *LogNotifier) TradeExecuted(trade *models.SimulatedTrade) {
	select {
	case n.ch <- trade:
	default:
		log.Debug().Str("mint", trade.Mint).Msg("notification dropped, buffer full")
	}
}

func (n *LogNotifier) run(ctx context.Context) {
	defer close(n.done)
	for {
		select {
		case <-ctx.Done():
			return
		case trade := <-n.ch:
			event := log.Info().
				Str("mint", trade.Mint).
				Str("side", string(trade.Side)).
				Str("sol", trade.SolAmount.String()).
				Str("tokens", trade.TokenAmount.String()).
				Str("price", trade.SimulatedPrice.String())
			if trade.RealizedPnl.Valid {
				event = event.Str("realized_pnl", trade.RealizedPnl.Decimal.String())
			}
			event.Msg("trade executed")
		}
	}
}

// Close stops the worker. Buffered but undelivered messages are discarded.
func (n *LogNotifier) Close() {
	n.cancel()
	<-n.done
}

// Discard is a Notifier that ignores everything. Used in replay runs where
// per-trade output would only slow the drain.
type Discard struct{}

func (Discard) TradeExecuted(*models.SimulatedTrade) {}
func (Discard) Close()                               {}
