package processor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/NitishMaximus/ghost-curve/internal/ingest"
	"github.com/NitishMaximus/ghost-curve/internal/models"
	"github.com/NitishMaximus/ghost-curve/internal/notify"
	"github.com/NitishMaximus/ghost-curve/internal/portfolio"
	"github.com/NitishMaximus/ghost-curve/internal/sim"
)

// TradeStore is the persistence the processor needs for a session.
type TradeStore interface {
	CreateSession(ctx context.Context, session *models.SimulationSession) error
	CloseSession(ctx context.Context, id uuid.UUID, endedAt time.Time, finalBalance decimal.Decimal) error
	InsertTrade(ctx context.Context, trade *models.SimulatedTrade) (int64, error)
	InsertSnapshot(ctx context.Context, snapshot *models.PerformanceSnapshot) error
}

// Config is the immutable per-session slice of the simulation settings.
type Config struct {
	InitialSolBalance  decimal.Decimal
	PositionSizeSol    decimal.Decimal
	ExecutionDelayMs   int
	MaxTradesPerMinute int
	SnapshotInterval   time.Duration
	SkipMigrated       bool
	Mode               models.EventSource
	ConfigJSON         string
}

// Processor is the queue's single reader and the only mutator of the wallet.
// Per event it updates pricing state, applies the filters, executes through
// the injected executor, mutates the portfolio and persists the fill.
type Processor struct {
	queue    *ingest.Queue
	executor sim.Executor
	wallet   *portfolio.VirtualWallet
	metrics  *portfolio.Metrics
	store    TradeStore
	notifier notify.Notifier
	limiter  *RateLimiter
	cfg      Config

	sessionID    uuid.UUID
	startedAt    time.Time
	lastSnapshot time.Time
}

func New(queue *ingest.Queue, executor sim.Executor, wallet *portfolio.VirtualWallet, metrics *portfolio.Metrics, store TradeStore, notifier notify.Notifier, cfg Config) *Processor {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Processor{
		queue:     queue,
		executor:  executor,
		wallet:    wallet,
		metrics:   metrics,
		store:     store,
		notifier:  notifier,
		limiter:   NewRateLimiter(cfg.MaxTradesPerMinute),
		cfg:       cfg,
		sessionID: uuid.New(),
	}
}

// SessionID identifies the run. Fixed at construction.
func (p *Processor) SessionID() uuid.UUID {
	return p.sessionID
}

// Run opens the session, drains the queue until it is closed and finalizes
// the session. Cancellation stops waiting for new events only after the
// queue is closed by its writer; everything already enqueued is processed.
func (p *Processor) Run(ctx context.Context) error {
	p.startedAt = time.Now().UTC()
	p.lastSnapshot = p.startedAt

	session := &models.SimulationSession{
		ID:                p.sessionID,
		StartedAt:         p.startedAt,
		Mode:              p.cfg.Mode,
		ConfigJSON:        p.cfg.ConfigJSON,
		InitialSolBalance: p.cfg.InitialSolBalance,
	}
	if err := p.store.CreateSession(ctx, session); err != nil {
		return err
	}
	log.Info().
		Str("session_id", p.sessionID.String()).
		Str("mode", string(p.cfg.Mode)).
		Str("initial_sol", p.cfg.InitialSolBalance.String()).
		Msg("session started")

	for event := range p.queue.Events() {
		p.handleEvent(ctx, event)
	}

	p.finalize()
	return nil
}

// handleEvent runs the per-event pipeline. No failure escapes it; anything
// unexpected is logged and the next event proceeds.
func (p *Processor) handleEvent(ctx context.Context, event *models.TradeEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("sig", event.Signature).Msg("event processing panicked")
		}
	}()

	// Even filtered events inform the pricing of later positions.
	p.metrics.Observe(event)

	if p.cfg.SkipMigrated && event.Migrated() {
		log.Debug().Str("mint", event.Mint).Str("pool", event.Pool).Msg("migrated token skipped")
		p.maybeSnapshot(ctx)
		return
	}

	if !p.limiter.Allow(event.Trader, event.ReceivedAt) {
		log.Debug().Str("trader", event.Trader).Msg("rate limited")
		p.maybeSnapshot(ctx)
		return
	}

	if event.Source == models.SourceLive && p.cfg.ExecutionDelayMs > 0 && ctx.Err() == nil {
		p.sleep(ctx, time.Duration(p.cfg.ExecutionDelayMs)*time.Millisecond)
	}

	intent, ok := p.buildIntent(event)
	if !ok {
		p.maybeSnapshot(ctx)
		return
	}

	result, err := p.executor.Execute(ctx, intent)
	if err != nil {
		log.Error().Err(err).Str("sig", event.Signature).Msg("executor error")
		p.maybeSnapshot(ctx)
		return
	}
	if !result.Success {
		log.Debug().
			Str("mint", event.Mint).
			Str("side", string(intent.Side)).
			Str("reason", result.Reason).
			Msg("execution rejected")
		p.maybeSnapshot(ctx)
		return
	}

	trade := p.applyResult(event, intent, result)
	if trade != nil {
		if _, err := p.store.InsertTrade(p.opCtx(ctx), trade); err != nil {
			log.Error().Err(err).Str("mint", trade.Mint).Msg("failed to persist simulated trade")
		}
		p.notifier.TradeExecuted(trade)
	}

	p.maybeSnapshot(ctx)
}

// buildIntent maps an observed trade onto our copy. Precondition failures
// are fail-closed no-ops.
func (p *Processor) buildIntent(event *models.TradeEvent) (sim.TradeIntent, bool) {
	intent := sim.TradeIntent{
		Mint:          event.Mint,
		Side:          event.Side,
		VTokens:       event.VTokensPost,
		VSol:          event.VSolPost,
		SourceEventID: event.ID,
		DelayMs:       int64(p.cfg.ExecutionDelayMs),
	}

	switch event.Side {
	case models.SideBuy:
		if p.wallet.SolBalance.LessThan(p.cfg.PositionSizeSol) {
			log.Warn().
				Str("balance", p.wallet.SolBalance.String()).
				Str("needed", p.cfg.PositionSizeSol.String()).
				Msg("insufficient balance for buy")
			return intent, false
		}
		intent.SolIn = p.cfg.PositionSizeSol
	case models.SideSell:
		position, ok := p.wallet.Positions[event.Mint]
		if !ok {
			log.Debug().Str("mint", event.Mint).Msg("sell without open position")
			return intent, false
		}
		intent.TokensIn = position.TokenBalance
	default:
		return intent, false
	}
	return intent, true
}

// applyResult mutates the wallet and builds the trade row to persist.
func (p *Processor) applyResult(event *models.TradeEvent, intent sim.TradeIntent, result sim.ExecutionResult) *models.SimulatedTrade {
	trade := &models.SimulatedTrade{
		SessionID:          p.sessionID,
		SourceTradeEventID: event.ID,
		Mint:               event.Mint,
		Side:               event.Side,
		SolAmount:          result.SolAmount,
		TokenAmount:        result.TokenAmount,
		SimulatedPrice:     result.EffectivePrice,
		SlippageBps:        result.SlippageBps,
		DelayMs:            intent.DelayMs,
		ExecutedAt:         time.Now().UTC(),
		VTokensAtExecution: event.VTokensPost,
		VSolAtExecution:    event.VSolPost,
	}

	switch event.Side {
	case models.SideBuy:
		if !p.wallet.RecordBuy(event.Mint, result.SolAmount, result.TokenAmount, event.VSolPost, event.ReceivedAt) {
			return nil
		}
	case models.SideSell:
		pnl, ok := p.wallet.RecordSell(event.Mint, intent.TokensIn, result.SolAmount)
		if !ok {
			return nil
		}
		trade.RealizedPnl = decimal.NullDecimal{Decimal: pnl, Valid: true}
	}

	p.wallet.UpdateDrawdown(p.wallet.TotalValue(p.metrics.ResolveCurrentPrice))
	return trade
}

// maybeSnapshot persists a snapshot when the interval has elapsed.
func (p *Processor) maybeSnapshot(ctx context.Context) {
	if p.cfg.SnapshotInterval <= 0 {
		return
	}
	now := time.Now().UTC()
	if now.Sub(p.lastSnapshot) < p.cfg.SnapshotInterval {
		return
	}
	p.lastSnapshot = now
	snapshot := p.metrics.TakeSnapshot(p.sessionID, p.wallet, now)
	if err := p.store.InsertSnapshot(p.opCtx(ctx), &snapshot); err != nil {
		log.Error().Err(err).Msg("failed to persist snapshot")
	}
}

// finalize takes the terminal snapshot and closes the session row.
// Best-effort: the run context may already be canceled, so writes get
// their own deadline.
func (p *Processor) finalize() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	endedAt := time.Now().UTC()
	snapshot := p.metrics.TakeSnapshot(p.sessionID, p.wallet, endedAt)
	if err := p.store.InsertSnapshot(ctx, &snapshot); err != nil {
		log.Error().Err(err).Msg("failed to persist final snapshot")
	}
	if err := p.store.CloseSession(ctx, p.sessionID, endedAt, p.wallet.SolBalance); err != nil {
		log.Error().Err(err).Msg("failed to close session")
	}

	log.Info().
		Str("session_id", p.sessionID.String()).
		Int64("total_trades", p.wallet.TotalTradeCount).
		Int64("wins", p.wallet.WinCount).
		Int64("losses", p.wallet.LossCount).
		Str("final_sol", p.wallet.SolBalance.String()).
		Str("realized_pnl", p.wallet.TotalRealizedPnl.String()).
		Str("max_drawdown_pct", p.wallet.MaxDrawdownPercent.String()).
		Msg("session finished")
}

// opCtx returns the run context while it is live and a fresh one during the
// shutdown drain, so nothing already enqueued is lost to cancellation.
func (p *Processor) opCtx(ctx context.Context) context.Context {
	if ctx.Err() == nil {
		return ctx
	}
	return context.Background()
}

func (p *Processor) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
