package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/NitishMaximus/ghost-curve/internal/models"
)

// EventStore is the append-only trade event log.
type EventStore struct {
	db *sqlx.DB
}

func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db.db}
}

var eventColumns = []string{
	"signature", "mint", "trader", "side",
	"token_amount", "sol_amount", "new_token_balance", "curve_key",
	"v_tokens_post", "v_sol_post", "market_cap_sol", "pool",
	"received_at",
}

const eventColumnList = `signature, mint, trader, side,
	token_amount, sol_amount, new_token_balance, curve_key,
	v_tokens_post, v_sol_post, market_cap_sol, pool,
	received_at`

const eventSelectList = "id, " + eventColumnList + ", ingested_at"

// InsertBatch bulk-loads an ordered batch through the COPY protocol into a
// per-transaction scratch table, then moves rows into the permanent table
// ignoring duplicate signatures. Returns the number of rows actually
// inserted. This is the hot path of live ingest; one round trip per batch,
// not per row.
func (s *EventStore) InsertBatch(ctx context.Context, events []*models.TradeEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		CREATE TEMP TABLE trade_events_load (
			signature         TEXT,
			mint              TEXT,
			trader            TEXT,
			side              TEXT,
			token_amount      NUMERIC(28,12),
			sol_amount        NUMERIC(18,9),
			new_token_balance NUMERIC(28,12),
			curve_key         TEXT,
			v_tokens_post     NUMERIC(28,12),
			v_sol_post        NUMERIC(18,9),
			market_cap_sol    NUMERIC(18,9),
			pool              TEXT,
			received_at       TIMESTAMPTZ
		) ON COMMIT DROP`)
	if err != nil {
		return 0, fmt.Errorf("create scratch table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("trade_events_load", eventColumns...))
	if err != nil {
		return 0, fmt.Errorf("prepare copy: %w", err)
	}

	for _, e := range events {
		_, err = stmt.ExecContext(ctx,
			e.Signature, e.Mint, e.Trader, string(e.Side),
			e.TokenAmount, e.SolAmount, e.NewTokenBalance, e.CurveKey,
			e.VTokensPost, e.VSolPost, e.MarketCapSol, e.Pool,
			e.ReceivedAt.UTC(),
		)
		if err != nil {
			stmt.Close()
			return 0, fmt.Errorf("copy row: %w", err)
		}
	}
	// Empty exec flushes the COPY buffer.
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("flush copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return 0, fmt.Errorf("close copy: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO trade_events (`+eventColumnList+`)
		SELECT `+eventColumnList+`
		FROM trade_events_load
		ON CONFLICT (signature) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("insert from scratch: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	if skipped := int64(len(events)) - inserted; skipped > 0 {
		log.Debug().Int64("skipped", skipped).Msg("duplicate signatures ignored on batch insert")
	}
	return inserted, nil
}

// EventIterator is a lazy, forward-only cursor over stored events. The
// caller must Close it; cancellation of the query context aborts iteration.
type EventIterator struct {
	rows    *sqlx.Rows
	current models.TradeEvent
	err     error
}

// Next advances the iterator. It returns false at the end of the range or
// on error; check Err afterwards.
func (it *EventIterator) Next() bool {
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}
	if err := it.rows.StructScan(&it.current); err != nil {
		it.err = err
		return false
	}
	return true
}

// Event returns the row the last Next call produced.
func (it *EventIterator) Event() *models.TradeEvent {
	return &it.current
}

func (it *EventIterator) Err() error {
	return it.err
}

func (it *EventIterator) Close() error {
	return it.rows.Close()
}

// StreamRange yields events with received_at in [from, to], ordered by
// (received_at, id). Rows are fetched forward off the wire, never
// materialized as a whole.
func (s *EventStore) StreamRange(ctx context.Context, from, to time.Time) (*EventIterator, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT `+eventSelectList+`
		FROM trade_events
		WHERE received_at >= $1 AND received_at <= $2
		ORDER BY received_at, id`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("stream range: %w", err)
	}
	return &EventIterator{rows: rows}, nil
}

// StreamByTrader is StreamRange additionally filtered on the trader key.
func (s *EventStore) StreamByTrader(ctx context.Context, trader string, from, to time.Time) (*EventIterator, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT `+eventSelectList+`
		FROM trade_events
		WHERE trader = $1 AND received_at >= $2 AND received_at <= $3
		ORDER BY received_at, id`,
		trader, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("stream by trader: %w", err)
	}
	return &EventIterator{rows: rows}, nil
}

// CountRange returns the number of events inside [from, to].
func (s *EventStore) CountRange(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `
		SELECT count(*) FROM trade_events
		WHERE received_at >= $1 AND received_at <= $2`,
		from.UTC(), to.UTC())
	if err != nil {
		return 0, fmt.Errorf("count range: %w", err)
	}
	return n, nil
}
