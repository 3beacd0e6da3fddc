package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// DB wraps the shared Postgres connection pool.
type DB struct {
	db *sqlx.DB
}

// Open connects to Postgres, applies the schema and returns the pool.
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int, connMaxLifetime time.Duration) (*DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if maxOpen <= 0 {
		maxOpen = 10
	}
	if maxIdle <= 0 {
		maxIdle = 5
	}
	if connMaxLifetime <= 0 {
		connMaxLifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Msg("database initialized")
	return &DB{db: db}, nil
}

// NewWithDB wraps an existing pool; tests inject sqlmock through here.
func NewWithDB(db *sqlx.DB) *DB {
	return &DB{db: db}
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS trade_events (
		id                BIGSERIAL PRIMARY KEY,
		signature         TEXT NOT NULL UNIQUE,
		mint              TEXT NOT NULL,
		trader            TEXT NOT NULL,
		side              TEXT NOT NULL,
		token_amount      NUMERIC(28,12) NOT NULL,
		sol_amount        NUMERIC(18,9) NOT NULL,
		new_token_balance NUMERIC(28,12) NOT NULL,
		curve_key         TEXT NOT NULL,
		v_tokens_post     NUMERIC(28,12) NOT NULL,
		v_sol_post        NUMERIC(18,9) NOT NULL,
		market_cap_sol    NUMERIC(18,9) NOT NULL,
		pool              TEXT NOT NULL DEFAULT '',
		received_at       TIMESTAMPTZ NOT NULL,
		ingested_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_trade_events_trader_received
		ON trade_events (trader, received_at);
	CREATE INDEX IF NOT EXISTS idx_trade_events_mint
		ON trade_events (mint);

	CREATE TABLE IF NOT EXISTS simulation_sessions (
		id                  UUID PRIMARY KEY,
		started_at          TIMESTAMPTZ NOT NULL,
		ended_at            TIMESTAMPTZ,
		mode                TEXT NOT NULL,
		config_json         TEXT NOT NULL,
		initial_sol_balance NUMERIC(18,9) NOT NULL,
		final_sol_balance   NUMERIC(18,9)
	);

	CREATE TABLE IF NOT EXISTS simulated_trades (
		id                    BIGSERIAL PRIMARY KEY,
		session_id            UUID NOT NULL REFERENCES simulation_sessions(id),
		source_trade_event_id BIGINT NOT NULL,
		mint                  TEXT NOT NULL,
		side                  TEXT NOT NULL,
		sol_amount            NUMERIC(18,9) NOT NULL,
		token_amount          NUMERIC(28,12) NOT NULL,
		simulated_price       NUMERIC(28,18) NOT NULL,
		slippage_bps          NUMERIC(8,2) NOT NULL,
		delay_ms              BIGINT NOT NULL,
		executed_at           TIMESTAMPTZ NOT NULL,
		v_tokens_at_execution NUMERIC(28,12) NOT NULL,
		v_sol_at_execution    NUMERIC(18,9) NOT NULL,
		realized_pnl          NUMERIC(18,9)
	);

	CREATE INDEX IF NOT EXISTS idx_simulated_trades_session
		ON simulated_trades (session_id, executed_at);

	CREATE TABLE IF NOT EXISTS performance_snapshots (
		id                   BIGSERIAL PRIMARY KEY,
		session_id           UUID NOT NULL REFERENCES simulation_sessions(id),
		taken_at             TIMESTAMPTZ NOT NULL,
		total_trades         BIGINT NOT NULL,
		win_count            BIGINT NOT NULL,
		loss_count           BIGINT NOT NULL,
		win_rate_percent     NUMERIC(8,4) NOT NULL,
		avg_roi_percent      NUMERIC(8,4) NOT NULL,
		total_realized_pnl   NUMERIC(18,9) NOT NULL,
		unrealized_pnl       NUMERIC(18,9) NOT NULL,
		max_drawdown_percent NUMERIC(8,4) NOT NULL,
		sol_balance          NUMERIC(18,9) NOT NULL,
		total_value_sol      NUMERIC(18,9) NOT NULL,
		open_positions       INT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_performance_snapshots_session
		ON performance_snapshots (session_id, taken_at);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the pool.
func (d *DB) Close() error {
	return d.db.Close()
}
