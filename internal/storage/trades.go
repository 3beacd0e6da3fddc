package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/NitishMaximus/ghost-curve/internal/models"
)

// TradeStore persists simulated trades, sessions and snapshots. All
// operations are unit-granular; only the event log needs batching.
type TradeStore struct {
	db *sqlx.DB
}

func NewTradeStore(db *DB) *TradeStore {
	return &TradeStore{db: db.db}
}

// CreateSession writes the session row at startup.
func (s *TradeStore) CreateSession(ctx context.Context, session *models.SimulationSession) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO simulation_sessions
			(id, started_at, mode, config_json, initial_sol_balance)
		VALUES
			(:id, :started_at, :mode, :config_json, :initial_sol_balance)`,
		session)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// CloseSession records the end of a run.
func (s *TradeStore) CloseSession(ctx context.Context, id uuid.UUID, endedAt time.Time, finalBalance decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE simulation_sessions
		SET ended_at = $2, final_sol_balance = $3
		WHERE id = $1`,
		id, endedAt.UTC(), finalBalance)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// GetSession fetches one session row, or nil when it does not exist.
func (s *TradeStore) GetSession(ctx context.Context, id uuid.UUID) (*models.SimulationSession, error) {
	var session models.SimulationSession
	err := s.db.GetContext(ctx, &session, `
		SELECT id, started_at, ended_at, mode, config_json,
		       initial_sol_balance, final_sol_balance
		FROM simulation_sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// InsertTrade persists one synthetic fill and returns its id.
func (s *TradeStore) InsertTrade(ctx context.Context, trade *models.SimulatedTrade) (int64, error) {
	rows, err := s.db.NamedQueryContext(ctx, `
		INSERT INTO simulated_trades
			(session_id, source_trade_event_id, mint, side,
			 sol_amount, token_amount, simulated_price, slippage_bps,
			 delay_ms, executed_at, v_tokens_at_execution, v_sol_at_execution,
			 realized_pnl)
		VALUES
			(:session_id, :source_trade_event_id, :mint, :side,
			 :sol_amount, :token_amount, :simulated_price, :slippage_bps,
			 :delay_ms, :executed_at, :v_tokens_at_execution, :v_sol_at_execution,
			 :realized_pnl)
		RETURNING id`,
		trade)
	if err != nil {
		return 0, fmt.Errorf("insert trade: %w", err)
	}
	defer rows.Close()

	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan trade id: %w", err)
		}
	}
	return id, rows.Err()
}

// RecentTrades returns the latest fills of a session, newest first.
func (s *TradeStore) RecentTrades(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.SimulatedTrade, error) {
	var trades []models.SimulatedTrade
	err := s.db.SelectContext(ctx, &trades, `
		SELECT id, session_id, source_trade_event_id, mint, side,
		       sol_amount, token_amount, simulated_price, slippage_bps,
		       delay_ms, executed_at, v_tokens_at_execution, v_sol_at_execution,
		       realized_pnl
		FROM simulated_trades
		WHERE session_id = $1
		ORDER BY executed_at DESC, id DESC
		LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent trades: %w", err)
	}
	return trades, nil
}

// InsertSnapshot persists a performance snapshot.
func (s *TradeStore) InsertSnapshot(ctx context.Context, snap *models.PerformanceSnapshot) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO performance_snapshots
			(session_id, taken_at, total_trades, win_count, loss_count,
			 win_rate_percent, avg_roi_percent, total_realized_pnl,
			 unrealized_pnl, max_drawdown_percent, sol_balance,
			 total_value_sol, open_positions)
		VALUES
			(:session_id, :taken_at, :total_trades, :win_count, :loss_count,
			 :win_rate_percent, :avg_roi_percent, :total_realized_pnl,
			 :unrealized_pnl, :max_drawdown_percent, :sol_balance,
			 :total_value_sol, :open_positions)`,
		snap)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot of a session, or nil when
// none has been taken yet.
func (s *TradeStore) LatestSnapshot(ctx context.Context, sessionID uuid.UUID) (*models.PerformanceSnapshot, error) {
	var snaps []models.PerformanceSnapshot
	err := s.db.SelectContext(ctx, &snaps, `
		SELECT id, session_id, taken_at, total_trades, win_count, loss_count,
		       win_rate_percent, avg_roi_percent, total_realized_pnl,
		       unrealized_pnl, max_drawdown_percent, sol_balance,
		       total_value_sol, open_positions
		FROM performance_snapshots
		WHERE session_id = $1
		ORDER BY taken_at DESC, id DESC
		LIMIT 1`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}
