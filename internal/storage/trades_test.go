package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NitishMaximus/ghost-curve/internal/models"
)

func newMockTradeStore(t *testing.T) (*TradeStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewTradeStore(NewWithDB(db)), mock
}

func TestCreateAndCloseSession(t *testing.T) {
	store, mock := newMockTradeStore(t)
	id := uuid.New()
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO simulation_sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.CreateSession(context.Background(), &models.SimulationSession{
		ID:                id,
		StartedAt:         started,
		Mode:              models.SourceLive,
		ConfigJSON:        `{"initial_sol_balance":"10"}`,
		InitialSolBalance: dec("10"),
	})
	require.NoError(t, err)

	mock.ExpectExec("UPDATE simulation_sessions").
		WithArgs(id, started.Add(time.Hour), dec("10.5")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.CloseSession(context.Background(), id, started.Add(time.Hour), dec("10.5"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTradeReturnsID(t *testing.T) {
	store, mock := newMockTradeStore(t)

	mock.ExpectQuery("INSERT INTO simulated_trades").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := store.InsertTrade(context.Background(), &models.SimulatedTrade{
		SessionID:          uuid.New(),
		SourceTradeEventID: 1,
		Mint:               "mintA",
		Side:               models.SideBuy,
		SolAmount:          dec("1.0"),
		TokenAmount:        dec("30861547"),
		SimulatedPrice:     dec("0.000000032"),
		SlippageBps:        dec("433.33"),
		ExecutedAt:         time.Now().UTC(),
		VTokensAtExecution: dec("1000000000"),
		VSolAtExecution:    dec("30"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentTrades(t *testing.T) {
	store, mock := newMockTradeStore(t)
	sessionID := uuid.New()

	rows := sqlmock.NewRows([]string{
		"id", "session_id", "source_trade_event_id", "mint", "side",
		"sol_amount", "token_amount", "simulated_price", "slippage_bps",
		"delay_ms", "executed_at", "v_tokens_at_execution", "v_sol_at_execution",
		"realized_pnl",
	}).AddRow(
		int64(2), sessionID.String(), int64(9), "mintA", "sell",
		"0.96", "30861547", "0.000000031", "433.33",
		int64(0), time.Now().UTC(), "1000000000", "30.04",
		"-0.04",
	)

	mock.ExpectQuery("SELECT (.+) FROM simulated_trades").
		WithArgs(sessionID, 10).
		WillReturnRows(rows)

	trades, err := store.RecentTrades(context.Background(), sessionID, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, models.SideSell, trades[0].Side)
	require.True(t, trades[0].RealizedPnl.Valid)
	assert.True(t, trades[0].RealizedPnl.Decimal.Equal(dec("-0.04")))
}

func TestInsertAndLatestSnapshot(t *testing.T) {
	store, mock := newMockTradeStore(t)
	sessionID := uuid.New()

	mock.ExpectExec("INSERT INTO performance_snapshots").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.InsertSnapshot(context.Background(), &models.PerformanceSnapshot{
		SessionID:     sessionID,
		TakenAt:       time.Now().UTC(),
		SolBalance:    dec("9"),
		TotalValueSol: dec("9.95"),
	})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM performance_snapshots").
		WithArgs(sessionID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "session_id", "taken_at", "total_trades", "win_count",
			"loss_count", "win_rate_percent", "avg_roi_percent",
			"total_realized_pnl", "unrealized_pnl", "max_drawdown_percent",
			"sol_balance", "total_value_sol", "open_positions",
		}).AddRow(
			int64(1), sessionID.String(), time.Now().UTC(), int64(1), int64(0),
			int64(0), "0", "0",
			"0", "-0.05", "0.5",
			"9", "9.95", 1,
		))

	snap, err := store.LatestSnapshot(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.TotalValueSol.Equal(dec("9.95")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestSnapshotNone(t *testing.T) {
	store, mock := newMockTradeStore(t)
	sessionID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM performance_snapshots").
		WithArgs(sessionID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	snap, err := store.LatestSnapshot(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Nil(t, snap)
}
