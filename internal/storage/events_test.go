package storage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NitishMaximus/ghost-curve/internal/models"
)

func init() {
	sqlx.BindDriver("sqlmock", sqlx.DOLLAR)
}

func newMockStore(t *testing.T) (*EventStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewEventStore(NewWithDB(db)), mock
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleEvent(sig string, received time.Time) *models.TradeEvent {
	return &models.TradeEvent{
		Signature:       sig,
		Mint:            "9BB6NFEcjBCtnNLFko2FqVQBq8HHM13kCyYcdQbgpump",
		Trader:          "suqh5sHtr8HyJ7q8scBimULPkPpA557prMG47xCHQfK",
		Side:            models.SideBuy,
		TokenAmount:     dec("32258064.516129"),
		SolAmount:       dec("1.0"),
		NewTokenBalance: dec("32258064.516129"),
		CurveKey:        "curve1",
		VTokensPost:     dec("967741935.483871"),
		VSolPost:        dec("31.0"),
		MarketCapSol:    dec("32.03"),
		Pool:            models.PoolPump,
		ReceivedAt:      received,
	}
}

func TestInsertBatchEmpty(t *testing.T) {
	store, mock := newMockStore(t)

	n, err := store.InsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchCopiesThenInsertsIgnoringDuplicates(t *testing.T) {
	store, mock := newMockStore(t)
	received := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := []*models.TradeEvent{
		sampleEvent("sig1", received),
		sampleEvent("sig2", received.Add(time.Millisecond)),
		sampleEvent("sig2", received.Add(2*time.Millisecond)), // duplicate
	}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE trade_events_load").
		WillReturnResult(sqlmock.NewResult(0, 0))

	copyStmt := regexp.QuoteMeta(pq.CopyIn("trade_events_load", eventColumns...))
	prep := mock.ExpectPrepare(copyStmt)
	for range events {
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	}
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0)) // flush

	// Two of three land; the duplicate signature is silently dropped.
	mock.ExpectExec("INSERT INTO trade_events").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := store.InsertBatch(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchRollsBackOnCopyFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE trade_events_load").
		WillReturnResult(sqlmock.NewResult(0, 0))
	copyStmt := regexp.QuoteMeta(pq.CopyIn("trade_events_load", eventColumns...))
	prep := mock.ExpectPrepare(copyStmt)
	prep.ExpectExec().WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := store.InsertBatch(context.Background(), []*models.TradeEvent{
		sampleEvent("sig1", time.Now().UTC()),
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "signature", "mint", "trader", "side",
		"token_amount", "sol_amount", "new_token_balance", "curve_key",
		"v_tokens_post", "v_sol_post", "market_cap_sol", "pool",
		"received_at", "ingested_at",
	})
}

func TestStreamRangeYieldsOrderedEvents(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	rows := eventRows().
		AddRow(int64(1), "sig1", "mintA", "traderA", "buy",
			"32258064.516129", "1.0", "32258064.516129", "curve1",
			"967741935.483871", "31.0", "32.03", "pump",
			from.Add(time.Hour), from.Add(time.Hour)).
		AddRow(int64(2), "sig2", "mintA", "traderA", "sell",
			"32258064.516129", "0.96", "0", "curve1",
			"1000000000", "30.04", "31.0", "pump",
			from.Add(2*time.Hour), from.Add(2*time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM trade_events").
		WithArgs(from, to).
		WillReturnRows(rows)

	it, err := store.StreamRange(context.Background(), from, to)
	require.NoError(t, err)
	defer it.Close()

	var got []models.TradeEvent
	for it.Next() {
		got = append(got, *it.Event())
	}
	require.NoError(t, it.Err())
	require.Len(t, got, 2)

	assert.Equal(t, "sig1", got[0].Signature)
	assert.Equal(t, models.SideBuy, got[0].Side)
	assert.True(t, got[0].SolAmount.Equal(dec("1.0")))
	assert.Equal(t, "sig2", got[1].Signature)
	assert.Equal(t, models.SideSell, got[1].Side)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStreamByTraderFiltersOnKey(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM trade_events").
		WithArgs("traderA", from, to).
		WillReturnRows(eventRows())

	it, err := store.StreamByTrader(context.Background(), "traderA", from, to)
	require.NoError(t, err)
	defer it.Close()

	assert.False(t, it.Next())
	require.NoError(t, it.Err())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountRange(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	mock.ExpectQuery("SELECT count").
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := store.CountRange(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}
