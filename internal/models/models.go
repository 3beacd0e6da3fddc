package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Persisted decimal scales. Columns are NUMERIC(28,12) for token amounts,
// NUMERIC(18,9) for SOL amounts, NUMERIC(28,18) for unit prices,
// NUMERIC(8,2) for bps and NUMERIC(8,4) for percentages.
const (
	TokenScale   = 12
	SolScale     = 9
	PriceScale   = 18
	BpsScale     = 2
	PercentScale = 4
)

// TradeSide is the direction of an upstream trade.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// EventSource tags where an event entered the pipeline. Runtime-only,
// never persisted.
type EventSource string

const (
	SourceLive   EventSource = "live"
	SourceReplay EventSource = "replay"
)

// PoolPump is the sentinel pool value meaning "still on the bonding curve".
// Anything else indicates the token migrated to an external AMM.
const PoolPump = "pump"

// TradeEvent is a single observed upstream trade. Append-only once stored;
// (ReceivedAt, ID) is the total order of the log.
type TradeEvent struct {
	ID              int64           `db:"id"`
	Signature       string          `db:"signature"`
	Mint            string          `db:"mint"`
	Trader          string          `db:"trader"`
	Side            TradeSide       `db:"side"`
	TokenAmount     decimal.Decimal `db:"token_amount"`
	SolAmount       decimal.Decimal `db:"sol_amount"`
	NewTokenBalance decimal.Decimal `db:"new_token_balance"`
	CurveKey        string          `db:"curve_key"`
	VTokensPost     decimal.Decimal `db:"v_tokens_post"`
	VSolPost        decimal.Decimal `db:"v_sol_post"`
	MarketCapSol    decimal.Decimal `db:"market_cap_sol"`
	Pool            string          `db:"pool"`
	ReceivedAt      time.Time       `db:"received_at"`
	IngestedAt      time.Time       `db:"ingested_at"`

	Source EventSource `db:"-"`
}

// Migrated reports whether the event carries a pool tag other than the
// bonding-curve sentinel.
func (e *TradeEvent) Migrated() bool {
	return e.Pool != "" && e.Pool != PoolPump
}

// SimulatedTrade captures one synthetic fill produced by the executor.
type SimulatedTrade struct {
	ID                 int64               `db:"id"`
	SessionID          uuid.UUID           `db:"session_id"`
	SourceTradeEventID int64               `db:"source_trade_event_id"`
	Mint               string              `db:"mint"`
	Side               TradeSide           `db:"side"`
	SolAmount          decimal.Decimal     `db:"sol_amount"`
	TokenAmount        decimal.Decimal     `db:"token_amount"`
	SimulatedPrice     decimal.Decimal     `db:"simulated_price"`
	SlippageBps        decimal.Decimal     `db:"slippage_bps"`
	DelayMs            int64               `db:"delay_ms"`
	ExecutedAt         time.Time           `db:"executed_at"`
	VTokensAtExecution decimal.Decimal     `db:"v_tokens_at_execution"`
	VSolAtExecution    decimal.Decimal     `db:"v_sol_at_execution"`
	RealizedPnl        decimal.NullDecimal `db:"realized_pnl"`
}

// SimulationSession is one contiguous run with a single immutable config.
type SimulationSession struct {
	ID                uuid.UUID           `db:"id"`
	StartedAt         time.Time           `db:"started_at"`
	EndedAt           *time.Time          `db:"ended_at"`
	Mode              EventSource         `db:"mode"`
	ConfigJSON        string              `db:"config_json"`
	InitialSolBalance decimal.Decimal     `db:"initial_sol_balance"`
	FinalSolBalance   decimal.NullDecimal `db:"final_sol_balance"`
}

// PerformanceSnapshot is a frozen projection of wallet and metrics state.
type PerformanceSnapshot struct {
	ID                 int64           `db:"id"`
	SessionID          uuid.UUID       `db:"session_id"`
	TakenAt            time.Time       `db:"taken_at"`
	TotalTrades        int64           `db:"total_trades"`
	WinCount           int64           `db:"win_count"`
	LossCount          int64           `db:"loss_count"`
	WinRatePercent     decimal.Decimal `db:"win_rate_percent"`
	AvgRoiPercent      decimal.Decimal `db:"avg_roi_percent"`
	TotalRealizedPnl   decimal.Decimal `db:"total_realized_pnl"`
	UnrealizedPnl      decimal.Decimal `db:"unrealized_pnl"`
	MaxDrawdownPercent decimal.Decimal `db:"max_drawdown_percent"`
	SolBalance         decimal.Decimal `db:"sol_balance"`
	TotalValueSol      decimal.Decimal `db:"total_value_sol"`
	OpenPositions      int             `db:"open_positions"`
}
