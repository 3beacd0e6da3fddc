package portfolio

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NitishMaximus/ghost-curve/internal/models"
)

func TestResolveCurrentPrice(t *testing.T) {
	m := NewMetrics()
	if m.ResolveCurrentPrice("unknown").Sign() != 0 {
		t.Error("unknown mint must price at zero")
	}

	m.Observe(&models.TradeEvent{
		Mint:        "mintA",
		VTokensPost: dec("1000000000"),
		VSolPost:    dec("30"),
	})
	if !m.ResolveCurrentPrice("mintA").Equal(dec("0.00000003")) {
		t.Errorf("price: got %s", m.ResolveCurrentPrice("mintA"))
	}

	// Later events overwrite the cache.
	m.Observe(&models.TradeEvent{
		Mint:        "mintA",
		VTokensPost: dec("500000000"),
		VSolPost:    dec("30"),
	})
	if !m.ResolveCurrentPrice("mintA").Equal(dec("0.00000006")) {
		t.Errorf("price after update: got %s", m.ResolveCurrentPrice("mintA"))
	}
}

func TestResolveCurrentPriceDegenerateReserves(t *testing.T) {
	m := NewMetrics()
	m.Observe(&models.TradeEvent{Mint: "bad", VTokensPost: decimal.Zero, VSolPost: dec("1")})
	if m.ResolveCurrentPrice("bad").Sign() != 0 {
		t.Error("degenerate reserves must price at zero")
	}
}

func TestTakeSnapshot(t *testing.T) {
	m := NewMetrics()
	w := NewVirtualWallet(dec("10"))
	sessionID := uuid.New()

	// No closed trades yet: rates are zero, not NaN.
	snap := m.TakeSnapshot(sessionID, w, now)
	if snap.WinRatePercent.Sign() != 0 || snap.AvgRoiPercent.Sign() != 0 {
		t.Error("zero-denominator rates must be zero")
	}
	if !snap.SolBalance.Equal(dec("10")) || !snap.TotalValueSol.Equal(dec("10")) {
		t.Error("empty wallet snapshot wrong")
	}

	m.Observe(&models.TradeEvent{Mint: "a", VTokensPost: dec("100"), VSolPost: dec("2")})
	w.RecordBuy("a", dec("1"), dec("100"), dec("2"), now)
	w.RecordSell("a", dec("50"), dec("0.75"))

	snap = m.TakeSnapshot(sessionID, w, now)
	if snap.TotalTrades != 2 || snap.WinCount != 1 {
		t.Errorf("counts: trades=%d wins=%d", snap.TotalTrades, snap.WinCount)
	}
	if !snap.WinRatePercent.Equal(dec("100")) {
		t.Errorf("win rate: got %s", snap.WinRatePercent)
	}
	// 50 tokens left at spot 0.02 = 1 SOL value, cost basis 0.5 remaining
	if !snap.UnrealizedPnl.Equal(dec("0.5")) {
		t.Errorf("unrealized: got %s", snap.UnrealizedPnl)
	}
	if snap.OpenPositions != 1 {
		t.Errorf("open positions: got %d", snap.OpenPositions)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.Observe(&models.TradeEvent{Mint: "a", VTokensPost: dec("100"), VSolPost: dec("2")})
	m.Reset()
	if m.ResolveCurrentPrice("a").Sign() != 0 {
		t.Error("reset must clear the curve cache")
	}
}
