package portfolio

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NitishMaximus/ghost-curve/internal/curve"
	"github.com/NitishMaximus/ghost-curve/internal/models"
)

type curveState struct {
	vTokens decimal.Decimal
	vSol    decimal.Decimal
}

// Metrics caches the most recent virtual reserves per mint and derives
// performance snapshots from wallet state. Owned by the processor; updated
// on every event before any filtering so later positions price correctly.
type Metrics struct {
	curves map[string]curveState
}

func NewMetrics() *Metrics {
	return &Metrics{curves: make(map[string]curveState)}
}

// Observe records the post-trade reserves carried on an event.
func (m *Metrics) Observe(event *models.TradeEvent) {
	m.curves[event.Mint] = curveState{
		vTokens: event.VTokensPost,
		vSol:    event.VSolPost,
	}
}

// ResolveCurrentPrice returns the spot price from the cached reserves, or
// zero when the mint has never been seen.
func (m *Metrics) ResolveCurrentPrice(mint string) decimal.Decimal {
	state, ok := m.curves[mint]
	if !ok {
		return decimal.Zero
	}
	price, err := curve.SpotPrice(state.vTokens, state.vSol)
	if err != nil {
		return decimal.Zero
	}
	return price
}

// TakeSnapshot freezes the wallet and metrics into a PerformanceSnapshot.
func (m *Metrics) TakeSnapshot(sessionID uuid.UUID, wallet *VirtualWallet, at time.Time) models.PerformanceSnapshot {
	closed := wallet.WinCount + wallet.LossCount

	winRate := decimal.Zero
	avgRoi := decimal.Zero
	if closed > 0 {
		denom := decimal.NewFromInt(closed)
		winRate = decimal.NewFromInt(wallet.WinCount).Div(denom).Mul(hundred)
		avgRoi = wallet.CumulativeRoiPercent.Div(denom)
	}

	return models.PerformanceSnapshot{
		SessionID:          sessionID,
		TakenAt:            at,
		TotalTrades:        wallet.TotalTradeCount,
		WinCount:           wallet.WinCount,
		LossCount:          wallet.LossCount,
		WinRatePercent:     winRate,
		AvgRoiPercent:      avgRoi,
		TotalRealizedPnl:   wallet.TotalRealizedPnl,
		UnrealizedPnl:      wallet.UnrealizedPnl(m.ResolveCurrentPrice),
		MaxDrawdownPercent: wallet.MaxDrawdownPercent,
		SolBalance:         wallet.SolBalance,
		TotalValueSol:      wallet.TotalValue(m.ResolveCurrentPrice),
		OpenPositions:      len(wallet.Positions),
	}
}

// Reset clears the curve-state cache.
func (m *Metrics) Reset() {
	m.curves = make(map[string]curveState)
}
