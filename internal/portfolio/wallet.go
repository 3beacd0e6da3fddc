package portfolio

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Position is one open holding, VWAP-accounted.
type Position struct {
	Mint           string
	TokenBalance   decimal.Decimal
	TotalCostBasis decimal.Decimal
	OpenedAt       time.Time
	VSolAtOpen     decimal.Decimal
	BuyCount       int64
	SellCount      int64
}

// AvgEntryPrice is the volume-weighted average cost per token.
func (p *Position) AvgEntryPrice() decimal.Decimal {
	if p.TokenBalance.Sign() <= 0 {
		return decimal.Zero
	}
	return p.TotalCostBasis.Div(p.TokenBalance)
}

// IsClosed reports whether the position holds nothing.
func (p *Position) IsClosed() bool {
	return p.TokenBalance.Sign() <= 0
}

// VirtualWallet is the simulated portfolio. It is single-owner state: only
// the processor goroutine may touch it, so there is no locking here.
type VirtualWallet struct {
	SolBalance           decimal.Decimal
	Positions            map[string]*Position
	TotalRealizedPnl     decimal.Decimal
	CumulativeRoiPercent decimal.Decimal
	TotalTradeCount      int64
	WinCount             int64
	LossCount            int64
	HighWaterMark        decimal.Decimal
	MaxDrawdownPercent   decimal.Decimal

	initial decimal.Decimal
}

// NewVirtualWallet creates a wallet funded with the initial SOL balance. The
// high-water mark starts at the initial balance.
func NewVirtualWallet(initial decimal.Decimal) *VirtualWallet {
	return &VirtualWallet{
		SolBalance:    initial,
		Positions:     make(map[string]*Position),
		HighWaterMark: initial,
		initial:       initial,
	}
}

// InitialBalance returns the funding amount the wallet started with.
func (w *VirtualWallet) InitialBalance() decimal.Decimal {
	return w.initial
}

// RecordBuy spends solAmount for tokenAmount of mint, merging into an
// existing position or opening a new one. A buy the balance cannot cover is
// a logged no-op; counters are untouched.
func (w *VirtualWallet) RecordBuy(mint string, solAmount, tokenAmount, vSolAtOpen decimal.Decimal, at time.Time) bool {
	if w.SolBalance.LessThan(solAmount) {
		log.Warn().
			Str("mint", mint).
			Str("balance", w.SolBalance.String()).
			Str("needed", solAmount.String()).
			Msg("insufficient SOL, buy skipped")
		return false
	}

	w.SolBalance = w.SolBalance.Sub(solAmount)
	w.TotalTradeCount++

	pos, ok := w.Positions[mint]
	if !ok {
		pos = &Position{
			Mint:       mint,
			OpenedAt:   at,
			VSolAtOpen: vSolAtOpen,
		}
		w.Positions[mint] = pos
	}
	pos.TokenBalance = pos.TokenBalance.Add(tokenAmount)
	pos.TotalCostBasis = pos.TotalCostBasis.Add(solAmount)
	pos.BuyCount++
	return true
}

// RecordSell converts requestedTokens of mint back into SOL at the
// slippage-adjusted fill rate implied by requestedSol. The sell clamps to
// the held balance; the proportional share of the cost basis is realized
// against the proceeds. Returns the realized PnL and whether any mutation
// happened.
func (w *VirtualWallet) RecordSell(mint string, requestedTokens, requestedSol decimal.Decimal) (decimal.Decimal, bool) {
	pos, ok := w.Positions[mint]
	if !ok {
		log.Warn().Str("mint", mint).Msg("sell with no open position, skipped")
		return decimal.Zero, false
	}

	soldTokens := requestedTokens
	if soldTokens.GreaterThan(pos.TokenBalance) {
		soldTokens = pos.TokenBalance
	}

	// Proportions are computed against pre-mutation state.
	proportionSold := soldTokens.Div(pos.TokenBalance)
	costBasisSold := pos.TotalCostBasis.Mul(proportionSold)

	actualSol := decimal.Zero
	if requestedTokens.Sign() > 0 {
		// Scaling by sold/requested keeps the per-token fill rate of a
		// partially honored sell.
		actualSol = requestedSol.Mul(soldTokens.Div(requestedTokens))
	}

	realizedPnl := actualSol.Sub(costBasisSold)

	w.SolBalance = w.SolBalance.Add(actualSol)
	pos.TokenBalance = pos.TokenBalance.Sub(soldTokens)
	pos.TotalCostBasis = pos.TotalCostBasis.Sub(costBasisSold)
	pos.SellCount++
	w.TotalTradeCount++

	w.TotalRealizedPnl = w.TotalRealizedPnl.Add(realizedPnl)
	if realizedPnl.Sign() > 0 {
		w.WinCount++
	} else {
		w.LossCount++
	}
	if costBasisSold.Sign() > 0 {
		w.CumulativeRoiPercent = w.CumulativeRoiPercent.Add(realizedPnl.Div(costBasisSold).Mul(hundred))
	}

	if pos.IsClosed() {
		delete(w.Positions, mint)
	}
	return realizedPnl, true
}

// UnrealizedPnl marks open positions to market with priceFn.
func (w *VirtualWallet) UnrealizedPnl(priceFn func(mint string) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for mint, pos := range w.Positions {
		if pos.TokenBalance.Sign() <= 0 {
			continue
		}
		value := pos.TokenBalance.Mul(priceFn(mint))
		total = total.Add(value.Sub(pos.TotalCostBasis))
	}
	return total
}

// TotalValue is the SOL balance plus the marked value of every holding.
func (w *VirtualWallet) TotalValue(priceFn func(mint string) decimal.Decimal) decimal.Decimal {
	total := w.SolBalance
	for mint, pos := range w.Positions {
		if pos.TokenBalance.Sign() <= 0 {
			continue
		}
		total = total.Add(pos.TokenBalance.Mul(priceFn(mint)))
	}
	return total
}

// UpdateDrawdown advances the high-water mark and records the worst
// peak-to-trough decline seen so far. Both are non-decreasing.
func (w *VirtualWallet) UpdateDrawdown(currentValue decimal.Decimal) {
	if currentValue.GreaterThan(w.HighWaterMark) {
		w.HighWaterMark = currentValue
	}
	if w.HighWaterMark.Sign() > 0 {
		dd := w.HighWaterMark.Sub(currentValue).Div(w.HighWaterMark).Mul(hundred)
		if dd.GreaterThan(w.MaxDrawdownPercent) {
			w.MaxDrawdownPercent = dd
		}
	}
}

// Reset discards all state and refunds the wallet.
func (w *VirtualWallet) Reset(initial decimal.Decimal) {
	*w = *NewVirtualWallet(initial)
}
