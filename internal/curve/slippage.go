package curve

import "github.com/shopspring/decimal"

var tenThousand = decimal.NewFromInt(10000)

// SlippageModel computes deterministic slippage in basis points. Given the
// same inputs and parameters the output never varies; there is no random
// component.
type SlippageModel struct {
	BaseBps           decimal.Decimal
	PriceImpactFactor decimal.Decimal
	MaxBps            decimal.Decimal
}

// Estimate returns the clamped total slippage for a trade of solAmount
// against a curve holding vSol, and whether the unclamped total exceeded the
// cap (the rejection signal). When vSol is non-positive the impact term is
// undefined and only the base applies.
func (m SlippageModel) Estimate(solAmount, vSol decimal.Decimal) (totalBps decimal.Decimal, rejected bool) {
	if vSol.Sign() <= 0 {
		return m.BaseBps, false
	}
	impact := solAmount.Div(vSol).Mul(m.PriceImpactFactor).Mul(tenThousand)
	raw := m.BaseBps.Add(impact)
	if raw.GreaterThan(m.MaxBps) {
		return m.MaxBps, true
	}
	return raw, false
}

// Apply discounts a raw fill amount by bps: amount * (1 - bps/10000).
func ApplySlippage(amount, bps decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(1).Sub(bps.Div(tenThousand)))
}
