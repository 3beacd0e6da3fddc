package curve

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidCurve means the virtual reserves cannot price anything.
	ErrInvalidCurve = errors.New("invalid curve: non-positive virtual token reserve")
	// ErrInvalidInput means an amount or reserve argument was non-positive.
	ErrInvalidInput = errors.New("invalid input: amounts and reserves must be positive")
)

// SpotPrice returns the instantaneous price y/x of the constant-product
// curve with virtual reserves (x tokens, y SOL).
func SpotPrice(vTokens, vSol decimal.Decimal) (decimal.Decimal, error) {
	if vTokens.Sign() <= 0 {
		return decimal.Zero, ErrInvalidCurve
	}
	return vSol.Div(vTokens), nil
}

// TokensOut returns the token amount received for solIn SOL against reserves
// (x, y), holding k = x*y constant: out = x - k/(y + solIn). Clamped to zero.
func TokensOut(solIn, vTokens, vSol decimal.Decimal) (decimal.Decimal, error) {
	if solIn.Sign() <= 0 || vTokens.Sign() <= 0 || vSol.Sign() <= 0 {
		return decimal.Zero, ErrInvalidInput
	}
	k := vTokens.Mul(vSol)
	out := vTokens.Sub(k.Div(vSol.Add(solIn)))
	if out.Sign() < 0 {
		return decimal.Zero, nil
	}
	return out, nil
}

// SolOut returns the SOL amount received for tokensIn tokens against
// reserves (x, y): out = y - k/(x + tokensIn). Clamped to zero.
func SolOut(tokensIn, vTokens, vSol decimal.Decimal) (decimal.Decimal, error) {
	if tokensIn.Sign() <= 0 || vTokens.Sign() <= 0 || vSol.Sign() <= 0 {
		return decimal.Zero, ErrInvalidInput
	}
	k := vTokens.Mul(vSol)
	out := vSol.Sub(k.Div(vTokens.Add(tokensIn)))
	if out.Sign() < 0 {
		return decimal.Zero, nil
	}
	return out, nil
}
