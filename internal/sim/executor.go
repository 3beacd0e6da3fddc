package sim

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/NitishMaximus/ghost-curve/internal/curve"
	"github.com/NitishMaximus/ghost-curve/internal/models"
)

// TradeIntent is the executor input. The amount is tagged by side: SolIn is
// set for buys, TokensIn for sells. Virtual reserves are carried on the
// intent so execution depends on nothing but the triggering event.
type TradeIntent struct {
	Mint          string
	Side          models.TradeSide
	SolIn         decimal.Decimal
	TokensIn      decimal.Decimal
	VTokens       decimal.Decimal
	VSol          decimal.Decimal
	SourceEventID int64
	DelayMs       int64
}

// ExecutionResult is the executor output. Rejections (slippage cap, bad
// curve inputs) come back as Success=false with a reason, never as an error,
// so the pipeline keeps moving.
type ExecutionResult struct {
	Success        bool
	TokenAmount    decimal.Decimal
	SolAmount      decimal.Decimal
	EffectivePrice decimal.Decimal
	SlippageBps    decimal.Decimal
	Reason         string
}

// Executor is the seam between the simulation core and a future live path.
// Downstream code must not know which variant is active.
type Executor interface {
	Execute(ctx context.Context, intent TradeIntent) (ExecutionResult, error)
}

// SimExecutor computes synthetic fills from constant-product math plus the
// deterministic slippage model. It is pure: no I/O, no clock, no randomness.
type SimExecutor struct {
	Slippage curve.SlippageModel
}

func NewSimExecutor(slippage curve.SlippageModel) *SimExecutor {
	return &SimExecutor{Slippage: slippage}
}

func (e *SimExecutor) Execute(_ context.Context, intent TradeIntent) (ExecutionResult, error) {
	switch intent.Side {
	case models.SideBuy:
		return e.executeBuy(intent), nil
	case models.SideSell:
		return e.executeSell(intent), nil
	default:
		return reject(decimal.Zero, "unknown trade side"), nil
	}
}

func (e *SimExecutor) executeBuy(intent TradeIntent) ExecutionResult {
	totalBps, rejected := e.Slippage.Estimate(intent.SolIn, intent.VSol)
	if rejected {
		return reject(totalBps, "slippage above cap")
	}

	rawTokens, err := curve.TokensOut(intent.SolIn, intent.VTokens, intent.VSol)
	if err != nil {
		log.Warn().Err(err).Str("mint", intent.Mint).Msg("buy with invalid curve inputs")
		return reject(totalBps, err.Error())
	}

	actualTokens := curve.ApplySlippage(rawTokens, totalBps)
	return ExecutionResult{
		Success:        true,
		TokenAmount:    actualTokens,
		SolAmount:      intent.SolIn,
		EffectivePrice: safePrice(intent.SolIn, actualTokens),
		SlippageBps:    totalBps,
	}
}

func (e *SimExecutor) executeSell(intent TradeIntent) ExecutionResult {
	// Slippage scales with the SOL notionally moved, which for a sell is the
	// raw curve output.
	rawSol, err := curve.SolOut(intent.TokensIn, intent.VTokens, intent.VSol)
	if err != nil {
		log.Warn().Err(err).Str("mint", intent.Mint).Msg("sell with invalid curve inputs")
		return reject(decimal.Zero, err.Error())
	}

	totalBps, rejected := e.Slippage.Estimate(rawSol, intent.VSol)
	if rejected {
		return reject(totalBps, "slippage above cap")
	}

	actualSol := curve.ApplySlippage(rawSol, totalBps)
	return ExecutionResult{
		Success:        true,
		TokenAmount:    intent.TokensIn,
		SolAmount:      actualSol,
		EffectivePrice: safePrice(actualSol, intent.TokensIn),
		SlippageBps:    totalBps,
	}
}

func reject(bps decimal.Decimal, reason string) ExecutionResult {
	return ExecutionResult{Success: false, SlippageBps: bps, Reason: reason}
}

func safePrice(sol, tokens decimal.Decimal) decimal.Decimal {
	if tokens.Sign() == 0 {
		return decimal.Zero
	}
	return sol.Div(tokens)
}
