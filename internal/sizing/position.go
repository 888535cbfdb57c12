// Package sizing converts fractional allocations into tradable whole-share
// positions.
package sizing

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfolio/allocation-engine/pkg/types"
)

// PositionSizeCalculator turns an allocation fraction and available capital
// into a whole-share position. Shares are always floored; rounding up would
// push realized exposure past the computed risk budget.
type PositionSizeCalculator struct {
	logger *zap.Logger
}

// NewPositionSizeCalculator creates a position size calculator.
func NewPositionSizeCalculator(logger *zap.Logger) *PositionSizeCalculator {
	return &PositionSizeCalculator{logger: logger}
}

// Position is a sized position: whole shares and the realized dollar
// exposure after rounding.
type Position struct {
	Shares       int64           `json:"shares"`
	DollarAmount decimal.Decimal `json:"dollar_amount"`
	TargetAmount decimal.Decimal `json:"target_amount"`
}

// Size computes shares = floor(allocation * capital / price) and the
// realized exposure shares * price, which is always <= the target amount.
func (psc *PositionSizeCalculator) Size(allocation float64, totalCapital, currentPrice decimal.Decimal) Position {
	target := totalCapital.Mul(decimal.NewFromFloat(allocation))

	if currentPrice.LessThanOrEqual(decimal.Zero) || target.LessThanOrEqual(decimal.Zero) {
		return Position{Shares: 0, DollarAmount: decimal.Zero, TargetAmount: target}
	}

	shares := target.Div(currentPrice).Floor().IntPart()
	if shares < 0 {
		shares = 0
	}
	realized := currentPrice.Mul(decimal.NewFromInt(shares))

	return Position{
		Shares:       shares,
		DollarAmount: realized,
		TargetAmount: target,
	}
}

// BuildResult assembles the terminal AllocationResult for one strategy from
// its constrained allocation, the sized position, and the price lookup
// outcome.
func (psc *PositionSizeCalculator) BuildResult(
	m *types.StrategyMetrics,
	finalAllocation float64,
	pos Position,
	price decimal.Decimal,
	unpriced bool,
) types.AllocationResult {
	return types.AllocationResult{
		Ticker:           m.Ticker,
		StrategyType:     m.StrategyType,
		FinalAllocation:  finalAllocation,
		DollarAmount:     pos.DollarAmount,
		PositionShares:   pos.Shares,
		CurrentPrice:     price,
		MaxRiskPerTrade:  pos.DollarAmount.Mul(decimal.NewFromFloat(m.StopLoss)),
		ExpectedReturn:   finalAllocation * m.TotalReturn,
		RiskContribution: finalAllocation * m.Volatility * m.StopLoss,
		Unpriced:         unpriced,
	}
}
