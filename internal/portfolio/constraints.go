// Package portfolio enforces portfolio-level risk constraints and blends
// allocations produced by different sizing methods.
package portfolio

import (
	"go.uber.org/zap"

	"github.com/quantfolio/allocation-engine/pkg/types"
)

// ConstraintEngine bounds the aggregate portfolio risk. It is the single
// point where the whole portfolio's risk budget is enforced and must run
// after all per-strategy caps are already applied, never before.
type ConstraintEngine struct {
	logger *zap.Logger
}

// NewConstraintEngine creates a constraint engine.
func NewConstraintEngine(logger *zap.Logger) *ConstraintEngine {
	return &ConstraintEngine{logger: logger}
}

// Apply sums per-strategy risk contributions (allocation * volatility *
// stop_loss), discounts the sum by the correlation adjustment, and scales
// every allocation by cvar_target/adjusted_risk if the budget is exceeded.
// The de-leverage is a single global proportional scaling, so relative
// sizing ratios between strategies are preserved.
//
// Returns the constrained allocations and the applied scale factor (1.0 when
// the budget was not exceeded).
func (ce *ConstraintEngine) Apply(
	allocations map[string]float64,
	strategies map[string]*types.StrategyMetrics,
	constraints types.PortfolioConstraints,
) (map[string]float64, float64) {
	totalRisk := 0.0
	for ticker, alloc := range allocations {
		s, ok := strategies[ticker]
		if !ok {
			continue
		}
		totalRisk += alloc * s.Volatility * s.StopLoss
	}

	adjustedRisk := totalRisk * constraints.CorrelationAdjustment

	scale := 1.0
	if adjustedRisk > constraints.CVaRTarget {
		scale = constraints.CVaRTarget / adjustedRisk
		ce.logger.Info("portfolio risk budget exceeded, de-leveraging",
			zap.Float64("adjusted_risk", adjustedRisk),
			zap.Float64("cvar_target", constraints.CVaRTarget),
			zap.Float64("scale_factor", scale),
		)
	}

	constrained := make(map[string]float64, len(allocations))
	for ticker, alloc := range allocations {
		constrained[ticker] = alloc * scale
	}
	return constrained, scale
}
