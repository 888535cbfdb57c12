// Package kelly computes per-strategy capital fractions from the Kelly
// Criterion, adjusted for strategy quality, realized risk, and stop-loss
// exposure.
// Based on research: "Kelly Criterion, fractional Kelly, and risk-adjusted sizing"
package kelly

import (
	"math"

	"go.uber.org/zap"

	"github.com/quantfolio/allocation-engine/pkg/types"
	"github.com/quantfolio/allocation-engine/pkg/utils"
)

// RiskParams holds the reference constants the adjustment pipeline is
// normalized against. The values are empirically chosen; keep them named and
// overridable rather than tuning them in place.
type RiskParams struct {
	KellyBaseNorm    float64 // reference global Kelly baseline the kelly_base scaling divides by
	BaselineStopLoss float64 // reference stop-loss the multiplier is anchored to
	SortinoNorm      float64 // Sortino ratio treated as "typical good"
	CalmarNorm       float64 // Calmar ratio treated as "typical good"
	FactorCap        float64 // cap on quality factors and the stop-loss multiplier
	MaxPositionRisk  float64 // per-strategy allocation cap
}

// DefaultRiskParams returns the reference constants.
func DefaultRiskParams() RiskParams {
	return RiskParams{
		KellyBaseNorm:    0.045,
		BaselineStopLoss: 0.10,
		SortinoNorm:      1.2,
		CalmarNorm:       0.5,
		FactorCap:        2.0,
		MaxPositionRisk:  0.15,
	}
}

// Calculator runs the three-stage Kelly pipeline for a single strategy.
// It is stateless: every method is a pure function of its arguments.
type Calculator struct {
	logger *zap.Logger
	params RiskParams
}

// NewCalculator creates a Kelly calculator.
func NewCalculator(logger *zap.Logger, params RiskParams) *Calculator {
	if params.MaxPositionRisk <= 0 {
		params = DefaultRiskParams()
	}
	return &Calculator{logger: logger, params: params}
}

// Breakdown holds the intermediate values of the Kelly pipeline for one
// strategy, in the order they were computed.
type Breakdown struct {
	Theoretical      float64 `json:"theoretical_kelly"`
	RiskAdjusted     float64 `json:"risk_adjusted_kelly"`
	StopLossAdjusted float64 `json:"stop_loss_adjusted_kelly"`
}

// Compute runs the full pipeline: theoretical Kelly, risk/quality adjustment,
// stop-loss rescaling. kellyBase is the global Kelly baseline.
func (c *Calculator) Compute(m *types.StrategyMetrics, kellyBase float64) Breakdown {
	theoretical := c.TheoreticalKelly(m)
	riskAdjusted := c.RiskAdjusted(m, theoretical, kellyBase)
	stopAdjusted := c.StopLossAdjusted(m, riskAdjusted)

	return Breakdown{
		Theoretical:      theoretical,
		RiskAdjusted:     riskAdjusted,
		StopLossAdjusted: stopAdjusted,
	}
}

// TheoreticalKelly computes the raw Kelly fraction from win rate and payoff
// ratio.
// f* = (b*p - q) / b, where p = win rate, q = 1-p, b = payoff ratio.
// A negative Kelly means "do not allocate", not a short position, so the
// result is clamped at zero.
func (c *Calculator) TheoreticalKelly(m *types.StrategyMetrics) float64 {
	p := m.WinRate
	q := 1 - p

	b := c.payoffRatio(m)
	if b <= 0 {
		return 0
	}
	if math.IsInf(b, 1) {
		// Every trade won: Kelly degenerates to the win rate itself.
		return utils.ClampNonNegative(p)
	}

	kelly := (b*p - q) / b
	return utils.ClampNonNegative(kelly)
}

// payoffRatio is avg win over avg loss when a real loss average exists;
// otherwise it is approximated from the profit factor.
func (c *Calculator) payoffRatio(m *types.StrategyMetrics) float64 {
	if m.AvgLosingTrade > 0 {
		return m.AvgWinningTrade / m.AvgLosingTrade
	}
	if m.WinRate >= 1 {
		// All trades won: payoff ratio is unbounded, Kelly resolves to p.
		return math.Inf(1)
	}
	if m.WinRate <= 0 {
		return 0
	}
	return m.ProfitFactor * m.WinRate / (1 - m.WinRate)
}

// RiskAdjusted scales the theoretical Kelly by quality and risk factors
// derived from the strategy's secondary metrics, then by the global Kelly
// baseline, and caps the result at MaxPositionRisk.
//
// quality = sqrt(sortino_factor * calmar_factor), each factor normalized
// against a benchmark and capped to keep outliers from blowing up the size.
// risk = sqrt(drawdown_penalty * volatility_penalty), both monotonically
// decreasing in realized risk.
func (c *Calculator) RiskAdjusted(m *types.StrategyMetrics, theoretical, kellyBase float64) float64 {
	if theoretical <= 0 {
		return 0
	}

	sortinoFactor := utils.Min(utils.ClampNonNegative(m.SortinoRatio)/c.params.SortinoNorm, c.params.FactorCap)
	calmarFactor := utils.Min(utils.ClampNonNegative(m.CalmarRatio)/c.params.CalmarNorm, c.params.FactorCap)
	qualityFactor := math.Sqrt(sortinoFactor * calmarFactor)

	drawdownPenalty := 1 / (1 + 2*m.MaxDrawdown)
	volatilityPenalty := 1 / (1 + m.Volatility)
	riskFactor := math.Sqrt(drawdownPenalty * volatilityPenalty)

	// Raising kellyBase scales all allocations up proportionally.
	baseScale := kellyBase / c.params.KellyBaseNorm

	adjusted := theoretical * qualityFactor * riskFactor * baseScale
	return utils.Clamp(adjusted, 0, c.params.MaxPositionRisk)
}

// StopLossAdjusted rescales the risk-adjusted Kelly to reflect the strategy's
// actual per-trade risk. Classical Kelly assumes the full stake can be lost;
// a stop-loss caps the real loss at stop_loss of position value, so the
// stake can grow by baseline/stop_loss, capped to avoid unbounded
// amplification for very tight stops.
//
// StopLoss must be positive; validation upstream guarantees it, and a
// non-positive value here returns zero rather than dividing.
func (c *Calculator) StopLossAdjusted(m *types.StrategyMetrics, riskAdjusted float64) float64 {
	if riskAdjusted <= 0 {
		return 0
	}
	if m.StopLoss <= 0 {
		c.logger.Warn("stop_loss not positive, refusing to adjust",
			zap.String("ticker", m.Ticker),
			zap.Float64("stop_loss", m.StopLoss),
		)
		return 0
	}

	multiplier := utils.Min(c.params.BaselineStopLoss/m.StopLoss, c.params.FactorCap)
	adjusted := riskAdjusted * multiplier
	return utils.Clamp(adjusted, 0, c.params.MaxPositionRisk)
}
