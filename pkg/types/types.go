// Package types provides shared type definitions for the allocation engine.
package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SizingMethod identifies which allocation path produced a run.
type SizingMethod string

const (
	MethodKelly SizingMethod = "kelly"
	MethodDual  SizingMethod = "dual" // Kelly blended with efficient frontier
)

// StrategyMetrics is the immutable per-strategy input record. All fractional
// fields are stored as fractions (0.55, not 55); normalization from
// percentage form happens at the data boundary, never inside the engine.
type StrategyMetrics struct {
	Ticker          string  `json:"ticker"`
	StrategyType    string  `json:"strategy_type"`
	ShortWindow     int     `json:"short_window"`
	LongWindow      int     `json:"long_window"`
	TotalReturn     float64 `json:"total_return"`
	WinRate         float64 `json:"win_rate"`
	ProfitFactor    float64 `json:"profit_factor"`
	SortinoRatio    float64 `json:"sortino_ratio"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	Volatility      float64 `json:"volatility"`
	Expectancy      float64 `json:"expectancy"`
	CalmarRatio     float64 `json:"calmar_ratio"`
	AvgWinningTrade float64 `json:"avg_winning_trade"`
	AvgLosingTrade  float64 `json:"avg_losing_trade"`
	StopLoss        float64 `json:"stop_loss"`
}

// Validate checks the record against the input invariants. A failing record
// is excluded from the allocation set, never partially processed.
func (m *StrategyMetrics) Validate() error {
	if m.Ticker == "" {
		return &InvalidInputError{Ticker: m.Ticker, Field: "ticker", Reason: "missing ticker"}
	}
	if m.WinRate < 0 || m.WinRate > 1 {
		return &InvalidInputError{
			Ticker: m.Ticker,
			Field:  "win_rate",
			Reason: fmt.Sprintf("win_rate %.4f outside [0,1]", m.WinRate),
		}
	}
	if m.StopLoss <= 0 {
		return &InvalidInputError{
			Ticker: m.Ticker,
			Field:  "stop_loss",
			Reason: fmt.Sprintf("stop_loss %.4f must be positive", m.StopLoss),
		}
	}
	if m.ProfitFactor < 0 {
		return &InvalidInputError{
			Ticker: m.Ticker,
			Field:  "profit_factor",
			Reason: fmt.Sprintf("profit_factor %.4f must be non-negative", m.ProfitFactor),
		}
	}
	if m.Volatility < 0 {
		return &InvalidInputError{
			Ticker: m.Ticker,
			Field:  "volatility",
			Reason: fmt.Sprintf("volatility %.4f must be non-negative", m.Volatility),
		}
	}
	if m.AvgWinningTrade < 0 || m.AvgLosingTrade < 0 {
		return &InvalidInputError{
			Ticker: m.Ticker,
			Field:  "avg_trade",
			Reason: "average trade sizes must be non-negative",
		}
	}
	if m.ShortWindow > 0 && m.LongWindow > 0 && m.ShortWindow >= m.LongWindow {
		return &InvalidInputError{
			Ticker: m.Ticker,
			Field:  "windows",
			Reason: fmt.Sprintf("short_window %d must be less than long_window %d", m.ShortWindow, m.LongWindow),
		}
	}
	return nil
}

// CapitalPool is the total tradable capital for one sizing run.
type CapitalPool struct {
	TotalCapital decimal.Decimal `json:"total_capital"`
	Balances     map[string]decimal.Decimal `json:"balances,omitempty"`
	Fallback     bool            `json:"fallback"` // true when the capital source was unreadable
}

// KellyParameters carries the global Kelly baseline used to scale all
// risk-adjusted Kelly values.
type KellyParameters struct {
	GlobalKellyBase float64 `json:"global_kelly_base"`
	Fallback        bool    `json:"fallback"` // true when the baseline source was unreadable
}

// AllocationResult is the terminal per-strategy output record.
type AllocationResult struct {
	Ticker       string `json:"ticker"`
	StrategyType string `json:"strategy_type"`

	// Kelly path intermediates.
	TheoreticalKelly     float64 `json:"theoretical_kelly"`
	RiskAdjustedKelly    float64 `json:"risk_adjusted_kelly"`
	StopLossAdjustedKelly float64 `json:"stop_loss_adjusted_kelly"`

	// Dual-method intermediates (zero unless the dual sizer produced the run).
	KellyAllocation             float64 `json:"kelly_allocation,omitempty"`
	CVaRAllocation              float64 `json:"cvar_allocation,omitempty"`
	EfficientFrontierAllocation float64 `json:"efficient_frontier_allocation,omitempty"`
	HybridAllocation            float64 `json:"hybrid_allocation,omitempty"`

	FinalAllocation  float64         `json:"final_allocation"`
	DollarAmount     decimal.Decimal `json:"dollar_amount"`
	PositionShares   int64           `json:"position_shares"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	MaxRiskPerTrade  decimal.Decimal `json:"max_risk_per_trade"`
	ExpectedReturn   float64         `json:"expected_return"`
	RiskContribution float64         `json:"risk_contribution"`
	Unpriced         bool            `json:"unpriced"` // price lookup fell back to the sentinel
}

// ExcludedStrategy records a rejected input and why it was rejected.
type ExcludedStrategy struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// RunReport is the structured output of one sizing run: one result per valid
// input strategy plus run-level aggregates and degradation metadata.
type RunReport struct {
	RunID   string       `json:"run_id"`
	Method  SizingMethod `json:"method"`
	RunAt   time.Time    `json:"run_at"`
	Results []AllocationResult `json:"results"`

	TotalCapital          decimal.Decimal `json:"total_capital"`
	TotalAllocation       float64         `json:"total_allocation"`
	TotalDollarAmount     decimal.Decimal `json:"total_dollar_amount"`
	TotalRiskContribution float64         `json:"total_risk_contribution"`
	RemainingRiskCapacity float64         `json:"remaining_risk_capacity"`
	AverageAllocation     float64         `json:"average_allocation"`
	ConstraintScaleFactor float64         `json:"constraint_scale_factor"`

	Excluded         []ExcludedStrategy `json:"excluded,omitempty"`
	DegradedInputs   []string           `json:"degraded_inputs,omitempty"`
	FrontierFallback bool               `json:"frontier_fallback,omitempty"`
}

// Degraded reports whether any input source fell back to a default.
func (r *RunReport) Degraded() bool {
	return len(r.DegradedInputs) > 0
}
