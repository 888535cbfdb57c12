// Package types provides configuration types for the allocation engine.
package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioConstraints bounds per-strategy and portfolio-level risk for one
// sizing run. Construct through NewPortfolioConstraints or validate an
// explicitly built value with Validate.
type PortfolioConstraints struct {
	CVaRTarget              float64 `json:"cvar_target"`               // aggregate portfolio risk budget, e.g. 0.118
	MaxPositionRisk         float64 `json:"max_position_risk"`         // per-strategy allocation cap, e.g. 0.15
	CorrelationAdjustment   float64 `json:"correlation_adjustment"`    // discount on summed risk, in (0,1]
	KellyFraction           float64 `json:"kelly_fraction"`            // fractional-Kelly multiplier for the dual sizer
	EfficientFrontierWeight float64 `json:"efficient_frontier_weight"` // blend weight in [0,1] for the dual sizer
	FrontierAssetBound      float64 `json:"frontier_asset_bound"`      // per-asset weight cap in the frontier solve
}

// DefaultPortfolioConstraints returns conservative defaults.
func DefaultPortfolioConstraints() PortfolioConstraints {
	return PortfolioConstraints{
		CVaRTarget:              0.118,
		MaxPositionRisk:         0.15,
		CorrelationAdjustment:   0.8,
		KellyFraction:           0.5,
		EfficientFrontierWeight: 0.4,
		FrontierAssetBound:      0.25,
	}
}

// NewPortfolioConstraints builds a validated constraint set.
func NewPortfolioConstraints(cvarTarget, maxPositionRisk, correlationAdjustment float64) (PortfolioConstraints, error) {
	c := DefaultPortfolioConstraints()
	c.CVaRTarget = cvarTarget
	c.MaxPositionRisk = maxPositionRisk
	c.CorrelationAdjustment = correlationAdjustment
	if err := c.Validate(); err != nil {
		return PortfolioConstraints{}, err
	}
	return c, nil
}

// Validate rejects constraint sets that would make the run meaningless.
func (c PortfolioConstraints) Validate() error {
	if c.CVaRTarget <= 0 {
		return fmt.Errorf("cvar_target must be positive, got %.4f", c.CVaRTarget)
	}
	if c.MaxPositionRisk <= 0 || c.MaxPositionRisk > 1 {
		return fmt.Errorf("max_position_risk must be in (0,1], got %.4f", c.MaxPositionRisk)
	}
	if c.CorrelationAdjustment <= 0 || c.CorrelationAdjustment > 1 {
		return fmt.Errorf("correlation_adjustment must be in (0,1], got %.4f", c.CorrelationAdjustment)
	}
	if c.KellyFraction < 0 || c.KellyFraction > 1 {
		return fmt.Errorf("kelly_fraction must be in [0,1], got %.4f", c.KellyFraction)
	}
	if c.EfficientFrontierWeight < 0 || c.EfficientFrontierWeight > 1 {
		return fmt.Errorf("efficient_frontier_weight must be in [0,1], got %.4f", c.EfficientFrontierWeight)
	}
	if c.FrontierAssetBound <= 0 || c.FrontierAssetBound > 1 {
		return fmt.Errorf("frontier_asset_bound must be in (0,1], got %.4f", c.FrontierAssetBound)
	}
	return nil
}

// EngineDefaults carries the documented fallback constants used when an
// external source is unreadable. They are explicit configuration, not
// module-level globals, so tests can override them deterministically.
type EngineDefaults struct {
	FallbackKellyBase float64         `json:"fallback_kelly_base"` // 4.48% unless configured
	FallbackCapital   decimal.Decimal `json:"fallback_capital"`
	FallbackPrice     decimal.Decimal `json:"fallback_price"` // sentinel substituted on lookup failure
	PriceTimeout      time.Duration   `json:"price_timeout"`
}

// DefaultEngineDefaults returns the documented fallback constants.
func DefaultEngineDefaults() EngineDefaults {
	return EngineDefaults{
		FallbackKellyBase: 0.0448,
		FallbackCapital:   decimal.NewFromInt(10000),
		FallbackPrice:     decimal.NewFromInt(100),
		PriceTimeout:      5 * time.Second,
	}
}

// ServerConfig represents API server configuration.
type ServerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	WebSocketPath  string        `json:"websocketPath"`
	ReadTimeout    time.Duration `json:"readTimeout"`
	WriteTimeout   time.Duration `json:"writeTimeout"`
	MaxConnections int           `json:"maxConnections"`
	EnableMetrics  bool          `json:"enableMetrics"`
}

// DataConfig points the data boundary at its backing files.
type DataConfig struct {
	MetricsPath string `json:"metricsPath"` // strategy metrics table
	CapitalPath string `json:"capitalPath"` // named account balances
	KellyPath   string `json:"kellyPath"`   // global Kelly baseline
	PricesPath  string `json:"pricesPath"`  // last-traded prices per ticker
}
