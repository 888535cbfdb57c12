// Package config loads the engine configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/quantfolio/allocation-engine/pkg/types"
)

// Config is the full runtime configuration.
type Config struct {
	Server      types.ServerConfig
	Data        types.DataConfig
	Defaults    types.EngineDefaults
	Constraints types.PortfolioConstraints
}

// Load reads configuration from the given YAML file (optional) with
// ALLOCATOR_-prefixed environment overrides. Every key has a registered
// default so the engine runs without a config file at all.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ALLOCATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: types.ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			WebSocketPath:  v.GetString("server.websocket_path"),
			ReadTimeout:    v.GetDuration("server.read_timeout"),
			WriteTimeout:   v.GetDuration("server.write_timeout"),
			MaxConnections: v.GetInt("server.max_connections"),
			EnableMetrics:  v.GetBool("server.enable_metrics"),
		},
		Data: types.DataConfig{
			MetricsPath: v.GetString("data.metrics_path"),
			CapitalPath: v.GetString("data.capital_path"),
			KellyPath:   v.GetString("data.kelly_path"),
			PricesPath:  v.GetString("data.prices_path"),
		},
		Defaults: types.EngineDefaults{
			FallbackKellyBase: v.GetFloat64("defaults.fallback_kelly_base"),
			FallbackCapital:   decimal.NewFromFloat(v.GetFloat64("defaults.fallback_capital")),
			FallbackPrice:     decimal.NewFromFloat(v.GetFloat64("defaults.fallback_price")),
			PriceTimeout:      v.GetDuration("defaults.price_timeout"),
		},
		Constraints: types.PortfolioConstraints{
			CVaRTarget:              v.GetFloat64("constraints.cvar_target"),
			MaxPositionRisk:         v.GetFloat64("constraints.max_position_risk"),
			CorrelationAdjustment:   v.GetFloat64("constraints.correlation_adjustment"),
			KellyFraction:           v.GetFloat64("constraints.kelly_fraction"),
			EfficientFrontierWeight: v.GetFloat64("constraints.efficient_frontier_weight"),
			FrontierAssetBound:      v.GetFloat64("constraints.frontier_asset_bound"),
		},
	}

	if err := cfg.Constraints.Validate(); err != nil {
		return nil, fmt.Errorf("invalid constraints: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.websocket_path", "/ws")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_connections", 100)
	v.SetDefault("server.enable_metrics", true)

	v.SetDefault("data.metrics_path", "./data/strategy_metrics.json")
	v.SetDefault("data.capital_path", "./data/capital.json")
	v.SetDefault("data.kelly_path", "./data/kelly.json")
	v.SetDefault("data.prices_path", "./data/prices.json")

	defaults := types.DefaultEngineDefaults()
	v.SetDefault("defaults.fallback_kelly_base", defaults.FallbackKellyBase)
	v.SetDefault("defaults.fallback_capital", defaults.FallbackCapital.InexactFloat64())
	v.SetDefault("defaults.fallback_price", defaults.FallbackPrice.InexactFloat64())
	v.SetDefault("defaults.price_timeout", defaults.PriceTimeout)

	constraints := types.DefaultPortfolioConstraints()
	v.SetDefault("constraints.cvar_target", constraints.CVaRTarget)
	v.SetDefault("constraints.max_position_risk", constraints.MaxPositionRisk)
	v.SetDefault("constraints.correlation_adjustment", constraints.CorrelationAdjustment)
	v.SetDefault("constraints.kelly_fraction", constraints.KellyFraction)
	v.SetDefault("constraints.efficient_frontier_weight", constraints.EfficientFrontierWeight)
	v.SetDefault("constraints.frontier_asset_bound", constraints.FrontierAssetBound)
}
