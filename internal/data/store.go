// Package data loads the allocation engine's external inputs: the strategy
// metrics table, account balances, the global Kelly baseline, and current
// prices. All percentage-to-fraction normalization happens here, at the
// boundary. The engine only ever sees fractions.
package data

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/quantfolio/allocation-engine/pkg/types"
	"github.com/quantfolio/allocation-engine/pkg/utils"
)

// metricsRow mirrors one row of the persisted strategy metrics table.
// Percentage fields are stored as 0-100 and divided by 100 on load.
type metricsRow struct {
	Ticker          string  `json:"ticker"`
	StrategyType    string  `json:"strategy_type"`
	ShortWindow     int     `json:"short_window"`
	LongWindow      int     `json:"long_window"`
	TotalReturn     float64 `json:"total_return"`      // percent
	WinRate         float64 `json:"win_rate"`          // percent
	ProfitFactor    float64 `json:"profit_factor"`     // ratio
	SortinoRatio    float64 `json:"sortino_ratio"`     // ratio
	SharpeRatio     float64 `json:"sharpe_ratio"`      // ratio
	MaxDrawdown     float64 `json:"max_drawdown"`      // percent
	Volatility      float64 `json:"volatility"`        // percent, annualized
	Expectancy      float64 `json:"expectancy"`        // per-trade fraction
	CalmarRatio     float64 `json:"calmar_ratio"`      // ratio
	AvgWinningTrade float64 `json:"avg_winning_trade"` // percent
	AvgLosingTrade  float64 `json:"avg_losing_trade"`  // percent
	StopLoss        float64 `json:"stop_loss"`         // percent of position value
}

// Store loads and validates strategy metrics rows.
type Store struct {
	logger *zap.Logger
}

// NewStore creates a metrics store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{logger: logger}
}

// LoadMetrics reads the strategy metrics table. Rows that fail validation
// are excluded individually with a reason. A single bad row never aborts
// the run or poisons its neighbors.
func (s *Store) LoadMetrics(path string) ([]*types.StrategyMetrics, []types.ExcludedStrategy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read strategy metrics: %w", err)
	}

	var rows []metricsRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, nil, fmt.Errorf("failed to parse strategy metrics: %w", err)
	}

	strategies := make([]*types.StrategyMetrics, 0, len(rows))
	var excluded []types.ExcludedStrategy

	for _, row := range rows {
		m := row.normalize()
		if err := m.Validate(); err != nil {
			s.logger.Warn("excluding invalid strategy",
				zap.String("ticker", row.Ticker),
				zap.Error(err),
			)
			excluded = append(excluded, types.ExcludedStrategy{
				Ticker: row.Ticker,
				Reason: err.Error(),
			})
			continue
		}
		strategies = append(strategies, m)
	}

	s.logger.Info("loaded strategy metrics",
		zap.String("path", path),
		zap.Int("valid", len(strategies)),
		zap.Int("excluded", len(excluded)),
	)

	return strategies, excluded, nil
}

// normalize converts percentage-form fields to fractions.
func (r metricsRow) normalize() *types.StrategyMetrics {
	return &types.StrategyMetrics{
		Ticker:          utils.FormatTicker(r.Ticker),
		StrategyType:    r.StrategyType,
		ShortWindow:     r.ShortWindow,
		LongWindow:      r.LongWindow,
		TotalReturn:     r.TotalReturn / 100,
		WinRate:         r.WinRate / 100,
		ProfitFactor:    r.ProfitFactor,
		SortinoRatio:    r.SortinoRatio,
		SharpeRatio:     r.SharpeRatio,
		MaxDrawdown:     r.MaxDrawdown / 100,
		Volatility:      r.Volatility / 100,
		Expectancy:      r.Expectancy,
		CalmarRatio:     r.CalmarRatio,
		AvgWinningTrade: r.AvgWinningTrade / 100,
		AvgLosingTrade:  r.AvgLosingTrade / 100,
		StopLoss:        r.StopLoss / 100,
	}
}
