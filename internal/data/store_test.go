package data

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestLoadMetricsNormalizesPercentages(t *testing.T) {
	path := writeTestFile(t, "metrics.json", `[{
		"ticker": "aapl",
		"strategy_type": "momentum",
		"short_window": 10,
		"long_window": 50,
		"total_return": 32.5,
		"win_rate": 55.0,
		"profit_factor": 1.8,
		"sortino_ratio": 1.4,
		"sharpe_ratio": 1.1,
		"max_drawdown": 12.0,
		"volatility": 22.0,
		"expectancy": 0.004,
		"calmar_ratio": 0.6,
		"avg_winning_trade": 4.5,
		"avg_losing_trade": 2.4,
		"stop_loss": 8.0
	}]`)

	store := NewStore(zap.NewNop())
	strategies, excluded, err := store.LoadMetrics(path)
	if err != nil {
		t.Fatalf("LoadMetrics failed: %v", err)
	}
	if len(excluded) != 0 {
		t.Fatalf("excluded %d strategies, want 0", len(excluded))
	}
	if len(strategies) != 1 {
		t.Fatalf("loaded %d strategies, want 1", len(strategies))
	}

	m := strategies[0]
	if m.Ticker != "AAPL" {
		t.Errorf("Ticker = %s, want AAPL (normalized)", m.Ticker)
	}
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"TotalReturn", m.TotalReturn, 0.325},
		{"WinRate", m.WinRate, 0.55},
		{"MaxDrawdown", m.MaxDrawdown, 0.12},
		{"Volatility", m.Volatility, 0.22},
		{"AvgWinningTrade", m.AvgWinningTrade, 0.045},
		{"AvgLosingTrade", m.AvgLosingTrade, 0.024},
		{"StopLoss", m.StopLoss, 0.08},
		{"ProfitFactor", m.ProfitFactor, 1.8},   // ratio, not a percent
		{"SortinoRatio", m.SortinoRatio, 1.4},   // ratio, not a percent
		{"Expectancy", m.Expectancy, 0.004},     // already a fraction
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-12 {
			t.Errorf("%s = %.6f, want %.6f", c.name, c.got, c.want)
		}
	}
}

func TestLoadMetricsExcludesInvalidRows(t *testing.T) {
	// Second row has a zero stop loss, third an impossible win rate; both are
	// excluded without poisoning the first.
	path := writeTestFile(t, "metrics.json", `[
		{"ticker": "GOOD", "win_rate": 55.0, "stop_loss": 8.0, "avg_winning_trade": 4.0, "avg_losing_trade": 2.0},
		{"ticker": "NOSL", "win_rate": 55.0, "stop_loss": 0, "avg_winning_trade": 4.0, "avg_losing_trade": 2.0},
		{"ticker": "BADWR", "win_rate": 155.0, "stop_loss": 8.0, "avg_winning_trade": 4.0, "avg_losing_trade": 2.0}
	]`)

	store := NewStore(zap.NewNop())
	strategies, excluded, err := store.LoadMetrics(path)
	if err != nil {
		t.Fatalf("LoadMetrics failed: %v", err)
	}

	if len(strategies) != 1 || strategies[0].Ticker != "GOOD" {
		t.Errorf("expected only GOOD to survive, got %d strategies", len(strategies))
	}
	if len(excluded) != 2 {
		t.Fatalf("excluded %d strategies, want 2", len(excluded))
	}
	for _, ex := range excluded {
		if ex.Reason == "" {
			t.Errorf("exclusion of %s has no reason", ex.Ticker)
		}
	}
}

func TestLoadMetricsMissingFile(t *testing.T) {
	store := NewStore(zap.NewNop())
	if _, _, err := store.LoadMetrics(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing metrics file")
	}
}

func TestLoadMetricsMalformedJSON(t *testing.T) {
	path := writeTestFile(t, "metrics.json", `{"not": "an array"`)

	store := NewStore(zap.NewNop())
	if _, _, err := store.LoadMetrics(path); err == nil {
		t.Fatal("expected error for malformed metrics file")
	}
}
