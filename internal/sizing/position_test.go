package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfolio/allocation-engine/pkg/types"
)

func TestSizeFloorsShares(t *testing.T) {
	psc := NewPositionSizeCalculator(zap.NewNop())

	// $10,000 * 0.10 = $1,000 target at $37.50/share: 26 shares, $975 realized.
	pos := psc.Size(0.10, decimal.NewFromInt(10000), decimal.NewFromFloat(37.50))

	if pos.Shares != 26 {
		t.Errorf("Shares = %d, want 26", pos.Shares)
	}
	if !pos.DollarAmount.Equal(decimal.NewFromFloat(975.00)) {
		t.Errorf("DollarAmount = %s, want 975", pos.DollarAmount)
	}
	if !pos.TargetAmount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("TargetAmount = %s, want 1000", pos.TargetAmount)
	}
}

func TestSizeNeverOverAllocates(t *testing.T) {
	psc := NewPositionSizeCalculator(zap.NewNop())

	capital := decimal.NewFromInt(25000)
	prices := []float64{0.37, 1.0, 3.33, 37.50, 412.18, 99999}

	for _, p := range prices {
		pos := psc.Size(0.07, capital, decimal.NewFromFloat(p))
		if pos.DollarAmount.GreaterThan(pos.TargetAmount) {
			t.Errorf("price %.2f: realized %s exceeds target %s",
				p, pos.DollarAmount, pos.TargetAmount)
		}
	}
}

func TestSizeZeroPrice(t *testing.T) {
	psc := NewPositionSizeCalculator(zap.NewNop())

	pos := psc.Size(0.10, decimal.NewFromInt(10000), decimal.Zero)
	if pos.Shares != 0 || !pos.DollarAmount.IsZero() {
		t.Errorf("zero price: got %d shares / %s, want 0 / 0", pos.Shares, pos.DollarAmount)
	}
}

func TestSizeZeroAllocation(t *testing.T) {
	psc := NewPositionSizeCalculator(zap.NewNop())

	pos := psc.Size(0, decimal.NewFromInt(10000), decimal.NewFromInt(100))
	if pos.Shares != 0 || !pos.DollarAmount.IsZero() {
		t.Errorf("zero allocation: got %d shares / %s, want 0 / 0", pos.Shares, pos.DollarAmount)
	}
}

func TestSizePriceExceedsTarget(t *testing.T) {
	psc := NewPositionSizeCalculator(zap.NewNop())

	// Target $100, share price $250: no whole share fits.
	pos := psc.Size(0.01, decimal.NewFromInt(10000), decimal.NewFromInt(250))
	if pos.Shares != 0 {
		t.Errorf("Shares = %d, want 0 when price exceeds target", pos.Shares)
	}
}

func TestBuildResult(t *testing.T) {
	psc := NewPositionSizeCalculator(zap.NewNop())

	m := &types.StrategyMetrics{
		Ticker:      "AAPL",
		TotalReturn: 0.30,
		Volatility:  0.25,
		StopLoss:    0.08,
	}
	price := decimal.NewFromInt(100)
	pos := psc.Size(0.10, decimal.NewFromInt(10000), price)

	result := psc.BuildResult(m, 0.10, pos, price, false)

	if result.Ticker != "AAPL" {
		t.Errorf("Ticker = %s, want AAPL", result.Ticker)
	}
	if result.PositionShares != 10 {
		t.Errorf("PositionShares = %d, want 10", result.PositionShares)
	}
	if !result.MaxRiskPerTrade.Equal(decimal.NewFromInt(80)) {
		t.Errorf("MaxRiskPerTrade = %s, want 80", result.MaxRiskPerTrade)
	}
	if got, want := result.ExpectedReturn, 0.10*0.30; got != want {
		t.Errorf("ExpectedReturn = %.6f, want %.6f", got, want)
	}
	if got, want := result.RiskContribution, 0.10*0.25*0.08; got != want {
		t.Errorf("RiskContribution = %.6f, want %.6f", got, want)
	}
	if result.Unpriced {
		t.Error("Unpriced = true, want false")
	}
}
