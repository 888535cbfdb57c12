// Package report renders and exports completed sizing runs. It consumes the
// RunReport structure only; no sizing logic lives here.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/quantfolio/allocation-engine/pkg/types"
	"github.com/quantfolio/allocation-engine/pkg/utils"
)

// Writer renders RunReports for humans and exports them for machines.
type Writer struct {
	logger *zap.Logger
}

// NewWriter creates a report writer.
func NewWriter(logger *zap.Logger) *Writer {
	return &Writer{logger: logger}
}

// Render writes a human-readable summary of the run to w.
func (rw *Writer) Render(w io.Writer, report *types.RunReport) error {
	fmt.Fprintf(w, "Sizing run %s (%s method) at %s\n",
		report.RunID, report.Method, report.RunAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Capital: %s\n\n", utils.FormatMoney(report.TotalCapital))

	fmt.Fprintf(w, "%-8s %-12s %8s %10s %8s %12s %10s\n",
		"TICKER", "STRATEGY", "ALLOC", "DOLLARS", "SHARES", "MAX RISK", "PRICED")
	for _, r := range report.Results {
		priced := "yes"
		if r.Unpriced {
			priced = "FALLBACK"
		}
		fmt.Fprintf(w, "%-8s %-12s %7.2f%% %10s %8d %12s %10s\n",
			r.Ticker, r.StrategyType,
			r.FinalAllocation*100,
			utils.FormatMoney(r.DollarAmount),
			r.PositionShares,
			utils.FormatMoney(r.MaxRiskPerTrade),
			priced,
		)
	}

	fmt.Fprintf(w, "\nTotal allocation:        %.2f%%\n", report.TotalAllocation*100)
	fmt.Fprintf(w, "Total dollar amount:     %s\n", utils.FormatMoney(report.TotalDollarAmount))
	fmt.Fprintf(w, "Total risk contribution: %.4f\n", report.TotalRiskContribution)
	fmt.Fprintf(w, "Remaining risk capacity: %.4f\n", report.RemainingRiskCapacity)
	fmt.Fprintf(w, "Average allocation:      %.2f%%\n", report.AverageAllocation*100)

	if report.ConstraintScaleFactor < 1 {
		fmt.Fprintf(w, "Portfolio de-leveraged:  x%.4f\n", report.ConstraintScaleFactor)
	}
	if report.FrontierFallback {
		fmt.Fprintln(w, "NOTE: frontier optimizer fell back to equal weighting")
	}
	for _, d := range report.DegradedInputs {
		fmt.Fprintf(w, "NOTE: degraded input source: %s\n", d)
	}
	for _, ex := range report.Excluded {
		fmt.Fprintf(w, "EXCLUDED: %s: %s\n", ex.Ticker, ex.Reason)
	}
	return nil
}

// ExportJSON writes the full report as indented JSON.
func (rw *Writer) ExportJSON(path string, report *types.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	rw.logger.Info("exported report", zap.String("path", path), zap.String("format", "json"))
	return nil
}

// ExportCSV writes one row per allocation result.
func (rw *Writer) ExportCSV(path string, report *types.RunReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	header := []string{
		"ticker", "strategy_type", "theoretical_kelly", "risk_adjusted_kelly",
		"stop_loss_adjusted_kelly", "final_allocation", "dollar_amount",
		"position_shares", "max_risk_per_trade", "expected_return",
		"risk_contribution", "unpriced",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range report.Results {
		row := []string{
			r.Ticker,
			r.StrategyType,
			strconv.FormatFloat(r.TheoreticalKelly, 'f', 6, 64),
			strconv.FormatFloat(r.RiskAdjustedKelly, 'f', 6, 64),
			strconv.FormatFloat(r.StopLossAdjustedKelly, 'f', 6, 64),
			strconv.FormatFloat(r.FinalAllocation, 'f', 6, 64),
			r.DollarAmount.StringFixed(2),
			strconv.FormatInt(r.PositionShares, 10),
			r.MaxRiskPerTrade.StringFixed(2),
			strconv.FormatFloat(r.ExpectedReturn, 'f', 6, 64),
			strconv.FormatFloat(r.RiskContribution, 'f', 6, 64),
			strconv.FormatBool(r.Unpriced),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	rw.logger.Info("exported report", zap.String("path", path), zap.String("format", "csv"))
	return nil
}
