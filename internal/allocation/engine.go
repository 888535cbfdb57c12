// Package allocation orchestrates a sizing run: the per-strategy Kelly
// pipeline, the optional efficient-frontier blend, portfolio-level
// constraint enforcement, and share rounding. The engine is a pure function
// of its inputs: no state is held across runs, so identical inputs always
// produce identical reports.
package allocation

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfolio/allocation-engine/internal/data"
	"github.com/quantfolio/allocation-engine/internal/kelly"
	"github.com/quantfolio/allocation-engine/internal/optimization"
	"github.com/quantfolio/allocation-engine/internal/portfolio"
	"github.com/quantfolio/allocation-engine/internal/sizing"
	"github.com/quantfolio/allocation-engine/internal/workers"
	"github.com/quantfolio/allocation-engine/pkg/types"
	"github.com/quantfolio/allocation-engine/pkg/utils"
)

// Input is the full input set for one sizing run. StrategyMetrics and the
// capital pool are treated as read-only.
type Input struct {
	Strategies  []*types.StrategyMetrics
	Capital     types.CapitalPool
	Kelly       types.KellyParameters
	Constraints types.PortfolioConstraints

	// Excluded carries rejections already recorded at the data boundary;
	// the engine appends its own validation rejections to it.
	Excluded []types.ExcludedStrategy
}

// Engine runs sizing computations. Construct once and reuse; it is safe for
// concurrent runs.
type Engine struct {
	logger       *zap.Logger
	defaults     types.EngineDefaults
	riskParams   kelly.RiskParams
	frontierCfg  optimization.FrontierConfig
	prices       data.PriceSource
	positionCalc *sizing.PositionSizeCalculator
	constraints  *portfolio.ConstraintEngine
	parallelism  int
}

// NewEngine creates an engine. prices may be nil, in which case every
// position is sized at the fallback sentinel and flagged unpriced.
func NewEngine(
	logger *zap.Logger,
	defaults types.EngineDefaults,
	riskParams kelly.RiskParams,
	frontierCfg optimization.FrontierConfig,
	prices data.PriceSource,
) *Engine {
	return &Engine{
		logger:       logger,
		defaults:     defaults,
		riskParams:   riskParams,
		frontierCfg:  frontierCfg,
		prices:       prices,
		positionCalc: sizing.NewPositionSizeCalculator(logger),
		constraints:  portfolio.NewConstraintEngine(logger),
		parallelism:  workers.DefaultParallelism(),
	}
}

// SetParallelism bounds the per-strategy worker count.
func (e *Engine) SetParallelism(n int) {
	if n > 0 {
		e.parallelism = n
	}
}

// Run sizes the portfolio with the Kelly path only: theoretical Kelly →
// risk adjustment → stop-loss adjustment → portfolio constraints → shares.
func (e *Engine) Run(ctx context.Context, input Input) (*types.RunReport, error) {
	return e.run(ctx, input, types.MethodKelly)
}

// RunDual sizes the portfolio with the dual method: the fractional-Kelly
// path blended with the efficient-frontier weights before portfolio
// constraints and share rounding.
func (e *Engine) RunDual(ctx context.Context, input Input) (*types.RunReport, error) {
	return e.run(ctx, input, types.MethodDual)
}

func (e *Engine) run(ctx context.Context, input Input, method types.SizingMethod) (*types.RunReport, error) {
	if err := input.Constraints.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &types.RunReport{
		RunID:        uuid.New().String(),
		Method:       method,
		RunAt:        start,
		TotalCapital: input.Capital.TotalCapital,
		Excluded:     append([]types.ExcludedStrategy(nil), input.Excluded...),
	}
	if input.Capital.Fallback {
		report.DegradedInputs = append(report.DegradedInputs, "capital")
	}
	if input.Kelly.Fallback {
		report.DegradedInputs = append(report.DegradedInputs, "kelly_baseline")
	}

	valid := e.validate(input.Strategies, report)
	if len(valid) == 0 {
		e.logger.Warn("no valid strategies to size", zap.String("run_id", report.RunID))
		report.RemainingRiskCapacity = input.Constraints.CVaRTarget
		report.ConstraintScaleFactor = 1
		return report, nil
	}

	// Per-strategy Kelly pipeline. Each strategy's intermediates depend only
	// on its own metrics, so the stage parallelizes with no ordering
	// dependency; everything after it is a global reduction.
	params := e.riskParams
	params.MaxPositionRisk = input.Constraints.MaxPositionRisk
	calc := kelly.NewCalculator(e.logger, params)

	breakdowns := make([]kelly.Breakdown, len(valid))
	if err := workers.ForEach(ctx, len(valid), e.parallelism, func(i int) {
		breakdowns[i] = calc.Compute(valid[i], input.Kelly.GlobalKellyBase)
	}); err != nil {
		return nil, err
	}

	byTicker := make(map[string]*types.StrategyMetrics, len(valid))
	kellyAlloc := make(map[string]float64, len(valid))
	for i, s := range valid {
		byTicker[s.Ticker] = s
		kellyAlloc[s.Ticker] = breakdowns[i].StopLossAdjusted
	}

	var preConstraint map[string]float64
	var frontierWeights map[string]float64
	var hybrid map[string]float64

	switch method {
	case types.MethodDual:
		fractional := make(map[string]float64, len(kellyAlloc))
		for ticker, alloc := range kellyAlloc {
			fractional[ticker] = alloc * input.Constraints.KellyFraction
		}

		frontierCfg := e.frontierCfg
		frontierCfg.AssetBound = input.Constraints.FrontierAssetBound
		frontier := optimization.NewFrontierOptimizer(e.logger, frontierCfg)
		frontierResult := frontier.Optimize(valid)
		report.FrontierFallback = frontierResult.FellBack
		frontierWeights = frontierResult.Weights

		blended := portfolio.Blend(
			fractional,
			frontierWeights,
			1-input.Constraints.EfficientFrontierWeight,
			input.Constraints.EfficientFrontierWeight,
		)

		// Re-apply the per-strategy cap: frontier weights may exceed it.
		hybrid = make(map[string]float64, len(blended))
		for ticker, alloc := range blended {
			hybrid[ticker] = utils.Clamp(alloc, 0, input.Constraints.MaxPositionRisk)
		}
		preConstraint = hybrid

	default:
		preConstraint = kellyAlloc
	}

	// Single point where aggregate portfolio risk is bounded; runs after all
	// per-strategy caps.
	finalAlloc, scale := e.constraints.Apply(preConstraint, byTicker, input.Constraints)
	report.ConstraintScaleFactor = scale

	tickers := make([]string, 0, len(valid))
	for _, s := range valid {
		tickers = append(tickers, s.Ticker)
	}
	lookups := data.LookupAll(ctx, e.logger, e.prices, tickers, e.defaults)

	results := make([]types.AllocationResult, 0, len(valid))
	for i, s := range valid {
		final := finalAlloc[s.Ticker]
		lookup := lookups[s.Ticker]

		pos := e.positionCalc.Size(final, input.Capital.TotalCapital, lookup.Price)
		result := e.positionCalc.BuildResult(s, final, pos, lookup.Price, lookup.Unpriced)

		result.TheoreticalKelly = breakdowns[i].Theoretical
		result.RiskAdjustedKelly = breakdowns[i].RiskAdjusted
		result.StopLossAdjustedKelly = breakdowns[i].StopLossAdjusted

		if method == types.MethodDual {
			result.KellyAllocation = kellyAlloc[s.Ticker] * input.Constraints.KellyFraction
			result.EfficientFrontierAllocation = frontierWeights[s.Ticker]
			result.HybridAllocation = hybrid[s.Ticker]
			result.CVaRAllocation = final
		}

		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Ticker < results[j].Ticker })
	report.Results = results
	e.aggregate(report, input.Constraints)

	e.logger.Info("sizing run complete",
		zap.String("run_id", report.RunID),
		zap.String("method", string(method)),
		zap.Int("strategies", len(results)),
		zap.Int("excluded", len(report.Excluded)),
		zap.Float64("total_allocation", report.TotalAllocation),
		zap.Float64("scale_factor", scale),
		zap.Duration("elapsed", time.Since(start)),
	)

	return report, nil
}

// validate re-checks every input record so a caller bypassing the data
// boundary still cannot push a division-by-zero into the pipeline.
func (e *Engine) validate(strategies []*types.StrategyMetrics, report *types.RunReport) []*types.StrategyMetrics {
	valid := make([]*types.StrategyMetrics, 0, len(strategies))
	for _, s := range strategies {
		if err := s.Validate(); err != nil {
			e.logger.Warn("excluding invalid strategy",
				zap.String("ticker", s.Ticker),
				zap.Error(err),
			)
			report.Excluded = append(report.Excluded, types.ExcludedStrategy{
				Ticker: s.Ticker,
				Reason: err.Error(),
			})
			continue
		}
		valid = append(valid, s)
	}
	return valid
}

// aggregate fills the run-level totals.
func (e *Engine) aggregate(report *types.RunReport, constraints types.PortfolioConstraints) {
	totalDollar := decimal.Zero
	for _, r := range report.Results {
		report.TotalAllocation += r.FinalAllocation
		report.TotalRiskContribution += r.RiskContribution
		totalDollar = totalDollar.Add(r.DollarAmount)
	}
	report.TotalDollarAmount = totalDollar
	report.RemainingRiskCapacity = constraints.CVaRTarget - report.TotalRiskContribution
	if n := len(report.Results); n > 0 {
		report.AverageAllocation = report.TotalAllocation / float64(n)
	}
}
