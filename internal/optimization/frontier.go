// Package optimization provides the efficient-frontier allocation method.
// Weights are chosen to maximize a Sharpe-style risk-adjusted return ratio
// subject to a fully-invested, bounded-weight constraint.
package optimization

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/quantfolio/allocation-engine/pkg/types"
)

// ObjectiveFunc evaluates a weight vector and returns a score to maximize.
type ObjectiveFunc func(weights []float64) float64

// Optimizer solves max objective(w) subject to sum(w)=1 and 0 <= w_i <= bound.
// It is pluggable so a different solver can be substituted without touching
// the frontier logic.
type Optimizer interface {
	Maximize(objective ObjectiveFunc, n int, bound float64) ([]float64, error)
}

// FrontierConfig configures the efficient-frontier optimizer.
type FrontierConfig struct {
	RiskFreeRate       float64 // subtracted from portfolio return in the objective
	AssumedCorrelation float64 // pairwise correlation used to approximate the covariance matrix
	AssetBound         float64 // per-asset weight cap
	MaxIterations      int
	Tolerance          float64 // convergence threshold on objective improvement
	StepSize           float64 // initial gradient step
}

// DefaultFrontierConfig returns sensible defaults.
func DefaultFrontierConfig() FrontierConfig {
	return FrontierConfig{
		RiskFreeRate:       0.02,
		AssumedCorrelation: 0.3,
		AssetBound:         0.25,
		MaxIterations:      500,
		Tolerance:          1e-8,
		StepSize:           0.05,
	}
}

// FrontierOptimizer chooses portfolio weights on an approximate efficient
// frontier. The covariance matrix is built from per-strategy volatility with
// an assumed pairwise correlation constant, an approximation in the absence
// of full historical return series.
type FrontierOptimizer struct {
	logger *zap.Logger
	config FrontierConfig
	solver Optimizer
}

// NewFrontierOptimizer creates a frontier optimizer with the default
// projected-gradient solver.
func NewFrontierOptimizer(logger *zap.Logger, config FrontierConfig) *FrontierOptimizer {
	if config.MaxIterations <= 0 {
		config = DefaultFrontierConfig()
	}
	return &FrontierOptimizer{
		logger: logger,
		config: config,
		solver: NewProjectedGradient(config.MaxIterations, config.Tolerance, config.StepSize),
	}
}

// SetSolver replaces the constrained solver.
func (fo *FrontierOptimizer) SetSolver(solver Optimizer) {
	fo.solver = solver
}

// Result contains the frontier weights and whether the solver fell back to
// equal weighting.
type Result struct {
	Weights  map[string]float64 `json:"weights"`
	FellBack bool               `json:"fell_back"`
	Sharpe   float64            `json:"sharpe"`
}

// Optimize returns per-ticker weights that sum to one, each within the
// per-asset bound. On solver non-convergence it falls back to equal
// weighting, which is degenerate but deterministic, and flagged so the caller
// can audit it.
func (fo *FrontierOptimizer) Optimize(strategies []*types.StrategyMetrics) *Result {
	n := len(strategies)
	if n == 0 {
		return &Result{Weights: map[string]float64{}}
	}

	// Deterministic ordering regardless of caller's slice order.
	ordered := make([]*types.StrategyMetrics, n)
	copy(ordered, strategies)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Ticker < ordered[j].Ticker })

	returns := make([]float64, n)
	vols := make([]float64, n)
	for i, s := range ordered {
		returns[i] = s.TotalReturn
		vols[i] = s.Volatility
	}
	cov := fo.covariance(vols)

	bound := fo.config.AssetBound
	if bound*float64(n) < 1 {
		// The cap is infeasible for this few candidates; relax to equal weight.
		bound = 1 / float64(n)
		fo.logger.Warn("per-asset bound infeasible, relaxing",
			zap.Int("strategies", n),
			zap.Float64("bound", fo.config.AssetBound),
			zap.Float64("relaxed", bound),
		)
	}

	objective := func(w []float64) float64 {
		return fo.sharpe(w, returns, cov)
	}

	weights, err := fo.solver.Maximize(objective, n, bound)
	if err != nil {
		fo.logger.Warn("frontier optimization did not converge, falling back to equal weights",
			zap.Int("strategies", n),
			zap.Error(err),
		)
		weights = equalWeights(n)
		result := &Result{Weights: toMap(ordered, weights), FellBack: true}
		result.Sharpe = objective(weights)
		return result
	}

	return &Result{
		Weights: toMap(ordered, weights),
		Sharpe:  objective(weights),
	}
}

// covariance approximates the covariance matrix from volatilities and the
// assumed pairwise correlation.
func (fo *FrontierOptimizer) covariance(vols []float64) [][]float64 {
	n := len(vols)
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
		for j := range cov[i] {
			if i == j {
				cov[i][j] = vols[i] * vols[i]
			} else {
				cov[i][j] = fo.config.AssumedCorrelation * vols[i] * vols[j]
			}
		}
	}
	return cov
}

// sharpe is the (return - risk free) / volatility objective.
func (fo *FrontierOptimizer) sharpe(w, returns []float64, cov [][]float64) float64 {
	portReturn := 0.0
	for i, wi := range w {
		portReturn += wi * returns[i]
	}

	portVar := 0.0
	for i := range w {
		for j := range w {
			portVar += w[i] * w[j] * cov[i][j]
		}
	}
	portVol := math.Sqrt(math.Max(portVar, 0))
	if portVol < 1e-9 {
		portVol = 1e-9
	}

	return (portReturn - fo.config.RiskFreeRate) / portVol
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

func toMap(strategies []*types.StrategyMetrics, weights []float64) map[string]float64 {
	out := make(map[string]float64, len(strategies))
	for i, s := range strategies {
		out[s.Ticker] = weights[i]
	}
	return out
}
