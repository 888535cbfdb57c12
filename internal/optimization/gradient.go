package optimization

import (
	"math"

	"github.com/quantfolio/allocation-engine/pkg/types"
)

// ProjectedGradient is a constrained maximizer: gradient ascent with
// projection onto the capped simplex {w : sum(w)=1, 0 <= w_i <= bound}.
// It stands in for a sequential-quadratic-programming solver; the problem is
// small (one weight per candidate strategy) and smooth, so projected
// gradient converges quickly.
type ProjectedGradient struct {
	maxIterations int
	tolerance     float64
	stepSize      float64
}

// NewProjectedGradient creates a solver.
func NewProjectedGradient(maxIterations int, tolerance, stepSize float64) *ProjectedGradient {
	return &ProjectedGradient{
		maxIterations: maxIterations,
		tolerance:     tolerance,
		stepSize:      stepSize,
	}
}

// Maximize runs projected gradient ascent from the equal-weight start.
// Returns OptimizationFailure if the objective never stabilizes within the
// iteration budget or produces non-finite values.
func (pg *ProjectedGradient) Maximize(objective ObjectiveFunc, n int, bound float64) ([]float64, error) {
	if n == 0 {
		return nil, &types.OptimizationFailure{Reason: "no candidates"}
	}
	if bound*float64(n) < 1 {
		return nil, &types.OptimizationFailure{Reason: "per-asset bound makes full investment infeasible"}
	}

	w := equalWeights(n)
	w = projectCappedSimplex(w, bound)

	best := objective(w)
	if math.IsNaN(best) || math.IsInf(best, 0) {
		return nil, &types.OptimizationFailure{Reason: "objective not finite at start"}
	}

	step := pg.stepSize
	for iter := 0; iter < pg.maxIterations; iter++ {
		grad := pg.gradient(objective, w)

		candidate := make([]float64, n)
		for i := range w {
			candidate[i] = w[i] + step*grad[i]
		}
		candidate = projectCappedSimplex(candidate, bound)

		score := objective(candidate)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, &types.OptimizationFailure{
				Iterations: iter,
				Reason:     "objective not finite",
			}
		}

		if score <= best {
			// No ascent at this step size; shrink and retry.
			step *= 0.5
			if step < 1e-10 {
				return w, nil
			}
			continue
		}

		improvement := score - best
		w = candidate
		best = score

		if improvement < pg.tolerance {
			return w, nil
		}
	}

	return nil, &types.OptimizationFailure{
		Iterations: pg.maxIterations,
		Reason:     "objective did not stabilize within the iteration budget",
	}
}

// gradient estimates the objective gradient by central differences.
func (pg *ProjectedGradient) gradient(objective ObjectiveFunc, w []float64) []float64 {
	const h = 1e-6
	grad := make([]float64, len(w))
	probe := make([]float64, len(w))

	for i := range w {
		copy(probe, w)
		probe[i] = w[i] + h
		up := objective(probe)
		probe[i] = w[i] - h
		down := objective(probe)
		grad[i] = (up - down) / (2 * h)
	}
	return grad
}

// projectCappedSimplex projects v onto {w : sum(w)=1, 0 <= w_i <= bound}
// by bisecting on the Lagrange shift: w_i = clamp(v_i - lambda, 0, bound).
// sumAt is monotonically decreasing in lambda, so bisection finds the shift
// where the clamped weights sum to one.
func projectCappedSimplex(v []float64, bound float64) []float64 {
	sumAt := func(lambda float64) float64 {
		sum := 0.0
		for _, vi := range v {
			w := vi - lambda
			if w < 0 {
				w = 0
			} else if w > bound {
				w = bound
			}
			sum += w
		}
		return sum
	}

	lo, hi := -1.0, 1.0
	for _, vi := range v {
		if vi-bound < lo {
			lo = vi - bound
		}
		if vi > hi {
			hi = vi
		}
	}

	for iter := 0; iter < 100; iter++ {
		mid := (lo + hi) / 2
		if sumAt(mid) > 1 {
			lo = mid
		} else {
			hi = mid
		}
	}

	lambda := (lo + hi) / 2
	out := make([]float64, len(v))
	for i, vi := range v {
		w := vi - lambda
		if w < 0 {
			w = 0
		} else if w > bound {
			w = bound
		}
		out[i] = w
	}
	return out
}
