package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments sizing run outcomes.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	StrategiesSized    prometheus.Counter
	StrategiesExcluded prometheus.Counter
	DegradedInputs     *prometheus.CounterVec
	FrontierFallbacks  prometheus.Counter
}

// NewMetrics registers the engine metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "allocation",
			Name:      "runs_total",
			Help:      "Completed sizing runs by method.",
		}, []string{"method"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "allocation",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a sizing run.",
			Buckets:   prometheus.DefBuckets,
		}),
		StrategiesSized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "allocation",
			Name:      "strategies_sized_total",
			Help:      "Strategies that received a final allocation.",
		}),
		StrategiesExcluded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "allocation",
			Name:      "strategies_excluded_total",
			Help:      "Strategies rejected by input validation.",
		}),
		DegradedInputs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "allocation",
			Name:      "degraded_inputs_total",
			Help:      "Runs that used a fallback constant for an input source.",
		}, []string{"source"}),
		FrontierFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "allocation",
			Name:      "frontier_fallbacks_total",
			Help:      "Frontier optimizations that fell back to equal weighting.",
		}),
	}
}
