package types

import "fmt"

// InvalidInputError marks a StrategyMetrics record that failed validation.
// The record is excluded from the run; it never propagates into neighboring
// strategies' results.
type InvalidInputError struct {
	Ticker string
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for %s (%s): %s", e.Ticker, e.Field, e.Reason)
}

// OptimizationFailure marks an efficient-frontier solve that did not converge.
// The caller falls back to equal weighting and flags the run.
type OptimizationFailure struct {
	Iterations int
	Reason     string
}

func (e *OptimizationFailure) Error() string {
	return fmt.Sprintf("optimization failed after %d iterations: %s", e.Iterations, e.Reason)
}

// DataSourceDegraded marks an input source that was unreadable and replaced
// by a documented fallback constant.
type DataSourceDegraded struct {
	Source string
	Err    error
}

func (e *DataSourceDegraded) Error() string {
	return fmt.Sprintf("data source %s degraded: %v", e.Source, e.Err)
}

func (e *DataSourceDegraded) Unwrap() error { return e.Err }

// PriceLookupFailure marks a per-ticker price lookup that fell back to the
// sentinel price. The corresponding result carries the unpriced flag.
type PriceLookupFailure struct {
	Ticker string
	Err    error
}

func (e *PriceLookupFailure) Error() string {
	return fmt.Sprintf("price lookup failed for %s: %v", e.Ticker, e.Err)
}

func (e *PriceLookupFailure) Unwrap() error { return e.Err }
