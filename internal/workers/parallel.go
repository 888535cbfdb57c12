// Package workers provides bounded parallel execution for the per-strategy
// stages of a sizing run.
package workers

import (
	"context"
	"runtime"
	"sync"
)

// DefaultParallelism is the worker bound used when none is configured.
func DefaultParallelism() int {
	return runtime.NumCPU()
}

// ForEach runs fn(i) for every index in [0, n) across at most parallelism
// goroutines. Each index is independent (the per-strategy Kelly pipeline has
// no ordering dependency), so results are written into caller-owned slots by
// index. Returns early with the context error if the context is cancelled
// before all indexes are dispatched.
func ForEach(ctx context.Context, n, parallelism int, fn func(i int)) error {
	if n == 0 {
		return nil
	}
	if parallelism <= 0 {
		parallelism = DefaultParallelism()
	}

	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(idx)
		}(i)
	}

	wg.Wait()
	return nil
}
