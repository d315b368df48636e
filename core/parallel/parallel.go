// Package parallel provides the worker-pool primitives shared by the
// resampling loops. Iterations are keyed by index: results land in
// caller-preallocated slots and per-iteration randomness is derived from
// (seed, index), so scheduling order never changes the output.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Parallelize divides items across CPU cores and runs fn on each
// contiguous range (start, end).
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// Ceiling division so the last chunk absorbs the remainder.
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}

// ParallelizeWithThreshold runs sequentially when items is at or below the
// threshold, in parallel otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// ForEachIndexed runs fn(i) for every iteration index 0..n-1 on a bounded
// worker pool. fn must write only to its own index-keyed result slot; it
// must not touch shared mutable state. A non-nil error from fn cancels the
// remaining iterations and is returned. Cancelling ctx aborts between
// iterations and is reported as an error, so callers never build
// statistics from a partially executed loop. workers <= 0 means one
// worker per CPU core.
func ForEachIndexed(ctx context.Context, n, workers int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < n; i++ {
		if err := gctx.Err(); err != nil {
			break
		}
		i := i
		g.Go(func() error {
			return fn(i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// gctx is always done once Wait returns; only the caller's context
	// distinguishes an abort from normal completion.
	return ctx.Err()
}

// SeedFor derives the deterministic per-iteration seed from a base seed
// and an iteration index. The mixing follows splitmix64 so neighboring
// indices produce uncorrelated streams.
func SeedFor(base int64, index int) int64 {
	z := uint64(base) + uint64(index+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z ^= z >> 31
	return int64(z)
}
