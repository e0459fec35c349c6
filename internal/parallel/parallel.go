// Package parallel splits element ranges of host kernels across goroutines.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Upper bound on concurrently running chunks.
	MinChunkSize int  // Minimum elements per chunk.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4096,
	}
}

// Sequential returns a Config that never spawns goroutines.
func Sequential() Config { return Config{} }

// TryRange calls f on disjoint half-open chunks covering [0, n) and returns
// once every chunk is done, with the first error any chunk returned. Small
// ranges run on the calling goroutine. Once a chunk fails, chunks not yet
// started are skipped.
func TryRange(n int, cfg Config, f func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	workers := cfg.NumWorkers
	if !cfg.Enabled || workers < 2 || n < 2*max(cfg.MinChunkSize, 1) {
		return f(0, n)
	}

	chunk := max((n+workers-1)/workers, cfg.MinChunkSize)
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			return f(lo, hi)
		})
	}
	return g.Wait()
}

// Range is TryRange for kernels that cannot fail.
func Range(n int, cfg Config, f func(lo, hi int)) {
	// The callback never returns an error, so neither does TryRange.
	_ = TryRange(n, cfg, func(lo, hi int) error {
		f(lo, hi)
		return nil
	})
}

// For executes f(i) for i in [0, n).
func For(n int, f func(i int), cfg Config) {
	Range(n, cfg, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			f(i)
		}
	})
}
