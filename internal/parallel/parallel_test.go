package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 16}

	var counter int64
	n := 1000
	seen := make([]int32, n)

	For(n, func(i int) {
		atomic.AddInt64(&counter, 1)
		atomic.AddInt32(&seen[i], 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
	for i, s := range seen {
		assert.Equal(t, int32(1), s, "index %d", i)
	}
}

func TestRangeChunksAreDisjoint(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 10}
	n := 100
	covered := make([]int32, n)
	var chunks int64

	Range(n, cfg, func(lo, hi int) {
		atomic.AddInt64(&chunks, 1)
		assert.Less(t, lo, hi)
		for i := lo; i < hi; i++ {
			atomic.AddInt32(&covered[i], 1)
		}
	})

	assert.Equal(t, int64(3), chunks)
	for i, c := range covered {
		assert.Equal(t, int32(1), c, "index %d", i)
	}
}

func TestRangeSequential(t *testing.T) {
	var calls int
	Range(100, Sequential(), func(lo, hi int) {
		calls++
		assert.Equal(t, 0, lo)
		assert.Equal(t, 100, hi)
	})
	assert.Equal(t, 1, calls)
}

func TestRangeSmallInput(t *testing.T) {
	cfg := DefaultConfig()
	var calls int
	Range(cfg.MinChunkSize, cfg, func(lo, hi int) {
		calls++
	})
	assert.Equal(t, 1, calls)

	Range(0, cfg, func(lo, hi int) {
		t.Fatal("empty range must not call f")
	})
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 1 << 16

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(j int) {
				atomic.AddInt64(&sum, int64(j))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(j int) {
				atomic.AddInt64(&sum, int64(j))
			}, Sequential())
		}
	})
}

func TestTryRangeReturnsError(t *testing.T) {
	errBad := errors.New("bad chunk")
	configs := map[string]Config{
		"sequential": Sequential(),
		"parallel":   {Enabled: true, NumWorkers: 4, MinChunkSize: 10},
	}
	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			err := TryRange(100, cfg, func(lo, hi int) error {
				if lo <= 50 && 50 < hi {
					return errBad
				}
				return nil
			})
			assert.ErrorIs(t, err, errBad)

			assert.NoError(t, TryRange(100, cfg, func(lo, hi int) error { return nil }))
		})
	}
}
