package webgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBuffer stands in for a GPU buffer.
type fakeBuffer struct {
	size      uint64
	destroyed bool
}

func newFakePool(perSize int) (*bufferPool[*fakeBuffer], *int) {
	created := 0
	p := newBufferPool(perSize,
		func(size uint64) *fakeBuffer { created++; return &fakeBuffer{size: size} },
		func(b *fakeBuffer) { b.destroyed = true })
	return p, &created
}

func TestBufferPoolReusesExactSize(t *testing.T) {
	p, created := newFakePool(4)

	a := p.acquire(64)
	p.release(a, 64)
	assert.Equal(t, 1, p.snapshot().Pooled)

	b := p.acquire(128)
	assert.NotSame(t, a, b, "a larger request cannot reuse a smaller buffer")
	c := p.acquire(64)
	assert.Same(t, a, c)
	assert.Equal(t, 2, *created)

	s := p.snapshot()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(2), s.Misses)
	assert.Zero(t, s.Pooled)
}

func TestBufferPoolDropsWhenFull(t *testing.T) {
	p, _ := newFakePool(1)
	a, b := p.acquire(16), p.acquire(16)
	p.release(a, 16)
	p.release(b, 16)

	assert.False(t, a.destroyed)
	assert.True(t, b.destroyed)
	assert.Equal(t, uint64(1), p.snapshot().Dropped)
}

func TestBufferPoolClear(t *testing.T) {
	p, _ := newFakePool(4)
	bufs := []*fakeBuffer{p.acquire(4), p.acquire(8), p.acquire(8)}
	for _, b := range bufs {
		p.release(b, b.size)
	}
	require.Equal(t, 3, p.clear())
	for _, b := range bufs {
		assert.True(t, b.destroyed)
	}
	assert.Zero(t, p.snapshot().Pooled)
	assert.Zero(t, p.clear())
}
