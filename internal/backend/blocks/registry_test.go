package blocks

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddRemove(t *testing.T) {
	r := New[uintptr]()
	require.NoError(t, r.Add(0x10, 64))
	require.NoError(t, r.Add(0x20, 128))

	assert.Equal(t, 2, r.Len())
	size, ok := r.Size(0x20)
	assert.True(t, ok)
	assert.Equal(t, uint64(128), size)

	err := r.Add(0x10, 8)
	assert.True(t, errors.Is(err, ErrDuplicate))

	size, err = r.Remove(0x10)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), size)

	_, err = r.Remove(0x10)
	assert.True(t, errors.Is(err, ErrUnknown), "double free is reported")

	stats := r.Stats()
	assert.Equal(t, uint64(128), stats.LiveBytes)
	assert.Equal(t, uint64(192), stats.PeakBytes)
	assert.Equal(t, 1, stats.LiveBlocks)
	assert.Equal(t, uint64(2), stats.Allocations)
}

func TestRegistryReverseOrder(t *testing.T) {
	r := New[int]()
	for h := 1; h <= 5; h++ {
		require.NoError(t, r.Add(h, uint64(h)))
	}
	_, err := r.Remove(3)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4, 2, 1}, r.Reverse())

	// A reused handle moves to the newest position.
	_, err = r.Remove(1)
	require.NoError(t, err)
	require.NoError(t, r.Add(1, 10))
	assert.Equal(t, []int{1, 5, 4, 2}, r.Reverse())
}

func TestRegistryDrain(t *testing.T) {
	r := New[int]()
	for h := 1; h <= 3; h++ {
		require.NoError(t, r.Add(h, uint64(h*4)))
	}

	var freed []int
	var bytes uint64
	n := r.Drain(func(h int, size uint64) {
		freed = append(freed, h)
		bytes += size
	})

	assert.Equal(t, 3, n)
	assert.Equal(t, []int{3, 2, 1}, freed)
	assert.Equal(t, uint64(24), bytes)
	assert.Equal(t, 0, r.Len())
	assert.Zero(t, r.Stats().LiveBytes)
}

func TestRegistryCompaction(t *testing.T) {
	r := New[int]()
	for h := 0; h < 200; h++ {
		require.NoError(t, r.Add(h, 1))
	}
	for h := 0; h < 190; h++ {
		_, err := r.Remove(h)
		require.NoError(t, err)
	}
	assert.Less(t, len(r.order), 200)
	assert.Equal(t, []int{199, 198, 197, 196, 195, 194, 193, 192, 191, 190}, r.Reverse())
}
