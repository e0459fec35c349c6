package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFixed(t *testing.T) {
	v := uint64(12345)
	got, err := Resolve(&v)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestSourceDeterministic(t *testing.T) {
	v := uint64(7)
	a, sa, err := Source(&v)
	require.NoError(t, err)
	b, sb, err := Source(&v)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
	for i := 0; i < 8; i++ {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestResolveEntropy(t *testing.T) {
	a, err := Resolve(nil)
	require.NoError(t, err)
	b, err := Resolve(nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
