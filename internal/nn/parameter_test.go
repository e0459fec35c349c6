package nn_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menphim/primitiv/internal/backend/cpu"
	"github.com/menphim/primitiv/internal/nn"
	"github.com/menphim/primitiv/internal/parallel"
	"github.com/menphim/primitiv/internal/tensor"
)

func newDevice(t *testing.T) *cpu.Device {
	t.Helper()
	s := uint64(11)
	dev, err := cpu.New(cpu.Config{Seed: &s, Parallel: parallel.Sequential()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, dev.Close()) })
	return dev
}

func host(t *testing.T, x *tensor.Tensor) []float32 {
	t.Helper()
	v, err := tensor.ToHost(x)
	require.NoError(t, err)
	return v
}

func TestParameterLifecycle(t *testing.T) {
	dev := newDevice(t)
	p, err := nn.NewParameter(tensor.MustShape([]int{2, 2}, 1), []float32{1, 2, 3, 4}, dev)
	require.NoError(t, err)
	assert.True(t, p.Valid())

	shape, err := p.Shape()
	require.NoError(t, err)
	assert.True(t, shape.Equal(tensor.MustShape([]int{2, 2}, 1)))

	value, err := p.Value()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, host(t, value))

	grad, err := p.Gradient()
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, host(t, grad))

	got, err := p.Device()
	require.NoError(t, err)
	assert.Same(t, tensor.Device(dev), got)

	require.NoError(t, p.ResetValue([]float32{5, 6, 7, 8}))
	assert.Equal(t, []float32{5, 6, 7, 8}, host(t, value))

	assert.Equal(t, 2, dev.Stats().LiveBlocks)
	p.Release()
	assert.False(t, p.Valid())
	assert.Zero(t, dev.Stats().LiveBlocks)
	p.Release()
}

func TestParameterRejectsBatch(t *testing.T) {
	dev := newDevice(t)
	_, err := nn.NewParameter(tensor.MustShape([]int{2}, 3), make([]float32, 6), dev)
	assert.True(t, errors.Is(err, tensor.ErrValidation))
	_, err = nn.NewParameterWithInit(tensor.MustShape([]int{2}, 3), nn.Constant{K: 1}, dev)
	assert.True(t, errors.Is(err, tensor.ErrValidation))
	assert.Zero(t, dev.Stats().LiveBlocks)
}

func TestParameterInvalidObject(t *testing.T) {
	var p nn.Parameter
	assert.False(t, p.Valid())

	_, err := p.Value()
	assert.True(t, errors.Is(err, tensor.ErrInvalidObject))
	_, err = p.Gradient()
	assert.True(t, errors.Is(err, tensor.ErrInvalidObject))
	_, err = p.Shape()
	assert.True(t, errors.Is(err, tensor.ErrInvalidObject))
	assert.True(t, errors.Is(p.ResetGradient(), tensor.ErrInvalidObject))
	assert.True(t, errors.Is(p.ResetValue(nil), tensor.ErrInvalidObject))
	assert.True(t, errors.Is(p.AddStats("m", tensor.Shape{}), tensor.ErrInvalidObject))
	_, err = p.Stats("m")
	assert.True(t, errors.Is(err, tensor.ErrInvalidObject))
	assert.False(t, p.HasStats("m"))
	assert.Nil(t, p.StatsNames())
}

func TestParameterStats(t *testing.T) {
	dev := newDevice(t)
	shape := tensor.MustShape([]int{3}, 1)
	p, err := nn.NewParameterWithInit(shape, nn.Constant{K: 2}, dev)
	require.NoError(t, err)
	defer p.Release()

	assert.False(t, p.HasStats("v"))
	_, err = p.Stats("v")
	assert.True(t, errors.Is(err, tensor.ErrInvalidObject), "missing entry")

	require.NoError(t, p.AddStats("v", shape))
	require.NoError(t, p.AddStats("m", shape))
	assert.True(t, errors.Is(p.AddStats("m", shape), tensor.ErrValidation), "duplicate entry")
	assert.True(t, p.HasStats("m"))
	assert.Equal(t, []string{"m", "v"}, p.StatsNames())

	m, err := p.Stats("m")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0}, host(t, m))
	assert.Equal(t, 4, dev.Stats().LiveBlocks)
}

func TestParameterAccumulateGradient(t *testing.T) {
	dev := newDevice(t)
	p, err := nn.NewParameter(tensor.MustShape([]int{2}, 1), []float32{0, 0}, dev)
	require.NoError(t, err)
	defer p.Release()

	delta, err := tensor.FromValues(tensor.MustShape([]int{2}, 1), []float32{1, 2}, dev)
	require.NoError(t, err)
	defer delta.Release()
	batched, err := tensor.FromValues(tensor.MustShape([]int{2}, 3), []float32{1, 1, 2, 2, 3, 3}, dev)
	require.NoError(t, err)
	defer batched.Release()

	require.NoError(t, p.AccumulateGradient(delta))
	require.NoError(t, p.AccumulateGradient(delta))
	grad, err := p.Gradient()
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4}, host(t, grad))

	require.NoError(t, p.AccumulateGradient(batched))
	assert.Equal(t, []float32{8, 10}, host(t, grad), "samples are summed")

	wrong, err := tensor.Zeros(tensor.MustShape([]int{3}, 1), dev)
	require.NoError(t, err)
	defer wrong.Release()
	assert.True(t, errors.Is(p.AccumulateGradient(wrong), tensor.ErrValidation))

	require.NoError(t, p.ResetGradient())
	assert.Equal(t, []float32{0, 0}, host(t, grad))
}
