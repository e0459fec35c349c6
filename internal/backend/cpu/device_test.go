package cpu

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menphim/primitiv/internal/parallel"
	"github.com/menphim/primitiv/internal/tensor"
)

// Helper to create a deterministic test device.
func newTestDevice(t *testing.T) *Device {
	t.Helper()
	s := uint64(42)
	dev, err := New(Config{Seed: &s, Parallel: parallel.Sequential()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

func values(t *testing.T, dev tensor.Device, dims []int, batch int, v []float32) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromValues(tensor.MustShape(dims, batch), v, dev)
	require.NoError(t, err)
	return x
}

func host(t *testing.T, x *tensor.Tensor) []float32 {
	t.Helper()
	v, err := tensor.ToHost(x)
	require.NoError(t, err)
	return v
}

func ramp(n int, scale, shift float32) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(i)*scale + shift
	}
	return v
}

func TestDevice_New(t *testing.T) {
	dev := newTestDevice(t)
	assert.Equal(t, "CPU", dev.Name())
	assert.Equal(t, tensor.CPU, dev.Type())
	assert.Equal(t, uint64(42), dev.Seed())
}

func TestDevice_AllocAndFree(t *testing.T) {
	dev := newTestDevice(t)
	x, err := tensor.Zeros(tensor.MustShape([]int{2, 3}, 4), dev)
	require.NoError(t, err)

	stats := dev.Stats()
	assert.Equal(t, 1, stats.LiveBlocks)
	assert.Equal(t, uint64(4*24), stats.LiveBytes)

	x.Release()
	assert.Equal(t, 0, dev.Stats().LiveBlocks)

	requireFatal(t, func() { dev.Free(x.Handle()) })
	requireFatal(t, func() { dev.Free("not a block") })
}

func requireFatal(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a fatal panic")
		e, ok := r.(*tensor.Error)
		require.True(t, ok)
		assert.Equal(t, tensor.KindFatal, e.Kind)
	}()
	f()
}

func TestDevice_CloseReleasesLeakedBlocks(t *testing.T) {
	dev, err := New(DefaultConfig())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := tensor.Ones(tensor.MustShape([]int{4}, 1), dev)
		require.NoError(t, err)
	}
	require.NoError(t, dev.Close())
	assert.Equal(t, 0, dev.Stats().LiveBlocks)
	require.NoError(t, dev.Close(), "close is idempotent")
}

func TestDevice_ForeignTensorIsFatal(t *testing.T) {
	a := newTestDevice(t)
	b := newTestDevice(t)
	x := values(t, a, []int{2}, 1, []float32{1, 2})
	requireFatal(t, func() { b.ToHost(x) })
	requireFatal(t, func() { tensor.DeleteTensor(b, x) })

	y := b.CopyFrom(x)
	assert.Equal(t, []float32{1, 2}, host(t, y))
	assert.Same(t, tensor.Device(b), y.Device())
}

func TestDevice_ScalarDispatch(t *testing.T) {
	dev := newTestDevice(t)
	s := values(t, dev, nil, 1, []float32{10})
	x := values(t, dev, []int{2}, 3, []float32{1, 2, 3, 4, 5, 6})

	y, err := tensor.Subtract(s, x)
	require.NoError(t, err)
	assert.True(t, y.Shape().Equal(x.Shape()))
	assert.Equal(t, []float32{9, 8, 7, 6, 5, 4}, host(t, y))

	y, err = tensor.Divide(x, s)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, host(t, y), 1e-6)

	y, err = tensor.Multiply(s, s)
	require.NoError(t, err)
	assert.Equal(t, []float32{100}, host(t, y))
}

func TestDevice_BatchBroadcast(t *testing.T) {
	dev := newTestDevice(t)
	a := values(t, dev, []int{2}, 1, []float32{1, 2})
	b := values(t, dev, []int{2}, 3, []float32{1, 2, 3, 4, 5, 6})

	y, err := tensor.Multiply(a, b)
	require.NoError(t, err)
	assert.True(t, y.Shape().Equal(tensor.MustShape([]int{2}, 3)))
	assert.Equal(t, []float32{1, 4, 3, 8, 5, 12}, host(t, y))

	y, err = tensor.Divide(b, a)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 3, 2, 5, 3}, host(t, y))

	c := values(t, dev, []int{3}, 3, ramp(9, 1, 0))
	_, err = tensor.Add(b, c)
	assert.True(t, errors.Is(err, tensor.ErrValidation))
}

func TestDevice_ConcatScenario(t *testing.T) {
	dev := newTestDevice(t)
	a := values(t, dev, []int{2, 3}, 5, ramp(30, 1, 0))
	b := values(t, dev, []int{2, 3}, 5, ramp(30, 1, 1000))

	y, err := tensor.Concat([]*tensor.Tensor{a, b}, 0)
	require.NoError(t, err)
	assert.True(t, y.Shape().Equal(tensor.MustShape([]int{4, 3}, 5)))

	got := host(t, y)
	av, bv := host(t, a), host(t, b)
	for s := 0; s < 5; s++ {
		for j := 0; j < 3; j++ {
			for i := 0; i < 2; i++ {
				assert.Equal(t, av[s*6+i+2*j], got[s*12+i+4*j])
				assert.Equal(t, bv[s*6+i+2*j], got[s*12+2+i+4*j])
			}
		}
	}
}

func TestDevice_LogSoftmaxSumsToOne(t *testing.T) {
	dev := newTestDevice(t)
	x, err := tensor.RandomNormal(tensor.MustShape([]int{5, 4, 3}, 2), 0, 10, dev)
	require.NoError(t, err)

	for axis := 0; axis < 3; axis++ {
		ls, err := tensor.LogSoftmax(x, axis)
		require.NoError(t, err)
		e, err := tensor.Exp(ls)
		require.NoError(t, err)
		s, err := tensor.Sum(e, axis)
		require.NoError(t, err)
		want, err := tensor.ReduceShape(x.Shape(), axis)
		require.NoError(t, err)
		assert.True(t, s.Shape().Equal(want))
		for _, v := range host(t, s) {
			assert.InDelta(t, 1, v, 1e-5, "axis %d", axis)
		}
	}
}

func TestDevice_AddGradientCommutes(t *testing.T) {
	dev := newTestDevice(t)
	shape := tensor.MustShape([]int{3, 2}, 4)
	d1, err := tensor.RandomUniform(shape, -1, 1, dev)
	require.NoError(t, err)
	d2, err := tensor.RandomUniform(tensor.MustShape([]int{3, 2}, 1), -1, 1, dev)
	require.NoError(t, err)

	acc1, err := tensor.Zeros(shape, dev)
	require.NoError(t, err)
	require.NoError(t, tensor.AddGradient(acc1, d1))
	require.NoError(t, tensor.AddGradient(acc1, d2))

	acc2, err := tensor.Zeros(shape, dev)
	require.NoError(t, err)
	require.NoError(t, tensor.AddGradient(acc2, d2))
	require.NoError(t, tensor.AddGradient(acc2, d1))

	assert.InDeltaSlice(t, host(t, acc1), host(t, acc2), 1e-6)

	single, err := tensor.Zeros(tensor.MustShape([]int{3, 2}, 1), dev)
	require.NoError(t, err)
	require.NoError(t, tensor.AddGradient(single, d1))
	want, err := tensor.BatchSum(d1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, host(t, want), host(t, single), 1e-5)
}

func TestDevice_AddGradientSelf(t *testing.T) {
	dev := newTestDevice(t)
	x := values(t, dev, []int{2}, 2, []float32{1, 2, 3, 4})
	require.NoError(t, tensor.AddGradient(x, x))
	assert.Equal(t, []float32{2, 4, 6, 8}, host(t, x))
}

func TestDevice_WriteThroughViewIsPrivate(t *testing.T) {
	dev := newTestDevice(t)
	x := values(t, dev, []int{4}, 1, []float32{1, 2, 3, 4})
	v, err := x.Reshape(tensor.MustShape([]int{2, 2}, 1))
	require.NoError(t, err)
	ones, err := tensor.Ones(tensor.MustShape([]int{2, 2}, 1), dev)
	require.NoError(t, err)

	require.NoError(t, tensor.AddGradient(v, ones))
	assert.Equal(t, []float32{1, 2, 3, 4}, host(t, x))
	require.NoError(t, tensor.Reset(v, 9))
	assert.Equal(t, []float32{1, 2, 3, 4}, host(t, x))
	assert.Equal(t, []float32{9, 9, 9, 9}, host(t, v))

	x.Release()
	v.Release()
	ones.Release()
	assert.Equal(t, 0, dev.Stats().LiveBlocks)
}

func TestDevice_Random(t *testing.T) {
	shape := tensor.MustShape([]int{1000}, 1)

	a := newTestDevice(t)
	b := newTestDevice(t)
	ua, err := tensor.RandomUniform(shape, -2, 3, a)
	require.NoError(t, err)
	ub, err := tensor.RandomUniform(shape, -2, 3, b)
	require.NoError(t, err)
	assert.Equal(t, host(t, ua), host(t, ub), "same seed, same draws")
	for _, v := range host(t, ua) {
		assert.Greater(t, v, float32(-2))
		assert.LessOrEqual(t, v, float32(3))
	}

	bern, err := tensor.RandomBernoulli(shape, 0.3, a)
	require.NoError(t, err)
	var ones int
	for _, v := range host(t, bern) {
		require.True(t, v == 0 || v == 1)
		if v == 1 {
			ones++
		}
	}
	assert.InDelta(t, 300, ones, 60)

	norm, err := tensor.RandomNormal(shape, 5, 0.5, a)
	require.NoError(t, err)
	var sum float64
	for _, v := range host(t, norm) {
		sum += float64(v)
	}
	assert.InDelta(t, 5, sum/1000, 0.1)

	logn, err := tensor.RandomLogNormal(shape, 0, 0.5, a)
	require.NoError(t, err)
	for _, v := range host(t, logn) {
		assert.Positive(t, v)
	}
}

func TestDevice_IdentityMatMul(t *testing.T) {
	dev := newTestDevice(t)
	x, err := tensor.RandomNormal(tensor.MustShape([]int{4, 4}, 3), 0, 1, dev)
	require.NoError(t, err)
	id, err := tensor.Identity(4, dev)
	require.NoError(t, err)

	left, err := tensor.MatMul(id, x)
	require.NoError(t, err)
	right, err := tensor.MatMul(x, id)
	require.NoError(t, err)
	assert.InDeltaSlice(t, host(t, x), host(t, left), 1e-6)
	assert.InDeltaSlice(t, host(t, x), host(t, right), 1e-6)
}

func TestDevice_Softplus(t *testing.T) {
	dev := newTestDevice(t)
	x := values(t, dev, []int{3}, 1, []float32{-100, 0, 100})
	y, err := tensor.Softplus(x)
	require.NoError(t, err)
	got := host(t, y)
	assert.InDelta(t, 0, got[0], 1e-6)
	assert.InDelta(t, math.Ln2, got[1], 1e-6)
	assert.InDelta(t, 100, got[2], 1e-4)
}
