//go:build windows

package webgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menphim/primitiv/internal/tensor"
)

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	if !IsAvailable() {
		t.Skip("WebGPU not available")
	}
	s := uint64(3)
	cfg := DefaultConfig()
	cfg.Seed = &s
	dev, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, dev.Close()) })
	return dev
}

func TestDeviceMatchesReference(t *testing.T) {
	dev := newTestDevice(t)
	mock := tensor.NewMockDevice()
	shp := tensor.MustShape

	cases := []struct {
		name string
		in   []tensor.Shape
		run  func(x []*tensor.Tensor) (*tensor.Tensor, error)
	}{
		{"add broadcast batch", []tensor.Shape{shp([]int{3, 4}, 2), shp([]int{3, 4}, 1)},
			func(x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Add(x[0], x[1]) }},
		{"scalar right", []tensor.Shape{shp([]int{5}, 3), shp(nil, 1)},
			func(x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Divide(x[0], x[1]) }},
		{"sigmoid", []tensor.Shape{shp([]int{7, 3}, 2)},
			func(x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Sigmoid(x[0]) }},
		{"slice", []tensor.Shape{shp([]int{2, 4, 3}, 2)},
			func(x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Slice(x[0], 2, 0, 2) }},
		{"concat", []tensor.Shape{shp([]int{2, 1}, 2), shp([]int{2, 3}, 2)},
			func(x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Concat(x, 1) }},
		{"pick", []tensor.Shape{shp([]int{4, 2}, 1)},
			func(x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Pick(x[0], []int{3, 1}, 0) }},
		{"transpose", []tensor.Shape{shp([]int{3, 5}, 2)},
			func(x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Transpose(x[0]) }},
		{"matmul", []tensor.Shape{shp([]int{3, 4}, 2), shp([]int{4, 2}, 1)},
			func(x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.MatMul(x[0], x[1]) }},
		{"logsumexp", []tensor.Shape{shp([]int{2, 4}, 3)},
			func(x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.LogSumExp(x[0], 0) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var onGPU, onMock []*tensor.Tensor
			for _, s := range tc.in {
				x, err := tensor.RandomUniform(s, 0.5, 2, dev)
				require.NoError(t, err)
				onGPU = append(onGPU, x)
				onMock = append(onMock, mock.CopyFrom(x))
			}
			got, err := tc.run(onGPU)
			require.NoError(t, err)
			want, err := tc.run(onMock)
			require.NoError(t, err)
			assert.InDeltaSlice(t, mock.ToHost(want), dev.ToHost(got), 1e-4)
		})
	}
}

func TestDeviceAddGradientSelf(t *testing.T) {
	dev := newTestDevice(t)
	x, err := tensor.FromValues(tensor.MustShape([]int{3}, 1), []float32{1, 2, 3}, dev)
	require.NoError(t, err)
	require.NoError(t, tensor.AddGradient(x, x))
	assert.Equal(t, []float32{2, 4, 6}, dev.ToHost(x))
	x.Release()

	assert.Zero(t, dev.Stats().LiveBlocks)
	assert.Positive(t, dev.PoolStats().Pooled)
}
