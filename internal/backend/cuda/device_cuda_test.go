//go:build cuda

package cuda

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menphim/primitiv/internal/tensor"
)

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	if n, err := DeviceCount(); err != nil || n == 0 {
		t.Skip("no CUDA device")
	}
	s := uint64(7)
	dev, err := New(Config{Seed: &s})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, dev.Close()) })
	return dev
}

// Results are compared against the host reference device.
func TestDeviceMatchesReference(t *testing.T) {
	dev := newTestDevice(t)
	mock := tensor.NewMockDevice()
	shp := tensor.MustShape

	cases := []struct {
		name string
		in   []tensor.Shape
		run  func(dev tensor.Device, x []*tensor.Tensor) (*tensor.Tensor, error)
	}{
		{"add broadcast batch", []tensor.Shape{shp([]int{3, 4}, 2), shp([]int{3, 4}, 1)},
			func(_ tensor.Device, x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Add(x[0], x[1]) }},
		{"scalar left", []tensor.Shape{shp(nil, 1), shp([]int{5}, 3)},
			func(_ tensor.Device, x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Subtract(x[0], x[1]) }},
		{"const by", []tensor.Shape{shp([]int{5}, 3)},
			func(_ tensor.Device, x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.DivideConstBy(2, x[0]) }},
		{"elu", []tensor.Shape{shp([]int{7, 3}, 2)},
			func(_ tensor.Device, x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.ELU(x[0], 0.5) }},
		{"slice", []tensor.Shape{shp([]int{2, 4, 3}, 2)},
			func(_ tensor.Device, x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Slice(x[0], 1, 1, 3) }},
		{"concat", []tensor.Shape{shp([]int{2, 1}, 2), shp([]int{2, 3}, 2)},
			func(_ tensor.Device, x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Concat(x, 1) }},
		{"pick", []tensor.Shape{shp([]int{2, 4}, 3)},
			func(_ tensor.Device, x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Pick(x[0], []int{3, 0, 1}, 1) }},
		{"broadcast", []tensor.Shape{shp([]int{3, 1}, 2)},
			func(_ tensor.Device, x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Broadcast(x[0], 1, 4) }},
		{"transpose", []tensor.Shape{shp([]int{33, 17}, 2)},
			func(_ tensor.Device, x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Transpose(x[0]) }},
		{"matmul", []tensor.Shape{shp([]int{3, 4}, 1), shp([]int{4, 2}, 3)},
			func(_ tensor.Device, x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.MatMul(x[0], x[1]) }},
		{"logsumexp", []tensor.Shape{shp([]int{2, 4, 3}, 2)},
			func(_ tensor.Device, x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.LogSumExp(x[0], 1) }},
		{"batch sum", []tensor.Shape{shp([]int{2, 4}, 5)},
			func(_ tensor.Device, x []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.BatchSum(x[0]) }},
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
			got, err := tc.run(dev, onGPU)
			require.NoError(t, err)
			want, err := tc.run(mock, onMock)
			require.NoError(t, err)

			gv, err := tensor.ToHost(got)
			require.NoError(t, err)
			wv, err := tensor.ToHost(want)
			require.NoError(t, err)
			assert.InDeltaSlice(t, wv, gv, 1e-4)

			got.Release()
			for _, x := range onGPU {
				x.Release()
			}
		})
	}
	assert.Zero(t, dev.Stats().LiveBlocks)
}

func TestDeviceRandomOddSizes(t *testing.T) {
	dev := newTestDevice(t)
	x := dev.RandomNormal(tensor.MustShape([]int{7}, 1), 0, 1)
	y := dev.RandomLogNormal(tensor.MustShape([]int{3}, 1), 0, 1)
	for _, v := range dev.ToHost(y) {
		assert.Positive(t, v)
	}
	x.Release()
	y.Release()
	assert.Zero(t, dev.Stats().LiveBlocks, "temporary buffers are freed")
}

func TestDeviceCloseIsIdempotent(t *testing.T) {
	if n, err := DeviceCount(); err != nil || n == 0 {
		t.Skip("no CUDA device")
	}
	dev, err := New(DefaultConfig())
	require.NoError(t, err)
	_ = dev.NewTensor(tensor.MustShape([]int{4}, 1))
	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())
}
