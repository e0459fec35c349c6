package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menphim/primitiv/backend/cpu"
	"github.com/menphim/primitiv/tensor"
)

func TestSelfcheckCPU(t *testing.T) {
	s := uint64(5)
	dev, err := cpu.New(cpu.Config{Seed: &s, Parallel: cpu.Sequential()})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, selfcheck(dev, &out))
	assert.Contains(t, out.String(), "selfcheck on CPU")
	assert.NotContains(t, out.String(), "FAIL")
	assert.Zero(t, dev.Stats().LiveBlocks, "checks release their tensors")
	require.NoError(t, dev.Close())
}

func TestSelfcheckReportsLeaks(t *testing.T) {
	dev, err := cpu.New(cpu.Config{Parallel: cpu.Sequential()})
	require.NoError(t, err)
	defer dev.Close()

	saved := checks
	t.Cleanup(func() { checks = saved })
	var leaked *tensor.Tensor
	checks = []check{{"leaky", func(dev tensor.Device) error {
		x, err := tensor.Zeros(tensor.MustShape([]int{2}, 1), dev)
		leaked = x
		return err
	}}}

	var out bytes.Buffer
	assert.Error(t, selfcheck(dev, &out))
	assert.Contains(t, out.String(), "FAIL: leaked 1 blocks")
	leaked.Release()
}

func TestOpenDevice(t *testing.T) {
	dev, err := openDevice("cpu", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "CPU", dev.Name())
	require.NoError(t, dev.Close())

	_, err = openDevice("tpu", 0, nil)
	assert.Error(t, err)
}

func TestListDevices(t *testing.T) {
	var out bytes.Buffer
	listDevices(&out)
	assert.Contains(t, out.String(), "DEVICE")
	assert.Contains(t, out.String(), "cpu")
	assert.Contains(t, out.String(), "cuda")
	assert.Contains(t, out.String(), "webgpu")
}
