// Copyright 2025 The primitiv Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menphim/primitiv/backend/cpu"
	"github.com/menphim/primitiv/tensor"
)

func newDevice(t *testing.T) *cpu.Device {
	t.Helper()
	dev, err := cpu.New(cpu.Config{Parallel: cpu.Sequential()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, dev.Close()) })
	return dev
}

func TestPublicAPI(t *testing.T) {
	dev := newDevice(t)
	tensor.SetDefaultDevice(dev)
	t.Cleanup(tensor.ClearDefaultDevice)

	x, err := tensor.FromValues(tensor.MustShape([]int{3}, 2), []float32{1, 2, 3, 4, 5, 6}, nil)
	require.NoError(t, err)
	defer x.Release()
	k, err := tensor.FromValues(tensor.MustShape(nil, 1), []float32{10}, nil)
	require.NoError(t, err)
	defer k.Release()

	y, err := tensor.Subtract(k, x)
	require.NoError(t, err)
	defer y.Release()
	v, err := tensor.ToHost(y)
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 8, 7, 6, 5, 4}, v)

	s, err := tensor.BatchSum(x)
	require.NoError(t, err)
	defer s.Release()
	v, err = tensor.ToHost(s)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 7, 9}, v)

	bad, err := tensor.Zeros(tensor.MustShape([]int{4}, 1), nil)
	require.NoError(t, err)
	defer bad.Release()
	_, err = tensor.Add(x, bad)
	assert.True(t, errors.Is(err, tensor.ErrValidation))
	kind, ok := tensor.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, tensor.KindValidation, kind)
}

func Example() {
	dev, err := cpu.New(cpu.Config{Parallel: cpu.Sequential()})
	if err != nil {
		panic(err)
	}
	defer dev.Close()

	// Column-major: the first axis varies fastest.
	x, _ := tensor.FromValues(tensor.MustShape([]int{2, 3}, 1), []float32{1, 2, 3, 4, 5, 6}, dev)
	defer x.Release()
	y, _ := tensor.Sum(x, 1)
	defer y.Release()

	v, _ := tensor.ToHost(y)
	fmt.Println(y.Shape(), v)
	// Output: [2]x1 [9 12]
}
