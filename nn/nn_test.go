// Copyright 2025 The primitiv Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menphim/primitiv/backend/cpu"
	"github.com/menphim/primitiv/nn"
	"github.com/menphim/primitiv/tensor"
)

func TestParameterFacade(t *testing.T) {
	dev, err := cpu.New(cpu.Config{Parallel: cpu.Sequential()})
	require.NoError(t, err)
	defer func() { require.NoError(t, dev.Close()) }()

	shape := tensor.MustShape([]int{2, 2}, 1)
	var init nn.Initializer = nn.Identity{}
	p, err := nn.NewParameterWithInit(shape, init, dev)
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.AddStats("m", shape))
	delta, err := tensor.Ones(shape, dev)
	require.NoError(t, err)
	defer delta.Release()
	require.NoError(t, p.AccumulateGradient(delta))

	value, err := p.Value()
	require.NoError(t, err)
	v, err := tensor.ToHost(value)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 1}, v)

	grad, err := p.Gradient()
	require.NoError(t, err)
	g, err := tensor.ToHost(grad)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 1}, g)
}
