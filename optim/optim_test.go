package optim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menphim/primitiv/backend/cpu"
	"github.com/menphim/primitiv/nn"
	"github.com/menphim/primitiv/optim"
	"github.com/menphim/primitiv/tensor"
)

func TestOptimizerFacade(t *testing.T) {
	s := uint64(1)
	dev, err := cpu.New(cpu.Config{Seed: &s, Parallel: cpu.Sequential()})
	require.NoError(t, err)
	defer dev.Close()

	w, err := nn.NewParameter(tensor.MustShape([]int{2}, 1), []float32{1, 1}, dev)
	require.NoError(t, err)
	defer w.Release()

	var o optim.Optimizer = optim.NewSGD(0.5, optim.DefaultConfig())
	require.NoError(t, o.Add(w))

	g, err := tensor.Constant(tensor.MustShape([]int{2}, 3), 1, dev)
	require.NoError(t, err)
	defer g.Release()
	require.NoError(t, w.AccumulateGradient(g))
	require.NoError(t, o.Update())

	v, err := w.Value()
	require.NoError(t, err)
	got, err := tensor.ToHost(v)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{-0.5, -0.5}, got, 1e-6)
}
