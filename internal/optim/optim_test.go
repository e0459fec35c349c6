package optim_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menphim/primitiv/internal/backend/cpu"
	"github.com/menphim/primitiv/internal/nn"
	"github.com/menphim/primitiv/internal/optim"
	"github.com/menphim/primitiv/internal/parallel"
	"github.com/menphim/primitiv/internal/tensor"
)

func newDevice(t *testing.T) *cpu.Device {
	t.Helper()
	s := uint64(3)
	dev, err := cpu.New(cpu.Config{Seed: &s, Parallel: parallel.Sequential()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, dev.Close()) })
	return dev
}

func param(t *testing.T, dev tensor.Device, values ...float32) *nn.Parameter {
	t.Helper()
	p, err := nn.NewParameter(tensor.MustShape([]int{len(values)}, 1), values, dev)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func setGradient(t *testing.T, p *nn.Parameter, values ...float32) {
	t.Helper()
	g, err := p.Gradient()
	require.NoError(t, err)
	require.NoError(t, tensor.ResetValues(g, values))
}

func value(t *testing.T, p *nn.Parameter) []float32 {
	t.Helper()
	v, err := p.Value()
	require.NoError(t, err)
	out, err := tensor.ToHost(v)
	require.NoError(t, err)
	return out
}

func TestSGD(t *testing.T) {
	dev := newDevice(t)
	p := param(t, dev, 2, 4)
	o := optim.NewSGD(0.1, optim.DefaultConfig())
	require.NoError(t, o.Add(p))

	setGradient(t, p, 1, -2)
	require.NoError(t, o.Update())
	assert.InDeltaSlice(t, []float32{1.9, 4.2}, value(t, p), 1e-6)
	assert.Equal(t, uint(1), o.Epoch())

	o.SetLRScale(0.5)
	require.NoError(t, o.Update())
	assert.InDeltaSlice(t, []float32{1.85, 4.3}, value(t, p), 1e-6)
}

func TestMomentumSGD(t *testing.T) {
	dev := newDevice(t)
	p := param(t, dev, 2)
	o := optim.NewMomentumSGD(0.1, 0.9, optim.DefaultConfig())
	require.NoError(t, o.Add(p))
	assert.True(t, p.HasStats("momentum-sgd.m"))

	setGradient(t, p, 1)
	require.NoError(t, o.Update())
	assert.InDeltaSlice(t, []float32{1.9}, value(t, p), 1e-6)
	require.NoError(t, o.Update())
	assert.InDeltaSlice(t, []float32{1.71}, value(t, p), 1e-5)
}

func TestAdamFirstStep(t *testing.T) {
	dev := newDevice(t)
	p := param(t, dev, 2, 2)
	o := optim.NewAdam(optim.AdamConfig{Alpha: 0.01}, optim.DefaultConfig())
	require.NoError(t, o.Add(p))
	assert.Equal(t, []string{"adam.m1", "adam.m2"}, p.StatsNames())

	// With bias correction the first step moves each weight by about alpha
	// in the direction opposite to its gradient.
	setGradient(t, p, 1, -3)
	require.NoError(t, o.Update())
	assert.InDeltaSlice(t, []float32{1.99, 2.01}, value(t, p), 1e-5)
}

func TestWeightDecay(t *testing.T) {
	dev := newDevice(t)
	p := param(t, dev, 2)
	o := optim.NewSGD(0.1, optim.Config{WeightDecay: 0.5})
	require.NoError(t, o.Add(p))

	require.NoError(t, o.Update())
	assert.InDeltaSlice(t, []float32{1.9}, value(t, p), 1e-6)
}

func TestGradientClipping(t *testing.T) {
	dev := newDevice(t)
	a := param(t, dev, 2)
	b := param(t, dev, 4)
	o := optim.NewSGD(1, optim.Config{ClipThreshold: 1})
	require.NoError(t, o.Add(a, b))

	setGradient(t, a, 3)
	setGradient(t, b, 4)
	require.NoError(t, o.Update())
	assert.InDeltaSlice(t, []float32{1.4}, value(t, a), 1e-6)
	assert.InDeltaSlice(t, []float32{3.2}, value(t, b), 1e-6)
}

func TestResetGradients(t *testing.T) {
	dev := newDevice(t)
	p := param(t, dev, 1, 1)
	o := optim.NewSGD(0.1, optim.DefaultConfig())
	require.NoError(t, o.Add(p))

	setGradient(t, p, 5, 5)
	require.NoError(t, o.ResetGradients())
	g, err := p.Gradient()
	require.NoError(t, err)
	got, err := tensor.ToHost(g)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, got)
}

func TestAddRejectsBadParameters(t *testing.T) {
	dev := newDevice(t)
	p := param(t, dev, 1)
	o := optim.NewAdam(optim.AdamConfig{}, optim.DefaultConfig())
	require.NoError(t, o.Add(p))

	err := o.Add(p)
	assert.True(t, errors.Is(err, tensor.ErrValidation))

	err = o.Add(&nn.Parameter{})
	assert.True(t, errors.Is(err, tensor.ErrInvalidObject))
}

func TestUpdateReleasesTemporaries(t *testing.T) {
	dev := newDevice(t)
	cfg := optim.Config{WeightDecay: 0.1, ClipThreshold: 0.5}
	optimizers := map[string]optim.Optimizer{
		"sgd":      optim.NewSGD(0.1, cfg),
		"momentum": optim.NewMomentumSGD(0.1, 0.9, cfg),
		"adam":     optim.NewAdam(optim.AdamConfig{}, cfg),
	}
	for name, o := range optimizers {
		t.Run(name, func(t *testing.T) {
			p := param(t, dev, 1, 2, 3)
			require.NoError(t, o.Add(p))
			setGradient(t, p, 0.5, -1, 2)

			before := dev.Stats().LiveBlocks
			require.NoError(t, o.Update())
			require.NoError(t, o.Update())
			assert.Equal(t, before, dev.Stats().LiveBlocks)
		})
	}
}

func TestAddModel(t *testing.T) {
	dev := newDevice(t)
	w, b := param(t, dev, 1, 1), param(t, dev, 0)
	inner := nn.NewModel()
	require.NoError(t, inner.AddParameter("b", b))
	m := nn.NewModel()
	require.NoError(t, m.AddParameter("w", w))
	require.NoError(t, m.AddSubmodel("inner", inner))

	o := optim.NewSGD(0.5, optim.DefaultConfig())
	require.NoError(t, o.AddModel(m))
	setGradient(t, w, 1, 2)
	setGradient(t, b, 4)
	require.NoError(t, o.Update())
	assert.InDeltaSlice(t, []float32{0.5, 0}, value(t, w), 1e-6)
	assert.InDeltaSlice(t, []float32{-2}, value(t, b), 1e-6)

	assert.True(t, errors.Is(o.AddModel(m), tensor.ErrValidation))
	assert.True(t, errors.Is(o.AddModel(nil), tensor.ErrInvalidObject))
}

func TestSharedStateAcrossOptimizers(t *testing.T) {
	dev := newDevice(t)
	p := param(t, dev, 1)
	require.NoError(t, optim.NewMomentumSGD(0, 0, optim.DefaultConfig()).Add(p))
	require.NoError(t, optim.NewMomentumSGD(0, 0, optim.DefaultConfig()).Add(p))
	assert.Equal(t, []string{"momentum-sgd.m"}, p.StatsNames())
}
