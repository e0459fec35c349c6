// Package optim implements parameter update rules over nn.Parameter.
//
// Optimizers keep their per-parameter state in the parameter's named
// statistics, so the state lives on the same device as the weights and is
// released together with the parameter.
package optim

import (
	"math"

	"k8s.io/klog/v2"

	"github.com/menphim/primitiv/internal/nn"
	"github.com/menphim/primitiv/internal/tensor"
)

// Optimizer updates a set of parameters from their accumulated gradients.
type Optimizer interface {
	// Add registers parameters and allocates their optimizer state.
	Add(params ...*nn.Parameter) error

	// AddModel registers every parameter of m and its submodels.
	AddModel(m *nn.Model) error

	// ResetGradients clears the gradient of every registered parameter.
	ResetGradients() error

	// Update applies one step and advances the epoch.
	Update() error

	// Epoch returns the number of completed updates.
	Epoch() uint
}

// Config holds the hyperparameters shared by every optimizer.
type Config struct {
	LRScale       float32 // Multiplies the learning rate (default: 1)
	WeightDecay   float32 // L2 penalty added to the gradient; 0 disables it
	ClipThreshold float32 // Global gradient norm limit; 0 disables clipping
}

// DefaultConfig returns a Config with no decay and no clipping.
func DefaultConfig() Config { return Config{LRScale: 1} }

// rule is the per-optimizer part of an update.
type rule interface {
	configure(p *nn.Parameter) error
	step(p *nn.Parameter, epoch uint, lrScale float32) error
}

// base implements Optimizer on top of a rule.
type base struct {
	cfg    Config
	rule   rule
	params []*nn.Parameter
	seen   map[*nn.Parameter]struct{}
	epoch  uint
}

func newBase(cfg Config, r rule) base {
	if cfg.LRScale == 0 {
		cfg.LRScale = 1
	}
	return base{cfg: cfg, rule: r, seen: make(map[*nn.Parameter]struct{})}
}

// Add implements Optimizer.
func (o *base) Add(params ...*nn.Parameter) error {
	for _, p := range params {
		if !p.Valid() {
			return tensor.InvalidObjectf("optimizer: invalid parameter")
		}
		if _, ok := o.seen[p]; ok {
			return tensor.Validationf("optimizer: parameter added twice")
		}
		if err := o.rule.configure(p); err != nil {
			return err
		}
		o.seen[p] = struct{}{}
		o.params = append(o.params, p)
	}
	return nil
}

// AddModel implements Optimizer.
func (o *base) AddModel(m *nn.Model) error {
	if m == nil {
		return tensor.InvalidObjectf("optimizer: nil model")
	}
	return o.Add(m.Parameters()...)
}

// ResetGradients implements Optimizer.
func (o *base) ResetGradients() error {
	for _, p := range o.params {
		if err := p.ResetGradient(); err != nil {
			return err
		}
	}
	return nil
}

// Epoch implements Optimizer.
func (o *base) Epoch() uint { return o.epoch }

// SetEpoch overrides the epoch counter, e.g. when resuming training.
func (o *base) SetEpoch(epoch uint) { o.epoch = epoch }

// Config returns the shared hyperparameters.
func (o *base) Config() Config { return o.cfg }

// SetLRScale changes the learning-rate multiplier for later updates.
func (o *base) SetLRScale(scale float32) { o.cfg.LRScale = scale }

// Update implements Optimizer.
func (o *base) Update() error {
	if o.cfg.WeightDecay > 0 {
		for _, p := range o.params {
			if err := decay(p, o.cfg.WeightDecay); err != nil {
				return err
			}
		}
	}
	if o.cfg.ClipThreshold > 0 {
		if err := clip(o.params, o.cfg.ClipThreshold); err != nil {
			return err
		}
	}
	for _, p := range o.params {
		if err := o.rule.step(p, o.epoch, o.cfg.LRScale); err != nil {
			return err
		}
	}
	o.epoch++
	return nil
}

// decay adds strength·value into the gradient of p.
func decay(p *nn.Parameter, strength float32) error {
	value, err := p.Value()
	if err != nil {
		return err
	}
	var s scratch
	defer s.release()
	d, err := s.keep(tensor.MultiplyConst(value, strength))
	if err != nil {
		return err
	}
	return p.AccumulateGradient(d)
}

// clip rescales all gradients so that their joint L2 norm is at most
// threshold.
func clip(params []*nn.Parameter, threshold float32) error {
	grads := make([][]float32, len(params))
	var sq float64
	for i, p := range params {
		g, err := p.Gradient()
		if err != nil {
			return err
		}
		if grads[i], err = tensor.ToHost(g); err != nil {
			return err
		}
		for _, v := range grads[i] {
			sq += float64(v) * float64(v)
		}
	}
	norm := math.Sqrt(sq)
	if norm <= float64(threshold) {
		return nil
	}
	scale := float32(float64(threshold) / norm)
	klog.V(2).InfoS("clipping gradients", "norm", norm, "threshold", threshold)
	for i, p := range params {
		for j := range grads[i] {
			grads[i][j] *= scale
		}
		g, _ := p.Gradient()
		if err := tensor.ResetValues(g, grads[i]); err != nil {
			return err
		}
	}
	return nil
}

// scratch collects temporaries of one update.
type scratch []*tensor.Tensor

func (s *scratch) keep(x *tensor.Tensor, err error) (*tensor.Tensor, error) {
	if err == nil {
		*s = append(*s, x)
	}
	return x, err
}

func (s *scratch) release() {
	for _, x := range *s {
		x.Release()
	}
	*s = nil
}

// assign overwrites dst with src.
func assign(dst, src *tensor.Tensor) error {
	if err := tensor.Reset(dst, 0); err != nil {
		return err
	}
	return tensor.AddGradient(dst, src)
}

// addStats allocates name on p unless it already exists, so a parameter
// shared between optimizers keeps one copy of its state.
func addStats(p *nn.Parameter, names ...string) error {
	shape, err := p.Shape()
	if err != nil {
		return err
	}
	for _, name := range names {
		if p.HasStats(name) {
			continue
		}
		if err := p.AddStats(name, shape); err != nil {
			return err
		}
	}
	return nil
}
