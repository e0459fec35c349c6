// Package nn provides the trainable parameter container and weight
// initializers built on the tensor core.
//
// A Parameter owns three kinds of tensors on one device:
//   - value: the current weights
//   - gradient: accumulated by AccumulateGradient, cleared by ResetGradient
//   - stats: named optimizer state (momentum, second moments, ...)
//
// All numeric work is delegated to the device through package tensor.
package nn

import (
	"sort"

	"github.com/menphim/primitiv/internal/tensor"
)

// Parameter is a trainable tensor together with its gradient and named
// optimizer statistics.
//
// The zero Parameter is invalid; every accessor on it returns an error
// matching tensor.ErrInvalidObject.
//
// Example:
//
//	w, err := nn.NewParameterWithInit(tensor.MustShape([]int{4, 3}, 1), nn.XavierUniform{Scale: 1}, dev)
//	...
//	err = w.AccumulateGradient(delta)
type Parameter struct {
	value *tensor.Tensor
	grad  *tensor.Tensor
	stats map[string]*tensor.Tensor
}

// NewParameter creates a parameter holding values, with a zero gradient.
//
// Parameters:
//   - shape: Per-sample shape; the batch must be 1
//   - values: Initial weights in column-major order, len(values) == shape.Size()
//   - dev: Device to allocate on; nil selects the default device
func NewParameter(shape tensor.Shape, values []float32, dev tensor.Device) (*Parameter, error) {
	if err := checkShape(shape); err != nil {
		return nil, err
	}
	value, err := tensor.FromValues(shape, values, dev)
	if err != nil {
		return nil, err
	}
	return newParameter(value)
}

// NewParameterWithInit creates a parameter whose value is produced by init.
func NewParameterWithInit(shape tensor.Shape, init Initializer, dev tensor.Device) (*Parameter, error) {
	if err := checkShape(shape); err != nil {
		return nil, err
	}
	value, err := tensor.Zeros(shape, dev)
	if err != nil {
		return nil, err
	}
	if err := init.Apply(value); err != nil {
		value.Release()
		return nil, err
	}
	return newParameter(value)
}

func newParameter(value *tensor.Tensor) (*Parameter, error) {
	grad, err := tensor.Zeros(value.Shape(), value.Device())
	if err != nil {
		value.Release()
		return nil, err
	}
	return &Parameter{value: value, grad: grad, stats: make(map[string]*tensor.Tensor)}, nil
}

func checkShape(shape tensor.Shape) error {
	if shape.HasBatch() {
		return tensor.Validationf("parameter shape must have batch 1, got %s", shape)
	}
	return nil
}

// Valid reports whether p holds tensors.
func (p *Parameter) Valid() bool { return p != nil && p.value.Valid() }

func (p *Parameter) check(op string) error {
	if !p.Valid() {
		return tensor.InvalidObjectf("%s: invalid parameter", op)
	}
	return nil
}

// Shape returns the shape of the value.
func (p *Parameter) Shape() (tensor.Shape, error) {
	if err := p.check("shape"); err != nil {
		return tensor.Shape{}, err
	}
	return p.value.Shape(), nil
}

// Device returns the device holding the parameter.
func (p *Parameter) Device() (tensor.Device, error) {
	if err := p.check("device"); err != nil {
		return nil, err
	}
	return p.value.Device(), nil
}

// Value returns the weights. The tensor stays owned by p.
func (p *Parameter) Value() (*tensor.Tensor, error) {
	if err := p.check("value"); err != nil {
		return nil, err
	}
	return p.value, nil
}

// Gradient returns the accumulated gradient. The tensor stays owned by p.
func (p *Parameter) Gradient() (*tensor.Tensor, error) {
	if err := p.check("gradient"); err != nil {
		return nil, err
	}
	return p.grad, nil
}

// ResetValue overwrites the weights.
func (p *Parameter) ResetValue(values []float32) error {
	if err := p.check("reset value"); err != nil {
		return err
	}
	return tensor.ResetValues(p.value, values)
}

// ResetValueWithInit overwrites the weights using init.
func (p *Parameter) ResetValueWithInit(init Initializer) error {
	if err := p.check("reset value"); err != nil {
		return err
	}
	return init.Apply(p.value)
}

// ResetGradient sets the gradient to zero.
func (p *Parameter) ResetGradient() error {
	if err := p.check("reset gradient"); err != nil {
		return err
	}
	return tensor.Reset(p.grad, 0)
}

// AccumulateGradient adds delta into the gradient. A batched delta is
// summed over its samples.
func (p *Parameter) AccumulateGradient(delta *tensor.Tensor) error {
	if err := p.check("accumulate gradient"); err != nil {
		return err
	}
	return tensor.AddGradient(p.grad, delta)
}

// AddStats allocates a zero-filled optimizer statistic called name.
func (p *Parameter) AddStats(name string, shape tensor.Shape) error {
	if err := p.check("add stats"); err != nil {
		return err
	}
	if _, ok := p.stats[name]; ok {
		return tensor.Validationf("add stats: %q already exists", name)
	}
	if err := checkShape(shape); err != nil {
		return err
	}
	x, err := tensor.Zeros(shape, p.value.Device())
	if err != nil {
		return err
	}
	p.stats[name] = x
	return nil
}

// HasStats reports whether the statistic called name exists.
func (p *Parameter) HasStats(name string) bool {
	if !p.Valid() {
		return false
	}
	_, ok := p.stats[name]
	return ok
}

// Stats returns the statistic called name.
func (p *Parameter) Stats(name string) (*tensor.Tensor, error) {
	if err := p.check("stats"); err != nil {
		return nil, err
	}
	x, ok := p.stats[name]
	if !ok {
		return nil, tensor.InvalidObjectf("stats: no entry %q", name)
	}
	return x, nil
}

// StatsNames returns the statistic names in sorted order.
func (p *Parameter) StatsNames() []string {
	if !p.Valid() {
		return nil
	}
	names := make([]string, 0, len(p.stats))
	for name := range p.stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Release frees every tensor of p and invalidates it. Releasing an invalid
// parameter is a no-op.
func (p *Parameter) Release() {
	if !p.Valid() {
		return
	}
	for name, x := range p.stats {
		x.Release()
		delete(p.stats, name)
	}
	p.grad.Release()
	p.value.Release()
	p.value, p.grad, p.stats = nil, nil, nil
}
