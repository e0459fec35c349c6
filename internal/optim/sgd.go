package optim

import (
	"github.com/menphim/primitiv/internal/nn"
	"github.com/menphim/primitiv/internal/tensor"
)

// SGD is plain stochastic gradient descent:
//
//	value -= lr * gradient
type SGD struct {
	base
	LR float32
}

// NewSGD creates an SGD optimizer. A zero lr selects 0.1.
func NewSGD(lr float32, cfg Config) *SGD {
	if lr == 0 {
		lr = 0.1
	}
	o := &SGD{LR: lr}
	o.base = newBase(cfg, o)
	return o
}

func (o *SGD) configure(*nn.Parameter) error { return nil }

func (o *SGD) step(p *nn.Parameter, _ uint, lrScale float32) error {
	value, err := p.Value()
	if err != nil {
		return err
	}
	grad, _ := p.Gradient()
	var s scratch
	defer s.release()
	d, err := s.keep(tensor.MultiplyConst(grad, -lrScale*o.LR))
	if err != nil {
		return err
	}
	return tensor.AddGradient(value, d)
}

const statMomentum = "momentum-sgd.m"

// MomentumSGD is SGD with a velocity term:
//
//	m = momentum * m - lr * gradient
//	value += m
type MomentumSGD struct {
	base
	LR       float32
	Momentum float32
}

// NewMomentumSGD creates a MomentumSGD optimizer. Zero values select
// lr 0.01 and momentum 0.9.
func NewMomentumSGD(lr, momentum float32, cfg Config) *MomentumSGD {
	if lr == 0 {
		lr = 0.01
	}
	if momentum == 0 {
		momentum = 0.9
	}
	o := &MomentumSGD{LR: lr, Momentum: momentum}
	o.base = newBase(cfg, o)
	return o
}

func (o *MomentumSGD) configure(p *nn.Parameter) error { return addStats(p, statMomentum) }

func (o *MomentumSGD) step(p *nn.Parameter, _ uint, lrScale float32) error {
	value, err := p.Value()
	if err != nil {
		return err
	}
	grad, _ := p.Gradient()
	m, err := p.Stats(statMomentum)
	if err != nil {
		return err
	}

	var s scratch
	defer s.release()
	decayed, err := s.keep(tensor.MultiplyConst(m, o.Momentum))
	if err != nil {
		return err
	}
	scaled, err := s.keep(tensor.MultiplyConst(grad, -lrScale*o.LR))
	if err != nil {
		return err
	}
	next, err := s.keep(tensor.Add(decayed, scaled))
	if err != nil {
		return err
	}
	if err := assign(m, next); err != nil {
		return err
	}
	return tensor.AddGradient(value, m)
}
