package optim

import (
	"math"

	"github.com/menphim/primitiv/internal/nn"
	"github.com/menphim/primitiv/internal/tensor"
)

const (
	statAdamM1 = "adam.m1"
	statAdamM2 = "adam.m2"
)

// Adam implements adaptive moment estimation (Kingma & Ba, 2014):
//
//	m1 = beta1 * m1 + (1 - beta1) * g
//	m2 = beta2 * m2 + (1 - beta2) * g²
//	value -= alpha * sqrt(1 - beta2^t) / (1 - beta1^t) * m1 / (sqrt(m2) + eps)
//
// where t is the 1-based epoch.
type Adam struct {
	base
	Alpha float32
	Beta1 float32
	Beta2 float32
	Eps   float32
}

// AdamConfig holds the Adam hyperparameters. Zero fields take the
// defaults 0.001, 0.9, 0.999 and 1e-8.
type AdamConfig struct {
	Alpha float32
	Beta1 float32
	Beta2 float32
	Eps   float32
}

// NewAdam creates an Adam optimizer.
func NewAdam(ac AdamConfig, cfg Config) *Adam {
	o := &Adam{
		Alpha: orDefault(ac.Alpha, 0.001),
		Beta1: orDefault(ac.Beta1, 0.9),
		Beta2: orDefault(ac.Beta2, 0.999),
		Eps:   orDefault(ac.Eps, 1e-8),
	}
	o.base = newBase(cfg, o)
	return o
}

func orDefault(v, d float32) float32 {
	if v == 0 {
		return d
	}
	return v
}

func (o *Adam) configure(p *nn.Parameter) error { return addStats(p, statAdamM1, statAdamM2) }

// moment updates m in place to beta*m + (1-beta)*g.
func moment(s *scratch, m, g *tensor.Tensor, beta float32) error {
	old, err := s.keep(tensor.MultiplyConst(m, beta))
	if err != nil {
		return err
	}
	fresh, err := s.keep(tensor.MultiplyConst(g, 1-beta))
	if err != nil {
		return err
	}
	next, err := s.keep(tensor.Add(old, fresh))
	if err != nil {
		return err
	}
	return assign(m, next)
}

func (o *Adam) step(p *nn.Parameter, epoch uint, lrScale float32) error {
	value, err := p.Value()
	if err != nil {
		return err
	}
	grad, _ := p.Gradient()
	m1, err := p.Stats(statAdamM1)
	if err != nil {
		return err
	}
	m2, err := p.Stats(statAdamM2)
	if err != nil {
		return err
	}

	var s scratch
	defer s.release()
	if err := moment(&s, m1, grad, o.Beta1); err != nil {
		return err
	}
	g2, err := s.keep(tensor.Multiply(grad, grad))
	if err != nil {
		return err
	}
	if err := moment(&s, m2, g2, o.Beta2); err != nil {
		return err
	}

	t := float64(epoch + 1)
	alpha := float64(lrScale*o.Alpha) * math.Sqrt(1-math.Pow(float64(o.Beta2), t)) / (1 - math.Pow(float64(o.Beta1), t))

	root, err := s.keep(tensor.Sqrt(m2))
	if err != nil {
		return err
	}
	denom, err := s.keep(tensor.AddConst(root, o.Eps))
	if err != nil {
		return err
	}
	ratio, err := s.keep(tensor.Divide(m1, denom))
	if err != nil {
		return err
	}
	d, err := s.keep(tensor.MultiplyConst(ratio, float32(-alpha)))
	if err != nil {
		return err
	}
	return tensor.AddGradient(value, d)
}
