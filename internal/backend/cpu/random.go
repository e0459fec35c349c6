package cpu

import (
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/menphim/primitiv/internal/tensor"
)

type sampler interface {
	Rand() float64
}

func (d *Device) fill(shape tensor.Shape, dist sampler, transform func(float64) float32) *tensor.Tensor {
	y := d.NewTensor(shape)
	dst := d.data(y)
	for i := range dst {
		dst[i] = transform(dist.Rand())
	}
	return y
}

func toFloat32(v float64) float32 { return float32(v) }

// RandomBernoulli draws 0/1 values that are 1 with probability p.
func (d *Device) RandomBernoulli(shape tensor.Shape, p float32) *tensor.Tensor {
	return d.fill(shape, distuv.Bernoulli{P: float64(p), Src: d.src}, toFloat32)
}

// RandomUniform draws from (lower, upper].
func (d *Device) RandomUniform(shape tensor.Shape, lower, upper float32) *tensor.Tensor {
	// distuv.Uniform covers [0, 1); reflecting it excludes lower instead.
	return d.fill(shape, distuv.Uniform{Min: 0, Max: 1, Src: d.src}, func(u float64) float32 {
		return upper - float32(u)*(upper-lower)
	})
}

// RandomNormal draws from N(mean, sd²).
func (d *Device) RandomNormal(shape tensor.Shape, mean, sd float32) *tensor.Tensor {
	return d.fill(shape, distuv.Normal{Mu: float64(mean), Sigma: float64(sd), Src: d.src}, toFloat32)
}

// RandomLogNormal draws exp(v) with v from N(mean, sd²).
func (d *Device) RandomLogNormal(shape tensor.Shape, mean, sd float32) *tensor.Tensor {
	return d.fill(shape, distuv.LogNormal{Mu: float64(mean), Sigma: float64(sd), Src: d.src}, toFloat32)
}
