package cpu

import (
	"math"

	"github.com/menphim/primitiv/internal/tensor"
)

// reduce collapses axis to 1, calling f on the n values of each output
// element spaced skip apart.
func (d *Device) reduce(x *tensor.Tensor, axis int, f func(src []float32, n, skip int) float32) *tensor.Tensor {
	shape, err := tensor.ReduceShape(x.Shape(), axis)
	if err != nil {
		tensor.Fatalf("cpu: %v", err)
	}
	y := d.NewTensor(shape)
	src, dst := d.data(x), d.data(y)

	n := x.Shape().Dim(axis)
	skip := x.Shape().LowerVolume(axis)
	for i := range dst {
		base := (i/skip)*skip*n + i%skip
		dst[i] = f(src[base:], n, skip)
	}
	return y
}

// Sum reduces axis by summation.
func (d *Device) Sum(x *tensor.Tensor, axis int) *tensor.Tensor {
	return d.reduce(x, axis, func(src []float32, n, skip int) float32 {
		var s float64
		for j := 0; j < n; j++ {
			s += float64(src[j*skip])
		}
		return float32(s)
	})
}

// LogSumExp reduces axis by log(sum(exp(x))), shifted by the maximum.
func (d *Device) LogSumExp(x *tensor.Tensor, axis int) *tensor.Tensor {
	return d.reduce(x, axis, func(src []float32, n, skip int) float32 {
		m := math.Inf(-1)
		for j := 0; j < n; j++ {
			m = math.Max(m, float64(src[j*skip]))
		}
		var s float64
		for j := 0; j < n; j++ {
			s += math.Exp(float64(src[j*skip]) - m)
		}
		return float32(m + math.Log(s))
	})
}

// BatchSum sums the samples of x.
func (d *Device) BatchSum(x *tensor.Tensor) *tensor.Tensor {
	y := d.NewTensor(tensor.BatchReduceShape(x.Shape()))
	src, dst := d.data(x), d.data(y)
	n := len(dst)
	for s := 0; s < x.Shape().Batch(); s++ {
		for i, v := range src[s*n : (s+1)*n] {
			dst[i] += v
		}
	}
	return y
}
