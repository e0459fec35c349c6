package cpu

import (
	"math"

	"github.com/menphim/primitiv/internal/parallel"
	"github.com/menphim/primitiv/internal/tensor"
)

// pointwiseFunc returns the scalar function computing op with slope a.
func pointwiseFunc(op tensor.PointwiseOp, a float32) func(float32) float32 {
	switch op {
	case tensor.OpNegate:
		return func(x float32) float32 { return -x }
	case tensor.OpSqrt:
		return func(x float32) float32 { return float32(math.Sqrt(float64(x))) }
	case tensor.OpExp:
		return func(x float32) float32 { return float32(math.Exp(float64(x))) }
	case tensor.OpLog:
		return func(x float32) float32 { return float32(math.Log(float64(x))) }
	case tensor.OpTanh:
		return func(x float32) float32 { return float32(math.Tanh(float64(x))) }
	case tensor.OpSigmoid:
		return func(x float32) float32 { return float32(0.5 + 0.5*math.Tanh(0.5*float64(x))) }
	case tensor.OpSoftplus:
		// max(x, 0) + log(1 + exp(-|x|)) does not overflow for large x.
		return func(x float32) float32 {
			v := float64(x)
			return float32(math.Max(v, 0) + math.Log1p(math.Exp(-math.Abs(v))))
		}
	case tensor.OpSin:
		return func(x float32) float32 { return float32(math.Sin(float64(x))) }
	case tensor.OpCos:
		return func(x float32) float32 { return float32(math.Cos(float64(x))) }
	case tensor.OpTan:
		return func(x float32) float32 { return float32(math.Tan(float64(x))) }
	case tensor.OpStep:
		return func(x float32) float32 {
			if x > 0 {
				return 1
			}
			return 0
		}
	case tensor.OpPReLU:
		return func(x float32) float32 {
			if x > 0 {
				return x
			}
			return a * x
		}
	case tensor.OpELU:
		return func(x float32) float32 {
			if x > 0 {
				return x
			}
			return a * float32(math.Expm1(float64(x)))
		}
	}
	tensor.Fatalf("cpu: unknown pointwise op %d", op)
	return nil
}

// Pointwise applies op to every element of x.
func (d *Device) Pointwise(op tensor.PointwiseOp, x *tensor.Tensor, a float32) *tensor.Tensor {
	f := pointwiseFunc(op, a)
	y := d.NewTensor(x.Shape())
	src, dst := d.data(x), d.data(y)
	parallel.Range(len(dst), d.cfg.Parallel, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			dst[i] = f(src[i])
		}
	})
	return y
}
