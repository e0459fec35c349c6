package cpu

import (
	"github.com/menphim/primitiv/internal/parallel"
	"github.com/menphim/primitiv/internal/tensor"
)

// binaryKernel returns the loop body for op with fixed orientation.
func binaryKernel(op tensor.ArithOp) func(dst, a, b []float32) {
	switch op {
	case tensor.OpAdd:
		return func(dst, a, b []float32) {
			for i := range dst {
				dst[i] = a[i] + b[i]
			}
		}
	case tensor.OpSubtract:
		return func(dst, a, b []float32) {
			for i := range dst {
				dst[i] = a[i] - b[i]
			}
		}
	case tensor.OpMultiply:
		return func(dst, a, b []float32) {
			for i := range dst {
				dst[i] = a[i] * b[i]
			}
		}
	case tensor.OpDivide:
		return func(dst, a, b []float32) {
			for i := range dst {
				dst[i] = a[i] / b[i]
			}
		}
	}
	tensor.Fatalf("cpu: unknown arithmetic op %d", op)
	return nil
}

// constKernel returns the loop body for x op k (k op x when left).
func constKernel(op tensor.ArithOp, k float32, left bool) func(dst, x []float32) {
	switch {
	case op == tensor.OpAdd:
		return func(dst, x []float32) {
			for i, v := range x {
				dst[i] = v + k
			}
		}
	case op == tensor.OpMultiply:
		return func(dst, x []float32) {
			for i, v := range x {
				dst[i] = v * k
			}
		}
	case op == tensor.OpSubtract && left:
		return func(dst, x []float32) {
			for i, v := range x {
				dst[i] = k - v
			}
		}
	case op == tensor.OpSubtract:
		return func(dst, x []float32) {
			for i, v := range x {
				dst[i] = v - k
			}
		}
	case op == tensor.OpDivide && left:
		return func(dst, x []float32) {
			for i, v := range x {
				dst[i] = k / v
			}
		}
	case op == tensor.OpDivide:
		return func(dst, x []float32) {
			for i, v := range x {
				dst[i] = v / k
			}
		}
	}
	tensor.Fatalf("cpu: unknown arithmetic op %d", op)
	return nil
}

// ConstOp computes x op k, or k op x when left.
func (d *Device) ConstOp(op tensor.ArithOp, x *tensor.Tensor, k float32, left bool) *tensor.Tensor {
	y := d.NewTensor(x.Shape())
	src, dst := d.data(x), d.data(y)
	kernel := constKernel(op, k, left)
	parallel.Range(len(dst), d.cfg.Parallel, func(lo, hi int) {
		kernel(dst[lo:hi], src[lo:hi])
	})
	return y
}

// ScalarOp computes x op s, or s op x when left.
func (d *Device) ScalarOp(op tensor.ArithOp, x, s *tensor.Tensor, left bool) *tensor.Tensor {
	if !s.Shape().IsScalar() {
		tensor.Fatalf("cpu: scalar operand has shape %s", s.Shape())
	}
	return d.ConstOp(op, x, d.data(s)[0], left)
}

// ElementwiseOp computes a op b. Equal batches combine sample by sample;
// a batch-1 operand is repeated over the other's samples.
func (d *Device) ElementwiseOp(op tensor.ArithOp, a, b *tensor.Tensor) *tensor.Tensor {
	shape, err := tensor.ElementwiseShape(a.Shape(), b.Shape())
	if err != nil {
		tensor.Fatalf("cpu: %v", err)
	}
	y := d.NewTensor(shape)
	ad, bd, dst := d.data(a), d.data(b), d.data(y)
	kernel := binaryKernel(op)

	n := shape.SizePerSample()
	aSkip := sampleSkip(a.Shape(), n)
	bSkip := sampleSkip(b.Shape(), n)
	if aSkip == bSkip {
		parallel.Range(len(dst), d.cfg.Parallel, func(lo, hi int) {
			kernel(dst[lo:hi], ad[lo:hi], bd[lo:hi])
		})
		return y
	}
	parallel.For(shape.Batch(), func(s int) {
		kernel(dst[s*n:(s+1)*n], ad[s*aSkip:s*aSkip+n], bd[s*bSkip:s*bSkip+n])
	}, d.cfg.Parallel)
	return y
}

// sampleSkip returns the element stride between consecutive samples of
// shape: 0 for a batch-1 operand being repeated.
func sampleSkip(shape tensor.Shape, n int) int {
	if shape.HasBatch() {
		return n
	}
	return 0
}

// AddGradient adds b into a in place.
func (d *Device) AddGradient(a, b *tensor.Tensor) {
	as, bs := a.Shape(), b.Shape()
	if !as.HasSameDims(bs) || !as.HasCompatibleBatch(bs) {
		tensor.Fatalf("cpu: add gradient: shape mismatch: %s and %s", as, bs)
	}
	ad, bd := d.data(a), d.data(b)
	n := as.SizePerSample()
	add := func(dst, src []float32) {
		for i, v := range src {
			dst[i] += v
		}
	}

	switch {
	case as.Batch() == bs.Batch():
		add(ad, bd)
	case bs.Batch() == 1:
		for s := 0; s < as.Batch(); s++ {
			add(ad[s*n:(s+1)*n], bd)
		}
	default:
		for s := 0; s < bs.Batch(); s++ {
			add(ad, bd[s*n:(s+1)*n])
		}
	}
}
