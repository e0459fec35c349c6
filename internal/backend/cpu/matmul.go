package cpu

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/menphim/primitiv/internal/tensor"
)

// MatMul computes the batched product a·b with SGEMM.
//
// Tensors are column-major per sample while blas32 is row-major, so each
// sample computes yᵀ = bᵀ·aᵀ on the unmodified buffers. A batch-1 operand
// is reused for every sample.
func (d *Device) MatMul(a, b *tensor.Tensor) *tensor.Tensor {
	shape, err := tensor.MatMulShape(a.Shape(), b.Shape())
	if err != nil {
		tensor.Fatalf("cpu: %v", err)
	}
	y := d.NewTensor(shape)
	ad, bd, dst := d.data(a), d.data(b), d.data(y)

	m, k, n := a.Shape().Dim(0), a.Shape().Dim(1), b.Shape().Dim(1)
	aSkip := sampleSkip(a.Shape(), m*k)
	bSkip := sampleSkip(b.Shape(), k*n)
	for s := 0; s < shape.Batch(); s++ {
		at := blas32.General{Rows: k, Cols: m, Stride: m, Data: ad[s*aSkip : s*aSkip+m*k]}
		bt := blas32.General{Rows: n, Cols: k, Stride: k, Data: bd[s*bSkip : s*bSkip+k*n]}
		yt := blas32.General{Rows: n, Cols: m, Stride: m, Data: dst[s*m*n : (s+1)*m*n]}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, bt, at, 0, yt)
	}
	return y
}
