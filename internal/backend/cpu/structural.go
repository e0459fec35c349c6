package cpu

import (
	"github.com/menphim/primitiv/internal/tensor"
)

// Slice copies [lower, upper) along axis. Along the flat layout the result
// is a sequence of spans of lowerVolume*(upper-lower) elements taken every
// lowerVolume*x.Dim(axis) elements.
func (d *Device) Slice(x *tensor.Tensor, axis, lower, upper int) *tensor.Tensor {
	shape, err := tensor.SliceShape(x.Shape(), axis, lower, upper)
	if err != nil {
		tensor.Fatalf("cpu: %v", err)
	}
	y := d.NewTensor(shape)
	src, dst := d.data(x), d.data(y)

	base := x.Shape().LowerVolume(axis)
	span := base * (upper - lower)
	skip := base * x.Shape().Dim(axis)
	shift := base * lower
	for i, j := 0, 0; i < len(dst); i, j = i+span, j+skip {
		copy(dst[i:i+span], src[j+shift:j+shift+span])
	}
	return y
}

// Concat copies each input into its band of the result along axis.
func (d *Device) Concat(xs []*tensor.Tensor, axis int, shape tensor.Shape) *tensor.Tensor {
	y := d.NewTensor(shape)
	dst := d.data(y)

	base := shape.LowerVolume(axis)
	skip := base * shape.Dim(axis)
	offset := 0
	for _, x := range xs {
		src := d.data(x)
		span := base * x.Shape().Dim(axis)
		if len(src)/span*skip != len(dst) {
			tensor.Fatalf("cpu: concat input %s does not fit %s", x.Shape(), shape)
		}
		for i, j := 0, offset; i < len(src); i, j = i+span, j+skip {
			copy(dst[j:j+span], src[i:i+span])
		}
		offset += span
	}
	return y
}

// Pick gathers ids along axis. ids[n] applies to sample n, or ids[0] to
// every sample; a batch-1 x serves every sample.
func (d *Device) Pick(x *tensor.Tensor, ids []int, axis int) *tensor.Tensor {
	shape, err := tensor.PickShape(x.Shape(), ids, axis)
	if err != nil {
		tensor.Fatalf("cpu: %v", err)
	}
	y := d.NewTensor(shape)
	src, dst := d.data(x), d.data(y)

	xs := x.Shape()
	base := xs.LowerVolume(axis)
	skip := base * xs.Dim(axis)
	wx := xs.SizePerSample()
	wy := shape.SizePerSample()
	xSkip := sampleSkip(xs, wx)
	for n := 0; n < shape.Batch(); n++ {
		id := ids[0]
		if len(ids) > 1 {
			id = ids[n]
		}
		sx := src[n*xSkip+id*base:]
		sy := dst[n*wy : (n+1)*wy]
		for i, j := 0, 0; i < wy; i, j = i+base, j+skip {
			copy(sy[i:i+base], sx[j:j+base])
		}
	}
	return y
}

// Broadcast repeats x size times along a singleton axis.
func (d *Device) Broadcast(x *tensor.Tensor, axis, size int) *tensor.Tensor {
	shape, err := tensor.BroadcastShape(x.Shape(), axis, size)
	if err != nil {
		tensor.Fatalf("cpu: %v", err)
	}
	y := d.NewTensor(shape)
	src, dst := d.data(x), d.data(y)

	base := x.Shape().LowerVolume(axis)
	for i, j := 0, 0; j < len(src); j += base {
		for k := 0; k < size; k, i = k+1, i+base {
			copy(dst[i:i+base], src[j:j+base])
		}
	}
	return y
}

// Transpose swaps the two leading axes of each sample.
func (d *Device) Transpose(x *tensor.Tensor) *tensor.Tensor {
	shape, err := tensor.TransposeShape(x.Shape())
	if err != nil {
		tensor.Fatalf("cpu: %v", err)
	}
	y := d.NewTensor(shape)
	src, dst := d.data(x), d.data(y)

	rows, cols := x.Shape().Dim(0), x.Shape().Dim(1)
	n := rows * cols
	for s := 0; s < shape.Batch(); s++ {
		xs, ys := src[s*n:(s+1)*n], dst[s*n:(s+1)*n]
		for j := 0; j < cols; j++ {
			for i := 0; i < rows; i++ {
				ys[j+i*cols] = xs[i+j*rows]
			}
		}
	}
	return y
}
