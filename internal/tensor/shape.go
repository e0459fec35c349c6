package tensor

import (
	"strconv"
	"strings"
)

// Shape describes the per-sample extents and the batch multiplicity of a tensor.
//
// Dims are stored canonicalized: trailing extents equal to 1 are dropped, so
// Shape{2,3,1} and Shape{2,3} are the same value. Reading an axis beyond the
// stored rank yields 1. A Shape is immutable once constructed.
//
// The zero value is the scalar shape []x1.
type Shape struct {
	dims  []int
	batch int
}

// NewShape creates a shape from axis extents and a batch size.
// It fails if any extent or the batch is smaller than 1.
func NewShape(dims []int, batch int) (Shape, error) {
	for i, d := range dims {
		if d < 1 {
			return Shape{}, validationf("invalid shape: dimension %d has extent %d (must be >= 1)", i, d)
		}
	}
	if batch < 1 {
		return Shape{}, validationf("invalid shape: batch size %d (must be >= 1)", batch)
	}
	n := len(dims)
	for n > 0 && dims[n-1] == 1 {
		n--
	}
	var canon []int
	if n > 0 {
		canon = make([]int, n)
		copy(canon, dims[:n])
	}
	return Shape{dims: canon, batch: batch}, nil
}

// MustShape is NewShape that panics on invalid input. Intended for literals.
func MustShape(dims []int, batch int) Shape {
	s, err := NewShape(dims, batch)
	if err != nil {
		panic(err)
	}
	return s
}

// Dims returns a copy of the canonical axis extents.
func (s Shape) Dims() []int {
	out := make([]int, len(s.dims))
	copy(out, s.dims)
	return out
}

// Dim returns the extent of axis, or 1 beyond the stored rank.
func (s Shape) Dim(axis int) int {
	if axis < 0 || axis >= len(s.dims) {
		return 1
	}
	return s.dims[axis]
}

// Depth returns the canonical rank.
func (s Shape) Depth() int { return len(s.dims) }

// Batch returns the batch size.
func (s Shape) Batch() int {
	if s.batch == 0 {
		return 1
	}
	return s.batch
}

// SizePerSample returns the number of elements in one sample.
func (s Shape) SizePerSample() int {
	n := 1
	for _, d := range s.dims {
		n *= d
	}
	return n
}

// Size returns the total number of elements including the batch.
func (s Shape) Size() int { return s.SizePerSample() * s.Batch() }

// LowerVolume returns the product of extents before axis, which is the
// element stride of that axis.
func (s Shape) LowerVolume(axis int) int {
	n := 1
	for i := 0; i < axis && i < len(s.dims); i++ {
		n *= s.dims[i]
	}
	return n
}

// IsScalar reports whether the shape has no axes and batch 1.
func (s Shape) IsScalar() bool { return len(s.dims) == 0 && s.Batch() == 1 }

// HasBatch reports whether the batch size is greater than 1.
func (s Shape) HasBatch() bool { return s.Batch() > 1 }

// IsColumnVector reports whether the shape has at most one axis.
func (s Shape) IsColumnVector() bool { return len(s.dims) <= 1 }

// IsMatrix reports whether the shape has at most two axes.
func (s Shape) IsMatrix() bool { return len(s.dims) <= 2 }

// HasCompatibleBatch reports whether the batches are equal or either is 1.
func (s Shape) HasCompatibleBatch(o Shape) bool {
	return s.Batch() == o.Batch() || s.Batch() == 1 || o.Batch() == 1
}

// HasSameDims reports whether the per-sample extents are equal, ignoring batch.
func (s Shape) HasSameDims(o Shape) bool {
	if len(s.dims) != len(o.dims) {
		return false
	}
	for i := range s.dims {
		if s.dims[i] != o.dims[i] {
			return false
		}
	}
	return true
}

// HasSameLooDims reports whether the per-sample extents are equal on every
// axis except axis ("leave one out").
func (s Shape) HasSameLooDims(o Shape, axis int) bool {
	n := max(len(s.dims), len(o.dims))
	for i := 0; i < n; i++ {
		if i != axis && s.Dim(i) != o.Dim(i) {
			return false
		}
	}
	return true
}

// Equal reports whether both the canonical extents and the batch are equal.
func (s Shape) Equal(o Shape) bool {
	return s.Batch() == o.Batch() && s.HasSameDims(o)
}

// ResizeDim returns a copy with axis set to n, extending the rank with
// singleton axes when axis lies beyond it.
func (s Shape) ResizeDim(axis, n int) (Shape, error) {
	if axis < 0 {
		return Shape{}, validationf("invalid axis %d", axis)
	}
	if n < 1 {
		return Shape{}, validationf("invalid extent %d for axis %d (must be >= 1)", n, axis)
	}
	dims := make([]int, max(len(s.dims), axis+1))
	for i := range dims {
		dims[i] = s.Dim(i)
	}
	dims[axis] = n
	return NewShape(dims, s.Batch())
}

// ResizeBatch returns a copy with the batch replaced.
func (s Shape) ResizeBatch(batch int) (Shape, error) {
	if batch < 1 {
		return Shape{}, validationf("invalid batch size %d (must be >= 1)", batch)
	}
	return Shape{dims: s.dims, batch: batch}, nil
}

// String renders the shape as "[d0,d1,...]xB".
func (s Shape) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, d := range s.dims {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(d))
	}
	sb.WriteString("]x")
	sb.WriteString(strconv.Itoa(s.Batch()))
	return sb.String()
}

// mustResizeDim is ResizeDim for extents already known to be valid.
func (s Shape) mustResizeDim(axis, n int) Shape {
	r, err := s.ResizeDim(axis, n)
	if err != nil {
		panic(err)
	}
	return r
}

// mustResizeBatch is ResizeBatch for batches already known to be valid.
func (s Shape) mustResizeBatch(batch int) Shape {
	r, err := s.ResizeBatch(batch)
	if err != nil {
		panic(err)
	}
	return r
}
