package tensor

// Result-shape rules for the checked operators. Each function validates its
// operands and returns the output shape, or a validation error without
// touching any device.

func batchOf(a, b Shape) int { return max(a.Batch(), b.Batch()) }

// ElementwiseShape returns the result shape of a tensor-tensor arithmetic
// operation: per-sample extents must be equal and batches equal or one of
// them 1.
func ElementwiseShape(a, b Shape) (Shape, error) {
	if !a.HasSameDims(b) || !a.HasCompatibleBatch(b) {
		return Shape{}, validationf("shape mismatch: %s and %s", a, b)
	}
	return a.mustResizeBatch(batchOf(a, b)), nil
}

// SliceShape returns the shape of x restricted to [lower, upper) along axis.
func SliceShape(x Shape, axis, lower, upper int) (Shape, error) {
	if axis < 0 {
		return Shape{}, validationf("slice: invalid axis %d", axis)
	}
	if lower < 0 || lower >= upper || upper > x.Dim(axis) {
		return Shape{}, validationf("slice: invalid range [%d, %d) on axis %d of %s", lower, upper, axis, x)
	}
	return x.mustResizeDim(axis, upper-lower), nil
}

// ConcatShape returns the shape of xs joined along axis. All inputs must
// agree on every other axis and on the batch.
func ConcatShape(xs []Shape, axis int) (Shape, error) {
	if len(xs) == 0 {
		return Shape{}, validationf("concat: no inputs")
	}
	if axis < 0 {
		return Shape{}, validationf("concat: invalid axis %d", axis)
	}
	ref := xs[0]
	sum := 0
	for i, s := range xs {
		if !s.HasSameLooDims(ref, axis) || s.Batch() != ref.Batch() {
			return Shape{}, validationf("concat: input %d has shape %s, incompatible with %s along axis %d", i, s, ref, axis)
		}
		sum += s.Dim(axis)
	}
	return ref.mustResizeDim(axis, sum), nil
}

// PickShape returns the shape of the elements of x selected by ids along
// axis. ids holds either one index for every sample or one per sample; a
// batch-1 x is repeated across the ids.
func PickShape(x Shape, ids []int, axis int) (Shape, error) {
	if axis < 0 {
		return Shape{}, validationf("pick: invalid axis %d", axis)
	}
	n := len(ids)
	if n == 0 {
		return Shape{}, validationf("pick: no ids")
	}
	if n != 1 && x.Batch() != 1 && n != x.Batch() {
		return Shape{}, validationf("pick: %d ids do not match batch of %s", n, x)
	}
	limit := x.Dim(axis)
	for _, id := range ids {
		if id < 0 || id >= limit {
			return Shape{}, validationf("pick: id %d out of range [0, %d) on axis %d", id, limit, axis)
		}
	}
	return x.mustResizeDim(axis, 1).mustResizeBatch(max(n, x.Batch())), nil
}

// BroadcastShape returns the shape of x repeated size times along axis.
// The axis must have extent 1.
func BroadcastShape(x Shape, axis, size int) (Shape, error) {
	if axis < 0 {
		return Shape{}, validationf("broadcast: invalid axis %d", axis)
	}
	if x.Dim(axis) != 1 {
		return Shape{}, validationf("broadcast: axis %d of %s is not a singleton", axis, x)
	}
	if size < 1 {
		return Shape{}, validationf("broadcast: invalid size %d", size)
	}
	return x.mustResizeDim(axis, size), nil
}

// ReduceShape returns the shape of x after collapsing axis to 1.
func ReduceShape(x Shape, axis int) (Shape, error) {
	if axis < 0 {
		return Shape{}, validationf("reduce: invalid axis %d", axis)
	}
	return x.mustResizeDim(axis, 1), nil
}

// BatchReduceShape returns x with batch 1.
func BatchReduceShape(x Shape) Shape { return x.mustResizeBatch(1) }

// TransposeShape swaps the two leading axes of a matrix shape.
func TransposeShape(x Shape) (Shape, error) {
	if !x.IsMatrix() {
		return Shape{}, validationf("transpose: %s is not a matrix", x)
	}
	return MustShape([]int{x.Dim(1), x.Dim(0)}, x.Batch()), nil
}

// MatMulShape returns the shape of the batched product a·b.
func MatMulShape(a, b Shape) (Shape, error) {
	if !a.IsMatrix() || !b.IsMatrix() || a.Dim(1) != b.Dim(0) || !a.HasCompatibleBatch(b) {
		return Shape{}, validationf("matmul: shape mismatch: %s and %s", a, b)
	}
	return MustShape([]int{a.Dim(0), b.Dim(1)}, batchOf(a, b)), nil
}

// checkGradientShapes validates an AddGradient pair.
func checkGradientShapes(a, b Shape) error {
	if !a.HasSameDims(b) || !a.HasCompatibleBatch(b) {
		return validationf("add gradient: shape mismatch: %s and %s", a, b)
	}
	return nil
}
