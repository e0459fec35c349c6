package tensor

// checkValid returns an invalid-object error for the first operand that is
// not bound to live storage.
func checkValid(name string, xs ...*Tensor) error {
	for i, x := range xs {
		if !x.Valid() {
			return invalidf("%s: operand %d is not a valid tensor", name, i)
		}
	}
	return nil
}

// deviceOf returns the device shared by xs. Mixing devices is fatal.
func deviceOf(name string, xs ...*Tensor) Device {
	dev := xs[0].device
	for _, x := range xs[1:] {
		if x.device != dev {
			Fatalf("%s: operands live on different devices (%s, %s)", name, dev.Name(), x.device.Name())
		}
	}
	return dev
}

// arith dispatches a binary operation to exactly one device kernel: a
// scalar left operand first, then a scalar right operand, then the general
// tensor-tensor kernel. Two scalars take the general path.
func arith(op ArithOp, a, b *Tensor) (*Tensor, error) {
	name := op.String()
	if err := checkValid(name, a, b); err != nil {
		return nil, err
	}
	dev := deviceOf(name, a, b)
	switch {
	case a.shape.IsScalar() && !b.shape.IsScalar():
		return dev.ScalarOp(op, b, a, true), nil
	case b.shape.IsScalar() && !a.shape.IsScalar():
		return dev.ScalarOp(op, a, b, false), nil
	}
	if _, err := ElementwiseShape(a.shape, b.shape); err != nil {
		return nil, err
	}
	return dev.ElementwiseOp(op, a, b), nil
}

// Add returns a + b.
func Add(a, b *Tensor) (*Tensor, error) { return arith(OpAdd, a, b) }

// Subtract returns a - b.
func Subtract(a, b *Tensor) (*Tensor, error) { return arith(OpSubtract, a, b) }

// Multiply returns a * b elementwise.
func Multiply(a, b *Tensor) (*Tensor, error) { return arith(OpMultiply, a, b) }

// Divide returns a / b elementwise.
func Divide(a, b *Tensor) (*Tensor, error) { return arith(OpDivide, a, b) }

func constOp(op ArithOp, x *Tensor, k float32, left bool) (*Tensor, error) {
	if err := checkValid(op.String(), x); err != nil {
		return nil, err
	}
	return x.device.ConstOp(op, x, k, left), nil
}

// AddConst returns x + k.
func AddConst(x *Tensor, k float32) (*Tensor, error) { return constOp(OpAdd, x, k, false) }

// SubtractConst returns x - k.
func SubtractConst(x *Tensor, k float32) (*Tensor, error) { return constOp(OpSubtract, x, k, false) }

// SubtractFromConst returns k - x.
func SubtractFromConst(k float32, x *Tensor) (*Tensor, error) {
	return constOp(OpSubtract, x, k, true)
}

// MultiplyConst returns x * k.
func MultiplyConst(x *Tensor, k float32) (*Tensor, error) { return constOp(OpMultiply, x, k, false) }

// DivideConst returns x / k.
func DivideConst(x *Tensor, k float32) (*Tensor, error) { return constOp(OpDivide, x, k, false) }

// DivideConstBy returns k / x.
func DivideConstBy(k float32, x *Tensor) (*Tensor, error) { return constOp(OpDivide, x, k, true) }

func pointwise(op PointwiseOp, x *Tensor, a float32) (*Tensor, error) {
	if err := checkValid(op.String(), x); err != nil {
		return nil, err
	}
	return x.device.Pointwise(op, x, a), nil
}

// Positive returns a copy of x.
func Positive(x *Tensor) (*Tensor, error) {
	if err := checkValid("positive", x); err != nil {
		return nil, err
	}
	return x.device.Duplicate(x), nil
}

// Negate returns -x.
func Negate(x *Tensor) (*Tensor, error) { return pointwise(OpNegate, x, 0) }

// Sqrt returns the elementwise square root.
func Sqrt(x *Tensor) (*Tensor, error) { return pointwise(OpSqrt, x, 0) }

// Exp returns the elementwise exponential.
func Exp(x *Tensor) (*Tensor, error) { return pointwise(OpExp, x, 0) }

// Log returns the elementwise natural logarithm.
func Log(x *Tensor) (*Tensor, error) { return pointwise(OpLog, x, 0) }

// Tanh returns the elementwise hyperbolic tangent.
func Tanh(x *Tensor) (*Tensor, error) { return pointwise(OpTanh, x, 0) }

// Sigmoid returns 1 / (1 + exp(-x)).
func Sigmoid(x *Tensor) (*Tensor, error) { return pointwise(OpSigmoid, x, 0) }

// Softplus returns log(1 + exp(x)).
func Softplus(x *Tensor) (*Tensor, error) { return pointwise(OpSoftplus, x, 0) }

// Sin returns the elementwise sine.
func Sin(x *Tensor) (*Tensor, error) { return pointwise(OpSin, x, 0) }

// Cos returns the elementwise cosine.
func Cos(x *Tensor) (*Tensor, error) { return pointwise(OpCos, x, 0) }

// Tan returns the elementwise tangent.
func Tan(x *Tensor) (*Tensor, error) { return pointwise(OpTan, x, 0) }

// Step returns 1 where x > 0 and 0 elsewhere.
func Step(x *Tensor) (*Tensor, error) { return pointwise(OpStep, x, 0) }

// ReLU returns max(x, 0).
func ReLU(x *Tensor) (*Tensor, error) { return pointwise(OpPReLU, x, 0) }

// LReLU is the leaky rectifier with slope 0.01.
func LReLU(x *Tensor) (*Tensor, error) { return pointwise(OpPReLU, x, 0.01) }

// PReLU returns x where x > 0 and a*x elsewhere.
func PReLU(x *Tensor, a float32) (*Tensor, error) { return pointwise(OpPReLU, x, a) }

// ELU returns x where x > 0 and a*(exp(x)-1) elsewhere.
func ELU(x *Tensor, a float32) (*Tensor, error) { return pointwise(OpELU, x, a) }

// Slice returns the half-open range [lower, upper) of x along axis.
func Slice(x *Tensor, axis, lower, upper int) (*Tensor, error) {
	if err := checkValid("slice", x); err != nil {
		return nil, err
	}
	if _, err := SliceShape(x.shape, axis, lower, upper); err != nil {
		return nil, err
	}
	return x.device.Slice(x, axis, lower, upper), nil
}

// Concat joins xs along axis.
func Concat(xs []*Tensor, axis int) (*Tensor, error) {
	if len(xs) == 0 {
		return nil, validationf("concat: no inputs")
	}
	if err := checkValid("concat", xs...); err != nil {
		return nil, err
	}
	shapes := make([]Shape, len(xs))
	for i, x := range xs {
		shapes[i] = x.shape
	}
	shape, err := ConcatShape(shapes, axis)
	if err != nil {
		return nil, err
	}
	return deviceOf("concat", xs...).Concat(xs, axis, shape), nil
}

// Pick selects ids along axis. ids has one entry shared by every sample or
// one entry per sample.
func Pick(x *Tensor, ids []int, axis int) (*Tensor, error) {
	if err := checkValid("pick", x); err != nil {
		return nil, err
	}
	if _, err := PickShape(x.shape, ids, axis); err != nil {
		return nil, err
	}
	return x.device.Pick(x, ids, axis), nil
}

// Reshape returns a view of x with a new per-sample shape.
func Reshape(x *Tensor, shape Shape) (*Tensor, error) {
	if err := checkValid("reshape", x); err != nil {
		return nil, err
	}
	return x.Reshape(shape)
}

// Flatten returns a view of x as a column vector per sample.
func Flatten(x *Tensor) (*Tensor, error) {
	if err := checkValid("flatten", x); err != nil {
		return nil, err
	}
	return x.Flatten()
}

// Transpose swaps the two leading axes of a matrix.
func Transpose(x *Tensor) (*Tensor, error) {
	if err := checkValid("transpose", x); err != nil {
		return nil, err
	}
	if _, err := TransposeShape(x.shape); err != nil {
		return nil, err
	}
	return x.device.Transpose(x), nil
}

// MatMul returns the batched matrix product a·b.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if err := checkValid("matmul", a, b); err != nil {
		return nil, err
	}
	dev := deviceOf("matmul", a, b)
	if _, err := MatMulShape(a.shape, b.shape); err != nil {
		return nil, err
	}
	return dev.MatMul(a, b), nil
}

// Broadcast repeats x size times along a singleton axis.
func Broadcast(x *Tensor, axis, size int) (*Tensor, error) {
	if err := checkValid("broadcast", x); err != nil {
		return nil, err
	}
	if _, err := BroadcastShape(x.shape, axis, size); err != nil {
		return nil, err
	}
	return x.device.Broadcast(x, axis, size), nil
}

// Copy transfers x onto dev, or onto the default device when dev is nil.
func Copy(x *Tensor, dev Device) (*Tensor, error) {
	if err := checkValid("copy", x); err != nil {
		return nil, err
	}
	dev, err := resolve(dev)
	if err != nil {
		return nil, err
	}
	return dev.CopyFrom(x), nil
}

// Sum reduces axis to extent 1 by summation.
func Sum(x *Tensor, axis int) (*Tensor, error) {
	if err := checkValid("sum", x); err != nil {
		return nil, err
	}
	if _, err := ReduceShape(x.shape, axis); err != nil {
		return nil, err
	}
	return x.device.Sum(x, axis), nil
}

// LogSumExp reduces axis to extent 1 computing log(sum(exp(x))) stably.
func LogSumExp(x *Tensor, axis int) (*Tensor, error) {
	if err := checkValid("logsumexp", x); err != nil {
		return nil, err
	}
	if _, err := ReduceShape(x.shape, axis); err != nil {
		return nil, err
	}
	return x.device.LogSumExp(x, axis), nil
}

// BatchSum sums the samples of x into a batch-1 tensor.
func BatchSum(x *Tensor) (*Tensor, error) {
	if err := checkValid("batch sum", x); err != nil {
		return nil, err
	}
	return x.device.BatchSum(x), nil
}

// Mean averages x along axis.
func Mean(x *Tensor, axis int) (*Tensor, error) {
	s, err := Sum(x, axis)
	if err != nil {
		return nil, err
	}
	defer s.Release()
	return MultiplyConst(s, 1/float32(x.shape.Dim(axis)))
}

// BatchMean averages the samples of x.
func BatchMean(x *Tensor) (*Tensor, error) {
	s, err := BatchSum(x)
	if err != nil {
		return nil, err
	}
	defer s.Release()
	return MultiplyConst(s, 1/float32(x.shape.Batch()))
}

// AddGradient adds b into a in place. Batches may be equal, or b may have
// batch 1 (added to every sample), or a may have batch 1 (b is summed over
// its samples).
func AddGradient(a, b *Tensor) error {
	if err := checkValid("add gradient", a, b); err != nil {
		return err
	}
	dev := deviceOf("add gradient", a, b)
	if err := checkGradientShapes(a.shape, b.shape); err != nil {
		return err
	}
	a.own()
	dev.AddGradient(a, b)
	return nil
}
