package tensor

// DeviceType identifies the substrate a Device executes on.
type DeviceType int

// Supported device types.
const (
	CPU DeviceType = iota
	CUDA
	WebGPU
)

// String returns a human-readable device type name.
func (d DeviceType) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// ArithOp selects one of the four binary arithmetic kernels.
type ArithOp int

// Arithmetic operations.
const (
	OpAdd ArithOp = iota
	OpSubtract
	OpMultiply
	OpDivide
)

// String returns the operator name.
func (op ArithOp) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSubtract:
		return "subtract"
	case OpMultiply:
		return "multiply"
	case OpDivide:
		return "divide"
	default:
		return "unknown"
	}
}

// Apply evaluates a (op) b on the host. Reference semantics for every device.
func (op ArithOp) Apply(a, b float32) float32 {
	switch op {
	case OpAdd:
		return a + b
	case OpSubtract:
		return a - b
	case OpMultiply:
		return a * b
	case OpDivide:
		return a / b
	default:
		panic("unknown arithmetic op")
	}
}

// PointwiseOp selects a shape-preserving elementwise function.
type PointwiseOp int

// Pointwise operations. PReLU and ELU take the slope argument.
const (
	OpNegate PointwiseOp = iota
	OpSqrt
	OpExp
	OpLog
	OpTanh
	OpSigmoid
	OpSoftplus
	OpSin
	OpCos
	OpTan
	OpStep
	OpPReLU
	OpELU
)

var pointwiseNames = [...]string{
	OpNegate:   "negate",
	OpSqrt:     "sqrt",
	OpExp:      "exp",
	OpLog:      "log",
	OpTanh:     "tanh",
	OpSigmoid:  "sigmoid",
	OpSoftplus: "softplus",
	OpSin:      "sin",
	OpCos:      "cos",
	OpTan:      "tan",
	OpStep:     "step",
	OpPReLU:    "prelu",
	OpELU:      "elu",
}

// String returns the operation name.
func (op PointwiseOp) String() string {
	if op < 0 || int(op) >= len(pointwiseNames) {
		return "unknown"
	}
	return pointwiseNames[op]
}

// Device owns tensor storage and implements every numeric kernel.
//
// Methods are unchecked: the operator layer in this package validates
// shapes before calling them, and a Device treats any violation as a
// programming error (see Fatalf). Calls on one Device are observed in
// issue order; a Device must be driven by one goroutine at a time.
//
// Implementations:
//   - internal/backend/cpu: pure Go reference device
//   - internal/backend/cuda: NVIDIA GPUs through cuBLAS/cuRAND and runtime-compiled kernels
//   - internal/backend/webgpu: WebGPU compute shaders
type Device interface {
	// Identity.
	Name() string     // Human-readable identity, e.g. "CUDA:0".
	Type() DeviceType // Substrate kind.

	// Allocation.
	NewTensor(shape Shape) *Tensor // Uninitialized storage for shape.Size() elements.
	Free(handle any)               // Releases a block; fatal on unknown or freed handles.

	// Transfer.
	ToHost(x *Tensor) []float32 // Flat copy in layout order; waits for pending work.
	CopyFrom(x *Tensor) *Tensor // Copies a tensor from any device onto this one.
	ResetConst(x *Tensor, k float32)
	ResetValues(x *Tensor, values []float32)

	// Random fills.
	RandomBernoulli(shape Shape, p float32) *Tensor
	RandomUniform(shape Shape, lower, upper float32) *Tensor
	RandomNormal(shape Shape, mean, sd float32) *Tensor
	RandomLogNormal(shape Shape, mean, sd float32) *Tensor

	// Structural operations.
	Duplicate(x *Tensor) *Tensor
	Slice(x *Tensor, axis, lower, upper int) *Tensor
	Concat(xs []*Tensor, axis int, shape Shape) *Tensor
	Pick(x *Tensor, ids []int, axis int) *Tensor
	Broadcast(x *Tensor, axis, size int) *Tensor

	// Arithmetic. ConstOp computes x op k (k op x when left); ScalarOp does
	// the same with a scalar-shaped tensor s; ElementwiseOp requires equal
	// per-sample shapes and batches that are equal or 1.
	ConstOp(op ArithOp, x *Tensor, k float32, left bool) *Tensor
	ScalarOp(op ArithOp, x, s *Tensor, left bool) *Tensor
	ElementwiseOp(op ArithOp, a, b *Tensor) *Tensor

	// Pointwise functions; a is the slope of PReLU/ELU and ignored otherwise.
	Pointwise(op PointwiseOp, x *Tensor, a float32) *Tensor

	// Linear algebra.
	Transpose(x *Tensor) *Tensor
	MatMul(a, b *Tensor) *Tensor

	// Reductions.
	Sum(x *Tensor, axis int) *Tensor
	LogSumExp(x *Tensor, axis int) *Tensor
	BatchSum(x *Tensor) *Tensor

	// AddGradient adds b into a in place.
	AddGradient(a, b *Tensor)

	// Lifecycle.
	Synchronize()
	Close() error
}
