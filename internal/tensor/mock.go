package tensor

import "math"

// Verify that MockDevice implements Device.
var _ Device = (*MockDevice)(nil)

// KernelCall records one arithmetic kernel reached through a MockDevice.
type KernelCall struct {
	Kernel string // "const", "scalar" or "elementwise"
	Op     ArithOp
	Left   bool
}

// MockDevice is a host-memory device for testing.
// It implements every kernel naively for correctness verification and
// records the arithmetic kernels it receives.
type MockDevice struct {
	Calls []KernelCall
	live  map[*[]float32]struct{}
}

// NewMockDevice creates a new MockDevice.
func NewMockDevice() *MockDevice {
	return &MockDevice{live: make(map[*[]float32]struct{})}
}

// Name returns the device name.
func (m *MockDevice) Name() string { return "mock" }

// Type returns CPU.
func (m *MockDevice) Type() DeviceType { return CPU }

// Live returns the number of allocated blocks not yet freed.
func (m *MockDevice) Live() int { return len(m.live) }

func (m *MockDevice) data(x *Tensor) []float32 {
	if x.device != m {
		Fatalf("mock: tensor on %s passed to mock device", x.device.Name())
	}
	return *x.Handle().(*[]float32)
}

// NewTensor allocates zeroed host storage.
func (m *MockDevice) NewTensor(shape Shape) *Tensor {
	buf := make([]float32, shape.Size())
	m.live[&buf] = struct{}{}
	return NewTensor(shape, m, &buf)
}

// Free forgets a block.
func (m *MockDevice) Free(handle any) {
	p, ok := handle.(*[]float32)
	if !ok {
		Fatalf("mock: foreign handle %T", handle)
	}
	if _, ok := m.live[p]; !ok {
		Fatalf("mock: block freed twice")
	}
	delete(m.live, p)
}

// ToHost returns a copy of x.
func (m *MockDevice) ToHost(x *Tensor) []float32 {
	return append([]float32(nil), m.data(x)...)
}

// CopyFrom copies a tensor from any device.
func (m *MockDevice) CopyFrom(x *Tensor) *Tensor {
	y := m.NewTensor(x.shape)
	copy(m.data(y), x.device.ToHost(x))
	return y
}

// ResetConst fills x with k.
func (m *MockDevice) ResetConst(x *Tensor, k float32) {
	d := m.data(x)
	for i := range d {
		d[i] = k
	}
}

// ResetValues copies values into x.
func (m *MockDevice) ResetValues(x *Tensor, values []float32) { copy(m.data(x), values) }

// Random fills are deterministic on the mock: every element takes the
// distribution's central value.

// RandomBernoulli fills with p.
func (m *MockDevice) RandomBernoulli(shape Shape, p float32) *Tensor {
	return m.filled(shape, p)
}

// RandomUniform fills with the midpoint of the range.
func (m *MockDevice) RandomUniform(shape Shape, lower, upper float32) *Tensor {
	return m.filled(shape, (lower+upper)/2)
}

// RandomNormal fills with mean.
func (m *MockDevice) RandomNormal(shape Shape, mean, _ float32) *Tensor {
	return m.filled(shape, mean)
}

// RandomLogNormal fills with exp(mean).
func (m *MockDevice) RandomLogNormal(shape Shape, mean, _ float32) *Tensor {
	return m.filled(shape, float32(math.Exp(float64(mean))))
}

func (m *MockDevice) filled(shape Shape, k float32) *Tensor {
	y := m.NewTensor(shape)
	m.ResetConst(y, k)
	return y
}

// Duplicate copies x.
func (m *MockDevice) Duplicate(x *Tensor) *Tensor {
	y := m.NewTensor(x.shape)
	copy(m.data(y), m.data(x))
	return y
}

// coords splits a flat per-sample index into axis coordinates.
func coords(i int, s Shape, rank int) []int {
	c := make([]int, rank)
	for a := 0; a < rank; a++ {
		c[a] = i % s.Dim(a)
		i /= s.Dim(a)
	}
	return c
}

func offset(c []int, s Shape) int {
	off, stride := 0, 1
	for a := range c {
		off += c[a] * stride
		stride *= s.Dim(a)
	}
	return off
}

// Slice copies [lower, upper) along axis.
func (m *MockDevice) Slice(x *Tensor, axis, lower, upper int) *Tensor {
	shape := x.shape.mustResizeDim(axis, upper-lower)
	y := m.NewTensor(shape)
	src, dst := m.data(x), m.data(y)
	rank := max(shape.Depth(), axis+1)
	for n := 0; n < shape.Batch(); n++ {
		for i := 0; i < shape.SizePerSample(); i++ {
			c := coords(i, shape, rank)
			c[axis] += lower
			dst[n*shape.SizePerSample()+i] = src[n*x.shape.SizePerSample()+offset(c, x.shape)]
		}
	}
	return y
}

// Concat copies xs side by side along axis.
func (m *MockDevice) Concat(xs []*Tensor, axis int, shape Shape) *Tensor {
	y := m.NewTensor(shape)
	dst := m.data(y)
	rank := max(shape.Depth(), axis+1)
	base := 0
	for _, x := range xs {
		src := m.data(x)
		for n := 0; n < x.shape.Batch(); n++ {
			for i := 0; i < x.shape.SizePerSample(); i++ {
				c := coords(i, x.shape, rank)
				c[axis] += base
				dst[n*shape.SizePerSample()+offset(c, shape)] = src[n*x.shape.SizePerSample()+i]
			}
		}
		base += x.shape.Dim(axis)
	}
	return y
}

// Pick gathers ids along axis.
func (m *MockDevice) Pick(x *Tensor, ids []int, axis int) *Tensor {
	shape := x.shape.mustResizeDim(axis, 1).mustResizeBatch(max(len(ids), x.shape.Batch()))
	y := m.NewTensor(shape)
	src, dst := m.data(x), m.data(y)
	rank := max(shape.Depth(), axis+1)
	for n := 0; n < shape.Batch(); n++ {
		xn := n % x.shape.Batch()
		id := ids[n%len(ids)]
		for i := 0; i < shape.SizePerSample(); i++ {
			c := coords(i, shape, rank)
			c[axis] = id
			dst[n*shape.SizePerSample()+i] = src[xn*x.shape.SizePerSample()+offset(c, x.shape)]
		}
	}
	return y
}

// Broadcast repeats a singleton axis.
func (m *MockDevice) Broadcast(x *Tensor, axis, size int) *Tensor {
	shape := x.shape.mustResizeDim(axis, size)
	y := m.NewTensor(shape)
	src, dst := m.data(x), m.data(y)
	rank := max(shape.Depth(), axis+1)
	for n := 0; n < shape.Batch(); n++ {
		for i := 0; i < shape.SizePerSample(); i++ {
			c := coords(i, shape, rank)
			c[axis] = 0
			dst[n*shape.SizePerSample()+i] = src[n*x.shape.SizePerSample()+offset(c, x.shape)]
		}
	}
	return y
}

// ConstOp computes x op k, or k op x when left.
func (m *MockDevice) ConstOp(op ArithOp, x *Tensor, k float32, left bool) *Tensor {
	m.Calls = append(m.Calls, KernelCall{Kernel: "const", Op: op, Left: left})
	y := m.NewTensor(x.shape)
	src, dst := m.data(x), m.data(y)
	for i, v := range src {
		if left {
			dst[i] = op.Apply(k, v)
		} else {
			dst[i] = op.Apply(v, k)
		}
	}
	return y
}

// ScalarOp computes x op s, or s op x when left.
func (m *MockDevice) ScalarOp(op ArithOp, x, s *Tensor, left bool) *Tensor {
	m.Calls = append(m.Calls, KernelCall{Kernel: "scalar", Op: op, Left: left})
	k := m.data(s)[0]
	y := m.NewTensor(x.shape)
	src, dst := m.data(x), m.data(y)
	for i, v := range src {
		if left {
			dst[i] = op.Apply(k, v)
		} else {
			dst[i] = op.Apply(v, k)
		}
	}
	return y
}

// ElementwiseOp computes a op b, repeating a batch-1 operand.
func (m *MockDevice) ElementwiseOp(op ArithOp, a, b *Tensor) *Tensor {
	m.Calls = append(m.Calls, KernelCall{Kernel: "elementwise", Op: op})
	shape := a.shape.mustResizeBatch(max(a.shape.Batch(), b.shape.Batch()))
	y := m.NewTensor(shape)
	ad, bd, dst := m.data(a), m.data(b), m.data(y)
	n := shape.SizePerSample()
	for i := range dst {
		s := i / n
		ai := (s%a.shape.Batch())*n + i%n
		bi := (s%b.shape.Batch())*n + i%n
		dst[i] = op.Apply(ad[ai], bd[bi])
	}
	return y
}

// Pointwise applies op to every element.
func (m *MockDevice) Pointwise(op PointwiseOp, x *Tensor, a float32) *Tensor {
	y := m.NewTensor(x.shape)
	src, dst := m.data(x), m.data(y)
	for i, v := range src {
		dst[i] = refPointwise(op, float64(v), float64(a))
	}
	return y
}

func refPointwise(op PointwiseOp, x, a float64) float32 {
	var r float64
	switch op {
	case OpNegate:
		r = -x
	case OpSqrt:
		r = math.Sqrt(x)
	case OpExp:
		r = math.Exp(x)
	case OpLog:
		r = math.Log(x)
	case OpTanh:
		r = math.Tanh(x)
	case OpSigmoid:
		r = 1 / (1 + math.Exp(-x))
	case OpSoftplus:
		r = math.Log1p(math.Exp(x))
	case OpSin:
		r = math.Sin(x)
	case OpCos:
		r = math.Cos(x)
	case OpTan:
		r = math.Tan(x)
	case OpStep:
		if x > 0 {
			r = 1
		}
	case OpPReLU:
		r = x
		if x <= 0 {
			r = a * x
		}
	case OpELU:
		r = x
		if x <= 0 {
			r = a * (math.Exp(x) - 1)
		}
	default:
		Fatalf("mock: unknown pointwise op %d", op)
	}
	return float32(r)
}

// Transpose swaps the two leading axes.
func (m *MockDevice) Transpose(x *Tensor) *Tensor {
	rows, cols := x.shape.Dim(0), x.shape.Dim(1)
	y := m.NewTensor(MustShape([]int{cols, rows}, x.shape.Batch()))
	src, dst := m.data(x), m.data(y)
	for n := 0; n < x.shape.Batch(); n++ {
		base := n * rows * cols
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				dst[base+j+i*cols] = src[base+i+j*rows]
			}
		}
	}
	return y
}

// MatMul multiplies column-major matrices sample by sample.
func (m *MockDevice) MatMul(a, b *Tensor) *Tensor {
	rows, inner, cols := a.shape.Dim(0), a.shape.Dim(1), b.shape.Dim(1)
	batch := max(a.shape.Batch(), b.shape.Batch())
	y := m.NewTensor(MustShape([]int{rows, cols}, batch))
	ad, bd, dst := m.data(a), m.data(b), m.data(y)
	for n := 0; n < batch; n++ {
		ab := (n % a.shape.Batch()) * rows * inner
		bb := (n % b.shape.Batch()) * inner * cols
		yb := n * rows * cols
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				var sum float64
				for k := 0; k < inner; k++ {
					sum += float64(ad[ab+i+k*rows]) * float64(bd[bb+k+j*inner])
				}
				dst[yb+i+j*rows] = float32(sum)
			}
		}
	}
	return y
}

func (m *MockDevice) reduce(x *Tensor, axis int, f func([]float64) float64) *Tensor {
	shape := x.shape.mustResizeDim(axis, 1)
	y := m.NewTensor(shape)
	src, dst := m.data(x), m.data(y)
	rank := max(x.shape.Depth(), axis+1)
	vals := make([]float64, x.shape.Dim(axis))
	for n := 0; n < shape.Batch(); n++ {
		for i := 0; i < shape.SizePerSample(); i++ {
			c := coords(i, shape, rank)
			for j := range vals {
				c[axis] = j
				vals[j] = float64(src[n*x.shape.SizePerSample()+offset(c, x.shape)])
			}
			dst[n*shape.SizePerSample()+i] = float32(f(vals))
		}
	}
	return y
}

// Sum reduces axis by summation.
func (m *MockDevice) Sum(x *Tensor, axis int) *Tensor {
	return m.reduce(x, axis, func(v []float64) float64 {
		var s float64
		for _, e := range v {
			s += e
		}
		return s
	})
}

// LogSumExp reduces axis by log(sum(exp)).
func (m *MockDevice) LogSumExp(x *Tensor, axis int) *Tensor {
	return m.reduce(x, axis, func(v []float64) float64 {
		mx := math.Inf(-1)
		for _, e := range v {
			mx = math.Max(mx, e)
		}
		var s float64
		for _, e := range v {
			s += math.Exp(e - mx)
		}
		return mx + math.Log(s)
	})
}

// BatchSum sums the samples.
func (m *MockDevice) BatchSum(x *Tensor) *Tensor {
	y := m.NewTensor(x.shape.mustResizeBatch(1))
	src, dst := m.data(x), m.data(y)
	n := x.shape.SizePerSample()
	for i, v := range src {
		dst[i%n] += v
	}
	return y
}

// AddGradient adds b into a.
func (m *MockDevice) AddGradient(a, b *Tensor) {
	ad, bd := m.data(a), m.data(b)
	n := a.shape.SizePerSample()
	batch := max(a.shape.Batch(), b.shape.Batch())
	for s := 0; s < batch; s++ {
		for i := 0; i < n; i++ {
			ad[(s%a.shape.Batch())*n+i] += bd[(s%b.shape.Batch())*n+i]
		}
	}
}

// Synchronize is a no-op.
func (m *MockDevice) Synchronize() {}

// Close reports leaked blocks through the returned error.
func (m *MockDevice) Close() error {
	if n := len(m.live); n > 0 {
		m.live = make(map[*[]float32]struct{})
		return validationf("mock: %d blocks still allocated", n)
	}
	return nil
}
