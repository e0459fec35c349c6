package tensor

// Constant allocates a tensor of shape filled with k. A nil dev selects the
// default device.
//
// Example:
//
//	x, err := tensor.Constant(tensor.MustShape([]int{2, 3}, 4), 0.5, dev)
func Constant(shape Shape, k float32, dev Device) (*Tensor, error) {
	dev, err := resolve(dev)
	if err != nil {
		return nil, err
	}
	t := dev.NewTensor(shape)
	dev.ResetConst(t, k)
	return t, nil
}

// Zeros allocates a tensor of shape filled with 0.
func Zeros(shape Shape, dev Device) (*Tensor, error) { return Constant(shape, 0, dev) }

// Ones allocates a tensor of shape filled with 1.
func Ones(shape Shape, dev Device) (*Tensor, error) { return Constant(shape, 1, dev) }

// FromValues allocates a tensor of shape holding values in layout order.
// len(values) must equal shape.Size().
func FromValues(shape Shape, values []float32, dev Device) (*Tensor, error) {
	if len(values) != shape.Size() {
		return nil, validationf("data sizes mismatched: shape %s needs %d values, got %d",
			shape, shape.Size(), len(values))
	}
	dev, err := resolve(dev)
	if err != nil {
		return nil, err
	}
	t := dev.NewTensor(shape)
	dev.ResetValues(t, values)
	return t, nil
}

// Identity allocates an n×n identity matrix.
func Identity(n int, dev Device) (*Tensor, error) {
	if n < 1 {
		return nil, validationf("identity: invalid size %d", n)
	}
	values := make([]float32, n*n)
	for i := 0; i < n; i++ {
		values[i+i*n] = 1
	}
	return FromValues(MustShape([]int{n, n}, 1), values, dev)
}

// RandomBernoulli draws each element from Bernoulli(p).
func RandomBernoulli(shape Shape, p float32, dev Device) (*Tensor, error) {
	dev, err := resolve(dev)
	if err != nil {
		return nil, err
	}
	return dev.RandomBernoulli(shape, p), nil
}

// RandomUniform draws each element from U(lower, upper].
func RandomUniform(shape Shape, lower, upper float32, dev Device) (*Tensor, error) {
	dev, err := resolve(dev)
	if err != nil {
		return nil, err
	}
	return dev.RandomUniform(shape, lower, upper), nil
}

// RandomNormal draws each element from N(mean, sd²).
func RandomNormal(shape Shape, mean, sd float32, dev Device) (*Tensor, error) {
	dev, err := resolve(dev)
	if err != nil {
		return nil, err
	}
	return dev.RandomNormal(shape, mean, sd), nil
}

// RandomLogNormal draws each element from exp(N(mean, sd²)).
func RandomLogNormal(shape Shape, mean, sd float32, dev Device) (*Tensor, error) {
	dev, err := resolve(dev)
	if err != nil {
		return nil, err
	}
	return dev.RandomLogNormal(shape, mean, sd), nil
}

// ToHost copies x back to host memory in layout order.
func ToHost(x *Tensor) ([]float32, error) {
	if err := checkValid("to host", x); err != nil {
		return nil, err
	}
	return x.device.ToHost(x), nil
}

// ToScalar returns the only element of a single-element tensor.
func ToScalar(x *Tensor) (float32, error) {
	if err := checkValid("to scalar", x); err != nil {
		return 0, err
	}
	if x.shape.Size() != 1 {
		return 0, validationf("to scalar: %s has more than one element", x.shape)
	}
	return x.device.ToHost(x)[0], nil
}

// Reset overwrites every element of x with k.
func Reset(x *Tensor, k float32) error {
	if err := checkValid("reset", x); err != nil {
		return err
	}
	x.own()
	x.device.ResetConst(x, k)
	return nil
}

// ResetValues overwrites x from values in layout order.
func ResetValues(x *Tensor, values []float32) error {
	if err := checkValid("reset values", x); err != nil {
		return err
	}
	if len(values) != x.shape.Size() {
		return validationf("data sizes mismatched: shape %s needs %d values, got %d",
			x.shape, x.shape.Size(), len(values))
	}
	x.own()
	x.device.ResetValues(x, values)
	return nil
}
