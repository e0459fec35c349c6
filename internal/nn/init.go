package nn

import (
	"math"

	"github.com/menphim/primitiv/internal/tensor"
)

// Initializer overwrites the contents of a tensor in place.
type Initializer interface {
	Apply(x *tensor.Tensor) error
}

// Constant fills with K.
type Constant struct {
	K float32
}

// Apply implements Initializer.
func (c Constant) Apply(x *tensor.Tensor) error { return tensor.Reset(x, c.K) }

// Uniform draws from (Lower, Upper].
type Uniform struct {
	Lower, Upper float32
}

// Apply implements Initializer.
func (u Uniform) Apply(x *tensor.Tensor) error {
	return assign(x, func(dev tensor.Device) (*tensor.Tensor, error) {
		return tensor.RandomUniform(x.Shape(), u.Lower, u.Upper, dev)
	})
}

// Normal draws from N(Mean, SD²).
type Normal struct {
	Mean, SD float32
}

// Apply implements Initializer.
func (n Normal) Apply(x *tensor.Tensor) error {
	return assign(x, func(dev tensor.Device) (*tensor.Tensor, error) {
		return tensor.RandomNormal(x.Shape(), n.Mean, n.SD, dev)
	})
}

// XavierUniform is the Glorot uniform initializer for matrices:
// U(-b, b) with b = Scale·sqrt(6 / (fanIn + fanOut)), where fanIn is the
// number of columns and fanOut the number of rows.
type XavierUniform struct {
	Scale float32
}

// Apply implements Initializer.
func (xu XavierUniform) Apply(x *tensor.Tensor) error {
	fanIn, fanOut, err := fans("xavier uniform", x)
	if err != nil {
		return err
	}
	bound := xu.Scale * float32(math.Sqrt(6/float64(fanIn+fanOut)))
	return Uniform{Lower: -bound, Upper: bound}.Apply(x)
}

// XavierNormal is the Glorot normal initializer for matrices:
// N(0, s²) with s = Scale·sqrt(2 / (fanIn + fanOut)).
type XavierNormal struct {
	Scale float32
}

// Apply implements Initializer.
func (xn XavierNormal) Apply(x *tensor.Tensor) error {
	fanIn, fanOut, err := fans("xavier normal", x)
	if err != nil {
		return err
	}
	sd := xn.Scale * float32(math.Sqrt(2/float64(fanIn+fanOut)))
	return Normal{Mean: 0, SD: sd}.Apply(x)
}

// Identity sets a square matrix to the identity.
type Identity struct{}

// Apply implements Initializer.
func (Identity) Apply(x *tensor.Tensor) error {
	s := x.Shape()
	if !s.IsMatrix() || s.Dim(0) != s.Dim(1) || s.HasBatch() {
		return tensor.Validationf("identity: %s is not a square matrix", s)
	}
	return assign(x, func(dev tensor.Device) (*tensor.Tensor, error) {
		return tensor.Identity(s.Dim(0), dev)
	})
}

func fans(name string, x *tensor.Tensor) (fanIn, fanOut int, err error) {
	s := x.Shape()
	if !s.IsMatrix() {
		return 0, 0, tensor.Validationf("%s: %s is not a matrix", name, s)
	}
	return s.Dim(1), s.Dim(0), nil
}

// assign replaces the contents of x with a tensor built on x's device,
// without leaving device memory.
func assign(x *tensor.Tensor, build func(tensor.Device) (*tensor.Tensor, error)) error {
	if !x.Valid() {
		return tensor.InvalidObjectf("initializer: invalid tensor")
	}
	y, err := build(x.Device())
	if err != nil {
		return err
	}
	defer y.Release()
	if err := tensor.Reset(x, 0); err != nil {
		return err
	}
	return tensor.AddGradient(x, y)
}
