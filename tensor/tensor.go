// Copyright 2025 The primitiv Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/menphim/primitiv/internal/tensor"
)

// Shape is an immutable per-sample shape plus batch count.
type Shape = tensor.Shape

// Tensor is a handle to a block of device memory.
type Tensor = tensor.Tensor

// Device allocates tensor storage and executes kernels.
type Device = tensor.Device

// DeviceType identifies a device substrate.
type DeviceType = tensor.DeviceType

// Device types.
const (
	CPU    DeviceType = tensor.CPU
	CUDA   DeviceType = tensor.CUDA
	WebGPU DeviceType = tensor.WebGPU
)

// Error is the error type of the tensor core.
type Error = tensor.Error

// ErrorKind classifies an Error.
type ErrorKind = tensor.ErrorKind

// Error kinds.
const (
	KindValidation    ErrorKind = tensor.KindValidation
	KindInvalidObject ErrorKind = tensor.KindInvalidObject
	KindFatal         ErrorKind = tensor.KindFatal
)

// Sentinels for errors.Is.
var (
	ErrValidation    = tensor.ErrValidation
	ErrInvalidObject = tensor.ErrInvalidObject
	ErrFatal         = tensor.ErrFatal
)

// NewShape creates a shape, dropping trailing extents of 1.
func NewShape(dims []int, batch int) (Shape, error) { return tensor.NewShape(dims, batch) }

// MustShape is NewShape for statically known shapes; it panics on error.
func MustShape(dims []int, batch int) Shape { return tensor.MustShape(dims, batch) }

// KindOf reports the kind of err, and false if err is not an *Error.
func KindOf(err error) (ErrorKind, bool) { return tensor.KindOf(err) }

// SetDefaultDevice registers the device used when nil is passed.
func SetDefaultDevice(dev Device) { tensor.SetDefaultDevice(dev) }

// DefaultDevice returns the registered default device.
func DefaultDevice() (Device, error) { return tensor.DefaultDevice() }

// ClearDefaultDevice unregisters the default device.
func ClearDefaultDevice() { tensor.ClearDefaultDevice() }

// Constant creates a tensor filled with k.
func Constant(shape Shape, k float32, dev Device) (*Tensor, error) {
	return tensor.Constant(shape, k, dev)
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, dev Device) (*Tensor, error) { return tensor.Zeros(shape, dev) }

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dev Device) (*Tensor, error) { return tensor.Ones(shape, dev) }

// FromValues creates a tensor from values in layout order.
func FromValues(shape Shape, values []float32, dev Device) (*Tensor, error) {
	return tensor.FromValues(shape, values, dev)
}

// Identity creates an n×n identity matrix.
func Identity(n int, dev Device) (*Tensor, error) { return tensor.Identity(n, dev) }

// RandomBernoulli draws 0/1 values that are 1 with probability p.
func RandomBernoulli(shape Shape, p float32, dev Device) (*Tensor, error) {
	return tensor.RandomBernoulli(shape, p, dev)
}

// RandomUniform draws from (lower, upper].
func RandomUniform(shape Shape, lower, upper float32, dev Device) (*Tensor, error) {
	return tensor.RandomUniform(shape, lower, upper, dev)
}

// RandomNormal draws from N(mean, sd²).
func RandomNormal(shape Shape, mean, sd float32, dev Device) (*Tensor, error) {
	return tensor.RandomNormal(shape, mean, sd, dev)
}

// RandomLogNormal draws exp(v) with v from N(mean, sd²).
func RandomLogNormal(shape Shape, mean, sd float32, dev Device) (*Tensor, error) {
	return tensor.RandomLogNormal(shape, mean, sd, dev)
}

// ToHost copies x to host memory in layout order.
func ToHost(x *Tensor) ([]float32, error) { return tensor.ToHost(x) }

// ToScalar returns the single value of a scalar tensor.
func ToScalar(x *Tensor) (float32, error) { return tensor.ToScalar(x) }

// Reset fills x with k.
func Reset(x *Tensor, k float32) error { return tensor.Reset(x, k) }

// ResetValues overwrites x from values in layout order.
func ResetValues(x *Tensor, values []float32) error { return tensor.ResetValues(x, values) }

// Copy copies x onto dev.
func Copy(x *Tensor, dev Device) (*Tensor, error) { return tensor.Copy(x, dev) }
