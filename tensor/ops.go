// Copyright 2025 The primitiv Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/menphim/primitiv/internal/tensor"
)

// Add returns a + b.
func Add(a, b *Tensor) (*Tensor, error) { return tensor.Add(a, b) }

// Subtract returns a - b.
func Subtract(a, b *Tensor) (*Tensor, error) { return tensor.Subtract(a, b) }

// Multiply returns a * b elementwise.
func Multiply(a, b *Tensor) (*Tensor, error) { return tensor.Multiply(a, b) }

// Divide returns a / b elementwise.
func Divide(a, b *Tensor) (*Tensor, error) { return tensor.Divide(a, b) }

// AddConst returns x + k.
func AddConst(x *Tensor, k float32) (*Tensor, error) { return tensor.AddConst(x, k) }

// SubtractConst returns x - k.
func SubtractConst(x *Tensor, k float32) (*Tensor, error) { return tensor.SubtractConst(x, k) }

// SubtractFromConst returns k - x.
func SubtractFromConst(k float32, x *Tensor) (*Tensor, error) { return tensor.SubtractFromConst(k, x) }

// MultiplyConst returns x * k.
func MultiplyConst(x *Tensor, k float32) (*Tensor, error) { return tensor.MultiplyConst(x, k) }

// DivideConst returns x / k.
func DivideConst(x *Tensor, k float32) (*Tensor, error) { return tensor.DivideConst(x, k) }

// DivideConstBy returns k / x.
func DivideConstBy(k float32, x *Tensor) (*Tensor, error) { return tensor.DivideConstBy(k, x) }

// Positive returns a copy of x.
func Positive(x *Tensor) (*Tensor, error) { return tensor.Positive(x) }

// Negate returns -x.
func Negate(x *Tensor) (*Tensor, error) { return tensor.Negate(x) }

// Sqrt returns the square root of every element.
func Sqrt(x *Tensor) (*Tensor, error) { return tensor.Sqrt(x) }

// Exp returns the exponential of every element.
func Exp(x *Tensor) (*Tensor, error) { return tensor.Exp(x) }

// Log returns the natural logarithm of every element.
func Log(x *Tensor) (*Tensor, error) { return tensor.Log(x) }

// Tanh returns the hyperbolic tangent of every element.
func Tanh(x *Tensor) (*Tensor, error) { return tensor.Tanh(x) }

// Sigmoid returns the logistic sigmoid of every element.
func Sigmoid(x *Tensor) (*Tensor, error) { return tensor.Sigmoid(x) }

// Softplus returns log(1+exp(x)) for every element.
func Softplus(x *Tensor) (*Tensor, error) { return tensor.Softplus(x) }

// Sin returns the sine of every element.
func Sin(x *Tensor) (*Tensor, error) { return tensor.Sin(x) }

// Cos returns the cosine of every element.
func Cos(x *Tensor) (*Tensor, error) { return tensor.Cos(x) }

// Tan returns the tangent of every element.
func Tan(x *Tensor) (*Tensor, error) { return tensor.Tan(x) }

// Step returns 1 where x > 0 and 0 elsewhere.
func Step(x *Tensor) (*Tensor, error) { return tensor.Step(x) }

// ReLU returns max(x, 0).
func ReLU(x *Tensor) (*Tensor, error) { return tensor.ReLU(x) }

// LReLU is the leaky rectifier with slope 0.01.
func LReLU(x *Tensor) (*Tensor, error) { return tensor.LReLU(x) }

// PReLU is the rectifier with slope a below zero.
func PReLU(x *Tensor, a float32) (*Tensor, error) { return tensor.PReLU(x, a) }

// ELU returns x for x > 0 and a·(exp(x)-1) elsewhere.
func ELU(x *Tensor, a float32) (*Tensor, error) { return tensor.ELU(x, a) }

// Slice returns the range [lower, upper) of axis.
func Slice(x *Tensor, axis, lower, upper int) (*Tensor, error) {
	return tensor.Slice(x, axis, lower, upper)
}

// Concat joins xs along axis.
func Concat(xs []*Tensor, axis int) (*Tensor, error) { return tensor.Concat(xs, axis) }

// Pick selects index ids[n] of axis for every sample n.
func Pick(x *Tensor, ids []int, axis int) (*Tensor, error) { return tensor.Pick(x, ids, axis) }

// Reshape reinterprets x with a shape of the same per-sample size.
func Reshape(x *Tensor, shape Shape) (*Tensor, error) { return tensor.Reshape(x, shape) }

// Flatten reshapes x to a column vector per sample.
func Flatten(x *Tensor) (*Tensor, error) { return tensor.Flatten(x) }

// Transpose swaps the two axes of a matrix.
func Transpose(x *Tensor) (*Tensor, error) { return tensor.Transpose(x) }

// MatMul returns the matrix product a·b.
func MatMul(a, b *Tensor) (*Tensor, error) { return tensor.MatMul(a, b) }

// Broadcast repeats a singleton axis size times.
func Broadcast(x *Tensor, axis, size int) (*Tensor, error) { return tensor.Broadcast(x, axis, size) }

// Sum reduces axis by summation.
func Sum(x *Tensor, axis int) (*Tensor, error) { return tensor.Sum(x, axis) }

// LogSumExp reduces axis by log(sum(exp(x))).
func LogSumExp(x *Tensor, axis int) (*Tensor, error) { return tensor.LogSumExp(x, axis) }

// Mean reduces axis by averaging.
func Mean(x *Tensor, axis int) (*Tensor, error) { return tensor.Mean(x, axis) }

// BatchSum sums the samples of x.
func BatchSum(x *Tensor) (*Tensor, error) { return tensor.BatchSum(x) }

// BatchMean averages the samples of x.
func BatchMean(x *Tensor) (*Tensor, error) { return tensor.BatchMean(x) }

// LogSoftmax returns x - logsumexp(x) along axis.
func LogSoftmax(x *Tensor, axis int) (*Tensor, error) { return tensor.LogSoftmax(x, axis) }

// Softmax returns exp(LogSoftmax(x)).
func Softmax(x *Tensor, axis int) (*Tensor, error) { return tensor.Softmax(x, axis) }

// SoftmaxCrossEntropy returns -sum(t · LogSoftmax(x)) along axis.
func SoftmaxCrossEntropy(x, t *Tensor, axis int) (*Tensor, error) {
	return tensor.SoftmaxCrossEntropy(x, t, axis)
}

// SparseSoftmaxCrossEntropy is SoftmaxCrossEntropy with one-hot targets ids.
func SparseSoftmaxCrossEntropy(x *Tensor, ids []int, axis int) (*Tensor, error) {
	return tensor.SparseSoftmaxCrossEntropy(x, ids, axis)
}

// AddGradient adds b into a in place, summing the samples of b when a has
// batch 1.
func AddGradient(a, b *Tensor) error { return tensor.AddGradient(a, b) }
