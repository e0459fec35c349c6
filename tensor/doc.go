// Copyright 2025 The primitiv Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor is the public API of the primitiv tensor core.
//
// # Overview
//
// A Tensor is a handle to device memory with a Shape. A Shape holds the
// per-sample extents and a batch count; data is stored column-major per
// sample (the first axis varies fastest) with samples outermost.
//
// Every operation validates its operands and returns a *Error of kind
// KindValidation before touching a device. Operations between a scalar
// shape and any other shape use the device's scalar kernels; otherwise
// extents must match and batches must be equal or one of them 1.
//
// # Basic Usage
//
//	import (
//	    "github.com/menphim/primitiv/backend/cpu"
//	    "github.com/menphim/primitiv/tensor"
//	)
//
//	func main() {
//	    dev, err := cpu.New(cpu.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer dev.Close()
//
//	    x, _ := tensor.FromValues(tensor.MustShape([]int{2, 2}, 1), []float32{1, 2, 3, 4}, dev)
//	    y, _ := tensor.Exp(x)
//	    defer x.Release()
//	    defer y.Release()
//	}
//
// # Default device
//
// Functions taking a Device accept nil to mean the device registered with
// SetDefaultDevice.
//
// # Errors
//
// Use errors.Is with ErrValidation or ErrInvalidObject to classify
// failures. Broken internal invariants (double release, mixing devices,
// library failures) panic with a *Error of kind KindFatal.
package tensor
