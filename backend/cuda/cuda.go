// Copyright 2025 The primitiv Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cuda provides the NVIDIA GPU device.
//
// The device is compiled only with the "cuda" build tag and needs the CUDA
// toolkit (runtime, driver, cuBLAS, cuRAND and NVRTC) at link time. Without
// the tag New and Open return ErrNotAvailable.
//
// Example:
//
//	dev, err := cuda.Open(cuda.Config{DeviceID: 0})
//	if errors.Is(err, cuda.ErrNotAvailable) {
//	    // fall back to the CPU
//	}
package cuda

import (
	internalcuda "github.com/menphim/primitiv/internal/backend/cuda"
	"github.com/menphim/primitiv/tensor"
)

// Device is the CUDA device.
type Device = internalcuda.Device

// Config holds CUDA device options.
type Config = internalcuda.Config

// ErrNotAvailable reports a build without CUDA support or a missing GPU.
var ErrNotAvailable = internalcuda.ErrNotAvailable

// DefaultConfig selects GPU 0 with a nondeterministic seed.
func DefaultConfig() Config { return internalcuda.DefaultConfig() }

// New initializes a GPU.
func New(cfg Config) (*Device, error) { return internalcuda.New(cfg) }

// Open initializes a GPU and returns it as a tensor.Device.
func Open(cfg Config) (tensor.Device, error) { return internalcuda.Open(cfg) }

// DeviceCount returns the number of visible GPUs.
func DeviceCount() (int, error) { return internalcuda.DeviceCount() }
