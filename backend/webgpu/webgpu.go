// Copyright 2025 The primitiv Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU compute device.
//
// Kernels are WGSL compute shaders dispatched through go-webgpu. The
// native bindings are loaded on Windows; on other platforms New and Open
// return ErrNotAvailable.
//
// Example:
//
//	if webgpu.IsAvailable() {
//	    dev, err := webgpu.New(webgpu.DefaultConfig())
//	    ...
//	    defer dev.Close()
//	}
package webgpu

import (
	internalwebgpu "github.com/menphim/primitiv/internal/backend/webgpu"
	"github.com/menphim/primitiv/tensor"
)

// Device is the WebGPU device.
type Device = internalwebgpu.Device

// Config holds WebGPU device options.
type Config = internalwebgpu.Config

// ErrNotAvailable reports that no adapter could be opened.
var ErrNotAvailable = internalwebgpu.ErrNotAvailable

// DefaultConfig returns a nondeterministically seeded configuration.
func DefaultConfig() Config { return internalwebgpu.DefaultConfig() }

// IsAvailable reports whether an adapter can be requested.
func IsAvailable() bool { return internalwebgpu.IsAvailable() }

// New opens the default adapter.
func New(cfg Config) (*Device, error) { return internalwebgpu.New(cfg) }

// Open opens the default adapter and returns it as a tensor.Device.
func Open(cfg Config) (tensor.Device, error) { return internalwebgpu.Open(cfg) }
