// Copyright 2025 The primitiv Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the host CPU device.
//
// Every kernel runs in pure Go; matrix products use gonum's BLAS and large
// elementwise kernels are split across goroutines.
//
// Example:
//
//	dev, err := cpu.New(cpu.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//	tensor.SetDefaultDevice(dev)
package cpu

import (
	internalcpu "github.com/menphim/primitiv/internal/backend/cpu"
	"github.com/menphim/primitiv/internal/parallel"
	"github.com/menphim/primitiv/tensor"
)

// Device is the CPU device.
type Device = internalcpu.Device

// Config holds CPU device options.
type Config = internalcpu.Config

// ParallelConfig controls how elementwise kernels are split across workers.
type ParallelConfig = parallel.Config

// Compile-time check that Device implements tensor.Device.
var _ tensor.Device = (*Device)(nil)

// DefaultConfig returns a nondeterministically seeded, parallel configuration.
func DefaultConfig() Config { return internalcpu.DefaultConfig() }

// Sequential disables worker fan-out.
func Sequential() ParallelConfig { return parallel.Sequential() }

// New creates a CPU device.
func New(cfg Config) (*Device, error) { return internalcpu.New(cfg) }
