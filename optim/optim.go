// Copyright 2025 The primitiv Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides update rules for nn parameters.
//
// Optimizer state is stored in each parameter's named statistics.
//
// Example:
//
//	o := optim.NewAdam(optim.AdamConfig{Alpha: 0.001}, optim.DefaultConfig())
//	if err := o.Add(w, b); err != nil {
//	    log.Fatal(err)
//	}
//	for step := 0; step < steps; step++ {
//	    o.ResetGradients()
//	    // accumulate gradients into w and b
//	    o.Update()
//	}
package optim

import "github.com/menphim/primitiv/internal/optim"

// Optimizer updates registered parameters from their gradients.
type Optimizer = optim.Optimizer

// Config holds hyperparameters shared by every optimizer.
type Config = optim.Config

// AdamConfig holds the Adam hyperparameters.
type AdamConfig = optim.AdamConfig

// Optimizers.
type (
	SGD         = optim.SGD
	MomentumSGD = optim.MomentumSGD
	Adam        = optim.Adam
)

// DefaultConfig returns a Config with no decay and no clipping.
func DefaultConfig() Config { return optim.DefaultConfig() }

// NewSGD creates a plain SGD optimizer.
func NewSGD(lr float32, cfg Config) *SGD { return optim.NewSGD(lr, cfg) }

// NewMomentumSGD creates an SGD optimizer with momentum.
func NewMomentumSGD(lr, momentum float32, cfg Config) *MomentumSGD {
	return optim.NewMomentumSGD(lr, momentum, cfg)
}

// NewAdam creates an Adam optimizer.
func NewAdam(ac AdamConfig, cfg Config) *Adam { return optim.NewAdam(ac, cfg) }
