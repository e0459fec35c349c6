// Copyright 2025 The primitiv Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides trainable parameters and weight initializers.
//
// Example:
//
//	w, err := nn.NewParameterWithInit(tensor.MustShape([]int{128, 784}, 1), nn.XavierUniform{Scale: 1}, dev)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Release()
//	w.AddStats("momentum", tensor.MustShape([]int{128, 784}, 1))
package nn

import (
	"github.com/menphim/primitiv/internal/nn"
	"github.com/menphim/primitiv/tensor"
)

// Parameter is a trainable tensor with its gradient and optimizer state.
type Parameter = nn.Parameter

// Model is a tree of named parameters and submodels.
type Model = nn.Model

// NewModel creates an empty model.
func NewModel() *Model { return nn.NewModel() }

// Initializer overwrites a tensor in place.
type Initializer = nn.Initializer

// Initializers.
type (
	Constant      = nn.Constant
	Uniform       = nn.Uniform
	Normal        = nn.Normal
	XavierUniform = nn.XavierUniform
	XavierNormal  = nn.XavierNormal
	Identity      = nn.Identity
)

// NewParameter creates a parameter holding values.
func NewParameter(shape tensor.Shape, values []float32, dev tensor.Device) (*Parameter, error) {
	return nn.NewParameter(shape, values, dev)
}

// NewParameterWithInit creates a parameter initialized by init.
func NewParameterWithInit(shape tensor.Shape, init Initializer, dev tensor.Device) (*Parameter, error) {
	return nn.NewParameterWithInit(shape, init, dev)
}
