//go:build !windows

package webgpu

import "github.com/menphim/primitiv/internal/tensor"

// Device is unavailable on this platform.
type Device struct{}

// IsAvailable reports false: the wgpu bindings are loaded on Windows only.
func IsAvailable() bool { return false }

// New always fails with ErrNotAvailable.
func New(Config) (*Device, error) { return nil, ErrNotAvailable }

// Open always fails with ErrNotAvailable.
func Open(Config) (tensor.Device, error) { return nil, ErrNotAvailable }
