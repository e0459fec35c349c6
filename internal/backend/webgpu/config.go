// Package webgpu implements the tensor device on WebGPU compute shaders.
//
// Kernels are WGSL programs compiled once per device and dispatched as
// grid-stride loops. Random values are drawn on the host and uploaded.
// The wgpu bindings are loaded on Windows only; elsewhere New reports
// ErrNotAvailable.
package webgpu

import "github.com/pkg/errors"

// ErrNotAvailable is returned when no WebGPU adapter can be opened.
var ErrNotAvailable = errors.New("webgpu: not available")

// Limits bound the dispatch geometry.
type Limits struct {
	WorkgroupSize int // Threads per workgroup; the shaders are compiled for this value.
	MaxWorkgroups int // Upper bound on workgroups along x.
}

// DefaultLimits matches the WebGPU baseline limits.
func DefaultLimits() Limits {
	return Limits{WorkgroupSize: workgroupSize, MaxWorkgroups: 65535}
}

// Workgroups returns the dispatch width for a grid-stride kernel over n
// elements.
func (l Limits) Workgroups(n int) int {
	return max(1, min((n+l.WorkgroupSize-1)/l.WorkgroupSize, l.MaxWorkgroups))
}

// Config holds WebGPU device options.
type Config struct {
	Seed        *uint64 // Host random seed; nil draws one from the OS.
	PoolPerSize int     // Released buffers kept for reuse per byte size.
	Limits      Limits
}

// DefaultConfig returns a nondeterministically seeded configuration.
func DefaultConfig() Config {
	return Config{PoolPerSize: 16, Limits: DefaultLimits()}
}
