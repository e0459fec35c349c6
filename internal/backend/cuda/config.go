// Package cuda implements the tensor device on NVIDIA GPUs.
//
// Kernels are compiled at device creation with NVRTC and launched through
// the driver API; matrix products use cuBLAS and random draws use cuRAND.
// The implementation is built only with the "cuda" build tag; without it
// New reports ErrNotAvailable.
package cuda

import "github.com/pkg/errors"

// ErrNotAvailable is returned when CUDA support was not compiled in or no
// GPU is present.
var ErrNotAvailable = errors.New("cuda: not available")

// Config holds CUDA device options.
type Config struct {
	DeviceID int     // Physical GPU index.
	Seed     *uint64 // cuRAND seed; nil draws one from the OS.
}

// DefaultConfig selects GPU 0 with a nondeterministic seed.
func DefaultConfig() Config { return Config{} }
