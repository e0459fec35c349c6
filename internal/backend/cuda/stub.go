//go:build !cuda

package cuda

import "github.com/menphim/primitiv/internal/tensor"

// Device is unavailable in builds without the cuda tag.
type Device struct{}

// New always fails with ErrNotAvailable.
func New(Config) (*Device, error) { return nil, ErrNotAvailable }

// DeviceCount reports zero GPUs.
func DeviceCount() (int, error) { return 0, ErrNotAvailable }

// Open always fails with ErrNotAvailable.
func Open(Config) (tensor.Device, error) { return nil, ErrNotAvailable }
