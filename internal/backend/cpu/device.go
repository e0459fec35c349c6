// Package cpu implements the reference tensor device on the host CPU.
package cpu

import (
	"golang.org/x/exp/rand"
	"k8s.io/klog/v2"

	"github.com/menphim/primitiv/internal/backend/blocks"
	"github.com/menphim/primitiv/internal/backend/seed"
	"github.com/menphim/primitiv/internal/parallel"
	"github.com/menphim/primitiv/internal/tensor"
)

// Verify that Device implements tensor.Device.
var _ tensor.Device = (*Device)(nil)

// Config holds CPU device options.
type Config struct {
	Seed     *uint64         // Random seed; nil draws one from the OS.
	Parallel parallel.Config // Chunking of large elementwise kernels.
}

// DefaultConfig returns a nondeterministically seeded, parallel configuration.
func DefaultConfig() Config {
	return Config{Parallel: parallel.DefaultConfig()}
}

// buffer is the storage handle of one CPU tensor.
type buffer struct {
	data []float32
}

// Device executes every kernel on the host.
type Device struct {
	cfg    Config
	seed   uint64
	src    rand.Source
	blocks *blocks.Registry[*buffer]
	closed bool
}

// New creates a CPU device.
func New(cfg Config) (*Device, error) {
	src, s, err := seed.Source(cfg.Seed)
	if err != nil {
		return nil, err
	}
	klog.V(1).InfoS("cpu device initialized", "seed", s, "parallel", cfg.Parallel.Enabled)
	return &Device{
		cfg:    cfg,
		seed:   s,
		src:    src,
		blocks: blocks.New[*buffer](),
	}, nil
}

// Name returns the device name.
func (d *Device) Name() string { return "CPU" }

// Type returns tensor.CPU.
func (d *Device) Type() tensor.DeviceType { return tensor.CPU }

// Seed returns the seed the random generator was initialized with.
func (d *Device) Seed() uint64 { return d.seed }

// Stats returns block usage statistics.
func (d *Device) Stats() blocks.Stats { return d.blocks.Stats() }

// NewTensor allocates storage for shape.
func (d *Device) NewTensor(shape tensor.Shape) *tensor.Tensor {
	if d.closed {
		tensor.Fatalf("cpu: allocation on closed device")
	}
	b := &buffer{data: make([]float32, shape.Size())}
	if err := d.blocks.Add(b, uint64(4*shape.Size())); err != nil {
		tensor.Fatalf("cpu: %v", err)
	}
	return tensor.NewTensor(shape, d, b)
}

// Free releases a block.
func (d *Device) Free(handle any) {
	b, ok := handle.(*buffer)
	if !ok {
		tensor.Fatalf("cpu: foreign handle %T", handle)
	}
	if _, err := d.blocks.Remove(b); err != nil {
		tensor.Fatalf("cpu: freeing block: %v", err)
	}
	b.data = nil
}

// data returns the storage of x, which must be owned by d.
func (d *Device) data(x *tensor.Tensor) []float32 {
	if x.Device() != tensor.Device(d) {
		tensor.Fatalf("cpu: tensor on %s used with %s", x.Device().Name(), d.Name())
	}
	b, ok := x.Handle().(*buffer)
	if !ok || b.data == nil {
		tensor.Fatalf("cpu: tensor storage was freed")
	}
	return b.data
}

// ToHost returns a copy of x.
func (d *Device) ToHost(x *tensor.Tensor) []float32 {
	src := d.data(x)
	out := make([]float32, len(src))
	copy(out, src)
	return out
}

// CopyFrom copies a tensor from any device onto d.
func (d *Device) CopyFrom(x *tensor.Tensor) *tensor.Tensor {
	y := d.NewTensor(x.Shape())
	if x.Device() == tensor.Device(d) {
		copy(d.data(y), d.data(x))
	} else {
		copy(d.data(y), x.Device().ToHost(x))
	}
	return y
}

// ResetConst fills x with k.
func (d *Device) ResetConst(x *tensor.Tensor, k float32) {
	dst := d.data(x)
	for i := range dst {
		dst[i] = k
	}
}

// ResetValues copies values into x.
func (d *Device) ResetValues(x *tensor.Tensor, values []float32) {
	dst := d.data(x)
	if len(values) != len(dst) {
		tensor.Fatalf("cpu: reset with %d values for %s", len(values), x.Shape())
	}
	copy(dst, values)
}

// Duplicate copies x.
func (d *Device) Duplicate(x *tensor.Tensor) *tensor.Tensor {
	y := d.NewTensor(x.Shape())
	copy(d.data(y), d.data(x))
	return y
}

// Synchronize is a no-op: every CPU kernel completes before returning.
func (d *Device) Synchronize() {}

// Close releases all remaining blocks. Closing twice is a no-op.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if n := d.blocks.Len(); n > 0 {
		klog.Warningf("cpu: %d blocks still allocated at close", n)
	}
	d.blocks.Drain(func(b *buffer, _ uint64) { b.data = nil })
	klog.V(1).InfoS("cpu device closed")
	return nil
}
