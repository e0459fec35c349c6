// Package tensor provides the shape algebra, the device abstraction, and the
// checked operator layer of the primitiv tensor core.
package tensor

import (
	"fmt"
	"sync/atomic"
)

// block is a reference-counted device allocation shared by reshaped views.
// The last reference returns the handle to the owning device.
type block struct {
	handle   any
	refCount atomic.Int32
}

func newBlock(handle any) *block {
	b := &block{handle: handle}
	b.refCount.Store(1)
	return b
}

func (b *block) addRef() { b.refCount.Add(1) }

// release reports whether this call dropped the last reference.
func (b *block) release() bool { return b.refCount.Add(-1) == 0 }

// Tensor is a handle to float32 storage owned by a Device.
//
// Elements are laid out with the first axis varying fastest and the batch
// as the outermost index. The handle does not own the memory: Release asks
// the device to free the block once no reshaped view refers to it.
//
// The zero value is an invalid tensor.
type Tensor struct {
	shape    Shape
	device   Device
	block    *block
	released bool
}

// NewTensor binds a freshly allocated device handle to a new Tensor.
// Only Device implementations should call it.
func NewTensor(shape Shape, dev Device, handle any) *Tensor {
	return &Tensor{shape: shape, device: dev, block: newBlock(handle)}
}

// Valid reports whether the tensor is bound to live storage.
func (t *Tensor) Valid() bool {
	return t != nil && t.device != nil && t.block != nil && !t.released
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape { return t.shape }

// Device returns the device owning the tensor's storage.
func (t *Tensor) Device() Device { return t.device }

// Handle returns the device-specific storage handle.
// Only Device implementations should interpret it.
func (t *Tensor) Handle() any {
	if t.block == nil {
		return nil
	}
	return t.block.handle
}

// Reshape returns a view with new per-sample extents sharing this tensor's
// storage. The per-sample volume must be unchanged and the requested batch
// must be 1 or equal to the current batch.
func (t *Tensor) Reshape(shape Shape) (*Tensor, error) {
	if !t.Valid() {
		return nil, invalidf("reshape: invalid tensor")
	}
	if shape.SizePerSample() != t.shape.SizePerSample() ||
		(shape.HasBatch() && shape.Batch() != t.shape.Batch()) {
		return nil, validationf("reshape: invalid shapes: %s -> %s", t.shape, shape)
	}
	t.block.addRef()
	return &Tensor{
		shape:  shape.mustResizeBatch(t.shape.Batch()),
		device: t.device,
		block:  t.block,
	}, nil
}

// Flatten returns a view with a single axis of SizePerSample elements.
func (t *Tensor) Flatten() (*Tensor, error) {
	if !t.Valid() {
		return nil, invalidf("flatten: invalid tensor")
	}
	return t.Reshape(MustShape([]int{t.shape.SizePerSample()}, 1))
}

// own gives t exclusive storage before an in-place write: a handle that
// shares its block with reshaped views is rebound to a private copy, so the
// other handles keep their values.
func (t *Tensor) own() {
	if t.block.refCount.Load() == 1 {
		return
	}
	c := t.device.Duplicate(t)
	t.block.release()
	t.block = c.block
}

// Release drops this handle's reference to the storage. Releasing the same
// handle twice is a fatal error.
func (t *Tensor) Release() {
	if t == nil || t.block == nil || t.device == nil {
		Fatalf("release: tensor was never allocated")
	}
	if t.released {
		Fatalf("release: tensor %s on %s already released", t.shape, t.device.Name())
	}
	t.released = true
	if t.block.release() {
		t.device.Free(t.block.handle)
	}
}

// String returns a short description of the tensor.
func (t *Tensor) String() string {
	if !t.Valid() {
		return "Tensor(invalid)"
	}
	return fmt.Sprintf("Tensor%s on %s", t.shape, t.device.Name())
}

// DeleteTensor releases x, which must be owned by dev.
// Foreign tensors and double deletion are fatal.
func DeleteTensor(dev Device, x *Tensor) {
	if x == nil || x.device == nil {
		Fatalf("delete: tensor was never allocated")
	}
	if x.device != dev {
		Fatalf("delete: tensor on %s is not owned by %s", x.device.Name(), dev.Name())
	}
	x.Release()
}

// releaseAll releases every valid tensor in xs. Used to drop intermediates.
func releaseAll(xs ...*Tensor) {
	for _, x := range xs {
		if x.Valid() {
			x.Release()
		}
	}
}
