//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"k8s.io/klog/v2"

	"github.com/menphim/primitiv/internal/backend/blocks"
	"github.com/menphim/primitiv/internal/backend/seed"
	"github.com/menphim/primitiv/internal/tensor"
)

// Verify that Device implements tensor.Device.
var _ tensor.Device = (*Device)(nil)

const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// gpuBuffer is the storage handle of one WebGPU tensor.
type gpuBuffer struct {
	buf  *wgpu.Buffer
	size uint64 // Bytes.
}

// Device executes kernels as WebGPU compute shaders.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     wgpu.AdapterInfo

	limits Limits
	seed   uint64
	src    rand.Source

	mu        sync.Mutex
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	pool      *bufferPool[*wgpu.Buffer]
	blocks    *blocks.Registry[*gpuBuffer]
	closed    bool
}

// IsAvailable reports whether an adapter can be requested.
func IsAvailable() (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// New opens the high-performance adapter and compiles every shader.
func New(cfg Config) (d *Device, err error) {
	// The bindings panic when the native library cannot be loaded.
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = errors.Wrapf(ErrNotAvailable, "native library: %v", r)
		}
	}()

	if cfg.Limits.WorkgroupSize == 0 {
		cfg.Limits = DefaultLimits()
	}
	if cfg.Limits.WorkgroupSize != workgroupSize {
		return nil, errors.Errorf("webgpu: shaders are compiled for workgroup size %d, got %d", workgroupSize, cfg.Limits.WorkgroupSize)
	}
	src, s, err := seed.Source(cfg.Seed)
	if err != nil {
		return nil, err
	}

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, errors.Wrap(ErrNotAvailable, err.Error())
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(ErrNotAvailable, err.Error())
	}
	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(ErrNotAvailable, "no queue")
	}

	d = &Device{
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     queue,
		info:      adapter.GetInfo(),
		limits:    cfg.Limits,
		seed:      s,
		src:       src,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
		blocks:    blocks.New[*gpuBuffer](),
	}
	d.pool = newBufferPool(cfg.PoolPerSize,
		func(size uint64) *wgpu.Buffer {
			return d.device.CreateBuffer(&wgpu.BufferDescriptor{Usage: storageUsage, Size: size})
		},
		func(b *wgpu.Buffer) { b.Release() })

	for name, k := range kernels {
		shader := d.device.CreateShaderModuleWGSL(k.source())
		d.shaders[name] = shader
		d.pipelines[name] = d.device.CreateComputePipelineSimple(nil, shader, "main")
	}
	klog.V(1).InfoS("webgpu device initialized", "adapter", d.info.Name, "vendor", d.info.VendorName, "seed", s)
	return d, nil
}

// Open is New returning the device behind the tensor.Device interface.
func Open(cfg Config) (tensor.Device, error) {
	d, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Name returns "WebGPU".
func (d *Device) Name() string { return "WebGPU" }

// Type returns tensor.WebGPU.
func (d *Device) Type() tensor.DeviceType { return tensor.WebGPU }

// Adapter describes the GPU in use.
func (d *Device) Adapter() string {
	return fmt.Sprintf("%s %s", d.info.Name, d.info.VendorName)
}

// Seed returns the host random seed.
func (d *Device) Seed() uint64 { return d.seed }

// Stats returns block usage statistics.
func (d *Device) Stats() blocks.Stats { return d.blocks.Stats() }

// PoolStats returns buffer reuse statistics.
func (d *Device) PoolStats() PoolStats { return d.pool.snapshot() }

func (d *Device) alloc(n int) *gpuBuffer {
	if d.closed {
		tensor.Fatalf("webgpu: allocation on closed device")
	}
	size := uint64(4 * n)
	b := &gpuBuffer{buf: d.pool.acquire(size), size: size}
	if err := d.blocks.Add(b, size); err != nil {
		tensor.Fatalf("webgpu: %v", err)
	}
	return b
}

func (d *Device) free(b *gpuBuffer) {
	if _, err := d.blocks.Remove(b); err != nil {
		tensor.Fatalf("webgpu: freeing block: %v", err)
	}
	d.pool.release(b.buf, b.size)
	b.buf = nil
}

// NewTensor allocates storage for shape.
func (d *Device) NewTensor(shape tensor.Shape) *tensor.Tensor {
	return tensor.NewTensor(shape, d, d.alloc(shape.Size()))
}

// Free returns a block to the pool.
func (d *Device) Free(handle any) {
	b, ok := handle.(*gpuBuffer)
	if !ok {
		tensor.Fatalf("webgpu: foreign handle %T", handle)
	}
	d.free(b)
}

func (d *Device) buffer(x *tensor.Tensor) *gpuBuffer {
	if x.Device() != tensor.Device(d) {
		tensor.Fatalf("webgpu: tensor on %s used with %s", x.Device().Name(), d.Name())
	}
	b, ok := x.Handle().(*gpuBuffer)
	if !ok || b.buf == nil {
		tensor.Fatalf("webgpu: tensor storage was freed")
	}
	return b
}

// upload creates a mapped-at-creation buffer holding data.
func (d *Device) upload(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))
	buf := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	//nolint:gosec // mapped range is exactly size bytes
	copy(unsafe.Slice((*byte)(buf.GetMappedRange(0, size)), size), data)
	buf.Unmap()
	return buf
}

func float32Bytes(v []float32) []byte {
	//nolint:gosec // reinterpretation of a float32 slice
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), 4*len(v))
}

// copyBuffer copies size bytes from src to dst on the queue.
func (d *Device) copyBuffer(src, dst *wgpu.Buffer, size uint64) {
	encoder := d.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, dst, 0, size)
	d.queue.Submit(encoder.Finish(nil))
}

// run dispatches kernel over n invocations with p bound at binding 0 and
// bufs at bindings 1, 2, ...
func (d *Device) run(name string, n int, p params, bufs ...*gpuBuffer) {
	if n == 0 {
		return
	}
	pipeline, ok := d.pipelines[name]
	if !ok {
		tensor.Fatalf("webgpu: kernel %s not loaded", name)
	}
	uniform := d.upload(p.bytes(), wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
	defer uniform.Release()

	entries := make([]wgpu.BindGroupEntry, 0, len(bufs)+1)
	entries = append(entries, wgpu.BufferBindingEntry(0, uniform, 0, paramsSize))
	for i, b := range bufs {
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i+1), b.buf, 0, b.size))
	}
	bindGroup := d.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), entries)
	defer bindGroup.Release()

	encoder := d.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32(d.limits.Workgroups(n)), 1, 1)
	pass.End()
	d.queue.Submit(encoder.Finish(nil))
}

// ToHost reads x back through a staging buffer.
func (d *Device) ToHost(x *tensor.Tensor) []float32 {
	b := d.buffer(x)
	staging := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  b.size,
	})
	defer staging.Release()
	d.copyBuffer(b.buf, staging, b.size)

	if err := staging.MapAsync(d.device, wgpu.MapModeRead, 0, b.size); err != nil {
		tensor.Fatalf("webgpu: mapping staging buffer: %v", err)
	}
	out := make([]float32, b.size/4)
	//nolint:gosec // mapped range is exactly b.size bytes
	copy(float32Bytes(out), unsafe.Slice((*byte)(staging.GetMappedRange(0, b.size)), b.size))
	staging.Unmap()
	return out
}

// CopyFrom copies a tensor from any device onto d.
func (d *Device) CopyFrom(x *tensor.Tensor) *tensor.Tensor {
	if x.Device() == tensor.Device(d) {
		return d.Duplicate(x)
	}
	y := d.NewTensor(x.Shape())
	d.ResetValues(y, x.Device().ToHost(x))
	return y
}

// ResetConst fills x with k.
func (d *Device) ResetConst(x *tensor.Tensor, k float32) {
	n := x.Shape().Size()
	d.run(kSetConst, n, uints(n).withFloat(k), d.buffer(x))
}

// ResetValues uploads values into x.
func (d *Device) ResetValues(x *tensor.Tensor, values []float32) {
	b := d.buffer(x)
	if uint64(4*len(values)) != b.size {
		tensor.Fatalf("webgpu: reset with %d values for %s", len(values), x.Shape())
	}
	staging := d.upload(float32Bytes(values), wgpu.BufferUsageCopySrc)
	defer staging.Release()
	d.copyBuffer(staging, b.buf, b.size)
}

// Duplicate copies x.
func (d *Device) Duplicate(x *tensor.Tensor) *tensor.Tensor {
	y := d.NewTensor(x.Shape())
	src := d.buffer(x)
	d.copyBuffer(src.buf, d.buffer(y).buf, src.size)
	return y
}

type sampler interface {
	Rand() float64
}

// hostFill draws shape.Size() values on the host and uploads them.
func (d *Device) hostFill(shape tensor.Shape, dist sampler, transform func(float64) float32) *tensor.Tensor {
	values := make([]float32, shape.Size())
	for i := range values {
		values[i] = transform(dist.Rand())
	}
	y := d.NewTensor(shape)
	d.ResetValues(y, values)
	return y
}

func toFloat32(v float64) float32 { return float32(v) }

// RandomBernoulli draws 0/1 values that are 1 with probability p.
func (d *Device) RandomBernoulli(shape tensor.Shape, p float32) *tensor.Tensor {
	return d.hostFill(shape, distuv.Bernoulli{P: float64(p), Src: d.src}, toFloat32)
}

// RandomUniform draws from (lower, upper].
func (d *Device) RandomUniform(shape tensor.Shape, lower, upper float32) *tensor.Tensor {
	return d.hostFill(shape, distuv.Uniform{Min: 0, Max: 1, Src: d.src}, func(u float64) float32 {
		return upper - float32(u)*(upper-lower)
	})
}

// RandomNormal draws from N(mean, sd²).
func (d *Device) RandomNormal(shape tensor.Shape, mean, sd float32) *tensor.Tensor {
	return d.hostFill(shape, distuv.Normal{Mu: float64(mean), Sigma: float64(sd), Src: d.src}, toFloat32)
}

// RandomLogNormal draws exp(v) with v from N(mean, sd²).
func (d *Device) RandomLogNormal(shape tensor.Shape, mean, sd float32) *tensor.Tensor {
	return d.hostFill(shape, distuv.LogNormal{Mu: float64(mean), Sigma: float64(sd), Src: d.src}, toFloat32)
}

// Slice copies [lower, upper) along axis.
func (d *Device) Slice(x *tensor.Tensor, axis, lower, upper int) *tensor.Tensor {
	shape, err := tensor.SliceShape(x.Shape(), axis, lower, upper)
	if err != nil {
		tensor.Fatalf("webgpu: %v", err)
	}
	y := d.NewTensor(shape)
	base := x.Shape().LowerVolume(axis)
	d.run(kSlice, shape.Size(),
		uints(base*lower, base*(upper-lower), base*x.Shape().Dim(axis), shape.Size()),
		d.buffer(x), d.buffer(y))
	return y
}

// Concat copies each input into its band of the result along axis.
func (d *Device) Concat(xs []*tensor.Tensor, axis int, shape tensor.Shape) *tensor.Tensor {
	y := d.NewTensor(shape)
	base := shape.LowerVolume(axis)
	skip := base * shape.Dim(axis)
	offset := 0
	for _, x := range xs {
		span := base * x.Shape().Dim(axis)
		d.run(kConcat, x.Shape().Size(), uints(span, skip, offset, x.Shape().Size()), d.buffer(x), d.buffer(y))
		offset += span
	}
	return y
}

// Pick gathers ids along axis.
func (d *Device) Pick(x *tensor.Tensor, ids []int, axis int) *tensor.Tensor {
	shape, err := tensor.PickShape(x.Shape(), ids, axis)
	if err != nil {
		tensor.Fatalf("webgpu: %v", err)
	}
	y := d.NewTensor(shape)

	host := make([]byte, 4*len(ids))
	for i, id := range ids {
		binary.LittleEndian.PutUint32(host[4*i:], uint32(id))
	}
	idBuf := &gpuBuffer{buf: d.upload(host, wgpu.BufferUsageStorage), size: uint64(len(host))}
	defer idBuf.buf.Release()

	xs := x.Shape()
	base := xs.LowerVolume(axis)
	wx := 0
	if xs.HasBatch() {
		wx = xs.SizePerSample()
	}
	idsSkip := 0
	if len(ids) > 1 {
		idsSkip = 1
	}
	d.run(kPick, shape.Size(),
		uints(wx, idsSkip, base, base*xs.Dim(axis), shape.SizePerSample(), shape.Size()),
		d.buffer(x), idBuf, d.buffer(y))
	return y
}

// Broadcast repeats x size times along a singleton axis.
func (d *Device) Broadcast(x *tensor.Tensor, axis, size int) *tensor.Tensor {
	shape, err := tensor.BroadcastShape(x.Shape(), axis, size)
	if err != nil {
		tensor.Fatalf("webgpu: %v", err)
	}
	y := d.NewTensor(shape)
	skip1 := x.Shape().LowerVolume(axis)
	d.run(kBroadcast, shape.Size(), uints(skip1, skip1*size, shape.Size()), d.buffer(x), d.buffer(y))
	return y
}

func arithID(op tensor.ArithOp, left bool) int {
	if left {
		return int(op) + arithLeft
	}
	return int(op)
}

func batchFlag(s tensor.Shape) int {
	if s.HasBatch() {
		return 1
	}
	return 0
}

// ConstOp computes x op k, or k op x when left.
func (d *Device) ConstOp(op tensor.ArithOp, x *tensor.Tensor, k float32, left bool) *tensor.Tensor {
	y := d.NewTensor(x.Shape())
	n := x.Shape().Size()
	d.run(kConst, n, uints(arithID(op, left), n).withFloat(k), d.buffer(x), d.buffer(y))
	return y
}

// ScalarOp computes x op s, or s op x when left.
func (d *Device) ScalarOp(op tensor.ArithOp, x, s *tensor.Tensor, left bool) *tensor.Tensor {
	y := d.NewTensor(x.Shape())
	n := x.Shape().Size()
	d.run(kScalar, n, uints(arithID(op, left), n), d.buffer(x), d.buffer(s), d.buffer(y))
	return y
}

// ElementwiseOp computes a op b with batch-1 operands repeated.
func (d *Device) ElementwiseOp(op tensor.ArithOp, a, b *tensor.Tensor) *tensor.Tensor {
	shape, err := tensor.ElementwiseShape(a.Shape(), b.Shape())
	if err != nil {
		tensor.Fatalf("webgpu: %v", err)
	}
	y := d.NewTensor(shape)
	d.run(kBinary, shape.Size(),
		uints(int(op), shape.SizePerSample(), shape.Size(), batchFlag(a.Shape()), batchFlag(b.Shape())),
		d.buffer(a), d.buffer(b), d.buffer(y))
	return y
}

// Pointwise applies op to every element.
func (d *Device) Pointwise(op tensor.PointwiseOp, x *tensor.Tensor, a float32) *tensor.Tensor {
	y := d.NewTensor(x.Shape())
	n := x.Shape().Size()
	d.run(kUnary, n, uints(int(op), n).withFloat(a), d.buffer(x), d.buffer(y))
	return y
}

// Transpose swaps the two leading axes.
func (d *Device) Transpose(x *tensor.Tensor) *tensor.Tensor {
	shape, err := tensor.TransposeShape(x.Shape())
	if err != nil {
		tensor.Fatalf("webgpu: %v", err)
	}
	y := d.NewTensor(shape)
	d.run(kTranspose, shape.Size(), uints(x.Shape().Dim(0), x.Shape().Dim(1), shape.Size()), d.buffer(x), d.buffer(y))
	return y
}

// MatMul computes the batched product a·b; a batch-1 operand is reused
// for every sample.
func (d *Device) MatMul(a, b *tensor.Tensor) *tensor.Tensor {
	shape, err := tensor.MatMulShape(a.Shape(), b.Shape())
	if err != nil {
		tensor.Fatalf("webgpu: %v", err)
	}
	y := d.NewTensor(shape)
	m, k, n := a.Shape().Dim(0), a.Shape().Dim(1), b.Shape().Dim(1)
	sa, sb := 0, 0
	if a.Shape().HasBatch() {
		sa = m * k
	}
	if b.Shape().HasBatch() {
		sb = k * n
	}
	d.run(kMatMul, shape.Size(), uints(m, k, n, sa, sb, shape.Size()), d.buffer(a), d.buffer(b), d.buffer(y))
	return y
}

func (d *Device) reduce(name string, x *tensor.Tensor, axis int) *tensor.Tensor {
	shape, err := tensor.ReduceShape(x.Shape(), axis)
	if err != nil {
		tensor.Fatalf("webgpu: %v", err)
	}
	y := d.NewTensor(shape)
	d.run(name, shape.Size(), uints(x.Shape().LowerVolume(axis), x.Shape().Dim(axis), shape.Size()), d.buffer(x), d.buffer(y))
	return y
}

// Sum reduces axis by summation.
func (d *Device) Sum(x *tensor.Tensor, axis int) *tensor.Tensor { return d.reduce(kSum, x, axis) }

// LogSumExp reduces axis by log(sum(exp(x))), shifted by the maximum.
func (d *Device) LogSumExp(x *tensor.Tensor, axis int) *tensor.Tensor {
	return d.reduce(kLogSumExp, x, axis)
}

// BatchSum sums the samples of x.
func (d *Device) BatchSum(x *tensor.Tensor) *tensor.Tensor {
	y := d.NewTensor(tensor.BatchReduceShape(x.Shape()))
	n := x.Shape().SizePerSample()
	d.run(kBatchSum, n, uints(n, x.Shape().Batch()), d.buffer(x), d.buffer(y))
	return y
}

// AddGradient adds b into a in place.
func (d *Device) AddGradient(a, b *tensor.Tensor) {
	as, bs := a.Shape(), b.Shape()
	if !as.HasSameDims(bs) || !as.HasCompatibleBatch(bs) {
		tensor.Fatalf("webgpu: add gradient: shape mismatch: %s and %s", as, bs)
	}
	// One buffer cannot be bound both writable and read-only.
	if d.buffer(a) == d.buffer(b) {
		c := d.Duplicate(b)
		defer c.Release()
		b = c
	}
	n := as.SizePerSample()
	if as.Batch() == 1 && bs.HasBatch() {
		d.run(kAddGradReduce, n, uints(n, bs.Batch()), d.buffer(a), d.buffer(b))
		return
	}
	d.run(kAddGrad, as.Size(), uints(n, as.Size(), batchFlag(bs)), d.buffer(a), d.buffer(b))
}

// Synchronize waits for every submitted command by reading back one word.
func (d *Device) Synchronize() {
	sentinel := d.alloc(1)
	defer d.free(sentinel)
	staging := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  4,
	})
	defer staging.Release()
	d.copyBuffer(sentinel.buf, staging, 4)
	if err := staging.MapAsync(d.device, wgpu.MapModeRead, 0, 4); err != nil {
		tensor.Fatalf("webgpu: synchronizing: %v", err)
	}
	staging.Unmap()
}

// Close releases leaked blocks, pooled buffers, pipelines and the device.
// Closing twice is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	if n := d.blocks.Len(); n > 0 {
		klog.Warningf("webgpu: %d blocks still allocated at close", n)
	}
	d.blocks.Drain(func(b *gpuBuffer, _ uint64) {
		b.buf.Release()
		b.buf = nil
	})
	pooled := d.pool.clear()

	for _, p := range d.pipelines {
		p.Release()
	}
	for _, s := range d.shaders {
		s.Release()
	}
	d.pipelines, d.shaders = nil, nil

	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
	klog.V(1).InfoS("webgpu device closed", "pooledBuffers", pooled)
	return nil
}
