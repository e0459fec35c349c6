//go:build cuda

package cuda

/*
#cgo LDFLAGS: -lcudart -lcublas -lcurand -lnvrtc -lcuda

#include <stdlib.h>
#include <stdint.h>
#include <cuda.h>
#include <cuda_runtime.h>
#include <cublas_v2.h>
#include <curand.h>
#include <nvrtc.h>

static const char *cu_error_string(CUresult r) {
  const char *s = NULL;
  if (cuGetErrorString(r, &s) != CUDA_SUCCESS || s == NULL) return "unknown driver error";
  return s;
}

// Column-major batched SGEMM: C = A·B with per-sample strides; a zero
// stride reuses one operand for every sample.
static cublasStatus_t sgemm_batched(
    cublasHandle_t h, int m, int n, int k,
    const float *a, long long sa, const float *b, long long sb,
    float *c, long long sc, int batch) {
  const float alpha = 1.f, beta = 0.f;
  return cublasSgemmStridedBatched(
      h, CUBLAS_OP_N, CUBLAS_OP_N, m, n, k,
      &alpha, a, m, sa, b, k, sb, &beta, c, m, sc, batch);
}

static CUresult launch(
    CUfunction f, unsigned gx, unsigned gy, unsigned gz,
    unsigned bx, unsigned by, void **args) {
  return cuLaunchKernel(f, gx, gy, gz, bx, by, 1, 0, 0, args, NULL);
}

static nvrtcResult compile_program(
    nvrtcProgram *prog, const char *src, const char **opts, int nopts, char **log) {
  nvrtcResult r = nvrtcCreateProgram(prog, src, "primitiv_kernels.cu", 0, NULL, NULL);
  if (r != NVRTC_SUCCESS) return r;
  r = nvrtcCompileProgram(*prog, nopts, opts);
  if (r != NVRTC_SUCCESS) {
    size_t n = 0;
    nvrtcGetProgramLogSize(*prog, &n);
    *log = (char *)malloc(n + 1);
    nvrtcGetProgramLog(*prog, *log);
    (*log)[n] = 0;
  }
  return r;
}
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/menphim/primitiv/internal/backend/blocks"
	"github.com/menphim/primitiv/internal/backend/seed"
	"github.com/menphim/primitiv/internal/tensor"
)

// Verify that Device implements tensor.Device.
var _ tensor.Device = (*Device)(nil)

// devPtr is the storage handle of one CUDA tensor.
type devPtr uintptr

func (p devPtr) ptr() unsafe.Pointer { return unsafe.Pointer(uintptr(p)) }

// Device executes kernels on one NVIDIA GPU.
type Device struct {
	id       int
	seed     uint64
	props    Props
	geom     Geometry
	cublas   C.cublasHandle_t
	curand   C.curandGenerator_t
	module   C.CUmodule
	kernels  map[string]C.CUfunction
	blocks   *blocks.Registry[devPtr]
	teardown teardown
	closed   bool
}

func cudaErr(r C.cudaError_t, what string) error {
	if r == C.cudaSuccess {
		return nil
	}
	return errors.Errorf("cuda: %s: %s", what, C.GoString(C.cudaGetErrorString(r)))
}

func cuErr(r C.CUresult, what string) error {
	if r == C.CUDA_SUCCESS {
		return nil
	}
	return errors.Errorf("cuda: %s: %s", what, C.GoString(C.cu_error_string(r)))
}

func cublasErr(s C.cublasStatus_t, what string) error {
	if s == C.CUBLAS_STATUS_SUCCESS {
		return nil
	}
	return errors.Errorf("cuda: %s: cublas status %d", what, int(s))
}

func curandErr(s C.curandStatus_t, what string) error {
	if s == C.CURAND_STATUS_SUCCESS {
		return nil
	}
	return errors.Errorf("cuda: %s: curand status %d", what, int(s))
}

// must turns a library failure inside a kernel call into a fatal error.
func must(err error) {
	if err != nil {
		tensor.Fatalf("%v", err)
	}
}

// DeviceCount returns the number of visible GPUs.
func DeviceCount() (int, error) {
	var n C.int
	if err := cudaErr(C.cudaGetDeviceCount(&n), "counting devices"); err != nil {
		return 0, errors.Wrap(ErrNotAvailable, err.Error())
	}
	return int(n), nil
}

// New initializes GPU cfg.DeviceID: properties, cuBLAS, cuRAND and the
// kernel module, in that order. A failure releases what was acquired.
func New(cfg Config) (*Device, error) {
	n, err := DeviceCount()
	if err != nil {
		return nil, err
	}
	if cfg.DeviceID < 0 || cfg.DeviceID >= n {
		return nil, errors.Wrapf(ErrNotAvailable, "cuda: device %d requested, %d present", cfg.DeviceID, n)
	}
	s, err := seed.Resolve(cfg.Seed)
	if err != nil {
		return nil, err
	}

	d := &Device{
		id:      cfg.DeviceID,
		seed:    s,
		kernels: make(map[string]C.CUfunction),
		blocks:  blocks.New[devPtr](),
	}
	if err := d.init(); err != nil {
		if uerr := d.teardown.unwind(); uerr != nil {
			klog.ErrorS(uerr, "cuda: unwinding failed initialization")
		}
		return nil, err
	}
	klog.V(1).InfoS("cuda device initialized",
		"device", d.Name(), "gpu", d.props.Name, "seed", d.seed,
		"dim1x", d.geom.Dim1X, "dim2", fmt.Sprintf("%dx%d", d.geom.Dim2X, d.geom.Dim2Y))
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

func (d *Device) init() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := cudaErr(C.cudaSetDevice(C.int(d.id)), "selecting device"); err != nil {
		return err
	}
	// Creates the primary context and makes it current for the driver API.
	if err := cudaErr(C.cudaFree(nil), "creating context"); err != nil {
		return err
	}

	var prop C.struct_cudaDeviceProp
	if err := cudaErr(C.cudaGetDeviceProperties(&prop, C.int(d.id)), "reading properties"); err != nil {
		return err
	}
	d.props = Props{
		Name:               C.GoString(&prop.name[0]),
		Major:              int(prop.major),
		Minor:              int(prop.minor),
		TotalGlobalMem:     uint64(prop.totalGlobalMem),
		MultiProcessors:    int(prop.multiProcessorCount),
		MaxThreadsPerBlock: int(prop.maxThreadsPerBlock),
	}
	for i := 0; i < 3; i++ {
		d.props.MaxThreadsDim[i] = int(prop.maxThreadsDim[i])
		d.props.MaxGridSize[i] = int(prop.maxGridSize[i])
	}
	geom, err := ComputeGeometry(d.props)
	if err != nil {
		return err
	}
	d.geom = geom

	if err := cublasErr(C.cublasCreate(&d.cublas), "creating cuBLAS handle"); err != nil {
		return err
	}
	d.teardown.push("cublas", func() error {
		return cublasErr(C.cublasDestroy(d.cublas), "destroying cuBLAS handle")
	})

	if err := curandErr(C.curandCreateGenerator(&d.curand, C.CURAND_RNG_PSEUDO_DEFAULT), "creating cuRAND generator"); err != nil {
		return err
	}
	d.teardown.push("curand", func() error {
		return curandErr(C.curandDestroyGenerator(d.curand), "destroying cuRAND generator")
	})
	if err := curandErr(C.curandSetPseudoRandomGeneratorSeed(d.curand, C.ulonglong(d.seed)), "seeding cuRAND"); err != nil {
		return err
	}

	if err := d.loadModule(); err != nil {
		return err
	}
	d.teardown.push("module", func() error {
		return cuErr(C.cuModuleUnload(d.module), "unloading kernels")
	})
	return nil
}

func (d *Device) loadModule() error {
	src := C.CString(kernelSource)
	defer C.free(unsafe.Pointer(src))
	opts := compileOptions(d.props.Major, d.props.Minor)
	copts := (**C.char)(C.calloc(C.size_t(len(opts)), C.size_t(unsafe.Sizeof(uintptr(0)))))
	defer C.free(unsafe.Pointer(copts))
	for i, o := range opts {
		s := C.CString(o)
		defer C.free(unsafe.Pointer(s))
		*(**C.char)(unsafe.Add(unsafe.Pointer(copts), int(unsafe.Sizeof(uintptr(0)))*i)) = s
	}

	var prog C.nvrtcProgram
	var log *C.char
	r := C.compile_program(&prog, src, copts, C.int(len(opts)), &log)
	if log != nil {
		defer C.free(unsafe.Pointer(log))
	}
	if prog != nil {
		defer C.nvrtcDestroyProgram(&prog)
	}
	if r != C.NVRTC_SUCCESS {
		msg := C.GoString(C.nvrtcGetErrorString(r))
		if log != nil {
			msg += "\n" + C.GoString(log)
		}
		return errors.Errorf("cuda: compiling kernels: %s", msg)
	}

	var size C.size_t
	if r := C.nvrtcGetPTXSize(prog, &size); r != C.NVRTC_SUCCESS {
		return errors.Errorf("cuda: reading PTX size: %s", C.GoString(C.nvrtcGetErrorString(r)))
	}
	ptx := (*C.char)(C.malloc(size))
	defer C.free(unsafe.Pointer(ptx))
	if r := C.nvrtcGetPTX(prog, ptx); r != C.NVRTC_SUCCESS {
		return errors.Errorf("cuda: reading PTX: %s", C.GoString(C.nvrtcGetErrorString(r)))
	}

	if err := cuErr(C.cuModuleLoadData(&d.module, unsafe.Pointer(ptx)), "loading kernels"); err != nil {
		return err
	}
	for _, name := range kernelNames {
		cname := C.CString(name)
		var f C.CUfunction
		r := C.cuModuleGetFunction(&f, d.module, cname)
		C.free(unsafe.Pointer(cname))
		if err := cuErr(r, "resolving kernel "+name); err != nil {
			C.cuModuleUnload(d.module)
			return err
		}
		d.kernels[name] = f
	}
	return nil
}

// enter pins the calling goroutine to its OS thread and selects this GPU.
// The returned function undoes the pinning.
func (d *Device) enter() func() {
	if d.closed {
		tensor.Fatalf("cuda: %s used after Close", d.Name())
	}
	runtime.LockOSThread()
	must(cudaErr(C.cudaSetDevice(C.int(d.id)), "selecting device"))
	return runtime.UnlockOSThread
}

// Name returns "CUDA:<id>".
func (d *Device) Name() string { return fmt.Sprintf("CUDA:%d", d.id) }

// Type returns tensor.CUDA.
func (d *Device) Type() tensor.DeviceType { return tensor.CUDA }

// Props returns the device capabilities read at initialization.
func (d *Device) Props() Props { return d.props }

// Geometry returns the cached launch geometry.
func (d *Device) Geometry() Geometry { return d.geom }

// Seed returns the cuRAND seed.
func (d *Device) Seed() uint64 { return d.seed }

// Stats returns block usage statistics.
func (d *Device) Stats() blocks.Stats { return d.blocks.Stats() }

func (d *Device) alloc(n int) devPtr {
	if !fitsIndex(n) {
		tensor.Fatalf("cuda: %d elements exceed the kernel index range", n)
	}
	var p unsafe.Pointer
	must(cudaErr(C.cudaMalloc(&p, C.size_t(4*n)), fmt.Sprintf("allocating %d bytes", 4*n)))
	h := devPtr(uintptr(p))
	if err := d.blocks.Add(h, uint64(4*n)); err != nil {
		tensor.Fatalf("cuda: %v", err)
	}
	return h
}

func (d *Device) free(h devPtr) {
	if _, err := d.blocks.Remove(h); err != nil {
		tensor.Fatalf("cuda: freeing block: %v", err)
	}
	must(cudaErr(C.cudaFree(h.ptr()), "freeing block"))
}

// NewTensor allocates device storage for shape.
func (d *Device) NewTensor(shape tensor.Shape) *tensor.Tensor {
	defer d.enter()()
	return tensor.NewTensor(shape, d, d.alloc(shape.Size()))
}

// Free releases a block.
func (d *Device) Free(handle any) {
	h, ok := handle.(devPtr)
	if !ok {
		tensor.Fatalf("cuda: foreign handle %T", handle)
	}
	defer d.enter()()
	d.free(h)
}

func (d *Device) ptr(x *tensor.Tensor) devPtr {
	if x.Device() != tensor.Device(d) {
		tensor.Fatalf("cuda: tensor on %s used with %s", x.Device().Name(), d.Name())
	}
	h, ok := x.Handle().(devPtr)
	if !ok {
		tensor.Fatalf("cuda: tensor handle %T is not a device pointer", x.Handle())
	}
	return h
}

// args packs kernel parameters into C memory. Values are devPtr, uint32,
// int or float32.
type args struct {
	vals unsafe.Pointer
	argv unsafe.Pointer
}

func packArgs(params ...any) args {
	n := len(params)
	a := args{
		vals: C.calloc(C.size_t(n), 8),
		argv: C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(uintptr(0)))),
	}
	for i, p := range params {
		slot := unsafe.Add(a.vals, 8*i)
		switch v := p.(type) {
		case devPtr:
			*(*C.CUdeviceptr)(slot) = C.CUdeviceptr(v)
		case uint32:
			*(*C.uint)(slot) = C.uint(v)
		case int:
			if !fitsIndex(v) {
				C.free(a.vals)
				C.free(a.argv)
				tensor.Fatalf("cuda: kernel argument %d out of range", v)
			}
			*(*C.uint)(slot) = C.uint(v)
		case float32:
			*(*C.float)(slot) = C.float(v)
		default:
			C.free(a.vals)
			C.free(a.argv)
			tensor.Fatalf("cuda: unsupported kernel argument %T", p)
		}
		*(*unsafe.Pointer)(unsafe.Add(a.argv, int(unsafe.Sizeof(uintptr(0)))*i)) = slot
	}
	return a
}

func (a args) free() {
	C.free(a.vals)
	C.free(a.argv)
}

func (d *Device) launch(name string, grid [3]int, block [2]int, params ...any) {
	f, ok := d.kernels[name]
	if !ok {
		tensor.Fatalf("cuda: kernel %s not loaded", name)
	}
	a := packArgs(params...)
	defer a.free()
	must(cuErr(C.launch(f,
		C.uint(grid[0]), C.uint(grid[1]), C.uint(grid[2]),
		C.uint(block[0]), C.uint(block[1]),
		(*unsafe.Pointer)(a.argv)), "launching "+name))
}

// launch1 runs a grid-stride 1-D kernel over n elements.
func (d *Device) launch1(name string, n int, params ...any) {
	if n == 0 {
		return
	}
	d.launch(name, [3]int{d.geom.Blocks1(n), 1, 1}, [2]int{d.geom.Dim1X, 1}, params...)
}

// ToHost copies x to host memory. The blocking copy waits for every kernel
// queued before it.
func (d *Device) ToHost(x *tensor.Tensor) []float32 {
	defer d.enter()()
	out := make([]float32, x.Shape().Size())
	must(cudaErr(C.cudaMemcpy(unsafe.Pointer(&out[0]), d.ptr(x).ptr(), C.size_t(4*len(out)), C.cudaMemcpyDeviceToHost), "copying to host"))
	return out
}

// CopyFrom copies a tensor from any device onto this GPU.
func (d *Device) CopyFrom(x *tensor.Tensor) *tensor.Tensor {
	if x.Device() == tensor.Device(d) {
		return d.Duplicate(x)
	}
	values := x.Device().ToHost(x)
	y := d.NewTensor(x.Shape())
	d.ResetValues(y, values)
	return y
}

// ResetConst fills x with k.
func (d *Device) ResetConst(x *tensor.Tensor, k float32) {
	defer d.enter()()
	n := x.Shape().Size()
	d.launch1(kSetConst, n, d.ptr(x), k, n)
}

// ResetValues uploads values into x.
func (d *Device) ResetValues(x *tensor.Tensor, values []float32) {
	if len(values) != x.Shape().Size() {
		tensor.Fatalf("cuda: reset with %d values for %s", len(values), x.Shape())
	}
	defer d.enter()()
	must(cudaErr(C.cudaMemcpy(d.ptr(x).ptr(), unsafe.Pointer(&values[0]), C.size_t(4*len(values)), C.cudaMemcpyHostToDevice), "copying to device"))
}

// Duplicate copies x.
func (d *Device) Duplicate(x *tensor.Tensor) *tensor.Tensor {
	y := d.NewTensor(x.Shape())
	defer d.enter()()
	must(cudaErr(C.cudaMemcpy(d.ptr(y).ptr(), d.ptr(x).ptr(), C.size_t(4*x.Shape().Size()), C.cudaMemcpyDeviceToDevice), "duplicating"))
	return y
}

// uniform fills y with cuRAND draws from (0, 1].
func (d *Device) uniform(y *tensor.Tensor) {
	must(curandErr(C.curandGenerateUniform(d.curand, (*C.float)(d.ptr(y).ptr()), C.size_t(y.Shape().Size())), "generating uniform values"))
}

// RandomBernoulli draws 0/1 values that are 1 with probability p.
func (d *Device) RandomBernoulli(shape tensor.Shape, p float32) *tensor.Tensor {
	y := d.NewTensor(shape)
	defer d.enter()()
	d.uniform(y)
	d.launch1(kRandBernoulli, shape.Size(), d.ptr(y), p, shape.Size())
	return y
}

// RandomUniform draws from (lower, upper].
func (d *Device) RandomUniform(shape tensor.Shape, lower, upper float32) *tensor.Tensor {
	y := d.NewTensor(shape)
	defer d.enter()()
	d.uniform(y)
	d.launch1(kRandAffine, shape.Size(), d.ptr(y), lower, upper, shape.Size())
	return y
}

// gaussian fills y using gen, which requires an even count; odd sizes go
// through a temporary block one element longer.
func (d *Device) gaussian(y *tensor.Tensor, logNormal bool, mean, sd float32) {
	defer d.enter()()
	n := y.Shape().Size()
	dst := d.ptr(y)
	tmp := dst
	if n%2 == 1 {
		tmp = d.alloc(n + 1)
		defer d.free(tmp)
	}
	m := C.size_t(n + n%2)
	if logNormal {
		must(curandErr(C.curandGenerateLogNormal(d.curand, (*C.float)(tmp.ptr()), m, C.float(mean), C.float(sd)), "generating log-normal values"))
	} else {
		must(curandErr(C.curandGenerateNormal(d.curand, (*C.float)(tmp.ptr()), m, C.float(mean), C.float(sd)), "generating normal values"))
	}
	if tmp != dst {
		must(cudaErr(C.cudaMemcpy(dst.ptr(), tmp.ptr(), C.size_t(4*n), C.cudaMemcpyDeviceToDevice), "copying random values"))
	}
}

// RandomNormal draws from N(mean, sd²).
func (d *Device) RandomNormal(shape tensor.Shape, mean, sd float32) *tensor.Tensor {
	y := d.NewTensor(shape)
	d.gaussian(y, false, mean, sd)
	return y
}

// RandomLogNormal draws exp(v) with v from N(mean, sd²).
func (d *Device) RandomLogNormal(shape tensor.Shape, mean, sd float32) *tensor.Tensor {
	y := d.NewTensor(shape)
	d.gaussian(y, true, mean, sd)
	return y
}

// Slice copies [lower, upper) along axis.
func (d *Device) Slice(x *tensor.Tensor, axis, lower, upper int) *tensor.Tensor {
	shape, err := tensor.SliceShape(x.Shape(), axis, lower, upper)
	if err != nil {
		tensor.Fatalf("cuda: %v", err)
	}
	y := d.NewTensor(shape)
	defer d.enter()()
	base := x.Shape().LowerVolume(axis)
	d.launch1(kSlice, shape.Size(), d.ptr(x), base*lower, base*(upper-lower), base*x.Shape().Dim(axis), shape.Size(), d.ptr(y))
	return y
}

// Concat copies each input into its band of the result along axis.
func (d *Device) Concat(xs []*tensor.Tensor, axis int, shape tensor.Shape) *tensor.Tensor {
	y := d.NewTensor(shape)
	defer d.enter()()
	base := shape.LowerVolume(axis)
	skip := base * shape.Dim(axis)
	offset := 0
	for _, x := range xs {
		span := base * x.Shape().Dim(axis)
		d.launch1(kConcat, x.Shape().Size(), d.ptr(x), span, skip, offset, x.Shape().Size(), d.ptr(y))
		offset += span
	}
	return y
}

// Pick gathers ids along axis.
func (d *Device) Pick(x *tensor.Tensor, ids []int, axis int) *tensor.Tensor {
	shape, err := tensor.PickShape(x.Shape(), ids, axis)
	if err != nil {
		tensor.Fatalf("cuda: %v", err)
	}
	y := d.NewTensor(shape)
	defer d.enter()()

	host := make([]uint32, len(ids))
	for i, id := range ids {
		host[i] = uint32(id)
	}
	idBuf := d.alloc(len(ids))
	defer d.free(idBuf)
	must(cudaErr(C.cudaMemcpy(idBuf.ptr(), unsafe.Pointer(&host[0]), C.size_t(4*len(host)), C.cudaMemcpyHostToDevice), "uploading ids"))

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
	d.launch1(kPick, shape.Size(), d.ptr(x), idBuf, wx, idsSkip,
		base, base*xs.Dim(axis), shape.SizePerSample(), shape.Size(), d.ptr(y))
	return y
}

// Broadcast repeats x size times along a singleton axis.
func (d *Device) Broadcast(x *tensor.Tensor, axis, size int) *tensor.Tensor {
	shape, err := tensor.BroadcastShape(x.Shape(), axis, size)
	if err != nil {
		tensor.Fatalf("cuda: %v", err)
	}
	y := d.NewTensor(shape)
	defer d.enter()()
	skip1 := x.Shape().LowerVolume(axis)
	d.launch1(kBroadcast, shape.Size(), d.ptr(x), skip1, skip1*size, shape.Size(), d.ptr(y))
	return y
}

func arithID(op tensor.ArithOp, left bool) uint32 {
	if left {
		return uint32(op) + arithLeft
	}
	return uint32(op)
}

// ConstOp computes x op k, or k op x when left.
func (d *Device) ConstOp(op tensor.ArithOp, x *tensor.Tensor, k float32, left bool) *tensor.Tensor {
	y := d.NewTensor(x.Shape())
	defer d.enter()()
	n := x.Shape().Size()
	d.launch1(kConst, n, arithID(op, left), d.ptr(x), k, d.ptr(y), n)
	return y
}

// ScalarOp computes x op s, or s op x when left. The scalar is read on the
// device.
func (d *Device) ScalarOp(op tensor.ArithOp, x, s *tensor.Tensor, left bool) *tensor.Tensor {
	y := d.NewTensor(x.Shape())
	defer d.enter()()
	n := x.Shape().Size()
	d.launch1(kScalar, n, arithID(op, left), d.ptr(x), d.ptr(s), d.ptr(y), n)
	return y
}

func batchFlag(s tensor.Shape) uint32 {
	if s.HasBatch() {
		return 1
	}
	return 0
}

// ElementwiseOp computes a op b with batch-1 operands repeated.
func (d *Device) ElementwiseOp(op tensor.ArithOp, a, b *tensor.Tensor) *tensor.Tensor {
	shape, err := tensor.ElementwiseShape(a.Shape(), b.Shape())
	if err != nil {
		tensor.Fatalf("cuda: %v", err)
	}
	y := d.NewTensor(shape)
	defer d.enter()()
	d.launch1(kBinary, shape.Size(), uint32(op), d.ptr(a), d.ptr(b), d.ptr(y),
		shape.SizePerSample(), shape.Size(), batchFlag(a.Shape()), batchFlag(b.Shape()))
	return y
}

// Pointwise applies op to every element.
func (d *Device) Pointwise(op tensor.PointwiseOp, x *tensor.Tensor, a float32) *tensor.Tensor {
	y := d.NewTensor(x.Shape())
	defer d.enter()()
	n := x.Shape().Size()
	d.launch1(kUnary, n, uint32(op), d.ptr(x), a, d.ptr(y), n)
	return y
}

// Transpose swaps the two leading axes with 2-D blocks, one grid layer per
// sample.
func (d *Device) Transpose(x *tensor.Tensor) *tensor.Tensor {
	shape, err := tensor.TransposeShape(x.Shape())
	if err != nil {
		tensor.Fatalf("cuda: %v", err)
	}
	if shape.Batch() > d.geom.MaxGridZ {
		tensor.Fatalf("cuda: transpose batch %d exceeds grid limit %d", shape.Batch(), d.geom.MaxGridZ)
	}
	y := d.NewTensor(shape)
	defer d.enter()()
	rows, cols := x.Shape().Dim(0), x.Shape().Dim(1)
	gx, gy := d.geom.Blocks2(rows, cols)
	d.launch(kTranspose, [3]int{gx, gy, shape.Batch()}, [2]int{d.geom.Dim2X, d.geom.Dim2Y},
		d.ptr(x), rows, cols, d.ptr(y))
	return y
}

// MatMul computes the batched product a·b with cuBLAS. Column-major
// storage matches cuBLAS directly; a batch-1 operand uses stride 0.
func (d *Device) MatMul(a, b *tensor.Tensor) *tensor.Tensor {
	shape, err := tensor.MatMulShape(a.Shape(), b.Shape())
	if err != nil {
		tensor.Fatalf("cuda: %v", err)
	}
	y := d.NewTensor(shape)
	defer d.enter()()
	m, k, n := a.Shape().Dim(0), a.Shape().Dim(1), b.Shape().Dim(1)
	sa, sb := 0, 0
	if a.Shape().HasBatch() {
		sa = m * k
	}
	if b.Shape().HasBatch() {
		sb = k * n
	}
	must(cublasErr(C.sgemm_batched(d.cublas, C.int(m), C.int(n), C.int(k),
		(*C.float)(d.ptr(a).ptr()), C.longlong(sa),
		(*C.float)(d.ptr(b).ptr()), C.longlong(sb),
		(*C.float)(d.ptr(y).ptr()), C.longlong(m*n), C.int(shape.Batch())), "sgemm"))
	return y
}

func (d *Device) reduce(name string, x *tensor.Tensor, axis int) *tensor.Tensor {
	shape, err := tensor.ReduceShape(x.Shape(), axis)
	if err != nil {
		tensor.Fatalf("cuda: %v", err)
	}
	y := d.NewTensor(shape)
	defer d.enter()()
	d.launch1(name, shape.Size(), d.ptr(x), x.Shape().LowerVolume(axis), x.Shape().Dim(axis), shape.Size(), d.ptr(y))
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
	defer d.enter()()
	n := x.Shape().SizePerSample()
	d.launch1(kBatchSum, n, d.ptr(x), n, x.Shape().Batch(), d.ptr(y))
	return y
}

// AddGradient adds b into a in place.
func (d *Device) AddGradient(a, b *tensor.Tensor) {
	as, bs := a.Shape(), b.Shape()
	if !as.HasSameDims(bs) || !as.HasCompatibleBatch(bs) {
		tensor.Fatalf("cuda: add gradient: shape mismatch: %s and %s", as, bs)
	}
	defer d.enter()()
	n := as.SizePerSample()
	if as.Batch() == 1 && bs.HasBatch() {
		d.launch1(kAddGradReduce, n, d.ptr(a), d.ptr(b), n, bs.Batch())
		return
	}
	d.launch1(kAddGrad, as.Size(), d.ptr(a), d.ptr(b), n, as.Size(), batchFlag(bs))
}

// Synchronize waits for every queued kernel.
func (d *Device) Synchronize() {
	defer d.enter()()
	must(cudaErr(C.cudaDeviceSynchronize(), "synchronizing"))
}

// Close frees the remaining blocks newest first, then releases the kernel
// module, cuRAND and cuBLAS in the reverse order of acquisition.
// Closing twice is a no-op.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	d.closed = true

	var first error
	if err := cudaErr(C.cudaSetDevice(C.int(d.id)), "selecting device"); err != nil {
		first = err
	}
	if n := d.blocks.Len(); n > 0 {
		klog.Warningf("cuda: %d blocks still allocated at close of %s", n, d.Name())
	}
	d.blocks.Drain(func(h devPtr, _ uint64) {
		if err := cudaErr(C.cudaFree(h.ptr()), "freeing block"); err != nil && first == nil {
			first = err
		}
	})
	if err := d.teardown.unwind(); err != nil && first == nil {
		first = err
	}
	klog.V(1).InfoS("cuda device closed", "device", d.Name())
	return first
}
