package cuda

import (
	"fmt"
	"math"
)

// maxElements bounds tensor sizes: kernels index with 32-bit unsigned ints.
const maxElements = math.MaxUint32

// fitsIndex reports whether n elements can be addressed by the kernels.
func fitsIndex(n int) bool { return n >= 0 && uint64(n) <= maxElements }

// compileOptions returns the NVRTC options for compute capability
// major.minor. Approximate math intrinsics stay disabled.
func compileOptions(major, minor int) []string {
	return []string{fmt.Sprintf("--gpu-architecture=compute_%d%d", major, minor)}
}

// Kernel names in kernelSource, loaded once per device.
const (
	kSetConst      = "set_const"
	kUnary         = "unary"
	kConst         = "const_op"
	kScalar        = "scalar_op"
	kBinary        = "binary_op"
	kSlice         = "slice_fw"
	kConcat        = "concat_fw"
	kPick          = "pick_fw"
	kBroadcast     = "broadcast_fw"
	kTranspose     = "transpose_fw"
	kSum           = "sum_fw"
	kLogSumExp     = "logsumexp_fw"
	kBatchSum      = "batch_sum_fw"
	kAddGrad       = "add_grad"
	kAddGradReduce = "add_grad_reduce"
	kRandBernoulli = "rand_bernoulli"
	kRandAffine    = "rand_affine"
)

var kernelNames = []string{
	kSetConst, kUnary, kConst, kScalar, kBinary,
	kSlice, kConcat, kPick, kBroadcast, kTranspose,
	kSum, kLogSumExp, kBatchSum, kAddGrad, kAddGradReduce,
	kRandBernoulli, kRandAffine,
}

// Op ids passed to the kernels follow tensor.ArithOp and tensor.PointwiseOp.
// The reversed arithmetic forms (k op x) add arithLeft.
const arithLeft = 4

// kernelSource is compiled with NVRTC. Every 1-D kernel is grid-stride so a
// grid capped at the device limit still covers any element count.
const kernelSource = `
#define GRID_STRIDE(i, n) \
  for (unsigned i = blockIdx.x * blockDim.x + threadIdx.x; i < (n); i += blockDim.x * gridDim.x)

__device__ float arith(unsigned op, float a, float b) {
  switch (op) {
    case 0: return a + b;
    case 1: return a - b;
    case 2: return a * b;
    case 3: return a / b;
    case 4: return b + a;
    case 5: return b - a;
    case 6: return b * a;
    case 7: return b / a;
  }
  return 0.f;
}

__device__ float unary_fn(unsigned op, float x, float a) {
  switch (op) {
    case 0: return -x;
    case 1: return sqrtf(x);
    case 2: return expf(x);
    case 3: return logf(x);
    case 4: return tanhf(x);
    case 5: return .5f + .5f * tanhf(.5f * x);
    case 6: return fmaxf(x, 0.f) + log1pf(expf(-fabsf(x)));
    case 7: return sinf(x);
    case 8: return cosf(x);
    case 9: return tanf(x);
    case 10: return (float)(x > 0.f);
    case 11: return x > 0.f ? x : a * x;
    case 12: return x > 0.f ? x : a * expm1f(x);
  }
  return 0.f;
}

extern "C" __global__ void set_const(float *py, float k, unsigned size) {
  GRID_STRIDE(i, size) py[i] = k;
}

extern "C" __global__ void unary(unsigned op, const float *px, float a, float *py, unsigned size) {
  GRID_STRIDE(i, size) py[i] = unary_fn(op, px[i], a);
}

extern "C" __global__ void const_op(unsigned op, const float *px, float k, float *py, unsigned size) {
  GRID_STRIDE(i, size) py[i] = arith(op, px[i], k);
}

extern "C" __global__ void scalar_op(unsigned op, const float *px, const float *pk, float *py, unsigned size) {
  const float k = *pk;
  GRID_STRIDE(i, size) py[i] = arith(op, px[i], k);
}

extern "C" __global__ void binary_op(
    unsigned op, const float *pa, const float *pb, float *py,
    unsigned size, unsigned total, unsigned mba, unsigned mbb) {
  GRID_STRIDE(i, total) {
    const unsigned shift = i / size * size;
    const unsigned j = i - shift;
    py[i] = arith(op, pa[j + mba * shift], pb[j + mbb * shift]);
  }
}

extern "C" __global__ void slice_fw(
    const float *px, unsigned shift, unsigned span, unsigned skip, unsigned total, float *py) {
  GRID_STRIDE(i, total) py[i] = px[(i / span) * skip + i % span + shift];
}

extern "C" __global__ void concat_fw(
    const float *px, unsigned span, unsigned skip, unsigned offset, unsigned total, float *py) {
  GRID_STRIDE(i, total) py[(i / span) * skip + i % span + offset] = px[i];
}

extern "C" __global__ void pick_fw(
    const float *px, const unsigned *ids, unsigned wx, unsigned ids_skip,
    unsigned base, unsigned skip, unsigned wy, unsigned total, float *py) {
  GRID_STRIDE(i, total) {
    const unsigned n = i / wy;
    const unsigned j = i % wy;
    py[i] = px[n * wx + ids[n * ids_skip] * base + (j / base) * skip + j % base];
  }
}

extern "C" __global__ void broadcast_fw(
    const float *px, unsigned skip1, unsigned skip2, unsigned total, float *py) {
  GRID_STRIDE(i, total) py[i] = px[i % skip1 + (i / skip2) * skip1];
}

extern "C" __global__ void transpose_fw(const float *px, unsigned rows, unsigned cols, float *py) {
  const unsigned i = blockIdx.x * blockDim.x + threadIdx.x;
  const unsigned j = blockIdx.y * blockDim.y + threadIdx.y;
  const unsigned ofs = blockIdx.z * rows * cols;
  if (i < rows && j < cols) py[ofs + j + i * cols] = px[ofs + i + j * rows];
}

extern "C" __global__ void sum_fw(const float *px, unsigned skip, unsigned n, unsigned total, float *py) {
  GRID_STRIDE(i, total) {
    const float *p = px + (i / skip) * skip * n + i % skip;
    float s = 0.f;
    for (unsigned j = 0; j < n; ++j) s += p[j * skip];
    py[i] = s;
  }
}

extern "C" __global__ void logsumexp_fw(const float *px, unsigned skip, unsigned n, unsigned total, float *py) {
  GRID_STRIDE(i, total) {
    const float *p = px + (i / skip) * skip * n + i % skip;
    float m = p[0];
    for (unsigned j = 1; j < n; ++j) m = fmaxf(m, p[j * skip]);
    float s = 0.f;
    for (unsigned j = 0; j < n; ++j) s += expf(p[j * skip] - m);
    py[i] = m + logf(s);
  }
}

extern "C" __global__ void batch_sum_fw(const float *px, unsigned size, unsigned batch, float *py) {
  GRID_STRIDE(i, size) {
    float s = 0.f;
    for (unsigned n = 0; n < batch; ++n) s += px[i + n * size];
    py[i] = s;
  }
}

extern "C" __global__ void add_grad(float *pa, const float *pb, unsigned size, unsigned total, unsigned mbb) {
  GRID_STRIDE(i, total) pa[i] += pb[mbb ? i : i % size];
}

extern "C" __global__ void add_grad_reduce(float *pa, const float *pb, unsigned size, unsigned batch) {
  GRID_STRIDE(i, size) {
    float s = 0.f;
    for (unsigned n = 0; n < batch; ++n) s += pb[i + n * size];
    pa[i] += s;
  }
}

extern "C" __global__ void rand_bernoulli(float *py, float p, unsigned size) {
  GRID_STRIDE(i, size) py[i] = (float)(py[i] <= p);
}

extern "C" __global__ void rand_affine(float *py, float lower, float upper, unsigned size) {
  GRID_STRIDE(i, size) py[i] = lower + (upper - lower) * py[i];
}
`
