package webgpu

import (
	"fmt"
	"strings"
)

// workgroupSize is the number of invocations per workgroup.
const workgroupSize = 256

// Op ids follow tensor.ArithOp and tensor.PointwiseOp. The reversed
// arithmetic forms (k op x) add arithLeft.
const arithLeft = 4

// prelude is shared by every shader: the Params uniform at binding 0 and
// the op tables.
const prelude = `
struct Params {
  u0: u32, u1: u32, u2: u32, u3: u32,
  u4: u32, u5: u32, u6: u32, u7: u32,
  f0: f32, f1: f32, f2: f32, f3: f32,
}
@group(0) @binding(0) var<uniform> params: Params;

fn arith(op: u32, a: f32, b: f32) -> f32 {
  var r = 0.0;
  switch op {
    case 0u: { r = a + b; }
    case 1u: { r = a - b; }
    case 2u: { r = a * b; }
    case 3u: { r = a / b; }
    case 4u: { r = b + a; }
    case 5u: { r = b - a; }
    case 6u: { r = b * a; }
    case 7u: { r = b / a; }
    default: {}
  }
  return r;
}

fn unary_fn(op: u32, x: f32, a: f32) -> f32 {
  var r = 0.0;
  switch op {
    case 0u: { r = -x; }
    case 1u: { r = sqrt(x); }
    case 2u: { r = exp(x); }
    case 3u: { r = log(x); }
    case 4u: { r = tanh(x); }
    case 5u: { r = 0.5 + 0.5 * tanh(0.5 * x); }
    case 6u: { r = max(x, 0.0) + log(1.0 + exp(-abs(x))); }
    case 7u: { r = sin(x); }
    case 8u: { r = cos(x); }
    case 9u: { r = tan(x); }
    case 10u: { r = select(0.0, 1.0, x > 0.0); }
    case 11u: { r = select(a * x, x, x > 0.0); }
    case 12u: { r = select(a * (exp(x) - 1.0), x, x > 0.0); }
    default: {}
  }
  return r;
}
`

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
	kMatMul        = "matmul_fw"
	kSum           = "sum_fw"
	kLogSumExp     = "logsumexp_fw"
	kBatchSum      = "batch_sum_fw"
	kAddGrad       = "add_grad"
	kAddGradReduce = "add_grad_reduce"
)

// binding declares one storage buffer.
type binding struct {
	name  string
	elem  string // WGSL element type.
	write bool
}

func in(name string) binding    { return binding{name: name, elem: "f32"} }
func inU32(name string) binding { return binding{name: name, elem: "u32"} }
func out(name string) binding   { return binding{name: name, elem: "f32", write: true} }

// kernel is a grid-stride loop over `total` invocations with index i.
type kernel struct {
	bindings []binding
	total    string
	body     string
}

// source renders the full WGSL program; storage buffers follow the uniform
// at bindings 1, 2, ...
func (k kernel) source() string {
	var b strings.Builder
	b.WriteString(prelude)
	for i, bd := range k.bindings {
		access := "read"
		if bd.write {
			access = "read_write"
		}
		fmt.Fprintf(&b, "@group(0) @binding(%d) var<storage, %s> %s: array<%s>;\n", i+1, access, bd.name, bd.elem)
	}
	fmt.Fprintf(&b, `
@compute @workgroup_size(%d)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
  let stride = nwg.x * %du;
  for (var i = gid.x; i < %s; i += stride) {
    %s
  }
}
`, workgroupSize, workgroupSize, k.total, k.body)
	return b.String()
}

var kernels = map[string]kernel{
	kSetConst: {[]binding{out("y")}, "params.u0",
		"y[i] = params.f0;"},
	kUnary: {[]binding{in("x"), out("y")}, "params.u1",
		"y[i] = unary_fn(params.u0, x[i], params.f0);"},
	kConst: {[]binding{in("x"), out("y")}, "params.u1",
		"y[i] = arith(params.u0, x[i], params.f0);"},
	kScalar: {[]binding{in("x"), in("s"), out("y")}, "params.u1",
		"y[i] = arith(params.u0, x[i], s[0]);"},
	kBinary: {[]binding{in("a"), in("b"), out("y")}, "params.u2", `
    let shift = i / params.u1 * params.u1;
    let j = i - shift;
    y[i] = arith(params.u0, a[j + params.u3 * shift], b[j + params.u4 * shift]);`},
	kSlice: {[]binding{in("x"), out("y")}, "params.u3",
		"y[i] = x[(i / params.u1) * params.u2 + i % params.u1 + params.u0];"},
	kConcat: {[]binding{in("x"), out("y")}, "params.u3",
		"y[(i / params.u0) * params.u1 + i % params.u0 + params.u2] = x[i];"},
	kPick: {[]binding{in("x"), inU32("ids"), out("y")}, "params.u5", `
    let n = i / params.u4;
    let j = i % params.u4;
    y[i] = x[n * params.u0 + ids[n * params.u1] * params.u2 + (j / params.u2) * params.u3 + j % params.u2];`},
	kBroadcast: {[]binding{in("x"), out("y")}, "params.u2",
		"y[i] = x[i % params.u0 + (i / params.u1) * params.u0];"},
	kTranspose: {[]binding{in("x"), out("y")}, "params.u2", `
    let area = params.u0 * params.u1;
    let q = i % area;
    let c = q % params.u1;
    let r = q / params.u1;
    y[i] = x[(i - q) + r + c * params.u0];`},
	kMatMul: {[]binding{in("a"), in("b"), out("y")}, "params.u5", `
    let area = params.u0 * params.u2;
    let s = i / area;
    let q = i % area;
    let row = q % params.u0;
    let col = q / params.u0;
    let pa = s * params.u3 + row;
    let pb = s * params.u4 + col * params.u1;
    var acc = 0.0;
    for (var l = 0u; l < params.u1; l++) {
      acc += a[pa + l * params.u0] * b[pb + l];
    }
    y[i] = acc;`},
	kSum: {[]binding{in("x"), out("y")}, "params.u2", `
    let p = (i / params.u0) * params.u0 * params.u1 + i % params.u0;
    var acc = 0.0;
    for (var j = 0u; j < params.u1; j++) { acc += x[p + j * params.u0]; }
    y[i] = acc;`},
	kLogSumExp: {[]binding{in("x"), out("y")}, "params.u2", `
    let p = (i / params.u0) * params.u0 * params.u1 + i % params.u0;
    var m = x[p];
    for (var j = 1u; j < params.u1; j++) { m = max(m, x[p + j * params.u0]); }
    var acc = 0.0;
    for (var j = 0u; j < params.u1; j++) { acc += exp(x[p + j * params.u0] - m); }
    y[i] = m + log(acc);`},
	kBatchSum: {[]binding{in("x"), out("y")}, "params.u0", `
    var acc = 0.0;
    for (var n = 0u; n < params.u1; n++) { acc += x[i + n * params.u0]; }
    y[i] = acc;`},
	kAddGrad: {[]binding{out("a"), in("b")}, "params.u1", `
    a[i] += b[select(i % params.u0, i, params.u2 != 0u)];`},
	kAddGradReduce: {[]binding{out("a"), in("b")}, "params.u0", `
    var acc = 0.0;
    for (var n = 0u; n < params.u1; n++) { acc += b[i + n * params.u0]; }
    a[i] += acc;`},
}
