package webgpu

import (
	"encoding/binary"
	"math"
)

// paramsSize is the byte size of the Params uniform shared by every shader.
const paramsSize = 48

// params mirrors the WGSL Params struct: eight u32 slots then four f32.
type params struct {
	u [8]uint32
	f [4]float32
}

// uints builds params from unsigned slots u0, u1, ...
func uints(vs ...int) params {
	var p params
	for i, v := range vs {
		p.u[i] = uint32(v)
	}
	return p
}

// withFloat sets f0.
func (p params) withFloat(v float32) params {
	p.f[0] = v
	return p
}

func (p params) bytes() []byte {
	out := make([]byte, paramsSize)
	for i, v := range p.u {
		binary.LittleEndian.PutUint32(out[4*i:], v)
	}
	for i, v := range p.f {
		binary.LittleEndian.PutUint32(out[32+4*i:], math.Float32bits(v))
	}
	return out
}
