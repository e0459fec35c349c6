package webgpu

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/menphim/primitiv/internal/tensor"
)

func TestKernelSources(t *testing.T) {
	for name, k := range kernels {
		src := k.source()
		assert.Contains(t, src, "fn main(", name)
		assert.Contains(t, src, "var<uniform> params: Params;", name)
		for i, b := range k.bindings {
			decl := "@binding(" + string(rune('1'+i)) + ") var<storage, "
			assert.Contains(t, src, decl, "%s: binding %d", name, i+1)
			assert.Contains(t, src, b.name+": array<"+b.elem+">", name)
		}
		assert.Equal(t, len(k.bindings), strings.Count(src, "var<storage"), name)
	}
	assert.Len(t, kernels, 16)
}

func TestOpTables(t *testing.T) {
	// arith and unary_fn switch on these values.
	assert.EqualValues(t, 3, tensor.OpDivide)
	assert.Contains(t, prelude, "case 7u: { r = b / a; }")
	assert.EqualValues(t, 12, tensor.OpELU)
	assert.Contains(t, prelude, "case 12u:")
}

func TestParamsLayout(t *testing.T) {
	p := uints(3, 5, 7).withFloat(1.5)
	b := p.bytes()
	assert.Len(t, b, paramsSize)
	assert.Zero(t, paramsSize%16)
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(b[0:]))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(b[8:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(b[28:]))
	assert.Equal(t, float32(1.5), math.Float32frombits(binary.LittleEndian.Uint32(b[32:])))
}

func TestLimitsWorkgroups(t *testing.T) {
	l := DefaultLimits()
	assert.Equal(t, 1, l.Workgroups(1))
	assert.Equal(t, 1, l.Workgroups(256))
	assert.Equal(t, 2, l.Workgroups(257))
	assert.Equal(t, 65535, l.Workgroups(1<<30))
}
