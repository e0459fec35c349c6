package cuda

import "github.com/pkg/errors"

// Props holds the device capabilities the launch geometry depends on.
type Props struct {
	Name               string
	Major, Minor       int // Compute capability.
	TotalGlobalMem     uint64
	MultiProcessors    int
	MaxThreadsPerBlock int
	MaxThreadsDim      [3]int
	MaxGridSize        [3]int
}

// Geometry is the launch configuration computed once per device.
type Geometry struct {
	Dim1X    int // Threads per block of 1-D kernels.
	Dim2X    int // Block width of 2-D kernels.
	Dim2Y    int // Block height of 2-D kernels.
	MaxGridX int // Upper bound on blocks along x.
	MaxGridY int
	MaxGridZ int
}

// maxDim1X caps 1-D blocks regardless of hardware support.
const maxDim1X = 1024

func floorPow2(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}

// ComputeGeometry derives the launch geometry from device capabilities.
// Dim1X is the largest power of two the hardware accepts up to 1024; the
// 2-D block splits Dim1X threads into a near-square Dim2X × Dim2Y with
// Dim2X ≥ Dim2Y.
func ComputeGeometry(p Props) (Geometry, error) {
	if p.MaxThreadsPerBlock < 1 || p.MaxThreadsDim[0] < 1 || p.MaxThreadsDim[1] < 1 {
		return Geometry{}, errors.Errorf("cuda: invalid thread limits in device properties: %+v", p)
	}
	if p.MaxGridSize[0] < 1 || p.MaxGridSize[1] < 1 || p.MaxGridSize[2] < 1 {
		return Geometry{}, errors.Errorf("cuda: invalid grid limits in device properties: %+v", p)
	}

	g := Geometry{
		Dim1X:    floorPow2(min(maxDim1X, p.MaxThreadsPerBlock, p.MaxThreadsDim[0])),
		MaxGridX: p.MaxGridSize[0],
		MaxGridY: p.MaxGridSize[1],
		MaxGridZ: p.MaxGridSize[2],
	}

	x, y := 1, g.Dim1X
	for x < y {
		x <<= 1
		y >>= 1
	}
	g.Dim2Y = min(y, floorPow2(p.MaxThreadsDim[1]))
	g.Dim2X = min(x, floorPow2(p.MaxThreadsDim[0]))
	return g, nil
}

// Blocks1 returns the grid width for a grid-stride 1-D kernel over n elements.
func (g Geometry) Blocks1(n int) int {
	return max(1, min((n+g.Dim1X-1)/g.Dim1X, g.MaxGridX))
}

// Blocks2 returns the grid extents of a 2-D kernel covering rows × cols.
func (g Geometry) Blocks2(rows, cols int) (int, int) {
	return (rows + g.Dim2X - 1) / g.Dim2X, (cols + g.Dim2Y - 1) / g.Dim2Y
}
