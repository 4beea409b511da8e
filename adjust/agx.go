package adjust

import (
	"math"
	"sync"

	"github.com/fovealab/fovea/geometry"
)

// AgX tone mapping renders in a working space built from inset and rotated
// Rec.2020 primaries. The two matrices below take the sRGB pipe into that
// rendering space and back; they depend only on fixed colorimetry, so they
// are computed once.

type xyPoint struct{ x, y float64 }

var (
	whiteD65 = xyPoint{0.3127, 0.3290}

	primariesSRGB = [3]xyPoint{
		{0.64, 0.33},
		{0.30, 0.60},
		{0.15, 0.06},
	}
	primariesRec2020 = [3]xyPoint{
		{0.708, 0.292},
		{0.170, 0.797},
		{0.131, 0.046},
	}

	agxInset    = [3]float64{0.29462451, 0.25861925, 0.14641371}
	agxRotation = [3]float64{0.03540329, -0.02108586, -0.06305724}
	agxOutset   = [3]float64{0.290776401758, 0.263155400753, 0.045810721815}
)

var agxOnce = sync.OnceValues(computeAgxMatrices)

// agxMatrices returns the pipe-to-rendering and rendering-to-pipe
// matrices in GPU column layout.
func agxMatrices() (GPUMat3, GPUMat3) {
	return agxOnce()
}

func computeAgxMatrices() (GPUMat3, GPUMat3) {
	pipeToXYZ := primariesToXYZ(primariesSRGB, whiteD65)
	baseToXYZ := primariesToXYZ(primariesRec2020, whiteD65)
	xyzToBase, _ := baseToXYZ.Inverse()
	pipeToBase := xyzToBase.Mul(pipeToXYZ)

	var insetPrimaries [3]xyPoint
	for i := range insetPrimaries {
		insetPrimaries[i] = rotateAndScalePrimary(
			primariesRec2020[i], whiteD65, 1.0-agxInset[i], agxRotation[i])
	}
	renderingToXYZ := primariesToXYZ(insetPrimaries, whiteD65)
	baseToRendering := xyzToBase.Mul(renderingToXYZ)

	// The outset leg uses the full outset ratio and no unrotation.
	var outsetPrimaries [3]xyPoint
	for i := range outsetPrimaries {
		outsetPrimaries[i] = rotateAndScalePrimary(
			primariesRec2020[i], whiteD65, 1.0-agxOutset[i], 0)
	}
	outsetToXYZ := primariesToXYZ(outsetPrimaries, whiteD65)
	renderingToBase, _ := xyzToBase.Mul(outsetToXYZ).Inverse()

	pipeToRendering := baseToRendering.Mul(pipeToBase)
	baseToPipe, _ := pipeToBase.Inverse()
	renderingToPipe := baseToPipe.Mul(renderingToBase)

	return toGPUMat3(pipeToRendering), toGPUMat3(renderingToPipe)
}

// xyToXYZ lifts a chromaticity to XYZ at unit luminance.
func xyToXYZ(p xyPoint) [3]float64 {
	if p.y < 1e-6 {
		return [3]float64{}
	}
	return [3]float64{p.x / p.y, 1.0, (1.0 - p.x - p.y) / p.y}
}

// primariesToXYZ builds the RGB-to-XYZ matrix for a primary set adapted to
// the given white point.
func primariesToXYZ(primaries [3]xyPoint, white xyPoint) geometry.Mat3 {
	r := xyToXYZ(primaries[0])
	g := xyToXYZ(primaries[1])
	b := xyToXYZ(primaries[2])

	m := matFromCols(r, g, b)
	inv, _ := m.Inverse()
	w := xyToXYZ(white)
	sx, sy, sz := inv.MulVec(w[0], w[1], w[2])

	return matFromCols(
		[3]float64{r[0] * sx, r[1] * sx, r[2] * sx},
		[3]float64{g[0] * sy, g[1] * sy, g[2] * sy},
		[3]float64{b[0] * sz, b[1] * sz, b[2] * sz},
	)
}

func matFromCols(c0, c1, c2 [3]float64) geometry.Mat3 {
	return geometry.Mat3{
		c0[0], c1[0], c2[0],
		c0[1], c1[1], c2[1],
		c0[2], c1[2], c2[2],
	}
}

// rotateAndScalePrimary moves a primary toward the white point by scale and
// rotates it about the white point by rotation radians.
func rotateAndScalePrimary(p, white xyPoint, scale, rotation float64) xyPoint {
	rx := (p.x - white.x) * scale
	ry := (p.y - white.y) * scale
	sin, cos := math.Sincos(rotation)
	return xyPoint{
		x: white.x + rx*cos - ry*sin,
		y: white.y + rx*sin + ry*cos,
	}
}

// toGPUMat3 converts a row-major matrix into padded columns.
func toGPUMat3(m geometry.Mat3) GPUMat3 {
	return GPUMat3{
		Col0: [4]float32{float32(m[0]), float32(m[3]), float32(m[6]), 0},
		Col1: [4]float32{float32(m[1]), float32(m[4]), float32(m[7]), 0},
		Col2: [4]float32{float32(m[2]), float32(m[5]), float32(m[8]), 0},
	}
}
