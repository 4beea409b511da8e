package imagef

import "math"

// InterpolationMode selects how continuous coordinates are sampled.
type InterpolationMode uint8

const (
	// InterpBilinear interpolates between the 4 neighboring pixels.
	// The default for interactive previews.
	InterpBilinear InterpolationMode = iota

	// InterpBicubic uses Catmull-Rom interpolation over a 4x4 neighborhood.
	// Higher quality, used for final-quality warps.
	InterpBicubic
)

// String returns a string representation of the interpolation mode.
func (m InterpolationMode) String() string {
	switch m {
	case InterpBilinear:
		return "Bilinear"
	case InterpBicubic:
		return "Bicubic"
	default:
		return "Unknown"
	}
}

// Sample samples the image at continuous pixel coordinates (fx, fy) using
// the given mode. Out-of-bounds coordinates clamp to the edge.
func (m *Image) Sample(fx, fy float64, mode InterpolationMode) (r, g, b float32) {
	if mode == InterpBicubic {
		return m.SampleBicubic(fx, fy)
	}
	return m.SampleBilinear(fx, fy)
}

// SampleBilinear performs bilinear interpolation at continuous pixel
// coordinates. (0.5, 0.5) is the center of the top-left pixel.
func (m *Image) SampleBilinear(fx, fy float64) (r, g, b float32) {
	fx -= 0.5
	fy -= 0.5

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := float32(fx - float64(x0))
	ty := float32(fy - float64(y0))

	r00, g00, b00 := m.RGB(x0, y0)
	r10, g10, b10 := m.RGB(x0+1, y0)
	r01, g01, b01 := m.RGB(x0, y0+1)
	r11, g11, b11 := m.RGB(x0+1, y0+1)

	r = lerp2D(r00, r10, r01, r11, tx, ty)
	g = lerp2D(g00, g10, g01, g11, tx, ty)
	b = lerp2D(b00, b10, b01, b11, tx, ty)
	return r, g, b
}

// SampleBicubic performs Catmull-Rom interpolation over the 4x4
// neighborhood around the continuous pixel coordinates.
func (m *Image) SampleBicubic(fx, fy float64) (r, g, b float32) {
	fx -= 0.5
	fy -= 0.5

	x := int(math.Floor(fx))
	y := int(math.Floor(fy))
	tx := float32(fx - float64(x))
	ty := float32(fy - float64(y))

	var rRows, gRows, bRows [4]float32
	for dy := -1; dy <= 2; dy++ {
		var rv, gv, bv [4]float32
		for dx := -1; dx <= 2; dx++ {
			pr, pg, pb := m.RGB(x+dx, y+dy)
			rv[dx+1] = pr
			gv[dx+1] = pg
			bv[dx+1] = pb
		}
		rRows[dy+1] = catmullRom(rv, tx)
		gRows[dy+1] = catmullRom(gv, tx)
		bRows[dy+1] = catmullRom(bv, tx)
	}
	return catmullRom(rRows, ty), catmullRom(gRows, ty), catmullRom(bRows, ty)
}

// lerp2D performs bilinear interpolation between 4 corner values.
func lerp2D(v00, v10, v01, v11, tx, ty float32) float32 {
	top := v00 + (v10-v00)*tx
	bot := v01 + (v11-v01)*tx
	return top + (bot-top)*ty
}

// catmullRom evaluates the Catmull-Rom spline through 4 samples at t in [0,1].
func catmullRom(p [4]float32, t float32) float32 {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * ((2 * p[1]) +
		(-p[0]+p[2])*t +
		(2*p[0]-5*p[1]+4*p[2]-p[3])*t2 +
		(-p[0]+3*p[1]-3*p[2]+p[3])*t3)
}
