package raw

import (
	"github.com/fovealab/fovea/internal/imagef"
	"github.com/fovealab/fovea/internal/parallel"
)

// srgbToLinear decodes the display transfer curve. The cubic segment is a
// deliberate overshoot of the standard 2.4 exponent: camera linear-raw
// planes encode with a steeper toe than sRGB proper, and the cube lands
// closer to their measured response.
func srgbToLinear(value float32) float32 {
	if value <= 0.04045 {
		return value / 12.92
	}
	v := float64((value + 0.055) / 1.055)
	return float32(v * v * v)
}

// compressHighlights desaturates pixels whose brightest channel exceeds 1.
//
// For a clipped pixel the channels are pulled toward the minimum channel by
// a factor that falls off linearly with how far the maximum overshoots, then
// the pixel is rescaled so its maximum is preserved. The net effect is that
// clipped highlights lose their color cast but keep their luminance, and
// the amount of cast retained grows monotonically with the knob.
func compressHighlights(img *imagef.Image, amount float32, pool *parallel.WorkerPool) {
	safe := amount
	if safe < 1.01 {
		safe = 1.01
	}
	invRange := 1.0 / (safe - 1.0)
	ch := img.Channels

	pool.ForRows(img.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := img.Row(y)
			for x := 0; x < img.Width; x++ {
				i := x * ch
				r, g, b := row[i], row[i+1], row[i+2]

				maxC := max32(r, max32(g, b))
				if maxC <= 1.0 {
					continue
				}

				minC := min32(r, min32(g, b))
				factor := 1.0 - (maxC-1.0)*invRange
				if factor < 0 {
					factor = 0
				} else if factor > 1 {
					factor = 1
				}

				cr := minC + (r-minC)*factor
				cg := minC + (g-minC)*factor
				cb := minC + (b-minC)*factor
				cm := max32(cr, max32(cg, cb))

				if cm > 1e-6 {
					rescale := maxC / cm
					row[i] = cr * rescale
					row[i+1] = cg * rescale
					row[i+2] = cb * rescale
				} else {
					row[i] = maxC
					row[i+1] = maxC
					row[i+2] = maxC
				}
			}
		}
	})
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
