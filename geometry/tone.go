package geometry

import (
	"math"

	"github.com/fovealab/fovea/internal/imagef"
	"github.com/fovealab/fovea/internal/parallel"
)

// Default preview tone mapping for developed raw data when no GPU render
// is available: a fixed gamma lift with a gentle contrast expansion about
// middle grey. Matches the look of the shader path closely enough for
// thumbnails and fallback previews.
const (
	defaultGamma    = 2.38
	defaultContrast = 1.28
)

// DefaultRawTone applies the fallback tone curve in place.
func DefaultRawTone(img *imagef.Image, pool *parallel.WorkerPool) {
	invGamma := 1.0 / defaultGamma
	pool.ForRows(img.Height, func(y0, y1 int) {
		start := y0 * img.Width * img.Channels
		end := y1 * img.Width * img.Channels
		pix := img.Pix[start:end]
		for i, v := range pix {
			if v < 0 {
				v = 0
			}
			t := float32(math.Pow(float64(v), invGamma))
			t = (t-0.5)*defaultContrast + 0.5
			if t < 0 {
				t = 0
			} else if t > 1 {
				t = 1
			}
			pix[i] = t
		}
	})
}
