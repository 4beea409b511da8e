package raw

import (
	"github.com/fovealab/fovea/internal/imagef"
	"github.com/fovealab/fovea/internal/parallel"
)

// colorAt returns the CFA color (0=R 1=G 2=B) of the sensor site at (x, y).
func (s *SensorImage) colorAt(x, y int) uint8 {
	return s.CFA[y&1][x&1]
}

// demosaicBilinear interpolates the full-resolution RGB image from the
// normalized mosaic plane. Each missing channel is the average of the
// matching sites in the 3x3 neighborhood, which is the classic bilinear
// reconstruction: green from its 4-neighbor cross, red/blue from their
// row/column or diagonal pairs.
func demosaicBilinear(s *SensorImage, norm []float32, pool *parallel.WorkerPool) *imagef.Image {
	out, _ := imagef.NewRGB(s.Width, s.Height)
	w, h := s.Width, s.Height

	pool.ForRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				site := s.colorAt(x, y)
				var sum [3]float32
				var cnt [3]int

				sum[site] = norm[y*w+x]
				cnt[site] = 1

				for dy := -1; dy <= 1; dy++ {
					ny := y + dy
					if ny < 0 || ny >= h {
						continue
					}
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx := x + dx
						if nx < 0 || nx >= w {
							continue
						}
						c := s.colorAt(nx, ny)
						if c == site {
							continue
						}
						sum[c] += norm[ny*w+nx]
						cnt[c]++
					}
				}

				i := (y*w + x) * 3
				for c := 0; c < 3; c++ {
					if cnt[c] > 0 {
						out.Pix[i+c] = sum[c] / float32(cnt[c])
					}
				}
			}
		}
	})
	return out
}

// demosaicHalf collapses each 2x2 CFA quad into one RGB pixel: the red and
// blue sites pass through, the two green sites are averaged. Quarter the
// pixels and no interpolation, which is why it is the fast preview path.
func demosaicHalf(s *SensorImage, norm []float32, pool *parallel.WorkerPool) *imagef.Image {
	outW, outH := s.Width/2, s.Height/2
	out, _ := imagef.NewRGB(outW, outH)
	w := s.Width

	pool.ForRows(outH, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			sy := y * 2
			for x := 0; x < outW; x++ {
				sx := x * 2

				var sum [3]float32
				var cnt [3]int
				for dy := 0; dy < 2; dy++ {
					for dx := 0; dx < 2; dx++ {
						c := s.colorAt(sx+dx, sy+dy)
						sum[c] += norm[(sy+dy)*w+sx+dx]
						cnt[c]++
					}
				}

				i := (y*outW + x) * 3
				for c := 0; c < 3; c++ {
					if cnt[c] > 0 {
						out.Pix[i+c] = sum[c] / float32(cnt[c])
					}
				}
			}
		}
	})
	return out
}

// FastScaleFactor reports the demosaic scale the fast path used for a
// decode of the given output size relative to the sensor size. The shell
// uses this to align mask coordinates generated against full-size previews.
func FastScaleFactor(sensorW, sensorH, decodedW, decodedH int) float32 {
	maxOrig := float32(max(sensorW, sensorH))
	maxComp := float32(max(decodedW, decodedH))
	if maxOrig <= 0 {
		return 1.0
	}
	ratio := maxComp / maxOrig
	switch {
	case ratio > 0.1 && ratio < 0.35:
		return 0.25
	case ratio >= 0.35 && ratio < 0.75:
		return 0.5
	default:
		return 1.0
	}
}
