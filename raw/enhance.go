package raw

import (
	"math"

	"github.com/fovealab/fovea/internal/imagef"
	"github.com/fovealab/fovea/internal/parallel"
)

// Demosaic artifact cleanup. A sparse chroma bilateral removes the colored
// speckle bilinear interpolation leaves along edges, then a restrained
// unsharp pass on luma recovers the acuity the chroma filtering costs.
// Applied only after full-quality development; the fast preview path skips it.

const (
	enhanceBaseInvSigma = 14.0
	enhanceAmount       = 0.35
	enhanceRadius       = 2
)

// Sparse sample offsets: deliberately asymmetric so repeating Bayer-period
// artifacts do not line up with the kernel.
var (
	enhanceOffsets = [3]int{-5, -1, 3}
	enhanceSquares = [3]float32{25.0, 1.0, 9.0}
)

func rgbToYCbCr(r, g, b float32) (y, cb, cr float32) {
	y = 0.299*r + 0.587*g + 0.114*b
	cb = -0.168736*r - 0.331264*g + 0.5*b
	cr = 0.5*r - 0.418688*g - 0.081312*b
	return
}

func yCbCrToRGB(y, cb, cr float32) (r, g, b float32) {
	r = y + 1.402*cr
	g = y - 0.344136*cb - 0.714136*cr
	b = y + 1.772*cb
	return
}

// CleanArtifacts filters demosaic chroma noise in place and applies the
// gentle detail enhancement. The image must be RGB.
func CleanArtifacts(img *imagef.Image, pool *parallel.WorkerPool) {
	w, h := img.Width, img.Height

	// Precompute the YCbCr plane once; both passes read from it.
	ycc := make([]float32, w*h*3)
	pool.ForRows(h, func(y0, y1 int) {
		for py := y0; py < y1; py++ {
			for px := 0; px < w; px++ {
				i := (py*w + px) * 3
				y, cb, cr := rgbToYCbCr(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
				ycc[i] = y
				ycc[i+1] = cb
				ycc[i+2] = cr
			}
		}
	})

	pool.ForRows(h, func(y0, y1 int) {
		for py := y0; py < y1; py++ {
			for px := 0; px < w; px++ {
				center := (py*w + px) * 3
				cy := ycc[center]
				ccb := ycc[center+1]
				ccr := ycc[center+2]

				var cbSum, crSum, wSum float32
				for ki, ky := range enhanceOffsets {
					sy := py + ky
					if sy < 0 || sy >= h {
						continue
					}
					rowPenalty := enhanceSquares[ki] * 0.02
					for kj, kx := range enhanceOffsets {
						sx := px + kx
						if sx < 0 || sx >= w {
							continue
						}
						ni := (sy*w + sx) * 3

						// Range weight from luma difference, spatial weight
						// from the squared offsets; a rational falloff is
						// close enough to gaussian at this kernel size.
						yDiff := cy - ycc[ni]
						if yDiff < 0 {
							yDiff = -yDiff
						}
						val := yDiff * enhanceBaseInvSigma
						penalty := enhanceSquares[kj]*0.02 + rowPenalty
						weight := 1.0 / (1.0 + val*val + penalty)

						cbSum += ycc[ni+1] * weight
						crSum += ycc[ni+2] * weight
						wSum += weight
					}
				}

				outCb, outCr := ccb, ccr
				if wSum > 1e-4 {
					invW := 1.0 / wSum
					fcb := cbSum * invW
					fcr := crSum * invW

					// Never let filtering increase saturation.
					origMag := ccb*ccb + ccr*ccr
					filtMag := fcb*fcb + fcr*fcr
					if filtMag > origMag && origMag > 1e-12 {
						scale := sqrt32(origMag / filtMag)
						fcb *= scale
						fcr *= scale
					}
					outCb, outCr = fcb, fcr
				}

				r, g, b := yCbCrToRGB(cy, outCb, outCr)
				img.Pix[center] = clamp01(r)
				img.Pix[center+1] = clamp01(g)
				img.Pix[center+2] = clamp01(b)
			}
		}
	})

	detailEnhance(img, ycc, enhanceAmount, pool)
}

// detailEnhance adds back luma detail lost to chroma filtering: a small box
// blur isolates local detail, which is boosted except across strong edges
// (where boosting would halo) and scaled down so no channel clips.
func detailEnhance(img *imagef.Image, ycc []float32, amount float32, pool *parallel.WorkerPool) {
	w, h := img.Width, img.Height

	// Horizontal box pass over luma.
	blurH := make([]float32, w*h)
	pool.ForRows(h, func(y0, y1 int) {
		for py := y0; py < y1; py++ {
			for px := 0; px < w; px++ {
				var sum float32
				for kx := -enhanceRadius; kx <= enhanceRadius; kx++ {
					sx := clampInt(px+kx, 0, w-1)
					sum += ycc[(py*w+sx)*3]
				}
				blurH[py*w+px] = sum / float32(2*enhanceRadius+1)
			}
		}
	})

	pool.ForRows(h, func(y0, y1 int) {
		for py := y0; py < y1; py++ {
			for px := 0; px < w; px++ {
				var sum float32
				for ky := -enhanceRadius; ky <= enhanceRadius; ky++ {
					sy := clampInt(py+ky, 0, h-1)
					sum += blurH[sy*w+px]
				}
				blurred := sum / float32(2*enhanceRadius+1)

				origLuma := ycc[(py*w+px)*3]
				detail := origLuma - blurred

				edge := detail
				if edge < 0 {
					edge = -edge
				}
				adaptive := amount
				if edge > 0.1 {
					adaptive = amount * 0.3
				}
				boost := detail * adaptive

				i := (py*w + px) * 3
				r, g, b := img.Pix[i], img.Pix[i+1], img.Pix[i+2]

				newR, newG, newB := r+boost, g+boost, b+boost
				maxV := max32(newR, max32(newG, newB))
				minV := min32(newR, min32(newG, newB))

				scale := float32(1.0)
				if maxV > 1.0 || minV < 0.0 {
					switch {
					case maxV > 1.0 && minV < 0.0:
						scale = 0.0
					case maxV > 1.0:
						scale = (1.0 - max32(r, max32(g, b))) / max32(boost, 0.001)
					default:
						scale = min32(r, min32(g, b)) / max32(-boost, 0.001)
					}
				}
				safeBoost := boost * clamp01(scale)

				img.Pix[i] = clamp01(r + safeBoost)
				img.Pix[i+1] = clamp01(g + safeBoost)
				img.Pix[i+2] = clamp01(b + safeBoost)
			}
		}
	})
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}
