package geometry

import (
	"math"

	"github.com/fovealab/fovea/internal/imagef"
	"github.com/fovealab/fovea/internal/parallel"
)

// Warp applies the full geometric correction to an RGB image: for each
// output pixel the inverse composite transform, profile lens distortion,
// creative distortion and TCA decide where to sample the source, and the
// vignette gain is applied to the sampled color. The mode picks the
// reconstruction filter: bilinear for interactive previews, bicubic for
// final-quality output.
//
// Pixels that map outside the source stay black.
func Warp(src *imagef.Image, p Params, mode imagef.InterpolationMode, pool *parallel.WorkerPool) *imagef.Image {
	w, h := src.Width, src.Height
	out, _ := imagef.NewRGB(w, h)

	fr := buildFrame(p, float64(w), float64(h))
	inv, ok := fr.forward.Inverse()
	if !ok {
		inv = MatIdentity()
	}

	// Walk the output raster by accumulating the inverse matrix columns:
	// one vector add per pixel instead of a full matrix multiply.
	stepX := [3]float64{inv[0], inv[3], inv[6]}
	stepY := [3]float64{inv[1], inv[4], inv[7]}
	origin := [3]float64{inv[2], inv[5], inv[8]}

	cx, cy := fr.cx, fr.cy
	maxRadiusSqInv := 1.0 / (cx*cx + cy*cy)
	kDistortion := (float64(p.Distortion) / 100.0) * forwardDistortionBoost

	lk1, lk2, lk3 := float64(p.LensK1), float64(p.LensK2), float64(p.LensK3)
	lensDistAmt := float64(p.LensDistortionAmount) * forwardDistortionBoost
	hasLens := p.LensDistortionOn &&
		(math.Abs(lk1) > 1e-6 || math.Abs(lk2) > 1e-6 || math.Abs(lk3) > 1e-6)

	vr, vb, hasTCA := tcaScales(p)
	bicubic := mode == imagef.InterpBicubic

	vk1, vk2, vk3 := float64(p.VigK1), float64(p.VigK2), float64(p.VigK3)
	vigAmt := float64(p.LensVignetteAmount) * 0.8
	hasVignette := p.LensVignetteOn && vigAmt > 0.01 &&
		(math.Abs(vk1) > 1e-6 || math.Abs(vk2) > 1e-6 || math.Abs(vk3) > 1e-6)

	pool.ForRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			yf := float64(y)
			cur := [3]float64{
				origin[0] + stepY[0]*yf,
				origin[1] + stepY[1]*yf,
				origin[2] + stepY[2]*yf,
			}
			row := out.Row(y)

			for x := 0; x < w; x++ {
				if math.Abs(cur[2]) > 1e-6 {
					invZ := 1.0 / cur[2]
					srcX := cur[0] * invZ
					srcY := cur[1] * invZ

					if hasLens {
						dx := srcX - cx
						dy := srcY - cy
						ru := math.Sqrt(dx*dx + dy*dy)
						if ru > 1e-6 {
							ruNorm := ru / fr.halfDiagonal
							rdNorm := distortRadius(p.Model, lk1, lk2, lk3, ruNorm)
							effective := ruNorm + (rdNorm-ruNorm)*lensDistAmt
							scale := effective / ruNorm
							srcX = cx + dx*scale
							srcY = cy + dy*scale
						}
					}

					if math.Abs(kDistortion) > 1e-5 {
						dx := srcX - cx
						dy := srcY - cy
						r2Norm := (dx*dx + dy*dy) * maxRadiusSqInv
						f := 1.0 + kDistortion*r2Norm
						srcX = cx + dx*f
						srcY = cy + dy*f
					}

					i := x * 3
					switch {
					case hasTCA:
						sampleTCA(src, cx, cy, srcX, srcY, vr, vb, row[i:i+3])
					case bicubic:
						sampleBicubicEdge(src, srcX, srcY, row[i:i+3])
					default:
						sampleEdge(src, srcX, srcY, row[i:i+3])
					}

					if hasVignette {
						dx := srcX - cx
						dy := srcY - cy
						ruNorm := math.Sqrt(dx*dx+dy*dy) / fr.halfDiagonal
						gain := float32(vignetteGain(vk1, vk2, vk3, ruNorm, vigAmt))
						row[i] *= gain
						row[i+1] *= gain
						row[i+2] *= gain
					}
				}

				cur[0] += stepX[0]
				cur[1] += stepX[1]
				cur[2] += stepX[2]
			}
		}
	})
	return out
}

// Unwarp maps a corrected image back into source space: the transform the
// shell uses to paint masks and patches in screen space and bake them
// against the unwarped original. Profile distortion is inverted with
// Newton's method; the creative distortion term uses its first-order
// inverse, which is exact to the precision the small slider range needs.
func Unwarp(src *imagef.Image, p Params, mode imagef.InterpolationMode, pool *parallel.WorkerPool) *imagef.Image {
	w, h := src.Width, src.Height
	out, _ := imagef.NewRGB(w, h)

	fr := buildFrame(p, float64(w), float64(h))
	cx, cy := fr.cx, fr.cy
	maxRadiusSqInv := 1.0 / (cx*cx + cy*cy)
	kDistortion := float64(p.Distortion) / 100.0

	lk1, lk2, lk3 := float64(p.LensK1), float64(p.LensK2), float64(p.LensK3)
	lensDistAmt := float64(p.LensDistortionAmount) * inverseDistortionBoost
	hasLens := p.LensDistortionOn &&
		(math.Abs(lk1) > 1e-6 || math.Abs(lk2) > 1e-6 || math.Abs(lk3) > 1e-6)
	bicubic := mode == imagef.InterpBicubic

	pool.ForRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := out.Row(y)
			for x := 0; x < w; x++ {
				curX := float64(x)
				curY := float64(y)

				if hasLens {
					dx := curX - cx
					dy := curY - cy
					rd := math.Sqrt(dx*dx + dy*dy)
					if rd > 1e-6 {
						ru := undistortRadius(p.Model, lk1, lk2, lk3, rd, fr.halfDiagonal, lensDistAmt)
						scale := ru / rd
						curX = cx + dx*scale
						curY = cy + dy*scale
					}
				}

				if math.Abs(kDistortion) > 1e-5 {
					dx := curX - cx
					dy := curY - cy
					r2Norm := (dx*dx + dy*dy) * maxRadiusSqInv
					f := 1.0 - kDistortion*r2Norm
					curX = cx + dx*f
					curY = cy + dy*f
				}

				if sx, sy, ok := fr.forward.Apply(curX, curY); ok {
					i := x * 3
					if bicubic {
						sampleBicubicEdge(src, sx, sy, row[i:i+3])
					} else {
						sampleEdge(src, sx, sy, row[i:i+3])
					}
				}
			}
		}
	})
	return out
}

// sampleEdge bilinearly samples the source at (x, y) into dst, leaving dst
// untouched (black) when the sample window falls outside the image.
func sampleEdge(src *imagef.Image, x, y float64, dst []float32) {
	w, h := src.Width, src.Height
	if math.IsNaN(x) || math.IsNaN(y) ||
		x < 0 || y < 0 || x >= float64(w-1) || y >= float64(h-1) {
		return
	}

	x0 := int(x)
	y0 := int(y)
	wx := float32(x - float64(x0))
	wy := float32(y - float64(y0))

	stride := w * 3
	i00 := y0*stride + x0*3
	i01 := i00 + stride
	pix := src.Pix

	for c := 0; c < 3; c++ {
		top := pix[i00+c]*(1-wx) + pix[i00+3+c]*wx
		bot := pix[i01+c]*(1-wx) + pix[i01+3+c]*wx
		dst[c] = top*(1-wy) + bot*wy
	}
}

// sampleTCA samples each channel at its own radially scaled position about
// the image center: green at the base position, red and blue pulled in or
// out by their profile scales. Coordinates clamp to the edge so fringe
// correction does not introduce black borders.
func sampleTCA(src *imagef.Image, cx, cy, baseX, baseY, vr, vb float64, dst []float32) {
	dst[0] = sampleChannelClamped(src, cx+(baseX-cx)*vr, cy+(baseY-cy)*vr, 0)
	dst[1] = sampleChannelClamped(src, baseX, baseY, 1)
	dst[2] = sampleChannelClamped(src, cx+(baseX-cx)*vb, cy+(baseY-cy)*vb, 2)
}

func sampleChannelClamped(src *imagef.Image, x, y float64, ch int) float32 {
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0
	}
	w, h := src.Width, src.Height

	x = math.Min(math.Max(x, 0), float64(w-1))
	y = math.Min(math.Max(y, 0), float64(h-1))

	x0 := int(x)
	y0 := int(y)
	// Clamp the far corner separately so single-row and single-column
	// images degenerate to nearest-pixel instead of reading past Pix.
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 > w-1 {
		x1 = w - 1
	}
	if y1 > h-1 {
		y1 = h - 1
	}

	wx := float32(x - float64(x0))
	wy := float32(y - float64(y0))

	stride := w * 3
	i00 := y0*stride + x0*3 + ch
	i10 := y0*stride + x1*3 + ch
	i01 := y1*stride + x0*3 + ch
	i11 := y1*stride + x1*3 + ch
	pix := src.Pix

	top := pix[i00]*(1-wx) + pix[i10]*wx
	bot := pix[i01]*(1-wx) + pix[i11]*wx
	return top*(1-wy) + bot*wy
}

// sampleBicubicEdge samples the source with the Catmull-Rom kernel, leaving
// dst untouched (black) outside the image like sampleEdge. The half-pixel
// shift converts warp coordinates, where integers are sample positions, to
// the pixel-center convention of the image sampler.
func sampleBicubicEdge(src *imagef.Image, x, y float64, dst []float32) {
	w, h := src.Width, src.Height
	if math.IsNaN(x) || math.IsNaN(y) ||
		x < 0 || y < 0 || x >= float64(w-1) || y >= float64(h-1) {
		return
	}
	dst[0], dst[1], dst[2] = src.SampleBicubic(x+0.5, y+0.5)
}
