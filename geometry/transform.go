package geometry

import "math"

// refDim is the reference dimension the keystone sliders are calibrated
// against, so the same slider value tilts a 2000px and a 6000px image by
// the same visual amount.
const refDim = 2000.0

// frame holds the precomputed transform state for one image size.
type frame struct {
	forward      Mat3
	cx, cy       float64
	halfDiagonal float64
}

// buildFrame assembles the composite forward transform:
// recenter, offset, perspective, rotation, scale, then uncenter.
func buildFrame(p Params, width, height float64) frame {
	cx := width / 2.0
	cy := height / 2.0

	pVert := (float64(p.Vertical) / 100000.0) * (refDim / height)
	pHoriz := (-float64(p.Horizontal) / 100000.0) * (refDim / width)
	theta := float64(p.Rotate) * math.Pi / 180.0

	aspectFactor := 1.0 + float64(p.Aspect)/100.0
	if p.Aspect < 0 {
		aspectFactor = 1.0 / (1.0 + float64(-p.Aspect)/100.0)
	}

	scaleFactor := float64(p.Scale) / 100.0
	offX := (float64(p.XOffset) / 100.0) * width
	offY := (float64(p.YOffset) / 100.0) * height

	tCenter := MatTranslate(cx, cy)
	tUncenter := MatTranslate(-cx, -cy)
	mPerspective := MatPerspective(pHoriz, pVert)
	mRotate := MatRotate(theta)
	mScale := MatScale(scaleFactor*aspectFactor, scaleFactor)
	mOffset := MatTranslate(offX, offY)

	forward := tCenter.Mul(mOffset).Mul(mPerspective).Mul(mRotate).Mul(mScale).Mul(tUncenter)
	halfDiagonal := math.Sqrt(width*width+height*height) / 2.0

	return frame{forward: forward, cx: cx, cy: cy, halfDiagonal: halfDiagonal}
}
