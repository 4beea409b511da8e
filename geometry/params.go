package geometry

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// LensModel selects the radial distortion polynomial.
type LensModel uint32

const (
	// ModelPolynomial is the even-power radial model: 1 + k1·r² + k2·r⁴ + k3·r⁶.
	ModelPolynomial LensModel = 0

	// ModelPTLens is the rational profile-database model: a·r³ + b·r² + c·r + d
	// with d chosen so r=1 maps to 1.
	ModelPTLens LensModel = 1
)

// Params describes one geometric correction state.
//
// Transform fields are in UI units: Rotate in degrees, Scale as a percent
// (100 = unchanged), offsets as a percent of the image dimension, Vertical
// and Horizontal as keystone amounts scaled down by 1e5 against a 2000px
// reference so the slider feel is resolution independent.
type Params struct {
	Distortion float32 // creative barrel/pincushion, -100..100
	Vertical   float32
	Horizontal float32
	Rotate     float32
	Aspect     float32
	Scale      float32
	XOffset    float32
	YOffset    float32

	// Lens profile correction.
	LensDistortionAmount float32 // 0..1
	LensVignetteAmount   float32 // 0..1
	LensTCAAmount        float32 // 0..1
	LensDistortionOn     bool
	LensTCAOn            bool
	LensVignetteOn       bool
	LensK1, LensK2, LensK3 float32
	Model                LensModel
	TCAvr, TCAvb         float32
	VigK1, VigK2, VigK3  float32
}

// DefaultParams returns the identity correction state.
func DefaultParams() Params {
	return Params{
		Scale:                100.0,
		LensDistortionAmount: 1.0,
		LensVignetteAmount:   1.0,
		LensTCAAmount:        1.0,
		LensDistortionOn:     true,
		LensTCAOn:            true,
		LensVignetteOn:       true,
		TCAvr:                1.0,
		TCAvb:                1.0,
	}
}

// ParamsFromDocument extracts geometry parameters from a parsed adjustment
// document, applying defaults for missing keys.
func ParamsFromDocument(doc map[string]any) Params {
	p := DefaultParams()
	p.Distortion = docF32(doc, "transformDistortion", 0)
	p.Vertical = docF32(doc, "transformVertical", 0)
	p.Horizontal = docF32(doc, "transformHorizontal", 0)
	p.Rotate = docF32(doc, "transformRotate", 0)
	p.Aspect = docF32(doc, "transformAspect", 0)
	p.Scale = docF32(doc, "transformScale", 100)
	p.XOffset = docF32(doc, "transformXOffset", 0)
	p.YOffset = docF32(doc, "transformYOffset", 0)

	p.LensDistortionAmount = docF32(doc, "lensDistortionAmount", 100) / 100.0
	p.LensVignetteAmount = docF32(doc, "lensVignetteAmount", 100) / 100.0
	p.LensTCAAmount = docF32(doc, "lensTcaAmount", 100) / 100.0
	p.LensDistortionOn = docBool(doc, "lensDistortionEnabled", true)
	p.LensTCAOn = docBool(doc, "lensTcaEnabled", true)
	p.LensVignetteOn = docBool(doc, "lensVignetteEnabled", true)

	if lens, ok := doc["lensDistortionParams"].(map[string]any); ok {
		p.LensK1 = docF32(lens, "k1", 0)
		p.LensK2 = docF32(lens, "k2", 0)
		p.LensK3 = docF32(lens, "k3", 0)
		p.Model = LensModel(docF32(lens, "model", 0))
		p.TCAvr = docF32(lens, "tca_vr", 1)
		p.TCAvb = docF32(lens, "tca_vb", 1)
		p.VigK1 = docF32(lens, "vig_k1", 0)
		p.VigK2 = docF32(lens, "vig_k2", 0)
		p.VigK3 = docF32(lens, "vig_k3", 0)
	}
	return p
}

func docF32(doc map[string]any, key string, def float32) float32 {
	if v, ok := doc[key].(float64); ok {
		return float32(v)
	}
	return def
}

func docBool(doc map[string]any, key string, def bool) bool {
	if v, ok := doc[key].(bool); ok {
		return v
	}
	return def
}

// IsIdentity reports whether the parameters leave every pixel in place.
func (p Params) IsIdentity() bool {
	distIdentity := !p.LensDistortionOn ||
		(abs32(p.LensDistortionAmount-1.0) < 1e-4 &&
			abs32(p.LensK1) < 1e-6 && abs32(p.LensK2) < 1e-6 && abs32(p.LensK3) < 1e-6)

	tcaIdentity := !p.LensTCAOn ||
		(abs32(p.LensTCAAmount-1.0) < 1e-4 &&
			abs32(p.TCAvr-1.0) < 1e-6 && abs32(p.TCAvb-1.0) < 1e-6)

	vigIdentity := !p.LensVignetteOn ||
		(abs32(p.LensVignetteAmount-1.0) < 1e-4 &&
			abs32(p.VigK1) < 1e-6 && abs32(p.VigK2) < 1e-6 && abs32(p.VigK3) < 1e-6)

	return p.Distortion == 0 &&
		p.Vertical == 0 &&
		p.Horizontal == 0 &&
		p.Rotate == 0 &&
		p.Aspect == 0 &&
		p.Scale == 100.0 &&
		p.XOffset == 0 &&
		p.YOffset == 0 &&
		distIdentity && tcaIdentity && vigIdentity
}

// Hash returns a stable hash of the parameter state, used as part of the
// warp cache key.
func (p Params) Hash() uint64 {
	h := fnv.New64a()
	var buf [4]byte
	f := func(v float32) {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		_, _ = h.Write(buf[:])
	}
	b := func(v bool) {
		if v {
			f(1)
		} else {
			f(0)
		}
	}
	f(p.Distortion)
	f(p.Vertical)
	f(p.Horizontal)
	f(p.Rotate)
	f(p.Aspect)
	f(p.Scale)
	f(p.XOffset)
	f(p.YOffset)
	f(p.LensDistortionAmount)
	f(p.LensVignetteAmount)
	f(p.LensTCAAmount)
	b(p.LensDistortionOn)
	b(p.LensTCAOn)
	b(p.LensVignetteOn)
	f(p.LensK1)
	f(p.LensK2)
	f(p.LensK3)
	f(float32(p.Model))
	f(p.TCAvr)
	f(p.TCAvb)
	f(p.VigK1)
	f(p.VigK2)
	f(p.VigK3)
	return h.Sum64()
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
