// Package adjust compiles edit documents into the packed adjustment
// block the develop shaders consume.
//
// The structs in this file are laid out to match the uniform declarations
// in the WGSL sources byte for byte: every field is 4 bytes wide, vec4
// alignment is kept with explicit blank padding, and matrices are stored
// as three padded columns. Change a shader struct and these must follow.
package adjust

import (
	"bytes"
	"encoding/binary"
)

// CurvePoint is one tone-curve control point, padded to vec4.
type CurvePoint struct {
	X float32
	Y float32
	_ [2]float32
}

// HSLBand holds the hue/saturation/luminance shift for one color band.
type HSLBand struct {
	Hue        float32
	Saturation float32
	Luminance  float32
	_          [1]float32
}

// ColorGrade holds one color-grading wheel (shadows, midtones or
// highlights).
type ColorGrade struct {
	Hue        float32
	Saturation float32
	Luminance  float32
	_          [1]float32
}

// ColorCalibration holds the primary calibration controls.
type ColorCalibration struct {
	ShadowsTint     float32
	RedHue          float32
	RedSaturation   float32
	GreenHue        float32
	GreenSaturation float32
	BlueHue         float32
	BlueSaturation  float32
	_               [1]float32
}

// GPUMat3 is a 3x3 matrix stored as three vec4-padded columns, the std140
// representation of mat3x3<f32>.
type GPUMat3 struct {
	Col0 [4]float32
	Col1 [4]float32
	Col2 [4]float32
}

// IdentityGPUMat3 returns the identity matrix in column layout.
func IdentityGPUMat3() GPUMat3 {
	return GPUMat3{
		Col0: [4]float32{1, 0, 0, 0},
		Col1: [4]float32{0, 1, 0, 0},
		Col2: [4]float32{0, 0, 1, 0},
	}
}

// MaxCurvePoints is the per-channel tone curve capacity.
const MaxCurvePoints = 16

// MaxMasks is the number of mask adjustment slots in the shader block.
const MaxMasks = 8

// GlobalAdjustments mirrors the global section of the shader adjustment
// block. Values are pre-scaled from UI units to shader units.
type GlobalAdjustments struct {
	Exposure    float32
	Brightness  float32
	Contrast    float32
	Highlights  float32
	Shadows     float32
	Whites      float32
	Blacks      float32
	Saturation  float32
	Temperature float32
	Tint        float32
	Vibrance    float32

	Sharpness           float32
	LumaNoiseReduction  float32
	ColorNoiseReduction float32
	Clarity             float32
	Dehaze              float32
	Structure           float32
	Centre              float32
	VignetteAmount      float32
	VignetteMidpoint    float32
	VignetteRoundness   float32
	VignetteFeather     float32
	GrainAmount         float32
	GrainSize           float32
	GrainRoughness      float32

	ChromaticAberrationRedCyan    float32
	ChromaticAberrationBlueYellow float32
	ShowClipping                  uint32
	IsRawImage                    uint32
	_                             [1]float32

	HasLUT         uint32
	LUTIntensity   float32
	TonemapperMode uint32
	_              [4]float32

	_                  [3]float32
	AgxPipeToRendering GPUMat3
	AgxRenderingToPipe GPUMat3

	_                      [4]float32
	ColorGradingShadows    ColorGrade
	ColorGradingMidtones   ColorGrade
	ColorGradingHighlights ColorGrade
	ColorGradingBlending   float32
	ColorGradingBalance    float32
	_                      [2]float32

	ColorCalibration ColorCalibration

	HSL [8]HSLBand

	LumaCurve  [MaxCurvePoints]CurvePoint
	RedCurve   [MaxCurvePoints]CurvePoint
	GreenCurve [MaxCurvePoints]CurvePoint
	BlueCurve  [MaxCurvePoints]CurvePoint

	LumaCurveCount  uint32
	RedCurveCount   uint32
	GreenCurveCount uint32
	BlueCurveCount  uint32
	_               [4]float32

	GlowAmount     float32
	HalationAmount float32
	FlareAmount    float32
	_              [1]float32
}

// MaskAdjustments mirrors one mask slot of the shader adjustment block.
type MaskAdjustments struct {
	Exposure    float32
	Brightness  float32
	Contrast    float32
	Highlights  float32
	Shadows     float32
	Whites      float32
	Blacks      float32
	Saturation  float32
	Temperature float32
	Tint        float32
	Vibrance    float32

	Sharpness           float32
	LumaNoiseReduction  float32
	ColorNoiseReduction float32
	Clarity             float32
	Dehaze              float32
	Structure           float32

	GlowAmount     float32
	HalationAmount float32
	FlareAmount    float32
	_              [1]float32

	_                      [3]float32
	ColorGradingShadows    ColorGrade
	ColorGradingMidtones   ColorGrade
	ColorGradingHighlights ColorGrade
	ColorGradingBlending   float32
	ColorGradingBalance    float32
	_                      [2]float32

	HSL [8]HSLBand

	LumaCurve  [MaxCurvePoints]CurvePoint
	RedCurve   [MaxCurvePoints]CurvePoint
	GreenCurve [MaxCurvePoints]CurvePoint
	BlueCurve  [MaxCurvePoints]CurvePoint

	LumaCurveCount  uint32
	RedCurveCount   uint32
	GreenCurveCount uint32
	BlueCurveCount  uint32
	_               [4]float32
}

// AllAdjustments is the complete per-dispatch adjustment block: the global
// settings, up to MaxMasks mask slots and the tile placement words the
// tiled renderer patches per dispatch.
type AllAdjustments struct {
	Global        GlobalAdjustments
	Masks         [MaxMasks]MaskAdjustments
	MaskCount     uint32
	TileOffsetX   uint32
	TileOffsetY   uint32
	MaskAtlasCols uint32
}

// Expected encoded sizes. The layout test pins these against binary.Size
// so a struct edit that breaks shader compatibility fails loudly.
const (
	GlobalAdjustmentsSize = 1568
	MaskAdjustmentsSize   = 1344
	AllAdjustmentsSize    = GlobalAdjustmentsSize + MaxMasks*MaskAdjustmentsSize + 16
)

// Bytes encodes the block little-endian for upload to the adjustment
// uniform buffer.
func (a *AllAdjustments) Bytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, AllAdjustmentsSize))
	_ = binary.Write(buf, binary.LittleEndian, a)
	return buf.Bytes()
}
