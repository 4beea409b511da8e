package adjust

// UI sliders run over ranges chosen for feel (-100..100 mostly); the
// shaders expect normalized values. These divisors convert between the
// two and must match the slider ranges the editing surface exposes.
const (
	scaleExposure   = 0.8
	scaleBrightness = 0.8
	scaleContrast   = 100.0
	scaleHighlights = 120.0
	scaleShadows    = 100.0
	scaleWhites     = 30.0
	scaleBlacks     = 60.0

	scaleSaturation  = 100.0
	scaleTemperature = 25.0
	scaleTint        = 100.0
	scaleVibrance    = 100.0

	scaleSharpness           = 40.0
	scaleLumaNoiseReduction  = 100.0
	scaleColorNoiseReduction = 100.0

	scaleClarity   = 200.0
	scaleDehaze    = 750.0
	scaleStructure = 200.0
	scaleCentre    = 250.0

	scaleVignetteAmount    = 100.0
	scaleVignetteMidpoint  = 100.0
	scaleVignetteRoundness = 100.0
	scaleVignetteFeather   = 100.0
	scaleGrainAmount       = 200.0
	scaleGrainSize         = 50.0
	scaleGrainRoughness    = 100.0

	scaleChromaticAberration = 10000.0

	scaleHSLHueMultiplier = 0.3
	scaleHSLSaturation    = 100.0
	scaleHSLLuminance     = 100.0

	scaleColorGradingSaturation = 500.0
	scaleColorGradingLuminance  = 500.0
	scaleColorGradingBlending   = 100.0
	scaleColorGradingBalance    = 200.0

	scaleColorCalibrationHue        = 400.0
	scaleColorCalibrationSaturation = 120.0

	scaleGlow     = 100.0
	scaleHalation = 100.0
	scaleFlares   = 100.0
)
