package adjust

// Compile turns an edit document into the packed adjustment block.
//
// Masks come from the document's "masks" array: invisible masks are
// skipped, the rest fill the fixed slots in order and anything beyond
// MaxMasks is dropped.
func Compile(doc Document, isRaw bool) AllAdjustments {
	all := AllAdjustments{
		Global:        compileGlobal(doc, isRaw),
		MaskAtlasCols: 1,
	}

	slot := 0
	for _, m := range docArr(doc, "masks") {
		mask, ok := m.(map[string]any)
		if !ok {
			continue
		}
		if vis, ok := mask["visible"].(bool); ok && !vis {
			continue
		}
		if slot >= MaxMasks {
			break
		}
		all.Masks[slot] = compileMask(docObj(mask, "adjustments"))
		slot++
	}
	all.MaskCount = uint32(slot)
	return all
}

func compileGlobal(doc Document, isRaw bool) GlobalAdjustments {
	vis := sectionVisibility(doc)

	// Hidden sections compile to their neutral value, which for a few
	// keys is not zero (vignette shape, grain size).
	get := func(section, key string, scale float32) float32 {
		if !vis.visible(section) {
			return 0
		}
		return float32(docNum(doc, key, 0)) / scale
	}
	getDef := func(section, key string, scale float32, def float64) float32 {
		if !vis.visible(section) {
			return float32(def) / scale
		}
		return float32(docNum(doc, key, def)) / scale
	}

	g := GlobalAdjustments{
		Exposure:   get("basic", "exposure", scaleExposure),
		Brightness: get("basic", "brightness", scaleBrightness),
		Contrast:   get("basic", "contrast", scaleContrast),
		Highlights: get("basic", "highlights", scaleHighlights),
		Shadows:    get("basic", "shadows", scaleShadows),
		Whites:     get("basic", "whites", scaleWhites),
		Blacks:     get("basic", "blacks", scaleBlacks),

		Saturation:  get("color", "saturation", scaleSaturation),
		Temperature: get("color", "temperature", scaleTemperature),
		Tint:        get("color", "tint", scaleTint),
		Vibrance:    get("color", "vibrance", scaleVibrance),

		Sharpness:           get("details", "sharpness", scaleSharpness),
		LumaNoiseReduction:  get("details", "lumaNoiseReduction", scaleLumaNoiseReduction),
		ColorNoiseReduction: get("details", "colorNoiseReduction", scaleColorNoiseReduction),

		Clarity:           get("effects", "clarity", scaleClarity),
		Dehaze:            get("effects", "dehaze", scaleDehaze),
		Structure:         get("effects", "structure", scaleStructure),
		Centre:            get("effects", "centré", scaleCentre),
		VignetteAmount:    get("effects", "vignetteAmount", scaleVignetteAmount),
		VignetteMidpoint:  getDef("effects", "vignetteMidpoint", scaleVignetteMidpoint, 50),
		VignetteRoundness: getDef("effects", "vignetteRoundness", scaleVignetteRoundness, 0),
		VignetteFeather:   getDef("effects", "vignetteFeather", scaleVignetteFeather, 50),
		GrainAmount:       get("effects", "grainAmount", scaleGrainAmount),
		GrainSize:         getDef("effects", "grainSize", scaleGrainSize, 25),
		GrainRoughness:    getDef("effects", "grainRoughness", scaleGrainRoughness, 50),

		ChromaticAberrationRedCyan:    get("details", "chromaticAberrationRedCyan", scaleChromaticAberration),
		ChromaticAberrationBlueYellow: get("details", "chromaticAberrationBlueYellow", scaleChromaticAberration),

		GlowAmount:     get("effects", "glowAmount", scaleGlow),
		HalationAmount: get("effects", "halationAmount", scaleHalation),
		FlareAmount:    get("effects", "flareAmount", scaleFlares),
	}

	if b, ok := doc["showClipping"].(bool); ok && b {
		g.ShowClipping = 1
	}
	if isRaw {
		g.IsRawImage = 1
	}

	if _, ok := docStr(doc, "lutPath"); ok {
		g.HasLUT = 1
	}
	g.LUTIntensity = float32(docNum(doc, "lutIntensity", 100)) / 100.0
	if tm, _ := docStr(doc, "toneMapper"); tm == "agx" {
		g.TonemapperMode = 1
	}
	g.AgxPipeToRendering, g.AgxRenderingToPipe = agxMatrices()

	colorVisible := vis.visible("color")
	cg := docObj(doc, "colorGrading")
	g.ColorGradingShadows, g.ColorGradingMidtones, g.ColorGradingHighlights,
		g.ColorGradingBlending, g.ColorGradingBalance = compileColorGrading(cg, colorVisible)

	if colorVisible {
		cal := docObj(doc, "colorCalibration")
		g.ColorCalibration = ColorCalibration{
			ShadowsTint:     float32(docNum(cal, "shadowsTint", 0)) / scaleColorCalibrationHue,
			RedHue:          float32(docNum(cal, "redHue", 0)) / scaleColorCalibrationHue,
			RedSaturation:   float32(docNum(cal, "redSaturation", 0)) / scaleColorCalibrationSaturation,
			GreenHue:        float32(docNum(cal, "greenHue", 0)) / scaleColorCalibrationHue,
			GreenSaturation: float32(docNum(cal, "greenSaturation", 0)) / scaleColorCalibrationSaturation,
			BlueHue:         float32(docNum(cal, "blueHue", 0)) / scaleColorCalibrationHue,
			BlueSaturation:  float32(docNum(cal, "blueSaturation", 0)) / scaleColorCalibrationSaturation,
		}
		g.HSL = compileHSL(docObj(doc, "hsl"))
	}

	compileCurves(doc, vis,
		&g.LumaCurve, &g.RedCurve, &g.GreenCurve, &g.BlueCurve,
		&g.LumaCurveCount, &g.RedCurveCount, &g.GreenCurveCount, &g.BlueCurveCount)

	return g
}

func compileMask(adj map[string]any) MaskAdjustments {
	if adj == nil {
		return MaskAdjustments{}
	}

	vis := sectionVisibility(adj)
	get := func(section, key string, scale float32) float32 {
		if !vis.visible(section) {
			return 0
		}
		return float32(docNum(adj, key, 0)) / scale
	}

	m := MaskAdjustments{
		Exposure:   get("basic", "exposure", scaleExposure),
		Brightness: get("basic", "brightness", scaleBrightness),
		Contrast:   get("basic", "contrast", scaleContrast),
		Highlights: get("basic", "highlights", scaleHighlights),
		Shadows:    get("basic", "shadows", scaleShadows),
		Whites:     get("basic", "whites", scaleWhites),
		Blacks:     get("basic", "blacks", scaleBlacks),

		Saturation:  get("color", "saturation", scaleSaturation),
		Temperature: get("color", "temperature", scaleTemperature),
		Tint:        get("color", "tint", scaleTint),
		Vibrance:    get("color", "vibrance", scaleVibrance),

		Sharpness:           get("details", "sharpness", scaleSharpness),
		LumaNoiseReduction:  get("details", "lumaNoiseReduction", scaleLumaNoiseReduction),
		ColorNoiseReduction: get("details", "colorNoiseReduction", scaleColorNoiseReduction),

		Clarity:   get("effects", "clarity", scaleClarity),
		Dehaze:    get("effects", "dehaze", scaleDehaze),
		Structure: get("effects", "structure", scaleStructure),

		GlowAmount:     get("effects", "glowAmount", scaleGlow),
		HalationAmount: get("effects", "halationAmount", scaleHalation),
		FlareAmount:    get("effects", "flareAmount", scaleFlares),
	}

	colorVisible := vis.visible("color")
	m.ColorGradingShadows, m.ColorGradingMidtones, m.ColorGradingHighlights,
		m.ColorGradingBlending, m.ColorGradingBalance = compileColorGrading(docObj(adj, "colorGrading"), colorVisible)

	if colorVisible {
		m.HSL = compileHSL(docObj(adj, "hsl"))
	}

	compileCurves(adj, vis,
		&m.LumaCurve, &m.RedCurve, &m.GreenCurve, &m.BlueCurve,
		&m.LumaCurveCount, &m.RedCurveCount, &m.GreenCurveCount, &m.BlueCurveCount)

	return m
}

func compileColorGrading(cg map[string]any, visible bool) (shadows, midtones, highlights ColorGrade, blending, balance float32) {
	if !visible {
		return ColorGrade{}, ColorGrade{}, ColorGrade{}, 0.5, 0
	}
	shadows = compileColorGrade(docObj(cg, "shadows"))
	midtones = compileColorGrade(docObj(cg, "midtones"))
	highlights = compileColorGrade(docObj(cg, "highlights"))
	blending = float32(docNum(cg, "blending", 50)) / scaleColorGradingBlending
	balance = float32(docNum(cg, "balance", 0)) / scaleColorGradingBalance
	return shadows, midtones, highlights, blending, balance
}

func compileColorGrade(wheel map[string]any) ColorGrade {
	if wheel == nil {
		return ColorGrade{}
	}
	return ColorGrade{
		Hue:        float32(docNum(wheel, "hue", 0)),
		Saturation: float32(docNum(wheel, "saturation", 0)) / scaleColorGradingSaturation,
		Luminance:  float32(docNum(wheel, "luminance", 0)) / scaleColorGradingLuminance,
	}
}

// hslBandNames maps the document keys to shader band slots.
var hslBandNames = [8]string{
	"reds", "oranges", "yellows", "greens", "aquas", "blues", "purples", "magentas",
}

func compileHSL(hsl map[string]any) [8]HSLBand {
	var bands [8]HSLBand
	if hsl == nil {
		return bands
	}
	for i, name := range hslBandNames {
		band := docObj(hsl, name)
		if band == nil {
			continue
		}
		bands[i] = HSLBand{
			Hue:        float32(docNum(band, "hue", 0)) * scaleHSLHueMultiplier,
			Saturation: float32(docNum(band, "saturation", 0)) / scaleHSLSaturation,
			Luminance:  float32(docNum(band, "luminance", 0)) / scaleHSLLuminance,
		}
	}
	return bands
}

func compileCurves(doc map[string]any, vis visibility,
	luma, red, green, blue *[MaxCurvePoints]CurvePoint,
	lumaN, redN, greenN, blueN *uint32,
) {
	if !vis.visible("curves") {
		return
	}
	curves := docObj(doc, "curves")
	*luma, *lumaN = compileCurve(docArr(curves, "luma"))
	*red, *redN = compileCurve(docArr(curves, "red"))
	*green, *greenN = compileCurve(docArr(curves, "green"))
	*blue, *blueN = compileCurve(docArr(curves, "blue"))
}

func compileCurve(points []any) (out [MaxCurvePoints]CurvePoint, n uint32) {
	count := len(points)
	if count > MaxCurvePoints {
		count = MaxCurvePoints
	}
	for i := 0; i < count; i++ {
		p, ok := points[i].(map[string]any)
		if !ok {
			continue
		}
		x, xok := p["x"].(float64)
		y, yok := p["y"].(float64)
		if xok && yok {
			out[i] = CurvePoint{X: float32(x), Y: float32(y)}
		}
	}
	// The count is capped with the points so the shader never indexes
	// past the fixed array.
	return out, uint32(count)
}
