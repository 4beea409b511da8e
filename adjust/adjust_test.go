package adjust

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestLayoutSizes(t *testing.T) {
	if got := binary.Size(GlobalAdjustments{}); got != GlobalAdjustmentsSize {
		t.Errorf("GlobalAdjustments size = %d, want %d", got, GlobalAdjustmentsSize)
	}
	if got := binary.Size(MaskAdjustments{}); got != MaskAdjustmentsSize {
		t.Errorf("MaskAdjustments size = %d, want %d", got, MaskAdjustmentsSize)
	}
	if got := binary.Size(AllAdjustments{}); got != AllAdjustmentsSize {
		t.Errorf("AllAdjustments size = %d, want %d", got, AllAdjustmentsSize)
	}

	var a AllAdjustments
	if got := len(a.Bytes()); got != AllAdjustmentsSize {
		t.Errorf("Bytes() length = %d, want %d", got, AllAdjustmentsSize)
	}
}

func TestCompileScales(t *testing.T) {
	doc := Document{
		"exposure":   1.0,
		"contrast":   50.0,
		"highlights": -60.0,
		"whites":     30.0,
		"dehaze":     75.0,
		"temperature": 25.0,
	}
	g := Compile(doc, false).Global

	if math.Abs(float64(g.Exposure)-1.25) > 1e-6 {
		t.Errorf("Exposure = %g, want 1.25", g.Exposure)
	}
	if math.Abs(float64(g.Contrast)-0.5) > 1e-6 {
		t.Errorf("Contrast = %g, want 0.5", g.Contrast)
	}
	if math.Abs(float64(g.Highlights)+0.5) > 1e-6 {
		t.Errorf("Highlights = %g, want -0.5", g.Highlights)
	}
	if math.Abs(float64(g.Whites)-1.0) > 1e-6 {
		t.Errorf("Whites = %g, want 1", g.Whites)
	}
	if math.Abs(float64(g.Dehaze)-0.1) > 1e-6 {
		t.Errorf("Dehaze = %g, want 0.1", g.Dehaze)
	}
	if math.Abs(float64(g.Temperature)-1.0) > 1e-6 {
		t.Errorf("Temperature = %g, want 1", g.Temperature)
	}
}

func TestCompileDefaults(t *testing.T) {
	g := Compile(Document{}, true).Global

	if g.Exposure != 0 {
		t.Errorf("missing exposure should compile to 0, got %g", g.Exposure)
	}
	if g.VignetteMidpoint != 0.5 {
		t.Errorf("VignetteMidpoint default = %g, want 0.5", g.VignetteMidpoint)
	}
	if g.VignetteFeather != 0.5 {
		t.Errorf("VignetteFeather default = %g, want 0.5", g.VignetteFeather)
	}
	if g.GrainSize != 0.5 {
		t.Errorf("GrainSize default = %g, want 0.5", g.GrainSize)
	}
	if g.LUTIntensity != 1.0 {
		t.Errorf("LUTIntensity default = %g, want 1", g.LUTIntensity)
	}
	if g.ColorGradingBlending != 0.5 {
		t.Errorf("ColorGradingBlending default = %g, want 0.5", g.ColorGradingBlending)
	}
	if g.IsRawImage != 1 {
		t.Error("raw flag not set")
	}
	if g.TonemapperMode != 0 {
		t.Error("default tone mapper should be basic")
	}
}

func TestCompileVisibilityGating(t *testing.T) {
	doc := Document{
		"exposure":   2.0,
		"saturation": 50.0,
		"vignetteMidpoint": 80.0,
		"sectionVisibility": map[string]any{
			"basic": false,
		},
	}
	g := Compile(doc, false).Global

	if g.Exposure != 0 {
		t.Errorf("hidden basic section should zero exposure, got %g", g.Exposure)
	}
	if g.Saturation != 0.5 {
		t.Errorf("visible color section should keep saturation, got %g", g.Saturation)
	}

	// Hidden sections with non-zero neutral values fall back to those,
	// not to the stored slider.
	doc["sectionVisibility"] = map[string]any{"effects": false}
	g = Compile(doc, false).Global
	if g.VignetteMidpoint != 0.5 {
		t.Errorf("hidden effects midpoint = %g, want neutral 0.5", g.VignetteMidpoint)
	}
}

func TestCompileToneMapper(t *testing.T) {
	g := Compile(Document{"toneMapper": "agx"}, false).Global
	if g.TonemapperMode != 1 {
		t.Error("agx tone mapper should set mode 1")
	}

	// White maps to white through both AgX legs.
	for name, m := range map[string]GPUMat3{
		"pipeToRendering": g.AgxPipeToRendering,
		"renderingToPipe": g.AgxRenderingToPipe,
	} {
		for r := 0; r < 3; r++ {
			sum := float64(m.Col0[r] + m.Col1[r] + m.Col2[r])
			if math.Abs(sum-1.0) > 1e-4 {
				t.Errorf("%s row %d sums to %g, want 1", name, r, sum)
			}
		}
	}
}

func TestCompileCurves(t *testing.T) {
	points := []any{
		map[string]any{"x": 0.0, "y": 0.0},
		map[string]any{"x": 0.4, "y": 0.6},
		map[string]any{"x": 1.0, "y": 1.0},
	}
	doc := Document{"curves": map[string]any{"luma": points}}
	g := Compile(doc, false).Global

	if g.LumaCurveCount != 3 {
		t.Fatalf("LumaCurveCount = %d, want 3", g.LumaCurveCount)
	}
	if g.LumaCurve[1].X != 0.4 || g.LumaCurve[1].Y != 0.6 {
		t.Errorf("point 1 = (%g,%g), want (0.4,0.6)", g.LumaCurve[1].X, g.LumaCurve[1].Y)
	}
	if g.RedCurveCount != 0 {
		t.Errorf("RedCurveCount = %d, want 0", g.RedCurveCount)
	}

	// Over-long curves truncate to capacity.
	long := make([]any, 0, 20)
	for i := 0; i < 20; i++ {
		long = append(long, map[string]any{"x": float64(i) / 19, "y": 0.5})
	}
	doc = Document{"curves": map[string]any{"red": long}}
	g = Compile(doc, false).Global
	if g.RedCurveCount != MaxCurvePoints {
		t.Errorf("RedCurveCount = %d, want %d", g.RedCurveCount, MaxCurvePoints)
	}
}

func TestCompileHSL(t *testing.T) {
	doc := Document{
		"hsl": map[string]any{
			"oranges": map[string]any{"hue": 10.0, "saturation": 50.0, "luminance": -20.0},
		},
	}
	g := Compile(doc, false).Global

	band := g.HSL[1]
	if math.Abs(float64(band.Hue)-3.0) > 1e-6 {
		t.Errorf("orange hue = %g, want 3", band.Hue)
	}
	if math.Abs(float64(band.Saturation)-0.5) > 1e-6 {
		t.Errorf("orange saturation = %g, want 0.5", band.Saturation)
	}
	if math.Abs(float64(band.Luminance)+0.2) > 1e-6 {
		t.Errorf("orange luminance = %g, want -0.2", band.Luminance)
	}
	if g.HSL[0] != (HSLBand{}) {
		t.Error("untouched band should stay zero")
	}
}

func TestCompileMasks(t *testing.T) {
	mask := func(visible bool, exposure float64) map[string]any {
		return map[string]any{
			"visible": visible,
			"adjustments": map[string]any{
				"exposure": exposure,
			},
		}
	}

	masks := []any{
		mask(true, 1.0),
		mask(false, 2.0),
		mask(true, 3.0),
	}
	all := Compile(Document{"masks": masks}, false)

	if all.MaskCount != 2 {
		t.Fatalf("MaskCount = %d, want 2", all.MaskCount)
	}
	if math.Abs(float64(all.Masks[0].Exposure)-1.25) > 1e-6 {
		t.Errorf("mask 0 exposure = %g, want 1.25", all.Masks[0].Exposure)
	}
	// The invisible mask is skipped, not compiled to a zero slot.
	if math.Abs(float64(all.Masks[1].Exposure)-3.75) > 1e-6 {
		t.Errorf("mask 1 exposure = %g, want 3.75", all.Masks[1].Exposure)
	}

	// Slots are capped: extra visible masks are dropped.
	many := make([]any, 0, 12)
	for i := 0; i < 12; i++ {
		many = append(many, mask(true, 1.0))
	}
	all = Compile(Document{"masks": many}, false)
	if all.MaskCount != MaxMasks {
		t.Errorf("MaskCount = %d, want %d", all.MaskCount, MaxMasks)
	}
}

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"exposure": 1.5, "toneMapper": "agx"}`))
	if err != nil {
		t.Fatal(err)
	}
	if docNum(doc, "exposure", 0) != 1.5 {
		t.Error("exposure not parsed")
	}

	if _, err := ParseDocument([]byte(`not json`)); err == nil {
		t.Error("expected parse error")
	}
}
