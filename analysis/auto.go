package analysis

import (
	"math"
	"sort"

	"github.com/fovealab/fovea/internal/imagef"
)

// analysisDim bounds the preview the auto analysis runs on.
const analysisDim = 1024

// AutoAdjustments holds suggested slider values derived from image
// statistics, in UI slider units.
type AutoAdjustments struct {
	Exposure       float64
	Contrast       float64
	Highlights     float64
	Shadows        float64
	Vibrance       float64
	VignetteAmount float64
	Temperature    float64
	Tint           float64
	Dehaze         float64
	Clarity        float64
	Centre         float64
}

// Document converts the suggestions into an adjustment document
// fragment ready to merge into the edit state. Temperature and tint
// are computed but withheld; white balance changes are too intrusive
// to apply silently.
func (a AutoAdjustments) Document() map[string]any {
	return map[string]any{
		"exposure":       a.Exposure,
		"contrast":       a.Contrast,
		"highlights":     a.Highlights,
		"shadows":        a.Shadows,
		"vibrance":       a.Vibrance,
		"vignetteAmount": a.VignetteAmount,
		"clarity":        a.Clarity,
		"centré":         a.Centre,
		"dehaze":         a.Dehaze,
		"sectionVisibility": map[string]any{
			"basic":   true,
			"color":   true,
			"effects": true,
		},
	}
}

// AutoAnalyze derives suggested adjustments from the luma distribution,
// saturation statistics and the center/edge luminance balance of the
// image.
func AutoAnalyze(img *imagef.Image) AutoAdjustments {
	preview := fitWithin(img, analysisDim)
	ch := preview.Channels
	total := float64(preview.Width * preview.Height)
	if total == 0 {
		return AutoAdjustments{}
	}

	var lumaHist [256]uint32
	meanSaturation := 0.0
	dullPixels := 0.0
	type brightPixel struct {
		luma    int
		r, g, b float64
	}
	brightest := make([]brightPixel, 0, preview.Width*preview.Height)

	for p := 0; p < preview.Width*preview.Height; p++ {
		i := p * ch
		r := float64(quantize(preview.Pix[i]))
		g := float64(quantize(preview.Pix[i+1]))
		b := float64(quantize(preview.Pix[i+2]))

		luma := lumaBin(int(r), int(g), int(b))
		lumaHist[luma]++

		maxC := math.Max(r, math.Max(g, b)) / 255
		minC := math.Min(r, math.Min(g, b)) / 255
		if maxC > 0 {
			s := (maxC - minC) / maxC
			meanSaturation += s
			if s < 0.1 {
				dullPixels++
			}
		}
		brightest = append(brightest, brightPixel{luma: luma, r: r, g: g, b: b})
	}
	meanSaturation /= total
	dullPercent := dullPixels / total

	// Black and white points at the 0.1% clip threshold.
	blackPoint, whitePoint := 0, 255
	clipThreshold := uint32(total * 0.001)
	cumulative := uint32(0)
	for i := 0; i < 256; i++ {
		cumulative += lumaHist[i]
		if cumulative > clipThreshold {
			blackPoint = i
			break
		}
	}
	cumulative = 0
	for i := 255; i >= 0; i-- {
		cumulative += lumaHist[i]
		if cumulative > clipThreshold {
			whitePoint = i
			break
		}
	}

	midPoint := (blackPoint + whitePoint) / 2
	histRange := math.Max(float64(whitePoint-blackPoint), 1)

	var out AutoAdjustments
	if histRange > 20 {
		out.Exposure = (128 - float64(midPoint)) * 0.35
		const targetRange = 250.0
		if histRange < targetRange {
			out.Contrast = (targetRange/histRange - 1) * 50
		}
	}

	shadowPercent := sumBins(lumaHist[:32]) / total
	highlightPercent := sumBins(lumaHist[224:]) / total
	if shadowPercent > 0.05 && blackPoint < 10 {
		out.Shadows = math.Min(shadowPercent*150, 80)
	}
	if highlightPercent > 0.05 && whitePoint > 245 {
		out.Highlights = -math.Min(highlightPercent*150, 80)
	}

	// White balance hints come from the brightest 1% of pixels.
	sort.Slice(brightest, func(i, j int) bool { return brightest[i].luma > brightest[j].luma })
	top := int(math.Ceil(total * 0.01))
	if top > len(brightest) {
		top = len(brightest)
	}
	if top > 0 {
		var br, bg, bb float64
		for _, p := range brightest[:top] {
			br += p.r
			bg += p.g
			bb += p.b
		}
		br /= float64(top)
		bg /= float64(top)
		bb /= float64(top)
		if math.Abs(br-bb) > 3 || math.Abs(bg-(br+bb)/2) > 3 {
			out.Temperature = (bb - br) * 0.4
			out.Tint = (bg - (br+bb)/2) * 0.5
		}
	}

	const saturationTarget = 0.20
	if meanSaturation < saturationTarget {
		out.Vibrance = (saturationTarget - meanSaturation) * 150
	}
	if dullPercent > 0.5 {
		out.Vibrance += 10
	}

	if histRange < 128 && meanSaturation < 0.15 {
		out.Dehaze = (1 - histRange/128) * 40
	}
	if histRange < 180 {
		out.Clarity = (1 - histRange/180) * 60
	}

	out.VignetteAmount, out.Centre = vignetteSuggestion(preview)

	out.Exposure = clampF(out.Exposure/20, -5, 5)
	out.Contrast = clampF(out.Contrast, 0, 100)
	out.Highlights = clampF(out.Highlights, -100, 0)
	out.Shadows = clampF(out.Shadows, 0, 100)
	out.Vibrance = clampF(out.Vibrance, 0, 80)
	out.VignetteAmount = clampF(out.VignetteAmount, -100, 0)
	out.Temperature = clampF(out.Temperature, -100, 100)
	out.Tint = clampF(out.Tint, -100, 100)
	out.Dehaze = clampF(out.Dehaze, 0, 100)
	out.Clarity = clampF(out.Clarity, 0, 100)
	out.Centre = clampF(out.Centre, 0, 100)
	return out
}

// vignetteSuggestion compares the luminance of the central half of the
// frame against the border. Darker borders suggest lens vignetting to
// counter, plus a centre lift on strong falloff.
func vignetteSuggestion(img *imagef.Image) (vignette, centre float64) {
	ch := img.Channels
	cx0 := img.Width / 4
	cx1 := img.Width * 3 / 4
	cy0 := img.Height / 4
	cy1 := img.Height * 3 / 4

	var centerSum, edgeSum float64
	var centerN, edgeN int
	for y := 0; y < img.Height; y++ {
		row := img.Row(y)
		for x := 0; x < img.Width; x++ {
			l := (0.2126*float64(row[x*ch]) + 0.7152*float64(row[x*ch+1]) + 0.0722*float64(row[x*ch+2]))
			if x >= cx0 && x < cx1 && y >= cy0 && y < cy1 {
				centerSum += l
				centerN++
			} else {
				edgeSum += l
				edgeN++
			}
		}
	}
	if centerN == 0 || edgeN == 0 {
		return 0, 0
	}
	avgCenter := centerSum / float64(centerN)
	avgEdge := edgeSum / float64(edgeN)
	if avgEdge >= avgCenter {
		return 0, 0
	}
	diff := avgCenter - avgEdge
	vignette = -diff * 150
	if diff > 0.05 {
		centre = math.Min(diff*120, 60)
	}
	return vignette, centre
}

// fitWithin downscales so neither edge exceeds dim, preserving aspect.
func fitWithin(img *imagef.Image, dim int) *imagef.Image {
	if img.Width <= dim && img.Height <= dim {
		return img
	}
	scale := float64(dim) / float64(img.Width)
	if s := float64(dim) / float64(img.Height); s < scale {
		scale = s
	}
	w := int(math.Round(float64(img.Width) * scale))
	h := int(math.Round(float64(img.Height) * scale))
	return img.Downscale(max(w, 1), max(h, 1))
}

func sumBins(bins []uint32) float64 {
	total := uint64(0)
	for _, b := range bins {
		total += uint64(b)
	}
	return float64(total)
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
