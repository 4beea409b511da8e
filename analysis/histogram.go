// Package analysis computes display statistics over developed images:
// channel histograms, a waveform scope and the auto-adjust analysis.
// Inputs are float images in [0, 1]; values are quantized to 8 bits the
// way the scopes present them.
package analysis

import (
	"math"
	"sort"

	"github.com/fovealab/fovea/internal/imagef"
)

// histogramBins is the resolution of each channel histogram.
const histogramBins = 256

// histogramSigma smooths the raw counts so the scope reads as a curve
// rather than a comb.
const histogramSigma = 2.5

// histogramClipPercentile caps normalization below the absolute peak so
// one dominant bin does not flatten the rest of the curve.
const histogramClipPercentile = 0.99

// Histogram holds smoothed, normalized per-channel histograms. Values
// are in [0, 1].
type Histogram struct {
	Red   []float32
	Green []float32
	Blue  []float32
	Luma  []float32
}

// ComputeHistogram builds the four-channel histogram of an image.
func ComputeHistogram(img *imagef.Image) Histogram {
	var red, green, blue, luma [histogramBins]float32

	ch := img.Channels
	for p := 0; p < img.Width*img.Height; p++ {
		i := p * ch
		r := quantize(img.Pix[i])
		g := quantize(img.Pix[i+1])
		b := quantize(img.Pix[i+2])
		red[r]++
		green[g]++
		blue[b]++
		luma[lumaBin(r, g, b)]++
	}

	h := Histogram{
		Red:   red[:],
		Green: green[:],
		Blue:  blue[:],
		Luma:  luma[:],
	}
	for _, channel := range [][]float32{h.Red, h.Green, h.Blue, h.Luma} {
		smoothGaussian(channel, histogramSigma)
		normalizeAtPercentile(channel, histogramClipPercentile)
	}
	return h
}

// quantize maps a float sample to its 8-bit bin.
func quantize(v float32) int {
	bin := int(math.Round(float64(v) * 255))
	if bin < 0 {
		return 0
	}
	if bin > 255 {
		return 255
	}
	return bin
}

// lumaBin is the Rec.709 luma of three 8-bit bins, rounded to a bin.
func lumaBin(r, g, b int) int {
	l := int(math.Round(0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)))
	if l > 255 {
		l = 255
	}
	return l
}

// smoothGaussian convolves the histogram in place with a normalized
// gaussian kernel, clamping at the ends.
func smoothGaussian(hist []float32, sigma float64) {
	if sigma <= 0 {
		return
	}
	radius := int(math.Ceil(sigma * 3))
	if radius == 0 || radius >= len(hist) {
		return
	}

	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	twoSigmaSq := 2 * sigma * sigma
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-x * x / twoSigmaSq)
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	original := make([]float32, len(hist))
	copy(original, hist)
	for i := range hist {
		smoothed := 0.0
		for k, w := range kernel {
			j := i + k - radius
			if j < 0 {
				j = 0
			} else if j >= len(original) {
				j = len(original) - 1
			}
			smoothed += float64(original[j]) * w
		}
		hist[i] = float32(smoothed)
	}
}

// normalizeAtPercentile scales the histogram so the value at the given
// percentile maps to 1, clamping taller bins.
func normalizeAtPercentile(hist []float32, percentile float64) {
	if len(hist) == 0 {
		return
	}
	sorted := make([]float32, len(hist))
	copy(sorted, hist)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(math.Round(float64(len(sorted)-1) * percentile))
	peak := sorted[idx]
	if peak <= 1e-6 {
		for i := range hist {
			hist[i] = 0
		}
		return
	}
	inv := 1 / peak
	for i := range hist {
		v := hist[i] * inv
		if v > 1 {
			v = 1
		}
		hist[i] = v
	}
}
