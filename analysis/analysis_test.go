package analysis

import (
	"math"
	"testing"

	"github.com/fovealab/fovea/internal/imagef"
)

func uniformImage(w, h int, r, g, b float32) *imagef.Image {
	img, _ := imagef.NewRGB(w, h)
	for p := 0; p < w*h; p++ {
		img.Pix[p*3] = r
		img.Pix[p*3+1] = g
		img.Pix[p*3+2] = b
	}
	return img
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		v    float32
		want int
	}{
		{0, 0},
		{1, 255},
		{0.5, 128}, // 127.5 rounds half away from zero
		{-0.2, 0},
		{1.7, 255},
	}
	for _, tt := range tests {
		if got := quantize(tt.v); got != tt.want {
			t.Errorf("quantize(%g) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func TestComputeHistogramUniform(t *testing.T) {
	h := ComputeHistogram(uniformImage(16, 16, 0.5, 0.5, 0.5))

	// All mass sits around bin 128; the gaussian spreads it a little.
	peak := 0
	for i, v := range h.Red {
		if v > h.Red[peak] {
			peak = i
		}
	}
	if peak != 128 {
		t.Errorf("red histogram peak at bin %d, want 128", peak)
	}
	if h.Red[128] != 1 {
		t.Errorf("peak bin = %g, want 1 after normalization", h.Red[128])
	}
	if h.Red[0] != 0 {
		t.Errorf("empty bin = %g, want 0", h.Red[0])
	}
	if len(h.Luma) != histogramBins {
		t.Fatalf("luma bins = %d, want %d", len(h.Luma), histogramBins)
	}
}

func TestSmoothGaussianPreservesMass(t *testing.T) {
	hist := make([]float32, 256)
	hist[100] = 1000
	smoothGaussian(hist, 2.5)

	total := float32(0)
	for _, v := range hist {
		total += v
	}
	if math.Abs(float64(total-1000)) > 0.5 {
		t.Errorf("smoothed mass = %g, want ~1000", total)
	}
	if hist[100] >= 1000 {
		t.Error("smoothing did not spread the peak")
	}
	if hist[98] <= 0 || hist[102] <= 0 {
		t.Error("neighbors received no mass")
	}
}

func TestNormalizeAtPercentileClips(t *testing.T) {
	hist := make([]float32, 256)
	for i := range hist {
		hist[i] = 10
	}
	hist[0] = 1000 // outlier above the 99th percentile

	normalizeAtPercentile(hist, 0.99)
	if hist[0] != 1 {
		t.Errorf("outlier bin = %g, want clipped to 1", hist[0])
	}
	if hist[1] != 1 {
		t.Errorf("typical bin = %g, want 1 (normalized at percentile)", hist[1])
	}
}

func TestComputeWaveform(t *testing.T) {
	// Left half black, right half white.
	img, _ := imagef.NewRGB(512, 64)
	for y := 0; y < 64; y++ {
		row := img.Row(y)
		for x := 256; x < 512; x++ {
			row[x*3] = 1
			row[x*3+1] = 1
			row[x*3+2] = 1
		}
	}

	wf, err := ComputeWaveform(img)
	if err != nil {
		t.Fatal(err)
	}
	if wf.Width != WaveformWidth || wf.Height != WaveformHeight {
		t.Fatalf("waveform %dx%d, want %dx%d", wf.Width, wf.Height, WaveformWidth, WaveformHeight)
	}

	// Black pixels land in the bottom row, white in the top row.
	if wf.Luma[255*WaveformWidth+10] == 0 {
		t.Error("dark column has no counts in the bottom row")
	}
	if wf.Luma[0*WaveformWidth+200] == 0 {
		t.Error("bright column has no counts in the top row")
	}
	if wf.Luma[0*WaveformWidth+10] != 0 {
		t.Error("dark column has counts in the top row")
	}
}

func TestComputeWaveformEmpty(t *testing.T) {
	img := &imagef.Image{Width: 0, Height: 0, Channels: 3}
	if _, err := ComputeWaveform(img); err == nil {
		t.Error("empty image did not error")
	}
}

func TestAutoAnalyzeNeutral(t *testing.T) {
	// A mid-grey frame: exposure stays put, no shadow/highlight rescue.
	out := AutoAnalyze(uniformImage(64, 64, 0.5, 0.5, 0.5))
	if out.Highlights != 0 {
		t.Errorf("highlights = %g, want 0", out.Highlights)
	}
	if out.Shadows != 0 {
		t.Errorf("shadows = %g, want 0", out.Shadows)
	}
	if out.VignetteAmount != 0 {
		t.Errorf("vignette = %g, want 0", out.VignetteAmount)
	}
}

func TestAutoAnalyzeUnderexposed(t *testing.T) {
	// A dark gradient frame wants positive exposure and added contrast.
	img, _ := imagef.NewRGB(64, 64)
	for y := 0; y < 64; y++ {
		row := img.Row(y)
		for x := 0; x < 64; x++ {
			v := float32(x) / 64 * 0.3
			row[x*3] = v
			row[x*3+1] = v
			row[x*3+2] = v
		}
	}
	out := AutoAnalyze(img)
	if out.Exposure <= 0 {
		t.Errorf("exposure = %g, want > 0 for a dark frame", out.Exposure)
	}
	if out.Exposure > 5 {
		t.Errorf("exposure = %g, exceeds clamp", out.Exposure)
	}
	if out.Contrast <= 0 {
		t.Errorf("contrast = %g, want > 0 for a compressed range", out.Contrast)
	}
}

func TestAutoAnalyzeVignetted(t *testing.T) {
	// Bright center, dark borders.
	img, _ := imagef.NewRGB(64, 64)
	for y := 0; y < 64; y++ {
		row := img.Row(y)
		for x := 0; x < 64; x++ {
			v := float32(0.1)
			if x >= 16 && x < 48 && y >= 16 && y < 48 {
				v = 0.8
			}
			row[x*3] = v
			row[x*3+1] = v
			row[x*3+2] = v
		}
	}
	out := AutoAnalyze(img)
	if out.VignetteAmount >= 0 {
		t.Errorf("vignette = %g, want negative for dark borders", out.VignetteAmount)
	}
	if out.Centre <= 0 {
		t.Errorf("centre = %g, want positive lift on strong falloff", out.Centre)
	}
}

func TestAutoAdjustmentsDocument(t *testing.T) {
	doc := AutoAdjustments{Exposure: 1.5, Clarity: 20}.Document()
	if doc["exposure"] != 1.5 {
		t.Errorf("doc exposure = %v, want 1.5", doc["exposure"])
	}
	if _, ok := doc["temperature"]; ok {
		t.Error("white balance must not be applied automatically")
	}
	vis, ok := doc["sectionVisibility"].(map[string]any)
	if !ok || vis["basic"] != true {
		t.Error("document must mark sections visible")
	}
}
