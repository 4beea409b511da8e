package fovea

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/fovealab/fovea/adjust"
)

func grayImage(t *testing.T, w, h int, v float32) *Image {
	t.Helper()
	img, err := NewImage(w, h)
	if err != nil {
		t.Fatal(err)
	}
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestPreviewIdentityDocument(t *testing.T) {
	p := NewPipeline(WithWorkers(2))
	defer p.Close()

	src := grayImage(t, 8, 8, 0.5)
	out := p.Preview(src, adjust.Document{}, false)

	if out == src {
		t.Fatal("preview returned the source image, want a copy")
	}
	if r, g, b := out.RGB(3, 3); r != 0.5 || g != 0.5 || b != 0.5 {
		t.Errorf("non-raw preview changed pixels: %g,%g,%g", r, g, b)
	}
}

func TestPreviewRawToneCurve(t *testing.T) {
	p := NewPipeline(WithWorkers(2))
	defer p.Close()

	src := grayImage(t, 8, 8, 0.5)
	out := p.Preview(src, adjust.Document{}, true)

	if r, _, _ := out.RGB(0, 0); r == 0.5 {
		t.Error("raw preview left mid-grey untouched, want tone curve applied")
	}
	if r, _, _ := src.RGB(0, 0); r != 0.5 {
		t.Error("preview mutated the source image")
	}
}

func TestPreviewAppliesCrop(t *testing.T) {
	p := NewPipeline(WithWorkers(2))
	defer p.Close()

	src := grayImage(t, 100, 50, 0.25)
	doc := adjust.Document{
		"crop": map[string]any{
			"x":      0.25,
			"y":      0.0,
			"width":  0.5,
			"height": 1.0,
		},
	}
	out := p.Preview(src, doc, false)
	if out.Width != 50 || out.Height != 50 {
		t.Errorf("cropped preview is %dx%d, want 50x50", out.Width, out.Height)
	}
}

func TestLoadGeneralImage(t *testing.T) {
	p := NewPipeline(WithWorkers(2))
	defer p.Close()

	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 255, G: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	img, err := p.Load(buf.Bytes(), "frame.png", adjust.Document{}, LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if img.Width != 4 || img.Height != 3 {
		t.Errorf("loaded %dx%d, want 4x3", img.Width, img.Height)
	}
	if r, _, _ := img.RGB(0, 0); r != 1 {
		t.Errorf("loaded r = %g, want 1", r)
	}
}

func TestSetLoggerNilRestoresSilence(t *testing.T) {
	SetLogger(nil)
	if Logger() == nil {
		t.Fatal("Logger() returned nil")
	}
	if Logger().Enabled(t.Context(), 0) {
		t.Error("default logger should be disabled")
	}
}
