package imagef

import (
	"errors"
	"math"
	"testing"
)

func TestNewImageValidation(t *testing.T) {
	if _, err := NewRGB(0, 10); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("NewRGB(0, 10) error = %v, want ErrInvalidDimensions", err)
	}
	if _, err := NewRGBA(4, -1); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("NewRGBA(4, -1) error = %v, want ErrInvalidDimensions", err)
	}

	img, err := NewRGB(4, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Pix) != 4*3*3 {
		t.Errorf("len(Pix) = %d, want %d", len(img.Pix), 4*3*3)
	}
}

func TestFromPix(t *testing.T) {
	pix := make([]float32, 2*2*3)
	if _, err := FromPix(pix, 2, 2, 5); !errors.Is(err, ErrInvalidChannels) {
		t.Errorf("channels=5 error = %v, want ErrInvalidChannels", err)
	}
	if _, err := FromPix(pix[:10], 2, 2, 3); !errors.Is(err, ErrDataTooSmall) {
		t.Errorf("short pix error = %v, want ErrDataTooSmall", err)
	}

	img, err := FromPix(pix, 2, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	// FromPix wraps without copying.
	pix[0] = 0.7
	if img.Pix[0] != 0.7 {
		t.Error("FromPix copied the pixel data")
	}
}

func TestCloneIsDeep(t *testing.T) {
	img, _ := NewRGB(2, 2)
	img.SetRGB(1, 1, 0.1, 0.2, 0.3)

	c := img.Clone()
	c.SetRGB(1, 1, 0.9, 0.9, 0.9)

	if r, _, _ := img.RGB(1, 1); r != 0.1 {
		t.Errorf("clone write leaked into source: r = %g", r)
	}
}

func TestRGBClampsCoordinates(t *testing.T) {
	img, _ := NewRGB(3, 2)
	img.SetRGB(2, 1, 0.5, 0.6, 0.7)

	if r, _, _ := img.RGB(10, 10); r != 0.5 {
		t.Errorf("out-of-range read r = %g, want edge value 0.5", r)
	}
	if _, g, _ := img.RGB(-3, 1); g == 0.6 {
		t.Error("negative x clamped to the wrong edge")
	}
}

func TestToRGBARoundTrip(t *testing.T) {
	img, _ := NewRGB(2, 1)
	img.SetRGB(0, 0, 0.25, 0.5, 0.75)

	rgba := img.ToRGBA()
	if rgba.Channels != 4 {
		t.Fatalf("ToRGBA channels = %d, want 4", rgba.Channels)
	}
	if rgba.Pix[3] != 1 {
		t.Errorf("alpha = %g, want 1", rgba.Pix[3])
	}
	if rgba.ToRGBA() != rgba {
		t.Error("ToRGBA on an RGBA image must return the same image")
	}

	rgb := rgba.ToRGB()
	if rgb.Channels != 3 {
		t.Fatalf("ToRGB channels = %d, want 3", rgb.Channels)
	}
	if r, g, b := rgb.RGB(0, 0); r != 0.25 || g != 0.5 || b != 0.75 {
		t.Errorf("round trip = %g,%g,%g, want 0.25,0.5,0.75", r, g, b)
	}
}

func TestOrientRotate90(t *testing.T) {
	// 2x1 row of red then green becomes a 1x2 column, red on top.
	img, _ := NewRGB(2, 1)
	img.SetRGB(0, 0, 1, 0, 0)
	img.SetRGB(1, 0, 0, 1, 0)

	out := Orient(img, OrientRotate90)
	if out.Width != 1 || out.Height != 2 {
		t.Fatalf("rotated %dx%d, want 1x2", out.Width, out.Height)
	}
	if r, _, _ := out.RGB(0, 0); r != 1 {
		t.Errorf("top pixel r = %g, want 1 (red)", r)
	}
	if _, g, _ := out.RGB(0, 1); g != 1 {
		t.Errorf("bottom pixel g = %g, want 1 (green)", g)
	}
}

func TestOrientIdentity(t *testing.T) {
	img, _ := NewRGB(2, 2)
	if Orient(img, OrientNormal) != img {
		t.Error("identity orientation must return the same image")
	}
	if Orient(img, Orientation(9)) != img {
		t.Error("out-of-range orientation must return the same image")
	}
}

func TestOrientSwaps(t *testing.T) {
	swapping := map[Orientation]bool{
		OrientNormal: false, OrientFlipH: false, OrientRotate180: false,
		OrientFlipV: false, OrientTranspose: true, OrientRotate90: true,
		OrientTransverse: true, OrientRotate270: true,
	}
	for o, want := range swapping {
		if o.Swaps() != want {
			t.Errorf("Orientation(%d).Swaps() = %v, want %v", o, o.Swaps(), want)
		}
	}
}

func TestOrientRoundTrip(t *testing.T) {
	// Rotating 90 then 270 restores the original layout.
	img, _ := NewRGB(3, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.SetRGB(x, y, float32(x)*0.1, float32(y)*0.1, 0)
		}
	}
	out := Orient(Orient(img, OrientRotate90), OrientRotate270)
	if out.Width != 3 || out.Height != 2 {
		t.Fatalf("round trip is %dx%d, want 3x2", out.Width, out.Height)
	}
	for i, v := range out.Pix {
		if v != img.Pix[i] {
			t.Fatalf("pixel data differs at %d: %g != %g", i, v, img.Pix[i])
		}
	}
}

func TestDownscaleAverages(t *testing.T) {
	// 2x2 block of 0 and 1 averages to 0.5.
	img, _ := NewRGB(2, 2)
	img.SetRGB(0, 0, 1, 1, 1)
	img.SetRGB(1, 1, 1, 1, 1)

	out := img.Downscale(1, 1)
	if r, g, b := out.RGB(0, 0); r != 0.5 || g != 0.5 || b != 0.5 {
		t.Errorf("average = %g,%g,%g, want 0.5", r, g, b)
	}
}

func TestDownscaleNotSmaller(t *testing.T) {
	img, _ := NewRGB(4, 4)
	if img.Downscale(8, 8) != img {
		t.Error("upscale request must return the source unchanged")
	}
	if img.Downscale(0, 2) != img {
		t.Error("degenerate target must return the source unchanged")
	}
}

func TestSampleBilinear(t *testing.T) {
	img, _ := NewRGB(2, 1)
	img.SetRGB(0, 0, 0, 0, 0)
	img.SetRGB(1, 0, 1, 1, 1)

	// Pixel centers sit at half-integer coordinates, so (1.0, 0.5) is the
	// midpoint between the two pixels.
	r, _, _ := img.SampleBilinear(1.0, 0.5)
	if math.Abs(float64(r)-0.5) > 1e-6 {
		t.Errorf("midpoint sample = %g, want 0.5", r)
	}

	if r, _, _ := img.SampleBilinear(0.5, 0.5); r != 0 {
		t.Errorf("center of first pixel = %g, want 0", r)
	}
}

func TestSampleBicubicInterpolatesExactPoints(t *testing.T) {
	img, _ := NewRGB(4, 4)
	img.SetRGB(2, 2, 0.8, 0.4, 0.2)

	// At a pixel center the spline passes through the sample exactly.
	r, g, b := img.SampleBicubic(2.5, 2.5)
	if math.Abs(float64(r)-0.8) > 1e-5 || math.Abs(float64(g)-0.4) > 1e-5 || math.Abs(float64(b)-0.2) > 1e-5 {
		t.Errorf("exact sample = %g,%g,%g, want 0.8,0.4,0.2", r, g, b)
	}
}
