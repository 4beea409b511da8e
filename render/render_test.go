package render

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/fovealab/fovea/internal/imagef"
)

func float32frombytes(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func TestTilesForSmallFrame(t *testing.T) {
	tiles := tilesFor(800, 600)
	if len(tiles) != 1 {
		t.Fatalf("tilesFor(800, 600) = %d tiles, want 1", len(tiles))
	}
	tl := tiles[0]
	if tl.X != 0 || tl.Y != 0 || tl.W != 800 || tl.H != 600 {
		t.Errorf("output region = %d,%d %dx%d, want 0,0 800x600", tl.X, tl.Y, tl.W, tl.H)
	}
	if tl.InW != 800 || tl.InH != 600 || tl.CropX != 0 || tl.CropY != 0 {
		t.Errorf("input region = %dx%d crop %d,%d, want no expansion", tl.InW, tl.InH, tl.CropX, tl.CropY)
	}
}

func TestTilesForLargeFrame(t *testing.T) {
	const w, h = 6000, 4000
	tiles := tilesFor(w, h)
	if len(tiles) != 6 { // 3 cols x 2 rows
		t.Fatalf("tilesFor(%d, %d) = %d tiles, want 6", w, h, len(tiles))
	}

	covered := make([]bool, w*h)
	for _, tl := range tiles {
		// Input region contains the output region plus overlap, clamped
		// to the frame.
		if tl.InX > tl.X || tl.InY > tl.Y {
			t.Errorf("tile %d,%d: input region starts after output region", tl.X, tl.Y)
		}
		if tl.InX+tl.InW < tl.X+tl.W || tl.InY+tl.InH < tl.Y+tl.H {
			t.Errorf("tile %d,%d: input region ends before output region", tl.X, tl.Y)
		}
		if tl.X > 0 && tl.X-tl.InX != tileOverlap {
			t.Errorf("tile %d,%d: left overlap = %d, want %d", tl.X, tl.Y, tl.X-tl.InX, tileOverlap)
		}
		if tl.CropX != tl.X-tl.InX || tl.CropY != tl.Y-tl.InY {
			t.Errorf("tile %d,%d: crop offset %d,%d does not locate output region", tl.X, tl.Y, tl.CropX, tl.CropY)
		}
		for y := tl.Y; y < tl.Y+tl.H; y++ {
			for x := tl.X; x < tl.X+tl.W; x++ {
				if covered[y*w+x] {
					t.Fatalf("pixel %d,%d covered twice", x, y)
				}
				covered[y*w+x] = true
			}
		}
	}
	for i, c := range covered {
		if !c {
			t.Fatalf("pixel %d,%d never covered", i%w, i/w)
		}
	}
}

func TestMaxTilePixels(t *testing.T) {
	if got := maxTilePixels(800, 600); got != 800*600 {
		t.Errorf("maxTilePixels(800, 600) = %d, want %d", got, 800*600)
	}
	want := (tileSize + 2*tileOverlap) * (tileSize + 2*tileOverlap)
	if got := maxTilePixels(10000, 10000); got != want {
		t.Errorf("maxTilePixels(10000, 10000) = %d, want %d", got, want)
	}
}

func TestScaledRadius(t *testing.T) {
	// At the reference short edge the base radii pass through.
	if got := scaledRadius(radiusStructure, 1.0); got != 40 {
		t.Errorf("scaledRadius(40, 1.0) = %d, want 40", got)
	}
	// A 4x frame scales radii up; fractional results round up.
	if got := scaledRadius(radiusTonal, 4.0); got != 12 {
		t.Errorf("scaledRadius(3, 4.0) = %d, want 12", got)
	}
	// Small previews never collapse a radius to zero.
	if got := scaledRadius(radiusSharpness, 0.1); got != 1 {
		t.Errorf("scaledRadius(1, 0.1) = %d, want 1", got)
	}
}

func TestUniformSizes(t *testing.T) {
	if got := len(uniformBytes(blurParams{})); got != 32 {
		t.Errorf("blurParams encodes to %d bytes, want 32", got)
	}
	if got := len(uniformBytes(flareParams{})); got != 48 {
		t.Errorf("flareParams encodes to %d bytes, want 48", got)
	}
	if got := len(uniformBytes(frameParams{})); got != 32 {
		t.Errorf("frameParams encodes to %d bytes, want 32", got)
	}
}

func TestPackImageForcesAlpha(t *testing.T) {
	img, err := imagef.NewRGB(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	img.SetRGB(0, 0, 0.25, 0.5, 0.75)
	img.SetRGB(1, 0, 1, 0, 0)

	packed := packImage(img)
	if len(packed) != 2*bytesPerPixel {
		t.Fatalf("packed %d bytes, want %d", len(packed), 2*bytesPerPixel)
	}

	out, err := imagef.NewRGB(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	unpackTile(packed, tile{W: 2, H: 1, InW: 2, InH: 1}, out)
	for i, want := range []float32{0.25, 0.5, 0.75, 1, 0, 0} {
		if out.Pix[i] != want {
			t.Errorf("pix[%d] = %g, want %g", i, out.Pix[i], want)
		}
	}
}

func TestUnpackTileCropsOverlap(t *testing.T) {
	// 4x1 input region whose output region is the middle 2 pixels.
	in, err := imagef.NewRGB(4, 1)
	if err != nil {
		t.Fatal(err)
	}
	for x := 0; x < 4; x++ {
		in.SetRGB(x, 0, float32(x), 0, 0)
	}
	packed := packImage(in)

	out, err := imagef.NewRGB(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	unpackTile(packed, tile{X: 0, Y: 0, W: 2, H: 1, InW: 4, InH: 1, CropX: 1}, out)

	if r, _, _ := out.RGB(0, 0); r != 1 {
		t.Errorf("out(0,0).r = %g, want 1", r)
	}
	if r, _, _ := out.RGB(1, 0); r != 2 {
		t.Errorf("out(1,0).r = %g, want 2", r)
	}
}

func TestPackMasksUsesAlphaPlane(t *testing.T) {
	rgba, err := imagef.NewRGBA(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	rgba.Pix[3] = 0.5  // alpha of pixel 0
	rgba.Pix[7] = 0.75 // alpha of pixel 1

	packed := packMasks([]*imagef.Image{rgba}, 1, 2)
	if len(packed) != 8 {
		t.Fatalf("packed %d bytes, want 8", len(packed))
	}
	got0 := float32frombytes(packed[0:4])
	got1 := float32frombytes(packed[4:8])
	if got0 != 0.5 || got1 != 0.75 {
		t.Errorf("mask plane = %g, %g, want 0.5, 0.75", got0, got1)
	}
}

func TestHashPixDistinguishes(t *testing.T) {
	a := make([]float32, 1000)
	b := make([]float32, 1000)
	b[0] = 0.001
	if hashPix(a) == hashPix(b) {
		t.Error("distinct planes hash equal")
	}
	if hashPix(a) != hashPix(a) {
		t.Error("hash is not deterministic")
	}
}
