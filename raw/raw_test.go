package raw

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/fovealab/fovea/cancel"
	"github.com/fovealab/fovea/internal/imagef"
	"github.com/fovealab/fovea/internal/parallel"
)

// containerSpec describes a synthetic TIFF-framed raw file.
type containerSpec struct {
	width, height int
	mosaic        []uint16
	compression   uint16
	orientation   uint16
	neutral       [][2]uint32 // AsShotNeutral rationals, omitted when nil
	truncateStrip bool
}

// buildContainer assembles a little-endian single-IFD raw container.
func buildContainer(t *testing.T, spec containerSpec) []byte {
	t.Helper()
	le := binary.LittleEndian

	type entry struct {
		tag, typ uint16
		count    uint32
		inline   [4]byte
		ext      []byte // external value bytes; inline becomes their offset
	}
	short := func(tag, v uint16) entry {
		e := entry{tag: tag, typ: 3, count: 1}
		le.PutUint16(e.inline[:2], v)
		return e
	}
	long := func(tag uint16, v uint32) entry {
		e := entry{tag: tag, typ: 4, count: 1}
		le.PutUint32(e.inline[:], v)
		return e
	}

	strip := make([]byte, len(spec.mosaic)*2)
	for i, v := range spec.mosaic {
		le.PutUint16(strip[i*2:], v)
	}
	stripLen := uint32(len(strip))
	if spec.truncateStrip {
		strip = strip[:len(strip)/2]
	}

	compression := spec.compression
	if compression == 0 {
		compression = 1
	}

	entries := []entry{
		long(tagImageWidth, uint32(spec.width)),
		long(tagImageHeight, uint32(spec.height)),
		short(tagBitsPerSample, 16),
		short(tagCompression, compression),
		short(tagPhotometric, photometricCFA),
		{tag: tagStripOffsets, typ: 4, count: 1, ext: strip},
		long(tagStripByteCounts, stripLen),
		{tag: tagCFAPattern, typ: 1, count: 4, inline: [4]byte{0, 1, 1, 2}},
		short(tagBlackLevel, 0),
		short(tagWhiteLevel, 65535),
	}
	if spec.orientation != 0 {
		entries = append(entries, short(tagOrientation, spec.orientation))
	}
	if spec.neutral != nil {
		rat := make([]byte, 0, len(spec.neutral)*8)
		for _, nd := range spec.neutral {
			rat = le.AppendUint32(rat, nd[0])
			rat = le.AppendUint32(rat, nd[1])
		}
		entries = append(entries, entry{tag: tagAsShotNeutral, typ: 5, count: uint32(len(spec.neutral)), ext: rat})
	}

	ifdSize := 2 + len(entries)*12 + 4
	extBase := uint32(8 + ifdSize)

	// Place external blobs after the IFD and patch the offsets in.
	ext := make([]byte, 0)
	for i := range entries {
		if entries[i].ext == nil {
			continue
		}
		le.PutUint32(entries[i].inline[:], extBase+uint32(len(ext)))
		ext = append(ext, entries[i].ext...)
	}

	out := make([]byte, 0, int(extBase)+len(ext))
	out = append(out, 'I', 'I')
	out = le.AppendUint16(out, 42)
	out = le.AppendUint32(out, 8) // root IFD right after the header
	out = le.AppendUint16(out, uint16(len(entries)))
	for _, e := range entries {
		out = le.AppendUint16(out, e.tag)
		out = le.AppendUint16(out, e.typ)
		out = le.AppendUint32(out, e.count)
		out = append(out, e.inline[:]...)
	}
	out = le.AppendUint32(out, 0) // no next IFD
	out = append(out, ext...)
	return out
}

func uniformMosaic(w, h int, v uint16) []uint16 {
	m := make([]uint16, w*h)
	for i := range m {
		m[i] = v
	}
	return m
}

func TestParseContainer(t *testing.T) {
	data := buildContainer(t, containerSpec{
		width: 4, height: 4,
		mosaic:      uniformMosaic(4, 4, 32768),
		orientation: 6,
		neutral:     [][2]uint32{{1, 2}, {1, 1}, {1, 1}},
	})

	s, err := ParseContainer(data)
	if err != nil {
		t.Fatalf("ParseContainer() error: %v", err)
	}
	if s.Width != 4 || s.Height != 4 {
		t.Errorf("sensor %dx%d, want 4x4", s.Width, s.Height)
	}
	if s.Linear {
		t.Error("CFA plane parsed as linear")
	}
	if s.CFA != [2][2]uint8{{0, 1}, {1, 2}} {
		t.Errorf("CFA = %v, want RGGB", s.CFA)
	}
	if s.WhiteLevel != 65535 || s.BlackLevel != 0 {
		t.Errorf("levels = %g/%g, want 0/65535", s.BlackLevel, s.WhiteLevel)
	}
	if s.Orientation != imagef.OrientRotate90 {
		t.Errorf("orientation = %d, want %d", s.Orientation, imagef.OrientRotate90)
	}
	// Neutral (0.5, 1, 1) inverts to gains (2, 1, 1).
	if s.WB != [3]float32{2, 1, 1} {
		t.Errorf("WB = %v, want {2, 1, 1}", s.WB)
	}
}

func TestParseContainerNotRaw(t *testing.T) {
	if _, err := ParseContainer([]byte("PNG or whatever")); !errors.Is(err, ErrNotRaw) {
		t.Errorf("error = %v, want ErrNotRaw", err)
	}
	if _, err := ParseContainer(nil); !errors.Is(err, ErrNotRaw) {
		t.Errorf("empty error = %v, want ErrNotRaw", err)
	}
}

func TestParseContainerUnsupportedCompression(t *testing.T) {
	data := buildContainer(t, containerSpec{
		width: 4, height: 4,
		mosaic:      uniformMosaic(4, 4, 1000),
		compression: 34713,
	})
	_, err := ParseContainer(data)
	if !errors.Is(err, ErrUnsupportedCompression) {
		t.Fatalf("error = %v, want ErrUnsupportedCompression", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "compression") || !strings.Contains(msg, "not supported") {
		t.Errorf("message %q lacks the compression taxonomy", msg)
	}
	if !strings.Contains(msg, "nef compression") {
		t.Errorf("message %q does not name the scheme", msg)
	}
}

func TestParseContainerTruncated(t *testing.T) {
	data := buildContainer(t, containerSpec{
		width: 4, height: 4,
		mosaic:        uniformMosaic(4, 4, 1000),
		truncateStrip: true,
	})
	if _, err := ParseContainer(data); !errors.Is(err, ErrTruncated) {
		t.Errorf("error = %v, want ErrTruncated", err)
	}
}

func TestDevelopUniform(t *testing.T) {
	data := buildContainer(t, containerSpec{
		width: 6, height: 6,
		mosaic: uniformMosaic(6, 6, 32768),
	})

	img, err := Develop(data, DevelopOptions{})
	if err != nil {
		t.Fatalf("Develop() error: %v", err)
	}
	if img.Width != 6 || img.Height != 6 {
		t.Fatalf("developed %dx%d, want 6x6", img.Width, img.Height)
	}
	// A uniform mosaic demosaics to a uniform grey.
	want := 32768.0 / 65535.0
	r, g, b := img.RGB(3, 3)
	for _, v := range []float32{r, g, b} {
		if math.Abs(float64(v)-want) > 1e-4 {
			t.Errorf("center pixel channel = %g, want %g", v, want)
		}
	}
}

func TestDevelopFastHalvesResolution(t *testing.T) {
	data := buildContainer(t, containerSpec{
		width: 8, height: 8,
		mosaic: uniformMosaic(8, 8, 20000),
	})

	img, err := Develop(data, DevelopOptions{FastDemosaic: true})
	if err != nil {
		t.Fatalf("Develop() error: %v", err)
	}
	if img.Width != 4 || img.Height != 4 {
		t.Errorf("fast develop %dx%d, want 4x4", img.Width, img.Height)
	}
}

func TestDevelopAppliesOrientation(t *testing.T) {
	data := buildContainer(t, containerSpec{
		width: 6, height: 4,
		mosaic:      uniformMosaic(6, 4, 10000),
		orientation: 6,
	})

	img, err := Develop(data, DevelopOptions{})
	if err != nil {
		t.Fatalf("Develop() error: %v", err)
	}
	if img.Width != 4 || img.Height != 6 {
		t.Errorf("oriented develop %dx%d, want 4x6", img.Width, img.Height)
	}
}

func TestDevelopCancelled(t *testing.T) {
	var c cancel.Counter
	tok := c.Next()
	c.Next() // supersede

	data := buildContainer(t, containerSpec{
		width: 4, height: 4,
		mosaic: uniformMosaic(4, 4, 1000),
	})
	if _, err := Develop(data, DevelopOptions{Cancel: tok}); !errors.Is(err, cancel.ErrCancelled) {
		t.Errorf("error = %v, want ErrCancelled", err)
	}
}

func TestLinearModeFlags(t *testing.T) {
	tests := []struct {
		mode          string
		ungamma, calb bool
	}{
		{"gamma", true, true},
		{"skip_calib", false, false},
		{"gamma_skip_calib", true, false},
		{"", false, true},
		{"anything", false, true},
	}
	for _, tt := range tests {
		u, c := linearModeFlags(tt.mode)
		if u != tt.ungamma || c != tt.calb {
			t.Errorf("linearModeFlags(%q) = %v,%v, want %v,%v", tt.mode, u, c, tt.ungamma, tt.calb)
		}
	}
}

func TestCompressHighlightsDesaturates(t *testing.T) {
	pool := parallel.NewWorkerPool(1)
	defer pool.Close()

	saturation := func(amount float32) (maxC, sat float32) {
		img, _ := imagef.NewRGB(1, 1)
		img.SetRGB(0, 0, 2.0, 0.5, 0.5)
		compressHighlights(img, amount, pool)
		r, g, b := img.RGB(0, 0)
		maxC = max32(r, max32(g, b))
		minC := min32(r, min32(g, b))
		return maxC, (maxC - minC) / maxC
	}

	maxLow, satLow := saturation(1.0)
	maxHigh, satHigh := saturation(3.0)

	// Luminance is preserved, cast retention grows with the knob.
	if maxLow != 2.0 || maxHigh != 2.0 {
		t.Errorf("max channel = %g/%g, want 2 (preserved)", maxLow, maxHigh)
	}
	if satLow != 0 {
		t.Errorf("saturation at full compression = %g, want 0", satLow)
	}
	if satHigh <= satLow || satHigh > 0.75 {
		t.Errorf("saturation at relaxed compression = %g, want in (0, 0.75]", satHigh)
	}
}

func TestCompressHighlightsLeavesUnclipped(t *testing.T) {
	pool := parallel.NewWorkerPool(1)
	defer pool.Close()

	img, _ := imagef.NewRGB(1, 1)
	img.SetRGB(0, 0, 0.9, 0.2, 0.1)
	compressHighlights(img, 2.0, pool)

	if r, g, b := img.RGB(0, 0); r != 0.9 || g != 0.2 || b != 0.1 {
		t.Errorf("unclipped pixel changed to %g,%g,%g", r, g, b)
	}
}

func TestFastScaleFactor(t *testing.T) {
	tests := []struct {
		sw, sh, dw, dh int
		want           float32
	}{
		{4000, 3000, 1000, 750, 0.25},
		{4000, 3000, 2000, 1500, 0.5},
		{4000, 3000, 4000, 3000, 1.0},
		{0, 0, 100, 100, 1.0},
	}
	for _, tt := range tests {
		if got := FastScaleFactor(tt.sw, tt.sh, tt.dw, tt.dh); got != tt.want {
			t.Errorf("FastScaleFactor(%d,%d,%d,%d) = %g, want %g", tt.sw, tt.sh, tt.dw, tt.dh, got, tt.want)
		}
	}
}

func TestSrgbToLinear(t *testing.T) {
	if got := srgbToLinear(0); got != 0 {
		t.Errorf("srgbToLinear(0) = %g, want 0", got)
	}
	if got := srgbToLinear(0.03); math.Abs(float64(got-0.03/12.92)) > 1e-7 {
		t.Errorf("toe segment = %g, want %g", got, 0.03/12.92)
	}
	if got := srgbToLinear(1); math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("srgbToLinear(1) = %g, want 1", got)
	}
}

func TestCleanArtifactsReducesChromaSpeckle(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	defer pool.Close()

	img, _ := imagef.NewRGB(16, 16)
	for i := range img.Pix {
		img.Pix[i] = 0.5
	}
	// A lone chroma spike on a flat field.
	img.SetRGB(8, 8, 0.6, 0.5, 0.5)

	_, cbBefore, crBefore := rgbToYCbCr(img.RGB(8, 8))
	magBefore := cbBefore*cbBefore + crBefore*crBefore

	CleanArtifacts(img, pool)

	_, cbAfter, crAfter := rgbToYCbCr(img.RGB(8, 8))
	magAfter := cbAfter*cbAfter + crAfter*crAfter
	if magAfter >= magBefore {
		t.Errorf("chroma magnitude %g did not drop below %g", magAfter, magBefore)
	}

	// The flat field stays flat.
	if r, g, b := img.RGB(2, 2); math.Abs(float64(r)-0.5) > 1e-2 || math.Abs(float64(g)-0.5) > 1e-2 || math.Abs(float64(b)-0.5) > 1e-2 {
		t.Errorf("flat region drifted to %g,%g,%g", r, g, b)
	}
}
