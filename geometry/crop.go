package geometry

import "github.com/fovealab/fovea/internal/imagef"

// CropRect is a crop region in normalized [0,1] image coordinates.
type CropRect struct {
	X, Y, Width, Height float64
}

// CropFromDocument reads the crop rect from an adjustment document.
// Returns ok=false when the document carries no crop.
func CropFromDocument(doc map[string]any) (CropRect, bool) {
	c, ok := doc["crop"].(map[string]any)
	if !ok {
		return CropRect{}, false
	}
	r := CropRect{
		X:      float64(docF32(c, "x", 0)),
		Y:      float64(docF32(c, "y", 0)),
		Width:  float64(docF32(c, "width", 1)),
		Height: float64(docF32(c, "height", 1)),
	}
	return r, true
}

// IsFull reports whether the rect covers the entire image.
func (r CropRect) IsFull() bool {
	return r.X <= 0 && r.Y <= 0 && r.Width >= 1 && r.Height >= 1
}

// Crop extracts the region from src. Coordinates are clamped to the image
// and degenerate rects fall back to the full frame.
func Crop(src *imagef.Image, r CropRect) *imagef.Image {
	x0 := clampInt(int(r.X*float64(src.Width)+0.5), 0, src.Width-1)
	y0 := clampInt(int(r.Y*float64(src.Height)+0.5), 0, src.Height-1)
	w := clampInt(int(r.Width*float64(src.Width)+0.5), 1, src.Width-x0)
	h := clampInt(int(r.Height*float64(src.Height)+0.5), 1, src.Height-y0)

	if x0 == 0 && y0 == 0 && w == src.Width && h == src.Height {
		return src
	}

	var out *imagef.Image
	if src.Channels == 4 {
		out, _ = imagef.NewRGBA(w, h)
	} else {
		out, _ = imagef.NewRGB(w, h)
	}
	ch := src.Channels
	for y := 0; y < h; y++ {
		srcRow := src.Row(y + y0)
		copy(out.Row(y), srcRow[x0*ch:(x0+w)*ch])
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
