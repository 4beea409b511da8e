package loader

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/nfnt/resize"

	"github.com/fovealab/fovea/adjust"
	"github.com/fovealab/fovea/internal/imagef"
	"github.com/fovealab/fovea/internal/parallel"
)

// MaskRasterizer renders the influence plane of a patch that carries no
// baked mask bitmap. The returned plane has width*height values in
// [0, 1].
type MaskRasterizer interface {
	Rasterize(patch map[string]any, width, height int) ([]float32, error)
}

// CompositePatches blends the visible AI patches from the document over
// the base image and returns an RGBA result. Documents without patches
// return the base unchanged.
//
// A patch takes part when it is visible (default) and its patchData
// carries a non-empty color payload. Masks ship as base64 image
// bitmaps; patches without one go through the configured rasterizer or
// are skipped.
func CompositePatches(base *imagef.Image, doc adjust.Document, opts Options) (*imagef.Image, error) {
	patches := visiblePatches(doc)
	if len(patches) == 0 {
		return base, nil
	}

	pool := opts.Workers
	if pool == nil {
		pool = parallel.NewWorkerPool(0)
		defer pool.Close()
	}

	out := base.ToRGBA()
	if out == base {
		out = base.Clone()
	}

	applied := 0
	for _, patch := range patches {
		if err := opts.Cancel.Err(); err != nil {
			return nil, err
		}

		mask, err := patchMask(patch, base.Width, base.Height, opts.Rasterizer)
		if err != nil {
			return nil, err
		}
		if mask == nil {
			slogger().Debug("loader: patch skipped, no mask source")
			continue
		}

		patchImg, err := patchColor(patch, base.Width, base.Height)
		if err != nil {
			return nil, err
		}

		blendPatch(out, patchImg, mask, pool)
		applied++
	}

	slogger().Debug("loader: patches composited",
		"candidates", len(patches), "applied", applied)
	return out, nil
}

// visiblePatches filters the document's aiPatches array down to the
// entries that can contribute pixels.
func visiblePatches(doc adjust.Document) []map[string]any {
	arr, ok := doc["aiPatches"].([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, v := range arr {
		patch, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if visible, ok := patch["visible"].(bool); ok && !visible {
			continue
		}
		data, ok := patch["patchData"].(map[string]any)
		if !ok {
			continue
		}
		if color, ok := data["color"].(string); !ok || color == "" {
			continue
		}
		out = append(out, patch)
	}
	return out
}

// patchMask produces the patch's influence plane at base resolution:
// the baked bitmap when present, the rasterizer otherwise. Returns
// (nil, nil) when the patch has no mask source.
func patchMask(patch map[string]any, width, height int, rast MaskRasterizer) ([]float32, error) {
	data := patch["patchData"].(map[string]any)
	if b64, ok := data["mask"].(string); ok && b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("loader: decode patch mask: %w", err)
		}
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("loader: decode patch mask bitmap: %w", err)
		}
		if img.Bounds().Dx() != width || img.Bounds().Dy() != height {
			img = resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
		}
		return toGray(img), nil
	}

	if rast == nil {
		return nil, nil
	}
	plane, err := rast.Rasterize(patch, width, height)
	if err != nil {
		return nil, fmt.Errorf("loader: rasterize patch mask: %w", err)
	}
	return plane, nil
}

// patchColor decodes the patch's color payload at base resolution.
func patchColor(patch map[string]any, width, height int) (*imagef.Image, error) {
	data := patch["patchData"].(map[string]any)
	b64 := data["color"].(string)

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("loader: decode patch color: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("loader: decode patch color bitmap: %w", err)
	}
	if img.Bounds().Dx() != width || img.Bounds().Dy() != height {
		img = resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
	}
	return fromStdImage(img)
}

// blendPatch blends the patch over dst with the mask as straight alpha.
func blendPatch(dst, patch *imagef.Image, mask []float32, pool *parallel.WorkerPool) {
	w := dst.Width
	pool.ForRows(dst.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := dst.Row(y)
			src := patch.Row(y)
			for x := 0; x < w; x++ {
				a := mask[y*w+x]
				if a <= 0 {
					continue
				}
				inv := 1 - a
				row[x*4] = src[x*3]*a + row[x*4]*inv
				row[x*4+1] = src[x*3+1]*a + row[x*4+1]*inv
				row[x*4+2] = src[x*3+2]*a + row[x*4+2]*inv
			}
		}
	})
}
