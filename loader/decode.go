package loader

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/xfmoulet/qoi"

	// Register decoders for the general path.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/fovealab/fovea/cancel"
	"github.com/fovealab/fovea/internal/imagef"
)

// decodeQOI decodes a QOI stream into a float RGB image. QOI carries
// display-referred 8-bit values; they are kept as-is in [0, 1].
func decodeQOI(data []byte) (*imagef.Image, error) {
	img, err := qoi.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("loader: decode qoi: %w", err)
	}
	return fromStdImage(img)
}

// decodeGeneral decodes through the registered stdlib and x/image
// decoders and applies the EXIF orientation so the result is upright.
func decodeGeneral(data []byte, tok cancel.Token) (*imagef.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("loader: decode image: %w", err)
	}
	if err := tok.Err(); err != nil {
		return nil, err
	}

	out, err := fromStdImage(img)
	if err != nil {
		return nil, err
	}
	if err := tok.Err(); err != nil {
		return nil, err
	}

	orientation := exifOrientation(data)
	out = imagef.Orient(out, orientation)

	slogger().Debug("loader: image decoded",
		"format", format,
		"width", out.Width, "height", out.Height,
		"orientation", int(orientation))
	return out, nil
}

// exifOrientation extracts the EXIF orientation tag, defaulting to
// normal when metadata is absent or unreadable.
func exifOrientation(data []byte) imagef.Orientation {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return imagef.OrientNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return imagef.OrientNormal
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return imagef.OrientNormal
	}
	return imagef.Orientation(v)
}

// fromStdImage converts a decoded image.Image into a float RGB buffer.
// NRGBA stays on a fast path; everything else goes through At().
func fromStdImage(img image.Image) (*imagef.Image, error) {
	bounds := img.Bounds()
	out, err := imagef.NewRGB(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}

	if n, ok := img.(*image.NRGBA); ok {
		for y := 0; y < out.Height; y++ {
			src := n.Pix[y*n.Stride:]
			dst := out.Row(y)
			for x := 0; x < out.Width; x++ {
				dst[x*3] = float32(src[x*4]) / 255
				dst[x*3+1] = float32(src[x*4+1]) / 255
				dst[x*3+2] = float32(src[x*4+2]) / 255
			}
		}
		return out, nil
	}

	for y := 0; y < out.Height; y++ {
		dst := out.Row(y)
		for x := 0; x < out.Width; x++ {
			c := color.NRGBA64Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA64)
			dst[x*3] = float32(c.R) / 65535
			dst[x*3+1] = float32(c.G) / 65535
			dst[x*3+2] = float32(c.B) / 65535
		}
	}
	return out, nil
}

// toGray extracts a single-channel float plane from a decoded image,
// used for patch mask bitmaps.
func toGray(img image.Image) []float32 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]float32, w*h)
	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			src := g.Pix[y*g.Stride:]
			for x := 0; x < w; x++ {
				out[y*w+x] = float32(src[x]) / 255
			}
		}
		return out
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			out[y*w+x] = float32(c.Y) / 255
		}
	}
	return out
}
