// Package imagef provides float32 image buffers for the develop pipeline.
//
// All pipeline stages exchange interleaved float32 images: RGB while an
// image is being developed and warped, RGBA once patches or masks enter
// the picture. Values are linear and nominally in [0, 1], but stages may
// produce out-of-range values (highlight reconstruction, HDR sources);
// clamping happens only where a stage requires it.
package imagef

import (
	"errors"
)

// Common errors for image buffer operations.
var (
	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = errors.New("imagef: invalid dimensions")

	// ErrInvalidChannels is returned when the channel count is not 3 or 4.
	ErrInvalidChannels = errors.New("imagef: channel count must be 3 or 4")

	// ErrDataTooSmall is returned when provided data is smaller than required.
	ErrDataTooSmall = errors.New("imagef: data buffer too small")
)

// Image is an interleaved float32 image buffer.
//
// Pix holds Width*Height*Channels values in row-major order. Channels is
// 3 (RGB) or 4 (RGBA, straight alpha).
//
// Thread safety: Image is safe for concurrent read access. Writes require
// external synchronization.
type Image struct {
	Pix      []float32
	Width    int
	Height   int
	Channels int
}

// NewRGB creates a zeroed RGB image buffer.
func NewRGB(width, height int) (*Image, error) {
	return newImage(width, height, 3)
}

// NewRGBA creates a zeroed RGBA image buffer.
func NewRGBA(width, height int) (*Image, error) {
	return newImage(width, height, 4)
}

func newImage(width, height, channels int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	return &Image{
		Pix:      make([]float32, width*height*channels),
		Width:    width,
		Height:   height,
		Channels: channels,
	}, nil
}

// FromPix wraps existing pixel data without copying.
// The caller must ensure len(pix) >= width*height*channels.
func FromPix(pix []float32, width, height, channels int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if channels != 3 && channels != 4 {
		return nil, ErrInvalidChannels
	}
	if len(pix) < width*height*channels {
		return nil, ErrDataTooSmall
	}
	return &Image{Pix: pix, Width: width, Height: height, Channels: channels}, nil
}

// Clone returns a deep copy of the image.
func (m *Image) Clone() *Image {
	pix := make([]float32, len(m.Pix))
	copy(pix, m.Pix)
	return &Image{Pix: pix, Width: m.Width, Height: m.Height, Channels: m.Channels}
}

// PixelOffset returns the index of the first channel of pixel (x, y).
// Coordinates are not bounds-checked.
func (m *Image) PixelOffset(x, y int) int {
	return (y*m.Width + x) * m.Channels
}

// RGB returns the color at (x, y) with coordinates clamped to the edge.
func (m *Image) RGB(x, y int) (r, g, b float32) {
	if x < 0 {
		x = 0
	} else if x >= m.Width {
		x = m.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= m.Height {
		y = m.Height - 1
	}
	i := m.PixelOffset(x, y)
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// SetRGB writes the color at (x, y). Coordinates must be in bounds.
// For RGBA images the alpha channel is left untouched.
func (m *Image) SetRGB(x, y int, r, g, b float32) {
	i := m.PixelOffset(x, y)
	m.Pix[i] = r
	m.Pix[i+1] = g
	m.Pix[i+2] = b
}

// Row returns the pixel data of row y without copying.
func (m *Image) Row(y int) []float32 {
	start := y * m.Width * m.Channels
	return m.Pix[start : start+m.Width*m.Channels]
}

// ToRGBA returns the image with an alpha channel. RGB images gain an
// opaque alpha; RGBA images are returned as-is.
func (m *Image) ToRGBA() *Image {
	if m.Channels == 4 {
		return m
	}
	out, _ := NewRGBA(m.Width, m.Height)
	for p := 0; p < m.Width*m.Height; p++ {
		si := p * 3
		di := p * 4
		out.Pix[di] = m.Pix[si]
		out.Pix[di+1] = m.Pix[si+1]
		out.Pix[di+2] = m.Pix[si+2]
		out.Pix[di+3] = 1
	}
	return out
}

// ToRGB drops the alpha channel. RGB images are returned as-is.
func (m *Image) ToRGB() *Image {
	if m.Channels == 3 {
		return m
	}
	out, _ := NewRGB(m.Width, m.Height)
	for p := 0; p < m.Width*m.Height; p++ {
		si := p * 4
		di := p * 3
		out.Pix[di] = m.Pix[si]
		out.Pix[di+1] = m.Pix[si+1]
		out.Pix[di+2] = m.Pix[si+2]
	}
	return out
}
