package fovea

import "github.com/fovealab/fovea/internal/imagef"

// Image is the float pixel buffer every pipeline stage operates on.
// Samples are float32 in [0, 1] for display-referred content; raw
// development and EXR decoding may exceed 1 before tone mapping.
type Image = imagef.Image

// NewImage allocates a zeroed 3-channel float image.
func NewImage(width, height int) (*Image, error) {
	return imagef.NewRGB(width, height)
}

// NewImageRGBA allocates a zeroed 4-channel float image.
func NewImageRGBA(width, height int) (*Image, error) {
	return imagef.NewRGBA(width, height)
}

// ImageFromPix wraps an existing pixel slice. The slice length must be
// width*height*channels with channels 3 or 4.
func ImageFromPix(pix []float32, width, height, channels int) (*Image, error) {
	return imagef.FromPix(pix, width, height, channels)
}
