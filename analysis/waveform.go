package analysis

import (
	"errors"
	"math"

	"github.com/fovealab/fovea/internal/imagef"
)

// Waveform scope dimensions. Columns track image x positions, rows map
// intensity with bright values at the top.
const (
	WaveformWidth  = 256
	WaveformHeight = 256
)

// ErrEmptyImage is returned when an image has no pixels to analyze.
var ErrEmptyImage = errors.New("analysis: empty image")

// Waveform holds per-channel intensity scopes as WaveformWidth x
// WaveformHeight count grids in row-major order.
type Waveform struct {
	Red    []uint32
	Green  []uint32
	Blue   []uint32
	Luma   []uint32
	Width  int
	Height int
}

// ComputeWaveform builds the waveform scope of an image. The image is
// downscaled to the scope width first so column density is independent
// of source resolution.
func ComputeWaveform(img *imagef.Image) (Waveform, error) {
	if img.Width == 0 || img.Height == 0 {
		return Waveform{}, ErrEmptyImage
	}
	previewH := int(math.Round(float64(img.Height) * WaveformWidth / float64(img.Width)))
	if previewH == 0 {
		return Waveform{}, ErrEmptyImage
	}
	preview := img.Downscale(WaveformWidth, previewH)

	wf := Waveform{
		Red:    make([]uint32, WaveformWidth*WaveformHeight),
		Green:  make([]uint32, WaveformWidth*WaveformHeight),
		Blue:   make([]uint32, WaveformWidth*WaveformHeight),
		Luma:   make([]uint32, WaveformWidth*WaveformHeight),
		Width:  WaveformWidth,
		Height: WaveformHeight,
	}

	ch := preview.Channels
	for y := 0; y < preview.Height; y++ {
		row := preview.Row(y)
		for x := 0; x < preview.Width && x < WaveformWidth; x++ {
			r := quantize(row[x*ch])
			g := quantize(row[x*ch+1])
			b := quantize(row[x*ch+2])

			wf.Red[(255-r)*WaveformWidth+x]++
			wf.Green[(255-g)*WaveformWidth+x]++
			wf.Blue[(255-b)*WaveformWidth+x]++
			wf.Luma[(255-lumaBin(r, g, b))*WaveformWidth+x]++
		}
	}
	return wf, nil
}
