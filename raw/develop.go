package raw

import (
	"time"

	"github.com/fovealab/fovea/cancel"
	"github.com/fovealab/fovea/internal/imagef"
	"github.com/fovealab/fovea/internal/parallel"
)

// DevelopOptions controls raw development.
type DevelopOptions struct {
	// FastDemosaic selects the half-resolution preview path.
	FastDemosaic bool

	// HighlightCompression controls how clipped highlights are desaturated.
	// Values at or below 1 collapse clipped pixels to neutral; larger values
	// retain progressively more of the original color cast.
	HighlightCompression float32

	// LinearMode tunes output for linear-raw sources:
	// "gamma" decodes the in-camera transfer curve and keeps calibration,
	// "skip_calib" keeps the curve and drops calibration,
	// "gamma_skip_calib" decodes the curve and drops calibration,
	// anything else keeps calibration and leaves the curve alone.
	LinearMode string

	// Cancel is checked between stages and inside row loops.
	Cancel cancel.Token

	// Workers runs the row loops. A transient pool is created when nil.
	Workers *parallel.WorkerPool
}

// Develop decodes and develops a raw container to an upright linear RGB image.
func Develop(data []byte, opts DevelopOptions) (*imagef.Image, error) {
	start := time.Now()

	if err := opts.Cancel.Err(); err != nil {
		return nil, err
	}

	sensor, err := ParseContainer(data)
	if err != nil {
		return nil, err
	}

	if err := opts.Cancel.Err(); err != nil {
		return nil, err
	}

	pool := opts.Workers
	if pool == nil {
		pool = parallel.NewWorkerPool(0)
		defer pool.Close()
	}

	applyUngamma, applyCalibration := linearModeFlags(opts.LinearMode)

	var img *imagef.Image
	if sensor.Linear {
		img = developLinear(sensor, applyUngamma, applyCalibration, pool)
	} else {
		norm := normalizeMosaic(sensor, applyCalibration, pool)
		if err := opts.Cancel.Err(); err != nil {
			return nil, err
		}
		if opts.FastDemosaic && sensor.Width >= 4 && sensor.Height >= 4 {
			img = demosaicHalf(sensor, norm, pool)
		} else {
			img = demosaicBilinear(sensor, norm, pool)
		}
	}

	if err := opts.Cancel.Err(); err != nil {
		return nil, err
	}

	compressHighlights(img, opts.HighlightCompression, pool)

	if err := opts.Cancel.Err(); err != nil {
		return nil, err
	}

	img = imagef.Orient(img, sensor.Orientation)

	slogger().Debug("raw develop complete",
		"width", img.Width, "height", img.Height,
		"fast", opts.FastDemosaic,
		"elapsed", time.Since(start))
	return img, nil
}

// linearModeFlags maps the LinearMode string to its two switches.
func linearModeFlags(mode string) (applyUngamma, applyCalibration bool) {
	switch mode {
	case "gamma":
		return true, true
	case "skip_calib":
		return false, false
	case "gamma_skip_calib":
		return true, false
	default:
		return false, true
	}
}

// normalizeMosaic maps the raw samples to [0, ~] floats: subtract the black
// level, divide by the white-black range, and apply white balance gains at
// each CFA site. Values may exceed 1 after white balance; highlight
// compression deals with those later.
func normalizeMosaic(s *SensorImage, applyWB bool, pool *parallel.WorkerPool) []float32 {
	norm := make([]float32, s.Width*s.Height)
	denom := s.WhiteLevel - s.BlackLevel
	if denom < 1 {
		denom = 1
	}
	inv := 1.0 / denom

	wb := s.WB
	if !applyWB {
		wb = [3]float32{1, 1, 1}
	}

	w := s.Width
	pool.ForRows(s.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := norm[y*w : (y+1)*w]
			src := s.Mosaic[y*w : (y+1)*w]
			for x := range row {
				v := (float32(src[x]) - s.BlackLevel) * inv
				if v < 0 {
					v = 0
				}
				row[x] = v * wb[s.colorAt(x, y)]
			}
		}
	})
	return norm
}

// developLinear handles in-camera demosaiced planes: normalize each channel
// and optionally decode the transfer curve back to linear.
func developLinear(s *SensorImage, applyUngamma, applyWB bool, pool *parallel.WorkerPool) *imagef.Image {
	out, _ := imagef.NewRGB(s.Width, s.Height)
	denom := s.WhiteLevel - s.BlackLevel
	if denom < 1 {
		denom = 1
	}
	inv := 1.0 / denom

	wb := s.WB
	if !applyWB {
		wb = [3]float32{1, 1, 1}
	}

	w := s.Width
	pool.ForRows(s.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			base := y * w * 3
			for i := base; i < base+w*3; i += 3 {
				for c := 0; c < 3; c++ {
					v := (float32(s.Mosaic[i+c]) - s.BlackLevel) * inv
					if v < 0 {
						v = 0
					}
					v *= wb[c]
					if applyUngamma {
						v = srgbToLinear(clamp01(v))
					}
					out.Pix[i+c] = v
				}
			}
		}
	})
	return out
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
