// Package loader decodes source images into the float pipeline format:
// camera raw containers through the raw developer, EXR and QOI through
// dedicated readers, everything else through the registered stdlib and
// x/image decoders with EXIF orientation applied.
package loader

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fovealab/fovea/adjust"
	"github.com/fovealab/fovea/cancel"
	"github.com/fovealab/fovea/internal/imagef"
	"github.com/fovealab/fovea/internal/parallel"
	"github.com/fovealab/fovea/raw"
)

// ErrRawPanic is returned when the raw developer panics on a malformed
// container. The panic is contained so one bad file cannot take down
// the host process.
var ErrRawPanic = errors.New("loader: raw developer panicked")

// Options controls loading.
type Options struct {
	// Fast selects the half-resolution raw preview path and skips the
	// artifact cleanup pass.
	Fast bool

	// HighlightCompression is forwarded to the raw developer.
	HighlightCompression float32

	// LinearMode is forwarded to the raw developer for linear-raw
	// sources.
	LinearMode string

	// Cancel is checked between decode stages.
	Cancel cancel.Token

	// Workers runs row loops. A transient pool is created when nil.
	Workers *parallel.WorkerPool

	// Rasterizer renders patch masks that carry no baked bitmap.
	// Patches needing it are skipped when nil.
	Rasterizer MaskRasterizer
}

// Load decodes the bytes of the named file into a float RGB image and
// composites any visible AI patches from the document over it.
func Load(data []byte, path string, doc adjust.Document, opts Options) (*imagef.Image, error) {
	base, err := LoadBase(data, path, opts)
	if err != nil {
		return nil, err
	}
	return CompositePatches(base, doc, opts)
}

// LoadBase decodes the bytes of the named file without patch
// compositing. The extension of path picks the decoder.
func LoadBase(data []byte, path string, opts Options) (*imagef.Image, error) {
	start := time.Now()

	if err := opts.Cancel.Err(); err != nil {
		return nil, err
	}

	var img *imagef.Image
	var err error
	switch {
	case hasExt(path, ".exr"):
		img, err = decodeEXR(data)
	case hasExt(path, ".qoi"):
		img, err = decodeQOI(data)
	case IsRawPath(path):
		img, err = developRaw(data, path, opts)
	default:
		img, err = decodeGeneral(data, opts.Cancel)
	}
	if err != nil {
		return nil, err
	}

	slogger().Debug("loader: base image loaded",
		"path", path,
		"width", img.Width, "height", img.Height,
		"elapsed", time.Since(start))
	return img, nil
}

// developRaw runs the raw developer with panic containment and applies
// the artifact cleanup pass on full-quality decodes.
func developRaw(data []byte, path string, opts Options) (img *imagef.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			slogger().Error("loader: panic while developing raw file",
				"path", path, "panic", fmt.Sprint(r))
			img, err = nil, fmt.Errorf("%w: %s", ErrRawPanic, path)
		}
	}()

	img, err = raw.Develop(data, raw.DevelopOptions{
		FastDemosaic:         opts.Fast,
		HighlightCompression: opts.HighlightCompression,
		LinearMode:           opts.LinearMode,
		Cancel:               opts.Cancel,
		Workers:              opts.Workers,
	})
	if err != nil {
		err = classifyRawError(path, err)
		slogger().Warn("loader: raw develop failed", "path", path, "err", err)
		return nil, err
	}

	if !opts.Fast {
		start := time.Now()
		pool := opts.Workers
		if pool == nil {
			pool = parallel.NewWorkerPool(0)
			defer pool.Close()
		}
		raw.CleanArtifacts(img, pool)
		slogger().Info("loader: raw enhancing finished",
			"path", path, "elapsed", time.Since(start))
	}
	return img, nil
}

// classifyRawError rewraps unsupported-compression failures with the
// file name so the shell can surface a targeted message.
func classifyRawError(path string, err error) error {
	if errors.Is(err, raw.ErrUnsupportedCompression) ||
		strings.Contains(strings.ToLower(err.Error()), "not supported") {
		return fmt.Errorf("unsupported raw compression in %q: %w", path, err)
	}
	return err
}
