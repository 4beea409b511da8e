// Package fovea is the processing core of a raw photo editor.
//
// # Overview
//
// fovea turns camera files into developed images: it decodes raw sensor
// containers (plus EXR, QOI and the common display formats), applies
// geometric corrections, compiles a schemaless adjustment document into a
// packed GPU parameter block, and renders the result through a tiled
// compute pipeline.
//
// # Quick Start
//
//	import "github.com/fovealab/fovea"
//
//	p := fovea.NewPipeline()
//	defer p.Close()
//
//	img, err := p.Load(data, "shot.nef", doc, fovea.LoadOptions{})
//	if err != nil {
//	    return err
//	}
//	out, err := p.Develop(img, doc, fovea.DevelopInputs{IsRaw: true})
//
// # Architecture
//
// The library is organized into:
//   - Public API: Pipeline, Image, LoadOptions, DevelopInputs
//   - raw: sensor container parsing and development
//   - geometry: cached CPU warps (rotation, perspective, lens corrections)
//   - adjust: adjustment document compilation to packed GPU layouts
//   - render: wgpu compute pipeline (blur planes, flare map, develop kernel)
//   - loader: format dispatch, EXIF orientation, AI patch compositing
//   - analysis: histograms, waveform scope, auto-adjust statistics
//
// # GPU Fallback
//
// The GPU device is opened lazily on the first Develop call. When no
// adapter is available the pipeline degrades to the CPU preview path
// (geometry plus the default raw tone curve) with a warning log.
package fovea

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"
)
