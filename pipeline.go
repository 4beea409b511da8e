package fovea

import (
	"log/slog"
	"sync"

	"github.com/fovealab/fovea/adjust"
	"github.com/fovealab/fovea/cancel"
	"github.com/fovealab/fovea/geometry"
	"github.com/fovealab/fovea/internal/imagef"
	"github.com/fovealab/fovea/internal/parallel"
	"github.com/fovealab/fovea/loader"
	"github.com/fovealab/fovea/render"
)

// LoadOptions controls a single Load call.
type LoadOptions struct {
	// Fast selects the half-resolution raw preview path and skips the
	// artifact cleanup pass.
	Fast bool

	// HighlightCompression is forwarded to the raw developer.
	HighlightCompression float32

	// LinearMode overrides the gamma and calibration handling for raw
	// sources: "gamma", "skip_calib" or "gamma_skip_calib". Any other
	// value selects the automatic default.
	LinearMode string
}

// DevelopInputs carries the per-frame collaborator data a Develop call
// needs beyond the adjustment document.
type DevelopInputs struct {
	// IsRaw enables the raw tone mapping path in the develop kernel.
	IsRaw bool

	// Masks are up to eight mask bitmaps matching the geometry-corrected
	// frame dimensions, in document mask order.
	Masks []*Image

	// LUT holds a LUTSize^3 RGB lookup table, or nil when the document
	// selects none.
	LUT     []float32
	LUTSize int
}

// Pipeline ties the processing stages together: decode, geometric
// correction, adjustment compilation and GPU rendering. One Pipeline
// serves one editing session; stages share its worker pool and caches.
//
// Pipeline is safe for concurrent use. The GPU device is opened lazily
// on the first Develop call.
type Pipeline struct {
	pool       *parallel.WorkerPool
	geom       *geometry.Engine
	rasterizer loader.MaskRasterizer
	cancels    cancel.Counter

	mu         sync.Mutex
	device     *render.Device
	ownsDevice bool
	renderer   *render.Renderer
	gpuErr     error
	gpuTried   bool
}

// NewPipeline creates a pipeline with the given options.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	o := defaultPipelineOptions()
	for _, opt := range opts {
		opt(&o)
	}
	pool := o.newPool()
	return &Pipeline{
		pool:       pool,
		geom:       geometry.NewEngine(pool),
		rasterizer: o.rasterizer,
		device:     o.device,
	}
}

// Close releases the pipeline's resources. An injected device is left
// open for its owner.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.renderer != nil {
		p.renderer.Close()
		p.renderer = nil
	}
	if p.device != nil && p.ownsDevice {
		p.device.Close()
	}
	p.device = nil
	p.mu.Unlock()

	p.geom.Close()
	p.pool.Close()
}

// CancelPending supersedes all in-flight loads. Work started before the
// call observes the bump at its next checkpoint and aborts with
// cancel.ErrCancelled.
func (p *Pipeline) CancelPending() {
	p.cancels.Next()
}

// Load decodes the bytes of the named file and composites any visible
// AI patches from the document over it. Each Load starts a new
// cancellation generation, superseding earlier ones.
func (p *Pipeline) Load(data []byte, path string, doc adjust.Document, opts LoadOptions) (*Image, error) {
	return loader.Load(data, path, doc, loader.Options{
		Fast:                 opts.Fast,
		HighlightCompression: opts.HighlightCompression,
		LinearMode:           opts.LinearMode,
		Cancel:               p.cancels.Next(),
		Workers:              p.pool,
		Rasterizer:           p.rasterizer,
	})
}

// Develop runs the full develop chain over a loaded image: geometric
// correction, crop, adjustment compilation and the GPU render. When no
// GPU adapter is available the call degrades to the CPU preview path.
func (p *Pipeline) Develop(src *Image, doc adjust.Document, in DevelopInputs) (*Image, error) {
	frame := p.applyGeometry(src, doc, imagef.InterpBicubic)

	all := adjust.Compile(doc, in.IsRaw)

	r, err := p.ensureRenderer()
	if err != nil {
		Logger().Warn("fovea: GPU unavailable, using CPU preview path",
			slog.String("error", err.Error()))
		return p.cpuPreview(frame, in.IsRaw), nil
	}
	return r.Render(frame, &all, in.Masks, in.LUT, in.LUTSize)
}

// Preview runs only the CPU stages: geometric correction plus the
// default raw tone curve. It never touches the GPU.
func (p *Pipeline) Preview(src *Image, doc adjust.Document, isRaw bool) *Image {
	return p.cpuPreview(p.applyGeometry(src, doc, imagef.InterpBilinear), isRaw)
}

// applyGeometry warps and crops src per the document.
func (p *Pipeline) applyGeometry(src *Image, doc adjust.Document, mode imagef.InterpolationMode) *Image {
	params := geometry.ParamsFromDocument(doc)
	frame := p.geom.Apply(src, params, geometry.Forward, mode)

	if r, ok := geometry.CropFromDocument(doc); ok && !r.IsFull() {
		frame = geometry.Crop(frame, r)
	}
	return frame
}

// cpuPreview clones the frame and applies the default raw tone curve
// for raw sources. Cached warp results are shared, so the clone keeps
// the tone pass from mutating them.
func (p *Pipeline) cpuPreview(frame *Image, isRaw bool) *Image {
	out := frame.Clone()
	if isRaw {
		geometry.DefaultRawTone(out, p.pool)
	}
	return out
}

// ensureRenderer opens the device and builds the compute pipelines once.
// A failed attempt is remembered so every Develop does not retry a
// missing adapter.
func (p *Pipeline) ensureRenderer() (*render.Renderer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.renderer != nil {
		return p.renderer, nil
	}
	if p.gpuTried {
		return nil, p.gpuErr
	}
	p.gpuTried = true

	dev := p.device
	if dev == nil {
		var err error
		dev, err = render.OpenDevice()
		if err != nil {
			p.gpuErr = err
			return nil, err
		}
		p.device = dev
		p.ownsDevice = true
	}

	r, err := render.NewRenderer(dev)
	if err != nil {
		if p.ownsDevice {
			dev.Close()
			p.device = nil
			p.ownsDevice = false
		}
		p.gpuErr = err
		return nil, err
	}
	p.renderer = r
	return r, nil
}
