package fovea

import (
	"github.com/fovealab/fovea/internal/parallel"
	"github.com/fovealab/fovea/loader"
	"github.com/fovealab/fovea/render"
)

// PipelineOption configures a Pipeline during creation.
// Use functional options to customize Pipeline behavior.
//
// Example:
//
//	// Default configuration
//	p := fovea.NewPipeline()
//
//	// Shared device (dependency injection)
//	p := fovea.NewPipeline(fovea.WithDevice(dev))
type PipelineOption func(*pipelineOptions)

// pipelineOptions holds optional configuration for Pipeline creation.
type pipelineOptions struct {
	workers    int
	device     *render.Device
	rasterizer loader.MaskRasterizer
}

// defaultPipelineOptions returns the default pipeline options.
func defaultPipelineOptions() pipelineOptions {
	return pipelineOptions{
		workers: 0,   // Sized to GOMAXPROCS by the pool
		device:  nil, // Opened lazily on first Develop
	}
}

// WithWorkers sets the worker pool size used for CPU row loops.
// Zero or negative sizes the pool to GOMAXPROCS.
func WithWorkers(n int) PipelineOption {
	return func(o *pipelineOptions) {
		o.workers = n
	}
}

// WithDevice injects an externally owned GPU device. The pipeline will
// not open or close the device itself; the caller keeps ownership.
//
// Example:
//
//	dev, err := render.OpenDevice()
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//	p := fovea.NewPipeline(fovea.WithDevice(dev))
func WithDevice(dev *render.Device) PipelineOption {
	return func(o *pipelineOptions) {
		o.device = dev
	}
}

// WithMaskRasterizer sets the rasterizer used for AI patches that carry
// no baked mask bitmap. Without one such patches are skipped.
func WithMaskRasterizer(r loader.MaskRasterizer) PipelineOption {
	return func(o *pipelineOptions) {
		o.rasterizer = r
	}
}

// newPool builds the worker pool for the configured size.
func (o pipelineOptions) newPool() *parallel.WorkerPool {
	return parallel.NewWorkerPool(o.workers)
}
