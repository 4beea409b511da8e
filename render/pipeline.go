package render

import (
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/blur.wgsl
var shaderBlur string

//go:embed shaders/flare.wgsl
var shaderFlare string

//go:embed shaders/develop.wgsl
var shaderDevelop string

// fenceTimeout is the maximum time to wait for GPU work to complete.
// Generous so a full-resolution develop on a slow integrated adapter
// finishes rather than failing the render.
const fenceTimeout = 30 * time.Second

// stage identifies one of the compute stages in the develop pipeline.
type stage int

const (
	// stageBlurH is the horizontal half of the separable box blur. It
	// reads the full source plane at the tile offset.
	stageBlurH stage = iota

	// stageBlurV is the vertical half, operating on tile-local planes.
	stageBlurV

	// stageFlareThreshold extracts highlight energy into the flare map.
	stageFlareThreshold

	// stageFlareGhosts scatters the threshold map into ghost artifacts.
	stageFlareGhosts

	// stageDevelop applies the compiled adjustment block to one tile.
	stageDevelop

	stageCount
)

func (s stage) String() string {
	switch s {
	case stageBlurH:
		return "blur_h"
	case stageBlurV:
		return "blur_v"
	case stageFlareThreshold:
		return "flare_threshold"
	case stageFlareGhosts:
		return "flare_ghosts"
	case stageDevelop:
		return "develop"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// source returns the WGSL source for the stage. Blur and flare pairs
// share a source file and differ only in entry point.
func (s stage) source() string {
	switch s {
	case stageBlurH, stageBlurV:
		return shaderBlur
	case stageFlareThreshold, stageFlareGhosts:
		return shaderFlare
	case stageDevelop:
		return shaderDevelop
	default:
		return ""
	}
}

func (s stage) entryPoint() string {
	switch s {
	case stageBlurH:
		return "horizontal_blur"
	case stageBlurV:
		return "vertical_blur"
	case stageFlareThreshold:
		return "threshold"
	case stageFlareGhosts:
		return "ghosts"
	case stageDevelop:
		return "main"
	default:
		return ""
	}
}

// stageBindGroupLayoutEntries returns the bind group layout entries for a
// stage. These match the @group(0) @binding(N) annotations in the WGSL
// sources exactly.
func stageBindGroupLayoutEntries(s stage) []gputypes.BindGroupLayoutEntry {
	uniform := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		}
	}
	storageRO := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		}
	}
	storageRW := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		}
	}

	switch s {
	case stageBlurH, stageBlurV, stageFlareThreshold, stageFlareGhosts:
		// @binding(0) storage(read) src
		// @binding(1) storage(read_write) dst
		// @binding(2) uniform params
		return []gputypes.BindGroupLayoutEntry{
			storageRO(0), storageRW(1), uniform(2),
		}

	case stageDevelop:
		// @binding(0) storage(read) src               -- full image
		// @binding(1) storage(read_write) dst         -- tile output
		// @binding(2) uniform adjustments
		// @binding(3) storage(read) masks
		// @binding(4..7) storage(read) blur planes
		// @binding(8) storage(read) flare map
		// @binding(9) storage(read) lut
		// @binding(10) uniform frame
		return []gputypes.BindGroupLayoutEntry{
			storageRO(0), storageRW(1), uniform(2),
			storageRO(3),
			storageRO(4), storageRO(5), storageRO(6), storageRO(7),
			storageRO(8), storageRO(9),
			uniform(10),
		}

	default:
		return nil
	}
}

// pipelines owns the compiled compute pipelines for all stages.
type pipelines struct {
	device hal.Device

	pipelines       [stageCount]hal.ComputePipeline
	pipelineLayouts [stageCount]hal.PipelineLayout
	bgLayouts       [stageCount]hal.BindGroupLayout
	shaderModules   [stageCount]hal.ShaderModule

	mu          sync.Mutex
	initialized bool
}

func newPipelines(device hal.Device) *pipelines {
	return &pipelines{device: device}
}

// Init compiles all WGSL shaders and creates compute pipelines. It is
// safe to call multiple times; subsequent calls are no-ops.
func (p *pipelines) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	for i := stage(0); i < stageCount; i++ {
		name := "develop_" + i.String()

		module, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  name,
			Source: hal.ShaderSource{WGSL: i.source()},
		})
		if err != nil {
			p.destroyPartialInit(i)
			return fmt.Errorf("render: create shader module for %s: %w", i, err)
		}
		p.shaderModules[i] = module

		entries := stageBindGroupLayoutEntries(i)
		bgLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   name + "_bgl",
			Entries: entries,
		})
		if err != nil {
			p.destroyPartialInit(i + 1) // module was already stored
			return fmt.Errorf("render: create bind group layout for %s: %w", i, err)
		}
		p.bgLayouts[i] = bgLayout

		pipelineLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label:            name + "_pl",
			BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
		})
		if err != nil {
			p.destroyPartialInit(i + 1)
			return fmt.Errorf("render: create pipeline layout for %s: %w", i, err)
		}
		p.pipelineLayouts[i] = pipelineLayout

		pipeline, err := p.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  name,
			Layout: pipelineLayout,
			Compute: hal.ComputeState{
				Module:     module,
				EntryPoint: i.entryPoint(),
			},
		})
		if err != nil {
			p.destroyPartialInit(i + 1)
			return fmt.Errorf("render: create compute pipeline for %s: %w", i, err)
		}
		p.pipelines[i] = pipeline

		slogger().Debug("render: pipeline created",
			"stage", i.String(),
			"bindings", len(entries))
	}

	p.initialized = true
	return nil
}

// destroyPartialInit cleans up resources for stages [0, upTo) during a
// failed Init().
func (p *pipelines) destroyPartialInit(upTo stage) {
	for j := stage(0); j < upTo; j++ {
		if p.pipelines[j] != nil {
			p.device.DestroyComputePipeline(p.pipelines[j])
			p.pipelines[j] = nil
		}
		if p.pipelineLayouts[j] != nil {
			p.device.DestroyPipelineLayout(p.pipelineLayouts[j])
			p.pipelineLayouts[j] = nil
		}
		if p.bgLayouts[j] != nil {
			p.device.DestroyBindGroupLayout(p.bgLayouts[j])
			p.bgLayouts[j] = nil
		}
		if p.shaderModules[j] != nil {
			p.device.DestroyShaderModule(p.shaderModules[j])
			p.shaderModules[j] = nil
		}
	}
}

// Close releases all GPU resources. After Close the pipelines must be
// re-initialized with Init() before use.
func (p *pipelines) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.destroyPartialInit(stageCount)
	p.initialized = false
}
