package render

import (
	"errors"
	"fmt"
	"math"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/fovealab/fovea/adjust"
	"github.com/fovealab/fovea/cache"
	"github.com/fovealab/fovea/internal/imagef"
)

const (
	// flareMapSize is the fixed resolution of the lens flare map.
	flareMapSize = 512

	// adjustUniformSize is the byte size of the adjustment uniform.
	adjustUniformSize = adjust.AllAdjustmentsSize

	// referenceShortEdge normalizes blur radii so an edit looks the same
	// at preview and export resolution.
	referenceShortEdge = 1080.0

	// flareBlurRadius smooths the flare map after the ghost pass.
	flareBlurRadius = 12
)

// Base radii for the four detail blur planes, scaled by frame size.
const (
	radiusSharpness = 1.0
	radiusTonal     = 3.0
	radiusClarity   = 8.0
	radiusStructure = 40.0
)

// ErrInvalidInput is returned when the source image or mask dimensions
// are unusable.
var ErrInvalidInput = errors.New("render: invalid input image")

// renderCacheCapacity bounds the number of fully rendered frames kept.
// Rendered frames are large, so the cache stays small.
const renderCacheCapacity = 4

type renderKey struct {
	srcHash uint64
	adjHash uint64
	width   int
	height  int
}

// Renderer runs the develop pipeline on a GPU device. It is not safe
// for concurrent use.
type Renderer struct {
	device *Device
	pipes  *pipelines
	cache  *cache.Bounded[renderKey, *imagef.Image]
}

// NewRenderer creates a renderer on the given device and compiles the
// compute pipelines.
func NewRenderer(device *Device) (*Renderer, error) {
	r := &Renderer{
		device: device,
		pipes:  newPipelines(device.device),
		cache:  cache.NewBounded[renderKey, *imagef.Image](renderCacheCapacity),
	}
	if err := r.pipes.Init(); err != nil {
		return nil, err
	}
	return r, nil
}

// Close releases the compiled pipelines. The device is not closed; the
// caller owns it.
func (r *Renderer) Close() {
	r.pipes.Close()
	r.cache.Clear()
}

// CacheStats reports counters for the rendered-frame cache.
func (r *Renderer) CacheStats() cache.Stats {
	return r.cache.Stats()
}

// Render develops src with the compiled adjustments and returns a new
// RGB image of the same dimensions. Masks are per-pixel influence
// planes matching the source dimensions; lut holds lutSize^3 RGB
// triples in red-fastest order, or is nil when no LUT is set.
//
// Frames whose pixel buffer exceeds the device's buffer limit are
// returned unprocessed with a warning rather than failing the edit.
func (r *Renderer) Render(src *imagef.Image, all *adjust.AllAdjustments, masks []*imagef.Image, lut []float32, lutSize int) (*imagef.Image, error) {
	if src == nil || src.Width <= 0 || src.Height <= 0 {
		return nil, ErrInvalidInput
	}
	for _, m := range masks {
		if m == nil || m.Width != src.Width || m.Height != src.Height {
			return nil, fmt.Errorf("%w: mask dimensions must match source", ErrInvalidInput)
		}
	}

	fullBytes := uint64(src.Width) * uint64(src.Height) * bytesPerPixel
	if limit := gputypes.DefaultLimits().MaxBufferSize; fullBytes > limit {
		slogger().Warn("render: frame exceeds device buffer limit, returning source",
			"frame_bytes", fullBytes, "limit", limit)
		return src.Clone(), nil
	}

	key := renderKey{
		srcHash: hashPix(src.Pix),
		adjHash: cache.Hash64(all.Bytes()),
		width:   src.Width,
		height:  src.Height,
	}
	for _, m := range masks {
		key.adjHash ^= hashPix(m.Pix)
	}
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	start := time.Now()
	out, err := r.render(src, all, masks, lut, lutSize)
	if err != nil {
		return nil, err
	}
	slogger().Debug("render: frame developed",
		"size", fmt.Sprintf("%dx%d", src.Width, src.Height),
		"tiles", len(tilesFor(src.Width, src.Height)),
		"masks", len(masks),
		"elapsed", time.Since(start))

	r.cache.Set(key, out)
	return out, nil
}

func (r *Renderer) render(src *imagef.Image, all *adjust.AllAdjustments, masks []*imagef.Image, lut []float32, lutSize int) (*imagef.Image, error) {
	bufs, err := r.createFrameBuffers(src.Width, src.Height, len(masks), len(lut)/3)
	if err != nil {
		return nil, err
	}
	defer r.destroyFrameBuffers(bufs)

	queue := r.device.queue
	queue.WriteBuffer(bufs.Input, 0, packImage(src))
	if len(masks) > 0 {
		queue.WriteBuffer(bufs.Masks, 0, packMasks(masks, src.Width, src.Height))
	}
	if len(lut) > 0 {
		queue.WriteBuffer(bufs.LUT, 0, packLUT(lut))
	}

	if all.Global.FlareAmount > 0 {
		if err := r.renderFlareMap(bufs, all, src.Width, src.Height); err != nil {
			return nil, err
		}
	}

	// Blur radii track the short edge so edits look identical across
	// preview and export resolutions.
	scale := float64(min(src.Width, src.Height)) / referenceShortEdge
	radii := [4]uint32{
		scaledRadius(radiusSharpness, scale),
		scaledRadius(radiusTonal, scale),
		scaledRadius(radiusClarity, scale),
		scaledRadius(radiusStructure, scale),
	}

	out, err := imagef.NewRGB(src.Width, src.Height)
	if err != nil {
		return nil, err
	}

	for _, t := range tilesFor(src.Width, src.Height) {
		if err := r.renderTile(bufs, all, t, src.Width, src.Height, radii, lutSize, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// scaledRadius converts a base radius at the reference size into the
// pixel radius for the current frame. Radii never drop below one pixel.
func scaledRadius(base, scale float64) uint32 {
	r := math.Ceil(base * scale)
	if r < 1 {
		r = 1
	}
	return uint32(r)
}

// renderFlareMap runs the flare prepass: threshold the source into a
// 512x512 map, scatter ghost artifacts, then smooth the result.
func (r *Renderer) renderFlareMap(bufs *frameBuffers, all *adjust.AllAdjustments, width, height int) error {
	g := &all.Global
	r.device.queue.WriteBuffer(bufs.FlareParams, 0, uniformBytes(flareParams{
		Amount:      g.FlareAmount,
		IsRaw:       g.IsRawImage,
		Exposure:    g.Exposure,
		Brightness:  g.Brightness,
		Contrast:    g.Contrast,
		Whites:      g.Whites,
		AspectRatio: float32(width) / float32(height),
		FullWidth:   uint32(width),
		FullHeight:  uint32(height),
	}))

	const groups = flareMapSize / 16
	if err := r.runPass(stageFlareThreshold, []bindBuf{
		{0, bufs.Input}, {1, bufs.FlareA}, {2, bufs.FlareParams},
	}, groups, groups); err != nil {
		return err
	}
	if err := r.runPass(stageFlareGhosts, []bindBuf{
		{0, bufs.FlareA}, {1, bufs.FlareB}, {2, bufs.FlareParams},
	}, groups, groups); err != nil {
		return err
	}

	// Smooth the ghost map with the shared blur passes; the map is its
	// own full frame, so offsets are zero and both extents are 512.
	r.device.queue.WriteBuffer(bufs.BlurParams, 0, uniformBytes(blurParams{
		Radius:      flareBlurRadius,
		InputWidth:  flareMapSize,
		InputHeight: flareMapSize,
		FullWidth:   flareMapSize,
		FullHeight:  flareMapSize,
	}))
	return r.runBlurPair(bufs.FlareB, bufs.FlareA, bufs.FlareMap, bufs.BlurParams,
		flareMapSize, flareMapSize)
}

// renderTile develops one tile: four blur planes, then the develop
// kernel, then readback into the stitched output.
func (r *Renderer) renderTile(bufs *frameBuffers, all *adjust.AllAdjustments, t tile, fullW, fullH int, radii [4]uint32, lutSize int, out *imagef.Image) error {
	queue := r.device.queue

	planes := [4]hal.Buffer{bufs.BlurSharpness, bufs.BlurTonal, bufs.BlurClarity, bufs.BlurStructure}
	for i, plane := range planes {
		queue.WriteBuffer(bufs.BlurParams, 0, uniformBytes(blurParams{
			Radius:      radii[i],
			TileOffsetX: uint32(t.InX),
			TileOffsetY: uint32(t.InY),
			InputWidth:  uint32(t.InW),
			InputHeight: uint32(t.InH),
			FullWidth:   uint32(fullW),
			FullHeight:  uint32(fullH),
		}))
		if err := r.runBlurPair(bufs.Input, bufs.BlurPing, plane, bufs.BlurParams, t.InW, t.InH); err != nil {
			return err
		}
	}

	// The adjustment block is shared across tiles except for the tile
	// offset, which the kernels use to index the full-image planes.
	all.TileOffsetX = uint32(t.InX)
	all.TileOffsetY = uint32(t.InY)
	queue.WriteBuffer(bufs.Adjust, 0, all.Bytes())
	queue.WriteBuffer(bufs.Frame, 0, uniformBytes(frameParams{
		FullWidth:   uint32(fullW),
		FullHeight:  uint32(fullH),
		InputWidth:  uint32(t.InW),
		InputHeight: uint32(t.InH),
		LUTSize:     uint32(lutSize),
	}))

	tileBytes := uint64(t.InW) * uint64(t.InH) * bytesPerPixel
	err := r.runPassWithCopy(stageDevelop, []bindBuf{
		{0, bufs.Input}, {1, bufs.Output}, {2, bufs.Adjust},
		{3, bufs.Masks},
		{4, bufs.BlurSharpness}, {5, bufs.BlurTonal},
		{6, bufs.BlurClarity}, {7, bufs.BlurStructure},
		{8, bufs.FlareMap}, {9, bufs.LUT},
		{10, bufs.Frame},
	}, uint32(t.InW+7)/8, uint32(t.InH+7)/8, bufs.Output, bufs.Staging, tileBytes)
	if err != nil {
		return err
	}

	mapping, err := r.device.device.MapBuffer(bufs.Staging, 0, tileBytes)
	if err != nil {
		return fmt.Errorf("render: readback tile at %d,%d: %w", t.X, t.Y, err)
	}
	readback := make([]byte, tileBytes)
	copy(readback, unsafe.Slice((*byte)(mapping.Ptr), tileBytes))
	if err := r.device.device.UnmapBuffer(bufs.Staging); err != nil {
		return fmt.Errorf("render: readback tile at %d,%d: %w", t.X, t.Y, err)
	}
	unpackTile(readback, t, out)
	return nil
}

// runBlurPair runs the horizontal and vertical blur passes in one
// submission. The horizontal pass reads src (a full-image plane at the
// uniform's tile offset) into ping; the vertical pass reads ping into
// dst. Both passes share the params uniform already written.
func (r *Renderer) runBlurPair(src, ping, dst, params hal.Buffer, inW, inH int) error {
	hBG, err := r.createBindGroup(stageBlurH, []bindBuf{{0, src}, {1, ping}, {2, params}})
	if err != nil {
		return err
	}
	vBG, err := r.createBindGroup(stageBlurV, []bindBuf{{0, ping}, {1, dst}, {2, params}})
	if err != nil {
		r.device.device.DestroyBindGroup(hBG)
		return err
	}
	defer r.device.device.DestroyBindGroup(hBG)
	defer r.device.device.DestroyBindGroup(vBG)

	return r.encodeAndSubmit("blur", func(encoder hal.CommandEncoder) {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "blur_h"})
		pass.SetPipeline(r.pipes.pipelines[stageBlurH])
		pass.SetBindGroup(0, hBG, nil)
		pass.Dispatch((uint32(inW)+255)/256, uint32(inH), 1)
		pass.End()

		pass = encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "blur_v"})
		pass.SetPipeline(r.pipes.pipelines[stageBlurV])
		pass.SetBindGroup(0, vBG, nil)
		pass.Dispatch(uint32(inW), (uint32(inH)+255)/256, 1)
		pass.End()
	})
}

// bindBuf pairs a binding index with a buffer for bind group creation.
type bindBuf struct {
	binding uint32
	buf     hal.Buffer
}

func (r *Renderer) createBindGroup(s stage, bufs []bindBuf) (hal.BindGroup, error) {
	entries := make([]gputypes.BindGroupEntry, len(bufs))
	for i, b := range bufs {
		entries[i] = gputypes.BindGroupEntry{
			Binding: b.binding,
			Resource: gputypes.BufferBinding{
				Buffer: b.buf.NativeHandle(),
				Offset: 0,
				Size:   0, // 0 = entire buffer
			},
		}
	}
	bg, err := r.device.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "develop_" + s.String() + "_bg",
		Layout:  r.pipes.bgLayouts[s],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("render: create bind group for %s: %w", s, err)
	}
	return bg, nil
}

// runPass dispatches a single compute pass and waits for completion.
func (r *Renderer) runPass(s stage, bufs []bindBuf, groupsX, groupsY uint32) error {
	return r.runPassWithCopy(s, bufs, groupsX, groupsY, nil, nil, 0)
}

// runPassWithCopy dispatches a compute pass, optionally copies copySrc
// into copyDst afterwards, submits and waits.
func (r *Renderer) runPassWithCopy(s stage, bufs []bindBuf, groupsX, groupsY uint32, copySrc, copyDst hal.Buffer, copySize uint64) error {
	bg, err := r.createBindGroup(s, bufs)
	if err != nil {
		return err
	}
	defer r.device.device.DestroyBindGroup(bg)

	return r.encodeAndSubmit(s.String(), func(encoder hal.CommandEncoder) {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "develop_" + s.String()})
		pass.SetPipeline(r.pipes.pipelines[s])
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch(groupsX, groupsY, 1)
		pass.End()

		if copySrc != nil {
			encoder.CopyBufferToBuffer(copySrc, copyDst, []hal.BufferCopy{
				{SrcOffset: 0, DstOffset: 0, Size: copySize},
			})
		}
	})
}

// encodeAndSubmit records commands into a fresh encoder, submits them
// and blocks until the fence signals.
func (r *Renderer) encodeAndSubmit(label string, record func(hal.CommandEncoder)) error {
	device := r.device.device

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "_encoder"})
	if err != nil {
		return fmt.Errorf("render: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("render: begin encoding: %w", err)
	}

	record(encoder)

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("render: end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	idx, err := r.device.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("render: submit %s: %w", label, err)
	}
	deadline := time.Now().Add(fenceTimeout)
	for r.device.queue.PollCompleted() < idx {
		if time.Now().After(deadline) {
			return fmt.Errorf("render: %s timed out after %v", label, fenceTimeout)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// hashPix samples a float plane into an FNV-1a hash. Sampling every
// 64th value keeps hashing cheap on large frames while still catching
// real edits.
func hashPix(pix []float32) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset)
	step := 1
	if len(pix) > 1<<16 {
		step = 64
	}
	for i := 0; i < len(pix); i += step {
		h ^= uint64(math.Float32bits(pix[i]))
		h *= prime
	}
	h ^= uint64(len(pix))
	h *= prime
	return h
}
