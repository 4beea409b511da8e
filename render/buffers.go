package render

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/fovealab/fovea/internal/imagef"
)

// bytesPerPixel is the storage footprint of one vec4<f32> pixel.
const bytesPerPixel = 16

// flareMapBytes is the size of one 512x512 flare map plane.
const flareMapBytes = flareMapSize * flareMapSize * bytesPerPixel

// frameBuffers holds all GPU buffers for one frame. The full-image
// buffers are sized to the frame; the tile-local working buffers are
// sized to the largest tile input region.
type frameBuffers struct {
	// Full-image planes.
	Input hal.Buffer
	Masks hal.Buffer
	LUT   hal.Buffer

	// Uniforms.
	Adjust      hal.Buffer
	BlurParams  hal.Buffer
	FlareParams hal.Buffer
	Frame       hal.Buffer

	// Tile-local working planes.
	BlurPing      hal.Buffer
	BlurSharpness hal.Buffer
	BlurTonal     hal.Buffer
	BlurClarity   hal.Buffer
	BlurStructure hal.Buffer
	Output        hal.Buffer
	Staging       hal.Buffer

	// Flare map planes.
	FlareA   hal.Buffer
	FlareB   hal.Buffer
	FlareMap hal.Buffer
}

// createFrameBuffers allocates all buffers for a width x height frame
// with maskCount mask planes and lutLen LUT entries.
func (r *Renderer) createFrameBuffers(width, height, maskCount, lutLen int) (*frameBuffers, error) {
	fullBytes := uint64(width) * uint64(height) * bytesPerPixel
	tileBytes := uint64(maxTilePixels(width, height)) * bytesPerPixel
	maskBytes := uint64(maskCount) * uint64(width) * uint64(height) * 4
	lutBytes := uint64(lutLen) * bytesPerPixel

	const (
		storageIn  = gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
		storageGPU = gputypes.BufferUsageStorage
		storageOut = gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc
		uniformCPU = gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
		stagingOut = gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	)

	bufs := &frameBuffers{}

	type bufSpec struct {
		target *hal.Buffer
		label  string
		size   uint64
		usage  gputypes.BufferUsage
	}

	specs := []bufSpec{
		{&bufs.Input, "develop_input", fullBytes, storageIn},
		{&bufs.Masks, "develop_masks", maskBytes, storageIn},
		{&bufs.LUT, "develop_lut", lutBytes, storageIn},
		{&bufs.Adjust, "develop_adjustments", adjustUniformSize, uniformCPU},
		{&bufs.BlurParams, "develop_blur_params", uint64(len(uniformBytes(blurParams{}))), uniformCPU},
		{&bufs.FlareParams, "develop_flare_params", uint64(len(uniformBytes(flareParams{}))), uniformCPU},
		{&bufs.Frame, "develop_frame_params", uint64(len(uniformBytes(frameParams{}))), uniformCPU},
		{&bufs.BlurPing, "develop_blur_ping", tileBytes, storageGPU},
		{&bufs.BlurSharpness, "develop_blur_sharpness", tileBytes, storageGPU},
		{&bufs.BlurTonal, "develop_blur_tonal", tileBytes, storageGPU},
		{&bufs.BlurClarity, "develop_blur_clarity", tileBytes, storageGPU},
		{&bufs.BlurStructure, "develop_blur_structure", tileBytes, storageGPU},
		{&bufs.Output, "develop_output", tileBytes, storageOut},
		{&bufs.Staging, "develop_staging", tileBytes, stagingOut},
		{&bufs.FlareA, "develop_flare_a", flareMapBytes, storageGPU},
		{&bufs.FlareB, "develop_flare_b", flareMapBytes, storageGPU},
		{&bufs.FlareMap, "develop_flare_map", flareMapBytes, storageOut},
	}

	for _, s := range specs {
		size := s.size
		// Zero-length bindings are invalid; keep a minimal placeholder so
		// the bind group layout is satisfied when masks or LUT are absent.
		if size < 4 {
			size = 4
		}
		buf, err := r.device.device.CreateBuffer(&hal.BufferDescriptor{
			Label: s.label,
			Size:  size,
			Usage: s.usage,
		})
		if err != nil {
			r.destroyFrameBuffers(bufs)
			return nil, fmt.Errorf("render: create %s buffer: %w", s.label, err)
		}
		*s.target = buf
	}

	slogger().Debug("render: frame buffers allocated",
		"frame", fmt.Sprintf("%dx%d", width, height),
		"full_bytes", fullBytes,
		"tile_bytes", tileBytes,
		"masks", maskCount,
		"lut_entries", lutLen)

	return bufs, nil
}

// destroyFrameBuffers releases all buffers in bufs. Nil entries are
// skipped so it is safe to call on a partially created set.
func (r *Renderer) destroyFrameBuffers(bufs *frameBuffers) {
	if bufs == nil {
		return
	}
	destroyBuf := func(b hal.Buffer) {
		if b != nil {
			r.device.device.DestroyBuffer(b)
		}
	}

	destroyBuf(bufs.Input)
	destroyBuf(bufs.Masks)
	destroyBuf(bufs.LUT)
	destroyBuf(bufs.Adjust)
	destroyBuf(bufs.BlurParams)
	destroyBuf(bufs.FlareParams)
	destroyBuf(bufs.Frame)
	destroyBuf(bufs.BlurPing)
	destroyBuf(bufs.BlurSharpness)
	destroyBuf(bufs.BlurTonal)
	destroyBuf(bufs.BlurClarity)
	destroyBuf(bufs.BlurStructure)
	destroyBuf(bufs.Output)
	destroyBuf(bufs.Staging)
	destroyBuf(bufs.FlareA)
	destroyBuf(bufs.FlareB)
	destroyBuf(bufs.FlareMap)

	*bufs = frameBuffers{}
}

// packImage converts an interleaved float image into the vec4<f32>
// layout the shaders index. Alpha is forced to 1 for RGB sources.
func packImage(img *imagef.Image) []byte {
	out := make([]byte, img.Width*img.Height*bytesPerPixel)
	ch := img.Channels
	for i := 0; i < img.Width*img.Height; i++ {
		src := i * ch
		dst := i * bytesPerPixel
		binary.LittleEndian.PutUint32(out[dst:], math.Float32bits(img.Pix[src]))
		binary.LittleEndian.PutUint32(out[dst+4:], math.Float32bits(img.Pix[src+1]))
		binary.LittleEndian.PutUint32(out[dst+8:], math.Float32bits(img.Pix[src+2]))
		a := float32(1)
		if ch == 4 {
			a = img.Pix[src+3]
		}
		binary.LittleEndian.PutUint32(out[dst+12:], math.Float32bits(a))
	}
	return out
}

// packMasks flattens mask images into consecutive single-float planes.
// Masks must match the frame dimensions; RGBA masks contribute their
// alpha channel, single-influence RGB masks their red channel.
func packMasks(masks []*imagef.Image, width, height int) []byte {
	out := make([]byte, len(masks)*width*height*4)
	for m, mask := range masks {
		base := m * width * height * 4
		ch := mask.Channels
		src := 0
		if ch == 4 {
			src = 3
		}
		for i := 0; i < width*height; i++ {
			binary.LittleEndian.PutUint32(out[base+i*4:], math.Float32bits(mask.Pix[i*ch+src]))
		}
	}
	return out
}

// packLUT converts LUT entries (lutLen RGB triples) into vec4 layout.
func packLUT(lut []float32) []byte {
	n := len(lut) / 3
	out := make([]byte, n*bytesPerPixel)
	for i := 0; i < n; i++ {
		dst := i * bytesPerPixel
		binary.LittleEndian.PutUint32(out[dst:], math.Float32bits(lut[i*3]))
		binary.LittleEndian.PutUint32(out[dst+4:], math.Float32bits(lut[i*3+1]))
		binary.LittleEndian.PutUint32(out[dst+8:], math.Float32bits(lut[i*3+2]))
		binary.LittleEndian.PutUint32(out[dst+12:], math.Float32bits(1))
	}
	return out
}

// unpackTile copies the cropped output region of one tile from the
// readback bytes into the destination image.
func unpackTile(readback []byte, t tile, dst *imagef.Image) {
	ch := dst.Channels
	for y := 0; y < t.H; y++ {
		srcRow := (t.CropY + y) * t.InW
		dstRow := dst.PixelOffset(t.X, t.Y+y)
		for x := 0; x < t.W; x++ {
			src := (srcRow + t.CropX + x) * bytesPerPixel
			d := dstRow + x*ch
			dst.Pix[d] = math.Float32frombits(binary.LittleEndian.Uint32(readback[src:]))
			dst.Pix[d+1] = math.Float32frombits(binary.LittleEndian.Uint32(readback[src+4:]))
			dst.Pix[d+2] = math.Float32frombits(binary.LittleEndian.Uint32(readback[src+8:]))
			if ch == 4 {
				dst.Pix[d+3] = math.Float32frombits(binary.LittleEndian.Uint32(readback[src+12:]))
			}
		}
	}
}
