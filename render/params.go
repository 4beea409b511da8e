package render

import (
	"bytes"
	"encoding/binary"
)

// blurParams mirrors the BlurParams uniform in blur.wgsl.
type blurParams struct {
	Radius      uint32
	TileOffsetX uint32
	TileOffsetY uint32
	InputWidth  uint32
	InputHeight uint32
	FullWidth   uint32
	FullHeight  uint32
	_           uint32
}

// flareParams mirrors the FlareParams uniform in flare.wgsl.
type flareParams struct {
	Amount      float32
	IsRaw       uint32
	Exposure    float32
	Brightness  float32
	Contrast    float32
	Whites      float32
	AspectRatio float32
	FullWidth   uint32
	FullHeight  uint32
	_           [3]float32
}

// frameParams mirrors the FrameParams uniform in develop.wgsl.
type frameParams struct {
	FullWidth   uint32
	FullHeight  uint32
	InputWidth  uint32
	InputHeight uint32
	LUTSize     uint32
	_           [3]uint32
}

func uniformBytes(v any) []byte {
	var buf bytes.Buffer
	// Writing fixed-size structs of 4-byte fields cannot fail.
	_ = binary.Write(&buf, binary.LittleEndian, v)
	return buf.Bytes()
}
