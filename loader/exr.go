package loader

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fovealab/fovea/internal/imagef"
)

// Scanline OpenEXR reader covering the files photo tooling emits:
// single-part, non-tiled, NONE/ZIPS/ZIP compression, HALF/FLOAT/UINT
// channels. R/G/B or a single luminance channel map to the output;
// anything else (alpha, depth) is skipped.

// EXR errors.
var (
	// ErrNotEXR is returned when the byte stream has no OpenEXR magic.
	ErrNotEXR = errors.New("loader: not an OpenEXR file")

	// ErrUnsupportedEXR is returned for EXR features outside the
	// scanline subset: tiles, deep data, multipart, exotic compression.
	ErrUnsupportedEXR = errors.New("loader: unsupported OpenEXR feature")

	// ErrMalformedEXR is returned when the container structure is
	// inconsistent with its own header.
	ErrMalformedEXR = errors.New("loader: malformed OpenEXR file")
)

const exrMagic = 20000630

const (
	exrCompressionNone = 0
	exrCompressionZips = 2
	exrCompressionZip  = 3
)

const (
	exrPixelUint  = 0
	exrPixelHalf  = 1
	exrPixelFloat = 2
)

// exrChannel describes one channel from the chlist attribute. slot is
// the output channel it feeds: 0..2 for R/G/B, -1 for luminance
// (broadcast to all three), -2 for ignored channels.
type exrChannel struct {
	name      string
	pixelType int32
	slot      int
}

type exrHeader struct {
	channels    []exrChannel
	dataWindow  [4]int32
	compression byte
}

// decodeEXR reads a scanline OpenEXR stream into a linear RGB image.
func decodeEXR(data []byte) (*imagef.Image, error) {
	r := bytes.NewReader(data)

	magic, err := exrReadU32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEXR, err)
	}
	if magic != exrMagic {
		return nil, ErrNotEXR
	}
	version, err := exrReadU32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEXR, err)
	}
	switch {
	case version&0x0200 != 0:
		return nil, fmt.Errorf("%w: tiled", ErrUnsupportedEXR)
	case version&0x0400 != 0:
		return nil, fmt.Errorf("%w: deep data", ErrUnsupportedEXR)
	case version&0x0800 != 0:
		return nil, fmt.Errorf("%w: multipart", ErrUnsupportedEXR)
	}

	hdr, err := exrReadHeader(r)
	if err != nil {
		return nil, err
	}

	width := int(hdr.dataWindow[2]-hdr.dataWindow[0]) + 1
	height := int(hdr.dataWindow[3]-hdr.dataWindow[1]) + 1
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty data window", ErrMalformedEXR)
	}

	blockLines := 1
	if hdr.compression == exrCompressionZip {
		blockLines = 16
	}
	blockCount := (height + blockLines - 1) / blockLines
	offsets := make([]uint64, blockCount)
	for i := range offsets {
		if offsets[i], err = exrReadU64(r); err != nil {
			return nil, fmt.Errorf("%w: offset table: %v", ErrMalformedEXR, err)
		}
	}

	out, err := imagef.NewRGB(width, height)
	if err != nil {
		return nil, err
	}

	baseY := int(hdr.dataWindow[1])
	for block := 0; block < blockCount; block++ {
		if offsets[block] == 0 {
			continue
		}
		if _, err := r.Seek(int64(offsets[block]), io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: block seek: %v", ErrMalformedEXR, err)
		}
		blockY, err := exrReadI32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: block header: %v", ErrMalformedEXR, err)
		}
		blockSize, err := exrReadI32(r)
		if err != nil || blockSize < 0 {
			return nil, fmt.Errorf("%w: block size", ErrMalformedEXR)
		}
		packed := make([]byte, blockSize)
		if _, err := io.ReadFull(r, packed); err != nil {
			return nil, fmt.Errorf("%w: block data: %v", ErrMalformedEXR, err)
		}

		startY := int(blockY) - baseY
		if startY < 0 || startY >= height {
			return nil, fmt.Errorf("%w: scanline out of bounds", ErrMalformedEXR)
		}
		lines := min(blockLines, height-startY)

		expected := exrBlockBytes(width, lines, hdr.channels)
		plain, err := exrUnpack(hdr.compression, packed, expected)
		if err != nil {
			return nil, err
		}
		if err := exrStoreBlock(out, hdr.channels, startY, lines, plain); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// exrReadHeader parses the attribute list up to its empty-name
// terminator and validates the subset this reader supports.
func exrReadHeader(r *bytes.Reader) (*exrHeader, error) {
	hdr := &exrHeader{compression: exrCompressionNone}
	var haveWindow bool

	for {
		name, err := exrReadString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute name: %v", ErrMalformedEXR, err)
		}
		if name == "" {
			break
		}
		typ, err := exrReadString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute type: %v", ErrMalformedEXR, err)
		}
		size, err := exrReadI32(r)
		if err != nil || size < 0 {
			return nil, fmt.Errorf("%w: attribute size", ErrMalformedEXR)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("%w: attribute payload: %v", ErrMalformedEXR, err)
		}

		switch name {
		case "channels":
			if typ != "chlist" {
				return nil, fmt.Errorf("%w: channels attribute type %q", ErrMalformedEXR, typ)
			}
			if hdr.channels, err = exrParseChannels(payload); err != nil {
				return nil, err
			}
		case "dataWindow":
			if typ != "box2i" || len(payload) != 16 {
				return nil, fmt.Errorf("%w: dataWindow attribute", ErrMalformedEXR)
			}
			for i := range hdr.dataWindow {
				hdr.dataWindow[i] = int32(binary.LittleEndian.Uint32(payload[i*4:]))
			}
			haveWindow = true
		case "compression":
			if typ != "compression" || len(payload) < 1 {
				return nil, fmt.Errorf("%w: compression attribute", ErrMalformedEXR)
			}
			hdr.compression = payload[0]
		case "tiles":
			return nil, fmt.Errorf("%w: tiled", ErrUnsupportedEXR)
		}
	}

	if len(hdr.channels) == 0 {
		return nil, fmt.Errorf("%w: missing channels", ErrMalformedEXR)
	}
	if !haveWindow {
		return nil, fmt.Errorf("%w: missing dataWindow", ErrMalformedEXR)
	}
	if hdr.compression != exrCompressionNone &&
		hdr.compression != exrCompressionZips &&
		hdr.compression != exrCompressionZip {
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupportedEXR, hdr.compression)
	}
	color := false
	for _, ch := range hdr.channels {
		if ch.slot >= -1 && ch.slot <= 2 {
			color = true
		}
	}
	if !color {
		return nil, fmt.Errorf("%w: no R/G/B or Y channels", ErrUnsupportedEXR)
	}
	return hdr, nil
}

func exrParseChannels(data []byte) ([]exrChannel, error) {
	r := bytes.NewReader(data)
	var channels []exrChannel
	for {
		name, err := exrReadString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: channel name: %v", ErrMalformedEXR, err)
		}
		if name == "" {
			break
		}
		pixelType, err := exrReadI32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: channel type: %v", ErrMalformedEXR, err)
		}
		if pixelType != exrPixelHalf && pixelType != exrPixelFloat && pixelType != exrPixelUint {
			return nil, fmt.Errorf("%w: pixel type %d", ErrUnsupportedEXR, pixelType)
		}
		// pLinear byte plus three reserved bytes.
		if _, err := r.Seek(4, io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("%w: channel flags: %v", ErrMalformedEXR, err)
		}
		xSampling, err := exrReadI32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: channel sampling: %v", ErrMalformedEXR, err)
		}
		ySampling, err := exrReadI32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: channel sampling: %v", ErrMalformedEXR, err)
		}
		if xSampling != 1 || ySampling != 1 {
			return nil, fmt.Errorf("%w: subsampled channel %q", ErrUnsupportedEXR, name)
		}

		slot := -2
		switch strings.ToUpper(name) {
		case "R":
			slot = 0
		case "G":
			slot = 1
		case "B":
			slot = 2
		case "Y":
			slot = -1
		}
		channels = append(channels, exrChannel{name: name, pixelType: pixelType, slot: slot})
	}
	return channels, nil
}

func exrChannelBytes(ch exrChannel) int {
	if ch.pixelType == exrPixelHalf {
		return 2
	}
	return 4
}

func exrBlockBytes(width, lines int, channels []exrChannel) int {
	total := 0
	for _, ch := range channels {
		total += width * lines * exrChannelBytes(ch)
	}
	return total
}

// exrUnpack decompresses one scanline block. ZIP blocks additionally
// carry a delta predictor over byte-deinterleaved halves, undone here.
func exrUnpack(compression byte, data []byte, expected int) ([]byte, error) {
	switch compression {
	case exrCompressionNone:
		if len(data) != expected {
			return nil, fmt.Errorf("%w: block size %d, want %d", ErrMalformedEXR, len(data), expected)
		}
		return data, nil

	case exrCompressionZips, exrCompressionZip:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", ErrMalformedEXR, err)
		}
		defer zr.Close()
		plain, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", ErrMalformedEXR, err)
		}
		if len(plain) != expected || len(plain)%2 != 0 {
			return nil, fmt.Errorf("%w: decompressed size %d, want %d", ErrMalformedEXR, len(plain), expected)
		}
		for i := 1; i < len(plain); i++ {
			plain[i] = byte(int(plain[i]) + int(plain[i-1]) - 128)
		}
		// Interleave the two byte planes back into native order.
		half := len(plain) / 2
		out := make([]byte, len(plain))
		for i := 0; i < half; i++ {
			out[2*i] = plain[i]
			out[2*i+1] = plain[i+half]
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupportedEXR, compression)
	}
}

// exrStoreBlock scatters a decoded block (scanlines of channel-planar
// rows) into the interleaved output image.
func exrStoreBlock(dst *imagef.Image, channels []exrChannel, startY, lines int, data []byte) error {
	width := dst.Width
	offset := 0
	for row := 0; row < lines; row++ {
		y := startY + row
		for _, ch := range channels {
			lineBytes := width * exrChannelBytes(ch)
			if offset+lineBytes > len(data) {
				return fmt.Errorf("%w: block truncated", ErrMalformedEXR)
			}
			line := data[offset : offset+lineBytes]
			offset += lineBytes

			if ch.slot == -2 {
				continue
			}
			base := y * width * 3
			for x := 0; x < width; x++ {
				var v float32
				switch ch.pixelType {
				case exrPixelHalf:
					v = halfToFloat(binary.LittleEndian.Uint16(line[x*2:]))
				case exrPixelFloat:
					v = math.Float32frombits(binary.LittleEndian.Uint32(line[x*4:]))
				case exrPixelUint:
					v = float32(binary.LittleEndian.Uint32(line[x*4:]))
				}
				if ch.slot == -1 {
					dst.Pix[base+x*3] = v
					dst.Pix[base+x*3+1] = v
					dst.Pix[base+x*3+2] = v
				} else {
					dst.Pix[base+x*3+ch.slot] = v
				}
			}
		}
	}
	return nil
}

func exrReadString(r *bytes.Reader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}

func exrReadU32(r *bytes.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func exrReadU64(r *bytes.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func exrReadI32(r *bytes.Reader) (int32, error) {
	v, err := exrReadU32(r)
	return int32(v), err
}

// halfToFloat widens an IEEE 754 binary16 value, including subnormals,
// infinities and NaN.
func halfToFloat(h uint16) float32 {
	sign := uint32(h>>15) & 1
	exp := int32(h>>10) & 0x1F
	mant := int32(h & 0x3FF)

	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign << 31)
	case exp == 0:
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x3FF
	case exp == 31 && mant == 0:
		return math.Float32frombits((sign << 31) | 0x7F800000)
	case exp == 31:
		return math.Float32frombits((sign << 31) | 0x7F800000 | (uint32(mant) << 13))
	}

	bits := (sign << 31) | (uint32(exp+127-15) << 23) | (uint32(mant) << 13)
	return math.Float32frombits(bits)
}
