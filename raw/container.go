// Package raw decodes camera sensor containers and develops them to
// linear float RGB.
//
// The container parser handles TIFF-framed raw files (DNG and the common
// vendor variants that keep their sensor plane as an uncompressed strip):
// it walks the IFD chain, descends into sub-IFDs, and picks the IFD that
// carries the CFA (or linear) sensor plane. Compressed sensor payloads are
// rejected with ErrUnsupportedCompression so callers can distinguish "this
// camera needs a newer decoder" from genuine corruption.
package raw

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fovealab/fovea/internal/imagef"
)

// Container errors.
var (
	// ErrNotRaw is returned when the byte stream is not a TIFF-framed raw file.
	ErrNotRaw = errors.New("raw: not a raw container")

	// ErrUnsupportedCompression is returned when the sensor plane uses a
	// compression scheme this decoder does not implement.
	ErrUnsupportedCompression = errors.New("raw: compression is not supported")

	// ErrTruncated is returned when the container ends before its directories
	// or strips do.
	ErrTruncated = errors.New("raw: truncated container")

	// ErrNoSensorPlane is returned when no IFD carries sensor data.
	ErrNoSensorPlane = errors.New("raw: no sensor image found")
)

// TIFF tags used by the walker.
const (
	tagNewSubfileType      = 254
	tagImageWidth          = 256
	tagImageHeight         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagStripOffsets        = 273
	tagOrientation         = 274
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagSubIFDs             = 330
	tagCFARepeatPatternDim = 33421
	tagCFAPattern          = 33422
	tagBlackLevel          = 50714
	tagWhiteLevel          = 50717
	tagAsShotNeutral       = 50728
)

// Photometric interpretations of interest.
const (
	photometricCFA       = 32803
	photometricLinearRaw = 34892
)

// SensorImage is the decoded but undeveloped sensor plane.
type SensorImage struct {
	Width  int
	Height int

	// Mosaic holds Width*Height sensor samples. For CFA planes each sample
	// is one color site; for linear planes samples are interleaved RGB and
	// Mosaic holds Width*Height*3 values.
	Mosaic []uint16

	// CFA is the 2x2 Bayer pattern, values 0=R 1=G 2=B, indexed [row][col].
	CFA [2][2]uint8

	// Linear is true for LinearRaw planes (already demosaiced in-camera).
	Linear bool

	BlackLevel float32
	WhiteLevel float32

	// WB holds the camera neutral white balance as R,G,B multipliers
	// normalized so G == 1. All-ones when the container carries none.
	WB [3]float32

	Orientation imagef.Orientation
}

type ifdEntry struct {
	tag    uint16
	typ    uint16
	count  uint32
	offset uint32 // raw value field (inline value or offset)
	inline [4]byte
}

type tiffReader struct {
	data []byte
	bo   binary.ByteOrder
}

// ParseContainer decodes the TIFF structure and extracts the sensor plane.
func ParseContainer(data []byte) (*SensorImage, error) {
	if len(data) < 8 {
		return nil, ErrNotRaw
	}

	var bo binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		bo = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		bo = binary.BigEndian
	default:
		return nil, ErrNotRaw
	}
	if bo.Uint16(data[2:4]) != 42 {
		return nil, ErrNotRaw
	}

	r := &tiffReader{data: data, bo: bo}
	rootOffset := bo.Uint32(data[4:8])

	var best *SensorImage
	var orientation imagef.Orientation = imagef.OrientNormal

	// Walk the IFD chain and every sub-IFD; keep the largest sensor plane.
	offsets := []uint32{rootOffset}
	seen := map[uint32]bool{}
	for len(offsets) > 0 {
		off := offsets[0]
		offsets = offsets[1:]
		if off == 0 || seen[off] {
			continue
		}
		seen[off] = true

		entries, next, err := r.readIFD(off)
		if err != nil {
			return nil, err
		}
		if next != 0 {
			offsets = append(offsets, next)
		}

		for _, e := range entries {
			if e.tag == tagSubIFDs {
				subs, err := r.readUints(e)
				if err != nil {
					return nil, err
				}
				for _, s := range subs {
					offsets = append(offsets, uint32(s))
				}
			}
			if e.tag == tagOrientation {
				if v, err := r.readUints(e); err == nil && len(v) > 0 {
					orientation = imagef.Orientation(v[0])
				}
			}
		}

		img, err := r.sensorFromIFD(entries)
		if err != nil {
			// Unsupported compression on a sensor plane is fatal; an IFD
			// that is not a sensor plane at all is just skipped.
			if errors.Is(err, ErrUnsupportedCompression) || errors.Is(err, ErrTruncated) {
				return nil, err
			}
			continue
		}
		if best == nil || img.Width*img.Height > best.Width*best.Height {
			best = img
		}
	}

	if best == nil {
		return nil, ErrNoSensorPlane
	}
	best.Orientation = orientation
	return best, nil
}

func (r *tiffReader) readIFD(off uint32) ([]ifdEntry, uint32, error) {
	if int(off)+2 > len(r.data) {
		return nil, 0, ErrTruncated
	}
	n := int(r.bo.Uint16(r.data[off : off+2]))
	base := int(off) + 2
	if base+n*12+4 > len(r.data) {
		return nil, 0, ErrTruncated
	}

	entries := make([]ifdEntry, 0, n)
	for i := 0; i < n; i++ {
		p := base + i*12
		e := ifdEntry{
			tag:    r.bo.Uint16(r.data[p : p+2]),
			typ:    r.bo.Uint16(r.data[p+2 : p+4]),
			count:  r.bo.Uint32(r.data[p+4 : p+8]),
			offset: r.bo.Uint32(r.data[p+8 : p+12]),
		}
		copy(e.inline[:], r.data[p+8:p+12])
		entries = append(entries, e)
	}
	next := r.bo.Uint32(r.data[base+n*12 : base+n*12+4])
	return entries, next, nil
}

// typeSize returns the byte size of a TIFF field type.
func typeSize(typ uint16) int {
	switch typ {
	case 1, 2, 6, 7: // BYTE, ASCII, SBYTE, UNDEFINED
		return 1
	case 3, 8: // SHORT, SSHORT
		return 2
	case 4, 9, 11: // LONG, SLONG, FLOAT
		return 4
	case 5, 10, 12: // RATIONAL, SRATIONAL, DOUBLE
		return 8
	default:
		return 0
	}
}

// valueBytes returns the raw bytes of an entry's value, whether inline
// or stored at an offset.
func (r *tiffReader) valueBytes(e ifdEntry) ([]byte, error) {
	sz := typeSize(e.typ)
	if sz == 0 {
		return nil, fmt.Errorf("raw: unknown field type %d for tag %d", e.typ, e.tag)
	}
	total := sz * int(e.count)
	if total <= 4 {
		return e.inline[:total], nil
	}
	start := int(e.offset)
	if start+total > len(r.data) {
		return nil, ErrTruncated
	}
	return r.data[start : start+total], nil
}

// readUints reads an entry's values as unsigned integers (BYTE, SHORT or LONG).
func (r *tiffReader) readUints(e ifdEntry) ([]uint64, error) {
	b, err := r.valueBytes(e)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, e.count)
	for i := range out {
		switch e.typ {
		case 1, 7:
			out[i] = uint64(b[i])
		case 3:
			out[i] = uint64(r.bo.Uint16(b[i*2 : i*2+2]))
		case 4:
			out[i] = uint64(r.bo.Uint32(b[i*4 : i*4+4]))
		default:
			return nil, fmt.Errorf("raw: tag %d: unexpected integer type %d", e.tag, e.typ)
		}
	}
	return out, nil
}

// readFloats reads an entry's values as floats (integer types or RATIONAL).
func (r *tiffReader) readFloats(e ifdEntry) ([]float64, error) {
	if e.typ == 5 || e.typ == 10 {
		b, err := r.valueBytes(e)
		if err != nil {
			return nil, err
		}
		out := make([]float64, e.count)
		for i := range out {
			num := r.bo.Uint32(b[i*8 : i*8+4])
			den := r.bo.Uint32(b[i*8+4 : i*8+8])
			if den == 0 {
				out[i] = 0
				continue
			}
			if e.typ == 10 {
				out[i] = float64(int32(num)) / float64(int32(den))
			} else {
				out[i] = float64(num) / float64(den)
			}
		}
		return out, nil
	}
	ints, err := r.readUints(e)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ints))
	for i, v := range ints {
		out[i] = float64(v)
	}
	return out, nil
}

// compressionName maps common TIFF/DNG compression codes to readable names.
func compressionName(code uint64) string {
	switch code {
	case 7:
		return "jpeg"
	case 8:
		return "deflate"
	case 34713:
		return "nef compression"
	case 34892:
		return "lossy jpeg"
	case 52546:
		return "jpeg xl"
	default:
		return fmt.Sprintf("code %d", code)
	}
}

// sensorFromIFD interprets one IFD as a sensor plane, or fails with a
// non-fatal error if the IFD describes something else (thumbnail, preview).
func (r *tiffReader) sensorFromIFD(entries []ifdEntry) (*SensorImage, error) {
	byTag := make(map[uint16]ifdEntry, len(entries))
	for _, e := range entries {
		byTag[e.tag] = e
	}

	photoE, ok := byTag[tagPhotometric]
	if !ok {
		return nil, ErrNoSensorPlane
	}
	photo, err := r.readUints(photoE)
	if err != nil || len(photo) == 0 {
		return nil, ErrNoSensorPlane
	}
	isCFA := photo[0] == photometricCFA
	isLinear := photo[0] == photometricLinearRaw
	if !isCFA && !isLinear {
		return nil, ErrNoSensorPlane
	}

	if e, ok := byTag[tagCompression]; ok {
		codes, err := r.readUints(e)
		if err != nil {
			return nil, err
		}
		if len(codes) > 0 && codes[0] != 1 {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, compressionName(codes[0]))
		}
	}

	width, err := r.requiredUint(byTag, tagImageWidth)
	if err != nil {
		return nil, err
	}
	height, err := r.requiredUint(byTag, tagImageHeight)
	if err != nil {
		return nil, err
	}

	bits := uint64(16)
	if e, ok := byTag[tagBitsPerSample]; ok {
		if v, err := r.readUints(e); err == nil && len(v) > 0 {
			bits = v[0]
		}
	}
	if bits != 16 && bits != 14 && bits != 12 {
		return nil, fmt.Errorf("raw: %d bits per sample is not supported", bits)
	}

	samplesPerPixel := 1
	if isLinear {
		samplesPerPixel = 3
	}

	mosaic, err := r.readStrips(byTag, int(width), int(height), samplesPerPixel)
	if err != nil {
		return nil, err
	}

	img := &SensorImage{
		Width:      int(width),
		Height:     int(height),
		Mosaic:     mosaic,
		Linear:     isLinear,
		BlackLevel: 0,
		WhiteLevel: float32(uint32(1)<<bits - 1),
		WB:         [3]float32{1, 1, 1},
	}

	if e, ok := byTag[tagBlackLevel]; ok {
		if v, err := r.readFloats(e); err == nil && len(v) > 0 {
			img.BlackLevel = float32(v[0])
		}
	}
	if e, ok := byTag[tagWhiteLevel]; ok {
		if v, err := r.readUints(e); err == nil && len(v) > 0 {
			img.WhiteLevel = float32(v[0])
		}
	}
	if e, ok := byTag[tagAsShotNeutral]; ok {
		if v, err := r.readFloats(e); err == nil && len(v) >= 3 {
			// AsShotNeutral stores the neutral color; gains are its inverse,
			// normalized so green is 1.
			for c := 0; c < 3; c++ {
				if v[c] > 0 {
					img.WB[c] = float32(v[1] / v[c])
				}
			}
		}
	}

	if isCFA {
		if err := r.readCFAPattern(byTag, img); err != nil {
			return nil, err
		}
	}

	return img, nil
}

func (r *tiffReader) requiredUint(byTag map[uint16]ifdEntry, tag uint16) (uint64, error) {
	e, ok := byTag[tag]
	if !ok {
		return 0, ErrNoSensorPlane
	}
	v, err := r.readUints(e)
	if err != nil || len(v) == 0 {
		return 0, ErrNoSensorPlane
	}
	return v[0], nil
}

func (r *tiffReader) readCFAPattern(byTag map[uint16]ifdEntry, img *SensorImage) error {
	e, ok := byTag[tagCFAPattern]
	if !ok {
		// RGGB is by far the most common layout; assume it when absent.
		img.CFA = [2][2]uint8{{0, 1}, {1, 2}}
		return nil
	}
	v, err := r.readUints(e)
	if err != nil || len(v) < 4 {
		return fmt.Errorf("raw: malformed CFA pattern")
	}

	cols, rows := 2, 2
	if de, ok := byTag[tagCFARepeatPatternDim]; ok {
		if dims, err := r.readUints(de); err == nil && len(dims) >= 2 {
			rows, cols = int(dims[0]), int(dims[1])
		}
	}
	if rows != 2 || cols != 2 {
		return fmt.Errorf("raw: %dx%d CFA repeat pattern is not supported", rows, cols)
	}

	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			c := uint8(v[y*2+x])
			if c > 2 {
				return fmt.Errorf("raw: CFA color %d is not supported", c)
			}
			img.CFA[y][x] = c
		}
	}
	return nil
}

// readStrips assembles the sensor samples from the strip tables.
func (r *tiffReader) readStrips(byTag map[uint16]ifdEntry, width, height, samples int) ([]uint16, error) {
	offE, ok := byTag[tagStripOffsets]
	if !ok {
		return nil, ErrNoSensorPlane
	}
	cntE, ok := byTag[tagStripByteCounts]
	if !ok {
		return nil, ErrNoSensorPlane
	}

	offsets, err := r.readUints(offE)
	if err != nil {
		return nil, err
	}
	counts, err := r.readUints(cntE)
	if err != nil {
		return nil, err
	}
	if len(offsets) != len(counts) || len(offsets) == 0 {
		return nil, fmt.Errorf("raw: mismatched strip tables")
	}

	want := width * height * samples
	out := make([]uint16, 0, want)
	for i := range offsets {
		start, n := int(offsets[i]), int(counts[i])
		if start+n > len(r.data) {
			return nil, ErrTruncated
		}
		strip := r.data[start : start+n]
		for p := 0; p+1 < len(strip) && len(out) < want; p += 2 {
			out = append(out, r.bo.Uint16(strip[p:p+2]))
		}
	}
	if len(out) < want {
		return nil, ErrTruncated
	}
	return out[:want], nil
}
