package imagef

// Orientation is the EXIF orientation tag value (1..8).
// Values outside that range are treated as Normal.
type Orientation uint16

const (
	// OrientNormal is the identity orientation.
	OrientNormal Orientation = 1
	// OrientFlipH mirrors horizontally.
	OrientFlipH Orientation = 2
	// OrientRotate180 rotates 180 degrees.
	OrientRotate180 Orientation = 3
	// OrientFlipV mirrors vertically.
	OrientFlipV Orientation = 4
	// OrientTranspose mirrors along the top-left/bottom-right diagonal.
	OrientTranspose Orientation = 5
	// OrientRotate90 rotates 90 degrees clockwise.
	OrientRotate90 Orientation = 6
	// OrientTransverse mirrors along the top-right/bottom-left diagonal.
	OrientTransverse Orientation = 7
	// OrientRotate270 rotates 270 degrees clockwise.
	OrientRotate270 Orientation = 8
)

// Swaps reports whether the orientation exchanges width and height.
func (o Orientation) Swaps() bool {
	return o >= OrientTranspose && o <= OrientRotate270
}

// Orient returns the image with the EXIF orientation applied, so that the
// result displays upright. Identity orientations return the input unchanged.
func Orient(m *Image, o Orientation) *Image {
	if o <= OrientNormal || o > OrientRotate270 {
		return m
	}

	w, h := m.Width, m.Height
	outW, outH := w, h
	if o.Swaps() {
		outW, outH = h, w
	}

	out := &Image{
		Pix:      make([]float32, outW*outH*m.Channels),
		Width:    outW,
		Height:   outH,
		Channels: m.Channels,
	}

	ch := m.Channels
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch o {
			case OrientFlipH:
				dx, dy = w-1-x, y
			case OrientRotate180:
				dx, dy = w-1-x, h-1-y
			case OrientFlipV:
				dx, dy = x, h-1-y
			case OrientTranspose:
				dx, dy = y, x
			case OrientRotate90:
				dx, dy = h-1-y, x
			case OrientTransverse:
				dx, dy = h-1-y, w-1-x
			case OrientRotate270:
				dx, dy = y, w-1-x
			}
			si := (y*w + x) * ch
			di := (dy*outW + dx) * ch
			copy(out.Pix[di:di+ch], m.Pix[si:si+ch])
		}
	}
	return out
}
