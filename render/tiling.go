package render

// Large frames render in fixed-size tiles so buffer sizes stay bounded.
// Each tile's input region is expanded by an overlap margin so blur
// kernels near tile edges see real neighbors instead of clamp artifacts;
// the overlap is cropped away when the tile is stitched back.
const (
	tileSize    = 2048
	tileOverlap = 128
)

// tile describes one render tile.
//
// X, Y, W, H is the output region in full-image coordinates. InX, InY,
// InW, InH is the expanded input region the kernels run over. CropX and
// CropY locate the output region inside the input region.
type tile struct {
	X, Y, W, H   int
	InX, InY     int
	InW, InH     int
	CropX, CropY int
}

// tilesFor splits a width x height frame into render tiles in row-major
// order. A frame no larger than one tile yields a single tile with no
// overlap expansion beyond the frame bounds.
func tilesFor(width, height int) []tile {
	cols := (width + tileSize - 1) / tileSize
	rows := (height + tileSize - 1) / tileSize

	tiles := make([]tile, 0, cols*rows)
	for ty := 0; ty < rows; ty++ {
		for tx := 0; tx < cols; tx++ {
			x := tx * tileSize
			y := ty * tileSize
			w := min(tileSize, width-x)
			h := min(tileSize, height-y)

			inX := max(x-tileOverlap, 0)
			inY := max(y-tileOverlap, 0)
			inW := min(x+w+tileOverlap, width) - inX
			inH := min(y+h+tileOverlap, height) - inY

			tiles = append(tiles, tile{
				X: x, Y: y, W: w, H: h,
				InX: inX, InY: inY,
				InW: inW, InH: inH,
				CropX: x - inX, CropY: y - inY,
			})
		}
	}
	return tiles
}

// maxTilePixels is the largest input region any tile can have, used to
// size the tile-local working buffers once per frame.
func maxTilePixels(width, height int) int {
	maxW := min(tileSize+2*tileOverlap, width)
	maxH := min(tileSize+2*tileOverlap, height)
	return maxW * maxH
}
