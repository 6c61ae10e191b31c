package font

import (
	"errors"
	"image"
)

// ErrAtlasFull is returned when the glyph cells do not fit the atlas.
var ErrAtlasFull = errors.New("glyphs do not fit the atlas")

// PackGlyphs places cells of the given widths and a common height into a
// size by size atlas. Cells fill rows left to right; a cell that would run
// past the right edge (padding included) starts a new row. Every cell is
// followed by padding pixels horizontally and every row vertically.
func PackGlyphs(widths []int, height, size, padding int) ([]image.Point, error) {
	pos := make([]image.Point, len(widths))
	x, y := 0, 0
	for i, w := range widths {
		if x+w+padding > size {
			x = 0
			y += height + padding
		}
		if w > size || y+height > size {
			return nil, ErrAtlasFull
		}
		pos[i] = image.Pt(x, y)
		x += w + padding
	}
	return pos, nil
}
