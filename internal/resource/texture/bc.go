package texture

import (
	"encoding/binary"
	"image"
)

// block holds the 16 RGBA texels of one 4x4 block in row-major order.
// Texels past the image edge repeat the last row or column.
type block [16][4]uint8

func (b *block) load(img *image.NRGBA, bx, by int) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for i := range b {
		x := min(bx*4+i%4, w-1)
		y := min(by*4+i/4, h-1)
		o := img.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y)
		copy(b[i][:], img.Pix[o:o+4])
	}
}

// BlockBytes returns the compressed size of a w by h level.
func BlockBytes(f Format, w, h int) int {
	blocks := ((w + 3) / 4) * ((h + 3) / 4)
	switch f {
	case FormatBC4:
		return 8 * blocks
	case FormatBC3, FormatBC5, FormatBC6H:
		return 16 * blocks
	}
	return 16 * w * h
}

// compress encodes every 4x4 block of img with enc, which appends the
// block's bytes to dst.
func compress(img *image.NRGBA, enc func(dst []byte, b *block) []byte) []byte {
	bw, bh := (img.Rect.Dx()+3)/4, (img.Rect.Dy()+3)/4
	out := make([]byte, 0, 16*bw*bh)
	var b block
	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			b.load(img, bx, by)
			out = enc(out, &b)
		}
	}
	return out
}

// EncodeBC3 compresses img as BC3: an interpolated alpha block followed
// by a four-color block. With transparent set, fully transparent texels
// do not influence the color endpoints.
func EncodeBC3(img *image.NRGBA, transparent bool) []byte {
	return compress(img, func(dst []byte, b *block) []byte {
		var alpha [16]uint8
		for i := range b {
			alpha[i] = b[i][3]
		}
		if !transparent {
			for i := range alpha {
				alpha[i] = 0xFF
			}
		}
		dst = appendChannelBlock(dst, &alpha)
		return appendColorBlock(dst, b, transparent)
	})
}

// EncodeBC4 compresses the red channel of img.
func EncodeBC4(img *image.NRGBA) []byte {
	return compress(img, func(dst []byte, b *block) []byte {
		ch := b.channel(0)
		return appendChannelBlock(dst, &ch)
	})
}

// EncodeBC5 compresses the red and green channels of img, as used for
// tangent-space normal maps.
func EncodeBC5(img *image.NRGBA) []byte {
	return compress(img, func(dst []byte, b *block) []byte {
		r, g := b.channel(0), b.channel(1)
		dst = appendChannelBlock(dst, &r)
		return appendChannelBlock(dst, &g)
	})
}

func (b *block) channel(c int) [16]uint8 {
	var out [16]uint8
	for i := range b {
		out[i] = b[i][c]
	}
	return out
}

// appendChannelBlock writes a BC4 block in eight-value mode: two endpoint
// bytes (max first) and sixteen 3-bit palette indices.
func appendChannelBlock(dst []byte, v *[16]uint8) []byte {
	lo, hi := v[0], v[0]
	for _, x := range v {
		lo, hi = min(lo, x), max(hi, x)
	}

	var palette [8]int
	palette[0], palette[1] = int(hi), int(lo)
	for i := 1; i < 7; i++ {
		palette[i+1] = ((7-i)*int(hi) + i*int(lo)) / 7
	}

	var indices uint64
	if hi != lo {
		for i, x := range v {
			best, bestDist := 0, 1<<30
			for p, pv := range palette {
				if d := abs(int(x) - pv); d < bestDist {
					best, bestDist = p, d
				}
			}
			indices |= uint64(best) << (3 * i)
		}
	}

	dst = append(dst, hi, lo)
	for i := 0; i < 6; i++ {
		dst = append(dst, byte(indices>>(8*i)))
	}
	return dst
}

// appendColorBlock writes a four-color BC1 block using the bounding box
// of the block's colors as endpoints.
func appendColorBlock(dst []byte, b *block, transparent bool) []byte {
	minC := [3]int{255, 255, 255}
	maxC := [3]int{0, 0, 0}
	used := 0
	for _, t := range b {
		if transparent && t[3] == 0 {
			continue
		}
		used++
		for c := 0; c < 3; c++ {
			minC[c] = min(minC[c], int(t[c]))
			maxC[c] = max(maxC[c], int(t[c]))
		}
	}
	if used == 0 {
		minC, maxC = [3]int{}, [3]int{}
	}

	// Pull the endpoints in by 1/16 of the range to reduce error at the
	// palette midpoints.
	for c := 0; c < 3; c++ {
		inset := (maxC[c] - minC[c]) >> 4
		minC[c] += inset
		maxC[c] -= inset
	}

	c0, c1 := pack565(maxC), pack565(minC)
	if c0 < c1 {
		c0, c1 = c1, c0
	}

	var indices uint32
	if c0 != c1 {
		e0, e1 := unpack565(c0), unpack565(c1)
		var palette [4][3]int
		palette[0], palette[1] = e0, e1
		for c := 0; c < 3; c++ {
			palette[2][c] = (2*e0[c] + e1[c]) / 3
			palette[3][c] = (e0[c] + 2*e1[c]) / 3
		}
		for i, t := range b {
			best, bestDist := 0, 1<<30
			for p, pc := range palette {
				d := 0
				for c := 0; c < 3; c++ {
					diff := int(t[c]) - pc[c]
					d += diff * diff
				}
				if d < bestDist {
					best, bestDist = p, d
				}
			}
			indices |= uint32(best) << (2 * i)
		}
	}

	dst = binary.LittleEndian.AppendUint16(dst, c0)
	dst = binary.LittleEndian.AppendUint16(dst, c1)
	return binary.LittleEndian.AppendUint32(dst, indices)
}

func pack565(c [3]int) uint16 {
	r := uint16(c[0]*31+127) / 255
	g := uint16(c[1]*63+127) / 255
	b := uint16(c[2]*31+127) / 255
	return r<<11 | g<<5 | b
}

func unpack565(v uint16) [3]int {
	r, g, b := int(v>>11&0x1F), int(v>>5&0x3F), int(v&0x1F)
	return [3]int{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
