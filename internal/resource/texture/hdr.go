package texture

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Faultbox/ceforge/internal/resource"
)

// FloatImage is a linear RGBA image with four float32 values per pixel.
type FloatImage struct {
	Width, Height int
	Pix           []float32
}

// NewFloatImage returns a zeroed w by h image.
func NewFloatImage(w, h int) *FloatImage {
	return &FloatImage{Width: w, Height: h, Pix: make([]float32, 4*w*h)}
}

func (f *FloatImage) offset(x, y int) int {
	return 4 * (y*f.Width + x)
}

// Rows returns a copy of rows [y, y+h).
func (f *FloatImage) Rows(y, h int) *FloatImage {
	out := NewFloatImage(f.Width, h)
	copy(out.Pix, f.Pix[f.offset(0, y):f.offset(0, y+h)])
	return out
}

// Half returns the next mip level: each dimension halved, never below 1,
// every pixel the average of the 2x2 source pixels it covers.
func (f *FloatImage) Half() *FloatImage {
	w, h := max(1, f.Width/2), max(1, f.Height/2)
	out := NewFloatImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [4]float32
			var n float32
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					sx, sy := min(2*x+dx, f.Width-1), min(2*y+dy, f.Height-1)
					o := f.offset(sx, sy)
					for c := 0; c < 4; c++ {
						sum[c] += f.Pix[o+c]
					}
					n++
				}
			}
			o := out.offset(x, y)
			for c := 0; c < 4; c++ {
				out.Pix[o+c] = sum[c] / n
			}
		}
	}
	return out
}

// Bytes returns the pixels as little-endian float32 values.
func (f *FloatImage) Bytes() []byte {
	b := make([]byte, 0, 4*len(f.Pix))
	for _, v := range f.Pix {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

// DecodeHDR decodes a Radiance RGBE image with the standard -Y +X
// orientation, flat or new-style run-length encoded.
func DecodeHDR(data []byte) (*FloatImage, error) {
	r := bufio.NewReader(bytes.NewReader(data))

	magic, err := r.ReadString('\n')
	if err != nil || !(strings.HasPrefix(magic, "#?RADIANCE") || strings.HasPrefix(magic, "#?RGBE")) {
		return nil, resource.Malformed("hdr: missing Radiance signature")
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, resource.Malformed("hdr: header truncated")
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "FORMAT="); ok && v != "32-bit_rle_rgbe" {
			return nil, resource.Malformed("hdr: unsupported format %s", v)
		}
	}

	res, err := r.ReadString('\n')
	if err != nil {
		return nil, resource.Malformed("hdr: missing resolution")
	}
	fields := strings.Fields(res)
	if len(fields) != 4 || fields[0] != "-Y" || fields[2] != "+X" {
		return nil, resource.Malformed("hdr: unsupported orientation %q", strings.TrimSpace(res))
	}
	height, err1 := strconv.Atoi(fields[1])
	width, err2 := strconv.Atoi(fields[3])
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return nil, resource.Malformed("hdr: bad resolution %q", strings.TrimSpace(res))
	}

	img := NewFloatImage(width, height)
	line := make([]byte, 4*width)
	for y := 0; y < height; y++ {
		if err := readScanline(r, line, width); err != nil {
			return nil, resource.Malformed("hdr: scanline %d: %v", y, err)
		}
		for x := 0; x < width; x++ {
			rgbeToFloat(line[4*x:4*x+4], img.Pix[img.offset(x, y):])
		}
	}
	return img, nil
}

// readScanline fills line with width RGBE pixels.
func readScanline(r *bufio.Reader, line []byte, width int) error {
	head, err := r.Peek(4)
	if err != nil {
		return err
	}
	if width < 8 || width > 0x7FFF || head[0] != 2 || head[1] != 2 || head[2]&0x80 != 0 {
		_, err := io.ReadFull(r, line)
		return err
	}
	if int(head[2])<<8|int(head[3]) != width {
		return io.ErrUnexpectedEOF
	}
	r.Discard(4)

	// Channels are stored planar, each run-length encoded.
	for c := 0; c < 4; c++ {
		for x := 0; x < width; {
			count, err := r.ReadByte()
			if err != nil {
				return err
			}
			if count > 128 {
				n := int(count - 128)
				v, err := r.ReadByte()
				if err != nil {
					return err
				}
				if x+n > width {
					return io.ErrUnexpectedEOF
				}
				for i := 0; i < n; i++ {
					line[4*(x+i)+c] = v
				}
				x += n
				continue
			}
			n := int(count)
			if n == 0 || x+n > width {
				return io.ErrUnexpectedEOF
			}
			for i := 0; i < n; i++ {
				v, err := r.ReadByte()
				if err != nil {
					return err
				}
				line[4*(x+i)+c] = v
			}
			x += n
		}
	}
	return nil
}

func rgbeToFloat(rgbe []byte, dst []float32) {
	if rgbe[3] == 0 {
		dst[0], dst[1], dst[2] = 0, 0, 0
	} else {
		f := float32(math.Ldexp(1, int(rgbe[3])-(128+8)))
		dst[0] = float32(rgbe[0]) * f
		dst[1] = float32(rgbe[1]) * f
		dst[2] = float32(rgbe[2]) * f
	}
	dst[3] = 1
}
