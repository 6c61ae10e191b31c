package texture

import (
	"fmt"
	"image"
	"math/bits"

	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/draw"
)

// MipCount returns the number of levels in a full chain for a w by h base:
// dimensions halve per level until both reach 1.
func MipCount(w, h int) int {
	return bits.Len(uint(max(w, h, 1)))
}

// MipSize returns the dimensions of level i.
func MipSize(w, h, level int) (int, int) {
	return max(1, w>>level), max(1, h>>level)
}

// Filters for non-cube mip resampling.
var filters = map[string]transform.ResampleFilter{
	"lanczos":    transform.Lanczos,
	"catmullrom": transform.CatmullRom,
	"linear":     transform.Linear,
}

// ResampleFilter returns the named filter, defaulting to Lanczos.
func ResampleFilter(name string) (transform.ResampleFilter, error) {
	if name == "" {
		return transform.Lanczos, nil
	}
	f, ok := filters[name]
	if !ok {
		return transform.ResampleFilter{}, fmt.Errorf("unknown resample filter %q", name)
	}
	return f, nil
}

// MipChain returns every level of img. Each level is resampled from the
// base image, not from its predecessor.
func MipChain(img *image.NRGBA, filter transform.ResampleFilter) []*image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	levels := []*image.NRGBA{img}
	for i := 1; i < MipCount(w, h); i++ {
		mw, mh := MipSize(w, h, i)
		levels = append(levels, toNRGBA(transform.Resize(img, mw, mh, filter)))
	}
	return levels
}

// FloatMipChain returns every level of img using a 2x2 box filter.
func FloatMipChain(img *FloatImage) []*FloatImage {
	levels := []*FloatImage{img}
	for i := 1; i < MipCount(img.Width, img.Height); i++ {
		levels = append(levels, levels[i-1].Half())
	}
	return levels
}

// CubeFaceSize validates a vertical strip of six square faces and returns
// the face size: face i covers rows [i*size, (i+1)*size) where size is the
// image width.
func CubeFaceSize(src *Source) (int, error) {
	w, h := src.Bounds()
	if h != 6*w {
		return 0, fmt.Errorf("cube map strip must be %dx%d, got %dx%d", w, 6*w, w, h)
	}
	return w, nil
}

// CubeMipChain builds the levels of one face. LDR faces are resampled with
// Catmull-Rom from the 8-bit face, HDR faces with a box filter.
func CubeMipChain(src *Source, face int) []*FloatImage {
	w, _ := src.Bounds()
	if src.HDR != nil {
		return FloatMipChain(src.HDR.Rows(face*w, w))
	}

	rect := image.Rect(0, face*w, w, (face+1)*w)
	levels := make([]*FloatImage, MipCount(w, w))
	for i := range levels {
		size, _ := MipSize(w, w, i)
		dst := image.NewNRGBA(image.Rect(0, 0, size, size))
		if i == 0 {
			draw.Copy(dst, image.Point{}, src.LDR, rect, draw.Src, nil)
		} else {
			draw.CatmullRom.Scale(dst, dst.Rect, src.LDR, rect, draw.Src, nil)
		}
		levels[i] = ldrToFloat(dst)
	}
	return levels
}

func ldrToFloat(img *image.NRGBA) *FloatImage {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := NewFloatImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := img.Pix[img.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y):]
			o := out.offset(x, y)
			for c := 0; c < 4; c++ {
				out.Pix[o+c] = float32(p[c]) / 255
			}
		}
	}
	return out
}
