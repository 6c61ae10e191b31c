package texture

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Faultbox/ceforge/internal/resource"
)

// Source is a decoded image: exactly one of LDR and HDR is set.
type Source struct {
	LDR *image.NRGBA
	HDR *FloatImage
}

// Bounds returns the image size.
func (s *Source) Bounds() (w, h int) {
	if s.HDR != nil {
		return s.HDR.Width, s.HDR.Height
	}
	return s.LDR.Rect.Dx(), s.LDR.Rect.Dy()
}

// DecodeSource reads a source image. TGA and Radiance HDR are chosen by
// extension; other containers are sniffed from the data.
func DecodeSource(data []byte, filename string) (*Source, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tga":
		img, err := DecodeTGA(data)
		if err != nil {
			return nil, err
		}
		return &Source{LDR: img}, nil
	case ".hdr":
		img, err := DecodeHDR(data)
		if err != nil {
			return nil, err
		}
		return &Source{HDR: img}, nil
	}

	if !filetype.IsImage(data) {
		return nil, resource.Malformed("%s is not a recognized image", filepath.Base(filename))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, resource.Malformed("%s: %v", filepath.Base(filename), err)
	}
	return &Source{LDR: toNRGBA(img)}, nil
}

// toNRGBA converts img to a zero-origin NRGBA image.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}

// HasAlpha reports whether any pixel is not fully opaque.
func HasAlpha(img *image.NRGBA) bool {
	for y := 0; y < img.Rect.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+4*img.Rect.Dx()]
		for i := 3; i < len(row); i += 4 {
			if row[i] != 0xFF {
				return true
			}
		}
	}
	return false
}

// ProbeAlpha decodes the image file at path and reports whether it has
// transparent pixels. HDR images are always opaque.
func ProbeAlpha(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	src, err := DecodeSource(data, path)
	if err != nil {
		return false, err
	}
	return src.LDR != nil && HasAlpha(src.LDR), nil
}
