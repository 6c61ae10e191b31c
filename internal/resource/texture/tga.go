package texture

import (
	"image"

	"github.com/Faultbox/ceforge/internal/resource"
)

// TGA image types.
const (
	TGATypeTrueColor    = 2
	TGATypeGray         = 3
	TGATypeTrueColorRLE = 10
	TGATypeGrayRLE      = 11
)

const tgaHeaderSize = 18

// DecodeTGA decodes uncompressed or RLE true-color (24/32 bit) and
// grayscale (8 bit) TGA images. Color-mapped files are rejected.
func DecodeTGA(data []byte) (*image.NRGBA, error) {
	if len(data) < tgaHeaderSize {
		return nil, resource.Malformed("tga: header truncated")
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, resource.Malformed("tga: color-mapped images are not supported")
	}
	gray := imageType == TGATypeGray || imageType == TGATypeGrayRLE
	rle := imageType == TGATypeTrueColorRLE || imageType == TGATypeGrayRLE
	switch {
	case imageType != TGATypeTrueColor && imageType != TGATypeTrueColorRLE && !gray:
		return nil, resource.Malformed("tga: unsupported image type %d", imageType)
	case gray && bpp != 8:
		return nil, resource.Malformed("tga: unsupported grayscale depth %d", bpp)
	case !gray && bpp != 24 && bpp != 32:
		return nil, resource.Malformed("tga: unsupported depth %d", bpp)
	case width == 0 || height == 0:
		return nil, resource.Malformed("tga: empty image %dx%d", width, height)
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, resource.Malformed("tga: id field truncated")
	}

	d := &tgaDecoder{
		img:         image.NewNRGBA(image.Rect(0, 0, width, height)),
		src:         data[offset:],
		bytesPP:     bpp / 8,
		topToBottom: descriptor&0x20 != 0,
		rightToLeft: descriptor&0x10 != 0,
	}
	var err error
	if rle {
		err = d.decodeRLE()
	} else {
		err = d.decodeRaw()
	}
	if err != nil {
		return nil, err
	}
	return d.img, nil
}

type tgaDecoder struct {
	img         *image.NRGBA
	src         []byte
	pos         int
	pixel       int
	bytesPP     int
	topToBottom bool
	rightToLeft bool
}

func (d *tgaDecoder) decodeRaw() error {
	total := d.img.Rect.Dx() * d.img.Rect.Dy()
	if len(d.src) < total*d.bytesPP {
		return resource.Malformed("tga: pixel data truncated")
	}
	for d.pixel < total {
		d.put(d.read())
	}
	return nil
}

func (d *tgaDecoder) decodeRLE() error {
	total := d.img.Rect.Dx() * d.img.Rect.Dy()
	for d.pixel < total {
		if d.pos >= len(d.src) {
			return resource.Malformed("tga: RLE data truncated at pixel %d", d.pixel)
		}
		packet := d.src[d.pos]
		d.pos++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			if d.pos+d.bytesPP > len(d.src) {
				return resource.Malformed("tga: RLE packet truncated")
			}
			c := d.read()
			for i := 0; i < count && d.pixel < total; i++ {
				d.put(c)
			}
			continue
		}
		if d.pos+count*d.bytesPP > len(d.src) {
			return resource.Malformed("tga: raw packet truncated")
		}
		for i := 0; i < count && d.pixel < total; i++ {
			d.put(d.read())
		}
	}
	return nil
}

// read consumes one BGR(A) or gray source pixel as RGBA.
func (d *tgaDecoder) read() [4]uint8 {
	p := d.src[d.pos : d.pos+d.bytesPP]
	d.pos += d.bytesPP
	switch d.bytesPP {
	case 1:
		return [4]uint8{p[0], p[0], p[0], 255}
	case 3:
		return [4]uint8{p[2], p[1], p[0], 255}
	}
	return [4]uint8{p[2], p[1], p[0], p[3]}
}

func (d *tgaDecoder) put(c [4]uint8) {
	w, h := d.img.Rect.Dx(), d.img.Rect.Dy()
	x, y := d.pixel%w, d.pixel/w
	if !d.topToBottom {
		y = h - 1 - y
	}
	if d.rightToLeft {
		x = w - 1 - x
	}
	i := d.img.PixOffset(x, y)
	copy(d.img.Pix[i:i+4], c[:])
	d.pixel++
}
