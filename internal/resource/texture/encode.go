package texture

import (
	"fmt"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/binfmt"
)

const (
	Magic   = "TEXTURE"
	Version = 1
)

// Format is the pixel encoding of every level of a texture.
type Format int32

const (
	FormatBC3     Format = 1
	FormatBC4     Format = 2
	FormatBC5     Format = 3
	FormatBC6H    Format = 4
	FormatRGBA32F Format = 5
)

func (f Format) String() string {
	switch f {
	case FormatBC3:
		return "BC3"
	case FormatBC4:
		return "BC4"
	case FormatBC5:
		return "BC5"
	case FormatBC6H:
		return "BC6H"
	case FormatRGBA32F:
		return "RGBA32F"
	}
	return fmt.Sprintf("Format(%d)", int32(f))
}

// Texture is a compiled texture. Levels is indexed by face, then mip.
type Texture struct {
	Width  int
	Height int
	Format Format
	Levels [][][]byte
}

// MipCount returns the number of mip levels per face.
func (t *Texture) MipCount() int {
	if len(t.Levels) == 0 {
		return 0
	}
	return len(t.Levels[0])
}

// Encode writes t as a TEXTURE resource: base size, format, face and mip
// counts, then each level face-major, every level length prefixed.
func Encode(t *Texture) []byte {
	w := binfmt.NewEnvelope(Magic, Version)
	w.Int32(int32(t.Width))
	w.Int32(int32(t.Height))
	w.Int32(int32(t.Format))
	w.Int32(int32(len(t.Levels)))
	w.Int32(int32(t.MipCount()))
	for _, face := range t.Levels {
		for _, level := range face {
			w.Int32(int32(len(level)))
			w.Bytes(level)
		}
	}
	return w.Data()
}

// Decode parses a TEXTURE resource and checks every level has the size
// its format implies.
func Decode(data []byte) (*Texture, error) {
	r := binfmt.NewReader(data)
	if err := r.Envelope(Magic, Version); err != nil {
		return nil, err
	}

	t := &Texture{
		Width:  int(r.Int32()),
		Height: int(r.Int32()),
		Format: Format(r.Int32()),
	}
	faces := r.Count(4)
	mips := r.Count(0)
	if err := r.Err(); err != nil {
		return nil, err
	}
	if t.Width <= 0 || t.Height <= 0 || mips > MipCount(t.Width, t.Height) {
		return nil, resource.Malformed("texture: %dx%d with %d mips", t.Width, t.Height, mips)
	}

	t.Levels = make([][][]byte, faces)
	for f := range t.Levels {
		t.Levels[f] = make([][]byte, mips)
		for m := range t.Levels[f] {
			t.Levels[f][m] = r.Bytes(int(r.Int32()))
			if r.Err() != nil {
				return nil, r.Err()
			}
			w, h := MipSize(t.Width, t.Height, m)
			if want := BlockBytes(t.Format, w, h); len(t.Levels[f][m]) != want {
				return nil, resource.Malformed("texture: face %d mip %d is %d bytes, want %d",
					f, m, len(t.Levels[f][m]), want)
			}
		}
	}
	return t, nil
}
