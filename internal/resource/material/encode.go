package material

import (
	"encoding/binary"
	"fmt"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/binfmt"
	"github.com/Faultbox/ceforge/internal/resource/props"
)

const (
	Magic   = "MATERIAL"
	Version = 1
)

// TextureEntry binds a texture slot in the property data to a resource.
// Offset is relative to the start of the property data.
type TextureEntry struct {
	Offset       int32
	ResourcePath string
}

// Compiled is a decoded MATERIAL resource. Data holds the property values
// in declaration order with texture slots already patched.
type Compiled struct {
	Textures []TextureEntry
	Data     []byte
}

// Slot returns the texture slot stored at offset: 0 for no texture, i+1
// for Textures[i].
func (c *Compiled) Slot(offset int) (int32, error) {
	if offset < 0 || offset+4 > len(c.Data) {
		return 0, fmt.Errorf("slot offset %d outside %d bytes", offset, len(c.Data))
	}
	return int32(binary.LittleEndian.Uint32(c.Data[offset:])), nil
}

// Encode writes d as a MATERIAL resource. Properties are serialized in two
// passes: values go into a property buffer with a -1 placeholder for each
// texture reference, then every non-empty reference is recorded in the
// texture table and its placeholder is overwritten with the 1-based slot.
// Empty references keep -1 and get no table entry.
func Encode(d *Description) ([]byte, error) {
	data := &binfmt.Writer{}
	var textures []TextureEntry

	for _, p := range d.Properties {
		switch v := p.Value; v.Kind {
		case props.KindString:
			off := data.Placeholder()
			if v.String != "" {
				textures = append(textures, TextureEntry{Offset: int32(off), ResourcePath: v.String})
			}
		case props.KindBool:
			data.Bool(v.Bool)
		case props.KindFloat:
			data.Float32(v.Float)
		case props.KindFloats:
			data.Float32s(v.Floats...)
		default:
			return nil, fmt.Errorf("property %s: unknown kind %v", p.Name, v.Kind)
		}
	}

	for i, t := range textures {
		if err := data.PatchInt32(int(t.Offset), int32(i+1)); err != nil {
			return nil, err
		}
	}

	w := binfmt.NewEnvelope(Magic, Version)
	w.Int32(int32(len(textures)))
	for _, t := range textures {
		w.Int32(t.Offset)
		w.String(t.ResourcePath)
	}
	w.Int32(int32(data.Len()))
	w.Bytes(data.Data())
	return w.Data(), nil
}

// Decode parses a MATERIAL resource.
func Decode(b []byte) (*Compiled, error) {
	r := binfmt.NewReader(b)
	if err := r.Envelope(Magic, Version); err != nil {
		return nil, err
	}

	c := &Compiled{}
	n := r.Count(5)
	c.Textures = make([]TextureEntry, n)
	for i := range c.Textures {
		c.Textures[i] = TextureEntry{Offset: r.Int32(), ResourcePath: r.String()}
	}
	c.Data = r.Bytes(r.Count(1))
	if err := r.Err(); err != nil {
		return nil, err
	}

	for i, t := range c.Textures {
		slot, err := c.Slot(int(t.Offset))
		if err != nil {
			return nil, resource.Malformed("material texture %d: %v", i, err)
		}
		if slot != int32(i+1) {
			return nil, resource.Malformed("material texture %d: slot holds %d", i, slot)
		}
	}
	return c, nil
}
