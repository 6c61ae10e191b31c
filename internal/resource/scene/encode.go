package scene

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/binfmt"
	"github.com/Faultbox/ceforge/internal/resource/props"
)

const (
	Magic   = "SCENE"
	Version = 1
)

// Encode writes d as a SCENE resource. Each value carries a type tag
// (bool, float, float[] or string) ahead of its payload; float arrays are
// count prefixed.
func Encode(d *Description) ([]byte, error) {
	w := binfmt.NewEnvelope(Magic, Version)
	w.Int32(int32(len(d.Layouts)))
	w.Int32(int32(len(d.Entities)))

	for _, l := range d.Layouts {
		w.Int32(int32(len(l.Types)))
		for _, t := range l.Types {
			w.String(t)
		}
	}

	for _, e := range d.Entities {
		w.String(e.Name)
		w.Int32(e.LayoutIndex)
		w.Int32(int32(len(e.Components)))
		for _, c := range e.Components {
			w.String(c.Type)
			w.Int32(int32(len(c.Values)))
			for _, p := range c.Values {
				w.String(p.Name)
				w.String(p.Value.Kind.String())
				switch v := p.Value; v.Kind {
				case props.KindString:
					w.String(v.String)
				case props.KindBool:
					w.Bool(v.Bool)
				case props.KindFloat:
					w.Float32(v.Float)
				case props.KindFloats:
					w.Int32(int32(len(v.Floats)))
					w.Float32s(v.Floats...)
				default:
					return nil, fmt.Errorf("%s.%s: unknown kind %v", c.Type, p.Name, v.Kind)
				}
			}
		}
	}
	return w.Data(), nil
}

// Decode parses a SCENE resource. Layout hashes are not stored and are
// recomputed with TypeHash.
func Decode(data []byte) (*Description, error) {
	r := binfmt.NewReader(data)
	if err := r.Envelope(Magic, Version); err != nil {
		return nil, err
	}

	layoutCount := r.Count(4)
	entityCount := r.Count(9)
	d := &Description{
		Layouts:  make([]Layout, layoutCount),
		Entities: make([]Entity, entityCount),
	}

	for i := range d.Layouts {
		types := makeN[string](r.Count(1))
		for j := range types {
			types[j] = r.String()
		}
		l := Canonical(types, TypeHash)
		d.Layouts[i] = Layout{Hash: l.Hash, Types: types}
	}

	for i := range d.Entities {
		e := &d.Entities[i]
		e.Name = r.String()
		e.LayoutIndex = r.Int32()
		e.Components = makeN[Component](r.Count(5))
		for j := range e.Components {
			c := &e.Components[j]
			c.Type = r.String()
			c.Values = makeN[props.Property](r.Count(3))
			for k := range c.Values {
				v, err := decodeValue(r)
				if err != nil {
					return nil, err
				}
				c.Values[k] = v
			}
		}
		if r.Err() == nil && (e.LayoutIndex < 0 || int(e.LayoutIndex) >= layoutCount) {
			return nil, resource.Malformed("entity %s: layout %d of %d", e.Name, e.LayoutIndex, layoutCount)
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// makeN mirrors the reader, which leaves empty lists nil.
func makeN[T any](n int) []T {
	if n == 0 {
		return nil
	}
	return make([]T, n)
}

func decodeValue(r *binfmt.Reader) (props.Property, error) {
	p := props.Property{Name: r.String()}
	tag := r.String()
	if r.Err() != nil {
		return p, r.Err()
	}
	kind, ok := props.ParseKind(tag)
	if !ok {
		return p, resource.Malformed("value %s: unknown type tag %q", p.Name, tag)
	}

	switch kind {
	case props.KindString:
		p.Value = props.StringValue(r.String())
	case props.KindBool:
		p.Value = props.BoolValue(r.Bool())
	case props.KindFloat:
		p.Value = props.FloatValue(r.Float32())
	case props.KindFloats:
		fs := make([]float32, r.Count(4))
		for i := range fs {
			fs[i] = r.Float32()
		}
		p.Value = props.FloatsValue(fs...)
	}
	return p, nil
}

// Compiler emits one .scene entry per .cescene source.
type Compiler struct {
	// Hash overrides TypeHash for layout canonicalization.
	Hash HashFunc
}

func NewCompiler() *Compiler { return &Compiler{} }

func (c *Compiler) Name() string { return "scene" }

func (c *Compiler) SourceExtensions() []string { return []string{".cescene"} }

func (c *Compiler) DestinationExtension() string { return ".scene" }

func (c *Compiler) Compile(_ context.Context, source []byte, cc resource.CompilerContext) ([]resource.ResourceEntry, error) {
	d, err := Read(source, NewLayoutRegistry(c.Hash), cc.Logger())
	if err != nil {
		return nil, err
	}
	cc.Logger().Debug("scene read",
		zap.String("source", cc.SourceFilename),
		zap.Int("entities", len(d.Entities)),
		zap.Int("layouts", len(d.Layouts)))

	data, err := Encode(d)
	if err != nil {
		return nil, err
	}
	return []resource.ResourceEntry{{
		Filename: cc.BaseName() + c.DestinationExtension(),
		Data:     data,
	}}, nil
}
