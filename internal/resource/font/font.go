// Package font rasterizes a glyph set from a TrueType or OpenType font into
// a single-channel atlas and emits FONT resources with per-glyph metrics.
package font

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"go.uber.org/zap"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/binfmt"
)

const (
	Magic   = "FONT"
	Version = 1

	// GlyphSet is the rasterized character set, in output order.
	GlyphSet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-/\\\"'#&!., :$<>[]()"

	DefaultSize    = 34
	DefaultDPI     = 72
	DefaultAtlas   = 512
	DefaultPadding = 10
)

// Glyph is the placement of one character in the atlas. Texture
// coordinates are normalized to the atlas size.
type Glyph struct {
	Code         int32
	Width        int32
	Height       int32
	BearingLeft  int32
	BearingRight int32
	UMin, VMin   float32
	UMax, VMax   float32
}

// Font is a compiled font: glyph records and an RGBA atlas with white
// color and coverage in alpha.
type Font struct {
	Glyphs []Glyph
	Width  int
	Height int
	Pixels []byte
}

// Compiler rasterizes .ttf and .otf sources.
type Compiler struct {
	Size    float64
	DPI     float64
	Atlas   int
	Padding int
}

// NewCompiler returns a font compiler with the default face and atlas
// settings.
func NewCompiler() *Compiler {
	return &Compiler{Size: DefaultSize, DPI: DefaultDPI, Atlas: DefaultAtlas, Padding: DefaultPadding}
}

func (c *Compiler) Name() string { return "font" }

func (c *Compiler) SourceExtensions() []string { return []string{".ttf", ".otf"} }

func (c *Compiler) DestinationExtension() string { return ".font" }

func (c *Compiler) Compile(_ context.Context, source []byte, cc resource.CompilerContext) ([]resource.ResourceEntry, error) {
	f, err := opentype.Parse(source)
	if err != nil {
		return nil, resource.Malformed("font: %v", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    c.Size,
		DPI:     c.DPI,
		Hinting: xfont.HintingFull,
	})
	if err != nil {
		return nil, resource.Malformed("font: %v", err)
	}
	defer face.Close()

	out, err := c.rasterize(face)
	if err != nil {
		return nil, err
	}

	cc.Logger().Debug("font compiled",
		zap.String("source", cc.SourceFilename),
		zap.Int("glyphs", len(out.Glyphs)),
		zap.Int("line_height", int(out.Glyphs[0].Height)))

	return []resource.ResourceEntry{{
		Filename: cc.BaseName() + c.DestinationExtension(),
		Data:     Encode(out),
	}}, nil
}

func (c *Compiler) rasterize(face xfont.Face) (*Font, error) {
	m := face.Metrics()
	height := (m.Ascent + m.Descent).Ceil()
	glyphs := []rune(GlyphSet)

	widths := make([]int, len(glyphs))
	records := make([]Glyph, len(glyphs))
	for i, r := range glyphs {
		bounds, advance, ok := face.GlyphBounds(r)
		if !ok {
			return nil, resource.Malformed("font: no glyph for %q", r)
		}
		widths[i] = advance.Floor()
		records[i] = Glyph{
			Code:   int32(r),
			Width:  int32(widths[i]),
			Height: int32(height),
		}
		if bounds.Max.X > bounds.Min.X {
			records[i].BearingLeft = int32(bounds.Min.X.Floor())
			records[i].BearingRight = int32((advance - bounds.Max.X).Floor())
		}
	}

	pos, err := PackGlyphs(widths, height, c.Atlas, c.Padding)
	if err != nil {
		return nil, fmt.Errorf("%w: %d glyphs at height %d in %dx%d", err, len(glyphs), height, c.Atlas, c.Atlas)
	}

	atlas := image.NewAlpha(image.Rect(0, 0, c.Atlas, c.Atlas))
	d := &xfont.Drawer{Dst: atlas, Src: image.Opaque, Face: face}
	size := float32(c.Atlas)
	for i, r := range glyphs {
		p := pos[i]
		d.Dot = fixed.P(p.X, p.Y).Add(fixed.Point26_6{Y: m.Ascent})
		d.DrawString(string(r))

		g := &records[i]
		g.UMin = float32(p.X) / size
		g.VMin = float32(p.Y) / size
		g.UMax = float32(p.X+widths[i]) / size
		g.VMax = float32(p.Y+height) / size
	}

	return &Font{Glyphs: records, Width: c.Atlas, Height: c.Atlas, Pixels: whiteRGBA(atlas)}, nil
}

// whiteRGBA expands coverage into white RGBA texels.
func whiteRGBA(a *image.Alpha) []byte {
	rgba := image.NewNRGBA(a.Rect)
	draw.Draw(rgba, rgba.Rect, image.White, image.Point{}, draw.Src)
	for i, v := range a.Pix {
		rgba.Pix[4*i+3] = v
	}
	return rgba.Pix
}

// Encode writes f as a FONT resource.
func Encode(f *Font) []byte {
	w := binfmt.NewEnvelope(Magic, Version)
	w.Int32(int32(len(f.Glyphs)))
	for _, g := range f.Glyphs {
		w.Int32(g.Code)
		w.Int32(g.Width)
		w.Int32(g.Height)
		w.Int32(g.BearingLeft)
		w.Int32(g.BearingRight)
		w.Float32s(g.UMin, g.VMin, g.UMax, g.VMax)
	}
	w.Int32(int32(f.Width))
	w.Int32(int32(f.Height))
	w.Int32(int32(len(f.Pixels)))
	w.Bytes(f.Pixels)
	return w.Data()
}

const glyphSize = 9 * 4

// Decode parses a FONT resource.
func Decode(data []byte) (*Font, error) {
	r := binfmt.NewReader(data)
	if err := r.Envelope(Magic, Version); err != nil {
		return nil, err
	}
	f := &Font{Glyphs: make([]Glyph, r.Count(glyphSize))}
	for i := range f.Glyphs {
		g := &f.Glyphs[i]
		g.Code, g.Width, g.Height = r.Int32(), r.Int32(), r.Int32()
		g.BearingLeft, g.BearingRight = r.Int32(), r.Int32()
		g.UMin, g.VMin, g.UMax, g.VMax = r.Float32(), r.Float32(), r.Float32(), r.Float32()
	}
	f.Width = int(r.Int32())
	f.Height = int(r.Int32())
	f.Pixels = r.Bytes(int(r.Int32()))
	if err := r.Err(); err != nil {
		return nil, err
	}
	if len(f.Pixels) != 4*f.Width*f.Height {
		return nil, resource.Malformed("font: atlas is %d bytes for %dx%d", len(f.Pixels), f.Width, f.Height)
	}
	return f, nil
}
