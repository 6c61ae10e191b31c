// Package texture compiles images into TEXTURE resources: full mip
// chains, block compressed by usage, or uncompressed float cube maps.
package texture

import (
	"context"
	"fmt"
	"image"
	"strconv"

	"github.com/anthonynsimon/bild/transform"
	"go.uber.org/zap"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/toolchain"
)

// Compiler emits one .texture entry per image, or none for masks.
type Compiler struct {
	Filter transform.ResampleFilter
	// Runner and BC6Command compress HDR levels. The command receives the
	// level as raw little-endian RGBA float32 in {input} along with
	// {width} and {height}, and must write BC6H blocks to {output}.
	Runner     toolchain.Runner
	BC6Command string
}

// NewCompiler returns a texture compiler using the named mip filter.
func NewCompiler(filter string, runner toolchain.Runner, bc6Command string) (*Compiler, error) {
	f, err := ResampleFilter(filter)
	if err != nil {
		return nil, err
	}
	return &Compiler{Filter: f, Runner: runner, BC6Command: bc6Command}, nil
}

func (c *Compiler) Name() string { return "texture" }

func (c *Compiler) SourceExtensions() []string {
	return []string{".png", ".jpg", ".jpeg", ".tga", ".bmp", ".gif", ".tif", ".tiff", ".webp", ".hdr"}
}

func (c *Compiler) DestinationExtension() string { return ".texture" }

func (c *Compiler) Compile(ctx context.Context, source []byte, cc resource.CompilerContext) ([]resource.ResourceEntry, error) {
	log := cc.Logger()
	class := Classify(cc.SourceFilename)
	if class.Skip() {
		log.Debug("mask texture skipped", zap.String("source", cc.SourceFilename))
		return nil, nil
	}

	src, err := DecodeSource(source, cc.SourceFilename)
	if err != nil {
		return nil, err
	}

	var tex *Texture
	if class.Cube {
		tex, err = c.buildCube(src)
	} else {
		tex, err = c.build(ctx, src, class)
	}
	if err != nil {
		return nil, err
	}

	log.Debug("texture compiled",
		zap.String("source", cc.SourceFilename),
		zap.Stringer("usage", class.Usage),
		zap.Stringer("format", tex.Format),
		zap.Int("width", tex.Width),
		zap.Int("height", tex.Height),
		zap.Int("faces", len(tex.Levels)),
		zap.Int("mips", tex.MipCount()))

	return []resource.ResourceEntry{{
		Filename: cc.BaseName() + c.DestinationExtension(),
		Data:     Encode(tex),
	}}, nil
}

func (c *Compiler) buildCube(src *Source) (*Texture, error) {
	size, err := CubeFaceSize(src)
	if err != nil {
		return nil, resource.Malformed("%v", err)
	}
	tex := &Texture{Width: size, Height: size, Format: FormatRGBA32F, Levels: make([][][]byte, 6)}
	for face := range tex.Levels {
		for _, level := range CubeMipChain(src, face) {
			tex.Levels[face] = append(tex.Levels[face], level.Bytes())
		}
	}
	return tex, nil
}

func (c *Compiler) build(ctx context.Context, src *Source, class Class) (*Texture, error) {
	w, h := src.Bounds()
	tex := &Texture{Width: w, Height: h, Levels: make([][][]byte, 1)}

	if src.HDR != nil {
		tex.Format = FormatBC6H
		for _, level := range FloatMipChain(src.HDR) {
			blocks, err := c.compressBC6(ctx, level)
			if err != nil {
				return nil, err
			}
			tex.Levels[0] = append(tex.Levels[0], blocks)
		}
		return tex, nil
	}

	var encode func(*image.NRGBA) []byte
	switch class.Usage {
	case UsageNormal:
		tex.Format, encode = FormatBC5, EncodeBC5
	case UsageBump:
		tex.Format, encode = FormatBC4, EncodeBC4
	default:
		transparent := HasAlpha(src.LDR)
		tex.Format = FormatBC3
		encode = func(img *image.NRGBA) []byte { return EncodeBC3(img, transparent) }
	}
	for _, level := range MipChain(src.LDR, c.Filter) {
		tex.Levels[0] = append(tex.Levels[0], encode(level))
	}
	return tex, nil
}

func (c *Compiler) compressBC6(ctx context.Context, level *FloatImage) ([]byte, error) {
	if c.Runner == nil || c.BC6Command == "" {
		return nil, fmt.Errorf("%w: no BC6H compressor configured", resource.ErrExternalTool)
	}
	out, err := c.Runner.Run(ctx, toolchain.Request{
		Command:    c.BC6Command,
		Input:      level.Bytes(),
		InputName:  "level.rgba32f",
		OutputName: "level.bc6h",
		Vars: map[string]string{
			"width":  strconv.Itoa(level.Width),
			"height": strconv.Itoa(level.Height),
		},
	})
	if err != nil {
		return nil, err
	}
	if want := BlockBytes(FormatBC6H, level.Width, level.Height); len(out) != want {
		return nil, fmt.Errorf("%w: BC6H output is %d bytes, want %d", resource.ErrExternalTool, len(out), want)
	}
	return out, nil
}
