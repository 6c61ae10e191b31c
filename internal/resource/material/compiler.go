package material

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/sceneimport"
)

// Compiler emits one .material entry per material found in a source.
type Compiler struct {
	Importer *sceneimport.Importer
	Probe    AlphaProbe
}

// NewCompiler returns a material compiler. im reads scene formats and may
// be shared with the mesh compiler.
func NewCompiler(im *sceneimport.Importer, probe AlphaProbe) *Compiler {
	return &Compiler{Importer: im, Probe: probe}
}

func (c *Compiler) Name() string { return "material" }

func (c *Compiler) SourceExtensions() []string {
	return append([]string{".cematerial", ".mtl"}, sceneimport.Extensions...)
}

func (c *Compiler) DestinationExtension() string { return ".material" }

func (c *Compiler) Compile(ctx context.Context, source []byte, cc resource.CompilerContext) ([]resource.ResourceEntry, error) {
	descs, err := c.read(ctx, source, cc)
	if err != nil {
		return nil, err
	}

	entries := make([]resource.ResourceEntry, 0, len(descs))
	for _, d := range descs {
		data, err := Encode(d)
		if err != nil {
			return nil, fmt.Errorf("material %s: %w", d.Name, err)
		}
		cc.Logger().Debug("material encoded",
			zap.String("name", d.Name),
			zap.Int("properties", len(d.Properties)),
			zap.Int("bytes", len(data)))
		entries = append(entries, resource.ResourceEntry{
			Filename: d.Name + c.DestinationExtension(),
			Data:     data,
		})
	}
	return entries, nil
}

func (c *Compiler) read(ctx context.Context, source []byte, cc resource.CompilerContext) ([]*Description, error) {
	switch strings.ToLower(filepath.Ext(cc.SourceFilename)) {
	case ".cematerial":
		d, err := ReadDocument(source, cc)
		if err != nil {
			return nil, err
		}
		return []*Description{d}, nil
	case ".mtl":
		return ReadMTL(source, cc)
	}

	if c.Importer == nil {
		return nil, fmt.Errorf("%w: no scene importer configured", resource.ErrUnsupportedExtension)
	}
	scene, err := c.Importer.Import(ctx, source, cc)
	if err != nil {
		return nil, err
	}
	return FromScene(scene, cc, c.Probe), nil
}
