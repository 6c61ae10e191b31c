package mesh

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/sceneimport"
)

// Compiler produces one .mesh entry per OBJ, glTF, GLB or FBX source.
type Compiler struct {
	Importer *sceneimport.Importer
	Options  ReadOptions
}

// NewCompiler returns a mesh compiler reading scene formats through im.
func NewCompiler(im *sceneimport.Importer, opts ReadOptions) *Compiler {
	return &Compiler{Importer: im, Options: opts}
}

func (c *Compiler) Name() string { return "mesh" }

func (c *Compiler) SourceExtensions() []string {
	return append([]string{".obj"}, sceneimport.Extensions...)
}

func (c *Compiler) DestinationExtension() string { return ".mesh" }

func (c *Compiler) Compile(ctx context.Context, source []byte, cc resource.CompilerContext) ([]resource.ResourceEntry, error) {
	raw, err := c.read(ctx, source, cc)
	if err != nil {
		return nil, err
	}

	data := Optimize(raw)
	cc.Logger().Debug("mesh optimized",
		zap.String("source", cc.SourceFilename),
		zap.Int("vertices_in", len(raw.Vertices)),
		zap.Int("vertices_out", len(data.Vertices)),
		zap.Int("indices", len(data.Indices)),
		zap.Int("sub_objects", len(data.SubObjects)))

	return []resource.ResourceEntry{{
		Filename: cc.BaseName() + c.DestinationExtension(),
		Data:     Encode(data),
	}}, nil
}

func (c *Compiler) read(ctx context.Context, source []byte, cc resource.CompilerContext) (*Data, error) {
	if strings.EqualFold(filepath.Ext(cc.SourceFilename), ".obj") {
		return ReadOBJ(source, c.Options)
	}
	if c.Importer == nil {
		return nil, fmt.Errorf("%w: no scene importer configured", resource.ErrUnsupportedExtension)
	}
	scene, err := c.Importer.Import(ctx, source, cc)
	if err != nil {
		return nil, err
	}
	return FromScene(scene), nil
}
