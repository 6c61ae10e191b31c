package material

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/props"
	"github.com/Faultbox/ceforge/internal/resource/sceneimport"
)

// AlphaProbe reports whether the image file at path has visible
// transparency.
type AlphaProbe func(path string) (bool, error)

// FromScene converts imported materials. A material is transparent when
// the source flags it or, with a non-nil probe, when its diffuse image
// has transparent pixels.
func FromScene(s *sceneimport.Scene, cc resource.CompilerContext, probe AlphaProbe) []*Description {
	out := make([]*Description, 0, len(s.Materials))
	for _, m := range s.Materials {
		d := &Description{Name: resource.SafeName(m.Name), IsTransparent: m.Transparent}

		if !d.IsTransparent && probe != nil && m.DiffuseTexture != "" {
			imagePath := filepath.Join(cc.InputDirectory, filepath.FromSlash(strings.ReplaceAll(m.DiffuseTexture, "\\", "/")))
			alpha, err := probe(imagePath)
			if err != nil {
				cc.Logger().Debug("diffuse texture not inspected",
					zap.String("material", m.Name), zap.String("path", imagePath), zap.Error(err))
			}
			d.IsTransparent = alpha
		}

		d.Add("DiffuseColor", props.FloatsValue(m.DiffuseColor[:]...))
		d.Add("DiffuseTexture", props.StringValue(ResolveTexturePath(cc, m.DiffuseTexture)))
		d.Add("NormalTexture", props.StringValue(ResolveTexturePath(cc, m.NormalTexture)))
		d.Add("BumpTexture", props.StringValue(""))
		d.Add("SpecularColor", props.FloatsValue(m.SpecularColor[:]...))
		d.Add("SpecularTexture", props.StringValue(ResolveTexturePath(cc, m.SpecularTexture)))
		out = append(out, d)
	}
	return out
}
