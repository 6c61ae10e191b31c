// Package material compiles material documents, Wavefront MTL libraries and
// imported scene materials into MATERIAL resources.
package material

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/props"
)

// Description is one material. String-valued properties are texture
// references; an empty reference means no texture is bound.
type Description struct {
	Name          string
	IsTransparent bool
	Properties    []props.Property
}

// Add appends a property.
func (d *Description) Add(name string, v props.Value) {
	d.Properties = append(d.Properties, props.Property{Name: name, Value: v})
}

// Property returns the named property.
func (d *Description) Property(name string) (props.Value, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return props.Value{}, false
}

// TextureExtension replaces the source extension of referenced images.
const TextureExtension = ".texture"

// ResolveTexturePath maps an image path relative to the source file to the
// resource path of its compiled texture: rooted at the project output
// directory, slash separated, with a .texture extension.
func ResolveTexturePath(cc resource.CompilerContext, texturePath string) string {
	texturePath = strings.ReplaceAll(texturePath, "\\", "/")
	if texturePath == "" {
		return ""
	}
	name := strings.TrimSuffix(path.Base(texturePath), path.Ext(texturePath)) + TextureExtension

	dir := filepath.Join(cc.OutputDirectory, filepath.FromSlash(path.Dir(texturePath)))
	if cc.RootOutputDirectory != "" {
		if rel, err := filepath.Rel(cc.RootOutputDirectory, dir); err == nil && !strings.HasPrefix(rel, "..") {
			return joinResource(filepath.ToSlash(rel), name)
		}
	}
	// Outside the output tree the reference stays relative to the source.
	return joinResource(path.Dir(texturePath), name)
}

func joinResource(dir, name string) string {
	if dir == "." || dir == "" {
		return "/" + name
	}
	return "/" + strings.TrimPrefix(dir, "/") + "/" + name
}
