package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/ceforge/internal/resource/font"
	"github.com/Faultbox/ceforge/internal/resource/material"
	"github.com/Faultbox/ceforge/internal/resource/mesh"
	"github.com/Faultbox/ceforge/internal/resource/scene"
	"github.com/Faultbox/ceforge/internal/resource/shader"
	"github.com/Faultbox/ceforge/internal/resource/texture"
)

// inspect prints a summary of a compiled resource, chosen by its magic.
func inspect(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch {
	case bytes.HasPrefix(data, []byte(material.Magic)):
		return inspectMaterial(w, data)
	case bytes.HasPrefix(data, []byte(mesh.Magic)):
		return inspectMesh(w, data)
	case bytes.HasPrefix(data, []byte(texture.Magic)):
		return inspectTexture(w, data)
	case bytes.HasPrefix(data, []byte(scene.Magic)):
		return inspectScene(w, data)
	case bytes.HasPrefix(data, []byte(shader.Magic)):
		payload, err := shader.Decode(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Shader:  %d bytes\n", len(payload))
		return nil
	case bytes.HasPrefix(data, []byte(font.Magic)):
		f, err := font.Decode(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Font:    %d glyphs, %dx%d atlas\n", len(f.Glyphs), f.Width, f.Height)
		return nil
	}
	return fmt.Errorf("%s: unknown resource type", path)
}

func inspectMesh(w io.Writer, data []byte) error {
	m, err := mesh.Decode(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Mesh:     %d vertices, %d indices\n", len(m.Vertices), len(m.Indices))
	for i, so := range m.SubObjects {
		fmt.Fprintf(w, "  [%d] start=%d count=%d material=%q bounds=%s\n",
			i, so.StartIndex, so.IndexCount, so.MaterialPath, so.BoundingBox)
	}
	return nil
}

func inspectTexture(w io.Writer, data []byte) error {
	t, err := texture.Decode(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Texture:  %dx%d %s, %d face(s), %d mip(s)\n",
		t.Width, t.Height, t.Format, len(t.Levels), t.MipCount())
	return nil
}

func inspectMaterial(w io.Writer, data []byte) error {
	m, err := material.Decode(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Material: %d property bytes, %d texture(s)\n", len(m.Data), len(m.Textures))
	for i, t := range m.Textures {
		fmt.Fprintf(w, "  slot %d at offset %d: %s\n", i+1, t.Offset, t.ResourcePath)
	}
	return nil
}

func inspectScene(w io.Writer, data []byte) error {
	s, err := scene.Decode(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Scene:    %d layout(s), %d entities\n", len(s.Layouts), len(s.Entities))
	for i, l := range s.Layouts {
		fmt.Fprintf(w, "  layout %d hash=%#08x %v\n", i, uint32(l.Hash), l.Types)
	}
	for _, e := range s.Entities {
		fmt.Fprintf(w, "  %s: layout %d, %d component(s)\n", e.Name, e.LayoutIndex, len(e.Components))
	}
	return nil
}
