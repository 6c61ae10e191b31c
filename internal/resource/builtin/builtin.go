// Package builtin assembles the registry of every format compiler.
package builtin

import (
	"fmt"

	"github.com/Faultbox/ceforge/internal/config"
	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/font"
	"github.com/Faultbox/ceforge/internal/resource/material"
	"github.com/Faultbox/ceforge/internal/resource/mesh"
	"github.com/Faultbox/ceforge/internal/resource/scene"
	"github.com/Faultbox/ceforge/internal/resource/sceneimport"
	"github.com/Faultbox/ceforge/internal/resource/shader"
	"github.com/Faultbox/ceforge/internal/resource/texture"
	"github.com/Faultbox/ceforge/internal/toolchain"
)

// NewRegistry returns a registry with every compiler configured from cfg.
// Scene sources (.fbx, .gltf, .glb) go through the mesh compiler first and
// the material compiler second; both share one importer so an FBX file is
// converted only once.
func NewRegistry(cfg *config.Config, runner toolchain.Runner) (*resource.Registry, error) {
	importer := sceneimport.NewImporter(runner, cfg.Tools.FBXImport)

	tex, err := texture.NewCompiler(cfg.Texture.Filter, runner, cfg.Tools.TextureBC6)
	if err != nil {
		return nil, fmt.Errorf("texture compiler: %w", err)
	}

	return resource.NewRegistry(
		mesh.NewCompiler(importer, mesh.ReadOptions{InvertHandedness: cfg.Mesh.InvertHandedness}),
		material.NewCompiler(importer, texture.ProbeAlpha),
		tex,
		scene.NewCompiler(),
		shader.NewCompiler(runner, cfg.Tools.ShaderHLSL, cfg.Tools.ShaderMetal, cfg.Tools.ShaderGLSL),
		font.NewCompiler(),
	), nil
}
