// Package sceneimport loads node-hierarchy model formats (glTF, GLB and FBX
// through an external converter) into a format-neutral scene graph shared by
// the mesh and material compilers.
package sceneimport

import (
	"github.com/Faultbox/ceforge/pkg/math"
)

// Scene is an imported model.
type Scene struct {
	Root      *Node
	Meshes    []Mesh
	Materials []Material
}

// Node is one transform in the hierarchy. Transform is relative to the
// parent node.
type Node struct {
	Name      string
	Transform math.Mat4
	Meshes    []int // Indices into Scene.Meshes
	Children  []*Node
}

// Mesh is a triangle list using one material. Normals and TexCoords are
// either empty or the same length as Positions.
type Mesh struct {
	Name          string
	Positions     []math.Vec3
	Normals       []math.Vec3
	TexCoords     []math.Vec2
	Faces         [][3]uint32
	MaterialIndex int // -1 when the mesh has no material
}

// Material holds the surface properties the material compiler emits.
// Texture paths are relative to the model file and empty when unset or
// embedded.
type Material struct {
	Name            string
	DiffuseColor    [4]float32
	SpecularColor   [4]float32
	DiffuseTexture  string
	NormalTexture   string
	SpecularTexture string
	Transparent     bool
}

// MaterialName returns the name of mesh i's material, or "" if it has none.
func (s *Scene) MaterialName(mesh int) string {
	idx := s.Meshes[mesh].MaterialIndex
	if idx < 0 || idx >= len(s.Materials) {
		return ""
	}
	return s.Materials[idx].Name
}

// Walk visits nodes depth-first, passing each node's accumulated
// node-to-root transform.
func (s *Scene) Walk(fn func(n *Node, world math.Mat4)) {
	if s.Root == nil {
		return
	}
	var visit func(n *Node, parent math.Mat4)
	visit = func(n *Node, parent math.Mat4) {
		world := parent.Mul(n.Transform)
		fn(n, world)
		for _, c := range n.Children {
			visit(c, world)
		}
	}
	visit(s.Root, math.Identity())
}
