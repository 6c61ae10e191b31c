package mesh

import (
	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/sceneimport"
	vmath "github.com/Faultbox/ceforge/pkg/math"
)

// FromScene flattens an imported scene into one sub-object per node mesh
// reference. Positions are transformed to root space, normals by the upper
// 3x3 of the same transform, and triangle winding is reversed. Vertices
// are emitted unindexed; Optimize deduplicates them.
func FromScene(s *sceneimport.Scene) *Data {
	var out Data

	s.Walk(func(n *sceneimport.Node, world vmath.Mat4) {
		for _, mi := range n.Meshes {
			if mi < 0 || mi >= len(s.Meshes) {
				continue
			}
			m := &s.Meshes[mi]

			sub := SubObject{
				Name:         m.Name,
				StartIndex:   uint32(len(out.Indices)),
				BoundingBox:  EmptyBox(),
				MaterialPath: resource.SafeName(s.MaterialName(mi)),
			}
			for _, face := range m.Faces {
				for j := 2; j >= 0; j-- {
					v := sceneVertex(m, face[j], world)
					sub.BoundingBox.Add(v.Position)
					out.Indices = append(out.Indices, uint32(len(out.Vertices)))
					out.Vertices = append(out.Vertices, v)
				}
				sub.IndexCount += 3
			}
			if sub.IndexCount > 0 {
				out.SubObjects = append(out.SubObjects, sub)
			}
		}
	})
	return &out
}

func sceneVertex(m *sceneimport.Mesh, i uint32, world vmath.Mat4) Vertex {
	v := Vertex{Position: world.TransformVec3(m.Positions[i])}
	if int(i) < len(m.Normals) {
		v.Normal = world.TransformDirection(m.Normals[i]).Normalize()
	}
	if int(i) < len(m.TexCoords) {
		v.TexCoord = m.TexCoords[i]
	}
	return v
}
