// Package mesh compiles OBJ, glTF and FBX models into MESH resources:
// deduplicated vertex and index buffers split into per-material sub-objects
// with bounding boxes.
package mesh

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"

	vmath "github.com/Faultbox/ceforge/pkg/math"
)

// Vertex is one mesh vertex. Two vertices are equal only when every
// component matches bit for bit.
type Vertex struct {
	Position vmath.Vec3
	Normal   vmath.Vec3
	TexCoord vmath.Vec2
}

// vertexKey is the bitwise identity of a Vertex, so -0 and +0 differ and
// NaNs with equal payloads match.
type vertexKey [8]uint32

func (v Vertex) key() vertexKey {
	return vertexKey{
		math.Float32bits(v.Position.X), math.Float32bits(v.Position.Y), math.Float32bits(v.Position.Z),
		math.Float32bits(v.Normal.X), math.Float32bits(v.Normal.Y), math.Float32bits(v.Normal.Z),
		math.Float32bits(v.TexCoord.X), math.Float32bits(v.TexCoord.Y),
	}
}

// SubObject is a contiguous index range drawn with one material.
type SubObject struct {
	Name         string // Source group name, not encoded
	StartIndex   uint32
	IndexCount   uint32
	BoundingBox  BoundingBox
	MaterialPath string
}

// Data is a mesh: vertices, indices into them, and the sub-objects that
// partition the index buffer.
type Data struct {
	Vertices   []Vertex
	Indices    []uint32
	SubObjects []SubObject
}

// Validate checks that every index references a vertex and every
// sub-object range lies inside the index buffer.
func (d *Data) Validate() error {
	for i, idx := range d.Indices {
		if int(idx) >= len(d.Vertices) {
			return fmt.Errorf("index %d references vertex %d of %d", i, idx, len(d.Vertices))
		}
	}
	for i, s := range d.SubObjects {
		if uint64(s.StartIndex)+uint64(s.IndexCount) > uint64(len(d.Indices)) {
			return fmt.Errorf("sub-object %d range [%d, %d) exceeds %d indices",
				i, s.StartIndex, uint64(s.StartIndex)+uint64(s.IndexCount), len(d.Indices))
		}
	}
	return nil
}

// BoundingBox is an axis-aligned box. The zero-point sentinel returned by
// EmptyBox has min at +Inf and max at -Inf.
type BoundingBox struct {
	Min vmath.Vec3
	Max vmath.Vec3
}

// EmptyBox returns a box containing no points.
func EmptyBox() BoundingBox {
	inf := math32.Inf(1)
	return BoundingBox{
		Min: vmath.Vec3{X: inf, Y: inf, Z: inf},
		Max: vmath.Vec3{X: -inf, Y: -inf, Z: -inf},
	}
}

// Add grows the box to contain p.
func (b *BoundingBox) Add(p vmath.Vec3) {
	b.Min = b.Min.Min(p)
	b.Max = b.Max.Max(p)
}

// IsEmpty reports whether any min component exceeds its max component.
func (b BoundingBox) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Contains reports whether p lies inside the box, boundary included.
func (b BoundingBox) Contains(p vmath.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() vmath.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

func (b BoundingBox) String() string {
	if b.IsEmpty() {
		return "Empty"
	}
	return fmt.Sprintf("Min: %v, Max: %v", b.Min, b.Max)
}
