package mesh

import (
	"fmt"
	"strings"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/binfmt"
	vmath "github.com/Faultbox/ceforge/pkg/math"
)

const (
	Magic   = "MESH"
	Version = 1

	// MaterialExtension is appended to non-empty material paths.
	MaterialExtension = ".material"

	vertexSize    = 8 * 4
	subObjectSize = 1 + 4 + 4 + 6*4
)

// Encode writes d as a MESH resource. Each vertex is eight float32 values:
// position, normal and texture coordinate.
func Encode(d *Data) []byte {
	w := binfmt.NewEnvelope(Magic, Version)
	w.Int32(int32(len(d.Vertices)))
	w.Int32(int32(len(d.Indices)))

	for _, v := range d.Vertices {
		w.Float32s(
			v.Position.X, v.Position.Y, v.Position.Z,
			v.Normal.X, v.Normal.Y, v.Normal.Z,
			v.TexCoord.X, v.TexCoord.Y,
		)
	}
	for _, idx := range d.Indices {
		w.Uint32(idx)
	}

	w.Int32(int32(len(d.SubObjects)))
	for _, s := range d.SubObjects {
		if s.MaterialPath == "" {
			w.String("")
		} else {
			w.String(s.MaterialPath + MaterialExtension)
		}
		w.Uint32(s.StartIndex)
		w.Uint32(s.IndexCount)
		b := s.BoundingBox
		w.Float32s(b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
	}
	return w.Data()
}

// Decode parses a MESH resource produced by Encode.
func Decode(data []byte) (*Data, error) {
	r := binfmt.NewReader(data)
	if err := r.Envelope(Magic, Version); err != nil {
		return nil, err
	}

	vertexCount := r.Int32()
	indexCount := r.Int32()
	if r.Err() == nil && (vertexCount < 0 || indexCount < 0 ||
		int64(vertexCount)*vertexSize+int64(indexCount)*4 > int64(r.Remaining())) {
		return nil, fmt.Errorf("%w: %d vertices, %d indices", binfmt.ErrTruncated, vertexCount, indexCount)
	}

	d := &Data{
		Vertices: make([]Vertex, vertexCount),
		Indices:  make([]uint32, indexCount),
	}
	for i := range d.Vertices {
		d.Vertices[i] = Vertex{
			Position: readVec3(r),
			Normal:   readVec3(r),
			TexCoord: vmath.Vec2{X: r.Float32(), Y: r.Float32()},
		}
	}
	for i := range d.Indices {
		d.Indices[i] = r.Uint32()
	}

	n := r.Count(subObjectSize)
	d.SubObjects = make([]SubObject, n)
	for i := range d.SubObjects {
		s := &d.SubObjects[i]
		s.MaterialPath = strings.TrimSuffix(r.String(), MaterialExtension)
		s.StartIndex = r.Uint32()
		s.IndexCount = r.Uint32()
		s.BoundingBox = BoundingBox{Min: readVec3(r), Max: readVec3(r)}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, resource.Malformed("mesh: %v", err)
	}
	return d, nil
}

func readVec3(r *binfmt.Reader) vmath.Vec3 {
	return vmath.Vec3{X: r.Float32(), Y: r.Float32(), Z: r.Float32()}
}
