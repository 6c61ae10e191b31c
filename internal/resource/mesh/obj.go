package mesh

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/textenc"
	vmath "github.com/Faultbox/ceforge/pkg/math"
)

// ReadOptions controls source coordinate conversion.
type ReadOptions struct {
	// InvertHandedness negates Z and flips triangle winding, converting
	// right-handed sources to the engine's left-handed space.
	InvertHandedness bool
}

type objReader struct {
	opts ReadOptions

	positions []vmath.Vec3
	normals   []vmath.Vec3
	texCoords []vmath.Vec2

	out     Data
	current SubObject
	seen    map[vertexKey]uint32
}

// ReadOBJ parses a Wavefront OBJ file. Each group or material switch starts
// a new sub-object; vertices are deduplicated within a sub-object only.
// Faces with more than three vertices are triangulated as a fan.
func ReadOBJ(source []byte, opts ReadOptions) (*Data, error) {
	r := &objReader{opts: opts}
	r.begin("", "")

	for n, line := range textenc.Lines(source) {
		if err := r.parseLine(line); err != nil {
			return nil, resource.Malformed("line %d: %v", n+1, err)
		}
	}
	r.flush()
	return &r.out, nil
}

func (r *objReader) parseLine(line string) error {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "v":
		p, err := parseVec3(fields)
		if err != nil {
			return err
		}
		if r.opts.InvertHandedness {
			p.Z = -p.Z
		}
		r.positions = append(r.positions, p)
	case "vn":
		nv, err := parseVec3(fields)
		if err != nil {
			return err
		}
		if r.opts.InvertHandedness {
			nv.Z = -nv.Z
		}
		r.normals = append(r.normals, nv)
	case "vt":
		if len(fields) < 2 {
			return fmt.Errorf("vt needs at least 1 component")
		}
		var uv vmath.Vec2
		u, err := parseFloat(fields[1])
		if err != nil {
			return err
		}
		uv.X = u
		if len(fields) > 2 {
			if uv.Y, err = parseFloat(fields[2]); err != nil {
				return err
			}
		}
		r.texCoords = append(r.texCoords, uv)
	case "g", "o":
		r.flush()
		r.begin(strings.Join(fields[1:], " "), r.current.MaterialPath)
	case "usemtl":
		if len(fields) < 2 {
			return fmt.Errorf("usemtl needs a name")
		}
		r.flush()
		r.begin(r.current.Name, resource.SafeName(strings.Join(fields[1:], " ")))
	case "f":
		return r.parseFace(fields[1:])
	}
	// mtllib, s, l, p and unknown directives carry nothing the mesh needs.
	return nil
}

func (r *objReader) parseFace(corners []string) error {
	if len(corners) < 3 {
		return fmt.Errorf("face has %d vertices, need at least 3", len(corners))
	}

	idx := make([]uint32, len(corners))
	for i, c := range corners {
		v, err := r.resolveCorner(c)
		if err != nil {
			return err
		}
		idx[i] = r.vertexIndex(v)
	}

	for i := 1; i+1 < len(idx); i++ {
		a, b, c := idx[0], idx[i], idx[i+1]
		if r.opts.InvertHandedness {
			b, c = c, b
		}
		r.out.Indices = append(r.out.Indices, a, b, c)
		r.current.IndexCount += 3
	}
	return nil
}

// resolveCorner reads a p, p/t, p//n or p/t/n face corner.
func (r *objReader) resolveCorner(corner string) (Vertex, error) {
	parts := strings.Split(corner, "/")
	if len(parts) > 3 {
		return Vertex{}, fmt.Errorf("bad face corner %q", corner)
	}

	var v Vertex
	pi, err := resolveIndex(parts[0], len(r.positions))
	if err != nil {
		return Vertex{}, err
	}
	v.Position = r.positions[pi]

	if len(parts) > 1 && parts[1] != "" {
		ti, err := resolveIndex(parts[1], len(r.texCoords))
		if err != nil {
			return Vertex{}, err
		}
		v.TexCoord = r.texCoords[ti]
	}
	if len(parts) > 2 && parts[2] != "" {
		ni, err := resolveIndex(parts[2], len(r.normals))
		if err != nil {
			return Vertex{}, err
		}
		v.Normal = r.normals[ni]
	}
	return v, nil
}

func (r *objReader) vertexIndex(v Vertex) uint32 {
	k := v.key()
	if idx, ok := r.seen[k]; ok {
		return idx
	}
	idx := uint32(len(r.out.Vertices))
	r.out.Vertices = append(r.out.Vertices, v)
	r.seen[k] = idx
	r.current.BoundingBox.Add(v.Position)
	return idx
}

func (r *objReader) begin(name, material string) {
	r.current = SubObject{
		Name:         name,
		StartIndex:   uint32(len(r.out.Indices)),
		BoundingBox:  EmptyBox(),
		MaterialPath: material,
	}
	r.seen = make(map[vertexKey]uint32)
}

// flush closes the current sub-object if it received any faces.
func (r *objReader) flush() {
	if r.current.IndexCount > 0 {
		r.out.SubObjects = append(r.out.SubObjects, r.current)
	}
}

// resolveIndex converts a 1-based or negative relative OBJ index.
func resolveIndex(s string, count int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", s)
	}
	switch {
	case n > 0 && n <= count:
		return n - 1, nil
	case n < 0 && -n <= count:
		return count + n, nil
	}
	return 0, fmt.Errorf("index %d out of range (%d defined)", n, count)
}

func parseVec3(fields []string) (vmath.Vec3, error) {
	if len(fields) < 4 {
		return vmath.Vec3{}, fmt.Errorf("%s needs 3 components, got %d", fields[0], len(fields)-1)
	}
	var v [3]float32
	for i := range v {
		f, err := parseFloat(fields[i+1])
		if err != nil {
			return vmath.Vec3{}, err
		}
		v[i] = f
	}
	return vmath.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

func parseFloat(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return float32(f), nil
}
