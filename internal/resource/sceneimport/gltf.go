package sceneimport

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/ceforge/internal/resource"
	vmath "github.com/Faultbox/ceforge/pkg/math"
)

// glTF errors.
var (
	ErrInvalidGLB          = errors.New("invalid GLB container")
	ErrUnsupportedGLTF     = errors.New("unsupported glTF asset version")
	ErrInvalidAccessor     = errors.New("invalid glTF accessor")
	ErrUnsupportedPrimMode = errors.New("unsupported primitive mode")
)

const (
	glbMagic     = 0x46546C67 // "glTF"
	glbVersion   = 2
	glbChunkJSON = 0x4E4F534A
	glbChunkBIN  = 0x004E4942

	modeTriangles = 4

	componentUnsignedByte  = 5121
	componentUnsignedShort = 5123
	componentUnsignedInt   = 5125
	componentFloat         = 5126
)

type gltfDocument struct {
	Asset struct {
		Version string `json:"version"`
	} `json:"asset"`
	Scene       *int             `json:"scene,omitempty"`
	Scenes      []gltfScene      `json:"scenes,omitempty"`
	Nodes       []gltfNode       `json:"nodes,omitempty"`
	Meshes      []gltfMesh       `json:"meshes,omitempty"`
	Accessors   []gltfAccessor   `json:"accessors,omitempty"`
	BufferViews []gltfBufferView `json:"bufferViews,omitempty"`
	Buffers     []gltfBuffer     `json:"buffers,omitempty"`
	Materials   []gltfMaterial   `json:"materials,omitempty"`
	Textures    []gltfTexture    `json:"textures,omitempty"`
	Images      []gltfImage      `json:"images,omitempty"`
}

type gltfScene struct {
	Nodes []int `json:"nodes,omitempty"`
}

type gltfNode struct {
	Name        string       `json:"name,omitempty"`
	Children    []int        `json:"children,omitempty"`
	Mesh        *int         `json:"mesh,omitempty"`
	Matrix      *[16]float32 `json:"matrix,omitempty"`
	Translation *[3]float32  `json:"translation,omitempty"`
	Rotation    *[4]float32  `json:"rotation,omitempty"`
	Scale       *[3]float32  `json:"scale,omitempty"`
}

type gltfMesh struct {
	Name       string          `json:"name,omitempty"`
	Primitives []gltfPrimitive `json:"primitives"`
}

type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices,omitempty"`
	Material   *int           `json:"material,omitempty"`
	Mode       *int           `json:"mode,omitempty"`
}

type gltfAccessor struct {
	BufferView    *int   `json:"bufferView,omitempty"`
	ByteOffset    int    `json:"byteOffset,omitempty"`
	ComponentType int    `json:"componentType"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
}

type gltfBufferView struct {
	Buffer     int  `json:"buffer"`
	ByteOffset int  `json:"byteOffset,omitempty"`
	ByteLength int  `json:"byteLength"`
	ByteStride *int `json:"byteStride,omitempty"`
}

type gltfBuffer struct {
	URI        string `json:"uri,omitempty"`
	ByteLength int    `json:"byteLength"`
	data       []byte
}

type gltfMaterial struct {
	Name                 string `json:"name,omitempty"`
	AlphaMode            string `json:"alphaMode,omitempty"`
	PbrMetallicRoughness *struct {
		BaseColorFactor  *[4]float32      `json:"baseColorFactor,omitempty"`
		BaseColorTexture *gltfTextureInfo `json:"baseColorTexture,omitempty"`
	} `json:"pbrMetallicRoughness,omitempty"`
	NormalTexture *gltfTextureInfo `json:"normalTexture,omitempty"`
	Extensions    struct {
		Specular *struct {
			SpecularColorFactor  *[3]float32      `json:"specularColorFactor,omitempty"`
			SpecularColorTexture *gltfTextureInfo `json:"specularColorTexture,omitempty"`
		} `json:"KHR_materials_specular,omitempty"`
	} `json:"extensions"`
}

type gltfTextureInfo struct {
	Index int `json:"index"`
}

type gltfTexture struct {
	Source *int `json:"source,omitempty"`
}

type gltfImage struct {
	URI string `json:"uri,omitempty"`
}

// IsGLB reports whether data starts with the binary glTF header.
func IsGLB(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == glbMagic
}

// ParseGLTF loads a .gltf JSON document or a .glb container. External
// buffers are resolved relative to baseDir.
func ParseGLTF(data []byte, baseDir string) (*Scene, error) {
	var (
		jsonData []byte
		binChunk []byte
		err      error
	)
	if IsGLB(data) {
		jsonData, binChunk, err = splitGLB(data)
		if err != nil {
			return nil, err
		}
	} else {
		jsonData = data
	}

	var doc gltfDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, resource.Malformed("glTF JSON: %v", err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGLTF, doc.Asset.Version)
	}
	if err := loadBuffers(&doc, binChunk, baseDir); err != nil {
		return nil, err
	}

	return buildScene(&doc)
}

func splitGLB(data []byte) (jsonData, binData []byte, err error) {
	if len(data) < 12 {
		return nil, nil, fmt.Errorf("%w: file too small", ErrInvalidGLB)
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != glbVersion {
		return nil, nil, fmt.Errorf("%w: version %d", ErrInvalidGLB, v)
	}

	r := bytes.NewReader(data[12:])
	for r.Len() > 0 {
		var header struct {
			Length uint32
			Type   uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
			return nil, nil, fmt.Errorf("%w: chunk header: %v", ErrInvalidGLB, err)
		}
		if int(header.Length) > r.Len() {
			return nil, nil, fmt.Errorf("%w: chunk exceeds file", ErrInvalidGLB)
		}
		chunk := make([]byte, header.Length)
		r.Read(chunk)

		switch header.Type {
		case glbChunkJSON:
			jsonData = chunk
		case glbChunkBIN:
			binData = chunk
		}
	}

	if jsonData == nil {
		return nil, nil, fmt.Errorf("%w: missing JSON chunk", ErrInvalidGLB)
	}
	return jsonData, binData, nil
}

func loadBuffers(doc *gltfDocument, binChunk []byte, baseDir string) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]

		switch {
		case buf.URI == "" && i == 0 && binChunk != nil:
			buf.data = binChunk
		case buf.URI == "":
			return resource.Malformed("buffer %d has no URI and no GLB binary chunk", i)
		case strings.HasPrefix(buf.URI, "data:"):
			data, err := decodeDataURI(buf.URI)
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.data = data
		default:
			data, err := os.ReadFile(filepath.Join(baseDir, filepath.FromSlash(buf.URI)))
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.data = data
		}

		if len(buf.data) < buf.ByteLength {
			return resource.Malformed("buffer %d holds %d bytes, declared %d", i, len(buf.data), buf.ByteLength)
		}
	}
	return nil
}

// decodeDataURI decodes data:[<mediatype>];base64,<data>.
func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.Index(uri, ",")
	if comma < 0 {
		return nil, resource.Malformed("data URI without payload")
	}
	if !strings.Contains(uri[5:comma], "base64") {
		return nil, resource.Malformed("unsupported data URI encoding %q", uri[5:comma])
	}
	data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return nil, resource.Malformed("data URI: %v", err)
	}
	return data, nil
}

func buildScene(doc *gltfDocument) (*Scene, error) {
	s := &Scene{}

	for i, m := range doc.Materials {
		s.Materials = append(s.Materials, convertMaterial(doc, i, m))
	}

	// Each primitive becomes one scene mesh; meshFirst maps a glTF mesh to
	// its first primitive.
	meshFirst := make([]int, len(doc.Meshes))
	for i, m := range doc.Meshes {
		meshFirst[i] = len(s.Meshes)
		for p := range m.Primitives {
			mesh, err := readPrimitive(doc, &m.Primitives[p])
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", i, p, err)
			}
			mesh.Name = m.Name
			s.Meshes = append(s.Meshes, mesh)
		}
	}

	roots := sceneRoots(doc)
	s.Root = &Node{Name: "root", Transform: vmath.Identity()}

	visiting := make(map[int]bool)
	var build func(idx int) (*Node, error)
	build = func(idx int) (*Node, error) {
		if idx < 0 || idx >= len(doc.Nodes) {
			return nil, resource.Malformed("node index %d out of range", idx)
		}
		if visiting[idx] {
			return nil, resource.Malformed("node %d is its own ancestor", idx)
		}
		visiting[idx] = true
		defer delete(visiting, idx)

		gn := doc.Nodes[idx]
		n := &Node{Name: gn.Name, Transform: nodeTransform(gn)}
		if gn.Mesh != nil {
			if *gn.Mesh < 0 || *gn.Mesh >= len(doc.Meshes) {
				return nil, resource.Malformed("node %d references mesh %d", idx, *gn.Mesh)
			}
			for p := range doc.Meshes[*gn.Mesh].Primitives {
				n.Meshes = append(n.Meshes, meshFirst[*gn.Mesh]+p)
			}
		}
		for _, c := range gn.Children {
			child, err := build(c)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
		return n, nil
	}

	for _, idx := range roots {
		n, err := build(idx)
		if err != nil {
			return nil, err
		}
		s.Root.Children = append(s.Root.Children, n)
	}
	return s, nil
}

// sceneRoots returns the root nodes of the default scene, or every
// parentless node when the document declares no scenes.
func sceneRoots(doc *gltfDocument) []int {
	if len(doc.Scenes) > 0 {
		idx := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			idx = *doc.Scene
		}
		return doc.Scenes[idx].Nodes
	}

	hasParent := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(hasParent) {
				hasParent[c] = true
			}
		}
	}
	var roots []int
	for i, p := range hasParent {
		if !p {
			roots = append(roots, i)
		}
	}
	return roots
}

func nodeTransform(n gltfNode) vmath.Mat4 {
	if n.Matrix != nil {
		return vmath.Mat4(*n.Matrix)
	}
	t := vmath.Vec3{}
	r := vmath.QuatIdentity()
	s := vmath.Vec3{X: 1, Y: 1, Z: 1}
	if n.Translation != nil {
		t = vmath.Vec3{X: n.Translation[0], Y: n.Translation[1], Z: n.Translation[2]}
	}
	if n.Rotation != nil {
		r = vmath.Quat{X: n.Rotation[0], Y: n.Rotation[1], Z: n.Rotation[2], W: n.Rotation[3]}.Normalize()
	}
	if n.Scale != nil {
		s = vmath.Vec3{X: n.Scale[0], Y: n.Scale[1], Z: n.Scale[2]}
	}
	return vmath.FromTRS(t, r, s)
}

func convertMaterial(doc *gltfDocument, idx int, m gltfMaterial) Material {
	out := Material{
		Name:         m.Name,
		DiffuseColor: [4]float32{1, 1, 1, 1},
		Transparent:  m.AlphaMode == "BLEND" || m.AlphaMode == "MASK",
	}
	if out.Name == "" {
		out.Name = fmt.Sprintf("Material%d", idx)
	}
	if pbr := m.PbrMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			out.DiffuseColor = *pbr.BaseColorFactor
		}
		if pbr.BaseColorTexture != nil {
			out.DiffuseTexture = texturePath(doc, pbr.BaseColorTexture.Index)
		}
	}
	if m.NormalTexture != nil {
		out.NormalTexture = texturePath(doc, m.NormalTexture.Index)
	}
	if spec := m.Extensions.Specular; spec != nil {
		if c := spec.SpecularColorFactor; c != nil {
			out.SpecularColor = [4]float32{c[0], c[1], c[2], 1}
		}
		if spec.SpecularColorTexture != nil {
			out.SpecularTexture = texturePath(doc, spec.SpecularColorTexture.Index)
		}
	}
	return out
}

// texturePath returns the file URI of a texture's image, or "" for
// embedded images.
func texturePath(doc *gltfDocument, texture int) string {
	if texture < 0 || texture >= len(doc.Textures) {
		return ""
	}
	src := doc.Textures[texture].Source
	if src == nil || *src < 0 || *src >= len(doc.Images) {
		return ""
	}
	uri := doc.Images[*src].URI
	if uri == "" || strings.HasPrefix(uri, "data:") {
		return ""
	}
	return uri
}

func readPrimitive(doc *gltfDocument, prim *gltfPrimitive) (Mesh, error) {
	mesh := Mesh{MaterialIndex: -1}
	if prim.Material != nil {
		mesh.MaterialIndex = *prim.Material
	}
	if prim.Mode != nil && *prim.Mode != modeTriangles {
		return mesh, fmt.Errorf("%w: %d (only triangles supported)", ErrUnsupportedPrimMode, *prim.Mode)
	}

	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return mesh, resource.Malformed("primitive has no POSITION attribute")
	}
	positions, err := readFloats(doc, posIdx, "VEC3")
	if err != nil {
		return mesh, fmt.Errorf("positions: %w", err)
	}
	count := len(positions) / 3
	mesh.Positions = make([]vmath.Vec3, count)
	for i := range mesh.Positions {
		mesh.Positions[i] = vmath.Vec3{X: positions[i*3], Y: positions[i*3+1], Z: positions[i*3+2]}
	}

	if idx, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := readFloats(doc, idx, "VEC3")
		if err != nil {
			return mesh, fmt.Errorf("normals: %w", err)
		}
		if len(normals) != count*3 {
			return mesh, resource.Malformed("normal count %d does not match %d positions", len(normals)/3, count)
		}
		mesh.Normals = make([]vmath.Vec3, count)
		for i := range mesh.Normals {
			mesh.Normals[i] = vmath.Vec3{X: normals[i*3], Y: normals[i*3+1], Z: normals[i*3+2]}
		}
	}

	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, err := readFloats(doc, idx, "VEC2")
		if err != nil {
			return mesh, fmt.Errorf("texcoords: %w", err)
		}
		if len(uvs) != count*2 {
			return mesh, resource.Malformed("texcoord count %d does not match %d positions", len(uvs)/2, count)
		}
		mesh.TexCoords = make([]vmath.Vec2, count)
		for i := range mesh.TexCoords {
			mesh.TexCoords[i] = vmath.Vec2{X: uvs[i*2], Y: uvs[i*2+1]}
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = readIndices(doc, *prim.Indices)
		if err != nil {
			return mesh, fmt.Errorf("indices: %w", err)
		}
	} else {
		indices = make([]uint32, count)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices)%3 != 0 {
		return mesh, resource.Malformed("index count %d is not a multiple of 3", len(indices))
	}
	for _, idx := range indices {
		if int(idx) >= count {
			return mesh, resource.Malformed("index %d out of range for %d vertices", idx, count)
		}
	}
	mesh.Faces = make([][3]uint32, len(indices)/3)
	for i := range mesh.Faces {
		mesh.Faces[i] = [3]uint32{indices[i*3], indices[i*3+1], indices[i*3+2]}
	}
	return mesh, nil
}

// accessorBytes returns the element-packed bytes of an accessor.
func accessorBytes(doc *gltfDocument, idx int, elemSize int) ([]byte, int, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, 0, fmt.Errorf("%w: index %d out of range", ErrInvalidAccessor, idx)
	}
	acc := doc.Accessors[idx]
	if acc.BufferView == nil || *acc.BufferView < 0 || *acc.BufferView >= len(doc.BufferViews) {
		return nil, 0, fmt.Errorf("%w: accessor %d has no buffer view", ErrInvalidAccessor, idx)
	}
	bv := doc.BufferViews[*acc.BufferView]
	if bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) {
		return nil, 0, fmt.Errorf("%w: buffer %d out of range", ErrInvalidAccessor, bv.Buffer)
	}
	buf := doc.Buffers[bv.Buffer].data

	stride := elemSize
	if bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}
	start := bv.ByteOffset + acc.ByteOffset
	if acc.Count > 0 {
		end := start + (acc.Count-1)*stride + elemSize
		if start < 0 || end > len(buf) || end > bv.ByteOffset+bv.ByteLength {
			return nil, 0, fmt.Errorf("%w: accessor %d exceeds its buffer view", ErrInvalidAccessor, idx)
		}
	}

	out := make([]byte, acc.Count*elemSize)
	for i := 0; i < acc.Count; i++ {
		copy(out[i*elemSize:], buf[start+i*stride:start+i*stride+elemSize])
	}
	return out, acc.Count, nil
}

func readFloats(doc *gltfDocument, idx int, typ string) ([]float32, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidAccessor, idx)
	}
	acc := doc.Accessors[idx]
	comps := map[string]int{"VEC2": 2, "VEC3": 3}[typ]
	if acc.Type != typ || acc.ComponentType != componentFloat {
		return nil, fmt.Errorf("%w: accessor %d is %s/%d, want %s FLOAT", ErrInvalidAccessor, idx, acc.Type, acc.ComponentType, typ)
	}
	data, count, err := accessorBytes(doc, idx, comps*4)
	if err != nil {
		return nil, err
	}
	out := make([]float32, count*comps)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

func readIndices(doc *gltfDocument, idx int) ([]uint32, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidAccessor, idx)
	}
	acc := doc.Accessors[idx]
	if acc.Type != "SCALAR" {
		return nil, fmt.Errorf("%w: index accessor is %s", ErrInvalidAccessor, acc.Type)
	}

	var size int
	switch acc.ComponentType {
	case componentUnsignedByte:
		size = 1
	case componentUnsignedShort:
		size = 2
	case componentUnsignedInt:
		size = 4
	default:
		return nil, fmt.Errorf("%w: index component type %d", ErrInvalidAccessor, acc.ComponentType)
	}

	data, count, err := accessorBytes(doc, idx, size)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := range out {
		switch size {
		case 1:
			out[i] = uint32(data[i])
		case 2:
			out[i] = uint32(binary.LittleEndian.Uint16(data[i*2:]))
		case 4:
			out[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	}
	return out, nil
}
