package sceneimport

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/toolchain"
)

// Extensions handled by the importer.
var Extensions = []string{".gltf", ".glb", ".fbx"}

// Importer loads scenes, converting FBX sources to GLB through an external
// tool first. The mesh and material compilers share one importer so a
// source feeding both is only converted once.
type Importer struct {
	Runner     toolchain.Runner
	FBXCommand string

	mu      sync.Mutex
	lastKey [blake2b.Size256]byte
	last    *Scene
}

// NewImporter returns an importer using runner for FBX conversion.
func NewImporter(runner toolchain.Runner, fbxCommand string) *Importer {
	return &Importer{Runner: runner, FBXCommand: fbxCommand}
}

// Import parses source according to the extension of cc.SourceFilename.
// The returned scene is shared and must not be modified.
func (im *Importer) Import(ctx context.Context, source []byte, cc resource.CompilerContext) (*Scene, error) {
	key := cacheKey(cc.SourceFilename, source)

	im.mu.Lock()
	if im.last != nil && im.lastKey == key {
		s := im.last
		im.mu.Unlock()
		return s, nil
	}
	im.mu.Unlock()

	var (
		scene *Scene
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(cc.SourceFilename)); ext {
	case ".gltf", ".glb":
		scene, err = ParseGLTF(source, cc.InputDirectory)
	case ".fbx":
		scene, err = im.importFBX(ctx, source, cc)
	default:
		return nil, fmt.Errorf("%w: %q is not a scene format", resource.ErrUnsupportedExtension, ext)
	}
	if err != nil {
		return nil, err
	}

	im.mu.Lock()
	im.lastKey, im.last = key, scene
	im.mu.Unlock()
	return scene, nil
}

func (im *Importer) importFBX(ctx context.Context, source []byte, cc resource.CompilerContext) (*Scene, error) {
	if im.Runner == nil {
		return nil, fmt.Errorf("%w: no runner for FBX conversion", resource.ErrExternalTool)
	}
	cc.Logger().Debug("converting FBX", zap.String("source", cc.SourceFilename))

	glb, err := im.Runner.Run(ctx, toolchain.Request{
		Command:    im.FBXCommand,
		Input:      source,
		InputName:  "source.fbx",
		OutputName: "converted.glb",
	})
	if err != nil {
		return nil, err
	}
	return ParseGLTF(glb, cc.InputDirectory)
}

func cacheKey(path string, source []byte) [blake2b.Size256]byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(source)
	var key [blake2b.Size256]byte
	copy(key[:], h.Sum(nil))
	return key
}
