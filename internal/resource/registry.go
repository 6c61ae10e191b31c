package resource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Registry maps source extensions to the compilers that handle them.
// Compilers for one extension run in registration order.
type Registry struct {
	byExt map[string][]Compiler
}

// NewRegistry returns a registry holding compilers.
func NewRegistry(compilers ...Compiler) *Registry {
	r := &Registry{byExt: make(map[string][]Compiler)}
	for _, c := range compilers {
		r.Register(c)
	}
	return r
}

// Register adds c for each of its source extensions.
func (r *Registry) Register(c Compiler) {
	for _, ext := range c.SourceExtensions() {
		ext = normalizeExt(ext)
		r.byExt[ext] = append(r.byExt[ext], c)
	}
}

// SupportedExtensions returns the registered extensions, lowercase with a
// leading dot, sorted.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DestinationExtensions returns the output extensions of every registered
// compiler, sorted.
func (r *Registry) DestinationExtensions() []string {
	seen := make(map[string]bool)
	for _, compilers := range r.byExt {
		for _, c := range compilers {
			seen[normalizeExt(c.DestinationExtension())] = true
		}
	}
	exts := make([]string, 0, len(seen))
	for ext := range seen {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[normalizeExt(filepath.Ext(path))]
	return ok
}

// CompilersFor returns the compilers registered for path's extension.
func (r *Registry) CompilersFor(path string) []Compiler {
	return r.byExt[normalizeExt(filepath.Ext(path))]
}

// Compile reads path and runs every compiler registered for its extension,
// concatenating their entries. Compiler errors are returned unchanged; an
// entry named outside the output directory fails the whole source.
func (r *Registry) Compile(ctx context.Context, path string, cc CompilerContext) ([]ResourceEntry, error) {
	compilers := r.CompilersFor(path)
	if len(compilers) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExtension, filepath.Ext(path))
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cc.SourceFilename = path
	if cc.InputDirectory == "" {
		cc.InputDirectory = filepath.Dir(path)
	}

	var entries []ResourceEntry
	for _, c := range compilers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := c.Compile(ctx, source, cc)
		if err != nil {
			return nil, err
		}
		for _, e := range out {
			if err := e.Validate(); err != nil {
				return nil, fmt.Errorf("%s: %w", c.Name(), err)
			}
		}
		cc.Logger().Debug("compiler finished",
			zap.String("compiler", c.Name()),
			zap.String("source", path),
			zap.Int("entries", len(out)))
		entries = append(entries, out...)
	}
	return entries, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
