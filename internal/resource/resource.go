// Package resource defines the per-file compilation contract shared by every
// format compiler and the registry that dispatches source files to them.
package resource

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Compilation errors.
var (
	ErrUnsupportedExtension = errors.New("unsupported extension")
	ErrMalformedSource      = errors.New("malformed source")
	ErrExternalTool         = errors.New("external tool failed")
)

// Target platforms.
const (
	PlatformWindows = "windows"
	PlatformOSX     = "osx"
	PlatformLinux   = "linux"
)

// CompileError is a failure to compile one source file.
type CompileError struct {
	Path string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiling %s: %v", e.Path, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Malformed wraps a parse failure as ErrMalformedSource.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedSource, fmt.Sprintf(format, args...))
}

// CompilerContext carries per-file parameters. It is passed by value and
// never mutated by compilers.
type CompilerContext struct {
	TargetPlatform      string
	SourceFilename      string // Absolute path of the source file
	InputDirectory      string // Directory containing the source file
	OutputDirectory     string // Directory the entries are written to
	RootOutputDirectory string // Project output root
	Log                 *zap.Logger
}

// Logger returns the context logger, or a no-op logger when unset.
func (c CompilerContext) Logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// BaseName returns the source file name without directory and extension.
func (c CompilerContext) BaseName() string {
	base := filepath.Base(c.SourceFilename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ResourceEntry is one compiled output file. Filename is relative to the
// context's OutputDirectory and must stay below it.
type ResourceEntry struct {
	Filename string
	Data     []byte
}

// Validate rejects file names that are empty, absolute or climb out of the
// output directory.
func (e ResourceEntry) Validate() error {
	if !filepath.IsLocal(filepath.FromSlash(e.Filename)) {
		return Malformed("output %q is outside the output directory", e.Filename)
	}
	return nil
}

// SafeName turns a name read from source data into a single visible path
// element. Separators, leading dots and characters rejected by common
// filesystems become '_'. The empty name stays empty.
func SafeName(name string) string {
	name = strings.TrimSpace(name)
	rest := strings.TrimLeft(name, ".")
	name = strings.Repeat("_", len(name)-len(rest)) + rest
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
}

// Compiler turns the bytes of one source file into zero or more entries.
type Compiler interface {
	Name() string
	SourceExtensions() []string
	DestinationExtension() string
	Compile(ctx context.Context, source []byte, cc CompilerContext) ([]ResourceEntry, error)
}
