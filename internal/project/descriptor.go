// Package project compiles every source of a project into its output
// tree, incrementally, once or in watch mode.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/textenc"
)

// ErrConfig reports a missing or invalid project descriptor.
var ErrConfig = errors.New("invalid project")

// Extension is the project descriptor extension.
const Extension = ".ceproj"

// Descriptor is a parsed .ceproj file.
type Descriptor struct {
	OutputDirectory string `yaml:"OutputDirectory"`
	TargetPlatform  string `yaml:"TargetPlatform"`

	// Path is the absolute path of the descriptor file.
	Path string `yaml:"-"`
}

// LoadDescriptor reads a project descriptor. Every failure wraps ErrConfig.
func LoadDescriptor(path string) (*Descriptor, error) {
	if !strings.EqualFold(filepath.Ext(path), Extension) {
		return nil, fmt.Errorf("%w: %s is not a %s file", ErrConfig, path, Extension)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	d := &Descriptor{}
	if err := yaml.Unmarshal(textenc.Normalize(data), d); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}
	d.Path = abs
	if d.OutputDirectory == "" {
		d.OutputDirectory = "."
	}
	if d.TargetPlatform == "" {
		d.TargetPlatform = HostPlatform()
	}
	switch d.TargetPlatform {
	case resource.PlatformWindows, resource.PlatformOSX, resource.PlatformLinux:
	default:
		return nil, fmt.Errorf("%w: unknown target platform %q", ErrConfig, d.TargetPlatform)
	}
	return d, nil
}

// InputDirectory returns the directory holding the descriptor; every
// source below it belongs to the project.
func (d *Descriptor) InputDirectory() string {
	return filepath.Dir(d.Path)
}

// OutputPath returns the absolute output directory.
func (d *Descriptor) OutputPath() string {
	if filepath.IsAbs(d.OutputDirectory) {
		return filepath.Clean(d.OutputDirectory)
	}
	return filepath.Join(d.InputDirectory(), filepath.FromSlash(d.OutputDirectory))
}

// HostPlatform maps the running OS to a target platform name.
func HostPlatform() string {
	switch runtime.GOOS {
	case "windows":
		return resource.PlatformWindows
	case "darwin", "ios":
		return resource.PlatformOSX
	}
	return resource.PlatformLinux
}
