// Package shader packages the output of platform shader compilers into
// SHADER resources.
package shader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/binfmt"
	"github.com/Faultbox/ceforge/internal/toolchain"
)

const (
	Magic   = "SHADER"
	Version = 1
)

// Stage is one compiled entry point.
type Stage struct {
	Name  string // vs or ps
	Entry string
}

// Stages compiled separately for platforms whose tools emit one blob per
// entry point.
var Stages = []Stage{
	{Name: "vs", Entry: "VertexMain"},
	{Name: "ps", Entry: "PixelMain"},
}

// Toolchain is the external compiler for one target platform.
type Toolchain struct {
	Command string
	// PerStage runs the command once per entry in Stages, binding {stage}
	// and {entry}, and concatenates the length-prefixed outputs. Otherwise
	// the command runs once and produces a single library.
	PerStage bool
}

// Compiler compiles shader sources with the toolchain of the target
// platform.
type Compiler struct {
	Runner     toolchain.Runner
	Toolchains map[string]Toolchain
}

// NewCompiler returns a shader compiler with the usual per-platform
// toolchains: per-stage HLSL objects on windows, a Metal library on osx and
// per-stage SPIR-V on linux. Empty commands disable a platform.
func NewCompiler(runner toolchain.Runner, hlsl, metal, glsl string) *Compiler {
	return &Compiler{
		Runner: runner,
		Toolchains: map[string]Toolchain{
			resource.PlatformWindows: {Command: hlsl, PerStage: true},
			resource.PlatformOSX:     {Command: metal},
			resource.PlatformLinux:   {Command: glsl, PerStage: true},
		},
	}
}

func (c *Compiler) Name() string { return "shader" }

func (c *Compiler) SourceExtensions() []string { return []string{".hlsl", ".metal", ".glsl"} }

func (c *Compiler) DestinationExtension() string { return ".shader" }

func (c *Compiler) Compile(ctx context.Context, source []byte, cc resource.CompilerContext) ([]resource.ResourceEntry, error) {
	tc, ok := c.Toolchains[cc.TargetPlatform]
	if !ok || strings.TrimSpace(tc.Command) == "" {
		return nil, fmt.Errorf("%w: no shader compiler for platform %q", resource.ErrExternalTool, cc.TargetPlatform)
	}
	if c.Runner == nil {
		return nil, fmt.Errorf("%w: no tool runner", resource.ErrExternalTool)
	}

	req := toolchain.Request{
		Command:    tc.Command,
		Input:      source,
		InputName:  "shader" + strings.ToLower(filepath.Ext(cc.SourceFilename)),
		OutputName: "shader.bin",
		Vars:       map[string]string{"include": cc.InputDirectory},
	}

	var payload []byte
	if tc.PerStage {
		var w binfmt.Writer
		for _, st := range Stages {
			req.Vars = map[string]string{"include": cc.InputDirectory, "stage": st.Name, "entry": st.Entry}
			out, err := c.Runner.Run(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("%s stage: %w", st.Name, err)
			}
			w.Int32(int32(len(out)))
			w.Bytes(out)
		}
		payload = w.Data()
	} else {
		out, err := c.Runner.Run(ctx, req)
		if err != nil {
			return nil, err
		}
		payload = out
	}

	cc.Logger().Debug("shader compiled",
		zap.String("source", cc.SourceFilename),
		zap.String("platform", cc.TargetPlatform),
		zap.Int("bytes", len(payload)))

	return []resource.ResourceEntry{{
		Filename: cc.BaseName() + c.DestinationExtension(),
		Data:     Encode(payload),
	}}, nil
}

// Encode wraps a compiled payload in a SHADER envelope.
func Encode(payload []byte) []byte {
	w := binfmt.NewEnvelope(Magic, Version)
	w.Int32(int32(len(payload)))
	w.Bytes(payload)
	return w.Data()
}

// Decode returns the payload of a SHADER resource.
func Decode(data []byte) ([]byte, error) {
	r := binfmt.NewReader(data)
	if err := r.Envelope(Magic, Version); err != nil {
		return nil, err
	}
	payload := r.Bytes(int(r.Int32()))
	return payload, r.Err()
}

// SplitStages splits a per-stage payload into its blobs, in Stages order.
func SplitStages(payload []byte) ([][]byte, error) {
	r := binfmt.NewReader(payload)
	var blobs [][]byte
	for r.Remaining() > 0 {
		blobs = append(blobs, r.Bytes(int(r.Int32())))
		if err := r.Err(); err != nil {
			return nil, err
		}
	}
	if len(blobs) != len(Stages) {
		return nil, resource.Malformed("shader: %d stages, want %d", len(blobs), len(Stages))
	}
	return blobs, nil
}
