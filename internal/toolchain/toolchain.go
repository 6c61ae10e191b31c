// Package toolchain runs external compilers (shader compilers, texture
// encoders, model converters) as byte-in/byte-out black boxes.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"

	"github.com/Faultbox/ceforge/internal/resource"
)

// Request describes one tool invocation.
type Request struct {
	Command    string            // Command line with {placeholders}
	Input      []byte            // Written to a temporary file bound to {input}
	InputName  string            // File name of the input, extension included
	OutputName string            // File name bound to {output}
	Vars       map[string]string // Extra placeholders such as {entry} or {stage}
}

// Runner executes a tool and returns the bytes it wrote to {output}.
type Runner interface {
	Run(ctx context.Context, req Request) ([]byte, error)
}

// ExecRunner runs tools as child processes in a scratch directory.
type ExecRunner struct {
	Timeout time.Duration
	Log     *zap.Logger
}

// NewExecRunner returns a runner enforcing timeout per invocation.
// A zero timeout means no limit beyond ctx.
func NewExecRunner(timeout time.Duration, log *zap.Logger) *ExecRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecRunner{Timeout: timeout, Log: log}
}

// Run executes req. A missing command, a non-zero exit status or a missing
// or empty output file is reported as resource.ErrExternalTool.
func (r *ExecRunner) Run(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Command) == "" {
		return nil, fmt.Errorf("%w: no tool configured", resource.ErrExternalTool)
	}

	args, err := shellwords.Parse(req.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing command %q: %v", resource.ErrExternalTool, req.Command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: command %q was not parsed correctly into content", resource.ErrExternalTool, req.Command)
	}

	dir, err := os.MkdirTemp("", "cecompiler-tool-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	inputName := req.InputName
	if inputName == "" {
		inputName = "input"
	}
	outputName := req.OutputName
	if outputName == "" {
		outputName = "output"
	}
	inputPath := filepath.Join(dir, inputName)
	outputPath := filepath.Join(dir, outputName)

	if err := os.WriteFile(inputPath, req.Input, 0644); err != nil {
		return nil, err
	}

	vars := map[string]string{"input": inputPath, "output": outputPath}
	for k, v := range req.Vars {
		vars[k] = v
	}
	for i, arg := range args {
		args[i] = Expand(arg, vars)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Debug("running tool", zap.Strings("args", args))

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v: %s", resource.ErrExternalTool, args[0], err, strings.TrimSpace(out.String()))
	}

	data, err := os.ReadFile(outputPath)
	if err != nil || len(data) == 0 {
		return nil, fmt.Errorf("%w: %s produced no output", resource.ErrExternalTool, args[0])
	}
	return data, nil
}

// Expand replaces {name} placeholders in s. Unknown placeholders are left
// untouched.
func Expand(s string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
