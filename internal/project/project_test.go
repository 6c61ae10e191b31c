package project

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/ceforge/internal/config"
	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/builtin"
	"github.com/Faultbox/ceforge/internal/resource/mesh"
)

// textCompiler upper-cases .txt files into .out files and splits .multi
// files into one output per line. Sources reading "fail" are malformed.
type textCompiler struct{}

func (textCompiler) Name() string                 { return "text" }
func (textCompiler) SourceExtensions() []string   { return []string{".txt", ".multi"} }
func (textCompiler) DestinationExtension() string { return ".out" }

func (textCompiler) Compile(_ context.Context, source []byte, cc resource.CompilerContext) ([]resource.ResourceEntry, error) {
	text := strings.TrimSpace(string(source))
	if text == "fail" {
		return nil, resource.Malformed("told to fail")
	}
	if filepath.Ext(cc.SourceFilename) == ".multi" {
		var entries []resource.ResourceEntry
		for _, line := range strings.Split(text, "\n") {
			entries = append(entries, resource.ResourceEntry{Filename: cc.BaseName() + "_" + line + ".out", Data: []byte(line)})
		}
		return entries, nil
	}
	return []resource.ResourceEntry{{Filename: cc.BaseName() + ".out", Data: []byte(strings.ToUpper(text))}}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

type fixture struct {
	dir string
	out string
	c   *Compiler
}

func newFixture(t *testing.T, ceproj string, opts Options, files map[string]string) *fixture {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "game.ceproj"), ceproj)
	for name, content := range files {
		writeFile(t, filepath.Join(dir, filepath.FromSlash(name)), content)
	}

	desc, err := LoadDescriptor(filepath.Join(dir, "game.ceproj"))
	require.NoError(t, err)
	if opts.Fingerprint == "" {
		opts.Fingerprint = "hash"
	}
	c, err := New(desc, resource.NewRegistry(textCompiler{}), opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	return &fixture{dir: dir, out: desc.OutputPath(), c: c}
}

func (f *fixture) run(t *testing.T, rebuild bool) *Result {
	t.Helper()
	res, err := f.c.CompileOnce(context.Background(), rebuild)
	require.NoError(t, err)
	return res
}

func (f *fixture) src(name string) string { return filepath.Join(f.dir, filepath.FromSlash(name)) }
func (f *fixture) dst(name string) string { return filepath.Join(f.out, filepath.FromSlash(name)) }

func TestLoadDescriptor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.ceproj")
	writeFile(t, path, "\ufeffOutputDirectory: Build/Data\nTargetPlatform: windows\n")

	d, err := LoadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, "windows", d.TargetPlatform)
	assert.Equal(t, dir, d.InputDirectory())
	assert.Equal(t, filepath.Join(dir, "Build", "Data"), d.OutputPath())
}

func TestLoadDescriptorDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.ceproj")
	writeFile(t, path, "")

	d, err := LoadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, ".", d.OutputDirectory)
	assert.Equal(t, HostPlatform(), d.TargetPlatform)
	assert.Equal(t, d.InputDirectory(), d.OutputPath())
}

func TestLoadDescriptorErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.ceproj"), "OutputDirectory: [unterminated\n")
	writeFile(t, filepath.Join(dir, "platform.ceproj"), "TargetPlatform: amiga\n")
	writeFile(t, filepath.Join(dir, "game.yaml"), "OutputDirectory: out\n")

	for _, name := range []string{"bad.ceproj", "platform.ceproj", "game.yaml", "missing.ceproj"} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadDescriptor(filepath.Join(dir, name))
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestCompileOnceIncremental(t *testing.T) {
	f := newFixture(t, "OutputDirectory: out\n", Options{}, map[string]string{
		"a.txt":         "alpha",
		"sub/b.txt":     "beta",
		"notes.md":      "ignored",
		".hidden/c.txt": "hidden",
	})

	res := f.run(t, false)
	assert.Equal(t, 2, res.Compiled)
	assert.Zero(t, res.Failed)
	assert.NoError(t, res.Err)
	assert.Equal(t, "ALPHA", readFile(t, f.dst("a.out")))
	assert.Equal(t, "BETA", readFile(t, f.dst("sub/b.out")))
	assert.NoFileExists(t, f.dst("c.out"))
	assert.DirExists(t, filepath.Join(f.dir, ".coreengine"))

	res = f.run(t, false)
	assert.Zero(t, res.Compiled)
	assert.Equal(t, 2, res.Skipped)

	writeFile(t, f.src("a.txt"), "alpha two")
	res = f.run(t, false)
	assert.Equal(t, 1, res.Compiled)
	assert.Equal(t, "ALPHA TWO", readFile(t, f.dst("a.out")))
}

func TestCompileOnceMissingDestination(t *testing.T) {
	f := newFixture(t, "OutputDirectory: out\n", Options{}, map[string]string{"a.txt": "alpha"})
	f.run(t, false)

	require.NoError(t, os.Remove(f.dst("a.out")))
	res := f.run(t, false)
	assert.Equal(t, 1, res.Compiled)
	assert.FileExists(t, f.dst("a.out"))
}

func TestCompileOnceRebuild(t *testing.T) {
	f := newFixture(t, "OutputDirectory: out\n", Options{}, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
	f.run(t, false)

	res := f.run(t, true)
	assert.Equal(t, 2, res.Compiled)
	assert.Zero(t, res.Skipped)
	assert.Zero(t, res.Deleted)
}

func TestCompileOnceStaleCleanup(t *testing.T) {
	f := newFixture(t, "OutputDirectory: out\n", Options{}, map[string]string{
		"a.txt":          "alpha",
		"deep/dir/c.txt": "gamma",
	})
	f.run(t, false)
	writeFile(t, f.dst(".keep"), "")
	writeFile(t, f.dst("readme.md"), "not ours")

	require.NoError(t, os.Rename(f.src("a.txt"), f.src("b.txt")))
	require.NoError(t, os.RemoveAll(f.src("deep")))

	res := f.run(t, false)
	assert.Equal(t, 1, res.Compiled)
	assert.Equal(t, 2, res.Deleted)
	assert.NoFileExists(t, f.dst("a.out"))
	assert.FileExists(t, f.dst("b.out"))
	assert.NoDirExists(t, f.dst("deep"))
	assert.FileExists(t, f.dst(".keep"))
	assert.FileExists(t, f.dst("readme.md"))
}

func TestCompileOnceMultipleOutputs(t *testing.T) {
	f := newFixture(t, "OutputDirectory: out\n", Options{}, map[string]string{"pack.multi": "x\ny"})
	f.run(t, false)
	assert.FileExists(t, f.dst("pack_x.out"))
	assert.FileExists(t, f.dst("pack_y.out"))

	writeFile(t, f.src("pack.multi"), "x")
	res := f.run(t, false)
	assert.Equal(t, 1, res.Deleted)
	assert.FileExists(t, f.dst("pack_x.out"))
	assert.NoFileExists(t, f.dst("pack_y.out"))
}

func TestCompileOnceFailureKeepsPreviousOutput(t *testing.T) {
	f := newFixture(t, "OutputDirectory: out\n", Options{}, map[string]string{"a.txt": "alpha", "new.txt": "fail"})

	res := f.run(t, false)
	assert.Equal(t, 1, res.Compiled)
	assert.Equal(t, 1, res.Failed)
	assert.ErrorIs(t, res.Err, resource.ErrMalformedSource)
	assert.NoFileExists(t, f.dst("new.out"))

	writeFile(t, f.src("a.txt"), "fail")
	res = f.run(t, false)
	assert.Equal(t, 2, res.Failed)
	assert.Zero(t, res.Deleted)
	assert.Equal(t, "ALPHA", readFile(t, f.dst("a.out")))

	// Failed sources are retried even when unchanged.
	res = f.run(t, false)
	assert.Equal(t, 2, res.Failed)

	entries, err := os.ReadDir(f.out)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), e.Name())
	}
}

func TestCompileOncePattern(t *testing.T) {
	f := newFixture(t, "OutputDirectory: out\n", Options{Pattern: "a.*"}, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
	writeFile(t, f.dst("old.out"), "stale")

	res := f.run(t, false)
	assert.Equal(t, 1, res.Compiled)
	assert.FileExists(t, f.dst("a.out"))
	assert.NoFileExists(t, f.dst("b.out"))
	assert.FileExists(t, f.dst("old.out"))

	// Matched files recompile on every run.
	res = f.run(t, false)
	assert.Equal(t, 1, res.Compiled)
}

func TestCompileOnceSharedOutputDirectory(t *testing.T) {
	f := newFixture(t, "", Options{}, map[string]string{"a.txt": "alpha"})
	f.run(t, false)
	assert.Equal(t, "ALPHA", readFile(t, filepath.Join(f.dir, "a.out")))

	res := f.run(t, false)
	assert.Equal(t, 1, res.Skipped)
	assert.FileExists(t, f.src("a.txt"))
	assert.FileExists(t, f.src("game.ceproj"))
}

func TestCompileOnceTimestampStrategy(t *testing.T) {
	f := newFixture(t, "OutputDirectory: out\n", Options{Fingerprint: "timestamp"}, map[string]string{"a.txt": "alpha"})
	f.run(t, false)
	assert.FileExists(t, filepath.Join(f.dir, ".coreengine", "FileTracker.timestamp"))

	later := time.Now().Add(time.Hour)
	writeFile(t, f.src("a.txt"), "alpha two")
	require.NoError(t, os.Chtimes(f.src("a.txt"), later, later))
	res := f.run(t, false)
	assert.Equal(t, 1, res.Compiled)
}

func TestCompileOnceCancelled(t *testing.T) {
	f := newFixture(t, "OutputDirectory: out\n", Options{}, map[string]string{"a.txt": "alpha"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.c.CompileOnce(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(f.dir, ".coreengine", "FileTracker.hash"))
}

func TestNewRejectsBadOptions(t *testing.T) {
	desc := &Descriptor{Path: filepath.Join(t.TempDir(), "game.ceproj")}
	_, err := New(desc, resource.NewRegistry(), Options{Fingerprint: "crc"}, nil)
	assert.Error(t, err)

	_, err = New(desc, resource.NewRegistry(), Options{Pattern: "["}, nil)
	assert.Error(t, err)
}

func TestWatchRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var passes []*Result
	f := newFixture(t, "OutputDirectory: out\n", Options{
		OnPass: func(r *Result) {
			passes = append(passes, r)
			cancel()
		},
	}, map[string]string{"a.txt": "alpha"})

	require.NoError(t, f.c.Watch(ctx, time.Hour, true))
	require.Len(t, passes, 1)
	assert.Equal(t, 1, passes[0].Compiled)
	assert.FileExists(t, f.dst("a.out"))
}

func TestWatchSecondPassSkips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var passes []*Result
	f := newFixture(t, "OutputDirectory: out\n", Options{
		OnPass: func(r *Result) {
			passes = append(passes, r)
			if len(passes) == 2 {
				cancel()
			}
		},
	}, map[string]string{"a.txt": "alpha"})

	require.NoError(t, f.c.Watch(ctx, 10*time.Millisecond, true))
	require.Len(t, passes, 2)
	assert.Equal(t, 1, passes[0].Compiled)
	assert.Equal(t, 1, passes[1].Skipped)
}

func TestWatchRebuildLoadsStoredState(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "game.ceproj"), "OutputDirectory: out\n")
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	desc, err := LoadDescriptor(filepath.Join(dir, "game.ceproj"))
	require.NoError(t, err)
	corruptState := func() {
		writeFile(t, filepath.Join(dir, ".coreengine", "FileTracker.hash"), "garbage")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var passes []*Result
	core, logs := observer.New(zap.WarnLevel)
	c, err := New(desc, resource.NewRegistry(textCompiler{}), Options{
		Fingerprint: "hash",
		OnPass: func(r *Result) {
			passes = append(passes, r)
			cancel()
		},
	}, zap.New(core))
	require.NoError(t, err)

	corruptState()
	require.NoError(t, c.Watch(ctx, time.Hour, true))
	require.Len(t, passes, 1)
	assert.Equal(t, 1, passes[0].Compiled)
	assert.Equal(t, 1, logs.FilterMessage("discarding build state").Len())

	// A single rebuild pass never reads the stored state.
	core, logs = observer.New(zap.WarnLevel)
	c, err = New(desc, resource.NewRegistry(textCompiler{}), Options{Fingerprint: "hash"}, zap.New(core))
	require.NoError(t, err)

	corruptState()
	res, err := c.CompileOnce(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Compiled)
	assert.Zero(t, logs.FilterMessage("discarding build state").Len())
}

const twoGroupOBJ = `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
g first
f 1 2 3
g second
f 1 3 4
`

func TestCompileOnceMeshEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "game.ceproj"), "OutputDirectory: Data\nTargetPlatform: linux\n")
	writeFile(t, filepath.Join(dir, "models", "quad.obj"), twoGroupOBJ)

	desc, err := LoadDescriptor(filepath.Join(dir, "game.ceproj"))
	require.NoError(t, err)
	registry, err := builtin.NewRegistry(config.Default(), nil)
	require.NoError(t, err)
	c, err := New(desc, registry, Options{Fingerprint: "hash"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := c.CompileOnce(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Compiled)

	data, err := os.ReadFile(filepath.Join(dir, "Data", "models", "quad.mesh"))
	require.NoError(t, err)
	m, err := mesh.Decode(data)
	require.NoError(t, err)

	assert.Less(t, len(m.Vertices), 6)
	var maxIndex uint32
	for _, i := range m.Indices {
		maxIndex = max(maxIndex, i)
	}
	assert.Equal(t, uint32(len(m.Vertices)-1), maxIndex)
}

func TestCompileOnceRejectsOutputOutsideTree(t *testing.T) {
	f := newFixture(t, "OutputDirectory: out/data\n", Options{}, map[string]string{
		"pack.multi": "ok\n/../../../escaped",
		"a.txt":      "alpha",
	})

	res := f.run(t, false)
	assert.Equal(t, 1, res.Compiled)
	assert.Equal(t, 1, res.Failed)
	assert.ErrorIs(t, res.Err, resource.ErrMalformedSource)
	assert.FileExists(t, f.dst("a.out"))
	assert.NoFileExists(t, f.dst("pack_ok.out"))
	assert.NoFileExists(t, filepath.Join(f.dir, "escaped.out"))
}

func TestCompileOnceMaterialNamesStayInOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "game.ceproj"), "OutputDirectory: Data\nTargetPlatform: linux\n")
	writeFile(t, filepath.Join(dir, "lib.mtl"), "newmtl ../../escaped\nKd 1 1 1\n")
	writeFile(t, filepath.Join(dir, "box.obj"), "v 0 0 0\nv 1 0 0\nv 0 1 0\nusemtl ../../escaped\nf 1 2 3\n")

	desc, err := LoadDescriptor(filepath.Join(dir, "game.ceproj"))
	require.NoError(t, err)
	registry, err := builtin.NewRegistry(config.Default(), nil)
	require.NoError(t, err)
	c, err := New(desc, registry, Options{Fingerprint: "hash"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := c.CompileOnce(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Compiled)

	assert.FileExists(t, filepath.Join(dir, "Data", "___.._escaped.material"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "escaped.material"))

	data, err := os.ReadFile(filepath.Join(dir, "Data", "box.mesh"))
	require.NoError(t, err)
	m, err := mesh.Decode(data)
	require.NoError(t, err)
	require.Len(t, m.SubObjects, 1)
	assert.Equal(t, "___.._escaped", m.SubObjects[0].MaterialPath)

	// Stale cleanup still tracks the sanitized output.
	require.NoError(t, os.Remove(filepath.Join(dir, "lib.mtl")))
	res, err = c.CompileOnce(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.NoFileExists(t, filepath.Join(dir, "Data", "___.._escaped.material"))
}
