package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/tracker"
)

// State file names inside the state directory.
const (
	fingerprintFile = "FileTracker"
	destinationFile = "Destinations"
)

// Options controls a Compiler.
type Options struct {
	StateDir    string // Relative to the project directory
	Fingerprint string // tracker.StrategyTimestamp or tracker.StrategyHash
	// Pattern restricts the scan to matching file names. Matched files are
	// always recompiled and the output tree is not cleaned.
	Pattern string
	// OnPass, when set, is called after every watch pass.
	OnPass func(*Result)
}

// Result summarizes one pass.
type Result struct {
	Compiled int
	Failed   int
	Skipped  int
	Deleted  int
	Elapsed  time.Duration
	// Err aggregates the per-file failures of the pass.
	Err error
}

// Compiler runs passes over one project.
type Compiler struct {
	project  *Descriptor
	registry *resource.Registry
	opts     Options
	log      *zap.Logger
}

// New returns a project compiler. A nil logger disables logging.
func New(project *Descriptor, registry *resource.Registry, opts Options, log *zap.Logger) (*Compiler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.StateDir == "" {
		opts.StateDir = ".coreengine"
	}
	if _, err := tracker.New(opts.Fingerprint); err != nil {
		return nil, err
	}
	if opts.Pattern != "" {
		if _, err := filepath.Match(opts.Pattern, ""); err != nil {
			return nil, fmt.Errorf("search pattern %q: %w", opts.Pattern, err)
		}
	}
	return &Compiler{project: project, registry: registry, opts: opts, log: log}, nil
}

func (c *Compiler) stateDir() string {
	return filepath.Join(c.project.InputDirectory(), c.opts.StateDir)
}

// pass holds the state of one scan.
type pass struct {
	inputDir  string
	outputDir string
	rebuild   bool
	fp        tracker.Tracker
	dests     *tracker.DestinationMap
	remaining map[string]bool // output-relative slash paths
	result    Result
}

// CompileOnce runs one full pass. With rebuild set the stored build state
// is ignored and every source is recompiled. Per-file failures never stop
// the pass; they are counted and aggregated in Result.Err. The returned
// error is reserved for failures of the pass itself, in which case the
// build state is left untouched.
func (c *Compiler) CompileOnce(ctx context.Context, rebuild bool) (*Result, error) {
	return c.compile(ctx, rebuild, !rebuild)
}

// compile runs one pass. force recompiles every source; loadState reads the
// stored build state first.
func (c *Compiler) compile(ctx context.Context, force, loadState bool) (*Result, error) {
	start := time.Now()
	p := &pass{
		inputDir:  c.project.InputDirectory(),
		outputDir: c.project.OutputPath(),
		rebuild:   force,
		dests:     tracker.NewDestinationMap(),
	}
	p.fp, _ = tracker.New(c.opts.Fingerprint)

	for _, dir := range []string{p.outputDir, c.stateDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	fpFile := filepath.Join(c.stateDir(), fingerprintFile+"."+p.fp.Strategy())
	destFile := filepath.Join(c.stateDir(), destinationFile)
	if loadState {
		if err := p.fp.Load(fpFile); err != nil {
			c.log.Warn("discarding build state", zap.Error(err))
			p.fp, _ = tracker.New(c.opts.Fingerprint)
		}
		if err := p.dests.Load(destFile); err != nil {
			c.log.Warn("discarding destination state", zap.Error(err))
			p.dests = tracker.NewDestinationMap()
		}
	}

	sources, err := c.findSources(p.inputDir, p.outputDir)
	if err != nil {
		return nil, err
	}

	p.remaining = make(map[string]bool)
	if c.opts.Pattern == "" {
		if p.remaining, err = c.snapshotOutputs(p.outputDir); err != nil {
			return nil, err
		}
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.compileSource(ctx, p, src)
	}

	if c.opts.Pattern == "" {
		c.pruneState(p, sources)
		c.cleanOutputs(p)
	}

	if err := p.fp.Save(fpFile); err != nil {
		return nil, err
	}
	if err := p.dests.Save(destFile); err != nil {
		return nil, err
	}

	p.result.Elapsed = time.Since(start)
	return &p.result, nil
}

// findSources returns the input-relative slash paths of every source,
// sorted. Hidden directories and the output tree are not scanned.
func (c *Compiler) findSources(inputDir, outputDir string) ([]string, error) {
	var sources []string
	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != inputDir && (strings.HasPrefix(d.Name(), ".") || path == outputDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if c.opts.Pattern != "" {
			if ok, _ := filepath.Match(c.opts.Pattern, d.Name()); !ok {
				return nil
			}
		} else if !c.registry.Supports(path) {
			return nil
		}
		rel, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}
		sources = append(sources, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", inputDir, err)
	}
	sort.Strings(sources)
	return sources, nil
}

// snapshotOutputs lists the compiled files currently in the output tree.
// Only files carrying a destination extension are candidates for cleanup,
// so an output directory shared with sources never loses a source.
func (c *Compiler) snapshotOutputs(outputDir string) (map[string]bool, error) {
	exts := c.registry.DestinationExtensions()
	files := make(map[string]bool)
	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != outputDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", outputDir, err)
	}
	return files, nil
}

func (c *Compiler) compileSource(ctx context.Context, p *pass, src string) {
	path := filepath.Join(p.inputDir, filepath.FromSlash(src))
	log := c.log.With(zap.String("source", src))

	info, err := os.Stat(path)
	if err != nil {
		c.fail(p, src, err, log)
		return
	}
	obs := tracker.Source{ModTime: info.ModTime()}
	if p.fp.NeedsContent() {
		if obs.Content, err = os.ReadFile(path); err != nil {
			c.fail(p, src, err, log)
			return
		}
	}
	changed := p.fp.HasChanged(src, obs)

	previous, known := p.dests.Get(src)
	if !p.rebuild && c.opts.Pattern == "" && !changed && known && c.allExist(p.outputDir, previous) {
		for _, d := range previous {
			delete(p.remaining, d)
		}
		p.result.Skipped++
		return
	}

	log.Info("compiling")
	relDir := filepath.Dir(filepath.FromSlash(src))
	outDir := filepath.Join(p.outputDir, relDir)
	entries, err := c.registry.Compile(ctx, path, resource.CompilerContext{
		TargetPlatform:      c.project.TargetPlatform,
		InputDirectory:      filepath.Dir(path),
		OutputDirectory:     outDir,
		RootOutputDirectory: p.outputDir,
		Log:                 log,
	})
	if err == nil {
		err = writeEntries(outDir, entries)
	}
	if err != nil {
		// Previous outputs stay in place and the source is retried next pass.
		for _, d := range previous {
			delete(p.remaining, d)
		}
		c.fail(p, src, err, log)
		return
	}

	outputs := make([]string, len(entries))
	for i, e := range entries {
		outputs[i] = filepath.ToSlash(filepath.Join(relDir, filepath.FromSlash(e.Filename)))
		delete(p.remaining, outputs[i])
	}
	p.dests.Set(src, outputs)
	p.result.Compiled++
	log.Info("compiled", zap.Strings("outputs", outputs))
}

func (c *Compiler) fail(p *pass, src string, err error, log *zap.Logger) {
	p.fp.Forget(src)
	p.result.Failed++
	p.result.Err = multierr.Append(p.result.Err, &resource.CompileError{Path: src, Err: err})
	log.Error("compile failed", zap.Error(err))
}

func (c *Compiler) allExist(outputDir string, outputs []string) bool {
	for _, o := range outputs {
		if _, err := os.Stat(filepath.Join(outputDir, filepath.FromSlash(o))); err != nil {
			return false
		}
	}
	return true
}

// writeEntries writes every entry through a temporary file renamed into
// place. On failure the entries already written by this call are removed.
func writeEntries(dir string, entries []resource.ResourceEntry) error {
	var written []string
	for _, e := range entries {
		target := filepath.Join(dir, filepath.FromSlash(e.Filename))
		if err := writeFileAtomic(target, e.Data); err != nil {
			for _, w := range written {
				os.Remove(w)
			}
			return err
		}
		written = append(written, target)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	_, err = tmp.Write(data)
	err = errors.Join(err, tmp.Close())
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// pruneState forgets sources that no longer exist.
func (c *Compiler) pruneState(p *pass, sources []string) {
	for _, key := range p.fp.Paths() {
		if _, found := slices.BinarySearch(sources, key); !found {
			p.fp.Forget(key)
		}
	}
	for _, key := range p.dests.Paths() {
		if _, found := slices.BinarySearch(sources, key); !found {
			p.dests.Forget(key)
		}
	}
}

// cleanOutputs deletes stale outputs, then output directories left empty.
func (c *Compiler) cleanOutputs(p *pass) {
	stale := make([]string, 0, len(p.remaining))
	for rel := range p.remaining {
		stale = append(stale, rel)
	}
	sort.Strings(stale)

	for _, rel := range stale {
		c.log.Info("cleaning stale file", zap.String("file", rel))
		if err := os.Remove(filepath.Join(p.outputDir, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
			c.log.Warn("cleaning stale file failed", zap.String("file", rel), zap.Error(err))
			continue
		}
		p.result.Deleted++
	}

	var dirs []string
	filepath.WalkDir(p.outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != p.outputDir {
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			dirs = append(dirs, path)
		}
		return nil
	})
	// Deepest first, so parents emptied by their children go too.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
			c.log.Debug("cleaning empty directory", zap.String("dir", dir))
			os.Remove(dir)
		}
	}
}
