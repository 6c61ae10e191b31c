package project

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch runs passes until ctx is cancelled: one immediately, then one per
// interval tick or sooner when a file below the project directory changes.
// rebuild forces recompilation on the first pass only; unlike CompileOnce
// the stored build state is still loaded. Per-file failures are logged and
// never stop the loop; a failing pass is retried on the next tick.
func (c *Compiler) Watch(ctx context.Context, interval time.Duration, rebuild bool) error {
	if interval <= 0 {
		interval = time.Second
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	if w, err := c.newWatcher(); err != nil {
		c.log.Warn("file notifications unavailable, polling only", zap.Error(err))
	} else {
		defer w.Close()
		events, errs = w.Events, w.Errors
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := c.compile(ctx, rebuild, true)
		rebuild = false
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			c.log.Error("pass failed", zap.Error(err))
		case res.Compiled > 0 || res.Failed > 0 || res.Deleted > 0:
			LogResult(c.log, res)
		}
		if c.opts.OnPass != nil && res != nil {
			c.opts.OnPass(res)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case ev := <-events:
			c.log.Debug("change detected", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
		case err := <-errs:
			c.log.Warn("watch error", zap.Error(err))
		}
	}
}

// newWatcher watches every non-hidden directory of the project outside the
// output tree. Directories created later are picked up by the poll.
func (c *Compiler) newWatcher() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	root, out := c.project.InputDirectory(), c.project.OutputPath()
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if path != root && (strings.HasPrefix(d.Name(), ".") || path == out) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
	if err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// LogResult reports a pass summary.
func LogResult(log *zap.Logger, res *Result) {
	fields := []zap.Field{
		zap.Int("compiled", res.Compiled),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.Int("deleted", res.Deleted),
		zap.Duration("elapsed", res.Elapsed),
	}
	if res.Failed > 0 {
		log.Warn("pass finished with errors", append(fields, zap.Error(res.Err))...)
		return
	}
	log.Info("pass finished", fields...)
}
