// Package tracker persists per-source fingerprints and output sets between
// compiler runs.
package tracker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Faultbox/ceforge/internal/resource/binfmt"
)

// Fingerprint strategies.
const (
	StrategyTimestamp = "timestamp"
	StrategyHash      = "hash"
)

// Source is the observed state of one source file. Content is only
// required by trackers whose NeedsContent reports true.
type Source struct {
	ModTime time.Time
	Content []byte
}

// Tracker detects source changes between runs.
type Tracker interface {
	// HasChanged reports whether key is new or its fingerprint differs from
	// the stored one, storing the current fingerprint in either case.
	HasChanged(key string, src Source) bool
	Forget(key string)
	Paths() []string
	NeedsContent() bool
	Strategy() string
	Load(file string) error
	Save(file string) error
}

// New returns a tracker for strategy.
func New(strategy string) (Tracker, error) {
	switch strategy {
	case StrategyTimestamp, "":
		return NewFileTimeTracker(), nil
	case StrategyHash:
		return NewContentHashTracker(), nil
	default:
		return nil, fmt.Errorf("unknown fingerprint strategy %q", strategy)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// readState returns the contents of file, or nil when it does not exist.
func readState(file string) ([]byte, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// writeFileAtomic replaces file with data so readers never observe a
// partially written state file.
func writeFileAtomic(file string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(file), "."+filepath.Base(file)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, file); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

func decodeErr(file string, err error) error {
	return fmt.Errorf("reading %s: %w", file, err)
}

var _ Tracker = (*FileTimeTracker)(nil)
var _ Tracker = (*ContentHashTracker)(nil)

// encodeMap writes a count-prefixed list of (key, value) pairs in key order.
func encodeMap[V any](m map[string]V, value func(*binfmt.Writer, V)) []byte {
	w := &binfmt.Writer{}
	w.Int32(int32(len(m)))
	for _, k := range sortedKeys(m) {
		w.String(k)
		value(w, m[k])
	}
	return w.Data()
}
