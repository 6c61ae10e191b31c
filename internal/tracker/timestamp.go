package tracker

import (
	"github.com/Faultbox/ceforge/internal/resource/binfmt"
)

// FileTimeTracker fingerprints sources by last modification time.
type FileTimeTracker struct {
	times map[string]int64
}

func NewFileTimeTracker() *FileTimeTracker {
	return &FileTimeTracker{times: make(map[string]int64)}
}

func (t *FileTimeTracker) HasChanged(key string, src Source) bool {
	stamp := src.ModTime.UnixNano()
	if prev, ok := t.times[key]; ok && prev == stamp {
		return false
	}
	t.times[key] = stamp
	return true
}

func (t *FileTimeTracker) Forget(key string)  { delete(t.times, key) }
func (t *FileTimeTracker) Paths() []string    { return sortedKeys(t.times) }
func (t *FileTimeTracker) NeedsContent() bool { return false }
func (t *FileTimeTracker) Strategy() string   { return StrategyTimestamp }

// Load replaces the tracked set with the contents of file. A missing file
// leaves the tracker empty.
func (t *FileTimeTracker) Load(file string) error {
	data, err := readState(file)
	if err != nil {
		return err
	}
	times := make(map[string]int64)
	if data != nil {
		r := binfmt.NewReader(data)
		n := r.Count(9)
		for i := 0; i < n && r.Err() == nil; i++ {
			key := r.String()
			times[key] = r.Int64()
		}
		if r.Err() != nil {
			return decodeErr(file, r.Err())
		}
	}
	t.times = times
	return nil
}

// Save writes count, then (key, int64 stamp) pairs.
func (t *FileTimeTracker) Save(file string) error {
	return writeFileAtomic(file, encodeMap(t.times, func(w *binfmt.Writer, v int64) {
		w.Int64(v)
	}))
}
