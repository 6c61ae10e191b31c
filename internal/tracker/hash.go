package tracker

import (
	"bytes"

	"golang.org/x/crypto/blake2b"

	"github.com/Faultbox/ceforge/internal/resource/binfmt"
)

// ContentHashTracker fingerprints sources by a BLAKE2b-256 digest of their
// bytes, so touching a file without editing it does not trigger a rebuild.
type ContentHashTracker struct {
	hashes map[string][]byte
}

func NewContentHashTracker() *ContentHashTracker {
	return &ContentHashTracker{hashes: make(map[string][]byte)}
}

func (t *ContentHashTracker) HasChanged(key string, src Source) bool {
	sum := blake2b.Sum256(src.Content)
	if prev, ok := t.hashes[key]; ok && bytes.Equal(prev, sum[:]) {
		return false
	}
	t.hashes[key] = sum[:]
	return true
}

func (t *ContentHashTracker) Forget(key string)  { delete(t.hashes, key) }
func (t *ContentHashTracker) Paths() []string    { return sortedKeys(t.hashes) }
func (t *ContentHashTracker) NeedsContent() bool { return true }
func (t *ContentHashTracker) Strategy() string   { return StrategyHash }

// Load replaces the tracked set with the contents of file. A missing file
// leaves the tracker empty.
func (t *ContentHashTracker) Load(file string) error {
	data, err := readState(file)
	if err != nil {
		return err
	}
	hashes := make(map[string][]byte)
	if data != nil {
		r := binfmt.NewReader(data)
		n := r.Count(5)
		for i := 0; i < n && r.Err() == nil; i++ {
			key := r.String()
			size := r.Count(1)
			hashes[key] = r.Bytes(size)
		}
		if r.Err() != nil {
			return decodeErr(file, r.Err())
		}
	}
	t.hashes = hashes
	return nil
}

// Save writes count, then (key, int32 length, digest) triples.
func (t *ContentHashTracker) Save(file string) error {
	return writeFileAtomic(file, encodeMap(t.hashes, func(w *binfmt.Writer, v []byte) {
		w.Int32(int32(len(v)))
		w.Bytes(v)
	}))
}
