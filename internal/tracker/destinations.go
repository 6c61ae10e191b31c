package tracker

import (
	"github.com/Faultbox/ceforge/internal/resource/binfmt"
)

// DestinationMap records the output files produced by each source.
type DestinationMap struct {
	dests map[string][]string
}

func NewDestinationMap() *DestinationMap {
	return &DestinationMap{dests: make(map[string][]string)}
}

// Get returns the recorded outputs of key.
func (d *DestinationMap) Get(key string) ([]string, bool) {
	v, ok := d.dests[key]
	return v, ok
}

// Set records outputs for key, replacing any previous set. An empty set is
// recorded too, so sources that legitimately produce nothing stay tracked.
func (d *DestinationMap) Set(key string, outputs []string) {
	d.dests[key] = append([]string(nil), outputs...)
}

func (d *DestinationMap) Forget(key string) { delete(d.dests, key) }
func (d *DestinationMap) Paths() []string   { return sortedKeys(d.dests) }

// Load replaces the map with the contents of file. A missing file leaves
// the map empty.
func (d *DestinationMap) Load(file string) error {
	data, err := readState(file)
	if err != nil {
		return err
	}
	dests := make(map[string][]string)
	if data != nil {
		r := binfmt.NewReader(data)
		n := r.Count(5)
		for i := 0; i < n && r.Err() == nil; i++ {
			key := r.String()
			count := r.Count(1)
			outputs := make([]string, 0, count)
			for j := 0; j < count && r.Err() == nil; j++ {
				outputs = append(outputs, r.String())
			}
			dests[key] = outputs
		}
		if r.Err() != nil {
			return decodeErr(file, r.Err())
		}
	}
	d.dests = dests
	return nil
}

// Save writes count, then (key, int32 n, n output strings) records.
func (d *DestinationMap) Save(file string) error {
	return writeFileAtomic(file, encodeMap(d.dests, func(w *binfmt.Writer, v []string) {
		w.Int32(int32(len(v)))
		for _, s := range v {
			w.String(s)
		}
	}))
}
