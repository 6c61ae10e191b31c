package tracker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/ceforge/internal/resource/binfmt"
)

func TestHasChanged(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		strategy string
		first    Source
		same     Source
		changed  Source
	}{
		{
			strategy: StrategyTimestamp,
			first:    Source{ModTime: base},
			same:     Source{ModTime: base},
			changed:  Source{ModTime: base.Add(time.Second)},
		},
		{
			strategy: StrategyHash,
			first:    Source{Content: []byte("v 0 0 0")},
			same:     Source{Content: []byte("v 0 0 0"), ModTime: base.Add(time.Hour)},
			changed:  Source{Content: []byte("v 0 0 1")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			tr, err := New(tt.strategy)
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, tr.Strategy())

			assert.True(t, tr.HasChanged("a.obj", tt.first), "first call")
			assert.False(t, tr.HasChanged("a.obj", tt.same), "repeat call")
			assert.True(t, tr.HasChanged("a.obj", tt.changed), "after change")
			assert.False(t, tr.HasChanged("a.obj", tt.changed), "repeat after change")

			tr.Forget("a.obj")
			assert.Empty(t, tr.Paths())
			assert.True(t, tr.HasChanged("a.obj", tt.changed), "after forget")
		})
	}
}

func TestTimestampGoingBackwardsIsAChange(t *testing.T) {
	tr := NewFileTimeTracker()
	now := time.Now()

	tr.HasChanged("a.png", Source{ModTime: now})
	assert.True(t, tr.HasChanged("a.png", Source{ModTime: now.Add(-time.Hour)}))
}

func TestNeedsContent(t *testing.T) {
	assert.False(t, NewFileTimeTracker().NeedsContent())
	assert.True(t, NewContentHashTracker().NeedsContent())

	_, err := New("md5")
	assert.Error(t, err)
}

func TestPersistence(t *testing.T) {
	for _, strategy := range []string{StrategyTimestamp, StrategyHash} {
		t.Run(strategy, func(t *testing.T) {
			file := filepath.Join(t.TempDir(), strategy+".state")
			stamp := time.Unix(1700000000, 42)

			tr, _ := New(strategy)
			tr.HasChanged("meshes/b.obj", Source{ModTime: stamp, Content: []byte("b")})
			tr.HasChanged("a.png", Source{ModTime: stamp, Content: []byte("a")})
			require.NoError(t, tr.Save(file))

			loaded, _ := New(strategy)
			require.NoError(t, loaded.Load(file))
			assert.Equal(t, []string{"a.png", "meshes/b.obj"}, loaded.Paths())
			assert.False(t, loaded.HasChanged("a.png", Source{ModTime: stamp, Content: []byte("a")}))
			assert.True(t, loaded.HasChanged("c.mtl", Source{ModTime: stamp, Content: []byte("c")}))
		})
	}
}

func TestTimestampFileLayout(t *testing.T) {
	file := filepath.Join(t.TempDir(), "timestamps")
	tr := NewFileTimeTracker()
	tr.HasChanged("x", Source{ModTime: time.Unix(0, 7)})
	require.NoError(t, tr.Save(file))

	data, err := os.ReadFile(file)
	require.NoError(t, err)

	r := binfmt.NewReader(data)
	assert.Equal(t, int32(1), r.Int32())
	assert.Equal(t, "x", r.String())
	assert.Equal(t, int64(7), r.Int64())
	assert.NoError(t, r.Err())
	assert.Zero(t, r.Remaining())
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	tr := NewContentHashTracker()
	tr.HasChanged("stale", Source{Content: []byte("x")})
	require.NoError(t, tr.Load(missing))
	assert.Empty(t, tr.Paths())

	d := NewDestinationMap()
	require.NoError(t, d.Load(missing))
	assert.Empty(t, d.Paths())
}

func TestLoadCorruptFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "corrupt")
	require.NoError(t, os.WriteFile(file, []byte{5, 0, 0, 0, 3, 'a'}, 0644))

	err := NewFileTimeTracker().Load(file)
	assert.True(t, errors.Is(err, binfmt.ErrTruncated), "got %v", err)
}

func TestDestinationMap(t *testing.T) {
	file := filepath.Join(t.TempDir(), "destinations")

	d := NewDestinationMap()
	d.Set("crate.fbx", []string{"crate.mesh", "Wood.material", "Metal.material"})
	d.Set("mask.png", nil)
	require.NoError(t, d.Save(file))

	loaded := NewDestinationMap()
	require.NoError(t, loaded.Load(file))

	got, ok := loaded.Get("crate.fbx")
	require.True(t, ok)
	assert.Equal(t, []string{"crate.mesh", "Wood.material", "Metal.material"}, got)

	got, ok = loaded.Get("mask.png")
	assert.True(t, ok, "empty output sets are still tracked")
	assert.Empty(t, got)

	loaded.Forget("crate.fbx")
	assert.Equal(t, []string{"mask.png"}, loaded.Paths())
}

func TestDestinationMapCopiesInput(t *testing.T) {
	d := NewDestinationMap()
	outputs := []string{"a.mesh"}
	d.Set("a.obj", outputs)
	outputs[0] = "changed"

	got, _ := d.Get("a.obj")
	assert.Equal(t, []string{"a.mesh"}, got)
}
