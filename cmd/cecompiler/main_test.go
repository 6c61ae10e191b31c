package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/ceforge/internal/resource/mesh"
	"github.com/Faultbox/ceforge/internal/resource/texture"
)

func TestRunCompilesProject(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "game.ceproj"), []byte("OutputDirectory: Data\nTargetPlatform: linux\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tri.obj"), []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"), 0644))
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	chdir(t, dir)

	assert.Equal(t, 0, run([]string{filepath.Join(dir, "game.ceproj"), "--fingerprint", "hash"}))
	assert.FileExists(t, filepath.Join(dir, "Data", "tri.mesh"))
}

func TestRunErrors(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	chdir(t, t.TempDir())

	assert.Equal(t, 2, run(nil))
	assert.Equal(t, 1, run([]string{"missing.ceproj"}))
	assert.Equal(t, 1, run([]string{"game.ceproj", "--fingerprint", "crc"}))
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()

	meshFile := filepath.Join(dir, "tri.mesh")
	d, err := mesh.ReadOBJ([]byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"), mesh.ReadOptions{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(meshFile, mesh.Encode(mesh.Optimize(d)), 0644))

	texFile := filepath.Join(dir, "a.texture")
	tex := &texture.Texture{Width: 1, Height: 1, Format: texture.FormatBC4, Levels: [][][]byte{{make([]byte, 8)}}}
	require.NoError(t, os.WriteFile(texFile, texture.Encode(tex), 0644))

	var out bytes.Buffer
	require.NoError(t, inspect(&out, meshFile))
	assert.Contains(t, out.String(), "3 vertices, 3 indices")

	out.Reset()
	require.NoError(t, inspect(&out, texFile))
	assert.Contains(t, out.String(), "1x1 BC4")

	junk := filepath.Join(dir, "junk.bin")
	require.NoError(t, os.WriteFile(junk, []byte("nothing"), 0644))
	assert.Error(t, inspect(&out, junk))
}

func TestRunWriteConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "cecompiler.yaml")

	require.Equal(t, 0, run([]string{"--write-config", path, "--fingerprint", "hash", "--platform", "osx"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fingerprint: hash")
	assert.Contains(t, string(data), "platform: osx")
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			t.Fatal(err)
		}
	})
}
