package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	_, err = ResolvePath("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	got, err := ResolvePath("~/saves")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "saves"), got)

	got, err = ResolvePath("./saves/../roms")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "roms", filepath.Base(got))
}

func TestResolvePaths_SkipsBlank(t *testing.T) {
	got, err := ResolvePaths([]string{"/tmp/a", " ", "", "/tmp/b"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestEnsureParentAndExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a", "b", "zelda.srm")

	require.NoError(t, EnsureParent(file))
	assert.True(t, DirExists(filepath.Dir(file)))
	assert.False(t, FileExists(file))

	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.True(t, FileExists(file))
	assert.False(t, DirExists(file))
}

func TestIsUnder(t *testing.T) {
	root := filepath.FromSlash("/saves")
	assert.True(t, IsUnder(root, root))
	assert.True(t, IsUnder(root, filepath.FromSlash("/saves/snes/zelda.srm")))
	assert.False(t, IsUnder(root, filepath.FromSlash("/savestates/x.srm")))
	assert.False(t, IsUnder(root, filepath.FromSlash("/other")))
	assert.True(t, IsUnder(root, filepath.FromSlash("/saves/..data/x.srm")))
}

func TestRealPath(t *testing.T) {
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	real := filepath.Join(base, "real")
	require.NoError(t, os.MkdirAll(real, 0o755))
	link := filepath.Join(base, "link")
	require.NoError(t, os.Symlink(real, link))

	assert.Equal(t, real, RealPath(link))
	assert.Equal(t, filepath.Join(real, "new.srm"), RealPath(filepath.Join(link, "new.srm")))
	assert.Equal(t, "/no/such/dir/x.srm", RealPath("/no/such/dir/x.srm"))
}
