package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	conn, err := Open()
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec("CREATE TABLE saves (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	_, err = conn.Exec("INSERT INTO saves (name) VALUES ('zelda.srm')")
	require.NoError(t, err)

	var n int
	require.NoError(t, conn.Get(&n, "SELECT COUNT(*) FROM saves"))
	assert.Equal(t, 1, n)
}

func TestOpen_FileCreatesParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "journal.db")

	conn, err := Open(WithPath(path), WithMaxOpenConns(1))
	require.NoError(t, err)
	defer conn.Close()

	assert.DirExists(t, filepath.Dir(path))
	assert.FileExists(t, path)
}

func TestOpen_BadPragma(t *testing.T) {
	_, err := Open(WithPragmas("PRAGMA this is not sql;"))
	assert.Error(t, err)
}
