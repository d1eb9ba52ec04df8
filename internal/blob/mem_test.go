package blob

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/retrosync/retrosync/internal/syncerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func put(t *testing.T, m *MemStore, key, body, hash string) {
	t.Helper()
	_, err := m.PutObject(context.Background(), &PutObjectParams{
		Key:  key,
		Hash: hash,
		Size: int64(len(body)),
		Body: bytes.NewReader([]byte(body)),
	})
	require.NoError(t, err)
}

func TestMemStore_PutHeadGet(t *testing.T) {
	m := NewMemStore()
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	m.SetClock(func() time.Time { return ts })

	put(t, m, "alice/a/retroarch/zelda/zelda.srm", "H1", "hash1")

	info, err := m.HeadObject(context.Background(), "alice/a/retroarch/zelda/zelda.srm")
	require.NoError(t, err)
	assert.Equal(t, "hash1", info.Hash)
	assert.Equal(t, int64(2), info.Size)
	assert.Equal(t, ts, info.LastModified)

	resp, err := m.GetObject(context.Background(), "alice/a/retroarch/zelda/zelda.srm")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "H1", string(data))
	assert.Equal(t, "hash1", resp.Hash)
}

func TestMemStore_NotFound(t *testing.T) {
	m := NewMemStore()

	_, err := m.HeadObject(context.Background(), "missing")
	assert.ErrorIs(t, err, syncerr.ErrNotFound)

	_, err = m.GetObject(context.Background(), "missing")
	assert.ErrorIs(t, err, syncerr.ErrNotFound)
}

func TestMemStore_ShortBody(t *testing.T) {
	m := NewMemStore()
	_, err := m.PutObject(context.Background(), &PutObjectParams{
		Key:  "k",
		Size: 10,
		Body: bytes.NewReader([]byte("abc")),
	})
	assert.ErrorIs(t, err, syncerr.ErrTransientNetwork)
	assert.Zero(t, m.Len())
}

func TestMemStore_ListByPrefix(t *testing.T) {
	m := NewMemStore()
	put(t, m, "alice/b/retroarch/zelda/zelda.srm", "x", "h")
	put(t, m, "alice/a/retroarch/zelda/zelda.srm", "y", "h")
	put(t, m, "bob/a/retroarch/zelda/zelda.srm", "z", "h")

	objs, err := m.ListObjects(context.Background(), "alice/")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "alice/a/retroarch/zelda/zelda.srm", objs[0].Key)
	assert.Equal(t, "alice/b/retroarch/zelda/zelda.srm", objs[1].Key)
	assert.Empty(t, objs[0].Hash)
}

func TestMemStore_SetLastModified(t *testing.T) {
	m := NewMemStore()
	put(t, m, "k", "v", "")

	ts := time.Unix(1000, 0)
	assert.True(t, m.SetLastModified("k", ts))
	assert.False(t, m.SetLastModified("nope", ts))

	info, err := m.HeadObject(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, ts, info.LastModified)
}

func TestMemStore_CanceledContext(t *testing.T) {
	m := NewMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.ListObjects(ctx, "")
	assert.ErrorIs(t, err, syncerr.ErrTransientNetwork)
}
