package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/retrosync/retrosync/internal/fingerprint"
	"github.com/retrosync/retrosync/internal/objkey"
	"github.com/retrosync/retrosync/internal/savefile"
	"github.com/retrosync/retrosync/internal/syncerr"
	"github.com/retrosync/retrosync/internal/synclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventAt(at time.Time) synclog.Event {
	return synclog.Event{Action: synclog.ActionUpload, Status: synclog.StatusSuccess, At: at}
}

func zeldaKey() string {
	return objkey.Key(owner, device, savefile.EmulatorRetroArch, "zelda", "zelda.srm")
}

func zeldaSidecarKey() string {
	return objkey.MetadataKey(owner, device, savefile.EmulatorRetroArch, "zelda")
}

func TestPush_ScenarioA_UnchangedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := filepath.Join(f.root, "zelda.srm")
	writeSave(t, path, "H1", time.Time{})

	should, err := f.c.ShouldUpload(ctx, path)
	require.NoError(t, err)
	assert.True(t, should)

	res := f.c.Push(ctx, path)
	require.NoError(t, res.Err)
	assert.Equal(t, StateResolved, res.State)
	assert.Equal(t, synclog.ActionUpload, res.Action)
	assert.Equal(t, zeldaKey(), res.Key)
	assert.Equal(t, 1, f.store.putCount(zeldaKey()))

	sc, err := f.c.Sidecar(ctx, savefile.EmulatorRetroArch, "zelda")
	require.NoError(t, err)
	assert.Equal(t, fingerprint.OfBytes([]byte("H1")).Hash, sc.Hash)
	assert.Equal(t, "zelda.srm", sc.Filename)
	assert.Equal(t, device, sc.Device)
	assert.Equal(t, int64(2), sc.Size)

	// rewrite identical bytes
	writeSave(t, path, "H1", time.Time{})

	should, err = f.c.ShouldUpload(ctx, path)
	require.NoError(t, err)
	assert.False(t, should)

	res = f.c.Push(ctx, path)
	require.NoError(t, res.Err)
	assert.Equal(t, StateUpToDate, res.State)
	assert.Empty(t, res.Action)
	assert.Equal(t, 1, f.store.putCount(zeldaKey()))
	assert.Equal(t, 1, f.store.putCount(zeldaSidecarKey()))
	assert.Equal(t, 1, f.log.count(synclog.ActionUpload, synclog.StatusSuccess))
	assert.Len(t, f.log.all(), 1)
}

func TestPush_ScenarioB_ChangedReuploads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := filepath.Join(f.root, "zelda.srm")

	writeSave(t, path, "H1", time.Time{})
	require.True(t, f.c.Push(ctx, path).OK())

	writeSave(t, path, "H2-longer", time.Time{})
	should, err := f.c.ShouldUpload(ctx, path)
	require.NoError(t, err)
	assert.True(t, should)

	res := f.c.Push(ctx, path)
	require.NoError(t, res.Err)
	assert.Equal(t, synclog.ActionUpload, res.Action)
	assert.Equal(t, int64(len("H2-longer")), res.Size)
	assert.Equal(t, 2, f.store.putCount(zeldaKey()))

	sc, err := f.c.Sidecar(ctx, savefile.EmulatorRetroArch, "zelda")
	require.NoError(t, err)
	assert.Equal(t, fingerprint.OfBytes([]byte("H2-longer")).Hash, sc.Hash)
}

func TestPush_HashConsistency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"zelda.srm", "mario.sav", "metroid.state", "pokemon.dsv"} {
		path := filepath.Join(f.root, name)
		writeSave(t, path, "contents of "+name, time.Time{})

		res := f.c.Push(ctx, path)
		require.NoError(t, res.Err, name)

		info, err := f.store.HeadObject(ctx, res.Key)
		require.NoError(t, err)
		fp, err := fingerprint.Of(path)
		require.NoError(t, err)
		assert.Equal(t, fp.Hash, info.Hash, name)
	}
}

func TestPush_UnknownEmulatorKey(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.root, "sub", "ffx.sps")
	writeSave(t, path, "x", time.Time{})

	res := f.c.Push(context.Background(), path)
	require.NoError(t, res.Err)
	assert.Equal(t, objkey.Key(owner, device, savefile.EmulatorUnknown, "ffx", "ffx.sps"), res.Key)
}

func TestPush_PutFailure(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.root, "zelda.srm")
	writeSave(t, path, "H1", time.Time{})
	f.store.failPut = func(string) error { return errBoom }

	res := f.c.Push(context.Background(), path)
	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, syncerr.ErrTransientNetwork)
	assert.Equal(t, StateNeedUpload, res.State)

	// no sidecar without a successful object put
	assert.Zero(t, f.store.Len())

	events := f.log.all()
	require.Len(t, events, 1)
	assert.Equal(t, synclog.ActionUpload, events[0].Action)
	assert.Equal(t, synclog.StatusFailed, events[0].Status)
	assert.Contains(t, events[0].Error, "connection reset")
}

func TestPush_SidecarFailureIsFailure(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.root, "zelda.srm")
	writeSave(t, path, "H1", time.Time{})
	f.store.failPut = func(key string) error {
		if objkey.IsSidecar(key) {
			return errBoom
		}
		return nil
	}

	res := f.c.Push(context.Background(), path)
	assert.ErrorIs(t, res.Err, syncerr.ErrTransientNetwork)
	assert.Equal(t, 0, f.store.putCount(zeldaSidecarKey()))
	assert.Equal(t, 1, f.log.count(synclog.ActionUpload, synclog.StatusFailed))
}

func TestPush_RetriesAfterSidecarFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := filepath.Join(f.root, "zelda.srm")
	writeSave(t, path, "H1", time.Time{})
	f.store.failPut = func(key string) error {
		if objkey.IsSidecar(key) {
			return errBoom
		}
		return nil
	}

	res := f.c.Push(ctx, path)
	require.ErrorIs(t, res.Err, syncerr.ErrTransientNetwork)
	assert.Equal(t, 1, f.store.putCount(zeldaKey()))

	f.store.failPut = nil

	should, err := f.c.ShouldUpload(ctx, path)
	require.NoError(t, err)
	assert.True(t, should)

	res = f.c.Push(ctx, path)
	require.NoError(t, res.Err)
	assert.Equal(t, synclog.ActionUpload, res.Action)
	assert.Equal(t, 1, f.log.count(synclog.ActionUpload, synclog.StatusSuccess))

	sc, err := f.c.Sidecar(ctx, savefile.EmulatorRetroArch, "zelda")
	require.NoError(t, err)
	assert.Equal(t, fingerprint.OfBytes([]byte("H1")).Hash, sc.Hash)

	res = f.c.Push(ctx, path)
	require.NoError(t, res.Err)
	assert.Equal(t, StateUpToDate, res.State)
}

func TestPush_StaleSidecarIsRewritten(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := filepath.Join(f.root, "zelda.srm")
	writeSave(t, path, "H1", time.Time{})
	require.True(t, f.c.Push(ctx, path).OK())

	f.store.seed(t, zeldaSidecarKey(), "{not json", time.Time{})
	res := f.c.Push(ctx, path)
	require.NoError(t, res.Err)
	assert.Equal(t, synclog.ActionUpload, res.Action)

	sc, err := f.c.Sidecar(ctx, savefile.EmulatorRetroArch, "zelda")
	require.NoError(t, err)
	assert.Equal(t, "zelda.srm", sc.Filename)
}

func TestPush_SiblingSidecarKeepsUpToDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	srm := filepath.Join(f.root, "zelda.srm")
	state := filepath.Join(f.root, "zelda.state")
	writeSave(t, srm, "battery", time.Time{})
	writeSave(t, state, "snapshot", time.Time{})

	require.True(t, f.c.Push(ctx, srm).OK())
	require.True(t, f.c.Push(ctx, state).OK())

	// the game's sidecar now describes zelda.state
	res := f.c.Push(ctx, srm)
	require.NoError(t, res.Err)
	assert.Equal(t, StateUpToDate, res.State)
	assert.Equal(t, 1, f.store.putCount(zeldaKey()))
}

func TestPush_MissingFile(t *testing.T) {
	f := newFixture(t)
	res := f.c.Push(context.Background(), filepath.Join(f.root, "gone.srm"))
	assert.ErrorIs(t, res.Err, syncerr.ErrLocalIO)
	assert.Equal(t, 1, f.log.count(synclog.ActionUpload, synclog.StatusFailed))
}

func TestPush_NotASaveFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.root, "notes.txt")
	writeSave(t, path, "x", time.Time{})

	res := f.c.Push(context.Background(), path)
	assert.ErrorIs(t, res.Err, syncerr.ErrLocalIO)
	assert.Zero(t, f.store.Len())
}

func TestPush_AppenderFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture(t)
	f.log.err = errors.New("backend down")
	path := filepath.Join(f.root, "zelda.srm")
	writeSave(t, path, "H1", time.Time{})

	res := f.c.Push(context.Background(), path)
	assert.True(t, res.OK())
	assert.Equal(t, synclog.ActionUpload, res.Action)

	f.store.failPut = func(string) error { return errBoom }
	writeSave(t, path, "H2", time.Time{})
	res = f.c.Push(context.Background(), path)
	assert.ErrorIs(t, res.Err, syncerr.ErrTransientNetwork)
	assert.NotErrorIs(t, res.Err, f.log.err)
}

func TestPush_ConcurrentSameFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.root, "zelda.srm")
	writeSave(t, path, "H1", time.Time{})

	results := make(chan Result, 8)
	for range 8 {
		go func() { results <- f.c.Push(context.Background(), path) }()
	}

	uploads := 0
	for range 8 {
		r := <-results
		require.NoError(t, r.Err)
		if r.Action == synclog.ActionUpload {
			uploads++
		}
	}
	// pushes are serialized, so only the first sees a missing remote
	assert.Equal(t, 1, uploads)
	assert.Equal(t, 1, f.store.putCount(zeldaKey()))
	assert.Zero(t, f.c.locks.size())
}
