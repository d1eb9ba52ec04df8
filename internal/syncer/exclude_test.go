package syncer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/retrosync/retrosync/internal/savefile"
	"github.com/retrosync/retrosync/internal/synclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func excludeFixture(t *testing.T, patterns ...string) *fixture {
	t.Helper()
	f := newFixture(t)
	ig, err := savefile.NewIgnore(patterns)
	require.NoError(t, err)
	WithExclude(ig)(f.c)
	return f
}

func TestExclude_Push(t *testing.T) {
	f := excludeFixture(t, "*.state")
	path := filepath.Join(f.root, "zelda.state")
	writeSave(t, path, "state", baseTime)

	res := f.c.Push(context.Background(), path)
	require.NoError(t, res.Err)
	assert.Equal(t, StateIgnored, res.State)
	assert.Empty(t, res.Action)
	assert.Zero(t, f.store.totalPuts())
	assert.Empty(t, f.log.all())
}

func TestExclude_InitialSync(t *testing.T) {
	f := excludeFixture(t, "**/autosave/**")
	writeSave(t, filepath.Join(f.root, "zelda.srm"), "z", baseTime)
	writeSave(t, filepath.Join(f.root, "autosave", "zelda.srm"), "auto", baseTime)

	report := f.c.InitialSync(context.Background())
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Uploaded)
}

func TestExclude_Pull(t *testing.T) {
	f := excludeFixture(t, "mario.sav")
	f.store.seed(t, "alice/deviceB/retroarch/mario/mario.sav", "remote", baseTime)
	f.store.seed(t, "alice/deviceB/retroarch/zelda/zelda.srm", "remote", baseTime)

	report := f.c.Pull(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 1, report.Downloaded)
	assert.Equal(t, 1, report.Skipped)
	assert.NoFileExists(t, filepath.Join(f.root, "mario.sav"))
	assert.Equal(t, 1, f.log.count(synclog.ActionDownload, synclog.StatusSuccess))
}
