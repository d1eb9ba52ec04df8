package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/retrosync/retrosync/internal/objkey"
	"github.com/retrosync/retrosync/internal/syncerr"
	"github.com/retrosync/retrosync/internal/synclog"
)

// ResolveConflict settles a file that changed on both sides by last-write-wins. remoteKey names
// the competing copy; when empty, this device's own key is used. A strictly newer local file is
// uploaded, a strictly newer remote copy is downloaded over a backup, and equal timestamps keep
// the local file. A conflict event is recorded whenever a remote copy existed; it is marked
// failed only when the winning transfer failed.
func (c *Coordinator) ResolveConflict(ctx context.Context, path, remoteKey string) Result {
	res := Result{Path: path}

	rec, parts, err := c.describe(path)
	if err != nil {
		return c.fail(ctx, res, synclog.ActionConflict, err)
	}
	res.Key = parts.Key()

	if remoteKey == "" {
		remoteKey = res.Key
	} else if _, err := objkey.Parse(remoteKey); err != nil {
		return c.fail(ctx, res, synclog.ActionConflict, err)
	}

	unlock := c.locks.Lock(lockKey(rec.Emulator, rec.Game, rec.Filename))
	defer unlock()

	info, err := os.Stat(path)
	if err != nil {
		return c.fail(ctx, res, synclog.ActionConflict, syncerr.LocalIO("stat", path, err))
	}

	remote, err := c.store.HeadObject(ctx, remoteKey)
	if syncerr.IsNotFound(err) {
		// nothing to conflict with
		res.State = StateNeedUpload
		return c.upload(ctx, res, rec, parts)
	}
	if err != nil {
		return c.fail(ctx, res, synclog.ActionConflict, err)
	}

	res.State = StateConflict
	local := info.ModTime()
	switch {
	case local.After(remote.LastModified):
		slog.Info("conflict local wins", "path", path, "local", formatTime(local), "remote", formatTime(remote.LastModified))
		res = c.upload(ctx, res, rec, parts)
	case local.Before(remote.LastModified):
		slog.Info("conflict remote wins", "path", path, "key", remoteKey, "local", formatTime(local), "remote", formatTime(remote.LastModified))
		res.Key = remoteKey
		res = c.fetch(ctx, res, true)
	default:
		slog.Info("conflict tie keeps local", "path", path, "at", formatTime(local))
		res.State = StateResolved
	}

	ev := synclog.Event{
		Action:   synclog.ActionConflict,
		FilePath: path,
		Status:   synclog.StatusSuccess,
		Note:     fmt.Sprintf("resolved via last-write-wins: local=%s, remote=%s", formatTime(local), formatTime(remote.LastModified)),
	}
	if !res.OK() {
		// the transfer already recorded its own failure
		ev.Status = synclog.StatusFailed
		ev.Error = res.Err.Error()
	}
	c.record(ctx, ev)
	return res
}
