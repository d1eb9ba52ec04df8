package syncer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/retrosync/retrosync/internal/blob"
	"github.com/retrosync/retrosync/internal/objkey"
	"github.com/retrosync/retrosync/internal/savefile"
	"github.com/retrosync/retrosync/internal/syncerr"
	"github.com/retrosync/retrosync/internal/synclog"
	"github.com/retrosync/retrosync/internal/utils"
)

// Pull lists everything stored for the owner and downloads copies written by other devices that
// are newer than the local file. A failure on one object does not stop the rest.
func (c *Coordinator) Pull(ctx context.Context) PullReport {
	var report PullReport

	objects, err := c.store.ListObjects(ctx, objkey.OwnerPrefix(c.cfg.OwnerID))
	if err != nil {
		report.Err = err
		slog.Error("pull list", "owner", c.cfg.OwnerID, "error", err)
		return report
	}
	report.Listed = len(objects)

	for _, obj := range objects {
		parts, ok := c.candidate(obj.Key)
		if !ok {
			continue
		}
		report.Candidates++
		report.add(c.pullOne(ctx, obj, parts))
	}

	slog.Info("pull done",
		"listed", report.Listed,
		"candidates", report.Candidates,
		"downloaded", report.Downloaded,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report
}

// candidate filters the listing down to save files uploaded by other devices of this owner.
func (c *Coordinator) candidate(key string) (objkey.Parts, bool) {
	if objkey.IsSidecar(key) {
		return objkey.Parts{}, false
	}
	parts, err := objkey.Parse(key)
	if err != nil {
		slog.Debug("pull skip", "key", key, "error", err)
		return objkey.Parts{}, false
	}
	if parts.Owner != c.cfg.OwnerID || parts.Device == c.cfg.DeviceID {
		return objkey.Parts{}, false
	}
	if !safeName(parts.Game) || !safeName(parts.Filename) || !savefile.IsSaveFile(parts.Filename) {
		slog.Warn("pull skip unsafe key", "key", key)
		return objkey.Parts{}, false
	}
	return parts, true
}

func (c *Coordinator) pullOne(ctx context.Context, obj *blob.ObjectInfo, parts objkey.Parts) Result {
	unlock := c.locks.Lock(lockKey(parts.Emulator, parts.Game, parts.Filename))
	defer unlock()

	local := c.resolveLocalPath(parts.Game, parts.Filename)
	res := Result{Path: local, Key: obj.Key, State: StateCompared}
	if c.exclude.Match(local) {
		res.State = StateIgnored
		slog.Debug("pull excluded", "path", local, "key", obj.Key)
		return res
	}

	backup := false
	info, err := os.Stat(local)
	switch {
	case err == nil && info.IsDir():
		return c.fail(ctx, res, synclog.ActionDownload, syncerr.LocalIO("stat", local, errors.New("is a directory")))
	case err == nil:
		remote, err := c.store.HeadObject(ctx, obj.Key)
		if err != nil {
			return c.fail(ctx, res, synclog.ActionDownload, err)
		}
		// ties keep the local copy
		if !info.ModTime().Before(remote.LastModified) {
			res.State = StateUpToDate
			slog.Debug("pull skip newer local", "path", local, "local", formatTime(info.ModTime()), "remote", formatTime(remote.LastModified))
			return res
		}
		backup = true
	case errors.Is(err, fs.ErrNotExist):
	default:
		return c.fail(ctx, res, synclog.ActionDownload, syncerr.LocalIO("stat", local, err))
	}

	res.State = StateNeedDownload
	return c.fetch(ctx, res, backup)
}

// fetch downloads res.Key to res.Path and records the event.
func (c *Coordinator) fetch(ctx context.Context, res Result, backup bool) Result {
	n, err := c.download(ctx, res.Key, res.Path, backup)
	if err != nil {
		return c.fail(ctx, res, synclog.ActionDownload, err)
	}

	res.State = StateResolved
	res.Action = synclog.ActionDownload
	res.Size = n
	slog.Info("downloaded", "key", res.Key, "path", res.Path, "size", humanize.Bytes(uint64(n)), "backup", backup)
	c.record(ctx, synclog.Event{
		Action:   synclog.ActionDownload,
		FilePath: res.Path,
		Size:     synclog.Size(n),
		Status:   synclog.StatusSuccess,
	})
	return res
}

// resolveLocalPath picks where a remote save belongs. An existing copy at <root>/<filename> or
// <root>/<game>/<filename> wins. Otherwise the save goes to <root>/<filename> under the first root
// whose directory exists, and the first root is the fallback.
func (c *Coordinator) resolveLocalPath(game, filename string) string {
	for _, root := range c.cfg.WatchRoots {
		for _, p := range []string{filepath.Join(root, filename), filepath.Join(root, game, filename)} {
			if utils.FileExists(p) {
				return p
			}
		}
	}
	for _, root := range c.cfg.WatchRoots {
		if utils.DirExists(root) {
			return filepath.Join(root, filename)
		}
	}
	return filepath.Join(c.cfg.WatchRoots[0], filename)
}

// safeName rejects segments that would escape a watch root once joined into a path.
func safeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name && filepath.IsLocal(name)
}
