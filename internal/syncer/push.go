package syncer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/retrosync/retrosync/internal/blob"
	"github.com/retrosync/retrosync/internal/fingerprint"
	"github.com/retrosync/retrosync/internal/objkey"
	"github.com/retrosync/retrosync/internal/savefile"
	"github.com/retrosync/retrosync/internal/syncerr"
	"github.com/retrosync/retrosync/internal/synclog"
)

// Push uploads the save file at path unless the store already holds identical contents under
// this device's key. A successful upload is followed by the sidecar record and an upload event.
func (c *Coordinator) Push(ctx context.Context, path string) Result {
	res := Result{Path: path}
	if c.exclude.Match(path) {
		res.State = StateIgnored
		slog.Debug("push excluded", "path", path)
		return res
	}

	rec, parts, err := c.describe(path)
	if err != nil {
		return c.fail(ctx, res, synclog.ActionUpload, err)
	}
	res.Key = parts.Key()

	unlock := c.locks.Lock(lockKey(rec.Emulator, rec.Game, rec.Filename))
	defer unlock()

	return c.push(ctx, res, rec, parts)
}

// ShouldUpload reports whether the local contents differ from what the store holds for path.
func (c *Coordinator) ShouldUpload(ctx context.Context, path string) (bool, error) {
	_, parts, err := c.describe(path)
	if err != nil {
		return false, err
	}
	upToDate, _, err := c.compare(ctx, path, parts)
	if err != nil {
		return false, err
	}
	return !upToDate, nil
}

// push runs with the file's lock held.
func (c *Coordinator) push(ctx context.Context, res Result, rec savefile.Record, parts objkey.Parts) Result {
	upToDate, fp, err := c.compare(ctx, res.Path, parts)
	res.State = StateCompared
	res.Size = fp.Size
	if err != nil {
		return c.fail(ctx, res, synclog.ActionUpload, err)
	}
	if upToDate {
		res.State = StateUpToDate
		slog.Debug("push up to date", "path", res.Path, "key", res.Key)
		return res
	}

	res.State = StateNeedUpload
	return c.upload(ctx, res, rec, parts)
}

// compare fingerprints the local file and checks it against the remote object's hash. A matching
// object only counts as up to date when the game's sidecar agrees with it, so an upload whose
// sidecar write failed is repeated on the next push.
func (c *Coordinator) compare(ctx context.Context, path string, parts objkey.Parts) (bool, fingerprint.Fingerprint, error) {
	fp, err := fingerprint.Of(path)
	if err != nil {
		return false, fingerprint.Fingerprint{}, err
	}

	info, err := c.store.HeadObject(ctx, parts.Key())
	if syncerr.IsNotFound(err) {
		return false, fp, nil
	}
	if err != nil {
		return false, fp, err
	}
	if info.Hash == "" || info.Hash != fp.Hash {
		return false, fp, nil
	}

	sc, err := c.Sidecar(ctx, parts.Emulator, parts.Game)
	if errors.Is(err, syncerr.ErrTransientNetwork) {
		return false, fp, err
	}
	if err != nil {
		// missing or undecodable
		slog.Debug("push sidecar unusable", "path", path, "key", parts.Key(), "error", err)
		return false, fp, nil
	}
	// the sidecar describes the game's latest upload, which may be a sibling file
	if sc.Filename == parts.Filename && sc.Hash != fp.Hash {
		slog.Debug("push sidecar stale", "path", path, "key", parts.Key())
		return false, fp, nil
	}
	return true, fp, nil
}

// upload sends the current bytes of the file and then the sidecar. The hash stored with the object
// is computed from exactly the bytes sent.
func (c *Coordinator) upload(ctx context.Context, res Result, rec savefile.Record, parts objkey.Parts) Result {
	data, err := os.ReadFile(res.Path)
	if err != nil {
		return c.fail(ctx, res, synclog.ActionUpload, syncerr.LocalIO("read", res.Path, err))
	}
	fp := fingerprint.OfBytes(data)
	res.Size = fp.Size

	_, err = c.store.PutObject(ctx, &blob.PutObjectParams{
		Key:         res.Key,
		Hash:        fp.Hash,
		ContentType: contentTypeSave,
		Size:        fp.Size,
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		return c.fail(ctx, res, synclog.ActionUpload, err)
	}

	if err := c.writeSidecar(ctx, rec, parts, fp); err != nil {
		return c.fail(ctx, res, synclog.ActionUpload, err)
	}

	res.State = StateResolved
	res.Action = synclog.ActionUpload
	slog.Info("uploaded", "path", res.Path, "key", res.Key, "size", humanize.Bytes(uint64(fp.Size)))
	c.record(ctx, synclog.Event{
		Action:   synclog.ActionUpload,
		FilePath: res.Path,
		Size:     synclog.Size(fp.Size),
		Status:   synclog.StatusSuccess,
	})
	return res
}

func (c *Coordinator) writeSidecar(ctx context.Context, rec savefile.Record, parts objkey.Parts, fp fingerprint.Fingerprint) error {
	sc := &objkey.Sidecar{
		Filename:   rec.Filename,
		Emulator:   rec.Emulator,
		Game:       rec.Game,
		Device:     parts.Device,
		Size:       fp.Size,
		Hash:       fp.Hash,
		UploadedAt: c.now().UTC(),
	}
	data, err := sc.Marshal()
	if err != nil {
		return err
	}

	_, err = c.store.PutObject(ctx, &blob.PutObjectParams{
		Key:         objkey.MetadataKey(parts.Owner, parts.Device, parts.Emulator, parts.Game),
		ContentType: contentTypeSidecar,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	})
	return err
}

// Sidecar fetches the sidecar record this device last wrote for (emulator, game).
func (c *Coordinator) Sidecar(ctx context.Context, emulator, game string) (*objkey.Sidecar, error) {
	key := objkey.MetadataKey(c.cfg.OwnerID, c.cfg.DeviceID, emulator, game)
	resp, err := c.store.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, syncerr.Network("get", key, err)
	}
	return objkey.UnmarshalSidecar(data)
}
