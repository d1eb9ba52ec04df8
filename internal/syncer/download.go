package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/retrosync/retrosync/internal/fingerprint"
	"github.com/retrosync/retrosync/internal/syncerr"
	"github.com/retrosync/retrosync/internal/utils"
)

const backupSuffix = ".backup"

var ErrIntegrity = errors.New("syncer: downloaded content does not match stored hash")

// BackupPath is where a local file is moved before a remote copy replaces it. There is one backup
// per file and a newer backup replaces an older one.
func BackupPath(path string) string {
	return path + backupSuffix
}

// download fetches key into dst. The bytes land in a temp file beside dst and are checked against
// the stored hash before anything at dst is touched. With backup set, the current dst is moved to
// BackupPath first.
func (c *Coordinator) download(ctx context.Context, key, dst string, backup bool) (int64, error) {
	resp, err := c.store.GetObject(ctx, key)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := utils.EnsureParent(dst); err != nil {
		return 0, syncerr.LocalIO("mkdir", filepath.Dir(dst), err)
	}

	// the temp name carries no save file extension, so the detector never reports it
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.rstmp")
	if err != nil {
		return 0, syncerr.LocalIO("create temp", dst, err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	fp, err := fingerprint.Sum(io.TeeReader(resp.Body, tmp))
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return 0, syncerr.LocalIO("write", tmpPath, err)
		}
		return 0, syncerr.Network("get", key, err)
	}
	if resp.Hash != "" && resp.Hash != fp.Hash {
		return 0, syncerr.Network("get", key, fmt.Errorf("%w: want %s got %s", ErrIntegrity, resp.Hash, fp.Hash))
	}

	if err := tmp.Sync(); err != nil {
		return 0, syncerr.LocalIO("sync", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, syncerr.LocalIO("close", tmpPath, err)
	}

	if backup {
		bak := BackupPath(dst)
		if err := os.Remove(bak); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, syncerr.LocalIO("remove backup", bak, err)
		}
		if err := os.Rename(dst, bak); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, syncerr.LocalIO("backup", dst, err)
		}
	}

	c.ignore(dst)
	if err := os.Rename(tmpPath, dst); err != nil {
		return 0, syncerr.LocalIO("rename", dst, err)
	}

	success = true
	return fp.Size, nil
}
