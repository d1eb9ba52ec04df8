package syncer

import (
	"context"
	"log/slog"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/retrosync/retrosync/internal/savefile"
	"golang.org/x/sync/errgroup"
)

// InitialSync pushes every save file found under the watch roots. Pushes run concurrently up to
// the configured limit; per-file failures are counted and the batch carries on.
func (c *Coordinator) InitialSync(ctx context.Context) BatchReport {
	var report BatchReport

	seen := mapset.NewThreadUnsafeSet[string]()
	var paths []string
	for _, root := range c.cfg.WatchRoots {
		err := savefile.Scan(root, func(path string) error {
			if c.exclude.Match(path) {
				return nil
			}
			if seen.Add(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			report.ScanErrors++
			slog.Warn("initial sync scan", "root", root, "error", err)
		}
	}

	slog.Info("initial sync start", "files", len(paths), "concurrency", c.cfg.Concurrency)

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(c.cfg.Concurrency)
	for _, path := range paths {
		g.Go(func() error {
			res := c.Push(ctx, path)
			mu.Lock()
			report.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("initial sync done",
		"total", report.Total,
		"uploaded", report.Uploaded,
		"uptodate", report.UpToDate,
		"failed", report.Failed,
		"scanErrors", report.ScanErrors)
	return report
}
