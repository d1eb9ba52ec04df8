package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/retrosync/retrosync/internal/watcher"
	"golang.org/x/sync/errgroup"
)

// Start runs the daemon until ctx is cancelled: watch roots are registered, an initial sync and
// a first pull and heartbeat run, then the coordinator consumes detector events on its timers.
func (c *Client) Start(ctx context.Context) error {
	if err := c.open(); err != nil {
		return err
	}
	defer c.close()

	slog.Info("retrosync client start",
		"owner", c.cfg.OwnerID,
		"device", c.cfg.DeviceID,
		"api", c.cfg.APIURL,
		"bucket", c.cfg.S3.Bucket,
		"datadir", c.cfg.DataDir,
	)

	watched := 0
	for _, root := range c.coord.Roots() {
		if err := c.detector.AddWatch(root); err != nil {
			if errors.Is(err, watcher.ErrPathNotFound) {
				slog.Warn("watch root skipped", "path", root, "error", err)
				continue
			}
			return fmt.Errorf("watch %s: %w", root, err)
		}
		watched++
	}
	if watched == 0 {
		slog.Warn("no watch root exists yet, local changes will not be detected")
	}

	// events arriving during the initial sync are buffered and pushed once Run starts
	if err := c.detector.Start(ctx); err != nil {
		return fmt.Errorf("start detector: %w", err)
	}

	if err := c.api.Heartbeat(ctx); err != nil {
		slog.Warn("heartbeat", "error", err)
	}
	c.initialSync(ctx)
	c.pull(ctx)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := c.coord.Run(egCtx, c.detector.Events()); err != nil {
			return fmt.Errorf("sync loop: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("received interrupt signal, stopping client")
		c.detector.Stop()
		return nil
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("client failure", "error", err)
		return err
	}

	slog.Info("retrosync client stopped")
	return nil
}
