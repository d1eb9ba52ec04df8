package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/retrosync/retrosync/internal/watcher"
)

// Run drives the daemon: every change event is pushed on its own goroutine, the heartbeat and
// pull timers fire on their intervals measured from start and are re-armed once their work is
// done. Work already started finishes even after ctx is cancelled; Run returns once it has.
func (c *Coordinator) Run(ctx context.Context, events <-chan watcher.ChangeEvent) error {
	work := context.WithoutCancel(ctx)

	pull := time.NewTimer(c.cfg.PullInterval)
	defer pull.Stop()

	heartbeat := time.NewTimer(c.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	heartbeatC := heartbeat.C
	if c.heartbeater == nil {
		heartbeat.Stop()
		heartbeatC = nil
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	slog.Info("sync loop start", "pull", c.cfg.PullInterval, "heartbeat", c.cfg.HeartbeatInterval)
	defer slog.Info("sync loop stopped")

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.handleChange(work, ev)
			}()

		case <-heartbeatC:
			if err := c.heartbeater.Heartbeat(work); err != nil {
				slog.Warn("heartbeat", "error", err)
			}
			heartbeat.Reset(c.cfg.HeartbeatInterval)

		case <-pull.C:
			c.Pull(work)
			pull.Reset(c.cfg.PullInterval)
		}
	}
}

func (c *Coordinator) handleChange(ctx context.Context, ev watcher.ChangeEvent) {
	slog.Debug("change", "kind", ev.Kind, "path", ev.Path)
	res := c.Push(ctx, ev.Path)
	if res.OK() && res.Action == "" {
		slog.Debug("change no-op", "path", ev.Path, "state", res.State)
	}
}
