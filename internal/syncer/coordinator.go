// Package syncer decides, per save file, whether a local change is pushed, a remote change is
// pulled, or a divergence is resolved by last-write-wins.
package syncer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/retrosync/retrosync/internal/blob"
	"github.com/retrosync/retrosync/internal/objkey"
	"github.com/retrosync/retrosync/internal/savefile"
	"github.com/retrosync/retrosync/internal/syncerr"
	"github.com/retrosync/retrosync/internal/synclog"
	"github.com/retrosync/retrosync/internal/utils"
)

const (
	DefaultHeartbeatInterval = 60 * time.Second
	DefaultPullInterval      = 300 * time.Second
	DefaultConcurrency       = 4

	// how long a downloaded file is shielded from being pushed straight back
	echoWindow = 10 * time.Second

	contentTypeSave    = "application/octet-stream"
	contentTypeSidecar = "application/json"
)

// Ignorer is told about files the coordinator is about to write, so the change detector does not
// report them as local edits.
type Ignorer interface {
	IgnoreOnce(path string, ttl time.Duration)
}

type Heartbeater interface {
	Heartbeat(ctx context.Context) error
}

// Config holds the resolved identity and roots. It is read-only once the coordinator exists.
type Config struct {
	OwnerID           string
	DeviceID          string
	WatchRoots        []string
	HeartbeatInterval time.Duration
	PullInterval      time.Duration
	Concurrency       int
}

type Option func(*Coordinator)

func WithIgnorer(i Ignorer) Option {
	return func(c *Coordinator) { c.ignorer = i }
}

func WithHeartbeater(h Heartbeater) Option {
	return func(c *Coordinator) { c.heartbeater = h }
}

// WithExclude drops saves matching the given patterns from push, pull and initial sync.
func WithExclude(ig *savefile.Ignore) Option {
	return func(c *Coordinator) { c.exclude = ig }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

type Coordinator struct {
	cfg         Config
	store       blob.Store
	log         synclog.Appender
	ignorer     Ignorer
	heartbeater Heartbeater
	exclude     *savefile.Ignore
	locks       *keyLock
	now         func() time.Time
}

func New(cfg Config, store blob.Store, log synclog.Appender, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, syncerr.Configuration("object store is required")
	}
	if err := checkID("owner id", cfg.OwnerID); err != nil {
		return nil, err
	}
	if err := checkID("device id", cfg.DeviceID); err != nil {
		return nil, err
	}

	roots, err := utils.ResolvePaths(cfg.WatchRoots)
	if err != nil {
		return nil, syncerr.Configuration("watch roots: %v", err)
	}
	if len(roots) == 0 {
		return nil, syncerr.Configuration("at least one watch root is required")
	}
	// paths handed to the detector must match the real paths it reports
	for i, root := range roots {
		roots[i] = utils.RealPath(root)
	}
	cfg.WatchRoots = roots

	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.PullInterval <= 0 {
		cfg.PullInterval = DefaultPullInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if log == nil {
		log = synclog.Discard{}
	}

	c := &Coordinator{
		cfg:   cfg,
		store: store,
		log:   log,
		locks: newKeyLock(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Roots returns the resolved watch roots.
func (c *Coordinator) Roots() []string {
	return append([]string(nil), c.cfg.WatchRoots...)
}

// describe derives the record and own-device key parts for a local path.
func (c *Coordinator) describe(path string) (savefile.Record, objkey.Parts, error) {
	rec, err := savefile.Detect(path)
	if err != nil {
		return savefile.Record{}, objkey.Parts{}, syncerr.LocalIO("detect", path, err)
	}
	parts, err := objkey.NewParts(c.cfg.OwnerID, c.cfg.DeviceID, rec.Emulator, rec.Game, rec.Filename)
	if err != nil {
		return savefile.Record{}, objkey.Parts{}, syncerr.LocalIO("key", path, err)
	}
	return rec, parts, nil
}

// record appends ev to the sync log. Its own failure is logged and dropped.
func (c *Coordinator) record(ctx context.Context, ev synclog.Event) {
	if ev.At.IsZero() {
		ev.At = c.now()
	}
	if err := c.log.Append(ctx, ev); err != nil {
		slog.Warn("sync log append", "action", ev.Action, "path", ev.FilePath, "error", err)
	}
}

// fail finalises res as a failure and records a failed event for action.
func (c *Coordinator) fail(ctx context.Context, res Result, action synclog.Action, err error) Result {
	res.Err = err
	slog.Error("sync failed", "action", action, "path", res.Path, "key", res.Key, "state", res.State, "error", err)

	ev := synclog.Event{
		Action:   action,
		FilePath: res.Path,
		Status:   synclog.StatusFailed,
		Error:    err.Error(),
	}
	if res.Size > 0 {
		ev.Size = synclog.Size(res.Size)
	}
	c.record(ctx, ev)
	return res
}

func (c *Coordinator) ignore(path string) {
	if c.ignorer != nil {
		c.ignorer.IgnoreOnce(path, echoWindow)
	}
}

func checkID(name, id string) error {
	if id == "" {
		return syncerr.Configuration("%s is required", name)
	}
	if strings.Contains(id, "/") {
		return syncerr.Configuration("%s %q must not contain '/'", name, id)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
