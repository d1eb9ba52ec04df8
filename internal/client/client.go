// Package client assembles a RetroSync device: object store, sync log, change detector and sync
// coordinator, all bound to one data directory.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"
	"github.com/retrosync/retrosync/internal/blob"
	"github.com/retrosync/retrosync/internal/config"
	"github.com/retrosync/retrosync/internal/savefile"
	"github.com/retrosync/retrosync/internal/syncer"
	"github.com/retrosync/retrosync/internal/synclog"
	"github.com/retrosync/retrosync/internal/utils"
	"github.com/retrosync/retrosync/internal/watcher"
)

var ErrAlreadyRunning = errors.New("client: another retrosync instance holds the data dir")

type Option func(*Client)

// WithStore replaces the S3 store, e.g. with a blob.MemStore for dry runs.
func WithStore(store blob.Store) Option {
	return func(c *Client) { c.store = store }
}

// WithDetectorOptions passes extra options to the change detector.
func WithDetectorOptions(opts ...watcher.Option) Option {
	return func(c *Client) { c.detectorOpts = append(c.detectorOpts, opts...) }
}

type Client struct {
	cfg          *config.Config
	store        blob.Store
	api          *synclog.APIClient
	journal      *synclog.Journal
	detector     *watcher.Detector
	detectorOpts []watcher.Option
	coord        *syncer.Coordinator
	lock         *flock.Flock
}

// New wires a client from a validated config. Nothing touches disk or network until Start,
// SyncOnce or Resolve.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	c := &Client{
		cfg:  cfg,
		lock: flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		store, err := blob.NewBlobClientWithS3Config(ctx, s3Config(&cfg.S3))
		if err != nil {
			return nil, fmt.Errorf("object store: %w", err)
		}
		c.store = store
	}

	api, err := synclog.NewAPIClient(cfg.APIURL, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}
	c.api = api
	c.journal = synclog.NewJournal(cfg.JournalPath())

	exclude, err := savefile.NewIgnore(cfg.IgnorePatterns)
	if err != nil {
		return nil, fmt.Errorf("ignore patterns: %w", err)
	}

	c.detector = watcher.New(append([]watcher.Option{watcher.WithMatcher(exclude.Tracked)}, c.detectorOpts...)...)

	c.coord, err = syncer.New(syncer.Config{
		OwnerID:           cfg.OwnerID,
		DeviceID:          cfg.DeviceID,
		WatchRoots:        cfg.WatchPaths,
		HeartbeatInterval: cfg.HeartbeatInterval,
		PullInterval:      cfg.PullInterval,
	}, c.store, synclog.Multi{c.journal, c.api},
		syncer.WithIgnorer(c.detector),
		syncer.WithHeartbeater(c.api),
		syncer.WithExclude(exclude),
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func s3Config(s *config.S3Config) *blob.S3BlobConfig {
	if s.Endpoint != "" {
		bc := blob.WithMinioConfig(s.Endpoint, s.Bucket, s.AccessKeyID, s.SecretAccessKey)
		if s.Region != "" {
			bc.Region = s.Region
		}
		return bc
	}
	region := s.Region
	if region == "" {
		region = "us-east-1"
	}
	return blob.WithS3Config(s.Bucket, region, s.AccessKeyID, s.SecretAccessKey, false)
}

// open takes the data dir lock and opens the journal.
func (c *Client) open() error {
	if err := utils.EnsureDir(c.cfg.DataDir); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	locked, err := c.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", c.cfg.LockPath(), err)
	}
	if !locked {
		return ErrAlreadyRunning
	}

	if err := c.journal.Open(); err != nil {
		_ = c.lock.Unlock()
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}

func (c *Client) close() {
	if err := c.journal.Close(); err != nil {
		slog.Warn("journal close", "error", err)
	}
	if err := c.lock.Unlock(); err != nil {
		slog.Warn("unlock data dir", "error", err)
	}
}

// SyncOnce runs an initial sync followed by one pull, then returns.
func (c *Client) SyncOnce(ctx context.Context) (syncer.BatchReport, syncer.PullReport, error) {
	if err := c.open(); err != nil {
		return syncer.BatchReport{}, syncer.PullReport{}, err
	}
	defer c.close()

	batch := c.initialSync(ctx)
	pull := c.pull(ctx)
	return batch, pull, nil
}

// Resolve settles a divergence for one local save by last-write-wins.
func (c *Client) Resolve(ctx context.Context, path, remoteKey string) (syncer.Result, error) {
	if err := c.open(); err != nil {
		return syncer.Result{}, err
	}
	defer c.close()

	return c.coord.ResolveConflict(ctx, path, remoteKey), nil
}

func (c *Client) initialSync(ctx context.Context) syncer.BatchReport {
	slog.Info("initial sync", "roots", c.coord.Roots())
	report := c.coord.InitialSync(ctx)
	slog.Info("initial sync done",
		"total", report.Total,
		"uploaded", report.Uploaded,
		"uptodate", report.UpToDate,
		"failed", report.Failed,
		"scanErrors", report.ScanErrors,
	)
	return report
}

func (c *Client) pull(ctx context.Context) syncer.PullReport {
	report := c.coord.Pull(ctx)
	if report.Err != nil {
		slog.Warn("pull", "error", report.Err)
		return report
	}
	slog.Info("pull done",
		"listed", report.Listed,
		"candidates", report.Candidates,
		"downloaded", report.Downloaded,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report
}
