package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/retrosync/retrosync/internal/savefile"
	"github.com/retrosync/retrosync/internal/syncerr"
	"github.com/retrosync/retrosync/internal/utils"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigDir   = filepath.Join(home, ".retrosync")
	DefaultConfigPath  = filepath.Join(DefaultConfigDir, "config.json")
	DefaultLogFilePath = filepath.Join(DefaultConfigDir, "logs", "retrosync.log")
	DefaultAPIURL      = "http://localhost:3000"
)

const (
	DefaultHeartbeatInterval = 60 * time.Second
	DefaultPullInterval      = 300 * time.Second

	journalFileName = "journal.db"
	lockFileName    = "retrosync.lock"
)

// S3Config uses the key names the pairing endpoint hands out.
type S3Config struct {
	Endpoint        string `json:"endpoint" mapstructure:"endpoint"`
	Bucket          string `json:"bucket" mapstructure:"bucket"`
	Region          string `json:"region,omitempty" mapstructure:"region"`
	AccessKeyID     string `json:"accessKeyId" mapstructure:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey" mapstructure:"secretAccessKey"`
}

type Config struct {
	OwnerID           string        `json:"user_id"`
	DeviceID          string        `json:"device_id"`
	DeviceName        string        `json:"device_name,omitempty"`
	APIURL            string        `json:"api_url"`
	APIKey            string        `json:"api_key"`
	WatchPaths        []string      `json:"watch_paths"`
	IgnorePatterns    []string      `json:"ignore_patterns,omitempty"`
	S3                S3Config      `json:"s3_config"`
	DataDir           string        `json:"data_dir,omitempty"`
	HeartbeatInterval time.Duration `json:"-"`
	PullInterval      time.Duration `json:"-"`
	Path              string        `json:"-"`
}

// Validate normalises paths, fills defaults and rejects a config the daemon cannot start with.
// Every rejection matches syncerr.ErrConfiguration.
func (c *Config) Validate() error {
	if c.OwnerID == "" {
		return syncerr.Configuration("user id missing, pair this device first")
	}
	if c.DeviceID == "" {
		return syncerr.Configuration("device id missing")
	}
	if strings.Contains(c.OwnerID, "/") || strings.Contains(c.DeviceID, "/") {
		return syncerr.Configuration("user id and device id must not contain '/'")
	}

	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if err := validateURL(c.APIURL); err != nil {
		return syncerr.Configuration("api url: %v", err)
	}
	if c.APIKey == "" {
		return syncerr.Configuration("api key missing, pair this device first")
	}

	if c.S3.Bucket == "" {
		return syncerr.Configuration("s3 bucket missing")
	}
	if c.S3.AccessKeyID == "" || c.S3.SecretAccessKey == "" {
		return syncerr.Configuration("s3 credentials missing")
	}
	if c.S3.Endpoint != "" {
		if err := validateURL(c.S3.Endpoint); err != nil {
			return syncerr.Configuration("s3 endpoint: %v", err)
		}
	}

	paths, err := utils.ResolvePaths(c.WatchPaths)
	if err != nil {
		return syncerr.Configuration("watch paths: %v", err)
	}
	if len(paths) == 0 {
		return syncerr.Configuration("no watch paths configured")
	}
	c.WatchPaths = paths

	if _, err := savefile.NewIgnore(c.IgnorePatterns); err != nil {
		return syncerr.Configuration("ignore patterns: %v", err)
	}

	if c.DataDir == "" {
		c.DataDir = DefaultConfigDir
	}
	if c.DataDir, err = utils.ResolvePath(c.DataDir); err != nil {
		return syncerr.Configuration("data dir: %v", err)
	}
	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return syncerr.Configuration("config path: %v", err)
		}
	}

	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.PullInterval <= 0 {
		c.PullInterval = DefaultPullInterval
	}
	return nil
}

func (c *Config) JournalPath() string {
	return filepath.Join(c.DataDir, journalFileName)
}

func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, lockFileName)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
