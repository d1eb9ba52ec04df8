package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/retrosync/retrosync/internal/syncerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	tmp := t.TempDir()
	return &Config{
		OwnerID:    "user_123",
		DeviceID:   "dev_456",
		APIKey:     "key",
		WatchPaths: []string{filepath.Join(tmp, "saves"), ""},
		S3: S3Config{
			Endpoint:        "https://s3.example.com",
			Bucket:          "retrosync-saves",
			AccessKeyID:     "AKIA",
			SecretAccessKey: "secret",
		},
		DataDir: filepath.Join(tmp, "data"),
		Path:    filepath.Join(tmp, "config.json"),
	}
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	assert.Equal(t, DefaultPullInterval, cfg.PullInterval)
	assert.Len(t, cfg.WatchPaths, 1)
	assert.True(t, filepath.IsAbs(cfg.WatchPaths[0]))
	assert.Equal(t, filepath.Join(cfg.DataDir, "journal.db"), cfg.JournalPath())
	assert.Equal(t, filepath.Join(cfg.DataDir, "retrosync.lock"), cfg.LockPath())
}

func TestValidate_KeepsIntervals(t *testing.T) {
	cfg := validConfig(t)
	cfg.HeartbeatInterval = 5 * time.Second
	cfg.PullInterval = time.Minute
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, time.Minute, cfg.PullInterval)
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no owner", func(c *Config) { c.OwnerID = "" }},
		{"no device", func(c *Config) { c.DeviceID = "" }},
		{"slash in device", func(c *Config) { c.DeviceID = "a/b" }},
		{"no api key", func(c *Config) { c.APIKey = "" }},
		{"bad api url", func(c *Config) { c.APIURL = "ftp://example.com" }},
		{"api url without host", func(c *Config) { c.APIURL = "http://" }},
		{"no bucket", func(c *Config) { c.S3.Bucket = "" }},
		{"no secret", func(c *Config) { c.S3.SecretAccessKey = "" }},
		{"bad endpoint", func(c *Config) { c.S3.Endpoint = "s3.example.com" }},
		{"no watch paths", func(c *Config) { c.WatchPaths = nil }},
		{"bad ignore pattern", func(c *Config) { c.IgnorePatterns = []string{"[a-"} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, syncerr.ErrConfiguration)
		})
	}
}
