package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/retrosync/retrosync/internal/blob"
	"github.com/retrosync/retrosync/internal/client"
	"github.com/retrosync/retrosync/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "RETROSYNC"
	configFileName = "config"

	storeS3     = "s3"
	storeMemory = "memory"

	deviceIDLength = 16
)

var home, _ = os.UserHomeDir()

// loadConfig reads the config file, then lets RETROSYNC_* env vars and flags override it.
// The returned config is not validated.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	if f := cmd.Flag("config"); f != nil && f.Changed {
		v.SetConfigFile(f.Value.String())
	} else if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		v.AddConfigPath(config.DefaultConfigDir)
		v.AddConfigPath(filepath.Join(home, ".config", "retrosync"))
		v.SetConfigName(configFileName)
		v.SetConfigType("json")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetDefault("api_url", config.DefaultAPIURL)
	v.SetDefault("data_dir", config.DefaultConfigDir)

	bind := map[string]string{
		"watch_paths": "watch",
		"data_dir":    "datadir",
		"api_url":     "api-url",
	}
	for key, flag := range bind {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	cfg := &config.Config{
		Path:              v.ConfigFileUsed(),
		OwnerID:           v.GetString("user_id"),
		DeviceID:          v.GetString("device_id"),
		DeviceName:        v.GetString("device_name"),
		APIURL:            v.GetString("api_url"),
		APIKey:            v.GetString("api_key"),
		WatchPaths:        v.GetStringSlice("watch_paths"),
		IgnorePatterns:    v.GetStringSlice("ignore_patterns"),
		DataDir:           v.GetString("data_dir"),
		HeartbeatInterval: secondsOrDuration(v, "heartbeat_interval"),
		PullInterval:      secondsOrDuration(v, "pull_interval"),
	}
	if err := v.UnmarshalKey("s3_config", &cfg.S3); err != nil {
		return nil, fmt.Errorf("config s3_config: %w", err)
	}

	if cfg.DeviceID == "" {
		cfg.DeviceID = defaultDeviceID()
	}

	return cfg, nil
}

// secondsOrDuration accepts a bare number of seconds or a duration string like "5m". Environment
// values and quoted JSON numbers arrive as strings, so the number check runs on the string form.
func secondsOrDuration(v *viper.Viper, key string) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return v.GetDuration(key)
}

// defaultDeviceID derives a stable id from the machine id, hashed with the app name so the raw
// machine id never leaves the device.
func defaultDeviceID() string {
	id, err := machineid.ProtectedID("retrosync")
	if err != nil {
		slog.Warn("machine id unavailable", "error", err)
		return ""
	}
	if len(id) > deviceIDLength {
		id = id[:deviceIDLength]
	}
	return "dev_" + id
}

func storeOptions(cmd *cobra.Command) ([]client.Option, error) {
	store, _ := cmd.Flags().GetString("store")
	switch store {
	case "", storeS3:
		return nil, nil
	case storeMemory:
		slog.Warn("using in-memory object store, nothing leaves this process")
		return []client.Option{client.WithStore(blob.NewMemStore())}, nil
	default:
		return nil, fmt.Errorf("unknown store %q, want %s or %s", store, storeS3, storeMemory)
	}
}
