package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/retrosync/retrosync/internal/client"
	"github.com/retrosync/retrosync/internal/config"
	"github.com/retrosync/retrosync/internal/utils"
	"github.com/retrosync/retrosync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:     "retrosync",
	Short:   "Sync emulator save files across your devices",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// all good now, show header
		cmd.SilenceUsage = true
		showHeader(cmd)

		c, err := newClient(cmd, cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		if err := c.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	addPersistentFlags(rootCmd.PersistentFlags())
}

func addPersistentFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", config.DefaultConfigPath, "RetroSync config file")
	flags.StringSliceP("watch", "w", nil, "Directory to watch for save files (repeatable, overrides watch_paths)")
	flags.StringP("datadir", "d", "", "Directory for the local journal and lock file")
	flags.String("api-url", "", "RetroSync API url")
	flags.String("store", storeS3, "Object store backend: s3 or memory")
}

func main() {
	// TODO rotate the log file instead of truncating it on every start
	logFile := config.DefaultLogFilePath

	if err := utils.EnsureParent(logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	logInterceptor := utils.NewLogInterceptor(file)
	defer logInterceptor.Close()

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// the interceptor stamps each line
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("load .env", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logInterceptor.Close()
		os.Exit(1)
	}
}

func showHeader(cmd *cobra.Command) {
	fmt.Fprintln(cmd.OutOrStdout(), headerStyle.Render(version.ShortWithApp()))
}

func newClient(cmd *cobra.Command, cfg *config.Config) (*client.Client, error) {
	opts, err := storeOptions(cmd)
	if err != nil {
		return nil, err
	}
	return client.New(cmd.Context(), cfg, opts...)
}
