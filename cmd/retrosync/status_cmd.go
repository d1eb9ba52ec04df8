package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/retrosync/retrosync/internal/config"
	"github.com/retrosync/retrosync/internal/synclog"
	"github.com/retrosync/retrosync/internal/utils"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show this device's configuration and recent sync activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			validateErr := cfg.Validate()
			if cfg.DataDir == "" {
				cfg.DataDir = config.DefaultConfigDir
			}

			out := cmd.OutOrStdout()
			printConfig(out, cfg, validateErr)

			if !utils.FileExists(cfg.JournalPath()) {
				fmt.Fprintln(out, gray.Render("No sync activity recorded yet"))
				return nil
			}

			j := synclog.NewJournal(cfg.JournalPath())
			if err := j.Open(); err != nil {
				return err
			}
			defer j.Close()

			counts, err := j.Counts(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printActivity(out, counts, entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of recent events to show")
	return cmd
}

func printConfig(w io.Writer, cfg *config.Config, validateErr error) {
	state := green.Render("configured")
	if validateErr != nil {
		state = red.Render("not configured: " + validateErr.Error())
	}

	device := cfg.DeviceID
	if cfg.DeviceName != "" {
		device = fmt.Sprintf("%s (%s)", cfg.DeviceName, cfg.DeviceID)
	}

	fmt.Fprintf(w, "Status:   %s\n", state)
	fmt.Fprintf(w, "Config:   %s\n", cyan.Render(orUnset(cfg.Path)))
	fmt.Fprintf(w, "Device:   %s\n", cyan.Render(orUnset(device)))
	fmt.Fprintf(w, "Owner:    %s\n", cyan.Render(orUnset(cfg.OwnerID)))
	fmt.Fprintf(w, "API:      %s (key %s)\n", cyan.Render(orUnset(cfg.APIURL)), orUnset(utils.MaskSecret(cfg.APIKey)))
	fmt.Fprintf(w, "Bucket:   %s (access key %s)\n", cyan.Render(orUnset(bucketLabel(cfg.S3))), orUnset(utils.MaskSecret(cfg.S3.AccessKeyID)))
	fmt.Fprintf(w, "Data dir: %s\n", cyan.Render(cfg.DataDir))

	fmt.Fprintln(w, "Watching:")
	if len(cfg.WatchPaths) == 0 {
		fmt.Fprintf(w, "  %s\n", gray.Render("(none)"))
	}
	for _, p := range cfg.WatchPaths {
		mark := green.Render("ok")
		if !utils.DirExists(p) {
			mark = yellow.Render("missing")
		}
		fmt.Fprintf(w, "  %s %s\n", p, mark)
	}
	if len(cfg.IgnorePatterns) > 0 {
		fmt.Fprintf(w, "Ignoring: %s\n", gray.Render(strings.Join(cfg.IgnorePatterns, ", ")))
	}
	fmt.Fprintln(w)
}

func printActivity(w io.Writer, counts map[synclog.Action]map[synclog.Status]int, entries []synclog.JournalEntry) {
	fmt.Fprintln(w, "Totals:")
	for _, a := range []synclog.Action{synclog.ActionUpload, synclog.ActionDownload, synclog.ActionConflict} {
		ok, failed := counts[a][synclog.StatusSuccess], counts[a][synclog.StatusFailed]
		fmt.Fprintf(w, "  %-9s %d ok, %s\n", a, ok, failures(failed))
	}

	fmt.Fprintln(w, "Recent:")
	if len(entries) == 0 {
		fmt.Fprintf(w, "  %s\n", gray.Render("(none)"))
	}
	for _, e := range entries {
		line := fmt.Sprintf("  %-14s %-9s %s", humanize.Time(e.At), e.Action, e.FilePath)
		if e.Size != nil && *e.Size >= 0 {
			line += " " + gray.Render(humanize.Bytes(uint64(*e.Size)))
		}
		switch {
		case e.Status == synclog.StatusFailed:
			line += " " + red.Render("failed: "+e.Error)
		case e.Note != "":
			line += " " + gray.Render(e.Note)
		}
		fmt.Fprintln(w, line)
	}
}

func bucketLabel(s config.S3Config) string {
	if s.Bucket == "" {
		return ""
	}
	if s.Endpoint == "" {
		return s.Bucket
	}
	return strings.TrimRight(s.Endpoint, "/") + "/" + s.Bucket
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
