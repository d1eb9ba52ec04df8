package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload every local save, pull saves from other devices, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			c, err := newClient(cmd, cfg)
			if err != nil {
				return err
			}

			batch, pull, err := c.SyncOnce(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Local:  %d scanned, %s uploaded, %d up to date, %s\n",
				batch.Total,
				green.Render(fmt.Sprint(batch.Uploaded)),
				batch.UpToDate,
				failures(batch.Failed+batch.ScanErrors),
			)
			if pull.Err != nil {
				fmt.Fprintf(out, "Remote: %s %v\n", red.Render("listing failed:"), pull.Err)
			} else {
				fmt.Fprintf(out, "Remote: %d listed, %s downloaded, %d skipped, %s\n",
					pull.Listed,
					green.Render(fmt.Sprint(pull.Downloaded)),
					pull.Skipped,
					failures(pull.Failed),
				)
			}

			if batch.Failed+batch.ScanErrors+pull.Failed > 0 || pull.Err != nil {
				return fmt.Errorf("sync finished with failures")
			}
			return nil
		},
	}
}

func failures(n int) string {
	s := fmt.Sprintf("%d failed", n)
	if n > 0 {
		return red.Render(s)
	}
	return s
}
