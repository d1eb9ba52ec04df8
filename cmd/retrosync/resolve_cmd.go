package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newResolveCmd())
}

func newResolveCmd() *cobra.Command {
	var remoteKey string

	cmd := &cobra.Command{
		Use:   "resolve <path>",
		Short: "Settle a save that changed on two devices, newest copy wins",
		Args:  cobra.ExactArgs(1),
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

			res, err := c.Resolve(cmd.Context(), args[0], remoteKey)
			if err != nil {
				return err
			}
			if !res.OK() {
				return res.Err
			}

			action := "kept local copy"
			if res.Action != "" {
				action = string(res.Action)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s, %s)\n",
				green.Render("resolved"), res.Path, action, humanize.Bytes(uint64(max(res.Size, 0))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&remoteKey, "remote-key", "k", "", "Object key of the competing copy (default: this device's key)")
	return cmd
}
