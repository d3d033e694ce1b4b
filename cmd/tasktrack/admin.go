package main

import (
	"time"

	"github.com/spf13/cobra"

	"tasktrack/internal/api"
	"tasktrack/internal/config"
)

func newAdminCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}

	cmd.AddCommand(newAdminTempSweepCmd(cfg, jsonOutput))
	return cmd
}

func newAdminTempSweepCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		olderThan time.Duration
		dryRun    bool
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "temp-sweep",
		Short: "Remove staged attachment files left behind by interrupted replacements",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				dryRun = true
			}

			req := api.TempSweepRequest{DryRun: dryRun}
			if cmd.Flags().Changed("older-than") {
				req.OlderThan = olderThan.String()
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.TempSweep(cmd.Context(), req, yes)
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(resp)
				}
				if resp.DryRun {
					return writePlain("dry run: %d staged files (%d bytes) would be removed\n", resp.CandidateCount, resp.ReclaimedBytes)
				}
				return writePlain("removed %d of %d staged files (%d bytes, %d failed)\n", resp.DeletedCount, resp.CandidateCount, resp.ReclaimedBytes, resp.FailedCount)
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only sweep staged files older than this (server default when unset)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be removed without deleting")
	cmd.Flags().BoolVar(&yes, "yes", false, "actually delete files (dry run otherwise)")
	return cmd
}
