package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tasktrack/internal/config"
	"tasktrack/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput   bool
		outputFormat string
		logLevel     string
	)

	cmd := &cobra.Command{
		Use:           "tasktrack",
		Short:         "Tasktrack tracks tasks and their image attachments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := format.New(outputFormat)
			if err != nil {
				return err
			}
			outputFormatter = formatter
			if outputFormat != "" {
				jsonOutput = true
			}

			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&outputFormat, "output", "", "structured output format (json, yaml); implies --json")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newMigrateCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
		newSeedCmd(cfg, &jsonOutput),
		newTaskCmd(cfg, &jsonOutput),
		newAttachCmd(cfg, &jsonOutput),
		newAdminCmd(cfg, &jsonOutput),
		newInfoCmd(cfg, &jsonOutput),
	)

	return cmd
}
