package main

import (
	"github.com/spf13/cobra"

	"github.com/nki-radiology/SegmentationReview/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:         "daemon",
		Short:       "Daemon process controls (internal)",
		Hidden:      true,
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	var logLevel string
	var development bool
	runCmd := &cobra.Command{
		Use:          "run",
		Short:        "Run the segreviewd daemon in the foreground",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&development, "development", false, "Use the human-readable console log format")

	daemonCmd.AddCommand(runCmd)
	return daemonCmd
}
