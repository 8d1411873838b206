package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nki-radiology/SegmentationReview/internal/daemonctl"
	"github.com/nki-radiology/SegmentationReview/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			logPath := cfg.DaemonLogPath()

			if follow {
				return followLogFile(cmd.Context(), stdout, logPath, lines)
			}

			entries, err := daemonctl.NewClient(cfg).LogTail(cmd.Context(), lines)
			if err != nil {
				if !daemonUnreachable(err) {
					return err
				}
				// Daemon is down; fall back to the log file on disk.
				entries, _, err = logs.TailFile(logPath, lines)
				if err != nil {
					return err
				}
			}
			if len(entries) == 0 {
				fmt.Fprintln(stdout, "No log lines yet")
				return nil
			}
			for _, line := range entries {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of log lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new log lines")
	return cmd
}

func followLogFile(ctx context.Context, w io.Writer, path string, lines int) error {
	initial, offset, err := logs.TailFile(path, lines)
	if err != nil {
		return err
	}
	for _, line := range initial {
		fmt.Fprintln(w, line)
	}
	return logs.Follow(ctx, path, offset, 500*time.Millisecond, func(line string) {
		fmt.Fprintln(w, line)
	})
}
