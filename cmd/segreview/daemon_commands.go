package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nki-radiology/SegmentationReview/internal/api"
	"github.com/nki-radiology/SegmentationReview/internal/daemonctl"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the segreviewd daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(cfg, exe, daemonLaunchOptions(ctx, startLogLevel), 10*time.Second)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Log level for the launched daemon (debug, info, warn, error)")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the segreviewd daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.StopAndTerminate(cfg, 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.StopSignaled {
				fmt.Fprintln(stdout, "Stopping daemon...")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the segreviewd daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(cfg, exe, daemonLaunchOptions(ctx, restartLogLevel), 5*time.Second, 10*time.Second)
			if err != nil {
				return err
			}

			if result.Stop.ForcedKill && result.Stop.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Log level for the relaunched daemon (debug, info, warn, error)")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and review session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snapshot)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if snapshot.Running {
				fmt.Fprintln(stdout, renderStatusLine("Process", statusOK, fmt.Sprintf("running (pid %d)", snapshot.PID), colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Process", statusWarn, "not running", colorize))
			}
			fmt.Fprintln(stdout, renderStatusLine("Worklist DB", statusInfo, snapshot.WorklistDBPath, colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Startup Checks", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if len(snapshot.Preflight) == 0 {
				fmt.Fprintln(stdout, renderStatusLine("Checks", statusInfo, "no results", colorize))
			}
			for _, check := range snapshot.Preflight {
				kind := statusOK
				if !check.Passed {
					kind = statusError
				}
				fmt.Fprintln(stdout, renderStatusLine(check.Name, kind, check.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Review Session", colorize) {
				fmt.Fprintln(stdout, line)
			}
			review := snapshot.Review
			fmt.Fprintln(stdout, renderStatusLine("Active", statusInfo, yesNo(review.Active), colorize))
			if review.Root != "" {
				fmt.Fprintln(stdout, renderStatusLine("Directory", statusInfo, review.Root, colorize))
			}
			if review.StatusLine != "" {
				fmt.Fprintln(stdout, renderStatusLine("Progress", statusInfo, review.StatusLine, colorize))
			}
			if review.PatientID != "" {
				fmt.Fprintln(stdout, renderStatusLine("Patient", statusInfo, review.PatientID, colorize))
			}
			if review.Active {
				fmt.Fprintln(stdout, renderStatusLine("Viewer nodes", statusInfo, yesNo(review.NodesBound), colorize))
			}

			rows := buildCaseStatsRows(review.Stats)
			if len(rows) == 0 {
				return nil
			}
			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("Case Counts", colorize) {
				fmt.Fprintln(stdout, line)
			}
			table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
			fmt.Fprint(stdout, table)
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit status as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func buildCaseStatsRows(stats api.CaseStats) [][]string {
	if stats.Total == 0 {
		return nil
	}
	return [][]string{
		{"pending", fmt.Sprintf("%d", stats.Pending)},
		{"current", fmt.Sprintf("%d", stats.Current)},
		{"completed", fmt.Sprintf("%d", stats.Completed)},
		{"total", fmt.Sprintf("%d", stats.Total)},
	}
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{LogLevel: strings.TrimSpace(logLevel)}
	if ctx.configFlag != nil {
		if path := strings.TrimSpace(*ctx.configFlag); path != "" {
			opts.ConfigPath = path
		}
	}
	return opts
}
