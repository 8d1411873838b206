// Package daemonctl drives a running (or to-be-started) segreviewd
// process from the CLI: launching, health polling, graceful stop with a
// forced fallback, and status snapshots that degrade to reading the
// worklist database directly when the daemon is down.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nki-radiology/SegmentationReview/internal/api"
	"github.com/nki-radiology/SegmentationReview/internal/config"
	"github.com/nki-radiology/SegmentationReview/internal/preflight"
	"github.com/nki-radiology/SegmentationReview/internal/review"
	"github.com/nki-radiology/SegmentationReview/internal/worklist"
)

// ErrDaemonNotRunning reports that no daemon answered on the control API.
var ErrDaemonNotRunning = errors.New("daemon not running")

const probeTimeout = 2 * time.Second

// LaunchOptions carries the flags forwarded to the spawned daemon.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// StartState describes what EnsureStarted found.
type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult reports how EnsureStarted resolved.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// Launch spawns a detached daemon process running `daemon run`.
func Launch(executablePath string, opts LaunchOptions) (int, error) {
	args := []string{"daemon", "run"}
	if strings.TrimSpace(opts.ConfigPath) != "" {
		args = append(args, "--config", opts.ConfigPath)
	}
	if strings.TrimSpace(opts.LogLevel) != "" {
		args = append(args, "--log-level", opts.LogLevel)
	}
	proc := exec.Command(executablePath, args...)
	proc.Stdout = nil
	proc.Stderr = nil
	proc.Stdin = nil
	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("start daemon process: %w", err)
	}
	pid := proc.Process.Pid
	if err := proc.Process.Release(); err != nil {
		return pid, fmt.Errorf("detach daemon process: %w", err)
	}
	return pid, nil
}

// WaitForDaemon polls the control API until it answers or the timeout
// lapses.
func WaitForDaemon(cfg *config.Config, timeout time.Duration) error {
	client := NewClient(cfg)
	deadline := time.Now().Add(timeout)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		err := client.Healthz(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("daemon did not become ready within %s", timeout)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// EnsureStarted makes sure a daemon is serving the control API,
// launching one when nothing answers.
func EnsureStarted(cfg *config.Config, executablePath string, opts LaunchOptions, startWait time.Duration) (StartResult, error) {
	client := NewClient(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	err := client.Healthz(ctx)
	cancel()
	if err == nil {
		running, pid, infoErr := ProcessInfo(cfg)
		if infoErr == nil && running {
			return StartResult{State: StartStateAlreadyRunning, PID: pid}, nil
		}
		return StartResult{State: StartStateAlreadyRunning}, nil
	}
	if !isDaemonUnavailable(err) {
		return StartResult{}, fmt.Errorf("probe daemon: %w", err)
	}

	pid, err := Launch(executablePath, opts)
	if err != nil {
		return StartResult{}, err
	}
	if err := WaitForDaemon(cfg, startWait); err != nil {
		return StartResult{Launched: true, PID: pid}, err
	}
	return StartResult{State: StartStateStarted, Launched: true, PID: pid}, nil
}

// ProcessInfo reports whether a daemon answers on the control API and
// the pid it claims. A silent daemon is not an error.
func ProcessInfo(cfg *config.Config) (bool, int, error) {
	client := NewClient(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	status, err := client.Status(ctx)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return status.Running, status.PID, nil
}

// WaitForShutdown polls until the control API stops answering.
func WaitForShutdown(cfg *config.Config, timeout time.Duration) error {
	client := NewClient(cfg)
	deadline := time.Now().Add(timeout)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		err := client.Healthz(ctx)
		cancel()
		if err != nil && isDaemonUnavailable(err) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("daemon still running after %s", timeout)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// StopResult reports how StopAndTerminate resolved.
type StopResult struct {
	StopSignaled bool
	ForcedKill   bool
	PID          int
}

// StopAndTerminate signals the daemon to exit and escalates to SIGKILL
// when it ignores the grace period.
func StopAndTerminate(cfg *config.Config, grace time.Duration) (StopResult, error) {
	result := StopResult{}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	status, err := NewClient(cfg).Status(ctx)
	cancel()
	if err != nil {
		if isDaemonUnavailable(err) {
			return result, ErrDaemonNotRunning
		}
		return result, fmt.Errorf("query daemon status: %w", err)
	}
	result.PID = status.PID

	if status.PID > 0 && status.PID != os.Getpid() {
		proc, findErr := os.FindProcess(status.PID)
		if findErr == nil {
			if sigErr := proc.Signal(syscall.SIGTERM); sigErr == nil {
				result.StopSignaled = true
			}
		}
	}
	if !result.StopSignaled {
		return result, fmt.Errorf("unable to signal daemon process (pid %d)", status.PID)
	}

	if err := WaitForShutdown(cfg, grace); err == nil {
		return result, nil
	}

	running, pid, infoErr := ProcessInfo(cfg)
	if infoErr != nil {
		return result, fmt.Errorf("confirm daemon state: %w", infoErr)
	}
	if !running {
		return result, nil
	}
	if pid == 0 {
		pid = status.PID
	}
	if err := ForceKillProcess(cfg.PIDFilePath(), cfg.LockFilePath(), pid); err != nil {
		return result, err
	}
	result.ForcedKill = true
	return result, nil
}

// ForceKillProcess kills the daemon recorded in pidFilePath (or
// fallbackPID when the file is missing) and removes its runtime files.
func ForceKillProcess(pidFilePath, lockFilePath string, fallbackPID int) error {
	pid := fallbackPID
	raw, err := os.ReadFile(pidFilePath)
	if err == nil {
		parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(raw)))
		if parseErr == nil && parsed > 0 {
			pid = parsed
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read pid file: %w", err)
	}
	if pid <= 0 {
		return errors.New("no pid recorded for daemon")
	}
	if pid == os.Getpid() {
		return fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill daemon process (pid %d): %w", pid, err)
	}

	if err := os.Remove(pidFilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	if err := os.Remove(lockFilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// RestartResult reports both halves of a restart.
type RestartResult struct {
	Stop  StopResult
	Start StartResult
}

// Restart stops any running daemon and starts a fresh one. A daemon
// that was not running is not an error.
func Restart(cfg *config.Config, executablePath string, opts LaunchOptions, stopGrace, startWait time.Duration) (RestartResult, error) {
	result := RestartResult{}

	stop, err := StopAndTerminate(cfg, stopGrace)
	if err != nil && !errors.Is(err, ErrDaemonNotRunning) {
		return result, err
	}
	result.Stop = stop

	start, err := EnsureStarted(cfg, executablePath, opts, startWait)
	if err != nil {
		return result, err
	}
	result.Start = start
	return result, nil
}

// BuildStatusSnapshot returns the daemon's status, falling back to the
// worklist database when nothing answers on the control API.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (api.DaemonStatus, error) {
	client := NewClient(cfg)
	status, err := client.Status(ctx)
	if err == nil {
		return status, nil
	}
	if !isDaemonUnavailable(err) {
		return api.DaemonStatus{}, err
	}
	return offlineStatusSnapshot(cfg)
}

// offlineStatusSnapshot reads session state straight from the worklist
// database so `segreview status` still answers when the daemon is down.
func offlineStatusSnapshot(cfg *config.Config) (api.DaemonStatus, error) {
	snapshot := api.DaemonStatus{
		Running:        false,
		WorklistDBPath: cfg.WorklistDatabasePath(),
		LockFilePath:   cfg.LockFilePath(),
		Preflight:      api.FromPreflight(preflight.RunAll(cfg, "")),
	}

	store, err := worklist.Open(cfg)
	if err != nil {
		return snapshot, fmt.Errorf("open worklist database: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	session, err := store.ActiveSession(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("load active session: %w", err)
	}
	if session == nil {
		return snapshot, nil
	}

	offline := review.Status{
		SessionID:  session.ID,
		Root:       session.Root,
		Total:      session.CaseCount,
		AllChecked: session.AllChecked,
	}
	if stats, err := store.Stats(ctx, session.ID); err == nil {
		offline.Stats = stats
	}
	if current, err := store.CurrentCase(ctx, session.ID); err == nil && current != nil {
		offline.Position = current.Position
		offline.PatientID = current.PatientID
		offline.StatusLine = fmt.Sprintf("%d / %d", current.Position, session.CaseCount)
	}
	if session.AllChecked {
		offline.StatusLine = review.AllCheckedText
		offline.PatientID = ""
	}
	snapshot.Review = api.FromReviewStatus(offline)
	return snapshot, nil
}

// isDaemonUnavailable spots connection-level failures that mean no
// daemon is listening, as opposed to a daemon answering with an error.
func isDaemonUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrNotExist) || os.IsNotExist(err) {
		return true
	}
	if errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}
