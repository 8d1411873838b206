// Package daemonrun assembles and runs the segreviewd process: logger,
// worklist store, viewer bridge, review session, and daemon lifecycle.
// It exists so both `segreviewd` and `segreview daemon run` share one
// startup path.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nki-radiology/SegmentationReview/internal/config"
	"github.com/nki-radiology/SegmentationReview/internal/daemon"
	"github.com/nki-radiology/SegmentationReview/internal/logging"
	"github.com/nki-radiology/SegmentationReview/internal/notifications"
	"github.com/nki-radiology/SegmentationReview/internal/review"
	"github.com/nki-radiology/SegmentationReview/internal/viewer/viewerrpc"
	"github.com/nki-radiology/SegmentationReview/internal/worklist"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the segreviewd runtime loop and blocks until the context
// is canceled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := cfg.DaemonLogPath()
	base, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	// The ring feeds `segreview logs`; it keeps debug detail even when
	// the main level is higher.
	capacity := cfg.Logging.TailCapacity
	if capacity <= 0 {
		capacity = 500
	}
	ring := logging.NewRingHandler(capacity, slog.LevelDebug)
	logger := logging.TeeLogger(base, ring)

	pidPath := cfg.PIDFilePath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := worklist.Open(cfg)
	if err != nil {
		logger.Error("open worklist store", logging.Error(err))
		return err
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	bridge := viewerrpc.NewReconnecting(cfg.Viewer.Socket, viewerrpc.Options{
		ConnectTimeout: time.Duration(cfg.Viewer.ConnectTimeout) * time.Second,
		RequestTimeout: time.Duration(cfg.Viewer.RequestTimeout) * time.Second,
	}, logger)
	defer bridge.Close()

	session, err := review.New(cfg, store, bridge, notifier, logger)
	if err != nil {
		logger.Error("assemble review session", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, store, session, ring, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return err
	}

	<-signalCtx.Done()
	logger.Info("segreviewd daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
