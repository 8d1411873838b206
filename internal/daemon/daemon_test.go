package daemon_test

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/nki-radiology/SegmentationReview/internal/config"
	"github.com/nki-radiology/SegmentationReview/internal/daemon"
	"github.com/nki-radiology/SegmentationReview/internal/logging"
	"github.com/nki-radiology/SegmentationReview/internal/notifications"
	"github.com/nki-radiology/SegmentationReview/internal/review"
	"github.com/nki-radiology/SegmentationReview/internal/testsupport"
	"github.com/nki-radiology/SegmentationReview/internal/viewer/viewertest"
)

func newTestDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *viewertest.Fake) {
	t.Helper()
	store := testsupport.MustOpenWorklist(t, cfg)
	fake := viewertest.New()
	session, err := review.New(cfg, store, fake, notifications.NewService(cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("review.New: %v", err)
	}
	ring := logging.NewRingHandler(128, slog.LevelDebug)
	logger := logging.TeeLogger(logging.NewNop(), ring)
	d, err := daemon.New(cfg, store, session, ring, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d, fake
}

func startTestDaemon(t *testing.T, d *daemon.Daemon) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping daemon test: %v", err)
		}
		t.Fatalf("Start: %v", err)
	}
	return ctx
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithReviewRoot(""))
	d, _ := newTestDaemon(t, cfg)
	ctx := startTestDaemon(t, d)

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("status PID = %d, want %d", status.PID, os.Getpid())
	}
	if status.WorklistDBPath != cfg.WorklistDatabasePath() {
		t.Fatalf("worklist path = %q, want %q", status.WorklistDBPath, cfg.WorklistDatabasePath())
	}
	if status.LockFilePath != cfg.LockFilePath() {
		t.Fatalf("lock path = %q, want %q", status.LockFilePath, cfg.LockFilePath())
	}
	if len(status.Preflight) == 0 {
		t.Fatal("expected preflight results in status")
	}
	if status.Review.Active {
		t.Fatal("expected no review session without a default directory")
	}
	if d.APIAddr() == "" {
		t.Fatal("expected api server to bind")
	}

	started := false
	for _, line := range d.LogTail(50) {
		if strings.Contains(line, "segreviewd daemon started") {
			started = true
		}
	}
	if !started {
		t.Fatal("expected startup line in log tail")
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithReviewRoot(""))
	first, _ := newTestDaemon(t, cfg)
	startTestDaemon(t, first)

	second, _ := newTestDaemon(t, cfg)
	err := second.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("second instance start = %v, want lock conflict", err)
	}
}

func TestDaemonAutoSelectsDefaultDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SeedCaseDir(t, cfg.Review.DefaultDirectory, "P001", "image.nii.gz")
	d, fake := newTestDaemon(t, cfg)
	ctx := startTestDaemon(t, d)

	status, err := d.ReviewStatus(ctx)
	if err != nil {
		t.Fatalf("ReviewStatus: %v", err)
	}
	if !status.Active || status.Total != 1 || status.PatientID != "P001" {
		t.Fatalf("unexpected review status after start: %+v", status)
	}
	if len(fake.Bindings()) == 0 {
		t.Fatal("expected an editor binding for the first case")
	}
}

func TestDaemonRunsWhenDefaultDirectoryMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)
	ctx := startTestDaemon(t, d)

	status, err := d.ReviewStatus(ctx)
	if err != nil {
		t.Fatalf("ReviewStatus: %v", err)
	}
	if status.Active {
		t.Fatal("expected no session when the default directory does not exist")
	}
	if !d.Status(ctx).Running {
		t.Fatal("daemon should keep running after a failed initial selection")
	}
}
