package daemonctl_test

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nki-radiology/SegmentationReview/internal/cases"
	"github.com/nki-radiology/SegmentationReview/internal/config"
	"github.com/nki-radiology/SegmentationReview/internal/daemon"
	"github.com/nki-radiology/SegmentationReview/internal/daemonctl"
	"github.com/nki-radiology/SegmentationReview/internal/logging"
	"github.com/nki-radiology/SegmentationReview/internal/notifications"
	"github.com/nki-radiology/SegmentationReview/internal/review"
	"github.com/nki-radiology/SegmentationReview/internal/testsupport"
	"github.com/nki-radiology/SegmentationReview/internal/viewer/viewertest"
)

// closedPortBind reserves a loopback port and releases it so dialing the
// address reliably gets connection refused.
func closedPortBind(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()
	return addr
}

func startDaemonForControl(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()

	store := testsupport.MustOpenWorklist(t, cfg)
	session, err := review.New(cfg, store, viewertest.New(), notifications.NewService(cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("review.New: %v", err)
	}
	ring := logging.NewRingHandler(64, slog.LevelDebug)
	d, err := daemon.New(cfg, store, session, ring, logging.TeeLogger(logging.NewNop(), ring))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("daemon start blocked in this environment: %v", err)
		}
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

// clientConfig clones cfg pointed at the daemon's actual listen address,
// since tests bind an ephemeral port.
func clientConfig(cfg *config.Config, d *daemon.Daemon) *config.Config {
	clone := *cfg
	clone.Paths.APIBind = d.APIAddr()
	return &clone
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = closedPortBind(t)
	root := filepath.Join(testsupport.BaseDir(cfg), "cases")
	testsupport.SeedCaseDir(t, root, "P001", "image.nii.gz")
	testsupport.SeedCaseDir(t, root, "P002", "image.nii.gz")

	store := testsupport.MustOpenWorklist(t, cfg)
	discovered, err := cases.Discover(root, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("cases.Discover: %v", err)
	}
	session := testsupport.NewSession(t, store, root, discovered)
	ctx := context.Background()
	if err := store.MarkCurrent(ctx, session.ID, 0); err != nil {
		t.Fatalf("store.MarkCurrent: %v", err)
	}

	snapshot, err := daemonctl.BuildStatusSnapshot(ctx, cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.Running {
		t.Fatal("expected snapshot to report the daemon as stopped")
	}
	if snapshot.WorklistDBPath != cfg.WorklistDatabasePath() {
		t.Fatalf("worklist path = %q, want %q", snapshot.WorklistDBPath, cfg.WorklistDatabasePath())
	}
	if len(snapshot.Preflight) == 0 {
		t.Fatal("expected preflight results in offline snapshot")
	}
	if snapshot.Review.Active {
		t.Fatal("offline snapshot must not claim an active session")
	}
	if snapshot.Review.Total != 2 {
		t.Fatalf("total = %d, want 2", snapshot.Review.Total)
	}
	if snapshot.Review.StatusLine != "0 / 2" {
		t.Fatalf("status line = %q, want 0 / 2", snapshot.Review.StatusLine)
	}
	if snapshot.Review.PatientID != "P001" {
		t.Fatalf("patient = %q, want P001", snapshot.Review.PatientID)
	}
}

func TestBuildStatusSnapshotOfflineWithoutSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = closedPortBind(t)
	testsupport.MustOpenWorklist(t, cfg)

	snapshot, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.Running || snapshot.Review.Active || snapshot.Review.Total != 0 {
		t.Fatalf("expected empty offline snapshot, got %+v", snapshot)
	}
}

func TestBuildStatusSnapshotOnline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithReviewRoot(""))
	d := startDaemonForControl(t, cfg)

	snapshot, err := daemonctl.BuildStatusSnapshot(context.Background(), clientConfig(cfg, d))
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if !snapshot.Running {
		t.Fatal("expected snapshot to report a running daemon")
	}
	if snapshot.PID != os.Getpid() {
		t.Fatalf("pid = %d, want %d", snapshot.PID, os.Getpid())
	}
}

func TestProcessInfoWhenDown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = closedPortBind(t)

	running, pid, err := daemonctl.ProcessInfo(cfg)
	if err != nil {
		t.Fatalf("ProcessInfo: %v", err)
	}
	if running || pid != 0 {
		t.Fatalf("running = %v pid = %d, want stopped", running, pid)
	}
}

func TestEnsureStartedAlreadyRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithReviewRoot(""))
	d := startDaemonForControl(t, cfg)

	result, err := daemonctl.EnsureStarted(clientConfig(cfg, d), "/nonexistent/segreview", daemonctl.LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if result.State != daemonctl.StartStateAlreadyRunning {
		t.Fatalf("state = %q, want %q", result.State, daemonctl.StartStateAlreadyRunning)
	}
	if result.Launched {
		t.Fatal("must not launch a second daemon")
	}
	if result.PID != os.Getpid() {
		t.Fatalf("pid = %d, want %d", result.PID, os.Getpid())
	}
}

func TestStopAndTerminateRefusesOwnProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithReviewRoot(""))
	d := startDaemonForControl(t, cfg)

	_, err := daemonctl.StopAndTerminate(clientConfig(cfg, d), time.Second)
	if err == nil || !strings.Contains(err.Error(), "unable to signal daemon process") {
		t.Fatalf("expected refusal to signal own process, got %v", err)
	}
}

func TestStopAndTerminateWhenDown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = closedPortBind(t)

	_, err := daemonctl.StopAndTerminate(cfg, time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("err = %v, want ErrDaemonNotRunning", err)
	}
}

func TestForceKillProcessRefusesOwnPID(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "segreviewd.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	err := daemonctl.ForceKillProcess(pidPath, filepath.Join(dir, "segreviewd.lock"), 0)
	if err == nil || !strings.Contains(err.Error(), "refusing to kill current process") {
		t.Fatalf("expected refusal, got %v", err)
	}
}

func TestForceKillProcessWithoutPID(t *testing.T) {
	dir := t.TempDir()

	err := daemonctl.ForceKillProcess(filepath.Join(dir, "segreviewd.pid"), filepath.Join(dir, "segreviewd.lock"), 0)
	if err == nil || !strings.Contains(err.Error(), "no pid recorded") {
		t.Fatalf("expected missing pid error, got %v", err)
	}
}
