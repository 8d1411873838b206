package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
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

type cliTestEnv struct {
	cfg        *config.Config
	fake       *viewertest.Fake
	daemon     *daemon.Daemon
	configPath string
	casesRoot  string
}

// setupCLITestEnv starts a daemon on an ephemeral port and writes a
// config file at the default location pointing at it, so commands
// resolve the running daemon the same way a user's shell would.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	cfg := testsupport.NewConfig(t, testsupport.WithReviewRoot(""))
	store := testsupport.MustOpenWorklist(t, cfg)
	fake := viewertest.New()
	session, err := review.New(cfg, store, fake, notifications.NewService(cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("review.New: %v", err)
	}
	ring := logging.NewRingHandler(128, slog.LevelDebug)
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

	configPath := filepath.Join(home, ".config", "segreview", "config.toml")
	writeTestConfig(t, configPath, cfg, d.APIAddr())

	return &cliTestEnv{
		cfg:        cfg,
		fake:       fake,
		daemon:     d,
		configPath: configPath,
		casesRoot:  filepath.Join(testsupport.BaseDir(cfg), "cases"),
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, bind string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
api_bind = %q
api_token = %q

[viewer]
socket = %q

[review]
default_directory = %q
`,
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		bind,
		cfg.Paths.APIToken,
		cfg.Viewer.Socket,
		cfg.Review.DefaultDirectory,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// writeOfflineConfig points a config file at a loopback port nothing
// listens on, for exercising daemon-down behavior.
func writeOfflineConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	bind := listener.Addr().String()
	listener.Close()

	path := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, path, cfg, bind)
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
