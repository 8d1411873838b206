package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCLILogsOnline(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "logs", "-n", "100")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "segreviewd daemon started")
}

func TestCLILogsOfflineReadsFile(t *testing.T) {
	env := setupCLITestEnv(t)

	logPath := env.cfg.DaemonLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	content := "first entry\nsecond entry\nthird entry\n"
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	offline := writeOfflineConfig(t, env.cfg)
	out, _, err := runCLI(t, offline, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "second entry")
	requireContains(t, out, "third entry")
	if strings.Contains(out, "first entry") {
		t.Fatalf("expected tail to drop the oldest line, got %q", out)
	}
}
