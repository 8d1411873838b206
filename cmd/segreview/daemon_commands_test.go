package main

import (
	"os"
	"strconv"
	"testing"
)

func TestCLIStatusOnline(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running (pid "+strconv.Itoa(os.Getpid())+")")
	requireContains(t, out, "Startup Checks")
	requireContains(t, out, "Review Session")
	requireContains(t, out, "Active:")
}

func TestCLIStatusOffline(t *testing.T) {
	env := setupCLITestEnv(t)
	offline := writeOfflineConfig(t, env.cfg)

	out, _, err := runCLI(t, offline, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "Worklist DB:")
}

func TestCLIStatusJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	requireContains(t, out, `"running": true`)
	requireContains(t, out, `"worklistDbPath"`)
}

func TestCLIStopWhenNotRunning(t *testing.T) {
	env := setupCLITestEnv(t)
	offline := writeOfflineConfig(t, env.cfg)

	out, _, err := runCLI(t, offline, "stop")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}
