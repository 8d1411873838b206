package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nki-radiology/SegmentationReview/internal/api"
	"github.com/nki-radiology/SegmentationReview/internal/cases"
	"github.com/nki-radiology/SegmentationReview/internal/logging"
	"github.com/nki-radiology/SegmentationReview/internal/testsupport"
	"github.com/nki-radiology/SegmentationReview/internal/worklist"
)

func TestCLICasesWithoutSession(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "cases")
	if err != nil {
		t.Fatalf("cases: %v", err)
	}
	requireContains(t, out, "No active review session")
}

func TestCLICasesOfflineFallback(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.SeedCaseDir(t, env.casesRoot, "P001", "image.nii.gz")
	testsupport.SeedCaseDir(t, env.casesRoot, "P002", "image.nii.gz")

	store, err := worklist.Open(env.cfg)
	if err != nil {
		t.Fatalf("worklist.Open: %v", err)
	}
	defer store.Close()
	discovered, err := cases.Discover(env.casesRoot, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("cases.Discover: %v", err)
	}
	session, err := store.CreateSession(context.Background(), env.casesRoot, discovered)
	if err != nil {
		t.Fatalf("store.CreateSession: %v", err)
	}
	if err := store.MarkCurrent(context.Background(), session.ID, 0); err != nil {
		t.Fatalf("store.MarkCurrent: %v", err)
	}

	offline := writeOfflineConfig(t, env.cfg)
	out, _, err := runCLI(t, offline, "cases")
	if err != nil {
		t.Fatalf("cases: %v", err)
	}
	requireContains(t, out, "P001")
	requireContains(t, out, "P002")
	requireContains(t, out, "current")

	out, _, err = runCLI(t, offline, "cases", "--json")
	if err != nil {
		t.Fatalf("cases --json: %v", err)
	}
	var resp api.CaseListResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(resp.Cases) != 2 {
		t.Fatalf("got %d cases, want 2", len(resp.Cases))
	}
	if resp.Cases[0].PatientID != "P001" {
		t.Fatalf("first patient = %q, want P001", resp.Cases[0].PatientID)
	}
}
