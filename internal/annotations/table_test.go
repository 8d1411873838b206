package annotations_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nki-radiology/SegmentationReview/internal/annotations"
)

func TestAppendWritesHeaderOnlyOnCreate(t *testing.T) {
	root := t.TempDir()
	table := annotations.NewTable(root)

	if err := table.Append(annotations.Row{PatientID: "P-001", Comment: "clean margins"}); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := table.Append(annotations.Row{PatientID: "P-002"}); err != nil {
		t.Fatalf("second append: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(root, "ProstaSeg_annotations.csv"))
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus two rows, got %d lines: %q", len(lines), content)
	}
	if lines[0] != "patientID,comment" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[1] != "P-001,clean margins" {
		t.Fatalf("unexpected first row: %q", lines[1])
	}
	if lines[2] != "P-002," {
		t.Fatalf("unexpected second row: %q", lines[2])
	}
	if strings.Count(string(content), "patientID") != 1 {
		t.Fatalf("header repeated: %q", content)
	}
}

func TestReviewedMissingTableIsEmpty(t *testing.T) {
	table := annotations.NewTable(t.TempDir())
	reviewed, err := table.Reviewed()
	if err != nil {
		t.Fatalf("Reviewed returned error: %v", err)
	}
	if len(reviewed) != 0 {
		t.Fatalf("expected empty set, got %v", reviewed)
	}
}

func TestReviewedLocatesColumnsByName(t *testing.T) {
	root := t.TempDir()
	body := "comment,patientID\nneeds follow-up,P-010\n,P-011\n"
	if err := os.WriteFile(filepath.Join(root, "ProstaSeg_annotations.csv"), []byte(body), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}

	table := annotations.NewTable(root)
	reviewed, err := table.Reviewed()
	if err != nil {
		t.Fatalf("Reviewed returned error: %v", err)
	}
	for _, id := range []string{"P-010", "P-011"} {
		if _, ok := reviewed[id]; !ok {
			t.Fatalf("expected %s in reviewed set, got %v", id, reviewed)
		}
	}

	rows, err := table.Rows()
	if err != nil {
		t.Fatalf("Rows returned error: %v", err)
	}
	if len(rows) != 2 || rows[0].Comment != "needs follow-up" || rows[0].PatientID != "P-010" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestMalformedTableMissingPatientColumn(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "ProstaSeg_annotations.csv"), []byte("id,comment\nP-001,x\n"), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}

	_, err := annotations.NewTable(root).Reviewed()
	if !errors.Is(err, annotations.ErrMalformedTable) {
		t.Fatalf("expected ErrMalformedTable, got %v", err)
	}
}

func TestMalformedTableRaggedRow(t *testing.T) {
	root := t.TempDir()
	body := "patientID,comment\nP-001,x\nP-002,x,extra\n"
	if err := os.WriteFile(filepath.Join(root, "ProstaSeg_annotations.csv"), []byte(body), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}

	_, err := annotations.NewTable(root).Rows()
	if !errors.Is(err, annotations.ErrMalformedTable) {
		t.Fatalf("expected ErrMalformedTable, got %v", err)
	}
}

func TestEmptyTableTreatedAsNoAnnotations(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "ProstaSeg_annotations.csv"), nil, 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}

	table := annotations.NewTable(root)
	reviewed, err := table.Reviewed()
	if err != nil {
		t.Fatalf("Reviewed returned error: %v", err)
	}
	if len(reviewed) != 0 {
		t.Fatalf("expected empty set, got %v", reviewed)
	}

	// First append after the empty file still writes the header.
	if err := table.Append(annotations.Row{PatientID: "P-001"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	rows, err := table.Rows()
	if err != nil {
		t.Fatalf("Rows returned error: %v", err)
	}
	if len(rows) != 1 || rows[0].PatientID != "P-001" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestAppendNormalizesCommentToNFC(t *testing.T) {
	root := t.TempDir()
	table := annotations.NewTable(root)

	// "é" as 'e' + combining acute accent; NFC folds it to a single rune.
	decomposed := "café"
	if err := table.Append(annotations.Row{PatientID: "P-001", Comment: decomposed}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := table.Rows()
	if err != nil {
		t.Fatalf("Rows returned error: %v", err)
	}
	if rows[0].Comment != "café" {
		t.Fatalf("expected NFC comment, got %q", rows[0].Comment)
	}
}

func TestAppendQuotesSpecialCharacters(t *testing.T) {
	root := t.TempDir()
	table := annotations.NewTable(root)

	comment := "margins unclear, re-check\nslice 14 \"dubious\""
	if err := table.Append(annotations.Row{PatientID: "P-001", Comment: comment}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := table.Rows()
	if err != nil {
		t.Fatalf("Rows returned error: %v", err)
	}
	if rows[0].Comment != comment {
		t.Fatalf("comment did not round-trip: got %q want %q", rows[0].Comment, comment)
	}
}
