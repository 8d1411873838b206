package testsupport

import (
	"context"
	"testing"

	"github.com/nki-radiology/SegmentationReview/internal/cases"
	"github.com/nki-radiology/SegmentationReview/internal/config"
	"github.com/nki-radiology/SegmentationReview/internal/worklist"
)

// MustOpenWorklist opens a worklist.Store for tests and registers cleanup.
func MustOpenWorklist(t testing.TB, cfg *config.Config) *worklist.Store {
	t.Helper()

	store, err := worklist.Open(cfg)
	if err != nil {
		t.Fatalf("worklist.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSession creates a session over the given cases for tests.
func NewSession(t testing.TB, store *worklist.Store, root string, discovered []cases.Case) *worklist.Session {
	t.Helper()

	session, err := store.CreateSession(context.Background(), root, discovered)
	if err != nil {
		t.Fatalf("store.CreateSession: %v", err)
	}
	return session
}
