package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// SeedCaseDir creates a patient folder under root containing the named
// files, each holding a tiny placeholder payload. It returns the folder
// path.
func SeedCaseDir(t testing.TB, root, patientID string, files ...string) string {
	t.Helper()

	dir := filepath.Join(root, patientID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir case dir %s: %v", dir, err)
	}
	for _, name := range files {
		target := filepath.Join(dir, name)
		if err := os.WriteFile(target, []byte("seed\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", target, err)
		}
	}
	return dir
}
