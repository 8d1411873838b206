package preflight

import (
	"github.com/nki-radiology/SegmentationReview/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// root is the active review directory; pass "" when no directory has
// been selected yet.
func RunAll(cfg *config.Config, root string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))

	if root != "" {
		results = append(results, CheckDirectoryAccess("Review root", root))
		if cfg.Preflight.MinFreeMiB > 0 {
			results = append(results, CheckDiskSpace(root, cfg.Preflight.MinFreeMiB))
		}
	}

	results = append(results, CheckViewerSocket(cfg.Viewer.Socket))

	return results
}
