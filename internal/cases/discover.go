package cases

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nki-radiology/SegmentationReview/internal/logging"
)

// SegmentationFilename is the fixed name save-and-next writes into a case
// folder.
const SegmentationFilename = "segmentation.seg.nrrd"

// Case is one reviewable patient folder.
type Case struct {
	PatientID        string
	Dir              string
	ImagePath        string
	SegmentationPath string
}

// HasSegmentation reports whether discovery found an existing segmentation
// file for this case.
func (c Case) HasSegmentation() bool {
	return c.SegmentationPath != ""
}

// SavePath returns the location save-and-next writes the segmentation to,
// regardless of where an existing segmentation was loaded from.
func (c Case) SavePath() string {
	return filepath.Join(c.Dir, SegmentationFilename)
}

// Discover scans root's immediate subdirectories for reviewable cases,
// excluding patient IDs present in reviewed. Cases come back ordered by
// patient ID ascending.
func Discover(root string, reviewed map[string]struct{}, logger *slog.Logger) ([]Case, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read case root: %w", err)
	}

	var found []Case
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		patientID := entry.Name()
		if _, ok := reviewed[patientID]; ok {
			continue
		}

		dir := filepath.Join(root, patientID)
		imagePath, segmentationPath, err := scanFolder(dir)
		if err != nil {
			return nil, err
		}
		if imagePath == "" {
			logger.Warn("case folder has no image file, skipping",
				logging.String(logging.FieldPatientID, patientID),
				logging.String(logging.FieldDirectory, dir))
			continue
		}

		found = append(found, Case{
			PatientID:        patientID,
			Dir:              dir,
			ImagePath:        imagePath,
			SegmentationPath: segmentationPath,
		})
	}
	return found, nil
}

func scanFolder(dir string) (imagePath, segmentationPath string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", fmt.Errorf("read case folder: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case matchesImage(name):
			imagePath = filepath.Join(dir, name)
		case matchesSegmentation(name):
			segmentationPath = filepath.Join(dir, name)
		}
	}
	return imagePath, segmentationPath, nil
}

// matchesImage is case-sensitive; the naming convention writes "image" in
// lowercase and uppercase variants are not images.
func matchesImage(name string) bool {
	return strings.Contains(name, "image")
}

func matchesSegmentation(name string) bool {
	return strings.Contains(strings.ToLower(name), "segmentation")
}
