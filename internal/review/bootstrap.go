package review

import (
	"context"
	"fmt"

	"github.com/nki-radiology/SegmentationReview/internal/logging"
	"github.com/nki-radiology/SegmentationReview/internal/segmentation"
	"github.com/nki-radiology/SegmentationReview/internal/viewer"
)

// loadCaseLocked binds the case at the current position into the
// viewer. Cases with a segmentation file load it with outline-only 2D
// display, hide regions that are neither prostate nor fascia, and add
// a fascia region when none exists. Cases without one get a fresh node
// carrying the required regions. The draft comment resets on every
// load.
func (s *Session) loadCaseLocked(ctx context.Context) error {
	current := s.caseList[s.position]
	logger := s.logger.With(
		logging.String(logging.FieldPatientID, current.PatientID),
		logging.Int(logging.FieldCaseIndex, s.position),
		logging.Int(logging.FieldCaseTotal, len(s.caseList)))

	volumeID, err := s.bridge.LoadVolume(ctx, current.ImagePath)
	if err != nil {
		return fmt.Errorf("load volume %s: %w", current.ImagePath, err)
	}
	s.volumeNode = volumeID
	if err := s.bridge.PresentVolume(ctx, volumeID); err != nil {
		logger.Warn("volume presentation failed", logging.Error(err))
	}

	prostateFound := false
	if current.HasSegmentation() {
		prostateFound, err = s.attachSegmentationLocked(ctx, current.SegmentationPath)
	} else {
		err = s.createSegmentationLocked(ctx)
		prostateFound = true
	}
	if err != nil {
		return err
	}

	if !s.editorConfigured {
		editorCfg := viewer.EditorConfig{
			Effects:   s.cfg.Review.EditorEffects,
			UndoDepth: s.cfg.Review.UndoDepth,
		}
		if err := s.bridge.ConfigureEditor(ctx, editorCfg); err != nil {
			return fmt.Errorf("configure editor: %w", err)
		}
		s.editorConfigured = true
	}
	if err := s.bridge.BindEditor(ctx, s.segmentationNode, s.volumeNode); err != nil {
		return fmt.Errorf("bind editor: %w", err)
	}

	position := fmt.Sprintf("%d / %d", s.position, len(s.caseList))
	if err := s.bridge.SetStatus(ctx, position, current.PatientID); err != nil {
		logger.Warn("status update failed", logging.Error(err))
	}
	if !prostateFound {
		if err := s.bridge.ShowMessage(ctx, ProstateAdvisory); err != nil {
			logger.Warn("advisory display failed", logging.Error(err))
		}
	}
	if err := s.store.SetMissingProstate(ctx, s.active.ID, s.position, !prostateFound); err != nil {
		return fmt.Errorf("record advisory flag: %w", err)
	}
	if err := s.store.SetComment(ctx, s.active.ID, s.position, ""); err != nil {
		return fmt.Errorf("reset draft comment: %w", err)
	}

	logger.Info("case loaded",
		logging.Bool("fresh_segmentation", !current.HasSegmentation()),
		logging.Bool("prostate_missing", !prostateFound))
	return nil
}

// attachSegmentationLocked loads an existing segmentation file and
// normalizes its regions. It reports whether a prostate region was
// found.
func (s *Session) attachSegmentationLocked(ctx context.Context, path string) (bool, error) {
	nodeID, err := s.bridge.LoadSegmentation(ctx, path)
	if err != nil {
		return false, fmt.Errorf("load segmentation %s: %w", path, err)
	}
	s.segmentationNode = nodeID
	if err := s.bridge.SetOutlineDisplay(ctx, nodeID); err != nil {
		return false, fmt.Errorf("set outline display: %w", err)
	}

	regions, err := s.bridge.Regions(ctx, nodeID)
	if err != nil {
		return false, fmt.Errorf("list regions: %w", err)
	}
	prostateFound := false
	fasciaFound := false
	for _, region := range regions {
		switch segmentation.Classify(region.Name) {
		case segmentation.KindProstate:
			prostateFound = true
		case segmentation.KindFascia:
			fasciaFound = true
		default:
			if err := s.bridge.SetRegionVisible(ctx, nodeID, region.ID, false); err != nil {
				return false, fmt.Errorf("hide region %q: %w", region.Name, err)
			}
		}
	}
	if !fasciaFound {
		if err := s.createRegionLocked(ctx, nodeID, segmentation.FasciaLabel); err != nil {
			return false, err
		}
	}
	return prostateFound, nil
}

// createSegmentationLocked builds the fresh-case node with the
// required regions in order.
func (s *Session) createSegmentationLocked(ctx context.Context) error {
	nodeID, err := s.bridge.CreateSegmentation(ctx, FreshSegmentationName)
	if err != nil {
		return fmt.Errorf("create segmentation: %w", err)
	}
	s.segmentationNode = nodeID
	for _, label := range segmentation.RequiredLabels() {
		if err := s.createRegionLocked(ctx, nodeID, label); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) createRegionLocked(ctx context.Context, nodeID, label string) error {
	var style *viewer.RegionStyle
	if preset, ok := s.presets.Lookup(label); ok {
		style = &viewer.RegionStyle{
			Color:   [3]float64(preset.Color),
			Opacity: preset.Opacity,
		}
	}
	if _, err := s.bridge.CreateRegion(ctx, nodeID, label, style); err != nil {
		return fmt.Errorf("create region %q: %w", label, err)
	}
	return nil
}
