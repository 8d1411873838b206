package review

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nki-radiology/SegmentationReview/internal/annotations"
	"github.com/nki-radiology/SegmentationReview/internal/cases"
	"github.com/nki-radiology/SegmentationReview/internal/config"
	"github.com/nki-radiology/SegmentationReview/internal/logging"
	"github.com/nki-radiology/SegmentationReview/internal/notifications"
	"github.com/nki-radiology/SegmentationReview/internal/preflight"
)

// SetDirectory starts a review over the given directory, replacing any
// session in progress. An empty directory argument falls back to the
// configured default. Cases whose patient ID already appears in the
// directory's annotations table are skipped; when nothing is left to
// review the session starts in the all-checked state.
func (s *Session) SetDirectory(ctx context.Context, root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root = strings.TrimSpace(root)
	if root == "" {
		root = strings.TrimSpace(s.cfg.Review.DefaultDirectory)
	}
	if root == "" {
		return errors.New("no review directory given and none configured")
	}
	expanded, err := config.ExpandPath(root)
	if err != nil {
		return fmt.Errorf("expand review directory: %w", err)
	}
	root = expanded

	s.releaseNodesLocked(ctx)

	table := annotations.NewTable(root)
	reviewed, err := table.Reviewed()
	if err != nil {
		return fmt.Errorf("read annotations table: %w", err)
	}
	discovered, err := cases.Discover(root, reviewed, s.logger)
	if err != nil {
		return fmt.Errorf("discover cases: %w", err)
	}

	active, err := s.store.CreateSession(ctx, root, discovered)
	if err != nil {
		return fmt.Errorf("create worklist session: %w", err)
	}

	s.active = active
	s.caseList = discovered
	s.table = table
	s.position = 0
	s.allChecked = false
	s.completionSent = false
	s.startedAt = time.Now()

	s.logger.Info("review session started",
		logging.String(logging.FieldSessionID, active.ID),
		logging.String(logging.FieldDirectory, root),
		logging.Int("cases", len(discovered)))

	if len(discovered) == 0 {
		return s.enterAllCheckedLocked(ctx)
	}

	s.notify(ctx, notifications.EventSessionStarted, notifications.Payload{
		"count": strconv.Itoa(len(discovered)),
		"root":  root,
	})
	return s.moveToLocked(ctx, 0)
}

// Advance releases the current nodes and moves to the next case. Past
// the last case the session enters the all-checked state; advancing
// again re-announces it and stays put.
func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoSession
	}
	return s.advanceLocked(ctx)
}

func (s *Session) advanceLocked(ctx context.Context) error {
	s.releaseNodesLocked(ctx)
	if !s.allChecked && s.position < len(s.caseList)-1 {
		return s.moveToLocked(ctx, s.position+1)
	}
	return s.enterAllCheckedLocked(ctx)
}

// Retreat steps back one case. At the first case it does nothing and
// keeps the loaded nodes. From the all-checked state it returns to the
// last case.
func (s *Session) Retreat(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoSession
	}
	if len(s.caseList) == 0 || (s.position <= 0 && !s.allChecked) {
		s.logger.Debug("already at first case, nothing to go back to")
		return nil
	}
	s.releaseNodesLocked(ctx)
	if s.allChecked {
		s.allChecked = false
		if err := s.store.SetAllChecked(ctx, s.active.ID, false); err != nil {
			return fmt.Errorf("clear all-checked flag: %w", err)
		}
		return s.moveToLocked(ctx, s.position)
	}
	return s.moveToLocked(ctx, s.position-1)
}

// SaveAndNext persists the bound segmentation to the case directory,
// appends the annotation row, and advances. The segmentation write and
// the CSV append are journaled separately so an interruption between
// them is visible in the worklist.
func (s *Session) SaveAndNext(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoSession
	}
	if s.allChecked {
		return ErrAllChecked
	}
	if s.segmentationNode == "" {
		return errors.New("no segmentation bound, reselect the review directory")
	}

	current := s.caseList[s.position]
	logger := s.logger.With(
		logging.String(logging.FieldPatientID, current.PatientID),
		logging.Int(logging.FieldCaseIndex, s.position))

	if err := preflight.DiskSpace(current.Dir, s.cfg.Preflight.MinFreeMiB); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}

	savePath := current.SavePath()
	if err := s.bridge.SaveSegmentation(ctx, s.segmentationNode, savePath); err != nil {
		logger.Error("segmentation save failed", logging.Error(err))
		s.notify(ctx, notifications.EventSaveFailure, notifications.Payload{
			"patientID": current.PatientID,
			"error":     err.Error(),
		})
		return fmt.Errorf("save segmentation: %w", err)
	}
	if err := s.store.MarkSaved(ctx, s.active.ID, s.position); err != nil {
		return fmt.Errorf("journal segmentation save: %w", err)
	}

	row, err := s.store.CaseAt(ctx, s.active.ID, s.position)
	if err != nil {
		return fmt.Errorf("read draft comment: %w", err)
	}
	comment := ""
	if row != nil {
		comment = row.Comment
	}
	if err := s.table.Append(annotations.Row{PatientID: current.PatientID, Comment: comment}); err != nil {
		logger.Error("annotation append failed", logging.Error(err))
		s.notify(ctx, notifications.EventSaveFailure, notifications.Payload{
			"patientID": current.PatientID,
			"error":     err.Error(),
		})
		return fmt.Errorf("append annotation row: %w", err)
	}
	if err := s.store.MarkRecorded(ctx, s.active.ID, s.position, comment); err != nil {
		return fmt.Errorf("journal annotation: %w", err)
	}

	logger.Info("case saved", logging.String("path", savePath))
	return s.advanceLocked(ctx)
}

func (s *Session) moveToLocked(ctx context.Context, position int) error {
	if err := s.store.MarkCurrent(ctx, s.active.ID, position); err != nil {
		return fmt.Errorf("move worklist cursor: %w", err)
	}
	s.position = position
	return s.loadCaseLocked(ctx)
}

// enterAllCheckedLocked puts the session into its terminal state. The
// cursor stays on the last case so Retreat can step back into it.
// Re-entering only refreshes the viewer status line.
func (s *Session) enterAllCheckedLocked(ctx context.Context) error {
	s.allChecked = true
	if err := s.store.SetAllChecked(ctx, s.active.ID, true); err != nil {
		return fmt.Errorf("set all-checked flag: %w", err)
	}
	if err := s.bridge.SetStatus(ctx, AllCheckedText, ""); err != nil {
		s.logger.Warn("status update failed", logging.Error(err))
	}
	s.logger.Info("all files checked",
		logging.String(logging.FieldSessionID, s.active.ID))

	if s.completionSent || len(s.caseList) == 0 {
		return nil
	}
	s.completionSent = true
	reviewed := len(s.caseList)
	if stats, err := s.store.Stats(ctx, s.active.ID); err == nil {
		reviewed = stats.Completed
	}
	s.notify(ctx, notifications.EventSessionCompleted, notifications.Payload{
		"reviewed": strconv.Itoa(reviewed),
		"duration": time.Since(s.startedAt).String(),
	})
	return nil
}
