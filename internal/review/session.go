package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nki-radiology/SegmentationReview/internal/annotations"
	"github.com/nki-radiology/SegmentationReview/internal/cases"
	"github.com/nki-radiology/SegmentationReview/internal/config"
	"github.com/nki-radiology/SegmentationReview/internal/logging"
	"github.com/nki-radiology/SegmentationReview/internal/notifications"
	"github.com/nki-radiology/SegmentationReview/internal/segmentation"
	"github.com/nki-radiology/SegmentationReview/internal/viewer"
	"github.com/nki-radiology/SegmentationReview/internal/worklist"
)

const (
	// AllCheckedText is the status line shown once every case is reviewed.
	AllCheckedText = "All files are checked!"
	// ProstateAdvisory asks the operator to label a prostate region.
	ProstateAdvisory = "Please create or rename appropriate segment to 'Prostate'."
	// FreshSegmentationName names the node created for a case that
	// arrived without a segmentation file.
	FreshSegmentationName = "Segmentation"
)

// Session drives one reviewer through a directory of cases. All
// operations serialize behind a single mutex and run to completion.
type Session struct {
	mu       sync.Mutex
	cfg      *config.Config
	store    *worklist.Store
	bridge   viewer.Viewer
	notifier notifications.Service
	logger   *slog.Logger
	presets  *segmentation.Presets

	active           *worklist.Session
	caseList         []cases.Case
	table            *annotations.Table
	position         int
	volumeNode       string
	segmentationNode string
	allChecked       bool
	completionSent   bool
	editorConfigured bool
	startedAt        time.Time
}

// Status is a point-in-time snapshot of the session for the control
// API and the CLI.
type Status struct {
	Active     bool
	SessionID  string
	Root       string
	Position   int
	Total      int
	PatientID  string
	StatusLine string
	AllChecked bool
	NodesBound bool
	Stats      worklist.Stats
	StartedAt  time.Time
}

// New assembles a session around the given collaborators. Label
// presets load immediately so a broken preset file fails startup.
func New(cfg *config.Config, store *worklist.Store, bridge viewer.Viewer, notifier notifications.Service, logger *slog.Logger) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("review session requires config")
	}
	if store == nil {
		return nil, errors.New("review session requires worklist store")
	}
	if bridge == nil {
		return nil, errors.New("review session requires viewer")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	presets, err := segmentation.LoadPresets(cfg.Review.LabelPresets)
	if err != nil {
		return nil, fmt.Errorf("load label presets: %w", err)
	}
	return &Session{
		cfg:      cfg,
		store:    store,
		bridge:   bridge,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "review"),
		presets:  presets,
	}, nil
}

// Watch consumes viewer scene events until ctx is canceled. A scene
// clear or viewer shutdown invalidates the session's node bindings so
// later releases become no-ops instead of errors.
func (s *Session) Watch(ctx context.Context) error {
	events, err := s.bridge.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe viewer events: %w", err)
	}
	go func() {
		for event := range events {
			s.handleViewerEvent(event)
		}
	}()
	return nil
}

func (s *Session) handleViewerEvent(event viewer.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.volumeNode != "" || s.segmentationNode != "" {
		s.logger.Warn("viewer scene went away, dropping node bindings",
			logging.String("event", event.Kind.String()))
	}
	s.volumeNode = ""
	s.segmentationNode = ""
	if event.Kind == viewer.EventShutdown {
		s.editorConfigured = false
	}
}

// SetComment stores the draft comment for the current case. It is
// written to the annotations table on the next save.
func (s *Session) SetComment(ctx context.Context, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoSession
	}
	if s.allChecked {
		return ErrAllChecked
	}
	return s.store.SetComment(ctx, s.active.ID, s.position, comment)
}

// Status reports the current session state. An inactive session
// returns a zero Status with Active false.
func (s *Session) Status(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Status{}, nil
	}
	stats, err := s.store.Stats(ctx, s.active.ID)
	if err != nil {
		return Status{}, fmt.Errorf("session stats: %w", err)
	}
	status := Status{
		Active:     true,
		SessionID:  s.active.ID,
		Root:       s.active.Root,
		Position:   s.position,
		Total:      len(s.caseList),
		AllChecked: s.allChecked,
		NodesBound: s.volumeNode != "" || s.segmentationNode != "",
		Stats:      stats,
		StartedAt:  s.startedAt,
	}
	if s.allChecked {
		status.StatusLine = AllCheckedText
	} else {
		status.StatusLine = fmt.Sprintf("%d / %d", s.position, len(s.caseList))
		status.PatientID = s.caseList[s.position].PatientID
	}
	return status, nil
}

// Cases lists the worklist rows of the active session in position
// order.
func (s *Session) Cases(ctx context.Context) ([]*worklist.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, ErrNoSession
	}
	return s.store.SessionCases(ctx, s.active.ID)
}

// releaseNodesLocked removes the bound nodes from the viewer scene.
// Nodes that already vanished are fine; other failures are logged and
// otherwise ignored so navigation never wedges on scene cleanup.
func (s *Session) releaseNodesLocked(ctx context.Context) {
	for _, node := range []string{s.volumeNode, s.segmentationNode} {
		if node == "" {
			continue
		}
		if err := s.bridge.ReleaseNode(ctx, node); err != nil && !errors.Is(err, viewer.ErrNodeAbsent) {
			s.logger.Warn("release node failed",
				logging.String("node", node),
				logging.Error(err))
		}
	}
	s.volumeNode = ""
	s.segmentationNode = ""
}

func (s *Session) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		s.logger.Warn("notification failed",
			logging.String("event", string(event)),
			logging.Error(err))
	}
}
