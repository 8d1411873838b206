package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/nki-radiology/SegmentationReview/internal/config"
	"github.com/nki-radiology/SegmentationReview/internal/logging"
	"github.com/nki-radiology/SegmentationReview/internal/preflight"
	"github.com/nki-radiology/SegmentationReview/internal/review"
	"github.com/nki-radiology/SegmentationReview/internal/worklist"
)

// Daemon coordinates the review session and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *worklist.Store
	session *review.Session
	ring    *logging.RingHandler
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	WorklistDBPath string
	LockFilePath   string
	Review         review.Status
	Preflight      []preflight.Result
}

// New constructs a daemon with initialized dependencies. The ring
// handler is optional; without it log tailing over the API returns
// nothing.
func New(cfg *config.Config, store *worklist.Store, session *review.Session, ring *logging.RingHandler, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || session == nil {
		return nil, errors.New("daemon requires config, store, and review session")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockFilePath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		session:  session,
		ring:     ring,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, fmt.Errorf("create api server: %w", err)
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, wires the viewer event watcher, and
// attempts the configured default directory. A missing viewer or an
// unreadable default directory logs a warning rather than failing:
// the operator can select a directory once the viewer is up.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another segreviewd instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.session.Watch(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("watch viewer events: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("segreviewd daemon started", logging.String("lock", d.lockPath))

	d.reportPreflight("")

	if root := strings.TrimSpace(d.cfg.Review.DefaultDirectory); root != "" {
		if err := d.session.SetDirectory(d.ctx, root); err != nil {
			d.logger.Warn("default review directory not selected",
				logging.String(logging.FieldDirectory, root),
				logging.Error(err))
		}
	}
	return nil
}

func (d *Daemon) reportPreflight(root string) {
	for _, result := range preflight.RunAll(d.cfg, root) {
		if result.Passed {
			d.logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}
}

// Stop stops the event watcher and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("segreviewd daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// SelectDirectory starts a review over the given directory. An empty
// directory falls back to the configured default.
func (d *Daemon) SelectDirectory(ctx context.Context, root string) error {
	if d.session == nil {
		return errors.New("review session unavailable")
	}
	return d.session.SetDirectory(ctx, root)
}

// SaveAndNext persists the current segmentation, records the
// annotation, and moves to the next case.
func (d *Daemon) SaveAndNext(ctx context.Context) error {
	if d.session == nil {
		return errors.New("review session unavailable")
	}
	return d.session.SaveAndNext(ctx)
}

// Advance moves to the next case without saving.
func (d *Daemon) Advance(ctx context.Context) error {
	if d.session == nil {
		return errors.New("review session unavailable")
	}
	return d.session.Advance(ctx)
}

// Retreat moves back to the previous case.
func (d *Daemon) Retreat(ctx context.Context) error {
	if d.session == nil {
		return errors.New("review session unavailable")
	}
	return d.session.Retreat(ctx)
}

// SetComment updates the draft comment of the current case.
func (d *Daemon) SetComment(ctx context.Context, comment string) error {
	if d.session == nil {
		return errors.New("review session unavailable")
	}
	return d.session.SetComment(ctx, comment)
}

// ReviewStatus returns a snapshot of the active review session.
func (d *Daemon) ReviewStatus(ctx context.Context) (review.Status, error) {
	if d.session == nil {
		return review.Status{}, errors.New("review session unavailable")
	}
	return d.session.Status(ctx)
}

// ListCases returns the worklist rows of the active session.
func (d *Daemon) ListCases(ctx context.Context) ([]*worklist.Case, error) {
	if d.session == nil {
		return nil, errors.New("review session unavailable")
	}
	return d.session.Cases(ctx)
}

// LogTail returns the most recent daemon log lines, newest last.
func (d *Daemon) LogTail(n int) []string {
	if d.ring == nil {
		return nil
	}
	return d.ring.Tail(n)
}

// APIAddr reports the bound control API address, empty when the API
// is disabled or the daemon has not started.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	var reviewStatus review.Status
	if d.session != nil {
		snapshot, err := d.session.Status(ctx)
		if err != nil {
			d.logger.Warn("review status unavailable", logging.Error(err))
		} else {
			reviewStatus = snapshot
		}
	}
	return Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		WorklistDBPath: d.cfg.WorklistDatabasePath(),
		LockFilePath:   d.lockPath,
		Review:         reviewStatus,
		Preflight:      preflight.RunAll(d.cfg, reviewStatus.Root),
	}
}
