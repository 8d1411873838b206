package viewerrpc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nki-radiology/SegmentationReview/internal/logging"
	"github.com/nki-radiology/SegmentationReview/internal/viewer"
)

const redialInterval = 2 * time.Second

// Reconnecting wraps Client with redial-on-demand so a daemon outlives
// viewer adapter restarts. A call that fails at the transport drops the
// connection; the next call dials fresh.
type Reconnecting struct {
	path   string
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	client *Client
}

var _ viewer.Viewer = (*Reconnecting)(nil)

// NewReconnecting returns a lazy bridge for the given socket path. No
// connection is attempted until the first call.
func NewReconnecting(path string, opts Options, logger *slog.Logger) *Reconnecting {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconnecting{
		path:   path,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "viewer-bridge"),
	}
}

func (r *Reconnecting) acquire() (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}
	client, err := Dial(r.path, r.opts)
	if err != nil {
		return nil, err
	}
	r.logger.Info("viewer bridge connected", logging.String("socket", r.path))
	r.client = client
	return client, nil
}

func (r *Reconnecting) invalidate(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client != nil && r.client == client {
		_ = client.Close()
		r.client = nil
		r.logger.Warn("viewer bridge connection dropped", logging.String("socket", r.path))
	}
}

// Close drops the current connection, if any.
func (r *Reconnecting) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

func (r *Reconnecting) do(call func(*Client) error) error {
	client, err := r.acquire()
	if err != nil {
		return err
	}
	err = call(client)
	if errors.Is(err, viewer.ErrUnavailable) {
		r.invalidate(client)
	}
	return err
}

// LoadVolume implements viewer.Volumes.
func (r *Reconnecting) LoadVolume(ctx context.Context, path string) (string, error) {
	var nodeID string
	err := r.do(func(c *Client) error {
		var callErr error
		nodeID, callErr = c.LoadVolume(ctx, path)
		return callErr
	})
	return nodeID, err
}

// PresentVolume implements viewer.Volumes.
func (r *Reconnecting) PresentVolume(ctx context.Context, nodeID string) error {
	return r.do(func(c *Client) error { return c.PresentVolume(ctx, nodeID) })
}

// LoadSegmentation implements viewer.Segmentations.
func (r *Reconnecting) LoadSegmentation(ctx context.Context, path string) (string, error) {
	var nodeID string
	err := r.do(func(c *Client) error {
		var callErr error
		nodeID, callErr = c.LoadSegmentation(ctx, path)
		return callErr
	})
	return nodeID, err
}

// CreateSegmentation implements viewer.Segmentations.
func (r *Reconnecting) CreateSegmentation(ctx context.Context, name string) (string, error) {
	var nodeID string
	err := r.do(func(c *Client) error {
		var callErr error
		nodeID, callErr = c.CreateSegmentation(ctx, name)
		return callErr
	})
	return nodeID, err
}

// SaveSegmentation implements viewer.Segmentations.
func (r *Reconnecting) SaveSegmentation(ctx context.Context, nodeID, path string) error {
	return r.do(func(c *Client) error { return c.SaveSegmentation(ctx, nodeID, path) })
}

// SetOutlineDisplay implements viewer.Segmentations.
func (r *Reconnecting) SetOutlineDisplay(ctx context.Context, nodeID string) error {
	return r.do(func(c *Client) error { return c.SetOutlineDisplay(ctx, nodeID) })
}

// Regions implements viewer.Segmentations.
func (r *Reconnecting) Regions(ctx context.Context, nodeID string) ([]viewer.Region, error) {
	var regions []viewer.Region
	err := r.do(func(c *Client) error {
		var callErr error
		regions, callErr = c.Regions(ctx, nodeID)
		return callErr
	})
	return regions, err
}

// CreateRegion implements viewer.Segmentations.
func (r *Reconnecting) CreateRegion(ctx context.Context, nodeID, name string, style *viewer.RegionStyle) (string, error) {
	var regionID string
	err := r.do(func(c *Client) error {
		var callErr error
		regionID, callErr = c.CreateRegion(ctx, nodeID, name, style)
		return callErr
	})
	return regionID, err
}

// SetRegionVisible implements viewer.Segmentations.
func (r *Reconnecting) SetRegionVisible(ctx context.Context, nodeID, regionID string, visible bool) error {
	return r.do(func(c *Client) error { return c.SetRegionVisible(ctx, nodeID, regionID, visible) })
}

// NodePresent implements viewer.Scene.
func (r *Reconnecting) NodePresent(ctx context.Context, nodeID string) (bool, error) {
	var present bool
	err := r.do(func(c *Client) error {
		var callErr error
		present, callErr = c.NodePresent(ctx, nodeID)
		return callErr
	})
	return present, err
}

// ReleaseNode implements viewer.Scene.
func (r *Reconnecting) ReleaseNode(ctx context.Context, nodeID string) error {
	return r.do(func(c *Client) error { return c.ReleaseNode(ctx, nodeID) })
}

// ConfigureEditor implements viewer.Editor.
func (r *Reconnecting) ConfigureEditor(ctx context.Context, cfg viewer.EditorConfig) error {
	return r.do(func(c *Client) error { return c.ConfigureEditor(ctx, cfg) })
}

// BindEditor implements viewer.Editor.
func (r *Reconnecting) BindEditor(ctx context.Context, segmentationID, volumeID string) error {
	return r.do(func(c *Client) error { return c.BindEditor(ctx, segmentationID, volumeID) })
}

// ShowMessage implements viewer.Console.
func (r *Reconnecting) ShowMessage(ctx context.Context, text string) error {
	return r.do(func(c *Client) error { return c.ShowMessage(ctx, text) })
}

// SetStatus implements viewer.Console.
func (r *Reconnecting) SetStatus(ctx context.Context, position, patientID string) error {
	return r.do(func(c *Client) error { return c.SetStatus(ctx, position, patientID) })
}

// Subscribe implements viewer.Events. The returned channel stays open
// across viewer restarts: each failed subscription forwards its final
// shutdown event and the loop redials until ctx is canceled.
func (r *Reconnecting) Subscribe(ctx context.Context) (<-chan viewer.Event, error) {
	out := make(chan viewer.Event, 8)
	go func() {
		defer close(out)
		for {
			client, err := r.acquire()
			if err != nil {
				if !sleepUnlessDone(ctx, redialInterval) {
					return
				}
				continue
			}
			events, err := client.Subscribe(ctx)
			if err != nil {
				r.invalidate(client)
				if !sleepUnlessDone(ctx, redialInterval) {
					return
				}
				continue
			}
			for event := range events {
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
			r.invalidate(client)
			if !sleepUnlessDone(ctx, redialInterval) {
				return
			}
		}
	}()
	return out, nil
}

func sleepUnlessDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
