package viewerrpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/nki-radiology/SegmentationReview/internal/viewer"
)

const serviceName = "Viewer"

const (
	defaultConnectTimeout = 5 * time.Second
	defaultRequestTimeout = 60 * time.Second
	defaultEventWait      = 30 * time.Second
)

// Options tune bridge connection behavior.
type Options struct {
	// ConnectTimeout bounds the socket dial. Zero means 5s.
	ConnectTimeout time.Duration
	// RequestTimeout bounds each RPC round trip. Zero means 60s.
	RequestTimeout time.Duration
}

// Client provides viewer capabilities over JSON-RPC on a Unix socket.
type Client struct {
	conn           net.Conn
	rpc            *rpc.Client
	requestTimeout time.Duration
}

var _ viewer.Viewer = (*Client)(nil)

// Dial connects to the viewer adapter at the given socket path.
func Dial(path string, opts Options) (*Client, error) {
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	conn, err := net.DialTimeout("unix", path, connectTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", viewer.ErrUnavailable, path, err)
	}
	return &Client{
		conn:           conn,
		rpc:            rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn)),
		requestTimeout: requestTimeout,
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.rpc != nil {
		_ = c.rpc.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// call runs one RPC round trip bounded by ctx and the request timeout.
func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	pending := c.rpc.Go(serviceName+"."+method, req, resp, make(chan *rpc.Call, 1))
	timer := time.NewTimer(c.requestTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: %s timed out after %s", viewer.ErrUnavailable, method, c.requestTimeout)
	case done := <-pending.Done:
		if done.Error == nil {
			return nil
		}
		var remote rpc.ServerError
		if errors.As(done.Error, &remote) {
			return done.Error
		}
		return fmt.Errorf("%w: %s: %v", viewer.ErrUnavailable, method, done.Error)
	}
}

// LoadVolume implements viewer.Volumes.
func (c *Client) LoadVolume(ctx context.Context, path string) (string, error) {
	var resp LoadVolumeResponse
	if err := c.call(ctx, "LoadVolume", LoadVolumeRequest{Path: path}, &resp); err != nil {
		return "", fmt.Errorf("load volume: %w", err)
	}
	return resp.NodeID, nil
}

// PresentVolume implements viewer.Volumes.
func (c *Client) PresentVolume(ctx context.Context, nodeID string) error {
	var resp PresentVolumeResponse
	if err := c.call(ctx, "PresentVolume", PresentVolumeRequest{NodeID: nodeID}, &resp); err != nil {
		return fmt.Errorf("present volume: %w", err)
	}
	if resp.Missing {
		return viewer.ErrNodeAbsent
	}
	return nil
}

// LoadSegmentation implements viewer.Segmentations.
func (c *Client) LoadSegmentation(ctx context.Context, path string) (string, error) {
	var resp LoadSegmentationResponse
	if err := c.call(ctx, "LoadSegmentation", LoadSegmentationRequest{Path: path}, &resp); err != nil {
		return "", fmt.Errorf("load segmentation: %w", err)
	}
	return resp.NodeID, nil
}

// CreateSegmentation implements viewer.Segmentations.
func (c *Client) CreateSegmentation(ctx context.Context, name string) (string, error) {
	var resp CreateSegmentationResponse
	if err := c.call(ctx, "CreateSegmentation", CreateSegmentationRequest{Name: name}, &resp); err != nil {
		return "", fmt.Errorf("create segmentation: %w", err)
	}
	return resp.NodeID, nil
}

// SaveSegmentation implements viewer.Segmentations.
func (c *Client) SaveSegmentation(ctx context.Context, nodeID, path string) error {
	var resp SaveSegmentationResponse
	req := SaveSegmentationRequest{NodeID: nodeID, Path: path}
	if err := c.call(ctx, "SaveSegmentation", req, &resp); err != nil {
		return fmt.Errorf("save segmentation: %w", err)
	}
	if resp.Missing {
		return viewer.ErrNodeAbsent
	}
	return nil
}

// SetOutlineDisplay implements viewer.Segmentations.
func (c *Client) SetOutlineDisplay(ctx context.Context, nodeID string) error {
	var resp SetOutlineDisplayResponse
	if err := c.call(ctx, "SetOutlineDisplay", SetOutlineDisplayRequest{NodeID: nodeID}, &resp); err != nil {
		return fmt.Errorf("set outline display: %w", err)
	}
	if resp.Missing {
		return viewer.ErrNodeAbsent
	}
	return nil
}

// Regions implements viewer.Segmentations.
func (c *Client) Regions(ctx context.Context, nodeID string) ([]viewer.Region, error) {
	var resp RegionsResponse
	if err := c.call(ctx, "Regions", RegionsRequest{NodeID: nodeID}, &resp); err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	if resp.Missing {
		return nil, viewer.ErrNodeAbsent
	}
	regions := make([]viewer.Region, 0, len(resp.Regions))
	for _, dto := range resp.Regions {
		regions = append(regions, viewer.Region{ID: dto.ID, Name: dto.Name})
	}
	return regions, nil
}

// CreateRegion implements viewer.Segmentations.
func (c *Client) CreateRegion(ctx context.Context, nodeID, name string, style *viewer.RegionStyle) (string, error) {
	req := CreateRegionRequest{NodeID: nodeID, Name: name}
	if style != nil {
		req.HasStyle = true
		req.Color = style.Color
		req.Opacity = style.Opacity
	}
	var resp CreateRegionResponse
	if err := c.call(ctx, "CreateRegion", req, &resp); err != nil {
		return "", fmt.Errorf("create region: %w", err)
	}
	if resp.Missing {
		return "", viewer.ErrNodeAbsent
	}
	return resp.RegionID, nil
}

// SetRegionVisible implements viewer.Segmentations.
func (c *Client) SetRegionVisible(ctx context.Context, nodeID, regionID string, visible bool) error {
	var resp SetRegionVisibleResponse
	req := SetRegionVisibleRequest{NodeID: nodeID, RegionID: regionID, Visible: visible}
	if err := c.call(ctx, "SetRegionVisible", req, &resp); err != nil {
		return fmt.Errorf("set region visibility: %w", err)
	}
	if resp.Missing {
		return viewer.ErrNodeAbsent
	}
	return nil
}

// NodePresent implements viewer.Scene.
func (c *Client) NodePresent(ctx context.Context, nodeID string) (bool, error) {
	var resp NodePresentResponse
	if err := c.call(ctx, "NodePresent", NodePresentRequest{NodeID: nodeID}, &resp); err != nil {
		return false, fmt.Errorf("probe node: %w", err)
	}
	return resp.Present, nil
}

// ReleaseNode implements viewer.Scene.
func (c *Client) ReleaseNode(ctx context.Context, nodeID string) error {
	var resp ReleaseNodeResponse
	if err := c.call(ctx, "ReleaseNode", ReleaseNodeRequest{NodeID: nodeID}, &resp); err != nil {
		return fmt.Errorf("release node: %w", err)
	}
	if resp.Missing {
		return viewer.ErrNodeAbsent
	}
	return nil
}

// ConfigureEditor implements viewer.Editor.
func (c *Client) ConfigureEditor(ctx context.Context, cfg viewer.EditorConfig) error {
	var resp ConfigureEditorResponse
	req := ConfigureEditorRequest{Effects: cfg.Effects, UndoDepth: cfg.UndoDepth}
	if err := c.call(ctx, "ConfigureEditor", req, &resp); err != nil {
		return fmt.Errorf("configure editor: %w", err)
	}
	return nil
}

// BindEditor implements viewer.Editor.
func (c *Client) BindEditor(ctx context.Context, segmentationID, volumeID string) error {
	var resp BindEditorResponse
	req := BindEditorRequest{SegmentationID: segmentationID, VolumeID: volumeID}
	if err := c.call(ctx, "BindEditor", req, &resp); err != nil {
		return fmt.Errorf("bind editor: %w", err)
	}
	if resp.Missing {
		return viewer.ErrNodeAbsent
	}
	return nil
}

// ShowMessage implements viewer.Console.
func (c *Client) ShowMessage(ctx context.Context, text string) error {
	var resp ShowMessageResponse
	if err := c.call(ctx, "ShowMessage", ShowMessageRequest{Text: text}, &resp); err != nil {
		return fmt.Errorf("show message: %w", err)
	}
	return nil
}

// SetStatus implements viewer.Console.
func (c *Client) SetStatus(ctx context.Context, position, patientID string) error {
	var resp SetStatusResponse
	req := SetStatusRequest{Position: position, PatientID: patientID}
	if err := c.call(ctx, "SetStatus", req, &resp); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// Subscribe implements viewer.Events by long-polling NextEvent. The
// returned channel closes when ctx is canceled; if the bridge dies a
// final shutdown event is delivered first.
func (c *Client) Subscribe(ctx context.Context) (<-chan viewer.Event, error) {
	events := make(chan viewer.Event, 8)
	go func() {
		defer close(events)
		req := NextEventRequest{WaitMillis: int(defaultEventWait / time.Millisecond)}
		for {
			var resp NextEventResponse
			pending := c.rpc.Go(serviceName+".NextEvent", req, &resp, make(chan *rpc.Call, 1))
			select {
			case <-ctx.Done():
				return
			case done := <-pending.Done:
				if done.Error != nil {
					select {
					case events <- viewer.Event{Kind: viewer.EventShutdown}:
					default:
					}
					return
				}
			}
			if resp.Kind == "" {
				continue
			}
			kind := viewer.ParseEventKind(resp.Kind)
			if kind == 0 {
				continue
			}
			select {
			case events <- viewer.Event{Kind: kind}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
