package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nki-radiology/SegmentationReview/internal/api"
	"github.com/nki-radiology/SegmentationReview/internal/config"
)

// APIError carries a non-2xx control API reply.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client calls the daemon control API over HTTP with bearer auth.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient builds a client for the API bind address in cfg.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		base:  apiBaseURL(cfg.Paths.APIBind),
		token: strings.TrimSpace(cfg.Paths.APIToken),
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

// apiBaseURL turns a bind address into a dialable URL. Wildcard hosts
// bind all interfaces but are reached over loopback.
func apiBaseURL(bind string) string {
	bind = strings.TrimSpace(bind)
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr api.ErrorResponse
		if err := json.Unmarshal(payload, &apiErr); err == nil && strings.TrimSpace(apiErr.Error) != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Healthz probes daemon liveness without authentication.
func (c *Client) Healthz(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/healthz", nil, nil)
}

// Status fetches the full daemon status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var status api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

// Cases lists the worklist rows of the active session.
func (c *Client) Cases(ctx context.Context) ([]api.Case, error) {
	var resp api.CaseListResponse
	if err := c.do(ctx, http.MethodGet, "/api/cases", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Cases, nil
}

// LogTail fetches the most recent daemon log lines.
func (c *Client) LogTail(ctx context.Context, lines int) ([]string, error) {
	path := "/api/logs"
	if lines > 0 {
		path = fmt.Sprintf("/api/logs?lines=%d", lines)
	}
	var resp api.LogTailResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

// Select starts a review over directory. Empty means the configured
// default.
func (c *Client) Select(ctx context.Context, directory string) (api.ReviewStatus, error) {
	var status api.ReviewStatus
	err := c.do(ctx, http.MethodPost, "/api/session/directory", api.SelectRequest{Directory: directory}, &status)
	return status, err
}

// SaveNext saves the current segmentation, records the annotation, and
// advances.
func (c *Client) SaveNext(ctx context.Context) (api.ReviewStatus, error) {
	var status api.ReviewStatus
	err := c.do(ctx, http.MethodPost, "/api/session/save-next", nil, &status)
	return status, err
}

// Next advances without saving.
func (c *Client) Next(ctx context.Context) (api.ReviewStatus, error) {
	var status api.ReviewStatus
	err := c.do(ctx, http.MethodPost, "/api/session/next", nil, &status)
	return status, err
}

// Previous steps back one case.
func (c *Client) Previous(ctx context.Context) (api.ReviewStatus, error) {
	var status api.ReviewStatus
	err := c.do(ctx, http.MethodPost, "/api/session/previous", nil, &status)
	return status, err
}

// SetComment updates the draft comment of the current case.
func (c *Client) SetComment(ctx context.Context, comment string) (api.ReviewStatus, error) {
	var status api.ReviewStatus
	err := c.do(ctx, http.MethodPost, "/api/session/comment", api.CommentRequest{Comment: comment}, &status)
	return status, err
}
