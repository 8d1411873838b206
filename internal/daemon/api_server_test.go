package daemon_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nki-radiology/SegmentationReview/internal/annotations"
	"github.com/nki-radiology/SegmentationReview/internal/api"
	"github.com/nki-radiology/SegmentationReview/internal/daemon"
	"github.com/nki-radiology/SegmentationReview/internal/review"
	"github.com/nki-radiology/SegmentationReview/internal/testsupport"
	"github.com/nki-radiology/SegmentationReview/internal/viewer"
	"github.com/nki-radiology/SegmentationReview/internal/viewer/viewertest"
)

const testToken = "test-token"

type apiHarness struct {
	t      *testing.T
	base   string
	client *http.Client
	fake   *viewertest.Fake
	daemon *daemon.Daemon
	root   string
}

// startAPIHarness boots a daemon with no preselected directory and two
// seeded cases waiting under root.
func startAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithReviewRoot(""))
	cfg.Preflight.MinFreeMiB = 0
	d, fake := newTestDaemon(t, cfg)
	startTestDaemon(t, d)
	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("api server did not bind")
	}

	root := filepath.Join(testsupport.BaseDir(cfg), "cases")
	testsupport.SeedCaseDir(t, root, "P001", "image.nii.gz")
	testsupport.SeedCaseDir(t, root, "P002", "image.nii.gz")

	return &apiHarness{
		t:      t,
		base:   "http://" + addr,
		client: &http.Client{Timeout: 10 * time.Second},
		fake:   fake,
		daemon: d,
		root:   root,
	}
}

// request performs one API call. A string body goes over the wire
// verbatim; anything else is JSON-encoded.
func (h *apiHarness) request(method, path, token string, body any) (int, []byte) {
	h.t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, h.base+path, reader)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return resp.StatusCode, payload
}

func (h *apiHarness) mustJSON(method, path string, body, out any) {
	h.t.Helper()
	code, payload := h.request(method, path, testToken, body)
	if code != http.StatusOK {
		h.t.Fatalf("%s %s = %d: %s", method, path, code, payload)
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			h.t.Fatalf("decode %s response: %v", path, err)
		}
	}
}

func TestAPIServerRequiresBearerToken(t *testing.T) {
	h := startAPIHarness(t)

	code, payload := h.request(http.MethodGet, "/api/status", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d: %s", code, payload)
	}
	if !strings.Contains(string(payload), "unauthorized") {
		t.Fatalf("unexpected unauthorized body: %s", payload)
	}

	code, _ = h.request(http.MethodGet, "/api/status", "wrong-token", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("status with wrong token = %d", code)
	}

	code, _ = h.request(http.MethodGet, "/api/healthz", "", nil)
	if code != http.StatusOK {
		t.Fatalf("healthz without token = %d", code)
	}
}

func TestAPIServerOpenWithoutConfiguredToken(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithReviewRoot(""), testsupport.WithAPIToken(""))
	d, _ := newTestDaemon(t, cfg)
	startTestDaemon(t, d)

	resp, err := http.Get("http://" + d.APIAddr() + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status without auth on tokenless daemon = %d", resp.StatusCode)
	}
}

func TestAPIServerSessionFlow(t *testing.T) {
	h := startAPIHarness(t)

	var status api.ReviewStatus
	h.mustJSON(http.MethodPost, "/api/session/directory", api.SelectRequest{Directory: h.root}, &status)
	if !status.Active || status.Total != 2 {
		t.Fatalf("unexpected status after select: %+v", status)
	}
	if status.StatusLine != "0 / 2" || status.PatientID != "P001" {
		t.Fatalf("unexpected position after select: %+v", status)
	}

	h.mustJSON(http.MethodPost, "/api/session/comment", api.CommentRequest{Comment: "capsule irregular"}, &status)

	h.mustJSON(http.MethodPost, "/api/session/save-next", nil, &status)
	if status.StatusLine != "1 / 2" || status.PatientID != "P002" {
		t.Fatalf("unexpected status after save: %+v", status)
	}
	if status.Stats.Completed != 1 {
		t.Fatalf("completed count = %d, want 1", status.Stats.Completed)
	}

	var list api.CaseListResponse
	h.mustJSON(http.MethodGet, "/api/cases", nil, &list)
	if len(list.Cases) != 2 {
		t.Fatalf("case count = %d, want 2", len(list.Cases))
	}
	first := list.Cases[0]
	if first.Status != "completed" || first.Comment != "capsule irregular" || first.SavedAt == "" {
		t.Fatalf("unexpected first case row: %+v", first)
	}
	if list.Cases[1].Status != "current" {
		t.Fatalf("unexpected second case row: %+v", list.Cases[1])
	}

	h.mustJSON(http.MethodPost, "/api/session/next", nil, &status)
	if !status.AllChecked || status.StatusLine != review.AllCheckedText {
		t.Fatalf("unexpected terminal status: %+v", status)
	}

	code, payload := h.request(http.MethodPost, "/api/session/save-next", testToken, nil)
	if code != http.StatusConflict {
		t.Fatalf("save past the end = %d: %s", code, payload)
	}

	h.mustJSON(http.MethodPost, "/api/session/previous", nil, &status)
	if status.AllChecked || status.StatusLine != "1 / 2" {
		t.Fatalf("unexpected status after previous: %+v", status)
	}
}

func TestAPIServerErrorMapping(t *testing.T) {
	h := startAPIHarness(t)

	code, payload := h.request(http.MethodPost, "/api/session/save-next", testToken, nil)
	if code != http.StatusConflict {
		t.Fatalf("save without session = %d: %s", code, payload)
	}
	var apiErr api.ErrorResponse
	if err := json.Unmarshal(payload, &apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if apiErr.Error != review.ErrNoSession.Error() {
		t.Fatalf("error body = %q, want %q", apiErr.Error, review.ErrNoSession.Error())
	}

	code, payload = h.request(http.MethodPost, "/api/session/directory", testToken, "{not json")
	if code != http.StatusBadRequest {
		t.Fatalf("malformed select body = %d: %s", code, payload)
	}

	h.fake.Fail("LoadVolume", fmt.Errorf("%w: viewer socket closed", viewer.ErrUnavailable))
	code, payload = h.request(http.MethodPost, "/api/session/directory", testToken, api.SelectRequest{Directory: h.root})
	if code != http.StatusBadGateway {
		t.Fatalf("select with dead viewer = %d: %s", code, payload)
	}

	badTable := filepath.Join(h.root, annotations.TableFilename)
	if err := os.WriteFile(badTable, []byte("foo,bar\nx,y\n"), 0o644); err != nil {
		t.Fatalf("write malformed table: %v", err)
	}
	code, payload = h.request(http.MethodPost, "/api/session/directory", testToken, api.SelectRequest{Directory: h.root})
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("select with malformed table = %d: %s", code, payload)
	}

	code, payload = h.request(http.MethodGet, "/api/session/next", testToken, nil)
	if code != http.StatusMethodNotAllowed {
		t.Fatalf("GET on POST route = %d: %s", code, payload)
	}
	if !strings.Contains(string(payload), "method not allowed") {
		t.Fatalf("unexpected 405 body: %s", payload)
	}
}

func TestAPIServerStatusAndLogs(t *testing.T) {
	h := startAPIHarness(t)

	var status api.DaemonStatus
	h.mustJSON(http.MethodGet, "/api/status", nil, &status)
	if !status.Running {
		t.Fatal("expected running daemon status")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("status PID = %d, want %d", status.PID, os.Getpid())
	}
	if status.WorklistDBPath == "" || status.LockFilePath == "" {
		t.Fatalf("missing paths in status: %+v", status)
	}
	if len(status.Preflight) == 0 {
		t.Fatal("expected preflight results in status")
	}
	if status.Review.Active {
		t.Fatalf("expected inactive review in status: %+v", status.Review)
	}

	var logs api.LogTailResponse
	h.mustJSON(http.MethodGet, "/api/logs?lines=50", nil, &logs)
	found := false
	for _, line := range logs.Lines {
		if strings.Contains(line, "segreviewd daemon started") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected startup line in log tail, got %d lines", len(logs.Lines))
	}
}
