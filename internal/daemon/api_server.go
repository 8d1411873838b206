package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/nki-radiology/SegmentationReview/internal/annotations"
	"github.com/nki-radiology/SegmentationReview/internal/api"
	"github.com/nki-radiology/SegmentationReview/internal/config"
	"github.com/nki-radiology/SegmentationReview/internal/logging"
	"github.com/nki-radiology/SegmentationReview/internal/review"
	"github.com/nki-radiology/SegmentationReview/internal/viewer"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.writeError(w, http.StatusNotFound, "not found")
	})
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	router := mux.NewRouter()
	router.NotFoundHandler = notFound
	router.MethodNotAllowedHandler = methodNotAllowed
	router.HandleFunc("/api/healthz", srv.handleHealthz).Methods(http.MethodGet)

	protected := router.PathPrefix("/api").Subrouter()
	protected.NotFoundHandler = notFound
	protected.MethodNotAllowedHandler = methodNotAllowed
	protected.Use(authMiddleware(strings.TrimSpace(cfg.Paths.APIToken)))
	protected.HandleFunc("/status", srv.handleStatus).Methods(http.MethodGet)
	protected.HandleFunc("/cases", srv.handleCases).Methods(http.MethodGet)
	protected.HandleFunc("/logs", srv.handleLogs).Methods(http.MethodGet)
	protected.HandleFunc("/session/directory", srv.handleSelect).Methods(http.MethodPost)
	protected.HandleFunc("/session/save-next", srv.handleSaveNext).Methods(http.MethodPost)
	protected.HandleFunc("/session/next", srv.handleNext).Methods(http.MethodPost)
	protected.HandleFunc("/session/previous", srv.handlePrevious).Methods(http.MethodPost)
	protected.HandleFunc("/session/comment", srv.handleComment).Methods(http.MethodPost)

	srv.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", slog.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listen address, empty before start.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		WorklistDBPath: status.WorklistDBPath,
		LockFilePath:   status.LockFilePath,
		Review:         api.FromReviewStatus(status.Review),
		Preflight:      api.FromPreflight(status.Preflight),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleCases(w http.ResponseWriter, r *http.Request) {
	rows, err := s.daemon.ListCases(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CaseListResponse{Cases: api.FromCases(rows)})
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	lines, _ := strconv.Atoi(r.URL.Query().Get("lines"))
	if lines <= 0 {
		lines = 200
	}
	s.writeJSON(w, http.StatusOK, api.LogTailResponse{Lines: s.daemon.LogTail(lines)})
}

func (s *apiServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req api.SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.daemon.SelectDirectory(r.Context(), req.Directory); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.respondReviewStatus(w, r)
}

func (s *apiServer) handleSaveNext(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.SaveAndNext(r.Context()); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.respondReviewStatus(w, r)
}

func (s *apiServer) handleNext(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.Advance(r.Context()); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.respondReviewStatus(w, r)
}

func (s *apiServer) handlePrevious(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.Retreat(r.Context()); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.respondReviewStatus(w, r)
}

func (s *apiServer) handleComment(w http.ResponseWriter, r *http.Request) {
	var req api.CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.daemon.SetComment(r.Context(), req.Comment); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.respondReviewStatus(w, r)
}

// respondReviewStatus answers a mutating request with the refreshed
// session snapshot so the CLI can render without a second round trip.
func (s *apiServer) respondReviewStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.ReviewStatus(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromReviewStatus(status))
}

// writeSessionError maps session failures onto HTTP statuses: state
// conflicts are 409, an unparseable annotations table is 422, a dead
// viewer bridge is 502, the rest are 500.
func (s *apiServer) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, review.ErrNoSession), errors.Is(err, review.ErrAllChecked):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, annotations.ErrMalformedTable):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, viewer.ErrUnavailable):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
