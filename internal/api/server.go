package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"shortforge/internal/logging"
	"shortforge/internal/queue"
	"shortforge/internal/services"
	"shortforge/internal/worker"
)

// Server serves the job API over HTTP.
type Server struct {
	bind    string
	store   *queue.Store
	manager *worker.Manager
	logger  *slog.Logger

	listener net.Listener
	server   *http.Server
}

// NewServer wires the API handlers. The logger may be nil.
func NewServer(bind string, store *queue.Store, manager *worker.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &Server{
		bind:    strings.TrimSpace(bind),
		store:   store,
		manager: manager,
		logger:  logging.WithComponent(logger, "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/videos/generate", srv.handleGenerate)
	mux.HandleFunc("/videos", srv.handleList)
	mux.HandleFunc("/videos/", srv.handleVideo)
	mux.HandleFunc("/api/health", srv.handleHealth)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving and shuts the listener down when ctx ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := worker.SubmitParams{
		ScriptID:        req.ScriptID,
		VoiceID:         req.VoiceID,
		BackgroundMusic: req.BackgroundMusic,
		BRollQuery:      req.BRollQuery,
	}
	if req.VoiceSettings != nil {
		params.VoiceSettings = *req.VoiceSettings
	}

	job, err := s.manager.Submit(r.Context(), params)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, ViewFromJob(job))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	jobs, err := s.store.ListRecent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, ViewFromJob(job))
	}
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: views})
}

// handleVideo routes /videos/{id}, /videos/{id}/download, /videos/{id}/cancel.
func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/videos/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(action, "/") {
		s.writeError(w, http.StatusNotFound, "video not found")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.describeJob(w, r, id)
	case "download":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.downloadVideo(w, r, id)
	case "cancel":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.cancelJob(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "video not found")
	}
}

func (s *Server) describeJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "video not found")
		return
	}
	s.writeJSON(w, http.StatusOK, ViewFromJob(job))
}

// downloadVideo streams the rendered file. Only completed jobs have a
// downloadable artifact; everything else is a 404 so partial renders never
// leak.
func (s *Server) downloadVideo(w http.ResponseWriter, r *http.Request, id string) {
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil || job.Status != queue.StatusCompleted || job.OutputPath == "" {
		s.writeError(w, http.StatusNotFound, "video not available")
		return
	}

	file, err := os.Open(job.OutputPath)
	if err != nil {
		s.logger.Error("open rendered video",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
		)
		s.writeError(w, http.StatusNotFound, "video not available")
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(job.OutputPath)))
	http.ServeContent(w, r, filepath.Base(job.OutputPath), job.UpdatedAt, file)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request, id string) {
	cancelled, err := s.store.CancelQueued(r.Context(), id, "cancelled by request")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !cancelled {
		s.writeError(w, http.StatusConflict, "job is not queued")
		return
	}
	s.describeJob(w, r, id)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := s.store.JobStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Stats: stats})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
