// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/oqgen/internal/adapters/loader"
	"github.com/0xcro3dile/oqgen/internal/domain/entities"
	"github.com/0xcro3dile/oqgen/internal/domain/ports"
	"github.com/0xcro3dile/oqgen/internal/domain/usecases"
	"github.com/0xcro3dile/oqgen/internal/domain/workflow"
)

// maxBodyBytes caps a submitted URS.
const maxBodyBytes = 10 << 20

// Pipeline runs the OQ generation workflow for one document.
type Pipeline interface {
	Run(ctx context.Context, doc *entities.Document) (*entities.RunResult, error)
}

// Server is the HTTP server for the run API and metrics.
type Server struct {
	pipeline Pipeline
	runs     ports.RunStore
	metrics  http.Handler
	logger   *zap.Logger
	addr     string
}

// NewServer creates a new HTTP server. runs and metrics may be nil.
func NewServer(pipeline Pipeline, runs ports.RunStore, metrics http.Handler, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		pipeline: pipeline,
		runs:     runs,
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "http")),
		addr:     addr,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/runs", s.handleCreateRun)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return corsMiddleware(s.loggingMiddleware(mux))
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Minute, // POST /api/runs is synchronous
	}

	s.logger.Info("oqgen server starting", zap.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type createRunRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type errorResponse struct {
	Error          string                   `json:"error"`
	Step           string                   `json:"step,omitempty"`
	Categorization *entities.Categorization `json:"categorization,omitempty"`
}

// handleCreateRun runs the pipeline synchronously for the submitted URS.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "content required"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "urs.md"
	}

	result, err := s.pipeline.Run(r.Context(), loader.NewDocument(name, "", req.Content))
	if err != nil {
		status, resp := errorStatus(err)
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func errorStatus(err error) (int, errorResponse) {
	resp := errorResponse{Error: err.Error()}

	var stepErr *workflow.StepError
	if errors.As(err, &stepErr) {
		resp.Step = stepErr.Step
	}

	var consult *usecases.ConsultationRequiredError
	switch {
	case errors.As(err, &consult):
		cat := consult.Categorization
		resp.Categorization = &cat
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, usecases.ErrEmptyDocument):
		return http.StatusBadRequest, resp
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, resp
	}
	return http.StatusInternalServerError, resp
}

// handleListRuns returns the run history, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, http.StatusOK, []entities.RunRecord{})
		return
	}
	records, err := s.runs.List(r.Context(), 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if records == nil {
		records = []entities.RunRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			return
		}
		next.ServeHTTP(w, r)
	})
}
