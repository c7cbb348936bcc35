package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"callinsight-server/pkg/analysis"
	"callinsight-server/pkg/errors"
	"callinsight-server/pkg/metrics"
	"callinsight-server/pkg/version"

	"github.com/sirupsen/logrus"
)

// Config holds the HTTP server configuration
type Config struct {
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	EnableMetrics bool
}

// DefaultConfig returns a server configuration with sane defaults
func DefaultConfig() *Config {
	return &Config{
		Port:          8080,
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  30 * time.Second,
		EnableMetrics: true,
	}
}

// TranscriptAnalyzer runs an analysis for a transcript ID. A nil result with
// a nil error means the transcript does not exist.
type TranscriptAnalyzer interface {
	AnalyzeTranscript(ctx context.Context, transcriptID string) (*analysis.Result, error)
}

// Server exposes health checks, metrics, and the analyze trigger over HTTP.
type Server struct {
	config     *Config
	logger     *logrus.Logger
	httpServer *http.Server
	mux        *http.ServeMux
	analyzer   TranscriptAnalyzer
	startTime  time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(logger *logrus.Logger, config *Config, analyzer TranscriptAnalyzer) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Server{
		config:    config,
		logger:    logger,
		mux:       http.NewServeMux(),
		analyzer:  analyzer,
		startTime: time.Now(),
	}

	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/api/analyze/", s.analyzeHandler)
	if config.EnableMetrics {
		metrics.RegisterHandler(s.mux)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      s.mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.WithField("port", s.config.Port).Info("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler returns the server's route handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": version.Version,
		"uptime":  time.Since(s.startTime).String(),
	})
}

// analyzeHandler triggers a transcript analysis:
// POST /api/analyze/{transcriptID}
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	transcriptID := strings.TrimPrefix(r.URL.Path, "/api/analyze/")
	if transcriptID == "" || strings.Contains(transcriptID, "/") {
		s.writeError(w, http.StatusBadRequest, "missing or invalid transcript ID")
		return
	}

	result, err := s.analyzer.AnalyzeTranscript(r.Context(), transcriptID)
	if err != nil {
		s.logger.WithError(err).WithField("transcript_id", transcriptID).Error("Analysis request failed")
		s.ErrorResponse(w, err)
		return
	}
	if result == nil {
		s.writeError(w, http.StatusNotFound, "transcript not found")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// ErrorResponse writes a structured error as JSON with a matching status code
func (s *Server) ErrorResponse(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsErrorType(err, errors.ErrTranscriptNotFound), errors.IsErrorType(err, errors.ErrNotFound):
		status = http.StatusNotFound
	case errors.IsErrorType(err, errors.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.IsErrorType(err, errors.ErrUnavailable), errors.IsErrorType(err, errors.ErrStorageFailure):
		status = http.StatusServiceUnavailable
	}

	payload := map[string]interface{}{"error": err.Error()}
	if code := errors.GetErrorCode(err); code != "" {
		payload["code"] = code
	}
	s.writeJSON(w, status, payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode HTTP response")
	}
}
