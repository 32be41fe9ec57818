// Package server exposes the scan pipeline over HTTP: synchronous
// multipart uploads, an asynchronous directory-ingest flow with
// completion callbacks, stored-result endpoints and a WebSocket
// progress stream.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quill-ocr/quill/internal/config"
	"github.com/quill-ocr/quill/internal/pipeline"
	"github.com/quill-ocr/quill/internal/queue"
	"github.com/quill-ocr/quill/internal/storage"
)

// scanProcessor is what the handlers need from a pipeline.
type scanProcessor interface {
	ProcessScan(ctx context.Context, req pipeline.ScanRequest) (*pipeline.ProcessResult, error)
}

// scanEnqueuer hands ingested scans to the task queue.
type scanEnqueuer interface {
	EnqueueScan(ctx context.Context, t queue.ScanTask) (string, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	processor   scanProcessor
	store       *storage.Store
	enqueuer    scanEnqueuer
	callback    *CallbackClient
	hub         *Hub
	limiter     *RateLimiter
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	version     string
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int

	// RateLimitPerMin bounds requests per client IP; 0 disables
	// rate limiting.
	RateLimitPerMin int

	// Callback configures delivery retries for ingest completion
	// callbacks.
	Callback config.CallbackConfig

	// Pipeline processes uploads and locally ingested scans.
	Pipeline *pipeline.Pipeline

	// Store backs the stored-result endpoints.
	Store *storage.Store

	// Enqueuer, when set, routes ingested scans through the task queue
	// instead of processing them in this process.
	Enqueuer *queue.Enqueuer

	// Version is reported by the health endpoint.
	Version string
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// AcceptedResponse acknowledges an asynchronous ingest request.
type AcceptedResponse struct {
	Status string `json:"status"`
	Scans  int    `json:"scans,omitempty"`
}

// ErrorResponse carries an error message to the client.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a scan processing server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("server: pipeline is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("server: storage is required")
	}

	s := &Server{
		processor:   cfg.Pipeline,
		store:       cfg.Store,
		callback:    NewCallbackClient(cfg.Callback),
		hub:         NewHub(),
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		timeoutSec:  cfg.TimeoutSec,
		version:     cfg.Version,
	}
	if cfg.Enqueuer != nil {
		s.enqueuer = cfg.Enqueuer
	}
	if cfg.RateLimitPerMin > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimitPerMin)
	}
	return s, nil
}

// Hub returns the WebSocket progress hub, so callers can broadcast
// events from outside the HTTP handlers.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close releases server resources.
func (s *Server) Close() error {
	s.hub.CloseAll()
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.corsMiddleware(s.rateLimitMiddleware(s.rootHandler)))
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/process", s.corsMiddleware(s.rateLimitMiddleware(s.processHandler)))
	mux.HandleFunc("/results/", s.corsMiddleware(s.rateLimitMiddleware(s.resultsHandler)))
	mux.HandleFunc("/ws", s.wsHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// rootHandler mirrors the process endpoint's asynchronous GET flow on
// the server root, which legacy ingest triggers call.
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.ingestHandler(w, r)
}
