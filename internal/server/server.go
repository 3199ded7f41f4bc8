// Package server provides the HTTP API for pdfqa.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"pdfqa/internal/config"
	"pdfqa/internal/domain"
	"pdfqa/internal/service"
)

// Pipeline is the subset of the pipeline the API drives.
type Pipeline interface {
	IngestBytes(ctx context.Context, name string, content []byte, progress service.ProgressFunc) (*domain.IngestReport, error)
	Answer(ctx context.Context, query string, topK int) (*domain.Answer, error)
}

// Server is the HTTP server for the pdfqa API.
type Server struct {
	pipeline Pipeline
	config   *config.ServerConfig
	topK     int
	logger   *zap.Logger
	jobs     *jobTable
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(pipeline Pipeline, cfg *config.ServerConfig, topK int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		pipeline: pipeline,
		config:   cfg,
		topK:     topK,
		logger:   logger,
		jobs:     newJobTable(),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Post("/api/v1/documents", s.handleUpload)
	r.Get("/api/v1/jobs/{id}", s.handleGetJob)
	r.Delete("/api/v1/jobs/{id}", s.handleCancelJob)
	r.With(middleware.Timeout(2*time.Minute)).Post("/api/v1/ask", s.handleAsk)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop cancels running ingestion jobs and gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.jobs.cancelAll()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
