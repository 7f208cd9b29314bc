// Package server exposes the pipeline over HTTP: document upload, status
// polling, corrections, restart, export, plus the internal stage endpoint
// the HTTP dispatch backend posts to.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scanvoice/invoice-pipeline/internal/corrections"
	"github.com/scanvoice/invoice-pipeline/internal/export"
	"github.com/scanvoice/invoice-pipeline/internal/ingest"
	"github.com/scanvoice/invoice-pipeline/internal/pipeline"
	"github.com/scanvoice/invoice-pipeline/internal/repository"
)

// Server wires the HTTP API.
type Server struct {
	addr   string
	logger *slog.Logger

	repo        repository.DocumentRepository
	coordinator *pipeline.Coordinator
	corrections *corrections.Service
	exporter    *export.Service
	ingestor    *ingest.Ingestor

	httpServer *http.Server
}

func New(
	addr string,
	repo repository.DocumentRepository,
	coordinator *pipeline.Coordinator,
	correctionsSvc *corrections.Service,
	exporter *export.Service,
	ingestor *ingest.Ingestor,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:        addr,
		logger:      logger,
		repo:        repo,
		coordinator: coordinator,
		corrections: correctionsSvc,
		exporter:    exporter,
		ingestor:    ingestor,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", s.handleUpload)
		r.Route("/{documentID}", func(r chi.Router) {
			r.Get("/", s.handleGetDocument)
			r.Get("/status", s.handleStatus)
			r.Post("/corrections", s.handleCorrections)
			r.Post("/restart", s.handleRestart)
		})
	})

	r.Get("/companies/{companyID}/export.xlsx", s.handleExport)

	// Stage endpoint for the HTTP dispatch backend. Internal: never expose
	// this route beyond the pipeline host.
	r.Post("/internal/pipeline/stage", s.handleStage)

	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.started", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server.stopped")
	return nil
}
