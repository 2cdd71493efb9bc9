package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cardwatch/agreements-tracker/internal/export"
	"github.com/cardwatch/agreements-tracker/internal/pipeline"
	"github.com/cardwatch/agreements-tracker/internal/progress"
	"github.com/cardwatch/agreements-tracker/internal/repository"
)

// BatchRunner abstracts the orchestrator so handlers can be tested with a
// stub.
type BatchRunner interface {
	Run(ctx context.Context, req pipeline.BatchRequest)
}

// Config holds the HTTP surface's knobs.
type Config struct {
	UploadDir       string
	MaxUploadBytes  int64
	RetentionWindow time.Duration
}

type Server struct {
	logger   *slog.Logger
	cfg      Config
	registry progress.Registry
	repo     repository.AgreementRepository
	exporter *export.Service
	runner   BatchRunner
}

func New(
	logger *slog.Logger,
	cfg Config,
	registry progress.Registry,
	repo repository.AgreementRepository,
	exporter *export.Service,
	runner BatchRunner,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 200 << 20
	}
	if cfg.RetentionWindow <= 0 {
		cfg.RetentionWindow = 5 * time.Minute
	}
	return &Server{
		logger:   logger,
		cfg:      cfg,
		registry: registry,
		repo:     repo,
		exporter: exporter,
		runner:   runner,
	}
}

// Router wires the upload, progress-subscription, data, and export routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/upload", s.handleUpload)
	r.Get("/progress/{uploadID}", s.handleProgress)
	r.Get("/data", s.handleData)
	r.Get("/export", s.handleExport)
	return r
}

// RunJanitor periodically evicts terminal jobs whose retention window passed
// without any subscriber observing them to completion.
func (s *Server) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range s.registry.ListExpired(time.Now()) {
				s.logger.Info("janitor.evict", "job_id", id)
				s.registry.Delete(id)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"error": fmt.Sprintf(format, args...),
	})
}
