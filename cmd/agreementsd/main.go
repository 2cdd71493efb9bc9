package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/cardwatch/agreements-tracker/internal/common"
	"github.com/cardwatch/agreements-tracker/internal/export"
	"github.com/cardwatch/agreements-tracker/internal/extract"
	"github.com/cardwatch/agreements-tracker/internal/llm"
	"github.com/cardwatch/agreements-tracker/internal/llm/openai"
	"github.com/cardwatch/agreements-tracker/internal/pipeline"
	"github.com/cardwatch/agreements-tracker/internal/progress"
	"github.com/cardwatch/agreements-tracker/internal/repository"
	"github.com/cardwatch/agreements-tracker/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Root context: cancelled on SIGINT/SIGTERM so in-flight batches and the
	// HTTP server shut down together.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := repository.Open(cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := repository.Migrate(db, dialect); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	repo := repository.NewSQLRepository(db, dialect, logger)
	registry := progress.NewMemoryRegistry(cfg.Server.RetentionWindow)

	extractor := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	fields := llm.WithRetry(extractor, cfg.LLM.RetryAttempts, cfg.LLM.RetryBackoff, logger)

	orch := pipeline.NewOrchestrator(
		logger,
		pipeline.Config{
			ExtractDir:    cfg.Batch.ExtractDir,
			UploadDir:     cfg.Server.UploadDir,
			YieldInterval: cfg.Batch.YieldInterval,
		},
		registry,
		extract.NewPDFExtractor(logger),
		fields,
		repo,
	)

	srv := server.New(
		logger,
		server.Config{
			UploadDir:       cfg.Server.UploadDir,
			MaxUploadBytes:  cfg.Server.MaxUploadBytes,
			RetentionWindow: cfg.Server.RetentionWindow,
		},
		registry,
		repo,
		export.NewService(repo, logger),
		orch,
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		srv.RunJanitor(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
