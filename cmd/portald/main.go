package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/murphyws/finance-portal/internal/config"
	"github.com/murphyws/finance-portal/internal/export"
	"github.com/murphyws/finance-portal/internal/llm"
	"github.com/murphyws/finance-portal/internal/llm/anthropic"
	"github.com/murphyws/finance-portal/internal/manus"
	"github.com/murphyws/finance-portal/internal/pipeline"
	"github.com/murphyws/finance-portal/internal/report"
	"github.com/murphyws/finance-portal/internal/repository"
	"github.com/murphyws/finance-portal/internal/server"
	"github.com/murphyws/finance-portal/internal/services/upload"
	"github.com/murphyws/finance-portal/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, db, err := repository.Open(ctx, repository.Config{
		URI:           cfg.MongoURI,
		Database:      cfg.MongoDBName,
		HealthTimeout: 3 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		repository.Close(shutdownCtx, client, logger)
	}()

	if err := repository.HealthCheck(ctx, client, 3*time.Second, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}

	docs := repository.NewDocumentRepository(db, logger)
	tasks := repository.NewTaskRepository(db, logger)

	primary, err := storage.NewGridFSStore(db, logger)
	if err != nil {
		logger.Error("primary storage init failed", "error", err)
		os.Exit(1)
	}

	var secondary storage.SecondaryStore
	if cfg.SupabaseConfigured() {
		secondary = storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket, logger)
		logger.Info("secondary storage enabled", "bucket", cfg.SupabaseBucket)
	} else {
		logger.Warn("secondary storage not configured; uploads use primary storage only")
	}

	var taskSvc manus.TaskService
	if cfg.ManusConfigured() {
		taskSvc = manus.NewClient(cfg.ManusBaseURL, cfg.ManusAPIKey, logger)
		logger.Info("task service enabled")
	} else {
		logger.Warn("task service not configured; uploads will not be handed off")
	}

	var extractor llm.Extractor
	if cfg.AnthropicAPIKey != "" {
		extractor = anthropic.NewClient(anthropic.Config{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			Timeout: cfg.RequestTimeout,
		}, logger)
	} else {
		logger.Warn("anthropic not configured; reprocessing will fail at extraction")
	}

	uploads := upload.NewService(docs, tasks, primary, secondary, taskSvc, logger)
	processor := pipeline.NewProcessor(docs, primary, secondary, extractor, cfg.BatchLimit, logger)
	reports := report.NewService(docs, logger)
	exports := export.NewService(logger)

	router := server.NewRouter(server.Handlers{
		Documents: server.NewDocumentsHandler(uploads, docs, primary, logger),
		Reprocess: server.NewReprocessHandler(processor, logger),
		Reports:   server.NewReportsHandler(reports, exports, logger),
		Debug:     server.NewDebugHandler(cfg, client, secondary, logger),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http serving", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	logger.Info("stopped")
}
