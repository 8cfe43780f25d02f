package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-ingest/internal/api"
	"github.com/dvloznov/finance-ingest/internal/api/handlers"
	"github.com/dvloznov/finance-ingest/internal/app"
	"github.com/dvloznov/finance-ingest/internal/config"
	"github.com/dvloznov/finance-ingest/internal/gcsuploader"
	"github.com/dvloznov/finance-ingest/internal/jobs"
	"github.com/dvloznov/finance-ingest/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ingest/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	port := flag.String("port", cfg.HTTPPort, "HTTP server port")
	flag.Parse()

	log := cfg.Logger()
	ctx := logger.WithContext(context.Background(), log)

	// Without a cloud project the API still processes files synchronously;
	// uploads and listings answer 503.
	var (
		a        *app.App
		docs     handlers.DocumentLister
		uploader handlers.Uploader
	)
	if cloudErr := cfg.RequireCloud(); cloudErr != nil {
		log.Warn().Err(cloudErr).Msg("Cloud storage not configured - document uploads will be disabled")
		a, err = app.NewLocal(ctx, cfg, log)
	} else {
		a, err = app.New(ctx, cfg, log)
		if err == nil {
			docs, uploader = a.Store, a.Storage
		}
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize pipeline")
	}
	defer a.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(inmemory.Config{
		BufferSize: cfg.QueueSize,
		Workers:    cfg.WorkerCount,
		MaxRetries: cfg.MaxRetries,
	}, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	handler := func(ctx context.Context, job jobs.Job) error {
		return jobs.Permanent(cfg.RequireCloud())
	}
	if a.Ingestor != nil {
		handler = jobs.NewParseDocumentHandler(a.Ingestor)
	}
	if err := jobQueue.Start(workerCtx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}
	log.Info().Int("workers", cfg.WorkerCount).Msg("Job workers started")

	h := api.NewHandlers(docs, uploader, a.Processor, jobQueue, jobStore, cfg.MaxFileSize, gcsuploader.ObjectName)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      api.NewRouter(h, log),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("layout_provider", cfg.LayoutProvider).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
