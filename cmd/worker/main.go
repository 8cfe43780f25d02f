package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/finance-ingest/internal/app"
	"github.com/dvloznov/finance-ingest/internal/config"
	"github.com/dvloznov/finance-ingest/internal/jobs"
	"github.com/dvloznov/finance-ingest/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ingest/internal/logger"
)

// The worker ingests a batch of gs:// URIs, given as arguments or one per
// line on stdin, through the job queue and exits once every job finished.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	bankHint := flag.String("bank", "", "Bank strategy or \"receipt\" for every file")
	userID := flag.String("user-id", cfg.UserID, "Owner of the ingested records")
	poll := flag.Duration("poll", 500*time.Millisecond, "Job status poll interval")
	flag.Parse()

	log := cfg.Logger()

	uris := flag.Args()
	if len(uris) == 0 {
		uris, err = readURIs(os.Stdin)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read URIs from stdin")
		}
	}
	if len(uris) == 0 {
		log.Fatal().Msg("Usage: worker [-bank NAME] gs://bucket/file.pdf ...")
	}

	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize pipeline")
	}
	defer a.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(inmemory.Config{
		BufferSize: len(uris),
		Workers:    cfg.WorkerCount,
		MaxRetries: cfg.MaxRetries,
	}, jobStore)

	if err := jobQueue.Start(ctx, jobs.NewParseDocumentHandler(a.Ingestor)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Int("files", len(uris)).Int("workers", cfg.WorkerCount).Msg("Starting worker")

	for _, uri := range uris {
		job := &jobs.ParseDocumentJob{GCSURI: uri, BankHint: *bankHint, UserID: *userID}
		if err := jobQueue.PublishParseDocument(ctx, job); err != nil {
			log.Fatal().Err(err).Str("gcs_uri", uri).Msg("Failed to enqueue job")
		}
	}

	finished, err := waitForJobs(ctx, jobStore, len(uris), *poll)
	if err != nil {
		log.Warn().Err(err).Msg("Interrupted before all jobs finished")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	failed := 0
	for _, job := range finished {
		if job.Status == jobs.JobStatusFailed {
			failed++
			fmt.Printf("FAILED  %s: %s\n", job.GCSURI, job.Error)
			continue
		}
		fmt.Printf("OK      %s document=%s transactions=%d\n", job.GCSURI, job.DocumentID, job.TransactionCount)
	}

	log.Info().Int("finished", len(finished)).Int("failed", failed).Msg("Worker exited")
	if failed > 0 || len(finished) < len(uris) {
		os.Exit(1)
	}
}

// readURIs returns the non-empty, non-comment lines of r.
func readURIs(r io.Reader) ([]string, error) {
	var uris []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		uris = append(uris, line)
	}
	return uris, scanner.Err()
}

// waitForJobs polls the store until want jobs reached a terminal status or
// ctx is done, and returns the terminal jobs.
func waitForJobs(ctx context.Context, store jobs.JobStore, want int, every time.Duration) ([]*jobs.ParseDocumentJob, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		all, err := store.ListJobs(ctx, jobs.JobFilter{})
		if err != nil {
			return nil, err
		}
		var finished []*jobs.ParseDocumentJob
		for _, job := range all {
			if job.Status == jobs.JobStatusCompleted || job.Status == jobs.JobStatusFailed {
				finished = append(finished, job)
			}
		}
		if len(finished) >= want {
			return finished, nil
		}

		select {
		case <-ctx.Done():
			return finished, ctx.Err()
		case <-ticker.C:
		}
	}
}
