// Package app builds the components shared by the commands from a Config.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/config"
	"github.com/dvloznov/finance-ingest/internal/gcsuploader"
	infraBQ "github.com/dvloznov/finance-ingest/internal/infra/bigquery"
	"github.com/dvloznov/finance-ingest/internal/layout"
	"github.com/dvloznov/finance-ingest/internal/ocr"
	"github.com/dvloznov/finance-ingest/internal/pipeline"
)

// App holds the wired pipeline. Store, Storage and Ingestor are nil when
// built without cloud access.
type App struct {
	Config    *config.Config
	Log       zerolog.Logger
	Processor *pipeline.Processor
	Store     *infraBQ.Store
	Storage   *gcsuploader.Storage
	Ingestor  *pipeline.Ingestor
}

// NewLayoutAnalyzer returns the analyzer selected by LAYOUT_PROVIDER.
func NewLayoutAnalyzer(ctx context.Context, cfg *config.Config) (layout.Analyzer, error) {
	switch cfg.LayoutProvider {
	case config.ProviderPDFText:
		return layout.NewPDFTextAnalyzer(), nil
	default:
		analyzer, err := layout.NewGeminiAnalyzer(ctx, cfg.GeminiAPIKey,
			layout.WithModel(cfg.LayoutModel),
			layout.WithPollInterval(cfg.LayoutPollInterval),
		)
		if err != nil {
			return nil, err
		}
		return analyzer, nil
	}
}

// NewLocal wires a processor that needs no cloud project. A Gemini
// analyzer without an API key is left out: PDFs then fail with a
// configuration error while CSV, Excel and images still work.
func NewLocal(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	analyzer, err := NewLayoutAnalyzer(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.LayoutProvider).Msg("Layout analyzer disabled")
		analyzer = nil
	}

	engine := categorize.NewEngine(
		categorize.WithTransferRecipients(cfg.TransferRecipients),
		categorize.WithLogger(log),
	)

	return &App{
		Config:    cfg,
		Log:       log,
		Processor: newProcessor(cfg, analyzer, engine),
	}, nil
}

// New wires the full ingestion flow against BigQuery and GCS. The category
// engine consults stored transactions for its historical tier.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.RequireCloud(); err != nil {
		return nil, err
	}

	analyzer, err := NewLayoutAnalyzer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("app: layout analyzer: %w", err)
	}

	store, err := infraBQ.NewStore(ctx, cfg.ProjectID, cfg.Dataset, cfg.DefaultCurrency)
	if err != nil {
		return nil, fmt.Errorf("app: bigquery store: %w", err)
	}

	storage, err := gcsuploader.NewStorage(ctx, cfg.Bucket)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("app: gcs storage: %w", err)
	}

	engine := categorize.NewEngine(
		categorize.WithHistoricalStore(store),
		categorize.WithTransferRecipients(cfg.TransferRecipients),
		categorize.WithLogger(log),
	)
	processor := newProcessor(cfg, analyzer, engine)

	return &App{
		Config:    cfg,
		Log:       log,
		Processor: processor,
		Store:     store,
		Storage:   storage,
		Ingestor:  pipeline.NewIngestor(processor, store, storage, cfg.LayoutProvider),
	}, nil
}

func newProcessor(cfg *config.Config, analyzer layout.Analyzer, engine *categorize.Engine) *pipeline.Processor {
	return pipeline.NewProcessor(pipeline.Deps{
		Layout: analyzer,
		OCR: ocr.NewTesseractRecognizer(
			ocr.WithBinary(cfg.TesseractPath),
			ocr.WithLanguage(cfg.OCRLanguage),
		),
		Categorizer: engine,
		MaxFileSize: cfg.MaxFileSize,
	})
}

// Close releases the cloud clients.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("Failed to close BigQuery client")
		}
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("Failed to close GCS client")
		}
	}
}
