// Package pipeline turns an uploaded document into categorized
// transactions, a bank statement aggregate or a receipt.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/docerrors"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/layout"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/metrics"
	"github.com/dvloznov/finance-ingest/internal/ocr"
	"github.com/dvloznov/finance-ingest/internal/receipt"
	"github.com/dvloznov/finance-ingest/internal/statement"
)

// Deps are the collaborators of a Processor. Layout and OCR may be nil:
// documents that need them then fail with a configuration error, except
// images, which fall back from OCR to the layout service.
type Deps struct {
	Layout      layout.Analyzer
	OCR         ocr.Recognizer
	Categorizer categorize.Categorizer
	Strategies  *statement.Registry
	MaxFileSize int64
	Now         func() time.Time
}

// Result is the outcome of processing one document.
type Result struct {
	Format       Format                `json:"format"`
	DocumentType domain.DocumentType   `json:"document_type"`
	Bank         string                `json:"bank,omitempty"`
	Transactions []domain.Transaction  `json:"transactions"`
	Statement    *domain.BankStatement `json:"statement,omitempty"`
	Receipt      *domain.ReceiptData   `json:"receipt,omitempty"`
	Warnings     []string              `json:"warnings"`
	LayoutJSON   []byte                `json:"-"`
}

// Processor runs documents through the processing pipeline. It is safe for
// concurrent use.
type Processor struct {
	layout      layout.Analyzer
	ocr         ocr.Recognizer
	categorizer categorize.Categorizer
	strategies  *statement.Registry
	splitter    *statement.Splitter
	receipts    *receipt.Extractor
	validator   *TransactionValidator
	maxFileSize int64
	now         func() time.Time
}

// NewProcessor fills unset dependencies with defaults: the default category
// engine, the built-in bank strategies and DefaultMaxFileSize.
func NewProcessor(d Deps) *Processor {
	if d.Categorizer == nil {
		d.Categorizer = categorize.NewEngine()
	}
	if d.Strategies == nil {
		d.Strategies = statement.DefaultRegistry()
	}
	if d.MaxFileSize <= 0 {
		d.MaxFileSize = DefaultMaxFileSize
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Processor{
		layout:      d.Layout,
		ocr:         d.OCR,
		categorizer: d.Categorizer,
		strategies:  d.Strategies,
		splitter:    statement.NewSplitter(d.Categorizer),
		receipts:    receipt.NewExtractor(d.Categorizer, d.Now),
		validator:   NewTransactionValidator(d.Now),
		maxFileSize: d.MaxFileSize,
		now:         d.Now,
	}
}

// NewProcessingPipeline creates the standard 8-step pipeline for processing
// one document.
func (p *Processor) NewProcessingPipeline() *Pipeline {
	return NewPipeline(
		&ValidateDocumentStep{MaxFileSize: p.maxFileSize},
		&DetectFormatStep{},
		&ExtractStep{p: p},
		&SplitStep{Splitter: p.splitter},
		&NormalizeStep{p: p},
		&CategorizeStep{Categorizer: p.categorizer},
		&ValidateTransactionsStep{Validator: p.validator},
		&BuildStatementStep{},
	)
}

// ProcessFile extracts, normalizes and categorizes the transactions of doc.
// bankHint forces a bank strategy by name; "receipt" routes a PDF to the
// receipt extractor. Fatal failures are docerrors values.
func (p *Processor) ProcessFile(ctx context.Context, doc domain.RawDocument, bankHint string) (*Result, error) {
	ctx = logger.ForDocument(ctx, doc.FileName, doc.MIMEType)
	log := logger.FromContext(ctx)
	start := time.Now()

	state := &PipelineState{Document: doc, BankHint: bankHint}
	err := p.NewProcessingPipeline().Execute(ctx, state)

	format := string(state.Format)
	if format == "" {
		format = "unknown"
	}
	if err != nil {
		metrics.DocumentProcessed(format, failureStatus(err), time.Since(start))
		log.Error().Err(err).Str("format", format).Msg("Document processing failed")
		return nil, err
	}
	metrics.DocumentProcessed(format, "success", time.Since(start))

	res := &Result{
		Format:       state.Format,
		DocumentType: state.DocumentType,
		Bank:         state.Bank,
		Transactions: state.Transactions,
		Statement:    state.Statement,
		Receipt:      state.Receipt,
		Warnings:     state.Warnings,
		LayoutJSON:   state.LayoutJSON,
	}
	if res.Transactions == nil {
		res.Transactions = []domain.Transaction{}
	}
	if res.Warnings == nil {
		res.Warnings = []string{}
	}

	log.Info().
		Str("format", format).
		Str("document_type", string(res.DocumentType)).
		Str("bank", res.Bank).
		Int("transactions", len(res.Transactions)).
		Int("warnings", len(res.Warnings)).
		Dur("duration", time.Since(start)).
		Msg("Document processed")
	return res, nil
}

// failureStatus labels a failed run by error kind.
func failureStatus(err error) string {
	if k := docerrors.KindOf(err); k != "" {
		return strings.ToLower(string(k))
	}
	return "error"
}
