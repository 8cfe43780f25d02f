package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/docerrors"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/layout"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/metrics"
	"github.com/dvloznov/finance-ingest/internal/readers"
	"github.com/dvloznov/finance-ingest/internal/receipt"
	"github.com/dvloznov/finance-ingest/internal/statement"
)

// PipelineStep represents a single step in the processing pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Document domain.RawDocument
	BankHint string

	Format       Format
	DocumentType domain.DocumentType
	Bank         string

	Layout     *layout.AnalysisResult
	LayoutJSON []byte
	OCRText    string

	Fragments    []statement.Fragment
	Info         statement.Info
	Statement    *domain.BankStatement
	Receipt      *domain.ReceiptData
	Transactions []domain.Transaction
	Warnings     []string

	// results holds the engine output for each transaction; nil means the
	// transaction still needs categorizing.
	results []*domain.CategorizationResult
}

func (s *PipelineState) warnf(format string, args ...interface{}) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// Step 1: ValidateDocumentStep rejects empty and oversized uploads.
type ValidateDocumentStep struct {
	MaxFileSize int64
}

func (s *ValidateDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	size := int64(len(state.Document.Content))
	if size == 0 {
		return docerrors.Validation("ValidateDocument", docerrors.ErrEmptyDocument, docerrors.FieldError{
			Index: -1, Field: "file", Message: "file is empty",
		})
	}
	if s.MaxFileSize > 0 && size > s.MaxFileSize {
		return docerrors.Validation("ValidateDocument", docerrors.ErrFileTooLarge, docerrors.FieldError{
			Index:   -1,
			Field:   "file",
			Message: fmt.Sprintf("file is %d bytes, limit is %d", size, s.MaxFileSize),
		})
	}
	return nil
}

// Step 2: DetectFormatStep routes the document to a reader family.
type DetectFormatStep struct{}

func (s *DetectFormatStep) Execute(ctx context.Context, state *PipelineState) error {
	format, err := DetectFormat(state.Document.MIMEType, state.Document.FileName)
	if err != nil {
		return err
	}
	state.Format = format
	log := logger.FromContext(ctx)
	log.Debug().Str("format", string(format)).Msg("Format detected")
	return nil
}

// Step 3: ExtractStep runs the reader for the detected format.
type ExtractStep struct {
	p *Processor
}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	switch state.Format {
	case FormatCSV:
		res, err := readers.ReadCSV(ctx, state.Document.Content, state.Document.FileName)
		if err != nil {
			return err
		}
		s.useLedger(state, res, "csv")
	case FormatSpreadsheet:
		res, err := readers.ReadWorkbook(ctx, state.Document.Content, state.Document.FileName)
		if err != nil {
			return err
		}
		s.useLedger(state, res, "spreadsheet")
	case FormatImage:
		return s.extractImage(ctx, state)
	case FormatPDF:
		return s.extractPDF(ctx, state)
	default:
		return docerrors.Validation("ExtractStep", docerrors.ErrUnsupportedFormat)
	}
	return nil
}

func (s *ExtractStep) useLedger(state *PipelineState, res *readers.Result, source string) {
	state.DocumentType = domain.DocumentLedger
	state.Fragments = res.Fragments
	for i := range state.Fragments {
		state.Fragments[i].SetMeta(domain.MetaSourceFormat, source)
	}
	if res.Dropped > 0 {
		state.warnf("%d incomplete rows dropped", res.Dropped)
	}
}

// extractImage reads photographed statements line by line. A photo without
// transaction lines but with a printed total is a receipt and goes through
// the layout service.
func (s *ExtractStep) extractImage(ctx context.Context, state *PipelineState) error {
	text, err := s.imageText(ctx, state)
	if err != nil {
		return err
	}
	state.OCRText = text

	if readers.CountTransactionLines(text) == 0 && receipt.HasTotalLine(text) {
		return s.extractReceipt(ctx, state)
	}

	res := readers.ReadText(text)
	if len(res.Fragments) == 0 {
		return docerrors.Extract("ExtractStep.image", docerrors.ErrNoTransactions)
	}
	s.useLedger(state, &res, "image")
	return nil
}

// imageText prefers the local recognizer and falls back to the layout
// service when none is installed.
func (s *ExtractStep) imageText(ctx context.Context, state *PipelineState) (string, error) {
	if s.p.ocr != nil {
		text, err := s.p.ocr.Recognize(ctx, state.Document.Content, state.Document.MIMEType)
		if err != nil {
			return "", fmt.Errorf("ExtractStep.image: %w", err)
		}
		return text, nil
	}
	if err := s.analyze(ctx, state); err != nil {
		return "", err
	}
	return strings.Join(state.Layout.AllLines(), "\n"), nil
}

func (s *ExtractStep) extractPDF(ctx context.Context, state *PipelineState) error {
	if err := s.analyze(ctx, state); err != nil {
		return err
	}
	if strings.EqualFold(strings.TrimSpace(state.BankHint), HintReceipt) {
		return s.extractReceipt(ctx, state)
	}

	strategy := s.p.strategies.Select(state.Layout, state.BankHint)
	ext, err := strategy.Extract(ctx, state.Layout)
	if err != nil {
		return err
	}
	stmt := ext.Statement
	state.DocumentType = domain.DocumentBankStatement
	state.Bank = strategy.Name()
	state.Fragments = ext.Fragments
	state.Info = ext.Info
	state.Statement = &stmt
	state.Warnings = append(state.Warnings, ext.Warnings...)
	if ext.Dropped > 0 {
		state.warnf("%d incomplete rows dropped", ext.Dropped)
	}
	for i := range state.Fragments {
		state.Fragments[i].SetMeta(domain.MetaSourceFormat, string(FormatPDF))
	}
	return nil
}

func (s *ExtractStep) extractReceipt(ctx context.Context, state *PipelineState) error {
	if state.Layout == nil {
		if err := s.analyze(ctx, state); err != nil {
			return err
		}
	}
	rcpt, err := s.p.receipts.Extract(ctx, state.Layout)
	if err != nil {
		return err
	}
	state.DocumentType = domain.DocumentReceipt
	state.Receipt = rcpt
	state.Warnings = append(state.Warnings, rcpt.Validation.Warnings...)
	return nil
}

// analyze calls the layout service once per document and keeps its raw
// output for storage.
func (s *ExtractStep) analyze(ctx context.Context, state *PipelineState) error {
	if state.Layout != nil {
		return nil
	}
	if s.p.layout == nil {
		return docerrors.Configuration("ExtractStep", "no layout analyzer configured")
	}
	result, err := s.p.layout.Analyze(ctx, state.Document.Content, state.Document.MIMEType)
	if err != nil {
		return err
	}
	if !result.HasContent() {
		return docerrors.Extract("ExtractStep", docerrors.ErrNoPages)
	}
	state.Layout = result
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("ExtractStep: marshal layout: %w", err)
	}
	state.LayoutJSON = raw
	return nil
}

// Step 4: SplitStep separates compound card + transfer lines.
type SplitStep struct {
	Splitter *statement.Splitter
}

func (s *SplitStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Fragments) == 0 {
		return nil
	}
	out, err := s.Splitter.Split(ctx, state.Fragments)
	if err != nil {
		return fmt.Errorf("SplitStep: %w", err)
	}
	state.Fragments = out
	return nil
}

// Step 5: NormalizeStep turns fragments into transactions.
type NormalizeStep struct {
	p *Processor
}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	now := s.p.now()
	state.Transactions = make([]domain.Transaction, 0, len(state.Fragments))
	state.results = make([]*domain.CategorizationResult, 0, len(state.Fragments))
	for _, f := range state.Fragments {
		tx := normalizeFragment(f, now)
		if state.Bank != "" {
			tx.SetMeta(domain.MetaBank, state.Bank)
		}
		state.Transactions = append(state.Transactions, tx)
		state.results = append(state.results, f.Result)
	}
	state.Fragments = nil
	return nil
}

// Step 6: CategorizeStep runs the category engine on every transaction not
// categorized yet.
type CategorizeStep struct {
	Categorizer categorize.Categorizer
}

func (s *CategorizeStep) Execute(ctx context.Context, state *PipelineState) error {
	for i := range state.Transactions {
		tx := &state.Transactions[i]
		res := state.results[i]
		if res == nil && tx.CategoryID != "" {
			// Category given by the ledger itself.
			setConfidence(tx, 1.0)
			continue
		}
		if res == nil {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("CategorizeStep: %w", err)
			}
			r := s.Categorizer.Categorize(ctx, tx.Description, tx.Amount)
			res = &r
		}
		applyCategory(tx, *res)
	}
	state.results = nil
	return nil
}

// Step 7: ValidateTransactionsStep drops rows that cannot be stored.
type ValidateTransactionsStep struct {
	Validator *TransactionValidator
}

func (s *ValidateTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.DocumentType == domain.DocumentReceipt {
		return nil
	}
	valid, warnings := s.Validator.Filter(state.Transactions)
	state.Warnings = append(state.Warnings, warnings...)
	if dropped := len(state.Transactions) - len(valid); dropped > 0 {
		metrics.FragmentDropped("validation", dropped)
		log := logger.FromContext(ctx)
		log.Warn().Int("dropped", dropped).Msg("Invalid transactions dropped")
	}
	if len(valid) == 0 {
		return docerrors.Extract("ValidateTransactions", docerrors.ErrNoTransactions)
	}
	state.Transactions = valid
	return nil
}

// Step 8: BuildStatementStep completes the statement aggregate and links
// every transaction to it.
type BuildStatementStep struct{}

func (s *BuildStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Statement == nil {
		return nil
	}
	warnings := statement.Summarize(state.Statement, state.Info, state.Transactions)
	state.Warnings = append(state.Warnings, warnings...)
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
