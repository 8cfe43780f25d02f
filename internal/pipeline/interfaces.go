package pipeline

import (
	"context"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

// StorageService is an interface for storage operations.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURI(uri string) string
}

// Repository persists documents, parsing runs and their results.
// This interface enables mocking the BigQuery store in tests.
type Repository interface {
	FindDocumentByChecksum(ctx context.Context, checksum string) (*domain.Document, error)
	InsertDocument(ctx context.Context, doc domain.Document) error
	UpdateDocumentStatus(ctx context.Context, documentID, status string) error

	StartParsingRun(ctx context.Context, documentID, parserType string) (string, error)
	MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error)
	MarkParsingRunSucceeded(ctx context.Context, parsingRunID string) error
	MarkParsingRunsAsSuperseded(ctx context.Context, documentID, keepRunID string) error

	InsertLayoutOutput(ctx context.Context, out domain.LayoutOutput) error
	InsertTransactions(ctx context.Context, ref domain.RunRef, txs []domain.Transaction) error
	InsertBankStatement(ctx context.Context, ref domain.RunRef, stmt domain.BankStatement) error
	InsertReceipt(ctx context.Context, ref domain.RunRef, rcpt domain.ReceiptData) error
}
