package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/logger"
)

// ErrDuplicateDocument is returned when a file with the same checksum was
// already ingested.
var ErrDuplicateDocument = errors.New("document already ingested")

// IngestRequest describes one stored file to ingest.
type IngestRequest struct {
	GCSURI   string
	MIMEType string
	BankHint string
	UserID   string
	// DocumentID reuses an existing document row (reparse) instead of
	// creating one.
	DocumentID string
}

// IngestResult identifies what an ingestion produced.
type IngestResult struct {
	DocumentID   string
	ParsingRunID string
	Result       *Result
}

// Ingestor runs the persisted flow: fetch, de-duplicate, record the
// document and its parsing run, process, store the results.
type Ingestor struct {
	processor  *Processor
	repo       Repository
	storage    StorageService
	parserType string
	now        func() time.Time
}

// NewIngestor creates an Ingestor. parserType is recorded on parsing runs
// (the layout provider name).
func NewIngestor(processor *Processor, repo Repository, storage StorageService, parserType string) *Ingestor {
	return &Ingestor{
		processor:  processor,
		repo:       repo,
		storage:    storage,
		parserType: parserType,
		now:        time.Now,
	}
}

// Ingest processes a single document stored in GCS.
// GCSURI should look like: "gs://bucket/path/to/statement.pdf".
func (in *Ingestor) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	log := logger.FromContext(ctx).With().Str("gcs_uri", req.GCSURI).Logger()
	ctx = logger.WithContext(ctx, log)

	// 1. Fetch the file bytes from GCS.
	content, err := in.storage.FetchFromGCS(ctx, req.GCSURI)
	if err != nil {
		return nil, fmt.Errorf("Ingest: fetch: %w", err)
	}
	fileName := in.storage.ExtractFilenameFromGCSURI(req.GCSURI)
	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = MIMETypeFor(fileName)
	}

	// 2. Create the document row unless the file is already known.
	documentID := req.DocumentID
	if documentID == "" {
		documentID, err = in.createDocument(ctx, req, fileName, mimeType, content)
		if err != nil {
			return nil, err
		}
	}

	// 3. Start a parsing run (status=RUNNING).
	parsingRunID, err := in.repo.StartParsingRun(logger.ForRun(ctx, documentID, ""), documentID, in.parserType)
	if err != nil {
		return nil, fmt.Errorf("Ingest: start parsing run: %w", err)
	}
	ctx = logger.ForRun(ctx, documentID, parsingRunID)
	log = logger.FromContext(ctx)

	res, err := in.run(ctx, req, documentID, parsingRunID, fileName, mimeType, content)
	if err != nil {
		in.repo.MarkParsingRunFailed(ctx, parsingRunID, err)
		if uerr := in.repo.UpdateDocumentStatus(ctx, documentID, domain.StatusFailed); uerr != nil {
			log.Warn().Err(uerr).Msg("Failed to update document status")
		}
		return nil, err
	}

	// 8. Mark the parsing run as SUCCESS.
	if err := in.repo.MarkParsingRunSucceeded(ctx, parsingRunID); err != nil {
		return nil, fmt.Errorf("Ingest: mark run succeeded: %w", err)
	}
	if err := in.repo.MarkParsingRunsAsSuperseded(ctx, documentID, parsingRunID); err != nil {
		log.Warn().Err(err).Msg("Failed to supersede previous parsing runs")
	}
	if err := in.repo.UpdateDocumentStatus(ctx, documentID, domain.StatusSuccess); err != nil {
		log.Warn().Err(err).Msg("Failed to update document status")
	}

	log.Info().
		Int("transactions", len(res.Transactions)).
		Str("document_type", string(res.DocumentType)).
		Msg("Document ingested")
	return &IngestResult{DocumentID: documentID, ParsingRunID: parsingRunID, Result: res}, nil
}

// run covers steps 4 to 7; any error fails the parsing run. Inserts are
// append-only and tagged with the run id, so rows written before a failure
// stay behind a FAILED run, which every read excludes by joining on
// successful runs.
func (in *Ingestor) run(ctx context.Context, req IngestRequest, documentID, parsingRunID, fileName, mimeType string, content []byte) (*Result, error) {
	// 4. Process the document.
	res, err := in.processor.ProcessFile(ctx, domain.RawDocument{
		Content:  content,
		MIMEType: mimeType,
		FileName: fileName,
	}, req.BankHint)
	if err != nil {
		return nil, err
	}

	// 5. Store the raw layout output.
	if len(res.LayoutJSON) > 0 {
		if err := in.repo.InsertLayoutOutput(ctx, domain.LayoutOutput{
			ID:           uuid.NewString(),
			ParsingRunID: parsingRunID,
			DocumentID:   documentID,
			Provider:     in.parserType,
			RawJSON:      res.LayoutJSON,
			CreatedAt:    in.now(),
		}); err != nil {
			return nil, fmt.Errorf("Ingest: store layout output: %w", err)
		}
	}

	ref := domain.RunRef{DocumentID: documentID, ParsingRunID: parsingRunID, UserID: userOrDefault(req.UserID)}

	// 6. Insert the aggregate.
	if res.Statement != nil {
		if err := in.repo.InsertBankStatement(ctx, ref, *res.Statement); err != nil {
			return nil, fmt.Errorf("Ingest: insert statement: %w", err)
		}
	}
	if res.Receipt != nil {
		if err := in.repo.InsertReceipt(ctx, ref, *res.Receipt); err != nil {
			return nil, fmt.Errorf("Ingest: insert receipt: %w", err)
		}
	}

	// 7. Insert the transactions.
	if len(res.Transactions) > 0 {
		if err := in.repo.InsertTransactions(ctx, ref, res.Transactions); err != nil {
			return nil, fmt.Errorf("Ingest: insert transactions: %w", err)
		}
	}
	return res, nil
}

// createDocument inserts a row into the documents table for this file.
func (in *Ingestor) createDocument(ctx context.Context, req IngestRequest, fileName, mimeType string, content []byte) (string, error) {
	checksum := Checksum(content)
	existing, err := in.repo.FindDocumentByChecksum(ctx, checksum)
	if err != nil {
		return "", fmt.Errorf("Ingest: checksum lookup: %w", err)
	}
	if existing != nil {
		return "", fmt.Errorf("Ingest: %s matches document %s: %w", fileName, existing.ID, ErrDuplicateDocument)
	}

	doc := domain.Document{
		ID:           uuid.NewString(),
		UserID:       userOrDefault(req.UserID),
		GCSURI:       req.GCSURI,
		Type:         documentTypeFor(req.BankHint),
		SourceSystem: sourceSystemFor(req.BankHint),
		FileName:     fileName,
		MIMEType:     mimeType,
		Checksum:     checksum,
		Status:       domain.StatusPending,
		UploadedAt:   in.now(),
	}
	if err := in.repo.InsertDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("Ingest: insert document: %w", err)
	}
	return doc.ID, nil
}

// Checksum returns the hex SHA-256 of content.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func userOrDefault(userID string) string {
	if userID == "" {
		return DefaultUserID
	}
	return userID
}

func documentTypeFor(hint string) domain.DocumentType {
	if strings.EqualFold(hint, HintReceipt) {
		return domain.DocumentReceipt
	}
	return domain.DocumentBankStatement
}

func sourceSystemFor(hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" || strings.EqualFold(hint, HintReceipt) {
		return DefaultSourceSystem
	}
	return strings.ToUpper(hint)
}
