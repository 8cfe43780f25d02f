package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-ingest/internal/docerrors"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/pipeline"
)

type ingesterFunc func(ctx context.Context, req pipeline.IngestRequest) (*pipeline.IngestResult, error)

func (f ingesterFunc) Ingest(ctx context.Context, req pipeline.IngestRequest) (*pipeline.IngestResult, error) {
	return f(ctx, req)
}

func TestParseDocumentHandler_Success(t *testing.T) {
	var got pipeline.IngestRequest
	handler := NewParseDocumentHandler(ingesterFunc(func(ctx context.Context, req pipeline.IngestRequest) (*pipeline.IngestResult, error) {
		got = req
		return &pipeline.IngestResult{
			DocumentID:   "doc-1",
			ParsingRunID: "run-1",
			Result:       &pipeline.Result{Transactions: make([]domain.Transaction, 3)},
		}, nil
	}))

	job := &ParseDocumentJob{JobID: "job-1", GCSURI: "gs://b/releve.pdf", BankHint: "boursobank", UserID: "u1"}
	require.NoError(t, handler(context.Background(), job))

	assert.Equal(t, "gs://b/releve.pdf", got.GCSURI)
	assert.Equal(t, "boursobank", got.BankHint)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "doc-1", job.DocumentID)
	assert.Equal(t, "run-1", job.ParsingRunID)
	assert.Equal(t, 3, job.TransactionCount)
}

func TestParseDocumentHandler_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{name: "duplicate", err: fmt.Errorf("Ingest: %w", pipeline.ErrDuplicateDocument), permanent: true},
		{name: "validation", err: docerrors.Validation("ValidateDocument", docerrors.ErrEmptyDocument), permanent: true},
		{name: "extract", err: docerrors.Extract("ExtractStep", docerrors.ErrNoTransactions), permanent: true},
		{name: "configuration", err: docerrors.Configuration("ExtractStep", "no analyzer"), permanent: true},
		{name: "analysis", err: docerrors.DocumentAnalysis("Analyze", errors.New("503")), permanent: false},
		{name: "storage", err: errors.New("Ingest: fetch: timeout"), permanent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewParseDocumentHandler(ingesterFunc(func(ctx context.Context, req pipeline.IngestRequest) (*pipeline.IngestResult, error) {
				return nil, tt.err
			}))
			err := handler(context.Background(), &ParseDocumentJob{JobID: "j"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.permanent, IsPermanent(err))
		})
	}
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	base := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", Permanent(base))
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
}
