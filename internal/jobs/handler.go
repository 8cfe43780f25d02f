package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-ingest/internal/docerrors"
	"github.com/dvloznov/finance-ingest/internal/pipeline"
)

// Ingester runs the persisted ingestion of one stored document.
type Ingester interface {
	Ingest(ctx context.Context, req pipeline.IngestRequest) (*pipeline.IngestResult, error)
}

// NewParseDocumentHandler returns the handler that ingests parse jobs.
// Duplicates and document errors other than analysis failures are
// permanent; the layout service may succeed on a later attempt.
func NewParseDocumentHandler(ingester Ingester) JobHandler {
	return func(ctx context.Context, job Job) error {
		pj, ok := job.(*ParseDocumentJob)
		if !ok {
			return Permanent(fmt.Errorf("parse handler: unexpected job type %s", job.GetType()))
		}

		res, err := ingester.Ingest(ctx, pipeline.IngestRequest{
			GCSURI:     pj.GCSURI,
			MIMEType:   pj.MIMEType,
			BankHint:   pj.BankHint,
			UserID:     pj.UserID,
			DocumentID: pj.DocumentID,
		})
		if err != nil {
			if isPermanent(err) {
				return Permanent(err)
			}
			return err
		}

		pj.DocumentID = res.DocumentID
		pj.ParsingRunID = res.ParsingRunID
		if res.Result != nil {
			pj.TransactionCount = len(res.Result.Transactions)
		}
		return nil
	}
}

func isPermanent(err error) bool {
	if errors.Is(err, pipeline.ErrDuplicateDocument) {
		return true
	}
	switch docerrors.KindOf(err) {
	case docerrors.KindValidation, docerrors.KindExtract, docerrors.KindConfiguration:
		return true
	}
	return false
}
