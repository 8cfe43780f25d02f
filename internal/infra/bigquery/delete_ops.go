package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// documentChildren lists the tables holding rows of a document, deleted
// children first.
var documentChildren = []string{
	transactionsTable,
	receiptLineItemsTable,
	receiptsTable,
	bankStatementsTable,
	layoutOutputsTable,
	parsingRunsTable,
	documentsTable,
}

// DeleteDocument deletes a document and all its related data (transactions,
// statements, receipts, layout outputs, parsing runs). Rows still in the
// streaming buffer cannot be deleted; BigQuery reports that as a job error.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	for _, table := range documentChildren {
		if err := s.deleteByDocument(ctx, table, documentID); err != nil {
			return fmt.Errorf("DeleteDocument: deleting %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) deleteByDocument(ctx context.Context, table, documentID string) error {
	return s.runDML(ctx, "deleteByDocument", fmt.Sprintf(`
		DELETE FROM %s
		WHERE document_id = @document_id
	`, s.table(table)), []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
	})
}
