package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

// InsertTransactions streams the transactions of a parsing run into
// transactions.
func (s *Store) InsertTransactions(ctx context.Context, ref domain.RunRef, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		row, err := TransactionRowFrom(ref, tx, s.currency, now)
		if err != nil {
			return fmt.Errorf("InsertTransactions: %w", err)
		}
		rows = append(rows, row)
	}

	return s.put(ctx, "InsertTransactions", transactionsTable, rows)
}

// ListTransactionsByDocument returns the transactions of the document's
// successful parsing run, in statement order.
func (s *Store) ListTransactionsByDocument(ctx context.Context, documentID string) ([]*TransactionRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_id,
			IFNULL(t.user_id, '') AS user_id,
			IFNULL(t.document_id, '') AS document_id,
			IFNULL(t.parsing_run_id, '') AS parsing_run_id,
			t.statement_id,
			t.transaction_date,
			t.value_date,
			t.amount,
			t.currency,
			t.direction,
			t.raw_description,
			t.merchant,
			t.merchant_key,
			t.category_id,
			t.category_name,
			t.parent_category_id,
			t.confidence,
			t.category_source,
			t.needs_review,
			t.is_split_child,
			t.created_ts,
			t.extra
		FROM %s t
		INNER JOIN %s pr
		  ON t.parsing_run_id = pr.parsing_run_id
		WHERE t.document_id = @document_id
		  AND pr.status = @status
		ORDER BY t.transaction_date, t.created_ts
	`, s.table(transactionsTable), s.table(parsingRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
		{Name: "status", Value: domain.StatusSuccess},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsByDocument: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactionsByDocument: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
