// Package bigquery persists ingested documents, parsing runs and their
// results in BigQuery, and serves historical category matches back to the
// category engine.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/pipeline"
)

const (
	documentsTable        = "documents"
	parsingRunsTable      = "parsing_runs"
	layoutOutputsTable    = "layout_outputs"
	transactionsTable     = "transactions"
	bankStatementsTable   = "bank_statements"
	receiptsTable         = "receipts"
	receiptLineItemsTable = "receipt_line_items"
	categoriesTable       = "categories"

	dateFormat = "2006-01-02"
)

var (
	_ pipeline.Repository             = (*Store)(nil)
	_ categorize.HistoricalMatchStore = (*Store)(nil)
)

// Store is the BigQuery implementation of the ingestion repository. It holds
// a shared BigQuery client to avoid creating a new connection for each
// operation.
type Store struct {
	client   *bigquery.Client
	project  string
	dataset  string
	currency string
}

// NewStore creates a Store with its own client. currency is written on
// every stored amount.
func NewStore(ctx context.Context, projectID, dataset, currency string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return NewStoreWithClient(client, dataset, currency), nil
}

// NewStoreWithClient creates a Store around an existing client.
func NewStoreWithClient(client *bigquery.Client, dataset, currency string) *Store {
	if currency == "" {
		currency = "EUR"
	}
	return &Store{
		client:   client,
		project:  client.Project(),
		dataset:  dataset,
		currency: currency,
	}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// table returns the fully qualified, quoted name of a table.
func (s *Store) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.project, s.dataset, name)
}

// runDML runs a parameterized DML statement and waits for it to complete.
// op prefixes every returned error.
func (s *Store) runDML(ctx context.Context, op, sql string, params []bigquery.QueryParameter) error {
	q := s.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: running query: %w", op, err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", op, err)
	}

	return nil
}

// put streams rows into a table. Streamed rows cannot be updated or deleted
// until they leave the streaming buffer, so only append-only tables use it.
func (s *Store) put(ctx context.Context, op, table string, rows interface{}) error {
	inserter := s.client.Dataset(s.dataset).Table(table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("%s: inserting rows: %w", op, err)
	}
	return nil
}
