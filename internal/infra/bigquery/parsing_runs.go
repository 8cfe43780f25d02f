package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// ParsingRunRow is one attempt at processing a document. A run starts
// RUNNING and ends SUCCESS or FAILED; a reparse marks the previous
// successful run SUPERSEDED. Rows written by a run carry its id, so the
// run status decides which transactions, statements and receipts are
// current.
type ParsingRunRow struct {
	ParsingRunID string `bigquery:"parsing_run_id"`
	DocumentID   string `bigquery:"document_id"`

	StartedTS  time.Time              `bigquery:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`

	// ParserType is the layout provider, ParserVersion the pipeline version.
	ParserType    string `bigquery:"parser_type"`
	ParserVersion string `bigquery:"parser_version"`

	Status       string `bigquery:"status"`
	ErrorMessage string `bigquery:"error_message"`

	Metadata bigquery.NullJSON `bigquery:"metadata"`
}
