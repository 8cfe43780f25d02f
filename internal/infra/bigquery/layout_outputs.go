package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

type LayoutOutputRow struct {
	OutputID     string `bigquery:"output_id"`      // REQUIRED
	ParsingRunID string `bigquery:"parsing_run_id"` // REQUIRED
	DocumentID   string `bigquery:"document_id"`    // REQUIRED

	Provider string `bigquery:"provider"` // REQUIRED

	RawJSON       bigquery.NullJSON   `bigquery:"raw_json"`       // REQUIRED (JSON)
	ExtractedText bigquery.NullString `bigquery:"extracted_text"` // NULLABLE

	CreatedTS bigquery.NullTimestamp `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
}

// LayoutOutputRowFrom maps an analyzer output to its table row.
func LayoutOutputRowFrom(out domain.LayoutOutput) *LayoutOutputRow {
	return &LayoutOutputRow{
		OutputID:      out.ID,
		ParsingRunID:  out.ParsingRunID,
		DocumentID:    out.DocumentID,
		Provider:      out.Provider,
		RawJSON:       bigquery.NullJSON{JSONVal: string(out.RawJSON), Valid: len(out.RawJSON) > 0},
		ExtractedText: nullString(out.ExtractedText),
		CreatedTS:     bigquery.NullTimestamp{Timestamp: out.CreatedAt, Valid: !out.CreatedAt.IsZero()},
	}
}

// InsertLayoutOutput inserts the raw analyzer output of a parsing run.
// Uses DML INSERT to avoid streaming buffer issues when a document is deleted.
func (s *Store) InsertLayoutOutput(ctx context.Context, out domain.LayoutOutput) error {
	row := LayoutOutputRowFrom(out)
	return s.runDML(ctx, "InsertLayoutOutput", fmt.Sprintf(`
		INSERT INTO %s (
			output_id, parsing_run_id, document_id,
			provider, raw_json, extracted_text, created_ts
		)
		VALUES (
			@output_id, @parsing_run_id, @document_id,
			@provider, PARSE_JSON(@raw_json), @extracted_text,
			COALESCE(@created_ts, CURRENT_TIMESTAMP())
		)
	`, s.table(layoutOutputsTable)), []bigquery.QueryParameter{
		{Name: "output_id", Value: row.OutputID},
		{Name: "parsing_run_id", Value: row.ParsingRunID},
		{Name: "document_id", Value: row.DocumentID},
		{Name: "provider", Value: row.Provider},
		{Name: "raw_json", Value: row.RawJSON.JSONVal},
		{Name: "extracted_text", Value: row.ExtractedText},
		{Name: "created_ts", Value: row.CreatedTS},
	})
}
