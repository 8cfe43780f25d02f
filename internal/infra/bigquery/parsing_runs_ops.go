package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/pipeline"
)

const maxErrorMessageLen = 2000

// StartParsingRun inserts a new row into parsing_runs with status=RUNNING
// and returns the generated parsing_run_id.
func (s *Store) StartParsingRun(ctx context.Context, documentID, parserType string) (string, error) {
	parsingRunID := uuid.NewString()

	err := s.runDML(ctx, "StartParsingRun", startParsingRunSQL(s.table(parsingRunsTable)), []bigquery.QueryParameter{
		{Name: "parsing_run_id", Value: parsingRunID},
		{Name: "document_id", Value: documentID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "parser_type", Value: parserType},
		{Name: "parser_version", Value: pipeline.ParserVersion},
		{Name: "status", Value: domain.StatusRunning},
	})
	if err != nil {
		return "", err
	}

	return parsingRunID, nil
}

func startParsingRunSQL(table string) string {
	return fmt.Sprintf(`
		INSERT %s (
			parsing_run_id,
			document_id,
			started_ts,
			parser_type,
			parser_version,
			status
		)
		VALUES (
			@parsing_run_id,
			@document_id,
			@started_ts,
			@parser_type,
			@parser_version,
			@status
		)
	`, table)
}

// MarkParsingRunFailed sets status=FAILED, finished_ts and error_message.
// Failures are logged, not returned: the caller is already handling an error.
func (s *Store) MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error) {
	log := logger.FromContext(ctx)

	err := s.runDML(ctx, "MarkParsingRunFailed", fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE parsing_run_id = @parsing_run_id
	`, s.table(parsingRunsTable)), []bigquery.QueryParameter{
		{Name: "status", Value: domain.StatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: truncateError(parseErr)},
		{Name: "parsing_run_id", Value: parsingRunID},
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("parsing_run_id", parsingRunID).
			Msg("MarkParsingRunFailed: update failed")
	}
}

// MarkParsingRunSucceeded sets status=SUCCESS and finished_ts, clears error_message.
func (s *Store) MarkParsingRunSucceeded(ctx context.Context, parsingRunID string) error {
	return s.runDML(ctx, "MarkParsingRunSucceeded", fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = ""
		WHERE parsing_run_id = @parsing_run_id
	`, s.table(parsingRunsTable)), []bigquery.QueryParameter{
		{Name: "status", Value: domain.StatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "parsing_run_id", Value: parsingRunID},
	})
}

// MarkParsingRunsAsSuperseded marks every successful run of the document
// other than keepRunID as SUPERSEDED, so queries joining on successful runs
// only see the latest parse.
func (s *Store) MarkParsingRunsAsSuperseded(ctx context.Context, documentID, keepRunID string) error {
	return s.runDML(ctx, "MarkParsingRunsAsSuperseded", fmt.Sprintf(`
		UPDATE %s
		SET status = @superseded
		WHERE document_id = @document_id
		  AND parsing_run_id != @keep_run_id
		  AND status = @success
	`, s.table(parsingRunsTable)), []bigquery.QueryParameter{
		{Name: "superseded", Value: domain.StatusSuperseded},
		{Name: "document_id", Value: documentID},
		{Name: "keep_run_id", Value: keepRunID},
		{Name: "success", Value: domain.StatusSuccess},
	})
}

// ListParsingRuns returns the runs of a document, newest first.
func (s *Store) ListParsingRuns(ctx context.Context, documentID string) ([]ParsingRunRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			parsing_run_id,
			document_id,
			started_ts,
			finished_ts,
			IFNULL(parser_type, '') AS parser_type,
			IFNULL(parser_version, '') AS parser_version,
			IFNULL(status, '') AS status,
			IFNULL(error_message, '') AS error_message,
			metadata
		FROM %s
		WHERE document_id = @document_id
		ORDER BY started_ts DESC
	`, s.table(parsingRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListParsingRuns: query read: %w", err)
	}

	var rows []ParsingRunRow
	for {
		var r ParsingRunRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListParsingRuns: iter next: %w", err)
		}
		rows = append(rows, r)
	}

	return rows, nil
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}
