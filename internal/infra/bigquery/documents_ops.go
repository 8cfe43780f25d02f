package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

const documentColumns = `
			document_id,
			IFNULL(user_id, '') AS user_id,
			gcs_uri,
			document_type,
			IFNULL(source_system, '') AS source_system,
			upload_ts,
			processed_ts,
			IFNULL(parsing_status, '') AS parsing_status,
			IFNULL(original_filename, '') AS original_filename,
			IFNULL(file_mime_type, '') AS file_mime_type,
			IFNULL(checksum_sha256, '') AS checksum_sha256,
			metadata`

// InsertDocument inserts a row into documents. It uses DML rather than the
// streaming inserter so the parsing status can be updated right away.
func (s *Store) InsertDocument(ctx context.Context, doc domain.Document) error {
	row := DocumentRowFrom(doc)
	return s.runDML(ctx, "InsertDocument", fmt.Sprintf(`
		INSERT INTO %s (
			document_id, user_id, gcs_uri, document_type, source_system,
			upload_ts, parsing_status, original_filename, file_mime_type,
			checksum_sha256
		)
		VALUES (
			@document_id, @user_id, @gcs_uri, @document_type, @source_system,
			@upload_ts, @parsing_status, @original_filename, @file_mime_type,
			@checksum_sha256
		)
	`, s.table(documentsTable)), []bigquery.QueryParameter{
		{Name: "document_id", Value: row.DocumentID},
		{Name: "user_id", Value: row.UserID},
		{Name: "gcs_uri", Value: row.GCSURI},
		{Name: "document_type", Value: row.DocumentType},
		{Name: "source_system", Value: row.SourceSystem},
		{Name: "upload_ts", Value: row.UploadTS},
		{Name: "parsing_status", Value: row.ParsingStatus},
		{Name: "original_filename", Value: row.OriginalFilename},
		{Name: "file_mime_type", Value: row.FileMimeType},
		{Name: "checksum_sha256", Value: row.ChecksumSHA256},
	})
}

// UpdateDocumentStatus sets parsing_status; terminal statuses also set
// processed_ts.
func (s *Store) UpdateDocumentStatus(ctx context.Context, documentID, status string) error {
	var processed bigquery.NullTimestamp
	if status == domain.StatusSuccess || status == domain.StatusFailed {
		processed = bigquery.NullTimestamp{Timestamp: time.Now(), Valid: true}
	}
	return s.runDML(ctx, "UpdateDocumentStatus", fmt.Sprintf(`
		UPDATE %s
		SET parsing_status = @status,
		    processed_ts = COALESCE(@processed_ts, processed_ts)
		WHERE document_id = @document_id
	`, s.table(documentsTable)), []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "processed_ts", Value: processed},
		{Name: "document_id", Value: documentID},
	})
}

// FindDocumentByChecksum retrieves a document by its SHA-256 checksum.
// Returns nil if no document with the given checksum exists.
func (s *Store) FindDocumentByChecksum(ctx context.Context, checksum string) (*domain.Document, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE checksum_sha256 = @checksum
		LIMIT 1
	`, documentColumns, s.table(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "checksum", Value: checksum},
	}
	return s.readDocument(ctx, "FindDocumentByChecksum", q)
}

// GetDocument retrieves a document by id. Returns nil if it does not exist.
func (s *Store) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE document_id = @document_id
		LIMIT 1
	`, documentColumns, s.table(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
	}
	return s.readDocument(ctx, "GetDocument", q)
}

func (s *Store) readDocument(ctx context.Context, op string, q *bigquery.Query) (*domain.Document, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: reading query: %w", op, err)
	}

	var row DocumentRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: reading row: %w", op, err)
	}

	doc := row.Document()
	return &doc, nil
}

// ListDocuments retrieves the most recent documents, newest first. A limit
// of zero or less lists everything.
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]domain.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		ORDER BY upload_ts DESC
	`, documentColumns, s.table(documentsTable))
	if limit > 0 {
		query += fmt.Sprintf("LIMIT %d", limit)
	}

	it, err := s.client.Query(query).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListDocuments: reading query: %w", err)
	}

	documents := []domain.Document{}
	for {
		var row DocumentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListDocuments: iterating: %w", err)
		}
		documents = append(documents, row.Document())
	}

	return documents, nil
}
