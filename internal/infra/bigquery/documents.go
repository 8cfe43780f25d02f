package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

type DocumentRow struct {
	DocumentID string `bigquery:"document_id"` // REQUIRED
	UserID     string `bigquery:"user_id"`     // NULLABLE
	GCSURI     string `bigquery:"gcs_uri"`     // REQUIRED

	DocumentType string `bigquery:"document_type"` // REQUIRED
	SourceSystem string `bigquery:"source_system"` // NULLABLE

	UploadTS    time.Time              `bigquery:"upload_ts"`    // REQUIRED
	ProcessedTS bigquery.NullTimestamp `bigquery:"processed_ts"` // NULLABLE

	ParsingStatus string `bigquery:"parsing_status"` // NULLABLE

	OriginalFilename string `bigquery:"original_filename"` // NULLABLE
	FileMimeType     string `bigquery:"file_mime_type"`    // NULLABLE

	ChecksumSHA256 string `bigquery:"checksum_sha256"` // NULLABLE

	Metadata bigquery.NullJSON `bigquery:"metadata"` // NULLABLE
}

// DocumentRowFrom maps a document to its table row.
func DocumentRowFrom(doc domain.Document) *DocumentRow {
	return &DocumentRow{
		DocumentID:       doc.ID,
		UserID:           doc.UserID,
		GCSURI:           doc.GCSURI,
		DocumentType:     string(doc.Type),
		SourceSystem:     doc.SourceSystem,
		UploadTS:         doc.UploadedAt,
		ParsingStatus:    doc.Status,
		OriginalFilename: doc.FileName,
		FileMimeType:     doc.MIMEType,
		ChecksumSHA256:   doc.Checksum,
	}
}

// Document maps the row back to a document.
func (r *DocumentRow) Document() domain.Document {
	return domain.Document{
		ID:           r.DocumentID,
		UserID:       r.UserID,
		GCSURI:       r.GCSURI,
		Type:         domain.DocumentType(r.DocumentType),
		SourceSystem: r.SourceSystem,
		FileName:     r.OriginalFilename,
		MIMEType:     r.FileMimeType,
		Checksum:     r.ChecksumSHA256,
		Status:       r.ParsingStatus,
		UploadedAt:   r.UploadTS,
	}
}
