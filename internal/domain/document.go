package domain

import "time"

// DocumentType is the kind of document an upload turned out to be.
type DocumentType string

const (
	DocumentBankStatement DocumentType = "BANK_STATEMENT"
	DocumentLedger        DocumentType = "LEDGER"
	DocumentReceipt       DocumentType = "RECEIPT"
)

// Parsing statuses stored on documents and parsing runs.
const (
	StatusPending    = "PENDING"
	StatusRunning    = "RUNNING"
	StatusSuccess    = "SUCCESS"
	StatusFailed     = "FAILED"
	StatusSuperseded = "SUPERSEDED"
)

// Document is a stored upload.
type Document struct {
	ID           string       `json:"document_id"`
	UserID       string       `json:"user_id,omitempty"`
	GCSURI       string       `json:"gcs_uri"`
	Type         DocumentType `json:"document_type"`
	SourceSystem string       `json:"source_system,omitempty"`
	FileName     string       `json:"original_filename"`
	MIMEType     string       `json:"file_mime_type,omitempty"`
	Checksum     string       `json:"checksum_sha256,omitempty"`
	Status       string       `json:"parsing_status"`
	UploadedAt   time.Time    `json:"upload_ts"`
}

// RunRef identifies the parsing run that produced a set of records.
type RunRef struct {
	DocumentID   string
	ParsingRunID string
	UserID       string
}

// LayoutOutput is the raw analyzer output kept for a parsing run.
type LayoutOutput struct {
	ID            string
	ParsingRunID  string
	DocumentID    string
	Provider      string
	RawJSON       []byte
	ExtractedText string
	CreatedAt     time.Time
}
