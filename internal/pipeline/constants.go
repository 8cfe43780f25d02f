package pipeline

// Default values for document processing.
// These can be overridden via configuration.
const (
	// DefaultUserID is the user identifier stored on documents and transactions.
	DefaultUserID = "default"

	// DefaultSourceSystem is stored on documents uploaded without a bank hint.
	DefaultSourceSystem = "UPLOAD"

	// DefaultMaxFileSize bounds uploads (20 MiB).
	DefaultMaxFileSize int64 = 20 << 20

	// ParserVersion is recorded on every parsing run.
	ParserVersion = "v2"

	// HintReceipt routes a PDF to receipt extraction.
	HintReceipt = "receipt"
)
