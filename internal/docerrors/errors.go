// Package docerrors defines the typed failures of document processing.
//
// Four kinds are fatal for a document: configuration, document analysis,
// extraction and validation. Categorization and reconciliation never
// surface errors through this package.
package docerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a DocumentProcessingError.
type Kind string

const (
	KindConfiguration    Kind = "CONFIGURATION"
	KindDocumentAnalysis Kind = "DOCUMENT_ANALYSIS"
	KindExtract          Kind = "EXTRACT"
	KindValidation       Kind = "VALIDATION"
)

var (
	ErrMissingCredentials = errors.New("missing layout service credentials")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrEmptyDocument      = errors.New("empty document")
	ErrFileTooLarge       = errors.New("file too large")
	ErrNoTransactions     = errors.New("no valid transactions")
	ErrNoPages            = errors.New("layout result has no pages")
)

// userMessages holds the single message shown to end users per kind.
var userMessages = map[Kind]string{
	KindConfiguration:    "Le service d'analyse de documents n'est pas configuré.",
	KindDocumentAnalysis: "L'analyse du document a échoué. Veuillez réessayer.",
	KindExtract:          "Aucune transaction exploitable n'a été trouvée dans le document.",
	KindValidation:       "Le fichier fourni est invalide.",
}

// FieldError describes one invalid field of one record.
type FieldError struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	if f.Index < 0 {
		return fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return fmt.Sprintf("[%d] %s: %s", f.Index, f.Field, f.Message)
}

// DocumentProcessingError is the common error type of the pipeline.
type DocumentProcessingError struct {
	Kind    Kind
	Op      string
	Message string
	Err     error

	// FieldErrors is only populated for KindValidation.
	FieldErrors []FieldError
}

func (e *DocumentProcessingError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(strings.ToLower(string(e.Kind)))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.FieldErrors) > 0 {
		parts := make([]string, 0, len(e.FieldErrors))
		for _, fe := range e.FieldErrors {
			parts = append(parts, fe.String())
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *DocumentProcessingError) Unwrap() error {
	return e.Err
}

// Configuration reports missing or invalid service configuration.
func Configuration(op, message string) error {
	return &DocumentProcessingError{Kind: KindConfiguration, Op: op, Message: message, Err: ErrMissingCredentials}
}

// DocumentAnalysis wraps a failure of the external layout service.
func DocumentAnalysis(op string, err error) error {
	return &DocumentProcessingError{Kind: KindDocumentAnalysis, Op: op, Err: err}
}

// Extract reports a well-formed document with nothing usable in it.
func Extract(op string, err error) error {
	return &DocumentProcessingError{Kind: KindExtract, Op: op, Err: err}
}

// Validation reports structurally invalid input.
func Validation(op string, err error, fields ...FieldError) error {
	return &DocumentProcessingError{Kind: KindValidation, Op: op, Err: err, FieldErrors: fields}
}

// IsKind reports whether err carries a DocumentProcessingError of kind k.
func IsKind(err error, k Kind) bool {
	var dpe *DocumentProcessingError
	if errors.As(err, &dpe) {
		return dpe.Kind == k
	}
	return false
}

// KindOf returns the kind of err, or "" if err is not a processing error.
func KindOf(err error) Kind {
	var dpe *DocumentProcessingError
	if errors.As(err, &dpe) {
		return dpe.Kind
	}
	return ""
}

// UserMessage returns the human readable message for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg, ok := userMessages[KindOf(err)]; ok {
		return msg
	}
	return "Erreur lors du traitement du document."
}
