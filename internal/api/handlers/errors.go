package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/finance-ingest/internal/api/middleware"
	"github.com/dvloznov/finance-ingest/internal/docerrors"
)

// StatusFor maps a processing error to an HTTP status.
func StatusFor(err error) int {
	switch docerrors.KindOf(err) {
	case docerrors.KindValidation:
		switch {
		case errors.Is(err, docerrors.ErrFileTooLarge):
			return http.StatusRequestEntityTooLarge
		case errors.Is(err, docerrors.ErrUnsupportedFormat):
			return http.StatusUnsupportedMediaType
		}
		return http.StatusBadRequest
	case docerrors.KindExtract:
		return http.StatusUnprocessableEntity
	case docerrors.KindDocumentAnalysis:
		return http.StatusBadGateway
	case docerrors.KindConfiguration:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// WriteProcessingError writes the French user message of err along with its
// kind and, for validation errors, the offending fields.
func WriteProcessingError(w http.ResponseWriter, err error) {
	body := map[string]interface{}{
		"error": docerrors.UserMessage(err),
	}
	if kind := docerrors.KindOf(err); kind != "" {
		body["kind"] = kind
	}
	var dpe *docerrors.DocumentProcessingError
	if errors.As(err, &dpe) && len(dpe.FieldErrors) > 0 {
		body["fields"] = dpe.FieldErrors
	}
	middleware.WriteJSON(w, StatusFor(err), body)
}
