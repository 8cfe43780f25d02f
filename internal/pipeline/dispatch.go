package pipeline

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/docerrors"
)

// Format is the reader family a document is routed to.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatSpreadsheet Format = "spreadsheet"
	FormatPDF         Format = "pdf"
	FormatImage       Format = "image"
)

var mimeFormats = map[string]Format{
	"text/csv":                    FormatCSV,
	"application/csv":             FormatCSV,
	"text/comma-separated-values": FormatCSV,
	"application/pdf":             FormatPDF,
	"application/vnd.ms-excel":    FormatSpreadsheet,

	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": FormatSpreadsheet,
}

var extensionFormats = map[string]Format{
	".csv":  FormatCSV,
	".pdf":  FormatPDF,
	".jpg":  FormatImage,
	".jpeg": FormatImage,
	".png":  FormatImage,
	".xlsx": FormatSpreadsheet,
	".xls":  FormatSpreadsheet,
}

var extensionMIME = map[string]string{
	".csv":  "text/csv",
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
}

// MIMETypeFor returns the MIME type of a supported file name, or
// application/octet-stream.
func MIMETypeFor(fileName string) string {
	if mt, ok := extensionMIME[strings.ToLower(filepath.Ext(fileName))]; ok {
		return mt
	}
	return "application/octet-stream"
}

// DetectFormat routes a document by MIME type, then by file extension.
// Generic types (empty, application/octet-stream) defer to the extension.
func DetectFormat(mimeType, fileName string) (Format, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}

	if f, ok := mimeFormats[mt]; ok {
		return f, nil
	}
	if strings.HasPrefix(mt, "image/") {
		return FormatImage, nil
	}

	if f, ok := extensionFormats[strings.ToLower(filepath.Ext(fileName))]; ok {
		return f, nil
	}
	return "", docerrors.Validation("DetectFormat", docerrors.ErrUnsupportedFormat, docerrors.FieldError{
		Index:   -1,
		Field:   "file",
		Message: "unsupported format: " + describe(mimeType, fileName),
	})
}

func describe(mimeType, fileName string) string {
	switch {
	case mimeType != "" && fileName != "":
		return mimeType + " (" + fileName + ")"
	case mimeType != "":
		return mimeType
	}
	return fileName
}
