package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-ingest/internal/docerrors"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		fileName string
		want     Format
	}{
		{"csv mime", "text/csv", "export", FormatCSV},
		{"csv mime with charset", "text/csv; charset=ISO-8859-1", "", FormatCSV},
		{"application csv", "application/csv", "", FormatCSV},
		{"csv extension", "", "Export.CSV", FormatCSV},
		{"pdf mime", "application/pdf", "scan.bin", FormatPDF},
		{"pdf extension behind octet-stream", "application/octet-stream", "releve.pdf", FormatPDF},
		{"jpeg mime", "image/jpeg", "", FormatImage},
		{"heic mime", "image/heic", "photo.heic", FormatImage},
		{"png extension", "", "ticket.png", FormatImage},
		{"xlsx mime", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "", FormatSpreadsheet},
		{"xls mime", "application/vnd.ms-excel", "", FormatSpreadsheet},
		{"xls extension", "", "historique.xls", FormatSpreadsheet},
		{"mime wins over extension", "application/pdf", "export.csv", FormatPDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.mimeType, tt.fileName)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFormat_Unsupported(t *testing.T) {
	for _, tc := range []struct{ mimeType, fileName string }{
		{"text/plain", "notes.txt"},
		{"application/octet-stream", "archive.zip"},
		{"", ""},
	} {
		_, err := DetectFormat(tc.mimeType, tc.fileName)
		require.Error(t, err)
		assert.True(t, docerrors.IsKind(err, docerrors.KindValidation))
		assert.ErrorIs(t, err, docerrors.ErrUnsupportedFormat)
	}
}

func TestMIMETypeFor(t *testing.T) {
	assert.Equal(t, "text/csv", MIMETypeFor("export.CSV"))
	assert.Equal(t, "image/jpeg", MIMETypeFor("ticket.jpeg"))
	assert.Equal(t, "application/octet-stream", MIMETypeFor("archive.zip"))
}
