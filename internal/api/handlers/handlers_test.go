package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-ingest/internal/docerrors"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/jobs"
	"github.com/dvloznov/finance-ingest/internal/pipeline"
)

const ledgerCSV = "date,description,amount\n2024-03-05,Courses Lidl,-12.30\n"

type mockUploader struct {
	objectName  string
	contentType string
	body        []byte
	err         error
}

func (m *mockUploader) Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.objectName, m.contentType = objectName, contentType
	m.body, _ = io.ReadAll(r)
	return "gs://bucket/" + objectName, nil
}

type mockPublisher struct {
	published []*jobs.ParseDocumentJob
	err       error
}

func (m *mockPublisher) PublishParseDocument(ctx context.Context, job *jobs.ParseDocumentJob) error {
	if m.err != nil {
		return m.err
	}
	job.JobID = "job-1"
	job.Status = jobs.JobStatusPending
	m.published = append(m.published, job)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type docListerFunc func(ctx context.Context, limit int) ([]domain.Document, error)

func (f docListerFunc) ListDocuments(ctx context.Context, limit int) ([]domain.Document, error) {
	return f(ctx, limit)
}

func fixedObjectName(fileName string, _ time.Time) string { return "uploads/test/" + fileName }

func newTestHandler(uploader Uploader, publisher jobs.Publisher, maxSize int64) *DocumentsHandler {
	now := func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	processor := pipeline.NewProcessor(pipeline.Deps{Now: now})
	return NewDocumentsHandler(nil, uploader, processor, publisher, maxSize, fixedObjectName)
}

func multipartRequest(t *testing.T, target, fileName string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestProcessDocument_CSV(t *testing.T) {
	h := newTestHandler(nil, &mockPublisher{}, 0)
	rec := httptest.NewRecorder()

	h.ProcessDocument(rec, multipartRequest(t, "/api/documents/process", "export.csv", []byte(ledgerCSV), nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, "csv", out["format"])
	assert.Equal(t, "LEDGER", out["document_type"])
	txs, ok := out["transactions"].([]interface{})
	require.True(t, ok)
	require.Len(t, txs, 1)
	tx := txs[0].(map[string]interface{})
	assert.Equal(t, "2024-03-05", tx["date"])
	assert.InDelta(t, -12.30, tx["amount"], 1e-9)
}

func TestProcessDocument_Errors(t *testing.T) {
	tests := []struct {
		name       string
		fileName   string
		content    []byte
		maxSize    int64
		wantStatus int
		wantKind   string
	}{
		{name: "missing file", wantStatus: http.StatusBadRequest},
		{name: "empty file", fileName: "export.csv", content: []byte{}, wantStatus: http.StatusBadRequest, wantKind: "VALIDATION"},
		{name: "unsupported format", fileName: "notes.txt", content: []byte("hello"), wantStatus: http.StatusUnsupportedMediaType, wantKind: "VALIDATION"},
		{name: "too large", fileName: "export.csv", content: []byte(ledgerCSV), maxSize: 10, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "no transactions", fileName: "export.csv", content: []byte("date,description,amount\n"), wantStatus: http.StatusUnprocessableEntity, wantKind: "EXTRACT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(nil, &mockPublisher{}, tt.maxSize)
			rec := httptest.NewRecorder()

			h.ProcessDocument(rec, multipartRequest(t, "/api/documents/process", tt.fileName, tt.content, nil))

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			out := decode(t, rec)
			assert.NotEmpty(t, out["error"])
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, out["kind"])
			}
		})
	}
}

func TestUploadDocument(t *testing.T) {
	uploader := &mockUploader{}
	publisher := &mockPublisher{}
	h := newTestHandler(uploader, publisher, 0)
	rec := httptest.NewRecorder()

	h.UploadDocument(rec, multipartRequest(t, "/api/documents/upload", "releve.pdf", []byte("%PDF-1.4"), map[string]string{"bank": "boursobank"}))

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, "job-1", out["job_id"])
	assert.Equal(t, "gs://bucket/uploads/test/releve.pdf", out["gcs_uri"])
	assert.Equal(t, "pending", out["status"])

	assert.Equal(t, "application/pdf", uploader.contentType)
	assert.Equal(t, []byte("%PDF-1.4"), uploader.body)
	require.Len(t, publisher.published, 1)
	assert.Equal(t, "boursobank", publisher.published[0].BankHint)
	assert.Equal(t, "application/pdf", publisher.published[0].MIMEType)
	assert.Empty(t, publisher.published[0].DocumentID)
}

func TestUploadDocument_Failures(t *testing.T) {
	t.Run("uploads disabled", func(t *testing.T) {
		h := newTestHandler(nil, &mockPublisher{}, 0)
		rec := httptest.NewRecorder()
		h.UploadDocument(rec, multipartRequest(t, "/api/documents/upload", "releve.pdf", []byte("x"), nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("storage error", func(t *testing.T) {
		publisher := &mockPublisher{}
		h := newTestHandler(&mockUploader{err: errors.New("403")}, publisher, 0)
		rec := httptest.NewRecorder()
		h.UploadDocument(rec, multipartRequest(t, "/api/documents/upload", "releve.pdf", []byte("x"), nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Empty(t, publisher.published)
	})

	t.Run("queue error", func(t *testing.T) {
		h := newTestHandler(&mockUploader{}, &mockPublisher{err: errors.New("queue is closed")}, 0)
		rec := httptest.NewRecorder()
		h.UploadDocument(rec, multipartRequest(t, "/api/documents/upload", "releve.pdf", []byte("x"), nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestEnqueueParsing(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "invalid json", body: "{", wantStatus: http.StatusBadRequest},
		{name: "missing uri", body: `{"document_id":"doc-1"}`, wantStatus: http.StatusBadRequest},
		{name: "reparse", body: `{"document_id":"doc-1","gcs_uri":"gs://b/a.pdf","bank_hint":"receipt"}`, wantStatus: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := &mockPublisher{}
			h := newTestHandler(nil, publisher, 0)
			rec := httptest.NewRecorder()

			h.EnqueueParsing(rec, httptest.NewRequest(http.MethodPost, "/api/documents/parse", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusAccepted {
				require.Len(t, publisher.published, 1)
				assert.Equal(t, "doc-1", publisher.published[0].DocumentID)
				assert.Equal(t, "receipt", publisher.published[0].BankHint)
			}
		})
	}
}

func TestListDocuments(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestHandler(nil, &mockPublisher{}, 0).ListDocuments(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("lists with limit", func(t *testing.T) {
		var gotLimit int
		h := newTestHandler(nil, &mockPublisher{}, 0)
		h.docs = docListerFunc(func(ctx context.Context, limit int) ([]domain.Document, error) {
			gotLimit = limit
			return []domain.Document{{ID: "doc-1", Status: domain.StatusSuccess}}, nil
		})
		rec := httptest.NewRecorder()

		h.ListDocuments(rec, httptest.NewRequest(http.MethodGet, "/api/documents?limit=5", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, gotLimit)
		assert.EqualValues(t, 1, decode(t, rec)["count"])
	})

	t.Run("store error", func(t *testing.T) {
		h := newTestHandler(nil, &mockPublisher{}, 0)
		h.docs = docListerFunc(func(ctx context.Context, limit int) ([]domain.Document, error) {
			return nil, errors.New("bigquery down")
		})
		rec := httptest.NewRecorder()
		h.ListDocuments(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "empty", err: docerrors.Validation("op", docerrors.ErrEmptyDocument), want: http.StatusBadRequest},
		{name: "too large", err: docerrors.Validation("op", docerrors.ErrFileTooLarge), want: http.StatusRequestEntityTooLarge},
		{name: "unsupported", err: docerrors.Validation("op", docerrors.ErrUnsupportedFormat), want: http.StatusUnsupportedMediaType},
		{name: "extract", err: docerrors.Extract("op", docerrors.ErrNoTransactions), want: http.StatusUnprocessableEntity},
		{name: "analysis", err: docerrors.DocumentAnalysis("op", errors.New("503")), want: http.StatusBadGateway},
		{name: "configuration", err: docerrors.Configuration("op", "missing key"), want: http.StatusServiceUnavailable},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestWriteProcessingError_Fields(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteProcessingError(rec, docerrors.Validation("ValidateDocument", docerrors.ErrEmptyDocument, docerrors.FieldError{
		Index: -1, Field: "file", Message: "file is empty",
	}))

	out := decode(t, rec)
	fields, ok := out["fields"].([]interface{})
	require.True(t, ok)
	require.Len(t, fields, 1)
	assert.Equal(t, "file", fields[0].(map[string]interface{})["field"])
}
