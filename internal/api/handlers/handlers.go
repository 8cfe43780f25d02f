package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/finance-ingest/internal/api/middleware"
	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/jobs"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/pipeline"
)

const defaultListLimit = 100

// DocumentLister lists stored documents, newest first.
type DocumentLister interface {
	ListDocuments(ctx context.Context, limit int) ([]domain.Document, error)
}

// Uploader stores an uploaded file and returns its gs:// URI.
type Uploader interface {
	Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error)
}

// FileProcessor runs the processing pipeline without persistence.
type FileProcessor interface {
	ProcessFile(ctx context.Context, doc domain.RawDocument, bankHint string) (*pipeline.Result, error)
}

// DocumentsHandler handles document-related endpoints. Uploader and docs
// may be nil when no cloud project is configured; those endpoints then
// answer 503.
type DocumentsHandler struct {
	docs        DocumentLister
	uploader    Uploader
	processor   FileProcessor
	publisher   jobs.Publisher
	maxFileSize int64
	objectName  func(fileName string, now time.Time) string
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(docs DocumentLister, uploader Uploader, processor FileProcessor, publisher jobs.Publisher, maxFileSize int64, objectName func(string, time.Time) string) *DocumentsHandler {
	if maxFileSize <= 0 {
		maxFileSize = pipeline.DefaultMaxFileSize
	}
	return &DocumentsHandler{
		docs:        docs,
		uploader:    uploader,
		processor:   processor,
		publisher:   publisher,
		maxFileSize: maxFileSize,
		objectName:  objectName,
	}
}

// ListDocuments handles GET /api/documents
func (h *DocumentsHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.docs == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Document storage is not configured")
		return
	}

	limit := queryInt(r, "limit", defaultListLimit)
	documents, err := h.docs.ListDocuments(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list documents")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": documents,
		"count":     len(documents),
	})
}

// UploadDocument handles POST /api/documents/upload (multipart "file",
// optional "bank"). The file is stored in GCS and a parse job enqueued.
func (h *DocumentsHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.uploader == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Document uploads are disabled")
		return
	}

	upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	objectName := h.objectName(upload.doc.FileName, time.Now())
	gcsURI, err := h.uploader.Upload(ctx, objectName, upload.doc.MIMEType, bytes.NewReader(upload.doc.Content))
	if err != nil {
		log.Error().Err(err).Msg("Failed to upload file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	log.Info().
		Str("gcs_uri", gcsURI).
		Int("bytes", len(upload.doc.Content)).
		Msg("File uploaded successfully")

	job := &jobs.ParseDocumentJob{
		GCSURI:   gcsURI,
		MIMEType: upload.doc.MIMEType,
		BankHint: upload.bankHint,
		UserID:   upload.userID,
	}
	if err := h.publisher.PublishParseDocument(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue parsing job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue parsing job")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": gcsURI,
		"status":  string(job.Status),
	})
}

// ProcessDocument handles POST /api/documents/process: the file is
// processed synchronously and the result returned without being stored.
func (h *DocumentsHandler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	res, err := h.processor.ProcessFile(r.Context(), upload.doc, upload.bankHint)
	if err != nil {
		WriteProcessingError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res)
}

// EnqueueParsing handles POST /api/documents/parse. With a document_id the
// job reparses that document.
func (h *DocumentsHandler) EnqueueParsing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID string `json:"document_id"`
		GCSURI     string `json:"gcs_uri"`
		MIMEType   string `json:"mime_type"`
		BankHint   string `json:"bank_hint"`
		UserID     string `json:"user_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.GCSURI == "" {
		middleware.WriteError(w, http.StatusBadRequest, "gcs_uri is required")
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx)

	job := &jobs.ParseDocumentJob{
		DocumentID: req.DocumentID,
		GCSURI:     req.GCSURI,
		MIMEType:   req.MIMEType,
		BankHint:   req.BankHint,
		UserID:     req.UserID,
	}

	if err := h.publisher.PublishParseDocument(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue parsing job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue parsing job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("document_id", req.DocumentID).Msg("Parsing job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      job.JobID,
		"document_id": req.DocumentID,
		"status":      string(job.Status),
	})
}

type upload struct {
	doc      domain.RawDocument
	bankHint string
	userID   string
}

// readUpload reads the multipart "file" part. It writes the error response
// itself and reports false when the request cannot be used.
func (h *DocumentsHandler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	// Room for the multipart envelope on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", h.maxFileSize))
			return nil, false
		}
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read file")
		return nil, false
	}
	if int64(len(content)) > h.maxFileSize {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", h.maxFileSize))
		return nil, false
	}

	fileName := filepath.Base(header.Filename)
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = pipeline.MIMETypeFor(fileName)
	}

	return &upload{
		doc: domain.RawDocument{
			Content:  content,
			MIMEType: mimeType,
			FileName: fileName,
		},
		bankHint: strings.TrimSpace(r.FormValue("bank")),
		userID:   strings.TrimSpace(r.FormValue("user_id")),
	}, true
}

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct{}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler() *CategoriesHandler {
	return &CategoriesHandler{}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := categorize.All()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query()
	filter := jobs.JobFilter{
		DocumentID: query.Get("document_id"),
		Status:     jobs.JobStatus(query.Get("status")),
		Limit:      queryInt(r, "limit", 0),
		Offset:     queryInt(r, "offset", 0),
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
