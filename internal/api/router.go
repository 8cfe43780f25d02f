// Package api wires the HTTP endpoints of the ingestion service.
package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-ingest/internal/api/handlers"
	"github.com/dvloznov/finance-ingest/internal/api/middleware"
	"github.com/dvloznov/finance-ingest/internal/jobs"
)

// Handlers groups the endpoint handlers served by the router.
type Handlers struct {
	Documents  *handlers.DocumentsHandler
	Categories *handlers.CategoriesHandler
	Jobs       *handlers.JobsHandler
}

// NewRouter registers every endpoint and wraps them in the middleware chain.
func NewRouter(h Handlers, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/documents", h.Documents.ListDocuments)
	mux.HandleFunc("POST /api/documents/upload", h.Documents.UploadDocument)
	mux.HandleFunc("POST /api/documents/process", h.Documents.ProcessDocument)
	mux.HandleFunc("POST /api/documents/parse", h.Documents.EnqueueParsing)

	mux.HandleFunc("GET /api/categories", h.Categories.ListCategories)

	mux.HandleFunc("GET /api/jobs", h.Jobs.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.Jobs.GetJob)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.Recovery(log)(
		middleware.RequestID(log)(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)
}

// NewHandlers builds the handlers from their collaborators.
func NewHandlers(docs handlers.DocumentLister, uploader handlers.Uploader, processor handlers.FileProcessor, queue jobs.Publisher, store jobs.JobStore, maxFileSize int64, objectName func(string, time.Time) string) Handlers {
	return Handlers{
		Documents:  handlers.NewDocumentsHandler(docs, uploader, processor, queue, maxFileSize, objectName),
		Categories: handlers.NewCategoriesHandler(),
		Jobs:       handlers.NewJobsHandler(store),
	}
}
