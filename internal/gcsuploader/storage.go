// Package gcsuploader stores uploaded documents in Google Cloud Storage and
// reads them back for ingestion.
package gcsuploader

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/finance-ingest/internal/pipeline"
)

var _ pipeline.StorageService = (*Storage)(nil)

// Storage is the Cloud Storage implementation of pipeline.StorageService.
// Uploads go to bucket; reads accept any gs:// URI.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
type Storage struct {
	client *storage.Client
	bucket string
}

// NewStorage creates a Storage with its own client.
func NewStorage(ctx context.Context, bucket string) (*Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStorage: create storage client: %w", err)
	}
	return &Storage{client: client, bucket: bucket}, nil
}

// Bucket returns the upload bucket.
func (s *Storage) Bucket() string {
	return s.bucket
}

// Close closes the storage client.
func (s *Storage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
