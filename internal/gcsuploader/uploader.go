package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const uploadTimeout = 2 * time.Minute

// ObjectName builds the object path of an upload:
// uploads/YYYY/MM/DD/<uuid>-<file name>. Directory parts of fileName are
// dropped and spaces replaced.
func ObjectName(fileName string, now time.Time) string {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" {
		base = "document"
	}
	base = strings.ReplaceAll(base, " ", "_")
	return path.Join("uploads", now.Format("2006/01/02"), uuid.NewString()+"-"+base)
}

// Upload writes r to the upload bucket under objectName and returns its
// gs:// URI.
func (s *Storage) Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: copy to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

// UploadFile uploads a local file to the upload bucket under the given
// object name.
func (s *Storage) UploadFile(ctx context.Context, objectName, contentType, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	return s.Upload(ctx, objectName, contentType, f)
}
