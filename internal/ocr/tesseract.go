// Package ocr turns photographed documents into plain text.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/logger"
)

// ErrNoText is returned when recognition produced no text at all.
var ErrNoText = errors.New("ocr produced no text")

// Recognizer extracts line-oriented text from an image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, mimeType string) (string, error)
}

// TesseractRecognizer shells out to the tesseract binary, feeding the image
// on stdin and reading the text from stdout.
type TesseractRecognizer struct {
	binary   string
	language string
}

// Option configures a TesseractRecognizer.
type Option func(*TesseractRecognizer)

// WithBinary sets the tesseract executable (name or path).
func WithBinary(path string) Option {
	return func(r *TesseractRecognizer) {
		if path != "" {
			r.binary = path
		}
	}
}

// WithLanguage sets the tesseract language pack, "fra" by default.
func WithLanguage(lang string) Option {
	return func(r *TesseractRecognizer) {
		if lang != "" {
			r.language = lang
		}
	}
}

// NewTesseractRecognizer creates a recognizer for French documents.
func NewTesseractRecognizer(opts ...Option) *TesseractRecognizer {
	r := &TesseractRecognizer{binary: "tesseract", language: "fra"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether the tesseract binary can be found.
func (r *TesseractRecognizer) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// Recognize runs tesseract on image. PSM 4 assumes a single column of text
// of variable sizes, which suits receipts and statement photos.
func (r *TesseractRecognizer) Recognize(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("Recognize: empty image")
	}
	if _, err := exec.LookPath(r.binary); err != nil {
		return "", fmt.Errorf("Recognize: %s not available (install tesseract-ocr): %w", r.binary, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, "stdin", "stdout", "-l", r.language, "--psm", "4")
	cmd.Stdin = bytes.NewReader(image)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("Recognize: %s failed: %w (output: %s)", r.binary, err, strings.TrimSpace(stderr.String()))
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", fmt.Errorf("Recognize: %w", ErrNoText)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("mime_type", mimeType).
		Int("chars", len(text)).
		Msg("OCR completed")
	return text, nil
}
