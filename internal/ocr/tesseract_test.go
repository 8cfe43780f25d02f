package ocr

import (
	"context"
	"os/exec"
	"strings"
	"testing"
)

func TestRecognize_MissingBinary(t *testing.T) {
	r := NewTesseractRecognizer(WithBinary("/nonexistent/tesseract-12345"))
	if r.Available() {
		t.Fatal("expected binary to be unavailable")
	}

	_, err := r.Recognize(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
	if err == nil {
		t.Fatal("expected error when tesseract is not installed")
	}
}

func TestRecognize_EmptyImage(t *testing.T) {
	_, err := NewTesseractRecognizer().Recognize(context.Background(), nil, "image/png")
	if err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestRecognize_PassesArguments(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}

	// echo prints the arguments it receives, standing in for tesseract.
	r := NewTesseractRecognizer(WithBinary("echo"), WithLanguage("eng"))
	text, err := r.Recognize(context.Background(), []byte("img"), "image/jpeg")
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if !strings.Contains(text, "stdin stdout -l eng --psm 4") {
		t.Errorf("unexpected arguments: %q", text)
	}
}

func TestRecognize_Cancelled(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTesseractRecognizer(WithBinary("sleep")).Recognize(ctx, []byte("img"), "image/png")
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
