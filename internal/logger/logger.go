// Package logger builds zerolog loggers and carries them in a context.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type contextKey struct{}

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures a logger. Zero values log to stdout in console format
// at info level.
type Options struct {
	Level  string
	Format string
	Out    io.Writer
}

var fallback = NewWithOptions(Options{})

// New creates a console logger at info level.
func New() zerolog.Logger {
	return NewWithLevel("info")
}

// NewWithLevel creates a console logger at the given level.
// Unknown levels fall back to info.
func NewWithLevel(level string) zerolog.Logger {
	return NewWithOptions(Options{Level: level})
}

// NewWithOptions creates a logger with timestamps and caller information.
func NewWithOptions(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if !strings.EqualFold(strings.TrimSpace(opts.Format), FormatJSON) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Caller().Logger()
}

// NewWithWriter creates a structured logger writing JSON to w.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return NewWithOptions(Options{Out: w, Format: FormatJSON, Level: "debug"})
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithContext adds the logger to the context
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext retrieves the logger from the context or returns a default logger
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(zerolog.Logger); ok {
		return logger
	}
	return fallback
}

// ForDocument returns a context whose logger carries the document fields.
func ForDocument(ctx context.Context, fileName, mimeType string) context.Context {
	log := FromContext(ctx).With().
		Str("file_name", fileName).
		Str("mime_type", mimeType).
		Logger()
	return WithContext(ctx, log)
}

// ForRun returns a context whose logger carries the stored document and,
// once started, its parsing run.
func ForRun(ctx context.Context, documentID, parsingRunID string) context.Context {
	c := FromContext(ctx).With().Str("document_id", documentID)
	if parsingRunID != "" {
		c = c.Str("parsing_run_id", parsingRunID)
	}
	return WithContext(ctx, c.Logger())
}
