// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/logger"
)

// Layout providers.
const (
	ProviderGemini  = "gemini"
	ProviderPDFText = "pdftext"
)

// Config holds application configuration.
type Config struct {
	ProjectID string
	Dataset   string
	Bucket    string

	GeminiAPIKey       string
	LayoutProvider     string
	LayoutModel        string
	LayoutPollInterval time.Duration

	OCRLanguage   string
	TesseractPath string

	MaxFileSize int64
	WorkerCount int
	QueueSize   int
	MaxRetries  int
	HTTPPort    string

	DefaultCurrency    string
	UserID             string
	TransferRecipients []categorize.TransferRecipient
	LogLevel           string
	LogFormat          string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GCP_PROJECT_ID", "")
	v.SetDefault("BQ_DATASET", "finance")
	v.SetDefault("GCS_BUCKET", "")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("LAYOUT_PROVIDER", ProviderGemini)
	v.SetDefault("LAYOUT_MODEL", "gemini-2.5-flash")
	v.SetDefault("LAYOUT_POLL_INTERVAL", "2s")
	v.SetDefault("OCR_LANGUAGE", "fra")
	v.SetDefault("TESSERACT_PATH", "tesseract")
	v.SetDefault("MAX_FILE_SIZE_MB", 20)
	v.SetDefault("WORKER_COUNT", 2)
	v.SetDefault("QUEUE_SIZE", 100)
	v.SetDefault("JOB_MAX_RETRIES", 3)
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("DEFAULT_CURRENCY", "EUR")
	v.SetDefault("USER_ID", "default")
	v.SetDefault("TRANSFER_RECIPIENTS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// Load reads configuration from environment variables, after loading a
// .env file if one exists.
func Load() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	pollInterval, err := time.ParseDuration(v.GetString("LAYOUT_POLL_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("config: LAYOUT_POLL_INTERVAL: %w", err)
	}
	recipients, err := ParseTransferRecipients(v.GetString("TRANSFER_RECIPIENTS"))
	if err != nil {
		return nil, fmt.Errorf("config: TRANSFER_RECIPIENTS: %w", err)
	}

	cfg := &Config{
		ProjectID:          v.GetString("GCP_PROJECT_ID"),
		Dataset:            v.GetString("BQ_DATASET"),
		Bucket:             v.GetString("GCS_BUCKET"),
		GeminiAPIKey:       v.GetString("GEMINI_API_KEY"),
		LayoutProvider:     strings.ToLower(strings.TrimSpace(v.GetString("LAYOUT_PROVIDER"))),
		LayoutModel:        v.GetString("LAYOUT_MODEL"),
		LayoutPollInterval: pollInterval,
		OCRLanguage:        v.GetString("OCR_LANGUAGE"),
		TesseractPath:      v.GetString("TESSERACT_PATH"),
		MaxFileSize:        v.GetInt64("MAX_FILE_SIZE_MB") << 20,
		WorkerCount:        v.GetInt("WORKER_COUNT"),
		QueueSize:          v.GetInt("QUEUE_SIZE"),
		MaxRetries:         v.GetInt("JOB_MAX_RETRIES"),
		HTTPPort:           v.GetString("HTTP_PORT"),
		DefaultCurrency:    v.GetString("DEFAULT_CURRENCY"),
		UserID:             v.GetString("USER_ID"),
		TransferRecipients: recipients,
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
	}

	switch cfg.LayoutProvider {
	case ProviderGemini, ProviderPDFText:
	default:
		return nil, fmt.Errorf("config: unknown LAYOUT_PROVIDER %q", cfg.LayoutProvider)
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return cfg, nil
}

// Logger builds the logger described by LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger() zerolog.Logger {
	return logger.NewWithOptions(logger.Options{Level: c.LogLevel, Format: c.LogFormat})
}

// RequireCloud reports an error naming the missing settings needed by
// commands that talk to BigQuery and GCS.
func (c *Config) RequireCloud() error {
	var missing []string
	if c.ProjectID == "" {
		missing = append(missing, "GCP_PROJECT_ID")
	}
	if c.Bucket == "" {
		missing = append(missing, "GCS_BUCKET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// ParseTransferRecipients parses "categoryID:token|token;categoryID:token".
// An empty value yields nil so that the engine keeps its defaults. Category
// names are accepted in place of ids.
func ParseTransferRecipients(value string) ([]categorize.TransferRecipient, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	var out []categorize.TransferRecipient
	for _, entry := range strings.Split(value, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		cat, tokens, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q: expected category:tokens", entry)
		}
		id, ok := categorize.Resolve(cat)
		if !ok {
			return nil, fmt.Errorf("entry %q: unknown category %q", entry, cat)
		}
		r := categorize.TransferRecipient{CategoryID: id}
		for _, t := range strings.Split(tokens, "|") {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				r.Tokens = append(r.Tokens, t)
			}
		}
		if len(r.Tokens) == 0 {
			return nil, fmt.Errorf("entry %q: no tokens", entry)
		}
		out = append(out, r)
	}
	return out, nil
}
