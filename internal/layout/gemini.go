package layout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/dvloznov/finance-ingest/internal/docerrors"
	"github.com/dvloznov/finance-ingest/internal/logger"
)

// DefaultModelName is the Gemini model used for layout extraction.
const DefaultModelName = "gemini-2.5-flash"

var errEmptyResponse = errors.New("empty response from model")

const layoutPrompt = "You are a document layout analyzer for French financial documents " +
	"(bank statements and shop receipts).\n\n" +
	"Task:\n" +
	"- Transcribe EVERY text line of EVERY page exactly as printed, top to bottom.\n" +
	"- Detect every table and return its cells with zero-based row and column indexes.\n" +
	"- Row 0 of a table is its header row when the table has one.\n" +
	"- Keep amounts, dates and signs exactly as printed (\"1.234,56\", \"05/03/2024\").\n" +
	"- Do not translate, summarize or reorder anything.\n\n" +
	"Output STRICT JSON only, with this shape:\n" +
	"{\"pages\":[{\"page_number\":1,\"lines\":[{\"content\":\"...\",\"polygon\":[x1,y1,x2,y2]}]}],\n" +
	" \"tables\":[{\"row_count\":0,\"column_count\":0,\"cells\":[{\"row_index\":0,\"column_index\":0,\"content\":\"...\"}]}]}\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n"

// genaiFiles is the subset of the Gemini Files API used by the analyzer.
type genaiFiles interface {
	Upload(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
	Delete(ctx context.Context, name string, config *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error)
}

// genaiModels is the subset of the Gemini Models API used by the analyzer.
type genaiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiAnalyzer submits documents to Gemini and reads back their layout.
// The upload is a long-running operation: the file is polled until the
// service reports it ACTIVE before the layout is requested.
type GeminiAnalyzer struct {
	files        genaiFiles
	models       genaiModels
	model        string
	pollInterval time.Duration
}

// GeminiOption configures a GeminiAnalyzer.
type GeminiOption func(*GeminiAnalyzer)

// WithModel overrides DefaultModelName.
func WithModel(name string) GeminiOption {
	return func(a *GeminiAnalyzer) {
		if name != "" {
			a.model = name
		}
	}
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) GeminiOption {
	return func(a *GeminiAnalyzer) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

// NewGeminiAnalyzer creates the analyzer. A missing API key is a
// configuration error and no client is created.
func NewGeminiAnalyzer(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiAnalyzer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, docerrors.Configuration("NewGeminiAnalyzer", "GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiAnalyzer: create genai client: %w", err)
	}
	return newGeminiAnalyzer(client.Files, client.Models, opts...), nil
}

func newGeminiAnalyzer(files genaiFiles, models genaiModels, opts ...GeminiOption) *GeminiAnalyzer {
	a := &GeminiAnalyzer{
		files:        files,
		models:       models,
		model:        DefaultModelName,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze uploads content, waits for the service to accept it and returns
// the parsed layout.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, content []byte, mimeType string) (*AnalysisResult, error) {
	log := logger.FromContext(ctx)

	file, err := a.files.Upload(ctx, bytes.NewReader(content), &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return nil, docerrors.DocumentAnalysis("GeminiAnalyzer.Analyze", fmt.Errorf("upload: %w", err))
	}
	defer func() {
		if _, err := a.files.Delete(context.WithoutCancel(ctx), file.Name, nil); err != nil {
			log.Warn().Err(err).Str("file", file.Name).Msg("Failed to delete uploaded file")
		}
	}()

	log.Debug().Str("file", file.Name).Msg("Waiting for layout service to accept document")
	err = PollUntilDone(ctx, a.pollInterval, func(ctx context.Context) (bool, error) {
		if file.State == genai.FileStateActive {
			return true, nil
		}
		if file.State == genai.FileStateFailed {
			return false, fmt.Errorf("file %s failed processing", file.Name)
		}
		current, err := a.files.Get(ctx, file.Name, nil)
		if err != nil {
			return false, fmt.Errorf("get file %s: %w", file.Name, err)
		}
		file.State = current.State
		if current.URI != "" {
			file.URI = current.URI
		}
		if current.State == genai.FileStateFailed {
			return false, fmt.Errorf("file %s failed processing", file.Name)
		}
		return current.State == genai.FileStateActive, nil
	})
	if err != nil {
		return nil, docerrors.DocumentAnalysis("GeminiAnalyzer.Analyze", err)
	}

	fileMIME := file.MIMEType
	if fileMIME == "" {
		fileMIME = mimeType
	}
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: layoutPrompt},
				genai.NewPartFromURI(file.URI, fileMIME),
			},
		},
	}
	resp, err := a.models.GenerateContent(ctx, a.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	})
	if err != nil {
		return nil, docerrors.DocumentAnalysis("GeminiAnalyzer.Analyze", fmt.Errorf("generate content: %w", err))
	}

	result, err := ParseLayoutJSON(resp.Text())
	if err != nil {
		return nil, docerrors.DocumentAnalysis("GeminiAnalyzer.Analyze", err)
	}
	if !result.HasContent() {
		return nil, docerrors.Extract("GeminiAnalyzer.Analyze", docerrors.ErrNoPages)
	}

	log.Info().
		Int("pages", len(result.Pages)).
		Int("tables", len(result.Tables)).
		Msg("Layout analysis completed")
	return result, nil
}

// ParseLayoutJSON decodes a model response into an AnalysisResult,
// tolerating code fences and text around the JSON object.
func ParseLayoutJSON(raw string) (*AnalysisResult, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("ParseLayoutJSON: %w", errEmptyResponse)
	}
	var result AnalysisResult
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &result); err != nil {
		return nil, fmt.Errorf("ParseLayoutJSON: unmarshal JSON: %w", err)
	}
	for i := range result.Pages {
		if result.Pages[i].PageNumber == 0 {
			result.Pages[i].PageNumber = i + 1
		}
	}
	return &result, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only the outermost JSON object.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
