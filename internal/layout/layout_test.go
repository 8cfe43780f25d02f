package layout

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/dvloznov/finance-ingest/internal/docerrors"
)

type mockFiles struct {
	UploadFunc func(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error)
	GetFunc    func(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
	deleted    []string
}

func (m *mockFiles) Upload(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error) {
	return m.UploadFunc(ctx, r, config)
}

func (m *mockFiles) Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error) {
	return m.GetFunc(ctx, name, config)
}

func (m *mockFiles) Delete(ctx context.Context, name string, config *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error) {
	m.deleted = append(m.deleted, name)
	return &genai.DeleteFileResponse{}, nil
}

type mockModels struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

const sampleLayout = `{"pages":[{"lines":[{"content":"BoursoBank"},{"content":"Relevé de compte"}]}],
"tables":[{"row_count":2,"column_count":3,"cells":[
{"row_index":0,"column_index":0,"content":"Date opération"},
{"row_index":0,"column_index":1,"content":"Libellé"},
{"row_index":0,"column_index":2,"content":"Débit"},
{"row_index":1,"column_index":0,"content":"05/03/2024"},
{"row_index":1,"column_index":1,"content":"CARTE 04/03 LIDL"},
{"row_index":1,"column_index":2,"content":"12,30"}]}]}`

func TestGeminiAnalyzer_PollsUntilActive(t *testing.T) {
	polls := 0
	files := &mockFiles{
		UploadFunc: func(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error) {
			body, _ := io.ReadAll(r)
			assert.Equal(t, "%PDF-1.4", string(body))
			assert.Equal(t, "application/pdf", config.MIMEType)
			return &genai.File{Name: "files/abc", State: genai.FileStateProcessing}, nil
		},
		GetFunc: func(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error) {
			polls++
			if polls < 3 {
				return &genai.File{Name: name, State: genai.FileStateProcessing}, nil
			}
			return &genai.File{Name: name, URI: "https://files/abc", MIMEType: "application/pdf", State: genai.FileStateActive}, nil
		},
	}
	models := &mockModels{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			assert.Equal(t, "test-model", model)
			assert.Equal(t, "application/json", config.ResponseMIMEType)
			require.Len(t, contents, 1)
			require.Len(t, contents[0].Parts, 2)
			assert.Equal(t, "https://files/abc", contents[0].Parts[1].FileData.FileURI)
			return textResponse("```json\n" + sampleLayout + "\n```"), nil
		},
	}

	a := newGeminiAnalyzer(files, models, WithModel("test-model"), WithPollInterval(time.Millisecond))
	result, err := a.Analyze(context.Background(), []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, 3, polls)
	assert.Equal(t, []string{"files/abc"}, files.deleted)
	assert.Equal(t, []string{"BoursoBank", "Relevé de compte"}, result.AllLines())
	assert.Equal(t, 1, result.Pages[0].PageNumber)
	require.Len(t, result.Tables, 1)
	assert.Equal(t, "CARTE 04/03 LIDL", result.Tables[0].Grid()[1][1])
}

func TestGeminiAnalyzer_Failures(t *testing.T) {
	activeUpload := func(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error) {
		return &genai.File{Name: "files/x", URI: "u", State: genai.FileStateActive}, nil
	}

	tests := []struct {
		name     string
		upload   func(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error)
		get      func(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
		generate func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
		wantKind docerrors.Kind
	}{
		{
			name: "upload error",
			upload: func(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error) {
				return nil, errors.New("quota")
			},
			wantKind: docerrors.KindDocumentAnalysis,
		},
		{
			name: "file processing failed",
			upload: func(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error) {
				return &genai.File{Name: "files/x", State: genai.FileStateProcessing}, nil
			},
			get: func(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error) {
				return &genai.File{Name: name, State: genai.FileStateFailed}, nil
			},
			wantKind: docerrors.KindDocumentAnalysis,
		},
		{
			name:   "generate error",
			upload: activeUpload,
			generate: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return nil, errors.New("503")
			},
			wantKind: docerrors.KindDocumentAnalysis,
		},
		{
			name:   "unusable json",
			upload: activeUpload,
			generate: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return textResponse("I cannot read this document"), nil
			},
			wantKind: docerrors.KindDocumentAnalysis,
		},
		{
			name:   "no pages",
			upload: activeUpload,
			generate: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return textResponse(`{"pages":[],"tables":[]}`), nil
			},
			wantKind: docerrors.KindExtract,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := &mockFiles{UploadFunc: tt.upload, GetFunc: tt.get}
			models := &mockModels{GenerateContentFunc: tt.generate}
			a := newGeminiAnalyzer(files, models, WithPollInterval(time.Millisecond))

			_, err := a.Analyze(context.Background(), []byte("x"), "image/png")
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, docerrors.KindOf(err))
		})
	}
}

func TestNewGeminiAnalyzer_MissingKey(t *testing.T) {
	_, err := NewGeminiAnalyzer(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, docerrors.IsKind(err, docerrors.KindConfiguration))
	assert.ErrorIs(t, err, docerrors.ErrMissingCredentials)
}

func TestPollUntilDone_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := PollUntilDone(ctx, time.Millisecond, func(ctx context.Context) (bool, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding text", "Here you go: {\"a\":1} hope it helps", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestTableHelpers(t *testing.T) {
	table := Table{Cells: []Cell{
		{RowIndex: 1, ColumnIndex: 1, Content: "b"},
		{RowIndex: 0, ColumnIndex: 0, Content: "h"},
		{RowIndex: 1, ColumnIndex: 0, Content: "a"},
	}}

	assert.Equal(t, [][]string{{"h", ""}, {"a", "b"}}, table.Grid())
	row := table.Row(1)
	require.Len(t, row, 2)
	assert.Equal(t, "a", row[0].Content)
	assert.Equal(t, "h", table.SortedCells()[0].Content)
}

func TestBuildFromGlyphs(t *testing.T) {
	glyph := func(x, y float64, s string) pdf.Text {
		return pdf.Text{X: x, Y: y, W: float64(len(s)) * 5, S: s}
	}
	page := []pdf.Text{
		glyph(50, 800, "FORTUNEO"),
		glyph(50, 700, "Date"), glyph(150, 700, "Libellé"), glyph(400, 700, "Débit"), glyph(480, 700, "Crédit"),
		glyph(50, 680, "05/03/2024"), glyph(150, 680, "CARTE"), glyph(181, 680, "LIDL"), glyph(405, 680, "12,30"),
		glyph(50, 660, "06/03/2024"), glyph(150, 660, "VIR SEPA ACME"), glyph(485, 660, "1500,00"),
	}

	result := BuildFromGlyphs([][]pdf.Text{page})
	require.Len(t, result.Pages, 1)
	lines := result.AllLines()
	assert.Equal(t, "FORTUNEO", lines[0])
	assert.Equal(t, "05/03/2024 CARTE LIDL 12,30", lines[2])

	require.Len(t, result.Tables, 1)
	grid := result.Tables[0].Grid()
	require.Len(t, grid, 3)
	assert.Equal(t, []string{"Date", "Libellé", "Débit", "Crédit"}, grid[0])
	assert.Equal(t, []string{"05/03/2024", "CARTE LIDL", "12,30", ""}, grid[1])
	assert.Equal(t, []string{"06/03/2024", "VIR SEPA ACME", "", "1500,00"}, grid[2])
}
