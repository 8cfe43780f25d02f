package layout

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/dvloznov/finance-ingest/internal/docerrors"
	"github.com/dvloznov/finance-ingest/internal/logger"
)

const (
	// Horizontal gap (points) that separates two cells of the same row.
	cellGap = 8.0
	// Horizontal gap (points) above which two glyph runs get a space.
	wordGap = 1.0
	// Distance (points) under which two cell starts belong to the same column.
	columnTolerance = 25.0
)

// PDFTextAnalyzer builds a layout from the text layer of a PDF without any
// remote call. Lines come from glyph rows; tables are rebuilt by clustering
// the start positions of the cells of multi-cell rows into columns.
// Scanned PDFs have no text layer and yield an extract error.
type PDFTextAnalyzer struct{}

// NewPDFTextAnalyzer returns an offline analyzer.
func NewPDFTextAnalyzer() *PDFTextAnalyzer {
	return &PDFTextAnalyzer{}
}

// Analyze implements Analyzer for application/pdf content.
func (a *PDFTextAnalyzer) Analyze(ctx context.Context, content []byte, mimeType string) (result *AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, docerrors.DocumentAnalysis("PDFTextAnalyzer.Analyze", fmt.Errorf("pdf library crashed: %v", r))
		}
	}()

	if mimeType != "" && mimeType != "application/pdf" {
		return nil, docerrors.DocumentAnalysis("PDFTextAnalyzer.Analyze", fmt.Errorf("unsupported mime type %q", mimeType))
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, docerrors.DocumentAnalysis("PDFTextAnalyzer.Analyze", fmt.Errorf("open pdf: %w", err))
	}

	var pages [][]pdf.Text
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, nil)
			continue
		}
		pages = append(pages, page.Content().Text)
	}

	result = BuildFromGlyphs(pages)
	if !result.HasContent() {
		return nil, docerrors.Extract("PDFTextAnalyzer.Analyze", docerrors.ErrNoPages)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Int("pages", len(result.Pages)).
		Int("tables", len(result.Tables)).
		Msg("PDF text layer analyzed")
	return result, nil
}

type segment struct {
	x, right float64
	text     string
}

type glyphRow struct {
	y        float64
	segments []segment
}

// BuildFromGlyphs assembles pages of positioned glyph runs into a layout.
func BuildFromGlyphs(pages [][]pdf.Text) *AnalysisResult {
	result := &AnalysisResult{}
	for i, glyphs := range pages {
		rows := groupRows(glyphs)

		page := Page{PageNumber: i + 1}
		for _, row := range rows {
			parts := make([]string, 0, len(row.segments))
			for _, s := range row.segments {
				parts = append(parts, s.text)
			}
			first, last := row.segments[0], row.segments[len(row.segments)-1]
			page.Lines = append(page.Lines, Line{
				Content: strings.Join(parts, " "),
				Polygon: []float64{first.x, row.y, last.right, row.y},
			})
		}
		result.Pages = append(result.Pages, page)

		if table, ok := buildTable(rows); ok {
			result.Tables = append(result.Tables, table)
		}
	}
	return result
}

// groupRows groups glyphs sharing a baseline, top of the page first, and
// merges neighbouring glyphs into cell segments.
func groupRows(glyphs []pdf.Text) []glyphRow {
	byY := make(map[int][]pdf.Text)
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" && g.S != " " {
			continue
		}
		key := int(math.Round(g.Y))
		byY[key] = append(byY[key], g)
	}

	keys := make([]int, 0, len(byY))
	for k := range byY {
		keys = append(keys, k)
	}
	// PDF y grows upwards.
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))

	var rows []glyphRow
	for _, k := range keys {
		items := byY[k]
		sort.SliceStable(items, func(i, j int) bool { return items[i].X < items[j].X })

		var segs []segment
		var cur *segment
		for _, g := range items {
			if g.S == " " {
				if cur != nil {
					cur.text += " "
					cur.right = g.X + g.W
				}
				continue
			}
			if cur == nil || g.X-cur.right > cellGap {
				if cur != nil {
					segs = append(segs, *cur)
				}
				cur = &segment{x: g.X, right: g.X + g.W, text: g.S}
				continue
			}
			if g.X-cur.right > wordGap && !strings.HasSuffix(cur.text, " ") {
				cur.text += " "
			}
			cur.text += g.S
			cur.right = g.X + g.W
		}
		if cur != nil {
			segs = append(segs, *cur)
		}

		var cleaned []segment
		for _, s := range segs {
			s.text = strings.Join(strings.Fields(s.text), " ")
			if s.text != "" {
				cleaned = append(cleaned, s)
			}
		}
		if len(cleaned) > 0 {
			rows = append(rows, glyphRow{y: float64(k), segments: cleaned})
		}
	}
	return rows
}

// buildTable keeps the rows with at least two cells and assigns each cell to
// the nearest column anchor.
func buildTable(rows []glyphRow) (Table, bool) {
	var tableRows []glyphRow
	for _, r := range rows {
		if len(r.segments) >= 2 {
			tableRows = append(tableRows, r)
		}
	}
	if len(tableRows) < 2 {
		return Table{}, false
	}

	var xs []float64
	for _, r := range tableRows {
		for _, s := range r.segments {
			xs = append(xs, s.x)
		}
	}
	anchors := clusterColumns(xs)

	table := Table{RowCount: len(tableRows), ColumnCount: len(anchors)}
	for ri, r := range tableRows {
		used := make(map[int]int)
		for _, s := range r.segments {
			col := nearestAnchor(anchors, s.x)
			if idx, taken := used[col]; taken {
				table.Cells[idx].Content += " " + s.text
				continue
			}
			used[col] = len(table.Cells)
			table.Cells = append(table.Cells, Cell{
				RowIndex:    ri,
				ColumnIndex: col,
				Content:     s.text,
				BoundingBox: []float64{s.x, r.y, s.right, r.y},
			})
		}
	}
	return table, true
}

func clusterColumns(xs []float64) []float64 {
	sort.Float64s(xs)
	var anchors []float64
	var sum float64
	var n int
	for i, x := range xs {
		if i > 0 && x-xs[i-1] > columnTolerance {
			anchors = append(anchors, sum/float64(n))
			sum, n = 0, 0
		}
		sum += x
		n++
	}
	if n > 0 {
		anchors = append(anchors, sum/float64(n))
	}
	return anchors
}

func nearestAnchor(anchors []float64, x float64) int {
	best, bestDist := 0, math.MaxFloat64
	for i, a := range anchors {
		if d := math.Abs(a - x); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
