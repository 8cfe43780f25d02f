// Package layout holds the layout analysis model (pages of positioned text
// lines plus detected tables) and the analyzers that produce it.
package layout

import (
	"context"
	"sort"
	"strings"
)

// Analyzer turns a document into its layout. Implementations block until
// the analysis is complete or ctx is done.
type Analyzer interface {
	Analyze(ctx context.Context, content []byte, mimeType string) (*AnalysisResult, error)
}

// Line is a text line with its bounding polygon (x1,y1,x2,y2,...).
type Line struct {
	Content string    `json:"content"`
	Polygon []float64 `json:"polygon,omitempty"`
}

// Page groups the lines of one page.
type Page struct {
	PageNumber int     `json:"page_number"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
	Lines      []Line  `json:"lines"`
}

// Cell is one table cell.
type Cell struct {
	RowIndex    int       `json:"row_index"`
	ColumnIndex int       `json:"column_index"`
	Content     string    `json:"content"`
	BoundingBox []float64 `json:"bounding_box,omitempty"`
}

// Table is a detected table. Row 0 is the header row when the document has one.
type Table struct {
	RowCount    int    `json:"row_count"`
	ColumnCount int    `json:"column_count"`
	Cells       []Cell `json:"cells"`
}

// AnalysisResult is the read-only output of a layout analysis.
type AnalysisResult struct {
	Pages  []Page  `json:"pages"`
	Tables []Table `json:"tables"`
}

// AllLines returns the text of every line of every page, in reading order.
func (r *AnalysisResult) AllLines() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, p := range r.Pages {
		for _, l := range p.Lines {
			out = append(out, l.Content)
		}
	}
	return out
}

// ContainsText reports whether any line contains needle, ignoring case.
func (r *AnalysisResult) ContainsText(needle string) bool {
	n := strings.ToLower(needle)
	for _, l := range r.AllLines() {
		if strings.Contains(strings.ToLower(l), n) {
			return true
		}
	}
	return false
}

// HasContent reports whether the result has at least one line or cell.
func (r *AnalysisResult) HasContent() bool {
	if r == nil {
		return false
	}
	for _, p := range r.Pages {
		if len(p.Lines) > 0 {
			return true
		}
	}
	for _, t := range r.Tables {
		if len(t.Cells) > 0 {
			return true
		}
	}
	return false
}

// Row returns the cells of row index, ordered by column.
func (t Table) Row(index int) []Cell {
	var row []Cell
	for _, c := range t.Cells {
		if c.RowIndex == index {
			row = append(row, c)
		}
	}
	sort.Slice(row, func(i, j int) bool { return row[i].ColumnIndex < row[j].ColumnIndex })
	return row
}

// SortedCells returns the cells ordered by row then column.
func (t Table) SortedCells() []Cell {
	cells := make([]Cell, len(t.Cells))
	copy(cells, t.Cells)
	sort.SliceStable(cells, func(i, j int) bool {
		if cells[i].RowIndex != cells[j].RowIndex {
			return cells[i].RowIndex < cells[j].RowIndex
		}
		return cells[i].ColumnIndex < cells[j].ColumnIndex
	})
	return cells
}

// Grid returns the table as text rows. Missing cells are empty strings.
func (t Table) Grid() [][]string {
	rows, cols := t.RowCount, t.ColumnCount
	for _, c := range t.Cells {
		if c.RowIndex+1 > rows {
			rows = c.RowIndex + 1
		}
		if c.ColumnIndex+1 > cols {
			cols = c.ColumnIndex + 1
		}
	}
	grid := make([][]string, rows)
	for i := range grid {
		grid[i] = make([]string, cols)
	}
	for _, c := range t.Cells {
		if c.RowIndex < 0 || c.ColumnIndex < 0 {
			continue
		}
		grid[c.RowIndex][c.ColumnIndex] = c.Content
	}
	return grid
}
