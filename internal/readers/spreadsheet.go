package readers

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/finance-ingest/internal/docerrors"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/metrics"
)

// maxXLSRows caps the rows read per legacy sheet.
const maxXLSRows = 65536

var (
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
)

// ReadWorkbook reads every sheet of an .xlsx or .xls workbook.
func ReadWorkbook(ctx context.Context, content []byte, fileName string) (*Result, error) {
	sheets, err := LoadSheets(content, fileName)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)

	var result Result
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ReadWorkbook: %w", err)
		}
		r := ReadTable(sheet)
		log.Debug().
			Str("sheet", sheet.Name).
			Int("rows", len(sheet.Rows)).
			Int("fragments", len(r.Fragments)).
			Bool("bank_ledger", r.BankLedger).
			Msg("Sheet read")
		result.merge(r)
	}
	metrics.FragmentDropped("spreadsheet", result.Dropped)

	if len(result.Fragments) == 0 {
		return nil, docerrors.Extract("ReadWorkbook", docerrors.ErrNoTransactions)
	}
	return &result, nil
}

// LoadSheets returns the cell grid of every sheet. The container is chosen
// from the magic bytes, then from the extension.
func LoadSheets(content []byte, fileName string) ([]Table, error) {
	switch {
	case bytes.HasPrefix(content, oleMagic):
		return loadXLS(content)
	case bytes.HasPrefix(content, zipMagic):
		return loadXLSX(content)
	case strings.EqualFold(filepath.Ext(fileName), ".xls"):
		return loadXLS(content)
	default:
		return loadXLSX(content)
	}
}

func loadXLSX(content []byte) ([]Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, docerrors.Extract("loadXLSX", fmt.Errorf("open workbook: %w", err))
	}
	defer f.Close()

	var tables []Table
	for _, name := range f.GetSheetList() {
		// Raw values keep dates as serial day numbers instead of
		// locale-formatted strings.
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, docerrors.Extract("loadXLSX", fmt.Errorf("read sheet %q: %w", name, err))
		}
		tables = append(tables, Table{Name: name, Rows: rows, Sheet: true})
	}
	return tables, nil
}

func loadXLS(content []byte) ([]Table, error) {
	wb, err := xls.OpenReader(bytes.NewReader(content), "cp1252")
	if err != nil {
		return nil, docerrors.Extract("loadXLS", fmt.Errorf("open workbook: %w", err))
	}

	var tables []Table
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		var rows [][]string
		for r := 0; r <= int(sheet.MaxRow) && r < maxXLSRows; r++ {
			row := sheet.Row(r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows = append(rows, cells)
		}
		tables = append(tables, Table{Name: sheet.Name, Rows: rows, Sheet: true})
	}
	return tables, nil
}
