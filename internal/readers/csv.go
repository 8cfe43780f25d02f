package readers

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/dvloznov/finance-ingest/internal/docerrors"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/metrics"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads a CSV ledger. French bank exports are often ISO-8859-1 and
// semicolon separated; both are detected.
func ReadCSV(ctx context.Context, content []byte, fileName string) (*Result, error) {
	text, err := decodeText(content)
	if err != nil {
		return nil, docerrors.Extract("ReadCSV", fmt.Errorf("decode: %w", err))
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, docerrors.Extract("ReadCSV", fmt.Errorf("parse: %w", err))
	}
	if len(rows) == 0 {
		return nil, docerrors.Extract("ReadCSV", docerrors.ErrEmptyDocument)
	}

	result := ReadTable(Table{Name: fileName, Rows: rows})
	metrics.FragmentDropped("csv", result.Dropped)
	log := logger.FromContext(ctx)
	log.Debug().
		Str("delimiter", string(r.Comma)).
		Int("rows", len(rows)).
		Int("fragments", len(result.Fragments)).
		Bool("bank_ledger", result.BankLedger).
		Msg("CSV read")

	if len(result.Fragments) == 0 {
		return nil, docerrors.Extract("ReadCSV", docerrors.ErrNoTransactions)
	}
	return &result, nil
}

// decodeText strips a UTF-8 BOM and converts Latin-1 content to UTF-8.
func decodeText(content []byte) ([]byte, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if utf8.Valid(content) {
		return content, nil
	}
	return charmap.ISO8859_1.NewDecoder().Bytes(content)
}

// sniffDelimiter picks the most frequent of ; , and tab on the first
// non-empty line, ignoring quoted sections.
func sniffDelimiter(text []byte) rune {
	line := text
	for len(line) > 0 {
		idx := bytes.IndexByte(line, '\n')
		candidate := line
		if idx >= 0 {
			candidate = line[:idx]
		}
		if len(bytes.TrimSpace(candidate)) > 0 {
			line = candidate
			break
		}
		if idx < 0 {
			break
		}
		line = line[idx+1:]
	}

	counts := map[rune]int{}
	inQuotes := false
	for _, c := range string(line) {
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case !inQuotes && (c == ';' || c == ',' || c == '\t'):
			counts[c]++
		}
	}
	best, bestCount := ',', 0
	for _, c := range []rune{';', ',', '\t'} {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}
