// Package readers turns ledger files (CSV, spreadsheets) and OCR text into
// transaction fragments.
package readers

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/normalize"
	"github.com/dvloznov/finance-ingest/internal/statement"
)

// headerSearchRows bounds the header search of exported statements, whose
// first rows carry the bank letterhead.
const headerSearchRows = 10

// ledgerRules cover bank exports ("Date opération", "Libellé", "Débit",
// "Crédit") and plain ledgers (date, description, amount, category).
var ledgerRules = []statement.ColumnRule{
	{Keyword: "valeur", Role: statement.RoleValueDate},
	{Keyword: "date", Role: statement.RoleDate},
	{Keyword: "libell", Role: statement.RoleDescription},
	{Keyword: "description", Role: statement.RoleDescription},
	{Keyword: "operation", Role: statement.RoleDescription},
	{Keyword: "label", Role: statement.RoleDescription},
	{Keyword: "debit", Role: statement.RoleDebit},
	{Keyword: "credit", Role: statement.RoleCredit},
	{Keyword: "montant", Role: statement.RoleAmount},
	{Keyword: "amount", Role: statement.RoleAmount},
	{Keyword: "categor", Role: statement.RoleCategory},
}

var (
	bankHeaders    = []string{"date operation", "date valeur", "libelle", "debit", "credit"}
	bankSheetName  = []string{"historique", "operations", "table"}
	bankLetterhead = []string{"boursobank", "extrait de votre compte"}
	looseMarkers   = []string{"CARTE", "VIR", "PRLV", "AVOIR", "RETRAIT", "PAIEMENT"}
	incomeMarkers  = map[string]bool{"salaire": true, "remboursement": true, "caf": true, "avoir": true}
)

// Serial day numbers accepted as dates in exports without a header
// (2009-07-06 to 2036-11-21); wider values are more likely amounts.
const (
	looseSerialMin = 40000
	looseSerialMax = 50000
)

// Table is a named grid of cells: a CSV file or one spreadsheet sheet.
// Name is the file name or the sheet name.
type Table struct {
	Name  string
	Rows  [][]string
	Sheet bool
}

// Result holds the fragments read from one or more tables.
type Result struct {
	Fragments []statement.Fragment
	Dropped   int
	// BankLedger is true when at least one table was a bank export.
	BankLedger bool
}

func (r *Result) merge(o Result) {
	r.Fragments = append(r.Fragments, o.Fragments...)
	r.Dropped += o.Dropped
	r.BankLedger = r.BankLedger || o.BankLedger
}

// IsBankLedger reports whether a table is a bank statement export: its name
// mentions the operation history, its header carries bank column names, or
// its letterhead names the bank.
func IsBankLedger(name string, rows [][]string) bool {
	foldedName := normalize.Fold(name)
	for _, k := range bankSheetName {
		if strings.Contains(foldedName, k) {
			return true
		}
	}
	for i := 0; i < len(rows) && i < headerSearchRows; i++ {
		for _, cell := range rows[i] {
			folded := normalize.Fold(cell)
			for _, k := range bankHeaders {
				if strings.Contains(folded, k) {
					return true
				}
			}
			for _, k := range bankLetterhead {
				if strings.Contains(folded, k) {
					return true
				}
			}
		}
	}
	return false
}

// findHeader returns the first row of the search window naming a date and
// an amount-bearing column.
func findHeader(rows [][]string) (int, statement.Columns) {
	for i := 0; i < len(rows) && i < headerSearchRows; i++ {
		cols := statement.IdentifyColumns(rows[i], ledgerRules)
		if cols.Date >= 0 && cols.HasMoney() {
			return i, cols
		}
	}
	return -1, statement.NoColumns()
}

// ReadTable reads one table. Rows need a date, a description and a valid
// amount; the others are dropped.
func ReadTable(t Table) Result {
	bank := IsBankLedger(t.Name, t.Rows)
	source := "ledger"
	if bank {
		source = "bank_ledger"
	}

	asm := statement.NewAssembler(0).RequireAmount()
	header, cols := findHeader(t.Rows)
	switch {
	case header >= 0:
		if cols.Description < 0 && header+1 < len(t.Rows) {
			cols = statement.GuessColumns(t.Rows[header+1], cols)
		}
		for i := header + 1; i < len(t.Rows); i++ {
			asm.Begin(i)
			readRow(asm, t.Rows[i], cols)
		}
	case bank:
		for i, row := range t.Rows {
			asm.Begin(i)
			readLooseRow(asm, row)
		}
	}

	frags := asm.Fragments()
	for i := range frags {
		frags[i].SetMeta(domain.MetaDetectionSource, source)
		if t.Sheet {
			frags[i].SetMeta(domain.MetaSheet, t.Name)
		}
	}
	return Result{Fragments: frags, Dropped: asm.Dropped(), BankLedger: bank}
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func readRow(asm *statement.Assembler, row []string, cols statement.Columns) {
	if d := cellAt(row, cols.Date); d != "" {
		asm.SetDate(d)
	}
	if d := cellAt(row, cols.ValueDate); d != "" {
		asm.SetValueDate(d)
	}
	asm.SetDescription(cellAt(row, cols.Description))

	if raw := cellAt(row, cols.Debit); raw != "" {
		if v, err := normalize.ParseAmount(raw); err == nil && v != 0 {
			asm.SetAmount(-math.Abs(v), raw, true)
		}
	}
	if raw := cellAt(row, cols.Credit); raw != "" {
		if v, err := normalize.ParseAmount(raw); err == nil && v != 0 {
			asm.SetAmount(math.Abs(v), raw, false)
		}
	}
	if raw := cellAt(row, cols.Amount); raw != "" {
		if v, err := normalize.ParseAmount(raw); err == nil {
			asm.SetAmount(v, raw, v < 0)
		}
	}
	asm.SetCategory(cellAt(row, cols.Category))
}

// readLooseRow reads a row of an export whose header could not be found:
// the date is a serial day number or a date-shaped cell, the description
// the cell carrying an operation marker (else the longest text) and the
// amount the first other money cell.
func readLooseRow(asm *statement.Assembler, row []string) {
	dateIdx, descIdx := -1, -1
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if dateIdx < 0 && isDateCell(cell) {
			dateIdx = i
			continue
		}
		if descIdx < 0 && hasAnyPrefixWord(cell, looseMarkers) {
			descIdx = i
		}
	}
	if descIdx < 0 {
		longest := 3
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if i == dateIdx || isNumeric(cell) {
				continue
			}
			if n := len([]rune(cell)); n > longest {
				longest, descIdx = n, i
			}
		}
	}
	if descIdx < 0 {
		return
	}

	description := strings.TrimSpace(row[descIdx])
	asm.SetDescription(description)
	switch {
	case dateIdx >= 0:
		asm.SetDate(strings.TrimSpace(row[dateIdx]))
	default:
		if iso, ok := normalize.FindDate(description); ok {
			asm.SetDate(iso)
		}
	}

	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if i == dateIdx || i == descIdx || cell == "" || isDateCell(cell) {
			continue
		}
		v, err := normalize.ParseAmount(cell)
		if err != nil || v == 0 {
			continue
		}
		if v > 0 && !hasIncomeMarker(description) {
			v = -v
		}
		asm.SetAmount(v, cell, v < 0)
		return
	}
}

// isDateCell accepts date-shaped cells and whole serial day numbers.
func isDateCell(cell string) bool {
	if statement.LooksLikeDate(cell) {
		return true
	}
	n, err := strconv.ParseFloat(cell, 64)
	if err != nil || n != math.Trunc(n) {
		return false
	}
	return n > looseSerialMin && n < looseSerialMax
}

func isNumeric(cell string) bool {
	_, err := normalize.ParseAmount(cell)
	return err == nil
}

func hasAnyPrefixWord(cell string, markers []string) bool {
	upper := strings.ToUpper(cell)
	for _, m := range markers {
		if strings.HasPrefix(upper, m+" ") || strings.Contains(upper, " "+m+" ") {
			return true
		}
	}
	return false
}

func hasIncomeMarker(description string) bool {
	words := strings.FieldsFunc(normalize.Fold(description), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if incomeMarkers[w] {
			return true
		}
	}
	return false
}
