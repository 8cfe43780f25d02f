package statement

import (
	"regexp"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/layout"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// ColumnRole is the logical meaning of a table column.
type ColumnRole string

const (
	RoleDate        ColumnRole = "date"
	RoleValueDate   ColumnRole = "value_date"
	RoleDescription ColumnRole = "description"
	RoleDebit       ColumnRole = "debit"
	RoleCredit      ColumnRole = "credit"
	RoleAmount      ColumnRole = "amount"
	RoleCategory    ColumnRole = "category"
)

// ColumnRule maps a header keyword (matched accent-insensitively as a
// substring) to a role. Rules are tried in order; the first one matching a
// header cell wins and a role is assigned to one column only.
type ColumnRule struct {
	Keyword string
	Role    ColumnRole
}

// BankFormatProfile describes one supported statement layout.
type BankFormatProfile struct {
	Name string
	// Aliases are other names accepted as a bank hint.
	Aliases []string
	Markers []string
	Columns []ColumnRule
	// OpeningTriggers and ClosingTriggers start the balance lines.
	OpeningTriggers []string
	ClosingTriggers []string
}

// Matches reports whether any marker appears in the layout's lines.
func (p BankFormatProfile) Matches(result *layout.AnalysisResult) bool {
	if result == nil {
		return false
	}
	for _, m := range p.Markers {
		for _, line := range result.AllLines() {
			if strings.Contains(line, m) {
				return true
			}
		}
	}
	return false
}

// Columns holds the column index of each role, -1 when absent.
type Columns struct {
	Date        int
	ValueDate   int
	Description int
	Debit       int
	Credit      int
	Amount      int
	Category    int
}

// NoColumns returns a Columns with every role unassigned.
func NoColumns() Columns {
	return Columns{Date: -1, ValueDate: -1, Description: -1, Debit: -1, Credit: -1, Amount: -1, Category: -1}
}

func (c *Columns) slot(role ColumnRole) *int {
	switch role {
	case RoleDate:
		return &c.Date
	case RoleValueDate:
		return &c.ValueDate
	case RoleDescription:
		return &c.Description
	case RoleDebit:
		return &c.Debit
	case RoleCredit:
		return &c.Credit
	case RoleAmount:
		return &c.Amount
	case RoleCategory:
		return &c.Category
	}
	return nil
}

// Role returns the role assigned to column idx, or "".
func (c Columns) Role(idx int) ColumnRole {
	switch idx {
	case -1:
		return ""
	case c.Date:
		return RoleDate
	case c.ValueDate:
		return RoleValueDate
	case c.Description:
		return RoleDescription
	case c.Debit:
		return RoleDebit
	case c.Credit:
		return RoleCredit
	case c.Amount:
		return RoleAmount
	case c.Category:
		return RoleCategory
	}
	return ""
}

// HasMoney reports whether an amount-bearing column was found.
func (c Columns) HasMoney() bool {
	return c.Debit >= 0 || c.Credit >= 0 || c.Amount >= 0
}

// Usable reports whether transactions can be read with these columns.
func (c Columns) Usable() bool {
	return c.Date >= 0 && c.Description >= 0 && c.HasMoney()
}

// Count returns how many roles were assigned.
func (c Columns) Count() int {
	n := 0
	for _, v := range []int{c.Date, c.ValueDate, c.Description, c.Debit, c.Credit, c.Amount, c.Category} {
		if v >= 0 {
			n++
		}
	}
	return n
}

// IdentifyColumns matches header cells against rules.
func IdentifyColumns(header []string, rules []ColumnRule) Columns {
	cols := NoColumns()
	for idx, cell := range header {
		folded := normalize.Fold(cell)
		if folded == "" {
			continue
		}
		for _, rule := range rules {
			if !strings.Contains(folded, normalize.Fold(rule.Keyword)) {
				continue
			}
			slot := cols.slot(rule.Role)
			if slot == nil || *slot >= 0 {
				continue
			}
			*slot = idx
			break
		}
	}
	if cols.Date < 0 && cols.ValueDate >= 0 {
		cols.Date, cols.ValueDate = cols.ValueDate, -1
	}
	return cols
}

var (
	dateCellRe   = regexp.MustCompile(`^\d{2}/\d{2}(/\d{2,4})?`)
	amountCellRe = regexp.MustCompile(`^[-+]?\d{1,3}([ .\x{00a0}]?\d{3})*([.,]\d{2})?\s*(€|EUR)?$`)
)

// LooksLikeDate reports whether a cell starts with a DD/MM date.
func LooksLikeDate(cell string) bool {
	return dateCellRe.MatchString(strings.TrimSpace(cell))
}

// LooksLikeAmount reports whether a cell is a bare money amount.
func LooksLikeAmount(cell string) bool {
	cell = strings.TrimSpace(cell)
	return cell != "" && amountCellRe.MatchString(cell)
}

// GuessColumns fills the roles still missing in cols from a data row:
// a date-shaped cell is the date, a text longer than ten characters the
// description, and amount-shaped cells right of the description are the
// debit then the credit column.
func GuessColumns(row []string, cols Columns) Columns {
	for idx, cell := range row {
		if cols.Role(idx) != "" {
			continue
		}
		cell = strings.TrimSpace(cell)
		switch {
		case cols.Date < 0 && LooksLikeDate(cell):
			cols.Date = idx
		case cols.Description < 0 && len([]rune(cell)) > 10 && !LooksLikeAmount(cell):
			cols.Description = idx
		}
	}
	if cols.HasMoney() || cols.Description < 0 {
		return cols
	}
	for idx := cols.Description + 1; idx < len(row); idx++ {
		if cols.Role(idx) != "" || !LooksLikeAmount(row[idx]) {
			continue
		}
		if cols.Debit < 0 {
			cols.Debit = idx
			continue
		}
		cols.Credit = idx
		break
	}
	return cols
}
