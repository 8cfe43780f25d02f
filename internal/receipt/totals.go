package receipt

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

var totalAmountRe = regexp.MustCompile(`\d+(?:[ .]\d{3})*[.,]\d{2}\b`)

// totalKeyword ranks the wording of a total line. Stronger wording is the
// amount actually paid.
type totalKeyword struct {
	term     string
	strength int
}

// Checked in order, the first matching term gives the line its strength.
var totalKeywords = []totalKeyword{
	{"net a payer", 5},
	{"montant du", 5},
	{"a payer", 4},
	{"total ttc", 4},
	{"sous total", 1},
	{"total ht", 1},
	{"total", 3},
}

// TotalCandidate is an amount read from a total line.
type TotalCandidate struct {
	Value    decimal.Decimal
	Strength int
	Line     int
}

// TotalCandidates returns every amount printed on a total line. VAT lines
// ("TOTAL TVA") and discount recaps are not totals.
func TotalCandidates(lines []string) []TotalCandidate {
	var out []TotalCandidate
	for i, line := range lines {
		strength := totalStrength(line)
		if strength == 0 {
			continue
		}
		for _, m := range totalAmountRe.FindAllString(line, -1) {
			v, err := normalize.ParseDecimal(m)
			if err != nil || !v.IsPositive() {
				continue
			}
			out = append(out, TotalCandidate{Value: v, Strength: strength, Line: i})
		}
	}
	return out
}

func totalStrength(line string) int {
	tokens := words(normalize.Fold(line))
	if hasTerm(tokens, "tva") && !hasTerm(tokens, "ttc") {
		return 0
	}
	if IsDiscountText(line) {
		return 0
	}
	for _, k := range totalKeywords {
		if hasTerm(tokens, k.term) {
			return k.strength
		}
	}
	return 0
}

// DetectTotal picks the printed total: the strongest wording wins, then the
// lowest line on the receipt, then the largest amount on that line.
// When items were read, an amount above twice their sum only loses to one
// of the same strength that stays within it.
func DetectTotal(lines []string, items []domain.ReceiptLineItem) *float64 {
	candidates := TotalCandidates(lines)
	if len(candidates) == 0 {
		return nil
	}

	best := 0
	for _, c := range candidates {
		if c.Strength > best {
			best = c.Strength
		}
	}
	strongest := make([]TotalCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Strength == best {
			strongest = append(strongest, c)
		}
	}

	itemSum := decimal.Zero
	for _, it := range items {
		itemSum = itemSum.Add(decimal.NewFromFloat(it.Total))
	}
	if itemSum.IsPositive() {
		limit := itemSum.Mul(decimal.NewFromInt(2))
		var plausible []TotalCandidate
		for _, c := range strongest {
			if c.Value.LessThanOrEqual(limit) {
				plausible = append(plausible, c)
			}
		}
		if len(plausible) > 0 {
			strongest = plausible
		}
	}

	sort.SliceStable(strongest, func(i, j int) bool {
		a, b := strongest[i], strongest[j]
		if a.Line != b.Line {
			return a.Line > b.Line
		}
		return a.Value.GreaterThan(b.Value)
	})
	v := strongest[0].Value.Round(2).InexactFloat64()
	return &v
}

// HasTotalLine reports whether text contains a total line with an amount,
// the mark of a receipt rather than a statement.
func HasTotalLine(text string) bool {
	return len(TotalCandidates(strings.Split(text, "\n"))) > 0
}
