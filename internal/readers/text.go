package readers

import (
	"regexp"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/normalize"
	"github.com/dvloznov/finance-ingest/internal/statement"
)

var (
	textDateRe   = regexp.MustCompile(`\b\d{2}[/-]\d{2}[/-]\d{4}\b`)
	textAmountRe = regexp.MustCompile(`-?\b\d+(?:[ .]\d{3})*[.,]\d{2}\b`)
)

// ReadText extracts transactions from OCR text: a line holding both a date
// and an amount is one transaction whose description is the rest of the
// line. Other lines are ignored.
func ReadText(text string) Result {
	asm := statement.NewAssembler(0).RequireAmount()
	for i, line := range strings.Split(text, "\n") {
		asm.Begin(i)
		frag, ok := ParseTextLine(line)
		if !ok {
			continue
		}
		asm.SetDate(frag.Date)
		asm.SetDescription(frag.Description)
		asm.SetAmount(frag.Amount, "", false)
		asm.SetMeta(domain.MetaDetectionSource, "ocr_text")
	}
	frags := asm.Fragments()
	return Result{Fragments: frags, Dropped: asm.Dropped()}
}

// ParseTextLine applies the date + amount heuristic to one line.
func ParseTextLine(line string) (statement.Fragment, bool) {
	dateLoc := textDateRe.FindStringIndex(line)
	if dateLoc == nil {
		return statement.Fragment{}, false
	}
	rest := line[:dateLoc[0]] + " " + line[dateLoc[1]:]
	amountLoc := textAmountRe.FindStringIndex(rest)
	if amountLoc == nil {
		return statement.Fragment{}, false
	}
	amount, err := normalize.ParseAmount(strings.ReplaceAll(rest[amountLoc[0]:amountLoc[1]], " ", ""))
	if err != nil {
		return statement.Fragment{}, false
	}
	description := strings.Join(strings.Fields(rest[:amountLoc[0]]+" "+rest[amountLoc[1]:]), " ")
	return statement.Fragment{
		Date:        line[dateLoc[0]:dateLoc[1]],
		Description: description,
		Amount:      amount,
		HasAmount:   true,
	}, true
}

// CountTransactionLines returns how many lines of text satisfy the
// date + amount heuristic.
func CountTransactionLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if _, ok := ParseTextLine(line); ok {
			n++
		}
	}
	return n
}
