package statement

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/finance-ingest/internal/layout"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// Info is the statement-level data found in the free text of a statement.
type Info struct {
	DocumentName    string
	StatementNumber string
	StatementDate   string
	Period          string
	AccountHolder   string
	OpeningBalance  *float64
	ClosingBalance  *float64
	PrintedDebits   *float64
	PrintedCredits  *float64
	// Year completes DD/MM transaction dates; 0 when unknown.
	Year int
}

var (
	moneyTokenRe    = regexp.MustCompile(`[-+]?\b\d{1,3}(?:[ .\x{00a0}\x{202f}]\d{3})+,\d{2}\b|[-+]?\b\d+[.,]\d{2}\b`)
	statementNoRe   = regexp.MustCompile(`N[º°o]\s*\.?\s*(\d+)`)
	yearRe          = regexp.MustCompile(`\b(20\d{2})\b`)
	holderPrefixRe  = regexp.MustCompile(`(?i)^.*titulaire(?:\(s\))?(?:\s+du\s+compte)?\s*:?\s*`)
	printedDebitRe  = regexp.MustCompile(`(?i)d[ée]bits?\s*:?\s*([\d .\x{00a0}]+[.,]\d{2})`)
	printedCreditRe = regexp.MustCompile(`(?i)cr[ée]dits?\s*:?\s*([\d .\x{00a0}]+[.,]\d{2})`)
)

// ExtractInfo scans every line for the statement triggers of profile.
func ExtractInfo(result *layout.AnalysisResult, profile BankFormatProfile, now time.Time) Info {
	var info Info
	if result == nil {
		return info
	}

	for _, line := range result.AllLines() {
		content := strings.TrimSpace(line)
		folded := normalize.Fold(content)

		switch {
		case strings.Contains(folded, "releve de compte") && info.DocumentName == "":
			info.DocumentName = content
		case strings.Contains(folded, "arrete au"):
			info.StatementDate = strings.TrimSpace(afterFold(content, folded, "arrete au"))
		case strings.Contains(folded, "periode du"):
			info.Period = strings.TrimSpace(afterFold(content, folded, "periode du"))
		}

		if m := statementNoRe.FindStringSubmatch(content); m != nil && info.StatementNumber == "" {
			info.StatementNumber = m[1]
			if y := yearRe.FindStringSubmatch(content); y != nil && info.Year == 0 {
				info.Year, _ = strconv.Atoi(y[1])
			}
		}

		if strings.Contains(folded, "titulaire") && info.AccountHolder == "" {
			info.AccountHolder = strings.TrimSpace(holderPrefixRe.ReplaceAllString(content, ""))
		}

		// Closing triggers ("NOUVEAU SOLDE") may contain opening ones.
		switch {
		case containsAny(folded, profile.ClosingTriggers):
			if v, ok := lastMoney(content); ok {
				info.ClosingBalance = &v
			}
		case containsAny(folded, profile.OpeningTriggers):
			if v, ok := lastMoney(content); ok {
				info.OpeningBalance = &v
			}
		}

		if strings.Contains(folded, "total des operations") {
			if v, ok := captureMoney(printedDebitRe, content); ok {
				info.PrintedDebits = &v
			}
			if v, ok := captureMoney(printedCreditRe, content); ok {
				info.PrintedCredits = &v
			}
		}
	}

	info.StatementDate = statementDateISO(info, now)
	if info.Year == 0 && info.StatementDate != "" {
		info.Year, _ = strconv.Atoi(info.StatementDate[:4])
	}
	return info
}

// statementDateISO resolves the statement date from "Arrêté au", then the
// end of the period, then the processing date.
func statementDateISO(info Info, now time.Time) string {
	if info.StatementDate != "" {
		if iso, ok := normalize.NormalizeDate(info.StatementDate, now); ok {
			return iso
		}
	}
	if info.Period != "" {
		end := strings.TrimSpace(afterFold(info.Period, normalize.Fold(info.Period), " au "))
		if iso, ok := normalize.NormalizeDate(end, now); ok && end != "" {
			return iso
		}
		if iso, ok := normalize.FindDate(info.Period); ok {
			return iso
		}
	}
	return now.Format(normalize.ISOLayout)
}

// afterFold returns the part of content following key, where key was found
// in the folded form of content. Folding only drops combining marks, so the
// tail of both strings has the same rune count.
func afterFold(content, folded, key string) string {
	idx := strings.Index(folded, key)
	if idx < 0 {
		return ""
	}
	tailRunes := len([]rune(folded[idx+len(key):]))
	runes := []rune(content)
	if tailRunes > len(runes) {
		return ""
	}
	return string(runes[len(runes)-tailRunes:])
}

func containsAny(folded string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(folded, normalize.Fold(t)) {
			return true
		}
	}
	return false
}

func lastMoney(content string) (float64, bool) {
	matches := moneyTokenRe.FindAllString(content, -1)
	if len(matches) == 0 {
		return 0, false
	}
	v, err := normalize.ParseAmount(matches[len(matches)-1])
	if err != nil {
		return 0, false
	}
	return v, true
}

func captureMoney(re *regexp.Regexp, content string) (float64, bool) {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return 0, false
	}
	v, err := normalize.ParseAmount(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}
