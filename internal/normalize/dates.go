// Package normalize converts French date and amount tokens into canonical
// ISO dates and signed amounts.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ISOLayout is the canonical date layout produced by the normalizer.
const ISOLayout = "2006-01-02"

// Spreadsheet serial numbers count days from 1899-12-30. Values outside
// this window are not treated as dates.
const (
	minSerial = 20000 // 1954-10-03
	maxSerial = 80000 // 2119-01-10
)

var spreadsheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var (
	isoRe    = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	dmyRe    = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})(?:\D|$)`)
	dmRe     = regexp.MustCompile(`^(\d{1,2})[/.](\d{1,2})(?:\s|$)`)
	proseRe  = regexp.MustCompile(`^(\d{1,2})(?:er)?\s+([a-z]+)\.?\s+(\d{4})`)
	serialRe = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
	anyDMY   = regexp.MustCompile(`\b(\d{2})[/\-](\d{2})[/\-](\d{4}|\d{2})\b`)
)

var frenchMonths = map[string]time.Month{
	"janvier": time.January, "janv": time.January, "jan": time.January,
	"fevrier": time.February, "fevr": time.February, "fev": time.February,
	"mars": time.March, "mar": time.March,
	"avril": time.April, "avr": time.April,
	"mai":  time.May,
	"juin": time.June,
	"juillet": time.July, "juil": time.July,
	"aout":      time.August,
	"septembre": time.September, "sept": time.September, "sep": time.September,
	"octobre": time.October, "oct": time.October,
	"novembre": time.November, "nov": time.November,
	"decembre": time.December, "dec": time.December,
}

// NormalizeDate converts a date token to YYYY-MM-DD.
// When the token cannot be parsed it returns now as ISO and ok=false; the
// caller flags the record as low confidence.
func NormalizeDate(token string, now time.Time) (string, bool) {
	if iso, ok := parseDate(token, 0); ok {
		return iso, true
	}
	return now.Format(ISOLayout), false
}

// NormalizeDateWithYear behaves like NormalizeDate and additionally accepts
// day/month tokens without a year, completing them with year.
func NormalizeDateWithYear(token string, year int, now time.Time) (string, bool) {
	if iso, ok := parseDate(token, year); ok {
		return iso, true
	}
	return now.Format(ISOLayout), false
}

// FindDate returns the first DD/MM/YYYY or DD/MM/YY date embedded in text.
func FindDate(text string) (string, bool) {
	m := anyDMY.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return buildDate(m[3], m[2], m[1])
}

// FromSerial converts a spreadsheet serial day number to an ISO date.
func FromSerial(serial float64) (string, bool) {
	if serial < minSerial || serial > maxSerial {
		return "", false
	}
	days := int(serial)
	return spreadsheetEpoch.AddDate(0, 0, days).Format(ISOLayout), true
}

func parseDate(token string, year int) (string, bool) {
	s := strings.TrimSpace(token)
	if s == "" {
		return "", false
	}

	if m := isoRe.FindStringSubmatch(s); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	if m := dmyRe.FindStringSubmatch(s); m != nil {
		return buildDate(m[3], m[2], m[1])
	}
	if year > 0 {
		if m := dmRe.FindStringSubmatch(s); m != nil {
			return buildDate(strconv.Itoa(year), m[2], m[1])
		}
	}
	if serialRe.MatchString(s) {
		if f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err == nil {
			return FromSerial(f)
		}
	}
	if m := proseRe.FindStringSubmatch(Fold(s)); m != nil {
		month, ok := frenchMonths[m[2]]
		if !ok {
			return "", false
		}
		return buildDate(m[3], strconv.Itoa(int(month)), m[1])
	}
	return "", false
}

// buildDate validates the parts and formats them. Two digit years are
// expanded with the 20 prefix.
func buildDate(y, m, d string) (string, bool) {
	if len(y) == 2 {
		y = "20" + y
	}
	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return t.Format(ISOLayout), true
}

// Fold lowercases s and strips diacritics ("Février" -> "fevrier").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
