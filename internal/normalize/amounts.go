package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a token does not contain a number.
var ErrInvalidAmount = errors.New("invalid amount")

var plainNumberRe = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

var amountReplacer = strings.NewReplacer(
	"€", "",
	"EUR", "",
	"eur", "",
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	"'", "",
	"\u2212", "-",
)

// ParseDecimal parses a French or plain decimal amount token.
//
// Accepted shapes include "1 234,56", "1.234,56 €", "-12,30", "12,30-",
// "(12,30)" and "12.30". When both separators appear, the last one is the
// decimal mark.
func ParseDecimal(token string) (decimal.Decimal, error) {
	s := amountReplacer.Replace(strings.TrimSpace(token))
	if s == "" {
		return decimal.Zero, fmt.Errorf("ParseDecimal: empty token: %w", ErrInvalidAmount)
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimPrefix(s, "-")
	} else {
		s = strings.TrimPrefix(s, "+")
	}

	s = canonicalSeparators(s)
	if !plainNumberRe.MatchString(s) {
		return decimal.Zero, fmt.Errorf("ParseDecimal: %q: %w", token, ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ParseDecimal: %q: %w", token, ErrInvalidAmount)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// canonicalSeparators rewrites s so that '.' is the only (decimal) separator.
func canonicalSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			return strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

// ParseAmount is ParseDecimal returning a float rounded to cents.
func ParseAmount(token string) (float64, error) {
	d, err := ParseDecimal(token)
	if err != nil {
		return 0, err
	}
	return d.Round(2).InexactFloat64(), nil
}

// RoundCents rounds f half away from zero to two decimals.
func RoundCents(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}

// FormatFrench renders f as "1.234,56", the layout used on French statements.
func FormatFrench(f float64) string {
	d := decimal.NewFromFloat(f).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "," + frac
}
