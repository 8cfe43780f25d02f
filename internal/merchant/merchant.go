// Package merchant derives short merchant labels and lookup keys from bank
// transaction descriptions.
package merchant

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// "CARTE 12/01 FNAC", "PAIEMENT CB 12/01/24 SNCF", "CB 12/01/2024 LIDL"
	cardPrefixRe = regexp.MustCompile(`(?i)^\s*(?:paiement\s+par\s+carte|paiement\s+cb|carte|cb)\s+\d{2}/\d{2}(?:/\d{2,4})?\s+(.+)$`)
	cardSuffixRe = regexp.MustCompile(`(?i)\s*CB\*\s*\d{4}\s*$`)
	tailAmountRe = regexp.MustCompile(`\s*-?\d{1,3}(?:[ .]\d{3})*[.,]\d{2}\s*(?:€|EUR)?\s*$`)
	spacesRe     = regexp.MustCompile(`\s+`)

	cardKeyRe = regexp.MustCompile(`CARTE \d{2}/\d{2}/\d{2}\s+(.*?)\s*CB\*\d{4}`)
	virKeyRe  = regexp.MustCompile(`VIR SEPA\s+(.*?)(?:\s*$|\s+(?:REF|MOTIF))`)
	prlvKeyRe = regexp.MustCompile(`PRLV SEPA\s+(.*?)(?:\s*$|\s+(?:REF|MOTIF))`)
)

var stopWords = map[string]struct{}{
	"paiement": {}, "par": {}, "carte": {}, "cb": {}, "virement": {}, "vir": {},
	"vers": {}, "de": {}, "du": {}, "des": {}, "la": {}, "le": {},
	"prelevement": {}, "prélèvement": {}, "prlv": {}, "retrait": {}, "inst": {},
	"sepa": {}, "avec": {}, "depuis": {}, "interne": {}, "eu": {},
	"sarl": {}, "sas": {}, "sa": {}, "eurl": {}, "*": {},
}

// Extract returns a short merchant label for description, or "" when every
// token is boilerplate.
func Extract(description string) string {
	if m := cardPrefixRe.FindStringSubmatch(description); m != nil {
		label := cardSuffixRe.ReplaceAllString(m[1], "")
		label = tailAmountRe.ReplaceAllString(label, "")
		label = strings.TrimSpace(label)
		if label != "" {
			return label
		}
	}

	for _, word := range strings.Fields(strings.ToLower(description)) {
		if _, skip := stopWords[word]; skip {
			continue
		}
		return capitalize(word)
	}
	return ""
}

// NormalizeKey returns the token used to look up previous transactions from
// the same merchant. Card, SEPA transfer and SEPA direct-debit lines are
// reduced to the counterparty; anything else is the whole description.
func NormalizeKey(description string) string {
	upper := strings.ToUpper(strings.TrimSpace(description))
	key := upper
	for _, re := range []*regexp.Regexp{cardKeyRe, virKeyRe, prlvKeyRe} {
		if m := re.FindStringSubmatch(upper); m != nil && strings.TrimSpace(m[1]) != "" {
			key = m[1]
			break
		}
	}
	return spacesRe.ReplaceAllString(strings.TrimSpace(key), " ")
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}
