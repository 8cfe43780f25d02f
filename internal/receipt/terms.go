package receipt

import (
	"strings"
	"unicode"

	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// Term lists are accent-folded. Single words match whole words, phrases
// match as word sequences.
var (
	discountTerms = []string{
		"remise", "remises", "reduction", "reductions", "reduc", "promo", "fidelite", "avantage", "coupon",
		"bon de reduction", "discount", "carte fid",
	}
	loyaltyTerms = []string{"fidelite", "carte", "avantage", "loyalty"}
	summaryTerms = []string{
		"total", "montant du", "a payer", "net a payer", "tva", "cb", "especes",
		"rendu", "carte bancaire", "sous total",
	}
)

// words splits folded text into lowercase letter/digit runs.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// hasTerm reports whether the folded word list contains term, a single
// word or a phrase.
func hasTerm(tokens []string, term string) bool {
	parts := strings.Fields(term)
	if len(parts) == 0 || len(parts) > len(tokens) {
		return false
	}
	for i := 0; i+len(parts) <= len(tokens); i++ {
		match := true
		for j, p := range parts {
			if tokens[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func hasAnyTerm(text string, terms []string) bool {
	tokens := words(normalize.Fold(text))
	for _, t := range terms {
		if hasTerm(tokens, t) {
			return true
		}
	}
	return false
}

// IsDiscountText reports whether a line describes a discount.
func IsDiscountText(text string) bool { return hasAnyTerm(text, discountTerms) }

// IsSummaryText reports whether a line belongs to the receipt footer
// (totals, VAT, payment).
func IsSummaryText(text string) bool { return hasAnyTerm(text, summaryTerms) }

func isLoyaltyText(text string) bool { return hasAnyTerm(text, loyaltyTerms) }
