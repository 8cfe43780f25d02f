package receipt

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// minSignificantWord is the shortest item word used to match a discount
// to an item by name.
const minSignificantWord = 4

// attachDiscounts applies each discount to the item it targets and returns
// the discount records. A discount naming an item goes to that item; a
// loyalty discount goes to the item read just before it; anything else,
// and every discount found below the footer, applies to the total.
func attachDiscounts(items []domain.ReceiptLineItem, pending []pendingDiscount) []domain.DiscountRecord {
	records := make([]domain.DiscountRecord, 0, len(pending))
	for _, d := range pending {
		rec := domain.DiscountRecord{
			Description: d.description,
			Amount:      d.amount.Round(2).InexactFloat64(),
			Scope:       domain.ScopeTotal,
		}
		idx := -1
		if !d.afterFooter {
			idx = targetItem(items, d)
		}
		if idx >= 0 {
			applyDiscount(&items[idx], d.amount)
			target := idx
			rec.Scope = domain.ScopeItem
			rec.ItemIndex = &target
		}
		records = append(records, rec)
	}
	return records
}

func targetItem(items []domain.ReceiptLineItem, d pendingDiscount) int {
	if idx := itemByName(items, d.description); idx >= 0 {
		return idx
	}
	if isLoyaltyText(d.description) && d.lastItem >= 0 && d.lastItem < len(items) {
		return d.lastItem
	}
	return -1
}

// itemByName returns the most recent item whose description is contained
// in the discount text or whose first significant word the discount shares.
func itemByName(items []domain.ReceiptLineItem, discount string) int {
	folded := normalize.Fold(discount)
	discountWords := make(map[string]bool)
	for _, w := range words(folded) {
		discountWords[w] = true
	}
	for i := len(items) - 1; i >= 0; i-- {
		name := normalize.Fold(items[i].Description)
		if name != "" && strings.Contains(folded, name) {
			return i
		}
		if w := significantWord(name); w != "" && discountWords[w] {
			return i
		}
	}
	return -1
}

func significantWord(folded string) string {
	for _, w := range words(folded) {
		if len(w) < minSignificantWord || hasAnyTerm(w, discountTerms) || hasAnyTerm(w, loyaltyTerms) {
			continue
		}
		return w
	}
	return ""
}

// applyDiscount keeps Total = OriginalTotal - Discount.
func applyDiscount(item *domain.ReceiptLineItem, amount decimal.Decimal) {
	if item.OriginalTotal == nil {
		original := item.Total
		item.OriginalTotal = &original
	}
	discount := amount
	if item.Discount != nil {
		discount = discount.Add(decimal.NewFromFloat(*item.Discount))
	}
	d := discount.Round(2).InexactFloat64()
	item.Discount = &d
	item.Total = decimal.NewFromFloat(*item.OriginalTotal).Sub(discount).Round(2).InexactFloat64()
}
