// Package receipt reads purchased items, discounts and the printed total
// from the layout of a receipt and reconciles them.
package receipt

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/docerrors"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/layout"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// UnknownMerchant names receipts whose first line is empty.
const UnknownMerchant = "Commerçant inconnu"

var (
	priceRe    = regexp.MustCompile(`^(-\s?)?\d+(?:[ .]\d{3})*[.,]\d{2}-?(?:€|EUR)?$`)
	quantityRe = regexp.MustCompile(`^\d{1,3}$`)
	vatCodeRe  = regexp.MustCompile(`^[A-Z]\d?$`)
)

// Extractor turns a receipt layout into a ReceiptData.
type Extractor struct {
	categorizer categorize.Categorizer
	now         func() time.Time
}

// NewExtractor returns an extractor categorizing the receipt merchant with c.
func NewExtractor(c categorize.Categorizer, now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{categorizer: c, now: now}
}

// row is one candidate item or discount line.
type row struct {
	description string
	price       decimal.Decimal
	negative    bool
	quantity    int
}

// pendingDiscount is a discount row waiting for attachment. lastItem is the
// index of the item read just before it, -1 when none.
type pendingDiscount struct {
	description string
	amount      decimal.Decimal
	lastItem    int
	afterFooter bool
}

// Extract reads the receipt. Reconciliation problems are reported as
// warnings; only a result without pages is an error.
func (x *Extractor) Extract(ctx context.Context, result *layout.AnalysisResult) (*domain.ReceiptData, error) {
	if result == nil || len(result.Pages) == 0 {
		return nil, docerrors.Extract("receipt.Extract", docerrors.ErrNoPages)
	}
	log := logger.FromContext(ctx)

	lines := result.AllLines()
	merchantName := firstLine(result.Pages[0])
	date := x.now().Format(normalize.ISOLayout)
	for _, line := range lines {
		if iso, ok := normalize.FindDate(line); ok {
			date = iso
			break
		}
	}

	items, discounts := readTables(result.Tables)
	source := "table"
	if len(items) == 0 {
		items, discounts = readLines(lines)
		source = "lines"
	}
	records := attachDiscounts(items, discounts)

	detected := DetectTotal(lines, items)
	validation, total := Reconcile(items, records, detected)

	receipt := &domain.ReceiptData{
		ID:              uuid.NewString(),
		MerchantName:    merchantName,
		Date:            date,
		Total:           total,
		CalculatedTotal: validation.CalculatedTotal,
		Items:           items,
		Discounts:       records,
		Validation:      validation,
		Status:          domain.ReceiptProcessed,
	}
	if x.categorizer != nil {
		receipt.CategoryID = x.categorizer.Categorize(ctx, merchantName, -total).CategoryID
	}

	log.Debug().
		Str("merchant", merchantName).
		Str("item_source", source).
		Int("items", len(items)).
		Int("discounts", len(records)).
		Bool("matches", validation.Matches).
		Float64("discrepancy", validation.Discrepancy).
		Msg("Receipt extracted")
	return receipt, nil
}

func firstLine(page layout.Page) string {
	for _, l := range page.Lines {
		if s := strings.TrimSpace(l.Content); s != "" {
			return s
		}
	}
	return UnknownMerchant
}

// readTables reads item and discount rows from every table. Rows after the
// first footer row are only scanned for discounts. A footer marker above the
// first item (a VAT number in the letterhead) does not end the items.
func readTables(tables []layout.Table) ([]domain.ReceiptLineItem, []pendingDiscount) {
	var items []domain.ReceiptLineItem
	var discounts []pendingDiscount
	for _, t := range tables {
		footer := false
		for _, cells := range t.Grid() {
			if IsSummaryText(strings.Join(cells, " ")) {
				footer = footer || len(items) > 0
				continue
			}
			r, ok := parseCells(cells)
			if !ok {
				continue
			}
			items, discounts = collect(items, discounts, r, footer)
		}
	}
	return items, discounts
}

// readLines reads "DESCRIPTION ... 12,34" lines up to the footer.
func readLines(lines []string) ([]domain.ReceiptLineItem, []pendingDiscount) {
	var items []domain.ReceiptLineItem
	var discounts []pendingDiscount
	footer := false
	for _, line := range lines {
		if IsSummaryText(line) {
			footer = footer || len(items) > 0
			continue
		}
		r, ok := parseCells(strings.Fields(line))
		if !ok {
			continue
		}
		items, discounts = collect(items, discounts, r, footer)
	}
	return items, discounts
}

func collect(items []domain.ReceiptLineItem, discounts []pendingDiscount, r row, footer bool) ([]domain.ReceiptLineItem, []pendingDiscount) {
	if r.negative || IsDiscountText(r.description) {
		return items, append(discounts, pendingDiscount{
			description: r.description,
			amount:      r.price.Abs(),
			lastItem:    len(items) - 1,
			afterFooter: footer,
		})
	}
	if footer {
		return items, discounts
	}
	total := r.price.Round(2)
	unit := total
	if r.quantity > 1 {
		unit = total.Div(decimal.NewFromInt(int64(r.quantity))).Round(2)
	}
	return append(items, domain.ReceiptLineItem{
		Description: r.description,
		Quantity:    r.quantity,
		UnitPrice:   unit.InexactFloat64(),
		Total:       total.InexactFloat64(),
		CategoryID:  ProductCategory(r.description),
	}), discounts
}

// parseCells reads one row of cells (table cells or the words of a line).
// The price is the last money-shaped cell, trailing currency and VAT code
// cells are skipped, the description is made of the text cells before the
// price and the quantity is an integer-only cell between 1 and 999.
func parseCells(cells []string) (row, bool) {
	end := len(cells)
	for end > 0 {
		c := strings.TrimSpace(cells[end-1])
		if c == "" || c == "€" || strings.EqualFold(c, "EUR") || vatCodeRe.MatchString(c) {
			end--
			continue
		}
		break
	}
	priceIdx := -1
	for i := end - 1; i >= 0; i-- {
		if priceRe.MatchString(strings.TrimSpace(cells[i])) {
			priceIdx = i
			break
		}
	}
	if priceIdx < 0 {
		return row{}, false
	}
	raw := strings.TrimSpace(cells[priceIdx])
	price, err := normalize.ParseDecimal(raw)
	if err != nil {
		return row{}, false
	}

	r := row{price: price, negative: strings.HasPrefix(raw, "-") || price.IsNegative(), quantity: 1}
	var desc []string
	quantityFound := false
	for i := 0; i < priceIdx; i++ {
		c := strings.TrimSpace(cells[i])
		if c == "" {
			continue
		}
		if quantityRe.MatchString(c) && !quantityFound {
			if n, _ := strconv.Atoi(c); n >= 1 && n <= 999 {
				r.quantity = n
				quantityFound = true
				continue
			}
		}
		if priceRe.MatchString(c) {
			// unit price column
			continue
		}
		if strings.EqualFold(c, "x") || c == "*" {
			continue
		}
		desc = append(desc, c)
	}
	r.description = strings.Join(desc, " ")
	if r.description == "" || !hasLetter(r.description) {
		return row{}, false
	}
	return r, true
}

func hasLetter(s string) bool {
	for _, r := range s {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || r > 0x7f {
			return true
		}
	}
	return false
}
