package receipt

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

// matchThreshold is the largest discrepancy still reported as a match.
var matchThreshold = decimal.New(1, -2)

const (
	warnNoTotal      = "no printed total detected"
	warnMissingItems = "missing items: printed total exceeds extracted items by %s"
	warnOverCounted  = "calculated total exceeds printed total by %s"
)

// Reconcile compares the printed total with the items. The printed total
// may be read before or after the receipt-level discounts, so the closer of
// both readings is kept. It returns the report and the receipt total: the
// printed total when present, else the items minus receipt-level discounts.
func Reconcile(items []domain.ReceiptLineItem, discounts []domain.DiscountRecord, detected *float64) (domain.ValidationReport, float64) {
	calculated := decimal.Zero
	for _, it := range items {
		calculated = calculated.Add(decimal.NewFromFloat(it.Total))
	}
	calculated = calculated.Round(2)

	totalDiscounts := decimal.Zero
	for _, d := range discounts {
		if d.Scope == domain.ScopeTotal {
			totalDiscounts = totalDiscounts.Add(decimal.NewFromFloat(d.Amount))
		}
	}
	net := calculated.Sub(totalDiscounts).Round(2)

	report := domain.ValidationReport{
		CalculatedTotal: calculated.InexactFloat64(),
		Warnings:        []string{},
	}

	if detected == nil {
		report.Confidence = 0.5
		report.Warnings = append(report.Warnings, warnNoTotal)
		return report, net.InexactFloat64()
	}

	printed := decimal.NewFromFloat(*detected).Round(2)
	p := printed.InexactFloat64()
	report.DetectedTotal = &p

	// Signed gaps: positive means the printed total is higher.
	gap := printed.Sub(calculated)
	if netGap := printed.Sub(net); netGap.Abs().LessThan(gap.Abs()) {
		gap = netGap
	}
	discrepancy := gap.Abs().Round(2)
	report.Discrepancy = discrepancy.InexactFloat64()
	report.Matches = discrepancy.LessThanOrEqual(matchThreshold)

	switch {
	case report.Matches:
		report.Confidence = 0.95
	case gap.IsPositive():
		report.Warnings = append(report.Warnings, fmt.Sprintf(warnMissingItems, discrepancy.StringFixed(2)))
		report.Confidence = mismatchConfidence(discrepancy, printed)
	default:
		report.Warnings = append(report.Warnings, fmt.Sprintf(warnOverCounted, discrepancy.StringFixed(2)))
		report.Confidence = mismatchConfidence(discrepancy, printed)
	}
	return report, p
}

// mismatchConfidence falls with the relative size of the discrepancy,
// never below 0.1.
func mismatchConfidence(discrepancy, printed decimal.Decimal) float64 {
	if !printed.IsPositive() {
		return 0.1
	}
	ratio := discrepancy.Div(printed).InexactFloat64()
	c := 0.9 * (1 - ratio)
	if c < 0.1 {
		return 0.1
	}
	return decimal.NewFromFloat(c).Round(2).InexactFloat64()
}
