package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/merchant"
	"github.com/dvloznov/finance-ingest/internal/normalize"
	"github.com/dvloznov/finance-ingest/internal/statement"
)

// lowConfidence is the category confidence below which a transaction is
// flagged for review. Transactions with a fallback date never rate higher.
const lowConfidence = 0.3

// normalizeFragment builds the transaction for one fragment. Unparseable
// dates fall back to now and flag the transaction for review.
func normalizeFragment(f statement.Fragment, now time.Time) domain.Transaction {
	tx := domain.Transaction{
		ID:          uuid.NewString(),
		Description: f.Description,
		Amount:      normalize.RoundCents(f.Amount),
		Type:        f.Type,
	}
	for k, v := range f.Metadata {
		tx.SetMeta(k, v)
	}

	date, ok := normalize.NormalizeDateWithYear(f.Date, f.Year, now)
	tx.Date = date
	if !ok {
		tx.SetMeta(domain.MetaDateFallback, true)
		tx.SetMeta(domain.MetaNeedsReview, true)
	}
	if f.ValueDate != "" {
		if vd, ok := normalize.NormalizeDateWithYear(f.ValueDate, f.Year, now); ok {
			tx.SetMeta(domain.MetaValueDate, vd)
		}
	}
	if f.DebitText != "" {
		if debit, err := normalize.ParseAmount(f.DebitText); err == nil {
			tx.SetMeta(domain.MetaDebitAmount, normalize.RoundCents(abs(debit)))
		}
	}

	if tx.Type == "" {
		tx.Type = domain.TypeForAmount(tx.Amount)
	}
	tx.Merchant = merchant.Extract(f.Description)
	if key := merchant.NormalizeKey(f.Description); key != "" {
		tx.SetMeta(domain.MetaMerchantKey, key)
	}
	if id, ok := categorize.Resolve(f.CategoryID); ok {
		tx.CategoryID = id
	}
	return tx
}

// applyCategory records the engine result on tx. Transfer categories turn
// the transaction into a transfer.
func applyCategory(tx *domain.Transaction, res domain.CategorizationResult) {
	tx.CategoryID = res.CategoryID
	setConfidence(tx, res.Confidence)
	tx.SetMeta(domain.MetaCategorySource, string(res.Source))
	if res.Confidence < lowConfidence {
		tx.SetMeta(domain.MetaNeedsReview, true)
	}
	if res.CategoryID == categorize.Transfers || categorize.ParentOf(res.CategoryID) == categorize.Transfers {
		tx.Type = domain.TypeTransfer
	}
}

// setConfidence records the category confidence, capped at lowConfidence
// when the date is a fallback.
func setConfidence(tx *domain.Transaction, confidence float64) {
	if fallback, _ := tx.Metadata[domain.MetaDateFallback].(bool); fallback && confidence > lowConfidence {
		confidence = lowConfidence
	}
	tx.SetMeta(domain.MetaConfidence, confidence)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
