package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/domain"
)

type ReceiptRow struct {
	ReceiptID string `bigquery:"receipt_id"` // REQUIRED
	UserID    string `bigquery:"user_id"`    // NULLABLE

	DocumentID   string `bigquery:"document_id"`    // REQUIRED
	ParsingRunID string `bigquery:"parsing_run_id"` // NULLABLE

	MerchantName string `bigquery:"merchant_name"` // NULLABLE

	PurchaseDate bigquery.NullDate `bigquery:"purchase_date"` // DATE, NULLABLE

	TotalAmount      float64              `bigquery:"total_amount"`      // NUMERIC, REQUIRED
	CalculatedAmount float64              `bigquery:"calculated_amount"` // NUMERIC, REQUIRED
	DiscountAmount   bigquery.NullFloat64 `bigquery:"discount_amount"`   // NUMERIC, NULLABLE
	Discrepancy      float64              `bigquery:"discrepancy"`       // NUMERIC, REQUIRED
	TotalMatches     bool                 `bigquery:"total_matches"`     // REQUIRED
	Confidence       float64              `bigquery:"confidence"`        // REQUIRED

	Currency string `bigquery:"currency"` // REQUIRED

	CategoryID bigquery.NullString `bigquery:"category_id"` // NULLABLE
	Status     string              `bigquery:"status"`      // REQUIRED

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP())

	Metadata bigquery.NullJSON `bigquery:"metadata"` // JSON, NULLABLE
}

type ReceiptLineItemRow struct {
	LineItemID string `bigquery:"line_item_id"` // REQUIRED
	ReceiptID  string `bigquery:"receipt_id"`   // REQUIRED
	DocumentID string `bigquery:"document_id"`  // REQUIRED

	LineIndex int64 `bigquery:"line_index"` // REQUIRED

	Description string `bigquery:"description"` // REQUIRED

	Quantity      int64                `bigquery:"quantity"`       // REQUIRED
	UnitPrice     float64              `bigquery:"unit_price"`     // NUMERIC
	TotalPrice    float64              `bigquery:"total_price"`    // NUMERIC
	Discount      bigquery.NullFloat64 `bigquery:"discount"`       // NULLABLE (NUMERIC)
	OriginalTotal bigquery.NullFloat64 `bigquery:"original_total"` // NULLABLE (NUMERIC)

	CategoryID   bigquery.NullString `bigquery:"category_id"`   // NULLABLE
	CategoryName bigquery.NullString `bigquery:"category_name"` // NULLABLE
}

// ReceiptRowsFrom maps a receipt aggregate to its header row and one row
// per line item. Discount records and reconciliation warnings go to
// metadata.
func ReceiptRowsFrom(ref domain.RunRef, rcpt domain.ReceiptData, currency string, now time.Time) (*ReceiptRow, []*ReceiptLineItemRow) {
	receiptID := rcpt.ID
	if receiptID == "" {
		receiptID = uuid.NewString()
	}

	var discounts float64
	for _, d := range rcpt.Discounts {
		discounts += d.Amount
	}

	meta := map[string]interface{}{}
	if len(rcpt.Discounts) > 0 {
		meta["discounts"] = rcpt.Discounts
	}
	if len(rcpt.Validation.Warnings) > 0 {
		meta["warnings"] = rcpt.Validation.Warnings
	}
	if rcpt.Validation.DetectedTotal == nil {
		meta["total_detected"] = false
	}

	header := &ReceiptRow{
		ReceiptID:        receiptID,
		UserID:           ref.UserID,
		DocumentID:       ref.DocumentID,
		ParsingRunID:     ref.ParsingRunID,
		MerchantName:     rcpt.MerchantName,
		PurchaseDate:     nullDate(rcpt.Date),
		TotalAmount:      rcpt.Total,
		CalculatedAmount: rcpt.CalculatedTotal,
		Discrepancy:      rcpt.Validation.Discrepancy,
		TotalMatches:     rcpt.Validation.Matches,
		Confidence:       rcpt.Validation.Confidence,
		Currency:         currency,
		CategoryID:       nullString(rcpt.CategoryID),
		Status:           string(rcpt.Status),
		CreatedTS:        now,
		Metadata:         nullJSON(meta),
	}
	if len(rcpt.Discounts) > 0 {
		header.DiscountAmount = bigquery.NullFloat64{Float64: discounts, Valid: true}
	}

	items := make([]*ReceiptLineItemRow, 0, len(rcpt.Items))
	for i, item := range rcpt.Items {
		row := &ReceiptLineItemRow{
			LineItemID:    uuid.NewString(),
			ReceiptID:     receiptID,
			DocumentID:    ref.DocumentID,
			LineIndex:     int64(i),
			Description:   item.Description,
			Quantity:      int64(item.Quantity),
			UnitPrice:     item.UnitPrice,
			TotalPrice:    item.Total,
			Discount:      nullFloat(item.Discount),
			OriginalTotal: nullFloat(item.OriginalTotal),
			CategoryID:    nullString(item.CategoryID),
		}
		if item.CategoryID != "" {
			row.CategoryName = nullString(categorize.Name(item.CategoryID))
		}
		items = append(items, row)
	}
	return header, items
}

// InsertReceipt stores a receipt and its line items.
func (s *Store) InsertReceipt(ctx context.Context, ref domain.RunRef, rcpt domain.ReceiptData) error {
	header, items := ReceiptRowsFrom(ref, rcpt, s.currency, time.Now())
	if err := s.put(ctx, "InsertReceipt", receiptsTable, header); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	if err := s.put(ctx, "InsertReceipt", receiptLineItemsTable, items); err != nil {
		return fmt.Errorf("receipt %s line items: %w", header.ReceiptID, err)
	}
	return nil
}
