package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/domain"
)

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	UserID string `bigquery:"user_id"` // NULLABLE

	DocumentID   string              `bigquery:"document_id"`    // NULLABLE
	ParsingRunID string              `bigquery:"parsing_run_id"` // NULLABLE
	StatementID  bigquery.NullString `bigquery:"statement_id"`   // NULLABLE

	TransactionDate civil.Date        `bigquery:"transaction_date"` // REQUIRED in schema
	ValueDate       bigquery.NullDate `bigquery:"value_date"`       // NULLABLE

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"` // REQUIRED STRING

	Direction string `bigquery:"direction"` // REQUIRED expense | income | transfer

	RawDescription string              `bigquery:"raw_description"` // REQUIRED STRING
	Merchant       bigquery.NullString `bigquery:"merchant"`        // NULLABLE
	MerchantKey    bigquery.NullString `bigquery:"merchant_key"`    // NULLABLE

	CategoryID       bigquery.NullString  `bigquery:"category_id"`        // NULLABLE
	CategoryName     bigquery.NullString  `bigquery:"category_name"`      // NULLABLE
	ParentCategoryID bigquery.NullString  `bigquery:"parent_category_id"` // NULLABLE
	Confidence       bigquery.NullFloat64 `bigquery:"confidence"`         // NULLABLE
	CategorySource   bigquery.NullString  `bigquery:"category_source"`    // NULLABLE

	NeedsReview  bool `bigquery:"needs_review"`
	IsSplitChild bool `bigquery:"is_split_child"`

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)

	Extra bigquery.NullJSON `bigquery:"extra"` // NULLABLE JSON
}

// TransactionRowFrom maps a transaction of a parsing run to its table row.
// Metadata keys with their own column are also kept in extra.
func TransactionRowFrom(ref domain.RunRef, tx domain.Transaction, currency string, now time.Time) (*TransactionRow, error) {
	date, err := civil.ParseDate(tx.Date)
	if err != nil {
		return nil, fmt.Errorf("TransactionRowFrom: transaction %s: %w", tx.ID, err)
	}

	row := &TransactionRow{
		TransactionID:    tx.ID,
		UserID:           ref.UserID,
		DocumentID:       ref.DocumentID,
		ParsingRunID:     ref.ParsingRunID,
		StatementID:      nullString(tx.MetaString(domain.MetaStatementID)),
		TransactionDate:  date,
		ValueDate:        nullDate(tx.MetaString(domain.MetaValueDate)),
		Amount:           numeric(tx.Amount),
		Currency:         currency,
		Direction:        string(tx.Type),
		RawDescription:   tx.Description,
		Merchant:         nullString(tx.Merchant),
		MerchantKey:      nullString(tx.MetaString(domain.MetaMerchantKey)),
		CategoryID:       nullString(tx.CategoryID),
		CategorySource:   nullString(tx.MetaString(domain.MetaCategorySource)),
		NeedsReview:      tx.Metadata[domain.MetaNeedsReview] == true,
		IsSplitChild:     tx.MetaString(domain.MetaSplitLeg) != "",
		CreatedTS:        now,
		Extra:            nullJSON(tx.Metadata),
		ParentCategoryID: nullString(categorize.ParentOf(tx.CategoryID)),
	}
	if tx.CategoryID != "" {
		row.CategoryName = nullString(categorize.Name(tx.CategoryID))
	}
	if c, ok := tx.MetaFloat(domain.MetaConfidence); ok {
		row.Confidence = bigquery.NullFloat64{Float64: c, Valid: true}
	}
	return row, nil
}
