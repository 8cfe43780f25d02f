package domain

// TransactionType tags the economic direction of a transaction.
type TransactionType string

const (
	TypeExpense  TransactionType = "expense"
	TypeIncome   TransactionType = "income"
	TypeTransfer TransactionType = "transfer"
)

// Metadata keys shared by the pipeline stages.
const (
	MetaStatementID         = "statement_id"
	MetaDetectionSource     = "detection_source"
	MetaConfidence          = "confidence"
	MetaOriginalDescription = "original_description"
	MetaValueDate           = "value_date"
	MetaDebitAmount         = "debit_amount"
	MetaSplitLeg            = "split_leg"
	MetaNeedsReview         = "needs_review"
	MetaDateFallback        = "date_fallback"
	MetaAmountFallback      = "amount_fallback"
	MetaSourceFormat        = "source_format"
	MetaSheet               = "sheet"
	MetaBank                = "bank"
	MetaMerchantKey         = "merchant_key"
	MetaCategorySource      = "category_source"
)

// RawDocument is an uploaded file, consumed once by the pipeline.
type RawDocument struct {
	Content  []byte
	MIMEType string
	FileName string
}

// Transaction is one normalized, categorized movement.
// Amount is negative for expenses and positive for income.
type Transaction struct {
	ID          string                 `json:"id" validate:"required"`
	Date        string                 `json:"date" validate:"required,isodate,notfuture"`
	Description string                 `json:"description" validate:"required,min=1,max=255"`
	Amount      float64                `json:"amount" validate:"nonzero"`
	Type        TransactionType        `json:"type" validate:"oneof=expense income transfer"`
	Merchant    string                 `json:"merchant,omitempty"`
	CategoryID  string                 `json:"category_id,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// SetMeta stores a metadata value, allocating the map on first use.
func (t *Transaction) SetMeta(key string, value interface{}) {
	if t.Metadata == nil {
		t.Metadata = make(map[string]interface{})
	}
	t.Metadata[key] = value
}

// MetaFloat returns a numeric metadata value.
func (t *Transaction) MetaFloat(key string) (float64, bool) {
	v, ok := t.Metadata[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// MetaString returns a string metadata value.
func (t *Transaction) MetaString(key string) string {
	if s, ok := t.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// TypeForAmount derives expense or income from the sign of amount.
func TypeForAmount(amount float64) TransactionType {
	if amount < 0 {
		return TypeExpense
	}
	return TypeIncome
}
