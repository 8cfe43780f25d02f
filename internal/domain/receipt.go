package domain

// DiscountScope says whether a discount targets one item or the whole receipt.
type DiscountScope string

const (
	ScopeItem  DiscountScope = "item"
	ScopeTotal DiscountScope = "total"
)

// ReceiptStatus mirrors the lifecycle of a stored receipt.
type ReceiptStatus string

const (
	ReceiptPending   ReceiptStatus = "pending"
	ReceiptProcessed ReceiptStatus = "processed"
	ReceiptError     ReceiptStatus = "error"
)

// ReceiptLineItem is one purchased article.
// When Discount is set, OriginalTotal is set too and Total = OriginalTotal - Discount.
type ReceiptLineItem struct {
	Description   string   `json:"description"`
	Quantity      int      `json:"quantity"`
	UnitPrice     float64  `json:"unit_price"`
	Total         float64  `json:"total"`
	Discount      *float64 `json:"discount,omitempty"`
	OriginalTotal *float64 `json:"original_total,omitempty"`
	CategoryID    string   `json:"category_id,omitempty"`
}

// DiscountRecord is a discount line found on the receipt.
type DiscountRecord struct {
	Description string        `json:"description"`
	Amount      float64       `json:"amount"`
	Scope       DiscountScope `json:"type"`
	ItemIndex   *int          `json:"item_index,omitempty"`
}

// ValidationReport compares the printed total against the extracted items.
type ValidationReport struct {
	DetectedTotal   *float64 `json:"detected_total,omitempty"`
	CalculatedTotal float64  `json:"calculated_total"`
	Discrepancy     float64  `json:"discrepancy"`
	Matches         bool     `json:"matches"`
	Confidence      float64  `json:"confidence"`
	Warnings        []string `json:"warnings"`
}

// ReceiptData is the receipt aggregate produced for one receipt document.
type ReceiptData struct {
	ID              string            `json:"id"`
	MerchantName    string            `json:"merchant_name"`
	Date            string            `json:"date"`
	Total           float64           `json:"total"`
	CalculatedTotal float64           `json:"calculated_total"`
	Items           []ReceiptLineItem `json:"items"`
	Discounts       []DiscountRecord  `json:"discounts,omitempty"`
	Validation      ValidationReport  `json:"validation"`
	CategoryID      string            `json:"category_id,omitempty"`
	Status          ReceiptStatus     `json:"status"`
}
