package bigquery

import (
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/domain"
)

var testRef = domain.RunRef{DocumentID: "doc-1", ParsingRunID: "run-1", UserID: "default"}

func TestTransactionRowFrom(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tx := domain.Transaction{
		ID:          "tx-1",
		Date:        "2024-03-05",
		Description: "CARTE 04/03 MONOPRIX PARIS",
		Amount:      -12.3,
		Type:        domain.TypeExpense,
		Merchant:    "Monoprix",
		CategoryID:  categorize.Groceries,
		Metadata: map[string]interface{}{
			domain.MetaStatementID:    "stmt-1",
			domain.MetaValueDate:      "2024-03-06",
			domain.MetaMerchantKey:    "monoprix",
			domain.MetaConfidence:     0.8,
			domain.MetaCategorySource: "keywords",
			domain.MetaSplitLeg:       "card",
			domain.MetaNeedsReview:    true,
		},
	}

	row, err := TransactionRowFrom(testRef, tx, "EUR", now)
	require.NoError(t, err)

	assert.Equal(t, "tx-1", row.TransactionID)
	assert.Equal(t, "doc-1", row.DocumentID)
	assert.Equal(t, "run-1", row.ParsingRunID)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 5}, row.TransactionDate)
	assert.True(t, row.ValueDate.Valid)
	assert.Equal(t, 6, row.ValueDate.Date.Day)
	assert.Equal(t, "-12.3", row.Amount.FloatString(1))
	assert.Equal(t, "EUR", row.Currency)
	assert.Equal(t, "expense", row.Direction)
	assert.Equal(t, "stmt-1", row.StatementID.StringVal)
	assert.Equal(t, "monoprix", row.MerchantKey.StringVal)
	assert.Equal(t, "Courses", row.CategoryName.StringVal)
	assert.Equal(t, categorize.Food, row.ParentCategoryID.StringVal)
	assert.InDelta(t, 0.8, row.Confidence.Float64, 1e-9)
	assert.Equal(t, "keywords", row.CategorySource.StringVal)
	assert.True(t, row.NeedsReview)
	assert.True(t, row.IsSplitChild)
	assert.Equal(t, now, row.CreatedTS)

	var extra map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(row.Extra.JSONVal), &extra))
	assert.Equal(t, "stmt-1", extra[domain.MetaStatementID])
}

func TestTransactionRowFrom_Minimal(t *testing.T) {
	row, err := TransactionRowFrom(testRef, domain.Transaction{
		ID: "tx-2", Date: "2024-01-31", Description: "VIR SALAIRE", Amount: 2500, Type: domain.TypeIncome,
	}, "EUR", time.Now())
	require.NoError(t, err)

	assert.False(t, row.StatementID.Valid)
	assert.False(t, row.ValueDate.Valid)
	assert.False(t, row.CategoryID.Valid)
	assert.False(t, row.CategoryName.Valid)
	assert.False(t, row.Confidence.Valid)
	assert.False(t, row.Extra.Valid)
	assert.False(t, row.NeedsReview)
	assert.False(t, row.IsSplitChild)
}

func TestTransactionRowFrom_BadDate(t *testing.T) {
	_, err := TransactionRowFrom(testRef, domain.Transaction{ID: "tx-3", Date: "05/03/2024"}, "EUR", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tx-3")
}

func TestNumeric_RoundsToCents(t *testing.T) {
	faker := gofakeit.New(42)
	for i := 0; i < 50; i++ {
		v := faker.Float64Range(-5000, 5000)
		r := numeric(v)
		got, _ := r.Float64()
		assert.InDelta(t, v, got, 0.005+1e-9, "value %f", v)
		assert.Equal(t, r.FloatString(2), numeric(got).FloatString(2))
	}
	assert.Nil(t, nullNumeric(nil))
}

func TestBankStatementRowFrom(t *testing.T) {
	opening := 1000.0
	stmt := domain.BankStatement{
		ID:               "stmt-1",
		Bank:             "boursobank",
		StatementDate:    "2024-03-31",
		Period:           "du 01/03/2024 au 31/03/2024",
		OpeningBalance:   &opening,
		TotalDebits:      120.45,
		TotalCredits:     2500,
		NetChange:        2379.55,
		TransactionCount: 12,
	}

	row := BankStatementRowFrom(testRef, stmt, "EUR", time.Now())

	assert.Equal(t, "stmt-1", row.StatementID)
	assert.Equal(t, "boursobank", row.Bank)
	assert.True(t, row.StatementDate.Valid)
	assert.False(t, row.StatementNumber.Valid)
	assert.Equal(t, "1000.00", row.OpeningBalance.FloatString(2))
	assert.Nil(t, row.ClosingBalance)
	assert.Equal(t, "120.45", row.TotalDebits.FloatString(2))
	assert.Equal(t, "2379.55", row.NetChange.FloatString(2))
	assert.Equal(t, int64(12), row.TransactionCount)
}

func TestReceiptRowsFrom(t *testing.T) {
	detected := 13.5
	discount := 2.0
	original := 6.0
	itemIndex := 0
	rcpt := domain.ReceiptData{
		ID:              "rcpt-1",
		MerchantName:    "MONOPRIX",
		Date:            "2024-03-05",
		Total:           13.5,
		CalculatedTotal: 15.5,
		Items: []domain.ReceiptLineItem{
			{Description: "LAIT", Quantity: 2, UnitPrice: 3, Total: 4, Discount: &discount, OriginalTotal: &original, CategoryID: categorize.Groceries},
			{Description: "PAIN", Quantity: 1, UnitPrice: 11.5, Total: 11.5},
		},
		Discounts: []domain.DiscountRecord{
			{Description: "REMISE", Amount: 2, Scope: domain.ScopeItem, ItemIndex: &itemIndex},
		},
		Validation: domain.ValidationReport{DetectedTotal: &detected, CalculatedTotal: 15.5, Matches: true, Confidence: 0.9},
		Status:     domain.ReceiptProcessed,
	}

	header, items := ReceiptRowsFrom(testRef, rcpt, "EUR", time.Now())

	assert.Equal(t, "rcpt-1", header.ReceiptID)
	assert.Equal(t, "doc-1", header.DocumentID)
	assert.True(t, header.PurchaseDate.Valid)
	assert.InDelta(t, 2.0, header.DiscountAmount.Float64, 1e-9)
	assert.True(t, header.TotalMatches)
	assert.Equal(t, "processed", header.Status)
	assert.Contains(t, header.Metadata.JSONVal, "REMISE")

	require.Len(t, items, 2)
	assert.Equal(t, "rcpt-1", items[0].ReceiptID)
	assert.Equal(t, int64(0), items[0].LineIndex)
	assert.Equal(t, int64(2), items[0].Quantity)
	assert.True(t, items[0].Discount.Valid)
	assert.InDelta(t, 6.0, items[0].OriginalTotal.Float64, 1e-9)
	assert.Equal(t, "Courses", items[0].CategoryName.StringVal)
	assert.Equal(t, int64(1), items[1].LineIndex)
	assert.False(t, items[1].Discount.Valid)
	assert.False(t, items[1].CategoryName.Valid)
}

func TestReceiptRowsFrom_GeneratesID(t *testing.T) {
	header, items := ReceiptRowsFrom(testRef, domain.ReceiptData{
		Items: []domain.ReceiptLineItem{{Description: "X", Quantity: 1, UnitPrice: 1, Total: 1}},
	}, "EUR", time.Now())

	assert.NotEmpty(t, header.ReceiptID)
	assert.Equal(t, header.ReceiptID, items[0].ReceiptID)
	assert.False(t, header.DiscountAmount.Valid)
	assert.Contains(t, header.Metadata.JSONVal, "total_detected")
}

func TestDocumentRow_RoundTrip(t *testing.T) {
	doc := domain.Document{
		ID:           "doc-1",
		UserID:       "default",
		GCSURI:       "gs://bucket/uploads/releve.pdf",
		Type:         domain.DocumentBankStatement,
		SourceSystem: "BOURSOBANK",
		FileName:     "releve.pdf",
		MIMEType:     "application/pdf",
		Checksum:     "abc",
		Status:       domain.StatusPending,
		UploadedAt:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, doc, DocumentRowFrom(doc).Document())
}

func TestLayoutOutputRowFrom(t *testing.T) {
	row := LayoutOutputRowFrom(domain.LayoutOutput{
		ID: "out-1", ParsingRunID: "run-1", DocumentID: "doc-1", Provider: "gemini", RawJSON: []byte(`{"pages":[]}`),
	})
	assert.True(t, row.RawJSON.Valid)
	assert.False(t, row.ExtractedText.Valid)
	assert.False(t, row.CreatedTS.Valid)
}

func TestCategoryRowsFrom(t *testing.T) {
	rows := CategoryRowsFrom(categorize.All())
	require.NotEmpty(t, rows)

	byID := map[string]CategoryRow{}
	for _, r := range rows {
		byID[r.CategoryID] = r
		assert.True(t, r.IsActive)
	}
	assert.Equal(t, int64(0), byID[categorize.Food].Depth)
	assert.False(t, byID[categorize.Food].ParentCategoryID.Valid)
	assert.Equal(t, int64(1), byID[categorize.Groceries].Depth)
	assert.Equal(t, categorize.Food, byID[categorize.Groceries].ParentCategoryID.StringVal)
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "", truncateError(nil))
	long := make([]byte, maxErrorMessageLen+10)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, truncateError(assertErr(string(long))), maxErrorMessageLen)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestStartParsingRunSQL(t *testing.T) {
	sql := startParsingRunSQL("`proj.ds.parsing_runs`")
	assert.Contains(t, sql, "INSERT `proj.ds.parsing_runs` (")
	assert.NotContains(t, sql, "IFNULL")
	for _, col := range []string{"parsing_run_id", "document_id", "started_ts", "parser_type", "parser_version", "status"} {
		assert.Contains(t, sql, "@"+col)
	}
}
