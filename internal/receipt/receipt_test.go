package receipt

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/docerrors"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/layout"
)

type mockCategorizer struct {
	CategorizeFunc func(ctx context.Context, description string, amount float64) domain.CategorizationResult
}

func (m *mockCategorizer) Categorize(ctx context.Context, description string, amount float64) domain.CategorizationResult {
	if m.CategorizeFunc != nil {
		return m.CategorizeFunc(ctx, description, amount)
	}
	return categorize.Fallback
}

func fixedNow() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }

func linesResult(lines ...string) *layout.AnalysisResult {
	page := layout.Page{PageNumber: 1}
	for _, l := range lines {
		page.Lines = append(page.Lines, layout.Line{Content: l})
	}
	return &layout.AnalysisResult{Pages: []layout.Page{page}}
}

func ptr(f float64) *float64 { return &f }

func TestReconcile(t *testing.T) {
	items := []domain.ReceiptLineItem{{Description: "A", Quantity: 1, Total: 10.00}, {Description: "B", Quantity: 1, Total: 5.50}}
	discounts := []domain.DiscountRecord{{Description: "REMISE", Amount: 2.00, Scope: domain.ScopeTotal}}

	tests := []struct {
		name            string
		detected        *float64
		wantDiscrepancy float64
		wantMatches     bool
		wantWarning     string
		wantTotal       float64
	}{
		{name: "printed after discounts", detected: ptr(13.50), wantDiscrepancy: 0, wantMatches: true, wantTotal: 13.50},
		{name: "printed before discounts", detected: ptr(15.50), wantDiscrepancy: 0, wantMatches: true, wantTotal: 15.50},
		{name: "missing items", detected: ptr(20.00), wantDiscrepancy: 4.50, wantWarning: "missing items: printed total exceeds extracted items by 4.50", wantTotal: 20.00},
		{name: "over counted", detected: ptr(10.00), wantDiscrepancy: 3.50, wantWarning: "calculated total exceeds printed total by 3.50", wantTotal: 10.00},
		{name: "within one cent", detected: ptr(13.51), wantDiscrepancy: 0.01, wantMatches: true, wantTotal: 13.51},
		{name: "no printed total", wantWarning: "no printed total detected", wantTotal: 13.50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, total := Reconcile(items, discounts, tt.detected)
			assert.InDelta(t, 15.50, report.CalculatedTotal, 1e-9)
			assert.InDelta(t, tt.wantDiscrepancy, report.Discrepancy, 1e-9)
			assert.Equal(t, tt.wantMatches, report.Matches)
			assert.InDelta(t, tt.wantTotal, total, 1e-9)
			if tt.wantWarning == "" {
				assert.Empty(t, report.Warnings)
			} else {
				assert.Equal(t, []string{tt.wantWarning}, report.Warnings)
			}
			assert.True(t, report.Confidence >= 0.1 && report.Confidence <= 1)
		})
	}
}

func TestDetectTotal(t *testing.T) {
	items := []domain.ReceiptLineItem{{Total: 10.00}, {Total: 5.50}}

	tests := []struct {
		name  string
		lines []string
		items []domain.ReceiptLineItem
		want  *float64
	}{
		{
			name:  "subtotal larger than paid total",
			lines: []string{"SOUS-TOTAL 15,50", "REMISE -2,00", "TOTAL 13,50"},
			items: items,
			want:  ptr(13.50),
		},
		{
			name:  "payable wording beats plain total",
			lines: []string{"TOTAL 14,00", "NET A PAYER 13,50"},
			items: items,
			want:  ptr(13.50),
		},
		{
			name:  "lowest line wins among equal wording",
			lines: []string{"TOTAL 15,50", "TOTAL 13,50"},
			items: items,
			want:  ptr(13.50),
		},
		{
			name:  "VAT total ignored",
			lines: []string{"TOTAL TVA 2,05", "TOTAL TTC 13,50"},
			items: items,
			want:  ptr(13.50),
		},
		{
			name:  "outlier above twice the items loses to same wording",
			lines: []string{"TOTAL 13,50", "TOTAL 1350,00"},
			items: items,
			want:  ptr(13.50),
		},
		{
			name:  "stronger wording kept above twice the items",
			lines: []string{"TOTAL 13,50", "MONTANT DU 1350,00"},
			items: items,
			want:  ptr(1350.00),
		},
		{
			name:  "printed total kept when items are missing",
			lines: []string{"PAIN 10,00", "TOTAL A PAYER 50,00"},
			items: []domain.ReceiptLineItem{{Description: "PAIN", Quantity: 1, Total: 10.00}},
			want:  ptr(50.00),
		},
		{
			name:  "large item price on a non total line",
			lines: []string{"TELEVISEUR 499,00", "TOTAL 13,50"},
			items: items,
			want:  ptr(13.50),
		},
		{
			name:  "discount recap is not a total",
			lines: []string{"TOTAL REMISES 2,00"},
			items: items,
		},
		{
			name:  "no items keeps every candidate",
			lines: []string{"MONTANT DU 1350,00"},
			want:  ptr(1350.00),
		},
		{
			name:  "no total line",
			lines: []string{"MERCI DE VOTRE VISITE"},
			items: items,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectTotal(tt.lines, tt.items)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestExtract_FreeLines(t *testing.T) {
	result := linesResult(
		"CARREFOUR CITY",
		"12 rue de Paris",
		"05/03/2024 12:30",
		"LAIT DEMI ECREME 1,05",
		"2 X YAOURT NATURE 3,00",
		"REMISE YAOURT -0,50",
		"BAGUETTE 1,20",
		"REMISE FIDELITE -0,20",
		"SOUS-TOTAL 4,55",
		"BON DE REDUCTION -0,55",
		"TOTAL 4,00",
		"CB 4,00",
	)
	cat := &mockCategorizer{CategorizeFunc: func(ctx context.Context, description string, amount float64) domain.CategorizationResult {
		assert.Equal(t, "CARREFOUR CITY", description)
		assert.InDelta(t, -4.00, amount, 1e-9)
		return domain.CategorizationResult{CategoryID: categorize.Groceries, Confidence: 0.8, Source: domain.SourceRules}
	}}

	receipt, err := NewExtractor(cat, fixedNow).Extract(context.Background(), result)
	require.NoError(t, err)

	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, "CARREFOUR CITY", receipt.MerchantName)
	assert.Equal(t, "2024-03-05", receipt.Date)
	assert.Equal(t, categorize.Groceries, receipt.CategoryID)
	assert.Equal(t, domain.ReceiptProcessed, receipt.Status)

	require.Len(t, receipt.Items, 3)
	lait, yaourt, baguette := receipt.Items[0], receipt.Items[1], receipt.Items[2]

	assert.Equal(t, "LAIT DEMI ECREME", lait.Description)
	assert.Nil(t, lait.Discount)
	assert.Equal(t, categorize.Groceries, lait.CategoryID)

	assert.Equal(t, "YAOURT NATURE", yaourt.Description)
	assert.Equal(t, 2, yaourt.Quantity)
	assert.InDelta(t, 1.50, yaourt.UnitPrice, 1e-9)
	require.NotNil(t, yaourt.Discount)
	require.NotNil(t, yaourt.OriginalTotal)
	assert.InDelta(t, 0.50, *yaourt.Discount, 1e-9)
	assert.InDelta(t, 3.00, *yaourt.OriginalTotal, 1e-9)
	assert.InDelta(t, 2.50, yaourt.Total, 1e-9)

	require.NotNil(t, baguette.Discount)
	assert.InDelta(t, 0.20, *baguette.Discount, 1e-9)
	assert.InDelta(t, 1.00, baguette.Total, 1e-9)

	require.Len(t, receipt.Discounts, 3)
	assert.Equal(t, domain.ScopeItem, receipt.Discounts[0].Scope)
	require.NotNil(t, receipt.Discounts[0].ItemIndex)
	assert.Equal(t, 1, *receipt.Discounts[0].ItemIndex)
	assert.Equal(t, 2, *receipt.Discounts[1].ItemIndex)
	assert.Equal(t, domain.ScopeTotal, receipt.Discounts[2].Scope)
	assert.Nil(t, receipt.Discounts[2].ItemIndex)

	assert.InDelta(t, 4.55, receipt.CalculatedTotal, 1e-9)
	assert.InDelta(t, 4.00, receipt.Total, 1e-9)
	assert.True(t, receipt.Validation.Matches)
	assert.Empty(t, receipt.Validation.Warnings)
}

func TestExtract_Table(t *testing.T) {
	result := linesResult("MONOPRIX", "TOTAL A PAYER 2,50")
	result.Tables = []layout.Table{{
		RowCount:    4,
		ColumnCount: 3,
		Cells: []layout.Cell{
			{RowIndex: 0, ColumnIndex: 0, Content: "Article"},
			{RowIndex: 0, ColumnIndex: 1, Content: "Qté"},
			{RowIndex: 0, ColumnIndex: 2, Content: "Prix"},
			{RowIndex: 1, ColumnIndex: 0, Content: "Pommes Golden"},
			{RowIndex: 1, ColumnIndex: 1, Content: "2"},
			{RowIndex: 1, ColumnIndex: 2, Content: "3,00"},
			{RowIndex: 2, ColumnIndex: 0, Content: "Remise fidélité"},
			{RowIndex: 2, ColumnIndex: 2, Content: "-0,50"},
			{RowIndex: 3, ColumnIndex: 0, Content: "TOTAL"},
			{RowIndex: 3, ColumnIndex: 2, Content: "2,50"},
		},
	}}

	receipt, err := NewExtractor(nil, fixedNow).Extract(context.Background(), result)
	require.NoError(t, err)

	assert.Equal(t, "2024-06-01", receipt.Date)
	require.Len(t, receipt.Items, 1)
	item := receipt.Items[0]
	assert.Equal(t, "Pommes Golden", item.Description)
	assert.Equal(t, 2, item.Quantity)
	assert.InDelta(t, 1.50, item.UnitPrice, 1e-9)
	assert.InDelta(t, 2.50, item.Total, 1e-9)
	require.NotNil(t, item.OriginalTotal)
	assert.InDelta(t, 3.00, *item.OriginalTotal, 1e-9)
	assert.Equal(t, categorize.Groceries, item.CategoryID)

	require.NotNil(t, receipt.Validation.DetectedTotal)
	assert.InDelta(t, 2.50, *receipt.Validation.DetectedTotal, 1e-9)
	assert.True(t, receipt.Validation.Matches)
	assert.Empty(t, receipt.CategoryID)
}

func TestExtract_NoTotal(t *testing.T) {
	result := &layout.AnalysisResult{Pages: []layout.Page{
		{PageNumber: 1, Lines: []layout.Line{{Content: "  "}}},
		{PageNumber: 2, Lines: []layout.Line{{Content: "PAIN 1,10"}}},
	}}
	receipt, err := NewExtractor(nil, fixedNow).Extract(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, UnknownMerchant, receipt.MerchantName)
	assert.InDelta(t, 1.10, receipt.Total, 1e-9)
	assert.Nil(t, receipt.Validation.DetectedTotal)
	assert.Equal(t, []string{"no printed total detected"}, receipt.Validation.Warnings)
}

func TestExtract_MissingItems(t *testing.T) {
	result := linesResult("BOULANGERIE", "PAIN 10,00", "TOTAL A PAYER 50,00")
	receipt, err := NewExtractor(nil, fixedNow).Extract(context.Background(), result)
	require.NoError(t, err)

	require.Len(t, receipt.Items, 1)
	require.NotNil(t, receipt.Validation.DetectedTotal)
	assert.InDelta(t, 50.00, *receipt.Validation.DetectedTotal, 1e-9)
	assert.InDelta(t, 50.00, receipt.Total, 1e-9)
	assert.False(t, receipt.Validation.Matches)
	assert.Equal(t, []string{"missing items: printed total exceeds extracted items by 40.00"}, receipt.Validation.Warnings)
}

func TestExtract_NoPages(t *testing.T) {
	_, err := NewExtractor(nil, fixedNow).Extract(context.Background(), &layout.AnalysisResult{})
	require.Error(t, err)
	assert.True(t, docerrors.IsKind(err, docerrors.KindExtract))
	assert.ErrorIs(t, err, docerrors.ErrNoPages)
}

func TestAttachDiscounts_Accumulates(t *testing.T) {
	items := []domain.ReceiptLineItem{{Description: "CAFE MOULU", Quantity: 1, Total: 10.00}}
	records := attachDiscounts(items, []pendingDiscount{
		{description: "PROMO CAFE", amount: decimal.NewFromFloat(1.00), lastItem: 0},
		{description: "COUPON CAFE MOULU", amount: decimal.NewFromFloat(2.00), lastItem: 0},
		{description: "REMISE", amount: decimal.NewFromFloat(0.50), lastItem: 0},
	})

	require.Len(t, records, 3)
	assert.Equal(t, domain.ScopeItem, records[0].Scope)
	assert.Equal(t, domain.ScopeItem, records[1].Scope)
	assert.Equal(t, domain.ScopeTotal, records[2].Scope)

	item := items[0]
	require.NotNil(t, item.Discount)
	require.NotNil(t, item.OriginalTotal)
	assert.InDelta(t, 3.00, *item.Discount, 1e-9)
	assert.InDelta(t, 10.00, *item.OriginalTotal, 1e-9)
	assert.InDelta(t, *item.OriginalTotal-*item.Discount, item.Total, 1e-9)
}

func TestHasTotalLine(t *testing.T) {
	assert.True(t, HasTotalLine("LIDL\nPAIN 1,10\nTOTAL 1,10\n"))
	assert.True(t, HasTotalLine("MONTANT DÛ 12,00"))
	assert.False(t, HasTotalLine("05/03/2024 LIDL 12,30\n06/03/2024 FNAC 3,00"))
	assert.False(t, HasTotalLine("TOTAL TVA 2,00"))
}

func TestProductCategory(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"TOMATES GRAPPE", categorize.Groceries},
		{"Baguette tradition", categorize.Groceries},
		{"BIERE BLONDE 6X25CL", categorize.Bar},
		{"PILES LR6", categorize.Electronics},
		{"SAC POUBELLE 30L", categorize.Home},
		{"GEL DOUCHE", categorize.Beauty},
		{"CROQUETTES CHAT", categorize.Veterinary},
		{"CARTE CADEAU", categorize.Other},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, ProductCategory(tt.description))
		})
	}
}
