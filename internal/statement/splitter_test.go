package statement

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/merchant"
)

type mockCategorizer struct {
	CategorizeFunc func(ctx context.Context, description string, amount float64) domain.CategorizationResult

	mu    sync.Mutex
	calls []string
}

func (m *mockCategorizer) Categorize(ctx context.Context, description string, amount float64) domain.CategorizationResult {
	m.mu.Lock()
	m.calls = append(m.calls, description)
	m.mu.Unlock()
	if m.CategorizeFunc != nil {
		return m.CategorizeFunc(ctx, description, amount)
	}
	return categorize.Fallback
}

func TestIsCompound(t *testing.T) {
	tests := []struct {
		description string
		want        bool
	}{
		{"CARTE 12/01 FNAC 2,89 VIR SEPA Salaire Dupont", true},
		{"CARTE 12/01 FNAC Salaire Dupont", true},
		{"CARTE 12/01 FNAC VIREMENT ACME", true},
		{"CARTE 12/01 FNAC 2,89", false},
		{"VIR SEPA Salaire Dupont", false},
		{"VIR SEPA remboursement CARTE perdue", false},
		{"CARTE 12/01 SERVIR PLUS 3,00", false},
		{"CARTE 12/01 RESTO VIREMENTS 3,00", false},
		{"CARTES CADEAUX VIR SEPA ACME", false},
		{"CARTE 12/01 FNAC VIR ACME", true},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCompound(tt.description))
		})
	}
}

func TestSplitter_CompoundLine(t *testing.T) {
	const original = "CARTE 12/01 FNAC 2,89 VIR SEPA Salaire Dupont"
	cat := &mockCategorizer{
		CategorizeFunc: func(ctx context.Context, description string, amount float64) domain.CategorizationResult {
			if amount > 0 {
				return domain.CategorizationResult{CategoryID: categorize.Salary, Confidence: 0.8, Source: domain.SourceRules}
			}
			return domain.CategorizationResult{CategoryID: categorize.Shopping, Confidence: 0.8, Source: domain.SourceRules}
		},
	}
	in := []Fragment{
		{Row: 1, Date: "12/01/2024", Description: "PRLV SEPA EDF", Amount: -40, HasAmount: true},
		{Row: 2, Date: "12/01/2024", Description: original, Amount: 1500.00, HasAmount: true},
	}

	out, err := NewSplitter(cat).Split(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "PRLV SEPA EDF", out[0].Description)

	card, transfer := out[1], out[2]
	assert.Equal(t, domain.TypeExpense, card.Type)
	assert.InDelta(t, -2.89, card.Amount, 1e-9)
	assert.Equal(t, "FNAC", merchant.Extract(card.Description))
	assert.Equal(t, LegCard, card.Metadata[domain.MetaSplitLeg])
	assert.Equal(t, original, card.Metadata[domain.MetaOriginalDescription])
	require.NotNil(t, card.Result)
	assert.Equal(t, categorize.Shopping, card.Result.CategoryID)

	assert.Equal(t, domain.TypeIncome, transfer.Type)
	assert.InDelta(t, 1500.00, transfer.Amount, 1e-9)
	assert.Equal(t, "VIR SEPA Salaire Dupont", transfer.Description)
	assert.Equal(t, LegTransfer, transfer.Metadata[domain.MetaSplitLeg])
	assert.Equal(t, original, transfer.Metadata[domain.MetaOriginalDescription])
	require.NotNil(t, transfer.Result)
	assert.Equal(t, categorize.Salary, transfer.Result.CategoryID)

	assert.ElementsMatch(t, []string{"CARTE 12/01 FNAC 2,89", "VIR SEPA Salaire Dupont"}, cat.calls)
}

func TestSplitter_CardAmountFromDebitCell(t *testing.T) {
	in := []Fragment{{
		Date: "12/01/2024", Description: "CARTE 12/01 FNAC VIR SEPA Salaire Dupont",
		Amount: 1500, HasAmount: true, DebitText: "7,50",
	}}
	out, err := NewSplitter(&mockCategorizer{}).Split(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, -7.50, out[0].Amount, 1e-9)
	assert.Nil(t, out[0].Metadata[domain.MetaNeedsReview])
}

func TestSplitter_AmountFallbackIsFlagged(t *testing.T) {
	in := []Fragment{{
		Date: "12/01/2024", Description: "CARTE 12/01 FNAC VIR SEPA Salaire Dupont",
		Amount: 1500, HasAmount: true,
	}}
	out, err := NewSplitter(&mockCategorizer{}).Split(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out, 2)

	card := out[0]
	assert.Zero(t, card.Amount)
	assert.Equal(t, true, card.Metadata[domain.MetaNeedsReview])
	assert.Equal(t, true, card.Metadata[domain.MetaAmountFallback])
	assert.InDelta(t, 1500, out[1].Amount, 1e-9)
}

func TestSplitter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := []Fragment{{Date: "12/01/2024", Description: "CARTE 12/01 FNAC 2,89 VIR SEPA X", Amount: 10, HasAmount: true}}
	_, err := NewSplitter(&mockCategorizer{}).Split(ctx, in)
	assert.ErrorIs(t, err, context.Canceled)
}
