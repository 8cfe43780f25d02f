package categorize

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

type mockHistoricalStore struct {
	FindExactMatchFunc func(ctx context.Context, merchantKey string) (*HistoricalMatch, error)
	calls              []string
}

func (m *mockHistoricalStore) FindExactMatch(ctx context.Context, merchantKey string) (*HistoricalMatch, error) {
	m.calls = append(m.calls, merchantKey)
	if m.FindExactMatchFunc != nil {
		return m.FindExactMatchFunc(ctx, merchantKey)
	}
	return nil, nil
}

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(append([]Option{WithLogger(zerolog.Nop())}, opts...)...)
}

func TestCategorize_Tiers(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	tests := []struct {
		name        string
		description string
		amount      float64
		wantID      string
		wantSource  domain.Provenance
		wantConf    float64
	}{
		{"exact token rule", "CARTE 12/01 LIDL PARIS", -23.4, Groceries, domain.SourceRules, 0.8},
		{"several keywords raise confidence", "CARREFOUR MARKET SUPER U", -40, Groceries, domain.SourceRules, 0.95},
		{"substring rule", "UBER.COM TRIP", -18, Taxi, domain.SourceRules, 0.8},
		{"accents are folded", "Bière et Café", -9, Bar, domain.SourceRules, 0.9},
		{"transfer to configured recipient", "VIR SEPA vers Antonin", -50, TransferAntonin, domain.SourceRules, 0.8},
		{"outgoing transfer", "VIR SEPA LOYER MARS", -700, Transfers, domain.SourceRules, 0.8},
		{"salary transfer", "VIR SEPA Salaire Dupont", 1500, Salary, domain.SourceRules, 0.8},
		{"generic income refined by keywords", "PAIE JANVIER ACME", 2100, Salary, domain.SourceKeywords, 0.8},
		{"generic income kept", "VIR SEPA ACME", 200, Income, domain.SourceRules, 0.8},
		{"keyword table", "DECATHLON", -50, Shopping, domain.SourceKeywords, 0.8},
		{"keyword pattern", "VELIB METROPOLE", -3, Transport, domain.SourceKeywords, 0.8},
		{"small expense by amount", "XYZ123", -15, Groceries, domain.SourceAmount, 0.3},
		{"large expense by amount", "XYZ123", -900, Housing, domain.SourceAmount, 0.4},
		{"fallback", "XYZ123", -100, Other, domain.SourceAmount, 0.1},
		{"empty description zero amount", "", 0, Other, domain.SourceAmount, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Categorize(ctx, tt.description, tt.amount)
			assert.Equal(t, tt.wantID, got.CategoryID, Name(got.CategoryID))
			assert.Equal(t, tt.wantSource, got.Source)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
		})
	}
}

func TestCategorize_PriorityRuleWins(t *testing.T) {
	ctx := context.Background()

	// "location" matches the rent rule, declared before utilities.
	got := newTestEngine().Categorize(ctx, "PRLV EDF LOCATION COMPTEUR", -80)
	assert.Equal(t, Utilities, got.CategoryID)
	assert.Equal(t, domain.SourceRules, got.Source)

	// Moving the priority rule to the end of the table changes nothing.
	reordered := make([]CategoryRule, 0, len(DefaultRules))
	var utilities CategoryRule
	for _, r := range DefaultRules {
		if r.Priority {
			utilities = r
			continue
		}
		reordered = append(reordered, r)
	}
	reordered = append(reordered, utilities)

	got = newTestEngine(WithRules(reordered)).Categorize(ctx, "PRLV EDF LOCATION COMPTEUR", -80)
	assert.Equal(t, Utilities, got.CategoryID)
}

func TestCategorize_PriorityRuleNeedsWholeToken(t *testing.T) {
	got := newTestEngine().Categorize(context.Background(), "RESEAU BUREAU", -45)
	assert.NotEqual(t, Utilities, got.CategoryID)
}

func TestCategorize_Historical(t *testing.T) {
	store := &mockHistoricalStore{
		FindExactMatchFunc: func(ctx context.Context, key string) (*HistoricalMatch, error) {
			if key == "MONOPRIX PARIS" {
				return &HistoricalMatch{CategoryID: Home, Occurrences: 4}, nil
			}
			return nil, nil
		},
	}
	engine := newTestEngine(WithHistoricalStore(store))

	got := engine.Categorize(context.Background(), "CARTE 12/01/24 MONOPRIX PARIS CB*1234", -12)
	assert.Equal(t, domain.CategorizationResult{CategoryID: Home, Confidence: 1.0, Source: domain.SourceHistorical}, got)
	assert.Equal(t, []string{"MONOPRIX PARIS"}, store.calls)

	got = engine.Categorize(context.Background(), "CARTE 12/01/24 LIDL CB*1234", -12)
	assert.Equal(t, Groceries, got.CategoryID)
	assert.Equal(t, domain.SourceRules, got.Source)
}

func TestCategorize_HistoricalFailuresAreAbsorbed(t *testing.T) {
	tests := []struct {
		name string
		fn   func(ctx context.Context, key string) (*HistoricalMatch, error)
	}{
		{"error", func(ctx context.Context, key string) (*HistoricalMatch, error) {
			return nil, errors.New("bigquery unavailable")
		}},
		{"panic", func(ctx context.Context, key string) (*HistoricalMatch, error) {
			panic("nil client")
		}},
		{"empty category", func(ctx context.Context, key string) (*HistoricalMatch, error) {
			return &HistoricalMatch{}, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(WithHistoricalStore(&mockHistoricalStore{FindExactMatchFunc: tt.fn}))
			got := engine.Categorize(context.Background(), "SNCF VOYAGES", -60)
			assert.Equal(t, PublicTransport, got.CategoryID)
			assert.Equal(t, domain.SourceRules, got.Source)
		})
	}
}

func TestCategorize_ConfiguredRecipients(t *testing.T) {
	engine := newTestEngine(WithTransferRecipients([]TransferRecipient{
		{CategoryID: TransferAmandine, Tokens: []string{"Zoé"}},
	}))

	got := engine.Categorize(context.Background(), "VIREMENT vers zoe", -30)
	assert.Equal(t, TransferAmandine, got.CategoryID)

	got = engine.Categorize(context.Background(), "VIREMENT vers antonin", -30)
	assert.Equal(t, Transfers, got.CategoryID)
}

func TestCategorize_AlwaysReturnsValidResult(t *testing.T) {
	engine := newTestEngine()
	faker := gofakeit.New(7)
	ctx := context.Background()

	amounts := []float64{0, -0.01, 0.01, -30, 30, -500, 500, 1000, 1000.01, math.Inf(1), math.NaN()}
	for i := 0; i < 300; i++ {
		amounts = append(amounts, faker.Float64Range(-5000, 5000))
	}

	for i, amount := range amounts {
		desc := ""
		if i%3 != 0 {
			desc = faker.Sentence(i%7 + 1)
		}
		got := engine.Categorize(ctx, desc, amount)
		assert.NotEmpty(t, got.CategoryID, desc)
		assert.True(t, got.Source.Valid(), desc)
		assert.GreaterOrEqual(t, got.Confidence, 0.0)
		assert.LessOrEqual(t, got.Confidence, 1.0)
		assert.True(t, Known(got.CategoryID), "unknown category %s", got.CategoryID)
	}
}

func TestCategories(t *testing.T) {
	assert.Equal(t, "Courses", Name(Groceries))
	assert.Equal(t, "Non catégorisé", Name(""))
	assert.Equal(t, "Catégorie inconnue", Name("nope"))
	assert.Equal(t, Food, ParentOf(Groceries))
	assert.Equal(t, "", ParentOf(Food))

	all := All()
	assert.Len(t, all, len(names))
	assert.Empty(t, all[0].ParentID)
	assert.NotEmpty(t, all[len(all)-1].ParentID)
}
