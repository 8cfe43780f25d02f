package statement

import (
	"strings"
	"sync"

	"github.com/dvloznov/finance-ingest/internal/layout"
)

const (
	BankBoursobank = "boursobank"
	BankStandard   = "standard"
)

// BoursobankProfile matches BoursoBank / Boursorama statements.
var BoursobankProfile = BankFormatProfile{
	Name:    BankBoursobank,
	Aliases: []string{"boursorama"},
	Markers: []string{"BoursoBank", "Boursorama Banque"},
	Columns: []ColumnRule{
		{Keyword: "date op", Role: RoleDate},
		{Keyword: "valeur", Role: RoleValueDate},
		{Keyword: "libell", Role: RoleDescription},
		{Keyword: "debit", Role: RoleDebit},
		{Keyword: "credit", Role: RoleCredit},
	},
	OpeningTriggers: []string{"SOLDE AU"},
	ClosingTriggers: []string{"NOUVEAU SOLDE"},
}

// StandardProfile is the default layout (Fortuneo style): "Date",
// "Date valeur", "Opération", "Débit", "Crédit" with DD/MM dates.
var StandardProfile = BankFormatProfile{
	Name:    BankStandard,
	Aliases: []string{"fortuneo"},
	Markers: []string{"ANCIEN SOLDE CRÉDITEUR", "NOUVEAU SOLDE CRÉDITEUR", "FORTUNEO"},
	Columns: []ColumnRule{
		{Keyword: "valeur", Role: RoleValueDate},
		{Keyword: "date", Role: RoleDate},
		{Keyword: "operation", Role: RoleDescription},
		{Keyword: "libell", Role: RoleDescription},
		{Keyword: "debit", Role: RoleDebit},
		{Keyword: "credit", Role: RoleCredit},
		{Keyword: "montant", Role: RoleAmount},
	},
	OpeningTriggers: []string{"ANCIEN SOLDE"},
	ClosingTriggers: []string{"NOUVEAU SOLDE"},
}

// NewBoursobank returns the Boursobank adapter.
func NewBoursobank() *ProfileStrategy { return NewProfileStrategy(BoursobankProfile) }

// NewStandard returns the default adapter.
func NewStandard() *ProfileStrategy { return NewProfileStrategy(StandardProfile) }

// Registry selects the strategy for a statement.
type Registry struct {
	mu         sync.RWMutex
	strategies []Strategy
	fallback   Strategy
}

// NewRegistry returns a registry whose default is fallback.
func NewRegistry(fallback Strategy) *Registry {
	return &Registry{fallback: fallback}
}

// DefaultRegistry knows every built-in bank, Standard being the default.
func DefaultRegistry() *Registry {
	r := NewRegistry(NewStandard())
	r.Register(NewBoursobank())
	r.Register(r.fallback)
	return r
}

// Register adds a strategy; earlier registrations are tried first.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies = append(r.strategies, s)
}

// Names lists the registered strategies.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		names = append(names, s.Name())
	}
	return names
}

// aliased is implemented by strategies answering to more than one name.
type aliased interface {
	Aliases() []string
}

// Select returns the strategy named by hint (name or alias) when it is
// registered, else the first one recognising the layout, else the default.
// It never fails.
func (r *Registry) Select(result *layout.AnalysisResult, hint string) Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if hint = strings.TrimSpace(hint); hint != "" {
		for _, s := range r.strategies {
			if answersTo(s, hint) {
				return s
			}
		}
	}
	for _, s := range r.strategies {
		if s.IsSupportedBank(result) {
			return s
		}
	}
	return r.fallback
}

func answersTo(s Strategy, hint string) bool {
	if strings.EqualFold(s.Name(), hint) {
		return true
	}
	if a, ok := s.(aliased); ok {
		for _, alias := range a.Aliases() {
			if strings.EqualFold(alias, hint) {
				return true
			}
		}
	}
	return false
}
