package categorize

import (
	"context"
	"time"
)

// HistoricalMatch is the category previously assigned to a merchant.
type HistoricalMatch struct {
	CategoryID  string
	Occurrences int
	LastSeen    time.Time
}

// HistoricalMatchStore looks up earlier transactions sharing a normalized
// merchant key. A nil match with a nil error means nothing was found.
type HistoricalMatchStore interface {
	FindExactMatch(ctx context.Context, merchantKey string) (*HistoricalMatch, error)
}

// HistoricalMatchStoreFunc adapts a function to HistoricalMatchStore.
type HistoricalMatchStoreFunc func(ctx context.Context, merchantKey string) (*HistoricalMatch, error)

// FindExactMatch calls f.
func (f HistoricalMatchStoreFunc) FindExactMatch(ctx context.Context, merchantKey string) (*HistoricalMatch, error) {
	return f(ctx, merchantKey)
}
