package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/domain"
)

type historicalMatchRow struct {
	CategoryID  string    `bigquery:"category_id"`
	Occurrences int64     `bigquery:"occurrences"`
	LastSeen    time.Time `bigquery:"last_seen"`
}

// FindExactMatch returns the category most often given to transactions with
// the same merchant key in successful parsing runs. Ties go to the most
// recently seen category. Returns nil when the merchant is new.
func (s *Store) FindExactMatch(ctx context.Context, merchantKey string) (*categorize.HistoricalMatch, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			t.category_id AS category_id,
			COUNT(*) AS occurrences,
			MAX(t.created_ts) AS last_seen
		FROM %s t
		INNER JOIN %s pr
		  ON t.parsing_run_id = pr.parsing_run_id
		WHERE t.merchant_key = @merchant_key
		  AND t.category_id IS NOT NULL
		  AND t.category_id != ''
		  AND pr.status = @status
		GROUP BY t.category_id
		ORDER BY occurrences DESC, last_seen DESC
		LIMIT 1
	`, s.table(transactionsTable), s.table(parsingRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "merchant_key", Value: merchantKey},
		{Name: "status", Value: domain.StatusSuccess},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindExactMatch: query read: %w", err)
	}

	var row historicalMatchRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindExactMatch: reading row: %w", err)
	}

	return &categorize.HistoricalMatch{
		CategoryID:  row.CategoryID,
		Occurrences: int(row.Occurrences),
		LastSeen:    row.LastSeen,
	}, nil
}
