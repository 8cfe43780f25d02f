package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-ingest/internal/categorize"
)

type CategoryRow struct {
	CategoryID       string              `bigquery:"category_id"`        // REQUIRED
	ParentCategoryID bigquery.NullString `bigquery:"parent_category_id"` // NULLABLE

	Depth int64 `bigquery:"depth"` // REQUIRED (INTEGER in BQ maps to int64)

	Name string `bigquery:"name"` // REQUIRED

	IsActive bool `bigquery:"is_active"` // REQUIRED
}

// categoryParam is one element of the @categories array parameter.
type categoryParam struct {
	CategoryID       string `bigquery:"category_id"`
	ParentCategoryID string `bigquery:"parent_category_id"`
	Depth            int64  `bigquery:"depth"`
	Name             string `bigquery:"name"`
}

// CategoryRowsFrom maps the category tree to table rows.
func CategoryRowsFrom(categories []categorize.Category) []CategoryRow {
	rows := make([]CategoryRow, 0, len(categories))
	for _, c := range categories {
		var depth int64
		if c.ParentID != "" {
			depth = 1
		}
		rows = append(rows, CategoryRow{
			CategoryID:       c.ID,
			ParentCategoryID: nullString(c.ParentID),
			Depth:            depth,
			Name:             c.Name,
			IsActive:         true,
		})
	}
	return rows
}

// SyncCategories upserts the built-in category tree into categories and
// retires categories that are no longer part of it.
func (s *Store) SyncCategories(ctx context.Context) error {
	rows := CategoryRowsFrom(categorize.All())
	params := make([]categoryParam, 0, len(rows))
	for _, r := range rows {
		params = append(params, categoryParam{
			CategoryID:       r.CategoryID,
			ParentCategoryID: r.ParentCategoryID.StringVal,
			Depth:            r.Depth,
			Name:             r.Name,
		})
	}

	return s.runDML(ctx, "SyncCategories", fmt.Sprintf(`
		MERGE %s c
		USING UNNEST(@categories) src
		ON c.category_id = src.category_id
		WHEN MATCHED THEN
		  UPDATE SET
		    parent_category_id = NULLIF(src.parent_category_id, ''),
		    depth = src.depth,
		    name = src.name,
		    is_active = TRUE
		WHEN NOT MATCHED BY TARGET THEN
		  INSERT (category_id, parent_category_id, depth, name, is_active)
		  VALUES (src.category_id, NULLIF(src.parent_category_id, ''), src.depth, src.name, TRUE)
		WHEN NOT MATCHED BY SOURCE THEN
		  UPDATE SET is_active = FALSE
	`, s.table(categoriesTable)), []bigquery.QueryParameter{
		{Name: "categories", Value: params},
	})
}

// ListActiveCategories returns all active categories ordered by depth, name.
func (s *Store) ListActiveCategories(ctx context.Context) ([]CategoryRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
		  category_id,
		  parent_category_id,
		  depth,
		  name,
		  is_active
		FROM %s
		WHERE is_active = TRUE
		ORDER BY depth, name
	`, s.table(categoriesTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListActiveCategories: query read: %w", err)
	}

	var rows []CategoryRow
	for {
		var r CategoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListActiveCategories: iter next: %w", err)
		}
		rows = append(rows, r)
	}

	return rows, nil
}
