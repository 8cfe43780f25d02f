package bigquery

import (
	"encoding/json"
	"math/big"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// numeric converts an amount to a BigQuery NUMERIC rounded to cents.
func numeric(v float64) *big.Rat {
	return decimal.NewFromFloat(v).Round(2).Rat()
}

// nullNumeric is numeric for optional amounts.
func nullNumeric(v *float64) *big.Rat {
	if v == nil {
		return nil
	}
	return numeric(*v)
}

// ratFloat converts a NUMERIC back to float64.
func ratFloat(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return f
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// nullDate parses an ISO date; anything else becomes NULL.
func nullDate(s string) bigquery.NullDate {
	d, err := civil.ParseDate(s)
	if err != nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: d, Valid: true}
}

func nullFloat(v *float64) bigquery.NullFloat64 {
	if v == nil {
		return bigquery.NullFloat64{}
	}
	return bigquery.NullFloat64{Float64: *v, Valid: true}
}

// nullJSON encodes v; empty maps and encoding failures become NULL.
func nullJSON(v map[string]interface{}) bigquery.NullJSON {
	if len(v) == 0 {
		return bigquery.NullJSON{}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return bigquery.NullJSON{}
	}
	return bigquery.NullJSON{JSONVal: string(raw), Valid: true}
}
