package domain

// Provenance identifies the categorization tier that produced a result.
type Provenance string

const (
	SourceHistorical Provenance = "historical"
	SourceRules      Provenance = "rules"
	SourceKeywords   Provenance = "keywords"
	SourceAmount     Provenance = "amount"
)

// Valid reports whether p is one of the known tiers.
func (p Provenance) Valid() bool {
	switch p {
	case SourceHistorical, SourceRules, SourceKeywords, SourceAmount:
		return true
	}
	return false
}

// CategorizationResult is the outcome of the category engine.
type CategorizationResult struct {
	CategoryID string     `json:"category_id"`
	Confidence float64    `json:"confidence"`
	Source     Provenance `json:"source"`
}
