package categorize

import (
	"math"
	"regexp"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// keywordGroup is an entry of the coarse keyword table.
type keywordGroup struct {
	categoryID string
	keywords   []string
	patterns   []*regexp.Regexp
}

var keywordGroups = []keywordGroup{
	{
		categoryID: Food,
		keywords: []string{"carrefour", "auchan", "leclerc", "lidl", "aldi", "casino", "monoprix",
			"franprix", "intermarché", "super u", "restaurant", "mcdonalds", "burger", "sushi", "pizza",
			"boulangerie", "boucherie", "market", "supermarché", "épicerie"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:super)?march[ée]`),
			regexp.MustCompile(`rest(?:aurant|o)`),
		},
	},
	{
		categoryID: Transport,
		keywords: []string{"sncf", "ratp", "uber", "taxi", "bolt", "navigo", "transdev", "autoroute",
			"péage", "parking", "station", "essence", "total", "shell", "esso", "bp", "metro", "bus", "train"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:auto|moto|vélo|velo)lib`),
			regexp.MustCompile(`(?:parking|garage)`),
		},
	},
	{
		categoryID: Shopping,
		keywords: []string{"zara", "h&m", "uniqlo", "fnac", "darty", "amazon", "cdiscount", "decathlon",
			"ikea", "leroy merlin", "castorama", "bricorama", "galeries lafayette", "printemps"},
	},
	{
		categoryID: Leisure,
		keywords: []string{"cinema", "théâtre", "theatre", "concert", "spotify", "netflix", "disney",
			"prime video", "canal+", "parc", "musée", "museum", "bowling", "escape game", "sport"},
	},
	{
		categoryID: Health,
		keywords: []string{"pharmacie", "médecin", "medecin", "docteur", "hopital", "hôpital", "dentiste",
			"optique", "opticien", "mutuelle", "laboratoire", "clinique", "santé"},
		patterns: []*regexp.Regexp{regexp.MustCompile(`(?:dr|docteur)\s+[a-z]+`)},
	},
	{
		categoryID: Housing,
		keywords: []string{"loyer", "edf", "engie", "eau", "electricité", "gaz", "internet", "free",
			"orange", "sfr", "bouygues", "assurance habitation", "charges", "copropriété"},
		patterns: []*regexp.Regexp{regexp.MustCompile(`(?:edf|engie|veolia)\s+energie`)},
	},
	{
		categoryID: Salary,
		keywords: []string{"salaire", "paie", "paye", "remuneration", "rémunération", "traitement",
			"virement employeur"},
		patterns: []*regexp.Regexp{regexp.MustCompile(`sal(?:aire)?\s+(?:net|brut)`)},
	},
}

func init() {
	for i := range keywordGroups {
		keywordGroups[i].keywords = foldAll(keywordGroups[i].keywords)
	}
}

// matchKeywords runs the coarse keyword table: keyword hits first across all
// groups, then regex patterns. Confidence grows with the number of keywords
// of the winning group found in the description.
func matchKeywords(raw string) (string, float64, bool) {
	desc := normalize.Fold(raw)
	lower := strings.ToLower(raw)
	if strings.TrimSpace(desc) == "" {
		return "", 0, false
	}

	for _, g := range keywordGroups {
		hits := 0
		for _, k := range g.keywords {
			if strings.Contains(desc, k) {
				hits++
			}
		}
		if hits > 0 {
			return g.categoryID, hitConfidence(hits), true
		}
	}

	for _, g := range keywordGroups {
		for _, p := range g.patterns {
			if p.MatchString(lower) || p.MatchString(desc) {
				return g.categoryID, 0.8, true
			}
		}
	}
	return "", 0, false
}

// matchAmount guesses a category from the magnitude of amount alone.
func matchAmount(amount float64) (string, float64, bool) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "", 0, false
	}
	switch {
	case amount > 1000:
		return Salary, 0.5, true
	case amount < 0 && -amount > 500:
		return Housing, 0.4, true
	case amount < 0 && -amount < 30:
		return Groceries, 0.3, true
	}
	return "", 0, false
}
