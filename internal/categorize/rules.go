package categorize

import (
	"regexp"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// CategoryRule maps a keyword set to a category. ExactMatch rules compare
// whole tokens (a trailing "s" is tolerated); the others look for the
// keyword anywhere in the description. Priority rules are evaluated before
// every other rule and always use token comparison.
type CategoryRule struct {
	Name       string
	Keywords   []string
	ExactMatch bool
	Priority   bool
	CategoryID string
}

// TransferRecipient routes personal transfers mentioning one of Tokens to
// CategoryID.
type TransferRecipient struct {
	CategoryID string
	Tokens     []string
}

// DefaultTransferRecipients are used when no recipients are configured.
var DefaultTransferRecipients = []TransferRecipient{
	{CategoryID: TransferAntonin, Tokens: []string{"antonin", "ant", "ab", "anto"}},
	{CategoryID: TransferAmandine, Tokens: []string{"amandine", "ar"}},
}

var tokenSplitRe = regexp.MustCompile(`[\s,.\-/*']+`)

// DefaultRules is the ordered rule table.
var DefaultRules = []CategoryRule{
	{Name: "groceries", ExactMatch: true, CategoryID: Groceries, Keywords: []string{
		"carrefour", "leclerc", "auchan", "lidl", "aldi", "intermarche", "franprix", "monoprix",
		"casino", "picard", "bio", "petit marche", "super u", "market"}},
	{Name: "restaurant", ExactMatch: true, CategoryID: Restaurant, Keywords: []string{
		"restaurant", "resto", "mcdo", "mcdonald", "burger", "pizza", "sushi", "kebab", "syd",
		"gallion", "copains", "bistrot", "traiteur"}},
	{Name: "bar", ExactMatch: true, CategoryID: Bar, Keywords: []string{
		"bar", "pub", "café", "cafe", "brasserie", "dog", "duck", "biere", "bière"}},
	{Name: "taxi", CategoryID: Taxi, Keywords: []string{
		"uber", "taxi", "vtc", "bolt", "heetch", "chauffeur"}},
	{Name: "public_transport", ExactMatch: true, CategoryID: PublicTransport, Keywords: []string{
		"sncf", "ratp", "navigo", "metro", "bus", "train", "tram", "transilien", "transport"}},
	{Name: "fuel", ExactMatch: true, CategoryID: Fuel, Keywords: []string{
		"essence", "carburant", "total", "shell", "bp", "esso", "station"}},
	{Name: "rent", ExactMatch: true, CategoryID: Rent, Keywords: []string{
		"loyer", "rent", "appartement", "immo", "location"}},
	{Name: "utilities", ExactMatch: true, Priority: true, CategoryID: Utilities, Keywords: []string{
		"edf", "engie", "electricite", "gaz", "veolia", "suez", "eau"}},
	{Name: "internet", CategoryID: Internet, Keywords: []string{
		"free", "orange", "sfr", "bouygues", "sosh", "internet", "mobile"}},
	{Name: "hotel", CategoryID: Hotel, Keywords: []string{
		"hotel", "airbnb", "booking", "abritel", "gite", "chambre", "logement"}},
	{Name: "entertainment", CategoryID: Entertainment, Keywords: []string{
		"cinema", "theatre", "concert", "spectacle", "musee", "ugc", "pathe", "gaumont", "mk2", "exposition"}},
	{Name: "sport", CategoryID: Sport, Keywords: []string{
		"sport", "fitness", "gym", "piscine", "basic", "neoness", "club", "salle"}},
	{Name: "books", CategoryID: Books, Keywords: []string{
		"livre", "fnac", "cultura", "gibert", "librairie", "book"}},
	{Name: "subscriptions", CategoryID: Subscriptions, Keywords: []string{
		"spotify", "netflix", "prime", "disney", "canal", "deezer", "apple", "abonnement", "subscription"}},
	{Name: "health", CategoryID: Health, Keywords: []string{
		"pharmacie", "medecin", "docteur", "hopital", "dentiste", "ophtalmo", "ordonnance", "consultation"}},
	{Name: "insurance", CategoryID: Insurance, Keywords: []string{
		"mutuelle", "assurance sante", "cpam", "lemonade", "axa", "maif", "matmut"}},
	{Name: "pill", ExactMatch: true, CategoryID: Pill, Keywords: []string{
		"pilule", "contraception"}},
	{Name: "supplements", ExactMatch: true, CategoryID: Supplements, Keywords: []string{
		"complement", "vitamine", "proteine", "omega", "nutrition"}},
	{Name: "clothing", CategoryID: Clothing, Keywords: []string{
		"zara", "uniqlo", "hm", "celio", "jules", "pull", "kiabi", "vetement", "mode"}},
	{Name: "electronics", CategoryID: Electronics, Keywords: []string{
		"fnac", "darty", "apple", "samsung", "boulanger", "ldlc", "amazon", "tech", "informatique", "telephone"}},
	{Name: "home", CategoryID: Home, Keywords: []string{
		"ikea", "but", "conforama", "maisons", "leroy", "castorama", "meuble", "deco", "bricolage"}},
	{Name: "beauty", CategoryID: Beauty, Keywords: []string{
		"sephora", "marionnaud", "yves", "nocibe", "parfum", "beaute", "cosmetique"}},
	{Name: "jewelry", CategoryID: Jewelry, Keywords: []string{
		"bijou", "bijoux", "swarovski", "pandora", "accessoire", "montre", "bracelet"}},
	{Name: "veterinary", CategoryID: Veterinary, Keywords: []string{
		"veterinaire", "veto", "clinique vet", "animaux", "animalerie", "pet"}},
	{Name: "services", ExactMatch: true, CategoryID: Services, Keywords: []string{
		"assurance", "banque", "impots", "poste", "notaire", "avocat", "administration"}},
}

var incomeRefinements = []struct {
	keyword    string
	categoryID string
}{
	{"salaire", Salary},
	{"freelance", Freelance},
	{"remboursement", Reimbursements},
}

// ruleOutcome is the result of evaluating the rule table.
// Generic is set for the catch-all income outcome, which lower tiers may
// refine.
type ruleOutcome struct {
	CategoryID string
	Hits       int
	Generic    bool
}

type description struct {
	folded string
	tokens []string
}

func newDescription(raw string) description {
	folded := strings.TrimSpace(normalize.Fold(raw))
	var tokens []string
	for _, tok := range tokenSplitRe.Split(folded, -1) {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return description{folded: folded, tokens: tokens}
}

// hasToken reports whether keyword (possibly several words) appears as whole
// tokens, allowing a plural "s" on the last word.
func (d description) hasToken(keyword string) bool {
	parts := strings.Fields(keyword)
	if len(parts) == 0 {
		return false
	}
	for i := 0; i+len(parts) <= len(d.tokens); i++ {
		matched := true
		for j, p := range parts {
			tok := d.tokens[i+j]
			if tok == p || (j == len(parts)-1 && tok == p+"s") {
				continue
			}
			matched = false
			break
		}
		if matched {
			return true
		}
	}
	return false
}

// ruleSet evaluates an ordered rule table.
type ruleSet struct {
	rules      []CategoryRule
	recipients []TransferRecipient
}

func newRuleSet(rules []CategoryRule, recipients []TransferRecipient) *ruleSet {
	folded := make([]CategoryRule, len(rules))
	for i, r := range rules {
		r.Keywords = foldAll(r.Keywords)
		folded[i] = r
	}
	recs := make([]TransferRecipient, len(recipients))
	for i, r := range recipients {
		recs[i] = TransferRecipient{CategoryID: r.CategoryID, Tokens: foldAll(r.Tokens)}
	}
	return &ruleSet{rules: folded, recipients: recs}
}

// foldAll folds every keyword and drops the duplicates folding creates
// ("café" and "cafe").
func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		f := normalize.Fold(s)
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// match returns the first matching rule outcome, or ok=false when the
// description is not recognized.
func (rs *ruleSet) match(raw string, amount float64) (ruleOutcome, bool) {
	d := newDescription(raw)

	if strings.HasPrefix(d.folded, "vir") || strings.Contains(d.folded, "virement") {
		for _, rec := range rs.recipients {
			for _, tok := range rec.Tokens {
				if containsString(d.tokens, tok) {
					return ruleOutcome{CategoryID: rec.CategoryID, Hits: 1}, true
				}
			}
		}
		if amount > 0 {
			if id, ok := refineIncome(d); ok {
				return ruleOutcome{CategoryID: id, Hits: 1}, true
			}
			return ruleOutcome{CategoryID: Income, Generic: true}, true
		}
		return ruleOutcome{CategoryID: Transfers, Hits: 1}, true
	}

	for _, r := range rs.rules {
		if r.Priority {
			if hits := countTokenHits(d, r.Keywords); hits > 0 {
				return ruleOutcome{CategoryID: r.CategoryID, Hits: hits}, true
			}
		}
	}
	for _, r := range rs.rules {
		if r.Priority {
			continue
		}
		var hits int
		if r.ExactMatch {
			hits = countTokenHits(d, r.Keywords)
		} else {
			hits = countSubstringHits(d, r.Keywords)
		}
		if hits > 0 {
			return ruleOutcome{CategoryID: r.CategoryID, Hits: hits}, true
		}
	}

	if amount > 0 {
		if id, ok := refineIncome(d); ok {
			return ruleOutcome{CategoryID: id, Hits: 1}, true
		}
		return ruleOutcome{CategoryID: Income, Generic: true}, true
	}
	return ruleOutcome{}, false
}

func refineIncome(d description) (string, bool) {
	for _, r := range incomeRefinements {
		if d.hasToken(r.keyword) {
			return r.categoryID, true
		}
	}
	return "", false
}

func countTokenHits(d description, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if d.hasToken(k) {
			n++
		}
	}
	return n
}

func countSubstringHits(d description, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(d.folded, k) {
			n++
		}
	}
	return n
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// hitConfidence maps the number of keyword hits to a confidence.
func hitConfidence(hits int) float64 {
	switch {
	case hits > 2:
		return 0.95
	case hits > 1:
		return 0.9
	default:
		return 0.8
	}
}
