package receipt

import (
	"strings"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// ProductKind groups purchased articles and maps them to a spending category.
type ProductKind struct {
	Name       string
	Keywords   []string
	CategoryID string
}

// productKinds is scanned in order; the first kind with a matching keyword
// wins. Keywords are accent-folded and lowercase.
var productKinds = []ProductKind{
	{Name: "vegetables", CategoryID: categorize.Groceries, Keywords: []string{
		"tomate", "patate", "poivron", "carotte", "salade", "oignon", "pomme de terre",
		"courgette", "aubergine", "poireau", "chou", "radis", "haricot",
	}},
	{Name: "fruits", CategoryID: categorize.Groceries, Keywords: []string{
		"pomme", "poire", "banane", "orange", "citron", "fraise", "framboise",
		"raisin", "kiwi", "mangue", "ananas",
	}},
	{Name: "dairy", CategoryID: categorize.Groceries, Keywords: []string{
		"lait", "creme", "fromage", "yaourt", "beurre", "camembert", "emmental", "comte",
	}},
	{Name: "meat", CategoryID: categorize.Groceries, Keywords: []string{
		"poulet", "roti", "jambon", "boeuf", "porc", "saucisse", "steak", "viande",
		"bacon", "saucisson", "chorizo", "lardons", "escalope", "merguez", "dinde",
		"veau", "agneau", "charcuterie", "pate de campagne", "oeuf",
	}},
	{Name: "fish", CategoryID: categorize.Groceries, Keywords: []string{
		"poisson", "saumon", "thon", "sardine", "truite", "cabillaud", "crevette",
	}},
	{Name: "alcohol", CategoryID: categorize.Bar, Keywords: []string{
		"vin", "biere", "whisky", "rhum", "vodka", "ricard", "champagne",
	}},
	{Name: "drinks", CategoryID: categorize.Groceries, Keywords: []string{
		"coca", "fanta", "sprite", "jus", "eau", "evian", "vittel", "perrier",
		"the", "cafe", "sirop", "ice tea",
	}},
	{Name: "snacks", CategoryID: categorize.Groceries, Keywords: []string{
		"chips", "cacahuete", "biscuit", "gateau", "chocolat", "bonbon", "gaufre",
		"crackers", "pop corn",
	}},
	{Name: "prepared", CategoryID: categorize.Groceries, Keywords: []string{
		"surgele", "lasagne", "pizza", "ravioli", "hachis", "gratin", "quiche",
		"nuggets", "cordon bleu", "gnocchi",
	}},
	{Name: "bakery", CategoryID: categorize.Groceries, Keywords: []string{
		"pain", "baguette", "croissant", "brioche", "viennoiserie",
	}},
	{Name: "cereals", CategoryID: categorize.Groceries, Keywords: []string{
		"farine", "pates", "riz", "cereales", "semoule", "couscous", "quinoa",
		"muesli", "nouilles", "spaghetti", "penne", "tagliatelle", "fusilli",
	}},
	{Name: "condiments", CategoryID: categorize.Groceries, Keywords: []string{
		"ketchup", "mayonnaise", "moutarde", "sauce", "huile", "vinaigre", "epice",
	}},
	{Name: "hygiene", CategoryID: categorize.Beauty, Keywords: []string{
		"savon", "shampoing", "dentifrice", "deodorant", "gel douche", "brosse a dents",
		"coton", "mouchoir",
	}},
	{Name: "clothing", CategoryID: categorize.Clothing, Keywords: []string{
		"tshirt", "t-shirt", "pantalon", "chemise", "pull", "chaussette", "jean", "robe",
	}},
	{Name: "electronics", CategoryID: categorize.Electronics, Keywords: []string{
		"telephone", "chargeur", "cable", "ecouteur", "pile", "ampoule", "batterie",
	}},
	{Name: "home", CategoryID: categorize.Home, Keywords: []string{
		"papier toilette", "eponge", "sac poubelle", "lessive", "nettoyant", "balai",
		"essuie-tout", "bougie", "coussin",
	}},
	{Name: "pets", CategoryID: categorize.Veterinary, Keywords: []string{
		"croquette", "litiere", "patee",
	}},
}

// ProductCategory returns the spending category of an article description,
// or categorize.Other when no keyword matches.
func ProductCategory(description string) string {
	if kind, ok := MatchProduct(description); ok {
		return kind.CategoryID
	}
	return categorize.Other
}

// MatchProduct returns the first product kind whose keyword appears in
// description. Single-word keywords match a word prefix ("tomates",
// "baguettes"); multi-word keywords match as a phrase.
func MatchProduct(description string) (ProductKind, bool) {
	folded := normalize.Fold(description)
	tokens := words(folded)
	joined := " " + strings.Join(tokens, " ") + " "
	for _, kind := range productKinds {
		for _, kw := range kind.Keywords {
			if strings.ContainsAny(kw, " -") {
				if strings.Contains(joined, " "+strings.Join(words(kw), " ")+" ") {
					return kind, true
				}
				continue
			}
			for _, tok := range tokens {
				if tok == kw || (len(kw) >= 4 && strings.HasPrefix(tok, kw)) || tok == kw+"s" || tok == kw+"x" {
					return kind, true
				}
			}
		}
	}
	return ProductKind{}, false
}
