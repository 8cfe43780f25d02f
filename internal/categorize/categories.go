package categorize

import (
	"sort"
	"strings"

	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// Category identifiers. They match the rows seeded in the categories table.
const (
	Food       = "3a976285-a1c4-4e3e-a2c9-4673fdb7994e"
	Transport  = "e669e0f3-1158-4d7c-a32b-20e4414ccf2e"
	Housing    = "06cbb4f4-62c2-40f0-9192-1040f961e23e"
	Leisure    = "3f59d0af-57c6-4973-bd4a-68b4294b818a"
	Health     = "5eb9d6eb-14a7-4ab4-9c09-2bba0b5e0c3a"
	Shopping   = "2636f7ba-b737-434e-b282-7ec1ae6ae3e9"
	Services   = "d0e00ea2-6362-4579-89c3-d27516fb0476"
	Education  = "f4b0c5d1-2345-4b67-89c0-1a2b3c4d5e6f"
	Gifts      = "a1b2c3d4-5e6f-4a8b-9c0d-e1f2a3b4c5d6"
	Veterinary = "c1d2e3f4-5678-4a8b-9c0d-e1f2a3b4c5d6"
	Income     = "a61699b7-5f84-410f-af85-b6e17d342b4b"
	Transfers  = "b2c3d4e5-f012-3456-7890-123456789012"
	Other      = "e5f6a7b8-9c0d-1234-5678-90abcdef1234"

	Medical     = "5e6f7a8b-9c0d-1e2f-3a4b-5c6d7e8f9a0b"
	Pharmacy    = "af520d67-24e6-4aa1-9902-2c37b44c03e4"
	Insurance   = "e64774db-a84c-4400-b0c4-99b41fec5518"
	Pill        = "9138e5b7-676b-47de-9258-6b179be679d5"
	Supplements = "07d399fd-fddd-472d-bc5c-c5934e0f8b2c"

	Clothing    = "283a4e6d-0e15-483b-a903-e01fa29e0aa8"
	Electronics = "d4e5f6a7-b8c9-0d1e-2f3a-4b5c6d7e8f9a"
	Home        = "f1e2d3c4-b5a6-9786-8d9e-0f1a2b3c4d5e"
	Beauty      = "a7b8c9d0-e1f2-3a4b-5c6d-7e8f9a0b1c2d"
	Jewelry     = "9e0f1a2b-3c4d-5e6f-7a8b-9c0d1e2f3a4b"

	Groceries       = "5dcaa933-378f-42e6-8fdb-707a1bcef007"
	Restaurant      = "7f8c9d0e-1f2a-3b4c-5d6e-7f8a9b0c1d2e"
	Bar             = "3e4f5d6e-7f8a-9b0c-1d2e-3f4a5b6c7d8e"
	PublicTransport = "65f65f34-e38a-4af4-a055-f95ed4306171"
	Taxi            = "68d08f0c-8d49-4fd6-aece-ef13d4d1fdcd"
	Fuel            = "4abbda8f-9630-44a6-b00a-84a51c44c519"

	Rent      = "7a8b9c0d-1e2f-3a4b-5c6d-7e8f9a0b1c2d"
	Utilities = "3a4b5c6d-7e8f-9a0b-1c2d-3e4f5a6b7c8d"
	Internet  = "a7b8d31e-2873-452f-98a9-66b2bd3de8f7"
	Hotel     = "5a6b7c8d-9e0f-1a2b-3c4d-5e6f7a8b9c0d"

	Entertainment = "b5c6d7e8-9f0a-1b2c-3d4e-5f6a7b8c9d0e"
	Sport         = "7c8d9e0f-1a2b-3c4d-5e6f-7a8b9c0d1e2f"
	Books         = "3aa03561-32a3-4cfa-bb65-a741d13687d2"
	Subscriptions = "72ddac59-ef59-400c-89f8-9a8424426752"

	Salary         = "5c6d7e8f-9a0b-1c2d-3e4f-5a6b7c8d9e0f"
	Freelance      = "1a2b3c4d-5e6f-7a8b-9c0d-1e2f3a4b5c6d"
	Reimbursements = "7e8f9a0b-1c2d-3e4f-5a6b-7c8d9e0f1a2b"

	TransferAntonin  = "3d4e5f6a-7b8c-9d0e-1f2a-3b4c5d6e7f8a"
	TransferAmandine = "9a0b1c2d-3e4f-5a6b-7c8d-9e0f1a2b3c4d"
)

// Category is one entry of the category tree.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

var names = map[string]string{
	Food:       "Alimentation",
	Transport:  "Transport",
	Housing:    "Logement",
	Leisure:    "Loisirs",
	Health:     "Santé",
	Shopping:   "Shopping",
	Services:   "Services",
	Education:  "Éducation",
	Gifts:      "Cadeaux",
	Veterinary: "Vétérinaire",
	Income:     "Revenus",
	Transfers:  "Virements",
	Other:      "Autre",

	Medical:     "Médical",
	Pharmacy:    "Pharmacie",
	Insurance:   "Assurance",
	Pill:        "Pilule",
	Supplements: "Compléments",

	Clothing:    "Vêtements",
	Electronics: "Électronique",
	Home:        "Maison",
	Beauty:      "Beauté",
	Jewelry:     "Bijoux",

	Groceries:       "Courses",
	Restaurant:      "Restaurant",
	Bar:             "Bar",
	PublicTransport: "Transport en commun",
	Taxi:            "Taxi",
	Fuel:            "Carburant",

	Rent:      "Loyer",
	Utilities: "Charges",
	Internet:  "Internet",
	Hotel:     "Hôtel",

	Entertainment: "Divertissement",
	Sport:         "Sport",
	Books:         "Livres",
	Subscriptions: "Abonnements",

	Salary:         "Salaire",
	Freelance:      "Freelance",
	Reimbursements: "Remboursements",

	TransferAntonin:  "Virement Antonin",
	TransferAmandine: "Virement Amandine",
}

var children = map[string][]string{
	Food:      {Groceries, Restaurant, Bar},
	Transport: {PublicTransport, Taxi, Fuel},
	Housing:   {Rent, Utilities, Internet},
	Health:    {Medical, Pharmacy, Insurance, Pill, Supplements},
	Shopping:  {Clothing, Electronics, Home, Beauty, Jewelry},
	Leisure:   {Entertainment, Sport, Books, Hotel},
	Income:    {Salary, Freelance, Reimbursements},
	Transfers: {TransferAntonin, TransferAmandine},
}

var parents = func() map[string]string {
	m := make(map[string]string)
	for parent, kids := range children {
		for _, kid := range kids {
			m[kid] = parent
		}
	}
	return m
}()

// Name returns the French display name of id.
func Name(id string) string {
	if id == "" {
		return "Non catégorisé"
	}
	if n, ok := names[id]; ok {
		return n
	}
	return "Catégorie inconnue"
}

// ParentOf returns the parent category of id, or "" for top-level and
// unknown ids.
func ParentOf(id string) string {
	return parents[id]
}

// Known reports whether id is a category of the tree.
func Known(id string) bool {
	_, ok := names[id]
	return ok
}

// All returns the category tree, parents first then by name.
func All() []Category {
	out := make([]Category, 0, len(names))
	for id, name := range names {
		out = append(out, Category{ID: id, Name: name, ParentID: parents[id]})
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].ParentID == "", out[j].ParentID == ""
		if pi != pj {
			return pi
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Resolve maps a category cell of an imported ledger, either an id or a
// display name in any case and with or without accents, to an id.
func Resolve(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if Known(value) {
		return value, true
	}
	folded := normalize.Fold(value)
	for id, name := range names {
		if normalize.Fold(name) == folded {
			return id, true
		}
	}
	return "", false
}
