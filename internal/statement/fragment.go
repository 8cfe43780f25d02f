package statement

import (
	"strings"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

// Fragment is a transaction under assembly. Date holds the raw date token;
// Year, when set, completes DD/MM dates.
type Fragment struct {
	Row         int
	Date        string
	ValueDate   string
	Description string
	Amount      float64
	HasAmount   bool
	DebitText   string
	CategoryID  string
	Type        domain.TransactionType
	Year        int
	Metadata    map[string]interface{}

	// Result is set when the fragment was already categorized (split legs).
	Result *domain.CategorizationResult
}

// SetMeta stores a metadata value, allocating the map on first use.
func (f *Fragment) SetMeta(key string, value interface{}) {
	if f.Metadata == nil {
		f.Metadata = make(map[string]interface{})
	}
	f.Metadata[key] = value
}

// Complete reports whether the fragment can become a transaction.
func (f *Fragment) Complete() bool {
	return strings.TrimSpace(f.Date) != "" && strings.TrimSpace(f.Description) != ""
}

// State is the lifecycle of the fragment currently being assembled.
type State int

const (
	StateEmpty State = iota
	StateAccumulating
	StateReadyToFlush
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateReadyToFlush:
		return "ready_to_flush"
	}
	return "unknown"
}

// Assembler walks cells row by row and turns them into fragments.
// A fragment is emitted when the row changes (or on Flush) and only if it
// has both a date and a description; anything else is dropped and counted.
type Assembler struct {
	state         State
	row           int
	current       Fragment
	year          int
	requireAmount bool
	out           []Fragment
	dropped       int
}

// NewAssembler returns an assembler completing DD/MM dates with year
// (0 means the processing year).
func NewAssembler(year int) *Assembler {
	return &Assembler{row: -1, year: year}
}

// RequireAmount makes a parsed amount mandatory for a fragment to be
// emitted, as for ledger files where rows without an amount are noise.
func (a *Assembler) RequireAmount() *Assembler {
	a.requireAmount = true
	return a
}

// State returns the state of the fragment under assembly.
func (a *Assembler) State() State { return a.state }

// Begin moves to row, flushing the previous fragment if the row changed.
func (a *Assembler) Begin(row int) {
	if row == a.row {
		return
	}
	a.Flush()
	a.row = row
}

func (a *Assembler) touch() {
	if a.state == StateEmpty {
		a.current = Fragment{Row: a.row, Year: a.year}
	}
	if a.current.Complete() && (!a.requireAmount || a.current.HasAmount) {
		a.state = StateReadyToFlush
	} else {
		a.state = StateAccumulating
	}
}

func (a *Assembler) SetDate(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	a.touch()
	a.current.Date = token
	a.touch()
}

func (a *Assembler) SetValueDate(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	a.touch()
	a.current.ValueDate = token
	a.touch()
}

func (a *Assembler) SetDescription(text string) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return
	}
	a.touch()
	if a.current.Description != "" {
		a.current.Description += " " + text
	} else {
		a.current.Description = text
	}
	a.touch()
}

// SetAmount records the signed amount. raw is kept as debit text for
// debits so that a later split can recover the card leg.
func (a *Assembler) SetAmount(amount float64, raw string, debit bool) {
	a.touch()
	a.current.Amount = amount
	a.current.HasAmount = true
	if debit {
		a.current.DebitText = strings.TrimSpace(raw)
	}
	a.touch()
}

func (a *Assembler) SetCategory(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	a.touch()
	a.current.CategoryID = id
	a.touch()
}

func (a *Assembler) SetMeta(key string, value interface{}) {
	a.touch()
	a.current.SetMeta(key, value)
	a.touch()
}

// Flush emits the current fragment when it is ready and resets to Empty.
// It reports whether a fragment was emitted.
func (a *Assembler) Flush() bool {
	defer func() {
		a.state = StateEmpty
		a.current = Fragment{}
	}()
	switch a.state {
	case StateReadyToFlush:
		a.out = append(a.out, a.current)
		return true
	case StateAccumulating:
		a.dropped++
	}
	return false
}

// Fragments flushes and returns everything emitted so far.
func (a *Assembler) Fragments() []Fragment {
	a.Flush()
	return a.out
}

// Dropped returns how many incomplete fragments were discarded.
func (a *Assembler) Dropped() int { return a.dropped }
