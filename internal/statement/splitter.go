package statement

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

const (
	LegCard     = "card"
	LegTransfer = "transfer"
)

// Markers only count as whole words: "SERVIR" holds no transfer.
var (
	cardMarkerRe = regexp.MustCompile(`\bCARTE\b`)
	legMarkerRe  = regexp.MustCompile(`\b(?:VIR SEPA|VIREMENT|VIR|Salaire|SALAIRE)\b`)
	legAmountRe  = regexp.MustCompile(`\b(\d+[,.]\d{2})\b`)
)

// Splitter separates statement lines that merge a card payment with a
// transfer or salary credit into two transactions.
type Splitter struct {
	categorizer categorize.Categorizer
}

// NewSplitter returns a splitter categorizing both legs with c.
func NewSplitter(c categorize.Categorizer) *Splitter {
	return &Splitter{categorizer: c}
}

// IsCompound reports whether description holds a card marker and a
// transfer or salary marker.
func IsCompound(description string) bool {
	return splitIndex(description) > 0
}

// splitIndex is the position of the earliest transfer or salary marker
// after the card marker, -1 when there is none.
func splitIndex(description string) int {
	card := cardMarkerRe.FindStringIndex(description)
	if card == nil {
		return -1
	}
	leg := legMarkerRe.FindStringIndex(description[card[1]:])
	if leg == nil {
		return -1
	}
	return card[1] + leg[0]
}

// Split returns the fragments with compound lines replaced by their two
// legs, card leg first. Legs are categorized concurrently.
func (s *Splitter) Split(ctx context.Context, fragments []Fragment) ([]Fragment, error) {
	out := make([]Fragment, 0, len(fragments))
	for _, f := range fragments {
		if !IsCompound(f.Description) {
			out = append(out, f)
			continue
		}
		legs, err := s.splitOne(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, legs...)
	}
	return out, nil
}

func (s *Splitter) splitOne(ctx context.Context, f Fragment) ([]Fragment, error) {
	idx := splitIndex(f.Description)
	cardDesc := strings.TrimSpace(f.Description[:idx])
	transferDesc := strings.TrimSpace(f.Description[idx:])

	card := legFrom(f, cardDesc, LegCard)
	transfer := legFrom(f, transferDesc, LegTransfer)

	cardAmount, fromText := cardLegAmount(cardDesc, f.DebitText)
	switch {
	case cardAmount != 0:
		card.Amount = -math.Abs(cardAmount)
		card.HasAmount = true
	default:
		markFallback(&card)
	}
	card.Type = domain.TypeExpense

	switch {
	case f.HasAmount && f.Amount > 0:
		transfer.Amount = f.Amount
		transfer.Type = domain.TypeIncome
	case f.HasAmount && f.Amount < 0 && (fromText || f.DebitText == ""):
		// The debit cell belongs to the transfer when the card amount was
		// printed inside the description.
		transfer.Amount = f.Amount
		transfer.Type = domain.TypeExpense
	default:
		markFallback(&transfer)
		transfer.Type = domain.TypeIncome
	}
	transfer.HasAmount = transfer.Amount != 0

	results := make([]domain.CategorizationResult, 2)
	g, gctx := errgroup.WithContext(ctx)
	for i, leg := range []*Fragment{&card, &transfer} {
		g.Go(func() error {
			results[i] = s.categorizer.Categorize(gctx, leg.Description, leg.Amount)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("Splitter.splitOne: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("Splitter.splitOne: %w", err)
	}
	card.Result = &results[0]
	transfer.Result = &results[1]

	log := logger.FromContext(ctx)
	log.Debug().
		Str("original_description", f.Description).
		Float64("card_amount", card.Amount).
		Float64("transfer_amount", transfer.Amount).
		Msg("Compound transaction split")
	return []Fragment{card, transfer}, nil
}

func legFrom(f Fragment, description, leg string) Fragment {
	out := Fragment{
		Row:         f.Row,
		Date:        f.Date,
		ValueDate:   f.ValueDate,
		Description: description,
		Year:        f.Year,
		Metadata:    make(map[string]interface{}, len(f.Metadata)+2),
	}
	for k, v := range f.Metadata {
		out.Metadata[k] = v
	}
	out.SetMeta(domain.MetaOriginalDescription, f.Description)
	out.SetMeta(domain.MetaSplitLeg, leg)
	return out
}

func markFallback(f *Fragment) {
	f.Amount = 0
	f.HasAmount = false
	f.SetMeta(domain.MetaNeedsReview, true)
	f.SetMeta(domain.MetaAmountFallback, true)
}

// cardLegAmount takes the last money token of the card substring, then
// the debit cell. fromText reports that the description supplied it.
func cardLegAmount(cardDesc, debitText string) (amount float64, fromText bool) {
	matches := legAmountRe.FindAllStringSubmatch(cardDesc, -1)
	if len(matches) > 0 {
		if v, err := normalize.ParseAmount(matches[len(matches)-1][1]); err == nil && v != 0 {
			return v, true
		}
	}
	if debitText != "" {
		if v, err := normalize.ParseAmount(debitText); err == nil && v != 0 {
			return v, false
		}
	}
	return 0, false
}
