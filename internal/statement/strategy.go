// Package statement turns the layout of a bank statement into transaction
// fragments, one adapter per supported bank layout.
package statement

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-ingest/internal/docerrors"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/layout"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/metrics"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// Strategy extracts transactions from one bank's statement layout.
type Strategy interface {
	Name() string
	IsSupportedBank(result *layout.AnalysisResult) bool
	Extract(ctx context.Context, result *layout.AnalysisResult) (*Extraction, error)
}

// Extraction is what a strategy found in a statement.
type Extraction struct {
	Fragments []Fragment
	Statement domain.BankStatement
	Info      Info
	Dropped   int
	Warnings  []string
}

// ProfileStrategy is a table-walking strategy driven by a BankFormatProfile.
type ProfileStrategy struct {
	profile BankFormatProfile
	now     func() time.Time
}

// NewProfileStrategy returns a strategy for profile.
func NewProfileStrategy(profile BankFormatProfile) *ProfileStrategy {
	return &ProfileStrategy{profile: profile, now: time.Now}
}

// Name implements Strategy.
func (s *ProfileStrategy) Name() string { return s.profile.Name }

// Aliases returns the other hint names of the bank.
func (s *ProfileStrategy) Aliases() []string { return s.profile.Aliases }

// Profile returns the profile driving the strategy.
func (s *ProfileStrategy) Profile() BankFormatProfile { return s.profile }

// IsSupportedBank implements Strategy.
func (s *ProfileStrategy) IsSupportedBank(result *layout.AnalysisResult) bool {
	return s.profile.Matches(result)
}

// Extract implements Strategy. Rows missing a date or a description are
// dropped; a statement without any transaction is an extract error.
func (s *ProfileStrategy) Extract(ctx context.Context, result *layout.AnalysisResult) (*Extraction, error) {
	if result == nil || len(result.Pages) == 0 {
		return nil, docerrors.Extract("ProfileStrategy.Extract", docerrors.ErrNoPages)
	}
	log := logger.FromContext(ctx).With().Str("bank", s.profile.Name).Logger()

	info := ExtractInfo(result, s.profile, s.now())
	asm := NewAssembler(info.Year)

	for ti, table := range result.Tables {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ProfileStrategy.Extract: %w", err)
		}
		cols, skipHeader := s.columnsFor(table)
		if !cols.Usable() {
			log.Debug().Int("table", ti).Msg("Skipping table without transaction columns")
			continue
		}
		walkTable(asm, table, cols, skipHeader)
		asm.Flush()
	}

	fragments := asm.Fragments()
	metrics.FragmentDropped("statement", asm.Dropped())
	if len(fragments) == 0 {
		return nil, docerrors.Extract("ProfileStrategy.Extract", docerrors.ErrNoTransactions)
	}
	for i := range fragments {
		fragments[i].SetMeta(domain.MetaBank, s.profile.Name)
		fragments[i].SetMeta(domain.MetaDetectionSource, "statement_table")
	}

	ext := &Extraction{
		Fragments: fragments,
		Info:      info,
		Dropped:   asm.Dropped(),
		Statement: NewBankStatement(s.profile.Name, info),
	}
	log.Info().
		Int("fragments", len(fragments)).
		Int("dropped", asm.Dropped()).
		Msg("Statement tables walked")
	return ext, nil
}

// columnsFor identifies columns on the header row, falling back to the
// first data row. When the header row carries no role at all it is treated
// as data.
func (s *ProfileStrategy) columnsFor(table layout.Table) (Columns, bool) {
	grid := table.Grid()
	if len(grid) == 0 {
		return NoColumns(), true
	}
	cols := IdentifyColumns(grid[0], s.profile.Columns)
	skipHeader := cols.Count() > 0
	if !cols.Usable() {
		probe := 1
		if !skipHeader {
			probe = 0
		}
		if probe < len(grid) {
			cols = GuessColumns(grid[probe], cols)
		}
	}
	return cols, skipHeader
}

func walkTable(asm *Assembler, table layout.Table, cols Columns, skipHeader bool) {
	for _, cell := range table.SortedCells() {
		if skipHeader && cell.RowIndex == 0 {
			continue
		}
		asm.Begin(cell.RowIndex)
		content := strings.TrimSpace(cell.Content)
		if content == "" {
			continue
		}

		switch cols.Role(cell.ColumnIndex) {
		case RoleDate:
			if token := firstDateToken(content); token != "" {
				asm.SetDate(token)
			}
		case RoleValueDate:
			if token := firstDateToken(content); token != "" {
				asm.SetValueDate(token)
			}
		case RoleDescription:
			asm.SetDescription(content)
		case RoleDebit:
			if v, err := normalize.ParseAmount(content); err == nil && v != 0 {
				asm.SetAmount(-math.Abs(v), content, true)
			}
		case RoleCredit:
			if v, err := normalize.ParseAmount(content); err == nil && v != 0 {
				asm.SetAmount(math.Abs(v), content, false)
			}
		case RoleAmount:
			if v, err := normalize.ParseAmount(content); err == nil {
				asm.SetAmount(v, content, v < 0)
			}
		}
	}
}

// firstDateToken keeps the first date of cells holding several
// ("01/02/2024 02/02/2024").
func firstDateToken(content string) string {
	for _, f := range strings.Fields(content) {
		if LooksLikeDate(f) || strings.Count(f, "-") == 2 {
			return f
		}
	}
	return ""
}

// NewBankStatement creates the statement aggregate from the harvested info.
// Totals are filled by Summarize once the transactions are final.
func NewBankStatement(bank string, info Info) domain.BankStatement {
	name := info.DocumentName
	if name == "" {
		name = "Relevé " + bank
	}
	return domain.BankStatement{
		ID:              uuid.NewString(),
		Bank:            bank,
		DocumentName:    name,
		StatementNumber: info.StatementNumber,
		StatementDate:   info.StatementDate,
		Period:          info.Period,
		AccountHolder:   info.AccountHolder,
		OpeningBalance:  info.OpeningBalance,
		ClosingBalance:  info.ClosingBalance,
	}
}

// Summarize fills the totals of stmt from txs and links every transaction
// to it. It returns warnings when printed totals disagree.
func Summarize(stmt *domain.BankStatement, info Info, txs []domain.Transaction) []string {
	var debits, credits float64
	for i := range txs {
		if txs[i].Amount < 0 {
			debits += -txs[i].Amount
		} else {
			credits += txs[i].Amount
		}
		txs[i].SetMeta(domain.MetaStatementID, stmt.ID)
	}
	stmt.TotalDebits = normalize.RoundCents(debits)
	stmt.TotalCredits = normalize.RoundCents(credits)
	stmt.NetChange = normalize.RoundCents(credits - debits)
	stmt.TransactionCount = len(txs)

	var warnings []string
	if info.PrintedDebits != nil && math.Abs(*info.PrintedDebits-stmt.TotalDebits) > 0.01 {
		warnings = append(warnings, fmt.Sprintf("printed debit total %s differs from extracted %s",
			normalize.FormatFrench(*info.PrintedDebits), normalize.FormatFrench(stmt.TotalDebits)))
	}
	if info.PrintedCredits != nil && math.Abs(*info.PrintedCredits-stmt.TotalCredits) > 0.01 {
		warnings = append(warnings, fmt.Sprintf("printed credit total %s differs from extracted %s",
			normalize.FormatFrench(*info.PrintedCredits), normalize.FormatFrench(stmt.TotalCredits)))
	}
	if stmt.OpeningBalance != nil && stmt.ClosingBalance != nil {
		expected := normalize.RoundCents(*stmt.OpeningBalance + stmt.NetChange)
		if math.Abs(expected-*stmt.ClosingBalance) > 0.01 {
			warnings = append(warnings, fmt.Sprintf("closing balance %s does not match opening balance plus movements (%s)",
				normalize.FormatFrench(*stmt.ClosingBalance), normalize.FormatFrench(expected)))
		}
	}
	return warnings
}
