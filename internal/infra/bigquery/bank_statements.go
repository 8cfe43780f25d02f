package bigquery

import (
	"context"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

type BankStatementRow struct {
	StatementID  string `bigquery:"statement_id"`   // REQUIRED
	UserID       string `bigquery:"user_id"`        // NULLABLE
	DocumentID   string `bigquery:"document_id"`    // REQUIRED
	ParsingRunID string `bigquery:"parsing_run_id"` // REQUIRED

	Bank            string              `bigquery:"bank"`             // REQUIRED
	DocumentName    bigquery.NullString `bigquery:"document_name"`    // NULLABLE
	StatementNumber bigquery.NullString `bigquery:"statement_number"` // NULLABLE
	StatementDate   bigquery.NullDate   `bigquery:"statement_date"`   // NULLABLE
	Period          bigquery.NullString `bigquery:"period"`           // NULLABLE
	AccountHolder   bigquery.NullString `bigquery:"account_holder"`   // NULLABLE

	OpeningBalance *big.Rat `bigquery:"opening_balance"` // NULLABLE NUMERIC
	ClosingBalance *big.Rat `bigquery:"closing_balance"` // NULLABLE NUMERIC
	TotalDebits    *big.Rat `bigquery:"total_debits"`    // REQUIRED NUMERIC
	TotalCredits   *big.Rat `bigquery:"total_credits"`   // REQUIRED NUMERIC
	NetChange      *big.Rat `bigquery:"net_change"`      // REQUIRED NUMERIC
	Currency       string   `bigquery:"currency"`        // REQUIRED

	TransactionCount int64 `bigquery:"transaction_count"` // REQUIRED

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// BankStatementRowFrom maps a statement aggregate to its table row.
func BankStatementRowFrom(ref domain.RunRef, stmt domain.BankStatement, currency string, now time.Time) *BankStatementRow {
	return &BankStatementRow{
		StatementID:      stmt.ID,
		UserID:           ref.UserID,
		DocumentID:       ref.DocumentID,
		ParsingRunID:     ref.ParsingRunID,
		Bank:             stmt.Bank,
		DocumentName:     nullString(stmt.DocumentName),
		StatementNumber:  nullString(stmt.StatementNumber),
		StatementDate:    nullDate(stmt.StatementDate),
		Period:           nullString(stmt.Period),
		AccountHolder:    nullString(stmt.AccountHolder),
		OpeningBalance:   nullNumeric(stmt.OpeningBalance),
		ClosingBalance:   nullNumeric(stmt.ClosingBalance),
		TotalDebits:      numeric(stmt.TotalDebits),
		TotalCredits:     numeric(stmt.TotalCredits),
		NetChange:        numeric(stmt.NetChange),
		Currency:         currency,
		TransactionCount: int64(stmt.TransactionCount),
		CreatedTS:        now,
	}
}

// InsertBankStatement stores the statement aggregate of a parsing run.
func (s *Store) InsertBankStatement(ctx context.Context, ref domain.RunRef, stmt domain.BankStatement) error {
	row := BankStatementRowFrom(ref, stmt, s.currency, time.Now())
	return s.put(ctx, "InsertBankStatement", bankStatementsTable, row)
}
