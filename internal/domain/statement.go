package domain

// BankStatement is the statement-level aggregate created once per processed
// bank statement. Transactions reference it through MetaStatementID.
type BankStatement struct {
	ID               string   `json:"id"`
	Bank             string   `json:"bank"`
	DocumentName     string   `json:"document_name,omitempty"`
	StatementNumber  string   `json:"statement_number,omitempty"`
	StatementDate    string   `json:"statement_date,omitempty"`
	Period           string   `json:"period,omitempty"`
	AccountHolder    string   `json:"account_holder,omitempty"`
	OpeningBalance   *float64 `json:"opening_balance,omitempty"`
	ClosingBalance   *float64 `json:"closing_balance,omitempty"`
	TotalDebits      float64  `json:"total_debits"`
	TotalCredits     float64  `json:"total_credits"`
	NetChange        float64  `json:"net_change"`
	TransactionCount int      `json:"transaction_count"`
}
