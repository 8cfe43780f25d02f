package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-ingest/internal/domain"
)

func validTransaction() domain.Transaction {
	return domain.Transaction{
		ID:          "tx-1",
		Date:        "2024-03-05",
		Description: "CARTE 04/03 LIDL",
		Amount:      -12.30,
		Type:        domain.TypeExpense,
	}
}

func TestTransactionValidator_Validate(t *testing.T) {
	v := NewTransactionValidator(nowFunc)

	tests := []struct {
		name    string
		mutate  func(tx *domain.Transaction)
		wantErr bool
	}{
		{name: "valid", mutate: func(tx *domain.Transaction) {}},
		{name: "today is not the future", mutate: func(tx *domain.Transaction) { tx.Date = "2024-06-01" }},
		{name: "missing id", mutate: func(tx *domain.Transaction) { tx.ID = "" }, wantErr: true},
		{name: "missing date", mutate: func(tx *domain.Transaction) { tx.Date = "" }, wantErr: true},
		{name: "french date", mutate: func(tx *domain.Transaction) { tx.Date = "05/03/2024" }, wantErr: true},
		{name: "future date", mutate: func(tx *domain.Transaction) { tx.Date = "2024-06-02" }, wantErr: true},
		{name: "empty description", mutate: func(tx *domain.Transaction) { tx.Description = "" }, wantErr: true},
		{name: "long description", mutate: func(tx *domain.Transaction) {
			tx.Description = string(make([]rune, 256))
		}, wantErr: true},
		{name: "zero amount", mutate: func(tx *domain.Transaction) { tx.Amount = 0 }, wantErr: true},
		{name: "sub-cent amount", mutate: func(tx *domain.Transaction) { tx.Amount = 0.004 }, wantErr: true},
		{name: "unknown type", mutate: func(tx *domain.Transaction) { tx.Type = "refund" }, wantErr: true},
		{name: "zero amount kept for review", mutate: func(tx *domain.Transaction) {
			tx.Amount = 0
			tx.SetMeta(domain.MetaAmountFallback, true)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)
			err := v.Validate(tx)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTransactionValidator_Filter(t *testing.T) {
	v := NewTransactionValidator(nowFunc)
	bad := validTransaction()
	bad.Date = "2025-01-01"
	bad.Amount = 0

	valid, warnings := v.Filter([]domain.Transaction{validTransaction(), bad})

	require.Len(t, valid, 1)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "transaction 2")
	assert.Contains(t, warnings[0], "date is in the future")
	assert.Contains(t, warnings[0], "amount is zero")
}
