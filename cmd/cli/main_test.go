package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-ingest/internal/categorize"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/pipeline"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LAYOUT_PROVIDER", "pdftext")
	t.Setenv("LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestProcess_JSON(t *testing.T) {
	path := writeFile(t, "export.csv", "date,description,amount\n2024-03-05,Courses Lidl,-12.30\n2024-03-06,Salaire ACME,2000.00\n")

	out, err := runCLI(t, "process", path, "--json")
	require.NoError(t, err)

	var res pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, pipeline.FormatCSV, res.Format)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, categorize.Groceries, res.Transactions[0].CategoryID)
}

func TestProcess_Text(t *testing.T) {
	path := writeFile(t, "export.csv", "date,description,amount\n2024-03-05,Courses Lidl,-12.30\n")

	out, err := runCLI(t, "process", path)
	require.NoError(t, err)
	assert.Contains(t, out, "=== Transactions (1) ===")
	assert.Contains(t, out, "Courses Lidl")
}

func TestProcess_Errors(t *testing.T) {
	_, err := runCLI(t, "process", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	path := writeFile(t, "notes.txt", "hello")
	_, err = runCLI(t, "process", path)
	assert.Error(t, err)

	_, err = runCLI(t, "ingest")
	assert.ErrorContains(t, err, "gcs-uri")
}

func TestPrintResult(t *testing.T) {
	opening := 100.0
	var buf bytes.Buffer
	printResult(&buf, &pipeline.Result{
		Format:       pipeline.FormatPDF,
		DocumentType: domain.DocumentBankStatement,
		Bank:         "boursobank",
		Statement:    &domain.BankStatement{Bank: "boursobank", Period: "du 01/01/2024 au 31/01/2024", OpeningBalance: &opening, TransactionCount: 1, TotalDebits: 12.3},
		Transactions: []domain.Transaction{{Date: "2024-01-05", Amount: -12.3, Description: "CARTE LIDL", CategoryID: categorize.Groceries}},
		Warnings:     []string{"1 incomplete rows dropped"},
	})

	out := buf.String()
	assert.Contains(t, out, "Bank: boursobank")
	assert.Contains(t, out, "du 01/01/2024 au 31/01/2024")
	assert.Contains(t, out, categorize.Name(categorize.Groceries))
	assert.Contains(t, out, "warning: 1 incomplete rows dropped")
}

func TestUserOr(t *testing.T) {
	assert.Equal(t, "u1", userOr("u1", "default"))
	assert.Equal(t, "default", userOr("", "default"))
}
