package readers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/dvloznov/finance-ingest/internal/docerrors"
	"github.com/dvloznov/finance-ingest/internal/domain"
)

func TestReadCSV_StandardLedger(t *testing.T) {
	content := "date,description,amount,category\n" +
		"2024-03-05,Courses Lidl,-12.30,Courses\n" +
		"2024-03-06,Salaire ACME,2000.00,\n" +
		",sans date,1.00,\n" +
		"2024-03-07,montant illisible,abc,\n"

	result, err := ReadCSV(context.Background(), []byte(content), "export.csv")
	require.NoError(t, err)
	require.Len(t, result.Fragments, 2)
	assert.False(t, result.BankLedger)
	assert.Equal(t, 2, result.Dropped)

	first := result.Fragments[0]
	assert.Equal(t, "2024-03-05", first.Date)
	assert.Equal(t, "Courses Lidl", first.Description)
	assert.InDelta(t, -12.30, first.Amount, 1e-9)
	assert.Equal(t, "Courses", first.CategoryID)
	assert.Equal(t, "ledger", first.Metadata[domain.MetaDetectionSource])
	assert.NotContains(t, first.Metadata, domain.MetaSheet)

	assert.InDelta(t, 2000.00, result.Fragments[1].Amount, 1e-9)
}

func TestReadCSV_Latin1BankExport(t *testing.T) {
	utf8Content := "Date opération;Date valeur;Libellé;Débit;Crédit\n" +
		"05/03/2024;06/03/2024;CARTE 04/03 LIDL;12,30;\n" +
		"07/03/2024;07/03/2024;VIR SEPA ACME;;1 500,00\n"
	latin1, err := charmap.ISO8859_1.NewEncoder().String(utf8Content)
	require.NoError(t, err)

	result, err := ReadCSV(context.Background(), []byte(latin1), "historique.csv")
	require.NoError(t, err)
	require.Len(t, result.Fragments, 2)
	assert.True(t, result.BankLedger)

	card := result.Fragments[0]
	assert.Equal(t, "05/03/2024", card.Date)
	assert.Equal(t, "06/03/2024", card.ValueDate)
	assert.Equal(t, "CARTE 04/03 LIDL", card.Description)
	assert.InDelta(t, -12.30, card.Amount, 1e-9)
	assert.Equal(t, "12,30", card.DebitText)
	assert.Equal(t, "bank_ledger", card.Metadata[domain.MetaDetectionSource])

	assert.InDelta(t, 1500.00, result.Fragments[1].Amount, 1e-9)
}

func TestReadCSV_BOMAndTabs(t *testing.T) {
	content := "\xEF\xBB\xBFDate\tLibelle\tMontant\n01/02/2024\tPRLV SEPA FREE\t-19,99\n"
	result, err := ReadCSV(context.Background(), []byte(content), "x.csv")
	require.NoError(t, err)
	require.Len(t, result.Fragments, 1)
	assert.InDelta(t, -19.99, result.Fragments[0].Amount, 1e-9)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"empty file", "", docerrors.ErrEmptyDocument},
		{"header only", "date;libellé;montant\n", docerrors.ErrNoTransactions},
		{"no usable columns", "foo,bar\n1,2\n", docerrors.ErrNoTransactions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(context.Background(), []byte(tt.content), "x.csv")
			require.Error(t, err)
			assert.True(t, docerrors.IsKind(err, docerrors.KindExtract))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want rune
	}{
		{"semicolon", "a;b;c\n1;2;3", ';'},
		{"comma", "a,b,c", ','},
		{"tab", "a\tb\tc", '\t'},
		{"quoted commas ignored", "\"a,b,c\";d;e", ';'},
		{"leading blank lines", "\n\n a;b", ';'},
		{"default", "single", ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sniffDelimiter([]byte(tt.text)))
		})
	}
}

func TestReadTable_LooseBankExport(t *testing.T) {
	table := Table{Name: "Export", Sheet: true, Rows: [][]string{
		{"BOURSOBANK"},
		{"45356", "", "CARTE 04/03 LIDL", "", "-12,30"},
		{"45357", "", "VIR SEPA Salaire ACME", "", "2000,00"},
		{"", "", "CARTE 30/01/24 CARREFOUR CITY", "", "8,40"},
	}}

	result := ReadTable(table)
	assert.True(t, result.BankLedger)
	require.Len(t, result.Fragments, 3)
	assert.Equal(t, 1, result.Dropped)

	assert.Equal(t, "45356", result.Fragments[0].Date)
	assert.InDelta(t, -12.30, result.Fragments[0].Amount, 1e-9)
	assert.InDelta(t, 2000.00, result.Fragments[1].Amount, 1e-9)

	// Date recovered from the description, positive amount is an expense.
	assert.Equal(t, "2024-01-30", result.Fragments[2].Date)
	assert.InDelta(t, -8.40, result.Fragments[2].Amount, 1e-9)
	assert.Equal(t, "Export", result.Fragments[2].Metadata[domain.MetaSheet])
}

func TestIsBankLedger(t *testing.T) {
	assert.True(t, IsBankLedger("Historique des opérations", nil))
	assert.True(t, IsBankLedger("Feuil1", [][]string{{"Extrait de votre compte"}}))
	assert.True(t, IsBankLedger("", [][]string{{"Date", "Libellé", "Montant"}}))
	assert.False(t, IsBankLedger("budget.csv", [][]string{{"date", "description", "amount"}}))
}

func TestReadWorkbook_XLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Historique"))
	rows := [][]interface{}{
		{"BoursoBank - Extrait de votre compte"},
		{"Compte courant"},
		{"Date opération", "Libellé", "Débit", "Crédit"},
		{45356, "CARTE 04/03 LIDL", 12.3, nil},
		{45357, "VIR SEPA ACME", nil, 1500},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Historique", cell, &row))
	}
	_, err := f.NewSheet("Notes")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Notes", "A1", "rien à voir"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	result, err := ReadWorkbook(context.Background(), buf.Bytes(), "releve.xlsx")
	require.NoError(t, err)
	require.Len(t, result.Fragments, 2)
	assert.True(t, result.BankLedger)

	first := result.Fragments[0]
	assert.Equal(t, "45356", first.Date)
	assert.Equal(t, "CARTE 04/03 LIDL", first.Description)
	assert.InDelta(t, -12.30, first.Amount, 1e-9)
	assert.Equal(t, "Historique", first.Metadata[domain.MetaSheet])
	assert.InDelta(t, 1500, result.Fragments[1].Amount, 1e-9)
}

func TestReadWorkbook_Garbage(t *testing.T) {
	_, err := ReadWorkbook(context.Background(), []byte("not a workbook"), "x.xlsx")
	require.Error(t, err)
	assert.True(t, docerrors.IsKind(err, docerrors.KindExtract))
}

func TestReadText(t *testing.T) {
	text := "RELEVE DE COMPTE\n" +
		"05/03/2024 LIDL 12,30\n" +
		"06-03-2024 REMBOURSEMENT -5,00\n" +
		"07/03/2024 1 234,56\n" +
		"TOTAL 17,30\n"

	result := ReadText(text)
	require.Len(t, result.Fragments, 2)
	assert.Equal(t, 1, result.Dropped)

	assert.Equal(t, "05/03/2024", result.Fragments[0].Date)
	assert.Equal(t, "LIDL", result.Fragments[0].Description)
	assert.InDelta(t, 12.30, result.Fragments[0].Amount, 1e-9)
	assert.Equal(t, "ocr_text", result.Fragments[0].Metadata[domain.MetaDetectionSource])

	assert.Equal(t, "06-03-2024", result.Fragments[1].Date)
	assert.InDelta(t, -5.00, result.Fragments[1].Amount, 1e-9)

	assert.Equal(t, 3, CountTransactionLines(text))
}
