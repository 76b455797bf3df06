package parsers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psp-reconciliation-service/pkg/errors"
)

const ledgerCSV = "\ufeffDeuda_PspTin;Banco; Moneda;PC_create_date_GMT_Peru\n" +
	"251000000001.0;BCP; pen ;10/01/2025 09:00:00\n" +
	"251000000002;BBVA;PEN;2025-01-10 10:00:00\n" +
	"251000000001;BCP;PEN;10/01/2025 11:00:00\n" +
	"abc;BCP;PEN;10/01/2025 12:00:00\n" +
	";;;\n" +
	"251000000003;BCP;USD;sin fecha\n"

func TestLedgerLoader_CSV(t *testing.T) {
	ledger, err := NewLedgerLoader(nil).Load(context.Background(), []byte(ledgerCSV))
	require.NoError(t, err)

	require.Len(t, ledger.Rows, 3)
	first := ledger.Rows[0]
	assert.Equal(t, "251000000001", first.PSPTIN)
	assert.Equal(t, "BCP", first.Bank)
	assert.Equal(t, "PEN", first.Currency)
	assert.Equal(t, time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), first.Timestamp)
	assert.Equal(t, 1, first.Row)

	assert.Equal(t, "251000000002", ledger.Rows[1].PSPTIN)
	assert.Equal(t, "251000000003", ledger.Rows[2].PSPTIN)
	assert.False(t, ledger.Rows[2].HasTimestamp())

	assert.Equal(t, 5, ledger.Stats.LinesRead)
	assert.Equal(t, 1, ledger.Stats.InvalidKeys)
	assert.Equal(t, 1, ledger.Stats.DuplicateKeys)
	assert.Equal(t, 3, ledger.Stats.RecordsAccepted)
	assert.Equal(t, " Moneda", ledger.Columns.Currency.Header)
}

func TestLedgerLoader_Workbook(t *testing.T) {
	rows := [][]string{
		{},
		{"psp_tin", "bank", "currency", "processing_date", "amount"},
		{"251000000011", "Interbank", "PEN", "45667.5", "10"},
		{"251000000012", "Interbank", "PEN", "45667.75"},
	}

	ledger, err := NewLedgerLoader(nil).Load(context.Background(), buildWorkbook(t, rows))
	require.NoError(t, err)
	require.Len(t, ledger.Rows, 2)
	assert.Equal(t, time.Date(2025, 1, 10, 18, 0, 0, 0, time.UTC), ledger.Rows[1].Timestamp)
	assert.Len(t, ledger.Rows[1].Values, 5, "short rows are padded to the header width")
}

func TestLedgerLoader_Empty(t *testing.T) {
	_, err := NewLedgerLoader(nil).Load(context.Background(), []byte("\n\n"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeMissingField))
}

func TestLedgerLoader_UnresolvableColumns(t *testing.T) {
	data := []byte("codigo,nombre\nx,y\n")

	_, err := NewLedgerLoader(nil).Load(context.Background(), data)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeColumnResolution))
}
