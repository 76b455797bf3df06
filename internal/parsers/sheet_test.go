package parsers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psp-reconciliation-service/pkg/errors"
)

func builtinSheetAdapter(t *testing.T, name string) *SheetAdapter {
	t.Helper()
	for _, l := range BuiltinSheetLayouts() {
		if l.Name == name {
			a, err := NewSheetAdapter(l, DefaultReversalKeyword)
			require.NoError(t, err)
			return a
		}
	}
	t.Fatalf("unknown layout %s", name)
	return nil
}

func bcpDailyRows() [][]string {
	return padded(7, "Movimientos",
		[]string{"Fecha operación", "Descripción operación", "Monto", "Nº operación", "Hora"},
		[]string{"10/01/2025", "PAGO 251000000007 CLIENTE", "100.50", "000123", "10:15:30"},
		[]string{"10/01/2025", "PAGO 251000000008", "50.00", "000124", "10:19:00"},
		[]string{"10/01/2025", "EXTORNO PAGO 251000000008", "-50.00", "000124", "10:20:00"},
		[]string{"10/01/2025", "COMISION MANTENIMIENTO", "-3.00", "000125", "11:00:00"},
		[]string{"", "", "", "", ""},
	)
}

func TestSheetAdapter_BCPDaily(t *testing.T) {
	data := buildWorkbook(t, bcpDailyRows())

	source, err := builtinSheetAdapter(t, "bcp-daily").Decode(context.Background(), data)
	require.NoError(t, err)

	require.Len(t, source.Transactions, 1)
	tx := source.Transactions[0]
	assert.Equal(t, "251000000007", tx.PSPTIN)
	assert.Equal(t, "000123", tx.TransactionID)
	assert.Equal(t, "100.50", tx.AmountString())
	assert.Equal(t, time.Date(2025, 1, 10, 10, 15, 30, 0, time.UTC), tx.Timestamp)

	assert.Equal(t, "BCP", source.Bank)
	assert.True(t, source.SecondPrecision)
	assert.Len(t, source.Reversals, 2)
	assert.Equal(t, 2, source.Stats.ReversalsFound)
	assert.Equal(t, 1, source.Stats.InvalidKeys, "commission row carries no key")

	cutoff, ok := source.Cutoff()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 10, 10, 15, 30, 0, time.UTC), cutoff)
}

func TestSheetAdapter_BBVADailyPositionalFallback(t *testing.T) {
	rows := padded(10, "MOVIMIENTOS DEL DÍA",
		[]string{"Fecha", "Valor", "Oficina", "Glosa", "Operacion", "Monto"},
		[]string{"10-01-2025", "10-01-2025", "0100", "ABONO 251000000021", "7001", "15.00"},
		[]string{"10-01-2025", "10-01-2025", "0100", "ABONO 251000000022", "7002", "20.00"},
		[]string{"10-01-2025", "10-01-2025", "0100", "CARGO 251000000022", "7002", "-20.00"},
	)
	sheet := &Sheet{Rows: rows}
	adapter := builtinSheetAdapter(t, "bbva-daily")

	source, err := adapter.DecodeSheet(context.Background(), sheet, true)
	require.NoError(t, err)
	require.Len(t, source.Transactions, 1)
	assert.Equal(t, "251000000021", source.Transactions[0].PSPTIN)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), source.Transactions[0].Timestamp)
	assert.Len(t, source.Reversals, 2, "opposite signs flag the group")
	assert.False(t, source.SecondPrecision)

	_, err = adapter.DecodeSheet(context.Background(), sheet, false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeUnrecognizedLayout))
}

func TestSheetAdapter_BBVAHistoricalDropsBalanceRows(t *testing.T) {
	rows := padded(10, "HISTÓRICO DE MOVIMIENTOS",
		[]string{"F. Operación", "F. Valor", "Concepto", "Nº. Doc.", "Importe"},
		[]string{"Saldo Inicial: 1,000.00", "", "SALDO", "", ""},
		[]string{"09-01-2025", "09-01-2025", "PAGO 251000000031", "8001", "45.00"},
		[]string{"09-01-2025", "09-01-2025", "PAGO 251000000032", "8002", "12.00"},
		[]string{"Saldo Final: 1,057.00", "", "SALDO", "", ""},
	)

	source, err := builtinSheetAdapter(t, "bbva-historical").DecodeSheet(context.Background(), &Sheet{Rows: rows}, true)
	require.NoError(t, err)
	require.Len(t, source.Transactions, 2)
	assert.Equal(t, "251000000031", source.Transactions[0].PSPTIN)
	assert.Equal(t, "251000000032", source.Transactions[1].PSPTIN)
	assert.Equal(t, 2, source.Stats.SkippedLines)
	assert.Equal(t, 0, source.Stats.InvalidKeys)
}

func TestSheetAdapter_CountsBlankRowsAsSkipped(t *testing.T) {
	rows := padded(10, "HISTÓRICO DE MOVIMIENTOS",
		[]string{"F. Operación", "F. Valor", "Concepto", "Nº. Doc.", "Importe"},
		[]string{"09-01-2025", "09-01-2025", "PAGO 251000000051", "8101", "45.00"},
		[]string{"09-01-2025", "", "", "", "3.00"},
		[]string{},
		[]string{"09-01-2025", "09-01-2025", "PAGO 251000000052", "8102", "12.00"},
	)

	source, err := builtinSheetAdapter(t, "bbva-historical").DecodeSheet(context.Background(), &Sheet{Rows: rows}, true)
	require.NoError(t, err)
	require.Len(t, source.Transactions, 2)
	assert.Equal(t, 4, source.Stats.LinesRead)
	assert.Equal(t, 2, source.Stats.SkippedLines)
	assert.Equal(t, 2, source.Stats.RecordsDecoded)
}

func TestSheetAdapter_BCPHistoricalLocatesHeader(t *testing.T) {
	rows := [][]string{
		{"Consulta de movimientos"},
		{},
		{"Fecha", "Descripción operación", "Monto", "Operación - Número", "Operación - Hora"},
		{"10/01/2025", "PAGO 251000000041", "10.00", "9001", "14:05:09"},
		{"10/01/2025", "PAGO 251000000042", "11.00", "9002", "14:06:00"},
	}

	source, err := builtinSheetAdapter(t, "bcp-historical").DecodeSheet(context.Background(), &Sheet{Rows: rows}, false)
	require.NoError(t, err)
	require.Len(t, source.Transactions, 2)
	assert.Equal(t, time.Date(2025, 1, 10, 14, 5, 9, 0, time.UTC), source.Transactions[0].Timestamp)
	assert.Equal(t, 4, source.Transactions[0].Line)
	assert.True(t, source.SecondPrecision)
}

func TestSheetAdapter_RejectsText(t *testing.T) {
	_, err := builtinSheetAdapter(t, "bcp-daily").Decode(context.Background(), []byte("DD plain text"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeUnrecognizedLayout))
}

func TestSheetLayout_Validate(t *testing.T) {
	base := func() SheetLayout {
		return SheetLayout{
			Name:        "custom",
			Description: ColumnSpec{Names: []string{"Detalle"}},
			Operation:   ColumnSpec{Names: []string{"Operación"}},
			Date:        ColumnSpec{Names: []string{"Fecha"}},
		}
	}

	ok := base()
	assert.NoError(t, ok.Validate())

	noDate := base()
	noDate.Date = ColumnSpec{}
	assert.Error(t, noDate.Validate())

	badMode := base()
	badMode.Reversal = "sometimes"
	assert.Error(t, badMode.Validate())

	badPattern := base()
	badPattern.SkipPattern = "(("
	assert.Error(t, badPattern.Validate())
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
		ok    bool
	}{
		{"iso", "2025-01-10 08:30:00", time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC), true},
		{"day first", "02/03/2025", time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), true},
		{"metabase", "January 10, 2025, 8:30 AM", time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC), true},
		{"excel serial", "45667.5", time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC), true},
		{"amount is not a date", "100.50", time.Time{}, false},
		{"empty", "", time.Time{}, false},
		{"garbage", "mañana", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"100.50", "100.50"},
		{"S/ 1,234.56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"-20,00", "-20.00"},
		{"US$ 15", "15.00"},
	}

	for _, tt := range tests {
		got := ParseAmount(tt.value)
		require.True(t, got.Valid, tt.value)
		assert.Equal(t, tt.want, got.Decimal.StringFixed(2), tt.value)
	}
	assert.False(t, ParseAmount("n/a").Valid)
	assert.False(t, ParseAmount("").Valid)
}

func TestFoldText(t *testing.T) {
	assert.Equal(t, "HISTORICO DE MOVIMIENTOS", FoldText("Histórico de Movimientos"))
	assert.Equal(t, "NUMERO OPERACION", FoldText("Número operación"))
}
