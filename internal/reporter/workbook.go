package reporter

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"psp-reconciliation-service/internal/models"
	"psp-reconciliation-service/internal/reconciler"
)

// Workbook sheet names
const (
	SheetDSN       = "DSN"
	SheetPSD       = "PSD"
	SheetReversals = "Extornos"
)

var transactionColumns = []string{"PSP_TIN", "Operacion", "Monto", "Fecha", "Descripcion", "Canal", "Linea"}

// amountColumn is the 1-based position of Monto in transactionColumns.
const amountColumn = 3

// fallbackLedgerColumns is used when the ledger rows carry no raw cells.
var fallbackLedgerColumns = []string{"PSP_TIN", "Banco", "Moneda", "Fecha", "Fila"}

// BuildWorkbook lays the DSN, PSD and reversal views out as sheets. PSD rows
// keep every column of the ledger export in its original order.
func BuildWorkbook(result *reconciler.ReconciliationResult) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), SheetDSN); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name DSN sheet: %w", err)
	}
	if err := writeTransactionSheet(f, SheetDSN, result.DSN); err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.NewSheet(SheetPSD); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create PSD sheet: %w", err)
	}
	if err := writeLedgerSheet(f, SheetPSD, result.LedgerHeaders, result.PSD); err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.NewSheet(SheetReversals); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create reversals sheet: %w", err)
	}
	if err := writeTransactionSheet(f, SheetReversals, result.Reversals); err != nil {
		f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

func (rg *ReportGenerator) generateWorkbookReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	f, err := BuildWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(writer); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

func writeTransactionSheet(f *excelize.File, sheet string, txs []*models.CanonicalTransaction) error {
	if err := setRow(f, sheet, 1, stringsToCells(transactionColumns)); err != nil {
		return err
	}

	for i, tx := range txs {
		row := []interface{}{
			tx.PSPTIN,
			tx.TransactionID,
			nil,
			tx.TimestampString(),
			tx.Description,
			tx.Channel,
			tx.Line,
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
		if tx.Amount.Valid {
			if err := setAmount(f, sheet, i+2, tx.Amount.Decimal); err != nil {
				return err
			}
		}
	}

	return setWidths(f, sheet, len(transactionColumns))
}

// setAmount writes the decimal text as a numeric cell, so the stored value
// keeps every digit of the statement amount.
func setAmount(f *excelize.File, sheet string, row int, amount decimal.Decimal) error {
	cell, err := excelize.CoordinatesToCellName(amountColumn, row)
	if err != nil {
		return err
	}
	if err := f.SetCellDefault(sheet, cell, amount.String()); err != nil {
		return fmt.Errorf("failed to write %s amount at %s: %w", sheet, cell, err)
	}
	return nil
}

func writeLedgerSheet(f *excelize.File, sheet string, headers []string, rows []*models.LedgerRow) error {
	raw := len(headers) > 0
	for _, row := range rows {
		if len(row.Values) == 0 {
			raw = false
			break
		}
	}

	columns := fallbackLedgerColumns
	if raw {
		columns = headers
	}
	if err := setRow(f, sheet, 1, stringsToCells(columns)); err != nil {
		return err
	}

	for i, row := range rows {
		var cells []interface{}
		if raw {
			cells = stringsToCells(row.Values)
		} else {
			cells = []interface{}{row.PSPTIN, row.Bank, row.Currency, row.TimestampString(), row.Row}
		}
		if err := setRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}

	return setWidths(f, sheet, len(columns))
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func setWidths(f *excelize.File, sheet string, n int) error {
	if n == 0 {
		return nil
	}
	last, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
		return fmt.Errorf("failed to size %s columns: %w", sheet, err)
	}
	return nil
}

func stringsToCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
