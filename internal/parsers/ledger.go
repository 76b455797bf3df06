package parsers

import (
	"context"
	"strings"

	"psp-reconciliation-service/internal/models"
	"psp-reconciliation-service/pkg/errors"
	"psp-reconciliation-service/pkg/logger"
)

// LedgerLoader reads internal-ledger exports and projects their rows onto
// the resolved semantic columns.
type LedgerLoader struct {
	resolver *ColumnResolver
	logger   logger.Logger
}

// NewLedgerLoader creates a loader using resolver.
func NewLedgerLoader(resolver *ColumnResolver) *LedgerLoader {
	if resolver == nil {
		resolver = NewColumnResolver(nil)
	}
	return &LedgerLoader{
		resolver: resolver,
		logger:   logger.GetGlobalLogger().WithComponent("ledger_loader"),
	}
}

// Load reads an xlsx, xls or CSV ledger export.
func (l *LedgerLoader) Load(ctx context.Context, data []byte) (*models.Ledger, error) {
	sheet, err := LoadSheet(data)
	if err != nil {
		return nil, err
	}
	return l.FromSheet(ctx, sheet)
}

// FromSheet resolves the columns of sheet and returns one LedgerRow per
// distinct valid PSP_TIN, first occurrence first.
func (l *LedgerLoader) FromSheet(ctx context.Context, sheet *Sheet) (*models.Ledger, error) {
	headerRow := -1
	for r, row := range sheet.Rows {
		if !isBlankRow(row) {
			headerRow = r
			break
		}
	}
	if headerRow < 0 {
		return nil, errors.ValidationError(errors.CodeMissingField, "ledger", "empty", nil).
			WithSuggestion("ensure the ledger export contains a header row and data rows")
	}

	headers := sheet.Rows[headerRow]
	var body [][]string
	for _, row := range sheet.Rows[headerRow+1:] {
		if !isBlankRow(row) {
			body = append(body, row)
		}
	}

	mapping, err := l.resolver.Resolve(headers, body)
	if err != nil {
		l.logger.WithError(err).WithField("headers", headers).Error("Ledger column resolution failed")
		return nil, err
	}

	ledger := &models.Ledger{
		Headers: headers,
		Columns: mapping,
	}
	seen := make(map[string]bool, len(body))
	for i, row := range body {
		if i%1000 == 0 {
			if err := checkContext(ctx); err != nil {
				return nil, err
			}
		}
		ledger.Stats.LinesRead++

		key := models.NormalizeKey(cell(row, mapping.PSPTIN.Index))
		if !models.IsValidPSPTIN(key) {
			ledger.Stats.InvalidKeys++
			continue
		}
		if seen[key] {
			ledger.Stats.DuplicateKeys++
			continue
		}
		seen[key] = true

		ledgerRow := &models.LedgerRow{
			PSPTIN:   key,
			Bank:     strings.TrimSpace(cell(row, mapping.Bank.Index)),
			Currency: strings.ToUpper(strings.TrimSpace(cell(row, mapping.Currency.Index))),
			Row:      i + 1,
			Values:   padRow(row, len(headers)),
		}
		if ts, ok := ParseTimestamp(cell(row, mapping.Timestamp.Index)); ok {
			ledgerRow.Timestamp = ts
		}
		ledger.Rows = append(ledger.Rows, ledgerRow)
	}
	ledger.Stats.RecordsDecoded = ledger.Stats.LinesRead
	ledger.Stats.RecordsAccepted = len(ledger.Rows)

	l.logger.WithFields(logger.Fields{
		"rows":         ledger.Stats.LinesRead,
		"accepted":     ledger.Stats.RecordsAccepted,
		"invalid_keys": ledger.Stats.InvalidKeys,
		"duplicates":   ledger.Stats.DuplicateKeys,
	}).Info("Loaded ledger export")

	return ledger, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return append([]string(nil), row...)
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
