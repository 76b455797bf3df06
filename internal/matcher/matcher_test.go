package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psp-reconciliation-service/internal/models"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 1, 10, hour, minute, 0, 0, time.UTC)
}

func bankTx(key, amount string, ts time.Time) *models.CanonicalTransaction {
	tx := &models.CanonicalTransaction{PSPTIN: key, TransactionID: key, Timestamp: ts}
	if amount != "" {
		tx.Amount = decimal.NewNullDecimal(decimal.RequireFromString(amount))
	}
	return tx
}

func ledgerRow(key, bank, currency string, ts time.Time) *models.LedgerRow {
	return &models.LedgerRow{PSPTIN: key, Bank: bank, Currency: currency, Timestamp: ts}
}

func keysOf(txs []*models.CanonicalTransaction) []string {
	return models.UniqueKeys(txs)
}

func rowKeys(rows []*models.LedgerRow) []string {
	var keys []string
	for _, r := range rows {
		keys = append(keys, r.PSPTIN)
	}
	return keys
}

func TestMatchingEngine_Reconcile(t *testing.T) {
	source := &models.BankSource{
		Bank: "BCP",
		Transactions: []*models.CanonicalTransaction{
			bankTx("251000000003", "30.00", time.Time{}),
			bankTx("251000000001", "10.00", time.Time{}),
			bankTx("251000000005", "", time.Time{}),
		},
	}
	ledger := &models.Ledger{Rows: []*models.LedgerRow{
		ledgerRow("251000000004", "BCP", "PEN", at(9, 0)),
		ledgerRow("251000000001", "BCP", "PEN", at(9, 0)),
		ledgerRow("251000000002", "BCP", "PEN", time.Time{}),
		ledgerRow("251000000006", "BBVA", "PEN", at(9, 0)),
		ledgerRow("251000000007", "BCP", "USD", at(9, 0)),
	}}

	engine := NewMatchingEngine(nil)
	result, err := engine.Reconcile(context.Background(), source, ledger)
	require.NoError(t, err)

	assert.Equal(t, []string{"251000000003", "251000000005"}, keysOf(result.DSN))
	assert.Equal(t, []string{"251000000004", "251000000002"}, rowKeys(result.PSD))
	assert.False(t, result.HasCutoff, "no second precision, no cutoff")

	s := result.Summary
	assert.Equal(t, 3, s.BankRecords)
	assert.Equal(t, 5, s.LedgerRows)
	assert.Equal(t, 3, s.LedgerConsidered)
	assert.Equal(t, 1, s.ExcludedByBank)
	assert.Equal(t, 1, s.ExcludedByCurrency)
	assert.Equal(t, 1, s.Matched)
	assert.Equal(t, 2, s.DSNCount)
	assert.Equal(t, 2, s.PSDCount)
	assert.True(t, decimal.RequireFromString("10").Equal(s.TotalAmountMatched))
	assert.True(t, decimal.RequireFromString("30").Equal(s.TotalAmountUnmatched))

	again, err := engine.Reconcile(context.Background(), source, ledger)
	require.NoError(t, err)
	assert.Equal(t, result.DSN, again.DSN)
	assert.Equal(t, result.PSD, again.PSD)
}

func TestMatchingEngine_CutoffScenario(t *testing.T) {
	source := &models.BankSource{
		Bank:            "BCP",
		SecondPrecision: true,
		Transactions: []*models.CanonicalTransaction{
			bankTx("251000000001", "10.00", at(10, 0)),
		},
	}
	ledger := &models.Ledger{Rows: []*models.LedgerRow{
		ledgerRow("251000000001", "BCP", "PEN", at(9, 30)),
		ledgerRow("251000000002", "BCP", "PEN", at(10, 1)),
		ledgerRow("251000000003", "BCP", "PEN", time.Time{}),
	}}

	result, err := NewMatchingEngine(nil).Reconcile(context.Background(), source, ledger)
	require.NoError(t, err)

	assert.True(t, result.HasCutoff)
	assert.Equal(t, at(10, 0), result.Cutoff)
	assert.Empty(t, result.DSN)
	assert.Empty(t, result.PSD)
	assert.Equal(t, 1, result.Summary.ExcludedByCutoff)
	assert.Equal(t, 1, result.Summary.ExcludedNoTimestamp)

	cfg := DefaultMatchingConfig()
	cfg.ApplyCutoff = false
	result, err = NewMatchingEngine(cfg).Reconcile(context.Background(), source, ledger)
	require.NoError(t, err)
	assert.False(t, result.HasCutoff)
	assert.Equal(t, []string{"251000000002", "251000000003"}, rowKeys(result.PSD))
}

func TestMatchingEngine_CutoffIsInclusive(t *testing.T) {
	source := &models.BankSource{
		Bank:            "BCP",
		SecondPrecision: true,
		Transactions:    []*models.CanonicalTransaction{bankTx("251000000001", "", at(10, 0))},
	}
	ledger := &models.Ledger{Rows: []*models.LedgerRow{
		ledgerRow("251000000009", "BCP", "PEN", at(10, 0)),
	}}

	result, err := NewMatchingEngine(nil).Reconcile(context.Background(), source, ledger)
	require.NoError(t, err)
	assert.Equal(t, []string{"251000000009"}, rowKeys(result.PSD))
}

func TestMatchingEngine_FilterLedgerReasonOrder(t *testing.T) {
	engine := NewMatchingEngine(nil)
	rows := []*models.LedgerRow{
		ledgerRow("251000000001", "BBVA", "USD", at(12, 0)),
		ledgerRow("251000000002", "BCP", "USD", at(12, 0)),
		ledgerRow("251000000003", "BCP", "PEN", at(12, 0)),
		ledgerRow("251000000004", "BCP", "PEN", time.Time{}),
		ledgerRow("251000000005", "BCP", "PEN", at(8, 0)),
	}

	kept, excluded := engine.FilterLedger(rows, "BCP", at(10, 0), true)
	require.Len(t, kept, 1)
	assert.Equal(t, "251000000005", kept[0].PSPTIN)

	var reasons []ExclusionReason
	for _, ex := range excluded {
		reasons = append(reasons, ex.Reason)
	}
	assert.Equal(t, []ExclusionReason{ExcludedByBank, ExcludedByCurrency, ExcludedByCutoff, ExcludedNoTimestamp}, reasons)
}

func TestMatchingEngine_Errors(t *testing.T) {
	engine := NewMatchingEngine(nil)

	_, err := engine.Reconcile(context.Background(), nil, &models.Ledger{})
	assert.Error(t, err)

	_, err = engine.Reconcile(context.Background(), &models.BankSource{}, nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Reconcile(ctx, &models.BankSource{}, &models.Ledger{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReconciliationResult_DSNKeys(t *testing.T) {
	result := &ReconciliationResult{DSN: []*models.CanonicalTransaction{
		bankTx("251000000002", "", time.Time{}),
		bankTx("251000000001", "", time.Time{}),
		bankTx("251000000002", "", time.Time{}),
	}}
	assert.Equal(t, []string{"251000000002", "251000000001"}, result.DSNKeys())
}
