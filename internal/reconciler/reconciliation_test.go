package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psp-reconciliation-service/internal/cache"
	"psp-reconciliation-service/internal/matcher"
	"psp-reconciliation-service/pkg/errors"
)

func TestProcessReconciliation_CutoffScenario(t *testing.T) {
	bankFile := writeFile(t, "crep.txt", statement(
		statementLine("251000000011", "000000000010000", "000123", "100000"),
	))
	ledgerFile := writeFile(t, "ledger.csv", ledger(
		"251000000011;BCP;PEN;10/01/2025 09:00:00",
		"251000000022;BCP;PEN;10/01/2025 11:00:00",
	))

	result, err := newTestService(t, nil).ProcessReconciliation(context.Background(), &ReconciliationRequest{
		BankFile:   bankFile,
		LedgerFile: ledgerFile,
	})
	require.NoError(t, err)

	assert.Empty(t, result.DSN)
	assert.Empty(t, result.PSD)
	assert.Equal(t, "BCP", result.Bank)
	assert.Equal(t, "crep-v2", result.Layout)
	assert.NotEmpty(t, result.RunID)

	require.NotNil(t, result.Cutoff)
	assert.Equal(t, time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC), *result.Cutoff)

	require.Len(t, result.Excluded, 1)
	assert.Equal(t, "251000000022", result.Excluded[0].Row.PSPTIN)
	assert.Equal(t, matcher.ExcludedByCutoff, result.Excluded[0].Reason)

	assert.Equal(t, 1, result.Summary.Matched)
	assert.Equal(t, 1, result.Summary.ExcludedByCutoff)
	assert.Equal(t, "100.00", result.Summary.TotalAmountMatched.StringFixed(2))
	assert.Equal(t, "Deuda_PspTin", result.Columns.PSPTIN.Header)

	require.NotNil(t, result.EdgeCases)
	require.Len(t, result.EdgeCases.CarriedOver, 1)
	assert.Equal(t, "251000000022", result.EdgeCases.CarriedOver[0].PSPTIN)
}

func TestProcessReconciliation_BothViews(t *testing.T) {
	bank := statement(
		statementLine("251000000001", "000000000001000", "000001", "080000"),
		statementLine("251000000002", "000000000002000", "000002", "090000"),
		statementLine("251000000003", "000000000003000", "000003", "120000"),
	)
	rows := ledger(
		"251000000002;BCP;PEN;10/01/2025 08:30:00",
		"251000000004;BCP;PEN;10/01/2025 09:30:00",
		"251000000005;BBVA;PEN;10/01/2025 09:30:00",
		"251000000006;BCP;USD;10/01/2025 09:30:00",
	)

	result, err := newTestService(t, nil).ProcessReconciliation(context.Background(), &ReconciliationRequest{
		BankData:   bank,
		LedgerData: rows,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"251000000001", "251000000003"}, result.DSNKeys())
	require.Len(t, result.PSD, 1)
	assert.Equal(t, "251000000004", result.PSD[0].PSPTIN)

	assert.Equal(t, 1, result.Summary.ExcludedByBank)
	assert.Equal(t, 1, result.Summary.ExcludedByCurrency)
	assert.Equal(t, 3, result.Summary.BankStats.RecordsAccepted)
	assert.Equal(t, 4, result.Summary.LedgerStats.RecordsAccepted)
	assert.Equal(t, len(bank), result.ProcessingStats.BankBytes)
}

func TestProcessReconciliation_ColumnResolutionAborts(t *testing.T) {
	_, err := newTestService(t, nil).ProcessReconciliation(context.Background(), &ReconciliationRequest{
		BankData:   statement(statementLine("251000000001", "000000000001000", "000001", "080000")),
		LedgerData: []byte("codigo,nombre\nx,y\n"),
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeColumnResolution))
}

func TestProcessReconciliation_MissingFile(t *testing.T) {
	_, err := newTestService(t, nil).ProcessReconciliation(context.Background(), &ReconciliationRequest{
		BankFile:   "does-not-exist.txt",
		LedgerData: ledger("251000000001;BCP;PEN;10/01/2025 09:00:00"),
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeFileNotFound))

	rerr, ok := errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, 2, rerr.GetExitCode())
}

func TestProcessReconciliation_InvalidRequest(t *testing.T) {
	service := newTestService(t, nil)

	_, err := service.ProcessReconciliation(context.Background(), nil)
	assert.True(t, errors.HasCode(err, errors.CodeMissingField))

	_, err = service.ProcessReconciliation(context.Background(), &ReconciliationRequest{BankFile: "crep.txt"})
	assert.True(t, errors.HasCode(err, errors.CodeMissingField))
}

func TestProcessReconciliation_CachedDecode(t *testing.T) {
	sourceCache, err := cache.New(cache.DefaultConfig())
	require.NoError(t, err)

	service, err := NewReconciliationService(nil, nil, nil, sourceCache, nil)
	require.NoError(t, err)

	request := &ReconciliationRequest{
		BankData:   statement(statementLine("251000000001", "000000000001000", "000001", "080000")),
		LedgerData: ledger("251000000001;BCP;PEN;10/01/2025 07:00:00"),
	}

	first, err := service.ProcessReconciliation(context.Background(), request)
	require.NoError(t, err)
	assert.False(t, first.ProcessingStats.CacheHit)

	second, err := service.ProcessReconciliation(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, second.ProcessingStats.CacheHit)
	assert.Equal(t, first.DSNKeys(), second.DSNKeys())
	assert.NotEqual(t, first.RunID, second.RunID)

	stats := service.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestProcessReconciliation_WithoutEdgeCases(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnalyzeEdgeCases = false

	result, err := newTestService(t, cfg).ProcessReconciliation(context.Background(), &ReconciliationRequest{
		BankData:   statement(statementLine("251000000001", "000000000001000", "000001", "080000")),
		LedgerData: ledger("251000000009;BCP;PEN;10/01/2025 07:00:00"),
	})
	require.NoError(t, err)
	assert.Nil(t, result.EdgeCases)
	assert.Equal(t, []string{"251000000001"}, result.DSNKeys())
}

func TestDetectBankLayout(t *testing.T) {
	adapter, _, err := newTestService(t, nil).DetectBankLayout(statement())
	require.NoError(t, err)
	assert.Equal(t, "crep-v2", adapter.Name())
	assert.Equal(t, "BCP", adapter.Bank())
}

func TestNewReconciliationService_InvalidConfig(t *testing.T) {
	_, err := NewReconciliationService(nil, nil, nil, nil, &Config{})
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Preprocessing.MaxFileSizeMB = -1
	_, err = NewReconciliationService(nil, nil, nil, nil, cfg)
	assert.Error(t, err)

	badMatching := matcher.DefaultMatchingConfig()
	badMatching.Currency = ""
	_, err = NewReconciliationService(nil, nil, badMatching, nil, nil)
	assert.Error(t, err)
}
