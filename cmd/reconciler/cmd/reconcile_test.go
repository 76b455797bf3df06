package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"psp-reconciliation-service/pkg/errors"
)

func TestValidateFileExists(t *testing.T) {
	dir := t.TempDir()
	validFile := filepath.Join(dir, "crep.txt")
	require.NoError(t, os.WriteFile(validFile, []byte("DD"), 0o644))

	tests := []struct {
		name     string
		filePath string
		code     errors.ErrorCode
	}{
		{name: "valid file", filePath: validFile},
		{name: "empty path", filePath: "", code: errors.CodeMissingField},
		{name: "missing file", filePath: filepath.Join(dir, "missing.txt"), code: errors.CodeFileNotFound},
		{name: "directory", filePath: dir, code: errors.CodeFileCorrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath, "bank statement")
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestReconcileCommand_JSON(t *testing.T) {
	dir, bankFile, ledgerFile := writeInputs(t)
	keysFile := filepath.Join(dir, "dsn.txt")

	stdout, _, err := execute(t, "reconcile",
		"--bank-file", bankFile,
		"--ledger-file", ledgerFile,
		"--output-format", "json",
		"--dsn-keys-file", keysFile,
	)
	require.NoError(t, err)

	var report struct {
		Bank    string   `json:"bank"`
		Layout  string   `json:"layout"`
		DSNKeys []string `json:"dsn_keys"`
		PSD     []struct {
			PSPTIN string `json:"psp_tin"`
		} `json:"psd"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))

	assert.Equal(t, "BCP", report.Bank)
	assert.Equal(t, "crep-v2", report.Layout)
	assert.Equal(t, []string{"251000000001"}, report.DSNKeys)
	require.Len(t, report.PSD, 1)
	assert.Equal(t, "251000000004", report.PSD[0].PSPTIN)

	keys, err := os.ReadFile(keysFile)
	require.NoError(t, err)
	assert.Equal(t, "251000000001", string(keys))
}

func TestReconcileCommand_Workbook(t *testing.T) {
	dir, bankFile, ledgerFile := writeInputs(t)
	output := filepath.Join(dir, "views.xlsx")

	_, _, err := execute(t, "reconcile", "-b", bankFile, "-l", ledgerFile, "-f", "xlsx", "-o", output)
	require.NoError(t, err)

	f, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"DSN", "PSD", "Extornos"}, f.GetSheetList())

	dsn, err := f.GetRows("DSN")
	require.NoError(t, err)
	require.Len(t, dsn, 2)
	assert.Equal(t, "251000000001", dsn[1][0])

	psd, err := f.GetRows("PSD")
	require.NoError(t, err)
	require.Len(t, psd, 2)
	assert.Equal(t, []string{"Deuda_PspTin", "Banco", "Moneda", "PC_create_date_GMT_Peru"}, psd[0])
	assert.Equal(t, "251000000004", psd[1][0])
}

func TestReconcileCommand_ConsoleVerbose(t *testing.T) {
	_, bankFile, ledgerFile := writeInputs(t)

	stdout, stderr, err := execute(t, "reconcile", "-b", bankFile, "-l", ledgerFile, "--verbose", "--progress", "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, stdout, "=== DSN (in bank, missing from ledger) ===")
	assert.Contains(t, stdout, "PSP_TIN: 251000000001")
	assert.Contains(t, stderr, "[5/5] Completed")
	assert.Contains(t, stderr, "Matched 1, DSN 1, PSD 1.")
	assert.Contains(t, stderr, "Matching: MatchingConfig{BankMatch: contains")
	assert.Contains(t, stderr, "Bank cache: 0 hits, 1 misses, 1 entries")
}

func TestReconcileCommand_BankMatchExact(t *testing.T) {
	_, bankFile, ledgerFile := writeInputs(t)

	stdout, _, err := execute(t, "reconcile", "-b", bankFile, "-l", ledgerFile, "-f", "json", "--bank-match", "exact")
	require.NoError(t, err)

	var report struct {
		Summary struct {
			ExcludedByBank int `json:"excluded_by_bank"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 1, report.Summary.ExcludedByBank)
}

func TestReconcileCommand_Errors(t *testing.T) {
	dir, bankFile, ledgerFile := writeInputs(t)

	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{
			name: "missing ledger flag",
			args: []string{"reconcile", "-b", bankFile},
			code: errors.CodeMissingConfig,
		},
		{
			name: "missing bank file",
			args: []string{"reconcile", "-b", filepath.Join(dir, "none.txt"), "-l", ledgerFile},
			code: errors.CodeFileNotFound,
		},
		{
			name: "xlsx to stdout",
			args: []string{"reconcile", "-b", bankFile, "-l", ledgerFile, "-f", "xlsx"},
			code: errors.CodeInvalidConfig,
		},
		{
			name: "unknown output format",
			args: []string{"reconcile", "-b", bankFile, "-l", ledgerFile, "-f", "pdf"},
			code: errors.CodeInvalidConfig,
		},
		{
			name: "unknown crep layout",
			args: []string{"reconcile", "-b", bankFile, "-l", ledgerFile, "--crep-layout", "crep-v9"},
			code: errors.CodeInvalidConfig,
		},
		{
			name: "missing output directory",
			args: []string{"reconcile", "-b", bankFile, "-l", ledgerFile, "-o", filepath.Join(dir, "none", "out.json")},
			code: errors.CodeFileWrite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestReconcileCommand_ConfigFile(t *testing.T) {
	dir, bankFile, ledgerFile := writeInputs(t)
	cfgFile := filepath.Join(dir, "reconciler.yaml")
	content := "bank_file: " + bankFile + "\nledger_file: " + ledgerFile + "\noutput_format: csv\n"
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o644))

	stdout, _, err := execute(t, "reconcile", "--config", cfgFile)
	require.NoError(t, err)
	assert.Contains(t, stdout, "View,PSP_TIN,Operation,Amount,Timestamp,Bank,Currency,Source_Line,Reason")
	assert.Contains(t, stdout, "DSN,251000000001")
	assert.Contains(t, stdout, "PSD,251000000004")
}

func TestReconcileCommand_BadConfigFile(t *testing.T) {
	_, _, err := execute(t, "reconcile", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidConfig))
}
