package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"psp-reconciliation-service/cmd/reconciler/config"
	"psp-reconciliation-service/internal/reconciler"
	"psp-reconciliation-service/internal/reporter"
	"psp-reconciliation-service/pkg/errors"
)

func newReconcileCmd(a *app) *cobra.Command {
	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile a bank statement with the ledger export",
		Long: `Reconcile decodes the bank statement, loads the ledger export and reports
the DSN view (bank movements missing from the ledger) and the PSD view
(ledger rows missing from the bank statement).

The bank statement may be a CREP fixed-width text file or a bank
spreadsheet (.xlsx or .xls); its layout is detected from the content.
The ledger export may be .xlsx or delimited text.

Examples:
  # Console report
  reconciler reconcile --bank-file crep_20250110.txt --ledger-file ledger.xlsx

  # Workbook with the DSN, PSD and reversal sheets
  reconciler reconcile -b bbva.xlsx -l ledger.csv -f xlsx -o views.xlsx

  # Dollar ledger rows, exact bank names, DSN keys for the next run
  reconciler reconcile -b crep.txt -l ledger.xlsx --currency USD \
    --bank-match exact --dsn-keys-file dsn.txt

  # With progress indicators
  reconciler reconcile -b crep.txt -l ledger.xlsx --progress`,
		PreRunE: a.validateReconcileFlags,
		RunE:    a.runReconcile,
	}

	flags := reconcileCmd.Flags()
	flags.StringP("bank-file", "b", "", "bank statement file: CREP text, .xlsx or .xls (required)")
	flags.StringP("ledger-file", "l", "", "ledger export file: .xlsx or delimited text (required)")

	flags.String("currency", "PEN", "ledger currency kept for matching")
	flags.Bool("accept-currency-symbol", false, "also accept the currency symbol (S/ for PEN)")
	flags.String("bank-match", "contains", "bank name matching: contains, exact")
	flags.Bool("apply-cutoff", true, "drop ledger rows created after the last bank movement")
	flags.Bool("analyze-edge-cases", true, "report filtered matches and reversed pending rows")

	flags.StringP("output-format", "f", "console", "output format: console, json, csv, xlsx")
	flags.StringP("output-file", "o", "", "output file path (default: stdout)")
	flags.String("dsn-keys-file", "", "also write the DSN keys, comma separated, to this file")
	flags.Bool("show-excluded", false, "list the ledger rows dropped by the filters")
	flags.Bool("progress", false, "show progress indicators")

	bindFlags(a.v, flags, map[string]string{
		config.KeyBankFile:             "bank-file",
		config.KeyLedgerFile:           "ledger-file",
		config.KeyCurrency:             "currency",
		config.KeyAcceptCurrencySymbol: "accept-currency-symbol",
		config.KeyBankMatch:            "bank-match",
		config.KeyApplyCutoff:          "apply-cutoff",
		config.KeyAnalyzeEdgeCases:     "analyze-edge-cases",
		config.KeyOutputFormat:         "output-format",
		config.KeyOutputFile:           "output-file",
		config.KeyDSNKeysFile:          "dsn-keys-file",
		config.KeyShowExcluded:         "show-excluded",
		config.KeyProgress:             "progress",
	})
	return reconcileCmd
}

func (a *app) validateReconcileFlags(cmd *cobra.Command, args []string) error {
	if err := a.cfg.ValidateInputs(); err != nil {
		return err
	}
	if err := validateFileExists(a.cfg.BankFile, "bank statement"); err != nil {
		return err
	}
	if err := validateFileExists(a.cfg.LedgerFile, "ledger export"); err != nil {
		return err
	}

	for _, path := range []string{a.cfg.OutputFile, a.cfg.DSNKeysFile} {
		if err := validateOutputDir(path); err != nil {
			return err
		}
	}
	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ValidationError(errors.CodeMissingField, description, filePath,
			fmt.Errorf("%s path cannot be empty", description))
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err).
			WithContext("input", description)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err).
			WithContext("input", description)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeFileCorrupted, filePath,
			fmt.Errorf("%s is a directory, expected a file", description))
	}

	file, err := os.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err).
			WithContext("input", description)
	}
	file.Close()

	return nil
}

func validateOutputDir(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileWrite, path, fmt.Errorf("output directory does not exist: %s", dir))
	}
	return nil
}

func (a *app) runReconcile(cmd *cobra.Command, args []string) error {
	stderr := cmd.ErrOrStderr()
	cfg := a.cfg

	service, err := cfg.NewService()
	if err != nil {
		return err
	}

	if cfg.Verbose {
		fmt.Fprintf(stderr, "Starting reconciliation...\n")
		fmt.Fprintf(stderr, "Bank file: %s\n", cfg.BankFile)
		fmt.Fprintf(stderr, "Ledger file: %s\n", cfg.LedgerFile)
		fmt.Fprintf(stderr, "Matching: %s\n", service.GetMatchingConfig())
		fmt.Fprintf(stderr, "Output format: %s\n", cfg.Report.Format)
		if cfg.OutputFile != "" {
			fmt.Fprintf(stderr, "Output file: %s\n", cfg.OutputFile)
		}
	}
	orchestrator, err := reconciler.NewReconciliationOrchestrator(service)
	if err != nil {
		return err
	}
	if cfg.Progress {
		orchestrator.AddProgressCallback(func(progress *reconciler.ReconciliationProgress) {
			fmt.Fprintf(stderr, "\r[%d/%d] %-24s (%.1f%% complete)",
				progress.CompletedSteps, progress.TotalSteps,
				progress.CurrentStep, progress.PercentComplete)
		})
	}

	result, err := orchestrator.ProcessReconciliation(cmd.Context(), &reconciler.ReconciliationRequest{
		BankFile:   cfg.BankFile,
		LedgerFile: cfg.LedgerFile,
	})
	if cfg.Progress {
		fmt.Fprintln(stderr)
	}
	if err != nil {
		return err
	}

	generator, err := reporter.NewSafeReportGenerator(cfg.Report, a.log)
	if err != nil {
		return err
	}
	if cfg.OutputFile != "" {
		err = generator.WriteReportFile(result, cfg.OutputFile)
	} else {
		err = generator.GenerateReportSafely(result, cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}

	if cfg.DSNKeysFile != "" {
		if err := reporter.WriteDSNKeysFile(result, cfg.DSNKeysFile); err != nil {
			return err
		}
	}

	if cfg.Verbose {
		printRunSummary(stderr, result, orchestrator.GetProgress())
		stats := service.CacheStats()
		fmt.Fprintf(stderr, "Bank cache: %d hits, %d misses, %d entries\n", stats.Hits, stats.Misses, stats.Entries)
	}
	return nil
}

func printRunSummary(w io.Writer, result *reconciler.ReconciliationResult, progress *reconciler.ReconciliationProgress) {
	s := result.Summary
	fmt.Fprintf(w, "\nReconciliation %s completed successfully.\n", result.RunID)
	fmt.Fprintf(w, "Bank statement: %s (%s), %d movements, %d reversal rows removed.\n",
		result.Layout, result.Bank, s.BankRecords, s.ReversalsRemoved)
	fmt.Fprintf(w, "Ledger: %d rows, %d considered after filters.\n", s.LedgerRows, s.LedgerConsidered)
	fmt.Fprintf(w, "Matched %d, DSN %d, PSD %d.\n", s.Matched, s.DSNCount, s.PSDCount)
	for _, warning := range progress.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	fmt.Fprintf(w, "Processing time: %v\n", s.ProcessingDuration)
}
