// Package reporter renders reconciliation results.
//
// Supported output formats:
//   - Console: human-readable sections for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: one row per DSN, PSD, reversal and excluded ledger row
//   - XLSX: one sheet per view (DSN, PSD, Extornos) for the operations team
//
// The DSN key list (PSP_TIN values joined by commas) is written separately
// with WriteDSNKeys, since it is uploaded to the collection platform as is.
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatXLSX})
//	err = generator.GenerateReport(result, file)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"psp-reconciliation-service/internal/matcher"
	"psp-reconciliation-service/internal/models"
	"psp-reconciliation-service/internal/reconciler"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the format must not be written to a terminal.
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

// ParseOutputFormat parses a format name, case-insensitively.
func ParseOutputFormat(name string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(name)))
	if !format.IsValid() {
		return "", fmt.Errorf("invalid output format: %s (valid: console, json, csv, xlsx)", name)
	}
	return format, nil
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	IncludeReversals       bool `json:"include_reversals"`
	IncludeExcluded        bool `json:"include_excluded"`
	IncludeEdgeCases       bool `json:"include_edge_cases"`
	IncludeProcessingStats bool `json:"include_processing_stats"`

	// Console options
	UseColors bool `json:"use_colors"`
	// MaxListItems caps each console list; zero prints everything.
	MaxListItems int `json:"max_list_items"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                 FormatConsole,
		IncludeReversals:       true,
		IncludeExcluded:        false,
		IncludeEdgeCases:       true,
		IncludeProcessingStats: true,
		UseColors:              true,
		MaxListItems:           20,
		CSVDelimiter:           ',',
		CSVHeaders:             true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxListItems < 0 {
		return fmt.Errorf("max list items cannot be negative, got %d", c.MaxListItems)
	}
	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}
	return nil
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig

	heading *color.Color
	good    *color.Color
	bad     *color.Color
	warn    *color.Color
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	rg := &ReportGenerator{
		config:  config,
		heading: color.New(color.Bold, color.FgCyan),
		good:    color.New(color.FgGreen),
		bad:     color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
	}
	if !config.UseColors {
		for _, c := range []*color.Color{rg.heading, rg.good, rg.bad, rg.warn} {
			c.DisableColor()
		}
	}
	return rg, nil
}

// GenerateReport generates a report from reconciliation results and writes it to the provided writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	case FormatXLSX:
		return rg.generateWorkbookReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) section(writer io.Writer, title string) {
	rg.heading.Fprintf(writer, "=== %s ===\n", title)
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	fmt.Fprintf(writer, "PSP_TIN RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Run:       %s\n", result.RunID)
	fmt.Fprintf(writer, "Generated: %s\n", result.ProcessedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Bank:      %s (layout %s)\n", result.Bank, result.Layout)
	if result.Cutoff != nil {
		fmt.Fprintf(writer, "Cutoff:    %s\n", result.Cutoff.Format(models.TimestampLayout))
	} else {
		fmt.Fprintf(writer, "Cutoff:    none\n")
	}
	fmt.Fprintln(writer)

	rg.section(writer, "SUMMARY")
	rg.printSummary(result.Summary, writer)
	fmt.Fprintln(writer)

	rg.section(writer, "DSN (in bank, missing from ledger)")
	rg.printTransactions(result.DSN, writer)
	fmt.Fprintln(writer)

	rg.section(writer, "PSD (in ledger, missing from bank)")
	rg.printLedgerRows(result.PSD, writer)
	fmt.Fprintln(writer)

	if rg.config.IncludeReversals && len(result.Reversals) > 0 {
		rg.section(writer, "REVERSALS")
		rg.printTransactions(result.Reversals, writer)
		fmt.Fprintln(writer)
	}

	if rg.config.IncludeExcluded && len(result.Excluded) > 0 {
		rg.section(writer, "EXCLUDED LEDGER ROWS")
		rg.printExclusions(result.Excluded, writer)
		fmt.Fprintln(writer)
	}

	if rg.config.IncludeEdgeCases && result.EdgeCases != nil && !result.EdgeCases.Empty() {
		rg.section(writer, "EDGE CASES")
		rg.printEdgeCases(result.EdgeCases, writer)
		fmt.Fprintln(writer)
	}

	if rg.config.IncludeProcessingStats && result.ProcessingStats != nil {
		rg.section(writer, "PROCESSING STATISTICS")
		rg.printProcessingStats(result.ProcessingStats, writer)
	}

	return nil
}

func (rg *ReportGenerator) printSummary(summary *reconciler.ResultSummary, writer io.Writer) {
	fmt.Fprintf(writer, "Bank records:        %d (lines %d, skipped %d, invalid keys %d, duplicates %d)\n",
		summary.BankRecords,
		summary.BankStats.LinesRead,
		summary.BankStats.SkippedLines,
		summary.BankStats.InvalidKeys,
		summary.BankStats.DuplicateKeys)
	fmt.Fprintf(writer, "Reversals removed:   %d\n", summary.ReversalsRemoved)
	fmt.Fprintf(writer, "Ledger rows:         %d (considered %d)\n", summary.LedgerRows, summary.LedgerConsidered)
	fmt.Fprintf(writer, "  Excluded by bank:      %d\n", summary.ExcludedByBank)
	fmt.Fprintf(writer, "  Excluded by currency:  %d\n", summary.ExcludedByCurrency)
	fmt.Fprintf(writer, "  Excluded by cutoff:    %d\n", summary.ExcludedByCutoff)
	fmt.Fprintf(writer, "  Without timestamp:     %d\n", summary.ExcludedNoTimestamp)
	fmt.Fprintf(writer, "Matched:             %d (%.1f%%)\n",
		summary.Matched, calculatePercentage(summary.Matched, summary.BankRecords))

	rg.countColor(summary.DSNCount).Fprintf(writer, "DSN:                 %d\n", summary.DSNCount)
	rg.countColor(summary.PSDCount).Fprintf(writer, "PSD:                 %d\n", summary.PSDCount)

	fmt.Fprintf(writer, "Amount matched:      %s\n", summary.TotalAmountMatched.StringFixed(2))
	fmt.Fprintf(writer, "Amount in DSN:       %s\n", summary.TotalAmountUnmatched.StringFixed(2))
}

func (rg *ReportGenerator) countColor(n int) *color.Color {
	if n == 0 {
		return rg.good
	}
	return rg.bad
}

func (rg *ReportGenerator) limit(n int) int {
	if rg.config.MaxListItems > 0 && n > rg.config.MaxListItems {
		return rg.config.MaxListItems
	}
	return n
}

func (rg *ReportGenerator) printMore(writer io.Writer, shown, total int) {
	if total > shown {
		fmt.Fprintf(writer, "  ... and %d more\n", total-shown)
	}
}

func (rg *ReportGenerator) printTransactions(txs []*models.CanonicalTransaction, writer io.Writer) {
	if len(txs) == 0 {
		rg.good.Fprintln(writer, "  none")
		return
	}

	shown := rg.limit(len(txs))
	for i, tx := range txs[:shown] {
		fmt.Fprintf(writer, "  %d. PSP_TIN: %s, Operation: %s, Amount: %s, Time: %s, Line: %d\n",
			i+1, tx.PSPTIN, tx.TransactionID, orDash(tx.AmountString()), orDash(tx.TimestampString()), tx.Line)
	}
	rg.printMore(writer, shown, len(txs))
}

func (rg *ReportGenerator) printLedgerRows(rows []*models.LedgerRow, writer io.Writer) {
	if len(rows) == 0 {
		rg.good.Fprintln(writer, "  none")
		return
	}

	shown := rg.limit(len(rows))
	for i, row := range rows[:shown] {
		fmt.Fprintf(writer, "  %d. PSP_TIN: %s, Bank: %s, Currency: %s, Time: %s, Row: %d\n",
			i+1, row.PSPTIN, row.Bank, row.Currency, orDash(row.TimestampString()), row.Row)
	}
	rg.printMore(writer, shown, len(rows))
}

func (rg *ReportGenerator) printExclusions(excluded []*matcher.Exclusion, writer io.Writer) {
	shown := rg.limit(len(excluded))
	for i, ex := range excluded[:shown] {
		fmt.Fprintf(writer, "  %d. PSP_TIN: %s, Reason: %s, Bank: %s, Currency: %s, Time: %s\n",
			i+1, ex.Row.PSPTIN, ex.Reason, ex.Row.Bank, ex.Row.Currency, orDash(ex.Row.TimestampString()))
	}
	rg.printMore(writer, shown, len(excluded))
}

func (rg *ReportGenerator) printEdgeCases(report *matcher.EdgeCaseReport, writer io.Writer) {
	for _, fm := range report.FilteredMatches {
		rg.warn.Fprintf(writer, "  DSN %s has ledger row %d excluded by %s\n", fm.Transaction.PSPTIN, fm.Row.Row, fm.Reason)
	}
	for _, row := range report.ReversedPending {
		rg.warn.Fprintf(writer, "  PSD %s matches a reversed bank movement\n", row.PSPTIN)
	}
	if n := len(report.CarriedOver); n > 0 {
		fmt.Fprintf(writer, "  %d ledger rows after the cutoff carry over to the next statement\n", n)
	}
}

func (rg *ReportGenerator) printProcessingStats(stats *reconciler.ProcessingStats, writer io.Writer) {
	fmt.Fprintf(writer, "Bank bytes:       %d\n", stats.BankBytes)
	fmt.Fprintf(writer, "Ledger bytes:     %d\n", stats.LedgerBytes)
	fmt.Fprintf(writer, "Decode cached:    %t\n", stats.CacheHit)
	fmt.Fprintf(writer, "Decode time:      %v\n", stats.DecodeTime)
	fmt.Fprintf(writer, "Ledger time:      %v\n", stats.LedgerTime)
	fmt.Fprintf(writer, "Matching time:    %v\n", stats.MatchingTime)
	fmt.Fprintf(writer, "Total processing: %v\n", stats.TotalProcessingTime)
}

// jsonReport is the document written by the JSON format.
type jsonReport struct {
	RunID           string                         `json:"run_id"`
	ProcessedAt     time.Time                      `json:"processed_at"`
	Bank            string                         `json:"bank"`
	Layout          string                         `json:"layout"`
	Cutoff          *time.Time                     `json:"cutoff"`
	Summary         *reconciler.ResultSummary      `json:"summary"`
	DSNKeys         []string                       `json:"dsn_keys"`
	DSN             []*models.CanonicalTransaction `json:"dsn"`
	PSD             []*models.LedgerRow            `json:"psd"`
	Reversals       []*models.CanonicalTransaction `json:"reversals,omitempty"`
	Excluded        []*matcher.Exclusion           `json:"excluded,omitempty"`
	EdgeCases       *matcher.EdgeCaseReport        `json:"edge_cases,omitempty"`
	Columns         models.ColumnMapping           `json:"columns"`
	ProcessingStats *reconciler.ProcessingStats    `json:"processing_stats,omitempty"`
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	report := jsonReport{
		RunID:       result.RunID,
		ProcessedAt: result.ProcessedAt,
		Bank:        result.Bank,
		Layout:      result.Layout,
		Cutoff:      result.Cutoff,
		Summary:     result.Summary,
		DSNKeys:     result.DSNKeys(),
		DSN:         nonNilTransactions(result.DSN),
		PSD:         nonNilRows(result.PSD),
		Columns:     result.Columns,
	}
	if rg.config.IncludeReversals {
		report.Reversals = result.Reversals
	}
	if rg.config.IncludeExcluded {
		report.Excluded = result.Excluded
	}
	if rg.config.IncludeEdgeCases {
		report.EdgeCases = result.EdgeCases
	}
	if rg.config.IncludeProcessingStats {
		report.ProcessingStats = result.ProcessingStats
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// CSV view names
const (
	ViewDSN      = "DSN"
	ViewPSD      = "PSD"
	ViewReversal = "EXTORNO"
	ViewExcluded = "EXCLUDED"
)

var csvHeaders = []string{
	"View",
	"PSP_TIN",
	"Operation",
	"Amount",
	"Timestamp",
	"Bank",
	"Currency",
	"Source_Line",
	"Reason",
}

// generateCSVReport generates a CSV report with one record per reported row
func (rg *ReportGenerator) generateCSVReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(csvHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, tx := range result.DSN {
		if err := csvWriter.Write(transactionRecord(ViewDSN, result.Bank, tx, "")); err != nil {
			return fmt.Errorf("failed to write DSN record: %w", err)
		}
	}

	for _, row := range result.PSD {
		if err := csvWriter.Write(ledgerRecord(ViewPSD, row, "")); err != nil {
			return fmt.Errorf("failed to write PSD record: %w", err)
		}
	}

	if rg.config.IncludeReversals {
		for _, tx := range result.Reversals {
			if err := csvWriter.Write(transactionRecord(ViewReversal, result.Bank, tx, "reversal group")); err != nil {
				return fmt.Errorf("failed to write reversal record: %w", err)
			}
		}
	}

	if rg.config.IncludeExcluded {
		for _, ex := range result.Excluded {
			if err := csvWriter.Write(ledgerRecord(ViewExcluded, ex.Row, string(ex.Reason))); err != nil {
				return fmt.Errorf("failed to write excluded record: %w", err)
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func transactionRecord(view, bank string, tx *models.CanonicalTransaction, reason string) []string {
	return []string{
		view,
		tx.PSPTIN,
		tx.TransactionID,
		tx.AmountString(),
		tx.TimestampString(),
		bank,
		"",
		strconv.Itoa(tx.Line),
		reason,
	}
}

func ledgerRecord(view string, row *models.LedgerRow, reason string) []string {
	return []string{
		view,
		row.PSPTIN,
		"",
		"",
		row.TimestampString(),
		row.Bank,
		row.Currency,
		strconv.Itoa(row.Row),
		reason,
	}
}

func calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func nonNilTransactions(txs []*models.CanonicalTransaction) []*models.CanonicalTransaction {
	if txs == nil {
		return []*models.CanonicalTransaction{}
	}
	return txs
}

func nonNilRows(rows []*models.LedgerRow) []*models.LedgerRow {
	if rows == nil {
		return []*models.LedgerRow{}
	}
	return rows
}
