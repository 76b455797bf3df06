package reporter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"psp-reconciliation-service/internal/reconciler"
	"psp-reconciliation-service/pkg/errors"
	"psp-reconciliation-service/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with input validation, a console
// fallback for failed structured formats and a backup path for failed file
// output.
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("Check the report configuration values")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely renders the report into memory first, so a failed
// render never leaves a partial report behind, then writes it out.
func (srg *SafeReportGenerator) GenerateReportSafely(result *reconciler.ReconciliationResult, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Debug("Starting report generation")

	if err := srg.validateInputs(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	var buf bytes.Buffer
	if err := srg.GenerateReport(result, &buf); err != nil {
		srg.logger.WithError(err).Warn("Report rendering failed, attempting fallback")
		return srg.generateWithFormatFallback(result, writer, err)
	}

	if _, err := writer.Write(buf.Bytes()); err != nil {
		srg.logger.WithError(err).Error("Report output failed")
		return srg.generateWithOutputFallback(buf.Bytes(), writer, err)
	}

	srg.logger.WithField("bytes", buf.Len()).Info("Report generated")
	return nil
}

// WriteReportFile renders the report into path.
func (srg *SafeReportGenerator) WriteReportFile(result *reconciler.ReconciliationResult, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.FileError(errors.CodeFileWrite, path, err)
	}

	genErr := srg.GenerateReportSafely(result, file)
	if err := file.Close(); err != nil && genErr == nil {
		return errors.FileError(errors.CodeFileWrite, path, err)
	}
	return genErr
}

func (srg *SafeReportGenerator) validateInputs(result *reconciler.ReconciliationResult, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"result",
			nil,
			nil,
		).WithSuggestion("Provide a valid reconciliation result")
	}

	if writer == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"writer",
			nil,
			nil,
		).WithSuggestion("Provide a valid output writer")
	}

	if result.Summary == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"summary",
			nil,
			nil,
		).WithSuggestion("Ensure the reconciliation result includes a summary")
	}

	return nil
}

// generateWithFormatFallback renders the console format after a structured
// format failed. Binary formats never fall back, since the reader expects a
// workbook.
func (srg *SafeReportGenerator) generateWithFormatFallback(result *reconciler.ReconciliationResult, writer io.Writer, originalErr error) error {
	if srg.config.Format == FormatConsole || srg.config.Format.IsBinary() {
		return srg.wrapGenerationError(originalErr)
	}

	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole
	fallbackConfig.UseColors = false

	fallbackGenerator, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}

	srg.logger.WithField("fallback_format", FormatConsole).Info("Attempting format fallback")
	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := fallbackGenerator.GenerateReport(result, writer); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err),
		)
	}
	return nil
}

// generateWithOutputFallback saves the rendered report next to a file that
// could not be written.
func (srg *SafeReportGenerator) generateWithOutputFallback(rendered []byte, writer io.Writer, originalErr error) error {
	file, ok := writer.(*os.File)
	if !ok || file.Name() == "" {
		return srg.wrapGenerationError(originalErr)
	}

	originalPath := file.Name()
	backupPath := generateBackupPath(originalPath)
	srg.logger.WithFields(logger.Fields{
		"original_file": originalPath,
		"backup_file":   backupPath,
	}).Warn("Attempting output fallback")

	if err := os.WriteFile(backupPath, rendered, 0o644); err != nil {
		return errors.FileError(errors.CodeFileWrite, originalPath, originalErr).
			WithContext("backup_error", err.Error())
	}

	srg.logger.WithField("backup_file", backupPath).Warn("Report saved to backup location")
	return nil
}

func generateBackupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]

	return filepath.Join(dir, fmt.Sprintf("%s_backup%s", name, ext))
}

func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	return errors.WrapIfNeeded(err, errors.CategoryInternal, errors.CodeProcessingError, "report generation failed").
		WithSuggestion("Check the output destination and report format settings")
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}
