package reporter

import (
	"io"
	"os"
	"strings"

	"psp-reconciliation-service/internal/reconciler"
	"psp-reconciliation-service/pkg/errors"
)

// DSNKeySeparator joins the keys of the DSN key list.
const DSNKeySeparator = ","

// FormatDSNKeys returns the unique DSN keys joined by commas, in report order.
func FormatDSNKeys(result *reconciler.ReconciliationResult) string {
	return strings.Join(result.DSNKeys(), DSNKeySeparator)
}

// WriteDSNKeys writes the DSN key list without a trailing newline.
func WriteDSNKeys(result *reconciler.ReconciliationResult, writer io.Writer) error {
	_, err := io.WriteString(writer, FormatDSNKeys(result))
	return err
}

// WriteDSNKeysFile writes the DSN key list to path, replacing any existing file.
func WriteDSNKeysFile(result *reconciler.ReconciliationResult, path string) error {
	if err := os.WriteFile(path, []byte(FormatDSNKeys(result)), 0o644); err != nil {
		return errors.FileError(errors.CodeFileWrite, path, err)
	}
	return nil
}
