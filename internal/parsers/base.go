// Package parsers turns bank statements and internal-ledger exports into
// canonical records.
//
// Bank statements arrive either as fixed-width CREP text or as spreadsheet
// exports whose layout depends on the bank and the report. The Detector picks
// a BankAdapter by content; every adapter yields a models.BankSource whose
// transactions are reversal-filtered, key-validated and deduplicated.
//
// Internal-ledger exports are loaded by LedgerLoader, which locates the four
// semantic columns it needs through the ColumnResolver chain.
package parsers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"psp-reconciliation-service/internal/models"
	"psp-reconciliation-service/pkg/errors"
	"psp-reconciliation-service/pkg/logger"
)

// FileKind is the container format of an input file, sniffed from its bytes.
type FileKind string

const (
	KindText FileKind = "text"
	KindXLSX FileKind = "xlsx"
	KindXLS  FileKind = "xls"
)

var (
	zipMagic  = []byte{0x50, 0x4B, 0x03, 0x04}
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// SniffKind inspects the leading bytes of a file.
func SniffKind(head []byte) FileKind {
	switch {
	case bytes.HasPrefix(head, zipMagic):
		return KindXLSX
	case bytes.HasPrefix(head, ole2Magic):
		return KindXLS
	default:
		return KindText
	}
}

// IsSpreadsheet reports whether the kind is a workbook container.
func (k FileKind) IsSpreadsheet() bool {
	return k == KindXLSX || k == KindXLS
}

// BankAdapter decodes one family of bank statements into a BankSource.
type BankAdapter interface {
	Name() string
	Bank() string
	// Detect reports whether the preview looks like this adapter's input.
	Detect(preview *Preview) bool
	Decode(ctx context.Context, input []byte) (*models.BankSource, error)
}

// ReadFile loads an input file into memory, mapping OS failures onto file errors.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.WithComponent("parsers").WithError(err).WithField("file_path", path).Error("Failed to read input file")

		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	return data, nil
}

// DecodeText returns the input as a UTF-8 string. Input that is not valid
// UTF-8 is treated as ISO-8859-1, which is what the bank host emits.
func DecodeText(data []byte) (string, string, error) {
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", errors.ParseError(errors.CodeEncodingError, "bank statement", 0, "", err)
	}
	return string(decoded), "iso-8859-1", nil
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errors.InternalError(errors.CodeUnexpectedError, "decoding", fmt.Errorf("decoding cancelled: %w", ctx.Err()))
	default:
		return nil
	}
}
