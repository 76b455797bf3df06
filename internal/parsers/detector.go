package parsers

import (
	"bytes"
	"context"
	"io"
	"strings"

	"psp-reconciliation-service/internal/models"
	"psp-reconciliation-service/pkg/errors"
	"psp-reconciliation-service/pkg/logger"
)

// DefaultPreviewRows is how many rows the detector reads from a workbook.
const DefaultPreviewRows = 25

// Preview is the head of an uploaded bank file.
type Preview struct {
	Kind FileKind
	Rows [][]string
	// Text is every previewed cell joined and passed through FoldText.
	Text string
}

// Detector picks the adapter for an uploaded bank file by content.
type Detector struct {
	text        BankAdapter
	sheets      []BankAdapter
	fallback    BankAdapter
	previewRows int
	logger      logger.Logger
}

// NewDetector creates a detector. Sheet adapters are tried in order and the
// fallback is used when none of them recognizes the preview.
func NewDetector(text BankAdapter, sheets []BankAdapter, fallback BankAdapter, previewRows int) *Detector {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	return &Detector{
		text:        text,
		sheets:      sheets,
		fallback:    fallback,
		previewRows: previewRows,
		logger:      logger.GetGlobalLogger().WithComponent("detector"),
	}
}

// Preview reads the head of r and rewinds it, so a later full read starts at
// the beginning.
func (d *Detector) Preview(r io.ReadSeeker) (*Preview, error) {
	head := make([]byte, 8)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errors.Wrap(err, errors.CategoryFile, errors.CodeFileCorrupted, "cannot read bank file")
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError, "cannot rewind bank file")
	}

	preview := &Preview{Kind: SniffKind(head[:n])}
	if !preview.Kind.IsSpreadsheet() {
		return preview, nil
	}

	sheet, readErr := ReadSheet(r, preview.Kind, d.previewRows)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError, "cannot rewind bank file")
	}
	if readErr != nil {
		return nil, readErr
	}

	preview.Rows = sheet.Rows
	var b strings.Builder
	for _, row := range sheet.Rows {
		for _, cell := range row {
			if cell = strings.TrimSpace(cell); cell != "" {
				b.WriteString(cell)
				b.WriteByte(' ')
			}
		}
	}
	preview.Text = FoldText(b.String())
	return preview, nil
}

// Detect returns the adapter for r. The read position of r is left at the start.
func (d *Detector) Detect(r io.ReadSeeker) (BankAdapter, *Preview, error) {
	preview, err := d.Preview(r)
	if err != nil {
		return nil, nil, err
	}

	adapter := d.Select(preview)
	d.logger.WithFields(logger.Fields{
		"kind":    preview.Kind,
		"adapter": adapter.Name(),
	}).Debug("Detected bank file format")
	return adapter, preview, nil
}

// Select runs the ordered trial over a preview.
func (d *Detector) Select(preview *Preview) BankAdapter {
	if !preview.Kind.IsSpreadsheet() {
		return d.text
	}
	for _, a := range d.sheets {
		if a.Detect(preview) {
			return a
		}
	}
	return d.fallback
}

// DecodeAny detects the layout of input and decodes it. When the detected
// sheet layout does not fit, the remaining sheet layouts are tried by header
// names only; if none fits, the error lists every layout tried.
func (d *Detector) DecodeAny(ctx context.Context, input []byte) (*models.BankSource, error) {
	adapter, preview, err := d.Detect(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}
	if !preview.Kind.IsSpreadsheet() {
		return adapter.Decode(ctx, input)
	}

	sheet, err := ReadSheet(bytes.NewReader(input), preview.Kind, 0)
	if err != nil {
		return nil, err
	}

	candidates := []BankAdapter{adapter}
	for _, a := range append(append([]BankAdapter{}, d.sheets...), d.fallback) {
		if a != adapter {
			candidates = append(candidates, a)
		}
	}

	var tried, headers []string
	var cause error
	for i, candidate := range candidates {
		sa, ok := candidate.(*SheetAdapter)
		if !ok {
			continue
		}
		tried = append(tried, sa.Name())

		source, err := sa.DecodeSheet(ctx, sheet, i == 0)
		if err == nil {
			if i > 0 {
				d.logger.WithFields(logger.Fields{
					"detected": adapter.Name(),
					"used":     sa.Name(),
				}).Warn("Detected layout did not fit, matched another layout by headers")
			}
			return source, nil
		}
		if !errors.HasCode(err, errors.CodeUnrecognizedLayout) {
			return nil, err
		}
		if i == 0 {
			rerr, _ := errors.AsReconcilerError(err)
			headers, _ = rerr.Context["headers"].([]string)
			cause = rerr.Cause
		}
	}

	return nil, errors.LayoutError(tried, headers, cause)
}
