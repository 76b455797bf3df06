package parsers

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"psp-reconciliation-service/internal/models"
	"psp-reconciliation-service/pkg/errors"
	"psp-reconciliation-service/pkg/logger"
)

// Reversal modes a sheet layout can declare.
const (
	ReversalText     = "text"
	ReversalSignFlip = "sign-flip"
	ReversalAny      = "any"
	ReversalNone     = "none"
)

// headerScanRows bounds the search for a header row located by content.
const headerScanRows = 30

// ColumnSpec locates one column of a sheet layout: by any of Names first,
// then by Position when set.
type ColumnSpec struct {
	Names    []string `json:"names" mapstructure:"names"`
	Position *int     `json:"position,omitempty" mapstructure:"position"`
	Optional bool     `json:"optional,omitempty" mapstructure:"optional"`
}

func (c ColumnSpec) declared() bool {
	return len(c.Names) > 0 || c.Position != nil
}

// SheetLayout describes one bank report exported as a spreadsheet.
type SheetLayout struct {
	Name string `json:"name" mapstructure:"name"`
	Bank string `json:"bank" mapstructure:"bank"`
	// Markers are title fragments, compared after FoldText, that identify
	// the report in a preview.
	Markers []string `json:"markers,omitempty" mapstructure:"markers"`
	// HeaderRow is the 0-based row holding column names.
	HeaderRow int `json:"header_row" mapstructure:"header_row"`
	// LocateHeader searches the first rows for the header instead of
	// trusting HeaderRow, which then only serves as fallback.
	LocateHeader bool `json:"locate_header,omitempty" mapstructure:"locate_header"`

	Description ColumnSpec `json:"description" mapstructure:"description"`
	Operation   ColumnSpec `json:"operation" mapstructure:"operation"`
	Amount      ColumnSpec `json:"amount" mapstructure:"amount"`
	Date        ColumnSpec `json:"date" mapstructure:"date"`
	Time        ColumnSpec `json:"time" mapstructure:"time"`

	DateLayouts []string `json:"date_layouts,omitempty" mapstructure:"date_layouts"`
	// SkipPattern drops rows whose date cell matches, such as balance lines.
	SkipPattern string `json:"skip_pattern,omitempty" mapstructure:"skip_pattern"`
	Reversal    string `json:"reversal" mapstructure:"reversal"`
}

// Validate checks that the layout declares the columns every row needs.
func (l *SheetLayout) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("layout name cannot be empty")
	}
	if !l.Description.declared() || !l.Operation.declared() || !l.Date.declared() {
		return fmt.Errorf("layout %s: description, operation and date columns are required", l.Name)
	}
	if l.HeaderRow < 0 {
		return fmt.Errorf("layout %s: header row cannot be negative", l.Name)
	}
	switch l.Reversal {
	case ReversalText, ReversalSignFlip, ReversalAny, ReversalNone, "":
	default:
		return fmt.Errorf("layout %s: unknown reversal mode %q", l.Name, l.Reversal)
	}
	if l.SkipPattern != "" {
		if _, err := regexp.Compile(l.SkipPattern); err != nil {
			return fmt.Errorf("layout %s: invalid skip pattern: %w", l.Name, err)
		}
	}
	return nil
}

// SheetAdapter decodes spreadsheets that follow one SheetLayout.
type SheetAdapter struct {
	layout   SheetLayout
	strategy ReversalStrategy
	skip     *regexp.Regexp
	markers  []string
	logger   logger.Logger
}

// NewSheetAdapter builds an adapter, wiring the layout's reversal mode with
// the configured keyword.
func NewSheetAdapter(layout SheetLayout, reversalKeyword string) (*SheetAdapter, error) {
	if err := layout.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "sheet_layouts", layout.Name, err)
	}

	a := &SheetAdapter{
		layout:   layout,
		strategy: reversalStrategy(layout.Reversal, reversalKeyword),
		logger:   logger.GetGlobalLogger().WithComponent("sheet_adapter").WithField("layout", layout.Name),
	}
	if layout.SkipPattern != "" {
		a.skip = regexp.MustCompile(layout.SkipPattern)
	}
	for _, m := range layout.Markers {
		a.markers = append(a.markers, FoldText(m))
	}
	return a, nil
}

func reversalStrategy(mode, keyword string) ReversalStrategy {
	switch mode {
	case ReversalNone:
		return nil
	case ReversalSignFlip:
		return SignFlip{}
	case ReversalAny:
		return AnyOf{SignFlip{}, TextMarker{Keyword: keyword}}
	default:
		return TextMarker{Keyword: keyword}
	}
}

func (a *SheetAdapter) Name() string { return a.layout.Name }

func (a *SheetAdapter) Bank() string { return a.layout.Bank }

// Layout returns the layout the adapter was built with.
func (a *SheetAdapter) Layout() SheetLayout { return a.layout }

// Detect looks for one of the layout's title markers in the preview text.
func (a *SheetAdapter) Detect(preview *Preview) bool {
	if !preview.Kind.IsSpreadsheet() {
		return false
	}
	for _, m := range a.markers {
		if strings.Contains(preview.Text, m) {
			return true
		}
	}
	return false
}

// Decode reads the whole workbook and decodes it with this layout.
func (a *SheetAdapter) Decode(ctx context.Context, input []byte) (*models.BankSource, error) {
	kind := SniffKind(input)
	if !kind.IsSpreadsheet() {
		return nil, errors.LayoutError([]string{a.layout.Name}, nil, fmt.Errorf("input is not a spreadsheet"))
	}

	sheet, err := ReadSheet(bytes.NewReader(input), kind, 0)
	if err != nil {
		return nil, err
	}
	return a.DecodeSheet(ctx, sheet, true)
}

type sheetColumns struct {
	description, operation, amount, date, time int
}

// DecodeSheet maps the rows of sheet to canonical transactions. Positional
// fallbacks are honored only when allowPositional is set, so that trying a
// layout speculatively never matches on column positions alone.
func (a *SheetAdapter) DecodeSheet(ctx context.Context, sheet *Sheet, allowPositional bool) (*models.BankSource, error) {
	headerRow, cols, err := a.locate(sheet, allowPositional)
	if err != nil {
		return nil, err
	}

	source := &models.BankSource{
		Layout: a.layout.Name,
		Bank:   a.layout.Bank,
	}

	var decoded []*models.CanonicalTransaction
	for r := headerRow + 1; r < len(sheet.Rows); r++ {
		if (r-headerRow)%1000 == 0 {
			if err := checkContext(ctx); err != nil {
				return nil, err
			}
		}
		source.Stats.LinesRead++

		description := strings.TrimSpace(sheet.Cell(r, cols.description))
		operation := strings.TrimSpace(sheet.Cell(r, cols.operation))
		dateCell := strings.TrimSpace(sheet.Cell(r, cols.date))
		if description == "" && operation == "" {
			source.Stats.SkippedLines++
			continue
		}
		if a.skip != nil && (a.skip.MatchString(dateCell) || a.skip.MatchString(description)) {
			source.Stats.SkippedLines++
			continue
		}

		tx := &models.CanonicalTransaction{
			TransactionID: operation,
			PSPTIN:        models.ExtractPSPTIN(description),
			Description:   description,
			Layout:        a.layout.Name,
			Line:          r + 1,
		}
		if cols.amount >= 0 {
			tx.Amount = ParseAmount(sheet.Cell(r, cols.amount))
		}

		if ts, ok := ParseTimestamp(dateCell, a.layout.DateLayouts...); ok {
			if cols.time >= 0 {
				if tod, ok := ParseTimeOfDay(sheet.Cell(r, cols.time)); ok {
					ts = ts.Truncate(24 * time.Hour).Add(tod)
					source.SecondPrecision = true
				}
			}
			tx.Timestamp = ts
		}
		decoded = append(decoded, tx)
	}

	source.Stats.RecordsDecoded = len(decoded)
	kept, removed := FilterReversals(decoded, a.strategy)
	source.Reversals = removed
	source.Stats.ReversalsFound = len(removed)
	source.Transactions = DedupByKey(kept, &source.Stats)

	a.logger.WithFields(logger.Fields{
		"header_row": headerRow,
		"rows":       source.Stats.LinesRead,
		"skipped":    source.Stats.SkippedLines,
		"reversals":  source.Stats.ReversalsFound,
		"accepted":   source.Stats.RecordsAccepted,
	}).Info("Decoded spreadsheet statement")

	return source, nil
}

// locate finds the header row and the column indices of every declared column.
func (a *SheetAdapter) locate(sheet *Sheet, allowPositional bool) (int, sheetColumns, error) {
	if a.layout.LocateHeader {
		limit := headerScanRows
		if limit > len(sheet.Rows) {
			limit = len(sheet.Rows)
		}
		for r := 0; r < limit; r++ {
			if cols, missing := a.resolve(sheet.Rows[r], false); len(missing) == 0 {
				return r, cols, nil
			}
		}
	}

	row := a.layout.HeaderRow
	if row >= len(sheet.Rows) {
		return 0, sheetColumns{}, errors.LayoutError([]string{a.layout.Name}, nil,
			fmt.Errorf("sheet has %d rows, header expected at row %d", len(sheet.Rows), row+1))
	}

	cols, missing := a.resolve(sheet.Rows[row], allowPositional)
	if len(missing) > 0 {
		return 0, sheetColumns{}, errors.LayoutError([]string{a.layout.Name}, sheet.Rows[row],
			fmt.Errorf("missing columns %s", strings.Join(missing, ", ")))
	}
	return row, cols, nil
}

func (a *SheetAdapter) resolve(headers []string, allowPositional bool) (sheetColumns, []string) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		key := NormalizeHeader(h)
		if _, dup := index[key]; !dup && key != "" {
			index[key] = i
		}
	}

	var missing []string
	find := func(label string, col ColumnSpec, required bool) int {
		for _, name := range col.Names {
			if i, ok := index[NormalizeHeader(name)]; ok {
				return i
			}
		}
		if allowPositional && col.Position != nil && *col.Position >= 0 {
			return *col.Position
		}
		if required && col.declared() && !col.Optional {
			missing = append(missing, label)
		}
		return -1
	}

	cols := sheetColumns{
		description: find("description", a.layout.Description, true),
		operation:   find("operation", a.layout.Operation, true),
		amount:      find("amount", a.layout.Amount, true),
		date:        find("date", a.layout.Date, true),
		time:        find("time", a.layout.Time, false),
	}
	return cols, missing
}
