package parsers

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"psp-reconciliation-service/pkg/errors"
)

// Sheet is the first worksheet of a workbook as a grid of cell strings.
type Sheet struct {
	Name string
	Rows [][]string
}

// Cell returns the value at row r, column c, or "" when out of range.
func (s *Sheet) Cell(r, c int) string {
	if r < 0 || r >= len(s.Rows) || c < 0 || c >= len(s.Rows[r]) {
		return ""
	}
	return s.Rows[r][c]
}

// ReadSheet reads up to maxRows rows (all rows when maxRows <= 0) of the first
// worksheet of an xlsx or xls workbook.
func ReadSheet(r io.ReadSeeker, kind FileKind, maxRows int) (*Sheet, error) {
	switch kind {
	case KindXLSX:
		return readXLSX(r, maxRows)
	case KindXLS:
		return readXLS(r, maxRows)
	default:
		return nil, errors.New(errors.CategoryParse, errors.CodeInvalidFormat, "input is not a spreadsheet")
	}
}

func readXLSX(r io.Reader, maxRows int) (*Sheet, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryFile, errors.CodeFileCorrupted, "cannot open xlsx workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New(errors.CategoryParse, errors.CodeInvalidFormat, "workbook has no sheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryParse, errors.CodeInvalidFormat, "cannot iterate workbook rows")
	}
	defer rows.Close()

	sheet := &Sheet{Name: sheets[0]}
	for rows.Next() {
		if maxRows > 0 && len(sheet.Rows) >= maxRows {
			break
		}
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryParse, errors.CodeInvalidFormat, "cannot read workbook row")
		}
		sheet.Rows = append(sheet.Rows, cols)
	}
	return sheet, rows.Error()
}

func readXLS(r io.ReadSeeker, maxRows int) (*Sheet, error) {
	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryFile, errors.CodeFileCorrupted, "cannot open xls workbook")
	}
	if wb.NumSheets() == 0 {
		return nil, errors.New(errors.CategoryParse, errors.CodeInvalidFormat, "workbook has no sheets")
	}

	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, errors.New(errors.CategoryParse, errors.CodeInvalidFormat, "cannot read first sheet")
	}

	sheet := &Sheet{Name: ws.Name}
	for i := 0; i <= int(ws.MaxRow); i++ {
		if maxRows > 0 && len(sheet.Rows) >= maxRows {
			break
		}
		row := ws.Row(i)
		if row == nil {
			sheet.Rows = append(sheet.Rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		sheet.Rows = append(sheet.Rows, cells)
	}
	return sheet, nil
}

// ReadDelimited reads a CSV export, sniffing ';' versus ',' from the first line.
func ReadDelimited(data []byte) (*Sheet, error) {
	text, _, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	text = strings.TrimPrefix(text, "\ufeff")

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = sniffDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryParse, errors.CodeInvalidFormat, "cannot read delimited ledger export")
	}
	return &Sheet{Name: "csv", Rows: records}, nil
}

func sniffDelimiter(text string) rune {
	first := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		first = text[:i]
	}
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}

// LoadSheet reads a whole workbook or delimited file, whichever the bytes are.
func LoadSheet(data []byte) (*Sheet, error) {
	kind := SniffKind(data)
	if kind.IsSpreadsheet() {
		return ReadSheet(bytes.NewReader(data), kind, 0)
	}
	return ReadDelimited(data)
}
