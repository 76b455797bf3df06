package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type crepFields struct {
	tag       string
	key       string
	amount    string
	channel   string
	operation string
	date      string // yyyymmdd
	clock     string // hhmmss
}

// crepLine builds a crep-v2 record line of 240 characters.
func crepLine(f crepFields) string {
	line := []rune(strings.Repeat(" ", 240))
	put := func(start int, value string) {
		copy(line[start:], []rune(value))
	}

	tag := f.tag
	if tag == "" {
		tag = "DD"
	}
	put(0, tag)
	if f.date != "" {
		put(57, f.date)
	}
	put(73, f.amount)
	put(124, f.operation)
	put(156, f.channel)
	if f.clock != "" {
		put(168, f.clock)
	}
	put(205, f.key)
	return string(line)
}

// buildWorkbook writes rows to the first sheet of a new xlsx workbook.
func buildWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for r, row := range rows {
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = v
		}
		cellName, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &values))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// padded returns n blank rows followed by rows, emulating report title blocks.
func padded(n int, title string, rows ...[]string) [][]string {
	out := make([][]string, n)
	if n > 0 && title != "" {
		out[0] = []string{title}
	}
	return append(out, rows...)
}
