package parsers

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Day-first layouts; every bank involved is Peruvian.
var defaultDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006 15:04:05",
	"02-01-2006",
	"02/01/06",
	"20060102",
	"January 2, 2006, 3:04 PM",
	"January 2, 2006, 15:04",
	"January 2, 2006",
}

var currencyNoise = regexp.MustCompile(`(?i)(S/\.?|US\$|\$|PEN|USD|\s)`)

// NormalizeHeader folds a header for comparison: NFC, trimmed, lower case.
func NormalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}

// FoldText upper-cases s and strips diacritics, so "Histórico" and
// "HISTORICO" compare equal.
func FoldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToUpper(folded)
}

// ParseTimestamp parses a cell as a date or date-time. Extra layouts are tried
// before the defaults. Excel serial numbers are accepted as well.
func ParseTimestamp(value string, layouts ...string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, group := range [][]string{layouts, defaultDateLayouts} {
		for _, layout := range group {
			if t, err := time.Parse(layout, value); err == nil {
				return t, true
			}
		}
	}

	// Raw xlsx date cells are serial day numbers; only 1970-2099 is accepted.
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial >= 25569 && serial < 73051 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Round(time.Second), true
		}
	}
	return time.Time{}, false
}

// ParseTimeOfDay parses "15:04:05", "15:04", "150405" or an Excel day
// fraction into a duration since midnight.
func ParseTimeOfDay(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	for _, layout := range []string{"15:04:05", "15:04", "150405", "3:04:05 PM", "3:04 PM"} {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, true
		}
	}

	if frac, err := strconv.ParseFloat(value, 64); err == nil && frac >= 0 && frac < 1 {
		return time.Duration(frac*86400+0.5) * time.Second, true
	}
	return 0, false
}

// ParseAmount parses a spreadsheet amount, tolerating currency symbols,
// thousands separators and a decimal comma.
func ParseAmount(value string) decimal.NullDecimal {
	cleaned := currencyNoise.ReplaceAllString(strings.TrimSpace(value), "")
	if cleaned == "" {
		return decimal.NullDecimal{}
	}

	lastComma := strings.LastIndexByte(cleaned, ',')
	lastDot := strings.LastIndexByte(cleaned, '.')
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case lastComma >= 0 && lastDot < 0 && len(cleaned)-lastComma-1 == 2:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	default:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
