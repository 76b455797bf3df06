package parsers

import (
	"sort"
	"strings"
)

// Name of the fixed-width layout used when none is configured.
const DefaultFixedWidthLayout = "crep-v2"

// Name of the sheet layout used when no title marker matches.
const DefaultSheetLayout = "bcp-daily"

func at(i int) *int { return &i }

// BuiltinFixedWidthLayouts returns the known CREP revisions keyed by name.
func BuiltinFixedWidthLayouts() map[string]FixedWidthLayout {
	return map[string]FixedWidthLayout{
		"crep-v2": {
			Name:        "crep-v2",
			Description: "BCP CREP collection file, split date and time parts",
			Bank:        "BCP",
			Tag:         "DD",
			Key:         Field{Start: 205, Length: 12},
			Amount:      Field{Start: 73, Length: 15},
			Channel:     Field{Start: 156, Length: 12},
			Operation:   Field{Start: 124, Length: 6},
			Year:        Field{Start: 57, Length: 4},
			Month:       Field{Start: 61, Length: 2},
			Day:         Field{Start: 63, Length: 2},
			Hour:        Field{Start: 168, Length: 2},
			Minute:      Field{Start: 170, Length: 2},
			Second:      Field{Start: 172, Length: 2},
		},
		"crep-v1": {
			Name:        "crep-v1",
			Description: "BCP CREP collection file, first revision",
			Bank:        "BCP",
			Tag:         "DD",
			Key:         Field{Start: 205, Length: 12},
			Amount:      Field{Start: 60, Length: 14},
			Channel:     Field{Start: 110, Length: 11},
			Date:        Field{Start: 40, Length: 8},
			Time:        Field{Start: 48, Length: 6},
		},
	}
}

// BuiltinSheetLayouts returns the known spreadsheet layouts in detection order.
// The default layout comes last.
func BuiltinSheetLayouts() []SheetLayout {
	return []SheetLayout{
		{
			Name:        "bbva-historical",
			Bank:        "BBVA",
			Markers:     []string{"HISTÓRICO DE MOVIMIENTOS"},
			HeaderRow:   10,
			Description: ColumnSpec{Names: []string{"Concepto"}},
			Operation:   ColumnSpec{Names: []string{"Nº. Doc.", "Nº Doc.", "N° Doc."}},
			Amount:      ColumnSpec{Names: []string{"Importe"}},
			Date:        ColumnSpec{Names: []string{"F. Operación", "F.Operación"}},
			DateLayouts: []string{"02-01-2006", "02/01/2006"},
			SkipPattern: `^Saldo (Inicial|Final):`,
			Reversal:    ReversalText,
		},
		{
			Name:        "bbva-daily",
			Bank:        "BBVA",
			Markers:     []string{"MOVIMIENTOS DEL DÍA"},
			HeaderRow:   10,
			Description: ColumnSpec{Names: []string{"Concepto"}, Position: at(3)},
			Operation:   ColumnSpec{Names: []string{"Nº Operación", "N° Operación", "Núm.Movimiento"}, Position: at(4)},
			Amount:      ColumnSpec{Names: []string{"Importe"}, Position: at(5)},
			Date:        ColumnSpec{Names: []string{"F.Operación", "F. Operación"}, Position: at(0)},
			DateLayouts: []string{"02-01-2006", "02/01/2006"},
			Reversal:    ReversalAny,
		},
		{
			Name:         "bcp-historical",
			Bank:         "BCP",
			Markers:      []string{"OPERACIÓN - HORA", "OPERACIÓN - NÚMERO"},
			HeaderRow:    4,
			LocateHeader: true,
			Description:  ColumnSpec{Names: []string{"Descripción operación", "Descripción"}},
			Operation:    ColumnSpec{Names: []string{"Operación - Número", "Número de operación"}},
			Amount:       ColumnSpec{Names: []string{"Monto", "Importe"}, Optional: true},
			Date:         ColumnSpec{Names: []string{"Fecha", "Fecha operación"}},
			Time:         ColumnSpec{Names: []string{"Operación - Hora", "Hora"}},
			DateLayouts:  []string{"02/01/2006"},
			Reversal:     ReversalText,
		},
		{
			Name:        "interbank",
			Bank:        "INTERBANK",
			Markers:     []string{"NÚMERO OPERACIÓN"},
			HeaderRow:   0,
			Description: ColumnSpec{Names: []string{"Descripción"}},
			Operation:   ColumnSpec{Names: []string{"Número Operación", "Nro. Operación"}},
			Amount:      ColumnSpec{Names: []string{"Importe", "Monto"}, Optional: true},
			Date:        ColumnSpec{Names: []string{"Fecha", "Fecha operación"}},
			DateLayouts: []string{"02/01/2006"},
			Reversal:    ReversalText,
		},
		{
			Name:        "bcp-daily",
			Bank:        "BCP",
			HeaderRow:   7,
			Description: ColumnSpec{Names: []string{"Descripción operación"}},
			Operation:   ColumnSpec{Names: []string{"Nº operación", "N° operación"}},
			Amount:      ColumnSpec{Names: []string{"Monto"}},
			Date:        ColumnSpec{Names: []string{"Fecha operación", "Fecha"}},
			Time:        ColumnSpec{Names: []string{"Hora"}},
			DateLayouts: []string{"02/01/2006"},
			Reversal:    ReversalText,
		},
	}
}

// LayoutNames lists layout names sorted, for help output and errors.
func LayoutNames[T any](layouts map[string]T) []string {
	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func canonicalLayoutName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
