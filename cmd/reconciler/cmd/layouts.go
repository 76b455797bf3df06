package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"psp-reconciliation-service/internal/parsers"
)

func newLayoutsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "layouts",
		Short: "List the known bank statement layouts",
		Long: `Layouts lists the spreadsheet layouts in detection order and the CREP
fixed-width revisions. The fixed-width revision in use is marked with *.
Layouts from the crep_layouts and sheet_layouts settings are included.`,
		Args: cobra.NoArgs,
		RunE: a.runLayouts,
	}
}

func (a *app) runLayouts(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	registry, err := a.cfg.NewRegistry()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Spreadsheet layouts (detection order):")
	for _, adapter := range registry.SheetAdapters() {
		layout := adapter.Layout()
		markers := "default"
		if len(layout.Markers) > 0 {
			markers = strings.Join(layout.Markers, " | ")
		}
		if layout.Name == parsers.DefaultSheetLayout {
			markers += ", fallback"
		}
		fmt.Fprintf(out, "  %-18s %-11s %s\n", layout.Name, layout.Bank, markers)
	}

	active := registry.FixedWidth().Name()
	fixedWidth := registry.FixedWidthLayouts()
	fmt.Fprintln(out, "\nCREP fixed-width layouts:")
	for _, name := range parsers.LayoutNames(fixedWidth) {
		mark := " "
		if strings.EqualFold(name, active) {
			mark = "*"
		}
		layout := fixedWidth[name]
		fmt.Fprintf(out, "%s %-18s %-11s %s\n", mark, name, layout.Bank, layout.Description)
	}
	return nil
}
