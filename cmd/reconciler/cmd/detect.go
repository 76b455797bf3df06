package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"psp-reconciliation-service/internal/parsers"
)

func newDetectCmd(a *app) *cobra.Command {
	var decode bool

	detectCmd := &cobra.Command{
		Use:   "detect FILE...",
		Short: "Show which layout each bank file is read with",
		Long: `Detect previews each bank file and prints the layout the reconcile command
would decode it with. With --decode the file is decoded as well and the
decode statistics are printed.

Examples:
  reconciler detect crep_20250110.txt
  reconciler detect --decode bbva.xlsx interbank.xls`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDetect(cmd, args, decode)
		},
	}
	detectCmd.Flags().BoolVar(&decode, "decode", false, "decode the file and print its statistics")
	return detectCmd
}

// runDetect reports every file and returns the first failure.
func (a *app) runDetect(cmd *cobra.Command, args []string, decode bool) error {
	out := cmd.OutOrStdout()

	service, err := a.cfg.NewService()
	if err != nil {
		return err
	}

	var firstErr error
	fail := func(path string, err error) {
		fmt.Fprintf(out, "%s: error: %v\n", path, err)
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, path := range args {
		data, err := parsers.ReadFile(path)
		if err != nil {
			fail(path, err)
			continue
		}

		adapter, preview, err := service.DetectBankLayout(data)
		if err != nil {
			fail(path, err)
			continue
		}
		fmt.Fprintf(out, "%s: layout=%s bank=%s kind=%s\n", path, adapter.Name(), adapter.Bank(), preview.Kind)

		if !decode {
			continue
		}
		source, err := service.GetRegistry().Decode(cmd.Context(), data)
		if err != nil {
			fail(path, err)
			continue
		}
		st := source.Stats
		fmt.Fprintf(out, "  decoded with %s: %d lines read, %d records, %d skipped, %d reversal rows, %d invalid keys, %d accepted\n",
			source.Layout, st.LinesRead, st.RecordsDecoded, st.SkippedLines, st.ReversalsFound, st.InvalidKeys, st.RecordsAccepted)
		if cutoff, ok := source.Cutoff(); ok {
			fmt.Fprintf(out, "  cutoff: %s\n", cutoff.Format("2006-01-02 15:04:05"))
		}
	}
	return firstErr
}
