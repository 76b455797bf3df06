package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// statementLine builds a crep-v2 record dated 2025-01-10.
func statementLine(key, amount, operation, clock string) string {
	line := []rune(strings.Repeat(" ", 240))
	put := func(start int, value string) {
		copy(line[start:], []rune(value))
	}
	put(0, "DD")
	put(57, "20250110")
	put(73, amount)
	put(124, operation)
	put(156, "AGENTE")
	put(168, clock)
	put(205, key)
	return string(line)
}

// writeInputs writes a two movement CREP statement and a ledger export with
// one matching row, one missing row and one row of another bank.
func writeInputs(t *testing.T) (dir, bankFile, ledgerFile string) {
	t.Helper()
	dir = t.TempDir()

	bank := strings.Join([]string{
		"CC HEADER",
		statementLine("251000000001", "000000000001000", "000001", "080000"),
		statementLine("251000000002", "000000000002000", "000002", "120000"),
	}, "\r\n")
	rows := "Deuda_PspTin;Banco;Moneda;PC_create_date_GMT_Peru\n" +
		"251000000002;BCP;PEN;10/01/2025 08:30:00\n" +
		"251000000004;BCP;PEN;10/01/2025 09:30:00\n" +
		"251000000005;BBVA;PEN;10/01/2025 09:30:00\n"

	bankFile = filepath.Join(dir, "crep.txt")
	ledgerFile = filepath.Join(dir, "ledger.csv")
	require.NoError(t, os.WriteFile(bankFile, []byte(bank), 0o644))
	require.NoError(t, os.WriteFile(ledgerFile, []byte(rows), 0o644))
	return dir, bankFile, ledgerFile
}

// execute runs the command tree with args and captures both streams.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
