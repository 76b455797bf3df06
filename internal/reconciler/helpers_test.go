package reconciler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// statementLine builds a crep-v2 record for key, dated 2025-01-10.
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

func statement(lines ...string) []byte {
	return []byte(strings.Join(append([]string{"CC HEADER"}, lines...), "\r\n"))
}

const ledgerHeader = "Deuda_PspTin;Banco;Moneda;PC_create_date_GMT_Peru\n"

func ledger(rows ...string) []byte {
	return []byte(ledgerHeader + strings.Join(rows, "\n") + "\n")
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestService(t *testing.T, cfg *Config) *ReconciliationService {
	t.Helper()
	service, err := NewReconciliationService(nil, nil, nil, nil, cfg)
	require.NoError(t, err)
	return service
}
