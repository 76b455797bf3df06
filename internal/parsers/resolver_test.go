package parsers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psp-reconciliation-service/pkg/errors"
)

func TestColumnResolver_Aliases(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    [4]int // psp_tin, bank, currency, timestamp
	}{
		{
			name:    "mixed casing with padded currency header",
			headers: []string{"Deuda_PspTin", "Banco", " Moneda", "PC_create_date_GMT_Peru"},
			want:    [4]int{0, 1, 2, 3},
		},
		{
			name:    "snake case export",
			headers: []string{"id", "psp_tin", "currency", "bank", "processing_date"},
			want:    [4]int{1, 3, 2, 4},
		},
		{
			name:    "plain names",
			headers: []string{"TIN", "Fecha", "Mon", "Bank"},
			want:    [4]int{0, 3, 2, 1},
		},
	}

	resolver := NewColumnResolver(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := resolver.Resolve(tt.headers, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, [4]int{m.PSPTIN.Index, m.Bank.Index, m.Currency.Index, m.Timestamp.Index})
			assert.Equal(t, "alias", m.PSPTIN.Strategy)
		})
	}
}

func TestColumnResolver_LegacyPositions(t *testing.T) {
	headers := make([]string, 27)
	for i := range headers {
		headers[i] = fmt.Sprintf("COL%d", i)
	}

	m, err := NewColumnResolver(nil).Resolve(headers, nil)
	require.NoError(t, err)
	assert.Equal(t, 26, m.PSPTIN.Index)
	assert.Equal(t, 10, m.Bank.Index)
	assert.Equal(t, 21, m.Currency.Index)
	assert.Equal(t, 15, m.Timestamp.Index)
	assert.Equal(t, "position", m.Bank.Strategy)
	assert.Equal(t, "COL26", m.PSPTIN.Header)
}

func TestColumnResolver_PositionsIgnoredWhenAliasesPresent(t *testing.T) {
	headers := make([]string, 27)
	for i := range headers {
		headers[i] = fmt.Sprintf("COL%d", i)
	}
	headers[3] = "psp_tin"

	_, err := NewColumnResolver(nil).Resolve(headers, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeColumnResolution))
}

func TestColumnResolver_ContentSniffing(t *testing.T) {
	headers := []string{"a", "b", "c", "d"}
	sample := [][]string{
		{"PEN", "BBVA", "251000000001", "2025-01-10 08:00:00"},
		{"PEN", "BCP", "251000000002", "2025-01-10 09:00:00"},
		{"USD", "Interbank", "251000000003.0", "10/01/2025"},
	}

	m, err := NewColumnResolver(nil).Resolve(headers, sample)
	require.NoError(t, err)
	assert.Equal(t, 2, m.PSPTIN.Index)
	assert.Equal(t, 0, m.Currency.Index)
	assert.Equal(t, 1, m.Bank.Index)
	assert.Equal(t, 3, m.Timestamp.Index)
	assert.Equal(t, "content", m.Timestamp.Strategy)
}

func TestColumnResolver_ChainCombinesStrategies(t *testing.T) {
	headers := []string{"Deuda_PspTin", "Banco", "divisa", "creado"}
	sample := [][]string{
		{"251000000001", "BCP", "PEN", "10/01/2025 08:00"},
		{"251000000002", "BCP", "PEN", "10/01/2025 09:00"},
	}

	m, err := NewColumnResolver(nil).Resolve(headers, sample)
	require.NoError(t, err)
	assert.Equal(t, "alias", m.PSPTIN.Strategy)
	assert.Equal(t, "alias", m.Bank.Strategy)
	assert.Equal(t, 2, m.Currency.Index)
	assert.Equal(t, "content", m.Currency.Strategy)
	assert.Equal(t, 3, m.Timestamp.Index)
}

func TestColumnResolver_ContentBelowThreshold(t *testing.T) {
	headers := []string{"Deuda_PspTin", "Banco", "Moneda", "x"}
	sample := [][]string{
		{"251000000001", "BCP", "PEN", "10/01/2025"},
		{"251000000002", "BCP", "PEN", "pendiente"},
		{"251000000003", "BCP", "PEN", "pendiente"},
	}

	_, err := NewColumnResolver(nil).Resolve(headers, sample)
	require.Error(t, err)
}

func TestColumnResolver_ErrorListsColumns(t *testing.T) {
	headers := []string{"Deuda_PspTin", "Banco", "Monto"}
	sample := [][]string{{"251000000001", "BCP", "10.00"}}

	_, err := NewColumnResolver(nil).Resolve(headers, sample)
	require.Error(t, err)

	rerr, ok := errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeColumnResolution, rerr.Code)
	assert.Equal(t, []string{"currency", "timestamp"}, rerr.Context["missing"])
	assert.Equal(t, map[string]string{"psp_tin": "Deuda_PspTin", "bank": "Banco"}, rerr.Context["found"])
	assert.Equal(t, headers, rerr.Context["headers"])
	assert.Contains(t, rerr.Suggestion, `currency may be "Monto"`)
	assert.Contains(t, err.Error(), "available headers [Deuda_PspTin, Banco, Monto]")
}
