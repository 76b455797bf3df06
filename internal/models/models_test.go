package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidPSPTIN(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"251000000007", true},
		{"200000000000", true},
		{"351000000007", false},
		{"25100000007", false},
		{"2510000000071", false},
		{"25100000000a", false},
		{" 251000000007", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidPSPTIN(tt.key))
		})
	}
}

func TestExtractPSPTIN(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"embedded in concept", "PAGO PSP 251000000007 LIMA", "251000000007"},
		{"at end", "ABONO251000000007", "251000000007"},
		{"followed by digit is skipped", "2510000000071", ""},
		{"first match wins", "251000000007 251000000008", "251000000007"},
		{"leading digits before candidate", "99251000000007", "251000000007"},
		{"no candidate", "EXTORNO OPERACION", ""},
		{"too short", "25100000007", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPSPTIN(tt.text))
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "251000000007", NormalizeKey(" 251000000007 "))
	assert.Equal(t, "251000000007", NormalizeKey("251000000007.0"))
	assert.Equal(t, "251000000007.5", NormalizeKey("251000000007.5"))
}

func TestUniqueKeys(t *testing.T) {
	txs := []*CanonicalTransaction{
		{PSPTIN: "251000000002"},
		{PSPTIN: "251000000001"},
		{PSPTIN: "251000000002"},
		{PSPTIN: ""},
	}
	assert.Equal(t, []string{"251000000002", "251000000001"}, UniqueKeys(txs))
}

func TestBankSourceCutoff(t *testing.T) {
	early := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	late := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)

	source := &BankSource{
		SecondPrecision: true,
		Transactions: []*CanonicalTransaction{
			{PSPTIN: "251000000001", Timestamp: late},
			{PSPTIN: "251000000002", Timestamp: early},
			{PSPTIN: "251000000003"},
		},
	}

	cutoff, ok := source.Cutoff()
	require.True(t, ok)
	assert.Equal(t, late, cutoff)

	source.SecondPrecision = false
	_, ok = source.Cutoff()
	assert.False(t, ok)

	empty := &BankSource{SecondPrecision: true}
	_, ok = empty.Cutoff()
	assert.False(t, ok)
}

func TestCanonicalTransactionJSON(t *testing.T) {
	tx := &CanonicalTransaction{
		TransactionID: "000123",
		PSPTIN:        "251000000007",
		Amount:        decimal.NewNullDecimal(decimal.RequireFromString("100.5")),
		Timestamp:     time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(tx)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "100.50", decoded["amount"])
	assert.Equal(t, "2025-01-10T10:00:00Z", decoded["timestamp"])
	assert.Equal(t, "251000000007", decoded["psp_tin"])

	bare := &CanonicalTransaction{PSPTIN: "251000000007"}
	data, err = json.Marshal(bare)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["amount"])
	assert.Nil(t, decoded["timestamp"])
}

func TestLedgerRowTimestampString(t *testing.T) {
	row := &LedgerRow{PSPTIN: "251000000007"}
	assert.Equal(t, "", row.TimestampString())

	row.Timestamp = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-10 09:00:00", row.TimestampString())
}
