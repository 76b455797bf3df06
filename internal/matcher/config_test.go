package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBankMatchMode(t *testing.T) {
	tests := []struct {
		input   string
		want    BankMatchMode
		wantErr bool
	}{
		{"exact", BankMatchExact, false},
		{" EXACT ", BankMatchExact, false},
		{"contains", BankMatchContains, false},
		{"", BankMatchContains, false},
		{"fuzzy", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBankMatchMode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchingConfig_MatchesBank(t *testing.T) {
	contains := DefaultMatchingConfig()
	exact := StrictMatchingConfig()

	tests := []struct {
		name      string
		bank      string
		value     string
		contains  bool
		exactMode bool
	}{
		{"same name", "BCP", "bcp", true, true},
		{"decorated name", "BCP", "BCP - Recaudo", true, false},
		{"alias", "BCP", "Banco de Credito", true, true},
		{"other bank", "BCP", "BBVA", false, false},
		{"blank cell", "BCP", "  ", false, false},
		{"bbva alias", "BBVA", "BBVA CONTINENTAL", true, false},
		{"accented alias", "BCP", "Banco de Crédito", true, true},
		{"accented decorated alias", "BCP", "BANCO DE CRÉDITO DEL PERÚ", true, false},
		{"other credit entity", "BCP", "Caja Crédito Arequipa", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.contains, contains.MatchesBank(tt.bank, tt.value))
			assert.Equal(t, tt.exactMode, exact.MatchesBank(tt.bank, tt.value))
		})
	}
}

func TestMatchingConfig_BankAliasKeysIgnoreCase(t *testing.T) {
	cfg := DefaultMatchingConfig()
	cfg.BankAliases = map[string][]string{"interbank": {"ibk"}}

	assert.Equal(t, []string{"INTERBANK", "IBK"}, cfg.BankNames("Interbank"))
	assert.True(t, cfg.MatchesBank("INTERBANK", "IBK Recaudos"))
}

func TestMatchingConfig_AcceptsCurrency(t *testing.T) {
	cfg := DefaultMatchingConfig()
	assert.True(t, cfg.AcceptsCurrency(" pen "))
	assert.False(t, cfg.AcceptsCurrency("S/"))
	assert.False(t, cfg.AcceptsCurrency("USD"))

	relaxed := RelaxedMatchingConfig()
	assert.True(t, relaxed.AcceptsCurrency("S/"))
	assert.Equal(t, []string{"PEN", "S/"}, relaxed.AcceptedCurrencies())
}

func TestMatchingConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultMatchingConfig().Validate())

	cfg := DefaultMatchingConfig()
	cfg.BankMatchMode = "sometimes"
	assert.Error(t, cfg.Validate())

	cfg = DefaultMatchingConfig()
	cfg.Currency = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultMatchingConfig()
	cfg.BankAliases["BCP"] = append(cfg.BankAliases["BCP"], " ")
	assert.Error(t, cfg.Validate())
}

func TestMatchingConfig_Clone(t *testing.T) {
	cfg := DefaultMatchingConfig()
	clone := cfg.Clone()
	clone.BankAliases["BCP"][0] = "CHANGED"
	clone.Currency = "USD"

	assert.Equal(t, "BANCO DE CREDITO", cfg.BankAliases["BCP"][0])
	assert.Equal(t, "PEN", cfg.Currency)
	assert.Nil(t, (*MatchingConfig)(nil).Clone())
	assert.Contains(t, cfg.String(), "BankMatch: contains")
}
