// Package matcher computes the two reconciliation views of a bank statement
// against the internal payments ledger.
//
// Matching is by PSP_TIN only. Before the set differences are taken the
// ledger is narrowed to the rows that can legitimately appear in the
// statement:
//   - Bank: the ledger bank column must name the statement's bank
//   - Currency: only accepted currencies are reconciled
//   - Cutoff: when the statement carries second-precision timestamps, ledger
//     rows created after its last movement are left for the next statement
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	config.BankMatchMode = matcher.BankMatchExact
//
//	engine := matcher.NewMatchingEngine(config)
//	result, err := engine.Reconcile(ctx, source, ledger)
package matcher

import (
	"fmt"
	"sort"
	"strings"

	"psp-reconciliation-service/internal/parsers"
)

// BankMatchMode defines how the ledger bank column is compared with the
// statement's bank identity.
type BankMatchMode string

const (
	// BankMatchExact requires the cell to equal one of the bank's names,
	// ignoring case and surrounding whitespace.
	BankMatchExact BankMatchMode = "exact"

	// BankMatchContains accepts cells that contain one of the bank's names,
	// so "BCP - Recaudo" matches BCP.
	BankMatchContains BankMatchMode = "contains"
)

// String returns the string representation of BankMatchMode
func (m BankMatchMode) String() string {
	return string(m)
}

// ParseBankMatchMode converts a flag or config value to a BankMatchMode.
func ParseBankMatchMode(value string) (BankMatchMode, error) {
	switch BankMatchMode(strings.ToLower(strings.TrimSpace(value))) {
	case BankMatchExact:
		return BankMatchExact, nil
	case BankMatchContains, "":
		return BankMatchContains, nil
	default:
		return "", fmt.Errorf("unknown bank match mode %q (valid: exact, contains)", value)
	}
}

// CurrencySymbol is the local-currency symbol some ledger exports write
// instead of the ISO code.
const CurrencySymbol = "S/"

// MatchingConfig holds the ledger filters applied before reconciliation.
//
// Use the provided factory functions for common scenarios:
//   - DefaultMatchingConfig(): contains match, PEN only, cutoff applied
//   - StrictMatchingConfig(): exact bank names, PEN only, cutoff applied
//   - RelaxedMatchingConfig(): contains match, PEN or S/, cutoff applied
type MatchingConfig struct {
	// BankMatchMode selects exact or substring comparison of bank names
	BankMatchMode BankMatchMode `json:"bank_match" mapstructure:"bank_match"`

	// BankAliases lists extra names under which each bank appears in the
	// ledger, keyed by bank identity. The identity itself always matches.
	BankAliases map[string][]string `json:"bank_aliases" mapstructure:"bank_aliases"`

	// Currency is the ISO code of the currency being reconciled
	Currency string `json:"currency" mapstructure:"currency"`

	// AcceptCurrencySymbol also accepts rows whose currency is written as S/
	AcceptCurrencySymbol bool `json:"accept_currency_symbol" mapstructure:"accept_currency_symbol"`

	// ApplyCutoff bounds the ledger by the statement's last movement when the
	// statement has second precision
	ApplyCutoff bool `json:"apply_cutoff" mapstructure:"apply_cutoff"`
}

// DefaultBankAliases returns the names Peruvian banks take in ledger exports.
func DefaultBankAliases() map[string][]string {
	return map[string][]string{
		"BCP":        {"BANCO DE CREDITO"},
		"BBVA":       {"CONTINENTAL"},
		"INTERBANK":  {"IBK"},
		"SCOTIABANK": {"SCOTIA"},
	}
}

// DefaultMatchingConfig returns a configuration with sensible defaults
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		BankMatchMode: BankMatchContains,
		BankAliases:   DefaultBankAliases(),
		Currency:      "PEN",
		ApplyCutoff:   true,
	}
}

// StrictMatchingConfig returns a configuration for strict matching
func StrictMatchingConfig() *MatchingConfig {
	cfg := DefaultMatchingConfig()
	cfg.BankMatchMode = BankMatchExact
	return cfg
}

// RelaxedMatchingConfig returns a configuration for relaxed matching
func RelaxedMatchingConfig() *MatchingConfig {
	cfg := DefaultMatchingConfig()
	cfg.AcceptCurrencySymbol = true
	return cfg
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if _, err := ParseBankMatchMode(string(mc.BankMatchMode)); err != nil {
		return err
	}

	if strings.TrimSpace(mc.Currency) == "" {
		return fmt.Errorf("currency cannot be empty")
	}

	for bank, names := range mc.BankAliases {
		if strings.TrimSpace(bank) == "" {
			return fmt.Errorf("bank aliases contain an empty bank identity")
		}
		for _, n := range names {
			if strings.TrimSpace(n) == "" {
				return fmt.Errorf("bank %s has an empty alias", bank)
			}
		}
	}

	return nil
}

// Clone creates a deep copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}

	clone := *mc
	clone.BankAliases = make(map[string][]string, len(mc.BankAliases))
	for bank, names := range mc.BankAliases {
		clone.BankAliases[bank] = append([]string(nil), names...)
	}
	return &clone
}

// AcceptedCurrencies returns the upper-cased currency values rows may carry.
func (mc *MatchingConfig) AcceptedCurrencies() []string {
	accepted := []string{strings.ToUpper(strings.TrimSpace(mc.Currency))}
	if mc.AcceptCurrencySymbol {
		accepted = append(accepted, CurrencySymbol)
	}
	return accepted
}

// AcceptsCurrency reports whether a ledger currency cell is reconciled.
func (mc *MatchingConfig) AcceptsCurrency(value string) bool {
	value = strings.ToUpper(strings.TrimSpace(value))
	for _, c := range mc.AcceptedCurrencies() {
		if value == c {
			return true
		}
	}
	return false
}

// BankNames returns the folded identity of bank followed by its aliases.
// Alias keys are compared case-insensitively, since config loaders lower-case
// map keys.
func (mc *MatchingConfig) BankNames(bank string) []string {
	identity := foldName(bank)
	names := []string{identity}
	for key, aliases := range mc.BankAliases {
		if foldName(key) != identity {
			continue
		}
		for _, a := range aliases {
			names = append(names, foldName(a))
		}
	}
	return names
}

func foldName(s string) string {
	return parsers.FoldText(strings.TrimSpace(s))
}

// MatchesBank reports whether a ledger bank cell names bank. Both sides are
// compared upper-cased with accents removed.
func (mc *MatchingConfig) MatchesBank(bank, value string) bool {
	value = foldName(value)
	if value == "" {
		return false
	}

	for _, name := range mc.BankNames(bank) {
		if name == "" {
			continue
		}
		if mc.BankMatchMode == BankMatchExact {
			if value == name {
				return true
			}
			continue
		}
		if strings.Contains(value, name) {
			return true
		}
	}
	return false
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	banks := make([]string, 0, len(mc.BankAliases))
	for bank := range mc.BankAliases {
		banks = append(banks, bank)
	}
	sort.Strings(banks)

	return fmt.Sprintf("MatchingConfig{BankMatch: %s, Currencies: %s, Cutoff: %t, Aliases: %s}",
		mc.BankMatchMode, strings.Join(mc.AcceptedCurrencies(), "|"), mc.ApplyCutoff, strings.Join(banks, ","))
}
