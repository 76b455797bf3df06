package parsers

import (
	"fmt"
	"strings"
)

// RegistryConfig selects and overrides the layouts bank files are decoded with.
type RegistryConfig struct {
	ReversalKeyword string `json:"reversal_keyword" mapstructure:"reversal_keyword"`
	// FixedWidthLayout names the CREP revision text files are decoded with.
	FixedWidthLayout string `json:"crep_layout" mapstructure:"crep_layout"`
	// FixedWidthLayouts adds or replaces CREP revisions by name.
	FixedWidthLayouts map[string]FixedWidthLayout `json:"crep_layouts,omitempty" mapstructure:"crep_layouts"`
	// SheetLayouts adds or replaces sheet layouts by name. Added layouts are
	// tried before the built-in ones.
	SheetLayouts []SheetLayout `json:"sheet_layouts,omitempty" mapstructure:"sheet_layouts"`
	PreviewRows  int           `json:"preview_rows" mapstructure:"preview_rows"`
}

// DefaultRegistryConfig returns the built-in layouts with the default keyword.
func DefaultRegistryConfig() *RegistryConfig {
	return &RegistryConfig{
		ReversalKeyword:  DefaultReversalKeyword,
		FixedWidthLayout: DefaultFixedWidthLayout,
		PreviewRows:      DefaultPreviewRows,
	}
}

// Validate validates the registry configuration
func (c *RegistryConfig) Validate() error {
	if strings.TrimSpace(c.ReversalKeyword) == "" {
		return fmt.Errorf("reversal keyword cannot be empty")
	}
	if c.PreviewRows < 0 {
		return fmt.Errorf("preview rows cannot be negative, got %d", c.PreviewRows)
	}
	return nil
}

// ResolverConfig holds the vocabularies of the column resolver.
type ResolverConfig struct {
	Aliases            map[Semantic][]string `json:"aliases" mapstructure:"aliases"`
	Positions          map[Semantic]int      `json:"positions" mapstructure:"positions"`
	CurrencyVocabulary []string              `json:"currency_vocabulary" mapstructure:"currency_vocabulary"`
	BankVocabulary     []string              `json:"bank_vocabulary" mapstructure:"bank_vocabulary"`
	SampleSize         int                   `json:"sample_size" mapstructure:"sample_size"`
	Threshold          float64               `json:"threshold" mapstructure:"threshold"`
}

// DefaultResolverConfig returns the aliases of every ledger export generation seen so far.
func DefaultResolverConfig() *ResolverConfig {
	return &ResolverConfig{
		Aliases: map[Semantic][]string{
			SemanticPSPTIN:    {"deuda_psptin", "psp_tin", "tin", "psptin"},
			SemanticBank:      {"banco", "bank"},
			SemanticCurrency:  {"moneda", "currency", "mon"},
			SemanticTimestamp: {"pc_create_date_gmt_peru", "pc_create_date_gmt_0", "processing_date", "fecha", "date"},
		},
		Positions: map[Semantic]int{
			SemanticPSPTIN:    26,
			SemanticBank:      10,
			SemanticCurrency:  21,
			SemanticTimestamp: 15,
		},
		CurrencyVocabulary: []string{"PEN", "USD", "EUR", "S/", "S/.", "US$", "SOL", "SOLES", "DOLARES"},
		BankVocabulary:     []string{"BCP", "BBVA", "INTERBANK", "SCOTIABANK", "BANBIF", "PICHINCHA", "BANCO DE CREDITO", "CONTINENTAL"},
		SampleSize:         20,
		Threshold:          0.7,
	}
}

// Validate checks the vocabularies and thresholds of the resolver.
func (c *ResolverConfig) Validate() error {
	for _, col := range Semantics {
		if len(c.Aliases[col]) == 0 {
			return fmt.Errorf("no aliases configured for column %s", col)
		}
	}
	if c.SampleSize <= 0 {
		return fmt.Errorf("sample size must be positive, got %d", c.SampleSize)
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in (0, 1], got %g", c.Threshold)
	}
	return nil
}
