package parsers

import (
	"strings"

	"github.com/schollz/closestmatch"

	"psp-reconciliation-service/internal/models"
	"psp-reconciliation-service/pkg/errors"
	"psp-reconciliation-service/pkg/logger"
)

// Semantic names one of the ledger columns reconciliation needs.
type Semantic string

const (
	SemanticPSPTIN    Semantic = "psp_tin"
	SemanticBank      Semantic = "bank"
	SemanticCurrency  Semantic = "currency"
	SemanticTimestamp Semantic = "timestamp"
)

// Semantics lists the columns in the order they are resolved. Restrictive
// vocabularies go first so content sniffing claims the obvious columns early.
var Semantics = []Semantic{SemanticPSPTIN, SemanticCurrency, SemanticBank, SemanticTimestamp}

// ResolveStrategy tries to locate col. Columns already claimed by another
// semantic must not be returned.
type ResolveStrategy func(col Semantic, headers []string, sample [][]string, claimed map[int]bool) (models.ColumnRef, bool)

// ColumnResolver locates the semantic ledger columns through an ordered chain
// of strategies: alias, legacy position, content.
type ColumnResolver struct {
	config *ResolverConfig
	chain  []namedStrategy
	logger logger.Logger
}

type namedStrategy struct {
	name string
	fn   ResolveStrategy
}

// NewColumnResolver builds the default strategy chain for cfg.
func NewColumnResolver(cfg *ResolverConfig) *ColumnResolver {
	if cfg == nil {
		cfg = DefaultResolverConfig()
	}
	return &ColumnResolver{
		config: cfg,
		chain: []namedStrategy{
			{"alias", AliasStrategy(cfg.Aliases)},
			{"position", PositionStrategy(cfg.Positions, cfg.Aliases)},
			{"content", ContentStrategy(cfg)},
		},
		logger: logger.GetGlobalLogger().WithComponent("column_resolver"),
	}
}

// Resolve maps every semantic column or fails listing what was and was not found.
func (r *ColumnResolver) Resolve(headers []string, sample [][]string) (models.ColumnMapping, error) {
	resolved := make(map[Semantic]models.ColumnRef)
	claimed := make(map[int]bool)

	for _, step := range r.chain {
		for _, col := range Semantics {
			if _, ok := resolved[col]; ok {
				continue
			}
			ref, ok := step.fn(col, headers, sample, claimed)
			if !ok {
				continue
			}
			ref.Strategy = step.name
			if ref.Header == "" && ref.Index < len(headers) {
				ref.Header = headers[ref.Index]
			}
			resolved[col] = ref
			claimed[ref.Index] = true
		}
		if len(resolved) == len(Semantics) {
			break
		}
	}

	if len(resolved) < len(Semantics) {
		return models.ColumnMapping{}, r.resolutionError(resolved, headers)
	}

	mapping := models.ColumnMapping{
		PSPTIN:    resolved[SemanticPSPTIN],
		Bank:      resolved[SemanticBank],
		Currency:  resolved[SemanticCurrency],
		Timestamp: resolved[SemanticTimestamp],
	}
	r.logger.WithFields(logger.Fields{
		"psp_tin":   mapping.PSPTIN,
		"bank":      mapping.Bank,
		"currency":  mapping.Currency,
		"timestamp": mapping.Timestamp,
	}).Debug("Resolved ledger columns")
	return mapping, nil
}

func (r *ColumnResolver) resolutionError(resolved map[Semantic]models.ColumnRef, headers []string) error {
	found := make(map[string]string, len(resolved))
	claimed := make(map[int]bool, len(resolved))
	for col, ref := range resolved {
		found[string(col)] = ref.Header
		claimed[ref.Index] = true
	}

	var missing []string
	for _, col := range Semantics {
		if _, ok := resolved[col]; !ok {
			missing = append(missing, string(col))
		}
	}

	var candidates []string
	original := make(map[string]string)
	for i, h := range headers {
		key := NormalizeHeader(h)
		if claimed[i] || key == "" {
			continue
		}
		candidates = append(candidates, key)
		original[key] = h
	}

	suggestions := make(map[string]string)
	if len(candidates) > 0 {
		cm := closestmatch.New(candidates, []int{2, 3})
		for _, col := range missing {
			aliases := r.config.Aliases[Semantic(col)]
			if len(aliases) == 0 {
				continue
			}
			if best := cm.Closest(aliases[0]); best != "" {
				suggestions[col] = original[best]
			}
		}
	}

	return errors.ColumnResolutionError(found, missing, headers, suggestions)
}

// AliasStrategy matches headers against the alias list of each column,
// ignoring case and surrounding whitespace.
func AliasStrategy(aliases map[Semantic][]string) ResolveStrategy {
	return func(col Semantic, headers []string, _ [][]string, claimed map[int]bool) (models.ColumnRef, bool) {
		for _, alias := range aliases[col] {
			want := NormalizeHeader(alias)
			for i, h := range headers {
				if !claimed[i] && NormalizeHeader(h) == want {
					return models.ColumnRef{Index: i, Header: h}, true
				}
			}
		}
		return models.ColumnRef{}, false
	}
}

// PositionStrategy applies the fixed indices of the legacy export, but only
// to files where no header is a known alias.
func PositionStrategy(positions map[Semantic]int, aliases map[Semantic][]string) ResolveStrategy {
	known := make(map[string]bool)
	for _, list := range aliases {
		for _, a := range list {
			known[NormalizeHeader(a)] = true
		}
	}

	return func(col Semantic, headers []string, _ [][]string, claimed map[int]bool) (models.ColumnRef, bool) {
		for _, h := range headers {
			if known[NormalizeHeader(h)] {
				return models.ColumnRef{}, false
			}
		}
		i, ok := positions[col]
		if !ok || i < 0 || i >= len(headers) || claimed[i] {
			return models.ColumnRef{}, false
		}
		return models.ColumnRef{Index: i, Header: headers[i]}, true
	}
}

// ContentStrategy picks the unclaimed column whose sampled values best match
// the column's signature, provided at least cfg.Threshold of them match.
func ContentStrategy(cfg *ResolverConfig) ResolveStrategy {
	currencies := make(map[string]bool)
	for _, c := range cfg.CurrencyVocabulary {
		currencies[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	banks := make([]string, 0, len(cfg.BankVocabulary))
	for _, b := range cfg.BankVocabulary {
		banks = append(banks, FoldText(b))
	}

	matchers := map[Semantic]func(string) bool{
		SemanticPSPTIN: func(v string) bool {
			return models.IsValidPSPTIN(models.NormalizeKey(v))
		},
		SemanticCurrency: func(v string) bool {
			return currencies[strings.ToUpper(strings.TrimSpace(v))]
		},
		SemanticBank: func(v string) bool {
			folded := FoldText(v)
			for _, b := range banks {
				if strings.Contains(folded, b) {
					return true
				}
			}
			return false
		},
		SemanticTimestamp: func(v string) bool {
			_, ok := ParseTimestamp(v)
			return ok
		},
	}

	return func(col Semantic, headers []string, sample [][]string, claimed map[int]bool) (models.ColumnRef, bool) {
		match, ok := matchers[col]
		if !ok {
			return models.ColumnRef{}, false
		}

		width := len(headers)
		for _, row := range sample {
			if len(row) > width {
				width = len(row)
			}
		}

		best, bestRatio := -1, 0.0
		for c := 0; c < width; c++ {
			if claimed[c] {
				continue
			}
			values := sampleColumn(sample, c, cfg.SampleSize)
			if len(values) == 0 {
				continue
			}
			hits := 0
			for _, v := range values {
				if match(v) {
					hits++
				}
			}
			ratio := float64(hits) / float64(len(values))
			if ratio >= cfg.Threshold && ratio > bestRatio {
				best, bestRatio = c, ratio
			}
		}
		if best < 0 {
			return models.ColumnRef{}, false
		}

		ref := models.ColumnRef{Index: best}
		if best < len(headers) {
			ref.Header = headers[best]
		}
		return ref, true
	}
}

// sampleColumn returns up to limit non-empty values of column c.
func sampleColumn(rows [][]string, c, limit int) []string {
	var values []string
	for _, row := range rows {
		if c >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[c]); v != "" {
			values = append(values, v)
			if limit > 0 && len(values) >= limit {
				break
			}
		}
	}
	return values
}
