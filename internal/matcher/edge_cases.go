package matcher

import (
	"psp-reconciliation-service/internal/models"
)

// EdgeCaseHandler explains reconciliation outcomes that usually need a
// second look: DSN movements whose key the ledger does hold, PSD rows the
// bank reversed, and rows carried over to the next statement by the cutoff.
type EdgeCaseHandler struct {
	config *MatchingConfig
}

// NewEdgeCaseHandler creates a new edge case handler
func NewEdgeCaseHandler(config *MatchingConfig) *EdgeCaseHandler {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &EdgeCaseHandler{config: config}
}

// FilteredMatch is a DSN movement whose key exists in the ledger on a row
// that a filter excluded.
type FilteredMatch struct {
	Transaction *models.CanonicalTransaction `json:"transaction"`
	Row         *models.LedgerRow            `json:"row"`
	Reason      ExclusionReason              `json:"reason"`
}

// EdgeCaseReport groups the findings of Analyze.
type EdgeCaseReport struct {
	FilteredMatches []*FilteredMatch `json:"filtered_matches,omitempty"`
	// ReversedPending holds PSD rows whose key only appears in reversed
	// bank movements.
	ReversedPending []*models.LedgerRow `json:"reversed_pending,omitempty"`
	// CarriedOver holds rows after the cutoff, expected in the next statement.
	CarriedOver []*models.LedgerRow `json:"carried_over,omitempty"`
}

// Empty reports whether nothing noteworthy was found.
func (r *EdgeCaseReport) Empty() bool {
	return len(r.FilteredMatches) == 0 && len(r.ReversedPending) == 0 && len(r.CarriedOver) == 0
}

// Analyze inspects a finished reconciliation.
func (ech *EdgeCaseHandler) Analyze(source *models.BankSource, result *ReconciliationResult) *EdgeCaseReport {
	report := &EdgeCaseReport{}

	excludedByKey := make(map[string]*Exclusion, len(result.Excluded))
	for _, ex := range result.Excluded {
		if _, ok := excludedByKey[ex.Row.PSPTIN]; !ok {
			excludedByKey[ex.Row.PSPTIN] = ex
		}
	}

	for _, tx := range result.DSN {
		if ex, ok := excludedByKey[tx.PSPTIN]; ok {
			report.FilteredMatches = append(report.FilteredMatches, &FilteredMatch{
				Transaction: tx,
				Row:         ex.Row,
				Reason:      ex.Reason,
			})
		}
	}

	reversed := NewKeyIndex()
	for _, tx := range source.Reversals {
		if models.IsValidPSPTIN(tx.PSPTIN) {
			reversed.Add(tx.PSPTIN)
		}
	}
	for _, row := range result.PSD {
		if reversed.Contains(row.PSPTIN) {
			report.ReversedPending = append(report.ReversedPending, row)
		}
	}

	bank := NewBankIndex(source.Transactions)
	for _, ex := range result.Excluded {
		if ex.Reason == ExcludedByCutoff && !bank.Contains(ex.Row.PSPTIN) {
			report.CarriedOver = append(report.CarriedOver, ex.Row)
		}
	}

	return report
}
