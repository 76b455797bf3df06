package matcher

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"psp-reconciliation-service/internal/models"
	"psp-reconciliation-service/pkg/logger"
)

// ExclusionReason names the ledger filter that dropped a row.
type ExclusionReason string

const (
	ExcludedByBank     ExclusionReason = "bank"
	ExcludedByCurrency ExclusionReason = "currency"
	ExcludedByCutoff   ExclusionReason = "cutoff"
	// ExcludedNoTimestamp marks rows without a parsable timestamp while a
	// cutoff applies.
	ExcludedNoTimestamp ExclusionReason = "no_timestamp"
)

// Exclusion records a ledger row left out of reconciliation.
type Exclusion struct {
	Row    *models.LedgerRow `json:"row"`
	Reason ExclusionReason   `json:"reason"`
}

// MatchingEngine is the core engine that narrows the ledger and computes the
// DSN and PSD views.
type MatchingEngine struct {
	Config *MatchingConfig
	logger logger.Logger
}

// ReconciliationResult represents the complete result of a reconciliation
type ReconciliationResult struct {
	// DSN holds bank movements whose key is absent from the filtered ledger.
	DSN []*models.CanonicalTransaction `json:"dsn"`
	// PSD holds filtered ledger rows whose key is absent from the bank movements.
	PSD []*models.LedgerRow `json:"psd"`
	// Excluded holds the ledger rows dropped by the filters, in ledger order.
	Excluded []*Exclusion `json:"excluded,omitempty"`
	// Cutoff is the bank's last movement when a cutoff was applied.
	Cutoff    time.Time             `json:"-"`
	HasCutoff bool                  `json:"has_cutoff"`
	Summary   ReconciliationSummary `json:"summary"`
}

// ReconciliationSummary provides aggregate statistics about the reconciliation
type ReconciliationSummary struct {
	BankRecords          int             `json:"bank_records"`
	LedgerRows           int             `json:"ledger_rows"`
	LedgerConsidered     int             `json:"ledger_considered"`
	ExcludedByBank       int             `json:"excluded_by_bank"`
	ExcludedByCurrency   int             `json:"excluded_by_currency"`
	ExcludedByCutoff     int             `json:"excluded_by_cutoff"`
	ExcludedNoTimestamp  int             `json:"excluded_no_timestamp"`
	Matched              int             `json:"matched"`
	DSNCount             int             `json:"dsn_count"`
	PSDCount             int             `json:"psd_count"`
	TotalAmountMatched   decimal.Decimal `json:"total_amount_matched"`
	TotalAmountUnmatched decimal.Decimal `json:"total_amount_dsn"`
}

// NewMatchingEngine creates a new matching engine with the specified configuration
func NewMatchingEngine(config *MatchingConfig) *MatchingEngine {
	if config == nil {
		config = DefaultMatchingConfig()
	}

	return &MatchingEngine{
		Config: config,
		logger: logger.GetGlobalLogger().WithComponent("matcher"),
	}
}

// FilterLedger keeps the rows of the statement's bank, in an accepted
// currency and, when cutoff is set, created no later than cutoff. Each row is
// excluded for the first filter it fails, checked in that order.
func (me *MatchingEngine) FilterLedger(rows []*models.LedgerRow, bank string, cutoff time.Time, hasCutoff bool) ([]*models.LedgerRow, []*Exclusion) {
	kept := make([]*models.LedgerRow, 0, len(rows))
	var excluded []*Exclusion

	for _, row := range rows {
		reason := me.exclusionReason(row, bank, cutoff, hasCutoff)
		if reason != "" {
			excluded = append(excluded, &Exclusion{Row: row, Reason: reason})
			continue
		}
		kept = append(kept, row)
	}
	return kept, excluded
}

func (me *MatchingEngine) exclusionReason(row *models.LedgerRow, bank string, cutoff time.Time, hasCutoff bool) ExclusionReason {
	switch {
	case !me.Config.MatchesBank(bank, row.Bank):
		return ExcludedByBank
	case !me.Config.AcceptsCurrency(row.Currency):
		return ExcludedByCurrency
	case hasCutoff && !row.HasTimestamp():
		return ExcludedNoTimestamp
	case hasCutoff && row.Timestamp.After(cutoff):
		return ExcludedByCutoff
	default:
		return ""
	}
}

// Reconcile filters the ledger for source and computes dsn = B \ L and
// psd = L \ B by key. Both views keep their input order.
func (me *MatchingEngine) Reconcile(ctx context.Context, source *models.BankSource, ledger *models.Ledger) (*ReconciliationResult, error) {
	if source == nil {
		return nil, fmt.Errorf("bank source must be decoded before reconciliation")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger must be loaded before reconciliation")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &ReconciliationResult{}
	if me.Config.ApplyCutoff {
		result.Cutoff, result.HasCutoff = source.Cutoff()
	}

	considered, excluded := me.FilterLedger(ledger.Rows, source.Bank, result.Cutoff, result.HasCutoff)
	result.Excluded = excluded

	bankIndex := NewBankIndex(source.Transactions)
	ledgerIndex := NewLedgerIndex(considered)

	for _, tx := range source.Transactions {
		if !ledgerIndex.Contains(tx.PSPTIN) {
			result.DSN = append(result.DSN, tx)
		}
	}
	for _, row := range considered {
		if !bankIndex.Contains(row.PSPTIN) {
			result.PSD = append(result.PSD, row)
		}
	}

	result.Summary = me.calculateSummary(source, ledger, considered, result)

	me.logger.WithFields(logger.Fields{
		"bank":       source.Bank,
		"layout":     source.Layout,
		"cutoff":     result.HasCutoff,
		"considered": result.Summary.LedgerConsidered,
		"dsn":        result.Summary.DSNCount,
		"psd":        result.Summary.PSDCount,
	}).Info("Reconciliation completed")

	return result, nil
}

func (me *MatchingEngine) calculateSummary(source *models.BankSource, ledger *models.Ledger, considered []*models.LedgerRow, result *ReconciliationResult) ReconciliationSummary {
	summary := ReconciliationSummary{
		BankRecords:          len(source.Transactions),
		LedgerRows:           len(ledger.Rows),
		LedgerConsidered:     len(considered),
		DSNCount:             len(result.DSN),
		PSDCount:             len(result.PSD),
		TotalAmountMatched:   decimal.Zero,
		TotalAmountUnmatched: decimal.Zero,
	}
	summary.Matched = summary.BankRecords - summary.DSNCount

	for _, ex := range result.Excluded {
		switch ex.Reason {
		case ExcludedByBank:
			summary.ExcludedByBank++
		case ExcludedByCurrency:
			summary.ExcludedByCurrency++
		case ExcludedByCutoff:
			summary.ExcludedByCutoff++
		case ExcludedNoTimestamp:
			summary.ExcludedNoTimestamp++
		}
	}

	unmatched := make(map[string]bool, len(result.DSN))
	for _, tx := range result.DSN {
		unmatched[tx.PSPTIN] = true
	}
	for _, tx := range source.Transactions {
		if !tx.Amount.Valid {
			continue
		}
		if unmatched[tx.PSPTIN] {
			summary.TotalAmountUnmatched = summary.TotalAmountUnmatched.Add(tx.Amount.Decimal)
		} else {
			summary.TotalAmountMatched = summary.TotalAmountMatched.Add(tx.Amount.Decimal)
		}
	}
	return summary
}

// DSNKeys returns the unique DSN keys in order.
func (r *ReconciliationResult) DSNKeys() []string {
	return models.UniqueKeys(r.DSN)
}
