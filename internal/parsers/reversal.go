package parsers

import (
	"strings"

	"psp-reconciliation-service/internal/models"
)

// DefaultReversalKeyword marks reversal movements in Peruvian bank exports.
const DefaultReversalKeyword = "Extorno"

// ReversalStrategy decides whether a group of movements sharing one
// operation number is a reversal.
type ReversalStrategy interface {
	Name() string
	Flag(group []*models.CanonicalTransaction) bool
}

// TextMarker flags a group when any description contains Keyword,
// ignoring case.
type TextMarker struct {
	Keyword string
}

func (s TextMarker) Name() string { return "text:" + s.Keyword }

func (s TextMarker) Flag(group []*models.CanonicalTransaction) bool {
	keyword := strings.TrimSpace(s.Keyword)
	if keyword == "" {
		return false
	}
	needle := FoldText(keyword)
	for _, tx := range group {
		if strings.Contains(FoldText(tx.Description), needle) {
			return true
		}
	}
	return false
}

// SignFlip flags a group holding both a positive and a negative amount.
type SignFlip struct{}

func (SignFlip) Name() string { return "sign-flip" }

func (SignFlip) Flag(group []*models.CanonicalTransaction) bool {
	var positive, negative bool
	for _, tx := range group {
		if !tx.Amount.Valid {
			continue
		}
		switch tx.Amount.Decimal.Sign() {
		case 1:
			positive = true
		case -1:
			negative = true
		}
	}
	return positive && negative
}

// AnyOf flags a group when any of its strategies does.
type AnyOf []ReversalStrategy

func (a AnyOf) Name() string {
	names := make([]string, len(a))
	for i, s := range a {
		names[i] = s.Name()
	}
	return strings.Join(names, "|")
}

func (a AnyOf) Flag(group []*models.CanonicalTransaction) bool {
	for _, s := range a {
		if s.Flag(group) {
			return true
		}
	}
	return false
}

// FilterReversals removes every movement whose operation number belongs to a
// flagged group. Only groups with more than one member are considered, and
// movements without an operation number are never grouped. Kept and removed
// movements both preserve input order.
func FilterReversals(txs []*models.CanonicalTransaction, strategy ReversalStrategy) (kept, removed []*models.CanonicalTransaction) {
	if strategy == nil {
		return txs, nil
	}

	groups := make(map[string][]*models.CanonicalTransaction)
	for _, tx := range txs {
		id := strings.TrimSpace(tx.TransactionID)
		if id == "" {
			continue
		}
		groups[id] = append(groups[id], tx)
	}

	flagged := make(map[string]bool)
	for id, group := range groups {
		if len(group) > 1 && strategy.Flag(group) {
			flagged[id] = true
		}
	}

	kept = make([]*models.CanonicalTransaction, 0, len(txs))
	for _, tx := range txs {
		if flagged[strings.TrimSpace(tx.TransactionID)] {
			removed = append(removed, tx)
			continue
		}
		kept = append(kept, tx)
	}
	return kept, removed
}

// DedupByKey drops movements with an invalid PSP_TIN and keeps the first
// movement seen for every valid one.
func DedupByKey(txs []*models.CanonicalTransaction, stats *models.DecodeStats) []*models.CanonicalTransaction {
	seen := make(map[string]bool, len(txs))
	out := make([]*models.CanonicalTransaction, 0, len(txs))
	for _, tx := range txs {
		if !models.IsValidPSPTIN(tx.PSPTIN) {
			stats.InvalidKeys++
			continue
		}
		if seen[tx.PSPTIN] {
			stats.DuplicateKeys++
			continue
		}
		seen[tx.PSPTIN] = true
		out = append(out, tx)
	}
	stats.RecordsAccepted = len(out)
	return out
}
