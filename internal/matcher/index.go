package matcher

import (
	"psp-reconciliation-service/internal/models"
)

// KeyIndex is a set of PSP_TIN keys.
type KeyIndex struct {
	keys map[string]struct{}
}

// NewKeyIndex creates an index holding keys, duplicates ignored.
func NewKeyIndex(keys ...string) *KeyIndex {
	index := &KeyIndex{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		index.Add(k)
	}
	return index
}

// NewBankIndex indexes the keys of bank transactions.
func NewBankIndex(txs []*models.CanonicalTransaction) *KeyIndex {
	index := NewKeyIndex()
	for _, tx := range txs {
		index.Add(tx.PSPTIN)
	}
	return index
}

// NewLedgerIndex indexes the keys of ledger rows.
func NewLedgerIndex(rows []*models.LedgerRow) *KeyIndex {
	index := NewKeyIndex()
	for _, row := range rows {
		index.Add(row.PSPTIN)
	}
	return index
}

// Add inserts key and reports whether it was new. Empty keys are ignored.
func (ki *KeyIndex) Add(key string) bool {
	if key == "" {
		return false
	}
	if _, ok := ki.keys[key]; ok {
		return false
	}
	ki.keys[key] = struct{}{}
	return true
}

// Contains reports whether key is in the index.
func (ki *KeyIndex) Contains(key string) bool {
	_, ok := ki.keys[key]
	return ok
}
