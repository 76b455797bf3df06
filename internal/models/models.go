package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the layout used whenever a timestamp is rendered.
const TimestampLayout = "2006-01-02 15:04:05"

// CanonicalTransaction is the normalized bank movement produced by every decoder.
type CanonicalTransaction struct {
	// TransactionID is the bank operation number, used for reversal grouping.
	TransactionID string `json:"transaction_id"`
	// PSPTIN is the reconciliation key. Empty or malformed keys never reach the matcher.
	PSPTIN      string              `json:"psp_tin"`
	Amount      decimal.NullDecimal `json:"-"`
	Timestamp   time.Time           `json:"-"`
	Description string              `json:"description,omitempty"`
	Channel     string              `json:"channel,omitempty"`
	Layout      string              `json:"layout,omitempty"`
	Line        int                 `json:"line"`
}

// HasTimestamp reports whether the source carried a usable date.
func (t *CanonicalTransaction) HasTimestamp() bool {
	return !t.Timestamp.IsZero()
}

// AmountString renders the amount with two decimals, or "" when absent.
func (t *CanonicalTransaction) AmountString() string {
	if !t.Amount.Valid {
		return ""
	}
	return t.Amount.Decimal.StringFixed(2)
}

// TimestampString renders the timestamp, or "" when absent.
func (t *CanonicalTransaction) TimestampString() string {
	if !t.HasTimestamp() {
		return ""
	}
	return t.Timestamp.Format(TimestampLayout)
}

// String returns a string representation of the transaction
func (t *CanonicalTransaction) String() string {
	return fmt.Sprintf("CanonicalTransaction{PSPTIN: %s, Operation: %s, Amount: %s, Time: %s}",
		t.PSPTIN, t.TransactionID, t.AmountString(), t.TimestampString())
}

// MarshalJSON renders optional fields as null instead of zero values.
func (t *CanonicalTransaction) MarshalJSON() ([]byte, error) {
	type Alias CanonicalTransaction
	aux := struct {
		Amount    *string `json:"amount"`
		Timestamp *string `json:"timestamp"`
		*Alias
	}{Alias: (*Alias)(t)}

	if t.Amount.Valid {
		s := t.AmountString()
		aux.Amount = &s
	}
	if t.HasTimestamp() {
		s := t.Timestamp.Format(time.RFC3339)
		aux.Timestamp = &s
	}
	return json.Marshal(aux)
}

// LedgerRow is one internal-ledger row projected onto the resolved semantic columns.
type LedgerRow struct {
	PSPTIN    string    `json:"psp_tin"`
	Bank      string    `json:"bank"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"-"`
	// Row is the 1-based data row number in the export.
	Row int `json:"row"`
	// Values holds the raw cells so reports can reproduce the original row.
	Values []string `json:"-"`
}

// HasTimestamp reports whether the timestamp cell parsed.
func (r *LedgerRow) HasTimestamp() bool {
	return !r.Timestamp.IsZero()
}

// TimestampString renders the timestamp, or "" when absent.
func (r *LedgerRow) TimestampString() string {
	if !r.HasTimestamp() {
		return ""
	}
	return r.Timestamp.Format(TimestampLayout)
}

// MarshalJSON renders the timestamp as null when it did not parse.
func (r *LedgerRow) MarshalJSON() ([]byte, error) {
	type Alias LedgerRow
	aux := struct {
		Timestamp *string `json:"timestamp"`
		*Alias
	}{Alias: (*Alias)(r)}

	if r.HasTimestamp() {
		s := r.Timestamp.Format(time.RFC3339)
		aux.Timestamp = &s
	}
	return json.Marshal(aux)
}

// DecodeStats counts what happened to the lines or rows of one input file.
type DecodeStats struct {
	LinesRead       int `json:"lines_read"`
	RecordsDecoded  int `json:"records_decoded"`
	SkippedLines    int `json:"skipped_lines"`
	ReversalsFound  int `json:"reversals_removed"`
	InvalidKeys     int `json:"invalid_keys"`
	DuplicateKeys   int `json:"duplicate_keys"`
	RecordsAccepted int `json:"records_accepted"`
}

// BankSource is a fully decoded bank statement.
type BankSource struct {
	Layout string `json:"layout"`
	// Bank is the bank identity used to filter ledger rows.
	Bank         string                  `json:"bank"`
	Transactions []*CanonicalTransaction `json:"transactions"`
	// Reversals holds every row removed by the reversal filter.
	Reversals []*CanonicalTransaction `json:"reversals,omitempty"`
	// SecondPrecision is set when timestamps carry a time of day to the second.
	SecondPrecision bool        `json:"second_precision"`
	Stats           DecodeStats `json:"stats"`
}

// Cutoff returns the latest transaction timestamp when the source has second
// precision timestamps.
func (s *BankSource) Cutoff() (time.Time, bool) {
	if !s.SecondPrecision {
		return time.Time{}, false
	}

	var max time.Time
	for _, tx := range s.Transactions {
		if tx.HasTimestamp() && tx.Timestamp.After(max) {
			max = tx.Timestamp
		}
	}
	return max, !max.IsZero()
}

// Ledger is a loaded internal-ledger export.
type Ledger struct {
	Headers []string      `json:"headers"`
	Columns ColumnMapping `json:"columns"`
	Rows    []*LedgerRow  `json:"rows"`
	Stats   DecodeStats   `json:"stats"`
}

// ColumnRef points at one resolved ledger column.
type ColumnRef struct {
	Index    int    `json:"index"`
	Header   string `json:"header"`
	Strategy string `json:"strategy"`
}

// ColumnMapping holds the four resolved semantic ledger columns.
type ColumnMapping struct {
	PSPTIN    ColumnRef `json:"psp_tin"`
	Bank      ColumnRef `json:"bank"`
	Currency  ColumnRef `json:"currency"`
	Timestamp ColumnRef `json:"timestamp"`
}
