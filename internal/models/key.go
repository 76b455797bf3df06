package models

import (
	"regexp"
	"strings"
)

// PSPTINLength is the exact length of a reconciliation key.
const PSPTINLength = 12

var pspTinPattern = regexp.MustCompile(`^2[0-9]{11}$`)

var floatSuffix = regexp.MustCompile(`^([0-9]+)\.0+$`)

// IsValidPSPTIN reports whether key is exactly 12 ASCII digits starting with 2.
func IsValidPSPTIN(key string) bool {
	return pspTinPattern.MatchString(key)
}

// ExtractPSPTIN returns the first "2 followed by 11 digits" run in text that is
// not immediately followed by another digit, or "" when there is none.
func ExtractPSPTIN(text string) string {
	for i := 0; i+PSPTINLength <= len(text); i++ {
		if text[i] != '2' {
			continue
		}
		end := i + PSPTINLength
		if !allDigits(text[i+1 : end]) {
			continue
		}
		if end < len(text) && isDigit(text[end]) {
			continue
		}
		return text[i:end]
	}
	return ""
}

// NormalizeKey turns a ledger cell into a comparable key. Spreadsheet exports
// sometimes store the key as a float, so a trailing ".0" is dropped.
func NormalizeKey(value string) string {
	value = strings.TrimSpace(value)
	if m := floatSuffix.FindStringSubmatch(value); m != nil {
		return m[1]
	}
	return value
}

// UniqueKeys returns the distinct PSP_TIN values of txs in first-seen order.
func UniqueKeys(txs []*CanonicalTransaction) []string {
	seen := make(map[string]bool, len(txs))
	keys := make([]string, 0, len(txs))
	for _, tx := range txs {
		if tx.PSPTIN == "" || seen[tx.PSPTIN] {
			continue
		}
		seen[tx.PSPTIN] = true
		keys = append(keys, tx.PSPTIN)
	}
	return keys
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
