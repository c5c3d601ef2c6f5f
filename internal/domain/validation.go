package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Offer limits
const (
	MinItemQuantity   = 1
	MaxCardQuantity   = 999
	MaxCurrencyAmount = 1_000_000_000
	MaxCardLines      = 5
	MaxBundleItems    = 8
	MaxNoteLength     = 200
)

var rarityAliases = map[string]string{
	"c":         "common",
	"common":    "common",
	"u":         "uncommon",
	"uncommon":  "uncommon",
	"r":         "rare",
	"rare":      "rare",
	"sr":        "super",
	"super":     "super",
	"ur":        "ultra",
	"ultra":     "ultra",
	"secr":      "secret",
	"secret":    "secret",
	"sl":        "starlight",
	"starlight": "starlight",
}

// NormalizeRarity maps short forms to the canonical lowercase rarity.
// Unknown values are lowercased and kept.
func NormalizeRarity(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if canon, ok := rarityAliases[s]; ok {
		return canon
	}

	return s
}

// NormalizeSetName strips an optional "set:" prefix.
func NormalizeSetName(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 4 && strings.EqualFold(s[:4], "set:") {
		s = strings.TrimSpace(s[4:])
	}

	return s
}

// ValidateNote checks the optional free-text note attached to a proposal.
func ValidateNote(note string) error {
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return fmt.Errorf("%w: note exceeds %d characters", ErrInvalidBundle, MaxNoteLength)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 500
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
