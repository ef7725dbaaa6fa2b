// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import "strings"

// Truncate is a simple string truncate
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// stopWords are common English terms ignored by keyword matching and query
// simplification.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "do": true, "does": true, "for": true, "from": true,
	"how": true, "i": true, "in": true, "is": true, "it": true, "of": true,
	"on": true, "or": true, "that": true, "the": true, "to": true, "was": true,
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"why": true, "will": true, "with": true,
}

// IsStopWord reports whether the lowercased term is a stop word.
func IsStopWord(term string) bool {
	return stopWords[strings.ToLower(term)]
}

// Tokenize lowercases text and splits it into alphanumeric terms.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

// TermSet returns the distinct terms of text as a set.
func TermSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, term := range Tokenize(text) {
		set[term] = true
	}
	return set
}
