package lookup

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	plzRe       = regexp.MustCompile(`\b\d{5}\b`)
	nonAlnumRe  = regexp.MustCompile(`[^a-z0-9]+`)
	foldMarks   = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	germanFolds = strings.NewReplacer("ß", "ss", "ä", "ae", "ö", "oe", "ü", "ue")
)

// foldKey lowercases, resolves German umlauts to their two-letter forms and
// strips remaining diacritics, so "Möbelstraße" and "Moebelstrasse" compare
// equal.
func foldKey(s string) string {
	lower := germanFolds.Replace(strings.ToLower(s))
	folded, _, err := transform.String(foldMarks, lower)
	if err != nil {
		folded = lower
	}
	return strings.TrimSpace(nonAlnumRe.ReplaceAllString(folded, " "))
}

// keyTokens splits a folded key into its comparable tokens.
func keyTokens(s string) []string {
	return strings.Fields(foldKey(s))
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range keyTokens(s) {
		set[tok] = true
	}
	return set
}

// extractPLZ returns the first five-digit postcode in the text.
func extractPLZ(s string) string { return plzRe.FindString(s) }

// stripLeadingZeros canonicalizes numeric lookup keys like Kundennummern.
func stripLeadingZeros(s string) string {
	s = strings.TrimSpace(s)
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" && s != "" {
		return "0"
	}
	return trimmed
}

// containsAllTokens reports whether every token of needle occurs in the
// haystack token set. An empty needle never matches.
func containsAllTokens(haystack map[string]bool, needle string) bool {
	tokens := keyTokens(needle)
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		if !haystack[tok] {
			return false
		}
	}
	return true
}

// overlapCount counts how many tokens of needle occur in the haystack set,
// ignoring single-letter tokens.
func overlapCount(haystack map[string]bool, needle string) int {
	n := 0
	for _, tok := range keyTokens(needle) {
		if len(tok) > 1 && haystack[tok] {
			n++
		}
	}
	return n
}
