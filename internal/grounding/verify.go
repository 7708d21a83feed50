// Package grounding proves that a claimed quotation occurs verbatim inside
// the evidence text it cites. Verification is a pure function over two
// strings; persistence of the outcome belongs to the extraction service.
package grounding

import (
	"strings"
	"unicode/utf8"
)

// MatchType classifies the grounding state of a claimed quote.
type MatchType string

const (
	// MatchGrounded means the normalized quote occurs in the normalized
	// evidence text.
	MatchGrounded MatchType = "GROUNDED"
	// MatchNotFound means verification ran and the quote is absent. Pointers
	// in this state are never citable but are kept for quality reporting.
	MatchNotFound MatchType = "NOT_FOUND"
	// MatchPending means the quote has not been verified against the current
	// evidence text yet.
	MatchPending MatchType = "PENDING_VERIFICATION"
)

// Result reports the outcome of one verification.
//
// On a miss, PrefixLen and DivergeAt support root-cause diagnosis: a long
// prefix with a single divergent character suggests OCR corruption or value
// drift, a zero prefix suggests the wrong evidence reference, a prefix equal
// to a truncated quote length suggests quote truncation.
type Result struct {
	Found     bool
	MatchType MatchType
	// PrefixLen is the longest prefix of the normalized quote, counted in
	// characters, that matches anywhere in the normalized evidence text.
	PrefixLen int
	// DivergeAt is the character position (in the normalized quote) of the
	// first rune that diverges under the best alignment. -1 when Found.
	DivergeAt int
}

// Normalize collapses whitespace runs to a single space and trims the ends.
// Both sides of a verification pass through the same normalization, so
// differences in line breaks and indentation never affect grounding.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Verify tests whether quote occurs in evidenceText after normalization.
func Verify(evidenceText, quote string) Result {
	content := Normalize(evidenceText)
	needle := Normalize(quote)

	if needle == "" {
		return Result{Found: false, MatchType: MatchNotFound, PrefixLen: 0, DivergeAt: 0}
	}
	if strings.Contains(content, needle) {
		return Result{Found: true, MatchType: MatchGrounded, PrefixLen: utf8.RuneCountInString(needle), DivergeAt: -1}
	}

	prefix := longestMatchingPrefix(content, needle)
	return Result{Found: false, MatchType: MatchNotFound, PrefixLen: prefix, DivergeAt: prefix}
}

// longestMatchingPrefix returns the length, in characters, of the longest
// prefix of needle that matches at some alignment inside content. Compares
// runes, not bytes: Croatian source texts carry multi-byte characters and the
// reported position must count characters. Quadratic, but quotes are short
// and evidence texts are bounded by source document size.
func longestMatchingPrefix(content, needle string) int {
	c := []rune(content)
	q := []rune(needle)
	best := 0
	for i := 0; i < len(c); i++ {
		n := 0
		for n < len(q) && i+n < len(c) && c[i+n] == q[n] {
			n++
		}
		if n > best {
			best = n
			if best == len(q) {
				break
			}
		}
	}
	return best
}
