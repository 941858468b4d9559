// Package similarity provides normalized string similarity used to match
// facility records that come from independently formatted sources.
package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity returns 1 - editDistance/maxLen over runes.
//
// The result is in [0,1] and symmetric. Identical strings (including two
// empty strings) score 1.0; an empty string against a non-empty one scores
// 0.0. Inputs are compared as given; callers normalize first.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0.0
	}

	longest := la
	if lb > longest {
		longest = lb
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

// NormalizeText lower-cases s and collapses every run of whitespace to a
// single space, trimming both ends.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizedSimilarity is Similarity over NormalizeText of both inputs.
func NormalizedSimilarity(a, b string) float64 {
	return Similarity(NormalizeText(a), NormalizeText(b))
}

// DigitsOnly strips everything but ASCII/Unicode decimal digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
