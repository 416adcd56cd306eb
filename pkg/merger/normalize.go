package merger

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer strips diacritics so "José" and "Jose" compare equal.
// Speaker labels and turn text come from an LLM and from raw transcript
// exports, which disagree on accents more often than on anything else.
var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// normalizeSpeaker lowercases and trims a speaker label for comparison.
func normalizeSpeaker(speaker string) string {
	s, _, err := transform.String(foldTransformer, speaker)
	if err != nil {
		s = speaker
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeText reduces turn text to a canonical comparison form: diacritics
// folded, lowercased, punctuation stripped, whitespace collapsed.
func normalizeText(text string) string {
	s, _, err := transform.String(foldTransformer, text)
	if err != nil {
		s = text
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			// Punctuation and symbols are dropped entirely.
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// tokenSet splits normalized text into a set of word tokens.
func tokenSet(normalized string) map[string]struct{} {
	fields := strings.Fields(normalized)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// jaccard computes |intersection| / |union| of two token sets.
// Two empty sets have similarity 0, not 1: empty turns should never be
// treated as duplicates of each other.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	intersection := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
