package record

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeContent canonicalizes message content for identity computation.
//
// Two steps:
//  1. Unicode NFC normalization, so visually identical strings captured
//     with different codepoint sequences hash identically.
//  2. Whitespace and control-character collapse: every run of whitespace
//     or control characters becomes a single space, and leading/trailing
//     runs are dropped.
//
// The raw payload is never touched - normalization applies only to the
// bytes fed into the hash.
func NormalizeContent(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			inRun = true
			continue
		}
		if inRun && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inRun = false
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeTitle canonicalizes a title for fuzzy keying and similarity
// scoring: NFC + whitespace collapse + lower case.
func NormalizeTitle(s string) string {
	return strings.ToLower(NormalizeContent(s))
}
