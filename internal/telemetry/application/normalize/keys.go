package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CompactKey folds a header for comparison: accents stripped, lower case, only a-z and 0-9 kept.
func CompactKey(header string) string {
	folded := FoldText(header)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FoldText strips accents and lower-cases s, collapsing runs of whitespace.
func FoldText(s string) string {
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// CompactKeys applies CompactKey to every header.
func CompactKeys(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = CompactKey(h)
	}
	return out
}
