package relation

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// NormalizeColumn converts a raw source header cell into a column identifier
// that is safe to use unquoted across the supported SQL backends.
//
// Spreadsheet headers frequently carry BOMs, full-width punctuation, accents,
// and stray whitespace; normalizing here keeps the staging-relation schema
// stable regardless of which unit a header was read from.
func NormalizeColumn(s string) string {
	s = strings.TrimPrefix(s, utf8BOM)
	s = strings.ToLower(strings.TrimSpace(s))

	// Decompose → remove nonspacing marks (accents) → recompose.
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	ascii, _, _ := transform.String(t, s)

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		default:
			if !prevUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "col"
	}
	// Identifiers must not start with a digit on every backend.
	if out[0] >= '0' && out[0] <= '9' {
		out = "c_" + out
	}
	return out
}
