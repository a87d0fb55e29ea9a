package brands

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var glyphStripper = strings.NewReplacer(
	"™", "",
	"®", "",
	"©", "",
	"℠", "",
)

// Normalize canonicalizes a brand name or candidate into a registry key:
// lowercase, trademark glyphs and diacritics removed, and only letters and
// digits kept. It is total and idempotent; the empty string maps to itself.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = glyphStripper.Replace(s)
	s = strings.ToLower(s)

	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))), s)
	if err == nil {
		s = folded
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
		}
	}
	return sb.String()
}
