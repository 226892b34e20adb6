package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// Normalize lowercases a free-text note and reduces it to letters, numbers and
// single spaces. Compatibility forms are folded first (NFKC) so that
// full-width or ligature characters tokenize like their plain equivalents.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	folded := lower.String(norm.NFKC.String(text))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// tokenize splits normalized text into terms of at least two characters.
func tokenize(normalized string) []string {
	fields := strings.Fields(normalized)
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
