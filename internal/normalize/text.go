package normalize

import (
	"strings"
	"unicode"
)

// diacriticFolds maps accented Latin runes to their base form. Multi-rune
// expansions cover ligatures and the sharp s.
var diacriticFolds = map[rune]string{
	'à': "a", 'á': "a", 'â': "a", 'ã': "a", 'ä': "a", 'å': "a",
	'è': "e", 'é': "e", 'ê': "e", 'ë': "e",
	'ì': "i", 'í': "i", 'î': "i", 'ï': "i",
	'ò': "o", 'ó': "o", 'ô': "o", 'õ': "o", 'ö': "o", 'ø': "o",
	'ù': "u", 'ú': "u", 'û': "u", 'ü': "u",
	'ý': "y", 'ÿ': "y",
	'ç': "c", 'ñ': "n", 'š': "s", 'ž': "z",
	'æ': "ae", 'œ': "oe", 'ß': "ss", 'đ': "d", 'ð': "d", 'þ': "th",
}

// Text canonicalizes a free-form string for comparison: lower-case, diacritics
// folded to their base letters, whitespace collapsed to single spaces.
func Text(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		lastSpace = false
		if folded, ok := diacriticFolds[r]; ok {
			b.WriteString(folded)
			continue
		}
		b.WriteRune(r)
	}

	return strings.TrimSpace(b.String())
}

// Tokens splits a normalized string into whitespace-separated tokens.
func Tokens(raw string) []string {
	s := Text(raw)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

// Digits strips everything but decimal digits from an identifier such as a
// VAT, KVK, or SKU number.
func Digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
