package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SearchTerm normalizes free-text search input: control characters are
// dropped, whitespace runs collapse to one space and the result is cut to
// maxRunes characters without splitting a multi-byte rune.
func SearchTerm(input string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(input))
	space := false
	for _, r := range strings.TrimSpace(input) {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r) || r == utf8.RuneError:
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	out := b.String()
	if maxRunes > 0 && utf8.RuneCountInString(out) > maxRunes {
		out = strings.TrimSpace(string([]rune(out)[:maxRunes]))
	}
	return out
}
