package attack

import (
	"fmt"
	"unicode/utf8"
)

// smuggling matches characters that are invisible when rendered but still
// reach the model: zero-width characters, bidirectional overrides and
// Unicode tag characters. They are used to hide instructions inside an
// innocuous-looking prompt.
type smuggling struct{}

func (smuggling) String() string { return "unicode:invisible" }

func (smuggling) MatchString(s string) bool {
	for _, r := range s {
		if isInvisible(r) {
			return true
		}
	}
	return false
}

// InvisibleRunes lists the code points of every invisible character in s,
// formatted as U+XXXX, for forensic display.
func InvisibleRunes(s string) []string {
	var out []string
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if isInvisible(r) {
			out = append(out, fmt.Sprintf("U+%04X", r))
		}
		i += size
	}
	return out
}

func isInvisible(r rune) bool {
	return isZeroWidth(r) || isBidiOverride(r) || isTagCharacter(r)
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', // ZERO WIDTH SPACE
		'\u200C', // ZERO WIDTH NON-JOINER
		'\u200D', // ZERO WIDTH JOINER
		'\uFEFF', // ZERO WIDTH NO-BREAK SPACE (BOM)
		'\u2060', // WORD JOINER
		'\u180E': // MONGOLIAN VOWEL SEPARATOR
		return true
	}
	return false
}

func isBidiOverride(r rune) bool {
	switch r {
	case '\u202A', '\u202B', '\u202C', '\u202D', '\u202E',
		'\u2066', '\u2067', '\u2068', '\u2069':
		return true
	}
	return false
}

// Tag characters (U+E0001–U+E007F) mirror ASCII and render as nothing.
func isTagCharacter(r rune) bool {
	return r >= 0xE0001 && r <= 0xE007F
}
