package attack

import "strings"

// Fold maps Cyrillic and Greek letters that render like Latin letters to
// their Latin counterparts and drops invisible characters, so "іgnore
// previous instructions" with a Cyrillic і still reads as English to the
// signatures. Text without such characters is returned unchanged.
func Fold(s string) string {
	if !needsFold(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isInvisible(r) {
			continue
		}
		if latin, ok := homoglyphs[r]; ok {
			r = latin
		}
		b.WriteRune(r)
	}
	return b.String()
}

func needsFold(s string) bool {
	for _, r := range s {
		if r < 0x80 {
			continue
		}
		if _, ok := homoglyphs[r]; ok || isInvisible(r) {
			return true
		}
	}
	return false
}

var homoglyphs = map[rune]rune{
	// Cyrillic
	'а': 'a', 'А': 'A', 'В': 'B', 'с': 'c', 'С': 'C', 'е': 'e', 'Е': 'E',
	'Н': 'H', 'і': 'i', 'І': 'I', 'К': 'K', 'М': 'M', 'о': 'o', 'О': 'O',
	'р': 'p', 'Р': 'P', 'Т': 'T', 'х': 'x', 'Х': 'X', 'у': 'y', 'У': 'Y',
	'ѕ': 's', 'Ѕ': 'S', 'ј': 'j', 'Ј': 'J',

	// Greek
	'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Η': 'H', 'Ι': 'I', 'Κ': 'K', 'Μ': 'M',
	'Ν': 'N', 'Ο': 'O', 'ο': 'o', 'Ρ': 'P', 'Τ': 'T', 'Χ': 'X', 'Υ': 'Y',
	'Ζ': 'Z',
}
