package util

import (
	"strings"
	"unicode"
)

// SanitizeString trims surrounding whitespace and strips control characters.
// Used on free-text request fields before they are persisted.
func SanitizeString(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
