package services

import (
	"strings"
	"unicode"
)

// Slugify normalizes a display name into a URL-safe slug: lowercase,
// alphanumeric runs joined by single dashes ("Rock Concerts" -> "rock-concerts").
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true // suppress leading dash
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
