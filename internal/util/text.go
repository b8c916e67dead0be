package util

import (
	"regexp"
	"strings"
)

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	reCodeChar = regexp.MustCompile(`[^A-Z0-9.\-/]`)
)

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// NormalizeCode uppercases a reference (article code, PO number, RFQ number)
// and strips everything outside the accepted code alphabet.
func NormalizeCode(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	s = strings.ReplaceAll(s, " ", "")
	return reCodeChar.ReplaceAllString(s, "")
}

// Truncate bounds free-text fields before injection. Longer values are cut
// at max runes with an ellipsis marker.
func Truncate(input string, max int) string {
	runes := []rune(input)
	if len(runes) <= max {
		return input
	}
	if max <= 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}
