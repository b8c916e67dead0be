package util

import (
	"regexp"
	"strconv"
	"strings"
)

var rePriceJunk = regexp.MustCompile(`(?i)(€|eur(?:o)?|\s)`)

// ParsePrice reads a money amount from a cell. Both European (1.234,56) and
// plain (1234.56) notations are accepted; currency markers are ignored.
// Returns nil when no usable number is present.
func ParsePrice(input string) *float64 {
	s := rePriceJunk.ReplaceAllString(strings.TrimSpace(input), "")
	if s == "" {
		return nil
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			// 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		s = strings.ReplaceAll(s, ",", ".")
	}

	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return FloatPtr(parsed)
}
