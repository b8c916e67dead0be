package util

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2006-01-02T15:04:05Z07:00",
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"2-1-2006",
	"2/1/2006",
	"2.1.2006",
	"20060102",
	"Jan 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

// ParseDate tries the date notations customers actually send. Day-first
// layouts are preferred because nearly all inbound mail is Dutch or German.
func ParseDate(input string) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// NormalizeDate reformats any recognized date to the injection layout.
// Unrecognized input comes back empty.
func NormalizeDate(input string) string {
	parsed, ok := ParseDate(input)
	if !ok {
		return ""
	}
	return parsed.Format(DateLayout)
}
