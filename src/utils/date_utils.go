package utils

import (
	"strings"
	"time"
)

// dateLayouts covers the date shapes brokerage exports actually use:
// slash-delimited month/day/year (padded or not, 4- or 2-digit year) and ISO
// year-month-day.
var dateLayouts = []string{
	"1/2/2006",
	"2006-1-2",
	"1/2/06",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseFlexibleDate tries each supported layout in order and reports whether
// any matched. An unparsable date is not an error here; the caller decides
// what it means.
func ParseFlexibleDate(dateStr string) (time.Time, bool) {
	s := strings.TrimSpace(dateStr)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
