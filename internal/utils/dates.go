package utils

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the day/month/year format admins type event dates in.
const DateLayout = "02/01/2006"

// ParseDate parses a dd/mm/yyyy calendar date (ISO yyyy-mm-dd is accepted
// too) and returns it as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, "2/1/2006", time.DateOnly} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected dd/mm/yyyy", s)
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
