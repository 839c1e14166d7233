package models

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the calendar date layout used for every stored date
const DateFormat = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date in UTC. Single digit months and days are accepted.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateFormat, s)
	if err == nil {
		return t, nil
	}
	t, err2 := time.Parse("2006-1-2", s)
	if err2 == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
}

// FormatDate formats t as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// StartOfDay returns midnight UTC of t's calendar date
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
