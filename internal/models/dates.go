package models

import "time"

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = time.RFC3339Nano
)

// FormatDate renders a date as ISO-8601: a plain calendar date when there is no
// time-of-day component, RFC 3339 with fractional seconds and the original offset otherwise. Nil renders as "".
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(dateLayout)
	}
	return t.Format(dateTimeLayout)
}

// FormatDatePtr is FormatDate with nil preserved, for outputs that distinguish null from "".
func FormatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatDate(t)
	return &s
}

// SameDay reports whether two optional dates hold the same calendar value.
func SameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
