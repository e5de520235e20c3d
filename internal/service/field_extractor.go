package service

import (
	"errors"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Compound field layout of the raw export.
const (
	// CitySeparator ends the city prefix of city_data ("City | State | Region").
	CitySeparator = "|"
	// EnrollmentSegmentSeparator splits course_enrollment into its segments.
	EnrollmentSegmentSeparator = "~"
	// EnrollmentDateSegment is the zero-based position of the date inside course_enrollment.
	EnrollmentDateSegment = 2
)

// Extraction failures. Callers treat every one of them as "no value".
var (
	ErrEmptyField      = errors.New("field is empty after extraction")
	ErrMissingSegment  = errors.New("compound field has too few segments")
	ErrUnparseableDate = errors.New("segment is not a recognisable date")
)

// ExtractCity returns the trimmed text before the first CitySeparator, or the whole trimmed
// value when the separator is absent.
func ExtractCity(raw string) (string, error) {
	city, _, _ := strings.Cut(raw, CitySeparator)
	city = strings.TrimSpace(city)
	if city == "" {
		return "", ErrEmptyField
	}
	return city, nil
}

// ExtractEnrollmentDate parses the date segment of a course_enrollment value. The parser is
// lenient about layout. Values without an offset are read as UTC; an explicit offset is kept so
// the calendar day matches the source. Bare digit runs other than YYYYMMDD are rejected.
func ExtractEnrollmentDate(raw string) (time.Time, error) {
	segments := strings.Split(raw, EnrollmentSegmentSeparator)
	if len(segments) <= EnrollmentDateSegment {
		return time.Time{}, ErrMissingSegment
	}
	segment := strings.TrimSpace(segments[EnrollmentDateSegment])
	if segment == "" {
		return time.Time{}, ErrUnparseableDate
	}
	if isDigits(segment) && len(segment) != len(compactDateLayout) {
		return time.Time{}, ErrUnparseableDate
	}
	parsed, err := dateparse.ParseIn(segment, time.UTC)
	if err != nil {
		return time.Time{}, ErrUnparseableDate
	}
	return parsed, nil
}

const compactDateLayout = "20060102"

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
