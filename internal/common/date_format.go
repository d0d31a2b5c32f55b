package common

import (
	"fmt"
	"time"
)

// Standard date format constants
const (
	// ISO8601Date is the date format of the frontend date inputs and the
	// default backend date format
	ISO8601Date = "2006-01-02"

	// CompactDate is the YYYYMMDD form some backend endpoints expect
	CompactDate = "20060102"

	// TimestampName is used in exported file names (captura_20230601120000)
	TimestampName = "20060102150405"
)

// Backend date format names as they appear in settings
const (
	DateFormatISO     = "iso"
	DateFormatCompact = "compact"
)

// ParseISO8601 parses a date string in ISO 8601 format (YYYY-MM-DD)
func ParseISO8601(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("date string is empty")
	}
	return time.Parse(ISO8601Date, dateStr)
}

// ParseDate accepts either YYYY-MM-DD or YYYYMMDD
func ParseDate(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("date string is empty")
	}
	if t, err := time.Parse(ISO8601Date, dateStr); err == nil {
		return t, nil
	}
	t, err := time.Parse(CompactDate, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD or YYYYMMDD)", dateStr)
	}
	return t, nil
}

// FormatISO8601 formats a time.Time to ISO 8601 date string (YYYY-MM-DD)
func FormatISO8601(t time.Time) string {
	return t.Format(ISO8601Date)
}

// FormatBackendDate formats a date in the named backend format.
// Unknown names fall back to ISO.
func FormatBackendDate(t time.Time, format string) string {
	if format == DateFormatCompact {
		return t.Format(CompactDate)
	}
	return t.Format(ISO8601Date)
}

// ValidDateFormat reports whether name is a known backend date format
func ValidDateFormat(name string) bool {
	return name == DateFormatISO || name == DateFormatCompact
}

// ValidateISO8601 checks if a date string is in valid ISO 8601 format
func ValidateISO8601(dateStr string) bool {
	_, err := ParseISO8601(dateStr)
	return err == nil
}
