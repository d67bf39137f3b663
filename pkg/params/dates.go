package params

import (
	"encoding/json"
	"fmt"
	"time"
)

// ISOLayout renders timestamps with millisecond precision in UTC, the format
// Drata returns for updatedAt and expects for updatedAfter style filters.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// DateLayout is the date-only format used for start, end and expiration dates.
const DateLayout = "2006-01-02"

// Zone-less inputs are read as UTC.
var parseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	DateLayout,
}

// ParseTime parses an ISO-8601 timestamp or date.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: unrecognized format", s)
}

// ParseDate accepts an ISO-8601 string, a unix timestamp in milliseconds or a
// time.Time.
func ParseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		return ParseTime(d)
	case int:
		return time.UnixMilli(int64(d)), nil
	case int64:
		return time.UnixMilli(d), nil
	case float64:
		return time.UnixMilli(int64(d)), nil
	case json.Number:
		ms, err := d.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("parse date %q: %w", d, err)
		}
		return time.UnixMilli(ms), nil
	default:
		return time.Time{}, fmt.Errorf("parse date: unsupported type %T", v)
	}
}

// FormatISO renders t as UTC with millisecond precision.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ToISODate converts v to an ISO-8601 timestamp. Nil and empty strings yield "".
func ToISODate(v any) (string, error) {
	if isEmpty(v) {
		return "", nil
	}
	t, err := ParseDate(v)
	if err != nil {
		return "", err
	}
	return FormatISO(t), nil
}

// FormatDateForAPI converts v to a YYYY-MM-DD date. The calendar date is taken
// in UTC, so "2024-03-01T23:30:00-05:00" becomes "2024-03-02".
func FormatDateForAPI(v any) (string, error) {
	t, err := ParseDate(v)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(DateLayout), nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
