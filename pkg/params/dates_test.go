package params

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDateForAPI(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"date only", "2024-03-01", "2024-03-01"},
		{"utc timestamp", "2024-03-01T10:15:00Z", "2024-03-01"},
		{"millis", "2024-03-01T10:15:00.123Z", "2024-03-01"},
		{"negative offset crosses midnight", "2024-03-01T23:30:00-05:00", "2024-03-02"},
		{"positive offset crosses midnight", "2024-03-01T01:30:00+02:00", "2024-02-29"},
		{"unix millis", int64(1709251200000), "2024-03-01"},
		{"float millis", float64(1709251200000), "2024-03-01"},
		{"json number", json.Number("1709251200000"), "2024-03-01"},
		{"time value", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "2024-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatDateForAPI(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, 10)
		})
	}
}

func TestFormatDateForAPI_Invalid(t *testing.T) {
	_, err := FormatDateForAPI("not a date")
	assert.Error(t, err)

	_, err = FormatDateForAPI(true)
	assert.Error(t, err)
}

func TestToISODate(t *testing.T) {
	got, err := ToISODate("")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = ToISODate(nil)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = ToISODate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T00:00:00.000Z", got)

	got, err = ToISODate("2024-03-01T10:15:30.5+01:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T09:15:30.500Z", got)

	_, err = ToISODate("yesterday")
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-01-02T03:04:05.678Z", time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC)},
		{"2024-01-02T03:04:05Z", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2024-01-02T03:04:05", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTime(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestFormatISO(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	ts := time.Date(2024, 6, 1, 12, 0, 0, 1_500_000, loc)
	assert.Equal(t, "2024-06-01T11:00:00.001Z", FormatISO(ts))
}
