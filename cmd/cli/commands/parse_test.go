package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateTime(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"evening", "25-01-2026 9:00 PM", time.Date(2026, 1, 25, 21, 0, 0, 0, loc)},
		{"lower case meridiem", "25-01-2026 9:30 pm", time.Date(2026, 1, 25, 21, 30, 0, 0, loc)},
		{"morning two digit hour", "06-03-2026 11:15 AM", time.Date(2026, 3, 6, 11, 15, 0, 0, loc)},
		{"extra spaces", "  06-03-2026   12:00  AM ", time.Date(2026, 3, 6, 0, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDateTime(tt.input, loc)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, loc, got.Location())
		})
	}
}

func TestParseDateTime_Invalid(t *testing.T) {
	for _, input := range []string{"", "2026-01-25 21:00", "25-01-2026 21:00", "32-01-2026 9:00 PM", "25-01-2026"} {
		_, err := parseDateTime(input, time.UTC)
		assert.Error(t, err, input)
	}
}

func TestParseWindowDays(t *testing.T) {
	days, err := parseWindowDays(nil, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, days)

	days, err = parseWindowDays([]string{"14"}, 7)
	require.NoError(t, err)
	assert.Equal(t, 14, days)

	for _, bad := range []string{"0", "-1", "week"} {
		_, err := parseWindowDays([]string{bad}, 7)
		assert.Error(t, err, bad)
	}
}
