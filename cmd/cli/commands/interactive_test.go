package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected []string
	}{
		{"plain words", "signup msg-1 DJ", []string{"signup", "msg-1", "DJ"}},
		{"double quotes", `createEvent "Halloween Special" 31-10-2026 9:00 PM`, []string{"createEvent", "Halloween Special", "31-10-2026", "9:00", "PM"}},
		{"single quotes", "signup msg-1 'Active Manager'", []string{"signup", "msg-1", "Active Manager"}},
		{"extra whitespace", "  listEvents   14 ", []string{"listEvents", "14"}},
		{"quote in word", `say it"s fine"`, []string{"say", "its fine"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := parseCommandLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, args)
		})
	}
}

func TestParseCommandLine_UnclosedQuote(t *testing.T) {
	_, err := parseCommandLine(`createEvent "Halloween`)
	assert.Error(t, err)

	_, err = parseCommandLine(`signup msg-1 "`)
	assert.Error(t, err)
}

func TestPrompt(t *testing.T) {
	assert.Equal(t, "> ", prompt(&AppContext{}))
	assert.Equal(t, "alice> ", prompt(&AppContext{User: "alice"}))
}
