package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input       string
		expected    zerolog.Level
		expectError bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{" error ", zerolog.ErrorLevel, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tc := range testCases {
		level, err := ParseLevel(tc.input)

		assert.Equal(t, tc.expected, level, tc.input)
		assert.Equal(t, tc.expectError, err != nil, tc.input)
	}
}

func TestNewLoggerWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "uptime.log")

	logger, closer := newLogger(&console, path, "info")
	logger.Debug().Msg("hidden")
	logger.Info().Str("site", "lookout").Msg("Checking lookout")
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), "> Checking lookout")
	assert.NotContains(t, console.String(), "hidden")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"site":"lookout"`)
	assert.Contains(t, lines[0], `"message":"Checking lookout"`)
}

func TestNewLoggerWithoutFile(t *testing.T) {
	var console bytes.Buffer

	logger, closer := newLogger(&console, "", "bogus")
	logger.Info().Msg("still works")

	assert.NoError(t, closer.Close())
	assert.Contains(t, console.String(), "Invalid log level 'bogus'")
	assert.Contains(t, console.String(), "> still works")
}

func TestColorizeLevel(t *testing.T) {
	assert.Equal(t, "\033[31mERR\033[0m", colorizeLevel("error"))
	assert.Equal(t, "trace", colorizeLevel("trace"))
}
