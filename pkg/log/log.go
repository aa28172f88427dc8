package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger that writes human-readable lines to stderr and, when
// logFilePath is set and writable, JSON lines to that file. The returned
// closer releases the file.
func New(logFilePath, level string) (zerolog.Logger, io.Closer) {
	return newLogger(os.Stderr, logFilePath, level)
}

func newLogger(console io.Writer, logFilePath, level string) (zerolog.Logger, io.Closer) {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.DateTime,
		FormatLevel: func(i any) string {
			s, _ := i.(string)
			return colorizeLevel(s)
		},
		FormatMessage: func(i any) string {
			if i == nil {
				return ""
			}
			return fmt.Sprintf("> %s", i)
		},
	}

	writers := []io.Writer{consoleWriter}
	var closer io.Closer = nopCloser{}
	var fileErr error

	if logFilePath != "" {
		logDir := filepath.Dir(logFilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fileErr = fmt.Errorf("could not create log directory '%s': %w", logDir, err)
		} else if logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666); err != nil {
			fileErr = fmt.Errorf("could not open log file '%s': %w", logFilePath, err)
		} else {
			writers = append(writers, logFile)
			closer = logFile
		}
	}

	lvl, levelErr := ParseLevel(level)

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().Timestamp().Logger()

	if fileErr != nil {
		logger.Warn().Msgf("File logging disabled: %v", fileErr)
	}
	if levelErr != nil {
		logger.Warn().Msgf("Invalid log level '%s'. Using 'info' level.", level)
	}

	return logger, closer
}

// ParseLevel parses a level name, falling back to info. An empty name is
// info without an error.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q", level)
	}

	return lvl, nil
}

// Helper function to colorize console output
func colorizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "debug":
		return "\033[36mDBG\033[0m" // Cyan
	case "info":
		return "\033[32mINF\033[0m" // Green
	case "warn":
		return "\033[33mWRN\033[0m" // Yellow
	case "error":
		return "\033[31mERR\033[0m" // Red
	case "fatal":
		return "\033[35mFTL\033[0m" // Magenta
	case "panic":
		return "\033[41mPNC\033[0m" // Red background
	default:
		return level
	}
}
