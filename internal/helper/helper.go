package helper

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	durationPattern     = regexp.MustCompile(`(\d+)([smhdM])`)
	fullDurationPattern = regexp.MustCompile(`^(\d+[smhdM])+$`)
)

func GenerateRandomID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// ParseDuration parses Go durations such as "500ms", "1.5s" or "1h30m",
// plus whole-number day forms such as "31d" or "1M" (30 days). Negative or
// invalid input falls back to defaultValue.
func ParseDuration(input string, defaultValue string) time.Duration {
	input = strings.TrimSpace(input)

	if d, err := time.ParseDuration(input); err == nil {
		if d < 0 {
			return ParseDuration(defaultValue, "")
		}
		return d
	}

	if !fullDurationPattern.MatchString(input) {
		if defaultValue == "" {
			return 0
		}
		return ParseDuration(defaultValue, "")
	}

	var total time.Duration
	for _, match := range durationPattern.FindAllStringSubmatch(input, -1) {
		value, _ := strconv.Atoi(match[1])

		switch match[2] {
		case "s":
			total += time.Duration(value) * time.Second
		case "m":
			total += time.Duration(value) * time.Minute
		case "h":
			total += time.Duration(value) * time.Hour
		case "d":
			total += time.Duration(value) * 24 * time.Hour
		case "M":
			total += time.Duration(value) * 24 * time.Hour * 30
		}
	}

	return total
}

// FirstLine returns the first line of an error message, trimmed.
func FirstLine(err error) string {
	if err == nil {
		return ""
	}
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return strings.TrimSpace(msg)
}
