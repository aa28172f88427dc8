package models

import "time"

// Status is the outcome token of a site check. The values are part of the
// report log format and must not change.
type Status string

const (
	StatusUp        Status = "up"
	StatusDown      Status = "down"
	StatusRestarted Status = "restarted"
	StatusError     Status = "error"
	StatusInvalid   Status = "invalid"
	StatusDryRun    Status = "dry_run"
)

// Statuses lists every status token in display order.
var Statuses = []Status{StatusUp, StatusDown, StatusRestarted, StatusError, StatusInvalid, StatusDryRun}

// Glyph returns the symbol printed next to a site in check output.
func (s Status) Glyph() string {
	switch s {
	case StatusUp:
		return "✅"
	case StatusDown:
		return "❌"
	case StatusRestarted:
		return "🔄"
	case StatusError:
		return "⚠️"
	case StatusDryRun:
		return "🔍"
	default:
		return "❓"
	}
}

// Valid reports whether s is one of the known tokens.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Healthy reports whether the site was verified to serve its content.
func (s Status) Healthy() bool {
	return s == StatusUp
}

// Result is the outcome of checking one site in one run.
type Result struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"-"`
}
