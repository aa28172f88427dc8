package incident

import (
	"fmt"
	"time"

	"tickle-go/internal/models"
)

// Event is a status transition of one site between two runs.
type Event struct {
	Site     string        `json:"site"`
	Type     Type          `json:"type"`
	Severity Severity      `json:"severity"`
	Status   Status        `json:"status"`
	Previous models.Status `json:"previous,omitempty"`
	Current  models.Status `json:"current"`
	Detail   string        `json:"detail,omitempty"`
	At       time.Time     `json:"checked_at"`
}

func (e Event) Message() string {
	switch e.Type {
	case SiteRecovered:
		return fmt.Sprintf("%s is up again (was %s)", e.Site, e.Previous)
	case SiteError:
		return fmt.Sprintf("%s could not be checked: %s", e.Site, e.Detail)
	default:
		if e.Detail == "" {
			return fmt.Sprintf("%s is down", e.Site)
		}
		return fmt.Sprintf("%s is down: %s", e.Site, e.Detail)
	}
}

// Detect compares results against the previous status of each site and
// returns the transitions worth reporting. A site seen for the first time
// only raises an event when it is not up. invalid and dry_run results are
// ignored.
func Detect(previous map[string]models.Status, results []models.Result, at time.Time) []Event {
	var events []Event

	for _, r := range results {
		prev, seen := previous[r.Name]
		if seen && prev == r.Status {
			continue
		}

		event := Event{
			Site:     r.Name,
			Previous: prev,
			Current:  r.Status,
			Detail:   r.Detail,
			At:       at,
		}

		switch r.Status {
		case models.StatusUp:
			if !seen {
				continue
			}
			event.Type, event.Severity, event.Status = SiteRecovered, INFO, Resolved
		case models.StatusDown:
			event.Type, event.Severity, event.Status = SiteDown, HIGH, OnInvestigation
		case models.StatusError:
			event.Type, event.Severity, event.Status = SiteError, MEDIUM, OnInvestigation
		default:
			continue
		}

		events = append(events, event)
	}

	return events
}
