package models

import (
	"encoding/json"
	"fmt"
	"time"

	"tickle-go/internal/helper"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CheckRecord is one persisted result of one run.
type CheckRecord struct {
	ID         string    `json:"-" gorm:"primaryKey"`
	RunID      string    `json:"run_id" gorm:"index"`
	Name       string    `json:"name" gorm:"index"`
	Status     Status    `json:"status" gorm:"index"`
	Detail     string    `json:"detail,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CheckedAt  time.Time `json:"checked_at" gorm:"index"`
}

// SiteSummary is the latest known state of a site plus its run count.
type SiteSummary struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"last_check"`
	Checks    int64     `json:"checks"`
	UpChecks  int64     `json:"up_checks"`
}

// SiteHistory is the report for a single site.
type SiteHistory struct {
	Name      string        `json:"name"`
	Histories []CheckRecord `json:"histories"`
}

type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (r *CheckRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = helper.GenerateRandomID()
	}

	return nil
}

// Uptime returns the share of up checks in percent.
func (s SiteSummary) Uptime() float64 {
	if s.Checks == 0 {
		return 0
	}
	return float64(s.UpChecks) * 100 / float64(s.Checks)
}

func (r Response) Print() {
	data, err := json.Marshal(r)

	if err != nil {
		log.Error().Err(err).Msg("error serializing response")
		return
	}

	fmt.Println(string(data))
}
