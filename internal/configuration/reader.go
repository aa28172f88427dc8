package configuration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"tickle-go/internal/models"

	"github.com/rs/zerolog"
)

var ErrNoSites = errors.New("no usable sites configured")

var requiredKeys = []string{"name", "url", "selector", "is_streamlit", "must_contain"}

// Rejection describes a sites-file entry that was dropped while loading.
type Rejection struct {
	Index  int    `json:"index"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

func (r Rejection) String() string {
	if r.Name == "" {
		return fmt.Sprintf("entry %d: %s", r.Index, r.Reason)
	}
	return fmt.Sprintf("entry %d (%s): %s", r.Index, r.Name, r.Reason)
}

type SitesReader struct {
	logger zerolog.Logger
}

func NewSitesReader(logger zerolog.Logger) *SitesReader {
	return &SitesReader{logger: logger}
}

// LoadSites reads the JSON sites file at path. A missing or malformed file is
// an error; individual bad entries are dropped and returned as rejections.
func LoadSites(path string, logger zerolog.Logger) ([]models.Site, []Rejection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sites file: %w", err)
	}

	return NewSitesReader(logger).Parse(data)
}

func (r *SitesReader) Parse(data []byte) ([]models.Site, []Rejection, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil, fmt.Errorf("invalid sites file, expected a JSON array: %w", err)
	}

	var sites []models.Site
	var rejections []Rejection
	seen := make(map[string]bool)

	for i, raw := range entries {
		site, reason := r.parseEntry(raw)
		if reason == "" && seen[site.Name()] {
			reason = "duplicate name"
		}

		if reason != "" {
			rejection := Rejection{Index: i, Name: site.Name(), Reason: reason}
			if rejection.Name == "" {
				rejection.Name = peekName(raw)
			}
			r.logger.Error().Int("index", i).Str("site", rejection.Name).Msgf("dropping site entry: %s", reason)
			rejections = append(rejections, rejection)
			continue
		}

		if err := site.ValidateURL(); err != nil {
			r.logger.Warn().Str("site", site.Name()).Msgf("site url '%s' is invalid and will be reported as invalid: %v", site.URL(), err)
		}

		seen[site.Name()] = true
		sites = append(sites, site)
	}

	if len(sites) == 0 {
		return nil, rejections, ErrNoSites
	}

	return sites, rejections, nil
}

// parseEntry returns the site or the reason it was rejected.
func (r *SitesReader) parseEntry(raw json.RawMessage) (models.Site, string) {
	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil || entry == nil {
		return models.Site{}, "entry is not an object"
	}

	for _, key := range requiredKeys {
		if _, ok := entry[key]; !ok {
			return models.Site{}, fmt.Sprintf("missing required key '%s'", key)
		}
	}

	spec := models.SiteSpec{}
	var ok bool

	if spec.Name, ok = entry["name"].(string); !ok {
		return models.Site{}, "name must be a string"
	}
	if spec.URL, ok = entry["url"].(string); !ok {
		return models.Site{}, "url must be a string"
	}
	if spec.Selector, ok = entry["selector"].(string); !ok {
		return models.Site{}, "selector must be a string"
	}
	if spec.IsStreamlit, ok = entry["is_streamlit"].(bool); !ok {
		return models.Site{}, "is_streamlit must be a boolean"
	}
	if spec.MustContain, ok = entry["must_contain"].(string); !ok {
		return models.Site{}, "must_contain must be a string"
	}

	if value, present := entry["log_raw"]; present {
		if spec.LogRaw, ok = value.(bool); !ok {
			return models.Site{}, "log_raw must be a boolean"
		}
	}

	site, err := models.NewSite(spec)
	if err != nil {
		return models.Site{}, err.Error()
	}

	return site, ""
}

func peekName(raw json.RawMessage) string {
	var entry struct {
		Name any `json:"name"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return ""
	}
	name, _ := entry.Name.(string)
	return name
}
