package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrEmptyName        = errors.New("site name cannot be empty")
	ErrEmptyMustContain = errors.New("must_contain cannot be empty")
)

// SiteSpec carries the raw fields of a site entry before validation.
type SiteSpec struct {
	Name        string `json:"name" yaml:"name"`
	URL         string `json:"url" yaml:"url"`
	Selector    string `json:"selector" yaml:"selector"`
	IsStreamlit bool   `json:"is_streamlit" yaml:"is_streamlit"`
	MustContain string `json:"must_contain" yaml:"must_contain"`
	LogRaw      bool   `json:"log_raw" yaml:"log_raw"`
}

// Site is a validated monitoring target. It is only built by NewSite and is
// passed by value, so a Site never changes after loading.
type Site struct {
	name        string
	url         string
	selector    string
	isStreamlit bool
	mustContain string
	logRaw      bool
}

// NewSite validates spec and returns the corresponding Site. The URL is not
// checked here; see ValidateURL.
func NewSite(spec SiteSpec) (Site, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return Site{}, ErrEmptyName
	}
	if spec.MustContain == "" {
		return Site{}, fmt.Errorf("%s: %w", spec.Name, ErrEmptyMustContain)
	}

	return Site{
		name:        spec.Name,
		url:         strings.TrimSpace(spec.URL),
		selector:    spec.Selector,
		isStreamlit: spec.IsStreamlit,
		mustContain: spec.MustContain,
		logRaw:      spec.LogRaw,
	}, nil
}

func (s Site) Name() string        { return s.name }
func (s Site) URL() string         { return s.url }
func (s Site) Selector() string    { return s.selector }
func (s Site) IsStreamlit() bool   { return s.isStreamlit }
func (s Site) MustContain() string { return s.mustContain }
func (s Site) LogRaw() bool        { return s.logRaw }

// Spec returns the raw form of s, used when printing the configuration.
func (s Site) Spec() SiteSpec {
	return SiteSpec{
		Name:        s.name,
		URL:         s.url,
		Selector:    s.selector,
		IsStreamlit: s.isStreamlit,
		MustContain: s.mustContain,
		LogRaw:      s.logRaw,
	}
}

// ValidateURL checks that the site URL is an absolute http or https URL with
// a host.
func (s Site) ValidateURL() error {
	return ValidateURL(s.url)
}

// ValidateURL checks that raw is an absolute http or https URL with a host.
// Other schemes are refused even with a host: the browser would open them
// as local or internal pages rather than a hosted dashboard.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse url: %w", err)
	}

	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("url must be an absolute http or https url")
	}

	if u.Host == "" || u.Hostname() == "" {
		return fmt.Errorf("url has no host")
	}

	return nil
}
