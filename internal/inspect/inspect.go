// Package inspect summarizes how a site's page is put together, to help
// choose must_contain and is_streamlit values for a new site.
package inspect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tickle-go/internal/browser"
	"tickle-go/internal/helper"
	"tickle-go/internal/models"
	"tickle-go/internal/monitor"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// MarkerSelectors identify Streamlit hosting in a top-level document.
var MarkerSelectors = []string{
	monitor.AppFrameSelector,
	`iframe[title*="streamlit"]`,
	`iframe[src*="streamlit"]`,
	"div.stApp",
	`[data-testid="stApp"]`,
	"#root",
	"main",
	".streamlit-container",
}

// ControlSelectors are the known wake-up buttons, including text-matched
// variants that the checker does not click.
var ControlSelectors = append(append([]string{}, monitor.WakeControlSelectors...),
	`button:contains("Yes, get this app back up!")`,
	`button:contains("Wake up")`,
	`button:contains("Restart")`,
)

type FrameInfo struct {
	Title string `json:"title,omitempty"`
	Src   string `json:"src,omitempty"`
}

type Marker struct {
	Selector string `json:"selector"`
	Found    bool   `json:"found"`
}

type Control struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

// Structure is the inspection summary of one page.
type Structure struct {
	Site             string      `json:"site"`
	URL              string      `json:"url"`
	Title            string      `json:"title"`
	Frames           []FrameInfo `json:"frames"`
	Markers          []Marker    `json:"markers"`
	Controls         []Control   `json:"controls"`
	ContainsExpected bool        `json:"contains_expected"`
	// AppFrame fields are set when the Streamlit app frame could be read.
	AppFrameRead             bool   `json:"app_frame_read"`
	AppFrameLength           int    `json:"app_frame_length,omitempty"`
	AppFrameContainsExpected bool   `json:"app_frame_contains_expected"`
	AppFrameError            string `json:"app_frame_error,omitempty"`
}

// Analyze parses a top-level document.
func Analyze(html string, site models.Site) (Structure, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Structure{}, fmt.Errorf("failed to parse page: %w", err)
	}

	s := Structure{
		Site:             site.Name(),
		URL:              site.URL(),
		Title:            strings.TrimSpace(doc.Find("title").First().Text()),
		Frames:           []FrameInfo{},
		Controls:         []Control{},
		ContainsExpected: strings.Contains(html, site.MustContain()),
	}

	doc.Find("iframe").Each(func(i int, sel *goquery.Selection) {
		title, _ := sel.Attr("title")
		src, _ := sel.Attr("src")
		s.Frames = append(s.Frames, FrameInfo{Title: title, Src: src})
	})

	for _, selector := range MarkerSelectors {
		s.Markers = append(s.Markers, Marker{Selector: selector, Found: doc.Find(selector).Length() > 0})
	}

	for _, selector := range ControlSelectors {
		if found := doc.Find(selector).First(); found.Length() > 0 {
			s.Controls = append(s.Controls, Control{Selector: selector, Text: strings.TrimSpace(found.Text())})
		}
	}

	return s, nil
}

// Options bound the page load of an inspection.
type Options struct {
	NavigationTimeout time.Duration
	LoadTimeout       time.Duration
	RenderDelay       time.Duration
	FrameIdleTimeout  time.Duration
	// Dumper receives the full page and frame HTML when set.
	Dumper monitor.HTMLDumper
	Logger zerolog.Logger
}

// Run loads site in a fresh page and inspects it. Unlike a check, any load
// failure is returned as an error.
func Run(ctx context.Context, driver browser.Driver, site models.Site, opts Options) (Structure, error) {
	if err := site.ValidateURL(); err != nil {
		return Structure{}, err
	}

	page, err := driver.NewPage(ctx)
	if err != nil {
		return Structure{}, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	timings := monitor.LoadTimings{
		Navigation:  opts.NavigationTimeout,
		NetworkIdle: opts.LoadTimeout,
		Render:      opts.RenderDelay,
	}
	if err := monitor.LoadPage(ctx, page, site.URL(), timings, opts.Logger); err != nil {
		return Structure{}, fmt.Errorf("failed to load %s: %w", site.URL(), err)
	}

	html, err := page.Content(ctx)
	if err != nil {
		return Structure{}, fmt.Errorf("failed to read page: %w", err)
	}
	if opts.Dumper != nil {
		opts.Dumper.Dump(site.Name(), "inspect_full", html)
	}

	s, err := Analyze(html, site)
	if err != nil {
		return Structure{}, err
	}

	frame, ok, err := page.Frame(ctx, monitor.AppFrameSelector)
	switch {
	case err != nil:
		s.AppFrameError = helper.FirstLine(err)
	case !ok:
		s.AppFrameError = "app frame not found"
	default:
		_ = frame.WaitForNetworkIdle(ctx, opts.FrameIdleTimeout)
		content, err := frame.Content(ctx)
		if err != nil {
			s.AppFrameError = helper.FirstLine(err)
			break
		}
		s.AppFrameRead = true
		s.AppFrameLength = len(content)
		s.AppFrameContainsExpected = strings.Contains(content, site.MustContain())
		if opts.Dumper != nil {
			opts.Dumper.Dump(site.Name(), "inspect_iframe", content)
		}
	}

	return s, nil
}
