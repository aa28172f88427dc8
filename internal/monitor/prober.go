package monitor

import (
	"context"
	"strings"
	"time"

	"tickle-go/internal/browser"
	"tickle-go/internal/helper"
	"tickle-go/internal/models"

	"github.com/rs/zerolog"
)

// AppFrameSelector matches the frame Streamlit Community Cloud renders the
// app into. The shell page shows it only while the app is awake.
const AppFrameSelector = `iframe[title="streamlitApp"]`

// HTMLDumper persists raw HTML for debugging. Implementations must not fail.
type HTMLDumper interface {
	Dump(site, suffix, html string) string
}

// Probe is the outcome of one liveness probe.
type Probe struct {
	Status models.Status
	// FrameMissing is set when a Streamlit site shows no app frame, which
	// usually means the app is asleep.
	FrameMissing bool
	Detail       string
}

// Prober decides whether a loaded page serves the expected content.
type Prober struct {
	FrameIdleTimeout time.Duration
	Dumper           HTMLDumper
	Logger           zerolog.Logger
}

// Probe inspects page, which must already show site's URL. Streamlit sites
// are judged by their app frame, other sites by the top-level document.
// The result is up, down or error; error means the document could not be
// read at all.
func (p *Prober) Probe(ctx context.Context, page browser.Page, site models.Site, phase string) Probe {
	logger := p.Logger.With().Str("site", site.Name()).Logger()

	if !site.IsStreamlit() {
		return p.probeDocument(ctx, page, site, logger)
	}

	frame, ok, err := page.Frame(ctx, AppFrameSelector)
	if err != nil {
		detail := helper.FirstLine(err)
		logger.Warn().Msgf("app frame lookup failed: %s", detail)
		return Probe{Status: models.StatusDown, Detail: detail}
	}

	if !ok {
		logger.Info().Msg("no app frame found")
		p.DumpPage(ctx, page, site, "raw_iframe")
		return Probe{Status: models.StatusDown, FrameMissing: true, Detail: "app frame not found"}
	}

	if err := frame.WaitForNetworkIdle(ctx, p.FrameIdleTimeout); err != nil {
		detail := helper.FirstLine(err)
		logger.Warn().Msgf("app frame did not settle: %s", detail)
		p.DumpPage(ctx, page, site, "raw_iframe")
		return Probe{Status: models.StatusDown, Detail: detail}
	}

	content, err := frame.Content(ctx)
	if err != nil {
		detail := helper.FirstLine(err)
		logger.Warn().Msgf("app frame content check failed: %s", detail)
		p.DumpPage(ctx, page, site, "raw_iframe")
		return Probe{Status: models.StatusDown, Detail: detail}
	}

	if site.LogRaw() && p.Dumper != nil {
		p.Dumper.Dump(site.Name(), phase, content)
	}

	return match(content, site, logger)
}

func (p *Prober) probeDocument(ctx context.Context, page browser.Page, site models.Site, logger zerolog.Logger) Probe {
	content, err := page.Content(ctx)
	if err != nil {
		detail := helper.FirstLine(err)
		logger.Error().Msgf("failed to read page: %s", detail)
		return Probe{Status: models.StatusError, Detail: detail}
	}

	if site.LogRaw() && p.Dumper != nil {
		p.Dumper.Dump(site.Name(), "raw", content)
	}

	return match(content, site, logger)
}

func match(content string, site models.Site, logger zerolog.Logger) Probe {
	needle := site.MustContain()
	if strings.Contains(content, needle) {
		logger.Info().Msgf("Found '%s'. Site is up.", needle)
		return Probe{Status: models.StatusUp}
	}

	logger.Warn().Msgf("Not found: '%s'. Site is down.", needle)
	return Probe{Status: models.StatusDown, Detail: "expected content missing"}
}

// DumpPage stores the top-level HTML when the site asks for raw logging.
func (p *Prober) DumpPage(ctx context.Context, page browser.Page, site models.Site, suffix string) {
	if !site.LogRaw() || p.Dumper == nil {
		return
	}

	html, err := page.Content(ctx)
	if err != nil {
		p.Logger.Warn().Str("site", site.Name()).Msgf("failed to dump page HTML: %s", helper.FirstLine(err))
		return
	}
	p.Dumper.Dump(site.Name(), suffix, html)
}
