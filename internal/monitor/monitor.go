package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tickle-go/internal/browser"
	"tickle-go/internal/helper"
	"tickle-go/internal/models"

	"github.com/rs/zerolog"
)

// Options tunes a SiteMonitor. Zero durations are replaced by the defaults.
type Options struct {
	DryRun bool
	// Concurrency caps simultaneous site checks; 0 means no cap.
	Concurrency int

	NavigationTimeout time.Duration
	LoadTimeout       time.Duration
	RenderDelay       time.Duration
	FrameIdleTimeout  time.Duration
	WakeTimeout       time.Duration
	SettleDelay       time.Duration
	SiteTimeout       time.Duration

	Dumper HTMLDumper
	// OnResult is called from the site's goroutine as soon as its result is
	// known. It must be safe for concurrent use.
	OnResult func(models.Result)
}

func DefaultOptions() Options {
	return Options{
		NavigationTimeout: 15 * time.Second,
		LoadTimeout:       10 * time.Second,
		RenderDelay:       3 * time.Second,
		FrameIdleTimeout:  10 * time.Second,
		WakeTimeout:       5 * time.Second,
		SettleDelay:       3 * time.Second,
		SiteTimeout:       2 * time.Minute,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = d.NavigationTimeout
	}
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = d.LoadTimeout
	}
	if o.RenderDelay < 0 {
		o.RenderDelay = 0
	}
	if o.FrameIdleTimeout <= 0 {
		o.FrameIdleTimeout = d.FrameIdleTimeout
	}
	if o.WakeTimeout <= 0 {
		o.WakeTimeout = d.WakeTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.SiteTimeout <= 0 {
		o.SiteTimeout = d.SiteTimeout
	}
	return o
}

// SiteMonitor runs liveness checks, with Streamlit wake-up recovery, against
// a set of sites.
type SiteMonitor struct {
	driver   browser.Driver
	prober   *Prober
	actuator *Actuator
	opts     Options
	logger   zerolog.Logger
}

func NewSiteMonitor(driver browser.Driver, opts Options, logger zerolog.Logger) (*SiteMonitor, error) {
	if driver == nil {
		return nil, errors.New("browser driver is required")
	}

	opts = opts.withDefaults()

	return &SiteMonitor{
		driver: driver,
		prober: &Prober{
			FrameIdleTimeout: opts.FrameIdleTimeout,
			Dumper:           opts.Dumper,
			Logger:           logger,
		},
		actuator: &Actuator{
			WakeTimeout: opts.WakeTimeout,
			Logger:      logger,
		},
		opts:   opts,
		logger: logger,
	}, nil
}

// CheckAll checks every site concurrently and returns one result per site
// in input order. A failing or hanging site never affects the others.
func (m *SiteMonitor) CheckAll(ctx context.Context, sites []models.Site) []models.Result {
	results := make([]models.Result, len(sites))

	var sem chan struct{}
	if m.opts.Concurrency > 0 {
		sem = make(chan struct{}, m.opts.Concurrency)
	}

	m.logger.Info().Int("sites", len(sites)).Bool("dry_run", m.opts.DryRun).Msg("starting site checks")

	var wg sync.WaitGroup
	for i, site := range sites {
		wg.Add(1)
		go func(i int, site models.Site) {
			defer wg.Done()

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					results[i] = models.Result{Name: site.Name(), Status: models.StatusError, Detail: helper.FirstLine(ctx.Err())}
					return
				}
			}

			results[i] = m.CheckSite(ctx, site)
			if m.opts.OnResult != nil {
				m.opts.OnResult(results[i])
			}
		}(i, site)
	}
	wg.Wait()

	return results
}

// CheckSite runs the full check of one site: validate, load, probe and, if
// the site is down, wake and probe again. The reported status is the
// verified one.
func (m *SiteMonitor) CheckSite(ctx context.Context, site models.Site) models.Result {
	logger := m.logger.With().Str("site", site.Name()).Logger()

	if err := site.ValidateURL(); err != nil {
		logger.Error().Msgf("Invalid URL '%s' - skipping: %v", site.URL(), err)
		return models.Result{Name: site.Name(), Status: models.StatusInvalid, Detail: err.Error()}
	}

	return m.guard(ctx, site, logger, func(ctx context.Context, page browser.Page) (models.Status, string) {
		return m.evaluate(ctx, page, site, logger)
	})
}

// Wake loads the site and clicks its wake-up control without verifying the
// outcome. It reports restarted when a control was clicked.
func (m *SiteMonitor) Wake(ctx context.Context, site models.Site) models.Result {
	logger := m.logger.With().Str("site", site.Name()).Logger()

	if err := site.ValidateURL(); err != nil {
		logger.Error().Msgf("Invalid URL '%s' - skipping: %v", site.URL(), err)
		return models.Result{Name: site.Name(), Status: models.StatusInvalid, Detail: err.Error()}
	}

	return m.guard(ctx, site, logger, func(ctx context.Context, page browser.Page) (models.Status, string) {
		if status, detail, ok := m.load(ctx, page, site, logger); !ok {
			return status, detail
		}
		return m.actuator.Wake(ctx, page, site, m.opts.DryRun), ""
	})
}

// Plan reports every site without opening a browser: dry_run for sites that
// would be checked and invalid for sites that could not be.
func Plan(sites []models.Site) []models.Result {
	results := make([]models.Result, 0, len(sites))
	for _, site := range sites {
		if err := site.ValidateURL(); err != nil {
			results = append(results, models.Result{Name: site.Name(), Status: models.StatusInvalid, Detail: err.Error()})
			continue
		}
		results = append(results, models.Result{Name: site.Name(), Status: models.StatusDryRun})
	}
	return results
}

type pageTask func(ctx context.Context, page browser.Page) (models.Status, string)

// guard runs task on a private page under the site deadline. The page is
// always closed, panics become error results, and a task that ignores its
// deadline is abandoned so the caller never blocks past it.
func (m *SiteMonitor) guard(ctx context.Context, site models.Site, logger zerolog.Logger, task pageTask) models.Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, m.opts.SiteTimeout)
	defer cancel()

	done := make(chan models.Result, 1)
	go func() {
		result := models.Result{Name: site.Name(), Status: models.StatusError}
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Msgf("check panicked: %v", r)
				result.Status = models.StatusError
				result.Detail = fmt.Sprintf("panic: %v", r)
			}
			done <- result
		}()

		page, err := m.driver.NewPage(ctx)
		if err != nil {
			result.Detail = helper.FirstLine(err)
			logger.Error().Msgf("failed to open browser page: %s", result.Detail)
			return
		}
		defer func() {
			if err := page.Close(); err != nil {
				logger.Debug().Err(err).Msg("failed to close browser page")
			}
		}()

		result.Status, result.Detail = task(ctx, page)
	}()

	var result models.Result
	select {
	case result = <-done:
	case <-ctx.Done():
		logger.Error().Msgf("check abandoned: %v", ctx.Err())
		result = models.Result{Name: site.Name(), Status: models.StatusError, Detail: helper.FirstLine(ctx.Err())}
	}

	result.Duration = time.Since(start)
	logger.Info().Str("status", string(result.Status)).Dur("duration", result.Duration).Msg("check finished")
	return result
}

// LoadTimings bound how a page is brought up before it is probed.
type LoadTimings struct {
	Navigation  time.Duration
	NetworkIdle time.Duration
	Render      time.Duration
}

func (o Options) loadTimings() LoadTimings {
	return LoadTimings{
		Navigation:  o.NavigationTimeout,
		NetworkIdle: o.LoadTimeout,
		Render:      o.RenderDelay,
	}
}

// NavigationError reports that the document itself could not be loaded.
type NavigationError struct {
	Err error
}

func (e *NavigationError) Error() string { return e.Err.Error() }
func (e *NavigationError) Unwrap() error { return e.Err }

// LoadPage navigates page to url, waits for the network to go quiet and then
// for the render delay. The quiet wait is best effort. Navigation failures
// are returned as *NavigationError; any other error is the context ending.
func LoadPage(ctx context.Context, page browser.Page, url string, timings LoadTimings, logger zerolog.Logger) error {
	if err := page.Navigate(ctx, url, timings.Navigation); err != nil {
		return &NavigationError{Err: err}
	}

	if err := page.WaitForNetworkIdle(ctx, timings.NetworkIdle); err != nil {
		logger.Debug().Msgf("page did not settle: %s", helper.FirstLine(err))
	}

	return sleep(ctx, timings.Render)
}

// load brings the site up for probing. ok is false when the page could not
// be loaded.
func (m *SiteMonitor) load(ctx context.Context, page browser.Page, site models.Site, logger zerolog.Logger) (models.Status, string, bool) {
	logger.Info().Msgf("Checking %s at %s", site.Name(), site.URL())

	err := LoadPage(ctx, page, site.URL(), m.opts.loadTimings(), logger)
	if err == nil {
		return "", "", true
	}

	detail := helper.FirstLine(err)
	var navErr *NavigationError
	if errors.As(err, &navErr) {
		logger.Error().Msgf("check failed: %s", detail)
		m.prober.DumpPage(ctx, page, site, "raw_timeout")
	}
	return models.StatusError, detail, false
}

func (m *SiteMonitor) evaluate(ctx context.Context, page browser.Page, site models.Site, logger zerolog.Logger) (models.Status, string) {
	if status, detail, ok := m.load(ctx, page, site, logger); !ok {
		return status, detail
	}

	probe := m.prober.Probe(ctx, page, site, "iframe")
	switch probe.Status {
	case models.StatusUp:
		return models.StatusUp, ""
	case models.StatusError:
		return models.StatusError, probe.Detail
	}

	if probe.FrameMissing {
		logger.Info().Msg("app frame missing - attempting restart")
	}

	if m.opts.DryRun {
		logger.Info().Msg("Dry run enabled - skipping wake-up.")
		return models.StatusDown, probe.Detail
	}

	if m.actuator.Wake(ctx, page, site, false) != models.StatusRestarted {
		return models.StatusDown, probe.Detail
	}

	logger.Info().Msg("Re-checking site after wake-up attempt...")
	if err := sleep(ctx, m.opts.SettleDelay); err != nil {
		return models.StatusDown, helper.FirstLine(err)
	}

	recheck := m.prober.Probe(ctx, page, site, "iframe_after_wakeup")
	if recheck.Status == models.StatusUp {
		logger.Info().Msg("Wake-up successful.")
		return models.StatusUp, ""
	}

	logger.Warn().Msgf("Wake-up attempted but site still down: %s", recheck.Detail)
	return models.StatusDown, recheck.Detail
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
