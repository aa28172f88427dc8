package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tickle-go/internal/browser/browsertest"
	"tickle-go/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerButton  = `button[data-testid="wakeup-button-owner"]`
	viewerButton = `button[data-testid="wakeup-button-viewer"]`
)

func testOptions() Options {
	return Options{
		NavigationTimeout: 200 * time.Millisecond,
		LoadTimeout:       50 * time.Millisecond,
		FrameIdleTimeout:  50 * time.Millisecond,
		WakeTimeout:       50 * time.Millisecond,
		SiteTimeout:       2 * time.Second,
	}
}

func newTestMonitor(t *testing.T, driver *browsertest.Driver, opts Options) *SiteMonitor {
	t.Helper()
	m, err := NewSiteMonitor(driver, opts, zerolog.Nop())
	require.NoError(t, err)
	return m
}

func newSite(t *testing.T, name, url string, streamlit bool) models.Site {
	t.Helper()
	site, err := models.NewSite(models.SiteSpec{
		Name:        name,
		URL:         url,
		Selector:    "div.stApp",
		IsStreamlit: streamlit,
		MustContain: "Dashboard ready",
	})
	require.NoError(t, err)
	return site
}

type recordingDumper struct {
	mu       sync.Mutex
	suffixes []string
}

func (d *recordingDumper) Dump(site, suffix, html string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suffixes = append(d.suffixes, suffix)
	return "/tmp/" + site + "_" + suffix + ".html"
}

func TestCheckSite(t *testing.T) {
	const url = "https://lookout.streamlit.app"

	testCases := []struct {
		name           string
		streamlit      bool
		dryRun         bool
		script         *browsertest.Site
		expectedStatus models.Status
		expectedClicks int
	}{
		{
			name:           "frame contains expected text",
			streamlit:      true,
			script:         &browsertest.Site{Frame: &browsertest.Frame{HTML: "<h1>Dashboard ready</h1>"}},
			expectedStatus: models.StatusUp,
		},
		{
			name:           "expected text surrounded by other content",
			streamlit:      true,
			script:         &browsertest.Site{Frame: &browsertest.Frame{HTML: "<div>header</div><p>xx Dashboard ready xx</p><footer/>"}},
			expectedStatus: models.StatusUp,
		},
		{
			name:      "match is case sensitive",
			streamlit: true,
			script: &browsertest.Site{
				Frame: &browsertest.Frame{HTML: "dashboard READY"},
			},
			expectedStatus: models.StatusDown,
		},
		{
			name:      "asleep and woken up",
			streamlit: true,
			script: &browsertest.Site{
				Controls:   []string{ownerButton},
				AwakeFrame: &browsertest.Frame{HTML: "Dashboard ready"},
			},
			expectedStatus: models.StatusUp,
			expectedClicks: 1,
		},
		{
			name:      "viewer wake-up control",
			streamlit: true,
			script: &browsertest.Site{
				Controls:   []string{viewerButton},
				AwakeFrame: &browsertest.Frame{HTML: "Dashboard ready"},
			},
			expectedStatus: models.StatusUp,
			expectedClicks: 1,
		},
		{
			name:      "woken up but frame still missing",
			streamlit: true,
			script: &browsertest.Site{
				Controls: []string{ownerButton},
			},
			expectedStatus: models.StatusDown,
			expectedClicks: 1,
		},
		{
			name:      "woken up but content still missing",
			streamlit: true,
			script: &browsertest.Site{
				Frame:      &browsertest.Frame{HTML: "Loading..."},
				Controls:   []string{ownerButton},
				AwakeFrame: &browsertest.Frame{HTML: "Still loading..."},
			},
			expectedStatus: models.StatusDown,
			expectedClicks: 1,
		},
		{
			name:           "asleep without wake-up control",
			streamlit:      true,
			script:         &browsertest.Site{},
			expectedStatus: models.StatusDown,
		},
		{
			name:      "wake-up click fails",
			streamlit: true,
			script: &browsertest.Site{
				Controls: []string{ownerButton},
				ClickErr: errors.New("element not visible"),
			},
			expectedStatus: models.StatusDown,
			expectedClicks: 1,
		},
		{
			name:      "dry run never clicks",
			streamlit: true,
			dryRun:    true,
			script: &browsertest.Site{
				Controls:   []string{ownerButton},
				AwakeFrame: &browsertest.Frame{HTML: "Dashboard ready"},
			},
			expectedStatus: models.StatusDown,
		},
		{
			name:      "frame content access fails",
			streamlit: true,
			script: &browsertest.Site{
				Frame: &browsertest.Frame{ContentErr: errors.New("frame was detached\nstack trace")},
			},
			expectedStatus: models.StatusDown,
		},
		{
			name:      "frame never settles",
			streamlit: true,
			script: &browsertest.Site{
				Frame: &browsertest.Frame{IdleErr: errors.New("network still busy")},
			},
			expectedStatus: models.StatusDown,
		},
		{
			name:           "plain site up",
			script:         &browsertest.Site{Document: "<body>Dashboard ready</body>"},
			expectedStatus: models.StatusUp,
		},
		{
			name: "plain site down has no recovery",
			script: &browsertest.Site{
				Document: "<body>502 Bad Gateway</body>",
				Controls: []string{ownerButton},
			},
			expectedStatus: models.StatusDown,
		},
		{
			name:           "plain site document unreadable",
			script:         &browsertest.Site{ContentErr: errors.New("target crashed")},
			expectedStatus: models.StatusError,
		},
		{
			name:           "navigation failure",
			streamlit:      true,
			script:         &browsertest.Site{NavigateErr: errors.New("net::ERR_CONNECTION_REFUSED")},
			expectedStatus: models.StatusError,
		},
		{
			name:           "navigation timeout",
			streamlit:      true,
			script:         &browsertest.Site{Hang: true},
			expectedStatus: models.StatusError,
		},
		{
			name:           "panic in driver",
			streamlit:      true,
			script:         &browsertest.Site{Panic: true},
			expectedStatus: models.StatusError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			driver := browsertest.NewDriver()
			driver.Serve(url, tc.script)

			opts := testOptions()
			opts.DryRun = tc.dryRun
			m := newTestMonitor(t, driver, opts)

			result := m.CheckSite(context.Background(), newSite(t, "lookout", url, tc.streamlit))

			assert.Equal(t, "lookout", result.Name)
			assert.Equal(t, tc.expectedStatus, result.Status, "detail: %s", result.Detail)
			assert.Equal(t, tc.expectedClicks, driver.Clicks(url))
			assert.Equal(t, 1, driver.Navigations(url))

			opened, closed := driver.Pages()
			assert.Equal(t, 1, opened)
			assert.Equal(t, opened, closed, "every page must be released")
		})
	}
}

func TestCheckSiteInvalidURL(t *testing.T) {
	driver := browsertest.NewDriver()
	m := newTestMonitor(t, driver, testOptions())

	for _, url := range []string{"not-a-url", "https://", "ftp://files.example.com", "file:///srv/dashboard.html", ""} {
		result := m.CheckSite(context.Background(), newSite(t, "broken", url, true))
		assert.Equal(t, models.StatusInvalid, result.Status, url)
	}

	assert.Equal(t, 0, driver.Navigations(""))
	opened, _ := driver.Pages()
	assert.Equal(t, 0, opened, "invalid sites must not consume browser resources")
}

func TestCheckSiteFirstLineDetail(t *testing.T) {
	const url = "https://lookout.streamlit.app"
	driver := browsertest.NewDriver()
	driver.Serve(url, &browsertest.Site{
		Frame: &browsertest.Frame{ContentErr: errors.New("frame was detached\n  at Frame.content\n  at check")},
	})

	m := newTestMonitor(t, driver, testOptions())
	result := m.CheckSite(context.Background(), newSite(t, "lookout", url, true))

	assert.Equal(t, models.StatusDown, result.Status)
	assert.Contains(t, result.Detail, "frame was detached")
	assert.NotContains(t, result.Detail, "\n")
}

func TestCheckSiteIdempotent(t *testing.T) {
	const url = "https://lookout.streamlit.app"
	driver := browsertest.NewDriver()
	driver.Serve(url, &browsertest.Site{
		Frame:    &browsertest.Frame{HTML: "Dashboard ready"},
		Controls: []string{ownerButton},
	})

	m := newTestMonitor(t, driver, testOptions())
	site := newSite(t, "lookout", url, true)

	first := m.CheckSite(context.Background(), site)
	second := m.CheckSite(context.Background(), site)

	assert.Equal(t, models.StatusUp, first.Status)
	assert.Equal(t, models.StatusUp, second.Status)
	assert.Equal(t, 0, driver.Clicks(url))
}

func TestCheckSiteDumpsRawHTML(t *testing.T) {
	const url = "https://lookout.streamlit.app"
	driver := browsertest.NewDriver()
	driver.Serve(url, &browsertest.Site{
		Document:   "<html>sleeping</html>",
		Controls:   []string{ownerButton},
		AwakeFrame: &browsertest.Frame{HTML: "Dashboard ready"},
	})

	dumper := &recordingDumper{}
	opts := testOptions()
	opts.Dumper = dumper
	m := newTestMonitor(t, driver, opts)

	site, err := models.NewSite(models.SiteSpec{
		Name:        "lookout",
		URL:         url,
		IsStreamlit: true,
		MustContain: "Dashboard ready",
		LogRaw:      true,
	})
	require.NoError(t, err)

	result := m.CheckSite(context.Background(), site)

	assert.Equal(t, models.StatusUp, result.Status)
	assert.Equal(t, []string{"raw_iframe", "iframe_after_wakeup"}, dumper.suffixes)
}

func TestCheckAll(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve("https://up.streamlit.app", &browsertest.Site{Frame: &browsertest.Frame{HTML: "Dashboard ready"}})
	driver.Serve("https://down.example.com", &browsertest.Site{Document: "maintenance"})
	driver.Serve("https://refused.example.com", &browsertest.Site{NavigateErr: errors.New("net::ERR_CONNECTION_REFUSED")})

	m := newTestMonitor(t, driver, testOptions())
	sites := []models.Site{
		newSite(t, "up", "https://up.streamlit.app", true),
		newSite(t, "down", "https://down.example.com", false),
		newSite(t, "refused", "https://refused.example.com", false),
		newSite(t, "invalid", "nope", true),
	}

	results := m.CheckAll(context.Background(), sites)

	require.Len(t, results, 4)
	assert.Equal(t, models.Result{Name: "up", Status: models.StatusUp}, withoutTiming(results[0]))
	assert.Equal(t, models.StatusDown, results[1].Status)
	assert.Equal(t, models.StatusError, results[2].Status)
	assert.Equal(t, models.StatusInvalid, results[3].Status)
	assert.Equal(t, "invalid", results[3].Name)
}

func TestCheckAllHangingSiteDoesNotBlockOthers(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve("https://hang.streamlit.app", &browsertest.Site{Hang: true})
	for _, url := range []string{"https://a.streamlit.app", "https://b.streamlit.app", "https://c.streamlit.app"} {
		driver.Serve(url, &browsertest.Site{Frame: &browsertest.Frame{HTML: "Dashboard ready"}})
	}

	var mu sync.Mutex
	finished := map[string]time.Duration{}
	start := time.Now()

	opts := testOptions()
	opts.NavigationTimeout = 500 * time.Millisecond
	opts.OnResult = func(r models.Result) {
		mu.Lock()
		defer mu.Unlock()
		finished[r.Name] = time.Since(start)
	}
	m := newTestMonitor(t, driver, opts)

	results := m.CheckAll(context.Background(), []models.Site{
		newSite(t, "hang", "https://hang.streamlit.app", true),
		newSite(t, "a", "https://a.streamlit.app", true),
		newSite(t, "b", "https://b.streamlit.app", true),
		newSite(t, "c", "https://c.streamlit.app", true),
	})
	elapsed := time.Since(start)

	assert.Equal(t, models.StatusError, results[0].Status)
	for _, r := range results[1:] {
		assert.Equal(t, models.StatusUp, r.Status, r.Name)
		assert.Less(t, finished[r.Name], 400*time.Millisecond, "%s waited for the hanging site", r.Name)
	}
	assert.Less(t, elapsed, 2*time.Second, "batch must end once the slowest timeout elapses")
}

func TestCheckAllConcurrencyLimit(t *testing.T) {
	driver := browsertest.NewDriver()
	var sites []models.Site
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		url := "https://" + name + ".example.com"
		driver.Serve(url, &browsertest.Site{Document: "Dashboard ready"})
		sites = append(sites, newSite(t, name, url, false))
	}

	opts := testOptions()
	opts.Concurrency = 2
	m := newTestMonitor(t, driver, opts)

	results := m.CheckAll(context.Background(), sites)

	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, sites[i].Name(), r.Name)
		assert.Equal(t, models.StatusUp, r.Status)
	}
}

func TestSiteDeadlineAbandonsStuckCheck(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve("https://stuck.streamlit.app", &browsertest.Site{Hang: true})

	opts := testOptions()
	opts.NavigationTimeout = time.Minute
	opts.SiteTimeout = 100 * time.Millisecond
	m := newTestMonitor(t, driver, opts)

	start := time.Now()
	result := m.CheckSite(context.Background(), newSite(t, "stuck", "https://stuck.streamlit.app", true))

	assert.Equal(t, models.StatusError, result.Status)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWake(t *testing.T) {
	const url = "https://lookout.streamlit.app"

	testCases := []struct {
		name           string
		dryRun         bool
		streamlit      bool
		controls       []string
		expectedStatus models.Status
		expectedClicks int
	}{
		{"control clicked", false, true, []string{ownerButton}, models.StatusRestarted, 1},
		{"no control", false, true, nil, models.StatusDown, 0},
		{"dry run", true, true, []string{ownerButton}, models.StatusDown, 0},
		{"not streamlit", false, false, []string{ownerButton}, models.StatusDown, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			driver := browsertest.NewDriver()
			driver.Serve(url, &browsertest.Site{Controls: tc.controls})

			opts := testOptions()
			opts.DryRun = tc.dryRun
			m := newTestMonitor(t, driver, opts)

			result := m.Wake(context.Background(), newSite(t, "lookout", url, tc.streamlit))

			assert.Equal(t, tc.expectedStatus, result.Status)
			assert.Equal(t, tc.expectedClicks, driver.Clicks(url))
		})
	}
}

func TestPlan(t *testing.T) {
	results := Plan([]models.Site{
		newSite(t, "ok", "https://ok.streamlit.app", true),
		newSite(t, "bad", "bad", true),
	})

	require.Len(t, results, 2)
	assert.Equal(t, models.Result{Name: "ok", Status: models.StatusDryRun}, results[0])
	assert.Equal(t, models.StatusInvalid, results[1].Status)
}

func TestNewSiteMonitorRequiresDriver(t *testing.T) {
	_, err := NewSiteMonitor(nil, Options{}, zerolog.Nop())
	assert.Error(t, err)
}

func withoutTiming(r models.Result) models.Result {
	r.Duration = 0
	return r
}

func TestLoadPage(t *testing.T) {
	const url = "https://lookout.streamlit.app"

	testCases := []struct {
		name           string
		site           *browsertest.Site
		render         time.Duration
		cancelled      bool
		expectNavError bool
		expectErr      error
	}{
		{
			name: "loads",
			site: &browsertest.Site{Document: "<html></html>"},
		},
		{
			name:           "navigation fails",
			site:           &browsertest.Site{NavigateErr: errors.New("net::ERR_CONNECTION_REFUSED")},
			expectNavError: true,
		},
		{
			name:      "cancelled during render delay",
			site:      &browsertest.Site{Document: "<html></html>"},
			render:    time.Hour,
			cancelled: true,
			expectErr: context.Canceled,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			driver := browsertest.NewDriver()
			driver.Serve(url, tc.site)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			page, err := driver.NewPage(ctx)
			require.NoError(t, err)
			defer page.Close()

			if tc.cancelled {
				time.AfterFunc(20*time.Millisecond, cancel)
			}

			err = LoadPage(ctx, page, url, LoadTimings{Render: tc.render}, zerolog.Nop())

			var navErr *NavigationError
			switch {
			case tc.expectNavError:
				require.ErrorAs(t, err, &navErr)
				assert.Equal(t, "net::ERR_CONNECTION_REFUSED", err.Error())
			case tc.expectErr != nil:
				assert.ErrorIs(t, err, tc.expectErr)
				assert.False(t, errors.As(err, &navErr))
			default:
				assert.NoError(t, err)
			}
			assert.Equal(t, 1, driver.Navigations(url))
		})
	}
}
