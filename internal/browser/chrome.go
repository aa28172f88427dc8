package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

const (
	// idleWindow is how long a document must go without in-flight
	// requests to count as quiescent.
	idleWindow   = 500 * time.Millisecond
	pollInterval = 100 * time.Millisecond
	queryTimeout = 10 * time.Second
)

// frameHTMLScript reads the document of a same-origin frame element.
const frameHTMLScript = `(() => {
	const el = document.querySelector(%q);
	if (!el) throw new Error("frame element detached");
	const doc = el.contentDocument;
	if (!doc || !doc.documentElement) throw new Error("frame document not accessible");
	return doc.documentElement.outerHTML;
})()`

type ChromeOptions struct {
	Headless bool
	// NoSandbox is needed when running as root, as in most containers.
	NoSandbox bool
	ExecPath  string
	UserAgent string
}

// Chrome drives a local Chrome or Chromium through the DevTools protocol.
type Chrome struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        zerolog.Logger
}

// NewChrome starts a browser process. Pages opened from it each get their
// own browser context.
func NewChrome(ctx context.Context, opts ChromeOptions, logger zerolog.Logger) (*Chrome, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug().Msgf("[chromedp] "+format, args...)
		}),
	)

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Debug().Bool("headless", opts.Headless).Msg("browser started")

	return &Chrome{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        logger,
	}, nil
}

func (c *Chrome) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(c.browserCtx, chromedp.WithNewBrowserContext())

	p := &chromePage{
		ctx:          tabCtx,
		cancel:       cancel,
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
	}
	chromedp.ListenTarget(tabCtx, p.onEvent)

	// Creating the target must not run under a derived timeout context, so
	// the caller's cancellation closes the tab instead.
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tabCtx, network.Enable())
	stop()
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("open page: %w", ctx.Err())
		}
		return nil, fmt.Errorf("open page: %w", err)
	}

	return p, nil
}

func (c *Chrome) Close() error {
	c.browserCancel()
	c.allocCancel()
	c.logger.Debug().Msg("browser stopped")
	return nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
}

func (p *chromePage) onEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		p.track(e.RequestID, true)
	case *network.EventLoadingFinished:
		p.track(e.RequestID, false)
	case *network.EventLoadingFailed:
		p.track(e.RequestID, false)
	}
}

func (p *chromePage) track(id network.RequestID, started bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if started {
		p.inflight[id] = struct{}{}
	} else {
		delete(p.inflight, id)
	}
	p.lastActivity = time.Now()
}

func (p *chromePage) idleFor() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.inflight) > 0 {
		return 0
	}
	return time.Since(p.lastActivity)
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if timeout <= 0 {
		timeout = queryTimeout
	}

	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if p.closed.Load() {
		return ErrClosed
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if p.idleFor() >= idleWindow {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("network still busy after %s", timeout)
		case <-ticker.C:
		}
	}
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, queryTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

func (p *chromePage) query(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, queryTimeout, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)))
	if err != nil {
		return false, fmt.Errorf("query %s: %w", selector, err)
	}
	return len(nodes) > 0, nil
}

func (p *chromePage) Frame(ctx context.Context, selector string) (Frame, bool, error) {
	found, err := p.query(ctx, selector)
	if err != nil || !found {
		return nil, false, err
	}
	return &chromeFrame{page: p, selector: selector}, true, nil
}

func (p *chromePage) WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (string, bool, error) {
	return pollAny(ctx, selectors, timeout, 2*pollInterval, p.query)
}

// pollAny runs query over selectors every interval until one matches, the
// timeout passes or ctx ends. A timeout is not an error.
func pollAny(ctx context.Context, selectors []string, timeout, interval time.Duration, query func(context.Context, string) (bool, error)) (string, bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, selector := range selectors {
			found, err := query(ctx, selector)
			if err != nil {
				return "", false, err
			}
			if found {
				return selector, true, nil
			}
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-deadline.C:
			return "", false, nil
		case <-ticker.C:
		}
	}
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, queryTimeout, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.closeErr = chromedp.Cancel(p.ctx)
		p.cancel()
	})
	return p.closeErr
}

type chromeFrame struct {
	page     *chromePage
	selector string
}

func (f *chromeFrame) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return f.page.WaitForNetworkIdle(ctx, timeout)
}

func frameScript(selector string) string {
	return fmt.Sprintf(frameHTMLScript, selector)
}

func (f *chromeFrame) Content(ctx context.Context) (string, error) {
	var html string
	if err := f.page.run(ctx, queryTimeout, chromedp.Evaluate(frameScript(f.selector), &html)); err != nil {
		return "", fmt.Errorf("read frame document: %w", err)
	}
	return html, nil
}
