// Package browsertest provides a scripted browser.Driver for tests.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"tickle-go/internal/browser"
)

// Frame scripts an embedded frame.
type Frame struct {
	HTML       string
	IdleErr    error
	ContentErr error
}

// Site scripts what a URL looks like to the browser.
type Site struct {
	// NavigateErr fails navigation.
	NavigateErr error
	// Hang blocks navigation until the context is done.
	Hang bool
	// Document is the top-level HTML.
	Document   string
	ContentErr error
	// Frame is the embedded frame before any click; nil means absent.
	Frame *Frame
	// Controls are the selectors present in the top-level document.
	Controls []string
	ClickErr error
	// AwakeFrame replaces Frame after a successful click.
	AwakeFrame *Frame
	// Panic makes navigation panic.
	Panic bool
}

// Driver serves scripted sites keyed by URL and counts calls.
type Driver struct {
	mu          sync.Mutex
	sites       map[string]*Site
	navigations map[string]int
	clicks      map[string]int
	opened      int
	closed      int
}

func NewDriver() *Driver {
	return &Driver{
		sites:       make(map[string]*Site),
		navigations: make(map[string]int),
		clicks:      make(map[string]int),
	}
}

// Serve registers the script for url.
func (d *Driver) Serve(url string, site *Site) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sites[url] = site
}

// Navigations returns the number of navigations to url, or to any URL when
// url is empty.
func (d *Driver) Navigations(url string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return count(d.navigations, url)
}

// Clicks returns the number of clicks on pages showing url, or on any page
// when url is empty.
func (d *Driver) Clicks(url string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return count(d.clicks, url)
}

// Pages returns how many pages were opened and closed.
func (d *Driver) Pages() (opened, closed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened, d.closed
}

func count(m map[string]int, key string) int {
	if key != "" {
		return m[key]
	}
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}

func (d *Driver) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened++
	return &page{driver: d}, nil
}

func (d *Driver) Close() error {
	return nil
}

type page struct {
	driver  *Driver
	url     string
	site    *Site
	clicked bool
	closed  bool
}

func (p *page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if p.closed {
		return browser.ErrClosed
	}

	p.driver.mu.Lock()
	p.driver.navigations[url]++
	site := p.driver.sites[url]
	p.driver.mu.Unlock()

	if site == nil {
		return errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	if site.Panic {
		panic("scripted navigation panic")
	}
	if site.Hang {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return context.DeadlineExceeded
		}
	}
	if site.NavigateErr != nil {
		return site.NavigateErr
	}

	p.url = url
	p.site = site
	return nil
}

func (p *page) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return ctx.Err()
}

func (p *page) Content(ctx context.Context) (string, error) {
	if p.site == nil {
		return "", errors.New("no document loaded")
	}
	if p.site.ContentErr != nil {
		return "", p.site.ContentErr
	}
	return p.site.Document, nil
}

func (p *page) Frame(ctx context.Context, selector string) (browser.Frame, bool, error) {
	if p.site == nil {
		return nil, false, errors.New("no document loaded")
	}
	f := p.site.Frame
	if p.clicked {
		f = p.site.AwakeFrame
	}
	if f == nil {
		return nil, false, nil
	}
	return &frame{script: f}, true, nil
}

func (p *page) WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (string, bool, error) {
	if p.site == nil {
		return "", false, errors.New("no document loaded")
	}
	for _, selector := range selectors {
		for _, control := range p.site.Controls {
			if control == selector {
				return selector, true, nil
			}
		}
	}
	return "", false, nil
}

func (p *page) Click(ctx context.Context, selector string) error {
	if p.site == nil {
		return errors.New("no document loaded")
	}

	p.driver.mu.Lock()
	p.driver.clicks[p.url]++
	p.driver.mu.Unlock()

	if p.site.ClickErr != nil {
		return p.site.ClickErr
	}
	p.clicked = true
	return nil
}

func (p *page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	p.driver.mu.Lock()
	defer p.driver.mu.Unlock()
	p.driver.closed++
	return nil
}

type frame struct {
	script *Frame
}

func (f *frame) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if f.script.IdleErr != nil {
		return f.script.IdleErr
	}
	return ctx.Err()
}

func (f *frame) Content(ctx context.Context) (string, error) {
	if f.script.ContentErr != nil {
		return "", f.script.ContentErr
	}
	return f.script.HTML, nil
}
