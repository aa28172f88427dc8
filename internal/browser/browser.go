// Package browser defines the automation capabilities the checker needs and
// a chromedp implementation of them.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by pages used after Close.
var ErrClosed = errors.New("browser page closed")

// Driver opens isolated pages. Each page has its own browser context, so
// cookies, storage and crashes do not leak between pages.
type Driver interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab owned by one site check.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// WaitForNetworkIdle blocks until no request has been in flight for a
	// short settling window.
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	// Content returns the serialized top-level document.
	Content(ctx context.Context) (string, error)
	// Frame looks up an embedded frame element. A missing frame is reported
	// as ok == false with a nil error.
	Frame(ctx context.Context, selector string) (frame Frame, ok bool, err error)
	// WaitForAny waits until one of selectors matches in the top-level
	// document and returns it. A timeout is reported as ok == false with a
	// nil error.
	WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (matched string, ok bool, err error)
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// Close releases the page and its browser context.
	Close() error
}

// Frame is the nested document of an embedded frame element.
type Frame interface {
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	Content(ctx context.Context) (string, error)
}
