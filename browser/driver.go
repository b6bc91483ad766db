// Package browser is a thin facade over a remote-controlled Chrome session.
//
// Everything the scrapers do to a page goes through Driver, so the scripted
// flows can be exercised against an in-memory fake (see browsertest) and the
// real session stays a small adapter around chromedp.
package browser

import (
	"context"
	"time"
)

// DefaultWaitTimeout bounds every wait for an element.
const DefaultWaitTimeout = 10 * time.Second

// Driver is the set of page operations the scrapers rely on.
// Implementations must not be shared between goroutines without external
// synchronization: one session belongs to one worker.
type Driver interface {
	// Navigate loads url in the current tab and waits for the document.
	Navigate(ctx context.Context, url string) error
	// WaitClickable waits until sel matches a visible element.
	WaitClickable(ctx context.Context, sel string) (Element, error)
	// WaitPresent waits until sel matches an element attached to the DOM.
	WaitPresent(ctx context.Context, sel string) (Element, error)
	// ScrollHeight reports the document's current scrollable height.
	ScrollHeight(ctx context.Context) (int64, error)
	// ScrollTo scrolls the window to vertical offset y.
	ScrollTo(ctx context.Context, y int64) error
	// Attributes returns attribute name of every element matching sel.
	// Elements without the attribute are skipped. No match is not an error.
	Attributes(ctx context.Context, sel, name string) ([]string, error)
	// SetValue assigns value to the form field matching sel.
	SetValue(ctx context.Context, sel, value string) error
	// Tabs lists the open page targets.
	Tabs(ctx context.Context) ([]Tab, error)
	// CloseOtherTabs closes every page target except the one being driven.
	CloseOtherTabs(ctx context.Context) error
	// Quit ends the session and releases the browser. Safe to call twice.
	Quit() error
}

// Element is a handle to a DOM node found by a wait.
type Element interface {
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	// Attribute reads the live value of an attribute; ok is false when absent.
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)
	OuterHTML(ctx context.Context) (string, error)
}

// Tab describes an open page target.
type Tab struct {
	ID    string
	URL   string
	Title string
}
