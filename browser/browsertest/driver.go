// Package browsertest provides a scriptable in-memory browser.Driver.
package browsertest

import (
	"context"
	"fmt"
	"sync"

	"ytscrape/browser"
)

// Driver is a fake browser session. Elements are registered by selector;
// waits for unregistered selectors fail with browser.ErrElementTimeout.
type Driver struct {
	mu sync.Mutex

	// Heights is the sequence ScrollHeight returns, one value per call. The
	// last value repeats once the sequence is exhausted.
	Heights   []int64
	heightIdx int

	elements    map[string]*Element
	attrs       map[string][]string
	values      map[string]string
	tabs        []browser.Tab
	errs        map[string][]error
	scrolls     []int64
	navigations []string
	quits       int
}

// New returns an empty fake with a single open tab.
func New() *Driver {
	return &Driver{
		elements: make(map[string]*Element),
		attrs:    make(map[string][]string),
		values:   make(map[string]string),
		errs:     make(map[string][]error),
		tabs:     []browser.Tab{{ID: "tab-0", URL: "about:blank"}},
	}
}

var _ browser.Driver = (*Driver)(nil)

// Add registers el under sel and returns it.
func (d *Driver) Add(sel string, el *Element) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el == nil {
		el = &Element{}
	}
	el.Selector = sel
	el.d = d
	d.elements[sel] = el
	return el
}

// Remove unregisters sel.
func (d *Driver) Remove(sel string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, sel)
}

// SetAttributes sets the values Attributes returns for sel and name.
func (d *Driver) SetAttributes(sel, name string, values ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attrs[sel+"@"+name] = values
}

// SetTabs replaces the open tab list.
func (d *Driver) SetTabs(tabs ...browser.Tab) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tabs = tabs
}

// FailNext queues errors returned by the next calls of op. op is a method
// name, optionally followed by ":" and a selector, e.g. "WaitClickable:#go".
func (d *Driver) FailNext(op string, errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs[op] = append(d.errs[op], errs...)
}

func (d *Driver) popErr(keys ...string) error {
	for _, k := range keys {
		if q := d.errs[k]; len(q) > 0 {
			d.errs[k] = q[1:]
			return q[0]
		}
	}
	return nil
}

// Scrolls returns every offset passed to ScrollTo.
func (d *Driver) Scrolls() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.scrolls...)
}

// HeightReads returns how many times ScrollHeight was called.
func (d *Driver) HeightReads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.heightIdx
}

// Navigations returns every URL passed to Navigate.
func (d *Driver) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigations...)
}

// Value returns what SetValue stored for sel.
func (d *Driver) Value(sel string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.values[sel]
}

// Quits returns how many times Quit was called.
func (d *Driver) Quits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quits
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: navigate: %v", browser.ErrSessionTerminated, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.popErr("Navigate:"+url, "Navigate"); err != nil {
		return err
	}
	d.navigations = append(d.navigations, url)
	if len(d.tabs) > 0 {
		d.tabs[0].URL = url
	}
	return nil
}

func (d *Driver) WaitClickable(ctx context.Context, sel string) (browser.Element, error) {
	return d.wait(ctx, "WaitClickable", sel)
}

func (d *Driver) WaitPresent(ctx context.Context, sel string) (browser.Element, error) {
	return d.wait(ctx, "WaitPresent", sel)
}

func (d *Driver) wait(ctx context.Context, op, sel string) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", browser.ErrSessionTerminated, op, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.popErr(op+":"+sel, op); err != nil {
		return nil, err
	}
	el, ok := d.elements[sel]
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", browser.ErrElementTimeout, op, sel)
	}
	return el, nil
}

func (d *Driver) ScrollHeight(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: scroll height: %v", browser.ErrSessionTerminated, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.popErr("ScrollHeight"); err != nil {
		return 0, err
	}
	if len(d.Heights) == 0 {
		d.heightIdx++
		return 0, nil
	}
	i := d.heightIdx
	if i >= len(d.Heights) {
		i = len(d.Heights) - 1
	}
	d.heightIdx++
	return d.Heights[i], nil
}

func (d *Driver) ScrollTo(ctx context.Context, y int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: scroll: %v", browser.ErrSessionTerminated, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.popErr("ScrollTo"); err != nil {
		return err
	}
	d.scrolls = append(d.scrolls, y)
	return nil
}

func (d *Driver) Attributes(ctx context.Context, sel, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: attributes: %v", browser.ErrSessionTerminated, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.popErr("Attributes:"+sel, "Attributes"); err != nil {
		return nil, err
	}
	return append([]string(nil), d.attrs[sel+"@"+name]...), nil
}

func (d *Driver) SetValue(ctx context.Context, sel, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.popErr("SetValue:"+sel, "SetValue"); err != nil {
		return err
	}
	d.values[sel] = value
	return nil
}

func (d *Driver) Tabs(ctx context.Context) ([]browser.Tab, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]browser.Tab(nil), d.tabs...), nil
}

// CloseOtherTabs keeps the first tab, which the fake treats as current.
func (d *Driver) CloseOtherTabs(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.popErr("CloseOtherTabs"); err != nil {
		return err
	}
	if len(d.tabs) > 1 {
		d.tabs = d.tabs[:1]
	}
	return nil
}

func (d *Driver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quits++
	return nil
}

// Element is a fake DOM node.
type Element struct {
	Selector string
	Attrs    map[string]string
	HTML     string
	// OnClick runs after a successful click, outside the driver lock, so it
	// may register or remove elements.
	OnClick func()

	d      *Driver
	clicks int
	typed  []string
}

func (e *Element) Click(ctx context.Context) error {
	e.d.mu.Lock()
	if err := e.d.popErr("Click:" + e.Selector); err != nil {
		e.d.mu.Unlock()
		return err
	}
	e.clicks++
	hook := e.OnClick
	e.d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (e *Element) SendKeys(ctx context.Context, text string) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if err := e.d.popErr("SendKeys:" + e.Selector); err != nil {
		return err
	}
	e.typed = append(e.typed, text)
	return nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (e *Element) OuterHTML(ctx context.Context) (string, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.HTML, nil
}

// Clicks returns how many clicks succeeded.
func (e *Element) Clicks() int {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.clicks
}

// Typed returns the text sent to the element, one entry per SendKeys call.
func (e *Element) Typed() []string {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return append([]string(nil), e.typed...)
}
