package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// Options configures a Chrome session.
type Options struct {
	Headless bool
	// ExecPath overrides Chrome discovery.
	ExecPath string
	// UserDataDir keeps the profile (and so the Google login) between runs.
	UserDataDir string
	UserAgent   string
	// WaitTimeout bounds every element wait. Zero means DefaultWaitTimeout.
	WaitTimeout time.Duration
	// NavigateTimeout bounds a page load. Zero means 30s.
	NavigateTimeout time.Duration
	WindowWidth     int
	WindowHeight    int
}

// DefaultOptions returns options for a visible browser, which the login
// flow needs for its operator pause.
func DefaultOptions() Options {
	return Options{
		Headless:        false,
		WaitTimeout:     DefaultWaitTimeout,
		NavigateTimeout: 30 * time.Second,
		WindowWidth:     1366,
		WindowHeight:    900,
	}
}

// Session drives one Chrome tab through chromedp.
type Session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	opts        Options
	logger      *slog.Logger
	quitOnce    sync.Once
	quitErr     error
}

var _ Driver = (*Session)(nil)

// NewSession launches Chrome and opens the tab the session drives. Canceling
// ctx tears the browser down.
func NewSession(ctx context.Context, opts Options, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = 30 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug("chromedp", slog.String("msg", fmt.Sprintf(format, args...)))
		}),
	)

	// First Run starts the browser and attaches the tab.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("browser: start chrome: %w", err)
	}

	logger.Info("browser session started", slog.Bool("headless", opts.Headless))
	return &Session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		opts:        opts,
		logger:      logger,
	}, nil
}

// actionCtx derives a context that carries the tab, expires after d and is
// canceled when the caller's ctx is.
func (s *Session) actionCtx(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	actx, cancel := context.WithTimeout(s.ctx, d)
	stop := context.AfterFunc(ctx, cancel)
	return actx, func() {
		stop()
		cancel()
	}
}

func (s *Session) run(ctx context.Context, d time.Duration, op, sel string, actions ...chromedp.Action) error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrSessionTerminated, op)
	}
	actx, cancel := s.actionCtx(ctx, d)
	defer cancel()
	return classify(ctx, s.ctx, op, sel, chromedp.Run(actx, actions...))
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, s.opts.NavigateTimeout, "navigate", url,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *Session) WaitClickable(ctx context.Context, sel string) (Element, error) {
	return s.wait(ctx, "wait clickable", sel, chromedp.NodeVisible)
}

func (s *Session) WaitPresent(ctx context.Context, sel string) (Element, error) {
	return s.wait(ctx, "wait present", sel, chromedp.NodeReady)
}

func (s *Session) wait(ctx context.Context, op, sel string, cond chromedp.QueryOption) (Element, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, s.opts.WaitTimeout, op, sel,
		chromedp.Nodes(sel, &nodes, byOne(sel), cond),
	)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s %q", ErrElementTimeout, op, sel)
	}
	return &element{s: s, node: nodes[0], sel: sel}, nil
}

func (s *Session) ScrollHeight(ctx context.Context) (int64, error) {
	var h int64
	err := s.run(ctx, s.opts.WaitTimeout, "scroll height", "",
		chromedp.Evaluate(`Math.max(document.body.scrollHeight, document.documentElement.scrollHeight)`, &h),
	)
	return h, err
}

func (s *Session) ScrollTo(ctx context.Context, y int64) error {
	return s.run(ctx, s.opts.WaitTimeout, "scroll", "",
		chromedp.Evaluate(fmt.Sprintf(`window.scrollTo(0, %d)`, y), nil),
	)
}

func (s *Session) Attributes(ctx context.Context, sel, name string) ([]string, error) {
	var all []map[string]string
	err := s.run(ctx, s.opts.WaitTimeout, "attributes", sel,
		chromedp.AttributesAll(sel, &all, byAll(sel), chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(all))
	for _, attrs := range all {
		if v, ok := attrs[name]; ok {
			values = append(values, v)
		}
	}
	return values, nil
}

func (s *Session) SetValue(ctx context.Context, sel, value string) error {
	return s.run(ctx, s.opts.WaitTimeout, "set value", sel,
		chromedp.SetValue(sel, value, byOne(sel)),
	)
}

func (s *Session) Tabs(ctx context.Context) ([]Tab, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: tabs", ErrSessionTerminated)
	}
	actx, cancel := s.actionCtx(ctx, s.opts.WaitTimeout)
	defer cancel()

	infos, err := chromedp.Targets(actx)
	if err != nil {
		return nil, classify(ctx, s.ctx, "tabs", "", err)
	}
	var tabs []Tab
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		tabs = append(tabs, Tab{ID: string(info.TargetID), URL: info.URL, Title: info.Title})
	}
	return tabs, nil
}

func (s *Session) CloseOtherTabs(ctx context.Context) error {
	tabs, err := s.Tabs(ctx)
	if err != nil {
		return err
	}
	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil || c.Browser == nil {
		return fmt.Errorf("%w: close tabs: no attached target", ErrSessionTerminated)
	}
	current := c.Target.TargetID

	actx, cancel := s.actionCtx(ctx, s.opts.WaitTimeout)
	defer cancel()
	for _, t := range tabs {
		if target.ID(t.ID) == current {
			continue
		}
		if err := target.CloseTarget(target.ID(t.ID)).Do(cdp.WithExecutor(actx, c.Browser)); err != nil {
			return classify(ctx, s.ctx, "close tab", t.URL, err)
		}
		s.logger.Debug("closed tab", slog.String("url", t.URL))
	}
	return nil
}

// Quit closes the browser. Later calls return the first result.
func (s *Session) Quit() error {
	s.quitOnce.Do(func() {
		err := chromedp.Cancel(s.ctx)
		s.cancelTab()
		s.cancelAlloc()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.quitErr = fmt.Errorf("browser: quit: %w", err)
		}
		s.logger.Info("browser session closed")
	})
	return s.quitErr
}

type element struct {
	s    *Session
	node *cdp.Node
	sel  string
}

func (e *element) ids() []cdp.NodeID { return []cdp.NodeID{e.node.NodeID} }

func (e *element) Click(ctx context.Context) error {
	return e.s.run(ctx, e.s.opts.WaitTimeout, "click", e.sel, chromedp.MouseClickNode(e.node))
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	return e.s.run(ctx, e.s.opts.WaitTimeout, "send keys", e.sel,
		chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID),
	)
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := e.s.run(ctx, e.s.opts.WaitTimeout, "attribute", e.sel,
		chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID),
	)
	return value, ok, err
}

func (e *element) OuterHTML(ctx context.Context) (string, error) {
	var html string
	err := e.s.run(ctx, e.s.opts.WaitTimeout, "outer html", e.sel,
		chromedp.OuterHTML(e.ids(), &html, chromedp.ByNodeID),
	)
	return html, err
}
