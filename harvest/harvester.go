// Package harvest collects item links from an infinite-scroll feed.
//
// The harvester scrolls to the bottom of the page, waits for the feed to
// grow, and repeats until the page height has held still for a full
// quiescence window. Only then are the items read, so a harvest never reports
// completion while content is still arriving. Attempt and duration ceilings
// bound the loop for feeds that never settle.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"
)

// Feed is the slice of a browser session the harvester needs.
type Feed interface {
	ScrollHeight(ctx context.Context) (int64, error)
	ScrollTo(ctx context.Context, y int64) error
	Attributes(ctx context.Context, sel, name string) ([]string, error)
}

// IdentifyFunc derives an item identifier from a raw link. ok is false for
// links that do not identify an item.
type IdentifyFunc func(raw string) (id string, ok bool)

// Options tunes the scroll loop.
type Options struct {
	// QuiescenceWindow is how long the height must hold still before the
	// feed counts as exhausted.
	QuiescenceWindow time.Duration
	// PollInterval is the delay between height reads.
	PollInterval time.Duration
	// MaxAttempts caps the number of scroll cycles.
	MaxAttempts int
	// MaxDuration caps the whole scroll loop. Zero means no cap.
	MaxDuration time.Duration
	// Attribute is read from every matched item. Default "href".
	Attribute string
	// Identify maps a link to its identifier. Default QueryOrLastSegment("v").
	Identify IdentifyFunc
}

// DefaultOptions returns the settings used for channel video tabs.
func DefaultOptions() Options {
	return Options{
		QuiescenceWindow: 3 * time.Second,
		PollInterval:     500 * time.Millisecond,
		MaxAttempts:      200,
		Attribute:        "href",
		Identify:         QueryOrLastSegment("v"),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.QuiescenceWindow <= 0 {
		o.QuiescenceWindow = d.QuiescenceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.Attribute == "" {
		o.Attribute = d.Attribute
	}
	if o.Identify == nil {
		o.Identify = d.Identify
	}
	return o
}

// FeedState is the scroll loop's view of the page.
type FeedState struct {
	// LastHeight is the most recently observed scroll height.
	LastHeight int64
	// StableSince is when LastHeight was first observed.
	StableSince time.Time
}

func (s *FeedState) observe(h int64, now time.Time) {
	if h != s.LastHeight || s.StableSince.IsZero() {
		s.LastHeight = h
		s.StableSince = now
	}
}

// Result is the outcome of one harvest.
type Result struct {
	Links LinkSet `json:"links"`
	// PagesScrolled counts scroll cycles.
	PagesScrolled int `json:"pages_scrolled"`
}

// Harvester runs the scroll loop against a Feed.
type Harvester struct {
	Feed    Feed
	Options Options
	Clock   Clock
	Logger  *slog.Logger
}

// New returns a Harvester with the wall clock and the default logger.
func New(feed Feed, opts Options) *Harvester {
	return &Harvester{Feed: feed, Options: opts}
}

// Harvest runs a harvester with explicit timing parameters.
func Harvest(ctx context.Context, feed Feed, itemSelector string, quiescenceWindow, pollInterval time.Duration, maxAttempts int) (*Result, error) {
	opts := DefaultOptions()
	opts.QuiescenceWindow = quiescenceWindow
	opts.PollInterval = pollInterval
	opts.MaxAttempts = maxAttempts
	return New(feed, opts).Harvest(ctx, itemSelector)
}

// Harvest scrolls the feed until it stops growing and collects every item
// matched by itemSelector. When a ceiling is hit it returns the partial
// result together with an *IncompleteError.
func (h *Harvester) Harvest(ctx context.Context, itemSelector string) (*Result, error) {
	opts := h.Options.withDefaults()
	clock := h.Clock
	if clock == nil {
		clock = WallClock{}
	}
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	began := clock.Now()
	var state FeedState

	height, err := h.Feed.ScrollHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("harvest: read height: %w", err)
	}
	state.observe(height, began)

	var (
		position int64
		scrolls  int
		reason   string
	)
	for {
		start := height
		if start > position {
			if scrolls >= opts.MaxAttempts {
				reason = fmt.Sprintf("reached %d scroll attempts", opts.MaxAttempts)
				break
			}
			if opts.MaxDuration > 0 && clock.Now().Sub(began) >= opts.MaxDuration {
				reason = fmt.Sprintf("reached max duration %s", opts.MaxDuration)
				break
			}
			if err := h.Feed.ScrollTo(ctx, start); err != nil {
				return nil, fmt.Errorf("harvest: scroll to %d: %w", start, err)
			}
			position = start
			scrolls++
			logger.Debug("scrolled feed", slog.Int64("height", start), slog.Int("scrolls", scrolls))
		}

		grew, err := h.awaitGrowth(ctx, clock, opts, start, &state)
		if err != nil {
			return nil, err
		}
		if !grew {
			break
		}
		height = state.LastHeight
	}

	links, err := h.collect(ctx, opts, itemSelector, logger)
	if err != nil {
		return nil, err
	}
	res := &Result{Links: links, PagesScrolled: scrolls}

	logger.Info("harvest finished",
		slog.Int("links", links.Len()),
		slog.Int("scrolls", scrolls),
		slog.Int64("height", state.LastHeight),
		slog.Duration("elapsed", clock.Now().Sub(began)),
	)
	if reason != "" {
		return res, &IncompleteError{Reason: reason, Result: res}
	}
	return res, nil
}

// awaitGrowth polls the height until it exceeds base or the quiescence
// window passes without growth.
func (h *Harvester) awaitGrowth(ctx context.Context, clock Clock, opts Options, base int64, state *FeedState) (bool, error) {
	began := clock.Now()
	for {
		if err := clock.Sleep(ctx, opts.PollInterval); err != nil {
			return false, fmt.Errorf("harvest: %w", err)
		}
		cur, err := h.Feed.ScrollHeight(ctx)
		if err != nil {
			return false, fmt.Errorf("harvest: read height: %w", err)
		}
		now := clock.Now()
		state.observe(cur, now)
		if cur > base {
			return true, nil
		}
		if now.Sub(began) >= opts.QuiescenceWindow {
			return false, nil
		}
	}
}

func (h *Harvester) collect(ctx context.Context, opts Options, sel string, logger *slog.Logger) (LinkSet, error) {
	raw, err := h.Feed.Attributes(ctx, sel, opts.Attribute)
	if err != nil {
		return LinkSet{}, fmt.Errorf("harvest: read items: %w", err)
	}
	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		id, ok := opts.Identify(r)
		if !ok {
			logger.Debug("skipping unidentified link", slog.String("link", r))
			continue
		}
		ids = append(ids, id)
	}
	return NewLinkSet(ids...), nil
}

// QueryOrLastSegment identifies a link by query parameter key, falling back
// to the final path segment.
func QueryOrLastSegment(key string) IdentifyFunc {
	return func(raw string) (string, bool) {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			return "", false
		}
		if v := u.Query().Get(key); v != "" {
			return v, true
		}
		seg := path.Base(strings.TrimRight(u.Path, "/"))
		if seg == "." || seg == "/" || seg == "" {
			return "", false
		}
		return seg, true
	}
}
