// Package batch scrapes a list of channels with a bounded pool of browser
// sessions, isolating failures per channel.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ytscrape/browser"
	"ytscrape/harvest"
	"ytscrape/internal/metrics"
	"ytscrape/youtube"
)

// SessionFactory starts a browser session. The runner quits every session
// it starts.
type SessionFactory func(ctx context.Context) (browser.Driver, error)

// ScraperFactory binds a channel scraper to a session. It is called once
// per session, so per-session state such as the login flow starts fresh.
type ScraperFactory func(drv browser.Driver) *youtube.ChannelScraper

// Runner scrapes channels. With Concurrency 1 every channel runs on one
// shared session, in order.
type Runner struct {
	NewSession SessionFactory
	NewScraper ScraperFactory
	Mode       youtube.Mode

	// Concurrency is the number of parallel sessions. Default 1.
	Concurrency int
	// StartInterval spaces session starts. Zero starts them at once.
	StartInterval time.Duration
	// ChannelTimeout bounds one channel. Zero means no bound.
	ChannelTimeout time.Duration

	Logger *slog.Logger
}

// Outcome is the result of one channel.
type Outcome struct {
	Channel  string
	Result   *youtube.ScrapeResult
	Err      error
	Duration time.Duration
}

// Failed reports whether the channel produced nothing usable. A harvest
// stopped at a ceiling still counts as a success.
func (o Outcome) Failed() bool {
	return o.Err != nil && !errors.Is(o.Err, harvest.ErrHarvestIncomplete)
}

// Report summarizes a run. Outcomes are in input order.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

// Succeeded counts channels that did not fail.
func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Failed() {
			n++
		}
	}
	return n
}

// Failed counts failed channels.
func (r *Report) Failed() int { return len(r.Outcomes) - r.Succeeded() }

// Run scrapes every channel and returns once all are done or ctx ends.
// Channels not reached before cancellation are reported with ctx's error.
// The returned error is non-nil only when ctx ended the run early.
func (r *Runner) Run(ctx context.Context, channels []string) (*Report, error) {
	if r.NewSession == nil || r.NewScraper == nil {
		return nil, errors.New("batch: runner needs a session and scraper factory")
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	report := &Report{
		RunID:    uuid.NewString(),
		Started:  time.Now(),
		Outcomes: make([]Outcome, len(channels)),
	}
	logger = logger.With(slog.String("run_id", report.RunID))

	workers := r.Concurrency
	if workers <= 0 {
		workers = 1
	}
	if workers > len(channels) {
		workers = len(channels)
	}
	logger.Info("batch started", slog.Int("channels", len(channels)), slog.Int("workers", workers))

	limit := rate.Inf
	if r.StartInterval > 0 {
		limit = rate.Every(r.StartInterval)
	}
	w := &worker{runner: r, starts: rate.NewLimiter(limit, 1), logger: logger}

	jobs := make(chan int)
	var done sync.Map
	g := new(errgroup.Group)
	g.SetLimit(workers + 1)
	g.Go(func() error {
		defer close(jobs)
		for i := range channels {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			var s slot
			defer s.release(logger)
			for idx := range jobs {
				report.Outcomes[idx] = w.scrape(ctx, &s, channels[idx])
				done.Store(idx, true)
			}
			return nil
		})
	}
	g.Wait()

	for i, ch := range channels {
		if _, ok := done.Load(i); !ok {
			report.Outcomes[i] = Outcome{Channel: ch, Err: fmt.Errorf("batch: not started: %w", context.Cause(ctx))}
		}
	}
	report.Finished = time.Now()
	logger.Info("batch finished",
		slog.Int("succeeded", report.Succeeded()),
		slog.Int("failed", report.Failed()),
		slog.Duration("elapsed", report.Finished.Sub(report.Started)),
	)
	return report, ctx.Err()
}

// slot is a worker's session and the scraper bound to it.
type slot struct {
	drv     browser.Driver
	scraper *youtube.ChannelScraper
}

func (s *slot) release(logger *slog.Logger) {
	if s.drv == nil {
		return
	}
	if err := s.drv.Quit(); err != nil {
		logger.Warn("failed to quit browser session", slog.Any("error", err))
	}
	s.drv, s.scraper = nil, nil
}

type worker struct {
	runner *Runner
	starts *rate.Limiter
	logger *slog.Logger
}

func (w *worker) acquire(ctx context.Context, s *slot) error {
	if s.drv != nil {
		return nil
	}
	if err := w.starts.Wait(ctx); err != nil {
		return err
	}
	drv, err := w.runner.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("batch: start session: %w", err)
	}
	s.drv = drv
	s.scraper = w.runner.NewScraper(drv)
	return nil
}

// scrape runs one channel. A panic or a dead session releases the slot so
// the next channel starts on a fresh session.
func (w *worker) scrape(ctx context.Context, s *slot, channel string) (out Outcome) {
	out.Channel = channel
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			w.logger.Error("channel scrape panicked",
				slog.String("channel", channel),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
			out.Err = fmt.Errorf("batch: panic scraping %s: %v", channel, p)
			s.release(w.logger)
		}
		out.Duration = time.Since(start)
		if out.Failed() {
			metrics.IncrChannelsFailed()
		} else {
			metrics.IncrChannelsSucceeded()
		}
	}()

	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}
	if err := w.acquire(ctx, s); err != nil {
		out.Err = err
		return out
	}

	cctx := ctx
	if w.runner.ChannelTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, w.runner.ChannelTimeout)
		defer cancel()
	}

	out.Result, out.Err = s.scraper.Scrape(cctx, channel, w.runner.Mode)
	if errors.Is(out.Err, browser.ErrSessionTerminated) || (cctx.Err() != nil && ctx.Err() == nil) {
		// The tab may be mid-navigation or gone; do not reuse it.
		w.logger.Warn("discarding browser session", slog.String("channel", channel), slog.Any("error", out.Err))
		s.release(w.logger)
	}
	return out
}
