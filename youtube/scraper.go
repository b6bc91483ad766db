package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ytscrape/browser"
	"ytscrape/harvest"
	"ytscrape/internal/metrics"
	"ytscrape/internal/retry"
	"ytscrape/storage"
)

// Mode selects what a scrape collects.
type Mode int

const (
	ModeLinks Mode = 1 << iota
	ModeDetails
	ModeAll = ModeLinks | ModeDetails
)

func (m Mode) String() string {
	switch m {
	case ModeLinks:
		return "links"
	case ModeDetails:
		return "details"
	case ModeAll:
		return "all"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ScrapeError reports which stage of a channel scrape failed.
//
//	var se *youtube.ScrapeError
//	if errors.As(err, &se) {
//		fmt.Println(se.Channel, se.Stage)
//	}
type ScrapeError struct {
	Channel string
	// Stage is one of "parse", "navigate", "login", "harvest", "details", "store".
	Stage string
	Err   error
}

func (e *ScrapeError) Error() string {
	return "youtube: scrape " + e.Channel + ": " + e.Stage + ": " + e.Err.Error()
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// ScrapeResult is what one channel scrape produced.
type ScrapeResult struct {
	Channel ChannelRef
	// Links holds canonical watch URLs in identifier order.
	Links []string
	// LinksPath is where Links were written, when a LinkWriter is set.
	LinksPath     string
	PagesScrolled int
	// Incomplete is set when the harvest stopped at a ceiling.
	Incomplete bool
	Details    *Details
}

// ChannelScraper runs the per-channel script on one browser session.
// It is bound to that session and is not safe for concurrent use.
type ChannelScraper struct {
	Driver browser.Driver
	// Login runs before details extraction. Nil skips signing in.
	Login   *LoginFlow
	Details *DetailsExtractor

	Harvest harvest.Options
	// Clock paces the harvest. Nil uses the wall clock.
	Clock harvest.Clock
	// ItemSelector matches video links on the videos tab.
	ItemSelector string

	// Links receives harvested links. Nil keeps them in the result only.
	Links storage.LinkWriter
	// Store records channels, details and scrape state. Nil disables it.
	Store storage.Store

	Policy retry.Policy
	Logger *slog.Logger
}

// Scrape collects what mode asks for from the channel named by input.
// A harvest that hit a ceiling still returns its partial links and records
// them; the returned error then wraps harvest.ErrHarvestIncomplete.
func (s *ChannelScraper) Scrape(ctx context.Context, input string, mode Mode) (*ScrapeResult, error) {
	ch, err := ParseChannel(input)
	if err != nil {
		return nil, &ScrapeError{Channel: input, Stage: "parse", Err: err}
	}
	logger := s.logger().With(slog.String("channel", ch.Key))
	start := time.Now()
	logger.Info("scraping channel", slog.String("url", ch.URL), slog.String("mode", mode.String()))

	state, rec, err := s.beginSync(ctx, ch)
	if err != nil {
		return nil, &ScrapeError{Channel: ch.Key, Stage: "store", Err: err}
	}

	res := &ScrapeResult{Channel: ch}
	runErr := s.run(ctx, ch, mode, res, logger)

	if state != nil {
		if res.LinksPath != "" || res.PagesScrolled > 0 {
			state.RecordHarvest(len(res.Links), res.PagesScrolled, res.Incomplete, res.LinksPath)
		}
		if runErr != nil && !errors.Is(runErr, harvest.ErrHarvestIncomplete) {
			state.FailSync(runErr.Error())
		} else {
			state.CompleteSync()
		}
		// Persist even when ctx is done so an interrupted run is not left
		// marked as syncing.
		if err := s.Store.UpdateSyncState(context.WithoutCancel(ctx), state); err != nil {
			logger.Warn("failed to persist scrape state", slog.Any("error", err))
		}
	}
	if rec != nil && res.Details != nil {
		if err := s.saveDetails(ctx, rec, res.Details); err != nil {
			return res, &ScrapeError{Channel: ch.Key, Stage: "store", Err: err}
		}
	}

	if runErr != nil {
		logger.Warn("channel scrape failed", slog.Any("error", runErr), slog.Duration("elapsed", time.Since(start)))
		return res, runErr
	}
	logger.Info("channel scraped",
		slog.Int("links", len(res.Links)),
		slog.Bool("incomplete", res.Incomplete),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (s *ChannelScraper) run(ctx context.Context, ch ChannelRef, mode Mode, res *ScrapeResult, logger *slog.Logger) error {
	target := ch.URL
	if mode&ModeLinks != 0 {
		target = ch.VideosURL()
	}
	if err := s.open(ctx, target); err != nil {
		return &ScrapeError{Channel: ch.Key, Stage: "navigate", Err: err}
	}

	var incomplete error
	if mode&ModeLinks != 0 {
		err := s.harvest(ctx, ch, res, logger)
		switch {
		case errors.Is(err, harvest.ErrHarvestIncomplete):
			incomplete = &ScrapeError{Channel: ch.Key, Stage: "harvest", Err: err}
		case err != nil:
			return &ScrapeError{Channel: ch.Key, Stage: "harvest", Err: err}
		}
	}

	if mode&ModeDetails != 0 {
		if s.Login != nil && !s.Login.LoggedIn() {
			if err := s.Login.Run(ctx, s.Driver); err != nil {
				return &ScrapeError{Channel: ch.Key, Stage: "login", Err: err}
			}
		}
		if mode&ModeLinks != 0 {
			// The About panel lives on the channel home page.
			if err := s.open(ctx, ch.URL); err != nil {
				return &ScrapeError{Channel: ch.Key, Stage: "navigate", Err: err}
			}
		}
		d, err := s.details().Extract(ctx, s.Driver)
		if err != nil {
			return &ScrapeError{Channel: ch.Key, Stage: "details", Err: err}
		}
		for _, w := range d.Warnings {
			logger.Warn("details warning", slog.String("warning", w))
		}
		res.Details = d
	}
	return incomplete
}

// open loads url and closes any tabs the site spawned.
func (s *ChannelScraper) open(ctx context.Context, url string) error {
	err := s.Policy.Do(ctx, "open "+url, func(ctx context.Context) error {
		return s.Driver.Navigate(ctx, url)
	})
	if err != nil {
		return err
	}
	return s.Policy.Do(ctx, "close other tabs", s.Driver.CloseOtherTabs)
}

func (s *ChannelScraper) harvest(ctx context.Context, ch ChannelRef, res *ScrapeResult, logger *slog.Logger) error {
	opts := s.Harvest
	if opts.Identify == nil {
		opts.Identify = VideoID
	}
	sel := s.ItemSelector
	if sel == "" {
		sel = SelVideoItem
	}

	h := harvest.New(guardedFeed{drv: s.Driver, policy: s.Policy}, opts)
	h.Logger = logger
	h.Clock = s.Clock
	hr, err := h.Harvest(ctx, sel)
	if hr != nil {
		metrics.AddScrollCycles(hr.PagesScrolled)
		metrics.AddLinksHarvested(hr.Links.Len())
		res.PagesScrolled = hr.PagesScrolled
		for _, id := range hr.Links.Sorted() {
			res.Links = append(res.Links, WatchURL(id))
		}
	}
	if errors.Is(err, harvest.ErrHarvestIncomplete) {
		metrics.IncrHarvestIncomplete()
		res.Incomplete = true
	} else if err != nil {
		return err
	}

	if s.Links != nil {
		path, werr := s.Links.WriteLinks(ch.Key, res.Links)
		if werr != nil {
			return werr
		}
		res.LinksPath = path
		logger.Info("links written", slog.String("path", path), slog.Int("count", len(res.Links)))
	}
	return err
}

func (s *ChannelScraper) beginSync(ctx context.Context, ch ChannelRef) (*storage.SyncState, *storage.Channel, error) {
	if s.Store == nil {
		return nil, nil, nil
	}
	rec, err := storage.GetOrCreateChannel(ctx, s.Store, &storage.Channel{Key: ch.Key, URL: ch.URL})
	if err != nil {
		return nil, nil, err
	}
	state, err := s.Store.GetSyncState(ctx, rec.ID)
	if err != nil {
		return nil, nil, err
	}
	state.StartSync()
	if err := s.Store.UpdateSyncState(ctx, state); err != nil {
		return nil, nil, err
	}
	return state, rec, nil
}

func (s *ChannelScraper) saveDetails(ctx context.Context, rec *storage.Channel, d *Details) error {
	return s.Store.SaveDetails(ctx, &storage.ContactDetails{
		ChannelID:     rec.ID,
		Email:         d.Email,
		Location:      d.Location,
		EmailRevealed: d.EmailRevealed,
		Warnings:      d.Warnings,
		ScrapedAt:     time.Now(),
	})
}

func (s *ChannelScraper) details() *DetailsExtractor {
	if s.Details != nil {
		return s.Details
	}
	return &DetailsExtractor{Policy: s.Policy, Logger: s.Logger}
}

func (s *ChannelScraper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// guardedFeed runs each harvester call under the action policy so a node
// detached mid-read is retried once.
type guardedFeed struct {
	drv    browser.Driver
	policy retry.Policy
}

func (f guardedFeed) ScrollHeight(ctx context.Context) (int64, error) {
	return retry.Value(ctx, f.policy, "read scroll height", f.drv.ScrollHeight)
}

func (f guardedFeed) ScrollTo(ctx context.Context, y int64) error {
	return f.policy.Do(ctx, "scroll", func(ctx context.Context) error {
		return f.drv.ScrollTo(ctx, y)
	})
}

func (f guardedFeed) Attributes(ctx context.Context, sel, name string) ([]string, error) {
	return retry.Value(ctx, f.policy, "read item links", func(ctx context.Context) ([]string, error) {
		return f.drv.Attributes(ctx, sel, name)
	})
}
