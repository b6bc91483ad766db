package youtube

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytscrape/browser"
	"ytscrape/browser/browsertest"
	"ytscrape/harvest"
	"ytscrape/internal/retry"
	"ytscrape/storage"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

var videoHrefs = []string{
	"/watch?v=aaaaaaaaaaa",
	"/watch?v=bbbbbbbbbbb&pp=x",
	"/watch?v=aaaaaaaaaaa&t=10s",
	"/shorts/ccccccccccc",
	"/playlist?list=PL1",
}

type fixture struct {
	drv     *browsertest.Driver
	store   *storage.JSONStore
	links   storage.LinkFiles
	scraper *ChannelScraper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewJSONStore(filepath.Join(dir, "store.json"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	d := browsertest.New()
	d.Heights = []int64{1000, 1000, 2000, 2000, 2000, 2000, 2000}
	d.SetAttributes(SelVideoItem, "href", videoHrefs...)
	d.SetTabs(browser.Tab{ID: "a"}, browser.Tab{ID: "popup"})
	aboutPage(d, true)
	loginPage(d)

	links := storage.LinkFiles{Dir: filepath.Join(dir, "links")}
	opts := harvest.DefaultOptions()
	opts.PollInterval = 100 * time.Millisecond
	opts.QuiescenceWindow = 300 * time.Millisecond

	s := &ChannelScraper{
		Driver: d,
		Login:  &LoginFlow{Credentials: creds, Operator: confirmed},
		Details: &DetailsExtractor{
			Solver: solverReturning("tok", nil, nil),
		},
		Harvest: opts,
		Clock:   &stepClock{now: time.Unix(0, 0)},
		Links:   links,
		Store:   store,
		Policy:  retry.Policy{Transient: browser.IsTransient, Retries: 1},
	}
	return &fixture{drv: d, store: store, links: links, scraper: s}
}

func TestChannelScraper_All(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.scraper.Scrape(ctx, "https://www.youtube.com/@Fireship", ModeAll)
	require.NoError(t, err)

	want := []string{
		"https://www.youtube.com/watch?v=aaaaaaaaaaa",
		"https://www.youtube.com/watch?v=bbbbbbbbbbb",
		"https://www.youtube.com/watch?v=ccccccccccc",
	}
	assert.Equal(t, want, res.Links)
	assert.Equal(t, 2, res.PagesScrolled)
	assert.False(t, res.Incomplete)
	require.NotNil(t, res.Details)
	assert.Equal(t, "creator@example.com", res.Details.Email)

	assert.Equal(t, []string{
		"https://www.youtube.com/@Fireship/videos",
		"https://www.youtube.com/@Fireship",
	}, f.drv.Navigations())
	tabs, _ := f.drv.Tabs(ctx)
	assert.Len(t, tabs, 1)
	assert.True(t, f.scraper.Login.LoggedIn())

	written, err := f.links.ReadLinks("@fireship")
	require.NoError(t, err)
	assert.Equal(t, want, written)
	assert.Equal(t, filepath.Join(f.links.Dir, "@fireship.json"), res.LinksPath)

	ch, err := f.store.GetChannelByKey(ctx, "@fireship")
	require.NoError(t, err)
	details, err := f.store.GetDetails(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "India", details.Location)
	assert.True(t, details.EmailRevealed)

	state, err := f.store.GetSyncState(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.SyncStatusIdle, state.Status)
	assert.Equal(t, 3, state.LinksFound)
	assert.Equal(t, res.LinksPath, state.LinksPath)
	assert.False(t, state.LastSyncAt.IsZero())
}

func TestChannelScraper_LinksOnlySkipsLogin(t *testing.T) {
	f := newFixture(t)

	res, err := f.scraper.Scrape(context.Background(), "@Fireship", ModeLinks)
	require.NoError(t, err)
	assert.Len(t, res.Links, 3)
	assert.Nil(t, res.Details)
	assert.False(t, f.scraper.Login.LoggedIn())
	assert.Equal(t, []string{"https://www.youtube.com/@Fireship/videos"}, f.drv.Navigations())
}

func TestChannelScraper_DetailsOnly(t *testing.T) {
	f := newFixture(t)

	res, err := f.scraper.Scrape(context.Background(), "@Fireship", ModeDetails)
	require.NoError(t, err)
	assert.Empty(t, res.Links)
	assert.Empty(t, res.LinksPath)
	assert.Zero(t, f.drv.HeightReads())
	assert.Equal(t, []string{"https://www.youtube.com/@Fireship"}, f.drv.Navigations())
}

func TestChannelScraper_IncompleteHarvestKeepsLinks(t *testing.T) {
	f := newFixture(t)
	f.drv.Heights = []int64{100, 200, 300, 400, 500, 600, 700, 800}
	f.scraper.Harvest.MaxAttempts = 2

	res, err := f.scraper.Scrape(context.Background(), "@Fireship", ModeLinks)
	require.Error(t, err)
	assert.ErrorIs(t, err, harvest.ErrHarvestIncomplete)
	var se *ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "harvest", se.Stage)

	require.NotNil(t, res)
	assert.True(t, res.Incomplete)
	assert.Len(t, res.Links, 3)
	assert.NotEmpty(t, res.LinksPath)

	ch, err := f.store.GetChannelByKey(context.Background(), "@fireship")
	require.NoError(t, err)
	state, err := f.store.GetSyncState(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.True(t, state.Incomplete)
	assert.Equal(t, storage.SyncStatusIdle, state.Status)
}

func TestChannelScraper_FailureRecordsState(t *testing.T) {
	f := newFixture(t)
	f.drv.FailNext("Navigate", errors.New("net::ERR_NAME_NOT_RESOLVED"))

	_, err := f.scraper.Scrape(context.Background(), "@Fireship", ModeAll)
	var se *ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "navigate", se.Stage)
	assert.Equal(t, "@fireship", se.Channel)

	ch, err := f.store.GetChannelByKey(context.Background(), "@fireship")
	require.NoError(t, err)
	state, err := f.store.GetSyncState(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.SyncStatusError, state.Status)
	assert.Contains(t, state.LastError, "ERR_NAME_NOT_RESOLVED")
}

func TestChannelScraper_RetriesTransientScroll(t *testing.T) {
	f := newFixture(t)
	f.drv.FailNext("ScrollTo", &browser.TransientUIError{Op: "scroll", Err: errors.New("execution context was destroyed")})

	res, err := f.scraper.Scrape(context.Background(), "@Fireship", ModeLinks)
	require.NoError(t, err)
	assert.Len(t, res.Links, 3)
	assert.Equal(t, []int64{1000, 2000}, f.drv.Scrolls())
}

func TestChannelScraper_InvalidChannel(t *testing.T) {
	f := newFixture(t)
	_, err := f.scraper.Scrape(context.Background(), "https://example.com/nope", ModeAll)
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.Empty(t, f.drv.Navigations())
}

func TestChannelScraper_WithoutStore(t *testing.T) {
	f := newFixture(t)
	f.scraper.Store = nil
	f.scraper.Links = nil

	res, err := f.scraper.Scrape(context.Background(), "@Fireship", ModeAll)
	require.NoError(t, err)
	assert.Len(t, res.Links, 3)
	assert.Empty(t, res.LinksPath)
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "links", ModeLinks.String())
	assert.Equal(t, "details", ModeDetails.String())
	assert.Equal(t, "all", ModeAll.String())
	assert.Equal(t, "mode(0)", Mode(0).String())
}
