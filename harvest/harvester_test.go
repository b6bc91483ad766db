package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytscrape/browser/browsertest"
)

const poll = 100 * time.Millisecond

// fakeClock advances only when slept on.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

func newHarvester(feed Feed, opts Options) (*Harvester, *fakeClock) {
	clock := newFakeClock()
	h := New(feed, opts)
	h.Clock = clock
	return h, clock
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.QuiescenceWindow = 2 * poll
	opts.PollInterval = poll
	opts.MaxAttempts = 10
	return opts
}

func TestHarvest_StopsAfterQuiescence(t *testing.T) {
	feed := browsertest.New()
	feed.Heights = []int64{0, 500, 500, 1200, 1200, 1200}
	feed.SetAttributes("a#video-title-link", "href",
		"/watch?v=A", "/watch?v=B", "/watch?v=C")

	h, _ := newHarvester(feed, testOptions())
	res, err := h.Harvest(context.Background(), "a#video-title-link")
	require.NoError(t, err)

	assert.Equal(t, []int64{500, 1200}, feed.Scrolls())
	assert.Equal(t, 2, res.PagesScrolled)
	assert.Equal(t, 6, feed.HeightReads())
	assert.Equal(t, []string{"A", "B", "C"}, res.Links.Sorted())
}

func TestHarvest_DeduplicatesByIdentifier(t *testing.T) {
	feed := browsertest.New()
	feed.Heights = []int64{800}
	feed.SetAttributes("a.item", "href",
		"https://www.youtube.com/watch?v=A",
		"https://www.youtube.com/watch?v=A&t=10",
		"https://www.youtube.com/watch?v=B",
		"https://www.youtube.com/watch?v=B",
		"https://www.youtube.com/watch?v=C&pp=ygUE",
	)

	h, _ := newHarvester(feed, testOptions())
	res, err := h.Harvest(context.Background(), "a.item")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Links.Len())
	assert.Equal(t, []string{"A", "B", "C"}, res.Links.Sorted())
}

func TestHarvest_NeverStabilizingFeedHitsCeiling(t *testing.T) {
	feed := browsertest.New()
	for h := int64(100); h <= 10000; h += 100 {
		feed.Heights = append(feed.Heights, h)
	}
	feed.SetAttributes("a.item", "href", "/watch?v=A", "/watch?v=B")

	opts := testOptions()
	opts.MaxAttempts = 3
	h, _ := newHarvester(feed, opts)

	res, err := h.Harvest(context.Background(), "a.item")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHarvestIncomplete)

	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.Same(t, res, inc.Result)

	require.NotNil(t, res)
	assert.Equal(t, 3, res.PagesScrolled)
	assert.Equal(t, []int64{100, 200, 300}, feed.Scrolls())
	assert.Equal(t, 2, res.Links.Len())
}

func TestHarvest_MaxDurationCeiling(t *testing.T) {
	feed := browsertest.New()
	for h := int64(100); h <= 10000; h += 100 {
		feed.Heights = append(feed.Heights, h)
	}
	opts := testOptions()
	opts.MaxAttempts = 1000
	opts.MaxDuration = 5 * poll
	h, _ := newHarvester(feed, opts)

	res, err := h.Harvest(context.Background(), "a.item")
	assert.ErrorIs(t, err, ErrHarvestIncomplete)
	require.NotNil(t, res)
	assert.Equal(t, 5, res.PagesScrolled)
}

func TestHarvest_IdempotentOnStaticPage(t *testing.T) {
	feed := browsertest.New()
	feed.Heights = []int64{1000}
	feed.SetAttributes("a.item", "href", "/watch?v=X", "/watch?v=Y", "/shorts/Z")

	h, _ := newHarvester(feed, testOptions())
	first, err := h.Harvest(context.Background(), "a.item")
	require.NoError(t, err)
	second, err := h.Harvest(context.Background(), "a.item")
	require.NoError(t, err)

	assert.True(t, first.Links.Equal(second.Links))
	assert.Equal(t, first.PagesScrolled, second.PagesScrolled)
	for _, y := range feed.Scrolls() {
		assert.Equal(t, int64(1000), y)
	}
}

func TestHarvest_ZeroHeightNeverScrolls(t *testing.T) {
	feed := browsertest.New()
	feed.Heights = []int64{0}

	h, _ := newHarvester(feed, testOptions())
	res, err := h.Harvest(context.Background(), "a.item")
	require.NoError(t, err)
	assert.Empty(t, feed.Scrolls())
	assert.Equal(t, 0, res.PagesScrolled)
	assert.Equal(t, 0, res.Links.Len())
}

func TestHarvest_ContextCanceled(t *testing.T) {
	feed := browsertest.New()
	feed.Heights = []int64{100}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h, _ := newHarvester(feed, testOptions())
	_, err := h.Harvest(ctx, "a.item")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrHarvestIncomplete))
}

func TestHarvest_PropagatesFeedErrors(t *testing.T) {
	boom := errors.New("boom")
	feed := browsertest.New()
	feed.Heights = []int64{100}
	feed.FailNext("ScrollTo", boom)

	h, _ := newHarvester(feed, testOptions())
	_, err := h.Harvest(context.Background(), "a.item")
	assert.ErrorIs(t, err, boom)
}

func TestHarvest_Func(t *testing.T) {
	feed := browsertest.New()
	feed.Heights = []int64{10}
	feed.SetAttributes("a", "href", "/watch?v=Q")

	// Real clock with tiny intervals.
	res, err := Harvest(context.Background(), feed, "a", 2*time.Millisecond, time.Millisecond, 5)
	require.NoError(t, err)
	assert.True(t, res.Links.Contains("Q"))
}

func TestQueryOrLastSegment(t *testing.T) {
	id := QueryOrLastSegment("v")
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"https://www.youtube.com/watch?v=abc&t=5", "abc", true},
		{"/watch?v=abc", "abc", true},
		{"/shorts/xyz", "xyz", true},
		{"https://example.com/item/42/", "42", true},
		{"https://example.com/", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := id(tt.raw)
		assert.Equal(t, tt.wantOK, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestLinkSetJSON(t *testing.T) {
	s := NewLinkSet("b", "a", "b", "")
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(data))

	var back LinkSet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, s.Equal(back))
}
