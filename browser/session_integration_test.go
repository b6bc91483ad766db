//go:build integration

package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedPage = `<!doctype html>
<html><body style="margin:0">
<div id="feed"></div>
<textarea id="g-recaptcha-response" style="display:none"></textarea>
<button id="go" onclick="document.title='clicked'">Go</button>
<script>
let n = 0;
function more() {
  for (let i = 0; i < 10 && n < 30; i++, n++) {
    const a = document.createElement('a');
    a.className = 'item';
    a.href = '/watch?v=vid' + n + '&t=' + i;
    a.style.display = 'block';
    a.style.height = '200px';
    a.textContent = 'video ' + n;
    document.getElementById('feed').appendChild(a);
  }
}
more();
window.addEventListener('scroll', () => {
  if (window.innerHeight + window.scrollY >= document.body.scrollHeight - 10) setTimeout(more, 100);
});
</script>
</body></html>`

func TestSessionAgainstLocalPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedPage)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	opts := DefaultOptions()
	opts.Headless = true
	opts.WaitTimeout = 5 * time.Second
	s, err := NewSession(ctx, opts, nil)
	require.NoError(t, err)
	defer s.Quit()

	require.NoError(t, s.Navigate(ctx, srv.URL))

	h, err := s.ScrollHeight(ctx)
	require.NoError(t, err)
	assert.Greater(t, h, int64(0))

	hrefs, err := s.Attributes(ctx, "a.item", "href")
	require.NoError(t, err)
	assert.Len(t, hrefs, 10)

	none, err := s.Attributes(ctx, "a.missing", "href")
	require.NoError(t, err)
	assert.Empty(t, none)

	btn, err := s.WaitClickable(ctx, "//button[@id='go']")
	require.NoError(t, err)
	require.NoError(t, btn.Click(ctx))

	require.NoError(t, s.SetValue(ctx, "#g-recaptcha-response", "token"))

	_, err = s.WaitPresent(ctx, "#does-not-exist")
	assert.ErrorIs(t, err, ErrElementTimeout)

	tabs, err := s.Tabs(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, tabs)
	require.NoError(t, s.CloseOtherTabs(ctx))

	require.NoError(t, s.Quit())
	require.NoError(t, s.Quit())

	_, err = s.ScrollHeight(ctx)
	assert.ErrorIs(t, err, ErrSessionTerminated)
}
