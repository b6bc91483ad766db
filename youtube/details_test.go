package youtube

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytscrape/browser"
	"ytscrape/browser/browsertest"
	"ytscrape/captcha"
)

const frameSrc = "https://www.google.com/recaptcha/api2/anchor?k=site"

// aboutPage registers the About panel; withReveal adds the email reveal flow.
func aboutPage(d *browsertest.Driver, withReveal bool) {
	d.Add(SelDescriptionMore, nil)
	d.Add(SelAdditionalInfo, &browsertest.Element{HTML: infoTable})
	if withReveal {
		d.Add(SelViewEmail, nil)
		d.Add(SelRecaptchaFrame, &browsertest.Element{Attrs: map[string]string{"src": frameSrc}})
		d.Add(SelSubmitButton, nil)
	}
}

func solverReturning(tok captcha.Token, err error, seen *captcha.Challenge) captcha.Solver {
	return captcha.SolverFunc(func(ctx context.Context, ch captcha.Challenge) (captcha.Token, error) {
		if seen != nil {
			*seen = ch
		}
		return tok, err
	})
}

func TestDetailsExtractor_RevealsEmail(t *testing.T) {
	d := browsertest.New()
	aboutPage(d, true)

	var seen captcha.Challenge
	x := &DetailsExtractor{Solver: solverReturning("tok-1", nil, &seen)}
	got, err := x.Extract(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, "creator@example.com", got.Email)
	assert.Equal(t, "India", got.Location)
	assert.True(t, got.EmailRevealed)
	assert.Empty(t, got.Warnings)
	assert.Equal(t, captcha.Challenge{SiteKey: DefaultSiteKey, PageURL: frameSrc}, seen)
	assert.Equal(t, "tok-1", d.Value(SelRecaptchaAnswer))
}

func TestDetailsExtractor_NoRevealOffered(t *testing.T) {
	d := browsertest.New()
	aboutPage(d, false)

	x := &DetailsExtractor{Solver: solverReturning("", nil, nil)}
	got, err := x.Extract(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, got.Email)
	assert.Equal(t, "India", got.Location)
	assert.False(t, got.EmailRevealed)
}

func TestDetailsExtractor_CaptchaFailureIsAWarning(t *testing.T) {
	d := browsertest.New()
	aboutPage(d, true)
	submit, _ := d.WaitClickable(context.Background(), SelSubmitButton)

	x := &DetailsExtractor{Solver: solverReturning("", captcha.ErrCaptchaUnsolved, nil), SiteKey: "custom"}
	got, err := x.Extract(context.Background(), d)
	require.NoError(t, err)

	assert.False(t, got.EmailRevealed)
	assert.Empty(t, got.Email)
	assert.Equal(t, "India", got.Location)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], captcha.ErrCaptchaUnsolved.Error())
	assert.Empty(t, d.Value(SelRecaptchaAnswer))
	assert.Equal(t, 1, submit.(*browsertest.Element).Clicks(), "form is still submitted")
}

func TestDetailsExtractor_NoSolver(t *testing.T) {
	d := browsertest.New()
	aboutPage(d, true)

	got, err := (&DetailsExtractor{}).Extract(context.Background(), d)
	require.NoError(t, err)
	assert.False(t, got.EmailRevealed)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "no solver")
}

func TestDetailsExtractor_EmptyTable(t *testing.T) {
	d := browsertest.New()
	d.Add(SelDescriptionMore, nil)
	d.Add(SelAdditionalInfo, &browsertest.Element{HTML: "<table></table>"})

	got, err := (&DetailsExtractor{}).Extract(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, got.Email)
	assert.Empty(t, got.Location)
	assert.Equal(t, []string{ErrNoContactInfo.Error()}, got.Warnings)
}

func TestDetailsExtractor_MissingPanel(t *testing.T) {
	d := browsertest.New()
	_, err := (&DetailsExtractor{}).Extract(context.Background(), d)
	assert.ErrorIs(t, err, browser.ErrElementTimeout)
}

func TestDetailsExtractor_Interrupted(t *testing.T) {
	d := browsertest.New()
	aboutPage(d, true)

	ctx, cancel := context.WithCancel(context.Background())
	x := &DetailsExtractor{Solver: captcha.SolverFunc(func(ctx context.Context, ch captcha.Challenge) (captcha.Token, error) {
		cancel()
		return "", ctx.Err()
	})}
	_, err := x.Extract(ctx, d)
	assert.ErrorIs(t, err, browser.ErrSessionTerminated)
}
