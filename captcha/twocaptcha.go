package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	ythttp "ytscrape/http"
	"ytscrape/internal/metrics"
)

// DefaultBaseURL is the 2Captcha API root.
const DefaultBaseURL = "https://2captcha.com"

// Solver response codes.
const (
	codeNotReady   = "CAPCHA_NOT_READY"
	codeUnsolvable = "ERROR_CAPTCHA_UNSOLVABLE"
)

var accountErrors = map[string]bool{
	"ERROR_WRONG_USER_KEY":     true,
	"ERROR_KEY_DOES_NOT_EXIST": true,
	"ERROR_ZERO_BALANCE":       true,
	"ERROR_IP_NOT_ALLOWED":     true,
	"IP_BANNED":                true,
}

// TwoCaptcha is a Solver backed by the 2Captcha in.php / res.php API.
type TwoCaptcha struct {
	APIKey  string
	BaseURL string
	Client  *ythttp.Client

	// InitialDelay is the wait before the first result poll.
	InitialDelay time.Duration
	// PollInterval is the wait between result polls.
	PollInterval time.Duration
	// Timeout bounds the whole solve.
	Timeout time.Duration

	Logger *slog.Logger
}

// NewTwoCaptcha returns a solver with the service's recommended timings.
// A nil client gets the default HTTP client configuration.
func NewTwoCaptcha(apiKey string, client *ythttp.Client, logger *slog.Logger) *TwoCaptcha {
	if client == nil {
		client = ythttp.New(nil)
	}
	return &TwoCaptcha{
		APIKey:       apiKey,
		BaseURL:      DefaultBaseURL,
		Client:       client,
		InitialDelay: 15 * time.Second,
		PollInterval: 5 * time.Second,
		Timeout:      180 * time.Second,
		Logger:       logger,
	}
}

type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// Solve submits ch and polls until the token is ready.
func (s *TwoCaptcha) Solve(ctx context.Context, ch Challenge) (Token, error) {
	tok, err := s.solve(ctx, ch)
	if err != nil {
		metrics.IncrCaptchaFailed()
		return "", err
	}
	metrics.IncrCaptchaSolved()
	return tok, nil
}

func (s *TwoCaptcha) solve(ctx context.Context, ch Challenge) (Token, error) {
	if s.APIKey == "" {
		return "", fmt.Errorf("%w: no API key configured", ErrCaptchaAccount)
	}
	if ch.SiteKey == "" || ch.PageURL == "" {
		return "", fmt.Errorf("captcha: challenge needs a site key and page URL")
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	id, err := s.call(ctx, "in.php", url.Values{
		"method":    {"userrecaptcha"},
		"googlekey": {ch.SiteKey},
		"pageurl":   {ch.PageURL},
	})
	if err != nil {
		return "", s.wrap(ctx, "submit", err)
	}
	logger.Info("captcha submitted", slog.String("id", id))

	wait := s.InitialDelay
	for {
		if err := sleep(ctx, wait); err != nil {
			return "", s.wrap(ctx, "poll", err)
		}
		wait = s.PollInterval

		res, err := s.call(ctx, "res.php", url.Values{
			"action": {"get"},
			"id":     {id},
		})
		if errors.Is(err, errNotReady) {
			logger.Debug("captcha not ready", slog.String("id", id))
			continue
		}
		if err != nil {
			return "", s.wrap(ctx, "poll", err)
		}
		logger.Info("captcha solved", slog.String("id", id))
		return Token(res), nil
	}
}

var errNotReady = errors.New("captcha: not ready")

// call posts form to endpoint with the key and json flag added, and returns
// the request field of a successful response.
func (s *TwoCaptcha) call(ctx context.Context, endpoint string, form url.Values) (string, error) {
	form.Set("key", s.APIKey)
	form.Set("json", "1")

	base := strings.TrimRight(s.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	resp, err := s.Client.PostForm(ctx, base+"/"+endpoint, form)
	if err != nil {
		return "", err
	}

	var r apiResponse
	if err := json.Unmarshal(resp.Body, &r); err != nil {
		return "", fmt.Errorf("captcha: decode %s response: %w", endpoint, err)
	}
	if r.Status == 1 {
		return r.Request, nil
	}
	switch {
	case r.Request == codeNotReady:
		return "", errNotReady
	case r.Request == codeUnsolvable:
		return "", fmt.Errorf("%w: %s", ErrCaptchaUnsolved, r.Request)
	case accountErrors[r.Request]:
		return "", fmt.Errorf("%w: %s", ErrCaptchaAccount, r.Request)
	default:
		return "", fmt.Errorf("captcha: %s: %s", endpoint, r.Request)
	}
}

// wrap turns the solve deadline into ErrCaptchaUnsolved and keeps caller
// cancellation visible to errors.Is.
func (s *TwoCaptcha) wrap(ctx context.Context, stage string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: timed out during %s", ErrCaptchaUnsolved, stage)
	case ctx.Err() != nil:
		return fmt.Errorf("captcha %s: %w", stage, ctx.Err())
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
