// Package http is the outbound HTTP client used for third-party services
// such as the captcha solver: retries with backoff, per-domain rate
// limiting and circuit breaking.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ytscrape/internal/retry"
)

// Client wraps an HTTP client with retry logic and rate limit handling.
type Client struct {
	base           *http.Client
	config         *Config
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
	logger         *slog.Logger
}

// Config holds HTTP client configuration.
type Config struct {
	// Timeout for individual HTTP requests
	Timeout time.Duration
	Retry   retry.Config
	// UserAgent is sent when the request sets none.
	UserAgent      string
	RateLimiter    RateLimiterConfig
	CircuitBreaker CircuitBreakerConfig
	Transport      TransportConfig
	Logger         *slog.Logger
}

// TransportConfig configures connection pooling.
type TransportConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	ForceAttemptHTTP2   bool
}

// DefaultConfig returns sensible defaults for HTTP client configuration.
func DefaultConfig() *Config {
	cb := DefaultCircuitBreakerConfig()
	cb.IsTransientError = IsTransientHTTPError
	return &Config{
		Timeout: 30 * time.Second,
		Retry: retry.Config{
			MaxRetries:     3,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     15 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.2,
		},
		UserAgent:      "ytscrape/1.0",
		RateLimiter:    DefaultRateLimiterConfig(),
		CircuitBreaker: cb,
		Transport: TransportConfig{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

// New creates a client. A nil cfg uses DefaultConfig.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CircuitBreaker.Logger == nil {
		cfg.CircuitBreaker.Logger = logger
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Transport.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Transport.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.Transport.IdleConnTimeout,
		ForceAttemptHTTP2:   cfg.Transport.ForceAttemptHTTP2,
	}

	return &Client{
		base:           &http.Client{Timeout: cfg.Timeout, Transport: transport},
		config:         cfg,
		rateLimiter:    NewRateLimiter(cfg.RateLimiter),
		circuitBreaker: NewCircuitBreaker(cfg.CircuitBreaker),
		logger:         logger,
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Get performs a GET request with retry logic.
func (c *Client) Get(ctx context.Context, urlStr string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, urlStr, nil, nil)
}

// PostForm posts url-encoded form values. Values travel in the body, so
// secrets among them never appear in URLs or error messages.
func (c *Client) PostForm(ctx context.Context, urlStr string, form url.Values) (*Response, error) {
	return c.Do(ctx, http.MethodPost, urlStr, []byte(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
}

// Do performs a request with rate limiting, retries and circuit breaking.
// body is replayed on every attempt.
func (c *Client) Do(ctx context.Context, method, urlStr string, body []byte, headers map[string]string) (*Response, error) {
	domain := Domain(urlStr)

	var out *Response
	err := c.circuitBreaker.Execute(domain, func() error {
		if err := c.rateLimiter.WaitForBackoff(ctx, urlStr); err != nil {
			return err
		}
		return retry.Do(ctx, c.retryConfig(method, domain), c.isRetryableHTTPError, func(ctx context.Context) error {
			if err := c.rateLimiter.Wait(ctx, urlStr); err != nil {
				return err
			}
			resp, err := c.attempt(ctx, method, urlStr, body, headers)
			if err != nil {
				c.logger.Debug("http attempt failed",
					slog.String("method", method),
					slog.String("domain", domain),
					slog.Any("error", err),
				)
				return err
			}
			out = resp
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	c.rateLimiter.RecordSuccess(urlStr)
	return out, nil
}

// retryConfig adds Retry-After handling and retry logging to the
// configured backoff.
func (c *Client) retryConfig(method, domain string) retry.Config {
	rc := c.config.Retry
	if rc.RetryAfter == nil {
		rc.RetryAfter = func(err error) time.Duration {
			var rl *RateLimitError
			if errors.As(err, &rl) {
				return rl.RetryAfter
			}
			return 0
		}
	}
	if rc.OnRetry == nil {
		rc.OnRetry = func(attempt int, err error, wait time.Duration) {
			c.logger.Debug("retrying http request",
				slog.String("method", method),
				slog.String("domain", domain),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.Any("error", err),
			)
		}
	}
	return rc
}

func (c *Client) attempt(ctx context.Context, method, urlStr string, body []byte, headers map[string]string) (*Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, rdr)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRequestFailed, method, redact(urlStr), unwrapURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		retryAfter := parseRetryAfter(resp.Header)
		if backoff := c.rateLimiter.RecordRateLimitError(urlStr, retryAfter); backoff > retryAfter {
			retryAfter = backoff
		}
		return nil, &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: data}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) isRetryableHTTPError(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	return IsTransientHTTPError(err)
}

// IsTransientHTTPError reports whether err may succeed on a later attempt:
// network failures, rate limiting and 5xx responses.
func IsTransientHTTPError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode >= 500
	}
	return errors.Is(err, ErrRequestFailed)
}

func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// redact drops the query string, which may carry credentials.
func redact(urlStr string) string {
	if i := strings.IndexByte(urlStr, '?'); i != -1 {
		return urlStr[:i]
	}
	return urlStr
}

// unwrapURLError strips *url.Error, whose message repeats the full URL.
func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.base.CloseIdleConnections()
	return nil
}
