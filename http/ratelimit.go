package http

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Backoff tuning for servers that answer 429/503.
const (
	InitialBackoff        = 1 * time.Second
	MaxBackoff            = 60 * time.Second
	BackoffMultiplier     = 2.0
	BackoffCooldownPeriod = 5 * time.Minute
	// MinRPSMultiplier is the floor of the dynamic rate reduction.
	MinRPSMultiplier = 0.25
)

// RateLimiterConfig defines per-domain request pacing.
type RateLimiterConfig struct {
	// DefaultRPS applies to domains without a custom rate. Zero means unlimited.
	DefaultRPS float64
	// CustomRates maps a host name to its requests per second.
	CustomRates map[string]float64
	// EnableDynamicBackoff slows a domain down after rate limit responses.
	EnableDynamicBackoff bool
}

// DefaultRateLimiterConfig paces solver API calls conservatively.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		DefaultRPS: 2,
		CustomRates: map[string]float64{
			"2captcha.com": 1,
		},
		EnableDynamicBackoff: true,
	}
}

// BackoffState tracks rate limit backoff for a domain.
type BackoffState struct {
	CurrentBackoff    time.Duration
	LastError         time.Time
	ConsecutiveErrors int
	OriginalRPS       float64
	// ReducedRPS is the current reduced rate (0 means using original).
	ReducedRPS float64
}

// RateLimiter keeps one token bucket per domain.
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	backoff  map[string]*BackoffState
	config   RateLimiterConfig
}

// NewRateLimiter creates a limiter with the given configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.CustomRates == nil {
		cfg.CustomRates = make(map[string]float64)
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		backoff:  make(map[string]*BackoffState),
		config:   cfg,
	}
}

// Wait blocks until a request to urlStr is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	if rl == nil {
		return nil
	}
	limiter := rl.limiter(Domain(urlStr))
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (rl *RateLimiter) limiter(domain string) *rate.Limiter {
	rps := rl.rps(domain)
	if rps <= 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.limiters[domain]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(rps), 1)
	rl.limiters[domain] = l
	return l
}

func (rl *RateLimiter) rps(domain string) float64 {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if rps, ok := rl.config.CustomRates[domain]; ok {
		return rps
	}
	return rl.config.DefaultRPS
}

// RecordRateLimitError registers a 429/503 from urlStr's domain and returns
// how long to back off. A longer Retry-After from the server wins.
func (rl *RateLimiter) RecordRateLimitError(urlStr string, retryAfter time.Duration) time.Duration {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		if retryAfter > 0 {
			return retryAfter
		}
		return InitialBackoff
	}

	domain := Domain(urlStr)
	original := rl.rps(domain)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	st, ok := rl.backoff[domain]
	if !ok {
		st = &BackoffState{CurrentBackoff: InitialBackoff, OriginalRPS: original}
		rl.backoff[domain] = st
	}
	st.LastError = time.Now()
	st.ConsecutiveErrors++
	if st.ConsecutiveErrors > 1 {
		st.CurrentBackoff = time.Duration(float64(st.CurrentBackoff) * BackoffMultiplier)
		if st.CurrentBackoff > MaxBackoff {
			st.CurrentBackoff = MaxBackoff
		}
	}
	if retryAfter > st.CurrentBackoff {
		st.CurrentBackoff = retryAfter
	}

	// 1 error: 75%, 2 errors: 50%, 3+ errors: 25%
	factor := 0.75
	switch {
	case st.ConsecutiveErrors >= 3:
		factor = MinRPSMultiplier
	case st.ConsecutiveErrors == 2:
		factor = 0.5
	}
	if st.OriginalRPS > 0 {
		st.ReducedRPS = st.OriginalRPS * factor
		if l, ok := rl.limiters[domain]; ok {
			l.SetLimit(rate.Limit(st.ReducedRPS))
		}
	}
	return st.CurrentBackoff
}

// RecordSuccess lets a domain recover from earlier rate limiting.
func (rl *RateLimiter) RecordSuccess(urlStr string) {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		return
	}
	domain := Domain(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	st, ok := rl.backoff[domain]
	if !ok {
		return
	}
	if time.Since(st.LastError) > BackoffCooldownPeriod {
		if l, ok := rl.limiters[domain]; ok && st.ReducedRPS > 0 {
			l.SetLimit(rate.Limit(st.OriginalRPS))
		}
		delete(rl.backoff, domain)
		return
	}
	if st.ConsecutiveErrors > 0 {
		st.ConsecutiveErrors--
	}
}

// Backoff returns a copy of the domain's backoff state, or nil.
func (rl *RateLimiter) Backoff(urlStr string) *BackoffState {
	if rl == nil {
		return nil
	}
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if st, ok := rl.backoff[Domain(urlStr)]; ok {
		cp := *st
		return &cp
	}
	return nil
}

// WaitForBackoff sleeps out any remaining backoff for urlStr's domain.
func (rl *RateLimiter) WaitForBackoff(ctx context.Context, urlStr string) error {
	st := rl.Backoff(urlStr)
	if st == nil {
		return nil
	}
	remaining := st.CurrentBackoff - time.Since(st.LastError)
	if remaining <= 0 {
		return nil
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Domain returns the host of urlStr without port, or "unknown".
func Domain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	host := u.Host
	if i := strings.IndexByte(host, ':'); i != -1 {
		host = host[:i]
	}
	return host
}
