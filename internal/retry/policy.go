package retry

import (
	"context"
	"log/slog"
	"time"

	"ytscrape/internal/metrics"
)

// Policy wraps a single scripted action: it times the action and retries it
// once when the failure is classified as transient.
type Policy struct {
	// Transient reports whether an error warrants another attempt.
	// Nil means no error is retried.
	Transient ErrorClassifier
	// Retries is the number of extra attempts on a transient error.
	Retries int
	// Backoff is the fixed delay before a retry.
	Backoff time.Duration
	// SlowThreshold logs actions slower than this at warn level. Zero disables.
	SlowThreshold time.Duration
	Logger        *slog.Logger
}

// DefaultPolicy retries transient errors once after a short pause.
func DefaultPolicy(transient ErrorClassifier, logger *slog.Logger) Policy {
	return Policy{
		Transient:     transient,
		Retries:       1,
		Backoff:       250 * time.Millisecond,
		SlowThreshold: 5 * time.Second,
		Logger:        logger,
	}
}

// Do runs fn under the policy. name identifies the action in logs.
func (p Policy) Do(ctx context.Context, name string, fn func(context.Context) error) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	classifier := func(err error) bool {
		return p.Transient != nil && IsRetryable(err) && p.Transient(err)
	}

	cfg := Config{
		MaxRetries:     p.Retries,
		InitialBackoff: p.Backoff,
		MaxBackoff:     p.Backoff,
		Multiplier:     1,
	}

	attempts := 0
	start := time.Now()
	err := Do(ctx, cfg, classifier, func(ctx context.Context) error {
		if attempts > 0 {
			metrics.IncrActionRetries()
			logger.Debug("retrying action", slog.String("action", name), slog.Int("attempt", attempts+1))
		}
		attempts++
		return fn(ctx)
	})
	elapsed := time.Since(start)

	attrs := []any{slog.String("action", name), slog.Duration("elapsed", elapsed)}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	if p.SlowThreshold > 0 && elapsed > p.SlowThreshold {
		metrics.IncrSlowActions()
		logger.Warn("slow action", attrs...)
	} else {
		logger.Debug("action finished", attrs...)
	}
	return err
}

// Value is Do for actions that produce a result.
func Value[T any](ctx context.Context, p Policy, name string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, name, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
