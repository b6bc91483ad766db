package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastConfig backs off in milliseconds without jitter.
func fastConfig(retries int) Config {
	return Config{
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}
}

// failing returns an fn that fails n times with err, then succeeds.
func failing(n int, err error, calls *int) func(context.Context) error {
	return func(context.Context) error {
		*calls++
		if *calls <= n {
			return err
		}
		return nil
	}
}

func TestDo(t *testing.T) {
	errFlaky := errors.New("connection reset")
	errBad := errors.New("bad request")
	onlyFlaky := func(err error) bool { return errors.Is(err, errFlaky) }

	tests := []struct {
		name       string
		failures   int
		err        error
		classifier ErrorClassifier
		wantCalls  int
		wantErr    error
	}{
		{"first try", 0, nil, nil, 1, nil},
		{"recovers", 2, errFlaky, onlyFlaky, 3, nil},
		{"not classified retryable", 5, errBad, onlyFlaky, 1, errBad},
		{"marked permanent", 5, Permanent(errFlaky), nil, 1, errFlaky},
		{"exhausted", 10, errFlaky, nil, 4, errFlaky},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), fastConfig(3), tt.classifier, failing(tt.failures, tt.err, &calls))
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDo_ExhaustedIsRetryableError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(2), nil, failing(10, errors.New("timeout"), &calls))

	var re *RetryableError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 2, re.Retries)
	assert.Contains(t, err.Error(), "failed after 2 retries")
}

func TestDo_StopsOnCancel(t *testing.T) {
	cfg := fastConfig(5)
	cfg.InitialBackoff = time.Second
	cfg.MaxBackoff = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, cfg, nil, func(context.Context) error {
		calls++
		cancel()
		return errors.New("flaky")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_DeadlineNotRetried(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	calls := 0
	err := Do(ctx, fastConfig(5), nil, func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestDo_BackoffGrowsAndCaps(t *testing.T) {
	cfg := fastConfig(4)
	cfg.MaxBackoff = 3 * time.Millisecond

	var waits []time.Duration
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		assert.Equal(t, len(waits)+1, attempt)
		waits = append(waits, wait)
	}
	calls := 0
	_ = Do(context.Background(), cfg, nil, failing(10, errors.New("flaky"), &calls))

	assert.Equal(t, []time.Duration{
		time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 3 * time.Millisecond,
	}, waits)
}

func TestDo_RetryAfterHint(t *testing.T) {
	cfg := fastConfig(1)
	cfg.MaxBackoff = 50 * time.Millisecond
	cfg.RetryAfter = func(error) time.Duration { return 20 * time.Millisecond }

	var wait time.Duration
	cfg.OnRetry = func(_ int, _ error, w time.Duration) { wait = w }

	calls := 0
	require.NoError(t, Do(context.Background(), cfg, nil, failing(1, errors.New("429"), &calls)))
	assert.Equal(t, 20*time.Millisecond, wait)

	// Hints never exceed MaxBackoff.
	cfg.RetryAfter = func(error) time.Duration { return time.Hour }
	calls = 0
	require.NoError(t, Do(context.Background(), cfg, nil, failing(1, errors.New("429"), &calls)))
	assert.Equal(t, 50*time.Millisecond, wait)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, true},
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", context.DeadlineExceeded, false},
		{"permanent", Permanent(errors.New("bad selector")), false},
		{"wrapped permanent", fmt.Errorf("click: %w", Permanent(errors.New("gone"))), false},
		{"wrapped canceled", fmt.Errorf("navigate: %w", context.Canceled), false},
		{"generic error", errors.New("generic"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestPermanent(t *testing.T) {
	assert.NoError(t, Permanent(nil))

	base := errors.New("selector is invalid")
	err := Permanent(base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, base.Error(), err.Error())
}

func TestJitterBounds(t *testing.T) {
	assert.Zero(t, jitter(time.Second, 0))
	for i := 0; i < 100; i++ {
		j := jitter(time.Second, 0.2)
		assert.LessOrEqual(t, j, 200*time.Millisecond)
		assert.GreaterOrEqual(t, j, -200*time.Millisecond)
	}
}
