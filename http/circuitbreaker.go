package http

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitState mirrors the breaker state of one domain.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	DefaultFailureThreshold    = 5
	DefaultRecoveryTimeout     = 30 * time.Second
	DefaultHalfOpenMaxRequests = 1
)

// ErrCircuitOpen is returned while a domain's breaker refuses requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures the per-domain breakers.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens a circuit.
	FailureThreshold int
	// RecoveryTimeout is how long a circuit stays open before a probe.
	RecoveryTimeout time.Duration
	// HalfOpenMaxRequests is the number of probes allowed while half-open.
	HalfOpenMaxRequests int
	// IsTransientError decides which failures count against the circuit.
	// Permanent failures leave it untouched. Nil counts every error.
	IsTransientError func(error) bool
	Logger           *slog.Logger
}

// DefaultCircuitBreakerConfig returns the default breaker settings.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    DefaultFailureThreshold,
		RecoveryTimeout:     DefaultRecoveryTimeout,
		HalfOpenMaxRequests: DefaultHalfOpenMaxRequests,
	}
}

// CircuitBreaker keeps one gobreaker circuit per domain so an unresponsive
// host fails fast without affecting the others.
type CircuitBreaker struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	config   CircuitBreakerConfig
}

// NewCircuitBreaker fills unset config fields with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = DefaultHalfOpenMaxRequests
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CircuitBreaker{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		config:   cfg,
	}
}

func (cb *CircuitBreaker) breaker(domain string) *gobreaker.CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if b, ok := cb.breakers[domain]; ok {
		return b
	}

	threshold := uint32(cb.config.FailureThreshold)
	transient := cb.config.IsTransientError
	logger := cb.config.Logger
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        domain,
		MaxRequests: uint32(cb.config.HalfOpenMaxRequests),
		Timeout:     cb.config.RecoveryTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return transient != nil && !transient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit state changed",
				slog.String("domain", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	cb.breakers[domain] = b
	return b
}

// Execute runs fn through the domain's circuit.
func (cb *CircuitBreaker) Execute(domain string, fn func() error) error {
	if cb == nil {
		return fn()
	}
	_, err := cb.breaker(domain).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, domain)
	}
	return err
}

// State reports the current state of domain's circuit.
func (cb *CircuitBreaker) State(domain string) CircuitState {
	if cb == nil {
		return CircuitClosed
	}
	switch cb.breaker(domain).State() {
	case gobreaker.StateOpen:
		return CircuitOpen
	case gobreaker.StateHalfOpen:
		return CircuitHalfOpen
	default:
		return CircuitClosed
	}
}
