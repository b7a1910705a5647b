// Package circuitbreaker wraps github.com/sony/gobreaker/v2 with the option-style
// configuration used across the engine. It guards optional dependencies (Redis)
// so their faults degrade to the primary store instead of failing requests.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// State represents the current state of the circuit breaker.
type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

var (
	// ErrCircuitOpen is returned when the circuit is open and requests are blocked.
	ErrCircuitOpen = gobreaker.ErrOpenState
	// ErrTooManyRequests is returned when too many requests are made in half-open state.
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

// Config holds circuit breaker configuration.
type Config struct {
	Name string

	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold uint32

	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration

	// MaxHalfOpenRequests is the number of probes allowed while half-open.
	MaxHalfOpenRequests uint32

	OnStateChange func(name string, from, to State)

	// IsFailure decides whether an error counts against the circuit.
	// If nil, all non-nil errors count.
	IsFailure func(error) bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// Option is a functional option for configuring the circuit breaker.
type Option func(*Config)

// WithFailureThreshold sets the failure threshold.
func WithFailureThreshold(n uint32) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

// WithTimeout sets the open-state duration.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithOnStateChange sets the state change callback.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) {
		c.OnStateChange = fn
	}
}

// WithIsFailure sets the failure detection function.
func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) {
		c.IsFailure = fn
	}
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

// New creates a new CircuitBreaker with the given name and options.
func New(name string, opts ...Option) *CircuitBreaker {
	cfg := DefaultConfig(name)
	for _, opt := range opts {
		opt(&cfg)
	}

	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxHalfOpenRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: cfg.OnStateChange,
	}
	if cfg.IsFailure != nil {
		isFailure := cfg.IsFailure
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker[any](settings)}
}

// Execute runs fn if the circuit allows it.
func (c *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// ExecuteWithFallback runs fn and calls fallback when the circuit rejects the call.
func (c *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(error) error) error {
	err := c.Execute(ctx, fn)
	if IsRejected(err) {
		return fallback(err)
	}
	return err
}

// State returns the current state.
func (c *CircuitBreaker) State() State { return c.cb.State() }

// Name returns the breaker name.
func (c *CircuitBreaker) Name() string { return c.cb.Name() }

// IsOpen reports whether calls are currently blocked.
func (c *CircuitBreaker) IsOpen() bool { return c.cb.State() == StateOpen }

// IsRejected reports whether err came from the breaker rather than the call.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

// CacheBreaker returns a breaker for the leaderboard cache. isMiss lets cache
// misses pass without counting as failures.
func CacheBreaker(isMiss func(error) bool, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		"leaderboard-cache",
		WithFailureThreshold(3),
		WithTimeout(15*time.Second),
		WithOnStateChange(onStateChange),
		WithIsFailure(func(err error) bool {
			if errors.Is(err, context.Canceled) {
				return false
			}
			return isMiss == nil || !isMiss(err)
		}),
	)
}
