// Package retry provides retry functionality with exponential backoff and jitter,
// built on github.com/cenkalti/backoff/v5. Used for transient storage conflicts.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryableError indicates that an error is retryable.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps an error to indicate it should be retried.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}

// Config holds retry configuration.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first one.
	MaxAttempts uint

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// JitterFactor is the backoff randomization factor (0 disables jitter).
	JitterFactor float64

	// RetryIf decides whether an error is retried.
	// If nil, only RetryableError errors are retried.
	RetryIf func(error) bool

	// OnRetry is called before each retry sleep.
	OnRetry func(err error, delay time.Duration)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// Option is a functional option for configuring retries.
type Option func(*Config)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n uint) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithInitialDelay sets the first retry delay.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InitialDelay = d
		}
	}
}

// WithMaxDelay caps the delay between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

// WithRetryIf sets the retry predicate.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) {
		c.RetryIf = fn
	}
}

// WithOnRetry sets a hook invoked before each retry.
func WithOnRetry(fn func(err error, delay time.Duration)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

// Retrier executes operations with retries.
type Retrier struct {
	config Config
}

// New creates a Retrier.
func New(opts ...Option) *Retrier {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Retrier{config: cfg}
}

// Do runs operation until it succeeds, returns a non-retryable error,
// runs out of attempts or ctx is done. The last error is returned unwrapped.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	_, err := DoWithData(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})
	return err
}

func (r *Retrier) shouldRetry(err error) bool {
	if r.config.RetryIf != nil {
		return r.config.RetryIf(err)
	}
	return IsRetryable(err)
}

func (r *Retrier) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialDelay
	b.MaxInterval = r.config.MaxDelay
	b.Multiplier = r.config.Multiplier
	b.RandomizationFactor = r.config.JitterFactor
	return b
}

// DoWithData is Do for operations that return a value.
func DoWithData[T any](ctx context.Context, r *Retrier, operation func(ctx context.Context) (T, error)) (T, error) {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(r.config.MaxAttempts),
	}
	if r.config.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(r.config.OnRetry))
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := operation(ctx)
		if err == nil {
			return v, nil
		}
		if !r.shouldRetry(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)
}

// DatabaseRetrier returns a retrier tuned for short transactional conflicts.
// isTransient classifies driver errors (serialization failures, deadlocks).
func DatabaseRetrier(isTransient func(error) bool) *Retrier {
	return New(
		WithMaxAttempts(4),
		WithInitialDelay(20*time.Millisecond),
		WithMaxDelay(500*time.Millisecond),
		WithRetryIf(func(err error) bool {
			return IsRetryable(err) || (isTransient != nil && isTransient(err))
		}),
	)
}
