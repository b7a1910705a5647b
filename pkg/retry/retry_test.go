package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConflict = errors.New("conflict")

func fastRetrier(opts ...Option) *Retrier {
	base := []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond)}
	return New(append(base, opts...)...)
}

func TestDo_RetriesRetryableErrors(t *testing.T) {
	r := fastRetrier(WithMaxAttempts(5))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errConflict)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	r := fastRetrier(WithMaxAttempts(5))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errConflict
	})

	assert.ErrorIs(t, err, errConflict)
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	var notified int
	r := fastRetrier(
		WithMaxAttempts(3),
		WithOnRetry(func(error, time.Duration) { notified++ }),
	)

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(errConflict)
	})

	assert.ErrorIs(t, err, errConflict)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, notified)
}

func TestDoWithData(t *testing.T) {
	r := fastRetrier()

	calls := 0
	v, err := DoWithData(context.Background(), r, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, Retryable(errConflict)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDatabaseRetrier(t *testing.T) {
	transient := errors.New("40001")
	r := DatabaseRetrier(func(err error) bool { return errors.Is(err, transient) })

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return transient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryableNil(t *testing.T) {
	assert.Nil(t, Retryable(nil))
	assert.False(t, IsRetryable(errConflict))
}
