package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserError(t *testing.T) {
	err := NewUserError("amount must be greater than 0", ErrInvalidAmount)

	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, "amount must be greater than 0", UserMessage(err))
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
	assert.Empty(t, UserMessage(nil))

	wrapped := fmt.Errorf("resolve: %w", err)
	assert.Equal(t, "amount must be greater than 0", UserMessage(wrapped))
}

func TestWithRetry(t *testing.T) {
	opts := RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return ErrNotifierUnavailable
			}
			return nil
		}, opts)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return ErrNotifierUnavailable
		}, opts)
		require.ErrorIs(t, err, ErrMaxRetries)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		permanent := &RetryableError{Err: errors.New("bad request"), Retryable: false}
		err := WithRetry(context.Background(), func() error {
			calls++
			return permanent
		}, opts)
		require.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", lvl.String())

	_, err = ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCompileRegex(t *testing.T) {
	re, groups, err := CompileRegex(`消费(\d+\.?\d*)元`)
	require.NoError(t, err)
	assert.Equal(t, 1, groups)
	assert.True(t, re.MatchString("消费12元"))

	_, _, err = CompileRegex(`(unclosed`)
	assert.Error(t, err)

	ok, err := MatchRegex(`(?i)bank`, "BANK alert")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRetryOptions_Backoff(t *testing.T) {
	opts := RetryOptions{InitialDelay: 10 * time.Millisecond, MaxDelay: 35 * time.Millisecond}.withDefaults()
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, opts.backoff(1))
	assert.Equal(t, 20*time.Millisecond, opts.backoff(2))
	assert.Equal(t, 35*time.Millisecond, opts.backoff(3))
	assert.Equal(t, 35*time.Millisecond, opts.backoff(10))
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, func() error {
		calls++
		cancel()
		return ErrNotifierUnavailable
	}, RetryOptions{MaxAttempts: 5, InitialDelay: time.Hour})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
