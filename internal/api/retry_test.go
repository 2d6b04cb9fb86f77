package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestRetryPolicy_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return &APIError{Kind: KindTransport, StatusCode: 503, Message: "unavailable"}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "transport errors consume the whole attempt budget")
	assert.Equal(t, KindTransport, AsAPIError(err).Kind)
}

func TestRetryPolicy_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), func() error {
		calls++
		return &APIError{Kind: KindValidation, StatusCode: 422, Message: "bad input"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-retryable errors must not be retried")
	assert.Equal(t, KindValidation, AsAPIError(err).Kind)
}

func TestRetryPolicy_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &APIError{Kind: KindTransport, Message: "flaky"}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_HonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := fastPolicy(10).Do(ctx, func() error {
		calls++
		cancel()
		return &APIError{Kind: KindTransport, Message: "down"}
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "no further attempts after cancellation")
}

func TestRetryPolicy_MinimumOneAttempt(t *testing.T) {
	calls := 0
	err := RetryPolicy{MaxAttempts: 0}.Do(context.Background(), func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}
