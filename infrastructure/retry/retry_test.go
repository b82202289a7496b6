package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{MaxAttempts: attempts, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 2}
}

func TestDo_SucceedsAfterRetryableFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("flaky"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult_ReturnsUnwrappedLastError(t *testing.T) {
	flaky := errors.New("flaky")
	calls := 0
	_, err := DoWithResult(context.Background(), fastConfig(3), func() (int, error) {
		calls++
		return 0, Retryable(flaky)
	})

	assert.Equal(t, 3, calls)
	assert.Same(t, flaky, err)
	assert.False(t, IsRetryable(err))
}

func TestDoWithResult_RetryIf(t *testing.T) {
	transient := errors.New("transient")
	cfg := fastConfig(2)
	cfg.RetryIf = func(err error) bool { return errors.Is(err, transient) }

	calls := 0
	got, err := DoWithResult(context.Background(), cfg, func() (string, error) {
		calls++
		if calls == 1 {
			return "", transient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastConfig(3)
	cfg.InitialWait = time.Hour
	cfg.MaxWait = time.Hour

	err := Do(ctx, cfg, func() error {
		return Retryable(errors.New("flaky"))
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryer_PausesStayWithinMaxWait(t *testing.T) {
	r := newRetryer(Config{MaxAttempts: 10, InitialWait: 100 * time.Millisecond, MaxWait: 300 * time.Millisecond, Multiplier: 2})
	transient := Retryable(errors.New("flaky"))

	for i := 0; i < 9; i++ {
		pause, ok := r.Retry(transient)
		require.True(t, ok, "attempt %d", i+2)
		assert.Greater(t, pause, time.Duration(0))
		assert.LessOrEqual(t, pause, 300*time.Millisecond)
	}
	_, ok := r.Retry(transient)
	assert.False(t, ok, "attempts are bounded")
}

func TestRetryer_SingleAttemptNeverRetries(t *testing.T) {
	r := newRetryer(Config{})
	_, ok := r.Retry(Retryable(errors.New("flaky")))
	assert.False(t, ok)
}
