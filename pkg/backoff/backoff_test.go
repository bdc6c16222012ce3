package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayDoublesUpToCap(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, p.Delay(0))
	assert.Equal(t, 200*time.Millisecond, p.Delay(1))
	assert.Equal(t, 400*time.Millisecond, p.Delay(2))
	assert.Equal(t, 500*time.Millisecond, p.Delay(3))
	assert.Equal(t, 500*time.Millisecond, p.Delay(10))
}

func TestDelayJitterStaysInBounds(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Jitter: 0.5}

	for i := 0; i < 50; i++ {
		d := p.Delay(1) // nominal 200ms, spread 100ms
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
	}
}

func TestRetryStopsAfterMaxAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	errTransient := errors.New("transient")
	err := p.Retry(context.Background(), func() error {
		calls++
		return errTransient
	}, nil)

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestRetrySucceedsMidway(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := p.Retry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryRespectsRetryablePredicate(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	permanent := errors.New("permanent")
	calls := 0
	err := p.Retry(context.Background(), func() error {
		calls++
		return permanent
	}, func(err error) bool { return !errors.Is(err, permanent) })

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls, "non-retryable errors fail immediately")
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Retry(ctx, func() error {
			calls++
			return errors.New("transient")
		}, nil)
	}()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls, "cancellation pre-empts the backoff sleep")
	case <-time.After(time.Second):
		t.Fatal("retry ignored context cancellation")
	}
}

func TestZeroPolicyFallsBackToDefaults(t *testing.T) {
	var p Policy

	calls := 0
	err := p.Retry(context.Background(), func() error {
		calls++
		if calls == 1 {
			return nil
		}
		return errors.New("unreachable")
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	assert.Equal(t, DefaultBaseDelay, p.Delay(0))
	assert.Equal(t, DefaultMaxDelay, p.Delay(63))
}
