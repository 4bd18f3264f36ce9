package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = errors.New("busy")

func noSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	var waits []time.Duration
	cfg := Config{MaxAttempts: 4, InitialDelay: 10 * time.Millisecond, Sleep: noSleep(&waits)}

	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return errBusy
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, waits)
}

func TestDo_Exhausted(t *testing.T) {
	var waits []time.Duration
	cfg := Config{MaxAttempts: 3, Sleep: noSleep(&waits)}

	err := Do(context.Background(), cfg, func(context.Context) error { return errBusy })

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
	assert.ErrorIs(t, err, errBusy)
	assert.Len(t, waits, 2)
}

func TestDo_NonRetryableReturnsImmediately(t *testing.T) {
	var waits []time.Duration
	other := errors.New("constraint violation")
	cfg := Config{MaxAttempts: 5, RetryableErrors: []error{errBusy}, Sleep: noSleep(&waits)}

	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return other
	})

	assert.Same(t, other, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, waits)
}

func TestDo_RetryIf(t *testing.T) {
	var waits []time.Duration
	cfg := Config{
		MaxAttempts: 5,
		RetryIf:     func(err error) bool { return err.Error() == "busy" },
		Sleep:       noSleep(&waits),
	}

	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls == 1 {
			return errBusy
		}
		return errors.New("fatal")
	})

	assert.EqualError(t, err, "fatal")
	assert.Equal(t, 2, calls)
}

func TestDo_Permanent(t *testing.T) {
	var waits []time.Duration
	cfg := Config{MaxAttempts: 5, Sleep: noSleep(&waits)}

	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return Permanent(errBusy)
	})

	assert.Same(t, errBusy, err)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts: 5,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	calls := 0
	err := Do(ctx, cfg, func(context.Context) error {
		calls++
		return errBusy
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoff_Capped(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 300*time.Millisecond, cfg.Backoff(3))
	assert.Equal(t, 300*time.Millisecond, cfg.Backoff(10))
}

func TestDoWithResult(t *testing.T) {
	var waits []time.Duration
	cfg := Config{Sleep: noSleep(&waits)}

	calls := 0
	v, err := DoWithResult(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errBusy
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
