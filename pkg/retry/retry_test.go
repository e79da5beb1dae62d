package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConn = errors.New("connection refused")

func isConn(err error) bool { return errors.Is(err, errConn) }

type recordedSleep struct {
	delays []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestReconnectRetrier_RetriesExactlyOnce(t *testing.T) {
	var rs recordedSleep
	r := ReconnectRetrier(time.Second, isConn, WithSleep(rs.sleep))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errConn
	})

	require.ErrorIs(t, err, errConn)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{time.Second}, rs.delays)
}

func TestReconnectRetrier_SucceedsOnSecondAttempt(t *testing.T) {
	var rs recordedSleep
	r := ReconnectRetrier(time.Second, isConn, WithSleep(rs.sleep))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errConn
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestReconnectRetrier_OtherErrorsNotRetried(t *testing.T) {
	var rs recordedSleep
	r := ReconnectRetrier(time.Second, isConn, WithSleep(rs.sleep))
	boom := errors.New("boom")

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rs.delays)
}

func TestOnRetryReportsAttemptAndDelay(t *testing.T) {
	type call struct {
		attempt int
		delay   time.Duration
	}
	var calls []call

	r := New(
		WithAttempts(4),
		WithBackoff(Fixed(250*time.Millisecond)),
		WithRetryIf(isConn),
		WithSleep((&recordedSleep{}).sleep),
		WithOnRetry(func(attempt int, _ error, delay time.Duration) {
			calls = append(calls, call{attempt, delay})
		}),
	)

	_ = r.Do(context.Background(), func(context.Context) error { return errConn })

	assert.Equal(t, []call{{1, 250 * time.Millisecond}, {2, 250 * time.Millisecond}, {3, 250 * time.Millisecond}}, calls)
}

func TestExponential_GrowsAndCaps(t *testing.T) {
	b := Exponential{Base: 10 * time.Millisecond, Cap: 50 * time.Millisecond, Factor: 2}

	assert.Equal(t, 10*time.Millisecond, b.Delay(1))
	assert.Equal(t, 20*time.Millisecond, b.Delay(2))
	assert.Equal(t, 40*time.Millisecond, b.Delay(3))
	assert.Equal(t, 50*time.Millisecond, b.Delay(4))

	jittered := Exponential{Base: 100 * time.Millisecond, Factor: 1, Jitter: 0.5}
	for i := 0; i < 50; i++ {
		d := jittered.Delay(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}

	assert.Zero(t, Fixed(-time.Second).Delay(1))
}

func TestDefaultDoesNotRetryCancellation(t *testing.T) {
	calls := 0
	err := New(WithSleep((&recordedSleep{}).sleep)).Do(context.Background(), func(context.Context) error {
		calls++
		return context.Canceled
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestValue(t *testing.T) {
	calls := 0
	r := New(WithAttempts(5), WithSleep((&recordedSleep{}).sleep))

	v, err := Value(context.Background(), r, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return -1, errConn
		}
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 3, calls)
}

func TestConflictRetrier_Budget(t *testing.T) {
	r := ConflictRetrier(8, isConn, WithSleep((&recordedSleep{}).sleep))
	assert.Equal(t, 8, r.Attempts())

	calls := 0
	_ = r.Do(context.Background(), func(context.Context) error {
		calls++
		return errConn
	})
	assert.Equal(t, 8, calls)
}

func TestCancelledContextStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := ReconnectRetrier(time.Hour, isConn).Do(ctx, func(context.Context) error {
		calls++
		return errConn
	})
	require.ErrorIs(t, err, errConn)
	assert.Equal(t, 1, calls)
}
