package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := New("calc", WithFailureThreshold(3))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
		assert.Equal(t, StateClosed, cb.State())
	}
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejected(err))
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailureRun(t *testing.T) {
	cb := New("calc", WithFailureThreshold(2))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, ok))
	_ = cb.Execute(ctx, fail)

	assert.Equal(t, StateClosed, cb.State())
	counts := cb.Counts()
	assert.Equal(t, 3, counts.Requests)
	assert.Equal(t, 2, counts.TotalFailures)
	assert.Equal(t, 1, counts.TotalSuccesses)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	var transitions []string
	cb := New("calc",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithTimeout(time.Minute),
		WithClock(clock.Now),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(59 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)

	clock.Advance(time.Second)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cb := New("calc", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(clock.Now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cb := New("calc", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(clock.Now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrTooManyRequests)
	close(release)
	require.NoError(t, <-done)
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	ignored := errors.New("ignored")
	cb := New("calc", WithFailureThreshold(1), WithIsFailure(func(err error) bool {
		return !errors.Is(err, ignored)
	}))

	err := cb.Execute(context.Background(), func(context.Context) error { return ignored })
	assert.ErrorIs(t, err, ignored)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ExecuteWithFallback(t *testing.T) {
	cb := New("calc", WithFailureThreshold(1))
	ctx := context.Background()

	var seen []error
	fallback := func(err error) error {
		seen = append(seen, err)
		return nil
	}

	require.NoError(t, cb.ExecuteWithFallback(ctx, fail, fallback))
	require.NoError(t, cb.ExecuteWithFallback(ctx, ok, fallback))
	require.Len(t, seen, 2)
	assert.ErrorIs(t, seen[0], errBoom)
	assert.ErrorIs(t, seen[1], ErrCircuitOpen)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New("calc", WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), fail)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
	assert.Equal(t, "calc", cb.Name())
}

func TestCircuitBreaker_LateOutcomeIgnoredAfterTransition(t *testing.T) {
	cb := New("calc", WithFailureThreshold(1))
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return errBoom
		})
	}()
	<-started

	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())
	cb.Reset()

	close(release)
	assert.ErrorIs(t, <-done, errBoom)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Counts().ConsecutiveFailures)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
