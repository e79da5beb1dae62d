// Package retry re-runs operations that fail with transient errors.
//
// Two presets cover the record service: ReconnectRetrier gives a dropped
// store connection exactly one more try after a fixed pause, and
// ConflictRetrier re-runs the optimistic save loop with short jittered
// backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Backoff returns the pause before retry number n (1 for the first retry).
type Backoff interface {
	Delay(n int) time.Duration
}

// Fixed waits the same duration before every retry.
type Fixed time.Duration

// Delay implements Backoff.
func (f Fixed) Delay(int) time.Duration {
	if f < 0 {
		return 0
	}
	return time.Duration(f)
}

// Exponential grows the pause by Factor per retry up to Cap. Jitter spreads
// each pause uniformly by ±Jitter of its value.
type Exponential struct {
	Base   time.Duration
	Cap    time.Duration
	Factor float64
	Jitter float64
}

// Delay implements Backoff.
func (e Exponential) Delay(n int) time.Duration {
	factor := e.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(e.Base) * math.Pow(factor, float64(n-1))
	if e.Cap > 0 && d > float64(e.Cap) {
		d = float64(e.Cap)
	}
	if e.Jitter > 0 {
		d += d * e.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(d, 0))
}

// Retrier runs an operation up to a fixed number of attempts.
type Retrier struct {
	attempts int
	backoff  Backoff
	retryIf  func(error) bool
	onRetry  func(attempt int, err error, delay time.Duration)
	sleep    SleepFunc
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithAttempts sets the attempt budget, first try included.
func WithAttempts(n int) Option {
	return func(r *Retrier) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithBackoff sets the pause schedule.
func WithBackoff(b Backoff) Option {
	return func(r *Retrier) {
		if b != nil {
			r.backoff = b
		}
	}
}

// WithRetryIf limits retries to errors fn accepts.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) {
		if fn != nil {
			r.retryIf = fn
		}
	}
}

// WithOnRetry is called before every pause.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(r *Retrier) {
		r.onRetry = fn
	}
}

// WithSleep replaces the pause, for tests.
func WithSleep(fn SleepFunc) Option {
	return func(r *Retrier) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// New creates a Retrier. Without options it makes three attempts with
// exponential backoff and retries every error except context cancellation.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		attempts: 3,
		backoff:  Exponential{Base: 100 * time.Millisecond, Cap: 30 * time.Second, Factor: 2, Jitter: 0.1},
		retryIf:  notCanceled,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attempts returns the attempt budget.
func (r *Retrier) Attempts() int {
	return r.attempts
}

// Do runs op until it succeeds, the budget is spent or an error is not
// retryable. The last error from op is returned unchanged.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= r.attempts || !r.retryIf(err) {
			return err
		}

		delay := r.backoff.Delay(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, err, delay)
		}
		if r.sleep(ctx, delay) != nil {
			return err
		}
	}
}

// Value runs op with r and returns its result.
func Value[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func notCanceled(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESETS
// ══════════════════════════════════════════════════════════════════════════════

// DefaultReconnectDelay is the pause before the single reconnect attempt.
const DefaultReconnectDelay = time.Second

// ReconnectRetrier tries once more after delay when isConnErr reports a
// connectivity failure. Any other error is returned at once.
func ReconnectRetrier(delay time.Duration, isConnErr func(error) bool, opts ...Option) *Retrier {
	base := []Option{
		WithAttempts(2),
		WithBackoff(Fixed(delay)),
		WithRetryIf(isConnErr),
	}
	return New(append(base, opts...)...)
}

// ConflictRetrier re-runs a read-modify-write loop when isConflict reports
// a lost race.
func ConflictRetrier(attempts int, isConflict func(error) bool, opts ...Option) *Retrier {
	base := []Option{
		WithAttempts(attempts),
		WithBackoff(Exponential{Base: 5 * time.Millisecond, Cap: 200 * time.Millisecond, Factor: 2, Jitter: 0.5}),
		WithRetryIf(isConflict),
	}
	return New(append(base, opts...)...)
}
