// Package circuitbreaker stops calling a failing dependency for a cool-down
// period and lets a few probe calls through before trusting it again.
//
// The grade calculator wraps its helper process in a breaker so a broken
// binary costs one failed spawn per cool-down instead of one per save.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the position of the breaker. The numeric values are exported as
// a gauge, so their order is stable.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateHalfOpen: "half-open",
	StateOpen:     "open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

var (
	// ErrCircuitOpen is returned while the circuit rejects calls.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when every half-open probe slot is taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// IsRejected reports whether err came from the breaker rather than the call.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

type settings struct {
	openAfter   int
	closeAfter  int
	cooldown    time.Duration
	probes      int
	onChange    func(name string, from, to State)
	countsAsErr func(error) bool
	now         func() time.Time
}

// Option tunes a breaker. Non-positive numbers keep the default.
type Option func(*settings)

// WithFailureThreshold opens the circuit after n consecutive failures.
// Default 5.
func WithFailureThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.openAfter = n
		}
	}
}

// WithSuccessThreshold closes a half-open circuit after n consecutive
// successful probes. Default 2.
func WithSuccessThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.closeAfter = n
		}
	}
}

// WithTimeout sets how long an open circuit rejects calls. Default 30s.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// WithMaxHalfOpenRequests caps concurrent probes. Default 1.
func WithMaxHalfOpenRequests(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.probes = n
		}
	}
}

// WithOnStateChange registers a hook run on every transition. It runs with
// the breaker locked and must not call back into it.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(s *settings) { s.onChange = fn }
}

// WithIsFailure decides which errors trip the breaker. By default every
// non-nil error does.
func WithIsFailure(fn func(error) bool) Option {
	return func(s *settings) { s.countsAsErr = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// Counts is a snapshot of what the breaker has seen. The streak fields are
// reset on every transition.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker guards calls to one dependency.
type CircuitBreaker struct {
	name string
	set  settings

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probing  int
	epoch    uint64
}

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	set := settings{
		openAfter:  5,
		closeAfter: 2,
		cooldown:   30 * time.Second,
		probes:     1,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&set)
	}
	return &CircuitBreaker{name: name, set: set}
}

// Name returns the name given to New.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn unless the circuit rejects the call, and feeds the
// outcome back into the breaker. fn's error is returned as is.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	epoch, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	cb.settle(epoch, err)
	return err
}

// ExecuteWithFallback is Execute with fallback handling both a rejection and
// a failed call.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(error) error) error {
	err := cb.Execute(ctx, fn)
	if err == nil {
		return nil
	}
	return fallback(err)
}

// admit decides whether a call may start and returns the epoch it started
// in.
func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.set.now().Sub(cb.openedAt) < cb.set.cooldown {
			return 0, ErrCircuitOpen
		}
		cb.moveTo(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probing >= cb.set.probes {
			return 0, ErrTooManyRequests
		}
		cb.probing++
	}
	return cb.epoch, nil
}

// settle records the outcome of an admitted call. Streaks only move for
// calls admitted in the current epoch.
func (cb *CircuitBreaker) settle(epoch uint64, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil && (cb.set.countsAsErr == nil || cb.set.countsAsErr(err))

	cb.counts.Requests++
	if failed {
		cb.counts.TotalFailures++
	} else {
		cb.counts.TotalSuccesses++
	}
	if epoch != cb.epoch {
		return
	}
	if cb.state == StateHalfOpen && cb.probing > 0 {
		cb.probing--
	}

	if !failed {
		cb.counts.ConsecutiveFailures = 0
		cb.counts.ConsecutiveSuccesses++
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.set.closeAfter {
			cb.moveTo(StateClosed)
		}
		return
	}

	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures++
	if cb.state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.set.openAfter {
		cb.moveTo(StateOpen)
	}
}

func (cb *CircuitBreaker) moveTo(next State) {
	prev := cb.state
	if prev == next {
		return
	}
	cb.state = next
	cb.epoch++
	cb.probing = 0
	cb.counts.ConsecutiveFailures = 0
	cb.counts.ConsecutiveSuccesses = 0
	if next == StateOpen {
		cb.openedAt = cb.set.now()
	}
	if cb.set.onChange != nil {
		cb.set.onChange(cb.name, prev, next)
	}
}

// State returns the current state. An open circuit whose cool-down has
// passed still reports open until the next call is admitted.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the circuit and zeroes the counts.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.moveTo(StateClosed)
	cb.counts = Counts{}
}
