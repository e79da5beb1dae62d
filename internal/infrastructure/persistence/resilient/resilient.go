// Package resilient wraps a record store and audit sink with the reconnect
// policy: an operation that fails to reach the backend is tried exactly once
// more after a fixed delay, then surfaces as unavailable.
package resilient

import (
	"context"
	"time"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/domain/audit"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
	"github.com/KingMavin/UniSemi/internal/infrastructure/metrics"
	"github.com/KingMavin/UniSemi/pkg/logger"
	"github.com/KingMavin/UniSemi/pkg/retry"
)

// Policy runs store operations under the reconnect retrier.
type Policy struct {
	delay   time.Duration
	sleep   retry.SleepFunc
	backend string
	log     *logger.Logger
	metrics *metrics.Metrics
}

// Option configures a Policy.
type Option func(*Policy)

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *logger.Logger) Option {
	return func(p *Policy) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Policy) { p.metrics = m }
}

// WithSleep replaces the delay wait, for tests.
func WithSleep(fn retry.SleepFunc) Option {
	return func(p *Policy) { p.sleep = fn }
}

// NewPolicy creates a policy for the named backend. A non-positive delay uses
// retry.DefaultReconnectDelay.
func NewPolicy(backend string, delay time.Duration, opts ...Option) *Policy {
	if delay <= 0 {
		delay = retry.DefaultReconnectDelay
	}
	p := &Policy{
		delay:   delay,
		backend: backend,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Policy) retrier(op string) *retry.Retrier {
	opts := []retry.Option{
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			p.metrics.IncStoreRetry(op)
			p.log.Warn("store unreachable, retrying",
				logger.Backend(p.backend),
				logger.Operation(op),
				logger.Attempt(attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	}
	if p.sleep != nil {
		opts = append(opts, retry.WithSleep(p.sleep))
	}
	return retry.ReconnectRetrier(p.delay, shared.IsUnavailable, opts...)
}

// finish turns an exhausted unavailability into kind, keeping err as the
// cause so the backend detail still reaches the logs.
func (p *Policy) finish(kind *shared.DomainError, op string, err error) error {
	if err != nil && shared.IsUnavailable(err) {
		p.metrics.IncStoreUnavailable(op)
		p.log.Error(kind.Message, logger.Backend(p.backend), logger.Operation(op), logger.Err(err))
		return shared.WrapError(kind.Domain, op, kind, kind.Message, err)
	}
	return err
}

// run executes fn under the policy.
func run[T any](ctx context.Context, p *Policy, kind *shared.DomainError, op string, fn func(context.Context) (T, error)) (T, error) {
	out, err := retry.Value(ctx, p.retrier(op), fn)
	return out, p.finish(kind, op, err)
}

// exec executes fn under the policy for operations without a result.
func exec(ctx context.Context, p *Policy, kind *shared.DomainError, op string, fn func(context.Context) error) error {
	return p.finish(kind, op, p.retrier(op).Do(ctx, fn))
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD STORE
// ══════════════════════════════════════════════════════════════════════════════

// RecordStore decorates an academic.RecordStore with the reconnect policy.
type RecordStore struct {
	next   academic.RecordStore
	policy *Policy
}

// NewRecordStore wraps next.
func NewRecordStore(next academic.RecordStore, policy *Policy) *RecordStore {
	return &RecordStore{next: next, policy: policy}
}

var _ academic.RecordStore = (*RecordStore)(nil)

// GetRow implements academic.RecordStore.
func (s *RecordStore) GetRow(ctx context.Context, key string) (academic.Row, error) {
	return run(ctx, s.policy, shared.ErrStoreUnavailable, "GetRow", func(ctx context.Context) (academic.Row, error) {
		return s.next.GetRow(ctx, key)
	})
}

// PutRow implements academic.RecordStore. A retried write whose first
// attempt did commit fails the version check and reports a conflict, which
// the caller resolves by re-reading.
func (s *RecordStore) PutRow(ctx context.Context, key string, cols academic.Columns, expected int64) (int64, error) {
	return run(ctx, s.policy, shared.ErrStoreUnavailable, "PutRow", func(ctx context.Context) (int64, error) {
		return s.next.PutRow(ctx, key, cols, expected)
	})
}

// Scan implements academic.RecordStore.
func (s *RecordStore) Scan(ctx context.Context, limit int) ([]academic.KeyedRow, error) {
	return run(ctx, s.policy, shared.ErrStoreUnavailable, "Scan", func(ctx context.Context) ([]academic.KeyedRow, error) {
		return s.next.Scan(ctx, limit)
	})
}

// DeleteRow implements academic.RecordStore.
func (s *RecordStore) DeleteRow(ctx context.Context, key string) error {
	return exec(ctx, s.policy, shared.ErrStoreUnavailable, "DeleteRow", func(ctx context.Context) error {
		return s.next.DeleteRow(ctx, key)
	})
}

// GetVersions implements academic.RecordStore.
func (s *RecordStore) GetVersions(ctx context.Context, key, column string, max int) ([]academic.Version, error) {
	return run(ctx, s.policy, shared.ErrStoreUnavailable, "GetVersions", func(ctx context.Context) ([]academic.Version, error) {
		return s.next.GetVersions(ctx, key, column, max)
	})
}

// EnsureSchema implements academic.RecordStore.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	return exec(ctx, s.policy, shared.ErrStoreUnavailable, "EnsureSchema", s.next.EnsureSchema)
}

// Ping implements academic.RecordStore.
func (s *RecordStore) Ping(ctx context.Context) error {
	return exec(ctx, s.policy, shared.ErrStoreUnavailable, "Ping", s.next.Ping)
}

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT SINK
// ══════════════════════════════════════════════════════════════════════════════

// AuditSink decorates an audit.Sink with the reconnect policy.
type AuditSink struct {
	next   audit.Sink
	policy *Policy
}

// NewAuditSink wraps next.
func NewAuditSink(next audit.Sink, policy *Policy) *AuditSink {
	return &AuditSink{next: next, policy: policy}
}

var _ audit.Sink = (*AuditSink)(nil)

// Append implements audit.Sink.
func (s *AuditSink) Append(ctx context.Context, e audit.Entry) error {
	return exec(ctx, s.policy, shared.ErrAuditSinkUnavailable, "AuditAppend", func(ctx context.Context) error {
		return s.next.Append(ctx, e)
	})
}

// ScanReverse implements audit.Sink.
func (s *AuditSink) ScanReverse(ctx context.Context, limit int) ([]audit.Entry, error) {
	return run(ctx, s.policy, shared.ErrAuditSinkUnavailable, "AuditScan", func(ctx context.Context) ([]audit.Entry, error) {
		return s.next.ScanReverse(ctx, limit)
	})
}

// Recreate implements audit.Sink.
func (s *AuditSink) Recreate(ctx context.Context) error {
	return exec(ctx, s.policy, shared.ErrAuditSinkUnavailable, "AuditRecreate", s.next.Recreate)
}
