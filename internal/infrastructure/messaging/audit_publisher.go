// Package messaging delivers audit entries to the audit sink off the request
// path.
package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/KingMavin/UniSemi/internal/domain/audit"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
	"github.com/KingMavin/UniSemi/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT PUBLISHER
// ══════════════════════════════════════════════════════════════════════════════

// AuditPublisherConfig contains configuration for AuditPublisher.
type AuditPublisherConfig struct {
	// BufferSize is the queue capacity. Zero writes every entry inline.
	BufferSize int

	// WriteTimeout bounds a single sink write.
	WriteTimeout time.Duration

	// DrainTimeout bounds how long Close waits for queued entries.
	DrainTimeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger

	// Metrics may be nil.
	Metrics *metrics.Metrics

	// Now stamps entries; nil uses time.Now.
	Now func() time.Time
}

// DefaultAuditPublisherConfig returns sensible defaults.
func DefaultAuditPublisherConfig() AuditPublisherConfig {
	return AuditPublisherConfig{
		BufferSize:   256,
		WriteTimeout: 5 * time.Second,
		DrainTimeout: 10 * time.Second,
	}
}

// job is one queue element: an entry to write, or a flush marker.
type job struct {
	entry   audit.Entry
	flushed chan struct{}
}

// AuditPublisher records audit entries without failing the caller. Entries
// are stamped and assigned their id when recorded, then written by a single
// worker in the order they were queued.
type AuditPublisher struct {
	sink    audit.Sink
	ids     *audit.IDGenerator
	config  AuditPublisherConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	queue  chan job
	closed bool
	done   chan struct{}
}

var _ audit.Recorder = (*AuditPublisher)(nil)

// NewAuditPublisher creates a publisher writing to sink and starts its worker
// when the config asks for a buffer.
func NewAuditPublisher(sink audit.Sink, config AuditPublisherConfig) *AuditPublisher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = 10 * time.Second
	}

	p := &AuditPublisher{
		sink:    sink,
		ids:     audit.NewIDGenerator(config.Now),
		config:  config,
		logger:  config.Logger.With("component", "audit_publisher"),
		metrics: config.Metrics,
		done:    make(chan struct{}),
	}

	if config.BufferSize > 0 {
		p.queue = make(chan job, config.BufferSize)
		go p.run()
	} else {
		close(p.done)
	}

	return p
}

// Record implements audit.Recorder. Failures are logged and counted, never
// returned.
func (p *AuditPublisher) Record(ctx context.Context, action audit.Action, details string) {
	entry := p.ids.NewEntry(action, details)
	if err := p.Emit(ctx, entry); err != nil {
		p.logger.Warn("audit entry dropped",
			"action", string(action),
			"id", entry.ID,
			"error", err,
		)
	}
}

// Emit queues entry, or writes it inline in synchronous mode. It never
// blocks on a full queue.
func (p *AuditPublisher) Emit(ctx context.Context, entry audit.Entry) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.metrics.IncAuditDropped("closed")
		return shared.ErrAuditClosed
	}

	if p.queue == nil {
		return p.write(ctx, entry)
	}

	select {
	case p.queue <- job{entry: entry}:
		return nil
	default:
		p.metrics.IncAuditDropped("queue_full")
		return shared.ErrAuditQueueFull
	}
}

// Flush blocks until every entry queued before the call has been handled.
func (p *AuditPublisher) Flush(ctx context.Context) error {
	p.mu.RLock()
	if p.closed || p.queue == nil {
		p.mu.RUnlock()
		return nil
	}
	marker := make(chan struct{})
	select {
	case p.queue <- job{flushed: marker}:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting entries and drains the queue, waiting at most the
// configured drain timeout.
func (p *AuditPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.queue != nil {
		close(p.queue)
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.config.DrainTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		p.logger.Info("audit publisher closed")
		return nil
	case <-timer.C:
		p.logger.Error("audit publisher drain timed out", "pending", len(p.queue))
		return shared.ErrTimeout
	}
}

// Pending returns the number of queued entries.
func (p *AuditPublisher) Pending() int {
	if p.queue == nil {
		return 0
	}
	return len(p.queue)
}

func (p *AuditPublisher) run() {
	defer close(p.done)

	for j := range p.queue {
		if j.flushed != nil {
			close(j.flushed)
			continue
		}
		if err := p.write(context.Background(), j.entry); err != nil {
			p.logger.Error("audit write failed",
				"action", string(j.entry.Action),
				"id", j.entry.ID,
				"error", err,
			)
		}
	}
}

// write persists one entry with its own timeout, detached from the
// caller's cancellation.
func (p *AuditPublisher) write(ctx context.Context, entry audit.Entry) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.WriteTimeout)
	defer cancel()

	if err := p.sink.Append(ctx, entry); err != nil {
		p.metrics.IncAuditDropped("sink_error")
		return err
	}
	p.metrics.IncAuditWritten()
	return nil
}
