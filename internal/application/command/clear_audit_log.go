package command

import (
	"context"

	"github.com/KingMavin/UniSemi/internal/domain/audit"
	"github.com/KingMavin/UniSemi/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLEAR AUDIT LOG COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// SystemResetDetails is the details text of the entry left after a clear.
const SystemResetDetails = "Admin cleared history"

// Flusher waits for previously recorded audit entries to reach the sink.
type Flusher interface {
	Flush(ctx context.Context) error
}

// ClearAuditLogHandler empties the audit sink and leaves a single
// SYSTEM_RESET entry.
type ClearAuditLogHandler struct {
	sink     audit.Sink
	recorder audit.Recorder
	flusher  Flusher
	log      *logger.Logger
}

// NewClearAuditLogHandler creates a new ClearAuditLogHandler. flusher may be
// nil when recorder writes synchronously.
func NewClearAuditLogHandler(sink audit.Sink, recorder audit.Recorder, flusher Flusher, log *logger.Logger) *ClearAuditLogHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ClearAuditLogHandler{
		sink:     sink,
		recorder: recorder,
		flusher:  flusher,
		log:      log.With(logger.Component("clear_audit_log")),
	}
}

// Handle recreates the sink and records the reset. Entries still queued when
// the clear starts are written first, so they do not reappear afterwards.
func (h *ClearAuditLogHandler) Handle(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "command.ClearAuditLog")
	defer func() { endSpan(span, err) }()

	if h.flusher != nil {
		if err := h.flusher.Flush(ctx); err != nil {
			h.log.Warn("audit flush before clear failed", logger.Err(err))
		}
	}

	if err := h.sink.Recreate(ctx); err != nil {
		return err
	}

	h.recorder.Record(ctx, audit.ActionSystemReset, SystemResetDetails)
	if h.flusher != nil {
		if err := h.flusher.Flush(ctx); err != nil {
			h.log.Warn("audit flush after clear failed", logger.Err(err))
		}
	}

	h.log.Info("audit log cleared")
	return nil
}
