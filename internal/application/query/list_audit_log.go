package query

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/KingMavin/UniSemi/internal/domain/audit"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
)

// ListAuditLogQuery bounds an audit listing. A non-positive limit uses
// audit.DefaultListLimit.
type ListAuditLogQuery struct {
	Limit int
}

// ListAuditLogHandler returns the newest audit entries first.
type ListAuditLogHandler struct {
	sink audit.Sink
}

// NewListAuditLogHandler creates a new ListAuditLogHandler.
func NewListAuditLogHandler(sink audit.Sink) *ListAuditLogHandler {
	return &ListAuditLogHandler{sink: sink}
}

// Handle executes the listing.
func (h *ListAuditLogHandler) Handle(ctx context.Context, q ListAuditLogQuery) (out []audit.Entry, err error) {
	ctx, span := tracer.Start(ctx, "query.ListAuditLog")
	defer func() { endSpan(span, err) }()

	limit := shared.Limit(q.Limit).Resolve(audit.DefaultListLimit, audit.MaxListLimit)
	span.SetAttributes(attribute.Int("limit", limit))

	out, err = h.sink.ScanReverse(ctx, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []audit.Entry{}
	}
	return out, nil
}
