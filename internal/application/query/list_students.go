package query

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
)

// ListStudentsQuery bounds a listing. A non-positive limit uses the default.
type ListStudentsQuery struct {
	Limit int
}

// ListStudentsHandler returns record summaries in matric order.
type ListStudentsHandler struct {
	store        academic.RecordStore
	defaultLimit int
	maxLimit     int
}

// ListStudentsOption configures a ListStudentsHandler.
type ListStudentsOption func(*ListStudentsHandler)

// WithStudentLimits overrides the default and maximum page size. Non-positive
// values keep the built-in bounds.
func WithStudentLimits(def, max int) ListStudentsOption {
	return func(h *ListStudentsHandler) {
		if def > 0 {
			h.defaultLimit = def
		}
		if max > 0 {
			h.maxLimit = max
		}
		if h.defaultLimit > h.maxLimit {
			h.defaultLimit = h.maxLimit
		}
	}
}

// NewListStudentsHandler creates a new ListStudentsHandler.
func NewListStudentsHandler(store academic.RecordStore, opts ...ListStudentsOption) *ListStudentsHandler {
	h := &ListStudentsHandler{
		store:        store,
		defaultLimit: DefaultStudentLimit,
		maxLimit:     MaxStudentLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle executes the listing.
func (h *ListStudentsHandler) Handle(ctx context.Context, q ListStudentsQuery) (out []academic.StudentSummary, err error) {
	ctx, span := tracer.Start(ctx, "query.ListStudents")
	defer func() { endSpan(span, err) }()

	limit := shared.Limit(q.Limit).Resolve(h.defaultLimit, h.maxLimit)
	span.SetAttributes(attribute.Int("limit", limit))

	rows, err := h.store.Scan(ctx, limit)
	if err != nil {
		return nil, err
	}

	out = make([]academic.StudentSummary, 0, len(rows))
	for _, kr := range rows {
		out = append(out, academic.SummaryFromRow(kr))
	}
	return out, nil
}
