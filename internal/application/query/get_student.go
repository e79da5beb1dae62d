package query

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentQuery names the record to load.
type GetStudentQuery struct {
	MatricNumber string
}

// GetStudentHandler loads one full record.
type GetStudentHandler struct {
	store academic.RecordStore
}

// NewGetStudentHandler creates a new GetStudentHandler.
func NewGetStudentHandler(store academic.RecordStore) *GetStudentHandler {
	return &GetStudentHandler{store: store}
}

// Handle returns the record or shared.ErrNotFound. The built-in seed record
// is answered without a store round trip.
func (h *GetStudentHandler) Handle(ctx context.Context, q GetStudentQuery) (record *academic.StudentRecord, err error) {
	ctx, span := tracer.Start(ctx, "query.GetStudent")
	defer func() { endSpan(span, err) }()

	matric, err := shared.NewMatricNumber(q.MatricNumber)
	if err != nil {
		return nil, err
	}
	key := matric.String()
	span.SetAttributes(attribute.String("matric", key))

	if academic.IsSeed(key) {
		return academic.SeedRecord(), nil
	}

	row, err := h.store.GetRow(ctx, key)
	if err != nil {
		return nil, err
	}
	return academic.RecordFromRow(key, row)
}
