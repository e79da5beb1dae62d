package query

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
)

// ListSnapshotsQuery names the record whose snapshots are listed.
type ListSnapshotsQuery struct {
	MatricNumber string
}

// ListSnapshotsHandler summarises the retained past histories of a record.
type ListSnapshotsHandler struct {
	store academic.RecordStore
}

// NewListSnapshotsHandler creates a new ListSnapshotsHandler.
func NewListSnapshotsHandler(store academic.RecordStore) *ListSnapshotsHandler {
	return &ListSnapshotsHandler{store: store}
}

// Handle returns at most academic.SnapshotRetention snapshots, newest first.
// A record without versions yields an empty list.
func (h *ListSnapshotsHandler) Handle(ctx context.Context, q ListSnapshotsQuery) (out []academic.Snapshot, err error) {
	ctx, span := tracer.Start(ctx, "query.ListSnapshots")
	defer func() { endSpan(span, err) }()

	matric, err := shared.NewMatricNumber(q.MatricNumber)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("matric", matric.String()))

	versions, err := h.store.GetVersions(ctx, matric.String(), academic.ColHistory, academic.SnapshotRetention)
	if err != nil {
		return nil, err
	}
	return academic.Snapshots(versions, academic.SnapshotRetention), nil
}
