package command

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/domain/audit"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
	"github.com/KingMavin/UniSemi/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE STUDENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeleteStudentCommand names the record to remove.
type DeleteStudentCommand struct {
	MatricNumber string
}

// DeleteStudentHandler removes a record and its retained snapshots.
// Removing an absent record succeeds.
type DeleteStudentHandler struct {
	store    academic.RecordStore
	recorder audit.Recorder
	log      *logger.Logger
}

// NewDeleteStudentHandler creates a new DeleteStudentHandler.
func NewDeleteStudentHandler(store academic.RecordStore, recorder audit.Recorder, log *logger.Logger) *DeleteStudentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &DeleteStudentHandler{
		store:    store,
		recorder: recorder,
		log:      log.With(logger.Component("delete_student")),
	}
}

// Handle executes the delete command.
func (h *DeleteStudentHandler) Handle(ctx context.Context, cmd DeleteStudentCommand) (err error) {
	ctx, span := tracer.Start(ctx, "command.DeleteStudent")
	defer func() { endSpan(span, err) }()

	matric, err := shared.NewMatricNumber(cmd.MatricNumber)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("matric", matric.String()))

	if err := h.store.DeleteRow(ctx, matric.String()); err != nil {
		return err
	}

	h.recorder.Record(ctx, audit.ActionDeleteStudent, fmt.Sprintf("Deleted %s", matric))
	h.log.Info("student deleted", logger.Matric(matric.String()))
	return nil
}
