// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/domain/audit"
	"github.com/KingMavin/UniSemi/internal/domain/shared"
	"github.com/KingMavin/UniSemi/internal/infrastructure/metrics"
	"github.com/KingMavin/UniSemi/pkg/logger"
	"github.com/KingMavin/UniSemi/pkg/retry"
)

var tracer = otel.Tracer("github.com/KingMavin/UniSemi/internal/application/command")

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ══════════════════════════════════════════════════════════════════════════════
// SAVE RESULT COMMAND
// Grades one semester, merges it into the student's history and recomputes
// the cumulative GPA. Creates the record when it does not exist yet.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultSaveAttempts bounds the optimistic read-merge-write loop.
const DefaultSaveAttempts = 8

// SaveResultCommand contains one semester submission.
type SaveResultCommand struct {
	MatricNumber string
	Name         string
	Department   string
	Level        string
	Semester     string
	Courses      []academic.Course
}

// SaveResultResult contains the figures after the save.
type SaveResultResult struct {
	MatricNumber string
	GPA          string
	CGPA         string

	// Created is true when no record existed before the save.
	Created bool

	// Version is the stored row version after the write.
	Version int64

	// Attempts is how many read-merge-write rounds were needed.
	Attempts int
}

// SaveResultHandler handles the SaveResultCommand.
type SaveResultHandler struct {
	store      academic.RecordStore
	calculator academic.Calculator
	recorder   audit.Recorder
	metrics    *metrics.Metrics
	log        *logger.Logger
	retrier    *retry.Retrier
}

// SaveResultHandlerConfig contains configuration for the handler.
type SaveResultHandlerConfig struct {
	// MaxAttempts bounds the conflict retry loop.
	MaxAttempts int

	// Sleep replaces the wait between conflict retries, for tests.
	Sleep retry.SleepFunc

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// NewSaveResultHandler creates a new SaveResultHandler. A nil calculator uses
// the in-process one.
func NewSaveResultHandler(
	store academic.RecordStore,
	calculator academic.Calculator,
	recorder audit.Recorder,
	config SaveResultHandlerConfig,
) *SaveResultHandler {
	if calculator == nil {
		calculator = academic.InProcessCalculator{}
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultSaveAttempts
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}

	h := &SaveResultHandler{
		store:      store,
		calculator: calculator,
		recorder:   recorder,
		metrics:    config.Metrics,
		log:        config.Logger.With(logger.Component("save_result")),
	}

	opts := []retry.Option{
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			h.metrics.IncSaveConflict()
			h.log.Debug("save conflict, retrying", logger.Attempt(attempt), logger.Duration("delay", delay))
		}),
	}
	if config.Sleep != nil {
		opts = append(opts, retry.WithSleep(config.Sleep))
	}
	h.retrier = retry.ConflictRetrier(config.MaxAttempts, shared.IsConflict, opts...)

	return h
}

// Handle executes the save result command.
func (h *SaveResultHandler) Handle(ctx context.Context, cmd SaveResultCommand) (result *SaveResultResult, err error) {
	ctx, span := tracer.Start(ctx, "command.SaveResult")
	defer func() { endSpan(span, err) }()

	matric, err := shared.NewMatricNumber(cmd.MatricNumber)
	if err != nil {
		return nil, err
	}
	key := matric.String()
	if academic.IsSeed(key) {
		return nil, academic.ErrSeedReserved
	}
	span.SetAttributes(attribute.String("matric", key))

	semester := academic.GradeSemester(academic.SemesterInput{
		Level:    cmd.Level,
		Semester: cmd.Semester,
		Courses:  cmd.Courses,
	})

	attempts := 0
	result, err = retry.Value(ctx, h.retrier, func(ctx context.Context) (*SaveResultResult, error) {
		attempts++
		return h.attempt(ctx, key, cmd, semester)
	})
	if err != nil {
		if shared.IsConflict(err) {
			h.log.Warn("save gave up after repeated conflicts", logger.Matric(key), logger.Attempt(attempts))
		}
		return nil, err
	}
	result.Attempts = attempts
	span.SetAttributes(attribute.Int("attempts", attempts), attribute.Bool("created", result.Created))

	h.metrics.IncResultSaved(result.Created)
	if result.Created {
		h.recorder.Record(ctx, audit.ActionNewStudent, fmt.Sprintf("Created %s", key))
	} else {
		h.recorder.Record(ctx, audit.ActionUpdateStudent,
			fmt.Sprintf("Updated %s - %s Lvl %s Sem", key, semester.Level, semester.Name))
	}

	h.log.Info("result saved",
		logger.Matric(key),
		logger.String("gpa", result.GPA),
		logger.String("cgpa", result.CGPA),
		logger.Version(result.Version),
	)

	return result, nil
}

// attempt runs one load, merge, aggregate and conditional write round.
func (h *SaveResultHandler) attempt(ctx context.Context, key string, cmd SaveResultCommand, semester academic.Semester) (*SaveResultResult, error) {
	var (
		history  academic.History
		expected int64
		created  bool
	)

	row, err := h.store.GetRow(ctx, key)
	switch {
	case shared.IsNotFound(err):
		created = true
	case err != nil:
		return nil, err
	default:
		current, err := academic.RecordFromRow(key, row)
		if err != nil {
			return nil, err
		}
		history = current.History
		expected = row.Version
	}

	merged := academic.Merge(history, semester)

	cgpa, err := h.calculator.CGPA(ctx, key, merged)
	if err != nil {
		return nil, err
	}

	record := &academic.StudentRecord{
		MatricNumber: key,
		Name:         cmd.Name,
		Department:   cmd.Department,
		CurrentGPA:   semester.GPA,
		CGPA:         cgpa,
		History:      merged,
	}
	cols, err := academic.RecordColumns(record)
	if err != nil {
		return nil, shared.WrapError("record", "Save", shared.ErrInvalidInput, "cannot encode history", err)
	}

	version, err := h.store.PutRow(ctx, key, cols, expected)
	if err != nil {
		return nil, err
	}

	return &SaveResultResult{
		MatricNumber: key,
		GPA:          semester.GPA,
		CGPA:         cgpa,
		Created:      created,
		Version:      version,
	}, nil
}
