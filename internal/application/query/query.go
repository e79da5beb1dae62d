// Package query contains read operations (CQRS - Queries).
package query

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/KingMavin/UniSemi/internal/application/query")

// Student listing bounds.
const (
	DefaultStudentLimit = 100
	MaxStudentLimit     = 1000
)

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
