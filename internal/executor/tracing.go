// Tracing instrumentation for the executor.
package executor

import (
	"context"

	"github.com/vinayprograms/agentkit/telemetry"
	"github.com/vinayprograms/workcell/internal/tools"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// startRunSpan starts a span for one task.
func (e *Executor) startRunSpan(ctx context.Context, task Task) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "subtask.run")
	span.SetAttributes(
		attribute.String("subtask.id", task.ID),
		attribute.String("subtask.project", e.project),
		attribute.Int("subtask.max_iterations", e.maxIterations),
	)
	if tracer.Debug() {
		span.SetAttributes(attribute.String("subtask.objective", truncate(task.Objective, 2000)))
	}
	return ctx, span
}

// endRunSpan ends the task span with result info.
func (e *Executor) endRunSpan(span trace.Span, res *Result) {
	span.SetAttributes(
		attribute.Bool("subtask.success", res.Success),
		attribute.Int("subtask.iterations", res.Iterations),
		attribute.Int("subtask.files_created", len(res.FilesCreated)),
	)
	tracer := telemetry.GetTracer()
	if tracer.Debug() && res.Output != "" {
		span.SetAttributes(attribute.String("subtask.output", truncate(res.Output, 2000)))
	}
	if res.Error != "" {
		span.RecordError(errString(res.Error))
	}
	span.End()
}

// startToolSpan starts a span for a tool dispatch.
func (e *Executor) startToolSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "tool."+name)
	span.SetAttributes(attribute.String("tool.name", name))
	return ctx, span
}

// endToolSpan ends the tool span.
func (e *Executor) endToolSpan(span trace.Span, r tools.Result) {
	span.SetAttributes(attribute.Bool("tool.success", r.Success))
	if !r.Success {
		span.RecordError(errString(truncate(r.Output, 500)))
	}
	span.End()
}

type errString string

func (e errString) Error() string { return string(e) }
