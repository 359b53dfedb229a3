// Tracing instrumentation for plans.
package orchestrator

import (
	"context"

	"github.com/vinayprograms/agentkit/telemetry"
	"github.com/vinayprograms/workcell/internal/validator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (o *Orchestrator) startPlanSpan(ctx context.Context, project string, steps int) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "plan.run")
	span.SetAttributes(
		attribute.String("plan.project", project),
		attribute.Int("plan.steps", steps),
	)
	return ctx, span
}

func (o *Orchestrator) endPlanSpan(span trace.Span, r *Report) {
	span.SetAttributes(
		attribute.Int("plan.completed", r.Completed()),
		attribute.Int("plan.failed", r.Failed()),
	)
	span.End()
}

func (o *Orchestrator) startStepSpan(ctx context.Context, step *Step) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "step."+step.ID)
	span.SetAttributes(attribute.String("step.id", step.ID))
	if tracer.Debug() {
		span.SetAttributes(attribute.String("step.objective", clip(step.Objective, 2000)))
	}
	return ctx, span
}

func (o *Orchestrator) endStepSpan(span trace.Span, step *Step, v validator.Result) {
	span.SetAttributes(
		attribute.String("step.status", string(step.Status)),
		attribute.Float64("step.confidence", v.Confidence),
	)
	span.End()
}
