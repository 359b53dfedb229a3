package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vinayprograms/workcell/internal/executor"
	"github.com/vinayprograms/workcell/internal/pipeline"
	"github.com/vinayprograms/workcell/internal/sink"
	"github.com/vinayprograms/workcell/internal/validator"
)

// StepReport is the outcome of one step.
type StepReport struct {
	Step       Step
	Result     *executor.Result
	Validation validator.Result
}

// Report is the outcome of a plan.
type Report struct {
	Goal    string
	Steps   []StepReport
	Summary string
}

// Completed counts completed steps.
func (r *Report) Completed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Step.Status == StatusCompleted {
			n++
		}
	}
	return n
}

// Failed counts failed steps.
func (r *Report) Failed() int {
	return len(r.Steps) - r.Completed()
}

// FilesCreated lists files created by completed steps.
func (r *Report) FilesCreated() []string {
	return r.files(func(res *executor.Result) []string { return res.FilesCreated })
}

// FilesModified lists files modified by completed steps.
func (r *Report) FilesModified() []string {
	return r.files(func(res *executor.Result) []string { return res.FilesModified })
}

func (r *Report) files(pick func(*executor.Result) []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, s := range r.Steps {
		if s.Step.Status != StatusCompleted || s.Result == nil {
			continue
		}
		for _, f := range pick(s.Result) {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

const summaryHeader = "Task completed. Results:\n"

// execute runs steps strictly in order. A failed step does not stop the
// plan and is never retried.
func (o *Orchestrator) execute(ctx context.Context, sess *session, goal string, steps []*Step) *Report {
	ctx, span := o.startPlanSpan(ctx, sess.id, len(steps))
	report := &Report{Goal: goal}

	logged := make([]interface{}, len(steps))
	announced := make([]map[string]interface{}, len(steps))
	for i, s := range steps {
		logged[i] = map[string]interface{}{"id": s.ID, "objective": s.Objective}
		announced[i] = map[string]interface{}{"id": s.ID, "objective": s.Objective, "status": string(s.Status)}
	}
	o.record(sess, pipeline.EventPlanGenerated, map[string]interface{}{"plan": logged})
	o.emit(ctx, sess.id, sink.KindPlan, map[string]interface{}{"plan": announced})
	o.saveSnapshot(sess, steps)

	var results []string
	for i, step := range steps {
		start := time.Now()
		o.logger.PhaseStart("STEP", clip(goal, 80), step.ID)
		stepCtx, stepSpan := o.startStepSpan(ctx, step)

		o.transition(ctx, sess, steps, step, StatusExecuting)
		o.emit(ctx, sess.id, sink.KindStepStarted, map[string]interface{}{
			"step_id":   step.ID,
			"objective": step.Objective,
			"progress":  fmt.Sprintf("%d/%d", i+1, len(steps)),
		})

		ex := executor.New(o.gateway, sess.registry,
			executor.WithMaxIterations(o.maxIterations),
			executor.WithSink(o.sink, sess.id),
			executor.WithPipeline(sess.pipeline),
		)
		res := ex.Run(stepCtx, executor.Task{
			ID:        step.ID,
			Objective: step.Objective,
			Context:   stepContext(goal, step.Context, results),
		})

		o.transition(ctx, sess, steps, step, StatusValidating)
		o.emit(ctx, sess.id, sink.KindStepValidating, map[string]interface{}{"step_id": step.ID})
		verdict := validator.New(o.fast).Validate(stepCtx, step.Objective, res)

		if verdict.Success && verdict.Confidence > o.threshold {
			o.transition(ctx, sess, steps, step, StatusCompleted)
			results = append(results, fmt.Sprintf("✓ %s: %s", step.Objective, clip(res.Output, 100)))
			for _, f := range res.FilesCreated {
				o.record(sess, pipeline.EventFileCreated, map[string]interface{}{"path": f, "step_id": step.ID})
			}
			for _, f := range res.FilesModified {
				o.record(sess, pipeline.EventFileModified, map[string]interface{}{"path": f, "step_id": step.ID})
			}
		} else {
			o.transition(ctx, sess, steps, step, StatusFailed)
			results = append(results, fmt.Sprintf("✗ %s: %s", step.Objective, verdict.Feedback))
		}
		o.record(sess, pipeline.EventValidation, map[string]interface{}{
			"step_id":    step.ID,
			"success":    step.Status == StatusCompleted,
			"confidence": verdict.Confidence,
			"feedback":   verdict.Feedback,
		})

		kind := sink.KindStepCompleted
		if step.Status == StatusFailed {
			kind = sink.KindStepFailed
		}
		o.emit(ctx, sess.id, kind, map[string]interface{}{
			"step_id": step.ID,
			"validation": map[string]interface{}{
				"success":  step.Status == StatusCompleted,
				"feedback": verdict.Feedback,
			},
		})

		o.logger.PhaseComplete("STEP", clip(goal, 80), step.ID, time.Since(start), string(step.Status))
		o.endStepSpan(stepSpan, step, verdict)
		report.Steps = append(report.Steps, StepReport{Step: *step, Result: res, Validation: verdict})
	}

	if err := sess.snapshots.Clear(); err != nil {
		o.logger.Warn("failed to clear plan snapshot", map[string]interface{}{"project": sess.id, "error": err.Error()})
	}
	report.Summary = summaryHeader + strings.Join(results, "\n")

	o.emit(ctx, sess.id, sink.KindFilesUpdated, map[string]interface{}{"files": sess.jail.List(".")})
	o.endPlanSpan(span, report)
	return report
}

// transition advances a step, persists the plan and announces the change.
func (o *Orchestrator) transition(ctx context.Context, sess *session, steps []*Step, step *Step, to Status) {
	if err := step.advance(to); err != nil {
		o.logger.Error("rejected step transition", map[string]interface{}{
			"project": sess.id,
			"error":   err.Error(),
		})
		return
	}
	o.saveSnapshot(sess, steps)
	o.emit(ctx, sess.id, sink.KindStatus, map[string]interface{}{
		"status":  string(to),
		"step_id": step.ID,
	})
}

func (o *Orchestrator) saveSnapshot(sess *session, steps []*Step) {
	if err := sess.snapshots.Save(steps); err != nil {
		o.logger.Warn("failed to save plan snapshot", map[string]interface{}{"project": sess.id, "error": err.Error()})
	}
}

// stepContext scopes a step to the goal and the last two results.
func stepContext(goal, stepCtx string, results []string) string {
	prev := results
	if len(prev) > 2 {
		prev = prev[len(prev)-2:]
	}
	return fmt.Sprintf("GLOBAL GOAL: %s\n\nSTEP CONTEXT: %s\n\nPrevious results:\n", goal, stepCtx) +
		strings.Join(prev, "\n")
}
