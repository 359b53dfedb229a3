// Package executor runs a single sub-task: a bounded loop of model turns
// and tool calls against one workspace.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/workcell/internal/sink"
	"github.com/vinayprograms/workcell/internal/tools"
)

// DefaultMaxIterations caps model turns per task.
const DefaultMaxIterations = 15

// MaxIterationsOutput is the output of a task that hit the cap.
const MaxIterationsOutput = "Task completed (max iterations reached)"

// MaxToolMessage caps the tool output fed back to the model.
const MaxToolMessage = 16000

// Gateway is the reasoning service.
type Gateway interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// EventLogger records session events. *pipeline.Pipeline satisfies it.
type EventLogger interface {
	Add(eventType string, data map[string]interface{}) error
}

// Task is one unit of work.
type Task struct {
	ID        string
	Objective string
	Context   string
}

// Result is what a task produced, successful or not.
type Result struct {
	TaskID         string   `json:"task_id"`
	Success        bool     `json:"success"`
	Output         string   `json:"output"`
	ToolsUsed      []string `json:"tools_used"`
	FilesCreated   []string `json:"files_created"`
	FilesModified  []string `json:"files_modified"`
	TerminalOutput string   `json:"terminal_output"`
	Error          string   `json:"error,omitempty"`
	Iterations     int      `json:"iterations"`
}

// State of the loop.
type State int

const (
	StateAwaitingModel State = iota
	StateExecutingTools
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTools:
		return "executing_tools"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Executor drives tasks through the loop.
type Executor struct {
	gateway       Gateway
	registry      *tools.Registry
	maxIterations int
	sink          sink.Sink
	events        EventLogger
	project       string
	logger        *logging.Logger

	// OnTransition is called on every state change. Optional.
	OnTransition func(from, to State)
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxIterations sets the turn cap. Values below 1 are ignored.
func WithMaxIterations(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithSink sends tool traffic to s, tagged with project.
func WithSink(s sink.Sink, project string) Option {
	return func(e *Executor) {
		e.sink = s
		e.project = project
	}
}

// WithPipeline records terminal commands in l.
func WithPipeline(l EventLogger) Option {
	return func(e *Executor) {
		e.events = l
	}
}

// New creates an executor bound to a registry.
func New(gw Gateway, reg *tools.Registry, opts ...Option) *Executor {
	e := &Executor{
		gateway:       gw,
		registry:      reg,
		maxIterations: DefaultMaxIterations,
		sink:          sink.Nop{},
		logger:        logging.New().WithComponent("executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the task. It never returns nil; failures are reported in
// the result along with whatever evidence was gathered.
func (e *Executor) Run(ctx context.Context, task Task) *Result {
	start := time.Now()
	ctx, span := e.startRunSpan(ctx, task)

	res := &Result{TaskID: task.ID}
	ev := newEvidence()

	messages := []llm.Message{
		{Role: "system", Content: buildSystemPrompt(task, e.maxIterations)},
		{Role: "user", Content: "Execute: " + task.Objective},
	}
	defs := e.registry.Definitions()

	var pending []llm.ToolCallResponse
	state := StateAwaitingModel
	for state != StateDone {
		next := state
		switch state {
		case StateAwaitingModel:
			if res.Iterations >= e.maxIterations {
				res.Success = true
				res.Output = MaxIterationsOutput
				next = StateDone
				break
			}
			if err := ctx.Err(); err != nil {
				res.Error = err.Error()
				next = StateDone
				break
			}
			res.Iterations++
			resp, err := e.gateway.Chat(ctx, llm.ChatRequest{
				Messages: messages,
				Tools:    defs,
			})
			if err != nil {
				e.logger.Warn("gateway call failed", map[string]interface{}{
					"task":      task.ID,
					"iteration": res.Iterations,
					"error":     err.Error(),
				})
				res.Error = err.Error()
				next = StateDone
				break
			}
			if len(resp.ToolCalls) == 0 {
				res.Success = true
				res.Output = resp.Content
				next = StateDone
				break
			}
			messages = append(messages, llm.Message{
				Role:      "assistant",
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})
			pending = resp.ToolCalls
			next = StateExecutingTools

		case StateExecutingTools:
			for _, tc := range pending {
				messages = append(messages, e.runTool(ctx, task, tc, ev))
			}
			pending = nil
			next = StateAwaitingModel
		}
		e.transition(state, next)
		state = next
	}

	ev.apply(res)
	e.logger.Info("task finished", map[string]interface{}{
		"task":        task.ID,
		"success":     res.Success,
		"iterations":  res.Iterations,
		"tools":       len(res.ToolsUsed),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	e.endRunSpan(span, res)
	return res
}

func (e *Executor) transition(from, to State) {
	if from == to {
		return
	}
	if e.OnTransition != nil {
		e.OnTransition(from, to)
	}
}

// runTool dispatches one call and returns the tool message for it.
func (e *Executor) runTool(ctx context.Context, task Task, tc llm.ToolCallResponse, ev *evidence) llm.Message {
	args := tc.Args
	if args == nil {
		args = map[string]interface{}{}
	}

	e.sink.Emit(ctx, sink.Event{
		Type:    sink.KindToolCall,
		Project: e.project,
		Data: map[string]interface{}{
			"task_id":   task.ID,
			"tool":      tc.Name,
			"arguments": args,
		},
	})

	toolCtx, span := e.startToolSpan(ctx, tc.Name)
	result := e.registry.Dispatch(toolCtx, tc.Name, args)
	e.endToolSpan(span, result)

	ev.record(tc.Name, args, result)

	if tc.Name == "terminal" && result.Output != "" && e.events != nil {
		cmd, _ := args["command"].(string)
		if err := e.events.Add("terminal_command", map[string]interface{}{
			"command": cmd,
			"output":  truncate(result.Output, 500),
			"success": result.Success,
		}); err != nil {
			e.logger.Warn("pipeline write failed", map[string]interface{}{"error": err.Error()})
		}
	}

	e.sink.Emit(ctx, sink.Event{
		Type:    sink.KindToolResult,
		Project: e.project,
		Data: map[string]interface{}{
			"task_id": task.ID,
			"tool":    tc.Name,
			"success": result.Success,
			"output":  truncate(result.Output, 500),
		},
	})

	return llm.Message{
		Role:       "tool",
		Content:    toolMessage(result),
		ToolCallID: tc.ID,
	}
}

func toolMessage(r tools.Result) string {
	switch {
	case len(r.Output) > MaxToolMessage:
		return truncate(r.Output, MaxToolMessage) + "\n...[truncated]"
	case r.Output != "":
		return r.Output
	case r.Success:
		return "Success"
	}
	return "Error"
}

func buildSystemPrompt(task Task, maxIterations int) string {
	return fmt.Sprintf(`You are an autonomous problem solver working inside a project workspace.

YOUR TASK:
%s

CONTEXT:
%s

Use the tools to make progress: run commands, write and read files, inspect the workspace.
Observe each result. If something fails, read the error, fix it and try again.
When the objective is achieved, reply without calling any tool and describe the result.

You have %d turns.`, task.Objective, task.Context, maxIterations)
}
