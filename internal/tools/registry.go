// Package tools provides the tool registry bound to one workspace jail.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/workcell/internal/jail"
)

// Result is the normalized outcome of every tool call.
type Result struct {
	Success bool                   `json:"success"`
	Output  string                 `json:"output"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Tool is a capability exposed to the reasoning loop.
type Tool interface {
	// Name returns the tool name.
	Name() string
	// Description returns a description for the LLM.
	Description() string
	// Parameters returns the JSON schema for parameters.
	Parameters() map[string]interface{}
	// Execute runs the tool. Returned errors are normalized by Dispatch.
	Execute(ctx context.Context, args map[string]interface{}) (Result, error)
}

// Registry holds the tools of one workspace.
type Registry struct {
	workspace *jail.Jail
	timeout   time.Duration
	tools     map[string]Tool
	logger    *logging.Logger
	mu        sync.RWMutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithCommandTimeout sets the timeout passed to the terminal tool.
func WithCommandTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.timeout = d
	}
}

// NewRegistry creates a registry with the built-in workspace tools.
func NewRegistry(workspace *jail.Jail, opts ...Option) *Registry {
	r := &Registry{
		workspace: workspace,
		tools:     make(map[string]Tool),
		logger:    logging.New().WithComponent("tools"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	r.Register(&terminalTool{jail: r.workspace, timeout: r.timeout})
	r.Register(&writeFileTool{jail: r.workspace})
	r.Register(&readFileTool{jail: r.workspace})
	r.Register(&listFilesTool{jail: r.workspace})
	r.Register(&deleteFileTool{jail: r.workspace})
}

// Workspace returns the jail the tools operate on.
func (r *Registry) Workspace() *jail.Jail { return r.workspace }

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tool schemas in gateway form, sorted by name.
func (r *Registry) Definitions() []llm.ToolDef {
	var defs []llm.ToolDef
	for _, name := range r.Names() {
		t := r.Get(name)
		defs = append(defs, llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Dispatch runs the named tool. It never panics and never returns an error:
// every failure becomes an unsuccessful Result.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]interface{}) (res Result) {
	t := r.Get(name)
	if t == nil {
		return Result{Success: false, Output: fmt.Sprintf("Unknown tool: %s", name)}
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", map[string]interface{}{
				"tool":  name,
				"panic": fmt.Sprint(p),
			})
			res = Result{Success: false, Output: fmt.Sprintf("Tool execution error: %v", p)}
		}
	}()

	res, err := t.Execute(ctx, args)
	r.logger.ToolResult(name, time.Since(start), err)
	if err != nil {
		return Result{Success: false, Output: fmt.Sprintf("Tool execution error: %v", err)}
	}
	return res
}
