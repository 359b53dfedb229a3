// Package sink delivers progress events to clients. Delivery is
// fire-and-forget: a sink never reports failure to the caller.
package sink

import (
	"context"
	"encoding/json"
	"sync"
)

// Event kinds
const (
	KindPlan           = "plan"
	KindLog            = "log"
	KindStatus         = "status"
	KindStepStarted    = "step_started"
	KindStepValidating = "step_validating"
	KindStepCompleted  = "step_completed"
	KindStepFailed     = "step_failed"
	KindToolCall       = "tool_call"
	KindToolResult     = "tool_result"
	KindError          = "error"
	KindResult         = "result"
	KindFilesUpdated   = "files_updated"
)

// Event is a progress notification for one project.
type Event struct {
	Type    string
	Project string
	Data    map[string]interface{}
}

// MarshalJSON writes {"type":..., "project":..., ...data}.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(e.Data)+2)
	for k, v := range e.Data {
		m[k] = v
	}
	m["type"] = e.Type
	if e.Project != "" {
		m["project"] = e.Project
	}
	return json.Marshal(m)
}

// Sink receives events.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

// Func adapts a function to a Sink.
type Func func(ctx context.Context, ev Event)

func (f Func) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

// Multi fans out to every sink in order.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, ev := range r.events {
		types[i] = ev.Type
	}
	return types
}

// OfType returns recorded events of one kind.
func (r *Recorder) OfType(kind string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
