// Package pipeline provides the append-only session event log.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vinayprograms/agentkit/logging"
)

// FileName is the log file kept at the root of each workspace.
const FileName = ".session_pipeline.json"

// Event types
const (
	EventUserMessage       = "user_message"
	EventPlanGenerated     = "plan_generated"
	EventTerminalCommand   = "terminal_command"
	EventFileCreated       = "file_created"
	EventFileModified      = "file_modified"
	EventValidation        = "validation"
	EventAssistantResponse = "assistant_response"
)

// Event is one immutable entry of the log. On disk the payload is
// flattened next to timestamp and type.
type Event struct {
	Timestamp time.Time
	Type      string
	Data      map[string]interface{}
}

// MarshalJSON flattens Data into the event object.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(e.Data)+2)
	for k, v := range e.Data {
		m[k] = v
	}
	m["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	m["type"] = e.Type
	return json.Marshal(m)
}

// UnmarshalJSON splits timestamp and type from the payload.
func (e *Event) UnmarshalJSON(b []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if ts, ok := m["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = t
		}
	}
	e.Type, _ = m["type"].(string)
	delete(m, "timestamp")
	delete(m, "type")
	e.Data = m
	return nil
}

// Str returns a string payload field, or "".
func (e Event) Str(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// File is the on-disk document.
type File struct {
	SessionID    string  `json:"session_id"`
	StartedAt    string  `json:"started_at"`
	Pipeline     []Event `json:"pipeline"`
	CurrentState State   `json:"current_state"`
}

// Pipeline is a session's event log, persisted after every append.
type Pipeline struct {
	sessionID string
	path      string
	events    []Event
	logger    *logging.Logger
	now       func() time.Time
	mu        sync.Mutex
}

// Open loads the log in dir, or starts a new one. A corrupt file is
// replaced by an empty log rather than failing the session.
func Open(sessionID, dir string) (*Pipeline, error) {
	p := &Pipeline{
		sessionID: sessionID,
		path:      filepath.Join(dir, FileName),
		logger:    logging.New().WithComponent("pipeline"),
		now:       time.Now,
	}

	f, err := ReadFile(p.path)
	switch {
	case err == nil:
		p.events = f.Pipeline
	case os.IsNotExist(err):
		if err := p.save(); err != nil {
			return nil, err
		}
	default:
		p.logger.Warn("discarding unreadable pipeline", map[string]interface{}{
			"path":  p.path,
			"error": err.Error(),
		})
		if err := p.save(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ReadFile decodes a pipeline document without opening a session.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &f, nil
}

// SessionID returns the session id.
func (p *Pipeline) SessionID() string { return p.sessionID }

// Path returns the log file location.
func (p *Pipeline) Path() string { return p.path }

// Add appends an event and persists the log.
func (p *Pipeline) Add(eventType string, data map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	payload := make(map[string]interface{}, len(data))
	for k, v := range data {
		payload[k] = v
	}
	p.events = append(p.events, Event{
		Timestamp: p.now(),
		Type:      eventType,
		Data:      payload,
	})
	return p.save()
}

// Events returns a copy of the log.
func (p *Pipeline) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Recent returns the last n events.
func (p *Pipeline) Recent(n int) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= 0 || n >= len(p.events) {
		return append([]Event(nil), p.events...)
	}
	return append([]Event(nil), p.events[len(p.events)-n:]...)
}

// State folds the log into the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Fold(p.events)
}

// FilesCreated returns every created path in order.
func (p *Pipeline) FilesCreated() []string {
	return p.State().FilesCreated
}

// LastCreatedFile returns the most recently created path, or "".
func (p *Pipeline) LastCreatedFile() string {
	s := p.State()
	if s.LastCreatedFile == nil {
		return ""
	}
	return *s.LastCreatedFile
}

// save writes the document atomically. Caller holds mu.
func (p *Pipeline) save() error {
	started := p.now()
	if len(p.events) > 0 {
		started = p.events[0].Timestamp
	}
	doc := File{
		SessionID:    p.sessionID,
		StartedAt:    started.UTC().Format(time.RFC3339Nano),
		Pipeline:     p.events,
		CurrentState: Fold(p.events),
	}
	if doc.Pipeline == nil {
		doc.Pipeline = []Event{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding pipeline: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing pipeline: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("writing pipeline: %w", err)
	}
	return nil
}
