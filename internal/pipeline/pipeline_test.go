package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	p, err := Open("sess-1", dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	f, err := ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if f.SessionID != "sess-1" {
		t.Errorf("expected session id sess-1, got %s", f.SessionID)
	}
	if f.StartedAt == "" {
		t.Error("started_at not set")
	}
	if len(p.Events()) != 0 {
		t.Error("expected an empty log")
	}
}

func TestAdd_PersistsFlattenedEvents(t *testing.T) {
	dir := t.TempDir()
	p, _ := Open("s", dir)

	if err := p.Add(EventUserMessage, map[string]interface{}{"content": "hello"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	p.Add(EventFileCreated, map[string]interface{}{"path": "hello.txt", "step_id": "step_1"})

	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Pipeline     []map[string]interface{} `json:"pipeline"`
		CurrentState map[string]interface{}   `json:"current_state"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(doc.Pipeline) != 2 {
		t.Fatalf("expected 2 events, got %d", len(doc.Pipeline))
	}
	first := doc.Pipeline[0]
	if first["type"] != "user_message" || first["content"] != "hello" || first["timestamp"] == nil {
		t.Errorf("event not flattened: %v", first)
	}
	if doc.CurrentState["last_created_file"] != "hello.txt" {
		t.Errorf("current_state not recomputed: %v", doc.CurrentState)
	}
}

func TestOpen_ReloadsExistingLog(t *testing.T) {
	dir := t.TempDir()
	p, _ := Open("s", dir)
	p.Add(EventFileCreated, map[string]interface{}{"path": "a.py"})
	p.Add(EventTerminalCommand, map[string]interface{}{"command": "python a.py", "output": "ok", "success": true})

	reopened, err := Open("s", dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	events := reopened.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Type != EventTerminalCommand || events[1].Str("command") != "python a.py" {
		t.Errorf("event not restored: %+v", events[1])
	}
	if events[0].Timestamp.IsZero() {
		t.Error("timestamp not restored")
	}
	if reopened.LastCreatedFile() != "a.py" {
		t.Errorf("expected a.py, got %s", reopened.LastCreatedFile())
	}
}

func TestOpen_CorruptFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0644)

	p, err := Open("s", dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(p.Events()) != 0 {
		t.Error("expected empty log after corrupt file")
	}
	if _, err := ReadFile(p.Path()); err != nil {
		t.Errorf("file not rewritten: %v", err)
	}
}

func TestFold(t *testing.T) {
	plan := []interface{}{map[string]interface{}{"id": "step_1", "objective": "do it"}}
	events := []Event{
		{Type: EventPlanGenerated, Data: map[string]interface{}{"plan": plan}},
		{Type: EventFileCreated, Data: map[string]interface{}{"path": "a.txt"}},
		{Type: EventFileModified, Data: map[string]interface{}{"path": "a.txt"}},
		{Type: EventFileCreated, Data: map[string]interface{}{"path": "b.txt"}},
		{Type: EventValidation, Data: map[string]interface{}{"success": true}},
	}

	s := Fold(events)
	if strings.Join(s.FilesCreated, ",") != "a.txt,b.txt" {
		t.Errorf("unexpected created: %v", s.FilesCreated)
	}
	if strings.Join(s.FilesModified, ",") != "a.txt" {
		t.Errorf("unexpected modified: %v", s.FilesModified)
	}
	if *s.LastCreatedFile != "b.txt" || *s.LastModifiedFile != "a.txt" {
		t.Errorf("unexpected last files: %s %s", *s.LastCreatedFile, *s.LastModifiedFile)
	}
	if s.ActivePlan == nil {
		t.Error("active plan not captured")
	}

	// folding is pure: same input, same output, input untouched
	again := Fold(events)
	if len(again.FilesCreated) != 2 || len(events) != 5 {
		t.Error("fold is not repeatable")
	}

	empty := Fold(nil)
	if empty.LastCreatedFile != nil || empty.ActivePlan != nil || empty.FilesCreated == nil {
		t.Errorf("unexpected empty state: %+v", empty)
	}
}

func TestRecent(t *testing.T) {
	p, _ := Open("s", t.TempDir())
	for _, c := range []string{"a", "b", "c"} {
		p.Add(EventUserMessage, map[string]interface{}{"content": c})
	}
	recent := p.Recent(2)
	if len(recent) != 2 || recent[0].Str("content") != "b" || recent[1].Str("content") != "c" {
		t.Errorf("unexpected recent: %+v", recent)
	}
	if len(p.Recent(10)) != 3 {
		t.Error("Recent should cap at log length")
	}
}

func TestContextSummary(t *testing.T) {
	p, _ := Open("s", t.TempDir())
	p.Add(EventUserMessage, map[string]interface{}{"content": "create hello.txt please"})
	p.Add(EventTerminalCommand, map[string]interface{}{"command": "cat hello.txt"})
	p.Add(EventFileCreated, map[string]interface{}{"path": "hello.txt"})
	p.Add(EventFileModified, map[string]interface{}{})
	p.Add(EventValidation, map[string]interface{}{"success": true, "feedback": "file exists"})
	p.Add(EventValidation, map[string]interface{}{"success": false, "feedback": "no output"})
	p.Add(EventAssistantResponse, map[string]interface{}{"content": "done"})

	want := strings.Join([]string{
		"RECENT SESSION ACTIVITY:",
		"- User: create hello.txt please...",
		"- Ran: cat hello.txt...",
		"- Created: hello.txt",
		"- Modified: unknown",
		"- ✓ Validation: file exists",
		"- ✗ Validation: no output",
	}, "\n")
	if got := p.ContextSummary(10); got != want {
		t.Errorf("unexpected summary:\n%s\nwant:\n%s", got, want)
	}
}
