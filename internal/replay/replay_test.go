package replay

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vinayprograms/workcell/internal/pipeline"
)

// writePipeline records a small plan run in dir.
func writePipeline(t *testing.T, dir string) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.Open("proj-1", dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	p.Add(pipeline.EventUserMessage, map[string]interface{}{"content": "create hello.txt"})
	p.Add(pipeline.EventPlanGenerated, map[string]interface{}{"plan": []interface{}{
		map[string]interface{}{"id": "step_1", "objective": "Write hello.txt"},
		map[string]interface{}{"id": "step_2", "objective": "Print it"},
	}})
	p.Add(pipeline.EventTerminalCommand, map[string]interface{}{"command": "cat hello.txt", "output": "hi", "success": true})
	p.Add(pipeline.EventTerminalCommand, map[string]interface{}{"command": "cat nope.txt", "output": "[stderr] missing", "success": false})
	p.Add(pipeline.EventFileCreated, map[string]interface{}{"path": "hello.txt", "step_id": "step_1"})
	p.Add(pipeline.EventValidation, map[string]interface{}{"step_id": "step_1", "success": true, "confidence": 0.9, "feedback": "file exists"})
	p.Add(pipeline.EventValidation, map[string]interface{}{"step_id": "step_2", "success": false, "confidence": 0.3, "feedback": "nothing printed"})
	p.Add(pipeline.EventAssistantResponse, map[string]interface{}{"content": "Task completed."})
	return p
}

func TestReplayFile(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir)

	var buf bytes.Buffer
	r := New(&buf, 0)
	if err := r.ReplayFile(dir); err != nil {
		t.Fatalf("ReplayFile failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"SESSION", "proj-1",
		"(8 events)",
		"USER", "create hello.txt",
		"PLAN", "(2 steps)", "step_1", "Write hello.txt",
		"RUN", "cat hello.txt",
		"CREATED", "hello.txt", "[step_1]",
		"VALID ✓", "file exists",
		"VALID ✗", "nothing printed",
		"ASSISTANT", "Task completed.",
		"SUMMARY",
		"2 (1 failed)",
		"1 created, 0 modified",
		"1 passed", "1 failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "confidence=") || strings.Contains(out, "[stderr] missing") {
		t.Error("details should only show when verbose")
	}
}

func TestReplay_Verbose(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir)

	var buf bytes.Buffer
	if err := New(&buf, 1).ReplayFile(dir); err != nil {
		t.Fatalf("ReplayFile failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "confidence=0.90") || !strings.Contains(out, "[stderr] missing") {
		t.Errorf("verbose details missing:\n%s", out)
	}
}

func TestReplay_MaxContentSize(t *testing.T) {
	dir := t.TempDir()
	p, _ := pipeline.Open("s", dir)
	p.Add(pipeline.EventUserMessage, map[string]interface{}{"content": strings.Repeat("x", 100)})

	var buf bytes.Buffer
	New(&buf, 0, WithMaxContentSize(10)).ReplayFile(p.Path())
	if !strings.Contains(buf.String(), "xxxxxxxxxx... [90 bytes truncated]") {
		t.Errorf("content not clipped:\n%s", buf.String())
	}
}

func TestReplayFiles(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writePipeline(t, a)
	writePipeline(t, b)

	var buf bytes.Buffer
	if err := New(&buf, 0).ReplayFiles([]string{a, b}); err != nil {
		t.Fatalf("ReplayFiles failed: %v", err)
	}
	if !strings.Contains(buf.String(), "[1/2]") || !strings.Contains(buf.String(), "[2/2]") {
		t.Error("expected per-file headers")
	}

	if err := New(&buf, 0).ReplayFiles([]string{t.TempDir()}); err == nil {
		t.Error("expected error for a directory without a pipeline")
	}
}

func TestComputeStats(t *testing.T) {
	p := writePipeline(t, t.TempDir())
	s := ComputeStats(p.Events())
	if s.Requests != 1 || s.Plans != 1 || s.Steps != 2 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.Commands != 2 || s.CommandsFailed != 1 {
		t.Errorf("unexpected commands: %+v", s)
	}
	if s.ValidationsPassed != 1 || s.ValidationsFailed != 1 || s.FilesCreated != 1 {
		t.Errorf("unexpected outcomes: %+v", s)
	}

	now := time.Now()
	s = ComputeStats([]pipeline.Event{
		{Type: pipeline.EventUserMessage, Timestamp: now.Add(2 * time.Second)},
		{Type: pipeline.EventUserMessage, Timestamp: now},
	})
	if s.Duration != 2*time.Second {
		t.Errorf("expected 2s, got %v", s.Duration)
	}
}

func TestWrapContent(t *testing.T) {
	row := "    1 │ 10:00:00 │ " + strings.Repeat("word ", 20)
	wrapped := wrapContent(row, 50)
	lines := strings.Split(wrapped, "\n")
	if len(lines) < 2 {
		t.Fatalf("expected wrapping, got %q", wrapped)
	}
	indentWidth := len("    1 │ 10:00:00 │ ") - 2*(len("│")-1)
	for _, l := range lines[1:] {
		if !strings.HasPrefix(l, strings.Repeat(" ", indentWidth)) {
			t.Errorf("continuation not aligned: %q", l)
		}
	}

	if got := wrapContent("short", 50); got != "short" {
		t.Errorf("short line changed: %q", got)
	}
	if got := wrapContent("anything", 0); got != "anything" {
		t.Errorf("zero width should not wrap: %q", got)
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPagerSearch(t *testing.T) {
	content := strings.Join([]string{"alpha", "beta", "gamma", "beta again"}, "\n")
	m := &pagerModel{title: "t", content: content}
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	if !m.ready {
		t.Fatal("pager not ready after resize")
	}

	m.Update(key("/"))
	if !m.searching {
		t.Fatal("expected search mode")
	}
	m.input.SetValue("BETA")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.searching || len(m.matches) != 2 || m.matches[0] != 1 || m.matches[1] != 3 {
		t.Errorf("unexpected matches: %v", m.matches)
	}
	m.Update(key("n"))
	if m.matchIndex != 1 {
		t.Errorf("expected second match, got %d", m.matchIndex)
	}
	m.Update(key("N"))
	if m.matchIndex != 0 {
		t.Errorf("expected first match, got %d", m.matchIndex)
	}
	if !strings.Contains(m.View(), "[1/2]") {
		t.Error("footer should show match position")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.query != "" || m.matches != nil {
		t.Error("esc should clear the search")
	}

	m.query = "zeta"
	m.search()
	if !m.matchFailed || !strings.Contains(m.View(), "Pattern not found") {
		t.Error("expected not-found state")
	}
}

func TestPagerReload(t *testing.T) {
	renders := 0
	m := &pagerModel{
		title:   "live",
		content: "one",
		live:    true,
		render: func() (string, error) {
			renders++
			return "one\ntwo", nil
		},
	}
	m.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	m.Update(fileChangedMsg{})

	if renders != 1 || m.content != "one\ntwo" {
		t.Errorf("content not reloaded: %q (%d renders)", m.content, renders)
	}
	if !strings.Contains(m.View(), "LIVE") {
		t.Error("live footer missing")
	}
}
