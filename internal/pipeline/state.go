package pipeline

import (
	"fmt"
	"strings"
)

// State is derived from the log and never stored independently.
type State struct {
	FilesCreated     []string    `json:"files_created"`
	FilesModified    []string    `json:"files_modified"`
	LastCreatedFile  *string     `json:"last_created_file"`
	LastModifiedFile *string     `json:"last_modified_file"`
	ActivePlan       interface{} `json:"active_plan"`
}

// Fold computes the state of a sequence of events.
func Fold(events []Event) State {
	s := State{
		FilesCreated:  []string{},
		FilesModified: []string{},
	}
	for _, e := range events {
		switch e.Type {
		case EventFileCreated:
			s.FilesCreated = append(s.FilesCreated, e.Str("path"))
		case EventFileModified:
			s.FilesModified = append(s.FilesModified, e.Str("path"))
		case EventPlanGenerated:
			s.ActivePlan = e.Data["plan"]
		}
	}
	if n := len(s.FilesCreated); n > 0 {
		last := s.FilesCreated[n-1]
		s.LastCreatedFile = &last
	}
	if n := len(s.FilesModified); n > 0 {
		last := s.FilesModified[n-1]
		s.LastModifiedFile = &last
	}
	return s
}

// ContextSummary renders the last n events as prompt context.
func (p *Pipeline) ContextSummary(n int) string {
	return Summarize(p.Recent(n))
}

// Summarize renders events as "RECENT SESSION ACTIVITY:" lines.
func Summarize(events []Event) string {
	lines := []string{"RECENT SESSION ACTIVITY:"}
	for _, e := range events {
		switch e.Type {
		case EventFileCreated:
			lines = append(lines, "- Created: "+orUnknown(e.Str("path")))
		case EventFileModified:
			lines = append(lines, "- Modified: "+orUnknown(e.Str("path")))
		case EventTerminalCommand:
			lines = append(lines, fmt.Sprintf("- Ran: %s...", clip(orUnknown(e.Str("command")), 60)))
		case EventUserMessage:
			lines = append(lines, fmt.Sprintf("- User: %s...", clip(e.Str("content"), 50)))
		case EventValidation:
			mark := "✗"
			if ok, _ := e.Data["success"].(bool); ok {
				mark = "✓"
			}
			lines = append(lines, fmt.Sprintf("- %s Validation: %s", mark, clip(e.Str("feedback"), 40)))
		}
	}
	return strings.Join(lines, "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// clip truncates to n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
