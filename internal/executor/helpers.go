package executor

import (
	"strings"
	"unicode/utf8"

	"github.com/vinayprograms/workcell/internal/tools"
)

// truncate cuts s to maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// evidence accumulates what a task touched. Each list keeps first-seen
// order without duplicates.
type evidence struct {
	tools    orderedSet
	created  orderedSet
	modified orderedSet
	terminal []string
}

func newEvidence() *evidence {
	return &evidence{}
}

func (ev *evidence) record(name string, args map[string]interface{}, r tools.Result) {
	ev.tools.add(name)

	switch name {
	case "write_file":
		if !r.Success {
			return
		}
		path, _ := args["path"].(string)
		if p, ok := r.Data["path"].(string); ok && p != "" {
			path = p
		}
		if created, _ := r.Data["created"].(bool); created {
			ev.created.add(path)
		} else if !ev.created.has(path) {
			ev.modified.add(path)
		}
	case "terminal":
		if r.Output != "" {
			ev.terminal = append(ev.terminal, r.Output)
		}
	}
}

func (ev *evidence) apply(res *Result) {
	res.ToolsUsed = ev.tools.list()
	res.FilesCreated = ev.created.list()
	res.FilesModified = ev.modified.list()
	res.TerminalOutput = strings.Join(ev.terminal, "\n")
}

type orderedSet struct {
	items []string
	seen  map[string]bool
}

func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}

func (s *orderedSet) has(v string) bool { return s.seen[v] }

func (s *orderedSet) list() []string {
	if s.items == nil {
		return []string{}
	}
	return append([]string(nil), s.items...)
}
