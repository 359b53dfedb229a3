package sink

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

var (
	stepStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	toolStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	resultHeader = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Console prints human-readable progress lines.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	width   int
	verbose bool
}

// NewConsole writes to out, wrapping at width (0 disables wrapping).
// Tool traffic is printed only when verbose.
func NewConsole(out io.Writer, width int, verbose bool) *Console {
	return &Console{out: out, width: width, verbose: verbose}
}

func (c *Console) Emit(_ context.Context, ev Event) {
	line := c.render(ev)
	if line == "" {
		return
	}
	if c.width > 0 {
		line = wordwrap.String(line, c.width)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

func (c *Console) render(ev Event) string {
	str := func(k string) string {
		s, _ := ev.Data[k].(string)
		return s
	}
	switch ev.Type {
	case KindStatus:
		if msg := str("message"); msg != "" {
			return dimStyle.Render("… " + msg)
		}
		return ""
	case KindPlan:
		steps, _ := ev.Data["plan"].([]map[string]interface{})
		var b strings.Builder
		b.WriteString(stepStyle.Render(fmt.Sprintf("Plan (%d steps)", len(steps))))
		for _, s := range steps {
			fmt.Fprintf(&b, "\n  %v. %v", s["id"], s["objective"])
		}
		return b.String()
	case KindStepStarted:
		return stepStyle.Render(fmt.Sprintf("▶ [%s] %s", str("progress"), str("objective")))
	case KindStepValidating:
		return dimStyle.Render("  validating " + str("step_id"))
	case KindStepCompleted:
		return okStyle.Render("  ✓ " + str("step_id") + " " + feedbackOf(ev))
	case KindStepFailed:
		return failStyle.Render("  ✗ " + str("step_id") + " " + feedbackOf(ev))
	case KindToolCall:
		if !c.verbose {
			return ""
		}
		return toolStyle.Render("  → " + str("tool"))
	case KindToolResult:
		if !c.verbose {
			return ""
		}
		return dimStyle.Render("    " + str("output"))
	case KindError:
		return failStyle.Render("error: " + str("message"))
	case KindResult:
		return resultHeader.Render("Result") + "\n" + str("content")
	case KindLog:
		return dimStyle.Render(str("message"))
	}
	return ""
}

func feedbackOf(ev Event) string {
	v, _ := ev.Data["validation"].(map[string]interface{})
	s, _ := v["feedback"].(string)
	return s
}
