package replay

import (
	"fmt"
	"strings"

	"github.com/vinayprograms/workcell/internal/pipeline"
)

const indent = "              "

func (r *Replayer) formatEvent(seq int, e pipeline.Event) {
	prefix := fmt.Sprintf("%s │ %s │ ", seqStyle.Render(fmt.Sprint(seq)), timeStyle.Render(e.Timestamp.Format("15:04:05")))

	switch e.Type {
	case pipeline.EventUserMessage:
		fmt.Fprintf(r.output, "%s%s\n", prefix, userStyle.Render("USER"))
		r.printContent(e.Str("content"))

	case pipeline.EventPlanGenerated:
		steps := planSteps(e.Data["plan"])
		fmt.Fprintf(r.output, "%s%s %s\n", prefix, planStyle.Render("PLAN"), dimStyle.Render(fmt.Sprintf("(%d steps)", len(steps))))
		for _, s := range steps {
			fmt.Fprintf(r.output, "%s%s %s\n", indent, dimStyle.Render(s.id), valueStyle.Render(s.objective))
		}

	case pipeline.EventTerminalCommand:
		mark := successStyle.Render("✓")
		if ok, _ := e.Data["success"].(bool); !ok {
			mark = errorStyle.Render("✗")
		}
		fmt.Fprintf(r.output, "%s%s %s %s\n", prefix, commandStyle.Render("RUN"), mark, commandStyle.Render(e.Str("command")))
		if r.verbosity > 0 {
			r.printBlock("output", e.Str("output"))
		}

	case pipeline.EventFileCreated:
		fmt.Fprintf(r.output, "%s%s %s%s\n", prefix, fileStyle.Render("CREATED"), valueStyle.Render(e.Str("path")), stepHint(e))

	case pipeline.EventFileModified:
		fmt.Fprintf(r.output, "%s%s %s%s\n", prefix, fileStyle.Render("MODIFIED"), valueStyle.Render(e.Str("path")), stepHint(e))

	case pipeline.EventValidation:
		label := successStyle.Render("VALID ✓")
		if ok, _ := e.Data["success"].(bool); !ok {
			label = errorStyle.Render("VALID ✗")
		}
		line := prefix + label + stepHint(e)
		if c, ok := e.Data["confidence"].(float64); ok && r.verbosity > 0 {
			line += dimStyle.Render(fmt.Sprintf(" confidence=%.2f", c))
		}
		fmt.Fprintln(r.output, line)
		if fb := e.Str("feedback"); fb != "" {
			fmt.Fprintf(r.output, "%s%s\n", indent, dimStyle.Render(fb))
		}

	case pipeline.EventAssistantResponse:
		fmt.Fprintf(r.output, "%s%s\n", prefix, titleStyle.Render("ASSISTANT"))
		r.printContent(e.Str("content"))

	default:
		fmt.Fprintf(r.output, "%s%s\n", prefix, warnStyle.Render(strings.ToUpper(e.Type)))
	}
}

func stepHint(e pipeline.Event) string {
	if id := e.Str("step_id"); id != "" {
		return dimStyle.Render(" [" + id + "]")
	}
	return ""
}

func (r *Replayer) printContent(content string) {
	content = r.clip(content)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(r.output, "%s%s\n", indent, line)
	}
}

func (r *Replayer) printBlock(name, content string) {
	if content == "" {
		return
	}
	fmt.Fprintf(r.output, "%s%s\n", indent, blockStyle.Render("─── "+name+" ───"))
	r.printContent(content)
}

func (r *Replayer) clip(s string) string {
	if r.maxContentSize <= 0 || len(s) <= r.maxContentSize {
		return s
	}
	return s[:r.maxContentSize] + fmt.Sprintf("... [%d bytes truncated]", len(s)-r.maxContentSize)
}

type planStep struct {
	id, objective string
}

// planSteps reads the plan payload of a plan_generated event.
func planSteps(v interface{}) []planStep {
	items, _ := v.([]interface{})
	steps := make([]planStep, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		objective, _ := m["objective"].(string)
		steps = append(steps, planStep{id: id, objective: objective})
	}
	return steps
}
