package replay

import (
	"fmt"
	"io"
	"time"

	"github.com/vinayprograms/workcell/internal/pipeline"
)

// Stats aggregates a pipeline.
type Stats struct {
	Duration time.Duration

	Requests int
	Plans    int
	Steps    int

	Commands       int
	CommandsFailed int

	FilesCreated  int
	FilesModified int

	ValidationsPassed int
	ValidationsFailed int
}

// ComputeStats counts events by kind and measures the session span.
func ComputeStats(events []pipeline.Event) *Stats {
	s := &Stats{}
	var first, last time.Time
	for _, e := range events {
		if !e.Timestamp.IsZero() {
			if first.IsZero() || e.Timestamp.Before(first) {
				first = e.Timestamp
			}
			if e.Timestamp.After(last) {
				last = e.Timestamp
			}
		}

		switch e.Type {
		case pipeline.EventUserMessage:
			s.Requests++
		case pipeline.EventPlanGenerated:
			s.Plans++
			s.Steps += len(planSteps(e.Data["plan"]))
		case pipeline.EventTerminalCommand:
			s.Commands++
			if ok, _ := e.Data["success"].(bool); !ok {
				s.CommandsFailed++
			}
		case pipeline.EventFileCreated:
			s.FilesCreated++
		case pipeline.EventFileModified:
			s.FilesModified++
		case pipeline.EventValidation:
			if ok, _ := e.Data["success"].(bool); ok {
				s.ValidationsPassed++
			} else {
				s.ValidationsFailed++
			}
		}
	}
	if !first.IsZero() {
		s.Duration = last.Sub(first)
	}
	return s
}

// PrintStats writes the summary block.
func PrintStats(w io.Writer, s *Stats) {
	fmt.Fprintf(w, "%s\n", titleStyle.Render("SUMMARY"))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Duration:   "), valueStyle.Render(s.Duration.Round(time.Millisecond).String()))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Requests:   "), valueStyle.Render(fmt.Sprint(s.Requests)))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Plans:      "), valueStyle.Render(fmt.Sprintf("%d (%d steps)", s.Plans, s.Steps)))

	commands := fmt.Sprint(s.Commands)
	if s.CommandsFailed > 0 {
		commands += errorStyle.Render(fmt.Sprintf(" (%d failed)", s.CommandsFailed))
	}
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Commands:   "), valueStyle.Render(commands))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Files:      "), valueStyle.Render(fmt.Sprintf("%d created, %d modified", s.FilesCreated, s.FilesModified)))

	validations := successStyle.Render(fmt.Sprintf("%d passed", s.ValidationsPassed))
	if s.ValidationsFailed > 0 {
		validations += ", " + errorStyle.Render(fmt.Sprintf("%d failed", s.ValidationsFailed))
	}
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Validations:"), validations)
}
