package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Status of a plan step.
type Status string

const (
	StatusPending    Status = "pending"
	StatusExecuting  Status = "executing"
	StatusValidating Status = "validating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusExecuting:
		return 1
	case StatusValidating:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	}
	return -1
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Step is one unit of a plan.
type Step struct {
	ID        string `json:"id" yaml:"id"`
	Objective string `json:"objective" yaml:"objective"`
	Context   string `json:"context" yaml:"context"`
	Status    Status `json:"status" yaml:"-"`
}

// advance moves the step forward. Backward moves, repeats and moves out
// of a terminal state are refused.
func (s *Step) advance(to Status) error {
	if to.rank() < 0 {
		return fmt.Errorf("unknown status %q", to)
	}
	from := s.Status
	if from == "" {
		from = StatusPending
	}
	if from.Terminal() || to.rank() <= from.rank() {
		return fmt.Errorf("step %s: illegal transition %s -> %s", s.ID, from, to)
	}
	s.Status = to
	return nil
}

// FallbackContext is the context of the single step used when no plan
// could be produced.
const FallbackContext = "Execute the user's request directly"

func fallbackPlan(request string) []*Step {
	return []*Step{{
		ID:        "step_1",
		Objective: request,
		Context:   FallbackContext,
		Status:    StatusPending,
	}}
}

// parsePlan decodes the planner's JSON array, tolerating a markdown fence.
func parsePlan(content, request string) []*Step {
	content = stripFence(strings.TrimSpace(content))

	var raw []struct {
		ID        string `json:"id"`
		Objective string `json:"objective"`
		Context   string `json:"context"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return fallbackPlan(request)
	}

	var steps []*Step
	for _, r := range raw {
		if strings.TrimSpace(r.Objective) == "" {
			continue
		}
		steps = append(steps, &Step{ID: r.ID, Objective: r.Objective, Context: r.Context, Status: StatusPending})
	}
	if len(steps) == 0 {
		return fallbackPlan(request)
	}
	normalizeIDs(steps)
	return steps
}

func stripFence(content string) string {
	if _, after, ok := strings.Cut(content, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(content, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return content
}

// normalizeIDs fills missing ids with step_N and resets status.
func normalizeIDs(steps []*Step) {
	for i, s := range steps {
		if strings.TrimSpace(s.ID) == "" {
			s.ID = fmt.Sprintf("step_%d", i+1)
		}
		s.Status = StatusPending
	}
}

// PlanFile is a plan written by hand.
type PlanFile struct {
	Goal  string  `yaml:"goal"`
	Steps []*Step `yaml:"steps"`
}

// LoadPlanFile reads a YAML plan.
func LoadPlanFile(path string) (*PlanFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return ParsePlanFile(data)
}

// ParsePlanFile decodes a YAML plan.
func ParsePlanFile(data []byte) (*PlanFile, error) {
	var pf PlanFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	if strings.TrimSpace(pf.Goal) == "" {
		return nil, fmt.Errorf("missing required field: goal")
	}
	if len(pf.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}
	for i, s := range pf.Steps {
		if s == nil || strings.TrimSpace(s.Objective) == "" {
			return nil, fmt.Errorf("step %d: missing objective", i+1)
		}
	}
	normalizeIDs(pf.Steps)
	return &pf, nil
}
