package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/workcell/internal/projects"
)

// DecisionKind tags a Decision.
type DecisionKind int

const (
	DecisionDirect DecisionKind = iota
	DecisionPlan
	DecisionClarify
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionDirect:
		return "direct"
	case DecisionPlan:
		return "plan"
	case DecisionClarify:
		return "clarify"
	}
	return "unknown"
}

// Decision is how a request will be handled. Text is set for Direct and
// Clarify, Steps for Plan.
type Decision struct {
	Kind  DecisionKind
	Text  string
	Steps []*Step
}

// Direct answers without touching the workspace.
func Direct(text string) Decision { return Decision{Kind: DecisionDirect, Text: text} }

// PlanOf executes steps.
func PlanOf(steps []*Step) Decision { return Decision{Kind: DecisionPlan, Steps: steps} }

// NeedsClarification asks the user a question.
func NeedsClarification(question string) Decision {
	return Decision{Kind: DecisionClarify, Text: question}
}

// ClarifyQuestion is asked when a request is ambiguous.
const ClarifyQuestion = "Do you want me to just **show you the code** (Chat) or **implement it** in the workspace (Execute)? Reply with 'Show' or 'Implement'."

var actionKeywords = []string{"crée", "exécute", "lance", "write", "run", "code"}

// intent is the classifier's raw answer.
type intent int

const (
	intentRespond intent = iota
	intentExecute
	intentClarify
)

// Decide classifies input for a project and produces the matching
// decision: a direct answer, a generated plan, or a clarifying question.
// Nothing is recorded in the project's history or pipeline.
func (o *Orchestrator) Decide(ctx context.Context, projectID, input string) (Decision, error) {
	sess, err := o.session(projectID)
	if err != nil {
		return Decision{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return o.decide(ctx, o.turnFor(sess, input)), nil
}

// turn is what a reasoning call sees of one request.
type turn struct {
	project  string
	history  []projects.Message
	activity string // recent pipeline summary, empty for a new session
	input    string
}

func (o *Orchestrator) turnFor(sess *session, input string) turn {
	t := turn{
		project: sess.id,
		history: recent(sess.messages, historyWindow),
		input:   input,
	}
	if len(sess.pipeline.Recent(1)) > 0 {
		t.activity = sess.pipeline.ContextSummary(activityWindow)
	}
	return t
}

func (o *Orchestrator) classify(ctx context.Context, t turn) intent {
	resp, err := o.fast.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: classifyPrompt(t)}},
	})
	if err != nil {
		o.logger.Warn("classification failed, using keywords", map[string]interface{}{"error": err.Error()})
		return keywordIntent(t.input)
	}
	return parseIntent(resp.Content)
}

// parseIntent reads the A/B/C answer. A leading letter wins; otherwise
// the first standalone letter is used. Anything else is a direct answer.
func parseIntent(answer string) intent {
	answer = strings.ToUpper(strings.TrimSpace(answer))
	letter := func(r rune) (intent, bool) {
		switch r {
		case 'A':
			return intentRespond, true
		case 'B':
			return intentExecute, true
		case 'C':
			return intentClarify, true
		}
		return 0, false
	}
	if answer == "" {
		return intentRespond
	}
	first := []rune(answer)[0]
	if in, ok := letter(first); ok {
		rest := []rune(answer)[1:]
		if len(rest) == 0 || !unicode.IsLetter(rest[0]) {
			return in
		}
	}
	for _, tok := range strings.FieldsFunc(answer, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if len(tok) == 1 {
			if in, ok := letter(rune(tok[0])); ok {
				return in
			}
		}
	}
	return intentRespond
}

func keywordIntent(input string) intent {
	lower := strings.ToLower(input)
	for _, k := range actionKeywords {
		if strings.Contains(lower, k) {
			return intentExecute
		}
	}
	return intentRespond
}

func classifyPrompt(t turn) string {
	var lines []string
	for _, m := range t.history {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(m.Role), m.Content))
	}
	return fmt.Sprintf(`Analyze the user's INTENT based on the conversation context.

RECENT CONVERSATION:
%s
%s
CURRENT USER REQUEST:
%q

Classify the user's intent into one of these 3 categories:

A) IMMEDIATE RESPONSE: the user wants to chat, ask a question, get an explanation, or see code without execution.
B) EXECUTION: the user wants to apply changes, create files, run code or fix bugs, or confirms a previous clarification question.
C) CLARIFICATION: the request is vague and there is no prior context to clarify it. Never choose C when the user is answering a clarification question.

Reply with ONLY 'A', 'B', or 'C'.`, strings.Join(lines, "\n"), activityBlock(t.activity), t.input)
}

const plannerPrompt = `You are a task planner. Break down the user's request into sequential steps.

Each step should be specific, actionable, and achievable with the available tools.

Respond with a JSON array of steps:
[
  {"id": "step_1", "objective": "Check prerequisites", "context": "Gather info before acting"},
  {"id": "step_2", "objective": "Execute core task", "context": "Use findings from step 1"}
]

Keep it concise. Maximum 5-7 steps.`

// generatePlan asks the planner for steps. Gateway or parse failures
// produce a single step covering the whole request.
func (o *Orchestrator) generatePlan(ctx context.Context, t turn) []*Step {
	resp, err := o.gateway.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: plannerPrompt + activityBlock(t.activity)},
			{Role: "user", Content: "Create a plan for: " + t.input},
		},
	})
	if err != nil {
		o.logger.Warn("planning failed, using single step", map[string]interface{}{"error": err.Error()})
		return fallbackPlan(t.input)
	}
	return parsePlan(resp.Content, t.input)
}

const assistantPrompt = `You are a versatile assistant working in a project workspace.
Answer the user's request concisely and naturally.`

// respond produces a direct answer.
func (o *Orchestrator) respond(ctx context.Context, t turn) string {
	messages := []llm.Message{{Role: "system", Content: assistantPrompt + activityBlock(t.activity)}}
	for _, m := range t.history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: t.input})

	resp, err := o.gateway.Chat(ctx, llm.ChatRequest{Messages: messages})
	if err != nil {
		o.logger.Error("direct answer failed", map[string]interface{}{"error": err.Error()})
		return "Error: " + err.Error()
	}
	return resp.Content
}

// activityBlock frames a pipeline summary for a prompt, or returns "".
func activityBlock(activity string) string {
	if activity == "" {
		return ""
	}
	return "\n\n" + activity + "\n"
}
