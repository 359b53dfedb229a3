// Package validator judges whether a sub-task achieved its objective.
package validator

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/workcell/internal/executor"
)

// Gateway is the reasoning service used for judgement.
type Gateway interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Result is a verdict.
type Result struct {
	Success    bool    `json:"success"`
	Confidence float64 `json:"confidence"`
	Feedback   string  `json:"feedback"`
}

const unparsedFeedback = "Unable to parse validation response"

// Validator asks the gateway for a structured verdict.
type Validator struct {
	gateway Gateway
	logger  *logging.Logger
}

// New creates a validator.
func New(gw Gateway) *Validator {
	return &Validator{
		gateway: gw,
		logger:  logging.New().WithComponent("validator"),
	}
}

// Validate judges res against objective. Gateway failures produce a
// failed verdict with zero confidence; it never returns an error.
func (v *Validator) Validate(ctx context.Context, objective string, res *executor.Result) Result {
	start := time.Now()
	stepID := ""
	if res != nil {
		stepID = res.TaskID
	}
	v.logger.PhaseStart("VALIDATE", objective, stepID)

	resp, err := v.gateway.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(objective, res)},
		},
	})
	if err != nil {
		v.logger.Error("validation call failed", map[string]interface{}{
			"step":  stepID,
			"error": err.Error(),
		})
		out := Result{Success: false, Confidence: 0, Feedback: "Validation failed: " + err.Error()}
		v.logger.PhaseComplete("VALIDATE", objective, stepID, time.Since(start), "error")
		return out
	}

	out := Parse(resp.Content)
	v.logger.PhaseComplete("VALIDATE", objective, stepID, time.Since(start),
		fmt.Sprintf("success=%v confidence=%.2f", out.Success, out.Confidence))
	return out
}

// Parse reads SUCCESS/CONFIDENCE/FEEDBACK lines. Missing fields keep
// conservative defaults.
func Parse(content string) Result {
	out := Result{Success: false, Confidence: 0.5, Feedback: unparsedFeedback}

	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SUCCESS:"):
			val := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "SUCCESS:")))
			out.Success = val == "yes" || val == "true" || val == "1"
		case strings.HasPrefix(line, "CONFIDENCE:"):
			f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:")), 64)
			if err != nil {
				out.Confidence = 0.5
				continue
			}
			out.Confidence = clamp(f)
		case strings.HasPrefix(line, "FEEDBACK:"):
			out.Feedback = strings.TrimSpace(strings.TrimPrefix(line, "FEEDBACK:"))
		}
	}
	return out
}

func clamp(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func buildPrompt(objective string, res *executor.Result) string {
	if res == nil {
		res = &executor.Result{}
	}
	errText := res.Error
	if errText == "" {
		errText = "none"
	}

	var b strings.Builder
	b.WriteString("You are a task validator. Your job is to determine if a task was completed successfully.\n\n")
	b.WriteString("TASK OBJECTIVE:\n")
	b.WriteString(objective)
	b.WriteString("\n\nACTUAL RESULT:\n")
	fmt.Fprintf(&b, "Tools Used: %s\n", strings.Join(res.ToolsUsed, ", "))
	fmt.Fprintf(&b, "Output: %s\n", res.Output)
	fmt.Fprintf(&b, "Error: %s\n", errText)
	b.WriteString("\nCONTEXT:\n")
	fmt.Fprintf(&b, "Files Created: %s\n", strings.Join(res.FilesCreated, ", "))
	fmt.Fprintf(&b, "Files Modified: %s\n", strings.Join(res.FilesModified, ", "))
	fmt.Fprintf(&b, "Terminal Output: %s...\n", firstRunes(res.TerminalOutput, 200))
	b.WriteString(`
Evaluate if the task objective was achieved. Consider:
1. Were the required files created/modified?
2. Did commands execute successfully?
3. Is the output consistent with the objective?
4. Are there any errors or issues?

Respond in this exact format:
SUCCESS: [yes/no]
CONFIDENCE: [0.0-1.0]
FEEDBACK: [brief explanation]
`)
	return b.String()
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

const systemPrompt = "You are a precise task validator. Be concise and objective."
