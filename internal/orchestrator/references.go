package orchestrator

import (
	"strings"

	"github.com/vinayprograms/workcell/internal/jail"
	"github.com/vinayprograms/workcell/internal/pipeline"
)

var pronouns = []string{"le", "la", "it", "that", "this", "celui", "celle", "l'", "les"}

const (
	maxReferenceChars = 5000
	referenceHeader   = "[CONTEXT RETRIEVED FROM FILES]"
)

// mentionsReference reports whether input uses a pronoun as a word.
func mentionsReference(input string) bool {
	lower := strings.ToLower(input)
	padded := " " + lower + " "
	for _, p := range pronouns {
		if strings.Contains(padded, " "+p+" ") || strings.HasPrefix(lower, p+" ") {
			return true
		}
	}
	return false
}

// resolveReferences appends the most recently touched file to input
// when the request refers to "it" or similar.
func resolveReferences(input string, j *jail.Jail, state pipeline.State) string {
	if !mentionsReference(input) {
		return input
	}
	var target string
	switch {
	case state.LastCreatedFile != nil:
		target = *state.LastCreatedFile
	case state.LastModifiedFile != nil:
		target = *state.LastModifiedFile
	default:
		return input
	}

	// recorded paths are relative to the root, not the cursor
	content, err := j.ReadFile("/" + target)
	if err != nil {
		return input
	}
	if r := []rune(content); len(r) > maxReferenceChars {
		content = string(r[:maxReferenceChars]) + "...[truncated]"
	}

	var b strings.Builder
	b.WriteString(input)
	b.WriteString("\n\n")
	b.WriteString(referenceHeader)
	b.WriteString("\n--- ")
	b.WriteString(target)
	b.WriteString(" ---\n")
	b.WriteString(content)
	b.WriteString("\n")
	return b.String()
}
