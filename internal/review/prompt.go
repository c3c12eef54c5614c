package review

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an expert code reviewer. Review the pull request changes against the stated requirements.

Focus on:
1. Compliance with the ticket's acceptance criteria and business requirements, when a ticket is given. This is the highest-priority check.
2. Bugs, unhandled edge cases and security issues.
3. Adherence to the technical intent described in the PR.
4. Duplicated code.
5. Performance problems.

Be constructive and specific. Only comment on lines that appear in the diff.

Line numbers:
The diff you receive is pre-annotated. Every line that exists in the new file carries a tag of the form [LINE n]; removed lines carry [REMOVED]; file and hunk headers carry [FILE] and [HUNK].
- Use the number from the [LINE n] tag verbatim as "line". Never recompute it from the hunk header.
- Never comment on a [REMOVED] line; it has no position in the new file.
- For a comment that spans several lines, set "start_line" to the first tagged line and "line" to the last one; "start_line" must be less than "line".
- To propose a concrete change, put it in the body inside a fenced block tagged suggestion.

Respond with valid JSON only, in exactly this shape:
{
  "comments": [
    {
      "path": "path/to/file.ts",
      "line": 42,
      "start_line": 40,
      "body": "What is wrong, why it matters, and how to fix it",
      "severity": "critical"
    }
  ]
}
"start_line" is optional. "severity" is one of "critical", "warning", "suggestion":
- critical: bugs, security issues, breaking changes
- warning: code smells, likely problems, violated conventions
- suggestion: improvements, optimisations, style

If there is nothing to report, respond with {"comments": []}.`

// SystemPrompt is the fixed instruction sent with every review.
func SystemPrompt() string {
	return systemPrompt
}

// PromptInput carries everything the user prompt is built from.
// AnnotatedDiff is the output of diff.Annotate.
type PromptInput struct {
	AnnotatedDiff string
	Title         string
	Body          string
	Ticket        *Ticket
	Instructions  string
}

// Compose builds the user prompt. It is deterministic in its input.
func Compose(in PromptInput) string {
	var b strings.Builder

	b.WriteString("# Pull Request Review\n\n")
	b.WriteString("## PR Details\n")
	fmt.Fprintf(&b, "**Title:** %s\n", in.Title)
	b.WriteString("**Description:**\n")
	if strings.TrimSpace(in.Body) == "" {
		b.WriteString("No description provided\n\n")
	} else {
		b.WriteString(in.Body)
		b.WriteString("\n\n")
	}

	if t := in.Ticket; t != nil {
		fmt.Fprintf(&b, "## Ticket: %s\n", t.Key)
		fmt.Fprintf(&b, "**Summary:** %s\n", t.Summary)
		fmt.Fprintf(&b, "**Type:** %s\n", t.Type)
		fmt.Fprintf(&b, "**Status:** %s\n", t.Status)
		b.WriteString("**Description:**\n")
		if strings.TrimSpace(t.Description) == "" {
			b.WriteString("No description\n\n")
		} else {
			b.WriteString(t.Description)
			b.WriteString("\n\n")
		}
		if strings.TrimSpace(t.AcceptanceCriteria) != "" {
			b.WriteString("**Acceptance Criteria (highest priority, verify each one):**\n")
			b.WriteString(t.AcceptanceCriteria)
			b.WriteString("\n\n")
		}
	}

	if strings.TrimSpace(in.Instructions) != "" {
		b.WriteString("## Additional Instructions\n")
		b.WriteString(in.Instructions)
		b.WriteString("\n\n")
	}

	b.WriteString("## Code Changes\n")
	b.WriteString(in.AnnotatedDiff)
	b.WriteString("\n\nRespond with the review as JSON in the format described in the system instructions.")

	return b.String()
}
