package review

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompose(t *testing.T) {
	t.Run("success - minimal prompt", func(t *testing.T) {
		// arrange
		in := PromptInput{
			AnnotatedDiff: "[LINE 1] +x",
			Title:         "Add x",
		}

		// act
		got := Compose(in)

		// assert
		assert.Contains(t, got, "**Title:** Add x")
		assert.Contains(t, got, "No description provided")
		assert.NotContains(t, got, "## Ticket")
		assert.NotContains(t, got, "## Additional Instructions")
		assert.True(t, strings.HasSuffix(got, "described in the system instructions."))
	})
	t.Run("success - sections appear in order", func(t *testing.T) {
		// arrange
		in := PromptInput{
			AnnotatedDiff: "[LINE 4] +fixed()",
			Title:         "fix(ACME-7): null check",
			Body:          "Guards the nil case.",
			Ticket: &Ticket{
				Key:                "ACME-7",
				Summary:            "Crash on empty cart",
				Type:               "Bug",
				Status:             "In Progress",
				Description:        "Checkout panics.",
				AcceptanceCriteria: "Empty cart shows a message.",
			},
			Instructions: "Focus on error handling.",
		}

		// act
		got := Compose(in)

		// assert
		title := strings.Index(got, "**Title:** fix(ACME-7): null check")
		ticket := strings.Index(got, "## Ticket: ACME-7")
		criteria := strings.Index(got, "Empty cart shows a message.")
		extra := strings.Index(got, "Focus on error handling.")
		code := strings.Index(got, "[LINE 4] +fixed()")
		assert.True(t, title < ticket && ticket < criteria && criteria < extra && extra < code)
		assert.Contains(t, got, "highest priority")
	})
	t.Run("success - deterministic", func(t *testing.T) {
		in := PromptInput{AnnotatedDiff: "d", Title: "t", Body: "b"}

		assert.Equal(t, Compose(in), Compose(in))
	})
}

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt()

	assert.Contains(t, p, `"comments"`)
	assert.Contains(t, p, `"start_line"`)
	assert.Contains(t, p, "[LINE n]")
}
