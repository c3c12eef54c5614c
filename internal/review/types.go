// Package review holds the domain types of a pull-request review and the
// pure functions that build prompts and recover model output.
package review

import (
	"fmt"
	"time"
)

type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeveritySuggestion:
		return true
	}
	return false
}

// Comment is one inline review note. Line and StartLine are new-file
// coordinates; StartLine is set only for multi-line ranges.
type Comment struct {
	Path      string   `json:"path"`
	Line      int      `json:"line"`
	StartLine *int     `json:"start_line,omitempty"`
	Body      string   `json:"body"`
	Severity  Severity `json:"severity"`
}

func (c Comment) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("comment path is required")
	}
	if c.Line < 1 {
		return fmt.Errorf("comment line must be positive, got %d", c.Line)
	}
	if c.StartLine != nil && *c.StartLine >= c.Line {
		return fmt.Errorf("comment start_line %d must be less than line %d", *c.StartLine, c.Line)
	}
	if !c.Severity.Valid() {
		return fmt.Errorf("invalid comment severity %q", c.Severity)
	}
	return nil
}

type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// ModelResponse is a model's reply after recovery. A non-empty Warning
// means Comments may be shorter than what the model intended.
type ModelResponse struct {
	Comments   []Comment   `json:"comments"`
	TokensUsed *TokenUsage `json:"tokensUsed,omitempty"`
	Warning    string      `json:"warning,omitempty"`
	// Raw is the unprocessed model text, kept for artifacts.
	Raw string `json:"-"`
}

// PRRef identifies a pull request on the source-control host.
type PRRef struct {
	Owner  string
	Repo   string
	Number int
}

func (r PRRef) Repository() string {
	return r.Owner + "/" + r.Repo
}

func (r PRRef) URL() string {
	return fmt.Sprintf("https://github.com/%s/%s/pull/%d", r.Owner, r.Repo, r.Number)
}

type Repository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

type PullRequest struct {
	Number     int        `json:"number"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	Diff       string     `json:"diff"`
	Repository Repository `json:"repository"`
	HeadSHA    string     `json:"headSha"`
	State      string     `json:"state"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	// Files lists the changed files kept after ignore filtering.
	Files []string `json:"files,omitempty"`
}

type Assignee struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

type Ticket struct {
	Key                string    `json:"key"`
	Summary            string    `json:"summary"`
	Description        string    `json:"description"`
	Status             string    `json:"status"`
	Type               string    `json:"type"`
	AcceptanceCriteria string    `json:"acceptanceCriteria,omitempty"`
	Priority           string    `json:"priority,omitempty"`
	Assignee           *Assignee `json:"assignee,omitempty"`
}
