package service

import (
	"fmt"

	"github.com/hongjs/code-tanuki/internal/store"
)

// stepLabels names the dependency behind each pipeline stage.
var stepLabels = map[store.Step]string{
	store.StepFetchGitHub:        "GitHub (fetching PR)",
	store.StepFetchJira:          "Jira (fetching ticket)",
	store.StepAIReview:           "AI Review",
	store.StepPostGitHubComments: "GitHub (posting comments)",
	store.StepPostJiraComment:    "Jira (posting comment)",
}

func StepLabel(step store.Step) string {
	if l, ok := stepLabels[step]; ok {
		return l
	}
	return string(step)
}

// PipelineError is returned by the review pipeline. Step is empty when the
// run failed before any stage started.
type PipelineError struct {
	ReviewID string
	Step     store.Step
	Label    string
	Steps    store.Steps
	Err      error
}

func (e *PipelineError) Error() string {
	if e.Step == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s failed: %v", e.Label, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// stepError tags err with the stage it came from.
type stepError struct {
	step store.Step
	err  error
}

func (e *stepError) Error() string {
	return e.err.Error()
}

func (e *stepError) Unwrap() error {
	return e.err
}
