package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/hongjs/code-tanuki/internal/review"
)

type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusError   RunStatus = "error"
)

// Step names a pipeline stage in a run's Steps map.
type Step string

const (
	StepFetchGitHub        Step = "fetchGitHub"
	StepFetchJira          Step = "fetchJira"
	StepAIReview           Step = "aiReview"
	StepPostGitHubComments Step = "postGitHubComments"
	StepPostJiraComment    Step = "postJiraComment"
)

// AllSteps lists the stages in pipeline order.
var AllSteps = []Step{
	StepFetchGitHub,
	StepFetchJira,
	StepAIReview,
	StepPostGitHubComments,
	StepPostJiraComment,
}

type StepState string

const (
	StateNotAttempted StepState = "not_attempted"
	StateSucceeded    StepState = "succeeded"
	StateFailed       StepState = "failed"
	StateSkipped      StepState = "skipped"
)

// StepResult is the outcome of one stage. Success mirrors State so
// consumers that only read the flag keep working.
type StepResult struct {
	State    StepState     `json:"state"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"-"`
	Error    string        `json:"error,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

func NotAttempted() StepResult {
	return StepResult{State: StateNotAttempted}
}

func Succeeded(d time.Duration) StepResult {
	return StepResult{State: StateSucceeded, Success: true, Duration: d}
}

func Failed(d time.Duration, err error) StepResult {
	r := StepResult{State: StateFailed, Duration: d}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Skipped marks a best-effort stage that was deliberately not run.
func Skipped(reason string) StepResult {
	return StepResult{State: StateSkipped, Reason: reason}
}

func (r StepResult) Attempted() bool {
	return r.State == StateSucceeded || r.State == StateFailed
}

type stepResultJSON struct {
	State      StepState `json:"state"`
	Success    bool      `json:"success"`
	DurationMs int64     `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

func (r StepResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepResultJSON{
		State:      r.State,
		Success:    r.Success,
		DurationMs: r.Duration.Milliseconds(),
		Error:      r.Error,
		Reason:     r.Reason,
	})
}

func (r *StepResult) UnmarshalJSON(data []byte) error {
	var v stepResultJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = StepResult{
		State:    v.State,
		Success:  v.Success,
		Duration: time.Duration(v.DurationMs) * time.Millisecond,
		Error:    v.Error,
		Reason:   v.Reason,
	}
	// rows written before State existed carry only the flag
	if r.State == "" {
		if r.Success {
			r.State = StateSucceeded
		} else {
			r.State = StateFailed
		}
	}
	return nil
}

// Steps holds an entry for every stage of a run.
type Steps map[Step]StepResult

// NewSteps returns a map with every stage not attempted.
func NewSteps() Steps {
	s := make(Steps, len(AllSteps))
	for _, step := range AllSteps {
		s[step] = NotAttempted()
	}
	return s
}

// Merge overlays newer on a copy of s. An attempted entry in newer always
// wins, a skipped one replaces only an entry that was not attempted, and a
// not-attempted one never replaces anything.
func (s Steps) Merge(newer Steps) Steps {
	out := maps.Clone(s)
	if out == nil {
		out = NewSteps()
	}
	for step, r := range newer {
		prev, ok := out[step]
		switch {
		case !ok, r.Attempted():
			out[step] = r
		case r.State == StateNotAttempted:
		case !prev.Attempted():
			out[step] = r
		}
	}
	return out
}

// Failed returns the first failed stage in pipeline order.
func (s Steps) Failed() (Step, bool) {
	for _, step := range AllSteps {
		if s[step].State == StateFailed {
			return step, true
		}
	}
	return "", false
}

func (s Steps) Value() (driver.Value, error) {
	return jsonValue(s)
}

func (s *Steps) Scan(src any) error {
	return jsonScan(src, s)
}

type Metadata struct {
	Steps      Steps              `json:"steps"`
	DurationMs int64              `json:"durationMs"`
	RetryCount int                `json:"retryCount"`
	TokensUsed *review.TokenUsage `json:"tokensUsed,omitempty"`
	Warning    string             `json:"warning,omitempty"`
}

func (m Metadata) Value() (driver.Value, error) {
	return jsonValue(m)
}

func (m *Metadata) Scan(src any) error {
	return jsonScan(src, m)
}

type Comments []review.Comment

func (c Comments) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	return jsonValue(c)
}

func (c *Comments) Scan(src any) error {
	return jsonScan(src, c)
}

// Timestamp is stored as unix milliseconds so both dialects sort it the
// same way.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Millisecond)}
}

func (t Timestamp) Value() (driver.Value, error) {
	return t.UnixMilli(), nil
}

func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		t.Time = time.UnixMilli(v).UTC()
	case int32:
		t.Time = time.UnixMilli(int64(v)).UTC()
	case nil:
		t.Time = time.Time{}
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &t.Time)
}

// Run is one pipeline execution.
type Run struct {
	ID           string    `json:"id" db:"id"`
	CreatedOn    Timestamp `json:"timestamp" db:"created_on"`
	PRURL        string    `json:"prUrl" db:"pr_url"`
	PRNumber     int       `json:"prNumber" db:"pr_number"`
	Repository   string    `json:"repository" db:"repository"`
	PRTitle      string    `json:"prTitle" db:"pr_title"`
	TicketID     string    `json:"jiraTicketId,omitempty" db:"ticket_id"`
	ModelID      string    `json:"modelId" db:"model_id"`
	Instructions string    `json:"additionalPrompt,omitempty" db:"instructions"`
	Status       RunStatus `json:"status" db:"status"`
	Comments     Comments  `json:"comments" db:"comments"`
	Error        string    `json:"error,omitempty" db:"error"`
	Metadata     Metadata  `json:"metadata" db:"metadata"`
}

func jsonValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonScan(src, dst any) error {
	switch v := src.(type) {
	case string:
		return json.Unmarshal([]byte(v), dst)
	case []byte:
		return json.Unmarshal(v, dst)
	case nil:
		return nil
	default:
		return errors.New("unsupported json column type")
	}
}
