package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteps_Merge(t *testing.T) {
	t.Run("success - submit keeps the earlier review step", func(t *testing.T) {
		// arrange
		preview := NewSteps()
		preview[StepFetchGitHub] = Succeeded(time.Second)
		preview[StepAIReview] = Succeeded(3 * time.Second)
		submit := NewSteps()
		submit[StepFetchGitHub] = Succeeded(200 * time.Millisecond)
		submit[StepPostGitHubComments] = Succeeded(time.Second)
		submit[StepPostJiraComment] = Skipped("no ticket")

		// act
		merged := preview.Merge(submit)

		// assert
		assert.Equal(t, Succeeded(3*time.Second), merged[StepAIReview])
		assert.Equal(t, Succeeded(200*time.Millisecond), merged[StepFetchGitHub])
		assert.Equal(t, Succeeded(time.Second), merged[StepPostGitHubComments])
		assert.Equal(t, Skipped("no ticket"), merged[StepPostJiraComment])
		assert.Equal(t, NotAttempted(), preview[StepPostGitHubComments], "receiver is not modified")
	})
	t.Run("success - not attempted never replaces a skipped step", func(t *testing.T) {
		// arrange
		preview := NewSteps()
		preview[StepFetchJira] = Skipped("no ticket id")
		preview[StepPostGitHubComments] = Skipped("awaiting approval")
		submit := NewSteps()
		submit[StepPostGitHubComments] = Succeeded(time.Second)
		submit[StepPostJiraComment] = Skipped("no ticket id")

		// act
		merged := preview.Merge(submit)

		// assert
		assert.Equal(t, Skipped("no ticket id"), merged[StepFetchJira])
		assert.Equal(t, Succeeded(time.Second), merged[StepPostGitHubComments])
		assert.Equal(t, Skipped("no ticket id"), merged[StepPostJiraComment])
		assert.Equal(t, NotAttempted(), merged[StepAIReview])
	})
	t.Run("success - nil receiver starts from an empty map", func(t *testing.T) {
		var s Steps

		merged := s.Merge(Steps{StepAIReview: Failed(time.Second, errors.New("boom"))})

		assert.Len(t, merged, len(AllSteps))
		assert.Equal(t, "boom", merged[StepAIReview].Error)
	})
}

func TestSteps_Failed(t *testing.T) {
	s := NewSteps()
	s[StepFetchGitHub] = Succeeded(time.Second)
	s[StepFetchJira] = Failed(time.Second, errors.New("jira down"))
	s[StepAIReview] = Failed(time.Second, errors.New("model down"))

	step, ok := s.Failed()

	assert.True(t, ok)
	assert.Equal(t, StepFetchJira, step)

	_, ok = NewSteps().Failed()
	assert.False(t, ok)
}

func TestStepResult_JSON(t *testing.T) {
	t.Run("success - duration is written in milliseconds", func(t *testing.T) {
		b, err := json.Marshal(Failed(1500*time.Millisecond, errors.New("timeout")))

		require.NoError(t, err)
		assert.JSONEq(t, `{"state":"failed","success":false,"durationMs":1500,"error":"timeout"}`, string(b))
	})
	t.Run("success - legacy entries derive state from the flag", func(t *testing.T) {
		var r StepResult

		err := json.Unmarshal([]byte(`{"success":true,"durationMs":20}`), &r)

		require.NoError(t, err)
		assert.Equal(t, Succeeded(20*time.Millisecond), r)
	})
}

func TestTimestamp_Scan(t *testing.T) {
	var ts Timestamp

	require.NoError(t, ts.Scan(int64(1767225600000)))
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), ts.Time)
	assert.Error(t, ts.Scan("yesterday"))
}
