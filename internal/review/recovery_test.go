package review

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestRecover(t *testing.T) {
	t.Run("success - fenced block parses without warning", func(t *testing.T) {
		// arrange
		raw := "Here is the review:\n```json\n" +
			`{"comments":[{"path":"a.ts","line":5,"start_line":3,"body":"guard nil","severity":"critical"}]}` +
			"\n```\nThanks."

		// act
		got, err := Recover(raw, false)

		// assert
		require.NoError(t, err)
		want := []Comment{{Path: "a.ts", Line: 5, StartLine: intPtr(3), Body: "guard nil", Severity: SeverityCritical}}
		if diff := cmp.Diff(want, got.Comments); diff != "" {
			t.Errorf("comments mismatch (-want +got):\n%s", diff)
		}
		assert.Empty(t, got.Warning)
		assert.Equal(t, raw, got.Raw)
	})
	t.Run("success - bare json without fence", func(t *testing.T) {
		got, err := Recover(`{"comments": []}`, false)

		require.NoError(t, err)
		assert.Empty(t, got.Comments)
		assert.NotNil(t, got.Comments)
		assert.Empty(t, got.Warning)
	})
	t.Run("success - object surrounded by prose", func(t *testing.T) {
		raw := `Sure! {"comments":[{"path":"c.go","line":1,"body":"n","severity":"warning"}]} Hope this helps.`

		got, err := Recover(raw, false)

		require.NoError(t, err)
		require.Len(t, got.Comments, 1)
		assert.Empty(t, got.Warning)
	})
	t.Run("success - open-ended fence whose closing marker was cut", func(t *testing.T) {
		raw := "```json\n" + `{"comments":[{"path":"b.go","line":2,"body":"ok","severity":"suggestion"}]}`

		got, err := Recover(raw, false)

		require.NoError(t, err)
		require.Len(t, got.Comments, 1)
		assert.Empty(t, got.Warning)
	})
	t.Run("success - truncated mid-comment keeps complete comments", func(t *testing.T) {
		// arrange
		raw := `{"comments":[{"path":"a.ts","line":5,"body":"x","severity":"warning"},{"path":"b.ts","line":9,"body":"unfini`

		// act
		got, err := Recover(raw, true)

		// assert
		require.NoError(t, err)
		want := []Comment{{Path: "a.ts", Line: 5, Body: "x", Severity: SeverityWarning}}
		if diff := cmp.Diff(want, got.Comments); diff != "" {
			t.Errorf("comments mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, WarningTruncated, got.Warning)
	})
	t.Run("success - truncated response keeps suggestion fences in bodies", func(t *testing.T) {
		// arrange
		raw := "```json\n" +
			`{"comments":[{"path":"a.go","line":3,"body":"Use this:\n` + "```" + `suggestion\nx := 1\n` + "```" +
			`","severity":"suggestion"},{"path":"b.go","li`

		// act
		got, err := Recover(raw, true)

		// assert
		require.NoError(t, err)
		want := []Comment{{Path: "a.go", Line: 3, Body: "Use this:\n```suggestion\nx := 1\n```", Severity: SeveritySuggestion}}
		if diff := cmp.Diff(want, got.Comments); diff != "" {
			t.Errorf("comments mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, WarningTruncated, got.Warning)
	})
	t.Run("success - malformed json salvaged by object scan", func(t *testing.T) {
		// arrange
		raw := `[{"path":"a.go","line":3,"body":"say \"hi\"","severity":"critical"}, ` +
			`{"path":"a.go","start_line":7,"line":8,"body":"b","severity":"suggestion"}]`

		// act
		got, err := Recover(raw, false)

		// assert
		require.NoError(t, err)
		want := []Comment{
			{Path: "a.go", Line: 3, Body: `say "hi"`, Severity: SeverityCritical},
			{Path: "a.go", Line: 8, StartLine: intPtr(7), Body: "b", Severity: SeveritySuggestion},
		}
		if diff := cmp.Diff(want, got.Comments); diff != "" {
			t.Errorf("comments mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, WarningMalformed, got.Warning)
	})
	t.Run("failure - prose with no json", func(t *testing.T) {
		// act
		got, err := Recover("I could not review this pull request.", false)

		// assert
		assert.Nil(t, got)
		var recErr *RecoveryError
		require.True(t, errors.As(err, &recErr))
		assert.False(t, recErr.Truncated)
		assert.Equal(t, "I could not review this pull request.", recErr.Sample)
		assert.Contains(t, err.Error(), "failed to parse")
	})
	t.Run("failure - comments is not an array", func(t *testing.T) {
		_, err := Recover(`{"comments": "none"}`, false)

		assert.ErrorIs(t, err, errNoComments)
	})
	t.Run("failure - truncated output keeps a bounded sample", func(t *testing.T) {
		// arrange
		raw := `{"comments":[{"path":"` + strings.Repeat("x", 800)

		// act
		_, err := Recover(raw, true)

		// assert
		var recErr *RecoveryError
		require.True(t, errors.As(err, &recErr))
		assert.True(t, recErr.Truncated)
		assert.Len(t, recErr.Sample, 500)
		assert.Contains(t, err.Error(), "truncated")
	})
}

func TestSalvageBracketTrim(t *testing.T) {
	t.Run("success - closes nested structures in order", func(t *testing.T) {
		raw := "```json\n" + `{"comments":[{"path":"a","line":2,"body":"[x] {y}","severity":"warning"}`

		got, ok := SalvageBracketTrim(raw)

		require.True(t, ok)
		require.Len(t, got, 1)
		assert.Equal(t, "[x] {y}", got[0].Body)
	})
	t.Run("failure - no object", func(t *testing.T) {
		_, ok := SalvageBracketTrim("nothing here")

		assert.False(t, ok)
	})
}

func TestCloser(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: `{"a":[{"b":1}`, want: "]}", ok: true},
		{in: `{"a":"}"`, want: "}", ok: true},
		{in: `{"a":"unterminated`, ok: false},
		{in: `{"a":]`, ok: false},
		{in: `{}`, want: "", ok: true},
	}
	for _, tt := range tests {
		got, ok := closers(tt.in)

		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "a", Truncate("aé", 2))
}
