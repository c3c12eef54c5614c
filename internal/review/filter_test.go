package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeLines map[string][]int

func (f fakeLines) Contains(path string, line int) bool {
	for _, l := range f[path] {
		if l == line {
			return true
		}
	}
	return false
}

func TestFilterComments(t *testing.T) {
	// arrange
	lines := fakeLines{"a.go": {10, 11, 12}}
	comments := []Comment{
		{Path: "a.go", Line: 11, Body: "ok", Severity: SeverityWarning},
		{Path: "a.go", Line: 40, Body: "outside", Severity: SeverityWarning},
		{Path: "b.go", Line: 11, Body: "other file", Severity: SeverityWarning},
		{Path: "a.go", Line: 12, StartLine: intPtr(2), Body: "range start outside", Severity: SeverityCritical},
		{Path: "a.go", Line: 12, Body: "bad severity", Severity: "blocker"},
		{Path: "a.go", Line: 11, StartLine: intPtr(12), Body: "inverted", Severity: SeverityWarning},
	}

	// act
	kept, dropped := FilterComments(comments, lines)

	// assert
	assert.Equal(t, 4, dropped)
	assert.Len(t, kept, 2)
	assert.Equal(t, "ok", kept[0].Body)
	assert.Nil(t, kept[1].StartLine)
	assert.Equal(t, 12, kept[1].Line)
}

func TestDroppedWarning(t *testing.T) {
	assert.Empty(t, DroppedWarning(0))
	assert.Contains(t, DroppedWarning(1), "1 comment referenced")
	assert.Contains(t, DroppedWarning(3), "3 comments")
}

func TestJoinWarnings(t *testing.T) {
	assert.Equal(t, "a b", JoinWarnings("", "a", "", "b"))
	assert.Empty(t, JoinWarnings("", ""))
}
