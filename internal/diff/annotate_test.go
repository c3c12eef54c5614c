package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleDiff = `diff --git a/src/app.ts b/src/app.ts
--- a/src/app.ts
+++ b/src/app.ts
@@ -10,4 +15,6 @@
 import React from 'react';
 import { Button } from 'components';
-import { OldThing } from 'old';
+import { NewThing } from 'new';
+import { AnotherNew } from 'another';

 function MyComponent() {`

func TestAnnotate(t *testing.T) {
	t.Run("success - lines are tagged with new-file numbers", func(t *testing.T) {
		// act
		got := Annotate(sampleDiff)

		// assert
		want := strings.Join([]string{
			"[FILE] diff --git a/src/app.ts b/src/app.ts",
			"[FILE] --- a/src/app.ts",
			"[FILE] +++ b/src/app.ts",
			"[HUNK] @@ -10,4 +15,6 @@",
			"[LINE 15]  import React from 'react';",
			"[LINE 16]  import { Button } from 'components';",
			"[REMOVED] -import { OldThing } from 'old';",
			"[LINE 17] +import { NewThing } from 'new';",
			"[LINE 18] +import { AnotherNew } from 'another';",
			"[LINE 19] ",
			"[LINE 20]  function MyComponent() {",
		}, "\n")
		assert.Equal(t, want, got)
	})
	t.Run("success - diff without hunks passes through", func(t *testing.T) {
		in := "just some text\nwithout hunks"

		assert.Equal(t, in, Annotate(in))
	})
	t.Run("success - file header resets hunk state", func(t *testing.T) {
		// arrange
		in := strings.Join([]string{
			"@@ -1 +1 @@",
			"+a",
			"diff --git a/b.go b/b.go",
			"stray line",
		}, "\n")

		// act
		got := strings.Split(Annotate(in), "\n")

		// assert
		assert.Equal(t, "[LINE 1] +a", got[1])
		assert.Equal(t, "stray line", got[3])
	})
	t.Run("success - malformed hunk header counts as an ordinary line", func(t *testing.T) {
		// arrange
		in := strings.Join([]string{
			"@@ -1,2 +7,2 @@",
			" a",
			"@@ broken @@",
			"+b",
		}, "\n")

		// act
		got := strings.Split(Annotate(in), "\n")

		// assert
		assert.Equal(t, "[LINE 7]  a", got[1])
		assert.Equal(t, "[LINE 8] @@ broken @@", got[2])
		assert.Equal(t, "[LINE 9] +b", got[3])
	})
	t.Run("success - out of range hunk start counts as an ordinary line", func(t *testing.T) {
		// arrange
		in := strings.Join([]string{
			"@@ -1,2 +7,2 @@",
			" a",
			"@@ -1 +99999999999999999999 @@",
			"+b",
		}, "\n")

		// act
		got := strings.Split(Annotate(in), "\n")

		// assert
		assert.Equal(t, "[LINE 8] @@ -1 +99999999999999999999 @@", got[2])
		assert.Equal(t, "[LINE 9] +b", got[3])
	})
	t.Run("success - no newline marker is not numbered", func(t *testing.T) {
		in := strings.Join([]string{
			"@@ -3 +3 @@",
			"-old",
			`\ No newline at end of file`,
			"+new",
		}, "\n")

		got := strings.Split(Annotate(in), "\n")

		assert.Equal(t, `\ No newline at end of file`, got[2])
		assert.Equal(t, "[LINE 3] +new", got[3])
	})
}

func TestParse_Numbering(t *testing.T) {
	// arrange
	in := strings.Join([]string{
		"diff --git a/x.go b/x.go",
		"--- a/x.go",
		"+++ b/x.go",
		"@@ -5,6 +113,8 @@ func x() {",
		" .table { width: 100%; }",
		"+.pdf-export { color: red; }",
		"-gone",
		"-gone too",
		"+.pdf-export #tb { border: 1px; }",
		" .footer { margin: 0; }",
		"@@ -40,2 +200,2 @@",
		" ctx",
		"+added",
	}, "\n")

	// act
	lines := Parse(in)

	// assert
	numbered := make([]int, 0)
	prev := 0
	hunkStart := 0
	for _, l := range lines {
		switch l.Kind {
		case Hunk:
			hunkStart = -1
		case Present:
			if hunkStart == -1 {
				hunkStart = l.Number
				prev = l.Number - 1
			}
			assert.Equal(t, prev+1, l.Number)
			prev = l.Number
			numbered = append(numbered, l.Number)
			assert.Equal(t, "x.go", l.Path)
		case Removed:
			assert.Zero(t, l.Number)
		}
	}
	assert.Equal(t, []int{113, 114, 115, 116, 200, 201}, numbered)
}

func TestTargets(t *testing.T) {
	targets := NewTargets(sampleDiff)

	assert.True(t, targets.Contains("src/app.ts", 17))
	assert.True(t, targets.Contains("src/app.ts", 20))
	assert.False(t, targets.Contains("src/app.ts", 14))
	assert.False(t, targets.Contains("src/app.ts", 21))
	assert.False(t, targets.Contains("other.ts", 17))
}
