// Package diff tags unified diff lines with their new-file line numbers.
package diff

import (
	"regexp"
	"strconv"
	"strings"
)

type Kind int

const (
	// Passthrough lines sit outside any hunk and are not tagged.
	Passthrough Kind = iota
	Header
	Hunk
	Present
	Removed
)

// Line is one diff line after annotation. Number is set only for Present.
type Line struct {
	Kind   Kind
	Number int
	Path   string
	Text   string
}

var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

var fileHeaderPrefixes = []string{"diff --git", "index ", "---", "+++", "Binary files"}

func isFileHeader(line string) bool {
	for _, prefix := range fileHeaderPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// Parse walks a unified diff and classifies every line.
func Parse(unified string) []Line {
	raw := strings.Split(unified, "\n")
	lines := make([]Line, 0, len(raw))

	var (
		current int
		inHunk  bool
		path    string
	)
	for _, text := range raw {
		if m := hunkHeader.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				current = n
				inHunk = true
				lines = append(lines, Line{Kind: Hunk, Path: path, Text: text})
				continue
			}
		}

		if isFileHeader(text) {
			if p, ok := headerPath(text); ok {
				path = p
			}
			inHunk = false
			lines = append(lines, Line{Kind: Header, Path: path, Text: text})
			continue
		}

		if !inHunk {
			lines = append(lines, Line{Kind: Passthrough, Path: path, Text: text})
			continue
		}

		if strings.HasPrefix(text, "-") {
			lines = append(lines, Line{Kind: Removed, Path: path, Text: text})
			continue
		}
		// "\ No newline at end of file" belongs to the previous line.
		if strings.HasPrefix(text, `\`) {
			lines = append(lines, Line{Kind: Passthrough, Path: path, Text: text})
			continue
		}
		lines = append(lines, Line{Kind: Present, Number: current, Path: path, Text: text})
		current++
	}
	return lines
}

// headerPath extracts the new-file path from "+++ b/x" or "diff --git a/x b/x".
func headerPath(text string) (string, bool) {
	switch {
	case strings.HasPrefix(text, "+++ "):
		p := strings.TrimPrefix(text, "+++ ")
		if p == "/dev/null" {
			return "", false
		}
		return strings.TrimPrefix(p, "b/"), true
	case strings.HasPrefix(text, "diff --git "):
		fields := strings.Fields(strings.TrimPrefix(text, "diff --git "))
		if len(fields) < 2 {
			return "", false
		}
		return strings.TrimPrefix(fields[len(fields)-1], "b/"), true
	}
	return "", false
}

// Annotate renders the diff with [FILE], [HUNK], [LINE n] and [REMOVED] tags
// so a reader never has to count lines from the hunk header.
func Annotate(unified string) string {
	lines := Parse(unified)
	out := make([]string, len(lines))
	for i, l := range lines {
		switch l.Kind {
		case Header:
			out[i] = "[FILE] " + l.Text
		case Hunk:
			out[i] = "[HUNK] " + l.Text
		case Present:
			out[i] = "[LINE " + strconv.Itoa(l.Number) + "] " + l.Text
		case Removed:
			out[i] = "[REMOVED] " + l.Text
		default:
			out[i] = l.Text
		}
	}
	return strings.Join(out, "\n")
}

// Targets is the set of new-file lines a review comment may point at.
type Targets map[string]map[int]struct{}

func NewTargets(unified string) Targets {
	t := make(Targets)
	for _, l := range Parse(unified) {
		if l.Kind != Present || l.Path == "" {
			continue
		}
		if t[l.Path] == nil {
			t[l.Path] = make(map[int]struct{})
		}
		t[l.Path][l.Number] = struct{}{}
	}
	return t
}

func (t Targets) Contains(path string, line int) bool {
	lines, ok := t[path]
	if !ok {
		return false
	}
	_, ok = lines[line]
	return ok
}
