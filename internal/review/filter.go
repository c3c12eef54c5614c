package review

import "fmt"

// LineSet reports whether a new-file line is addressable in the diff.
type LineSet interface {
	Contains(path string, line int) bool
}

// FilterComments keeps the comments that are valid and anchored on lines
// present in the diff. A multi-line range whose start falls outside the diff
// is narrowed to its last line.
func FilterComments(comments []Comment, lines LineSet) (kept []Comment, dropped int) {
	kept = make([]Comment, 0, len(comments))
	for _, c := range comments {
		if c.Validate() != nil || !lines.Contains(c.Path, c.Line) {
			dropped++
			continue
		}
		if c.StartLine != nil && !lines.Contains(c.Path, *c.StartLine) {
			c.StartLine = nil
		}
		kept = append(kept, c)
	}
	return kept, dropped
}

// DroppedWarning describes comments removed by FilterComments.
func DroppedWarning(dropped int) string {
	if dropped == 0 {
		return ""
	}
	if dropped == 1 {
		return "1 comment referenced a line outside the diff and was dropped."
	}
	return fmt.Sprintf("%d comments referenced lines outside the diff and were dropped.", dropped)
}

// JoinWarnings combines non-empty warnings into one message.
func JoinWarnings(warnings ...string) string {
	out := ""
	for _, w := range warnings {
		if w == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += w
	}
	return out
}
