package review

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	WarningTruncated = "AI response was truncated due to token limit. Some comments may be missing."
	WarningMalformed = "AI response contained invalid JSON and was partially recovered. Some comments may be missing."

	sampleLimit = 500
)

var (
	errNoComments     = errors.New("response has no comments array")
	errNoSalvageInput = errors.New("no complete comment objects found to salvage")
)

// RecoveryError is returned when no layer could extract a comment list.
type RecoveryError struct {
	Truncated bool
	Sample    string
	Err       error
}

func (e *RecoveryError) Error() string {
	if e.Truncated {
		return fmt.Sprintf("response was truncated by the output token limit and could not be recovered: %v", e.Err)
	}
	return fmt.Sprintf("failed to parse model response as JSON: %v", e.Err)
}

func (e *RecoveryError) Unwrap() error {
	return e.Err
}

// Salvager is one recovery layer: a pure function over the raw text.
type Salvager func(raw string) ([]Comment, bool)

// Recover turns raw model text into a ModelResponse. Layers run in order and
// the first that yields a comments array wins. Anything past direct
// extraction sets Warning.
func Recover(raw string, truncated bool) (*ModelResponse, error) {
	if comments, ok := ExtractDirect(raw); ok {
		return &ModelResponse{Comments: comments, Raw: raw}, nil
	}

	for _, salvage := range []Salvager{SalvageBracketTrim, SalvageObjects} {
		if comments, ok := salvage(raw); ok {
			warning := WarningMalformed
			if truncated {
				warning = WarningTruncated
			}
			return &ModelResponse{Comments: comments, Warning: warning, Raw: raw}, nil
		}
	}

	_, cause := decodeComments(directCandidate(raw))
	if cause == nil {
		cause = errNoSalvageInput
	}
	return nil, &RecoveryError{
		Truncated: truncated,
		Sample:    Truncate(raw, sampleLimit),
		Err:       cause,
	}
}

var (
	completeFence   = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	openFence       = regexp.MustCompile("(?s)```json\\s*(.+)")
	untaggedFence   = regexp.MustCompile("(?s)```\\s*(\\{.*?)\\s*```")
	commentObjectRe = regexp.MustCompile(
		`\{\s*"path"\s*:\s*"(?:[^"\\]|\\.)*"\s*` +
			`(?:,\s*"start_line"\s*:\s*\d+\s*)?` +
			`,\s*"line"\s*:\s*\d+\s*` +
			`(?:,\s*"start_line"\s*:\s*\d+\s*)?` +
			`,\s*"body"\s*:\s*"(?:[^"\\]|\\.)*"\s*` +
			`,\s*"severity"\s*:\s*"(?:critical|warning|suggestion)"\s*\}`,
	)
)

// ExtractDirect parses a complete ```json block, then an open-ended one whose
// closing fence was cut off, then an untagged block, then the bare text and
// finally the outermost {...} span of it.
func ExtractDirect(raw string) ([]Comment, bool) {
	candidates := make([]string, 0, 4)
	if m := completeFence.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := openFence.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, strings.TrimSuffix(strings.TrimSpace(m[1]), "```"))
	}
	if m := untaggedFence.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, raw)
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start != -1 && end > start {
		candidates = append(candidates, raw[start:end+1])
	}

	for _, c := range candidates {
		if comments, err := decodeComments(c); err == nil {
			return comments, true
		}
	}
	return nil, false
}

// SalvageBracketTrim cuts the text at the last complete "}," and then at the
// last "}", closing whatever arrays and objects are still open. Only the
// outer ```json fence is dropped; fences inside comment bodies are kept.
func SalvageBracketTrim(raw string) ([]Comment, bool) {
	text := raw
	if m := openFence.FindStringSubmatch(raw); m != nil {
		text = m[1]
	}
	start := strings.Index(text, "{")
	if start == -1 {
		return nil, false
	}
	text = text[start:]

	cuts := make([]int, 0, 2)
	if i := strings.LastIndex(text, "},"); i > 0 {
		cuts = append(cuts, i+1)
	}
	if i := strings.LastIndex(text, "}"); i > 0 {
		cuts = append(cuts, i+1)
	}

	for _, cut := range cuts {
		candidate := text[:cut]
		closing, ok := closers(candidate)
		if !ok {
			continue
		}
		if comments, err := decodeComments(candidate + closing); err == nil {
			return comments, true
		}
	}
	return nil, false
}

// SalvageObjects collects every structurally complete comment object found
// anywhere in the text, ignoring the validity of the surrounding JSON.
func SalvageObjects(raw string) ([]Comment, bool) {
	matches := commentObjectRe.FindAllString(raw, -1)
	comments := make([]Comment, 0, len(matches))
	for _, m := range matches {
		var c Comment
		if err := json.Unmarshal([]byte(m), &c); err != nil {
			continue
		}
		comments = append(comments, c)
	}
	if len(comments) == 0 {
		return nil, false
	}
	return comments, true
}

func directCandidate(raw string) string {
	if m := completeFence.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := openFence.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

// decodeComments parses text as {"comments": [...]} and insists that
// comments is an array.
func decodeComments(text string) ([]Comment, error) {
	var envelope struct {
		Comments json.RawMessage `json:"comments"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &envelope); err != nil {
		return nil, err
	}
	list := bytes.TrimSpace(envelope.Comments)
	if len(list) == 0 || list[0] != '[' {
		return nil, errNoComments
	}
	comments := make([]Comment, 0)
	if err := json.Unmarshal(list, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// closers returns the brackets needed to close s, or false when s ends
// inside a string or has mismatched brackets.
func closers(s string) (string, bool) {
	stack := make([]byte, 0, 8)
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", false
			}
			stack = stack[:len(stack)-1]
		}
	}
	if inString {
		return "", false
	}
	out := make([]byte, len(stack))
	for i := range stack {
		out[i] = stack[len(stack)-1-i]
	}
	return string(out), true
}

// Truncate shortens s to at most n bytes without splitting a UTF-8 rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
