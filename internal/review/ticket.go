package review

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultTicketKeyPattern matches keys such as ACME-42.
const DefaultTicketKeyPattern = `[A-Z]+-\d+`

// TicketExtractor finds an issue-tracker key in a pull-request title.
type TicketExtractor struct {
	keyPattern string
	patterns   []*regexp.Regexp
	exact      *regexp.Regexp
}

// NewTicketExtractor compiles the title conventions around keyPattern.
// An empty keyPattern uses DefaultTicketKeyPattern.
func NewTicketExtractor(keyPattern string) (*TicketExtractor, error) {
	if strings.TrimSpace(keyPattern) == "" {
		keyPattern = DefaultTicketKeyPattern
	}
	if _, err := regexp.Compile(keyPattern); err != nil {
		return nil, fmt.Errorf("invalid ticket key pattern %q: %w", keyPattern, err)
	}

	key := "(" + keyPattern + ")"
	sources := []string{
		`(?:feat|fix|chore|docs|style|refactor|test|build)\(` + key + `\):`,
		`\[` + key + `\]`,
		`^` + key + `:`,
		`\(` + key + `\)`,
		`^` + key + `\s`,
	}

	e := &TicketExtractor{
		keyPattern: keyPattern,
		patterns:   make([]*regexp.Regexp, 0, len(sources)),
		exact:      regexp.MustCompile(`^(?:` + keyPattern + `)$`),
	}
	for _, src := range sources {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("compiling ticket pattern %q: %w", src, err)
		}
		e.patterns = append(e.patterns, re)
	}
	return e, nil
}

// Extract returns the key from the first convention that matches title,
// in priority order, or "" when none does.
func (e *TicketExtractor) Extract(title string) string {
	for _, re := range e.patterns {
		if m := re.FindStringSubmatch(title); m != nil {
			return m[1]
		}
	}
	return ""
}

// Valid reports whether id is a well-formed key on its own.
func (e *TicketExtractor) Valid(id string) bool {
	return e.exact.MatchString(id)
}
