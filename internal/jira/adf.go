package jira

import (
	"strconv"
	"strings"
)

// Node is an Atlassian Document Format node.
type Node struct {
	Type    string         `json:"type"`
	Version int            `json:"version,omitempty"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Content []Node         `json:"content,omitempty"`
}

type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

var criteriaHeadings = map[string]struct{}{
	"acceptance criteria": {},
	"a/c":                 {},
}

// InlineText concatenates the text beneath n.
func (n Node) InlineText() string {
	if n.Type == "text" {
		return n.Text
	}
	if n.Type == "hardBreak" {
		return "\n"
	}
	var b strings.Builder
	for _, c := range n.Content {
		b.WriteString(c.InlineText())
	}
	return b.String()
}

// PlainText flattens a document to text, one line per block.
func PlainText(doc *Node) string {
	if doc == nil {
		return ""
	}
	lines := make([]string, 0, len(doc.Content))
	for _, block := range doc.Content {
		if t := blockText(block); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func blockText(n Node) string {
	switch n.Type {
	case "bulletList", "orderedList":
		items := make([]string, 0, len(n.Content))
		for i, item := range n.Content {
			prefix := "- "
			if n.Type == "orderedList" {
				prefix = strconv.Itoa(i+1) + ". "
			}
			parts := make([]string, 0, len(item.Content))
			for _, c := range item.Content {
				if t := blockText(c); t != "" {
					parts = append(parts, t)
				}
			}
			items = append(items, prefix+strings.Join(parts, " "))
		}
		return strings.Join(items, "\n")
	case "rule":
		return ""
	default:
		return strings.TrimSpace(n.InlineText())
	}
}

// AcceptanceCriteria returns the blocks that follow an "Acceptance
// Criteria" or "A/C" heading, up to the next heading.
func AcceptanceCriteria(doc *Node) string {
	if doc == nil {
		return ""
	}
	var lines []string
	collecting := false
	for _, block := range doc.Content {
		if block.Type == "heading" {
			if collecting {
				break
			}
			title := strings.ToLower(strings.TrimSpace(block.InlineText()))
			title = strings.TrimSuffix(title, ":")
			_, collecting = criteriaHeadings[title]
			continue
		}
		if collecting {
			if t := blockText(block); t != "" {
				lines = append(lines, t)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// StatusComment is the note left on a ticket once its review is published.
func StatusComment(prURL string, commentsCount int) Node {
	return Node{
		Type:    "doc",
		Version: 1,
		Content: []Node{
			{
				Type: "paragraph",
				Content: []Node{
					{Type: "text", Text: "✅ AI Review completed: "},
					{
						Type:  "text",
						Text:  prURL,
						Marks: []Mark{{Type: "link", Attrs: map[string]any{"href": prURL}}},
					},
				},
			},
			{
				Type: "paragraph",
				Content: []Node{
					{Type: "text", Text: "Posted " + strconv.Itoa(commentsCount) + " review comments."},
				},
			},
		},
	}
}
