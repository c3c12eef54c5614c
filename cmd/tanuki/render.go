package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hongjs/code-tanuki/internal/provider"
	"github.com/hongjs/code-tanuki/internal/review"
	"github.com/hongjs/code-tanuki/internal/service"
	"github.com/hongjs/code-tanuki/internal/store"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const bodyWidth = 72

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderResult(w io.Writer, res *service.ReviewResult) {
	if res.Preview {
		fmt.Fprintf(w, "Preview of %s\n", res.PRURL)
	} else {
		fmt.Fprintf(w, "Published %d comments to %s\n", res.CommentsCount, res.PRURL)
	}
	if res.PRTitle != "" {
		fmt.Fprintf(w, "Title:   %s\n", res.PRTitle)
	}
	fmt.Fprintf(w, "Review:  %s\n", res.ReviewID)
	if res.ModelID != "" {
		fmt.Fprintf(w, "Model:   %s\n", res.ModelID)
	}
	if res.TicketID != "" {
		fmt.Fprintf(w, "Ticket:  %s\n", res.TicketID)
	}
	if res.TokensUsed != nil {
		fmt.Fprintf(w, "Tokens:  %d in / %d out\n", res.TokensUsed.Input, res.TokensUsed.Output)
	}
	if res.Warning != "" {
		fmt.Fprintf(w, "Warning: %s\n", res.Warning)
	}
	if len(res.Comments) > 0 {
		fmt.Fprintln(w)
		renderComments(w, res.Comments)
	}
	fmt.Fprintln(w)
	renderSteps(w, res.Steps)
}

func renderComments(w io.Writer, comments []review.Comment) {
	if len(comments) == 0 {
		fmt.Fprintln(w, "(no comments)")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Severity", "File", "Line", "Comment"})
	for i, c := range comments {
		t.AppendRow(table.Row{i + 1, string(c.Severity), c.Path, lineRange(c), text.WrapSoft(c.Body, bodyWidth)})
	}
	t.Render()
}

func lineRange(c review.Comment) string {
	if c.StartLine != nil && *c.StartLine < c.Line {
		return fmt.Sprintf("%d-%d", *c.StartLine, c.Line)
	}
	return strconv.Itoa(c.Line)
}

func renderSteps(w io.Writer, steps store.Steps) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Step", "State", "Duration", "Detail"})
	for _, step := range store.AllSteps {
		r, ok := steps[step]
		if !ok {
			continue
		}
		detail := r.Error
		if detail == "" {
			detail = r.Reason
		}
		duration := ""
		if r.Attempted() {
			duration = r.Duration.Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{service.StepLabel(step), string(r.State), duration, text.WrapSoft(detail, bodyWidth)})
	}
	t.Render()
}

func renderRuns(w io.Writer, page *store.RunPage) {
	if len(page.Runs) == 0 {
		fmt.Fprintln(w, "(no reviews)")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Created", "Repository", "PR", "Model", "Status", "Comments"})
	for _, r := range page.Runs {
		t.AppendRow(table.Row{
			r.ID,
			r.CreatedOn.Format(time.DateTime),
			r.Repository,
			fmt.Sprintf("#%d", r.PRNumber),
			r.ModelID,
			string(r.Status),
			len(r.Comments),
		})
	}
	t.Render()

	pages := 1
	if page.Limit > 0 {
		pages = max((page.Total+page.Limit-1)/page.Limit, 1)
	}
	fmt.Fprintf(w, "page %d of %d (%d reviews)\n", page.Page, pages, page.Total)
}

func renderRun(w io.Writer, detail *service.RunDetail) {
	r := detail.Run
	fmt.Fprintf(w, "Review:   %s\n", r.ID)
	fmt.Fprintf(w, "Created:  %s\n", r.CreatedOn.Format(time.RFC3339))
	fmt.Fprintf(w, "PR:       %s\n", r.PRURL)
	if r.PRTitle != "" {
		fmt.Fprintf(w, "Title:    %s\n", r.PRTitle)
	}
	if r.TicketID != "" {
		fmt.Fprintf(w, "Ticket:   %s\n", r.TicketID)
	}
	fmt.Fprintf(w, "Model:    %s\n", r.ModelID)
	fmt.Fprintf(w, "Status:   %s\n", r.Status)
	fmt.Fprintf(w, "Duration: %s (%d retries)\n",
		(time.Duration(r.Metadata.DurationMs) * time.Millisecond).String(), r.Metadata.RetryCount)
	if r.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", r.Error)
	}
	if r.Metadata.Warning != "" {
		fmt.Fprintf(w, "Warning:  %s\n", r.Metadata.Warning)
	}
	if len(detail.Files) > 0 {
		fmt.Fprintf(w, "Files:    %s\n", strings.Join(detail.Files, ", "))
	}
	fmt.Fprintln(w)
	renderComments(w, r.Comments)
	fmt.Fprintln(w)
	renderSteps(w, r.Metadata.Steps)
}

func renderModels(w io.Writer, models []provider.Model, defaultID string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Provider", "Max tokens", "Description"})
	for _, m := range models {
		id := m.ID
		if id == defaultID {
			id += " *"
		}
		t.AppendRow(table.Row{id, m.Name, string(m.Provider), m.MaxTokens, text.WrapSoft(m.Description, bodyWidth)})
	}
	t.Render()
}
