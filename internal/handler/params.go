package handler

import (
	"strings"
	"time"

	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/review"
	"github.com/hongjs/code-tanuki/internal/store"
)

type ReviewIDParams struct {
	ID string `param:"id"`
}

type ReviewFileParams struct {
	ID       string `param:"id"`
	Filename string `param:"filename"`
}

type HistoryParams struct {
	Search   string `query:"search"`
	Status   string `query:"status"`
	Model    string `query:"model"`
	DateFrom string `query:"dateFrom"`
	DateTo   string `query:"dateTo"`
	Page     int    `query:"page"`
	Limit    int    `query:"limit"`
}

// Filter converts query values to a store filter. A date-only dateTo
// covers the whole day.
func (p HistoryParams) Filter() (store.RunFilter, error) {
	f := store.RunFilter{
		Search: strings.TrimSpace(p.Search),
		Status: store.RunStatus(strings.TrimSpace(p.Status)),
		Model:  strings.TrimSpace(p.Model),
		Page:   p.Page,
		Limit:  p.Limit,
	}
	var err error
	if f.DateFrom, err = parseDate("dateFrom", p.DateFrom, false); err != nil {
		return f, err
	}
	if f.DateTo, err = parseDate("dateTo", p.DateTo, true); err != nil {
		return f, err
	}
	return f.Normalize(), nil
}

func parseDate(name, raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be a date (YYYY-MM-DD) or RFC3339 timestamp", name)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return t, nil
}

type PullRequestParams struct {
	URL string `query:"url"`
}

type GitHubCommentParams struct {
	Owner    string           `json:"owner"`
	Repo     string           `json:"repo"`
	PRNumber int              `json:"prNumber"`
	HeadSHA  string           `json:"headSha"`
	Comments []review.Comment `json:"comments"`
}

func (p GitHubCommentParams) validate() error {
	if p.Owner == "" || p.Repo == "" || p.PRNumber < 1 || p.HeadSHA == "" || p.Comments == nil {
		return apperr.Validation("owner, repo, prNumber, headSha and comments are required")
	}
	for i, c := range p.Comments {
		if err := c.Validate(); err != nil {
			return apperr.Validation("comments[%d]: %v", i, err)
		}
	}
	return nil
}

type TicketParams struct {
	ID string `query:"id"`
}

type JiraCommentParams struct {
	TicketID      string `json:"ticketId"`
	PRURL         string `json:"prUrl"`
	CommentsCount *int   `json:"commentsCount"`
}

func (p JiraCommentParams) validate() error {
	if strings.TrimSpace(p.TicketID) == "" || strings.TrimSpace(p.PRURL) == "" || p.CommentsCount == nil {
		return apperr.Validation("ticketId, prUrl and commentsCount are required")
	}
	if *p.CommentsCount < 0 {
		return apperr.Validation("commentsCount must not be negative")
	}
	return nil
}
