package handler

import (
	"net/http"
	"strings"

	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/github"
	"github.com/hongjs/code-tanuki/internal/review"
	"github.com/hongjs/code-tanuki/internal/service"
	"github.com/labstack/echo/v4"
)

// SetupIntegrationRoutes exposes the GitHub and Jira clients directly. A
// nil tracker answers its routes with a configuration error.
func SetupIntegrationRoutes(g *echo.Group, sourceControl service.SourceControl, tracker service.IssueTracker) {
	h := NewIntegrationHandler(sourceControl, tracker)
	g.GET("/github/pr", h.GetPullRequest)
	g.POST("/github/comment", h.PostGitHubComment)
	g.GET("/jira/ticket", h.GetTicket)
	g.POST("/jira/comment", h.PostJiraComment)
}

type IntegrationHandler struct {
	sourceControl service.SourceControl
	tracker       service.IssueTracker
}

func NewIntegrationHandler(sourceControl service.SourceControl, tracker service.IssueTracker) *IntegrationHandler {
	return &IntegrationHandler{sourceControl: sourceControl, tracker: tracker}
}

func (h *IntegrationHandler) GetPullRequest(c echo.Context) error {
	pp := new(PullRequestParams)
	if err := c.Bind(pp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pull request query")
	}
	if strings.TrimSpace(pp.URL) == "" {
		return apperr.Validation("missing url parameter")
	}
	ref, err := github.ParsePullRequestURL(pp.URL)
	if err != nil {
		return err
	}

	pr, err := h.sourceControl.FetchPullRequest(c.Request().Context(), ref)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pr)
}

func (h *IntegrationHandler) PostGitHubComment(c echo.Context) error {
	gp := new(GitHubCommentParams)
	if err := c.Bind(gp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid comment request")
	}
	if err := gp.validate(); err != nil {
		return err
	}

	ref := review.PRRef{Owner: gp.Owner, Repo: gp.Repo, Number: gp.PRNumber}
	if err := h.sourceControl.PublishReview(c.Request().Context(), ref, gp.HeadSHA, gp.Comments); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *IntegrationHandler) GetTicket(c echo.Context) error {
	tp := new(TicketParams)
	if err := c.Bind(tp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid ticket query")
	}
	if strings.TrimSpace(tp.ID) == "" {
		return apperr.Validation("missing id parameter")
	}
	if h.tracker == nil {
		return apperr.Configuration(apperr.ServiceJira, "jira is not configured")
	}

	ticket, err := h.tracker.FetchTicket(c.Request().Context(), strings.TrimSpace(tp.ID))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ticket)
}

func (h *IntegrationHandler) PostJiraComment(c echo.Context) error {
	jp := new(JiraCommentParams)
	if err := c.Bind(jp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid comment request")
	}
	if err := jp.validate(); err != nil {
		return err
	}
	if h.tracker == nil {
		return apperr.Configuration(apperr.ServiceJira, "jira is not configured")
	}

	err := h.tracker.PostStatus(
		c.Request().Context(),
		strings.TrimSpace(jp.TicketID),
		strings.TrimSpace(jp.PRURL),
		*jp.CommentsCount,
	)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
