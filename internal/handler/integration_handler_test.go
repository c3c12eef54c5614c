package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/review"
	"github.com/hongjs/code-tanuki/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testRef = review.PRRef{Owner: "acme", Repo: "widgets", Number: 42}

func TestIntegrationHandler_GetPullRequest(t *testing.T) {
	t.Run("success - pull request is fetched", func(t *testing.T) {
		// arrange
		gh := new(testutil.MockSourceControl)
		gh.On("FetchPullRequest", mock.Anything, testRef).Return(&review.PullRequest{
			Number:     42,
			Title:      "fix: null check",
			Repository: review.Repository{Owner: "acme", Name: "widgets"},
			HeadSHA:    "abc123",
		}, nil)
		e, api := newTestEcho(t)
		SetupIntegrationRoutes(api, gh, nil)

		// act
		rec := serve(e, http.MethodGet, "/api/github/pr?url="+testPRURL, "")

		// assert
		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "abc123", body["headSha"])
		gh.AssertExpectations(t)
	})
	t.Run("failure - missing url", func(t *testing.T) {
		// arrange
		gh := new(testutil.MockSourceControl)
		e, api := newTestEcho(t)
		SetupIntegrationRoutes(api, gh, nil)

		// act
		rec := serve(e, http.MethodGet, "/api/github/pr", "")

		// assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing url parameter", decodeError(t, rec).Error)
	})
	t.Run("failure - not a pull request url", func(t *testing.T) {
		// arrange
		gh := new(testutil.MockSourceControl)
		e, api := newTestEcho(t)
		SetupIntegrationRoutes(api, gh, nil)

		// act
		rec := serve(e, http.MethodGet, "/api/github/pr?url=https://github.com/acme/widgets", "")

		// assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		gh.AssertNotCalled(t, "FetchPullRequest", mock.Anything, mock.Anything)
	})
	t.Run("failure - upstream error", func(t *testing.T) {
		// arrange
		gh := new(testutil.MockSourceControl)
		gh.On("FetchPullRequest", mock.Anything, testRef).
			Return(nil, apperr.Upstream(apperr.ServiceGitHub, http.StatusNotFound, "Failed to fetch PR", nil))
		e, api := newTestEcho(t)
		SetupIntegrationRoutes(api, gh, nil)

		// act
		rec := serve(e, http.MethodGet, "/api/github/pr?url="+testPRURL, "")

		// assert
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "Failed to fetch PR", decodeError(t, rec).Error)
	})
}

func TestIntegrationHandler_PostGitHubComment(t *testing.T) {
	t.Run("success - comments are published", func(t *testing.T) {
		// arrange
		comments := []review.Comment{
			{Path: "cart.go", Line: 3, Body: "nil check", Severity: review.SeverityWarning},
		}
		gh := new(testutil.MockSourceControl)
		gh.On("PublishReview", mock.Anything, testRef, "abc123", comments).Return(nil)
		e, api := newTestEcho(t)
		SetupIntegrationRoutes(api, gh, nil)

		// act
		rec := serve(e, http.MethodPost, "/api/github/comment", `{
			"owner": "acme", "repo": "widgets", "prNumber": 42, "headSha": "abc123",
			"comments": [{"path": "cart.go", "line": 3, "body": "nil check", "severity": "warning"}]
		}`)

		// assert
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())
		gh.AssertExpectations(t)
	})
	t.Run("failure - missing fields", func(t *testing.T) {
		// arrange
		gh := new(testutil.MockSourceControl)
		e, api := newTestEcho(t)
		SetupIntegrationRoutes(api, gh, nil)

		// act
		rec := serve(e, http.MethodPost, "/api/github/comment", `{"owner":"acme","repo":"widgets"}`)

		// assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		gh.AssertNotCalled(t, "PublishReview", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
	t.Run("failure - invalid severity", func(t *testing.T) {
		// arrange
		gh := new(testutil.MockSourceControl)
		e, api := newTestEcho(t)
		SetupIntegrationRoutes(api, gh, nil)

		// act
		rec := serve(e, http.MethodPost, "/api/github/comment", `{
			"owner": "acme", "repo": "widgets", "prNumber": 42, "headSha": "abc123",
			"comments": [{"path": "cart.go", "line": 3, "body": "x", "severity": "nit"}]
		}`)

		// assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Error, "comments[0]")
	})
}

func TestIntegrationHandler_Jira(t *testing.T) {
	t.Run("success - ticket is fetched", func(t *testing.T) {
		// arrange
		jira := new(testutil.MockIssueTracker)
		jira.On("FetchTicket", mock.Anything, "ACME-7").
			Return(&review.Ticket{Key: "ACME-7", Summary: "Cart crashes"}, nil)
		e, api := newTestEcho(t)
		SetupIntegrationRoutes(api, new(testutil.MockSourceControl), jira)

		// act
		rec := serve(e, http.MethodGet, "/api/jira/ticket?id=ACME-7", "")

		// assert
		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ACME-7", body["key"])
	})
	t.Run("success - status comment is posted", func(t *testing.T) {
		// arrange
		jira := new(testutil.MockIssueTracker)
		jira.On("PostStatus", mock.Anything, "ACME-7", testPRURL, 0).Return(nil)
		e, api := newTestEcho(t)
		SetupIntegrationRoutes(api, new(testutil.MockSourceControl), jira)

		// act
		rec := serve(e, http.MethodPost, "/api/jira/comment",
			`{"ticketId":"ACME-7","prUrl":"`+testPRURL+`","commentsCount":0}`)

		// assert
		assert.Equal(t, http.StatusOK, rec.Code)
		jira.AssertExpectations(t)
	})
	t.Run("failure - comment count is required", func(t *testing.T) {
		// arrange
		jira := new(testutil.MockIssueTracker)
		e, api := newTestEcho(t)
		SetupIntegrationRoutes(api, new(testutil.MockSourceControl), jira)

		// act
		rec := serve(e, http.MethodPost, "/api/jira/comment",
			`{"ticketId":"ACME-7","prUrl":"`+testPRURL+`"}`)

		// assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		jira.AssertNotCalled(t, "PostStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
	t.Run("failure - jira is not configured", func(t *testing.T) {
		// arrange
		e, api := newTestEcho(t)
		SetupIntegrationRoutes(api, new(testutil.MockSourceControl), nil)

		// act
		rec := serve(e, http.MethodGet, "/api/jira/ticket?id=ACME-7", "")

		// assert
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "jira is not configured", decodeError(t, rec).Error)
	})
}
