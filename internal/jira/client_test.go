package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := zaptest.NewLogger(t)
	c, err := NewClient(Config{BaseURL: server.URL, Email: "dev@acme.io", APIToken: "tok"}, retry.NewExecutor(logger), Options{
		HTTPClient: server.Client(),
		Policy:     retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Logger:     logger,
	})
	require.NoError(t, err)
	return c
}

const issueJSON = `{
	"key": "ACME-7",
	"fields": {
		"summary": "Crash on empty cart",
		"status": {"name": "In Progress"},
		"issuetype": {"name": "Bug"},
		"priority": {"name": "High"},
		"assignee": {"displayName": "Sam Lee", "emailAddress": "sam@acme.io"},
		"description": {
			"type": "doc", "version": 1,
			"content": [
				{"type": "paragraph", "content": [{"type": "text", "text": "Checkout panics."}]},
				{"type": "heading", "attrs": {"level": 3}, "content": [{"type": "text", "text": "Acceptance Criteria"}]},
				{"type": "paragraph", "content": [{"type": "text", "text": "Empty cart shows a message."}]},
				{"type": "bulletList", "content": [
					{"type": "listItem", "content": [{"type": "paragraph", "content": [{"type": "text", "text": "No panic"}]}]}
				]},
				{"type": "heading", "content": [{"type": "text", "text": "Notes"}]},
				{"type": "paragraph", "content": [{"type": "text", "text": "Not criteria."}]}
			]
		}
	},
	"renderedFields": {"description": "<p>Checkout <strong>panics</strong>.</p>"}
}`

func TestClient_FetchTicket(t *testing.T) {
	t.Run("success - maps fields and acceptance criteria", func(t *testing.T) {
		// arrange
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/api/3/issue/ACME-7", r.URL.Path)
			assert.Equal(t, "renderedFields", r.URL.Query().Get("expand"))
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "dev@acme.io", user)
			assert.Equal(t, "tok", pass)
			fmt.Fprint(w, issueJSON)
		})

		// act
		ticket, err := c.FetchTicket(context.Background(), "ACME-7")

		// assert
		require.NoError(t, err)
		assert.Equal(t, "ACME-7", ticket.Key)
		assert.Equal(t, "Crash on empty cart", ticket.Summary)
		assert.Equal(t, "In Progress", ticket.Status)
		assert.Equal(t, "Bug", ticket.Type)
		assert.Equal(t, "High", ticket.Priority)
		assert.Equal(t, "Sam Lee", ticket.Assignee.DisplayName)
		assert.Equal(t, "Checkout **panics**.", ticket.Description)
		assert.Equal(t, "Empty cart shows a message.\n- No panic", ticket.AcceptanceCriteria)
	})
	t.Run("failure - missing issue reports jira messages", func(t *testing.T) {
		// arrange
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"errorMessages":["Issue does not exist or you do not have permission to see it."]}`)
		})

		// act
		_, err := c.FetchTicket(context.Background(), "ACME-404")

		// assert
		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.ServiceJira, e.Service)
		assert.Contains(t, e.Error(), "Failed to fetch ticket: Issue does not exist")
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestClient_PostStatus(t *testing.T) {
	t.Run("success - posts an adf comment", func(t *testing.T) {
		// arrange
		var got struct {
			Body Node `json:"body"`
		}
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/rest/api/3/issue/ACME-7/comment", r.URL.Path)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":"10001"}`)
		})

		// act
		err := c.PostStatus(context.Background(), "ACME-7", "https://github.com/acme/shop/pull/7", 3)

		// assert
		require.NoError(t, err)
		assert.Equal(t, "doc", got.Body.Type)
		assert.Contains(t, got.Body.Content[0].InlineText(), "https://github.com/acme/shop/pull/7")
		assert.Equal(t, "Posted 3 review comments.", got.Body.Content[1].InlineText())
	})
	t.Run("failure - server errors are retried then surfaced", func(t *testing.T) {
		// arrange
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		// act
		err := c.PostStatus(context.Background(), "ACME-7", "u", 0)

		// assert
		assert.Equal(t, http.StatusBadGateway, apperr.HTTPStatus(err))
		assert.Equal(t, int32(3), calls.Load())
	})
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "https://acme.atlassian.net"}, nil, Options{})

	assert.True(t, apperr.IsKind(err, apperr.KindConfiguration))
}
