// Package jira fetches tickets from and posts review status to Jira Cloud.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/retry"
	"github.com/hongjs/code-tanuki/internal/review"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	BaseURL  string
	Email    string
	APIToken string
}

// Configured reports whether every credential is present.
func (c Config) Configured() bool {
	return c.BaseURL != "" && c.Email != "" && c.APIToken != ""
}

type Options struct {
	HTTPClient *http.Client
	Policy     retry.Policy
	Logger     *zap.Logger
}

type Client struct {
	baseURL  string
	email    string
	apiToken string
	http     *http.Client
	exec     *retry.Executor
	policy   retry.Policy
	logger   *zap.Logger
}

func NewClient(cfg Config, exec *retry.Executor, opts Options) (*Client, error) {
	if !cfg.Configured() {
		return nil, apperr.Configuration(apperr.ServiceJira, "Jira is not configured, set JIRA_BASE_URL, JIRA_EMAIL and JIRA_API_TOKEN")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, apperr.Configuration(apperr.ServiceJira, "invalid JIRA_BASE_URL: %v", err)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	if exec == nil {
		exec = retry.NewExecutor(opts.Logger)
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		email:    cfg.Email,
		apiToken: cfg.APIToken,
		http:     opts.HTTPClient,
		exec:     exec,
		policy:   opts.Policy.WithShouldRetry(func(err error, _ int) bool { return apperr.IsRetryable(err) }),
		logger:   opts.Logger.With(zap.String("service", string(apperr.ServiceJira))),
	}, nil
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description *Node  `json:"description"`
		Status      struct {
			Name string `json:"name"`
		} `json:"status"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Priority *struct {
			Name string `json:"name"`
		} `json:"priority"`
		Assignee *struct {
			DisplayName  string `json:"displayName"`
			EmailAddress string `json:"emailAddress"`
		} `json:"assignee"`
	} `json:"fields"`
	RenderedFields struct {
		Description string `json:"description"`
	} `json:"renderedFields"`
}

// FetchTicket loads an issue with its rendered description.
func (c *Client) FetchTicket(ctx context.Context, id string) (*review.Ticket, error) {
	c.logger.Info("fetching ticket", zap.String("ticket", id))

	var issue issueResponse
	err := c.exec.Execute(ctx, c.policy, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, "/rest/api/3/issue/"+url.PathEscape(id)+"?expand=renderedFields", nil, &issue, "Failed to fetch ticket")
	})
	if err != nil {
		c.logger.Error("failed to fetch ticket", zap.String("ticket", id), zap.Error(err))
		return nil, err
	}

	f := issue.Fields
	t := &review.Ticket{
		Key:                issue.Key,
		Summary:            f.Summary,
		Description:        c.description(issue),
		Status:             f.Status.Name,
		Type:               f.IssueType.Name,
		AcceptanceCriteria: AcceptanceCriteria(f.Description),
	}
	if f.Priority != nil {
		t.Priority = f.Priority.Name
	}
	if f.Assignee != nil {
		t.Assignee = &review.Assignee{
			DisplayName:  f.Assignee.DisplayName,
			EmailAddress: f.Assignee.EmailAddress,
		}
	}
	c.logger.Info("fetched ticket", zap.String("ticket", t.Key), zap.String("type", t.Type))
	return t, nil
}

// description prefers the rendered HTML converted to Markdown and falls
// back to the document's plain text.
func (c *Client) description(issue issueResponse) string {
	if html := strings.TrimSpace(issue.RenderedFields.Description); html != "" {
		md, err := htmltomarkdown.ConvertString(html)
		if err == nil && strings.TrimSpace(md) != "" {
			return strings.TrimSpace(md)
		}
		if err != nil {
			c.logger.Debug("converting rendered description", zap.Error(err))
		}
	}
	return PlainText(issue.Fields.Description)
}

// PostStatus leaves a comment on the ticket linking the reviewed PR.
func (c *Client) PostStatus(ctx context.Context, id, prURL string, commentsCount int) error {
	c.logger.Info("posting ticket comment", zap.String("ticket", id))

	payload := struct {
		Body Node `json:"body"`
	}{Body: StatusComment(prURL, commentsCount)}

	err := c.exec.Execute(ctx, c.policy, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "/rest/api/3/issue/"+url.PathEscape(id)+"/comment", payload, nil, "Failed to post comment")
	})
	if err != nil {
		c.logger.Error("failed to post ticket comment", zap.String("ticket", id), zap.Error(err))
		return err
	}
	c.logger.Info("posted ticket comment", zap.String("ticket", id))
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, failure string) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Upstream(apperr.ServiceJira, 0, failure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Upstream(apperr.ServiceJira, 0, failure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := apperr.Upstream(apperr.ServiceJira, resp.StatusCode, failure+": "+errorMessage(data, resp.Status), nil)
		e.Auth = resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden
		return e
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Parse(apperr.ServiceJira, failure+": unexpected response", review.Truncate(string(data), 500), err)
	}
	return nil
}

func errorMessage(body []byte, status string) string {
	var e struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		msgs := append([]string(nil), e.ErrorMessages...)
		for field, msg := range e.Errors {
			msgs = append(msgs, field+": "+msg)
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, ", ")
		}
	}
	return status
}
