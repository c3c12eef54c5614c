// Package github reads pull requests from and publishes reviews to GitHub.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gogithub "github.com/google/go-github/v58/github"
	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/retry"
	"github.com/hongjs/code-tanuki/internal/review"
	"go.uber.org/zap"
)

const (
	reviewEventComment = "COMMENT"
	sideRight          = "RIGHT"
	emptyReviewBody    = "AI review completed with no comments."
	filesPerPage       = 100
)

type Options struct {
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL    string
	HTTPClient *http.Client
	Policy     retry.Policy
	Ignore     *IgnoreList
	Logger     *zap.Logger
}

type Client struct {
	gh     *gogithub.Client
	exec   *retry.Executor
	policy retry.Policy
	ignore *IgnoreList
	logger *zap.Logger
}

// NewClient builds a client. An empty token makes unauthenticated calls,
// which can read public repositories but not publish.
func NewClient(token string, exec *retry.Executor, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	if exec == nil {
		exec = retry.NewExecutor(opts.Logger)
	}

	gh := gogithub.NewClient(opts.HTTPClient)
	if token = strings.TrimSpace(token); token != "" {
		gh = gh.WithAuthToken(token)
	}
	if opts.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing GitHub base url: %w", err)
		}
		gh.BaseURL = u
	}

	return &Client{
		gh:     gh,
		exec:   exec,
		policy: opts.Policy.WithShouldRetry(func(err error, _ int) bool { return apperr.IsRetryable(err) }),
		ignore: opts.Ignore,
		logger: opts.Logger.With(zap.String("service", string(apperr.ServiceGitHub))),
	}, nil
}

// FetchPullRequest loads the PR details and every changed file, drops
// ignored files and rebuilds a unified diff from the per-file patches.
func (c *Client) FetchPullRequest(ctx context.Context, ref review.PRRef) (*review.PullRequest, error) {
	c.logger.Info("fetching pull request",
		zap.String("repository", ref.Repository()),
		zap.Int("number", ref.Number),
	)

	var out *review.PullRequest
	err := c.exec.Execute(ctx, c.policy, func(ctx context.Context) error {
		pr, _, err := c.gh.PullRequests.Get(ctx, ref.Owner, ref.Repo, ref.Number)
		if err != nil {
			return upstreamError("Failed to fetch PR", err)
		}

		files, err := c.listFiles(ctx, ref)
		if err != nil {
			return upstreamError("Failed to fetch PR files", err)
		}

		kept := make([]*gogithub.CommitFile, 0, len(files))
		for _, f := range files {
			if c.ignore.Match(f.GetFilename()) {
				c.logger.Debug("ignoring file from review", zap.String("file", f.GetFilename()))
				continue
			}
			kept = append(kept, f)
		}

		out = &review.PullRequest{
			Number: pr.GetNumber(),
			Title:  pr.GetTitle(),
			Body:   pr.GetBody(),
			Diff:   BuildDiff(kept),
			Repository: review.Repository{
				Owner: ref.Owner,
				Name:  ref.Repo,
			},
			HeadSHA:   pr.GetHead().GetSHA(),
			State:     pr.GetState(),
			CreatedAt: pr.GetCreatedAt().Time,
			UpdatedAt: pr.GetUpdatedAt().Time,
			Files:     fileNames(kept),
		}
		c.logger.Info("fetched pull request",
			zap.Int("number", out.Number),
			zap.Int("files_changed", len(files)),
			zap.Int("files_reviewed", len(kept)),
		)
		return nil
	})
	if err != nil {
		c.logger.Error("failed to fetch pull request", zap.String("repository", ref.Repository()), zap.Error(err))
		return nil, err
	}
	return out, nil
}

func (c *Client) listFiles(ctx context.Context, ref review.PRRef) ([]*gogithub.CommitFile, error) {
	opts := &gogithub.ListOptions{PerPage: filesPerPage}
	var all []*gogithub.CommitFile
	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, ref.Owner, ref.Repo, ref.Number, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, files...)
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// PublishReview posts comments as one COMMENT review pinned to commitSHA.
func (c *Client) PublishReview(ctx context.Context, ref review.PRRef, commitSHA string, comments []review.Comment) error {
	c.logger.Info("posting review comments",
		zap.String("repository", ref.Repository()),
		zap.Int("number", ref.Number),
		zap.Int("comments", len(comments)),
	)

	drafts := make([]*gogithub.DraftReviewComment, 0, len(comments))
	for _, cm := range comments {
		drafts = append(drafts, DraftComment(cm))
	}
	req := &gogithub.PullRequestReviewRequest{
		CommitID: gogithub.String(commitSHA),
		Event:    gogithub.String(reviewEventComment),
		Comments: drafts,
	}
	// a COMMENT review without inline comments needs a body
	if len(drafts) == 0 {
		req.Body = gogithub.String(emptyReviewBody)
	}

	err := c.exec.Execute(ctx, c.policy, func(ctx context.Context) error {
		if _, _, err := c.gh.PullRequests.CreateReview(ctx, ref.Owner, ref.Repo, ref.Number, req); err != nil {
			return upstreamError("Failed to post comments", err)
		}
		return nil
	})
	if err != nil {
		c.logger.Error("failed to post review comments", zap.String("repository", ref.Repository()), zap.Error(err))
		return err
	}
	c.logger.Info("posted review comments", zap.Int("number", ref.Number), zap.Int("comments", len(comments)))
	return nil
}

// DraftComment converts a review comment into GitHub's draft shape, with a
// severity badge ahead of the body.
func DraftComment(cm review.Comment) *gogithub.DraftReviewComment {
	d := &gogithub.DraftReviewComment{
		Path: gogithub.String(cm.Path),
		Line: gogithub.Int(cm.Line),
		Side: gogithub.String(sideRight),
		Body: gogithub.String(FormatBody(cm)),
	}
	if cm.StartLine != nil && *cm.StartLine < cm.Line {
		d.StartLine = gogithub.Int(*cm.StartLine)
		d.StartSide = gogithub.String(sideRight)
	}
	return d
}

func FormatBody(cm review.Comment) string {
	return fmt.Sprintf("%s **%s**\n\n%s", severityBadge(cm.Severity), strings.ToUpper(string(cm.Severity)), cm.Body)
}

func severityBadge(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return "🚨"
	case review.SeverityWarning:
		return "⚠️"
	default:
		return "💡"
	}
}

// BuildDiff concatenates per-file patches under synthetic git headers.
// Files without a patch (binary or too large) are left out.
func BuildDiff(files []*gogithub.CommitFile) string {
	var b strings.Builder
	for _, f := range files {
		if f.GetPatch() == "" {
			continue
		}
		name := f.GetFilename()
		fmt.Fprintf(&b, "diff --git a/%s b/%s\n", name, name)
		fmt.Fprintf(&b, "--- a/%s\n", name)
		fmt.Fprintf(&b, "+++ b/%s\n", name)
		b.WriteString(f.GetPatch())
		b.WriteString("\n\n")
	}
	return b.String()
}

func fileNames(files []*gogithub.CommitFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.GetFilename())
	}
	return out
}

func upstreamError(message string, err error) error {
	var rateErr *gogithub.RateLimitError
	if errors.As(err, &rateErr) {
		return apperr.Upstream(apperr.ServiceGitHub, http.StatusTooManyRequests, message+": rate limit exceeded", err)
	}
	var abuseErr *gogithub.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return apperr.Upstream(apperr.ServiceGitHub, http.StatusTooManyRequests, message+": secondary rate limit", err)
	}

	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		status := ghErr.Response.StatusCode
		e := apperr.Upstream(apperr.ServiceGitHub, status, message+": "+ghErr.Message, err)
		e.Auth = status == http.StatusUnauthorized
		return e
	}
	return apperr.Upstream(apperr.ServiceGitHub, 0, message, err)
}
