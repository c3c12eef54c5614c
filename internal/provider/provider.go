// Package provider sends review prompts to large-language-model APIs and
// recovers a structured comment list from what they return.
package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/retry"
	"github.com/hongjs/code-tanuki/internal/review"
	"go.uber.org/zap"
)

const (
	DefaultMaxTokens   = 8192
	DefaultTemperature = 0.3
	defaultTimeout     = 5 * time.Minute
)

// Request is one review call. A zero MaxTokens uses the model's catalog
// default, then the provider default.
type Request struct {
	ModelID   string
	MaxTokens int
	Input     review.PromptInput
}

// Reviewer is implemented by every model provider and by Router.
type Reviewer interface {
	Review(ctx context.Context, req Request) (*review.ModelResponse, error)
}

// Completion is a provider's raw answer before recovery.
type Completion struct {
	Text      string
	Truncated bool
	Usage     review.TokenUsage
}

type Options struct {
	// BaseURL overrides the provider endpoint, mainly for tests.
	BaseURL          string
	HTTPClient       *http.Client
	Temperature      float64
	DefaultMaxTokens int
	Policy           retry.Policy
	Logger           *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.DefaultMaxTokens == 0 {
		o.DefaultMaxTokens = DefaultMaxTokens
	}
	if o.Policy.MaxAttempts == 0 {
		o.Policy = retry.DefaultPolicy()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type completeFunc func(ctx context.Context, system, user string, req Request) (Completion, error)

// runner is the part every provider shares: compose, call under the retry
// executor, recover.
type runner struct {
	service apperr.Service
	name    string
	exec    *retry.Executor
	policy  retry.Policy
	logger  *zap.Logger
}

func newRunner(service apperr.Service, name string, exec *retry.Executor, opts Options) runner {
	if exec == nil {
		exec = retry.NewExecutor(opts.Logger)
	}
	return runner{
		service: service,
		name:    name,
		exec:    exec,
		policy:  opts.Policy.WithShouldRetry(shouldRetry),
		logger:  opts.Logger.With(zap.String("provider", string(service))),
	}
}

func shouldRetry(err error, _ int) bool {
	return apperr.IsRetryable(err)
}

func (r runner) review(ctx context.Context, req Request, complete completeFunc) (*review.ModelResponse, error) {
	system := review.SystemPrompt()
	user := review.Compose(req.Input)

	r.logger.Info("requesting review",
		zap.String("model", req.ModelID),
		zap.Bool("has_ticket", req.Input.Ticket != nil),
		zap.Int("diff_length", len(req.Input.AnnotatedDiff)),
	)

	var out *review.ModelResponse
	err := r.exec.Execute(ctx, r.policy, func(ctx context.Context) error {
		c, err := complete(ctx, system, user, req)
		if err != nil {
			return err
		}
		if c.Truncated {
			r.logger.Warn("response stopped at the output token limit",
				zap.String("model", req.ModelID),
				zap.Int("output_tokens", c.Usage.Output),
			)
		}

		resp, err := review.Recover(c.Text, c.Truncated)
		if err != nil {
			r.logger.Error("could not recover review from response", zap.Error(err))
			return r.parseError(err)
		}
		if resp.Warning != "" {
			r.logger.Warn("review salvaged from malformed response",
				zap.Int("comments", len(resp.Comments)),
				zap.Bool("truncated", c.Truncated),
			)
		}
		usage := c.Usage
		resp.TokensUsed = &usage
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("review received",
		zap.String("model", req.ModelID),
		zap.Int("comments", len(out.Comments)),
		zap.Int("input_tokens", out.TokensUsed.Input),
		zap.Int("output_tokens", out.TokensUsed.Output),
	)
	return out, nil
}

func (r runner) parseError(err error) error {
	var recErr *review.RecoveryError
	if !errors.As(err, &recErr) {
		return apperr.Parse(r.service, "Failed to parse "+r.name+" response as JSON", "", err)
	}
	msg := "Failed to parse " + r.name + " response as JSON"
	if recErr.Truncated {
		msg = r.name + " response was truncated due to token limit. Please increase max tokens or reduce the diff size."
	}
	return apperr.Parse(r.service, msg, recErr.Sample, recErr)
}

func maxTokens(req Request, fallback int) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return fallback
}
