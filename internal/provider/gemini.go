package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/retry"
	"github.com/hongjs/code-tanuki/internal/review"
	"google.golang.org/genai"
)

// Gemini talks to the Gemini API through the genai SDK.
type Gemini struct {
	client      *genai.Client
	temperature float64
	maxTokens   int
	runner      runner
}

func NewGemini(ctx context.Context, apiKey string, exec *retry.Executor, opts Options) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, apperr.Configuration(apperr.ServiceGemini, "GEMINI_API_KEY is not configured")
	}

	opts = opts.withDefaults()
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, apperr.Configuration(apperr.ServiceGemini, "creating genai client: %v", err)
	}

	return &Gemini{
		client:      client,
		temperature: opts.Temperature,
		maxTokens:   opts.DefaultMaxTokens,
		runner:      newRunner(apperr.ServiceGemini, "Gemini", exec, opts),
	}, nil
}

func (g *Gemini) Review(ctx context.Context, req Request) (*review.ModelResponse, error) {
	return g.runner.review(ctx, req, g.complete)
}

func (g *Gemini) complete(ctx context.Context, system, user string, req Request) (Completion, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(float32(g.temperature)),
		MaxOutputTokens:   int32(maxTokens(req, g.maxTokens)),
		ResponseMIMEType:  "application/json",
	}

	resp, err := g.client.Models.GenerateContent(ctx, req.ModelID, genai.Text(user), cfg)
	if err != nil {
		return Completion{}, geminiError(err)
	}

	c := Completion{Text: resp.Text()}
	if len(resp.Candidates) > 0 {
		c.Truncated = resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens
	}
	if u := resp.UsageMetadata; u != nil {
		c.Usage = review.TokenUsage{
			Input:  int(u.PromptTokenCount),
			Output: int(u.CandidatesTokenCount),
		}
	}
	return c, nil
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		detail := apiErr.Message
		if apiErr.Status != "" {
			detail = apiErr.Status + ": " + detail
		}
		return upstreamError(apperr.ServiceGemini, "Gemini", apiErr.Code, detail, err)
	}
	return upstreamError(apperr.ServiceGemini, "Gemini", 0, "", err)
}
