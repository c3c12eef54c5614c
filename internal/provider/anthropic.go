package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/retry"
	"github.com/hongjs/code-tanuki/internal/review"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com"
	anthropicAPIVersion = "2023-06-01"
	anthropicKeyPrefix  = "sk-ant-"
	stopReasonMaxTokens = "max_tokens"
)

// Anthropic talks to the Anthropic Messages API.
type Anthropic struct {
	apiKey      string
	baseURL     string
	client      *http.Client
	temperature float64
	maxTokens   int
	runner      runner
}

func NewAnthropic(apiKey string, exec *retry.Executor, opts Options) (*Anthropic, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, apperr.Configuration(apperr.ServiceClaude, "ANTHROPIC_API_KEY is not configured")
	}
	if !strings.HasPrefix(apiKey, anthropicKeyPrefix) {
		return nil, apperr.Configuration(apperr.ServiceClaude,
			"invalid ANTHROPIC_API_KEY format, it should start with %q", anthropicKeyPrefix)
	}

	opts = opts.withDefaults()
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return &Anthropic{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      opts.HTTPClient,
		temperature: opts.Temperature,
		maxTokens:   opts.DefaultMaxTokens,
		runner:      newRunner(apperr.ServiceClaude, "Claude", exec, opts),
	}, nil
}

func (a *Anthropic) Review(ctx context.Context, req Request) (*review.ModelResponse, error) {
	return a.runner.review(ctx, req, a.complete)
}

func (a *Anthropic) complete(ctx context.Context, system, user string, req Request) (Completion, error) {
	payload, err := json.Marshal(anthropicRequest{
		Model:       req.ModelID,
		MaxTokens:   maxTokens(req, a.maxTokens),
		Temperature: a.temperature,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: user}},
	})
	if err != nil {
		return Completion{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return Completion{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return Completion{}, upstreamError(apperr.ServiceClaude, "Claude", 0, "", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Completion{}, upstreamError(apperr.ServiceClaude, "Claude", 0, "reading response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return Completion{}, upstreamError(apperr.ServiceClaude, "Claude", httpResp.StatusCode, anthropicErrorMessage(body), nil)
	}

	var result anthropicResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return Completion{}, apperr.Parse(apperr.ServiceClaude, "Unexpected response from Claude", review.Truncate(string(body), 500), err)
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Completion{}, apperr.Parse(apperr.ServiceClaude, "Unexpected response type from Claude", review.Truncate(string(body), 500), nil)
	}

	return Completion{
		Text:      text.String(),
		Truncated: result.StopReason == stopReasonMaxTokens,
		Usage: review.TokenUsage{
			Input:  result.Usage.InputTokens,
			Output: result.Usage.OutputTokens,
		},
	}, nil
}

func anthropicErrorMessage(body []byte) string {
	var e anthropicError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Type + ": " + e.Error.Message
	}
	return review.Truncate(strings.TrimSpace(string(body)), 200)
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      anthropicUsage   `json:"usage"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
