package service

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/github"
	"github.com/hongjs/code-tanuki/internal/review"
)

const (
	MaxInstructionsLength = 2000
	MaxOutputTokens       = 64000
)

type ReviewRequest struct {
	PRURL        string `json:"prUrl"`
	TicketID     string `json:"jiraTicketId,omitempty"`
	Instructions string `json:"additionalPrompt,omitempty"`
	MaxTokens    int    `json:"maxTokens,omitempty"`
	ModelID      string `json:"modelId"`
	PreviewOnly  bool   `json:"previewOnly,omitempty"`
	Force        bool   `json:"force,omitempty"`
}

type SubmitRequest struct {
	PRURL    string           `json:"prUrl"`
	ReviewID string           `json:"reviewId,omitempty"`
	TicketID string           `json:"jiraTicketId,omitempty"`
	ModelID  string           `json:"modelId"`
	Comments []review.Comment `json:"comments"`
}

func (s *ReviewService) validateReview(req *ReviewRequest) (review.PRRef, error) {
	req.PRURL = strings.TrimSpace(req.PRURL)
	req.TicketID = strings.TrimSpace(req.TicketID)
	req.ModelID = strings.TrimSpace(req.ModelID)

	ref, err := parsePRURL(req.PRURL)
	if err != nil {
		return ref, err
	}
	if req.ModelID == "" {
		return ref, apperr.Validation("modelId is required")
	}
	if req.TicketID != "" && !s.tickets.Valid(req.TicketID) {
		return ref, apperr.Validation("invalid Jira ticket id %q", req.TicketID)
	}
	if utf8.RuneCountInString(req.Instructions) > MaxInstructionsLength {
		return ref, apperr.Validation("additionalPrompt must be at most %d characters", MaxInstructionsLength)
	}
	if req.MaxTokens < 0 || req.MaxTokens > MaxOutputTokens {
		return ref, apperr.Validation("maxTokens must be between 1 and %d", MaxOutputTokens)
	}
	return ref, nil
}

func (s *ReviewService) validateSubmit(req *SubmitRequest) (review.PRRef, error) {
	req.PRURL = strings.TrimSpace(req.PRURL)
	req.TicketID = strings.TrimSpace(req.TicketID)
	req.ModelID = strings.TrimSpace(req.ModelID)

	ref, err := parsePRURL(req.PRURL)
	if err != nil {
		return ref, err
	}
	if req.ModelID == "" {
		return ref, apperr.Validation("modelId is required")
	}
	if req.ReviewID = strings.TrimSpace(req.ReviewID); req.ReviewID != "" {
		id, err := uuid.Parse(req.ReviewID)
		if err != nil {
			return ref, apperr.Validation("invalid reviewId %q", req.ReviewID)
		}
		req.ReviewID = id.String()
	}
	if req.Comments == nil {
		return ref, apperr.Validation("comments is required")
	}
	for i, c := range req.Comments {
		if err := c.Validate(); err != nil {
			return ref, apperr.Validation("comments[%d]: %v", i, err)
		}
	}
	return ref, nil
}

func parsePRURL(raw string) (review.PRRef, error) {
	if raw == "" {
		return review.PRRef{}, apperr.Validation("prUrl is required")
	}
	if !strings.Contains(raw, "github.com/") || !strings.Contains(raw, "/pull/") {
		return review.PRRef{}, apperr.Validation("prUrl must be a GitHub pull request URL")
	}
	return github.ParsePullRequestURL(raw)
}
