package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/diff"
	"github.com/hongjs/code-tanuki/internal/provider"
	"github.com/hongjs/code-tanuki/internal/retry"
	"github.com/hongjs/code-tanuki/internal/review"
	"github.com/hongjs/code-tanuki/internal/store"
	"go.uber.org/zap"
)

type SourceControl interface {
	FetchPullRequest(context.Context, review.PRRef) (*review.PullRequest, error)
	PublishReview(ctx context.Context, ref review.PRRef, commitSHA string, comments []review.Comment) error
}

type IssueTracker interface {
	FetchTicket(ctx context.Context, id string) (*review.Ticket, error)
	PostStatus(ctx context.Context, id, prURL string, commentsCount int) error
}

type Reviewer interface {
	Review(context.Context, provider.Request) (*review.ModelResponse, error)
}

type RunWriter interface {
	SaveRun(context.Context, *store.Run) error
}

type RunReader interface {
	ReadRunByID(context.Context, string) (*store.Run, error)
	FindRecentRun(ctx context.Context, repository string, prNumber int, since time.Time) (*store.Run, error)
}

type ReviewRunStore interface {
	RunWriter
	RunReader
}

type ArtifactWriter interface {
	SaveArtifact(runID, name string, data []byte)
	SaveJSON(runID, name string, v any)
}

type ReviewOptions struct {
	// Tickets extracts and validates ticket ids; nil uses the default key pattern.
	Tickets *review.TicketExtractor
	// DuplicateWindow rejects a second review of the same PR inside the
	// window unless forced. Zero disables the check.
	DuplicateWindow time.Duration
	// DropOutOfDiff removes comments on lines the diff does not contain.
	DropOutOfDiff bool
	Logger        *zap.Logger
	Now           func() time.Time
	NewID         func() (string, error)
}

// ReviewService runs the review pipeline: fetch the PR, enrich it with its
// ticket, ask the model, then preview or publish the comments.
type ReviewService struct {
	github    SourceControl
	jira      IssueTracker
	reviewer  Reviewer
	runs      ReviewRunStore
	artifacts ArtifactWriter

	tickets         *review.TicketExtractor
	duplicateWindow time.Duration
	dropOutOfDiff   bool
	logger          *zap.Logger
	now             func() time.Time
	newID           func() (string, error)
}

// NewReviewService wires the pipeline. jira may be nil when the issue
// tracker is not configured.
func NewReviewService(
	gh SourceControl,
	jira IssueTracker,
	reviewer Reviewer,
	runs ReviewRunStore,
	artifacts ArtifactWriter,
	opts ReviewOptions,
) *ReviewService {
	if opts.Tickets == nil {
		opts.Tickets, _ = review.NewTicketExtractor(review.DefaultTicketKeyPattern)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newRunID
	}
	return &ReviewService{
		github:          gh,
		jira:            jira,
		reviewer:        reviewer,
		runs:            runs,
		artifacts:       artifacts,
		tickets:         opts.Tickets,
		duplicateWindow: opts.DuplicateWindow,
		dropOutOfDiff:   opts.DropOutOfDiff,
		logger:          opts.Logger,
		now:             opts.Now,
		newID:           opts.NewID,
	}
}

func newRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

type ReviewResult struct {
	ReviewID      string             `json:"reviewId"`
	Preview       bool               `json:"preview,omitempty"`
	PRTitle       string             `json:"prTitle,omitempty"`
	PRURL         string             `json:"prUrl"`
	TicketID      string             `json:"jiraTicketId,omitempty"`
	ModelID       string             `json:"modelId,omitempty"`
	Comments      []review.Comment   `json:"comments,omitempty"`
	CommentsCount int                `json:"commentsCount"`
	Diff          string             `json:"diff,omitempty"`
	TokensUsed    *review.TokenUsage `json:"tokensUsed,omitempty"`
	Warning       string             `json:"warning,omitempty"`
	Steps         store.Steps        `json:"steps"`
}

// Review runs the pipeline for one PR. Every outcome except a rejected
// duplicate is persisted; failures come back as *PipelineError.
func (s *ReviewService) Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	start := s.now()
	ctx, retries := retry.WithCounter(ctx)

	id, err := s.newID()
	if err != nil {
		return nil, apperr.Storage("failed to generate review id", err)
	}
	logger := s.logger.With(zap.String("review_id", id))
	run := &store.Run{
		ID:           id,
		CreatedOn:    store.NewTimestamp(start),
		PRURL:        req.PRURL,
		ModelID:      req.ModelID,
		Instructions: req.Instructions,
		Status:       store.StatusError,
		Metadata:     store.Metadata{Steps: store.NewSteps()},
	}

	logger.Info("starting PR review",
		zap.String("pr_url", req.PRURL),
		zap.String("model", req.ModelID),
		zap.Bool("preview", req.PreviewOnly),
	)
	res, err := s.review(ctx, run, &req, logger)

	run.Metadata.DurationMs = s.now().Sub(start).Milliseconds()
	run.Metadata.RetryCount = retries.Load()
	if err != nil {
		if apperr.IsKind(err, apperr.KindDuplicate) {
			return nil, err
		}
		return nil, s.fail(ctx, run, err, logger)
	}

	run.Status = store.StatusSuccess
	s.save(ctx, run, logger)
	res.Steps = run.Metadata.Steps
	logger.Info("completed PR review",
		zap.Int("comments", len(run.Comments)),
		zap.Int64("duration_ms", run.Metadata.DurationMs),
		zap.Bool("preview", res.Preview),
	)
	return res, nil
}

func (s *ReviewService) review(ctx context.Context, run *store.Run, req *ReviewRequest, logger *zap.Logger) (*ReviewResult, error) {
	ref, err := s.validateReview(req)
	run.PRURL, run.ModelID = req.PRURL, req.ModelID
	if ref.Number > 0 {
		run.PRNumber, run.Repository = ref.Number, ref.Repository()
	}
	if err != nil {
		return nil, err
	}
	if err := s.checkDuplicate(ctx, ref, req.Force, logger); err != nil {
		return nil, err
	}
	steps := run.Metadata.Steps

	var pr *review.PullRequest
	err = s.runStep(steps, store.StepFetchGitHub, func() (err error) {
		pr, err = s.github.FetchPullRequest(ctx, ref)
		return err
	})
	if err != nil {
		return nil, &stepError{store.StepFetchGitHub, err}
	}
	run.PRTitle = pr.Title
	s.artifacts.SaveJSON(run.ID, store.ArtifactPullRequest, pr)

	run.TicketID = s.resolveTicketID(req.TicketID, pr.Title, logger)
	ticket := s.fetchTicket(ctx, run.ID, run.TicketID, steps, logger)

	input := review.PromptInput{
		AnnotatedDiff: diff.Annotate(pr.Diff),
		Title:         pr.Title,
		Body:          pr.Body,
		Ticket:        ticket,
		Instructions:  req.Instructions,
	}
	s.saveRequestArtifacts(run, input, pr, ticket, req)

	var resp *review.ModelResponse
	err = s.runStep(steps, store.StepAIReview, func() (err error) {
		resp, err = s.reviewer.Review(ctx, provider.Request{
			ModelID:   req.ModelID,
			MaxTokens: req.MaxTokens,
			Input:     input,
		})
		return err
	})
	if err != nil {
		return nil, &stepError{store.StepAIReview, err}
	}
	s.artifacts.SaveJSON(run.ID, store.ArtifactResponse, responseArtifact{
		Comments:   resp.Comments,
		TokensUsed: resp.TokensUsed,
		Warning:    resp.Warning,
		Raw:        resp.Raw,
	})

	comments, warning := resp.Comments, resp.Warning
	if s.dropOutOfDiff {
		var dropped int
		comments, dropped = review.FilterComments(comments, diff.NewTargets(pr.Diff))
		if dropped > 0 {
			logger.Warn("dropped comments outside the diff", zap.Int("dropped", dropped))
			warning = review.JoinWarnings(warning, review.DroppedWarning(dropped))
		}
	}
	run.Comments = comments
	run.Metadata.TokensUsed = resp.TokensUsed
	run.Metadata.Warning = warning

	res := &ReviewResult{
		ReviewID:      run.ID,
		PRTitle:       pr.Title,
		PRURL:         req.PRURL,
		TicketID:      run.TicketID,
		ModelID:       req.ModelID,
		CommentsCount: len(comments),
		TokensUsed:    resp.TokensUsed,
		Warning:       warning,
	}

	if req.PreviewOnly {
		steps[store.StepPostGitHubComments] = store.Skipped("awaiting approval")
		steps[store.StepPostJiraComment] = store.Skipped("awaiting approval")
		res.Preview = true
		res.Comments = comments
		res.Diff = pr.Diff
		return res, nil
	}

	err = s.runStep(steps, store.StepPostGitHubComments, func() error {
		return s.github.PublishReview(ctx, ref, pr.HeadSHA, comments)
	})
	if err != nil {
		return nil, &stepError{store.StepPostGitHubComments, err}
	}
	s.postTicketStatus(ctx, run.TicketID, req.PRURL, len(comments), steps, logger)
	return res, nil
}

// Submit publishes approved comments, typically after a preview. When the
// preview's run is found its steps, timing and token usage are carried over.
func (s *ReviewService) Submit(ctx context.Context, req SubmitRequest) (*ReviewResult, error) {
	start := s.now()
	ctx, retries := retry.WithCounter(ctx)

	ref, err := s.validateSubmit(&req)
	if err != nil {
		return nil, &PipelineError{Steps: store.NewSteps(), Err: err}
	}

	prior := s.priorRun(ctx, req.ReviewID)
	run := &store.Run{
		ID:         req.ReviewID,
		CreatedOn:  store.NewTimestamp(start),
		PRURL:      req.PRURL,
		PRNumber:   ref.Number,
		Repository: ref.Repository(),
		ModelID:    req.ModelID,
		Status:     store.StatusError,
		Comments:   req.Comments,
		Metadata:   store.Metadata{Steps: store.NewSteps()},
	}
	if prior != nil {
		run.CreatedOn = prior.CreatedOn
		run.PRTitle = prior.PRTitle
		run.TicketID = prior.TicketID
		run.Instructions = prior.Instructions
		run.Metadata.TokensUsed = prior.Metadata.TokensUsed
		run.Metadata.Warning = prior.Metadata.Warning
	} else {
		run.Metadata.Steps[store.StepAIReview] = store.Skipped("comments supplied by caller")
	}
	if run.ID == "" {
		if run.ID, err = s.newID(); err != nil {
			return nil, apperr.Storage("failed to generate review id", err)
		}
	}
	logger := s.logger.With(zap.String("review_id", run.ID))
	logger.Info("submitting approved review", zap.Int("comments", len(req.Comments)))

	res, err := s.submit(ctx, run, ref, &req, logger)

	// duration and retries accumulate across preview and submit
	run.Metadata.DurationMs = s.now().Sub(start).Milliseconds()
	run.Metadata.RetryCount = retries.Load()
	if prior != nil {
		run.Metadata.Steps = prior.Metadata.Steps.Merge(run.Metadata.Steps)
		run.Metadata.DurationMs += prior.Metadata.DurationMs
		run.Metadata.RetryCount += prior.Metadata.RetryCount
	}
	if err != nil {
		return nil, s.fail(ctx, run, err, logger)
	}

	run.Status = store.StatusSuccess
	run.Error = ""
	s.save(ctx, run, logger)
	res.Steps = run.Metadata.Steps
	logger.Info("submitted approved review",
		zap.Int("comments", len(req.Comments)),
		zap.Int64("duration_ms", run.Metadata.DurationMs),
	)
	return res, nil
}

func (s *ReviewService) submit(ctx context.Context, run *store.Run, ref review.PRRef, req *SubmitRequest, logger *zap.Logger) (*ReviewResult, error) {
	steps := run.Metadata.Steps

	// the PR may have moved on since the preview, so publish against the current head
	var pr *review.PullRequest
	err := s.runStep(steps, store.StepFetchGitHub, func() (err error) {
		pr, err = s.github.FetchPullRequest(ctx, ref)
		return err
	})
	if err != nil {
		return nil, &stepError{store.StepFetchGitHub, err}
	}
	run.PRTitle = pr.Title

	ticketID := req.TicketID
	if ticketID == "" {
		ticketID = run.TicketID
	}
	run.TicketID = s.resolveTicketID(ticketID, pr.Title, logger)

	err = s.runStep(steps, store.StepPostGitHubComments, func() error {
		return s.github.PublishReview(ctx, ref, pr.HeadSHA, req.Comments)
	})
	if err != nil {
		return nil, &stepError{store.StepPostGitHubComments, err}
	}
	s.postTicketStatus(ctx, run.TicketID, req.PRURL, len(req.Comments), steps, logger)

	return &ReviewResult{
		ReviewID:      run.ID,
		PRTitle:       pr.Title,
		PRURL:         req.PRURL,
		TicketID:      run.TicketID,
		ModelID:       req.ModelID,
		CommentsCount: len(req.Comments),
		Warning:       run.Metadata.Warning,
	}, nil
}

func (s *ReviewService) priorRun(ctx context.Context, id string) *store.Run {
	if id == "" {
		return nil
	}
	r, err := s.runs.ReadRunByID(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrRunNotFound) {
			s.logger.Warn("failed to load previewed review", zap.String("review_id", id), zap.Error(err))
		}
		return nil
	}
	return r
}

func (s *ReviewService) checkDuplicate(ctx context.Context, ref review.PRRef, force bool, logger *zap.Logger) error {
	if s.duplicateWindow <= 0 || force {
		return nil
	}
	prev, err := s.runs.FindRecentRun(ctx, ref.Repository(), ref.Number, s.now().Add(-s.duplicateWindow))
	if errors.Is(err, store.ErrRunNotFound) {
		return nil
	}
	if err != nil {
		logger.Warn("duplicate check failed, continuing", zap.Error(err))
		return nil
	}
	return apperr.Duplicate("%s#%d was already reviewed at %s (review %s), set force to review again",
		ref.Repository(), ref.Number, prev.CreatedOn.Format(time.RFC3339), prev.ID)
}

func (s *ReviewService) resolveTicketID(explicit, title string, logger *zap.Logger) string {
	if explicit != "" {
		return explicit
	}
	id := s.tickets.Extract(title)
	if id != "" {
		logger.Info("extracted ticket id from PR title", zap.String("ticket", id))
	}
	return id
}

// fetchTicket is best-effort: failures are recorded in steps and the
// review continues without the ticket.
func (s *ReviewService) fetchTicket(ctx context.Context, runID, ticketID string, steps store.Steps, logger *zap.Logger) *review.Ticket {
	switch {
	case ticketID == "":
		steps[store.StepFetchJira] = store.Skipped("no ticket id")
		return nil
	case s.jira == nil:
		steps[store.StepFetchJira] = store.Skipped("jira is not configured")
		return nil
	}

	var ticket *review.Ticket
	err := s.runStep(steps, store.StepFetchJira, func() (err error) {
		ticket, err = s.jira.FetchTicket(ctx, ticketID)
		return err
	})
	if err != nil {
		logger.Warn("failed to fetch ticket, continuing without it", zap.String("ticket", ticketID), zap.Error(err))
		return nil
	}
	s.artifacts.SaveJSON(runID, store.ArtifactTicket, ticket)
	return ticket
}

// postTicketStatus is best-effort like fetchTicket.
func (s *ReviewService) postTicketStatus(ctx context.Context, ticketID, prURL string, count int, steps store.Steps, logger *zap.Logger) {
	switch {
	case ticketID == "":
		steps[store.StepPostJiraComment] = store.Skipped("no ticket id")
		return
	case s.jira == nil:
		steps[store.StepPostJiraComment] = store.Skipped("jira is not configured")
		return
	}
	err := s.runStep(steps, store.StepPostJiraComment, func() error {
		return s.jira.PostStatus(ctx, ticketID, prURL, count)
	})
	if err != nil {
		logger.Warn("failed to post ticket comment, continuing", zap.String("ticket", ticketID), zap.Error(err))
	}
}

func (s *ReviewService) runStep(steps store.Steps, step store.Step, fn func() error) error {
	start := s.now()
	err := fn()
	elapsed := s.now().Sub(start)
	if err != nil {
		steps[step] = store.Failed(elapsed, err)
		return err
	}
	steps[step] = store.Succeeded(elapsed)
	return nil
}

type requestArtifact struct {
	PRTitle           string    `json:"prTitle"`
	PRBody            string    `json:"prBody"`
	TicketID          string    `json:"jiraTicketId,omitempty"`
	TicketSummary     string    `json:"jiraTicketSummary,omitempty"`
	TicketDescription string    `json:"jiraTicketDescription,omitempty"`
	Instructions      string    `json:"additionalPrompt,omitempty"`
	ModelID           string    `json:"modelId"`
	MaxTokens         int       `json:"maxTokens,omitempty"`
	DiffSize          int       `json:"diffSize"`
	PromptSize        int       `json:"promptSize"`
	Timestamp         time.Time `json:"timestamp"`
}

type responseArtifact struct {
	Comments   []review.Comment   `json:"comments"`
	TokensUsed *review.TokenUsage `json:"tokensUsed,omitempty"`
	Warning    string             `json:"warning,omitempty"`
	Raw        string             `json:"raw"`
}

func (s *ReviewService) saveRequestArtifacts(run *store.Run, input review.PromptInput, pr *review.PullRequest, ticket *review.Ticket, req *ReviewRequest) {
	prompt := review.Compose(input)
	s.artifacts.SaveArtifact(run.ID, store.ArtifactPrompt, []byte(prompt))
	s.artifacts.SaveArtifact(run.ID, store.ArtifactSystemPrompt, []byte(review.SystemPrompt()))

	meta := requestArtifact{
		PRTitle:      pr.Title,
		PRBody:       pr.Body,
		TicketID:     run.TicketID,
		Instructions: req.Instructions,
		ModelID:      req.ModelID,
		MaxTokens:    req.MaxTokens,
		DiffSize:     len(pr.Diff),
		PromptSize:   len(prompt),
		Timestamp:    s.now().UTC(),
	}
	if ticket != nil {
		meta.TicketSummary = ticket.Summary
		meta.TicketDescription = ticket.Description
	}
	s.artifacts.SaveJSON(run.ID, store.ArtifactRequest, meta)
}

// fail records err on the run, persists it and returns the pipeline error.
func (s *ReviewService) fail(ctx context.Context, run *store.Run, err error, logger *zap.Logger) error {
	pe := &PipelineError{ReviewID: run.ID, Steps: run.Metadata.Steps, Err: err}
	var se *stepError
	if errors.As(err, &se) {
		pe.Step = se.step
		pe.Label = StepLabel(se.step)
		pe.Err = se.err
	}
	logger.Error("review failed", zap.String("step", string(pe.Step)), zap.Error(pe.Err))

	run.Status = store.StatusError
	run.Error = pe.Err.Error()
	if run.Repository == "" {
		// nothing identifies the PR, so there is no useful record to keep
		logger.Warn("skipping failed review record, PR URL could not be parsed")
		return pe
	}
	s.save(ctx, run, logger)
	return pe
}

// save persists run; errors are logged and not returned to the caller.
func (s *ReviewService) save(ctx context.Context, run *store.Run, logger *zap.Logger) {
	if err := s.runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("failed to save review record", zap.String("status", string(run.Status)), zap.Error(err))
	}
}
