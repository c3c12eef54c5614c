package testutil

import (
	"context"

	"github.com/hongjs/code-tanuki/internal/review"
	"github.com/stretchr/testify/mock"
)

type MockSourceControl struct {
	mock.Mock
}

func (m *MockSourceControl) FetchPullRequest(
	ctx context.Context,
	ref review.PRRef,
) (*review.PullRequest, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*review.PullRequest), args.Error(1)
}

func (m *MockSourceControl) PublishReview(
	ctx context.Context,
	ref review.PRRef,
	commitSHA string,
	comments []review.Comment,
) error {
	args := m.Called(ctx, ref, commitSHA, comments)
	return args.Error(0)
}

type MockIssueTracker struct {
	mock.Mock
}

func (m *MockIssueTracker) FetchTicket(ctx context.Context, id string) (*review.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*review.Ticket), args.Error(1)
}

func (m *MockIssueTracker) PostStatus(ctx context.Context, id, prURL string, commentsCount int) error {
	args := m.Called(ctx, id, prURL, commentsCount)
	return args.Error(0)
}
