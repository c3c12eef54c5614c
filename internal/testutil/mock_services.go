package testutil

import (
	"context"

	"github.com/hongjs/code-tanuki/internal/service"
	"github.com/hongjs/code-tanuki/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) Review(
	ctx context.Context,
	req service.ReviewRequest,
) (*service.ReviewResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReviewResult), args.Error(1)
}

func (m *MockReviewService) Submit(
	ctx context.Context,
	req service.SubmitRequest,
) (*service.ReviewResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReviewResult), args.Error(1)
}

type MockHistoryService struct {
	mock.Mock
}

func (m *MockHistoryService) ListRuns(ctx context.Context, f store.RunFilter) (*store.RunPage, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.RunPage), args.Error(1)
}

func (m *MockHistoryService) GetRun(ctx context.Context, id string) (*service.RunDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RunDetail), args.Error(1)
}

func (m *MockHistoryService) DeleteRun(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockHistoryService) ReadArtifact(ctx context.Context, id, name string) ([]byte, error) {
	args := m.Called(ctx, id, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockHistoryService) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
