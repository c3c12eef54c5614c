package service

import (
	"context"
	"errors"
	"time"

	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/store"
	"go.uber.org/zap"
)

type RunStore interface {
	ReadRunByID(context.Context, string) (*store.Run, error)
	ListRuns(context.Context, store.RunFilter) (*store.RunPage, error)
	DeleteRun(context.Context, string) error
	Ping(context.Context) error
}

type ArtifactStore interface {
	ReadArtifact(runID, name string) ([]byte, error)
	ListArtifacts(runID string) ([]string, error)
	DeleteArtifacts(runID string) error
	Writable() error
}

type HistoryService struct {
	runs      RunStore
	artifacts ArtifactStore
	logger    *zap.Logger
}

func NewHistoryService(runs RunStore, artifacts ArtifactStore, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{runs: runs, artifacts: artifacts, logger: logger}
}

type RunDetail struct {
	*store.Run
	Files []string `json:"files"`
}

func (s *HistoryService) ListRuns(ctx context.Context, f store.RunFilter) (*store.RunPage, error) {
	switch f.Status {
	case "", store.StatusSuccess, store.StatusError:
	default:
		return nil, apperr.Validation("invalid status %q, expected success or error", f.Status)
	}
	if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateTo.Before(f.DateFrom) {
		return nil, apperr.Validation("dateTo must not be before dateFrom")
	}
	page, err := s.runs.ListRuns(ctx, f)
	if err != nil {
		s.logger.Error("failed to list reviews", zap.Error(err))
		return nil, apperr.Storage("failed to list reviews", err)
	}
	return page, nil
}

func (s *HistoryService) GetRun(ctx context.Context, id string) (*RunDetail, error) {
	r, err := s.readRun(ctx, id)
	if err != nil {
		return nil, err
	}
	files, err := s.artifacts.ListArtifacts(id)
	if err != nil {
		s.logger.Warn("failed to list artifacts", zap.String("review_id", id), zap.Error(err))
		files = []string{}
	}
	return &RunDetail{Run: r, Files: files}, nil
}

// DeleteRun removes the record and then its artifacts.
func (s *HistoryService) DeleteRun(ctx context.Context, id string) error {
	if !store.ValidName(id) {
		return apperr.Validation("invalid review id %q", id)
	}
	if err := s.runs.DeleteRun(ctx, id); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return apperr.NotFound("review %s not found", id)
		}
		return apperr.Storage("failed to delete review", err)
	}
	if err := s.artifacts.DeleteArtifacts(id); err != nil {
		s.logger.Warn("failed to delete artifacts", zap.String("review_id", id), zap.Error(err))
	}
	s.logger.Info("deleted review", zap.String("review_id", id))
	return nil
}

// ReadArtifact returns a saved side file of a run. Names containing path
// separators or ".." are rejected.
func (s *HistoryService) ReadArtifact(ctx context.Context, id, name string) ([]byte, error) {
	if !store.ValidName(id) || !store.ValidName(name) {
		return nil, apperr.Validation("invalid file name")
	}
	data, err := s.artifacts.ReadArtifact(id, name)
	switch {
	case errors.Is(err, store.ErrArtifactNotFound):
		return nil, apperr.NotFound("file %s not found for review %s", name, id)
	case errors.Is(err, store.ErrInvalidArtifactName):
		return nil, apperr.Validation("invalid file name")
	case err != nil:
		return nil, apperr.Storage("failed to read file", err)
	}
	return data, nil
}

// Health checks that the run store answers and the artifact directory
// accepts writes.
func (s *HistoryService) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.runs.Ping(ctx); err != nil {
		return apperr.Storage("review store is not reachable", err)
	}
	if err := s.artifacts.Writable(); err != nil {
		return apperr.Storage("artifact directory is not writable", err)
	}
	return nil
}

func (s *HistoryService) readRun(ctx context.Context, id string) (*store.Run, error) {
	r, err := s.runs.ReadRunByID(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		return nil, apperr.NotFound("review %s not found", id)
	}
	if err != nil {
		return nil, apperr.Storage("failed to read review", err)
	}
	return r, nil
}
