package service

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type RetentionStore interface {
	DeleteRunsBefore(context.Context, time.Time) ([]string, error)
}

type ArtifactRemover interface {
	DeleteArtifacts(runID string) error
}

// RetentionService deletes runs, and their artifacts, older than maxAge.
type RetentionService struct {
	runs      RetentionStore
	artifacts ArtifactRemover
	maxAge    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewRetentionService(runs RetentionStore, artifacts ArtifactRemover, maxAge time.Duration, logger *zap.Logger) *RetentionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionService{runs: runs, artifacts: artifacts, maxAge: maxAge, logger: logger, now: time.Now}
}

func (s *RetentionService) Enabled() bool {
	return s.maxAge > 0
}

// Purge removes expired runs and returns how many were deleted.
func (s *RetentionService) Purge(ctx context.Context) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	cutoff := s.now().Add(-s.maxAge)
	ids, err := s.runs.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.artifacts.DeleteArtifacts(id); err != nil {
			s.logger.Warn("failed to delete expired artifacts", zap.String("review_id", id), zap.Error(err))
		}
	}
	if len(ids) > 0 {
		s.logger.Info("purged expired reviews", zap.Int("count", len(ids)), zap.Time("cutoff", cutoff))
	}
	return len(ids), nil
}

// Schedule registers Purge on the cron expression. It does nothing when
// retention is disabled.
func (s *RetentionService) Schedule(scheduler gocron.Scheduler, cron string) error {
	if !s.Enabled() {
		return nil
	}
	_, err := scheduler.NewJob(
		gocron.CronJob(cron, false),
		gocron.NewTask(func() {
			if _, err := s.Purge(context.Background()); err != nil {
				s.logger.Error("failed to purge expired reviews", zap.Error(err))
			}
		}),
		gocron.WithName("retention"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}
