package service

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// NewScheduler returns a UTC scheduler that logs through logger.
func NewScheduler(logger *zap.Logger) (gocron.Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithStopTimeout(30*time.Second),
		gocron.WithLogger(schedulerLogger{logger.Named("scheduler").Sugar()}),
	)
}

// schedulerLogger adapts zap to the key-value logger gocron expects.
type schedulerLogger struct {
	s *zap.SugaredLogger
}

func (l schedulerLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l schedulerLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l schedulerLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l schedulerLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
