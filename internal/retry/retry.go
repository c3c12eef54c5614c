// Package retry runs outbound calls with bounded exponential backoff.
package retry

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 10 * time.Second
)

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// ShouldRetry is consulted after every failed attempt except the last.
	// nil means always retry.
	ShouldRetry func(err error, attempt int) bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// WithShouldRetry returns a copy of p using fn as its retry predicate.
func (p Policy) WithShouldRetry(fn func(err error, attempt int) bool) Policy {
	p.ShouldRetry = fn
	return p
}

// Backoff is the wait after the given failed attempt (1-based):
// min(BaseDelay * 2^(attempt-1), MaxDelay). A zero MaxDelay means
// DefaultMaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	delay := p.BaseDelay
	for i := 1; i < attempt && delay > 0 && delay < maxDelay; i++ {
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	return min(delay, maxDelay)
}

type Executor struct {
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger, sleep: sleepContext}
}

// Execute runs op until it succeeds, the attempts run out, or ShouldRetry
// declines. The last error is returned as-is; Execute never wraps it.
func (e *Executor) Execute(ctx context.Context, p Policy, op func(context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		if p.ShouldRetry != nil && !p.ShouldRetry(err, attempt) {
			return err
		}

		delay := p.Backoff(attempt)
		e.logger.Warn("attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		counterFrom(ctx).inc()

		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return lastErr
		}
	}
	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Counter tallies retries across every Execute call sharing a context.
type Counter struct {
	n atomic.Int64
}

func (c *Counter) inc() {
	if c != nil {
		c.n.Add(1)
	}
}

func (c *Counter) Load() int {
	if c == nil {
		return 0
	}
	return int(c.n.Load())
}

type counterKey struct{}

// WithCounter attaches a fresh Counter to ctx.
func WithCounter(ctx context.Context) (context.Context, *Counter) {
	c := &Counter{}
	return context.WithValue(ctx, counterKey{}, c), c
}

func counterFrom(ctx context.Context) *Counter {
	c, _ := ctx.Value(counterKey{}).(*Counter)
	return c
}
