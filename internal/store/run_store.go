package store

import (
	"context"
	"errors"
	"time"
)

var ErrRunNotFound = errors.New("run not found")

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// RunFilter narrows a history listing. Zero values match everything.
type RunFilter struct {
	Search   string
	Status   RunStatus
	Model    string
	DateFrom time.Time
	DateTo   time.Time
	Page     int
	Limit    int
}

// Normalize clamps paging to sane values.
func (f RunFilter) Normalize() RunFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	return f
}

type RunPage struct {
	Runs  []Run `json:"reviews"`
	Total int   `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

type RunStore interface {
	SaveRun(context.Context, *Run) error
	ReadRunByID(context.Context, string) (*Run, error)
	ListRuns(context.Context, RunFilter) (*RunPage, error)
	DeleteRun(context.Context, string) error
	FindRecentRun(ctx context.Context, repository string, prNumber int, since time.Time) (*Run, error)
	DeleteRunsBefore(context.Context, time.Time) ([]string, error)
	Ping(context.Context) error
}
