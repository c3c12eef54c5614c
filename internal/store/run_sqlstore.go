package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

const runColumns = `id,
	created_on,
	pr_url,
	pr_number,
	repository,
	pr_title,
	ticket_id,
	model_id,
	instructions,
	status,
	comments,
	error,
	metadata`

// RunSQLStore keeps runs in sqlite or postgres. Writes go through rwdb,
// which is opened with a single connection.
type RunSQLStore struct {
	rdb, rwdb *sql.DB
}

func NewRunSQLStore(rdb, rwdb *sql.DB) *RunSQLStore {
	return &RunSQLStore{rdb, rwdb}
}

func (store *RunSQLStore) SaveRun(ctx context.Context, r *Run) error {
	if r.Comments == nil {
		r.Comments = Comments{}
	}
	if r.Metadata.Steps == nil {
		r.Metadata.Steps = NewSteps()
	}
	query := `insert into runs (` + runColumns + `)
	values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	on conflict (id) do update set
		pr_url = excluded.pr_url,
		pr_number = excluded.pr_number,
		repository = excluded.repository,
		pr_title = excluded.pr_title,
		ticket_id = excluded.ticket_id,
		model_id = excluded.model_id,
		instructions = excluded.instructions,
		status = excluded.status,
		comments = excluded.comments,
		error = excluded.error,
		metadata = excluded.metadata`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		r.ID,
		r.CreatedOn,
		r.PRURL,
		r.PRNumber,
		r.Repository,
		r.PRTitle,
		r.TicketID,
		r.ModelID,
		r.Instructions,
		r.Status,
		r.Comments,
		r.Error,
		r.Metadata,
	)
	return err
}

func (store *RunSQLStore) ReadRunByID(ctx context.Context, id string) (*Run, error) {
	r := new(Run)
	query := `select ` + runColumns + ` from runs where id = $1`
	if err := sqlscan.Get(ctx, store.rdb, r, query, id); err != nil {
		if sqlscan.NotFound(err) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return r, nil
}

func (store *RunSQLStore) ListRuns(ctx context.Context, f RunFilter) (*RunPage, error) {
	f = f.Normalize()
	where, args := runFilterClause(f)

	var total int
	countQuery := `select count(*) from runs` + where
	if err := sqlscan.Get(ctx, store.rdb, &total, countQuery, args...); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`select %s from runs%s
	order by created_on desc, id desc
	limit $%d offset $%d`, runColumns, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	runs := make([]Run, 0)
	if err := sqlscan.Select(ctx, store.rdb, &runs, query, args...); err != nil {
		return nil, err
	}
	return &RunPage{Runs: runs, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

func runFilterClause(f RunFilter) (string, []any) {
	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		p := next("%" + strings.ToLower(s) + "%")
		conds = append(conds, fmt.Sprintf(`(lower(pr_title) like %[1]s
		or lower(repository) like %[1]s
		or lower(ticket_id) like %[1]s
		or lower(pr_url) like %[1]s
		or cast(pr_number as text) like %[1]s)`, p))
	}
	if f.Status != "" {
		conds = append(conds, "status = "+next(f.Status))
	}
	if f.Model != "" {
		conds = append(conds, "model_id = "+next(f.Model))
	}
	if !f.DateFrom.IsZero() {
		conds = append(conds, "created_on >= "+next(f.DateFrom.UnixMilli()))
	}
	if !f.DateTo.IsZero() {
		conds = append(conds, "created_on <= "+next(f.DateTo.UnixMilli()))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " where " + strings.Join(conds, " and "), args
}

func (store *RunSQLStore) DeleteRun(ctx context.Context, id string) error {
	res, err := store.rwdb.ExecContext(ctx, "delete from runs where id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// FindRecentRun returns the newest run of the PR created at or after since.
func (store *RunSQLStore) FindRecentRun(
	ctx context.Context,
	repository string,
	prNumber int,
	since time.Time,
) (*Run, error) {
	r := new(Run)
	query := `select ` + runColumns + ` from runs
	where repository = $1 and pr_number = $2 and created_on >= $3
	order by created_on desc
	limit 1`
	if err := sqlscan.Get(ctx, store.rdb, r, query, repository, prNumber, since.UnixMilli()); err != nil {
		if sqlscan.NotFound(err) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return r, nil
}

// DeleteRunsBefore removes runs created before cutoff and returns their ids.
func (store *RunSQLStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	tx, err := store.rwdb.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]string, 0)
	if err := sqlscan.Select(ctx, tx, &ids, "select id from runs where created_on < $1", cutoff.UnixMilli()); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	if _, err := tx.ExecContext(ctx, "delete from runs where created_on < $1", cutoff.UnixMilli()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (store *RunSQLStore) Ping(ctx context.Context) error {
	if err := store.rdb.PingContext(ctx); err != nil {
		return err
	}
	return store.rwdb.PingContext(ctx)
}
