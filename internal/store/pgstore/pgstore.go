// Package pgstore is the PostgreSQL marketplace.Store. Job mutations run
// in a transaction that holds the job row with SELECT ... FOR UPDATE, so
// concurrent acceptances on one job serialize.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workmatch/api/internal/marketplace"
	"github.com/workmatch/api/internal/user"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	sb   squirrel.StatementBuilderType
}

var _ marketplace.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var jobColumns = []string{
	"id", "client_id", "title", "description", "location", "budget", "work_category",
	"work_duration", "workers_needed", "requirements", "application_deadline", "status",
	"progress_notes", "work_started_at", "work_completed_at", "version", "created_at", "updated_at",
}

var bidColumns = []string{
	"b.id", "b.job_id", "b.worker_id", "b.amount", "b.message", "b.work_duration",
	"b.status", "b.created_at", "b.updated_at",
}

func scanJob(row pgx.Row) (*marketplace.Job, error) {
	var j marketplace.Job
	err := row.Scan(&j.ID, &j.ClientID, &j.Title, &j.Description, &j.Location, &j.Budget,
		&j.WorkCategory, &j.WorkDuration, &j.WorkersNeeded, &j.Requirements, &j.ApplicationDeadline,
		&j.Status, &j.ProgressNotes, &j.WorkStartedAt, &j.WorkCompletedAt, &j.Version,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Workers = []string{}
	j.WorkerBids = []marketplace.WorkerBid{}
	j.Bids = []string{}
	return &j, nil
}

func scanBid(row pgx.Row) (*marketplace.Bid, error) {
	var b marketplace.Bid
	err := row.Scan(&b.ID, &b.JobID, &b.WorkerID, &b.Amount, &b.Message, &b.WorkDuration,
		&b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) CreateJob(ctx context.Context, job *marketplace.Job) error {
	query, args, err := s.sb.Insert("jobs").
		Columns(jobColumns...).
		Values(job.ID, job.ClientID, job.Title, job.Description, job.Location, job.Budget,
			job.WorkCategory, job.WorkDuration, job.WorkersNeeded, job.Requirements,
			job.ApplicationDeadline, job.Status, job.ProgressNotes, job.WorkStartedAt,
			job.WorkCompletedAt, job.Version, job.CreatedAt, job.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("transaction start failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	if err := s.writeRoster(ctx, tx, job); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*marketplace.Job, error) {
	return s.loadJob(ctx, s.pool, id, false)
}

// loadJob reads a job and its roster. With lock set the job row is held
// FOR UPDATE until the surrounding transaction ends.
func (s *Store) loadJob(ctx context.Context, q querier, id string, lock bool) (*marketplace.Job, error) {
	sel := s.sb.Select(jobColumns...).From("jobs").Where(squirrel.Eq{"id": id})
	if lock {
		sel = sel.Suffix("FOR UPDATE")
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, err
	}
	job, err := scanJob(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketplace.ErrJobNotFound
		}
		return nil, fmt.Errorf("fetch job: %w", err)
	}
	if err := s.loadRosters(ctx, q, []*marketplace.Job{job}); err != nil {
		return nil, err
	}
	return job, nil
}

// loadRosters fills Workers, WorkerBids and Bids for a batch of jobs.
func (s *Store) loadRosters(ctx context.Context, q querier, jobs []*marketplace.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	byID := make(map[string]*marketplace.Job, len(jobs))
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
		ids = append(ids, j.ID)
	}

	query, args, err := s.sb.Select("job_id", "worker_id").From("job_workers").
		Where(squirrel.Eq{"job_id": ids}).OrderBy("job_id", "position").ToSql()
	if err != nil {
		return err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("fetch job workers: %w", err)
	}
	for rows.Next() {
		var jobID, workerID string
		if err := rows.Scan(&jobID, &workerID); err != nil {
			rows.Close()
			return err
		}
		byID[jobID].Workers = append(byID[jobID].Workers, workerID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	query, args, err = s.sb.Select("job_id", "worker_id", "bid_id", "amount", "message", "accepted_at").
		From("job_worker_bids").Where(squirrel.Eq{"job_id": ids}).OrderBy("job_id", "position").ToSql()
	if err != nil {
		return err
	}
	rows, err = q.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("fetch worker bids: %w", err)
	}
	for rows.Next() {
		var jobID string
		var wb marketplace.WorkerBid
		if err := rows.Scan(&jobID, &wb.WorkerID, &wb.BidID, &wb.Amount, &wb.Message, &wb.AcceptedAt); err != nil {
			rows.Close()
			return err
		}
		byID[jobID].WorkerBids = append(byID[jobID].WorkerBids, wb)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	query, args, err = s.sb.Select("job_id", "id").From("bids").
		Where(squirrel.Eq{"job_id": ids}).OrderBy("job_id", "created_at", "id").ToSql()
	if err != nil {
		return err
	}
	rows, err = q.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("fetch job bids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var jobID, bidID string
		if err := rows.Scan(&jobID, &bidID); err != nil {
			return err
		}
		byID[jobID].Bids = append(byID[jobID].Bids, bidID)
	}
	return rows.Err()
}

func (s *Store) ListJobs(ctx context.Context, f marketplace.JobFilter) ([]*marketplace.Job, error) {
	sel := s.sb.Select(jobColumns...).From("jobs").OrderBy("created_at DESC", "id")
	if f.Status != "" {
		sel = sel.Where(squirrel.Eq{"status": f.Status})
	}
	if f.Category != "" {
		sel = sel.Where(squirrel.Eq{"work_category": f.Category})
	}
	if f.ClientID != "" {
		sel = sel.Where(squirrel.Eq{"client_id": f.ClientID})
	}
	if f.WorkerID != "" {
		sel = sel.Where("EXISTS (SELECT 1 FROM job_workers w WHERE w.job_id = jobs.id AND w.worker_id = ?)", f.WorkerID)
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	jobs := make([]*marketplace.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		jobs = append(jobs, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadRosters(ctx, s.pool, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	query, args, err := s.sb.Delete("jobs").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if res.RowsAffected() == 0 {
		return marketplace.ErrJobNotFound
	}
	return nil
}

// saveJob writes the mutable job columns and rewrites the roster tables.
func (s *Store) saveJob(ctx context.Context, tx pgx.Tx, job *marketplace.Job) error {
	query, args, err := s.sb.Update("jobs").
		Set("status", job.Status).
		Set("progress_notes", job.ProgressNotes).
		Set("work_started_at", job.WorkStartedAt).
		Set("work_completed_at", job.WorkCompletedAt).
		Set("updated_at", job.UpdatedAt).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": job.ID}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return err
	}
	if err := tx.QueryRow(ctx, query, args...).Scan(&job.Version); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return s.writeRoster(ctx, tx, job)
}

// writeRoster replaces the job_workers and job_worker_bids rows for job.
func (s *Store) writeRoster(ctx context.Context, tx pgx.Tx, job *marketplace.Job) error {
	if _, err := tx.Exec(ctx, `DELETE FROM job_workers WHERE job_id = $1`, job.ID); err != nil {
		return fmt.Errorf("clear job workers: %w", err)
	}
	if len(job.Workers) > 0 {
		ins := s.sb.Insert("job_workers").Columns("job_id", "worker_id", "position")
		for i, w := range job.Workers {
			ins = ins.Values(job.ID, w, i)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert job workers: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM job_worker_bids WHERE job_id = $1`, job.ID); err != nil {
		return fmt.Errorf("clear worker bids: %w", err)
	}
	if len(job.WorkerBids) > 0 {
		ins := s.sb.Insert("job_worker_bids").
			Columns("job_id", "position", "worker_id", "bid_id", "amount", "message", "accepted_at")
		for i, wb := range job.WorkerBids {
			ins = ins.Values(job.ID, i, wb.WorkerID, wb.BidID, wb.Amount, wb.Message, wb.AcceptedAt)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert worker bids: %w", err)
		}
	}
	return nil
}

func (s *Store) UpdateJob(ctx context.Context, id string, fn func(*marketplace.Job) error) (*marketplace.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("transaction start failed: %w", err)
	}
	defer tx.Rollback(ctx)

	job, err := s.loadJob(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if err := fn(job); err != nil {
		return nil, err
	}
	if err := s.saveJob(ctx, tx, job); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}
	return job, nil
}

func (s *Store) CreateBid(ctx context.Context, bid *marketplace.Bid, check func(*marketplace.Job) error) (*marketplace.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("transaction start failed: %w", err)
	}
	defer tx.Rollback(ctx)

	job, err := s.loadJob(ctx, tx, bid.JobID, true)
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(job); err != nil {
			return nil, err
		}
	}

	query, args, err := s.sb.Insert("bids").
		Columns("id", "job_id", "worker_id", "amount", "message", "work_duration", "status", "created_at", "updated_at").
		Values(bid.ID, bid.JobID, bid.WorkerID, bid.Amount, bid.Message, bid.WorkDuration, bid.Status, bid.CreatedAt, bid.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert bid: %w", err)
	}
	if err := tx.QueryRow(ctx,
		`UPDATE jobs SET version = version + 1 WHERE id = $1 RETURNING version`, job.ID,
	).Scan(&job.Version); err != nil {
		return nil, fmt.Errorf("bump job version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}
	job.Bids = append(job.Bids, bid.ID)
	return job, nil
}

func (s *Store) GetBid(ctx context.Context, id string) (*marketplace.Bid, error) {
	return s.loadBid(ctx, s.pool, id, false)
}

func (s *Store) loadBid(ctx context.Context, q querier, id string, lock bool) (*marketplace.Bid, error) {
	sel := s.sb.Select(bidColumns...).From("bids b").Where(squirrel.Eq{"b.id": id})
	if lock {
		sel = sel.Suffix("FOR UPDATE")
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, err
	}
	bid, err := scanBid(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketplace.ErrBidNotFound
		}
		return nil, fmt.Errorf("fetch bid: %w", err)
	}
	return bid, nil
}

func (s *Store) ListBids(ctx context.Context, f marketplace.BidFilter) ([]*marketplace.Bid, error) {
	sel := s.sb.Select(bidColumns...).From("bids b").OrderBy("b.created_at DESC", "b.id")
	if f.JobID != "" {
		sel = sel.Where(squirrel.Eq{"b.job_id": f.JobID})
	}
	if f.WorkerID != "" {
		sel = sel.Where(squirrel.Eq{"b.worker_id": f.WorkerID})
	}
	if f.ClientID != "" {
		sel = sel.Join("jobs j ON j.id = b.job_id").Where(squirrel.Eq{"j.client_id": f.ClientID})
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	bids := make([]*marketplace.Bid, 0)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func (s *Store) DecideBid(ctx context.Context, bidID string, fn func(*marketplace.Bid, *marketplace.Job) error) (*marketplace.Bid, *marketplace.Job, error) {
	// The job id is needed before anything can be locked. Lock the job
	// first, then the bid, matching the order every other writer uses.
	peek, err := s.GetBid(ctx, bidID)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("transaction start failed: %w", err)
	}
	defer tx.Rollback(ctx)

	job, err := s.loadJob(ctx, tx, peek.JobID, true)
	if err != nil {
		return nil, nil, err
	}
	bid, err := s.loadBid(ctx, tx, bidID, true)
	if err != nil {
		return nil, nil, err
	}

	if err := fn(bid, job); err != nil {
		return nil, nil, err
	}

	query, args, err := s.sb.Update("bids").
		Set("status", bid.Status).
		Set("updated_at", bid.UpdatedAt).
		Where(squirrel.Eq{"id": bid.ID}).
		ToSql()
	if err != nil {
		return nil, nil, err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return nil, nil, fmt.Errorf("update bid: %w", err)
	}
	if err := s.saveJob(ctx, tx, job); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit failed: %w", err)
	}
	return bid, job, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, role, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, marketplace.ErrUserNotFound
		}
		return user.User{}, fmt.Errorf("fetch user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]user.User, error) {
	out := make(map[string]user.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := s.sb.Select("id", "name", "email", "role", "created_at").
		From("users").Where(squirrel.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

func (s *Store) PutUser(ctx context.Context, u user.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	query, args, err := s.sb.Insert("users").
		Columns("id", "name", "email", "role", "created_at").
		Values(u.ID, u.Name, u.Email, u.Role, u.CreatedAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, role = EXCLUDED.role").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
