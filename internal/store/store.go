// Package store persists jobs and subject enrichment fields in Postgres.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dlnorman/linkhoard/internal/config"
	"github.com/dlnorman/linkhoard/internal/enrich"
)

// DB is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements enrich.Store on Postgres.
type Store struct {
	db DB
}

// New wraps an open connection pool.
func New(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a pgx pool from configuration and pings it.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

const jobColumns = "id, subject_id, kind, payload, status, result, attempts, created_at, updated_at"

// Enqueue inserts a pending job with zero attempts.
func (s *Store) Enqueue(ctx context.Context, subjectID int64, kind enrich.JobKind, payload string) (enrich.Job, error) {
	if !kind.Valid() {
		return enrich.Job{}, fmt.Errorf("unknown job kind %q", kind)
	}
	row := s.db.QueryRow(ctx,
		`INSERT INTO jobs (subject_id, kind, payload, status, attempts)
		 VALUES ($1, $2, $3, 'pending', 0)
		 RETURNING `+jobColumns,
		subjectID, string(kind), payload,
	)
	return scanJob(row)
}

// LeaseNextBatch atomically claims up to limit due jobs, oldest first.
// The single UPDATE with SKIP LOCKED is what keeps overlapping runner
// invocations from leasing the same job.
func (s *Store) LeaseNextBatch(ctx context.Context, limit, maxAttempts int) ([]enrich.Job, error) {
	rows, err := s.db.Query(ctx,
		`UPDATE jobs SET status = 'processing', updated_at = now()
		 WHERE id IN (
		     SELECT id FROM jobs
		     WHERE status = 'pending' AND attempts < $1
		     ORDER BY created_at ASC, id ASC
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns,
		maxAttempts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("lease batch: %w", err)
	}
	defer rows.Close()

	var jobs []enrich.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Resolve records one attempt's outcome. Success completes the job;
// failure returns it to pending until attempts reach maxAttempts, at which
// point it is failed terminally. Attempts only ever increase.
func (s *Store) Resolve(ctx context.Context, jobID int64, success bool, result string, maxAttempts int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE jobs SET
		     attempts = attempts + 1,
		     result = $2,
		     status = CASE
		         WHEN $3 THEN 'completed'
		         WHEN attempts + 1 >= $4 THEN 'failed'
		         ELSE 'pending'
		     END,
		     updated_at = now()
		 WHERE id = $1`,
		jobID, result, success, maxAttempts,
	)
	if err != nil {
		return fmt.Errorf("resolve job %d: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return enrich.ErrNotFound
	}
	return nil
}

// Fail marks a job failed regardless of how many attempts remain. Used for
// outcomes that are deterministic, where retrying cannot change the result.
// The attempt is still counted.
func (s *Store) Fail(ctx context.Context, jobID int64, result string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE jobs SET
		     attempts = attempts + 1,
		     result = $2,
		     status = 'failed',
		     updated_at = now()
		 WHERE id = $1`,
		jobID, result,
	)
	if err != nil {
		return fmt.Errorf("fail job %d: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return enrich.ErrNotFound
	}
	return nil
}

// StatusSummary aggregates job counts for one kind.
func (s *Store) StatusSummary(ctx context.Context, kind enrich.JobKind) (enrich.StatusSummary, error) {
	var sum enrich.StatusSummary
	err := s.db.QueryRow(ctx,
		`SELECT
		     COUNT(*),
		     COUNT(*) FILTER (WHERE status = 'pending'),
		     COUNT(*) FILTER (WHERE status = 'processing'),
		     COUNT(*) FILTER (WHERE status = 'completed'),
		     COUNT(*) FILTER (WHERE status = 'failed')
		 FROM jobs WHERE kind = $1`,
		string(kind),
	).Scan(&sum.Total, &sum.Pending, &sum.Processing, &sum.Completed, &sum.Failed)
	if err != nil {
		return enrich.StatusSummary{}, fmt.Errorf("status summary: %w", err)
	}
	return sum, nil
}

// BrokenCount counts subjects currently flagged broken.
func (s *Store) BrokenCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM subjects WHERE broken`).Scan(&n); err != nil {
		return 0, fmt.Errorf("broken count: %w", err)
	}
	return n, nil
}

// HasLiveCheck reports whether a pending or processing check_url job
// already exists for the subject. Failed jobs do not count: re-enqueueing
// after failure is the recovery path.
func (s *Store) HasLiveCheck(ctx context.Context, subjectID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
		     SELECT 1 FROM jobs
		     WHERE subject_id = $1 AND kind = 'check_url'
		       AND status IN ('pending', 'processing')
		 )`,
		subjectID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("live check probe: %w", err)
	}
	return exists, nil
}

// RecentChecks returns the latest resolved check_url jobs joined with
// their subjects.
func (s *Store) RecentChecks(ctx context.Context, limit int) ([]enrich.CheckRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT j.id, j.subject_id, s.url, s.title, j.status, j.result, j.updated_at
		 FROM jobs j
		 JOIN subjects s ON s.id = j.subject_id
		 WHERE j.kind = 'check_url' AND j.status IN ('completed', 'failed')
		 ORDER BY j.updated_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent checks: %w", err)
	}
	defer rows.Close()

	var records []enrich.CheckRecord
	for rows.Next() {
		var rec enrich.CheckRecord
		var status string
		if err := rows.Scan(&rec.JobID, &rec.SubjectID, &rec.SubjectURL, &rec.SubjectTitle, &status, &rec.Result, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan check record: %w", err)
		}
		rec.Status = enrich.JobStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (enrich.Job, error) {
	var job enrich.Job
	var kind, status string
	err := row.Scan(&job.ID, &job.SubjectID, &kind, &job.Payload, &status, &job.Result, &job.Attempts, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return enrich.Job{}, enrich.ErrNotFound
	}
	if err != nil {
		return enrich.Job{}, fmt.Errorf("scan job: %w", err)
	}
	job.Kind = enrich.JobKind(kind)
	job.Status = enrich.JobStatus(status)
	return job, nil
}
