package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
	"github.com/bejocbrian/bringYourKey/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.JobStore = (*JobRepo)(nil)

const jobColumns = `id, provider, prompt, duration, aspect_ratio, status, handle,
	result_reference, error_message, failure_kind, created_at, updated_at, completed_at`

// newestFirst orders by creation time, falling back to insertion order for ties.
const newestFirst = `ORDER BY created_at DESC, rowid DESC`

// JobRepo is the SQLite implementation of the JobStore port interface.
type JobRepo struct {
	db *DB
}

// NewJobRepo creates a new JobRepo backed by the given DB.
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

// Create inserts a new job.
func (r *JobRepo) Create(ctx context.Context, job model.GenerationJob) error {
	const query = `INSERT INTO generation_jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		job.ID, string(job.Provider), job.Prompt, job.Settings.Duration, string(job.Settings.AspectRatio),
		string(job.Status), string(job.Handle), job.ResultReference, job.ErrorMessage, string(job.FailureKind),
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt), formatNullTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

// Update overwrites the mutable fields of an existing job.
func (r *JobRepo) Update(ctx context.Context, job model.GenerationJob) error {
	const query = `
		UPDATE generation_jobs SET
			status = ?,
			handle = ?,
			result_reference = ?,
			error_message = ?,
			failure_kind = ?,
			updated_at = ?,
			completed_at = ?
		WHERE id = ?
	`

	res, err := r.db.Writer.ExecContext(ctx, query,
		string(job.Status), string(job.Handle), job.ResultReference, job.ErrorMessage, string(job.FailureKind),
		formatTime(job.UpdatedAt), formatNullTime(job.CompletedAt), job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %s: rows affected: %w", job.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", model.ErrJobNotFound, job.ID)
	}
	return nil
}

// Get returns the job with id, or (nil, nil) if it does not exist.
func (r *JobRepo) Get(ctx context.Context, id string) (*model.GenerationJob, error) {
	const query = `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = ?`

	job, err := scanJob(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// List returns every job, newest first.
func (r *JobRepo) List(ctx context.Context) ([]model.GenerationJob, error) {
	const query = `SELECT ` + jobColumns + ` FROM generation_jobs ` + newestFirst
	return r.query(ctx, "list jobs", query)
}

// ListByStatus returns jobs in any of statuses, newest first.
func (r *JobRepo) ListByStatus(ctx context.Context, statuses ...model.JobStatus) ([]model.GenerationJob, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}

	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE status IN (` + placeholders + `) ` + newestFirst
	return r.query(ctx, "list jobs by status", query, args...)
}

// ListByProvider returns jobs for provider, newest first.
func (r *JobRepo) ListByProvider(ctx context.Context, provider model.ProviderID) ([]model.GenerationJob, error) {
	const query = `SELECT ` + jobColumns + ` FROM generation_jobs WHERE provider = ? ` + newestFirst
	return r.query(ctx, "list jobs by provider", query, string(provider))
}

// Delete removes a job. Deleting a missing job is not an error.
func (r *JobRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM generation_jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

func (r *JobRepo) query(ctx context.Context, op, query string, args ...any) ([]model.GenerationJob, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var jobs []model.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}

	return jobs, nil
}

func scanJob(row rowScanner) (*model.GenerationJob, error) {
	var (
		job         model.GenerationJob
		provider    string
		aspectRatio string
		status      string
		handle      string
		failureKind string
		createdAt   string
		updatedAt   string
		completedAt sql.NullString
	)

	err := row.Scan(
		&job.ID, &provider, &job.Prompt, &job.Settings.Duration, &aspectRatio, &status, &handle,
		&job.ResultReference, &job.ErrorMessage, &failureKind, &createdAt, &updatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Provider = model.ProviderID(provider)
	job.Settings.AspectRatio = model.AspectRatio(aspectRatio)
	job.Handle = model.JobHandle(handle)
	job.FailureKind = model.FailureKind(failureKind)

	if job.Status, err = model.ParseJobStatus(status); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for job %s: %w", job.ID, err)
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at for job %s: %w", job.ID, err)
	}
	if job.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at for job %s: %w", job.ID, err)
	}

	return &job, nil
}
