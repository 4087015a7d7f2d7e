// Package postgres persists terminal job records beyond their store
// retention window.
package postgres

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	db "github.com/dafproject/daf/config/storage/postgresql"
	"github.com/dafproject/daf/internal/core/domain"
	"github.com/dafproject/daf/internal/core/port"
)

type jobArchive struct {
	db  *db.DB
	log *zap.Logger
}

// NewJobArchive creates the archive repository over the shared pool.
func NewJobArchive(db *db.DB, log *zap.Logger) port.JobArchive {
	return &jobArchive{
		db:  db,
		log: log,
	}
}

// ArchiveJob upserts the job's final state. The retention sweep may
// retry after a partial failure, so the insert is idempotent on job id.
func (r *jobArchive) ArchiveJob(ctx context.Context, job *domain.Job) error {
	query, args, err := r.db.QueryBuilder.Insert("archived_jobs").
		Columns("id", "module_name", "config", "status", "progress_percent",
			"total_tasks", "completed_tasks", "failed_tasks",
			"created_at", "started_at", "completed_at", "cancelled_at", "error").
		Values(job.ID, job.ModuleName, job.Config, string(job.Status), job.ProgressPercent,
			job.TotalTasks, job.CompletedTasks, job.FailedTasks,
			job.CreatedAt, job.StartedAt, job.CompletedAt, job.CancelledAt, job.Error).
		Suffix("ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, " +
			"progress_percent = EXCLUDED.progress_percent, " +
			"completed_tasks = EXCLUDED.completed_tasks, " +
			"failed_tasks = EXCLUDED.failed_tasks, " +
			"completed_at = EXCLUDED.completed_at, " +
			"cancelled_at = EXCLUDED.cancelled_at, " +
			"error = EXCLUDED.error").
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		r.log.Error("failed to archive job", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	return nil
}

// GetArchivedJob reads one archived record back. The status endpoint
// falls through to it after the live record is swept.
func (r *jobArchive) GetArchivedJob(ctx context.Context, id string) (*domain.Job, error) {
	query, args, err := r.db.QueryBuilder.Select(
		"id", "module_name", "config", "status", "progress_percent",
		"total_tasks", "completed_tasks", "failed_tasks",
		"created_at", "started_at", "completed_at", "cancelled_at", "error").
		From("archived_jobs").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var job domain.Job
	var status string
	row := r.db.QueryRow(ctx, query, args...)
	if err := row.Scan(&job.ID, &job.ModuleName, &job.Config, &status, &job.ProgressPercent,
		&job.TotalTasks, &job.CompletedTasks, &job.FailedTasks,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &job.CancelledAt, &job.Error); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, port.ErrNotFound
		}
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}
