package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/insightlab/analytics-engine/internal/domain"
)

// CreateJob inserts a queued job row. When the job carries a dedupe key and
// another job with the same (tenant, key) already exists, the insert is a
// no-op and CreateJob reports false.
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) (bool, error) {
	query := `
		INSERT INTO jobs (
			job_id, job_type, tenant_id, payload, status,
			dedupe_key, attempt, max_attempts, enqueued_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, NOW())
		ON CONFLICT (tenant_id, dedupe_key) WHERE dedupe_key IS NOT NULL DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		job.ID, job.Type, job.TenantID, []byte(job.Payload), job.Status,
		job.DedupeKey, job.Attempt, job.MaxAttempts, job.EnqueuedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// GetJob retrieves a job by ID.
func (s *Storage) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		SELECT job_id, job_type, tenant_id, payload, status,
		       COALESCE(dedupe_key, '') AS dedupe_key,
		       attempt, max_attempts,
		       COALESCE(error_message, '') AS error_message,
		       enqueued_at, retry_at,
		       COALESCE(worker_id, '') AS worker_id
		FROM jobs
		WHERE job_id = $1
	`

	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// GetTenantJob retrieves a job scoped to its owning tenant. A job that
// exists under another tenant reads as not found.
func (s *Storage) GetTenantJob(ctx context.Context, tenantID, jobID string) (*domain.Job, error) {
	query := `
		SELECT job_id, job_type, tenant_id, payload, status,
		       COALESCE(dedupe_key, '') AS dedupe_key,
		       attempt, max_attempts,
		       COALESCE(error_message, '') AS error_message,
		       enqueued_at, retry_at,
		       COALESCE(worker_id, '') AS worker_id
		FROM jobs
		WHERE job_id = $1 AND tenant_id = $2
	`

	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, jobID, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// ClaimJob leases a queued job for a consumer (QUEUED -> RUNNING) and
// increments its attempt counter. Optimistic: a job already claimed, done,
// or cancelled fails the claim.
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    worker_id = $2,
		    attempt = attempt + 1,
		    started_at = NOW(),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
		RETURNING job_id, job_type, tenant_id, payload,
		          COALESCE(dedupe_key, '') AS dedupe_key,
		          attempt, max_attempts, enqueued_at, retry_at
	`

	var job domain.Job
	err := s.db.QueryRowxContext(ctx, query, domain.JobStatusRunning, workerID, jobID, domain.JobStatusQueued).
		StructScan(&job)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim job - already claimed or not queued",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	job.Status = domain.JobStatusRunning
	job.WorkerID = workerID
	return &job, nil
}

// MarkJobSucceeded finishes a job (RUNNING -> SUCCEEDED).
func (s *Storage) MarkJobSucceeded(ctx context.Context, jobID string) error {
	return s.setTerminalStatus(ctx, jobID, domain.JobStatusSucceeded, "")
}

// MarkJobFailed records a failed attempt with retry budget remaining.
func (s *Storage) MarkJobFailed(ctx context.Context, jobID, errMsg string) error {
	return s.setTerminalStatus(ctx, jobID, domain.JobStatusFailed, errMsg)
}

// MarkJobDead dead-letters a job. Dead jobs are inspectable via the API but
// never auto-retried.
func (s *Storage) MarkJobDead(ctx context.Context, jobID, errMsg string) error {
	return s.setTerminalStatus(ctx, jobID, domain.JobStatusDead, errMsg)
}

func (s *Storage) setTerminalStatus(ctx context.Context, jobID, status, errMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    error_message = NULLIF($2, ''),
		    completed_at = CASE WHEN $1 IN ($3, $4) THEN NOW() ELSE completed_at END,
		    updated_at = NOW()
		WHERE job_id = $5
	`

	_, err := s.db.ExecContext(ctx, query, status, errMsg,
		domain.JobStatusSucceeded, domain.JobStatusDead, jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", status),
	)
	return nil
}

// UpdateJobHeartbeat refreshes a running job's lease.
func (s *Storage) UpdateJobHeartbeat(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $1 AND status = $2
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		s.logger.Warn("Job heartbeat update - no rows affected (job may not be running)",
			slog.String("job_id", jobID),
		)
	}
	return nil
}

// ScheduleRetry returns a failed job to the queue with a redelivery time.
func (s *Storage) ScheduleRetry(ctx context.Context, jobID string, retryAt time.Time) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    retry_at = $2,
		    worker_id = NULL,
		    updated_at = NOW()
		WHERE job_id = $3 AND status = $4
	`

	_, err := s.db.ExecContext(ctx, query, domain.JobStatusQueued, retryAt, jobID, domain.JobStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	return nil
}

// DueJobs claims queued jobs ready for (re)publication: scheduled retries
// whose delay elapsed, plus jobs that never reached the broker (no retry_at,
// older than staleAfter). Claimed rows get their retry_at cleared so the
// next sweep doesn't publish them twice.
func (s *Storage) DueJobs(ctx context.Context, staleAfter time.Duration, limit int) ([]string, error) {
	query := `
		UPDATE jobs
		SET retry_at = NULL,
		    updated_at = NOW()
		WHERE job_id IN (
			SELECT job_id FROM jobs
			WHERE status = $1
			  AND (retry_at <= NOW()
			       OR (retry_at IS NULL AND updated_at < NOW() - make_interval(secs => $2)))
			ORDER BY enqueued_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING job_id
	`

	var jobIDs []string
	if err := s.db.SelectContext(ctx, &jobIDs, query, domain.JobStatusQueued, staleAfter.Seconds(), limit); err != nil {
		return nil, fmt.Errorf("failed to claim due jobs: %w", err)
	}
	return jobIDs, nil
}

// RequeueStale rescues jobs orphaned by crashed consumers: running jobs
// whose heartbeat lease expired, and failed jobs with retry budget left that
// never got a retry scheduled. Jobs with budget remaining go back to QUEUED
// for redelivery; a lease lost on the final attempt dead-letters instead,
// since that attempt already counted against the budget.
func (s *Storage) RequeueStale(ctx context.Context, staleAfter time.Duration) (int64, error) {
	deadQuery := `
		UPDATE jobs
		SET status = $1,
		    worker_id = NULL,
		    error_message = 'worker lost with no attempts remaining',
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE status = $2
		  AND attempt >= max_attempts
		  AND last_heartbeat_at < NOW() - make_interval(secs => $3)
	`

	deadResult, err := s.db.ExecContext(ctx, deadQuery,
		domain.JobStatusDead, domain.JobStatusRunning, staleAfter.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to dead-letter stale jobs: %w", err)
	}
	if deadRows, err := deadResult.RowsAffected(); err == nil && deadRows > 0 {
		s.logger.Warn("Dead-lettered stale jobs with exhausted attempts", slog.Int64("count", deadRows))
	}

	query := `
		UPDATE jobs
		SET status = $1,
		    worker_id = NULL,
		    retry_at = NOW(),
		    updated_at = NOW()
		WHERE (status = $2 AND attempt < max_attempts AND last_heartbeat_at < NOW() - make_interval(secs => $4))
		   OR (status = $3 AND attempt < max_attempts AND updated_at < NOW() - make_interval(secs => $4))
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusQueued, domain.JobStatusRunning, domain.JobStatusFailed, staleAfter.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale jobs: %w", err)
	}
	return result.RowsAffected()
}

// CancelJob cancels a job that has not been dequeued yet. In-flight jobs run
// to completion; only queued jobs can be cancelled.
func (s *Storage) CancelJob(ctx context.Context, tenantID, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    updated_at = NOW()
		WHERE job_id = $2 AND tenant_id = $3 AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStatusCancelled, jobID, tenantID, domain.JobStatusQueued)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrJobAlreadyClaimed
	}
	return nil
}

// QueueDepth reports pending and dead-letter counts for the health surface.
func (s *Storage) QueueDepth(ctx context.Context) (pending int, dead int, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status IN ($1, $2)) AS pending,
			COUNT(*) FILTER (WHERE status = $3) AS dead
		FROM jobs
	`

	row := s.db.QueryRowContext(ctx, query,
		domain.JobStatusQueued, domain.JobStatusRunning, domain.JobStatusDead)
	if err := row.Scan(&pending, &dead); err != nil {
		return 0, 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return pending, dead, nil
}

// ListDeadLetters returns dead-lettered jobs for operator inspection,
// optionally filtered by tenant.
func (s *Storage) ListDeadLetters(ctx context.Context, tenantID string, limit int) ([]domain.Job, error) {
	query := `
		SELECT job_id, job_type, tenant_id, payload, status,
		       COALESCE(dedupe_key, '') AS dedupe_key,
		       attempt, max_attempts,
		       COALESCE(error_message, '') AS error_message,
		       enqueued_at, retry_at,
		       COALESCE(worker_id, '') AS worker_id
		FROM jobs
		WHERE status = $1
		  AND ($2 = '' OR tenant_id = $2)
		ORDER BY enqueued_at DESC
		LIMIT $3
	`

	var dead []domain.Job
	if err := s.db.SelectContext(ctx, &dead, query, domain.JobStatusDead, tenantID, limit); err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return dead, nil
}
