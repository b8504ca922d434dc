package translation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateJob inserts a new pending job and fills its row id and timestamps.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = JobPending
	}

	res, err := s.execWithRetry(ctx, `
		INSERT INTO translation_jobs (
			job_id, user_id, session_id, content_hash, page_url,
			source_lang, target_lang, model, temperature, max_tokens,
			original_text, status, cache_hit, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.JobID,
		nullableString(job.UserID),
		nullableString(job.SessionID),
		job.ContentHash,
		nullableString(job.PageURL),
		job.SourceLang,
		job.TargetLang,
		job.Model,
		job.Temperature,
		job.MaxTokens,
		job.OriginalText,
		string(job.Status),
		boolToInt(job.CacheHit),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("job insert id: %w", err)
	}
	job.ID = id
	return nil
}

// JobByID fetches a job by its external identifier.
func (s *Store) JobByID(ctx context.Context, jobID string) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM translation_jobs WHERE job_id = ?", jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	return job, nil
}

// JobByRowID fetches a job by its internal row id.
func (s *Store) JobByRowID(ctx context.Context, id int64) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM translation_jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %d: %w", id, err)
	}
	return job, nil
}

// MarkProcessing transitions a pending job to processing and records the
// chunk count. The conditional update makes dispatch race-safe: a second
// caller sees ErrConflict instead of double-processing the job.
func (s *Store) MarkProcessing(ctx context.Context, id int64, chunksTotal int) error {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_jobs
		SET status = ?, chunks_total = ?, started_at = ?, updated_at = ?,
			version = version + 1
		WHERE id = ? AND status = ?`,
		string(JobProcessing), chunksTotal, now, now, id, string(JobPending))
	if err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark job processing rows: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// MarkChunkPhase transitions a processing job into chunk_processing once
// per-chunk dispatch begins.
func (s *Store) MarkChunkPhase(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_jobs
		SET status = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND status = ?`,
		string(JobChunkProcessing), now, id, string(JobProcessing))
	if err != nil {
		return fmt.Errorf("mark chunk phase: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark chunk phase rows: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// RecordChunkOutcome folds one finished chunk into the job counters and
// recomputes progress in the same statement, so the completed+failed <=
// total invariant holds after every transition.
func (s *Store) RecordChunkOutcome(ctx context.Context, id int64, success bool, inputTokens, outputTokens int64, costUSD float64) (*Job, error) {
	ctx = ensureContext(ctx)
	completedDelta := 0
	failedDelta := 0
	if success {
		completedDelta = 1
	} else {
		failedDelta = 1
	}
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_jobs
		SET chunks_completed = chunks_completed + ?,
			chunks_failed = chunks_failed + ?,
			input_tokens = input_tokens + ?,
			output_tokens = output_tokens + ?,
			estimated_cost_usd = estimated_cost_usd + ?,
			progress_percent = CASE
				WHEN chunks_total > 0 THEN min(100, ((chunks_completed + chunks_failed + 1) * 100) / chunks_total)
				ELSE 100
			END,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		completedDelta, failedDelta, inputTokens, outputTokens, costUSD,
		now, id, string(JobProcessing), string(JobChunkProcessing))
	if err != nil {
		return nil, fmt.Errorf("record chunk outcome: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("record chunk outcome rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrConflict
	}
	return s.JobByRowID(ctx, id)
}

// AbsorbChunkRetry moves one chunk from the failed column to the completed
// column after a scheduled retry succeeded, accumulating the retry's usage.
// Unlike RecordChunkOutcome it also applies to already-failed jobs, since
// retries run after finalization.
func (s *Store) AbsorbChunkRetry(ctx context.Context, id int64, inputTokens, outputTokens int64, costUSD float64) (*Job, error) {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_jobs
		SET chunks_completed = chunks_completed + 1,
			chunks_failed = chunks_failed - 1,
			input_tokens = input_tokens + ?,
			output_tokens = output_tokens + ?,
			estimated_cost_usd = estimated_cost_usd + ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND chunks_failed > 0`,
		inputTokens, outputTokens, costUSD, now, id)
	if err != nil {
		return nil, fmt.Errorf("absorb chunk retry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("absorb chunk retry rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrConflict
	}
	return s.JobByRowID(ctx, id)
}

// FinalizeJob writes the terminal outcome of a job. The version check
// rejects finalization when a concurrent writer advanced the job since the
// caller last observed it.
func (s *Store) FinalizeJob(ctx context.Context, job *Job, expectedVersion int64) error {
	ctx = ensureContext(ctx)
	if !job.Status.IsTerminal() {
		return fmt.Errorf("finalize job: status %q is not terminal", job.Status)
	}
	now := time.Now().UTC()
	progress := job.ProgressPercent
	if job.Status == JobCompleted {
		progress = 100
	}
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_jobs
		SET status = ?, translated_text = ?, error_message = ?,
			progress_percent = ?, processing_time_ms = ?,
			completed_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(job.Status),
		nullableString(job.TranslatedText),
		nullableString(job.ErrorMessage),
		progress,
		job.ProcessingTimeMS,
		formatTime(now),
		formatTime(now),
		job.ID,
		expectedVersion)
	if err != nil {
		return fmt.Errorf("finalize job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize job rows: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// CancelJob transitions a non-terminal job to cancelled. Terminal jobs
// return ErrConflict; unknown ids return ErrNotFound.
func (s *Store) CancelJob(ctx context.Context, jobID string) (*Job, error) {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_jobs
		SET status = ?, completed_at = ?, updated_at = ?, version = version + 1
		WHERE job_id = ? AND status IN (?, ?, ?)`,
		string(JobCancelled), now, now, jobID,
		string(JobPending), string(JobProcessing), string(JobChunkProcessing))
	if err != nil {
		return nil, fmt.Errorf("cancel job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("cancel job rows: %w", err)
	}
	if affected == 0 {
		if _, err := s.JobByID(ctx, jobID); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}
	return s.JobByID(ctx, jobID)
}

// SetFeedback stores a -1/+1 rating with an optional comment on a job.
func (s *Store) SetFeedback(ctx context.Context, jobID string, rating int, comment string) error {
	ctx = ensureContext(ctx)
	if rating != -1 && rating != 1 {
		return &ValidationError{Field: "rating", Reason: "must be -1 or 1"}
	}
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_jobs
		SET rating = ?, rating_comment = ?, updated_at = ?
		WHERE job_id = ?`,
		rating, nullableString(comment), now, jobID)
	if err != nil {
		return fmt.Errorf("set feedback: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set feedback rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// History returns a page of a user's jobs, newest first, along with the
// total count for pagination.
func (s *Store) History(ctx context.Context, userID string, limit, offset int) ([]*Job, int, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM translation_jobs WHERE user_id = ?", userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+jobColumns+` FROM translation_jobs
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan history row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate history: %w", err)
	}
	return jobs, total, nil
}

// JobsByStatus returns jobs currently in any of the given statuses.
func (s *Store) JobsByStatus(ctx context.Context, statuses ...JobStatus) ([]*Job, error) {
	ctx = ensureContext(ctx)
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, string(status))
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM translation_jobs WHERE status IN ("+makePlaceholders(len(statuses))+") ORDER BY id",
		args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs by status: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}
