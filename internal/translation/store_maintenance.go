package translation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TimeoutStaleJobs marks active jobs whose processing started before the
// cutoff as timed out. Returns the number of jobs affected.
func (s *Store) TimeoutStaleJobs(ctx context.Context, startedBefore time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_jobs
		SET status = ?, error_message = ?, completed_at = ?, updated_at = ?,
			version = version + 1
		WHERE status IN (?, ?)
		  AND started_at IS NOT NULL
		  AND started_at <= ?`,
		string(JobTimeout), "job timed out", now, now,
		string(JobProcessing), string(JobChunkProcessing),
		formatTime(startedBefore))
	if err != nil {
		return 0, fmt.Errorf("timeout stale jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("timeout stale jobs rows: %w", err)
	}
	return affected, nil
}

// ReclaimStaleChunks moves processing chunks that have not been touched
// since the cutoff back to retry, so a restarted daemon can pick them up.
func (s *Store) ReclaimStaleChunks(ctx context.Context, updatedBefore time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_chunks
		SET status = ?, updated_at = ?
		WHERE status = ? AND updated_at <= ?`,
		string(ChunkRetry), now, string(ChunkProcessing), formatTime(updatedBefore))
	if err != nil {
		return 0, fmt.Errorf("reclaim stale chunks: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reclaim stale chunks rows: %w", err)
	}
	return affected, nil
}

// DeleteCompletedBefore removes completed jobs older than the cutoff.
// Chunks, errors, and metrics follow via cascading deletes.
func (s *Store) DeleteCompletedBefore(ctx context.Context, completedBefore time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx, `
		DELETE FROM translation_jobs
		WHERE status = ? AND completed_at IS NOT NULL AND completed_at <= ?`,
		string(JobCompleted), formatTime(completedBefore))
	if err != nil {
		return 0, fmt.Errorf("delete completed jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete completed jobs rows: %w", err)
	}
	return affected, nil
}

// TouchSession upserts per-session aggregates after a finished job.
func (s *Store) TouchSession(ctx context.Context, sessionID, userID string, characters, inputTokens, outputTokens int64, costUSD float64) error {
	ctx = ensureContext(ctx)
	if sessionID == "" {
		return nil
	}
	now := formatTime(time.Now().UTC())
	_, err := s.execWithRetry(ctx, `
		INSERT INTO translation_sessions (
			session_id, user_id, jobs_total, characters_total,
			input_tokens_total, output_tokens_total, cost_total_usd,
			created_at, last_seen_at
		) VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			jobs_total = jobs_total + 1,
			characters_total = characters_total + excluded.characters_total,
			input_tokens_total = input_tokens_total + excluded.input_tokens_total,
			output_tokens_total = output_tokens_total + excluded.output_tokens_total,
			cost_total_usd = cost_total_usd + excluded.cost_total_usd,
			last_seen_at = excluded.last_seen_at`,
		sessionID, nullableString(userID), characters, inputTokens, outputTokens, costUSD, now, now)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// SessionByID fetches session aggregates.
func (s *Store) SessionByID(ctx context.Context, sessionID string) (*Session, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, user_id, jobs_total, characters_total,
			input_tokens_total, output_tokens_total, cost_total_usd,
			created_at, last_seen_at
		FROM translation_sessions WHERE session_id = ?`, sessionID)

	var (
		session    Session
		user       sql.NullString
		createdRaw string
		lastRaw    string
	)
	if err := row.Scan(
		&session.ID,
		&session.SessionID,
		&user,
		&session.JobsTotal,
		&session.CharactersTotal,
		&session.InputTokensTotal,
		&session.OutputTokensTotal,
		&session.CostTotalUSD,
		&createdRaw,
		&lastRaw,
	); err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	session.UserID = user.String
	if created, err := parseTimeString(createdRaw); err == nil {
		session.CreatedAt = created
	}
	if last, err := parseTimeString(lastRaw); err == nil {
		session.LastSeenAt = last
	}
	return &session, nil
}

// RecordMetrics appends the per-job reporting row written at finalization.
func (s *Store) RecordMetrics(ctx context.Context, job *Job) error {
	ctx = ensureContext(ctx)
	_, err := s.execWithRetry(ctx, `
		INSERT INTO translation_metrics (
			job_id, status, chunks_total, characters, input_tokens,
			output_tokens, estimated_cost_usd, processing_time_ms,
			cache_hit, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		string(job.Status),
		job.ChunksTotal,
		len(job.OriginalText),
		job.InputTokens,
		job.OutputTokens,
		job.EstimatedCostUSD,
		job.ProcessingTimeMS,
		boolToInt(job.CacheHit),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("record metrics: %w", err)
	}
	return nil
}

// Stats aggregates job counts and usage totals across the whole store.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var stats Stats
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(1) FROM translation_jobs GROUP BY status")
	if err != nil {
		return stats, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var statusStr string
		var count int
		if err := rows.Scan(&statusStr, &count); err != nil {
			return stats, fmt.Errorf("scan stats row: %w", err)
		}
		stats.Total += count
		switch JobStatus(statusStr) {
		case JobPending, JobProcessing, JobChunkProcessing:
			stats.Active += count
		case JobCompleted:
			stats.Completed += count
		case JobFailed:
			stats.Failed += count
		case JobCancelled:
			stats.Cancelled += count
		case JobTimeout:
			stats.TimedOut += count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(estimated_cost_usd), 0)
		FROM translation_jobs`,
	).Scan(&stats.InputTokens, &stats.OutputTokens, &stats.EstimatedCostUSD)
	if err != nil {
		return stats, fmt.Errorf("sum usage: %w", err)
	}
	return stats, nil
}
