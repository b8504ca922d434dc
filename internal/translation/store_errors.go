package translation

import (
	"context"
	"fmt"
	"time"
)

// LogError appends an entry to the error log and fills its row id.
func (s *Store) LogError(ctx context.Context, entry *ErrorEntry) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	entry.CreatedAt = now
	if entry.Severity == "" {
		entry.Severity = SeverityMedium
	}

	var chunkID any
	if entry.ChunkID > 0 {
		chunkID = entry.ChunkID
	}
	res, err := s.execWithRetry(ctx, `
		INSERT INTO translation_errors (
			job_id, chunk_id, error_type, error_message, severity,
			retriable, retry_attempt, max_retries, next_retry_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.JobID,
		chunkID,
		entry.ErrorType,
		entry.ErrorMessage,
		string(entry.Severity),
		boolToInt(entry.Retriable),
		entry.RetryAttempt,
		entry.MaxRetries,
		nullableTime(entry.NextRetryAt),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert error entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("error entry insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// DueRetries returns unresolved retriable entries whose schedule has come
// due and which have attempts remaining, oldest first.
func (s *Store) DueRetries(ctx context.Context, now time.Time, limit int) ([]*ErrorEntry, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+errorColumns+` FROM translation_errors
		WHERE retriable = 1
		  AND resolved_at IS NULL
		  AND next_retry_at IS NOT NULL
		  AND next_retry_at <= ?
		  AND retry_attempt < max_retries
		ORDER BY next_retry_at
		LIMIT ?`,
		formatTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("query due retries: %w", err)
	}
	defer rows.Close()

	var entries []*ErrorEntry
	for rows.Next() {
		entry, err := scanErrorEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate error rows: %w", err)
	}
	return entries, nil
}

// BumpRetry advances an entry's attempt counter and reschedules it.
// A nil nextRetryAt stops further scheduling.
func (s *Store) BumpRetry(ctx context.Context, id int64, nextRetryAt *time.Time) error {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_errors
		SET retry_attempt = retry_attempt + 1, next_retry_at = ?
		WHERE id = ? AND resolved_at IS NULL`,
		nullableTime(nextRetryAt), id)
	if err != nil {
		return fmt.Errorf("bump retry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump retry rows: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// ResolveError marks a single entry resolved.
func (s *Store) ResolveError(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_errors
		SET resolved_at = ?
		WHERE id = ? AND resolved_at IS NULL`,
		formatTime(now), id)
	if err != nil {
		return fmt.Errorf("resolve error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve error rows: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// ResolveJobErrors marks every unresolved entry for a job resolved, used
// when the job reaches a terminal state that makes retries pointless.
func (s *Store) ResolveJobErrors(ctx context.Context, jobID int64) (int64, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_errors
		SET resolved_at = ?
		WHERE job_id = ? AND resolved_at IS NULL`,
		formatTime(now), jobID)
	if err != nil {
		return 0, fmt.Errorf("resolve job errors: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resolve job errors rows: %w", err)
	}
	return affected, nil
}

// ErrorsForJob returns a job's error log, newest first.
func (s *Store) ErrorsForJob(ctx context.Context, jobID int64) ([]*ErrorEntry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+errorColumns+" FROM translation_errors WHERE job_id = ? ORDER BY created_at DESC, id DESC", jobID)
	if err != nil {
		return nil, fmt.Errorf("query job errors: %w", err)
	}
	defer rows.Close()

	var entries []*ErrorEntry
	for rows.Next() {
		entry, err := scanErrorEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate error rows: %w", err)
	}
	return entries, nil
}
