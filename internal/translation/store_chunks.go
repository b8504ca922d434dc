package translation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertChunks writes the full chunk set for a job in a single transaction
// and fills each chunk's row id. Indexes must already form a contiguous
// 0..N-1 range; the UNIQUE(job_id, chunk_index) constraint rejects
// duplicates.
func (s *Store) InsertChunks(ctx context.Context, jobID int64, chunks []*Chunk) error {
	ctx = ensureContext(ctx)
	if len(chunks) == 0 {
		return nil
	}
	now := time.Now().UTC()
	nowStr := formatTime(now)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin chunk tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO translation_chunks (
				job_id, chunk_index, original_text, status,
				is_code_block, code_language, start_offset, end_offset,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare chunk insert: %w", err)
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			chunk.JobID = jobID
			if chunk.Status == "" {
				chunk.Status = ChunkPending
			}
			chunk.CreatedAt = now
			chunk.UpdatedAt = now
			res, err := stmt.ExecContext(ctx,
				jobID,
				chunk.ChunkIndex,
				chunk.OriginalText,
				string(chunk.Status),
				boolToInt(chunk.IsCodeBlock),
				nullableString(chunk.CodeLanguage),
				chunk.StartOffset,
				chunk.EndOffset,
				nowStr,
				nowStr,
			)
			if err != nil {
				return fmt.Errorf("insert chunk %d: %w", chunk.ChunkIndex, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("chunk insert id: %w", err)
			}
			chunk.ID = id
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit chunks: %w", err)
		}
		return nil
	})
}

// ChunksForJob returns a job's chunks in index order.
func (s *Store) ChunksForJob(ctx context.Context, jobID int64) ([]*Chunk, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM translation_chunks WHERE job_id = ? ORDER BY chunk_index", jobID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

// ChunkByRowID fetches a single chunk.
func (s *Store) ChunkByRowID(ctx context.Context, id int64) (*Chunk, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+chunkColumns+" FROM translation_chunks WHERE id = ?", id)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load chunk %d: %w", id, err)
	}
	return chunk, nil
}

// MarkChunkProcessing transitions a pending or retry chunk to processing.
func (s *Store) MarkChunkProcessing(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_chunks
		SET status = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(ChunkProcessing), now, id, string(ChunkPending), string(ChunkRetry))
	if err != nil {
		return fmt.Errorf("mark chunk processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark chunk processing rows: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// CompleteChunk stores the translated text and usage for a chunk.
func (s *Store) CompleteChunk(ctx context.Context, id int64, translatedText string, inputTokens, outputTokens, processingMS int64) error {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_chunks
		SET status = ?, translated_text = ?, error_message = NULL,
			input_tokens = ?, output_tokens = ?, processing_time_ms = ?,
			updated_at = ?
		WHERE id = ? AND status = ?`,
		string(ChunkCompleted), translatedText,
		inputTokens, outputTokens, processingMS,
		now, id, string(ChunkProcessing))
	if err != nil {
		return fmt.Errorf("complete chunk: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete chunk rows: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// FailChunk records a chunk failure message.
func (s *Store) FailChunk(ctx context.Context, id int64, message string) error {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_chunks
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(ChunkFailed), message, now, id, string(ChunkProcessing))
	if err != nil {
		return fmt.Errorf("fail chunk: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fail chunk rows: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// SkipChunk marks a code-block chunk as skipped, carrying its original
// text through untranslated.
func (s *Store) SkipChunk(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_chunks
		SET status = ?, translated_text = original_text, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(ChunkSkipped), now, id, string(ChunkPending))
	if err != nil {
		return fmt.Errorf("skip chunk: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("skip chunk rows: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// RequeueChunkForRetry moves a failed chunk back into the retry state and
// increments its retry counter.
func (s *Store) RequeueChunkForRetry(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx, `
		UPDATE translation_chunks
		SET status = ?, retry_count = retry_count + 1, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(ChunkRetry), now, id, string(ChunkFailed))
	if err != nil {
		return fmt.Errorf("requeue chunk: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("requeue chunk rows: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}
