package translation

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, job_id, user_id, session_id, content_hash, page_url, source_lang, target_lang, model, temperature, max_tokens, original_text, translated_text, status, chunks_total, chunks_completed, chunks_failed, progress_percent, retry_count, error_message, input_tokens, output_tokens, estimated_cost_usd, processing_time_ms, cache_hit, rating, rating_comment, version, created_at, updated_at, started_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id             int64
		jobID          string
		userID         sql.NullString
		sessionID      sql.NullString
		contentHash    string
		pageURL        sql.NullString
		sourceLang     string
		targetLang     string
		model          string
		temperature    float64
		maxTokens      int
		originalText   string
		translatedText sql.NullString
		statusStr      string
		chunksTotal    int
		chunksDone     int
		chunksFailed   int
		progress       int
		retryCount     int
		errorMessage   sql.NullString
		inputTokens    int64
		outputTokens   int64
		costUSD        float64
		processingMS   int64
		cacheHit       sql.NullInt64
		rating         int
		ratingComment  sql.NullString
		version        int64
		createdRaw     string
		updatedRaw     string
		startedRaw     sql.NullString
		completedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&jobID,
		&userID,
		&sessionID,
		&contentHash,
		&pageURL,
		&sourceLang,
		&targetLang,
		&model,
		&temperature,
		&maxTokens,
		&originalText,
		&translatedText,
		&statusStr,
		&chunksTotal,
		&chunksDone,
		&chunksFailed,
		&progress,
		&retryCount,
		&errorMessage,
		&inputTokens,
		&outputTokens,
		&costUSD,
		&processingMS,
		&cacheHit,
		&rating,
		&ratingComment,
		&version,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		JobID:            jobID,
		UserID:           userID.String,
		SessionID:        sessionID.String,
		ContentHash:      contentHash,
		PageURL:          pageURL.String,
		SourceLang:       sourceLang,
		TargetLang:       targetLang,
		Model:            model,
		Temperature:      temperature,
		MaxTokens:        maxTokens,
		OriginalText:     originalText,
		TranslatedText:   translatedText.String,
		Status:           JobStatus(statusStr),
		ChunksTotal:      chunksTotal,
		ChunksCompleted:  chunksDone,
		ChunksFailed:     chunksFailed,
		ProgressPercent:  progress,
		RetryCount:       retryCount,
		ErrorMessage:     errorMessage.String,
		InputTokens:      inputTokens,
		OutputTokens:     outputTokens,
		EstimatedCostUSD: costUSD,
		ProcessingTimeMS: processingMS,
		Rating:           rating,
		RatingComment:    ratingComment.String,
		Version:          version,
	}
	if cacheHit.Valid {
		job.CacheHit = cacheHit.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

const chunkColumns = "id, job_id, chunk_index, original_text, translated_text, status, is_code_block, code_language, start_offset, end_offset, retry_count, error_message, input_tokens, output_tokens, processing_time_ms, created_at, updated_at"

func scanChunk(scanner interface{ Scan(dest ...any) error }) (*Chunk, error) {
	var (
		id             int64
		jobID          int64
		chunkIndex     int
		originalText   string
		translatedText sql.NullString
		statusStr      string
		isCodeBlock    sql.NullInt64
		codeLanguage   sql.NullString
		startOffset    int
		endOffset      int
		retryCount     int
		errorMessage   sql.NullString
		inputTokens    int64
		outputTokens   int64
		processingMS   int64
		createdRaw     string
		updatedRaw     string
	)

	if err := scanner.Scan(
		&id,
		&jobID,
		&chunkIndex,
		&originalText,
		&translatedText,
		&statusStr,
		&isCodeBlock,
		&codeLanguage,
		&startOffset,
		&endOffset,
		&retryCount,
		&errorMessage,
		&inputTokens,
		&outputTokens,
		&processingMS,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	chunk := &Chunk{
		ID:               id,
		JobID:            jobID,
		ChunkIndex:       chunkIndex,
		OriginalText:     originalText,
		TranslatedText:   translatedText.String,
		Status:           ChunkStatus(statusStr),
		CodeLanguage:     codeLanguage.String,
		StartOffset:      startOffset,
		EndOffset:        endOffset,
		RetryCount:       retryCount,
		ErrorMessage:     errorMessage.String,
		InputTokens:      inputTokens,
		OutputTokens:     outputTokens,
		ProcessingTimeMS: processingMS,
	}
	if isCodeBlock.Valid {
		chunk.IsCodeBlock = isCodeBlock.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		chunk.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		chunk.UpdatedAt = updated
	}
	return chunk, nil
}

const errorColumns = "id, job_id, chunk_id, error_type, error_message, severity, retriable, retry_attempt, max_retries, next_retry_at, resolved_at, created_at"

func scanErrorEntry(scanner interface{ Scan(dest ...any) error }) (*ErrorEntry, error) {
	var (
		id           int64
		jobID        int64
		chunkID      sql.NullInt64
		errorType    string
		errorMessage string
		severity     string
		retriable    sql.NullInt64
		retryAttempt int
		maxRetries   int
		nextRetryRaw sql.NullString
		resolvedRaw  sql.NullString
		createdRaw   string
	)

	if err := scanner.Scan(
		&id,
		&jobID,
		&chunkID,
		&errorType,
		&errorMessage,
		&severity,
		&retriable,
		&retryAttempt,
		&maxRetries,
		&nextRetryRaw,
		&resolvedRaw,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	entry := &ErrorEntry{
		ID:           id,
		JobID:        jobID,
		ChunkID:      chunkID.Int64,
		ErrorType:    errorType,
		ErrorMessage: errorMessage,
		Severity:     Severity(severity),
		RetryAttempt: retryAttempt,
		MaxRetries:   maxRetries,
	}
	if retriable.Valid {
		entry.Retriable = retriable.Int64 != 0
	}
	if nextRetryRaw.Valid {
		if next, err := parseTimeString(nextRetryRaw.String); err == nil {
			entry.NextRetryAt = &next
		}
	}
	if resolvedRaw.Valid {
		if resolved, err := parseTimeString(resolvedRaw.String); err == nil {
			entry.ResolvedAt = &resolved
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
