package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"glossa/internal/logging"
	"glossa/internal/services/llm"
	"glossa/internal/translation"
)

const (
	retryBatchSize = 10
	retryBaseDelay = 30 * time.Second
	retryMaxDelay  = 15 * time.Minute
)

// retryBackoff returns the delay before the given attempt, doubling from
// the base and capped.
func retryBackoff(attempt int) time.Duration {
	delay := retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > retryMaxDelay/2 {
			return retryMaxDelay
		}
		delay *= 2
	}
	return delay
}

// ProcessDueRetries drains one batch of due error-log entries, re-invoking
// the gateway for each failed chunk. It returns how many chunks were
// repaired. A repaired last failure promotes the job back to completed and
// populates the cache.
func (s *Service) ProcessDueRetries(ctx context.Context) (int, error) {
	entries, err := s.store.DueRetries(ctx, s.now().UTC(), retryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("load due retries: %w", err)
	}
	repaired := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return repaired, ctx.Err()
		}
		ok, err := s.retryOne(ctx, entry)
		if err != nil {
			s.logger.Warn("chunk retry failed",
				logging.Int64("error_id", entry.ID),
				logging.Int(logging.FieldRetryCount, entry.RetryAttempt+1),
				logging.Error(err))
			continue
		}
		if ok {
			repaired++
		}
	}
	return repaired, nil
}

// retryOne re-runs the gateway call behind a single error-log entry.
// Entries whose chunk or job no longer wants a retry are resolved so the
// scheduler stops picking them up.
func (s *Service) retryOne(ctx context.Context, entry *translation.ErrorEntry) (bool, error) {
	if entry.ChunkID == 0 {
		return false, s.store.ResolveError(ctx, entry.ID)
	}
	chunk, err := s.store.ChunkByRowID(ctx, entry.ChunkID)
	if errors.Is(err, translation.ErrNotFound) {
		return false, s.store.ResolveError(ctx, entry.ID)
	}
	if err != nil {
		return false, err
	}
	if chunk.Status != translation.ChunkFailed && chunk.Status != translation.ChunkRetry {
		return false, s.store.ResolveError(ctx, entry.ID)
	}
	job, err := s.store.JobByRowID(ctx, chunk.JobID)
	if err != nil {
		return false, err
	}
	switch job.Status {
	case translation.JobCancelled, translation.JobTimeout, translation.JobCompleted:
		return false, s.store.ResolveError(ctx, entry.ID)
	}

	if chunk.Status == translation.ChunkFailed {
		if err := s.store.RequeueChunkForRetry(ctx, chunk.ID); err != nil {
			return false, fmt.Errorf("requeue chunk %d: %w", chunk.ChunkIndex, err)
		}
	}
	if err := s.store.MarkChunkProcessing(ctx, chunk.ID); err != nil {
		return false, fmt.Errorf("mark retry chunk processing: %w", err)
	}

	started := s.now()
	result, err := s.gateway.Translate(ctx, llm.Request{
		Text:        chunk.OriginalText,
		SourceLang:  job.SourceLang,
		TargetLang:  job.TargetLang,
		Model:       job.Model,
		Temperature: job.Temperature,
		MaxTokens:   job.MaxTokens,
		Context:     llm.PositionalContext(chunk.ChunkIndex, job.ChunksTotal),
	})
	elapsed := s.now().Sub(started).Milliseconds()
	if err != nil {
		if failErr := s.store.FailChunk(ctx, chunk.ID, err.Error()); failErr != nil {
			return false, fmt.Errorf("re-fail chunk %d: %w", chunk.ChunkIndex, failErr)
		}
		var next *time.Time
		if llm.IsRetriable(err) {
			at := s.now().UTC().Add(retryBackoff(entry.RetryAttempt + 2))
			next = &at
		}
		if bumpErr := s.store.BumpRetry(ctx, entry.ID, next); bumpErr != nil {
			return false, fmt.Errorf("bump retry: %w", bumpErr)
		}
		return false, err
	}

	if err := s.store.CompleteChunk(ctx, chunk.ID, result.TranslatedText, result.InputTokens, result.OutputTokens, elapsed); err != nil {
		return false, fmt.Errorf("complete retried chunk %d: %w", chunk.ChunkIndex, err)
	}
	updated, err := s.store.AbsorbChunkRetry(ctx, job.ID, result.InputTokens, result.OutputTokens, result.EstimatedCostUSD)
	if err != nil {
		return false, fmt.Errorf("absorb retry for %s: %w", job.JobID, err)
	}
	if err := s.store.ResolveError(ctx, entry.ID); err != nil {
		return false, fmt.Errorf("resolve error %d: %w", entry.ID, err)
	}
	s.logger.Info("chunk repaired by retry",
		logging.String(logging.FieldJobID, job.JobID),
		logging.Int(logging.FieldChunkIndex, chunk.ChunkIndex),
		logging.Int(logging.FieldRetryCount, entry.RetryAttempt+1))

	if updated.ChunksFailed == 0 && updated.Status == translation.JobFailed {
		if err := s.promoteRepairedJob(ctx, updated); err != nil {
			return true, err
		}
	}
	return true, nil
}

// promoteRepairedJob rebuilds the document and flips a failed job whose
// last failed chunk was repaired back to completed.
func (s *Service) promoteRepairedJob(ctx context.Context, job *translation.Job) error {
	chunks, err := s.store.ChunksForJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load chunks for %s: %w", job.JobID, err)
	}
	job.Status = translation.JobCompleted
	job.TranslatedText = reassemble(chunks)
	job.ErrorMessage = ""
	if err := s.store.FinalizeJob(ctx, job, job.Version); err != nil {
		return fmt.Errorf("promote job %s: %w", job.JobID, err)
	}
	s.storeInCache(ctx, job, s.logger)
	if _, err := s.store.ResolveJobErrors(ctx, job.ID); err != nil {
		return fmt.Errorf("resolve errors for %s: %w", job.JobID, err)
	}
	s.logger.Info("job repaired",
		logging.String(logging.FieldJobID, job.JobID),
		logging.Int("chunks_total", job.ChunksTotal))
	return nil
}
