// Package translator coordinates the translation pipeline: cache lookup,
// job creation, document splitting, sequential chunk translation with
// partial-failure tolerance, reassembly, finalization, and cache
// population. It also hosts the retry scheduler and the periodic
// maintenance sweeps.
package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"glossa/internal/cachestore"
	"glossa/internal/config"
	"glossa/internal/logging"
	"glossa/internal/services/llm"
	"glossa/internal/splitter"
	"glossa/internal/textutil"
	"glossa/internal/translation"
)

// failedChunkMarker replaces the text of a chunk that exhausted its
// translation attempts, so the reassembled document shows where content is
// missing instead of silently dropping it.
const failedChunkMarker = "[translation failed]"

// Gateway translates a single chunk of text. Implemented by llm.Client.
type Gateway interface {
	Translate(ctx context.Context, req llm.Request) (llm.Result, error)
}

// Request carries one translation call from the API boundary.
type Request struct {
	Text       string
	SourceLang string
	TargetLang string
	PageURL    string
	UserID     string
	SessionID  string

	Model       string
	Temperature float64
	MaxTokens   int

	// Chunking overrides. Zero values fall back to the configured
	// defaults; PreserveCodeBlocks nil means "use the config".
	ChunkSize          int
	MaxChunks          int
	PreserveCodeBlocks *bool
}

// Response is the outcome of a translation call, cached or freshly run.
type Response struct {
	JobID            string
	Status           translation.JobStatus
	TranslatedText   string
	Cached           bool
	Progress         int
	ChunksTotal      int
	ChunksCompleted  int
	ChunksFailed     int
	Chunks           []*translation.Chunk
	InputTokens      int64
	OutputTokens     int64
	EstimatedCostUSD float64
	ProcessingTimeMS int64
	ErrorMessage     string
}

// Service owns the end-to-end translation flow. Jobs are processed
// sequentially per request; the store's conditional updates keep a
// duplicate dispatch from corrupting counters.
type Service struct {
	cfg     *config.Config
	store   *translation.Store
	cache   *cachestore.Cache
	gateway Gateway
	logger  *slog.Logger
	now     func() time.Time
}

// New wires a translation service from its collaborators.
func New(cfg *config.Config, store *translation.Store, cache *cachestore.Cache, gateway Gateway, logger *slog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		store:   store,
		cache:   cache,
		gateway: gateway,
		logger:  logging.NewComponentLogger(logger, "translator"),
		now:     time.Now,
	}
}

// Translate runs the full pipeline for one request and blocks until the
// job reaches a terminal state.
func (s *Service) Translate(ctx context.Context, req Request) (*Response, error) {
	return s.run(ctx, req, nil)
}

// Cancel marks a job cancelled. The processing loop observes the new
// status before dispatching the next chunk; already-completed chunks stay
// persisted.
func (s *Service) Cancel(ctx context.Context, jobID string) (*translation.Job, error) {
	job, err := s.store.CancelJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("job cancelled", logging.String(logging.FieldJobID, jobID))
	return job, nil
}

// run executes the pipeline, reporting progress through emit when the
// caller streams. A nil emit is a no-op.
func (s *Service) run(ctx context.Context, req Request, emit func(Event) error) (*Response, error) {
	if emit == nil {
		emit = func(Event) error { return nil }
	}
	s.applyDefaults(&req)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	contentHash := textutil.ContentHash(req.Text)
	if entry, err := s.cache.Lookup(ctx, contentHash, req.SourceLang, req.TargetLang, req.PageURL); err == nil {
		s.logger.Info("cache hit",
			logging.String(logging.FieldContentHash, contentHash),
			logging.String(logging.FieldSourceLang, req.SourceLang),
			logging.String(logging.FieldTargetLang, req.TargetLang),
			logging.Int64("hit_count", entry.HitCount))
		resp := &Response{
			Status:         translation.JobCompleted,
			TranslatedText: entry.TranslatedText,
			Cached:         true,
			Progress:       100,
		}
		if err := emit(doneEvent("", resp)); err != nil {
			return nil, fmt.Errorf("stream: %w", err)
		}
		return resp, nil
	} else if !errors.Is(err, cachestore.ErrMiss) {
		s.logger.Warn("cache lookup failed, treating as miss", logging.Error(err))
	}

	started := s.now()
	job := &translation.Job{
		JobID:        uuid.NewString(),
		UserID:       req.UserID,
		SessionID:    req.SessionID,
		ContentHash:  contentHash,
		PageURL:      req.PageURL,
		SourceLang:   req.SourceLang,
		TargetLang:   req.TargetLang,
		Model:        req.Model,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		OriginalText: req.Text,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	logger := s.logger.With(logging.String(logging.FieldJobID, job.JobID))

	segments := splitter.Split(req.Text, req.ChunkSize, req.MaxChunks, *req.PreserveCodeBlocks)
	if len(segments) == 0 {
		return nil, &translation.ValidationError{Field: "text", Reason: "no translatable content"}
	}
	chunks := make([]*translation.Chunk, 0, len(segments))
	for i, seg := range segments {
		chunks = append(chunks, &translation.Chunk{
			ChunkIndex:   i,
			OriginalText: seg.Text,
			IsCodeBlock:  seg.IsCodeBlock,
			CodeLanguage: seg.CodeLanguage,
			StartOffset:  seg.Start,
			EndOffset:    seg.End,
		})
	}

	if err := s.store.MarkProcessing(ctx, job.ID, len(chunks)); err != nil {
		return nil, fmt.Errorf("dispatch job %s: %w", job.JobID, err)
	}
	if err := s.store.InsertChunks(ctx, job.ID, chunks); err != nil {
		return nil, fmt.Errorf("persist chunks for %s: %w", job.JobID, err)
	}
	if err := s.store.MarkChunkPhase(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("enter chunk phase for %s: %w", job.JobID, err)
	}
	logger.Info("job dispatched",
		logging.Int(logging.FieldChunkTotal, len(chunks)),
		logging.String(logging.FieldSourceLang, req.SourceLang),
		logging.String(logging.FieldTargetLang, req.TargetLang),
		logging.String(logging.FieldModel, req.Model))
	if err := emit(statusEvent(job.JobID, translation.JobChunkProcessing, len(chunks))); err != nil {
		return nil, s.abortStream(job.JobID, err)
	}

	if err := s.processChunks(ctx, job, chunks, req, logger, emit); err != nil {
		return nil, err
	}
	return s.finalize(ctx, job, chunks, req, started, logger, emit)
}

// processChunks translates each chunk strictly in index order. A failed
// chunk is recorded and processing continues; a job cancelled from outside
// stops the loop at the next chunk boundary.
func (s *Service) processChunks(ctx context.Context, job *translation.Job, chunks []*translation.Chunk, req Request, logger *slog.Logger, emit func(Event) error) error {
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			s.cancelQuietly(job.JobID)
			break
		}
		current, err := s.store.JobByRowID(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("reload job %s: %w", job.JobID, err)
		}
		if current.Status.IsTerminal() {
			logger.Info("stopping chunk loop",
				logging.String(logging.FieldStatus, string(current.Status)),
				logging.Int(logging.FieldChunkIndex, i))
			break
		}

		if chunk.IsCodeBlock && *req.PreserveCodeBlocks {
			if err := s.store.SkipChunk(ctx, chunk.ID); err != nil {
				return fmt.Errorf("skip chunk %d: %w", i, err)
			}
			chunk.Status = translation.ChunkSkipped
			chunk.TranslatedText = chunk.OriginalText
			if _, err := s.recordOutcome(ctx, job, true, 0, 0, 0); err != nil {
				if errors.Is(err, translation.ErrConflict) {
					break
				}
				return err
			}
			if err := emit(chunkEvent(job.JobID, chunk, len(chunks))); err != nil {
				return s.abortStream(job.JobID, err)
			}
			continue
		}

		if err := s.store.MarkChunkProcessing(ctx, chunk.ID); err != nil {
			return fmt.Errorf("mark chunk %d processing: %w", i, err)
		}
		chunkStart := s.now()
		result, err := s.gateway.Translate(ctx, llm.Request{
			Text:        chunk.OriginalText,
			SourceLang:  req.SourceLang,
			TargetLang:  req.TargetLang,
			Model:       req.Model,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			Context:     llm.PositionalContext(i, len(chunks)),
		})
		elapsed := s.now().Sub(chunkStart).Milliseconds()

		if err != nil {
			if recordErr := s.recordChunkFailure(ctx, job, chunk, err, logger); recordErr != nil {
				if errors.Is(recordErr, translation.ErrConflict) {
					break
				}
				return recordErr
			}
		} else {
			if err := s.store.CompleteChunk(ctx, chunk.ID, result.TranslatedText, result.InputTokens, result.OutputTokens, elapsed); err != nil {
				return fmt.Errorf("complete chunk %d: %w", i, err)
			}
			chunk.Status = translation.ChunkCompleted
			chunk.TranslatedText = result.TranslatedText
			chunk.InputTokens = result.InputTokens
			chunk.OutputTokens = result.OutputTokens
			chunk.ProcessingTimeMS = elapsed
			if _, err := s.recordOutcome(ctx, job, true, result.InputTokens, result.OutputTokens, result.EstimatedCostUSD); err != nil {
				if errors.Is(err, translation.ErrConflict) {
					break
				}
				return err
			}
		}
		if err := emit(chunkEvent(job.JobID, chunk, len(chunks))); err != nil {
			return s.abortStream(job.JobID, err)
		}
	}
	return nil
}

// recordChunkFailure marks the chunk failed, appends an error log entry
// with a retry schedule when the failure looks transient, and folds the
// failure into the job counters.
func (s *Service) recordChunkFailure(ctx context.Context, job *translation.Job, chunk *translation.Chunk, cause error, logger *slog.Logger) error {
	if err := s.store.FailChunk(ctx, chunk.ID, cause.Error()); err != nil {
		return fmt.Errorf("fail chunk %d: %w", chunk.ChunkIndex, err)
	}
	chunk.Status = translation.ChunkFailed
	chunk.ErrorMessage = cause.Error()

	retriable := llm.IsRetriable(cause)
	entry := &translation.ErrorEntry{
		JobID:        job.ID,
		ChunkID:      chunk.ID,
		ErrorType:    string(errorKindFor(cause)),
		ErrorMessage: cause.Error(),
		Severity:     translation.SeverityHigh,
		Retriable:    retriable,
		MaxRetries:   s.cfg.Translation.MaxChunkRetries,
	}
	if retriable {
		next := s.now().UTC().Add(retryBackoff(1))
		entry.NextRetryAt = &next
	}
	if err := s.store.LogError(ctx, entry); err != nil {
		return fmt.Errorf("log chunk error: %w", err)
	}
	logger.Warn("chunk translation failed",
		logging.Int(logging.FieldChunkIndex, chunk.ChunkIndex),
		logging.Bool("retriable", retriable),
		logging.String(logging.FieldErrorType, entry.ErrorType),
		logging.Error(cause))

	_, err := s.recordOutcome(ctx, job, false, 0, 0, 0)
	return err
}

func (s *Service) recordOutcome(ctx context.Context, job *translation.Job, success bool, inputTokens, outputTokens int64, costUSD float64) (*translation.Job, error) {
	updated, err := s.store.RecordChunkOutcome(ctx, job.ID, success, inputTokens, outputTokens, costUSD)
	if err != nil {
		if errors.Is(err, translation.ErrConflict) {
			// The job left the active states under us, usually via a
			// cancellation or a timeout sweep.
			return nil, err
		}
		return nil, fmt.Errorf("record chunk outcome for %s: %w", job.JobID, err)
	}
	return updated, nil
}

// finalize reassembles the document, writes the terminal job state, and
// populates the cache on full success.
func (s *Service) finalize(ctx context.Context, job *translation.Job, chunks []*translation.Chunk, req Request, started time.Time, logger *slog.Logger, emit func(Event) error) (*Response, error) {
	latest, err := s.store.JobByRowID(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("reload job %s: %w", job.JobID, err)
	}

	if latest.Status.IsTerminal() {
		// Cancelled or timed out from outside while chunks ran.
		resp := s.buildResponse(latest, chunks)
		if err := emit(doneEvent(job.JobID, resp)); err != nil {
			return nil, fmt.Errorf("stream: %w", err)
		}
		return resp, nil
	}

	latest.TranslatedText = reassemble(chunks)
	latest.ProcessingTimeMS = s.now().Sub(started).Milliseconds()
	if latest.ChunksFailed > 0 {
		latest.Status = translation.JobFailed
		latest.ErrorMessage = fmt.Sprintf("%d of %d chunks failed", latest.ChunksFailed, latest.ChunksTotal)
	} else {
		latest.Status = translation.JobCompleted
		latest.ErrorMessage = ""
	}

	if err := s.store.FinalizeJob(ctx, latest, latest.Version); err != nil {
		if errors.Is(err, translation.ErrVersionConflict) {
			reloaded, loadErr := s.store.JobByRowID(ctx, job.ID)
			if loadErr != nil {
				return nil, fmt.Errorf("reload job %s: %w", job.JobID, loadErr)
			}
			resp := s.buildResponse(reloaded, chunks)
			if err := emit(doneEvent(job.JobID, resp)); err != nil {
				return nil, fmt.Errorf("stream: %w", err)
			}
			return resp, nil
		}
		return nil, fmt.Errorf("finalize job %s: %w", job.JobID, err)
	}
	finalized, err := s.store.JobByRowID(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("reload job %s: %w", job.JobID, err)
	}

	if finalized.Status == translation.JobCompleted {
		s.storeInCache(ctx, finalized, logger)
		if _, err := s.store.ResolveJobErrors(ctx, finalized.ID); err != nil {
			logger.Warn("resolve job errors", logging.Error(err))
		}
	}
	if err := s.store.TouchSession(ctx, finalized.SessionID, finalized.UserID,
		int64(len(finalized.OriginalText)), finalized.InputTokens, finalized.OutputTokens,
		finalized.EstimatedCostUSD); err != nil {
		logger.Warn("touch session", logging.Error(err))
	}
	if err := s.store.RecordMetrics(ctx, finalized); err != nil {
		logger.Warn("record metrics", logging.Error(err))
	}

	logger.Info("job finished",
		logging.String(logging.FieldStatus, string(finalized.Status)),
		logging.Int("chunks_completed", finalized.ChunksCompleted),
		logging.Int("chunks_failed", finalized.ChunksFailed),
		logging.Int64("input_tokens", finalized.InputTokens),
		logging.Int64("output_tokens", finalized.OutputTokens),
		logging.Duration(logging.FieldDuration, time.Duration(finalized.ProcessingTimeMS)*time.Millisecond))

	resp := s.buildResponse(finalized, chunks)
	if err := emit(doneEvent(job.JobID, resp)); err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	return resp, nil
}

func (s *Service) storeInCache(ctx context.Context, job *translation.Job, logger *slog.Logger) {
	entry := &cachestore.Entry{
		ContentHash:    job.ContentHash,
		PageURL:        job.PageURL,
		SourceLang:     job.SourceLang,
		TargetLang:     job.TargetLang,
		TranslatedText: job.TranslatedText,
		Model:          job.Model,
		// Unrated translations get the default tier; feedback later
		// adjusts quality without touching existing entries.
		TTLHours: s.cfg.Cache.DefaultTTLHours,
	}
	if err := s.cache.Store(ctx, entry); err != nil {
		logger.Warn("cache store failed", logging.Error(err))
	}
}

func (s *Service) buildResponse(job *translation.Job, chunks []*translation.Chunk) *Response {
	resp := &Response{
		JobID:            job.JobID,
		Status:           job.Status,
		TranslatedText:   job.TranslatedText,
		Progress:         job.ProgressPercent,
		ChunksTotal:      job.ChunksTotal,
		ChunksCompleted:  job.ChunksCompleted,
		ChunksFailed:     job.ChunksFailed,
		Chunks:           chunks,
		InputTokens:      job.InputTokens,
		OutputTokens:     job.OutputTokens,
		EstimatedCostUSD: job.EstimatedCostUSD,
		ProcessingTimeMS: job.ProcessingTimeMS,
		ErrorMessage:     job.ErrorMessage,
	}
	if resp.TranslatedText == "" && len(chunks) > 0 {
		resp.TranslatedText = reassemble(chunks)
	}
	return resp
}

// reassemble concatenates chunk translations in index order. Failed chunks
// contribute an explicit marker instead of a silent gap.
func reassemble(chunks []*translation.Chunk) string {
	var b strings.Builder
	for _, chunk := range chunks {
		switch chunk.Status {
		case translation.ChunkCompleted, translation.ChunkSkipped:
			b.WriteString(chunk.TranslatedText)
		case translation.ChunkFailed:
			b.WriteString(failedChunkMarker)
		}
	}
	return b.String()
}

func (s *Service) applyDefaults(req *Request) {
	req.Text = strings.TrimRight(req.Text, " \t\r\n")
	req.SourceLang = strings.ToLower(strings.TrimSpace(req.SourceLang))
	req.TargetLang = strings.ToLower(strings.TrimSpace(req.TargetLang))
	if req.Model == "" {
		req.Model = s.cfg.LLM.Model
	}
	if req.Temperature <= 0 {
		req.Temperature = s.cfg.LLM.Temperature
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = s.cfg.LLM.MaxTokens
	}
	if req.ChunkSize <= 0 {
		req.ChunkSize = s.cfg.Translation.ChunkSizeChars
	}
	if req.MaxChunks <= 0 {
		req.MaxChunks = s.cfg.Translation.MaxChunks
	}
	if req.PreserveCodeBlocks == nil {
		preserve := s.cfg.Translation.PreserveCodeBlocks
		req.PreserveCodeBlocks = &preserve
	}
}

// abortStream cancels the job when the event sink fails, so a disconnected
// streaming client stops burning gateway calls.
func (s *Service) abortStream(jobID string, cause error) error {
	s.cancelQuietly(jobID)
	return fmt.Errorf("stream: %w", cause)
}

func (s *Service) cancelQuietly(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.store.CancelJob(ctx, jobID); err != nil &&
		!errors.Is(err, translation.ErrConflict) && !errors.Is(err, translation.ErrNotFound) {
		s.logger.Warn("cancel job", logging.String(logging.FieldJobID, jobID), logging.Error(err))
	}
}

func errorKindFor(err error) translation.ErrorKind {
	var statusErr *llm.HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 429:
			return translation.KindRateLimit
		case statusErr.StatusCode == 408:
			return translation.KindTimeout
		default:
			return translation.KindService
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return translation.KindTimeout
	}
	return translation.KindService
}
