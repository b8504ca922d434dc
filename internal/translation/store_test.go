package translation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"glossa/internal/testsupport"
	"glossa/internal/translation"
)

func TestCreateAndLoadJob(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "job-1", "Hello world.")
	if job.ID == 0 {
		t.Fatal("expected row id to be set")
	}

	loaded, err := store.JobByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("JobByID: %v", err)
	}
	if loaded.Status != translation.JobPending {
		t.Fatalf("expected pending status, got %s", loaded.Status)
	}
	if loaded.OriginalText != "Hello world." {
		t.Fatalf("unexpected text: %q", loaded.OriginalText)
	}
	if loaded.Version != 0 {
		t.Fatalf("expected version 0, got %d", loaded.Version)
	}

	if _, err := store.JobByID(ctx, "missing"); !errors.Is(err, translation.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkProcessingIsRaceSafe(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "job-1", "text")

	if err := store.MarkProcessing(ctx, job.ID, 3); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := store.MarkProcessing(ctx, job.ID, 3); !errors.Is(err, translation.ErrConflict) {
		t.Fatalf("second dispatch should conflict, got %v", err)
	}

	loaded, err := store.JobByRowID(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobByRowID: %v", err)
	}
	if loaded.Status != translation.JobProcessing || loaded.ChunksTotal != 3 {
		t.Fatalf("unexpected state: %+v", loaded)
	}
	if loaded.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}
	if loaded.Version != 1 {
		t.Fatalf("expected version 1, got %d", loaded.Version)
	}
}

func TestRecordChunkOutcomeMaintainsCounters(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "job-1", "text")

	if err := store.MarkProcessing(ctx, job.ID, 4); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := store.MarkChunkPhase(ctx, job.ID); err != nil {
		t.Fatalf("MarkChunkPhase: %v", err)
	}

	var latest *translation.Job
	var err error
	for i := 0; i < 3; i++ {
		latest, err = store.RecordChunkOutcome(ctx, job.ID, true, 100, 50, 0.001)
		if err != nil {
			t.Fatalf("RecordChunkOutcome %d: %v", i, err)
		}
	}
	latest, err = store.RecordChunkOutcome(ctx, job.ID, false, 0, 0, 0)
	if err != nil {
		t.Fatalf("RecordChunkOutcome failure: %v", err)
	}

	if latest.ChunksCompleted != 3 || latest.ChunksFailed != 1 {
		t.Fatalf("unexpected counters: %+v", latest)
	}
	if latest.ChunksCompleted+latest.ChunksFailed > latest.ChunksTotal {
		t.Fatal("counter invariant violated")
	}
	if latest.ProgressPercent != 100 {
		t.Fatalf("expected 100%% progress, got %d", latest.ProgressPercent)
	}
	if latest.InputTokens != 300 || latest.OutputTokens != 150 {
		t.Fatalf("unexpected token totals: %+v", latest)
	}
}

func TestFinalizeJobVersionGuard(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "job-1", "text")

	if err := store.MarkProcessing(ctx, job.ID, 1); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	latest, err := store.RecordChunkOutcome(ctx, job.ID, true, 10, 5, 0)
	if err != nil {
		t.Fatalf("RecordChunkOutcome: %v", err)
	}

	latest.Status = translation.JobCompleted
	latest.TranslatedText = "Bonjour"
	if err := store.FinalizeJob(ctx, latest, latest.Version-1); !errors.Is(err, translation.ErrVersionConflict) {
		t.Fatalf("stale version should conflict, got %v", err)
	}
	if err := store.FinalizeJob(ctx, latest, latest.Version); err != nil {
		t.Fatalf("FinalizeJob: %v", err)
	}

	loaded, err := store.JobByRowID(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobByRowID: %v", err)
	}
	if loaded.Status != translation.JobCompleted || loaded.TranslatedText != "Bonjour" {
		t.Fatalf("unexpected final state: %+v", loaded)
	}
	if loaded.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
}

func TestCancelJobOnlyWhenActive(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "job-1", "text")

	cancelled, err := store.CancelJob(ctx, job.JobID)
	if err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if cancelled.Status != translation.JobCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if _, err := store.CancelJob(ctx, job.JobID); !errors.Is(err, translation.ErrConflict) {
		t.Fatalf("cancelling terminal job should conflict, got %v", err)
	}
	if _, err := store.CancelJob(ctx, "missing"); !errors.Is(err, translation.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChunkLifecycle(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "job-1", "text ```go\ncode\n``` more")

	chunks := []*translation.Chunk{
		{ChunkIndex: 0, OriginalText: "text ", StartOffset: 0, EndOffset: 5},
		{ChunkIndex: 1, OriginalText: "```go\ncode\n```", IsCodeBlock: true, CodeLanguage: "go", StartOffset: 5, EndOffset: 19},
		{ChunkIndex: 2, OriginalText: " more", StartOffset: 19, EndOffset: 24},
	}
	if err := store.InsertChunks(ctx, job.ID, chunks); err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}

	loaded, err := store.ChunksForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ChunksForJob: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(loaded))
	}
	for i, chunk := range loaded {
		if chunk.ChunkIndex != i {
			t.Fatalf("chunk order broken: %+v", loaded)
		}
	}

	if err := store.MarkChunkProcessing(ctx, loaded[0].ID); err != nil {
		t.Fatalf("MarkChunkProcessing: %v", err)
	}
	if err := store.CompleteChunk(ctx, loaded[0].ID, "texte ", 10, 5, 120); err != nil {
		t.Fatalf("CompleteChunk: %v", err)
	}

	if err := store.SkipChunk(ctx, loaded[1].ID); err != nil {
		t.Fatalf("SkipChunk: %v", err)
	}
	skipped, err := store.ChunkByRowID(ctx, loaded[1].ID)
	if err != nil {
		t.Fatalf("ChunkByRowID: %v", err)
	}
	if skipped.Status != translation.ChunkSkipped || skipped.TranslatedText != skipped.OriginalText {
		t.Fatalf("skip must pass original through: %+v", skipped)
	}

	if err := store.MarkChunkProcessing(ctx, loaded[2].ID); err != nil {
		t.Fatalf("MarkChunkProcessing: %v", err)
	}
	if err := store.FailChunk(ctx, loaded[2].ID, "rate limited"); err != nil {
		t.Fatalf("FailChunk: %v", err)
	}
	if err := store.RequeueChunkForRetry(ctx, loaded[2].ID); err != nil {
		t.Fatalf("RequeueChunkForRetry: %v", err)
	}
	retried, err := store.ChunkByRowID(ctx, loaded[2].ID)
	if err != nil {
		t.Fatalf("ChunkByRowID: %v", err)
	}
	if retried.Status != translation.ChunkRetry || retried.RetryCount != 1 {
		t.Fatalf("unexpected retry state: %+v", retried)
	}

	// Completing an unprocessed chunk violates the state machine.
	if err := store.CompleteChunk(ctx, loaded[2].ID, "x", 0, 0, 0); !errors.Is(err, translation.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestErrorLogRetryScheduling(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "job-1", "text")

	due := time.Now().UTC().Add(-time.Minute)
	future := time.Now().UTC().Add(time.Hour)
	entries := []*translation.ErrorEntry{
		{JobID: job.ID, ErrorType: "rate_limit", ErrorMessage: "429", Severity: translation.SeverityHigh, Retriable: true, MaxRetries: 3, NextRetryAt: &due},
		{JobID: job.ID, ErrorType: "timeout", ErrorMessage: "deadline", Retriable: true, MaxRetries: 3, NextRetryAt: &future},
		{JobID: job.ID, ErrorType: "validation", ErrorMessage: "bad input", Retriable: false, MaxRetries: 0},
	}
	for _, entry := range entries {
		if err := store.LogError(ctx, entry); err != nil {
			t.Fatalf("LogError: %v", err)
		}
	}

	dueEntries, err := store.DueRetries(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("DueRetries: %v", err)
	}
	if len(dueEntries) != 1 || dueEntries[0].ErrorType != "rate_limit" {
		t.Fatalf("expected only the due retriable entry, got %+v", dueEntries)
	}

	next := time.Now().UTC().Add(time.Minute)
	if err := store.BumpRetry(ctx, dueEntries[0].ID, &next); err != nil {
		t.Fatalf("BumpRetry: %v", err)
	}
	if remaining, err := store.DueRetries(ctx, time.Now().UTC(), 10); err != nil || len(remaining) != 0 {
		t.Fatalf("rescheduled entry still due: %v %+v", err, remaining)
	}

	if err := store.ResolveError(ctx, dueEntries[0].ID); err != nil {
		t.Fatalf("ResolveError: %v", err)
	}
	if err := store.ResolveError(ctx, dueEntries[0].ID); !errors.Is(err, translation.ErrConflict) {
		t.Fatalf("double resolve should conflict, got %v", err)
	}

	resolved, err := store.ResolveJobErrors(ctx, job.ID)
	if err != nil {
		t.Fatalf("ResolveJobErrors: %v", err)
	}
	if resolved != 2 {
		t.Fatalf("expected 2 remaining entries resolved, got %d", resolved)
	}
}

func TestRetriesExhaustedAreNotDue(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "job-1", "text")

	due := time.Now().UTC().Add(-time.Minute)
	entry := &translation.ErrorEntry{
		JobID: job.ID, ErrorType: "service", ErrorMessage: "boom",
		Retriable: true, RetryAttempt: 3, MaxRetries: 3, NextRetryAt: &due,
	}
	if err := store.LogError(ctx, entry); err != nil {
		t.Fatalf("LogError: %v", err)
	}
	dueEntries, err := store.DueRetries(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("DueRetries: %v", err)
	}
	if len(dueEntries) != 0 {
		t.Fatalf("exhausted entry must not be due: %+v", dueEntries)
	}
}

func TestTimeoutStaleJobs(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	stale := testsupport.NewJob(t, store, "stale", "text")
	fresh := testsupport.NewJob(t, store, "fresh", "text")
	if err := store.MarkProcessing(ctx, stale.ID, 1); err != nil {
		t.Fatalf("MarkProcessing stale: %v", err)
	}
	if err := store.MarkProcessing(ctx, fresh.ID, 1); err != nil {
		t.Fatalf("MarkProcessing fresh: %v", err)
	}

	// Cutoff in the future relative to stale's start, in the past for fresh.
	affected, err := store.TimeoutStaleJobs(ctx, time.Now().UTC().Add(time.Second))
	if err != nil {
		t.Fatalf("TimeoutStaleJobs: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected both processing jobs swept, got %d", affected)
	}

	loaded, err := store.JobByRowID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("JobByRowID: %v", err)
	}
	if loaded.Status != translation.JobTimeout || loaded.ErrorMessage == "" {
		t.Fatalf("unexpected state after sweep: %+v", loaded)
	}

	// A second sweep finds nothing active.
	affected, err = store.TimeoutStaleJobs(ctx, time.Now().UTC().Add(time.Second))
	if err != nil {
		t.Fatalf("TimeoutStaleJobs: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected no jobs on second sweep, got %d", affected)
	}
}

func TestFeedbackAndHistory(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		testsupport.NewJob(t, store, id, "text "+id)
	}

	if err := store.SetFeedback(ctx, "b", 1, "great"); err != nil {
		t.Fatalf("SetFeedback: %v", err)
	}
	if err := store.SetFeedback(ctx, "b", 5, ""); err == nil {
		t.Fatal("expected validation error for rating 5")
	}
	if err := store.SetFeedback(ctx, "missing", 1, ""); !errors.Is(err, translation.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	jobs, total, err := store.History(ctx, "user-1", 2, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if total != 3 || len(jobs) != 2 {
		t.Fatalf("unexpected page: total=%d len=%d", total, len(jobs))
	}

	rated, err := store.JobByID(ctx, "b")
	if err != nil {
		t.Fatalf("JobByID: %v", err)
	}
	if rated.Rating != 1 || rated.RatingComment != "great" {
		t.Fatalf("unexpected feedback: %+v", rated)
	}
}

func TestSessionAggregatesAndStats(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.NewJob(t, store, "job-1", "text")

	if err := store.TouchSession(ctx, "session-1", "user-1", 100, 80, 40, 0.002); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}
	if err := store.TouchSession(ctx, "session-1", "user-1", 50, 20, 10, 0.001); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}

	session, err := store.SessionByID(ctx, "session-1")
	if err != nil {
		t.Fatalf("SessionByID: %v", err)
	}
	if session.JobsTotal != 2 || session.CharactersTotal != 150 || session.InputTokensTotal != 100 {
		t.Fatalf("unexpected aggregates: %+v", session)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 1 || stats.Active != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSchemaMismatchRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.DB().Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("update schema version: %v", err)
	}
	store.Close()

	_, err := translation.Open(cfg)
	if !errors.Is(err, translation.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
