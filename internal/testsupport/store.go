package testsupport

import (
	"context"
	"testing"

	"glossa/internal/config"
	"glossa/internal/translation"
)

// MustOpenStore opens a translation.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *translation.Store {
	t.Helper()

	store, err := translation.Open(cfg)
	if err != nil {
		t.Fatalf("translation.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob inserts a pending job with sensible defaults for tests.
func NewJob(t testing.TB, store *translation.Store, jobID, text string) *translation.Job {
	t.Helper()

	job := &translation.Job{
		JobID:        jobID,
		UserID:       "user-1",
		SessionID:    "session-1",
		ContentHash:  jobID + "-hash",
		SourceLang:   "en",
		TargetLang:   "fr",
		Model:        "test-model",
		Temperature:  0.3,
		MaxTokens:    1024,
		OriginalText: text,
	}
	if err := store.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	return job
}
