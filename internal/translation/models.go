package translation

import (
	"strings"
	"time"
)

// JobStatus represents the lifecycle of a translation job.
type JobStatus string

const (
	JobPending         JobStatus = "pending"
	JobProcessing      JobStatus = "processing"
	JobChunkProcessing JobStatus = "chunk_processing"
	JobCompleted       JobStatus = "completed"
	JobFailed          JobStatus = "failed"
	JobCancelled       JobStatus = "cancelled"
	JobTimeout         JobStatus = "timeout"
)

var allJobStatuses = []JobStatus{
	JobPending,
	JobProcessing,
	JobChunkProcessing,
	JobCompleted,
	JobFailed,
	JobCancelled,
	JobTimeout,
}

var jobStatusSet = func() map[JobStatus]struct{} {
	set := make(map[JobStatus]struct{}, len(allJobStatuses))
	for _, status := range allJobStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var activeJobStatuses = map[JobStatus]struct{}{
	JobPending:         {},
	JobProcessing:      {},
	JobChunkProcessing: {},
}

// AllJobStatuses returns the ordered list of known job statuses.
func AllJobStatuses() []JobStatus {
	cp := make([]JobStatus, len(allJobStatuses))
	copy(cp, allJobStatuses)
	return cp
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := jobStatusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled, JobTimeout:
		return true
	}
	return false
}

// IsActive reports whether the job still occupies the pipeline.
func (s JobStatus) IsActive() bool {
	_, ok := activeJobStatuses[s]
	return ok
}

// ChunkStatus represents the lifecycle of a single chunk.
type ChunkStatus string

const (
	ChunkPending    ChunkStatus = "pending"
	ChunkProcessing ChunkStatus = "processing"
	ChunkCompleted  ChunkStatus = "completed"
	ChunkFailed     ChunkStatus = "failed"
	ChunkRetry      ChunkStatus = "retry"
	ChunkSkipped    ChunkStatus = "skipped"
)

var chunkStatusSet = map[ChunkStatus]struct{}{
	ChunkPending:    {},
	ChunkProcessing: {},
	ChunkCompleted:  {},
	ChunkFailed:     {},
	ChunkRetry:      {},
	ChunkSkipped:    {},
}

// ParseChunkStatus converts a string into a known ChunkStatus.
func ParseChunkStatus(value string) (ChunkStatus, bool) {
	normalized := ChunkStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := chunkStatusSet[normalized]
	return normalized, ok
}

// Severity classifies error log entries.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Job represents a translation job persisted in SQLite. ID is the internal
// row id; JobID is the external UUID handed to API clients.
type Job struct {
	ID               int64
	JobID            string
	UserID           string
	SessionID        string
	ContentHash      string
	PageURL          string
	SourceLang       string
	TargetLang       string
	Model            string
	Temperature      float64
	MaxTokens        int
	OriginalText     string
	TranslatedText   string
	Status           JobStatus
	ChunksTotal      int
	ChunksCompleted  int
	ChunksFailed     int
	ProgressPercent  int
	RetryCount       int
	ErrorMessage     string
	InputTokens      int64
	OutputTokens     int64
	EstimatedCostUSD float64
	ProcessingTimeMS int64
	CacheHit         bool
	Rating           int
	RatingComment    string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// Chunk is one unit of a split document, owned by exactly one job.
// Chunk indexes within a job form a contiguous 0..N-1 range.
type Chunk struct {
	ID               int64
	JobID            int64
	ChunkIndex       int
	OriginalText     string
	TranslatedText   string
	Status           ChunkStatus
	IsCodeBlock      bool
	CodeLanguage     string
	StartOffset      int
	EndOffset        int
	RetryCount       int
	ErrorMessage     string
	InputTokens      int64
	OutputTokens     int64
	ProcessingTimeMS int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ErrorEntry records one failure in the error log. Retriable entries carry
// a NextRetryAt schedule consumed by the retry scheduler.
type ErrorEntry struct {
	ID           int64
	JobID        int64
	ChunkID      int64
	ErrorType    string
	ErrorMessage string
	Severity     Severity
	Retriable    bool
	RetryAttempt int
	MaxRetries   int
	NextRetryAt  *time.Time
	ResolvedAt   *time.Time
	CreatedAt    time.Time
}

// Session aggregates usage per client session.
type Session struct {
	ID                int64
	SessionID         string
	UserID            string
	JobsTotal         int
	CharactersTotal   int64
	InputTokensTotal  int64
	OutputTokensTotal int64
	CostTotalUSD      float64
	CreatedAt         time.Time
	LastSeenAt        time.Time
}

// Stats summarizes job counts per lifecycle state plus aggregate usage.
type Stats struct {
	Total            int
	Active           int
	Completed        int
	Failed           int
	Cancelled        int
	TimedOut         int
	InputTokens      int64
	OutputTokens     int64
	EstimatedCostUSD float64
}
