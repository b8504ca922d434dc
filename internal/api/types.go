// Package api defines the HTTP wire types and their validation rules, plus
// converters between wire types and domain types. Handlers live in
// internal/httpd; keeping the DTOs separate lets the CLI reuse them.
package api

import (
	"time"

	"glossa/internal/translation"
)

// TranslateRequest is the POST /translation payload.
type TranslateRequest struct {
	Text       string `json:"text" validate:"required"`
	SourceLang string `json:"source_lang" validate:"required,max=35"`
	TargetLang string `json:"target_lang" validate:"required,max=35"`
	PageURL    string `json:"page_url,omitempty" validate:"omitempty,url,max=2048"`
	UserID     string `json:"user_id,omitempty" validate:"omitempty,max=128"`
	SessionID  string `json:"session_id,omitempty" validate:"omitempty,max=128"`

	Model       string  `json:"model,omitempty" validate:"omitempty,max=128"`
	Temperature float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int     `json:"max_tokens,omitempty" validate:"omitempty,gte=1,lte=131072"`

	ChunkSize          int   `json:"chunk_size,omitempty" validate:"omitempty,gte=200,lte=32768"`
	MaxChunks          int   `json:"max_chunks,omitempty" validate:"omitempty,gte=1,lte=1024"`
	PreserveCodeBlocks *bool `json:"preserve_code_blocks,omitempty"`

	// Stream selects the Server-Sent-Events response variant.
	Stream bool `json:"stream,omitempty"`
}

// FeedbackRequest rates a finished job: +1 good, -1 bad.
type FeedbackRequest struct {
	Rating  int    `json:"rating" validate:"required,oneof=-1 1"`
	Comment string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

// ChunkDTO is the wire form of one translated chunk.
type ChunkDTO struct {
	Index          int    `json:"index"`
	Status         string `json:"status"`
	IsCodeBlock    bool   `json:"is_code_block,omitempty"`
	CodeLanguage   string `json:"code_language,omitempty"`
	TranslatedText string `json:"translated_text,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// TranslateResponse is the synchronous translation result.
type TranslateResponse struct {
	JobID            string     `json:"job_id,omitempty"`
	Status           string     `json:"status"`
	TranslatedText   string     `json:"translated_text"`
	Cached           bool       `json:"cached"`
	Progress         int        `json:"progress"`
	ChunksTotal      int        `json:"chunks_total"`
	ChunksCompleted  int        `json:"chunks_completed"`
	ChunksFailed     int        `json:"chunks_failed"`
	Chunks           []ChunkDTO `json:"chunks,omitempty"`
	InputTokens      int64      `json:"input_tokens"`
	OutputTokens     int64      `json:"output_tokens"`
	EstimatedCostUSD float64    `json:"estimated_cost_usd"`
	ProcessingTimeMS int64      `json:"processing_time_ms"`
	ErrorMessage     string     `json:"error_message,omitempty"`
}

// JobDTO is the wire form of a job in history listings.
type JobDTO struct {
	JobID            string     `json:"job_id"`
	Status           string     `json:"status"`
	SourceLang       string     `json:"source_lang"`
	TargetLang       string     `json:"target_lang"`
	Model            string     `json:"model"`
	Snippet          string     `json:"snippet"`
	Progress         int        `json:"progress"`
	ChunksTotal      int        `json:"chunks_total"`
	ChunksCompleted  int        `json:"chunks_completed"`
	ChunksFailed     int        `json:"chunks_failed"`
	InputTokens      int64      `json:"input_tokens"`
	OutputTokens     int64      `json:"output_tokens"`
	EstimatedCostUSD float64    `json:"estimated_cost_usd"`
	ProcessingTimeMS int64      `json:"processing_time_ms"`
	CacheHit         bool       `json:"cache_hit"`
	Rating           int        `json:"rating,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// HistoryResponse pages a user's past jobs.
type HistoryResponse struct {
	Jobs   []JobDTO `json:"jobs"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// CacheStatsResponse reports cache occupancy.
type CacheStatsResponse struct {
	Entries  int64 `json:"entries"`
	Expired  int64 `json:"expired"`
	Pinned   int64 `json:"pinned"`
	HitTotal int64 `json:"hit_total"`
}

// StatsResponse aggregates job counts and usage totals.
type StatsResponse struct {
	Total            int     `json:"total"`
	Active           int     `json:"active"`
	Completed        int     `json:"completed"`
	Failed           int     `json:"failed"`
	Cancelled        int     `json:"cancelled"`
	TimedOut         int     `json:"timed_out"`
	InputTokens      int64   `json:"input_tokens"`
	OutputTokens     int64   `json:"output_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// DeletedResponse reports how many rows an invalidation removed.
type DeletedResponse struct {
	Deleted int64 `json:"deleted"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

// Principal identifies the caller, resolved once at the request boundary
// from the body with header fallbacks.
type Principal struct {
	UserID    string
	SessionID string
}

// ResolvePrincipal prefers explicit body fields over headers.
func ResolvePrincipal(bodyUserID, bodySessionID, headerUserID, headerSessionID string) Principal {
	principal := Principal{UserID: bodyUserID, SessionID: bodySessionID}
	if principal.UserID == "" {
		principal.UserID = headerUserID
	}
	if principal.SessionID == "" {
		principal.SessionID = headerSessionID
	}
	return principal
}

// StatsFromDomain converts store aggregates to the wire form.
func StatsFromDomain(stats translation.Stats) StatsResponse {
	return StatsResponse{
		Total:            stats.Total,
		Active:           stats.Active,
		Completed:        stats.Completed,
		Failed:           stats.Failed,
		Cancelled:        stats.Cancelled,
		TimedOut:         stats.TimedOut,
		InputTokens:      stats.InputTokens,
		OutputTokens:     stats.OutputTokens,
		EstimatedCostUSD: stats.EstimatedCostUSD,
	}
}
